package main

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"spedermath/internal/config"
	"spedermath/internal/db"
	"spedermath/internal/jobs"
	"spedermath/internal/repository"
)

func sweepTokensCmd(cfg config.Config, logger *slog.Logger) *cobra.Command {
	retention := cfg.TokenSweepRetention
	cmd := &cobra.Command{
		Use:   "sweep-tokens",
		Short: "Delete used and expired QR login tokens",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			var store jobs.ExpiredTokenDeleter
			switch cfg.LoginTokenStore {
			case config.TokenStorePostgres:
				pool, err := db.NewPool(ctx, cfg.DatabaseURL)
				if err != nil {
					return fmt.Errorf("db connection failed: %w", err)
				}
				defer pool.Close()
				store = repository.NewStore(pool)
			case config.TokenStoreRedis:
				client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword})
				defer client.Close()
				store = repository.NewRedisLoginTokens(client)
			default:
				return errors.New("sweep-tokens needs LOGIN_TOKEN_STORE=postgres or redis")
			}

			removed, err := jobs.SweepTokens(ctx, store, time.Now().UTC(), retention)
			if err != nil {
				return err
			}
			logger.Info("login tokens swept", "removed", removed, "retention", retention.String())
			return nil
		},
	}
	cmd.Flags().DurationVar(&retention, "retention", retention, "keep tokens that expired or were used more recently than this")
	return cmd
}
