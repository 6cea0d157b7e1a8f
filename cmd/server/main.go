package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"spedermath/internal/auth"
	"spedermath/internal/config"
	"spedermath/internal/crypto"
	"spedermath/internal/db"
	identitygrpc "spedermath/internal/grpc"
	internalhttp "spedermath/internal/http"
	"spedermath/internal/jobs"
	"spedermath/internal/metrics"
	"spedermath/internal/qr"
	"spedermath/internal/repository"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.SlogLevel()}))
	slog.SetDefault(logger)

	if err := run(cfg, logger); err != nil {
		logger.Error("server stopped", "error", err)
		os.Exit(1)
	}
}

func run(cfg config.Config, logger *slog.Logger) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, tokens, closeStores, err := openStores(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeStores()

	codec := auth.NewCodec(cfg.SigningKey(), cfg.JWTIssuer, cfg.CredentialTTL)
	sealer, err := crypto.NewSealer(cfg.PasswordKey())
	if err != nil {
		return fmt.Errorf("password sealer: %w", err)
	}
	m := metrics.New(prometheus.DefaultRegisterer)
	qrService := qr.NewService(store, tokens, codec, cfg.QRTokenTTL, cfg.FrontendBaseURL, m)
	server := internalhttp.NewServer(cfg, store, codec, sealer, qrService,
		internalhttp.WithMetrics(m),
		internalhttp.WithLogger(logger),
	)

	httpServer := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           server.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	errCh := make(chan error, 2)
	go func() {
		logger.Info("http listening", "addr", cfg.HTTPAddr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	var grpcServer interface{ GracefulStop() }
	if cfg.GRPCAddr != "" {
		srv, err := identitygrpc.NewServer(codec, cfg.ServiceAuthToken, logger)
		if err != nil {
			return fmt.Errorf("grpc server: %w", err)
		}
		listener, err := net.Listen("tcp", cfg.GRPCAddr)
		if err != nil {
			return fmt.Errorf("grpc listen: %w", err)
		}
		grpcServer = srv
		go func() {
			logger.Info("grpc listening", "addr", cfg.GRPCAddr)
			if err := srv.Serve(listener); err != nil {
				errCh <- fmt.Errorf("grpc server: %w", err)
			}
		}()
	}

	jobs.StartTokenSweepJob(ctx, cfg, tokens, logger)

	select {
	case <-ctx.Done():
	case err := <-errCh:
		logger.Error("listener failed", "error", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
	}
	if grpcServer != nil {
		grpcServer.GracefulStop()
	}
	logger.Info("shutdown complete")
	return nil
}

// openStores picks the persistence for entities and login tokens from
// LOGIN_TOKEN_STORE. Memory mode needs no database at all.
func openStores(ctx context.Context, cfg config.Config, logger *slog.Logger) (internalhttp.Store, repository.LoginTokenStore, func(), error) {
	if cfg.LoginTokenStore == config.TokenStoreMemory {
		logger.Warn("using in-memory store; data is lost on restart")
		memory := repository.NewMemory(nil)
		return memory, memory, func() {}, nil
	}

	if cfg.MigrateOnStart {
		if err := db.MigrateUp(cfg.DatabaseURL); err != nil {
			return nil, nil, nil, err
		}
		logger.Info("database migrations applied")
	}
	pool, err := db.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("db connection failed: %w", err)
	}
	store := repository.NewStore(pool)

	if cfg.LoginTokenStore != config.TokenStoreRedis {
		return store, store, pool.Close, nil
	}

	client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword})
	if err := client.Ping(ctx).Err(); err != nil {
		pool.Close()
		_ = client.Close()
		return nil, nil, nil, fmt.Errorf("redis connection failed: %w", err)
	}
	closeAll := func() {
		_ = client.Close()
		pool.Close()
	}
	return store, repository.NewRedisLoginTokens(client), closeAll, nil
}
