package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"spedermath/internal/auth"
	"spedermath/internal/clients"
	"spedermath/internal/config"
)

func issueCredentialCmd(cfg config.Config) *cobra.Command {
	var (
		kind    string
		id      int64
		subject string
	)
	cmd := &cobra.Command{
		Use:   "issue-credential",
		Short: "Sign a session credential for a teacher or student",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := cfg.Validate(); err != nil {
				return err
			}
			principalKind := auth.ParseKind(kind)
			if principalKind == auth.KindUnknown {
				return fmt.Errorf("unknown kind %q, want teacher or student", kind)
			}
			if id <= 0 {
				return errors.New("--id must be positive")
			}
			codec := auth.NewCodec(cfg.SigningKey(), cfg.JWTIssuer, cfg.CredentialTTL)
			token, err := codec.Issue(auth.Principal{Kind: principalKind, ID: id}, subject)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().StringVar(&kind, "kind", "student", "principal kind: teacher or student")
	cmd.Flags().Int64Var(&id, "id", 0, "principal id")
	cmd.Flags().StringVar(&subject, "subject", "", "sub claim for teacher credentials (usually the email)")
	return cmd
}

func verifyCredentialCmd(cfg config.Config) *cobra.Command {
	var remote string
	cmd := &cobra.Command{
		Use:   "verify-credential <credential>",
		Short: "Check a session credential locally or against a running server",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var (
				principal auth.Principal
				err       error
			)
			if remote != "" {
				principal, err = verifyRemote(cmd, cfg, remote, args[0])
			} else {
				principal, err = verifyLocal(cfg, args[0])
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %d\n", principal.Kind, principal.ID)
			return nil
		},
	}
	cmd.Flags().StringVar(&remote, "remote", "", "gRPC address of a running server; verifies locally when empty")
	return cmd
}

func verifyLocal(cfg config.Config, credential string) (auth.Principal, error) {
	if err := cfg.Validate(); err != nil {
		return auth.Principal{}, err
	}
	codec := auth.NewCodec(cfg.SigningKey(), cfg.JWTIssuer, cfg.CredentialTTL)
	claims, err := codec.Verify(credential)
	if err != nil {
		return auth.Principal{}, err
	}
	kind := claims.Kind()
	id, _ := claims.PrincipalID(kind)
	return auth.Principal{Kind: kind, ID: id}, nil
}

func verifyRemote(cmd *cobra.Command, cfg config.Config, addr, credential string) (auth.Principal, error) {
	client, err := clients.NewCredentials(cmd.Context(), addr, cfg.ServiceAuthToken, cfg.GRPCDialTimeout)
	if err != nil {
		return auth.Principal{}, fmt.Errorf("grpc dial failed: %w", err)
	}
	defer client.Close()
	return client.Verify(cmd.Context(), credential)
}
