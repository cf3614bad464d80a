package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/Overland-East-Bay/address-book-api/internal/domain"
	"github.com/Overland-East-Bay/address-book-api/internal/platform/auth/token"
	platformclock "github.com/Overland-East-Bay/address-book-api/internal/platform/clock"
)

func newTokenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Work with access tokens",
	}
	cmd.AddCommand(newTokenMintCmd(), newTokenInspectCmd())
	return cmd
}

type tokenFlags struct {
	secret string
	issuer string
}

func (f *tokenFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.secret, "secret", "", "signing secret (default $APP_SECRET)")
	cmd.Flags().StringVar(&f.issuer, "issuer", "", "token issuer (default $TOKEN_ISSUER or address-book-api)")
}

func (f *tokenFlags) manager(ttl time.Duration) (*token.Manager, error) {
	secret := f.secret
	if secret == "" {
		secret = os.Getenv("APP_SECRET")
	}
	issuer := f.issuer
	if issuer == "" {
		issuer = os.Getenv("TOKEN_ISSUER")
	}
	if issuer == "" {
		issuer = "address-book-api"
	}
	return token.New(token.Config{Secret: []byte(secret), TTL: ttl, Issuer: issuer}, platformclock.NewSystemClock())
}

// newTokenMintCmd signs a token for an existing user id without a password.
// It is meant for local testing against a server sharing the same secret.
func newTokenMintCmd() *cobra.Command {
	var (
		tf     tokenFlags
		userID int64
		email  string
		name   string
		ttl    time.Duration
	)
	cmd := &cobra.Command{
		Use:   "mint",
		Short: "Sign an access token for a user id",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if userID <= 0 {
				return errors.New("--user-id must be a positive integer")
			}
			m, err := tf.manager(ttl)
			if err != nil {
				return err
			}
			tok, err := m.Issue(token.IdentityClaims{SubjectID: domain.UserID(userID), Email: email, Name: name})
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), tok.Value)
			return nil
		},
	}
	tf.register(cmd)
	cmd.Flags().Int64Var(&userID, "user-id", 0, "subject user id")
	cmd.Flags().StringVar(&email, "email", "", "email claim")
	cmd.Flags().StringVar(&name, "name", "", "name claim")
	cmd.Flags().DurationVar(&ttl, "ttl", token.DefaultTTL, "token lifetime")
	_ = cmd.MarkFlagRequired("user-id")
	return cmd
}

func newTokenInspectCmd() *cobra.Command {
	var tf tokenFlags
	cmd := &cobra.Command{
		Use:   "inspect <token>",
		Short: "Verify a token and print its claims",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := tf.manager(0)
			if err != nil {
				return err
			}
			claims, err := m.Parse(args[0])
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(map[string]any{
				"sub":       claims.SubjectID,
				"email":     claims.Email,
				"name":      claims.Name,
				"jti":       claims.TokenID,
				"issuedAt":  claims.IssuedAt,
				"expiresAt": claims.ExpiresAt,
			})
		},
	}
	tf.register(cmd)
	return cmd
}
