package main

import (
	jwtPkg "SentraKTP/pkg/jwt"
	"SentraKTP/pkg/log"
	"fmt"
	jsoniter "github.com/json-iterator/go"
	"github.com/spf13/cobra"
	"time"
)

func newTokenCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue an access token for a kiosk or onboarding client",
		Long: `Token signs a client access token with JWT_ACCESS_TOKEN_SECRET. The
server accepts it as "Authorization: Bearer <token>" on /api/v1/ktp/extract.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runToken(cmd)
		},
	}

	cmd.Flags().String("id", "", "Client id stored in the token")
	cmd.Flags().String("name", "", "Client display name stored in the token")
	cmd.Flags().Duration("ttl", 24*time.Hour, "Token lifetime")
	_ = cmd.MarkFlagRequired("id")
	_ = cmd.MarkFlagRequired("name")

	return cmd
}

func (c *cli) runToken(cmd *cobra.Command) error {
	id, _ := cmd.Flags().GetString("id")
	name, _ := cmd.Flags().GetString("name")
	ttl, _ := cmd.Flags().GetDuration("ttl")
	if ttl <= 0 {
		return fmt.Errorf("ttl must be positive, got %s", ttl)
	}

	token, expiresAt, err := jwtPkg.Sign(map[string]interface{}{"id": id, "name": name}, ttl)
	if err != nil {
		return fmt.Errorf("sign token: %w", err)
	}

	c.log.WithFields(log.Fields{
		"client_id":  id,
		"expires_at": time.Unix(expiresAt, 0).UTC().Format(time.RFC3339),
	}).Info("Client token issued")

	payload, err := jsoniter.Marshal(struct {
		AccessToken string `json:"access_token"`
		ExpiresAt   int64  `json:"expires_at"`
	}{token, expiresAt})
	if err != nil {
		return err
	}

	_, err = fmt.Fprintln(cmd.OutOrStdout(), string(payload))
	return err
}
