package main

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/rcrt-io/rcrt/internal/auth"
	"github.com/rcrt-io/rcrt/internal/config"
	"github.com/rcrt-io/rcrt/internal/storage/postgres"
	"github.com/rcrt-io/rcrt/internal/types"
)

var (
	tokenOwnerID string
	tokenAgentID string
	tokenRoles   string
)

func init() {
	tokenCmd.Flags().StringVar(&tokenOwnerID, "owner", "", "owner id (required)")
	tokenCmd.Flags().StringVar(&tokenAgentID, "agent", "", "agent id (required)")
	tokenCmd.Flags().StringVar(&tokenRoles, "roles", "", "comma-separated subset of the agent's roles to embed (default: all)")
	rootCmd.AddCommand(tokenCmd)
}

// tokenCmd mints a bearer token directly against the database, without
// going through POST /auth/token, for operators bootstrapping the
// first curator token before anything can call the HTTP API.
var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Mint a bearer token for an existing owner/agent",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signalContext()
		defer cancel()

		ownerID, err := uuid.Parse(tokenOwnerID)
		if err != nil {
			return fmt.Errorf("invalid --owner: %w", err)
		}
		agentID, err := uuid.Parse(tokenAgentID)
		if err != nil {
			return fmt.Errorf("invalid --agent: %w", err)
		}

		cfg, err := config.Load(configPath)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		store, err := postgres.Open(ctx, cfg.DBURL)
		if err != nil {
			return fmt.Errorf("open store: %w", err)
		}
		defer store.Close()

		agent, err := store.GetAgent(ctx, ownerID, agentID)
		if err != nil {
			return fmt.Errorf("load agent: %w", err)
		}

		roles := agent.Roles
		if tokenRoles != "" {
			want := strings.Split(tokenRoles, ",")
			roles = nil
			for _, w := range want {
				r := types.Role(strings.TrimSpace(w))
				if !agent.HasRole(r) {
					return fmt.Errorf("agent does not have role %q", r)
				}
				roles = append(roles, r)
			}
		}

		priv, err := auth.ParsePrivateKeyPEM(cfg.JWTPrivateKey)
		if err != nil {
			return fmt.Errorf("parse JWT_PRIVATE_KEY: %w", err)
		}
		minter := auth.NewMinter(priv, cfg.JWTTokenTTL)
		signed, err := minter.Mint(ownerID, agentID, roles)
		if err != nil {
			return fmt.Errorf("mint token: %w", err)
		}
		fmt.Println(signed)
		return nil
	},
}
