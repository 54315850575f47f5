package main

import (
	"context"
	"os"

	"github.com/spf13/cobra"
)

// NewMaintenanceCmd creates the maintenance subcommand group.
func NewMaintenanceCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "maintenance",
		Short: "One-shot housekeeping tasks",
	}
	cmd.AddCommand(NewPurgeTokensCmd())
	return cmd
}

// NewPurgeTokensCmd creates the purge-tokens subcommand.
func NewPurgeTokensCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "purge-tokens",
		Short: "Delete expired reset tokens and refresh-token ledger entries",
		Long: `Delete password reset tokens and refresh-token ledger entries whose
expiry has passed. Meant to be run from cron.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withBackend(cmd, os.Stderr, func(ctx context.Context, b backend) error {
				return runPurgeTokens(ctx, cmd, b)
			})
		},
	}
}

func runPurgeTokens(ctx context.Context, cmd *cobra.Command, b backend) error {
	resets, refresh, err := b.PurgeExpired(ctx)
	if err != nil {
		return err
	}
	cmd.Printf("Purged %d reset tokens and %d refresh tokens\n", resets, refresh)
	return nil
}
