package main

import (
	"context"
	"fmt"
	"time"

	gs "github.com/dmitrijs2005/wbcms/internal/server/grpc"
	"github.com/spf13/cobra"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

type statusConfig struct {
	timeout time.Duration
}

// checkHealth is replaced in tests.
var checkHealth = gs.CheckHealth

// NewStatusCmd creates the status subcommand.
func NewStatusCmd() *cobra.Command {
	cfg := &statusConfig{}

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Query the gRPC health endpoint of a running server",
		Long: `Ask the running server's gRPC health service whether it can reach its
database. Exits non-zero unless the server reports SERVING.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runStatus(cmd, cfg)
		},
	}

	cmd.Flags().DurationVar(&cfg.timeout, "timeout", 5*time.Second, "how long to wait for an answer")
	return cmd
}

func runStatus(cmd *cobra.Command, cfg *statusConfig) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), cfg.timeout)
	defer cancel()

	address := loadConfig().EndpointAddrGRPC
	st, err := checkHealth(ctx, address, gs.ServiceName)
	if err != nil {
		return err
	}

	cmd.Printf("%s: %s\n", address, st)
	if st != healthpb.HealthCheckResponse_SERVING {
		return fmt.Errorf("server is %s", st)
	}
	return nil
}
