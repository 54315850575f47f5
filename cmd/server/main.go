package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/dmitrijs2005/wbcms/internal/server/config"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cmd := NewRootCmd()
	cmd.SetArgs(config.CommandArgs(os.Args[1:]))
	if err := cmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}
