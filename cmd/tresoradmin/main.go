package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	entrypoint "github.com/louisbranch/tresorgate/internal/platform/cmd"
	"github.com/louisbranch/tresorgate/internal/platform/config"
	"github.com/louisbranch/tresorgate/internal/tools/tresoradmin"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := entrypoint.RunWithTelemetry(ctx, entrypoint.ServiceTresorAdmin, func(ctx context.Context) error {
		return tresoradmin.Execute(ctx, os.Args[1:], os.Stdout, os.Stderr)
	})
	if err != nil {
		config.Exitf("tresoradmin: %v", err)
	}
}
