package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/wonny/putscan/cmd/putscan/commands"
)

// main is the entry point for the putscan CLI
// ⭐ 통합 CLI 진입점: go run ./cmd/putscan [command]
func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := commands.ExecuteContext(ctx)
	if err == nil {
		return
	}

	// Ctrl+C is a clean exit
	if errors.Is(err, context.Canceled) || ctx.Err() != nil {
		fmt.Fprintln(os.Stderr, "\nExiting...")
		return
	}
	os.Exit(1)
}
