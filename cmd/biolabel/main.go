package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"biolabel/internal/pipeerr"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cmd := newRootCommand()
	if err := cmd.ExecuteContext(ctx); err != nil {
		if !errors.Is(err, context.Canceled) {
			fmt.Fprintln(os.Stderr, err)
			if kind := pipeerr.Kind(err); kind != "unknown" {
				fmt.Fprintf(os.Stderr, "hint: %s\n", pipeerr.Hint(err))
			}
		}
		cancel()
		os.Exit(1)
	}
}
