package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/szhu/git-rescribe/cmd/git-rescribe/cli"
	"github.com/szhu/git-rescribe/cmd/git-rescribe/cli/logging"
)

func main() {
	// Cancel on interrupt so a running rescribe stops between commits
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	rootCmd := cli.NewRootCmd()
	err := rootCmd.ExecuteContext(ctx)
	// Post-run hooks are skipped on error, so flush logs here too
	logging.Close()

	if err != nil {
		// Don't print if the command already handled its own error output
		var silent *cli.SilentError
		if !errors.As(err, &silent) {
			fmt.Fprintln(os.Stderr, err)
		}
		cancel()
		os.Exit(1)
	}
	cancel()
}
