package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"scoutbot/internal/config"

	"github.com/spf13/cobra"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "fatal:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var cfgPath string

	cmd := &cobra.Command{
		Use:          "scoutbot",
		Short:        "Watch web pages and broadcast new items to Telegram",
		SilenceUsage: true,
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			_, err := config.LoadDotEnv(cfgPath)
			return err
		},
	}
	cmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "./config.yaml", "path to config (json or yaml)")

	cmd.AddCommand(
		runCmd(&cfgPath),
		checkCmd(&cfgPath),
		probeCmd(&cfgPath),
		sendCmd(&cfgPath),
	)
	return cmd
}
