package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"scoutbot/internal/app"
	"scoutbot/pkg/logx"

	"github.com/spf13/cobra"
)

const stopTimeout = 15 * time.Second

func runCmd(cfgPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Start watching until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			a, err := app.New(ctx, *cfgPath)
			if err != nil {
				return err
			}
			if err := a.Start(ctx); err != nil {
				_ = a.Stop(context.Background())
				return err
			}

			<-a.Done()
			stopCtx, cancel := context.WithTimeout(context.Background(), stopTimeout)
			defer cancel()
			if err := a.Stop(stopCtx); err != nil && ctx.Err() == nil {
				return err
			}
			return a.Err()
		},
	}
}

func checkCmd(cfgPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Validate the config file and print a summary",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := app.Check(*cfgPath)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "config OK: %s\n", *cfgPath)
			fmt.Fprintf(out, "seed recipients: %d\n", len(cfg.Telegram.ChatIDs))
			fmt.Fprintf(out, "storage: %s\n", orDefault(cfg.Storage.Driver, "none"))
			fmt.Fprintf(out, "browser: %s\n", orDefault(cfg.Browser.Driver, "chromedp"))
			for _, t := range cfg.Watch.Targets {
				fmt.Fprintf(out, "target %s: %s [%s] every %s\n",
					t.Name, t.URL, t.Items, orDefault(t.Schedule, orDefault(cfg.Watch.Schedule, "10m")))
			}
			return nil
		},
	}
}

func probeCmd(cfgPath *string) *cobra.Command {
	var req app.ProbeRequest

	c := &cobra.Command{
		Use:   "probe <url> <selector>",
		Short: "Open a page in the browser and print the text of matching elements",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := app.Check(*cfgPath)
			if err != nil {
				return err
			}
			req.URL, req.Selector = args[0], args[1]
			texts, err := app.Probe(cmd.Context(), cfg, req, logx.NewConsole(orDefault(cfg.Logging.Level, "info")))
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(texts) == 0 {
				fmt.Fprintln(out, "no match")
				return nil
			}
			for i, s := range texts {
				fmt.Fprintf(out, "[%d] %s\n", i, s)
			}
			return nil
		},
	}
	c.Flags().BoolVar(&req.One, "one", false, "return only the first match, keeping line breaks")
	c.Flags().IntVar(&req.Wait, "wait", 0, "polls (one per second) before giving up; 0 uses browser.max_wait")
	return c
}

func sendCmd(cfgPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "send <message>",
		Short: "Broadcast one message to every known recipient",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := app.Check(*cfgPath)
			if err != nil {
				return err
			}
			log := logx.NewConsole(orDefault(cfg.Logging.Level, "info"))
			res, err := app.Send(cmd.Context(), cfg, strings.Join(args, " "), log)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "sent: %v\n", res.Sent)
			if len(res.Failed) > 0 {
				fmt.Fprintf(out, "failed: %v\n", res.Failed)
			}
			if !res.Delivered() {
				return fmt.Errorf("message was not delivered")
			}
			return nil
		},
	}
}

func orDefault(v, def string) string {
	if s := strings.TrimSpace(v); s != "" {
		return s
	}
	return def
}
