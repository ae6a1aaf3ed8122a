package app

import (
	"context"
	"fmt"
	"strings"

	"scoutbot/internal/browser"
	"scoutbot/internal/config"
	"scoutbot/internal/fetch"
	"scoutbot/internal/notifier"
	"scoutbot/pkg/logx"
)

// Check loads and validates the config file without side effects.
func Check(cfgPath string) (*config.Config, error) {
	return config.NewManager(cfgPath).Load()
}

// ProbeRequest describes a one-off selector test against a live page.
type ProbeRequest struct {
	URL      string
	Selector string
	One      bool
	// Wait is the number of polls; <= 0 uses browser.max_wait.
	Wait int
}

// Probe opens the configured browser, visits req.URL and returns the text
// of every element matching req.Selector.
func Probe(ctx context.Context, cfg *config.Config, req ProbeRequest, log logx.Logger) ([]string, error) {
	bcfg, err := mapBrowserConfig(cfg)
	if err != nil {
		return nil, err
	}
	wait := req.Wait
	if wait <= 0 {
		if wait, err = mapWaitSeconds(cfg); err != nil {
			return nil, err
		}
	}

	page, err := browser.Open(ctx, bcfg, log.With(logx.String("comp", "browser")))
	if err != nil {
		return nil, err
	}
	defer page.Close()

	f := fetch.New(page, log.With(logx.String("comp", "fetch")))
	if !f.Navigate(ctx, req.URL) {
		return nil, fmt.Errorf("navigate %s failed", req.URL)
	}

	if req.One {
		sel, ok := f.FindOne(ctx, req.Selector, wait)
		if !ok {
			return []string{}, nil
		}
		return []string{strings.TrimSpace(sel.Text())}, nil
	}
	out := []string{}
	for _, sel := range f.FindAll(ctx, req.Selector, wait) {
		out = append(out, strings.Join(strings.Fields(sel.Text()), " "))
	}
	return out, nil
}

// Send broadcasts one message the same way a scan would, including
// recipient discovery and persistence.
func Send(ctx context.Context, cfg *config.Config, message string, log logx.Logger) (notifier.Result, error) {
	store, err := openStore(cfg, log)
	if err != nil {
		return notifier.Result{}, err
	}
	if store != nil {
		defer store.Close()
	}
	disp, err := newDispatcher(ctx, cfg, store, log)
	if err != nil {
		return notifier.Result{}, err
	}
	return disp.Deliver(ctx, message), nil
}
