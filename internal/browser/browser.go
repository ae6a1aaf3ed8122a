// Package browser holds the rendered-page collaborator used by the fetcher
// and its headless Chrome implementations (chromedp and go-rod).
//
// Sessions are single-owner: one page, used from one goroutine at a time.
package browser

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"scoutbot/pkg/logx"
)

var ErrUnknownDriver = errors.New("unknown browser driver")

// Page is a live browser tab.
//
// Navigate and Content mark their failures with retry.KindDriver.
type Page interface {
	Navigate(ctx context.Context, url string) error
	Content(ctx context.Context) (string, error)
	Close() error
}

const (
	DriverChromedp = "chromedp"
	DriverRod      = "rod"
)

const defaultUserAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36"

type Config struct {
	Driver     string
	Headless   bool
	ExecPath   string
	UserAgent  string
	Lang       string
	Width      int
	Height     int
	NavTimeout time.Duration
}

func (c Config) withDefaults() Config {
	if strings.TrimSpace(c.Driver) == "" {
		c.Driver = DriverChromedp
	}
	if c.UserAgent == "" {
		c.UserAgent = defaultUserAgent
	}
	if c.Lang == "" {
		c.Lang = "en-US"
	}
	if c.Width <= 0 || c.Height <= 0 {
		c.Width, c.Height = 1920, 1080
	}
	if c.NavTimeout <= 0 {
		c.NavTimeout = 30 * time.Second
	}
	return c
}

// Open launches a browser with the configured driver.
func Open(ctx context.Context, cfg Config, log logx.Logger) (Page, error) {
	cfg = cfg.withDefaults()
	if log.IsZero() {
		log = logx.Nop()
	}
	log.Info("starting browser",
		logx.String("driver", cfg.Driver),
		logx.Bool("headless", cfg.Headless),
	)
	switch strings.ToLower(strings.TrimSpace(cfg.Driver)) {
	case DriverChromedp:
		return openChromedp(ctx, cfg, log)
	case DriverRod:
		return openRod(ctx, cfg, log)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, cfg.Driver)
	}
}
