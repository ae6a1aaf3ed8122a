package browser

import (
	"context"
	"fmt"

	"github.com/chromedp/chromedp"

	"scoutbot/internal/retry"
	"scoutbot/pkg/logx"
)

type chromedpPage struct {
	cfg Config
	log logx.Logger

	ctx         context.Context
	cancel      context.CancelFunc
	allocCancel context.CancelFunc
}

func openChromedp(ctx context.Context, cfg Config, log logx.Logger) (Page, error) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", cfg.Headless),
		chromedp.DisableGPU,
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("blink-settings", "imagesEnabled=false"),
		chromedp.Flag("lang", cfg.Lang),
		chromedp.WindowSize(cfg.Width, cfg.Height),
		chromedp.UserAgent(cfg.UserAgent),
	)
	if cfg.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(cfg.ExecPath))
	}

	// The browser outlives the caller's ctx; Close tears it down.
	allocCtx, allocCancel := chromedp.NewExecAllocator(context.WithoutCancel(ctx), opts...)
	bctx, cancel := chromedp.NewContext(allocCtx, chromedp.WithLogf(func(format string, v ...any) {
		log.Debug(fmt.Sprintf(format, v...), logx.String("src", "chromedp"))
	}))

	// First Run starts the browser process.
	if err := chromedp.Run(bctx); err != nil {
		cancel()
		allocCancel()
		return nil, retry.Mark(retry.KindDriver, fmt.Errorf("start chrome: %w", err))
	}
	return &chromedpPage{cfg: cfg, log: log, ctx: bctx, cancel: cancel, allocCancel: allocCancel}, nil
}

// run executes actions on the browser context, bounded by both the
// session's NavTimeout and the caller's ctx.
func (p *chromedpPage) run(ctx context.Context, actions ...chromedp.Action) error {
	rctx, cancel := context.WithTimeout(p.ctx, p.cfg.NavTimeout)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()
	return chromedp.Run(rctx, actions...)
}

func (p *chromedpPage) Navigate(ctx context.Context, url string) error {
	if err := p.run(ctx, chromedp.Navigate(url)); err != nil {
		return retry.Mark(retry.KindDriver, fmt.Errorf("navigate %s: %w", url, err))
	}
	return nil
}

func (p *chromedpPage) Content(ctx context.Context) (string, error) {
	var html string
	if err := p.run(ctx, chromedp.OuterHTML("html", &html, chromedp.ByQuery)); err != nil {
		return "", retry.Mark(retry.KindDriver, fmt.Errorf("page source: %w", err))
	}
	return html, nil
}

func (p *chromedpPage) Close() error {
	p.cancel()
	p.allocCancel()
	return nil
}
