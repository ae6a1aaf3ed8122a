package browser

import (
	"context"
	"fmt"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"

	"scoutbot/internal/retry"
	"scoutbot/pkg/logx"
)

type rodPage struct {
	cfg      Config
	log      logx.Logger
	launcher *launcher.Launcher
	browser  *rod.Browser
	page     *rod.Page
}

func openRod(ctx context.Context, cfg Config, log logx.Logger) (Page, error) {
	l := launcher.New().
		Headless(cfg.Headless).
		Set("disable-gpu").
		Set("disable-dev-shm-usage").
		Set("blink-settings", "imagesEnabled=false").
		Set("lang", cfg.Lang).
		Set("window-size", fmt.Sprintf("%d,%d", cfg.Width, cfg.Height))
	if cfg.ExecPath != "" {
		l = l.Bin(cfg.ExecPath)
	}

	controlURL, err := l.Context(ctx).Launch()
	if err != nil {
		return nil, retry.Mark(retry.KindDriver, fmt.Errorf("launch browser: %w", err))
	}
	b := rod.New().ControlURL(controlURL)
	if err := b.Connect(); err != nil {
		l.Kill()
		return nil, retry.Mark(retry.KindDriver, fmt.Errorf("connect browser: %w", err))
	}
	page, err := b.Page(proto.TargetCreateTarget{URL: "about:blank"})
	if err != nil {
		_ = b.Close()
		l.Kill()
		return nil, retry.Mark(retry.KindDriver, fmt.Errorf("open page: %w", err))
	}
	if err := page.SetUserAgent(&proto.NetworkSetUserAgentOverride{
		UserAgent:      cfg.UserAgent,
		AcceptLanguage: cfg.Lang,
	}); err != nil {
		log.Warn("set user agent failed", logx.Err(err))
	}
	return &rodPage{cfg: cfg, log: log, launcher: l, browser: b, page: page}, nil
}

func (p *rodPage) scoped(ctx context.Context) (*rod.Page, context.CancelFunc) {
	cctx, cancel := context.WithTimeout(ctx, p.cfg.NavTimeout)
	return p.page.Context(cctx), cancel
}

func (p *rodPage) Navigate(ctx context.Context, url string) error {
	pg, cancel := p.scoped(ctx)
	defer cancel()
	if err := pg.Navigate(url); err != nil {
		return retry.Mark(retry.KindDriver, fmt.Errorf("navigate %s: %w", url, err))
	}
	if err := pg.WaitLoad(); err != nil {
		return retry.Mark(retry.KindDriver, fmt.Errorf("wait load %s: %w", url, err))
	}
	return nil
}

func (p *rodPage) Content(ctx context.Context) (string, error) {
	pg, cancel := p.scoped(ctx)
	defer cancel()
	html, err := pg.HTML()
	if err != nil {
		return "", retry.Mark(retry.KindDriver, fmt.Errorf("page source: %w", err))
	}
	return html, nil
}

func (p *rodPage) Close() error {
	err := p.browser.Close()
	p.launcher.Kill()
	return err
}
