package app

import (
	"strings"
	"time"

	"scoutbot/internal/browser"
	"scoutbot/internal/config"
	"scoutbot/internal/notifier"
	"scoutbot/internal/retry"
	"scoutbot/internal/storage"
	"scoutbot/internal/transport/telegram"
	"scoutbot/internal/watch"
	"scoutbot/pkg/logx"
)

// Every mapper below assumes cfg passed config.Validate, so parse errors
// are still returned but never expected.

func mapLogConfig(cfg *config.Config) logx.Config {
	return logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
		Telegram: logx.TelegramConfig{
			Enabled:    cfg.Logging.Telegram.Enabled,
			ChatID:     cfg.Logging.Telegram.ChatID,
			MinLevel:   cfg.Logging.Telegram.MinLevel,
			RatePerSec: cfg.Logging.Telegram.RatePerSec,
		},
	}
}

func mapRetryPolicy(cfg *config.Config) (retry.Policy, error) {
	p := retry.Default()
	if cfg.Retry.MaxAttempts > 0 {
		p.MaxAttempts = cfg.Retry.MaxAttempts
	}
	d, err := config.ParseDurationOrDefault("retry.delay", cfg.Retry.Delay, retry.DefaultDelay)
	if err != nil {
		return retry.Policy{}, err
	}
	p.Delay = d
	return p, nil
}

func mapTelegramConfig(cfg *config.Config) (telegram.Config, error) {
	connect, err := config.ParseDurationOrDefault("telegram.connect_timeout", cfg.Telegram.ConnectTimeout, 10*time.Second)
	if err != nil {
		return telegram.Config{}, err
	}
	wait, err := config.ParseDurationOrDefault("telegram.discover_wait", cfg.Telegram.DiscoverWait, 10*time.Second)
	if err != nil {
		return telegram.Config{}, err
	}
	return telegram.Config{
		Token:           strings.TrimSpace(cfg.Telegram.Token),
		RequestTimeout:  connect,
		MaxDiscoverWait: wait,
		URL:             strings.TrimSpace(cfg.Telegram.APIURL),
	}, nil
}

func mapNotifierOptions(cfg *config.Config, store storage.Store) (notifier.Options, error) {
	p, err := mapRetryPolicy(cfg)
	if err != nil {
		return notifier.Options{}, err
	}
	wait, err := config.ParseDurationOrDefault("telegram.discover_wait", cfg.Telegram.DiscoverWait, 10*time.Second)
	if err != nil {
		return notifier.Options{}, err
	}
	opts := notifier.Options{
		Policy:       p,
		DiscoverWait: wait,
		RatePerSec:   cfg.Telegram.RatePerSec,
	}
	if store != nil {
		opts.Store = store
	}
	return opts, nil
}

func mapBrowserConfig(cfg *config.Config) (browser.Config, error) {
	w, h, err := config.ParseWindow("browser.window", cfg.Browser.Window)
	if err != nil {
		return browser.Config{}, err
	}
	nav, err := config.ParseDurationField("browser.nav_timeout", cfg.Browser.NavTimeout)
	if err != nil {
		return browser.Config{}, err
	}
	headless := true
	if cfg.Browser.Headless != nil {
		headless = *cfg.Browser.Headless
	}
	return browser.Config{
		Driver:     strings.ToLower(strings.TrimSpace(cfg.Browser.Driver)),
		Headless:   headless,
		ExecPath:   strings.TrimSpace(cfg.Browser.ExecPath),
		UserAgent:  strings.TrimSpace(cfg.Browser.UserAgent),
		Lang:       strings.TrimSpace(cfg.Browser.Lang),
		Width:      w,
		Height:     h,
		NavTimeout: nav,
	}, nil
}

// mapWaitSeconds converts browser.max_wait into a poll count (one poll per second).
func mapWaitSeconds(cfg *config.Config) (int, error) {
	d, err := config.ParseDurationField("browser.max_wait", cfg.Browser.MaxWait)
	if err != nil {
		return 0, err
	}
	if d <= 0 {
		return 0, nil
	}
	return max(1, int(d/time.Second)), nil
}

func mapStorageConfig(cfg *config.Config) (storage.Config, error) {
	busy, err := config.ParseDurationField("storage.busy_timeout", cfg.Storage.BusyTimeout)
	if err != nil {
		return storage.Config{}, err
	}
	return storage.Config{
		Driver:      strings.TrimSpace(cfg.Storage.Driver),
		Path:        strings.TrimSpace(cfg.Storage.Path),
		BusyTimeout: busy,
	}, nil
}

func mapWatchOptions(cfg *config.Config, store storage.Store) (watch.Options, error) {
	wait, err := mapWaitSeconds(cfg)
	if err != nil {
		return watch.Options{}, err
	}
	opts := watch.Options{
		HistorySize:     cfg.Watch.HistorySize,
		NotifyOnStart:   cfg.Watch.NotifyOnStart,
		DefaultSchedule: cfg.Watch.Schedule,
		WaitSeconds:     wait,
	}
	if store != nil {
		opts.Store = store
	}
	return opts, nil
}

// mapTargets fills in the section-wide schedule so that a reload of
// watch.schedule reaches targets without their own.
func mapTargets(cfg *config.Config) []watch.Target {
	out := make([]watch.Target, 0, len(cfg.Watch.Targets))
	for _, t := range cfg.Watch.Targets {
		if strings.TrimSpace(t.Schedule) == "" {
			t.Schedule = cfg.Watch.Schedule
		}
		out = append(out, t)
	}
	return out
}
