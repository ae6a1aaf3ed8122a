package config

import (
	"errors"
	"fmt"
	"strings"

	"scoutbot/internal/watch"
)

var (
	knownBrowserDrivers = []string{"", "chromedp", "rod"}
	knownStoreDrivers   = []string{"", "none", "file", "sqlite", "sqlite3"}
)

// Validate checks cfg without touching the outside world. All problems are
// reported together.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errors.New("config is nil")
	}
	var errs []error
	add := func(err error) {
		if err != nil {
			errs = append(errs, err)
		}
	}
	failf := func(format string, args ...any) { errs = append(errs, fmt.Errorf(format, args...)) }

	// telegram
	if strings.TrimSpace(cfg.Telegram.Token) == "" {
		failf("telegram.token is required (or set %s)", EnvToken)
	}
	_, err := ParseDurationField("telegram.connect_timeout", cfg.Telegram.ConnectTimeout)
	add(err)
	_, err = ParseDurationField("telegram.discover_wait", cfg.Telegram.DiscoverWait)
	add(err)
	if cfg.Telegram.RatePerSec < 0 {
		failf("telegram.rate_per_sec must be >= 0")
	}

	// retry
	if cfg.Retry.MaxAttempts < 0 {
		failf("retry.max_attempts must be >= 0")
	}
	_, err = ParseDurationField("retry.delay", cfg.Retry.Delay)
	add(err)

	// browser
	if !oneOf(cfg.Browser.Driver, knownBrowserDrivers) {
		failf("browser.driver: unknown %q (use chromedp or rod)", cfg.Browser.Driver)
	}
	_, _, err = ParseWindow("browser.window", cfg.Browser.Window)
	add(err)
	_, err = ParseDurationField("browser.max_wait", cfg.Browser.MaxWait)
	add(err)
	_, err = ParseDurationField("browser.nav_timeout", cfg.Browser.NavTimeout)
	add(err)

	// logging
	if cfg.Logging.File.Enabled && strings.TrimSpace(cfg.Logging.File.Path) == "" {
		failf("logging.file.path is required when logging.file.enabled")
	}
	if cfg.Logging.Telegram.Enabled && cfg.Logging.Telegram.ChatID == 0 {
		failf("logging.telegram.chat_id is required when logging.telegram.enabled")
	}
	if cfg.Logging.Telegram.RatePerSec < 0 {
		failf("logging.telegram.rate_per_sec must be >= 0")
	}

	// storage
	if !oneOf(cfg.Storage.Driver, knownStoreDrivers) {
		failf("storage.driver: unknown %q", cfg.Storage.Driver)
	} else if d := strings.ToLower(strings.TrimSpace(cfg.Storage.Driver)); d != "" && d != "none" && strings.TrimSpace(cfg.Storage.Path) == "" {
		failf("storage.path is required when storage.driver=%s", d)
	}
	_, err = ParseDurationField("storage.busy_timeout", cfg.Storage.BusyTimeout)
	add(err)

	// watch
	if cfg.Watch.HistorySize < 0 {
		failf("watch.history_size must be >= 0")
	}
	if s := strings.TrimSpace(cfg.Watch.Schedule); s != "" {
		if _, err := watch.ParseSchedule(s); err != nil {
			failf("watch.schedule: %v", err)
		}
	}
	seen := map[string]bool{}
	for i, t := range cfg.Watch.Targets {
		path := fmt.Sprintf("watch.targets[%d]", i)
		name := strings.TrimSpace(t.Name)
		switch {
		case name == "":
			failf("%s.name is required", path)
		case seen[name]:
			failf("%s.name: duplicate %q", path, name)
		}
		seen[name] = true
		if strings.TrimSpace(t.URL) == "" {
			failf("%s.url is required", path)
		}
		if strings.TrimSpace(t.Items) == "" {
			failf("%s.items is required", path)
		}
		if s := strings.TrimSpace(t.Schedule); s != "" {
			if _, err := watch.ParseSchedule(s); err != nil {
				failf("%s.schedule: %v", path, err)
			}
		}
	}

	return errors.Join(errs...)
}

func oneOf(v string, allowed []string) bool {
	v = strings.ToLower(strings.TrimSpace(v))
	for _, a := range allowed {
		if v == a {
			return true
		}
	}
	return false
}
