package config

import (
	"reflect"
	"slices"
	"strings"

	"scoutbot/pkg/logx"
)

// SummarizeChange lists the sections that differ between two configs and
// returns log-safe fields describing the new values. Tokens are never
// included.
func SummarizeChange(oldCfg, newCfg *Config) ([]string, []logx.Field) {
	if oldCfg == nil {
		oldCfg = &Config{}
	}
	if newCfg == nil {
		newCfg = &Config{}
	}

	var changed []string
	var attrs []logx.Field

	ot, nt := oldCfg.Telegram, newCfg.Telegram
	if ot.Token != nt.Token ||
		!slices.Equal(ot.ChatIDs, nt.ChatIDs) ||
		ot.ConnectTimeout != nt.ConnectTimeout ||
		ot.DiscoverWait != nt.DiscoverWait ||
		ot.RatePerSec != nt.RatePerSec ||
		ot.APIURL != nt.APIURL {
		changed = append(changed, "telegram")
		attrs = append(attrs,
			logx.Bool("telegram.token_changed", ot.Token != nt.Token),
			logx.Int("telegram.chat_ids", len(nt.ChatIDs)),
			logx.Int("telegram.rate_per_sec", nt.RatePerSec),
		)
	}

	if oldCfg.Retry != newCfg.Retry {
		changed = append(changed, "retry")
		attrs = append(attrs,
			logx.Int("retry.max_attempts", newCfg.Retry.MaxAttempts),
			logx.String("retry.delay", newCfg.Retry.Delay),
		)
	}

	if !reflect.DeepEqual(oldCfg.Browser, newCfg.Browser) {
		changed = append(changed, "browser")
		attrs = append(attrs,
			logx.String("browser.driver", newCfg.Browser.Driver),
			logx.String("browser.max_wait", newCfg.Browser.MaxWait),
		)
	}

	if oldCfg.Logging != newCfg.Logging {
		changed = append(changed, "logging")
		attrs = append(attrs,
			logx.String("logging.level", newCfg.Logging.Level),
			logx.Bool("logging.console", newCfg.Logging.Console),
			logx.Bool("logging.file_enabled", newCfg.Logging.File.Enabled),
			logx.Bool("logging.telegram_enabled", newCfg.Logging.Telegram.Enabled),
		)
	}

	if oldCfg.Storage != newCfg.Storage {
		changed = append(changed, "storage")
		attrs = append(attrs, logx.String("storage.driver", strings.TrimSpace(newCfg.Storage.Driver)))
	}

	if !reflect.DeepEqual(oldCfg.Watch, newCfg.Watch) {
		changed = append(changed, "watch")
		names := make([]string, 0, len(newCfg.Watch.Targets))
		for _, t := range newCfg.Watch.Targets {
			names = append(names, t.Name)
		}
		attrs = append(attrs,
			logx.String("watch.schedule", newCfg.Watch.Schedule),
			logx.Strings("watch.targets", names),
		)
	}

	return changed, attrs
}

// NeedsRestart reports settings that are only read at startup.
func NeedsRestart(oldCfg, newCfg *Config) []string {
	if oldCfg == nil || newCfg == nil {
		return nil
	}
	var out []string
	if oldCfg.Telegram.Token != newCfg.Telegram.Token || oldCfg.Telegram.APIURL != newCfg.Telegram.APIURL {
		out = append(out, "telegram")
	}
	if !reflect.DeepEqual(oldCfg.Browser, newCfg.Browser) {
		out = append(out, "browser")
	}
	if oldCfg.Storage != newCfg.Storage {
		out = append(out, "storage")
	}
	if oldCfg.Retry != newCfg.Retry || oldCfg.Telegram.RatePerSec != newCfg.Telegram.RatePerSec ||
		oldCfg.Telegram.DiscoverWait != newCfg.Telegram.DiscoverWait ||
		oldCfg.Telegram.ConnectTimeout != newCfg.Telegram.ConnectTimeout {
		out = append(out, "delivery")
	}
	if oldCfg.Watch.HistorySize != newCfg.Watch.HistorySize || oldCfg.Watch.NotifyOnStart != newCfg.Watch.NotifyOnStart {
		out = append(out, "watch.history")
	}
	return out
}
