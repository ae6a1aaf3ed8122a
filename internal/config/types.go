package config

import "scoutbot/internal/watch"

// Config is the on-disk configuration (JSON, or YAML coerced to JSON).
//
// All durations are Go duration strings (e.g. "500ms", "10s", "1m").
type Config struct {
	Telegram TelegramConfig `json:"telegram"`
	Retry    RetryConfig    `json:"retry"`
	Browser  BrowserConfig  `json:"browser"`
	Logging  LoggingConfig  `json:"logging"`
	Storage  StorageConfig  `json:"storage"`
	Watch    WatchConfig    `json:"watch"`
}

// TelegramConfig configures the bot and broadcast delivery.
//
// The token may be left empty here and supplied through the
// SCOUTBOT_TELEGRAM_TOKEN environment variable (or a .env file).
//
// Defaults:
//   - connect_timeout: "10s"
//   - discover_wait: "10s"
//   - rate_per_sec: 0 (no pacing)
type TelegramConfig struct {
	Token string `json:"token"`
	// ChatIDs seeds the recipient set; senders found later are added to it.
	ChatIDs        []int64 `json:"chat_ids,omitempty"`
	ConnectTimeout string  `json:"connect_timeout,omitempty"`
	DiscoverWait   string  `json:"discover_wait,omitempty"`
	RatePerSec     int     `json:"rate_per_sec,omitempty"`
	// APIURL overrides the Bot API endpoint (local bot-api server).
	APIURL string `json:"api_url,omitempty"`
}

// RetryConfig is shared by every retried operation.
//
// Defaults: max_attempts 10, delay "1s".
type RetryConfig struct {
	MaxAttempts int    `json:"max_attempts,omitempty"`
	Delay       string `json:"delay,omitempty"`
}

// BrowserConfig configures the headless browser session.
//
// Example:
//
//	"browser": { "driver": "rod", "headless": true, "window": "1280x800" }
type BrowserConfig struct {
	// Driver is "chromedp" (default) or "rod".
	Driver string `json:"driver,omitempty"`
	// Headless is a pointer so an omitted value defaults to true.
	Headless  *bool  `json:"headless,omitempty"`
	ExecPath  string `json:"exec_path,omitempty"`
	UserAgent string `json:"user_agent,omitempty"`
	Lang      string `json:"lang,omitempty"`
	// Window is WIDTHxHEIGHT, default "1920x1080".
	Window string `json:"window,omitempty"`
	// MaxWait bounds element polling per lookup (one poll per second). Default "10s".
	MaxWait    string `json:"max_wait,omitempty"`
	NavTimeout string `json:"nav_timeout,omitempty"`
}

type LoggingConfig struct {
	Level    string          `json:"level"`
	Console  bool            `json:"console"`
	File     LoggingFile     `json:"file"`
	Telegram LoggingTelegram `json:"telegram"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

type LoggingTelegram struct {
	Enabled    bool   `json:"enabled"`
	ChatID     int64  `json:"chat_id"`
	MinLevel   string `json:"min_level"`
	RatePerSec int    `json:"rate_per_sec"`
}

// StorageConfig controls the optional persistence layer.
//
// Example:
//
//	"storage": { "driver": "sqlite", "path": "./data/scoutbot.db" }
type StorageConfig struct {
	Driver      string `json:"driver"`
	Path        string `json:"path"`
	BusyTimeout string `json:"busy_timeout,omitempty"` // sqlite only
}

// WatchConfig lists the watched pages.
type WatchConfig struct {
	// Schedule applies to targets without their own schedule. Default "10m".
	Schedule string `json:"schedule,omitempty"`
	// HistorySize bounds the remembered keys per target. 0 means 30.
	HistorySize int `json:"history_size,omitempty"`
	// NotifyOnStart broadcasts items found on a target's very first scan
	// instead of only recording them.
	NotifyOnStart bool           `json:"notify_on_start,omitempty"`
	Targets       []watch.Target `json:"targets"`
}
