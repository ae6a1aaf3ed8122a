package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"scoutbot/internal/watch"
)

const sampleYAML = `
telegram:
  token: "123:abc"
  chat_ids: [42]
  rate_per_sec: 5
retry:
  max_attempts: 3
  delay: 2s
browser:
  driver: rod
  window: 1280x800
  max_wait: 15s
logging:
  level: debug
  console: true
storage:
  driver: sqlite
  path: ./data/scoutbot.db
watch:
  schedule: "*/10 * * * *"
  history_size: 50
  targets:
    - name: notices
      url: https://example.com/board
      items: "table.board tr"
      key: "a@href"
      schedule: 5m
`

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(p, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	return p
}

func TestLoadYAML(t *testing.T) {
	t.Setenv(EnvToken, "")
	m := NewManager(writeFile(t, "config.yaml", sampleYAML))
	cfg, err := m.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Telegram.Token != "123:abc" || len(cfg.Telegram.ChatIDs) != 1 || cfg.Telegram.ChatIDs[0] != 42 {
		t.Fatalf("telegram = %+v", cfg.Telegram)
	}
	if cfg.Browser.Driver != "rod" || cfg.Watch.HistorySize != 50 {
		t.Fatalf("cfg = %+v", cfg)
	}
	if len(cfg.Watch.Targets) != 1 || cfg.Watch.Targets[0].Key != "a@href" {
		t.Fatalf("targets = %+v", cfg.Watch.Targets)
	}
	if m.Get() != cfg {
		t.Fatal("Load should commit the config")
	}
}

func TestLoadJSON(t *testing.T) {
	t.Setenv(EnvToken, "")
	m := NewManager(writeFile(t, "config.json", `{"telegram":{"token":"t"},"watch":{"targets":[]}}`))
	if _, err := m.Load(); err != nil {
		t.Fatalf("Load: %v", err)
	}
}

func TestDecodeStrict(t *testing.T) {
	cases := []struct {
		name, file, body, want string
	}{
		{"unknown field", "c.json", `{"telegram":{"token":"t","poll":"1s"}}`, "unknown field"},
		{"trailing data", "c.json", `{"telegram":{"token":"t"}} {}`, "trailing data"},
		{"unknown yaml field", "c.yml", "watch:\n  bogus: 1\n", "unknown field"},
		{"bad yaml", "c.yaml", "telegram: [\n", "yaml"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Decode(tc.file, []byte(tc.body))
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("err = %v, want containing %q", err, tc.want)
			}
		})
	}
}

func TestDecodeEmptyYAML(t *testing.T) {
	t.Setenv(EnvToken, "")
	cfg, err := Decode("c.yaml", []byte("# nothing yet\n"))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if cfg.Telegram.Token != "" || len(cfg.Watch.Targets) != 0 {
		t.Fatalf("cfg = %+v", cfg)
	}
}

func TestEnvTokenOverrides(t *testing.T) {
	t.Setenv(EnvToken, "from-env")
	cfg, err := Decode("c.json", []byte(`{"telegram":{"token":"from-file"}}`))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Telegram.Token != "from-env" {
		t.Fatalf("token = %q", cfg.Telegram.Token)
	}
}

func TestLoadDotEnv(t *testing.T) {
	t.Setenv(EnvToken, "")
	os.Unsetenv(EnvToken)
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, ".env"), []byte(EnvToken+"=dotenv-token\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	loaded, err := LoadDotEnv(filepath.Join(dir, "config.yaml"))
	if err != nil {
		t.Fatalf("LoadDotEnv: %v", err)
	}
	if len(loaded) == 0 {
		t.Fatal("no .env loaded")
	}
	if got := os.Getenv(EnvToken); got != "dotenv-token" {
		t.Fatalf("env = %q", got)
	}
}

func TestValidate(t *testing.T) {
	base := func() *Config {
		return &Config{Telegram: TelegramConfig{Token: "t"}}
	}
	cases := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"ok", func(*Config) {}, ""},
		{"no token", func(c *Config) { c.Telegram.Token = " " }, "telegram.token"},
		{"bad delay", func(c *Config) { c.Retry.Delay = "soon" }, "retry.delay"},
		{"negative attempts", func(c *Config) { c.Retry.MaxAttempts = -1 }, "retry.max_attempts"},
		{"bad driver", func(c *Config) { c.Browser.Driver = "selenium" }, "browser.driver"},
		{"bad window", func(c *Config) { c.Browser.Window = "wide" }, "browser.window"},
		{"negative history", func(c *Config) { c.Watch.HistorySize = -1 }, "watch.history_size"},
		{"bad schedule", func(c *Config) { c.Watch.Schedule = "whenever" }, "watch.schedule"},
		{"storage without path", func(c *Config) { c.Storage.Driver = "file" }, "storage.path"},
		{"unknown storage", func(c *Config) { c.Storage.Driver = "redis" }, "storage.driver"},
		{"telegram log without chat", func(c *Config) { c.Logging.Telegram.Enabled = true }, "logging.telegram.chat_id"},
		{"target without name", func(c *Config) {
			c.Watch.Targets = append(c.Watch.Targets, targetFixture(""))
		}, "watch.targets[0].name"},
		{"duplicate target", func(c *Config) {
			c.Watch.Targets = append(c.Watch.Targets, targetFixture("a"), targetFixture("a"))
		}, "duplicate"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := base()
			tc.mutate(cfg)
			err := Validate(cfg)
			if tc.want == "" {
				if err != nil {
					t.Fatalf("Validate: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("err = %v, want containing %q", err, tc.want)
			}
		})
	}
}

func TestValidateReportsAllProblems(t *testing.T) {
	err := Validate(&Config{Retry: RetryConfig{Delay: "x"}})
	if err == nil {
		t.Fatal("expected error")
	}
	msg := err.Error()
	if !strings.Contains(msg, "telegram.token") || !strings.Contains(msg, "retry.delay") {
		t.Fatalf("err = %v", err)
	}
}

func TestParseWindow(t *testing.T) {
	w, h, err := ParseWindow("w", "1280x800")
	if err != nil || w != 1280 || h != 800 {
		t.Fatalf("ParseWindow = %d, %d, %v", w, h, err)
	}
	if w, h, err := ParseWindow("w", ""); err != nil || w != 0 || h != 0 {
		t.Fatalf("empty = %d, %d, %v", w, h, err)
	}
	for _, bad := range []string{"1280", "0x10", "ax b", "10x-1"} {
		if _, _, err := ParseWindow("w", bad); err == nil {
			t.Fatalf("ParseWindow(%q) should fail", bad)
		}
	}
}

func TestParseDurationOrDefault(t *testing.T) {
	d, err := ParseDurationOrDefault("x", "", 3*time.Second)
	if err != nil || d != 3*time.Second {
		t.Fatalf("default = %v, %v", d, err)
	}
	d, err = ParseDurationOrDefault("x", "250ms", time.Second)
	if err != nil || d != 250*time.Millisecond {
		t.Fatalf("parsed = %v, %v", d, err)
	}
	if _, err := ParseDurationOrDefault("x", "-1s", time.Second); err == nil {
		t.Fatal("negative duration should fail")
	}
}

func TestReloadPublishesOnlyChanges(t *testing.T) {
	t.Setenv(EnvToken, "")
	path := writeFile(t, "config.json", `{"telegram":{"token":"t"}}`)
	m := NewManager(path)
	if _, err := m.Load(); err != nil {
		t.Fatal(err)
	}
	sub := m.Subscribe(1)
	defer m.Unsubscribe(sub)

	changed, err := m.Reload()
	if err != nil || changed {
		t.Fatalf("unchanged reload = %v, %v", changed, err)
	}

	if err := os.WriteFile(path, []byte(`{"telegram":{"token":""}}`), 0o600); err != nil {
		t.Fatal(err)
	}
	if changed, err := m.Reload(); err == nil || changed {
		t.Fatalf("invalid reload = %v, %v", changed, err)
	}
	if m.Get().Telegram.Token != "t" {
		t.Fatal("invalid config must not be committed")
	}

	if err := os.WriteFile(path, []byte(`{"telegram":{"token":"t"},"watch":{"history_size":5}}`), 0o600); err != nil {
		t.Fatal(err)
	}
	changed, err = m.Reload()
	if err != nil || !changed {
		t.Fatalf("changed reload = %v, %v", changed, err)
	}
	select {
	case cfg := <-sub:
		if cfg.Watch.HistorySize != 5 {
			t.Fatalf("published = %+v", cfg.Watch)
		}
	default:
		t.Fatal("nothing published")
	}
}

func TestSummarizeChange(t *testing.T) {
	a := &Config{Telegram: TelegramConfig{Token: "secret"}}
	b := &Config{Telegram: TelegramConfig{Token: "secret"}, Watch: WatchConfig{Schedule: "5m"}}
	sections, attrs := SummarizeChange(a, b)
	if len(sections) != 1 || sections[0] != "watch" || len(attrs) == 0 {
		t.Fatalf("sections = %v", sections)
	}
	if got := NeedsRestart(a, b); len(got) != 0 {
		t.Fatalf("NeedsRestart = %v", got)
	}
	b.Storage.Driver = "file"
	if got := NeedsRestart(a, b); len(got) != 1 || got[0] != "storage" {
		t.Fatalf("NeedsRestart = %v", got)
	}
}

func targetFixture(name string) watch.Target {
	return watch.Target{Name: name, URL: "https://example.com", Items: "li"}
}
