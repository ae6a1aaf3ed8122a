package browser

import (
	"context"
	"errors"
	"testing"
	"time"

	"scoutbot/pkg/logx"
)

func TestConfigDefaults(t *testing.T) {
	cfg := Config{}.withDefaults()
	if cfg.Driver != DriverChromedp {
		t.Errorf("Driver = %q, want %q", cfg.Driver, DriverChromedp)
	}
	if cfg.Width != 1920 || cfg.Height != 1080 {
		t.Errorf("window = %dx%d, want 1920x1080", cfg.Width, cfg.Height)
	}
	if cfg.NavTimeout != 30*time.Second {
		t.Errorf("NavTimeout = %v, want 30s", cfg.NavTimeout)
	}
	if cfg.UserAgent == "" || cfg.Lang == "" {
		t.Error("UserAgent and Lang should be defaulted")
	}

	custom := Config{Driver: DriverRod, Width: 800, Height: 600, Lang: "ko-KR"}.withDefaults()
	if custom.Driver != DriverRod || custom.Width != 800 || custom.Lang != "ko-KR" {
		t.Errorf("explicit values overwritten: %+v", custom)
	}
}

func TestOpenUnknownDriver(t *testing.T) {
	_, err := Open(context.Background(), Config{Driver: "netscape"}, logx.Nop())
	if !errors.Is(err, ErrUnknownDriver) {
		t.Fatalf("err = %v, want ErrUnknownDriver", err)
	}
}
