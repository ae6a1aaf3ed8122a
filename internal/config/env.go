package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
)

// EnvToken overrides telegram.token when set.
const EnvToken = "SCOUTBOT_TELEGRAM_TOKEN"

// LoadDotEnv loads ".env" from the working directory and from the directory
// of cfgPath. Variables already present in the environment win. It returns
// the files that were loaded.
func LoadDotEnv(cfgPath string) ([]string, error) {
	candidates := []string{".env"}
	if cfgPath != "" {
		if p := filepath.Join(filepath.Dir(cfgPath), ".env"); filepath.Clean(p) != ".env" {
			candidates = append(candidates, p)
		}
	}
	var loaded []string
	for _, p := range candidates {
		if _, err := os.Stat(p); errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err := godotenv.Load(p); err != nil {
			return loaded, err
		}
		loaded = append(loaded, p)
	}
	return loaded, nil
}

func applyEnv(cfg *Config) {
	if v := strings.TrimSpace(os.Getenv(EnvToken)); v != "" {
		cfg.Telegram.Token = v
	}
}
