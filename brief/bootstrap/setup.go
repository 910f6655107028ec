package bootstrap

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/theimaginaryfoundation/casebrief/brief/config"
)

// Overrides are command-line values that win over the YAML config. Empty fields are ignored.
type Overrides struct {
	Provider string
	Model    string
	BaseURL  string
	Cache    string
	CacheDir string
}

// LoadConfig reads the YAML config at path (defaults when missing), applies overrides and the
// environment, and validates the result.
func LoadConfig(path string, o Overrides, getenv func(string) string) (*config.AppConfig, error) {
	if getenv == nil {
		getenv = os.Getenv
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	cfg.UseProvider(o.Provider)
	if o.Model != "" {
		cfg.Provider.Model = o.Model
	}
	if o.BaseURL != "" {
		cfg.Provider.BaseURL = o.BaseURL
	}
	if o.Cache != "" {
		cfg.Cache.Backend = strings.ToLower(strings.TrimSpace(o.Cache))
		if cfg.Cache.Backend == config.CacheFile && cfg.Cache.Dir == "" {
			cfg.Cache.Dir = ".casebrief-cache"
		}
	}
	if o.CacheDir != "" {
		cfg.Cache.Dir = o.CacheDir
	}
	if err := cfg.ApplyEnv(getenv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// NewLogger returns a text logger on w at the named level (debug, info, warn, error).
func NewLogger(w io.Writer, level string) (*slog.Logger, error) {
	var lvl slog.Level
	if level != "" {
		if err := lvl.UnmarshalText([]byte(level)); err != nil {
			return nil, fmt.Errorf("invalid -log-level %q", level)
		}
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: lvl})), nil
}
