package main

import (
	"errors"
	"fmt"
	"strings"
)

const (
	modeSummarize = "summarize"
	modeRelevance = "relevance"
	modeExplain   = "explain"
	modeKeywords  = "keywords"
	modeChunks    = "chunks"
)

type Config struct {
	ConfigPath string
	EnvFile    string

	InPath        string
	DocID         string
	Mode          string
	Query         string
	ModifiedQuery string
	Year          int

	Provider string
	Model    string
	BaseURL  string
	APIKey   string
	Cache    string
	CacheDir string

	LogLevel string
}

func (c Config) Validate() error {
	switch c.Mode {
	case modeSummarize, modeRelevance, modeExplain, modeChunks:
		if c.InPath == "" {
			return fmt.Errorf("missing -in (required for -mode %s)", c.Mode)
		}
	case modeKeywords:
	default:
		return fmt.Errorf("-mode must be one of summarize|relevance|explain|keywords|chunks, got %q", c.Mode)
	}
	switch c.Mode {
	case modeRelevance, modeExplain, modeKeywords:
		if strings.TrimSpace(c.Query) == "" {
			return fmt.Errorf("missing -query (required for -mode %s)", c.Mode)
		}
	}
	if c.Year < 0 {
		return errors.New("year must be >= 0")
	}
	return nil
}

func defaultConfig() Config {
	return Config{
		ConfigPath: "casebrief.yaml",
		EnvFile:    ".env",
		Mode:       modeSummarize,
		LogLevel:   "info",
	}
}
