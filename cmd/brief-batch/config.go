package main

import (
	"errors"
	"path/filepath"
)

type Config struct {
	ConfigPath string
	EnvFile    string

	InPath    string
	OutDir    string
	IndexPath string
	Pretty    bool
	Overwrite bool
	MaxDocs   int

	Resume  bool
	Reindex bool

	// Concurrency bounds documents in flight; each document's chunk calls are bounded separately by the config.
	Concurrency int

	IndexSummaryMaxChars int

	Provider string
	Model    string
	APIKey   string
	Cache    string

	LogLevel string
}

func (c Config) Validate() error {
	if c.InPath == "" {
		return errors.New("missing -in")
	}
	if c.OutDir == "" {
		return errors.New("missing -out")
	}
	if c.MaxDocs < 0 {
		return errors.New("max-docs must be >= 0")
	}
	if c.Concurrency < 0 {
		return errors.New("concurrency must be >= 0")
	}
	if c.IndexSummaryMaxChars < 0 {
		return errors.New("index-summary-max-chars must be >= 0")
	}
	return nil
}

func defaultConfig() Config {
	return Config{
		ConfigPath:           "casebrief.yaml",
		EnvFile:              ".env",
		InPath:               filepath.FromSlash("cases"),
		OutDir:               filepath.FromSlash("cases/summaries"),
		Resume:               true,
		Reindex:              true,
		Concurrency:          2,
		IndexSummaryMaxChars: 600,
		LogLevel:             "info",
	}
}
