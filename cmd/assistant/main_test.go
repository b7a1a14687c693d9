package main

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"PerplexityAssistant/internal/config"
)

func TestApplyFlags_OnlySetFlagsOverride(t *testing.T) {
	cfg := config.Default()
	cfg.Debug = true
	cfg.Page = "from-file.html"
	cfg.DBPath = "file.db"

	applyFlags(&cfg, config.Config{Debug: false, Page: "from-flag.html"}, map[string]bool{
		"debug": true,
		"page":  true,
	})

	assert.False(t, cfg.Debug, "-debug=false must turn off debug from the config file")
	assert.Equal(t, "from-flag.html", cfg.Page)
	assert.Equal(t, "file.db", cfg.DBPath)
}

func TestApplyFlags_NothingSetKeepsConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Debug = true
	want := cfg

	applyFlags(&cfg, config.Config{}, map[string]bool{})

	assert.Equal(t, want, cfg)
}
