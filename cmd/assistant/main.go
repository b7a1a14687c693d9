package main

import (
	"flag"
	"fmt"
	"os"

	"PerplexityAssistant/internal/chatbot"
	"PerplexityAssistant/internal/config"
)

func main() {
	var configPath string
	flag.StringVar(&configPath, "config", "", "Path to a TOML config file")

	defaults := config.Default()
	var flags config.Config
	flag.StringVar(&flags.Page, "page", "", "URL or file path of the page to assist with")
	flag.StringVar(&flags.Selection, "select", "", "Text selected on the page at startup")
	flag.StringVar(&flags.PageAgentURL, "page-agent", "", "ws:// address of a running page agent (overrides -page)")
	flag.StringVar(&flags.DBPath, "db", "", "SQLite database for extension storage (default \""+defaults.DBPath+"\")")
	flag.StringVar(&flags.LogDir, "log-dir", "", "Directory for log, trace and metric files (default \""+defaults.LogDir+"\")")
	flag.BoolVar(&flags.Debug, "debug", false, "Enable debug logging")
	flag.Parse()

	cfg := defaults
	if configPath != "" {
		loaded, err := config.Load(configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
			os.Exit(1)
		}
		cfg = loaded
	}

	// flags given on the command line win over the config file
	set := make(map[string]bool)
	flag.Visit(func(f *flag.Flag) { set[f.Name] = true })
	applyFlags(&cfg, flags, set)

	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		os.Exit(1)
	}

	bot, err := chatbot.NewChatBot(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize assistant: %v\n", err)
		os.Exit(1)
	}

	if err := bot.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// applyFlags copies the fields of flags whose flag names are in set.
func applyFlags(cfg *config.Config, flags config.Config, set map[string]bool) {
	if set["page"] {
		cfg.Page = flags.Page
	}
	if set["select"] {
		cfg.Selection = flags.Selection
	}
	if set["page-agent"] {
		cfg.PageAgentURL = flags.PageAgentURL
	}
	if set["db"] {
		cfg.DBPath = flags.DBPath
	}
	if set["log-dir"] {
		cfg.LogDir = flags.LogDir
	}
	if set["debug"] {
		cfg.Debug = flags.Debug
	}
}
