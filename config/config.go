package config

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

// TomlFeed represents a single feed entry from the configuration file
type TomlFeed struct {
	Title           string `toml:"title"`
	URL             string `toml:"url"`
	Language        string `toml:"language"`
	ShowDescription bool   `toml:"show_description,omitempty"`
}

// TomlConfig represents the top-level configuration
type TomlConfig struct {
	Feeds []TomlFeed `toml:"feeds"`
}

func LoadConfig(path string) (*TomlConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	var config TomlConfig
	if err := toml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	for _, feed := range config.Feeds {
		if feed.URL == "" {
			return nil, fmt.Errorf("feed %q is missing a url", feed.Title)
		}
	}

	return &config, nil
}
