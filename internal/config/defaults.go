package config

import (
	"strings"

	"github.com/google/uuid"
)

// Defaults returns the built-in configuration. Server.Token is left empty; init fills it with NewToken.
func Defaults() *Config {
	return &Config{
		General: GeneralConfig{
			LogLevel: "info",
		},
		Page: PageConfig{
			Source:         SourceBrowser,
			URL:            "https://claude.ai/",
			HostPattern:    "claude.ai",
			ProfileDir:     "~/.chatarchiver/chrome-profile",
			Headless:       true,
			TimeoutSeconds: 60,
		},
		Extractor: ExtractorConfig{
			MinFallbackLength: 20,
		},
		Download: DownloadConfig{
			Dir: "~/Downloads",
		},
		Settings: SettingsConfig{
			DBPath: "~/.chatarchiver/settings.db",
		},
		Server: ServerConfig{
			Enabled: true,
			Host:    "127.0.0.1",
			Port:    8765,
		},
	}
}

// NewToken returns a random 32-character hex token for server.token.
func NewToken() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}
