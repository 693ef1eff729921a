package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/andybalholm/cascadia"
	"gopkg.in/yaml.v3"
)

// Config is the root configuration for the archiver.
type Config struct {
	General   GeneralConfig   `json:"general" yaml:"general"`
	Page      PageConfig      `json:"page" yaml:"page"`
	Extractor ExtractorConfig `json:"extractor" yaml:"extractor"`
	Download  DownloadConfig  `json:"download" yaml:"download"`
	Settings  SettingsConfig  `json:"settings" yaml:"settings"`
	Server    ServerConfig    `json:"server" yaml:"server"`
}

type GeneralConfig struct {
	LogLevel string `json:"logLevel" yaml:"logLevel"`
	LogFile  string `json:"logFile,omitempty" yaml:"logFile,omitempty"` // optional rotating log file
}

// PageConfig selects where the chat DOM comes from.
type PageConfig struct {
	Source         string `json:"source" yaml:"source"`               // "file" | "browser"
	File           string `json:"file,omitempty" yaml:"file,omitempty"` // HTML snapshot for the file source
	URL            string `json:"url" yaml:"url"`
	HostPattern    string `json:"hostPattern" yaml:"hostPattern"`
	RemoteURL      string `json:"remoteURL,omitempty" yaml:"remoteURL,omitempty"` // attach to a running Chrome
	ProfileDir     string `json:"profileDir" yaml:"profileDir"`
	Headless       bool   `json:"headless" yaml:"headless"`
	TimeoutSeconds int    `json:"timeoutSeconds" yaml:"timeoutSeconds"`
	SettleMillis   int    `json:"settleMillis,omitempty" yaml:"settleMillis,omitempty"`
}

// ExtractorConfig overrides the message selection heuristics. Empty lists keep the defaults.
type ExtractorConfig struct {
	PrimarySelectors  []string `json:"primarySelectors,omitempty" yaml:"primarySelectors,omitempty"`
	FallbackSelectors []string `json:"fallbackSelectors,omitempty" yaml:"fallbackSelectors,omitempty"`
	MinFallbackLength int      `json:"minFallbackLength" yaml:"minFallbackLength"`
}

type DownloadConfig struct {
	Dir string `json:"dir" yaml:"dir"`
}

type SettingsConfig struct {
	DBPath string `json:"dbPath" yaml:"dbPath"`
}

type ServerConfig struct {
	Enabled bool   `json:"enabled" yaml:"enabled"`
	Host    string `json:"host" yaml:"host"`
	Port    int    `json:"port" yaml:"port"`
	Token   string `json:"token,omitempty" yaml:"token,omitempty"`
}

// Page source kinds.
const (
	SourceFile    = "file"
	SourceBrowser = "browser"
)

// DefaultConfigDir returns the default config directory (~/.chatarchiver).
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".chatarchiver"
	}
	return filepath.Join(home, ".chatarchiver")
}

func DefaultConfigPath() string {
	return filepath.Join(DefaultConfigDir(), "config.json")
}

func isYAML(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".yaml" || ext == ".yml"
}

func Load(path string) (*Config, error) {
	path = ExpandPath(path)

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read config file %s: %w", path, err)
	}

	// Substitute environment variables: ${VAR} and ${VAR:-default}
	data = []byte(ExpandEnvVars(string(data)))

	cfg := Defaults()
	if isYAML(path) {
		err = yaml.Unmarshal(data, cfg)
	} else {
		err = json.Unmarshal(data, cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("cannot parse config file %s: %w", path, err)
	}

	cfg.ExpandPaths()

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return cfg, nil
}

// envVarPattern matches ${VAR} and ${VAR:-default} patterns in config strings.
var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(?::-(.*?))?\}`)

// ExpandEnvVars replaces ${VAR} with the environment variable value.
// ${VAR:-default} uses "default" when VAR is unset or empty; an unset VAR
// without a default is left as is.
func ExpandEnvVars(input string) string {
	return envVarPattern.ReplaceAllStringFunc(input, func(match string) string {
		groups := envVarPattern.FindStringSubmatch(match)
		if len(groups) < 2 {
			return match
		}
		hasDefault := len(groups) >= 3 && groups[2] != ""

		val, exists := os.LookupEnv(groups[1])
		if !exists || val == "" {
			if hasDefault {
				return groups[2]
			}
			return match
		}
		return val
	})
}

// Save writes cfg as JSON, or YAML when path ends in .yaml/.yml.
func Save(path string, cfg *Config) error {
	path = ExpandPath(path)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("cannot create config directory: %w", err)
	}

	var (
		data []byte
		err  error
	)
	if isYAML(path) {
		data, err = yaml.Marshal(cfg)
	} else {
		data, err = json.MarshalIndent(cfg, "", "  ")
	}
	if err != nil {
		return fmt.Errorf("cannot marshal config: %w", err)
	}

	return os.WriteFile(path, data, 0o644)
}

// Validate checks that the config has valid values.
func Validate(cfg *Config) error {
	var errs []string

	switch cfg.General.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, "general.logLevel must be one of: debug, info, warn, error")
	}

	switch cfg.Page.Source {
	case SourceFile:
		if cfg.Page.File == "" {
			errs = append(errs, "page.file is required for the file source")
		}
	case SourceBrowser:
	default:
		errs = append(errs, "page.source must be one of: file, browser")
	}
	if cfg.Page.TimeoutSeconds < 1 {
		errs = append(errs, "page.timeoutSeconds must be >= 1")
	}

	if cfg.Extractor.MinFallbackLength < 0 {
		errs = append(errs, "extractor.minFallbackLength must be >= 0")
	}
	for _, sel := range append(append([]string{}, cfg.Extractor.PrimarySelectors...), cfg.Extractor.FallbackSelectors...) {
		if _, err := cascadia.ParseGroup(sel); err != nil {
			errs = append(errs, fmt.Sprintf("extractor: invalid selector %q: %v", sel, err))
		}
	}

	if cfg.Download.Dir == "" {
		errs = append(errs, "download.dir is required")
	}
	if cfg.Settings.DBPath == "" {
		errs = append(errs, "settings.dbPath is required")
	}
	if cfg.Server.Port < 0 || cfg.Server.Port > 65535 {
		errs = append(errs, "server.port must be between 0 and 65535")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation errors:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

// ExpandPaths resolves ~/ in every path field.
func (c *Config) ExpandPaths() {
	c.General.LogFile = ExpandPath(c.General.LogFile)
	c.Page.File = ExpandPath(c.Page.File)
	c.Page.ProfileDir = ExpandPath(c.Page.ProfileDir)
	c.Download.Dir = ExpandPath(c.Download.Dir)
	c.Settings.DBPath = ExpandPath(c.Settings.DBPath)
}

// ExpandPath resolves ~/ to the user's home directory.
func ExpandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[2:])
	}
	return path
}
