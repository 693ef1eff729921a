package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"chatarchiver/internal/archiver"
	"chatarchiver/internal/channel"
	"chatarchiver/internal/config"
	"chatarchiver/internal/domain"
	"chatarchiver/internal/metrics"
)

const shutdownTimeout = 10 * time.Second

var (
	version    = "0.1.0"
	logger     *slog.Logger
	configPath string // overridable via --config flag
	logLevel   string
)

func main() {
	logger = newLogger("info", "")

	root := &cobra.Command{
		Use:   "chatarchiver",
		Short: "Save Claude chat transcripts as text, markdown or JSON",
		Long:  "chatarchiver reads the open Claude chat, extracts its messages and writes them to your downloads directory, on demand or on a timer.",
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if logLevel != "" {
				logger = newLogger(logLevel, "")
			}
		},
		SilenceUsage: true,
	}

	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to config file (default: ~/.chatarchiver/config.json)")
	root.PersistentFlags().StringVar(&logLevel, "log-level", "", "override general.logLevel")

	root.AddCommand(initCmd())
	root.AddCommand(runCmd())
	root.AddCommand(saveCmd())
	root.AddCommand(previewCmd())
	root.AddCommand(loginCmd())
	root.AddCommand(statusCmd())
	root.AddCommand(panelCmd())
	root.AddCommand(configCmd())
	root.AddCommand(doctorCmd())
	root.AddCommand(serviceCmd())

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

// resolveConfigPath returns the config path from --config flag or default.
func resolveConfigPath() string {
	if configPath != "" {
		return configPath
	}
	return config.DefaultConfigPath()
}

// loadConfig loads the config file, falling back to defaults when it is missing,
// and reconfigures the logger from it.
func loadConfig() (*config.Config, error) {
	cfgPath := resolveConfigPath()
	cfg, err := config.Load(cfgPath)
	if err != nil {
		if _, statErr := os.Stat(config.ExpandPath(cfgPath)); statErr == nil {
			return nil, fmt.Errorf("load config: %w", err)
		}
		logger.Warn("config not found, using defaults", "path", cfgPath)
		cfg = config.Defaults()
		cfg.ExpandPaths()
	}

	level := cfg.General.LogLevel
	if logLevel != "" {
		level = logLevel
	}
	logger = newLogger(level, cfg.General.LogFile)
	return cfg, nil
}

func initCmd() *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write the default config and create the settings store",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgPath := resolveConfigPath()
			if _, err := os.Stat(config.ExpandPath(cfgPath)); err == nil && !force {
				return fmt.Errorf("config already exists at %s (use --force to overwrite)", cfgPath)
			}
			cfg := installConfig()
			if err := config.Save(cfgPath, cfg); err != nil {
				return err
			}
			cfg.ExpandPaths()

			a, err := newApp(cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			logger.Info("installed", "config", cfgPath, "settings", cfg.Settings.DBPath, "downloads", cfg.Download.Dir)
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing config")
	return cmd
}

// installConfig is the config written by init: the defaults plus a fresh control token.
func installConfig() *config.Config {
	cfg := config.Defaults()
	cfg.Server.Token = config.NewToken()
	return cfg
}

func runCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run the archiver daemon (autosave + control server)",
		Long:  "Restores the autosave schedule from the stored settings and serves control messages over HTTP and WebSocket. Press Ctrl+C to stop.",
		RunE:  runDaemon,
	}
}

func runDaemon(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.archiver.Init(ctx); err != nil {
		logger.Error("restore auto-save", "err", err)
	}

	serverErr := make(chan error, 1)
	if cfg.Server.Enabled {
		srv := channel.NewServer(channel.ServerConfig{
			Host:    cfg.Server.Host,
			Port:    cfg.Server.Port,
			Token:   cfg.Server.Token,
			Sender:  a.router,
			Events:  a.events,
			State:   a.archiver.State,
			Metrics: metrics.Collector.Handler(),
			Logger:  logger,
		})
		go func() { serverErr <- srv.Start(ctx) }()
	}

	logger.Info("archiver started. Press Ctrl+C to stop.", "autosave", a.archiver.State().Running)

	waitServer := cfg.Server.Enabled
	select {
	case <-ctx.Done():
	case err := <-serverErr:
		if err != nil {
			return err
		}
		waitServer = false
	}
	logger.Info("shutting down archiver...")

	if waitServer {
		select {
		case err := <-serverErr:
			if err != nil {
				logger.Warn("control server stopped", "err", err)
			}
		case <-time.After(shutdownTimeout):
			return fmt.Errorf("shutdown timed out")
		}
	}
	logger.Info("shutdown complete")
	return nil
}

func saveCmd() *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "save",
		Short: "Save the current chat once",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			a, err := newApp(cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			ctx := cmd.Context()
			kind, err := resolveFormat(ctx, a, format)
			if err != nil {
				return err
			}

			outcome := a.archiver.SaveCurrentChat(ctx, kind)
			switch outcome.Status {
			case archiver.StatusSaved:
				fmt.Printf("Saved %d messages to %s\n", outcome.Messages, outcome.Filename)
			case archiver.StatusEmpty:
				fmt.Println("No chat messages found to save")
			case archiver.StatusIgnored:
				fmt.Println("Not a chat page, nothing saved:", outcome.Err)
			default:
				return fmt.Errorf("save failed: %w", outcome.Err)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", "", "text, markdown or json (default: stored setting)")
	return cmd
}

func resolveFormat(ctx context.Context, a *app, flag string) (domain.FormatKind, error) {
	if flag != "" {
		return parseFormatArg(flag)
	}
	s, err := a.store.Load(ctx)
	if err != nil {
		return "", fmt.Errorf("load settings: %w", err)
	}
	return s.Format, nil
}

func parseFormatArg(s string) (domain.FormatKind, error) {
	kind := domain.FormatKind(strings.ToLower(strings.TrimSpace(s)))
	if !kind.Known() {
		return "", fmt.Errorf("unknown format %q: want text, markdown or json", s)
	}
	return kind, nil
}

func previewCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "preview",
		Short: "Show the last messages of the current chat",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			a, err := newApp(cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			resp, err := a.router.Send(cmd.Context(), domain.Request{Action: domain.ActionGetChatPreview})
			if err != nil {
				return err
			}
			fmt.Println(resp.Preview)
			return nil
		},
	}
}

func loginCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "login [url]",
		Short: "Open Chrome with the archiver profile to sign in to the chat site",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			url := cfg.Page.URL
			if len(args) == 1 {
				url = args[0]
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return newBridge(cfg).Login(ctx, url)
		},
	}
}

func statusCmd() *cobra.Command {
	var since time.Duration
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the daemon's autosave state and recent events",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			var from time.Time
			if since > 0 {
				from = time.Now().Add(-since)
			}
			report, err := newClient(cfg).Status(cmd.Context(), from)
			if err != nil {
				return err
			}
			data, _ := json.MarshalIndent(report, "", "  ")
			fmt.Println(string(data))
			return nil
		},
	}
	cmd.Flags().DurationVar(&since, "since", 0, "replay every event from this long ago (e.g. 1h)")
	return cmd
}

func newClient(cfg *config.Config) *channel.Client {
	return channel.NewClient(fmt.Sprintf("http://%s:%d", cfg.Server.Host, cfg.Server.Port), cfg.Server.Token)
}

func configCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "View and modify configuration",
		Long:  "Get, set, and list configuration values. Changes are saved to the config file.",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "get [path]",
		Short: "Get a config value (e.g. page.source)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(resolveConfigPath())
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			val, err := config.GetByPath(config.Sanitize(cfg), args[0])
			if err != nil {
				return err
			}
			data, _ := json.MarshalIndent(val, "", "  ")
			fmt.Println(string(data))
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "set [path] [value]",
		Short: "Set a config value (e.g. download.dir ~/chats)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgPath := resolveConfigPath()
			cfg, err := config.Load(cfgPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if err := config.SetByPath(cfg, args[0], args[1]); err != nil {
				return fmt.Errorf("set value: %w", err)
			}
			if err := config.Save(cfgPath, cfg); err != nil {
				return fmt.Errorf("save config: %w", err)
			}
			logger.Info("config updated", "path", args[0], "file", cfgPath)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List all config values",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(resolveConfigPath())
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			paths, values := config.ListPaths(config.Sanitize(cfg))
			for _, p := range paths {
				data, _ := json.Marshal(values[p])
				fmt.Printf("%s = %s\n", p, data)
			}
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Show config file path",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println(resolveConfigPath())
		},
	})

	return cmd
}
