package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"chatarchiver/internal/browser"
	"chatarchiver/internal/config"
	"chatarchiver/internal/domain"
	"chatarchiver/internal/panel"
	"chatarchiver/internal/settings"
	"chatarchiver/internal/tui"
)

// panelCmd drives the popup controls against a running daemon.
func panelCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "panel",
		Short: "Popup controls: show, save, autosave, interval, format, tui",
		Long:  "Talks to a running `chatarchiver run` daemon the way the browser popup does. Settings changes are stored immediately.",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show the stored settings and a preview of the current chat",
		RunE: withPanel(func(cmd *cobra.Command, p *panel.Panel, args []string) error {
			v := p.Open(cmd.Context())
			printView(v)
			return nil
		}),
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "save",
		Short: "Save the current chat now",
		RunE: withPanel(func(cmd *cobra.Command, p *panel.Panel, args []string) error {
			p.Open(cmd.Context())
			printStatus(p.SaveNow(cmd.Context()))
			return nil
		}),
	})

	cmd.AddCommand(&cobra.Command{
		Use:       "autosave [on|off]",
		Short:     "Enable or disable auto-save",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{"on", "off"},
		RunE: withPanel(func(cmd *cobra.Command, p *panel.Panel, args []string) error {
			enabled, err := parseSwitch(args[0])
			if err != nil {
				return err
			}
			p.Open(cmd.Context())
			printStatus(p.SetAutoSave(cmd.Context(), enabled))
			return nil
		}),
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "interval [minutes]",
		Short: "Set the auto-save interval",
		Args:  cobra.ExactArgs(1),
		RunE: withPanel(func(cmd *cobra.Command, p *panel.Panel, args []string) error {
			minutes, err := strconv.Atoi(args[0])
			if err != nil || !domain.ValidInterval(minutes) {
				return fmt.Errorf("%q: %w", args[0], domain.ErrInvalidInterval)
			}
			p.Open(cmd.Context())
			printStatus(p.SetInterval(cmd.Context(), minutes))
			return nil
		}),
	})

	cmd.AddCommand(&cobra.Command{
		Use:       "format [text|markdown|json]",
		Short:     "Set the export format",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{"text", "markdown", "json"},
		RunE: withPanel(func(cmd *cobra.Command, p *panel.Panel, args []string) error {
			kind, err := parseFormatArg(args[0])
			if err != nil {
				return err
			}
			p.Open(cmd.Context())
			printStatus(p.SetFormat(cmd.Context(), kind))
			return nil
		}),
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "tui",
		Short: "Interactive popup in the terminal",
		RunE: withPanel(func(cmd *cobra.Command, p *panel.Panel, args []string) error {
			return tui.Run(cmd.Context(), p)
		}),
	})

	return cmd
}

type panelRunE func(cmd *cobra.Command, p *panel.Panel, args []string) error

// withPanel builds a panel wired to the daemon's control server and the shared settings store.
func withPanel(fn panelRunE) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		store, err := settings.NewSQLiteStore(cfg.Settings.DBPath, logger)
		if err != nil {
			return fmt.Errorf("settings store: %w", err)
		}
		defer store.Close()

		var bridge *browser.Bridge
		if cfg.Page.Source == config.SourceBrowser {
			bridge = newBridge(cfg)
		}

		p := panel.New(panel.Config{
			Sender:      newClient(cfg),
			Settings:    store,
			ActiveURL:   activeURL(cfg, bridge),
			HostPattern: cfg.Page.HostPattern,
			Logger:      logger,
		})
		return fn(cmd, p, args)
	}
}

func parseSwitch(s string) (bool, error) {
	switch strings.ToLower(s) {
	case "on", "true", "yes", "1":
		return true, nil
	case "off", "false", "no", "0":
		return false, nil
	default:
		return false, fmt.Errorf("expected on or off, got %q", s)
	}
}

func printView(v panel.View) {
	bold := color.New(color.Bold)
	bold.Println("Chat Archiver")
	onOff := color.RedString("off")
	if v.AutoSave {
		onOff = color.GreenString("on")
	}
	fmt.Printf("  Auto-save: %s (every %d min)\n", onOff, v.IntervalMinutes)
	fmt.Printf("  Format:    %s\n", v.Format)
	if v.Preview != "" {
		bold.Println("\nPreview")
		fmt.Println(v.Preview)
	}
	fmt.Println()
	printStatus(v.Status)
}

func printStatus(status string) {
	switch status {
	case panel.StatusSaved, panel.StatusAutoSaveEnabled, panel.StatusAutoSaveDisabled, panel.StatusChatDetected:
		color.New(color.FgGreen).Println(status)
	case panel.StatusSaveError, panel.StatusAutoSaveError, panel.StatusWrongPage, panel.StatusAutoSaveWrongPage:
		color.New(color.FgRed).Println(status)
	default:
		color.New(color.FgYellow).Println(status)
	}
}
