package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"chatarchiver/internal/config"
	"chatarchiver/internal/extractor"
	"chatarchiver/internal/page"
	"chatarchiver/internal/settings"
)

func doctorCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Run diagnostic checks on your archiver installation",
		Long: `Verifies that the configuration, page source, download directory,
settings store and control port are usable. Reports pass/fail for each check.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgPath := config.ExpandPath(resolveConfigPath())
			fmt.Printf("chatarchiver doctor v%s\n", version)
			fmt.Printf("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━\n\n")

			var r doctorReport

			if _, err := os.Stat(cfgPath); err != nil {
				r.fail("Config file", fmt.Sprintf("not found at %s", cfgPath))
				fmt.Printf("\nRun 'chatarchiver init' to create a default configuration.\n")
				return nil
			}
			r.pass("Config file", cfgPath)

			cfg, err := config.Load(cfgPath)
			if err != nil {
				r.fail("Config validation", err.Error())
				return r.summary()
			}
			r.pass("Config validation", "valid")

			checkPageSource(cmd.Context(), cfg, &r)

			if err := checkWritableDir(cfg.Download.Dir); err != nil {
				r.fail("Download dir", err.Error())
			} else {
				r.pass("Download dir", cfg.Download.Dir)
			}

			if err := checkSettings(cmd.Context(), cfg.Settings.DBPath); err != nil {
				r.fail("Settings store", err.Error())
			} else {
				r.pass("Settings store", cfg.Settings.DBPath)
			}

			if cfg.Server.Enabled {
				addr := net.JoinHostPort(cfg.Server.Host, fmt.Sprint(cfg.Server.Port))
				if err := checkPort(addr); err != nil {
					r.warn("Control port", fmt.Sprintf("%s may be in use: %v", addr, err))
				} else {
					r.pass("Control port", addr+" available")
				}
				if cfg.Server.Token == "" && cfg.Server.Host != "127.0.0.1" && cfg.Server.Host != "localhost" {
					r.warn("Control token", "server listens beyond loopback without a token")
				}
			}

			if cfg.General.LogFile != "" {
				if err := os.MkdirAll(filepath.Dir(cfg.General.LogFile), 0o755); err != nil {
					r.warn("Log file", fmt.Sprintf("cannot create log directory: %v", err))
				} else {
					r.pass("Log file", cfg.General.LogFile)
				}
			}

			return r.summary()
		},
	}
}

type doctorReport struct {
	passed, warned, failed int
}

func (r *doctorReport) pass(check, detail string) {
	r.passed++
	fmt.Printf("  [%s] %-20s %s\n", color.GreenString("PASS"), check, detail)
}

func (r *doctorReport) warn(check, detail string) {
	r.warned++
	fmt.Printf("  [%s] %-20s %s\n", color.YellowString("WARN"), check, detail)
}

func (r *doctorReport) fail(check, detail string) {
	r.failed++
	fmt.Printf("  [%s] %-20s %s\n", color.RedString("FAIL"), check, detail)
}

func (r *doctorReport) summary() error {
	fmt.Printf("\n━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━\n")
	fmt.Printf("Results: %d passed, %d warnings, %d failed\n", r.passed, r.warned, r.failed)
	if r.failed > 0 {
		fmt.Printf("\nPlease fix the failed checks before running the archiver.\n")
		return fmt.Errorf("%d check(s) failed", r.failed)
	}
	if r.warned > 0 {
		fmt.Printf("\nThe archiver should work but consider fixing the warnings.\n")
	} else {
		fmt.Printf("\nAll checks passed! The archiver is ready to run.\n")
	}
	return nil
}

func checkPageSource(ctx context.Context, cfg *config.Config, r *doctorReport) {
	if cfg.Page.Source != config.SourceFile {
		if cfg.Page.RemoteURL != "" {
			r.pass("Page source", "browser via "+cfg.Page.RemoteURL)
		} else {
			r.pass("Page source", "browser (profile "+cfg.Page.ProfileDir+")")
		}
		return
	}

	p, err := page.FileSource{Path: cfg.Page.File, URL: cfg.Page.URL}.Snapshot(ctx)
	if err != nil {
		r.fail("Page source", err.Error())
		return
	}
	if !page.HostMatches(p.URL, cfg.Page.HostPattern) {
		r.warn("Page source", fmt.Sprintf("%s is not on %s", p.URL, cfg.Page.HostPattern))
		return
	}
	ext := extractor.New(extractor.Config{
		PrimarySelectors:  cfg.Extractor.PrimarySelectors,
		FallbackSelectors: cfg.Extractor.FallbackSelectors,
		MinFallbackLength: cfg.Extractor.MinFallbackLength,
		Logger:            logger,
	})
	n := len(ext.Extract(p.Doc))
	if n == 0 {
		r.warn("Page source", cfg.Page.File+" has no chat messages")
		return
	}
	r.pass("Page source", fmt.Sprintf("%s (%d messages)", cfg.Page.File, n))
}

func checkWritableDir(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("cannot create: %w", err)
	}
	f, err := os.CreateTemp(dir, ".doctor-*")
	if err != nil {
		return fmt.Errorf("not writable: %w", err)
	}
	name := f.Name()
	f.Close()
	return os.Remove(name)
}

func checkSettings(ctx context.Context, dbPath string) error {
	store, err := settings.NewSQLiteStore(dbPath, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if _, err := store.Load(ctx); err != nil {
		return fmt.Errorf("cannot read: %w", err)
	}
	return nil
}

func checkPort(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	ln.Close()
	return nil
}
