// Package download writes generated documents into a downloads directory.
package download

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"chatarchiver/internal/domain"
)

const maxUniquify = 1000

type Config struct {
	Dir    string
	Logger *slog.Logger
}

// DirDownloader saves files under Dir without prompting. Existing names are
// uniquified as "name (1).ext", "name (2).ext", ...
type DirDownloader struct {
	dir    string
	logger *slog.Logger
}

func NewDirDownloader(cfg Config) *DirDownloader {
	if cfg.Dir == "" {
		home, _ := os.UserHomeDir()
		cfg.Dir = filepath.Join(home, "Downloads")
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &DirDownloader{dir: cfg.Dir, logger: cfg.Logger}
}

// Dir returns the target directory.
func (d *DirDownloader) Dir() string { return d.dir }

// Download writes content to filename, relative to the downloads directory.
// All failures wrap domain.ErrDownloadFailed.
func (d *DirDownloader) Download(ctx context.Context, filename, content string) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrDownloadFailed, err)
	}
	if filename == "" || !filepath.IsLocal(filename) {
		return fmt.Errorf("%w: invalid filename %q", domain.ErrDownloadFailed, filename)
	}

	target := filepath.Join(d.dir, filename)
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return fmt.Errorf("%w: create directory: %v", domain.ErrDownloadFailed, err)
	}

	path, err := d.write(target, []byte(content))
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrDownloadFailed, err)
	}

	d.logger.Info("download completed", "path", path, "bytes", len(content))
	return nil
}

// write creates the first free name derived from target and returns the path used.
func (d *DirDownloader) write(target string, data []byte) (string, error) {
	ext := filepath.Ext(target)
	stem := strings.TrimSuffix(target, ext)

	for i := 0; i <= maxUniquify; i++ {
		path := target
		if i > 0 {
			path = fmt.Sprintf("%s (%d)%s", stem, i, ext)
		}
		f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if errors.Is(err, fs.ErrExist) {
			continue
		}
		if err != nil {
			return "", err
		}
		if _, err := f.Write(data); err != nil {
			f.Close()
			os.Remove(path)
			return "", err
		}
		return path, f.Close()
	}
	return "", fmt.Errorf("no free name for %s", target)
}
