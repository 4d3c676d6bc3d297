// Package download streams patent artifacts (PDFs, figures) to disk.
package download

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/JakeFAU/patent-collector/internal/patent"
)

// DefaultTimeout bounds a single artifact download when Config.Timeout is unset.
const DefaultTimeout = 60 * time.Second

// FileMode is applied to every downloaded file.
const FileMode os.FileMode = 0o644

// Config controls the HTTP client used for downloads.
type Config struct {
	UserAgent      string
	AcceptLanguage string
	Timeout        time.Duration
}

// Downloader implements patent.Downloader with resty.
type Downloader struct {
	client *resty.Client
}

// New builds a Downloader.
func New(cfg Config) *Downloader {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	client := resty.New()
	client.SetTimeout(cfg.Timeout)
	if cfg.UserAgent != "" {
		client.SetHeader("User-Agent", cfg.UserAgent)
	}
	if cfg.AcceptLanguage != "" {
		client.SetHeader("Accept-Language", cfg.AcceptLanguage)
	}
	return &Downloader{client: client}
}

// Download fetches url and writes the body to dest. The body is streamed to
// a temporary sibling file and renamed into place, so dest never holds a
// partial download.
func (d *Downloader) Download(ctx context.Context, url string, dest string) (int64, error) {
	resp, err := d.client.R().
		SetContext(ctx).
		SetDoNotParseResponse(true).
		Get(url)
	if err != nil {
		if resp != nil && resp.RawBody() != nil {
			_ = resp.RawBody().Close()
		}
		return 0, fmt.Errorf("%w: get %s: %w", patent.ErrFetch, url, err)
	}
	body := resp.RawBody()
	defer func() {
		_ = body.Close()
	}()
	if resp.StatusCode() < http.StatusOK || resp.StatusCode() >= http.StatusMultipleChoices {
		return 0, fmt.Errorf("%w: get %s: status %d", patent.ErrFetch, url, resp.StatusCode())
	}

	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return 0, fmt.Errorf("create download dir: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(dest), ".download-*.part")
	if err != nil {
		return 0, fmt.Errorf("create temp file: %w", err)
	}
	n, err := io.Copy(tmp, body)
	if err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return 0, fmt.Errorf("%w: read %s: %w", patent.ErrFetch, url, err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return 0, fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Chmod(tmp.Name(), FileMode); err != nil {
		_ = os.Remove(tmp.Name())
		return 0, fmt.Errorf("chmod temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), dest); err != nil {
		_ = os.Remove(tmp.Name())
		return 0, fmt.Errorf("move download into place: %w", err)
	}
	return n, nil
}
