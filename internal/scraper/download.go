package scraper

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/go-resty/resty/v2"
)

// Downloader fetches report PDFs over plain HTTP.
type Downloader struct {
	client *resty.Client
}

func NewDownloader(timeout time.Duration) *Downloader {
	client := resty.New().
		SetTimeout(timeout).
		SetRetryCount(2).
		SetRetryWaitTime(2*time.Second).
		SetHeader("User-Agent", userAgent)
	return &Downloader{client: client}
}

// Download saves rawURL to dest. A non-2xx response leaves no file behind.
func (d *Downloader) Download(ctx context.Context, rawURL, dest string) error {
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return fmt.Errorf("create download dir: %w", err)
	}
	resp, err := d.client.R().
		SetContext(ctx).
		SetOutput(dest).
		Get(rawURL)
	if err != nil {
		_ = os.Remove(dest)
		return fmt.Errorf("download %s: %w", rawURL, err)
	}
	if resp.IsError() {
		_ = os.Remove(dest)
		return fmt.Errorf("download %s: status %d", rawURL, resp.StatusCode())
	}
	return nil
}
