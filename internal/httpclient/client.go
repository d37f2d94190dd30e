package httpclient

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/ternarybob/arbor"
	"golang.org/x/time/rate"

	"github.com/bioarchive/studysearch/internal/common"
)

// NewDefaultHTTPClient creates a simple HTTP client with a timeout
func NewDefaultHTTPClient(timeout time.Duration) *http.Client {
	return &http.Client{
		Timeout: timeout,
	}
}

// NewOutboundClient creates the client for outbound fetches, honouring the
// configured proxy
func NewOutboundClient(cfg *common.Config, timeout time.Duration) (*http.Client, error) {
	client := &http.Client{Timeout: timeout}

	if proxyURL := cfg.ProxyURL(); proxyURL != "" {
		parsed, err := url.Parse(proxyURL)
		if err != nil {
			return nil, fmt.Errorf("invalid proxy url %s: %w", proxyURL, err)
		}
		client.Transport = &http.Transport{Proxy: http.ProxyURL(parsed)}
	}

	return client, nil
}

// Downloader fetches remote files with rate limiting; used by the
// scheduled ontology refresh
type Downloader struct {
	client  *http.Client
	limiter *rate.Limiter
	logger  arbor.ILogger
}

// NewDownloader creates a downloader over the outbound client. The rate
// limiter spaces successive fetches.
func NewDownloader(client *http.Client, logger arbor.ILogger) *Downloader {
	if logger == nil {
		logger = common.GetLogger()
	}
	return &Downloader{
		client:  client,
		limiter: rate.NewLimiter(rate.Every(30*time.Second), 1),
		logger:  logger,
	}
}

// Download fetches rawURL into dest atomically (temp file + rename)
func (d *Downloader) Download(ctx context.Context, rawURL, dest string) error {
	if err := d.limiter.Wait(ctx); err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return fmt.Errorf("invalid download url %s: %w", rawURL, err)
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return fmt.Errorf("download of %s failed: %w", rawURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("download of %s failed with status %d", rawURL, resp.StatusCode)
	}

	if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
		return fmt.Errorf("failed to create download directory: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(dest), ".download-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()

	written, err := io.Copy(tmp, resp.Body)
	closeErr := tmp.Close()
	if err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("download of %s failed: %w", rawURL, err)
	}
	if closeErr != nil {
		os.Remove(tmpName)
		return closeErr
	}

	if err := os.Rename(tmpName, dest); err != nil {
		os.Remove(tmpName)
		return err
	}

	d.logger.Info().
		Str("url", rawURL).
		Str("dest", dest).
		Int64("bytes", written).
		Msg("Download complete")

	return nil
}
