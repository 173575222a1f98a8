package extract

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/groundkit/groundkit/internal/domain"
)

// Fetcher downloads URL source content to a temp file so extraction can
// run against local storage with bounded memory.
type Fetcher struct {
	client   *http.Client
	maxBytes int64
}

// NewFetcher creates a fetcher with the given per-request timeout.
// maxBytes caps the downloaded size; 0 means unlimited.
func NewFetcher(timeout time.Duration, maxBytes int64) *Fetcher {
	return &Fetcher{
		client:   &http.Client{Timeout: timeout},
		maxBytes: maxBytes,
	}
}

// Fetch downloads url into a temp file and returns its path. The caller
// removes the file when done.
func (f *Fetcher) Fetch(ctx context.Context, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("build request: %w", domain.ErrValidation)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch %s: %w", url, domain.ErrServiceUnavailable)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("fetch %s: status %d: %w", url, resp.StatusCode, domain.ErrServiceUnavailable)
	}

	tmp, err := os.CreateTemp("", "groundkit-fetch-*"+extFromContentType(resp.Header.Get("Content-Type")))
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}

	var body io.Reader = resp.Body
	if f.maxBytes > 0 {
		body = io.LimitReader(resp.Body, f.maxBytes)
	}

	if _, err := io.Copy(tmp, body); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return "", fmt.Errorf("download %s: %w", url, domain.ErrServiceUnavailable)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return "", fmt.Errorf("close temp file: %w", err)
	}

	return tmp.Name(), nil
}

func extFromContentType(ct string) string {
	switch {
	case strings.HasPrefix(ct, "application/pdf"):
		return ".pdf"
	case strings.HasPrefix(ct, "text/html"):
		return ".html"
	default:
		return ".txt"
	}
}
