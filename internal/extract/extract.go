// Package extract turns source content into text, delivered to the caller
// in bounded blocks so peak memory stays independent of document size.
package extract

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/groundkit/groundkit/internal/domain"
)

// DefaultBlockBytes is the plain-text window size handed to the callback.
const DefaultBlockBytes = 64 * 1024

// BlockFunc receives one extracted text block. Returning an error stops
// extraction.
type BlockFunc func(block string) error

// Service extracts text from local files by format.
type Service struct {
	blockBytes int
}

// New creates an extraction service.
func New() *Service {
	return &Service{blockBytes: DefaultBlockBytes}
}

// WithBlockBytes overrides the plain-text window size.
func (s *Service) WithBlockBytes(n int) *Service {
	if n > 0 {
		s.blockBytes = n
	}
	return s
}

// File streams the text content of path to fn, one bounded block at a
// time. PDF files are walked page by page; anything else is treated as
// plain text and read in fixed windows.
func (s *Service) File(ctx context.Context, path string, fn BlockFunc) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".pdf":
		return s.pdfFile(ctx, path, fn)
	case ".txt", ".md", ".text", ".html", ".htm", ".csv", ".log", "":
		return s.textFile(ctx, path, fn)
	default:
		return fmt.Errorf("extension %q: %w", filepath.Ext(path), domain.ErrUnsupportedFormat)
	}
}

// textFile reads a plain-text file window by window.
func (s *Service) textFile(ctx context.Context, path string, fn BlockFunc) error {
	f, err := os.Open(filepath.Clean(path))
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	return s.Reader(ctx, f, fn)
}

// Reader streams plain text from r to fn in fixed windows.
func (s *Service) Reader(ctx context.Context, r io.Reader, fn BlockFunc) error {
	br := bufio.NewReaderSize(r, s.blockBytes)
	buf := make([]byte, s.blockBytes)

	for {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("extraction interrupted: %w", err)
		}

		n, err := io.ReadFull(br, buf)
		if n > 0 {
			if cbErr := fn(string(buf[:n])); cbErr != nil {
				return cbErr
			}
		}
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("read block: %w", err)
		}
	}
}

// pdfFile walks a PDF page by page; each page's plain text is one block.
func (s *Service) pdfFile(ctx context.Context, path string, fn BlockFunc) error {
	f, rdr, err := pdf.Open(filepath.Clean(path))
	if err != nil {
		return fmt.Errorf("open pdf %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	pages := rdr.NumPage()
	for i := 1; i <= pages; i++ {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("extraction interrupted: %w", err)
		}

		page := rdr.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			// One unreadable page degrades coverage, it does not fail the source.
			continue
		}
		if strings.TrimSpace(text) == "" {
			continue
		}
		if cbErr := fn(text); cbErr != nil {
			return cbErr
		}
	}
	return nil
}
