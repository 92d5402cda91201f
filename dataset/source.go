package dataset

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"
)

// ============================================================================
// SOURCES: Where the scored table comes from
// ============================================================================
// A location is either an http(s) URL or a local path. Either may point at a
// snappy snapshot (".sz"), which Fetch decodes transparently.
// ============================================================================

// ErrFetch marks a failure to obtain the raw table. It is fatal for the
// first load and never retried.
var ErrFetch = errors.New("dataset fetch failed")

// Source returns the raw CSV bytes of the scored table.
type Source interface {
	Fetch(ctx context.Context) ([]byte, error)
	String() string
}

// NewSource picks the source for a location. client is only used for URLs;
// nil selects a client with the given timeout.
func NewSource(location string, client *http.Client, timeout time.Duration) Source {
	if strings.HasPrefix(location, "http://") || strings.HasPrefix(location, "https://") {
		if client == nil {
			client = &http.Client{Timeout: timeout}
		}
		return &HTTPSource{URL: location, Client: client}
	}
	return &FileSource{Path: location}
}

// HTTPSource downloads the table with GET.
type HTTPSource struct {
	URL    string
	Client *http.Client
}

func (s *HTTPSource) String() string { return s.URL }

// Fetch downloads the body. Any non-200 status is an error.
func (s *HTTPSource) Fetch(ctx context.Context) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create request: %w", ErrFetch, err)
	}
	resp, err := s.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFetch, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: %s returned status %d", ErrFetch, s.URL, resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read body: %w", ErrFetch, err)
	}
	return maybeDecode(s.URL, body)
}

// FileSource reads the table from disk.
type FileSource struct {
	Path string
}

func (s *FileSource) String() string { return s.Path }

func (s *FileSource) Fetch(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFetch, err)
	}
	body, err := os.ReadFile(s.Path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFetch, err)
	}
	return maybeDecode(s.Path, body)
}

func maybeDecode(location string, body []byte) ([]byte, error) {
	if !IsSnapshot(location) {
		return body, nil
	}
	out, err := DecodeSnapshot(body)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrFetch, location, err)
	}
	return out, nil
}
