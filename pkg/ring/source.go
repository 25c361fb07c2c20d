package ring

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Source fetches placement data from the upstream placement service.
type Source interface {
	Fetch(ctx context.Context) (snapshot *Snapshot, raw []byte, err error)
}

// HTTPSource fetches placement data over HTTP as JSON.
type HTTPSource struct {
	url    string
	client *http.Client
}

// NewHTTPSource creates a source for the placement service at url.
func NewHTTPSource(url string) *HTTPSource {
	return &HTTPSource{
		url: url,
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// Fetch retrieves and parses the current placement snapshot. The raw bytes
// are returned alongside so the caller can persist them to the cache.
func (s *HTTPSource) Fetch(ctx context.Context) (*Snapshot, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return nil, nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to fetch placement data: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, nil, fmt.Errorf("placement service returned %d", resp.StatusCode)
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 64<<20))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read placement data: %w", err)
	}

	snap, err := Parse(raw)
	if err != nil {
		return nil, nil, err
	}
	return snap, raw, nil
}
