package shark

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/burrowlabs/burrow/pkg/types"
)

// HeaderComputedMD5 carries the storage node's computed digest back on a
// PUT response.
const HeaderComputedMD5 = "Computed-MD5"

// StatusChecksumError is the non-standard status a storage node returns
// when the body it received does not match the checksum it expected.
const StatusChecksumError = 469

// AgentConfig tunes the shared storage-node HTTP agent.
type AgentConfig struct {
	ConnectTimeout time.Duration
	// ConnectRetries is the budget for transient connection-time errors
	// on idempotent calls. Once a body has started streaming no retry is
	// ever attempted.
	ConnectRetries int
}

// Agent is the shared HTTP client for all storage nodes. It is safe for
// concurrent use; per-node state is connection pooling inside the
// transport.
type Agent struct {
	http    *http.Client
	retries int
}

// NewAgent creates the storage-node agent.
func NewAgent(cfg AgentConfig) *Agent {
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = 2 * time.Second
	}
	return &Agent{
		retries: cfg.ConnectRetries,
		http: &http.Client{
			Transport: &http.Transport{
				DialContext: (&net.Dialer{
					Timeout: cfg.ConnectTimeout,
				}).DialContext,
				MaxIdleConnsPerHost: 32,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
}

func sharkURL(s types.Shark, path string) string {
	if strings.HasPrefix(s.StorageID, "http://") || strings.HasPrefix(s.StorageID, "https://") {
		return s.StorageID + path
	}
	return "http://" + s.StorageID + path
}

// Ping probes a storage node. It is used to validate a candidate set
// before upload streams are opened.
func (a *Agent) Ping(ctx context.Context, s types.Shark) error {
	var lastErr error
	for attempt := 0; attempt <= a.retries; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, sharkURL(s, "/ping"), nil)
		if err != nil {
			return err
		}
		resp, err := a.http.Do(req)
		if err != nil {
			lastErr = err
			continue
		}
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
		if resp.StatusCode < 500 {
			return nil
		}
		lastErr = fmt.Errorf("storage node %s ping returned %d", s.StorageID, resp.StatusCode)
	}
	return fmt.Errorf("storage node %s unreachable: %w", s.StorageID, lastErr)
}

// Get fetches an object body. rangeHeader, when non-empty, is forwarded
// verbatim. The caller owns the response body.
func (a *Agent) Get(ctx context.Context, s types.Shark, path, rangeHeader string) (*http.Response, error) {
	var lastErr error
	for attempt := 0; attempt <= a.retries; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, sharkURL(s, path), nil)
		if err != nil {
			return nil, err
		}
		if rangeHeader != "" {
			req.Header.Set("Range", rangeHeader)
		}
		resp, err := a.http.Do(req)
		if err != nil {
			lastErr = err
			continue
		}
		return resp, nil
	}
	return nil, fmt.Errorf("storage node %s unreachable: %w", s.StorageID, lastErr)
}

// PutResult is a storage node's final answer to an upload stream.
type PutResult struct {
	Status      int
	ComputedMD5 string
}

// Upload is one open PUT stream to a storage node. Bytes written to
// Writer flow to the node as a chunked body; Close ends the body and
// Wait collects the node's response. Abort tears the stream down.
type Upload struct {
	Shark  types.Shark
	pw     *io.PipeWriter
	result chan uploadOutcome
}

type uploadOutcome struct {
	res PutResult
	err error
}

// OpenPut starts a PUT stream to one storage node. size is a hint only
// (the body is sent chunked); contentMD5, when non-empty, is forwarded so
// the node can verify what it received.
func (a *Agent) OpenPut(ctx context.Context, s types.Shark, path string, size int64, contentMD5 string) (*Upload, error) {
	pr, pw := io.Pipe()
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, sharkURL(s, path), pr)
	if err != nil {
		pw.Close()
		return nil, err
	}
	req.ContentLength = -1 // chunked
	req.Header.Set("Content-Type", "application/octet-stream")
	if contentMD5 != "" {
		req.Header.Set("Content-MD5", contentMD5)
	}
	if size > 0 {
		req.Header.Set("Expected-Content-Length", fmt.Sprintf("%d", size))
	}

	u := &Upload{Shark: s, pw: pw, result: make(chan uploadOutcome, 1)}
	go func() {
		resp, err := a.http.Do(req)
		if err != nil {
			// Unblock a writer stuck on the pipe.
			pr.CloseWithError(err)
			u.result <- uploadOutcome{err: err}
			return
		}
		defer resp.Body.Close()
		io.Copy(io.Discard, io.LimitReader(resp.Body, 1<<20))
		u.result <- uploadOutcome{res: PutResult{
			Status:      resp.StatusCode,
			ComputedMD5: resp.Header.Get(HeaderComputedMD5),
		}}
	}()
	return u, nil
}

// Writer returns the stream the object body is written to.
func (u *Upload) Writer() io.Writer {
	return u.pw
}

// Close ends the body; the node's response becomes available via Wait.
func (u *Upload) Close() error {
	return u.pw.Close()
}

// Abort tears down the stream; the node sees a truncated body.
func (u *Upload) Abort(err error) {
	u.pw.CloseWithError(err)
}

// Wait blocks for the node's response to the finished (or aborted)
// stream.
func (u *Upload) Wait(ctx context.Context) (PutResult, error) {
	select {
	case out := <-u.result:
		return out.res, out.err
	case <-ctx.Done():
		u.pw.CloseWithError(ctx.Err())
		return PutResult{}, ctx.Err()
	}
}
