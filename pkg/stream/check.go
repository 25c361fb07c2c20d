package stream

import (
	"crypto/md5"
	"encoding/base64"
	"errors"
	"hash"
	"io"
	"net"
	"sync/atomic"
	"time"
)

// Errors surfaced by a CheckReader in place of the underlying read error.
var (
	// ErrIdleTimeout fires when no byte has been observed for the
	// configured idle timeout.
	ErrIdleTimeout = errors.New("stream idle timeout")

	// ErrMaxSizeExceeded fires when the byte count would exceed MaxBytes.
	ErrMaxSizeExceeded = errors.New("stream exceeded maximum size")
)

// ByteCounter receives the number of bytes observed. prometheus.Counter
// satisfies it.
type ByteCounter interface {
	Add(float64)
}

// CheckConfig parameterizes a CheckReader.
type CheckConfig struct {
	// MaxBytes aborts the stream once the count would exceed it. 0 means
	// unlimited.
	MaxBytes int64

	// IdleTimeout aborts the stream when no byte arrives for this long.
	// 0 disables the watchdog.
	IdleTimeout time.Duration

	// Extend, if set, pushes a transport read deadline out by the idle
	// timeout. It is called once up front and again after every chunk.
	// Sources whose blocked reads cannot be interrupted by Close (an
	// HTTP server request body holds a lock across Read) need this to
	// make the watchdog effective.
	Extend func(time.Duration)

	// Counter, if set, is incremented with every chunk observed.
	Counter ByteCounter
}

// CheckReader is a pass-through reader that maintains a running MD5,
// a byte count, an idle watchdog, and a max-size guard over a streaming
// body. It is the integrity checkpoint on both the upload and download
// paths: the digest it reports is compared against what the storage nodes
// received (writes) or what the metadata records (reads).
type CheckReader struct {
	src      io.Reader
	hash     hash.Hash
	count    int64
	max      int64
	counter  ByteCounter
	timer    *time.Timer
	idle     time.Duration
	extend   func(time.Duration)
	timedOut atomic.Bool
	err      error
}

// NewCheckReader wraps src. If src is an io.Closer the idle watchdog
// closes it on expiry to unblock a pending Read.
func NewCheckReader(src io.Reader, cfg CheckConfig) *CheckReader {
	c := &CheckReader{
		src:     src,
		hash:    md5.New(),
		max:     cfg.MaxBytes,
		counter: cfg.Counter,
	}
	if cfg.IdleTimeout > 0 {
		c.timer = time.AfterFunc(cfg.IdleTimeout, func() {
			c.timedOut.Store(true)
			if closer, ok := src.(io.Closer); ok {
				_ = closer.Close()
			}
		})
		c.idle = cfg.IdleTimeout
		if cfg.Extend != nil {
			c.extend = cfg.Extend
			c.extend(c.idle)
		}
	}
	return c
}

func (c *CheckReader) Read(p []byte) (int, error) {
	if c.err != nil {
		return 0, c.err
	}

	n, err := c.src.Read(p)
	if n > 0 {
		if c.timer != nil {
			c.timer.Reset(c.idle)
		}
		if c.extend != nil {
			c.extend(c.idle)
		}
		c.count += int64(n)
		if c.max > 0 && c.count > c.max {
			c.stop()
			c.err = ErrMaxSizeExceeded
			return 0, c.err
		}
		c.hash.Write(p[:n])
		if c.counter != nil {
			c.counter.Add(float64(n))
		}
	}
	if err != nil {
		c.stop()
		// A deadline expiry planted through Extend surfaces as a net
		// timeout on the read itself.
		if c.timedOut.Load() || (c.idle > 0 && isTimeout(err)) {
			err = ErrIdleTimeout
		}
		c.err = err
	}
	return n, err
}

func isTimeout(err error) bool {
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

func (c *CheckReader) stop() {
	if c.timer != nil {
		c.timer.Stop()
	}
}

// Close stops the watchdog and closes the underlying reader if closable.
func (c *CheckReader) Close() error {
	c.stop()
	if closer, ok := c.src.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}

// Count returns the number of bytes read so far.
func (c *CheckReader) Count() int64 {
	return c.count
}

// Digest returns the base64 MD5 of everything read so far.
func (c *CheckReader) Digest() string {
	return base64.StdEncoding.EncodeToString(c.hash.Sum(nil))
}
