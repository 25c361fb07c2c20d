package ring

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/burrowlabs/burrow/pkg/log"
	"github.com/burrowlabs/burrow/pkg/metrics"
)

// Ring holds the current placement snapshot and refreshes it periodically
// from the placement service. The snapshot pointer is replaced atomically;
// readers keep the pointer they grabbed for the lifetime of a request.
type Ring struct {
	snap   atomic.Pointer[Snapshot]
	source Source
	cache  *Cache
	logger zerolog.Logger
}

// Bootstrap obtains the initial snapshot. The placement service is
// authoritative; if it is unreachable the last cached snapshot is used.
// Failure of both is fatal to startup since the gateway cannot route.
func Bootstrap(ctx context.Context, source Source, cache *Cache) (*Ring, error) {
	r := &Ring{
		source: source,
		cache:  cache,
		logger: log.WithComponent("ring"),
	}

	snap, raw, err := source.Fetch(ctx)
	if err != nil {
		if cache == nil {
			return nil, fmt.Errorf("failed to obtain initial placement data: %w", err)
		}
		cached, cerr := cache.Load()
		if cerr != nil {
			return nil, fmt.Errorf("failed to obtain initial placement data: %w (cache: %v)", err, cerr)
		}
		r.logger.Warn().Err(err).Str("version", cached.Version()).
			Msg("placement service unreachable; starting from cached snapshot")
		r.snap.Store(cached)
		return r, nil
	}

	r.snap.Store(snap)
	r.persist(raw)
	r.logger.Info().Str("version", snap.Version()).Int("pnodes", len(snap.Pnodes())).
		Int("vnodes", len(snap.AllNodes())).Msg("placement snapshot loaded")
	return r, nil
}

// Snapshot returns the current snapshot.
func (r *Ring) Snapshot() *Snapshot {
	return r.snap.Load()
}

// Poll refreshes the snapshot every interval until ctx is canceled. A
// failed refresh keeps the previous snapshot; a partially built snapshot
// is never published.
func (r *Ring) Poll(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.refresh(ctx)
		}
	}
}

func (r *Ring) refresh(ctx context.Context) {
	snap, raw, err := r.source.Fetch(ctx)
	if err != nil {
		metrics.RingRefreshes.WithLabelValues("error").Inc()
		r.logger.Error().Err(err).Msg("placement refresh failed; keeping previous snapshot")
		return
	}

	prev := r.snap.Load()
	r.snap.Store(snap)
	r.persist(raw)
	metrics.RingRefreshes.WithLabelValues("ok").Inc()
	if prev == nil || prev.Version() != snap.Version() {
		r.logger.Info().Str("version", snap.Version()).Msg("placement snapshot updated")
	}
}

func (r *Ring) persist(raw []byte) {
	if r.cache == nil {
		return
	}
	if err := r.cache.Store(raw); err != nil {
		r.logger.Warn().Err(err).Msg("failed to persist placement snapshot to cache")
	}
}
