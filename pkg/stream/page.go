package stream

import (
	"context"
	"fmt"

	"github.com/burrowlabs/burrow/pkg/types"
)

// OpenPageFunc fetches one page of listing records from a single vnode.
// Records are returned sorted by name ascending, starting at the first
// record with name >= marker, at most limit of them.
type OpenPageFunc func(ctx context.Context, marker string, limit int) ([]types.ListEntry, error)

// PageStream is a single-vnode paginated iterator. It reads records in
// order and transparently re-issues the listing RPC with the last-seen
// marker whenever a page comes back full, so the consumer sees one
// continuous sorted stream.
//
// The stream moves through the states Idle -> Fetching -> Reading and, on
// a page boundary, either Refetching (last page was full) or Exhausted.
type PageStream struct {
	open  OpenPageFunc
	limit int

	marker    string // resume point: next page starts at name >= marker
	exclusive bool   // marker names an already-consumed record
	skip      string // record name to drop if it reappears at a page head
	page      []types.ListEntry
	idx       int
	started   bool
	full      bool // last page filled its fetch limit; more may remain
	done      bool
}

// NewPageStream creates a stream beginning at marker (inclusive) with the
// given per-page limit.
func NewPageStream(open OpenPageFunc, marker string, limit int) *PageStream {
	return &PageStream{open: open, limit: limit, marker: marker}
}

// Next returns the next record, or nil once the stream is exhausted.
func (s *PageStream) Next(ctx context.Context) (*types.ListEntry, error) {
	for {
		if s.done {
			return nil, nil
		}
		if s.idx < len(s.page) {
			rec := &s.page[s.idx]
			s.idx++
			if s.skip != "" && rec.Name == s.skip {
				// First record of a refetched page repeats the last
				// record consumed from the previous page.
				s.skip = ""
				continue
			}
			s.skip = ""
			s.marker = rec.Name
			s.exclusive = true
			return rec, nil
		}
		if s.started && !s.full {
			s.done = true
			return nil, nil
		}
		if err := s.fetch(ctx); err != nil {
			return nil, err
		}
	}
}

func (s *PageStream) fetch(ctx context.Context) error {
	// A refetch resumes at the last consumed record, which the source
	// repeats under inclusive marker semantics. Ask for one extra so the
	// duplicate alone can never fill the page: a page that is not full
	// after the skip proves the stream has ended.
	fetchLimit := s.limit
	if s.exclusive {
		fetchLimit++
	}
	page, err := s.open(ctx, s.marker, fetchLimit)
	if err != nil {
		return err
	}
	if s.exclusive {
		s.skip = s.marker
	}
	s.started = true
	s.page = page
	s.idx = 0
	s.full = len(page) >= fetchLimit
	if len(page) == 0 {
		s.done = true
	}
	return nil
}

// AdvanceTo discards records until one with name >= marker appears.
// Advancing is idempotent for a marker at or past the current position;
// a strictly lesser marker is an error.
func (s *PageStream) AdvanceTo(marker string) error {
	if marker < s.marker {
		return fmt.Errorf("cannot advance to marker %q before current marker %q", marker, s.marker)
	}
	if marker == s.marker {
		return nil
	}

	// Skip buffered records below the target. If the target lies past the
	// tail of the current page the rest of the page is dropped and the
	// next fetch resumes at the new marker.
	for s.idx < len(s.page) && s.page[s.idx].Name < marker {
		s.idx++
	}
	if s.idx == len(s.page) && s.started && !s.full {
		s.done = true
	}
	s.marker = marker
	s.exclusive = false
	s.skip = "" // the new marker is inclusive
	return nil
}

// Marker returns the stream's current resume marker.
func (s *PageStream) Marker() string {
	return s.marker
}

// Done reports whether the source reported end and the final page was not
// full.
func (s *PageStream) Done() bool {
	return s.done
}
