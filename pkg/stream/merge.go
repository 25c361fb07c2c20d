package stream

import (
	"context"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/burrowlabs/burrow/pkg/types"
)

// MergeOptions configure a merged listing.
type MergeOptions struct {
	// Limit is the global entry budget; group records count as one.
	Limit int

	// Prefix restricts the listing to names beginning with it. The
	// per-vnode sources are expected to apply the same prefix filter.
	Prefix string

	// Delimiter, when non-empty, is the single character used to fold
	// common-prefix ranges into group records.
	Delimiter string
}

// MergeResult summarizes a completed merge.
type MergeResult struct {
	// Finished is true when every source stream was exhausted; false when
	// the merge stopped early because the limit was reached.
	Finished bool

	// NextMarker is the marker a client passes to resume the listing.
	// Only meaningful when Finished is false.
	NextMarker string

	// Emitted is the number of entries delivered to the sink.
	Emitted int
}

// EmitFunc receives merged entries in strictly non-decreasing name order.
type EmitFunc func(types.ListEntry) error

// Merge performs a k-way merge over per-vnode page streams, applying
// prefix/delimiter grouping and a global limit. Entries are delivered to
// emit in strictly non-decreasing name order. Page fetches fan out across
// the streams; the first stream error cancels the outstanding fetches and
// aborts the merge, in which case no terminal message should be sent.
func Merge(ctx context.Context, streams []*PageStream, opts MergeOptions, emit EmitFunc) (MergeResult, error) {
	type source struct {
		stream *PageStream
		head   *types.ListEntry
	}

	var res MergeResult

	sources := make([]*source, len(streams))
	eg, egCtx := errgroup.WithContext(ctx)
	for i, s := range streams {
		src := &source{stream: s}
		sources[i] = src
		eg.Go(func() error {
			head, err := src.stream.Next(egCtx)
			if err != nil {
				return err
			}
			src.head = head
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return res, err
	}

	for res.Emitted < opts.Limit {
		// Select the lowest head under byte-wise ascending compare.
		var min *source
		for _, src := range sources {
			if src.head == nil {
				continue
			}
			if min == nil || src.head.Name < min.head.Name {
				min = src
			}
		}
		if min == nil {
			res.Finished = true
			return res, nil
		}

		entry := *min.head
		group, nextMarker := foldDelimiter(entry.Name, opts.Prefix, opts.Delimiter)
		if group == "" {
			if err := emit(entry); err != nil {
				return res, err
			}
			res.Emitted++
			res.NextMarker = entry.Name
			min.head = nil
			head, err := min.stream.Next(ctx)
			if err != nil {
				return res, err
			}
			min.head = head
			continue
		}

		// Delimiter fold: emit one group record covering every name that
		// shares the prefix up to and including the delimiter, then jump
		// all streams past the covered range.
		if err := emit(types.ListEntry{
			Name:       group,
			Type:       types.EntryTypeGroup,
			NextMarker: nextMarker,
		}); err != nil {
			return res, err
		}
		res.Emitted++
		res.NextMarker = nextMarker

		eg, egCtx := errgroup.WithContext(ctx)
		for _, src := range sources {
			if src.head != nil {
				if src.head.Name >= nextMarker {
					continue
				}
				src.head = nil
			}
			if src.stream.Done() {
				continue
			}
			eg.Go(func() error {
				if src.stream.Marker() < nextMarker {
					if err := src.stream.AdvanceTo(nextMarker); err != nil {
						return err
					}
				}
				head, err := src.stream.Next(egCtx)
				if err != nil {
					return err
				}
				src.head = head
				return nil
			})
		}
		if err := eg.Wait(); err != nil {
			return res, err
		}
	}

	// Limit reached; finished only if nothing remains on any stream.
	res.Finished = true
	for _, src := range sources {
		if src.head != nil {
			res.Finished = false
			break
		}
	}
	return res, nil
}

// foldDelimiter returns the group name and resume marker for a record
// name, or "" when the name does not fold. The marker is the covered
// common prefix with its final character bumped past the delimiter, so
// every name inside the group sorts below it.
func foldDelimiter(name, prefix, delimiter string) (group, nextMarker string) {
	if delimiter == "" {
		return "", ""
	}
	rest := strings.TrimPrefix(name, prefix)
	idx := strings.Index(rest, delimiter)
	if idx < 0 {
		return "", ""
	}
	group = prefix + rest[:idx+len(delimiter)]
	nextMarker = prefix + rest[:idx] + string(rune(delimiter[0])+1)
	return group, nextMarker
}
