package stream

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/burrowlabs/burrow/pkg/types"
)

// prefixSource is a sliceSource that also applies a prefix filter, the way
// a metadata shard does.
type prefixSource struct {
	names  []string
	prefix string
}

func (s *prefixSource) open(_ context.Context, marker string, limit int) ([]types.ListEntry, error) {
	var page []types.ListEntry
	for _, name := range s.names {
		if name < marker || !strings.HasPrefix(name, s.prefix) {
			continue
		}
		page = append(page, types.ListEntry{Name: name, Type: types.EntryTypeObject})
		if len(page) == limit {
			break
		}
	}
	return page, nil
}

// mergeStreams builds one PageStream per name set.
func mergeStreams(prefix string, pageLimit int, nameSets ...[]string) []*PageStream {
	streams := make([]*PageStream, 0, len(nameSets))
	for _, names := range nameSets {
		src := &prefixSource{names: names, prefix: prefix}
		streams = append(streams, NewPageStream(src.open, prefix, pageLimit))
	}
	return streams
}

func collect(t *testing.T, streams []*PageStream, opts MergeOptions) ([]types.ListEntry, MergeResult) {
	t.Helper()
	var entries []types.ListEntry
	res, err := Merge(context.Background(), streams, opts, func(e types.ListEntry) error {
		entries = append(entries, e)
		return nil
	})
	require.NoError(t, err)
	return entries, res
}

func names(entries []types.ListEntry) []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.Name
	}
	return out
}

func TestMergeInterleavesSorted(t *testing.T) {
	streams := mergeStreams("", 100,
		[]string{"a", "d", "g"},
		[]string{"b", "e"},
		[]string{"c", "f"},
	)
	entries, res := collect(t, streams, MergeOptions{Limit: 100})

	assert.Equal(t, []string{"a", "b", "c", "d", "e", "f", "g"}, names(entries))
	assert.True(t, res.Finished)
}

func TestMergeOrderingAcrossPages(t *testing.T) {
	streams := mergeStreams("", 2,
		[]string{"a", "c", "e", "g", "i"},
		[]string{"b", "d", "f", "h"},
	)
	entries, res := collect(t, streams, MergeOptions{Limit: 100})

	got := names(entries)
	for i := 1; i < len(got); i++ {
		assert.LessOrEqual(t, got[i-1], got[i], "emitted names must be non-decreasing")
	}
	assert.Len(t, got, 9)
	assert.True(t, res.Finished)
}

func TestMergeGlobalLimit(t *testing.T) {
	streams := mergeStreams("", 100,
		[]string{"a", "c", "e"},
		[]string{"b", "d", "f"},
	)
	entries, res := collect(t, streams, MergeOptions{Limit: 4})

	assert.Equal(t, []string{"a", "b", "c", "d"}, names(entries))
	assert.False(t, res.Finished)
	assert.Equal(t, "d", res.NextMarker)
}

func TestMergeLimitExactlyExhausts(t *testing.T) {
	streams := mergeStreams("", 100,
		[]string{"a"},
		[]string{"b"},
	)
	entries, res := collect(t, streams, MergeOptions{Limit: 2})

	assert.Equal(t, []string{"a", "b"}, names(entries))
	assert.True(t, res.Finished, "limit hit with nothing left must report finished")
}

func TestMergePrefixWithDelimiterNoFold(t *testing.T) {
	// Objects dir1/a.txt, dir1/b.txt, dir1/c.txt plus two non-matching:
	// with prefix "dir1/" the delimiter never appears in the remainder,
	// so plain records come back in lexical order.
	streams := mergeStreams("dir1/", 100,
		[]string{"dir1/a.txt", "dir1/c.txt", "other/x"},
		[]string{"dir1/b.txt", "zzz"},
	)
	entries, res := collect(t, streams, MergeOptions{
		Limit:     100,
		Prefix:    "dir1/",
		Delimiter: "/",
	})

	assert.Equal(t, []string{"dir1/a.txt", "dir1/b.txt", "dir1/c.txt"}, names(entries))
	for _, e := range entries {
		assert.Equal(t, types.EntryTypeObject, e.Type)
	}
	assert.True(t, res.Finished)
}

func TestMergePrefixDelimiterFoldsGroup(t *testing.T) {
	// With prefix "dir1" the remainder of every matching name starts at
	// "/", so all fold into the single group "dir1/".
	streams := mergeStreams("dir1", 100,
		[]string{"dir1/a.txt", "dir1/c.txt"},
		[]string{"dir1/b.txt"},
	)
	entries, res := collect(t, streams, MergeOptions{
		Limit:     100,
		Prefix:    "dir1",
		Delimiter: "/",
	})

	require.Len(t, entries, 1)
	assert.Equal(t, "dir1/", entries[0].Name)
	assert.Equal(t, types.EntryTypeGroup, entries[0].Type)
	assert.Equal(t, "dir10", entries[0].NextMarker)
	assert.True(t, res.Finished)
}

func TestMergeNoConsecutiveDuplicateGroups(t *testing.T) {
	streams := mergeStreams("", 100,
		[]string{"photos/2024/a.jpg", "photos/2025/b.jpg", "videos/x.mp4"},
		[]string{"photos/2024/c.jpg", "readme"},
	)
	entries, res := collect(t, streams, MergeOptions{Limit: 100, Delimiter: "/"})

	assert.Equal(t, []string{"photos/", "readme", "videos/"}, names(entries))
	assert.Equal(t, types.EntryTypeGroup, entries[0].Type)
	assert.Equal(t, types.EntryTypeObject, entries[1].Type)
	assert.Equal(t, types.EntryTypeGroup, entries[2].Type)

	seen := map[string]int{}
	for _, e := range entries {
		if e.Type == types.EntryTypeGroup {
			seen[e.Name]++
		}
	}
	for name, count := range seen {
		assert.Equal(t, 1, count, "group %q emitted more than once", name)
	}
	assert.True(t, res.Finished)
}

func TestMergeStreamErrorAborts(t *testing.T) {
	boom := errors.New("vnode 7 unreachable")
	bad := NewPageStream(func(context.Context, string, int) ([]types.ListEntry, error) {
		return nil, boom
	}, "", 10)
	good := mergeStreams("", 10, []string{"a"})[0]

	_, err := Merge(context.Background(), []*PageStream{good, bad}, MergeOptions{Limit: 10},
		func(types.ListEntry) error { return nil })
	assert.ErrorIs(t, err, boom)
}

func TestMergeLimitOneFullTailPage(t *testing.T) {
	// A per-page limit of 1 makes every non-empty page full. After the
	// single record is emitted the head refill must terminate instead of
	// refetching the same one-record page forever.
	streams := mergeStreams("", 1, []string{"only"}, nil)

	entries, res := collect(t, streams, MergeOptions{Limit: 1})
	assert.Equal(t, []string{"only"}, names(entries))
	assert.True(t, res.Finished)
}

func TestMergeFetchesHeadsInParallel(t *testing.T) {
	var mu sync.Mutex
	inflight, peak := 0, 0
	slow := func(name string) OpenPageFunc {
		return func(_ context.Context, marker string, _ int) ([]types.ListEntry, error) {
			mu.Lock()
			inflight++
			if inflight > peak {
				peak = inflight
			}
			mu.Unlock()
			time.Sleep(50 * time.Millisecond)
			mu.Lock()
			inflight--
			mu.Unlock()
			if marker > name {
				return nil, nil
			}
			return []types.ListEntry{{Name: name, Type: types.EntryTypeObject}}, nil
		}
	}
	streams := []*PageStream{
		NewPageStream(slow("a"), "", 10),
		NewPageStream(slow("b"), "", 10),
		NewPageStream(slow("c"), "", 10),
	}

	entries, res := collect(t, streams, MergeOptions{Limit: 10})
	assert.Equal(t, []string{"a", "b", "c"}, names(entries))
	assert.True(t, res.Finished)
	assert.Greater(t, peak, 1, "head fetches must overlap across streams")
}
