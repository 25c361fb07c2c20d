package gateway_test

import (
	"bufio"
	"encoding/json"
	"net/http"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/burrowlabs/burrow/pkg/types"
)

// listLine is one decoded NDJSON record.
type listLine struct {
	Name       string `json:"name"`
	Type       string `json:"type"`
	Etag       string `json:"etag"`
	Finished   bool   `json:"finished"`
	NextMarker string `json:"next_marker"`
}

// readList decodes an NDJSON listing into its entries and terminal
// message.
func readList(t *testing.T, resp *http.Response) ([]listLine, listLine) {
	t.Helper()
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var lines []listLine
	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		var line listLine
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &line))
		lines = append(lines, line)
	}
	require.NoError(t, scanner.Err())
	require.NotEmpty(t, lines)

	terminal := lines[len(lines)-1]
	require.Equal(t, types.EntryTypeMessage, terminal.Type)
	return lines[:len(lines)-1], terminal
}

func (e *env) listObjects(bucket, query string) *http.Response {
	e.t.Helper()
	return e.do(http.MethodGet, "/"+testLogin+"/buckets/"+bucket+"/objects"+query, nil, nil)
}

func seedListing(e *env, bucket string, names []string) {
	e.t.Helper()
	e.createBucket(bucket)
	for _, name := range names {
		resp := e.putObject(bucket, name, []byte("x"), nil)
		resp.Body.Close()
		require.Equal(e.t, http.StatusNoContent, resp.StatusCode)
	}
}

func TestListObjectsSorted(t *testing.T) {
	e := newEnv(t)
	seedListing(e, "files", []string{"cherry", "apple", "banana"})

	entries, terminal := readList(t, e.listObjects("files", ""))
	require.Len(t, entries, 3)
	assert.Equal(t, "apple", entries[0].Name)
	assert.Equal(t, "banana", entries[1].Name)
	assert.Equal(t, "cherry", entries[2].Name)
	for _, entry := range entries {
		assert.Equal(t, types.EntryTypeObject, entry.Type)
		assert.NotEmpty(t, entry.Etag)
	}
	assert.True(t, terminal.Finished)
}

func TestListObjectsPrefixWithDelimiterNoFold(t *testing.T) {
	e := newEnv(t)
	seedListing(e, "files", []string{
		"dir1/a.txt", "dir1/b.txt", "dir1/c.txt", "other.txt", "zed.txt",
	})

	// The prefix ends at the delimiter, so nothing folds: the three
	// matching objects come back as plain records.
	resp := e.listObjects("files", "?prefix="+url.QueryEscape("dir1/")+"&delimiter="+url.QueryEscape("/"))
	entries, terminal := readList(t, resp)
	require.Len(t, entries, 3)
	assert.Equal(t, "dir1/a.txt", entries[0].Name)
	assert.Equal(t, "dir1/b.txt", entries[1].Name)
	assert.Equal(t, "dir1/c.txt", entries[2].Name)
	for _, entry := range entries {
		assert.Equal(t, types.EntryTypeObject, entry.Type)
	}
	assert.True(t, terminal.Finished)
	assert.Empty(t, resp.Header.Get("Next-Marker"))
}

func TestListObjectsDelimiterFold(t *testing.T) {
	e := newEnv(t)
	seedListing(e, "files", []string{
		"dir1/a.txt", "dir1/b.txt", "dir1/c.txt",
	})

	resp := e.listObjects("files", "?prefix=dir1&delimiter="+url.QueryEscape("/"))
	entries, terminal := readList(t, resp)
	require.Len(t, entries, 1)
	assert.Equal(t, "dir1/", entries[0].Name)
	assert.Equal(t, types.EntryTypeGroup, entries[0].Type)
	assert.True(t, terminal.Finished)
	assert.Empty(t, resp.Header.Get("Next-Marker"))
}

func TestListObjectsLimitAndMarker(t *testing.T) {
	e := newEnv(t)
	seedListing(e, "files", []string{"a", "b", "c", "d", "e"})

	resp := e.listObjects("files", "?limit=2")
	entries, terminal := readList(t, resp)
	require.Len(t, entries, 2)
	assert.Equal(t, "a", entries[0].Name)
	assert.Equal(t, "b", entries[1].Name)
	assert.False(t, terminal.Finished)
	marker := resp.Header.Get("Next-Marker")
	require.Equal(t, "b", marker)

	// The marker is inclusive: the resumed page starts at the marker
	// record and the client drops the duplicate.
	resp = e.listObjects("files", "?marker="+url.QueryEscape(marker))
	entries, terminal = readList(t, resp)
	require.Len(t, entries, 4)
	assert.Equal(t, "b", entries[0].Name)
	assert.Equal(t, "e", entries[3].Name)
	assert.True(t, terminal.Finished)
	assert.Empty(t, resp.Header.Get("Next-Marker"))
}

func TestListObjectsLimitOne(t *testing.T) {
	e := newEnv(t)
	seedListing(e, "files", []string{"a", "b"})

	// A limit of 1 makes every shard page come back full; the listing
	// must still terminate with one record and a resume marker.
	resp := e.listObjects("files", "?limit=1")
	entries, terminal := readList(t, resp)
	require.Len(t, entries, 1)
	assert.Equal(t, "a", entries[0].Name)
	assert.False(t, terminal.Finished)
	assert.Equal(t, "a", resp.Header.Get("Next-Marker"))
}

func TestListObjectsOrderedAcrossVnodes(t *testing.T) {
	e := newEnv(t)
	names := []string{
		"alpha", "bravo", "charlie", "delta", "echo", "foxtrot",
		"golf", "hotel", "india", "juliett", "kilo", "lima",
	}
	seedListing(e, "files", names)

	entries, terminal := readList(t, e.listObjects("files", ""))
	require.Len(t, entries, len(names))
	for i := 1; i < len(entries); i++ {
		assert.LessOrEqual(t, entries[i-1].Name, entries[i].Name)
	}
	assert.True(t, terminal.Finished)
}

func TestListBuckets(t *testing.T) {
	e := newEnv(t)
	e.createBucket("alpha")
	e.createBucket("beta")

	entries, terminal := readList(t, e.do(http.MethodGet, "/"+testLogin+"/buckets", nil, nil))
	require.Len(t, entries, 2)
	assert.Equal(t, "alpha", entries[0].Name)
	assert.Equal(t, "beta", entries[1].Name)
	assert.Equal(t, types.EntryTypeBucket, entries[0].Type)
	assert.True(t, terminal.Finished)
}

func TestListEmptyBucket(t *testing.T) {
	e := newEnv(t)
	e.createBucket("files")

	entries, terminal := readList(t, e.listObjects("files", ""))
	assert.Empty(t, entries)
	assert.True(t, terminal.Finished)
}

func TestListInvalidParams(t *testing.T) {
	e := newEnv(t)
	e.createBucket("files")

	resp := e.listObjects("files", "?limit=0")
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	assert.Equal(t, "InvalidParameterError", errorCode(t, resp))

	resp = e.listObjects("files", "?limit=5000")
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	resp.Body.Close()

	resp = e.listObjects("files", "?delimiter=ab")
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	resp.Body.Close()
}
