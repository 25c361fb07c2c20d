package gateway

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/burrowlabs/burrow/pkg/apierr"
	"github.com/burrowlabs/burrow/pkg/stream"
	"github.com/burrowlabs/burrow/pkg/types"
)

const (
	defaultListLimit = 1024
	maxListLimit     = 1024

	// listContentType marks the NDJSON listing stream.
	listContentType = "application/x-ndjson"
)

// listParams are the parsed query parameters of a listing request.
type listParams struct {
	limit     int
	marker    string
	prefix    string
	delimiter string
}

func parseListParams(r *http.Request) (*listParams, error) {
	q := r.URL.Query()
	p := &listParams{
		limit:     defaultListLimit,
		marker:    q.Get("marker"),
		prefix:    q.Get("prefix"),
		delimiter: q.Get("delimiter"),
	}
	if v := q.Get("limit"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil || limit < 1 || limit > maxListLimit {
			return nil, apierr.InvalidParameter("limit must be between 1 and %d", maxListLimit)
		}
		p.limit = limit
	}
	if len(p.delimiter) > 1 {
		return nil, apierr.InvalidParameter("delimiter must be a single character")
	}
	return p, nil
}

// listStreams opens one page stream per vnode in the request snapshot.
// open is the per-vnode RPC, bound to the right shard client.
func (g *Gateway) listStreams(req *requestInfo, p *listParams,
	open func(pnode string, vnode uint64) stream.OpenPageFunc) ([]*stream.PageStream, error) {

	nodes := req.snap.AllNodes()
	streams := make([]*stream.PageStream, 0, len(nodes))
	for _, node := range nodes {
		if _, err := g.shards.Get(node.PNode); err != nil {
			return nil, apierr.Internal("placement lookup failed").WithCause(err)
		}
		streams = append(streams, stream.NewPageStream(open(node.PNode, node.VNode), p.marker, p.limit))
	}
	return streams, nil
}

// serveList drains the merge into a buffer, decides the Next-Marker
// header, and writes the NDJSON stream with its terminal message. The
// limit is small enough that buffering the page is cheaper than losing
// the ability to set headers.
func serveList(w http.ResponseWriter, req *requestInfo, p *listParams,
	streams []*stream.PageStream, r *http.Request) error {

	entries := make([]types.ListEntry, 0, p.limit)
	res, err := stream.Merge(r.Context(), streams, stream.MergeOptions{
		Limit:     p.limit,
		Prefix:    p.prefix,
		Delimiter: p.delimiter,
	}, func(e types.ListEntry) error {
		entries = append(entries, e)
		return nil
	})
	if err != nil {
		return translate(err, req.bucketName, "")
	}

	h := w.Header()
	h.Set("Content-Type", listContentType)
	if !res.Finished {
		h.Set("Next-Marker", res.NextMarker)
	}

	enc := json.NewEncoder(w)
	for _, e := range entries {
		if err := enc.Encode(e); err != nil {
			return err
		}
	}
	terminal := terminalMessage{Type: types.EntryTypeMessage, Finished: res.Finished}
	if !res.Finished {
		terminal.NextMarker = res.NextMarker
	}
	return enc.Encode(terminal)
}

// terminalMessage closes every listing stream; unlike ordinary entries
// its finished field is always present.
type terminalMessage struct {
	Type       string `json:"type"`
	Finished   bool   `json:"finished"`
	NextMarker string `json:"next_marker,omitempty"`
}
