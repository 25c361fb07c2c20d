package gateway

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/burrowlabs/burrow/pkg/apierr"
	"github.com/burrowlabs/burrow/pkg/shard"
	"github.com/burrowlabs/burrow/pkg/stream"
	"github.com/burrowlabs/burrow/pkg/types"
)

func (g *Gateway) optionsBuckets(w http.ResponseWriter, _ *http.Request, _ *requestInfo) error {
	w.WriteHeader(http.StatusNoContent)
	return nil
}

func (g *Gateway) putBucket(w http.ResponseWriter, r *http.Request, req *requestInfo) error {
	if err := g.prepare(r, req); err != nil {
		return err
	}
	if err := g.authorize(r, req); err != nil {
		return err
	}

	client, vnode, err := g.bucketClient(req)
	if err != nil {
		return err
	}
	if _, err := client.CreateBucket(r.Context(), req.owner.UUID, req.bucketName,
		uuid.NewString(), vnode); err != nil {
		return translate(err, req.bucketName, "")
	}

	w.WriteHeader(http.StatusNoContent)
	return nil
}

func (g *Gateway) headBucket(w http.ResponseWriter, r *http.Request, req *requestInfo) error {
	if err := g.prepare(r, req); err != nil {
		return err
	}
	if err := g.loadBucket(r.Context(), req); err != nil {
		return err
	}
	if err := g.authorize(r, req); err != nil {
		return err
	}

	w.Header().Set("Last-Modified", req.bucket.Mtime.UTC().Format(http.TimeFormat))
	w.WriteHeader(http.StatusOK)
	return nil
}

func (g *Gateway) deleteBucket(w http.ResponseWriter, r *http.Request, req *requestInfo) error {
	if err := g.prepare(r, req); err != nil {
		return err
	}
	if err := g.loadBucket(r.Context(), req); err != nil {
		return err
	}
	if err := g.authorize(r, req); err != nil {
		return err
	}

	empty, err := g.bucketIsEmpty(r.Context(), req)
	if err != nil {
		return err
	}
	if !empty {
		return apierr.BucketNotEmpty(req.bucketName)
	}

	client, vnode, err := g.bucketClient(req)
	if err != nil {
		return err
	}
	if err := client.DeleteBucket(r.Context(), req.owner.UUID, req.bucketName, vnode); err != nil {
		return translate(err, req.bucketName, "")
	}

	w.WriteHeader(http.StatusNoContent)
	return nil
}

// bucketIsEmpty asks every vnode for at most one object row and merges
// the answers.
func (g *Gateway) bucketIsEmpty(ctx context.Context, req *requestInfo) (bool, error) {
	p := &listParams{limit: 1}
	streams, err := g.listStreams(req, p, g.openObjectPage(req, p))
	if err != nil {
		return false, err
	}

	found := false
	_, err = stream.Merge(ctx, streams, stream.MergeOptions{Limit: 1},
		func(types.ListEntry) error {
			found = true
			return nil
		})
	if err != nil {
		return false, translate(err, req.bucketName, "")
	}
	return !found, nil
}

func (g *Gateway) listBuckets(w http.ResponseWriter, r *http.Request, req *requestInfo) error {
	if err := g.prepare(r, req); err != nil {
		return err
	}
	if err := g.authorize(r, req); err != nil {
		return err
	}
	p, err := parseListParams(r)
	if err != nil {
		return err
	}

	streams, err := g.listStreams(req, p, func(pnode string, vnode uint64) stream.OpenPageFunc {
		return func(ctx context.Context, marker string, limit int) ([]types.ListEntry, error) {
			client, err := g.shards.Get(pnode)
			if err != nil {
				return nil, err
			}
			return client.ListBuckets(ctx, shard.ListArgs{
				Owner:     req.owner.UUID,
				Vnode:     vnode,
				Prefix:    p.prefix,
				Marker:    marker,
				Limit:     limit,
				RequestID: req.id,
			})
		}
	})
	if err != nil {
		return err
	}
	return serveList(w, req, p, streams, r)
}

func (g *Gateway) listObjects(w http.ResponseWriter, r *http.Request, req *requestInfo) error {
	if err := g.prepare(r, req); err != nil {
		return err
	}
	if err := g.loadBucket(r.Context(), req); err != nil {
		return err
	}
	if err := g.authorize(r, req); err != nil {
		return err
	}
	p, err := parseListParams(r)
	if err != nil {
		return err
	}

	streams, err := g.listStreams(req, p, g.openObjectPage(req, p))
	if err != nil {
		return err
	}
	return serveList(w, req, p, streams, r)
}

// openObjectPage binds the object-listing RPC to one vnode. The bucket
// must already be loaded.
func (g *Gateway) openObjectPage(req *requestInfo, p *listParams) func(string, uint64) stream.OpenPageFunc {
	return func(pnode string, vnode uint64) stream.OpenPageFunc {
		return func(ctx context.Context, marker string, limit int) ([]types.ListEntry, error) {
			client, err := g.shards.Get(pnode)
			if err != nil {
				return nil, err
			}
			return client.ListObjects(ctx, shard.ListArgs{
				Owner:     req.owner.UUID,
				BucketID:  req.bucket.ID,
				Vnode:     vnode,
				Prefix:    p.prefix,
				Marker:    marker,
				Limit:     limit,
				RequestID: req.id,
			})
		}
	}
}
