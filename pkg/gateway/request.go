package gateway

import (
	"context"
	"net/http"
	"strings"

	"github.com/rs/zerolog"

	"github.com/burrowlabs/burrow/pkg/apierr"
	"github.com/burrowlabs/burrow/pkg/auth"
	"github.com/burrowlabs/burrow/pkg/ring"
	"github.com/burrowlabs/burrow/pkg/shard"
	"github.com/burrowlabs/burrow/pkg/types"
)

// requestInfo is the per-request state threaded through the pipeline
// stages: the principal, the resolved owner, the parsed names and
// conditions, and the ring snapshot captured at entry.
type requestInfo struct {
	id        string
	operation string
	snap      *ring.Snapshot
	logger    zerolog.Logger

	caller *types.Caller
	owner  *types.Account
	bucket *types.Bucket
	cond   *types.Conditions

	bucketName string
	objectName string
}

// actionFor maps an operation to its authorization action. HEAD shares
// the read action of its GET counterpart.
func actionFor(operation string) string {
	switch operation {
	case "headbucket":
		return "getbucket"
	case "headobject":
		return "getobject"
	case "putmetadata":
		return "updateobject"
	default:
		return operation
	}
}

// prepare runs the common front of the pipeline: authenticate, resolve
// the login, validate the names present on the route, and parse the If-*
// headers. Authorization is a separate stage run after the bucket row
// has been fetched, so a missing bucket reads as 404 for every caller.
func (g *Gateway) prepare(r *http.Request, req *requestInfo) error {
	caller, err := g.auth.Authenticate(r)
	if err != nil {
		return err
	}
	req.caller = caller

	owner, err := g.auth.ResolveAccount(r.Context(), r.PathValue("login"))
	if err != nil {
		return err
	}
	req.owner = owner

	if name := r.PathValue("bucket"); name != "" {
		if err := ValidateBucketName(name); err != nil {
			return err
		}
		req.bucketName = name
	}
	if name := r.PathValue("object"); name != "" {
		if err := ValidateObjectName(name); err != nil {
			return err
		}
		req.objectName = name
	}

	req.cond, err = parseConditions(r.Header)
	return err
}

// authorize decides the request's action for the resolved owner.
func (g *Gateway) authorize(r *http.Request, req *requestInfo) error {
	return g.authz.Authorize(r.Context(), auth.Request{
		Caller:   req.caller,
		Owner:    req.owner.UUID,
		Action:   actionFor(req.operation),
		Resource: r.URL.Path,
	})
}

// bucketClient locates the bucket row's shard under the request snapshot.
func (g *Gateway) bucketClient(req *requestInfo) (*shard.Client, uint64, error) {
	loc, err := req.snap.Locate(ring.BucketKey(req.owner.UUID, req.bucketName))
	if err != nil {
		return nil, 0, apierr.Internal("placement lookup failed").WithCause(err)
	}
	client, err := g.shards.Get(loc.PNode)
	if err != nil {
		return nil, 0, apierr.Internal("placement lookup failed").WithCause(err)
	}
	return client, loc.VNode, nil
}

// objectClient locates the object row's shard under the request snapshot.
// The bucket must already be loaded.
func (g *Gateway) objectClient(req *requestInfo) (*shard.Client, uint64, error) {
	loc, err := req.snap.Locate(ring.ObjectKey(req.owner.UUID, req.bucket.ID, req.objectName))
	if err != nil {
		return nil, 0, apierr.Internal("placement lookup failed").WithCause(err)
	}
	client, err := g.shards.Get(loc.PNode)
	if err != nil {
		return nil, 0, apierr.Internal("placement lookup failed").WithCause(err)
	}
	return client, loc.VNode, nil
}

// loadBucket fetches the bucket row, populating req.bucket.
func (g *Gateway) loadBucket(ctx context.Context, req *requestInfo) error {
	client, vnode, err := g.bucketClient(req)
	if err != nil {
		return err
	}
	bucket, err := client.GetBucket(ctx, req.owner.UUID, req.bucketName, vnode)
	if err != nil {
		return translate(err, req.bucketName, req.objectName)
	}
	req.bucket = bucket
	return nil
}

// userHeaders extracts the headers stored on an object: m-* user
// metadata (bounded in total size), caching directives, and the CORS
// subset. Keys are stored lowercased.
func userHeaders(h http.Header, maxUserBytes int) (map[string]string, error) {
	out := make(map[string]string)
	userBytes := 0
	for key, values := range h {
		lk := strings.ToLower(key)
		value := strings.Join(values, ", ")
		switch {
		case strings.HasPrefix(lk, "m-"):
			userBytes += len(lk) + len(value)
			out[lk] = value
		case lk == "cache-control", lk == "surrogate-key":
			out[lk] = value
		case strings.HasPrefix(lk, "access-control-"):
			out[lk] = value
		}
	}
	if userBytes > maxUserBytes {
		return nil, apierr.UserHeadersTooLarge(maxUserBytes)
	}
	if len(out) == 0 {
		return nil, nil
	}
	return out, nil
}

// replayHeaders writes an object's stored headers onto a read response.
// access-control-* headers are replayed only when the request origin is
// covered by the stored allow-origin value; m-* metadata and caching
// directives are always replayed.
func replayHeaders(w http.ResponseWriter, origin string, stored map[string]string) {
	cors := corsAllowed(origin, stored)
	for key, value := range stored {
		if strings.HasPrefix(key, "access-control-") && !cors {
			continue
		}
		w.Header().Set(key, value)
	}
}

func corsAllowed(origin string, stored map[string]string) bool {
	if origin == "" {
		return false
	}
	allowed := stored["access-control-allow-origin"]
	if allowed == "*" {
		return true
	}
	for _, candidate := range strings.Split(allowed, " ") {
		if candidate == origin {
			return true
		}
	}
	return false
}
