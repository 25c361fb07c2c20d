package gateway

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/burrowlabs/burrow/pkg/apierr"
	"github.com/burrowlabs/burrow/pkg/metrics"
	"github.com/burrowlabs/burrow/pkg/ring"
	"github.com/burrowlabs/burrow/pkg/shard"
	"github.com/burrowlabs/burrow/pkg/shark"
	"github.com/burrowlabs/burrow/pkg/stream"
	"github.com/burrowlabs/burrow/pkg/types"
)

// writeArgs are the parsed parameters of an object write.
type writeArgs struct {
	objectID    string
	size        int64 // -1 when the body is chunked
	maxBytes    int64 // size cap enforced while streaming
	durability  int
	contentType string
	contentMD5  string // client-sent digest, verified after streaming
	headers     map[string]string
}

func (g *Gateway) parseWriteArgs(r *http.Request) (*writeArgs, error) {
	cfg := &g.cfg.Objects
	args := &writeArgs{
		objectID:    uuid.NewString(),
		size:        r.ContentLength,
		maxBytes:    cfg.MaxContentLength,
		durability:  cfg.DefaultDurability,
		contentType: r.Header.Get("Content-Type"),
		contentMD5:  r.Header.Get("Content-MD5"),
	}
	if args.contentType == "" {
		args.contentType = "application/octet-stream"
	}

	if args.size < 0 {
		if len(r.TransferEncoding) == 0 {
			return nil, apierr.ContentLengthRequired()
		}
		// Chunked upload: the client may volunteer a tighter bound.
		if v := r.Header.Get("Max-Content-Length"); v != "" {
			max, err := strconv.ParseInt(v, 10, 64)
			if err != nil || max < 0 {
				return nil, apierr.BadRequest("invalid max-content-length %q", v)
			}
			if max < args.maxBytes {
				args.maxBytes = max
			}
		}
	} else if args.size > cfg.MaxContentLength {
		return nil, apierr.MaxContentLengthExceeded(cfg.MaxContentLength)
	}

	if v := r.Header.Get("Durability-Level"); v != "" {
		d, err := strconv.Atoi(v)
		if err != nil || d < 1 || d > cfg.MaxObjectCopies {
			return nil, apierr.InvalidDurabilityLevel(1, cfg.MaxObjectCopies)
		}
		args.durability = d
	}

	var err error
	if args.headers, err = userHeaders(r.Header, cfg.MaxUserHeaderBytes); err != nil {
		return nil, err
	}
	return args, nil
}

func (g *Gateway) putObject(w http.ResponseWriter, r *http.Request, req *requestInfo) error {
	if err := g.prepare(r, req); err != nil {
		return err
	}
	if err := g.loadBucket(r.Context(), req); err != nil {
		return err
	}
	if err := g.authorize(r, req); err != nil {
		return err
	}

	client, vnode, err := g.objectClient(req)
	if err != nil {
		return err
	}
	objArgs := shard.ObjectArgs{
		Owner:      req.owner.UUID,
		BucketID:   req.bucket.ID,
		Name:       req.objectName,
		Vnode:      vnode,
		Conditions: req.cond.ShardSubset(),
		RequestID:  req.id,
	}

	// Conditional peek: let the metadata tier evaluate the preconditions
	// before any body byte is accepted. Not-found is fine for a create.
	if !req.cond.Empty() {
		if _, err := client.GetObject(r.Context(), objArgs); err != nil {
			if !shard.IsRemote(err, shard.ErrNameObjectNotFound) {
				return translate(err, req.bucketName, req.objectName)
			}
		}
	}

	args, err := g.parseWriteArgs(r)
	if err != nil {
		return err
	}

	if args.size == 0 {
		return g.commitObject(r.Context(), w, req, client, objArgs, args, 0, types.ZeroByteMD5, nil)
	}

	uploads, err := g.openUploads(r.Context(), req, args)
	if err != nil {
		return err
	}

	size, digest, err := g.streamToSharks(w, r, req, args, uploads)
	if err != nil {
		return err
	}

	sharks := make([]types.Shark, len(uploads))
	for i, u := range uploads {
		sharks[i] = u.Shark
	}
	return g.commitObject(r.Context(), w, req, client, objArgs, args, size, digest, sharks)
}

// commitObject writes the metadata row and the success response.
func (g *Gateway) commitObject(ctx context.Context, w http.ResponseWriter, req *requestInfo,
	client *shard.Client, objArgs shard.ObjectArgs, args *writeArgs,
	size int64, digest string, sharks []types.Shark) error {

	if args.contentMD5 != "" && args.contentMD5 != digest {
		return apierr.ContentMD5Mismatch(args.contentMD5, digest)
	}

	obj, err := client.CreateObject(ctx, shard.CreateObjectArgs{
		ObjectArgs:           objArgs,
		ID:                   args.objectID,
		ContentLength:        size,
		ContentMD5:           digest,
		ContentType:          args.contentType,
		Headers:              args.headers,
		Sharks:               sharks,
		StorageLayoutVersion: types.CurrentStorageLayout,
	})
	if err != nil {
		return translate(err, req.bucketName, req.objectName)
	}

	w.Header().Set("Etag", obj.ID)
	w.Header().Set("Computed-MD5", digest)
	w.Header().Set("Durability-Level", strconv.Itoa(len(sharks)))
	w.WriteHeader(http.StatusNoContent)
	return nil
}

// openUploads establishes one PUT stream per replica. Candidate sets are
// tried in order; a set is only opened once every node in it answers a
// health probe, and a set that cannot be fully opened is abandoned as a
// whole. No failover happens once body bytes are flowing.
func (g *Gateway) openUploads(ctx context.Context, req *requestInfo, args *writeArgs) ([]*shark.Upload, error) {
	sets, err := g.chooser.Choose(ctx, shark.ChooseRequest{
		Replicas: args.durability,
		Size:     max(args.size, 0),
	})
	if errors.Is(err, shark.ErrNotEnoughSpace) {
		return nil, apierr.NotEnoughSpace(max(args.size, 0)).WithCause(err)
	}
	if err != nil || len(sets) == 0 {
		return nil, apierr.SharksExhausted().WithCause(err)
	}

	path, err := shark.ObjectPath(types.CurrentStorageLayout, req.owner.UUID,
		args.objectID, ring.ObjectNameHash(req.objectName))
	if err != nil {
		return nil, apierr.Internal("cannot derive storage path").WithCause(err)
	}

	for _, set := range sets {
		eg, pingCtx := errgroup.WithContext(ctx)
		for _, s := range set {
			eg.Go(func() error { return g.agent.Ping(pingCtx, s) })
		}
		if err := eg.Wait(); err != nil {
			req.logger.Warn().Err(err).Msg("storage node set failed health probe; trying next set")
			continue
		}

		uploads := make([]*shark.Upload, 0, len(set))
		ok := true
		for _, s := range set {
			u, err := g.agent.OpenPut(ctx, s, path, max(args.size, 0), args.contentMD5)
			if err != nil {
				req.logger.Warn().Err(err).Str("shark", s.StorageID).
					Msg("failed to open upload stream; abandoning set")
				ok = false
				break
			}
			uploads = append(uploads, u)
		}
		if !ok {
			abortUploads(uploads, errors.New("candidate set abandoned"))
			continue
		}
		return uploads, nil
	}
	return nil, apierr.SharksExhausted()
}

// clientGone attributes a failed client socket to the right probe: a
// deadline expiry is a socket timeout, anything else a client close. The
// body idle watchdog is not a socket timeout and reports through
// UploadTimeout instead.
func (g *Gateway) clientGone(err error) {
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		g.probes.OnSocketTimeout()
		return
	}
	g.probes.OnClientClose()
}

func abortUploads(uploads []*shark.Upload, cause error) {
	for _, u := range uploads {
		u.Abort(cause)
	}
}

// fanWriter tees one body write to every open upload stream and records
// the first storage-side failure.
type fanWriter struct {
	uploads []*shark.Upload
	err     error
}

func (f *fanWriter) Write(p []byte) (int, error) {
	for _, u := range f.uploads {
		if _, err := u.Writer().Write(p); err != nil {
			f.err = err
			return 0, err
		}
	}
	return len(p), nil
}

// streamToSharks pipes the client body through the integrity checker into
// every upload stream, then waits for all storage nodes and cross-checks
// every reported digest. Any failure aborts every stream.
func (g *Gateway) streamToSharks(w http.ResponseWriter, r *http.Request, req *requestInfo, args *writeArgs,
	uploads []*shark.Upload) (int64, string, error) {

	// The watchdog alone cannot interrupt a blocked server body read, so
	// the idle timeout is also planted as a rolling connection read
	// deadline.
	rc := http.NewResponseController(w)
	check := stream.NewCheckReader(r.Body, stream.CheckConfig{
		MaxBytes:    args.maxBytes,
		IdleTimeout: g.cfg.Objects.UploadIdleTimeout,
		Extend: func(d time.Duration) {
			_ = rc.SetReadDeadline(time.Now().Add(d))
		},
		Counter: metrics.InboundBytes,
	})
	fan := &fanWriter{uploads: uploads}

	_, copyErr := io.Copy(fan, check)
	_ = rc.SetReadDeadline(time.Time{})
	if copyErr != nil {
		abortUploads(uploads, copyErr)
		switch {
		case errors.Is(copyErr, stream.ErrIdleTimeout):
			return 0, "", apierr.UploadTimeout()
		case errors.Is(copyErr, stream.ErrMaxSizeExceeded):
			return 0, "", apierr.MaxContentLengthExceeded(args.maxBytes)
		case fan.err != nil:
			return 0, "", apierr.Internal("storage node stream failed").WithCause(fan.err)
		default:
			g.clientGone(copyErr)
			return 0, "", apierr.UploadAbandoned().WithCause(copyErr)
		}
	}

	if args.size >= 0 && check.Count() != args.size {
		abortUploads(uploads, errors.New("short body"))
		return 0, "", apierr.UploadAbandoned()
	}

	for _, u := range uploads {
		if err := u.Close(); err != nil {
			abortUploads(uploads, err)
			return 0, "", apierr.Internal("storage node stream failed").WithCause(err)
		}
	}

	digest := check.Digest()
	for _, u := range uploads {
		res, err := u.Wait(r.Context())
		if err != nil {
			abortUploads(uploads, err)
			return 0, "", apierr.Internal("storage node stream failed").WithCause(err)
		}
		switch {
		case res.Status == shark.StatusChecksumError:
			abortUploads(uploads, errors.New("checksum rejected"))
			return 0, "", apierr.ChecksumError(args.contentMD5, digest)
		case res.Status == http.StatusBadRequest && args.contentMD5 != "":
			abortUploads(uploads, errors.New("content-md5 rejected"))
			return 0, "", apierr.ContentMD5Mismatch(args.contentMD5, digest)
		case res.Status >= 400:
			abortUploads(uploads, errors.New("upload rejected"))
			return 0, "", apierr.Internal("storage node %s rejected the upload with status %d",
				u.Shark.StorageID, res.Status)
		case res.ComputedMD5 != "" && res.ComputedMD5 != digest:
			abortUploads(uploads, errors.New("digest mismatch"))
			return 0, "", apierr.Internal(
				"storage node %s received a different body: computed %s, node reports %s",
				u.Shark.StorageID, digest, res.ComputedMD5)
		}
	}

	return check.Count(), digest, nil
}

func (g *Gateway) getObject(w http.ResponseWriter, r *http.Request, req *requestInfo) error {
	return g.readObject(w, r, req, false)
}

func (g *Gateway) headObject(w http.ResponseWriter, r *http.Request, req *requestInfo) error {
	return g.readObject(w, r, req, true)
}

func (g *Gateway) readObject(w http.ResponseWriter, r *http.Request, req *requestInfo, head bool) error {
	if err := g.prepare(r, req); err != nil {
		return err
	}
	if err := g.loadBucket(r.Context(), req); err != nil {
		return err
	}
	if err := g.authorize(r, req); err != nil {
		return err
	}

	client, vnode, err := g.objectClient(req)
	if err != nil {
		return err
	}
	obj, err := client.GetObject(r.Context(), shard.ObjectArgs{
		Owner:      req.owner.UUID,
		BucketID:   req.bucket.ID,
		Name:       req.objectName,
		Vnode:      vnode,
		Conditions: readForward(req.cond),
		RequestID:  req.id,
	})
	if err != nil {
		return translate(err, req.bucketName, req.objectName)
	}

	lastModified := obj.Modified.UTC().Format(http.TimeFormat)
	if notModified(req.cond, obj) {
		w.Header().Set("Etag", obj.ID)
		w.Header().Set("Last-Modified", lastModified)
		w.WriteHeader(http.StatusNotModified)
		return nil
	}

	h := w.Header()
	h.Set("Etag", obj.ID)
	h.Set("Last-Modified", lastModified)
	h.Set("Content-Type", obj.ContentType)
	h.Set("Content-MD5", obj.ContentMD5)
	h.Set("Durability-Level", strconv.Itoa(obj.Durability()))
	h.Set("Accept-Ranges", "bytes")
	replayHeaders(w, r.Header.Get("Origin"), obj.Headers)

	if head || obj.ContentLength == 0 {
		h.Set("Content-Length", strconv.FormatInt(obj.ContentLength, 10))
		w.WriteHeader(http.StatusOK)
		return nil
	}
	return g.streamFromSharks(w, r, req, obj)
}

// streamFromSharks tries the object's replicas in order until one
// responds, then streams the body through an integrity checker to the
// client. Range requests are passed through; their partial bodies cannot
// be digest-verified.
func (g *Gateway) streamFromSharks(w http.ResponseWriter, r *http.Request, req *requestInfo, obj *types.Object) error {
	path, err := shark.ObjectPath(obj.StorageLayoutVersion, obj.Owner, obj.ID, obj.NameHash)
	if err != nil {
		return apierr.Internal("cannot derive storage path").WithCause(err)
	}
	rangeHeader := r.Header.Get("Range")

	var resp *http.Response
	for _, s := range obj.Sharks {
		candidate, err := g.agent.Get(r.Context(), s, path, rangeHeader)
		if err != nil {
			req.logger.Warn().Err(err).Str("shark", s.StorageID).
				Msg("storage node read failed; trying next replica")
			continue
		}
		switch candidate.StatusCode {
		case http.StatusOK, http.StatusPartialContent:
			resp = candidate
		case http.StatusRequestedRangeNotSatisfiable:
			contentRange := candidate.Header.Get("Content-Range")
			drain(candidate)
			e := apierr.RequestedRangeNotSatisfiable()
			if contentRange != "" {
				e = e.WithHeader("Content-Range", contentRange)
			}
			return e
		default:
			req.logger.Warn().Int("status", candidate.StatusCode).Str("shark", s.StorageID).
				Msg("storage node read failed; trying next replica")
			drain(candidate)
		}
		if resp != nil {
			break
		}
	}
	if resp == nil {
		return apierr.ServiceUnavailable().
			WithCause(errors.New("no replica could serve the object body"))
	}
	defer resp.Body.Close()

	h := w.Header()
	status := http.StatusOK
	if resp.StatusCode == http.StatusPartialContent {
		status = http.StatusPartialContent
		h.Set("Content-Range", resp.Header.Get("Content-Range"))
		h.Set("Content-Length", strconv.FormatInt(resp.ContentLength, 10))
	} else {
		h.Set("Content-Length", strconv.FormatInt(obj.ContentLength, 10))
	}
	w.WriteHeader(status)

	check := stream.NewCheckReader(resp.Body, stream.CheckConfig{
		Counter: metrics.OutboundBytes,
	})
	cw := &clientWriter{w: w}
	if _, err := io.Copy(cw, check); err != nil {
		if cw.err != nil {
			// The client went away mid-body; nothing more to send.
			g.clientGone(cw.err)
			req.logger.Info().Err(cw.err).Msg("client closed the connection during download")
			return nil
		}
		return apierr.Internal("storage node read failed mid-stream").WithCause(err)
	}

	if status == http.StatusOK && check.Digest() != obj.ContentMD5 {
		// Bytes are already on the wire; log and drop the connection so
		// the client does not trust them.
		req.logger.Error().Str("expected", obj.ContentMD5).Str("computed", check.Digest()).
			Msg("object body failed integrity check during download")
		return apierr.Internal("object body failed integrity check")
	}
	return nil
}

// clientWriter records a failure to write to the client, so it can be
// told apart from a failed upstream read.
type clientWriter struct {
	w   io.Writer
	err error
}

func (c *clientWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	if err != nil {
		c.err = err
	}
	return n, err
}

func drain(resp *http.Response) {
	io.Copy(io.Discard, io.LimitReader(resp.Body, 1<<20))
	resp.Body.Close()
}

func (g *Gateway) deleteObject(w http.ResponseWriter, r *http.Request, req *requestInfo) error {
	if err := g.prepare(r, req); err != nil {
		return err
	}
	if err := g.loadBucket(r.Context(), req); err != nil {
		return err
	}
	if err := g.authorize(r, req); err != nil {
		return err
	}

	client, vnode, err := g.objectClient(req)
	if err != nil {
		return err
	}
	deleted, err := client.DeleteObject(r.Context(), shard.ObjectArgs{
		Owner:      req.owner.UUID,
		BucketID:   req.bucket.ID,
		Name:       req.objectName,
		Vnode:      vnode,
		Conditions: req.cond.ShardSubset(),
		RequestID:  req.id,
	})
	if err != nil {
		return translate(err, req.bucketName, req.objectName)
	}

	metrics.DeletedBytes.Add(float64(deleted.ContentLength))
	w.WriteHeader(http.StatusNoContent)
	return nil
}

func (g *Gateway) putMetadata(w http.ResponseWriter, r *http.Request, req *requestInfo) error {
	if err := g.prepare(r, req); err != nil {
		return err
	}
	if err := g.loadBucket(r.Context(), req); err != nil {
		return err
	}
	if err := g.authorize(r, req); err != nil {
		return err
	}

	headers, err := userHeaders(r.Header, g.cfg.Objects.MaxUserHeaderBytes)
	if err != nil {
		return err
	}

	client, vnode, err := g.objectClient(req)
	if err != nil {
		return err
	}
	obj, err := client.UpdateObject(r.Context(), shard.UpdateObjectArgs{
		ObjectArgs: shard.ObjectArgs{
			Owner:      req.owner.UUID,
			BucketID:   req.bucket.ID,
			Name:       req.objectName,
			Vnode:      vnode,
			Conditions: req.cond.ShardSubset(),
			RequestID:  req.id,
		},
		ContentType: r.Header.Get("Content-Type"),
		Headers:     headers,
	})
	if err != nil {
		return translate(err, req.bucketName, req.objectName)
	}

	w.Header().Set("Etag", obj.ID)
	w.WriteHeader(http.StatusNoContent)
	return nil
}
