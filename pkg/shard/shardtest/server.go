package shardtest

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/burrowlabs/burrow/pkg/ring"
	"github.com/burrowlabs/burrow/pkg/shard"
	"github.com/burrowlabs/burrow/pkg/types"
)

// Server is an in-memory metadata shard speaking the same wire surface as
// a real pnode. Rows are partitioned by vnode exactly like the real tier,
// so merged-listing behavior can be exercised end to end.
type Server struct {
	mu      sync.Mutex
	buckets map[uint64]map[string]*types.Bucket // vnode -> owner:name
	objects map[uint64]map[string]*types.Object // vnode -> owner:bucketID:name
	faults  map[string]*shard.RemoteError       // method -> forced error
	srv     *httptest.Server
}

// New starts an in-memory shard.
func New() *Server {
	s := &Server{
		buckets: make(map[uint64]map[string]*types.Bucket),
		objects: make(map[uint64]map[string]*types.Object),
		faults:  make(map[string]*shard.RemoteError),
	}
	mux := http.NewServeMux()
	mux.HandleFunc("POST /rpc/{method}", s.handle)
	s.srv = httptest.NewServer(mux)
	return s
}

// URL returns the server's base URL, usable as a pnode identifier.
func (s *Server) URL() string {
	return s.srv.URL
}

// Close shuts the server down.
func (s *Server) Close() {
	s.srv.Close()
}

// FailWith forces every call of method to return the given error.
func (s *Server) FailWith(method string, re *shard.RemoteError) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.faults[method] = re
}

// PutObject seeds an object row directly.
func (s *Server) PutObject(vnode uint64, obj *types.Object) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objectsOn(vnode)[objectKey(obj.Owner, obj.BucketID, obj.Name)] = obj
}

// ObjectCount reports the number of object rows on a vnode.
func (s *Server) ObjectCount(vnode uint64) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.objects[vnode])
}

func (s *Server) bucketsOn(vnode uint64) map[string]*types.Bucket {
	if s.buckets[vnode] == nil {
		s.buckets[vnode] = make(map[string]*types.Bucket)
	}
	return s.buckets[vnode]
}

func (s *Server) objectsOn(vnode uint64) map[string]*types.Object {
	if s.objects[vnode] == nil {
		s.objects[vnode] = make(map[string]*types.Object)
	}
	return s.objects[vnode]
}

func bucketKey(owner, name string) string {
	return owner + ":" + name
}

func objectKey(owner, bucketID, name string) string {
	return owner + ":" + bucketID + ":" + name
}

func writeError(w http.ResponseWriter, status int, re *shard.RemoteError) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(re)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func errorStatus(name string) int {
	switch name {
	case shard.ErrNameBucketNotFound, shard.ErrNameObjectNotFound:
		return http.StatusNotFound
	case shard.ErrNameBucketAlreadyExists, shard.ErrNameBucketNotEmpty,
		shard.ErrNameEtagConflict, shard.ErrNameUniqueAttribute:
		return http.StatusConflict
	case shard.ErrNamePreconditionFailed:
		return http.StatusPreconditionFailed
	default:
		return http.StatusInternalServerError
	}
}

type rpcArgs struct {
	Owner                string            `json:"owner"`
	Name                 string            `json:"name"`
	ID                   string            `json:"id"`
	BucketID             string            `json:"bucket_id"`
	Vnode                uint64            `json:"vnode"`
	Prefix               string            `json:"prefix"`
	Marker               string            `json:"marker"`
	Limit                int               `json:"limit"`
	ContentLength        int64             `json:"content_length"`
	ContentMD5           string            `json:"content_md5"`
	ContentType          string            `json:"content_type"`
	Headers              map[string]string `json:"headers"`
	Sharks               []types.Shark     `json:"sharks"`
	StorageLayoutVersion int               `json:"storage_layout_version"`
	Conditions           *types.Conditions `json:"conditions"`
}

func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	method := r.PathValue("method")

	var args rpcArgs
	if err := json.NewDecoder(r.Body).Decode(&args); err != nil {
		writeError(w, http.StatusBadRequest, &shard.RemoteError{Name: "InvocationError", Message: err.Error()})
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if re := s.faults[method]; re != nil {
		writeError(w, errorStatus(re.Name), re)
		return
	}

	switch method {
	case "getbucket":
		s.getBucket(w, &args)
	case "createbucket":
		s.createBucket(w, &args)
	case "deletebucket":
		s.deleteBucket(w, &args)
	case "listbuckets":
		s.listBuckets(w, &args)
	case "getobject":
		s.getObject(w, &args)
	case "createobject":
		s.createObject(w, &args)
	case "updateobject":
		s.updateObject(w, &args)
	case "deleteobject":
		s.deleteObject(w, &args)
	case "listobjects":
		s.listObjects(w, &args)
	default:
		writeError(w, http.StatusBadRequest, &shard.RemoteError{Name: "InvocationError", Message: "unknown method " + method})
	}
}

func (s *Server) getBucket(w http.ResponseWriter, args *rpcArgs) {
	bucket, ok := s.bucketsOn(args.Vnode)[bucketKey(args.Owner, args.Name)]
	if !ok {
		writeError(w, http.StatusNotFound, &shard.RemoteError{
			Name: shard.ErrNameBucketNotFound, Message: args.Name,
		})
		return
	}
	writeJSON(w, bucket)
}

func (s *Server) createBucket(w http.ResponseWriter, args *rpcArgs) {
	key := bucketKey(args.Owner, args.Name)
	if _, ok := s.bucketsOn(args.Vnode)[key]; ok {
		writeError(w, http.StatusConflict, &shard.RemoteError{
			Name: shard.ErrNameBucketAlreadyExists, Message: args.Name,
		})
		return
	}
	id := args.ID
	if id == "" {
		id = uuid.NewString()
	}
	bucket := &types.Bucket{
		ID:    id,
		Name:  args.Name,
		Owner: args.Owner,
		Mtime: time.Now().UTC(),
		Type:  types.EntryTypeBucket,
	}
	s.bucketsOn(args.Vnode)[key] = bucket
	writeJSON(w, bucket)
}

func (s *Server) deleteBucket(w http.ResponseWriter, args *rpcArgs) {
	key := bucketKey(args.Owner, args.Name)
	if _, ok := s.bucketsOn(args.Vnode)[key]; !ok {
		writeError(w, http.StatusNotFound, &shard.RemoteError{
			Name: shard.ErrNameBucketNotFound, Message: args.Name,
		})
		return
	}
	delete(s.bucketsOn(args.Vnode), key)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) listBuckets(w http.ResponseWriter, args *rpcArgs) {
	var entries []types.ListEntry
	for _, bucket := range s.bucketsOn(args.Vnode) {
		if bucket.Owner != args.Owner {
			continue
		}
		mtime := bucket.Mtime
		entries = append(entries, types.ListEntry{
			Name:  bucket.Name,
			Type:  types.EntryTypeBucket,
			ID:    bucket.ID,
			Mtime: &mtime,
		})
	}
	writeJSON(w, pageOf(entries, args))
}

func (s *Server) listObjects(w http.ResponseWriter, args *rpcArgs) {
	var entries []types.ListEntry
	for _, obj := range s.objectsOn(args.Vnode) {
		if obj.Owner != args.Owner || obj.BucketID != args.BucketID {
			continue
		}
		mtime := obj.Modified
		entries = append(entries, types.ListEntry{
			Name:          obj.Name,
			Type:          types.EntryTypeObject,
			ID:            obj.ID,
			ContentLength: obj.ContentLength,
			ContentMD5:    obj.ContentMD5,
			ContentType:   obj.ContentType,
			Mtime:         &mtime,
		})
	}
	writeJSON(w, pageOf(entries, args))
}

// pageOf sorts, then applies prefix, inclusive marker, and limit.
func pageOf(entries []types.ListEntry, args *rpcArgs) map[string][]types.ListEntry {
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })
	page := make([]types.ListEntry, 0, len(entries))
	for _, e := range entries {
		if e.Name < args.Marker || !strings.HasPrefix(e.Name, args.Prefix) {
			continue
		}
		page = append(page, e)
		if args.Limit > 0 && len(page) == args.Limit {
			break
		}
	}
	return map[string][]types.ListEntry{"entries": page}
}

func checkConditions(cond *types.Conditions, existing *types.Object) *shard.RemoteError {
	if cond.Empty() {
		return nil
	}
	if len(cond.IfMatch) > 0 {
		matched := false
		for _, etag := range cond.IfMatch {
			if existing != nil && (etag == "*" || etag == existing.ID) {
				matched = true
				break
			}
		}
		if !matched {
			return &shard.RemoteError{Name: shard.ErrNamePreconditionFailed, Message: "if-match failed"}
		}
	}
	if len(cond.IfNoneMatch) > 0 && existing != nil {
		for _, etag := range cond.IfNoneMatch {
			if etag == "*" || etag == existing.ID {
				return &shard.RemoteError{Name: shard.ErrNamePreconditionFailed, Message: "if-none-match failed"}
			}
		}
	}
	if cond.IfUnmodifiedSince != nil && existing != nil &&
		existing.Modified.After(*cond.IfUnmodifiedSince) {
		return &shard.RemoteError{Name: shard.ErrNamePreconditionFailed, Message: "if-unmodified-since failed"}
	}
	return nil
}

func (s *Server) getObject(w http.ResponseWriter, args *rpcArgs) {
	obj := s.objectsOn(args.Vnode)[objectKey(args.Owner, args.BucketID, args.Name)]
	if re := checkConditions(args.Conditions, obj); re != nil {
		writeError(w, http.StatusPreconditionFailed, re)
		return
	}
	if obj == nil {
		writeError(w, http.StatusNotFound, &shard.RemoteError{
			Name: shard.ErrNameObjectNotFound, Message: args.Name,
		})
		return
	}
	writeJSON(w, obj)
}

func (s *Server) createObject(w http.ResponseWriter, args *rpcArgs) {
	key := objectKey(args.Owner, args.BucketID, args.Name)
	existing := s.objectsOn(args.Vnode)[key]
	if re := checkConditions(args.Conditions, existing); re != nil {
		writeError(w, http.StatusPreconditionFailed, re)
		return
	}
	now := time.Now().UTC()
	created := now
	if existing != nil {
		created = existing.Created
	}
	obj := &types.Object{
		ID:                   args.ID,
		Name:                 args.Name,
		NameHash:             ring.ObjectNameHash(args.Name),
		BucketID:             args.BucketID,
		Owner:                args.Owner,
		ContentLength:        args.ContentLength,
		ContentMD5:           args.ContentMD5,
		ContentType:          args.ContentType,
		Headers:              args.Headers,
		Sharks:               args.Sharks,
		StorageLayoutVersion: args.StorageLayoutVersion,
		Created:              created,
		Modified:             now,
	}
	s.objectsOn(args.Vnode)[key] = obj
	writeJSON(w, obj)
}

func (s *Server) updateObject(w http.ResponseWriter, args *rpcArgs) {
	key := objectKey(args.Owner, args.BucketID, args.Name)
	obj := s.objectsOn(args.Vnode)[key]
	if re := checkConditions(args.Conditions, obj); re != nil {
		writeError(w, http.StatusPreconditionFailed, re)
		return
	}
	if obj == nil {
		writeError(w, http.StatusNotFound, &shard.RemoteError{
			Name: shard.ErrNameObjectNotFound, Message: args.Name,
		})
		return
	}
	if args.ContentType != "" {
		obj.ContentType = args.ContentType
	}
	if args.Headers != nil {
		obj.Headers = args.Headers
	}
	obj.Modified = time.Now().UTC()
	writeJSON(w, obj)
}

func (s *Server) deleteObject(w http.ResponseWriter, args *rpcArgs) {
	key := objectKey(args.Owner, args.BucketID, args.Name)
	obj := s.objectsOn(args.Vnode)[key]
	if re := checkConditions(args.Conditions, obj); re != nil {
		writeError(w, http.StatusPreconditionFailed, re)
		return
	}
	if obj == nil {
		writeError(w, http.StatusNotFound, &shard.RemoteError{
			Name: shard.ErrNameObjectNotFound, Message: args.Name,
		})
		return
	}
	delete(s.objectsOn(args.Vnode), key)
	writeJSON(w, obj)
}
