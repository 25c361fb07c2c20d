package gateway_test

import (
	"bytes"
	"context"
	"crypto/md5"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/burrowlabs/burrow/pkg/auth"
	"github.com/burrowlabs/burrow/pkg/config"
	"github.com/burrowlabs/burrow/pkg/gateway"
	"github.com/burrowlabs/burrow/pkg/log"
	"github.com/burrowlabs/burrow/pkg/ring"
	"github.com/burrowlabs/burrow/pkg/shard"
	"github.com/burrowlabs/burrow/pkg/shard/shardtest"
	"github.com/burrowlabs/burrow/pkg/shark"
	"github.com/burrowlabs/burrow/pkg/shark/sharktest"
	"github.com/burrowlabs/burrow/pkg/types"
)

const (
	testLogin = "alice"
	testUUID  = "4d5f9f24-0c22-45fb-89f7-8c77a0a0c2b4"
	testToken = "test-token"

	peerLogin = "bob"
	peerUUID  = "9a1cf9a1-5a51-4f1a-b1d2-6a3c0a9c7f11"
	peerToken = "peer-token"
)

func init() {
	log.Init(log.Config{Level: log.ErrorLevel, JSONOutput: true, Output: io.Discard})
}

type env struct {
	t      *testing.T
	shard  *shardtest.Server
	sharks []*sharktest.Server
	ts     *httptest.Server
}

// newEnv stands up a full gateway: one in-memory metadata shard owning
// four vnodes, three in-memory storage nodes, and a static placement
// snapshot.
func newEnv(t *testing.T) *env {
	return newEnvWith(t, nil)
}

// newEnvWith lets a test adjust the config and wiring before the gateway
// is built.
func newEnvWith(t *testing.T, tune func(cfg *config.Config, opts *gateway.Options)) *env {
	t.Helper()

	shardSrv := shardtest.New()
	t.Cleanup(shardSrv.Close)

	var sharks []*sharktest.Server
	var inventory []types.Shark
	for i := 0; i < 3; i++ {
		node := sharktest.New()
		t.Cleanup(node.Close)
		sharks = append(sharks, node)
		inventory = append(inventory, node.Shark())
	}

	placement := fmt.Sprintf(`{
		"version": "test-1",
		"algorithm": "sha256",
		"vnode_hash_interval": %d,
		"vnode_to_pnode": {"0": %q, "1": %q, "2": %q, "3": %q}
	}`, uint64(1)<<62, shardSrv.URL(), shardSrv.URL(), shardSrv.URL(), shardSrv.URL())
	placementSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(placement))
	}))
	t.Cleanup(placementSrv.Close)

	r, err := ring.Bootstrap(context.Background(), ring.NewHTTPSource(placementSrv.URL), nil)
	require.NoError(t, err)

	cfg := &config.Config{}
	cfg.Placement.URL = placementSrv.URL
	cfg.ApplyDefaults()

	opts := gateway.Options{
		Config: cfg,
		Ring:   r,
		Shards: shard.NewPool(r.Snapshot().Pnodes()),
		Agent:  shark.NewAgent(shark.AgentConfig{}),
		Auth: auth.NewStaticAuthenticator([]auth.Entry{
			{Login: testLogin, UUID: testUUID, Token: testToken},
			{Login: peerLogin, UUID: peerUUID, Token: peerToken},
		}),
		Authz: auth.OwnerAuthorizer{},
	}
	if tune != nil {
		tune(cfg, &opts)
	}
	if opts.Chooser == nil {
		opts.Chooser = shark.NewInventoryChooser(inventory, cfg.Storage.NodeCapacity, 1)
	}
	g := gateway.New(opts)

	ts := httptest.NewServer(g.Handler())
	t.Cleanup(ts.Close)

	return &env{t: t, shard: shardSrv, sharks: sharks, ts: ts}
}

func (e *env) do(method, path string, body []byte, headers map[string]string) *http.Response {
	e.t.Helper()
	return e.doAs(testToken, method, path, body, headers)
}

func (e *env) doAs(token, method, path string, body []byte, headers map[string]string) *http.Response {
	e.t.Helper()
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequest(method, e.ts.URL+path, reader)
	require.NoError(e.t, err)
	req.Header.Set("Authorization", "Bearer "+token)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(e.t, err)
	return resp
}

func (e *env) createBucket(name string) {
	e.t.Helper()
	resp := e.do(http.MethodPut, "/"+testLogin+"/buckets/"+name, nil, nil)
	resp.Body.Close()
	require.Equal(e.t, http.StatusNoContent, resp.StatusCode)
}

func (e *env) putObject(bucket, object string, body []byte, headers map[string]string) *http.Response {
	e.t.Helper()
	if headers == nil {
		headers = map[string]string{}
	}
	if _, ok := headers["Content-Type"]; !ok {
		headers["Content-Type"] = "text/plain"
	}
	return e.do(http.MethodPut, objectPath(bucket, object), body, headers)
}

func objectPath(bucket, object string) string {
	return "/" + testLogin + "/buckets/" + bucket + "/objects/" + url.PathEscape(object)
}

func md5b64(data []byte) string {
	sum := md5.Sum(data)
	return base64.StdEncoding.EncodeToString(sum[:])
}

func errorCode(t *testing.T, resp *http.Response) string {
	t.Helper()
	defer resp.Body.Close()
	var body struct {
		Code string `json:"code"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	return body.Code
}

func TestBucketNameValidation(t *testing.T) {
	e := newEnv(t)

	tests := []struct {
		name   string
		status int
	}{
		{name: "a-b", status: http.StatusNoContent},
		{name: "1.2.3.4", status: http.StatusUnprocessableEntity},
		{name: "ab", status: http.StatusUnprocessableEntity},
		{name: "A-B", status: http.StatusUnprocessableEntity},
		{name: "-ab", status: http.StatusUnprocessableEntity},
		{name: "dotted.name.ok", status: http.StatusNoContent},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := e.do(http.MethodPut, "/"+testLogin+"/buckets/"+tt.name, nil, nil)
			resp.Body.Close()
			assert.Equal(t, tt.status, resp.StatusCode)
		})
	}
}

func TestBucketLifecycle(t *testing.T) {
	e := newEnv(t)
	e.createBucket("files")

	resp := e.do(http.MethodHead, "/"+testLogin+"/buckets/files", nil, nil)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get("Last-Modified"))

	// Creating the same bucket again conflicts.
	resp = e.do(http.MethodPut, "/"+testLogin+"/buckets/files", nil, nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, "BucketAlreadyExistsError", errorCode(t, resp))

	resp = e.do(http.MethodDelete, "/"+testLogin+"/buckets/files", nil, nil)
	resp.Body.Close()
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = e.do(http.MethodHead, "/"+testLogin+"/buckets/files", nil, nil)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestOptionsBuckets(t *testing.T) {
	e := newEnv(t)
	resp := e.do(http.MethodOptions, "/"+testLogin+"/buckets", nil, nil)
	resp.Body.Close()
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
}

func TestAuthenticationRequired(t *testing.T) {
	e := newEnv(t)

	req, err := http.NewRequest(http.MethodPut, e.ts.URL+"/"+testLogin+"/buckets/files", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestPutObjectRoundTrip(t *testing.T) {
	e := newEnv(t)
	e.createBucket("files")

	body := []byte("hello world")
	resp := e.putObject("files", "greeting.txt", body, map[string]string{
		"Content-MD5": md5b64(body),
	})
	resp.Body.Close()
	require.Equal(t, http.StatusNoContent, resp.StatusCode)
	etag := resp.Header.Get("Etag")
	assert.NotEmpty(t, etag)
	assert.Equal(t, md5b64(body), resp.Header.Get("Computed-MD5"))
	assert.Equal(t, "2", resp.Header.Get("Durability-Level"))

	// Two storage nodes hold the body.
	copies := 0
	for _, node := range e.sharks {
		if len(node.Paths()) > 0 {
			copies++
		}
	}
	assert.Equal(t, 2, copies)

	get := e.do(http.MethodGet, objectPath("files", "greeting.txt"), nil, nil)
	defer get.Body.Close()
	require.Equal(t, http.StatusOK, get.StatusCode)
	assert.Equal(t, etag, get.Header.Get("Etag"))
	assert.Equal(t, md5b64(body), get.Header.Get("Content-MD5"))
	assert.Equal(t, "text/plain", get.Header.Get("Content-Type"))
	assert.Equal(t, "bytes", get.Header.Get("Accept-Ranges"))
	data, err := io.ReadAll(get.Body)
	require.NoError(t, err)
	assert.Equal(t, body, data)
}

func TestPutObjectCorruptMD5(t *testing.T) {
	e := newEnv(t)
	e.createBucket("files")

	resp := e.putObject("files", "bad.txt", []byte("hello world"), map[string]string{
		"Content-MD5": md5b64([]byte("something else")),
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	code := errorCode(t, resp)
	// The storage node rejects the forwarded digest with its checksum
	// status; either taxonomy entry is a legitimate surface for that.
	assert.Contains(t, []string{"ChecksumError", "ContentMD5MismatchError"}, code)
}

func TestPutZeroByteObject(t *testing.T) {
	e := newEnv(t)
	e.createBucket("files")

	resp := e.putObject("files", "empty", nil, nil)
	resp.Body.Close()
	require.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Equal(t, types.ZeroByteMD5, resp.Header.Get("Computed-MD5"))
	assert.Equal(t, "0", resp.Header.Get("Durability-Level"))

	head := e.do(http.MethodHead, objectPath("files", "empty"), nil, nil)
	head.Body.Close()
	require.Equal(t, http.StatusOK, head.StatusCode)
	assert.Equal(t, types.ZeroByteMD5, head.Header.Get("Content-MD5"))
	assert.Equal(t, "0", head.Header.Get("Content-Length"))

	// No storage node was involved.
	for _, node := range e.sharks {
		assert.Empty(t, node.Paths())
	}
}

func TestPutObjectDurabilityValidation(t *testing.T) {
	e := newEnv(t)
	e.createBucket("files")

	resp := e.putObject("files", "x", []byte("data"), map[string]string{
		"Durability-Level": "99",
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "InvalidDurabilityLevelError", errorCode(t, resp))
}

func TestPutObjectSharksExhausted(t *testing.T) {
	e := newEnv(t)
	e.createBucket("files")
	for _, node := range e.sharks {
		node.RejectPings(true)
	}

	resp := e.putObject("files", "x", []byte("data"), nil)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	assert.Equal(t, "30", resp.Header.Get("Retry-After"))
	assert.Equal(t, "SharksExhaustedError", errorCode(t, resp))
}

func TestGetObjectRange(t *testing.T) {
	e := newEnv(t)
	e.createBucket("files")
	body := []byte("0123456789")
	resp := e.putObject("files", "digits", body, nil)
	resp.Body.Close()
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	partial := e.do(http.MethodGet, objectPath("files", "digits"), nil, map[string]string{
		"Range": "bytes=2-5",
	})
	defer partial.Body.Close()
	require.Equal(t, http.StatusPartialContent, partial.StatusCode)
	data, err := io.ReadAll(partial.Body)
	require.NoError(t, err)
	assert.Equal(t, "2345", string(data))

	bad := e.do(http.MethodGet, objectPath("files", "digits"), nil, map[string]string{
		"Range": "bytes=50-60",
	})
	bad.Body.Close()
	assert.Equal(t, http.StatusRequestedRangeNotSatisfiable, bad.StatusCode)
	assert.NotEmpty(t, bad.Header.Get("Content-Range"))
}

func TestConditionalGet(t *testing.T) {
	e := newEnv(t)
	e.createBucket("files")
	resp := e.putObject("files", "doc", []byte("content"), nil)
	resp.Body.Close()
	etag := resp.Header.Get("Etag")

	notMod := e.do(http.MethodGet, objectPath("files", "doc"), nil, map[string]string{
		"If-None-Match": `"` + etag + `"`,
	})
	defer notMod.Body.Close()
	require.Equal(t, http.StatusNotModified, notMod.StatusCode)
	assert.Equal(t, etag, notMod.Header.Get("Etag"))
	assert.NotEmpty(t, notMod.Header.Get("Last-Modified"))
	data, err := io.ReadAll(notMod.Body)
	require.NoError(t, err)
	assert.Empty(t, data)

	// A non-matching etag serves the body normally.
	ok := e.do(http.MethodGet, objectPath("files", "doc"), nil, map[string]string{
		"If-None-Match": `"different"`,
	})
	defer ok.Body.Close()
	assert.Equal(t, http.StatusOK, ok.StatusCode)
}

func TestConditionalCreate(t *testing.T) {
	e := newEnv(t)
	e.createBucket("files")
	resp := e.putObject("files", "once", []byte("v1"), nil)
	resp.Body.Close()
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	// If-None-Match: * must refuse to overwrite.
	resp = e.putObject("files", "once", []byte("v2"), map[string]string{
		"If-None-Match": "*",
	})
	assert.Equal(t, http.StatusPreconditionFailed, resp.StatusCode)
	assert.Equal(t, "PreconditionFailedError", errorCode(t, resp))

	// If-Match with the right etag allows the overwrite.
	get := e.do(http.MethodHead, objectPath("files", "once"), nil, nil)
	get.Body.Close()
	etag := get.Header.Get("Etag")
	resp = e.putObject("files", "once", []byte("v2"), map[string]string{
		"If-Match": `"` + etag + `"`,
	})
	resp.Body.Close()
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
}

func TestDeleteObject(t *testing.T) {
	e := newEnv(t)
	e.createBucket("files")
	resp := e.putObject("files", "gone", []byte("payload"), nil)
	resp.Body.Close()

	del := e.do(http.MethodDelete, objectPath("files", "gone"), nil, nil)
	del.Body.Close()
	assert.Equal(t, http.StatusNoContent, del.StatusCode)

	get := e.do(http.MethodGet, objectPath("files", "gone"), nil, nil)
	assert.Equal(t, http.StatusNotFound, get.StatusCode)
	assert.Equal(t, "ObjectNotFoundError", errorCode(t, get))
}

func TestDeleteBucketNotEmpty(t *testing.T) {
	e := newEnv(t)
	e.createBucket("files")
	resp := e.putObject("files", "keeper", []byte("data"), nil)
	resp.Body.Close()

	del := e.do(http.MethodDelete, "/"+testLogin+"/buckets/files", nil, nil)
	assert.Equal(t, http.StatusConflict, del.StatusCode)
	assert.Equal(t, "BucketNotEmptyError", errorCode(t, del))

	// The bucket row is untouched.
	head := e.do(http.MethodHead, "/"+testLogin+"/buckets/files", nil, nil)
	head.Body.Close()
	assert.Equal(t, http.StatusOK, head.StatusCode)

	obj := e.do(http.MethodDelete, objectPath("files", "keeper"), nil, nil)
	obj.Body.Close()
	require.Equal(t, http.StatusNoContent, obj.StatusCode)

	del = e.do(http.MethodDelete, "/"+testLogin+"/buckets/files", nil, nil)
	del.Body.Close()
	assert.Equal(t, http.StatusNoContent, del.StatusCode)
}

func TestUpdateMetadata(t *testing.T) {
	e := newEnv(t)
	e.createBucket("files")
	resp := e.putObject("files", "tagged", []byte("data"), map[string]string{
		"m-color": "blue",
	})
	resp.Body.Close()

	upd := e.do(http.MethodPut, objectPath("files", "tagged")+"/metadata", nil, map[string]string{
		"m-color": "green",
		"m-shape": "round",
	})
	upd.Body.Close()
	require.Equal(t, http.StatusNoContent, upd.StatusCode)

	head := e.do(http.MethodHead, objectPath("files", "tagged"), nil, nil)
	head.Body.Close()
	assert.Equal(t, "green", head.Header.Get("m-color"))
	assert.Equal(t, "round", head.Header.Get("m-shape"))
}

func TestUserHeaderSizeLimit(t *testing.T) {
	e := newEnv(t)
	e.createBucket("files")

	big := make([]byte, 5*1024)
	for i := range big {
		big[i] = 'x'
	}
	resp := e.putObject("files", "hdr", []byte("data"), map[string]string{
		"m-big": string(big),
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "MaxHeaderSizeError", errorCode(t, resp))
}

func TestObjectNameValidation(t *testing.T) {
	e := newEnv(t)
	e.createBucket("files")

	long := make([]byte, 1025)
	for i := range long {
		long[i] = 'a'
	}
	resp := e.putObject("files", string(long), []byte("data"), nil)
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	assert.Equal(t, "InvalidObjectNameError", errorCode(t, resp))
}

func TestRequestIDEcho(t *testing.T) {
	e := newEnv(t)
	resp := e.do(http.MethodOptions, "/"+testLogin+"/buckets", nil, map[string]string{
		"X-Request-Id": "req-123",
	})
	resp.Body.Close()
	assert.Equal(t, "req-123", resp.Header.Get("X-Request-Id"))
}

func TestUnknownRouteNotFound(t *testing.T) {
	e := newEnv(t)
	resp := e.do(http.MethodGet, "/nope", nil, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "ResourceNotFoundError", errorCode(t, resp))
}

func TestMissingBucketPrecedesAuthorization(t *testing.T) {
	e := newEnv(t)

	// A caller without access naming a bucket that does not exist sees
	// the same 404 as anyone else.
	resp := e.doAs(peerToken, http.MethodGet, "/"+testLogin+"/buckets/nope/objects", nil, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "BucketNotFoundError", errorCode(t, resp))

	// Once the bucket exists the same caller is refused.
	e.createBucket("files")
	resp = e.doAs(peerToken, http.MethodGet, "/"+testLogin+"/buckets/files/objects", nil, nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Equal(t, "AuthorizationError", errorCode(t, resp))
}

// probeRecorder counts the observability events a test provokes.
type probeRecorder struct {
	clientCloses   atomic.Int32
	socketTimeouts atomic.Int32
}

func (p *probeRecorder) OnClientClose()   { p.clientCloses.Add(1) }
func (p *probeRecorder) OnSocketTimeout() { p.socketTimeouts.Add(1) }
func (p *probeRecorder) OnThrottle()      {}
func (p *probeRecorder) OnHandled()       {}
func (p *probeRecorder) OnQueueEnter(int) {}
func (p *probeRecorder) OnQueueLeave(int) {}

func TestUploadIdleTimeout(t *testing.T) {
	probes := &probeRecorder{}
	e := newEnvWith(t, func(cfg *config.Config, opts *gateway.Options) {
		cfg.Objects.UploadIdleTimeout = 100 * time.Millisecond
		opts.Probes = probes
	})
	e.createBucket("files")

	pr, pw := io.Pipe()
	req, err := http.NewRequest(http.MethodPut, e.ts.URL+objectPath("files", "stalled"), pr)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+testToken)
	req.Header.Set("Content-Type", "text/plain")

	go func() {
		pw.Write([]byte("partial"))
		// Stall without closing; the body watchdog must fire.
	}()
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer pw.CloseWithError(io.ErrClosedPipe)

	assert.Equal(t, http.StatusRequestTimeout, resp.StatusCode)
	assert.Equal(t, "UploadTimeoutError", errorCode(t, resp))

	// The body watchdog surfaces as an upload timeout, not as a socket
	// timeout.
	assert.Zero(t, probes.socketTimeouts.Load())
}

func TestPutObjectNotEnoughSpace(t *testing.T) {
	e := newEnvWith(t, func(cfg *config.Config, _ *gateway.Options) {
		cfg.Storage.NodeCapacity = 4
	})
	e.createBucket("files")

	resp := e.putObject("files", "big", []byte("more than four bytes"), nil)
	assert.Equal(t, http.StatusInsufficientStorage, resp.StatusCode)
	assert.Equal(t, "NotEnoughSpaceError", errorCode(t, resp))
}
