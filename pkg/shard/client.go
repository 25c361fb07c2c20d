package shard

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/burrowlabs/burrow/pkg/log"
	"github.com/burrowlabs/burrow/pkg/types"
)

// Error names returned by the metadata tier. The gateway translates these
// into its externally visible taxonomy.
const (
	ErrNameBucketNotFound      = "BucketNotFound"
	ErrNameBucketAlreadyExists = "BucketAlreadyExists"
	ErrNameBucketNotEmpty      = "BucketNotEmpty"
	ErrNameObjectNotFound      = "ObjectNotFound"
	ErrNamePreconditionFailed  = "PreconditionFailed"
	ErrNameEtagConflict        = "EtagConflict"
	ErrNameUniqueAttribute     = "UniqueAttributeError"
	ErrNameNoDatabasePeers     = "NoDatabasePeers"
	ErrNameThrottled           = "Throttled"
)

// RemoteError is an error returned by a metadata shard, identified by its
// name field.
type RemoteError struct {
	Name    string            `json:"name"`
	Message string            `json:"message"`
	Context map[string]string `json:"context,omitempty"`
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("shard error %s: %s", e.Name, e.Message)
}

// IsRemote reports whether err wraps a RemoteError with the given name.
func IsRemote(err error, name string) bool {
	var re *RemoteError
	return errors.As(err, &re) && re.Name == name
}

// Client is a long-lived RPC client to one physical metadata node. The
// wire protocol is JSON over HTTP: one POST per operation, errors carried
// as {"name","message","context"} bodies. Connections are pooled and
// reconnect transparently underneath net/http.
type Client struct {
	pnode  string
	base   string
	http   *http.Client
	logger zerolog.Logger
}

// NewClient creates a client for the given pnode. The pnode identifier is
// either a host:port or a full http(s) URL.
func NewClient(pnode string) *Client {
	base := pnode
	if !strings.HasPrefix(base, "http://") && !strings.HasPrefix(base, "https://") {
		base = "http://" + base
	}
	return &Client{
		pnode:  pnode,
		base:   strings.TrimSuffix(base, "/"),
		logger: log.WithShard(pnode),
		http: &http.Client{
			Timeout: 60 * time.Second,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 16,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
}

// PNode returns the pnode identifier this client talks to.
func (c *Client) PNode() string {
	return c.pnode
}

func (c *Client) call(ctx context.Context, method string, args, out any) error {
	body, err := json.Marshal(args)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+"/rpc/"+method, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Warn().Err(err).Str("method", method).Msg("shard request failed")
		return fmt.Errorf("shard %s unreachable: %w", c.pnode, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		remote := &RemoteError{}
		if jerr := json.Unmarshal(data, remote); jerr != nil || remote.Name == "" {
			return fmt.Errorf("shard %s returned %d: %s", c.pnode, resp.StatusCode, strings.TrimSpace(string(data)))
		}
		c.logger.Debug().Str("method", method).Str("error", remote.Name).Msg("shard rejected the call")
		return remote
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("shard %s sent an unparseable response: %w", c.pnode, err)
	}
	return nil
}

// bucketArgs is the wire shape of bucket-level calls.
type bucketArgs struct {
	Owner     string `json:"owner"`
	Name      string `json:"name"`
	ID        string `json:"id,omitempty"`
	Vnode     uint64 `json:"vnode"`
	RequestID string `json:"request_id,omitempty"`
}

// ObjectArgs identifies one object row for get/delete calls.
type ObjectArgs struct {
	Owner      string            `json:"owner"`
	BucketID   string            `json:"bucket_id"`
	Name       string            `json:"name"`
	Vnode      uint64            `json:"vnode"`
	Conditions *types.Conditions `json:"conditions,omitempty"`
	RequestID  string            `json:"request_id,omitempty"`
}

// CreateObjectArgs carries a full object record to commit.
type CreateObjectArgs struct {
	ObjectArgs
	ID                   string            `json:"id"`
	ContentLength        int64             `json:"content_length"`
	ContentMD5           string            `json:"content_md5"`
	ContentType          string            `json:"content_type"`
	Headers              map[string]string `json:"headers,omitempty"`
	Sharks               []types.Shark     `json:"sharks"`
	StorageLayoutVersion int               `json:"storage_layout_version"`
}

// UpdateObjectArgs carries replacement metadata for an existing object.
type UpdateObjectArgs struct {
	ObjectArgs
	ContentType string            `json:"content_type,omitempty"`
	Headers     map[string]string `json:"headers,omitempty"`
}

// ListArgs pages one vnode's records.
type ListArgs struct {
	Owner     string `json:"owner"`
	BucketID  string `json:"bucket_id,omitempty"`
	Vnode     uint64 `json:"vnode"`
	Prefix    string `json:"prefix,omitempty"`
	Marker    string `json:"marker,omitempty"`
	Limit     int    `json:"limit"`
	RequestID string `json:"request_id,omitempty"`
}

type listReply struct {
	Entries []types.ListEntry `json:"entries"`
}

// GetBucket fetches a bucket row.
func (c *Client) GetBucket(ctx context.Context, owner, name string, vnode uint64) (*types.Bucket, error) {
	var bucket types.Bucket
	err := c.call(ctx, "getbucket", bucketArgs{Owner: owner, Name: name, Vnode: vnode}, &bucket)
	if err != nil {
		return nil, err
	}
	return &bucket, nil
}

// CreateBucket creates a bucket row with the given id.
func (c *Client) CreateBucket(ctx context.Context, owner, name, id string, vnode uint64) (*types.Bucket, error) {
	var bucket types.Bucket
	err := c.call(ctx, "createbucket", bucketArgs{Owner: owner, Name: name, ID: id, Vnode: vnode}, &bucket)
	if err != nil {
		return nil, err
	}
	return &bucket, nil
}

// DeleteBucket removes a bucket row.
func (c *Client) DeleteBucket(ctx context.Context, owner, name string, vnode uint64) error {
	return c.call(ctx, "deletebucket", bucketArgs{Owner: owner, Name: name, Vnode: vnode}, nil)
}

// ListBuckets pages the bucket rows on one vnode.
func (c *Client) ListBuckets(ctx context.Context, args ListArgs) ([]types.ListEntry, error) {
	var reply listReply
	if err := c.call(ctx, "listbuckets", args, &reply); err != nil {
		return nil, err
	}
	return reply.Entries, nil
}

// GetObject fetches an object row, evaluating any forwarded conditions.
func (c *Client) GetObject(ctx context.Context, args ObjectArgs) (*types.Object, error) {
	var obj types.Object
	if err := c.call(ctx, "getobject", args, &obj); err != nil {
		return nil, err
	}
	return &obj, nil
}

// CreateObject commits object metadata. It is called only after every
// storage node has acknowledged the body.
func (c *Client) CreateObject(ctx context.Context, args CreateObjectArgs) (*types.Object, error) {
	var obj types.Object
	if err := c.call(ctx, "createobject", args, &obj); err != nil {
		return nil, err
	}
	return &obj, nil
}

// UpdateObject replaces the mutable metadata of an object row.
func (c *Client) UpdateObject(ctx context.Context, args UpdateObjectArgs) (*types.Object, error) {
	var obj types.Object
	if err := c.call(ctx, "updateobject", args, &obj); err != nil {
		return nil, err
	}
	return &obj, nil
}

// DeleteObject removes an object row and returns the removed record.
func (c *Client) DeleteObject(ctx context.Context, args ObjectArgs) (*types.Object, error) {
	var obj types.Object
	if err := c.call(ctx, "deleteobject", args, &obj); err != nil {
		return nil, err
	}
	return &obj, nil
}

// ListObjects pages the object rows of one bucket on one vnode.
func (c *Client) ListObjects(ctx context.Context, args ListArgs) ([]types.ListEntry, error) {
	var reply listReply
	if err := c.call(ctx, "listobjects", args, &reply); err != nil {
		return nil, err
	}
	return reply.Entries, nil
}
