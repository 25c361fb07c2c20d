package types

import (
	"time"
)

// ZeroByteMD5 is the base64 MD5 digest of an empty body. Zero-byte objects
// are committed with this digest and an empty sharks list.
const ZeroByteMD5 = "1B2M2Y8AsgTpgAmY7PhCfg=="

// Storage path layout versions understood by the data plane.
const (
	StorageLayoutV1 = 1
	StorageLayoutV2 = 2

	// CurrentStorageLayout is the layout assigned to new writes.
	CurrentStorageLayout = StorageLayoutV2
)

// Bucket is a named, owner-scoped flat keyspace of objects.
type Bucket struct {
	ID    string    `json:"id"`
	Name  string    `json:"name"`
	Owner string    `json:"owner"`
	Mtime time.Time `json:"mtime"`
	Type  string    `json:"type"` // always "bucket"
}

// Object is the metadata record for a stored blob. The ID doubles as the
// externally visible etag.
type Object struct {
	ID                   string            `json:"id"`
	Name                 string            `json:"name"`
	NameHash             string            `json:"name_hash"` // md5 hex of Name
	BucketID             string            `json:"bucket_id"`
	Owner                string            `json:"owner"`
	ContentLength        int64             `json:"content_length"`
	ContentMD5           string            `json:"content_md5"` // base64
	ContentType          string            `json:"content_type"`
	Headers              map[string]string `json:"headers,omitempty"`
	Sharks               []Shark           `json:"sharks"`
	StorageLayoutVersion int               `json:"storage_layout_version"`
	Created              time.Time         `json:"created"`
	Modified             time.Time         `json:"modified"`
	Roles                []string          `json:"roles,omitempty"`
}

// Shark identifies one storage node holding a copy of an object body.
type Shark struct {
	Datacenter string `json:"datacenter"`
	StorageID  string `json:"storage_id"`
}

// Durability returns the number of body copies committed for the object.
// Zero-byte objects carry no sharks and report durability 0.
func (o *Object) Durability() int {
	return len(o.Sharks)
}

// Entry types emitted on a listing stream.
const (
	EntryTypeBucket  = "bucket"
	EntryTypeObject  = "bucketobject"
	EntryTypeGroup   = "group"
	EntryTypeMessage = "message"
)

// ListEntry is one NDJSON record on a listing stream. Bucket and object
// entries carry their metadata fields; group entries carry only a name and
// the marker listing resumes from; the terminal message carries Finished.
type ListEntry struct {
	Name          string     `json:"name,omitempty"`
	Type          string     `json:"type"`
	ID            string     `json:"etag,omitempty"`
	ContentLength int64      `json:"content_length,omitempty"`
	ContentMD5    string     `json:"content_md5,omitempty"`
	ContentType   string     `json:"content_type,omitempty"`
	Mtime         *time.Time `json:"mtime,omitempty"`
	NextMarker    string     `json:"next_marker,omitempty"`
	Finished      bool       `json:"finished,omitempty"`
}

// Account identifies an owner known to the authentication collaborator.
type Account struct {
	Login string `json:"login"`
	UUID  string `json:"uuid"`
}

// Caller is the authenticated principal attached to a request.
type Caller struct {
	Account Account  `json:"account"`
	Roles   []string `json:"roles,omitempty"`
}
