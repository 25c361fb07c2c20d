package types

import "time"

// Conditions are the parsed If-* request headers. Etag lists have weak
// validators and quotes already stripped; "*" is a valid member.
//
// The gateway evaluates IfNoneMatch and IfModifiedSince itself on reads
// (converting 200 to 304); IfMatch and IfUnmodifiedSince are forwarded to
// the metadata tier, which fails the operation with PreconditionFailed.
type Conditions struct {
	IfMatch           []string   `json:"if_match,omitempty"`
	IfNoneMatch       []string   `json:"if_none_match,omitempty"`
	IfModifiedSince   *time.Time `json:"if_modified_since,omitempty"`
	IfUnmodifiedSince *time.Time `json:"if_unmodified_since,omitempty"`
}

// Empty reports whether no condition is set.
func (c *Conditions) Empty() bool {
	return c == nil ||
		(len(c.IfMatch) == 0 && len(c.IfNoneMatch) == 0 &&
			c.IfModifiedSince == nil && c.IfUnmodifiedSince == nil)
}

// ShardSubset returns only the conditions the metadata tier evaluates,
// or nil if none apply.
func (c *Conditions) ShardSubset() *Conditions {
	if c == nil {
		return nil
	}
	sub := &Conditions{
		IfMatch:           c.IfMatch,
		IfNoneMatch:       c.IfNoneMatch,
		IfUnmodifiedSince: c.IfUnmodifiedSince,
	}
	if sub.Empty() {
		return nil
	}
	return sub
}
