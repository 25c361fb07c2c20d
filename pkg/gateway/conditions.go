package gateway

import (
	"net/http"
	"strings"
	"time"

	"github.com/burrowlabs/burrow/pkg/apierr"
	"github.com/burrowlabs/burrow/pkg/types"
)

// parseConditions builds the request's conditional context from the If-*
// headers. Etag lists are comma separated; weak validators and quotes are
// stripped. An unparseable HTTP date is a client error.
func parseConditions(h http.Header) (*types.Conditions, error) {
	cond := &types.Conditions{
		IfMatch:     parseEtagList(h.Get("If-Match")),
		IfNoneMatch: parseEtagList(h.Get("If-None-Match")),
	}

	var err error
	if cond.IfModifiedSince, err = parseHTTPDate(h.Get("If-Modified-Since")); err != nil {
		return nil, err
	}
	if cond.IfUnmodifiedSince, err = parseHTTPDate(h.Get("If-Unmodified-Since")); err != nil {
		return nil, err
	}
	return cond, nil
}

func parseEtagList(value string) []string {
	if value == "" {
		return nil
	}
	var etags []string
	for _, part := range strings.Split(value, ",") {
		etag := strings.TrimSpace(part)
		etag = strings.TrimPrefix(etag, "W/")
		etag = strings.Trim(etag, `"`)
		if etag != "" {
			etags = append(etags, etag)
		}
	}
	return etags
}

func parseHTTPDate(value string) (*time.Time, error) {
	if value == "" {
		return nil, nil
	}
	t, err := http.ParseTime(value)
	if err != nil {
		return nil, apierr.BadRequest("invalid conditional date %q", value)
	}
	return &t, nil
}

// readForward returns the conditions the metadata tier evaluates on a
// read: If-Match and If-Unmodified-Since. If-None-Match and
// If-Modified-Since stay at the gateway, which turns a match into 304.
func readForward(cond *types.Conditions) *types.Conditions {
	if cond == nil {
		return nil
	}
	sub := &types.Conditions{
		IfMatch:           cond.IfMatch,
		IfUnmodifiedSince: cond.IfUnmodifiedSince,
	}
	if sub.Empty() {
		return nil
	}
	return sub
}

// notModified evaluates the gateway-side read conditions against the
// fetched object.
func notModified(cond *types.Conditions, obj *types.Object) bool {
	if cond == nil {
		return false
	}
	for _, etag := range cond.IfNoneMatch {
		if etag == "*" || etag == obj.ID {
			return true
		}
	}
	if cond.IfModifiedSince != nil && len(cond.IfNoneMatch) == 0 {
		// Last-Modified has second granularity on the wire.
		if !obj.Modified.Truncate(time.Second).After(*cond.IfModifiedSince) {
			return true
		}
	}
	return false
}
