package gateway

import (
	"errors"

	"github.com/burrowlabs/burrow/pkg/apierr"
	"github.com/burrowlabs/burrow/pkg/shard"
)

// translate maps an error from the metadata tier to the externally
// visible taxonomy. bucket and object name the resources of the failing
// request so not-found errors read well.
func translate(err error, bucket, object string) *apierr.Error {
	if err == nil {
		return nil
	}

	var ae *apierr.Error
	if errors.As(err, &ae) {
		return ae
	}

	var re *shard.RemoteError
	if !errors.As(err, &re) {
		return apierr.Internal("metadata request failed").WithCause(err)
	}

	switch re.Name {
	case shard.ErrNameBucketNotFound:
		return apierr.BucketNotFound(bucket).WithCause(re)
	case shard.ErrNameBucketAlreadyExists:
		return apierr.BucketAlreadyExists(bucket).WithCause(re)
	case shard.ErrNameBucketNotEmpty:
		return apierr.BucketNotEmpty(bucket).WithCause(re)
	case shard.ErrNameObjectNotFound:
		return apierr.ObjectNotFound(object).WithCause(re)
	case shard.ErrNamePreconditionFailed:
		return apierr.PreconditionFailed("%s", re.Message).WithCause(re)
	case shard.ErrNameEtagConflict, shard.ErrNameUniqueAttribute:
		return apierr.ConcurrentRequest().WithCause(re)
	case shard.ErrNameNoDatabasePeers:
		// The tier reports overload through the error context.
		if re.Context["name"] == "OverloadedError" {
			return apierr.ServiceUnavailable().WithCause(re)
		}
		return apierr.Internal("no database peers available").WithCause(re)
	case shard.ErrNameThrottled:
		return apierr.Throttled().WithCause(re)
	default:
		return apierr.Internal("metadata request failed").WithCause(re)
	}
}
