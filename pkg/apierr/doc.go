/*
Package apierr defines the stable, externally visible error taxonomy of the
gateway.

Every failure a client can observe is an *Error value carrying a stable
string code, a human-readable message, and the HTTP status the code maps
to. Upstream failures from the metadata shards or the storage nodes are
translated into this taxonomy at the gateway boundary (see pkg/gateway);
anything unrecognized collapses to InternalError with the original error
preserved as the cause for logging.

The wire shape of an error response is always:

	{"code": "<stable string>", "message": "<human text>"}

with the HTTP status, plus Retry-After and any preserved headers such as
Content-Range on 416 responses.
*/
package apierr
