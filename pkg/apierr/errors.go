package apierr

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
)

// Error is the externally visible error taxonomy of the gateway. Every
// failure surfaced to a client is one of these values: a stable code, a
// human message, the HTTP status it maps to, and optional extra response
// headers (Retry-After, Content-Range). The original upstream error, if
// any, is preserved as the cause.
type Error struct {
	Code       string
	Message    string
	Status     int
	RetryAfter int               // seconds; 0 means no Retry-After header
	Headers    map[string]string // extra response headers
	cause      error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap exposes the upstream cause for errors.Is / errors.As.
func (e *Error) Unwrap() error {
	return e.cause
}

// WithCause attaches the upstream error that produced this failure.
func (e *Error) WithCause(err error) *Error {
	e.cause = err
	return e
}

// WithHeader attaches an extra response header (e.g. Content-Range on 416).
func (e *Error) WithHeader(name, value string) *Error {
	if e.Headers == nil {
		e.Headers = make(map[string]string, 1)
	}
	e.Headers[name] = value
	return e
}

// body is the wire shape of an error response.
type body struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// WriteJSON writes the error to w as {"code","message"} with the mapped
// status and any extra headers. It must be called before any body bytes
// have been written.
func (e *Error) WriteJSON(w http.ResponseWriter) {
	h := w.Header()
	h.Set("Content-Type", "application/json")
	if e.RetryAfter > 0 {
		h.Set("Retry-After", strconv.Itoa(e.RetryAfter))
	}
	for name, value := range e.Headers {
		h.Set(name, value)
	}
	w.WriteHeader(e.Status)
	_ = json.NewEncoder(w).Encode(body{Code: e.Code, Message: e.Message})
}

func newf(code string, status int, format string, args ...any) *Error {
	return &Error{Code: code, Status: status, Message: fmt.Sprintf(format, args...)}
}

// Client-input errors.

func BadRequest(format string, args ...any) *Error {
	return newf("BadRequestError", http.StatusBadRequest, format, args...)
}

func InvalidBucketName(name string) *Error {
	return newf("InvalidBucketNameError", http.StatusUnprocessableEntity,
		"%q is not a valid bucket name", name)
}

func InvalidObjectName(name string) *Error {
	return newf("InvalidObjectNameError", http.StatusUnprocessableEntity,
		"%q is not a valid object name", name)
}

func InvalidParameter(format string, args ...any) *Error {
	return newf("InvalidParameterError", http.StatusUnprocessableEntity, format, args...)
}

func InvalidDurabilityLevel(min, max int) *Error {
	return newf("InvalidDurabilityLevelError", http.StatusBadRequest,
		"durability-level must be between %d and %d", min, max)
}

func ContentLengthRequired() *Error {
	return newf("ContentLengthRequiredError", http.StatusLengthRequired,
		"Content-Length or Transfer-Encoding: chunked is required")
}

func MaxContentLengthExceeded(max int64) *Error {
	return newf("MaxContentLengthError", http.StatusRequestEntityTooLarge,
		"request has exceeded the maximum allowed size of %d bytes", max)
}

func ContentMD5Mismatch(expected, actual string) *Error {
	return newf("ContentMD5MismatchError", http.StatusBadRequest,
		"Content-MD5 invalid: expected %s but computed %s", expected, actual)
}

func UserHeadersTooLarge(max int) *Error {
	return newf("MaxHeaderSizeError", http.StatusBadRequest,
		"user metadata headers exceed %d bytes", max)
}

// Authentication / authorization.

func AuthenticationRequired() *Error {
	return newf("AuthenticationRequiredError", http.StatusUnauthorized,
		"authentication is required")
}

func Authorization(login, action string) *Error {
	return newf("AuthorizationError", http.StatusForbidden,
		"%s is not allowed to %s", login, action)
}

func AccountNotFound(login string) *Error {
	return newf("AccountDoesNotExistError", http.StatusForbidden,
		"account %q does not exist", login)
}

// Not-found.

func BucketNotFound(name string) *Error {
	return newf("BucketNotFoundError", http.StatusNotFound, "bucket %q was not found", name)
}

func ObjectNotFound(name string) *Error {
	return newf("ObjectNotFoundError", http.StatusNotFound, "object %q was not found", name)
}

func ResourceNotFound(path string) *Error {
	return newf("ResourceNotFoundError", http.StatusNotFound, "%s was not found", path)
}

// Conflict / precondition.

func BucketAlreadyExists(name string) *Error {
	return newf("BucketAlreadyExistsError", http.StatusConflict,
		"bucket %q already exists", name)
}

func BucketNotEmpty(name string) *Error {
	return newf("BucketNotEmptyError", http.StatusConflict,
		"bucket %q is not empty", name)
}

func ConcurrentRequest() *Error {
	return newf("ConcurrentRequestError", http.StatusConflict,
		"the request conflicted with a concurrent update; retry")
}

func PreconditionFailed(format string, args ...any) *Error {
	return newf("PreconditionFailedError", http.StatusPreconditionFailed, format, args...)
}

// Range.

func RequestedRangeNotSatisfiable() *Error {
	return newf("RequestedRangeNotSatisfiableError", http.StatusRequestedRangeNotSatisfiable,
		"the requested range cannot be satisfied")
}

// Streaming / timeout.

func ChecksumError(expected, actual string) *Error {
	return newf("ChecksumError", http.StatusBadRequest,
		"checksum sent to the storage node (%s) does not match the computed checksum (%s)",
		expected, actual)
}

func UploadTimeout() *Error {
	return newf("UploadTimeoutError", http.StatusRequestTimeout,
		"the request timed out waiting for data")
}

func UploadAbandoned() *Error {
	return newf("UploadAbandonedError", 499, "the client abandoned the upload")
}

// Overload / unavailable / internal.

func SharksExhausted() *Error {
	e := newf("InternalError", http.StatusServiceUnavailable,
		"no storage node set could be fully established")
	e.Code = "SharksExhaustedError"
	e.RetryAfter = 30
	return e
}

func Throttled() *Error {
	return newf("ThrottledError", http.StatusServiceUnavailable,
		"the server is overloaded; try again later")
}

func ServiceUnavailable() *Error {
	return newf("ServiceUnavailableError", http.StatusServiceUnavailable,
		"the service is temporarily unavailable")
}

func NotEnoughSpace(size int64) *Error {
	return newf("NotEnoughSpaceError", http.StatusInsufficientStorage,
		"not enough free space for %d bytes", size)
}

func Internal(format string, args ...any) *Error {
	return newf("InternalError", http.StatusInternalServerError, format, args...)
}

// From returns err as an *Error, collapsing anything unrecognized to an
// InternalError with the original preserved as cause.
func From(err error) *Error {
	if err == nil {
		return nil
	}
	if e, ok := err.(*Error); ok {
		return e
	}
	return Internal("an unexpected error occurred").WithCause(err)
}
