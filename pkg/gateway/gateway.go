package gateway

import (
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/burrowlabs/burrow/pkg/apierr"
	"github.com/burrowlabs/burrow/pkg/auth"
	"github.com/burrowlabs/burrow/pkg/config"
	"github.com/burrowlabs/burrow/pkg/log"
	"github.com/burrowlabs/burrow/pkg/metrics"
	"github.com/burrowlabs/burrow/pkg/ring"
	"github.com/burrowlabs/burrow/pkg/shard"
	"github.com/burrowlabs/burrow/pkg/shark"
	"github.com/burrowlabs/burrow/pkg/throttle"
)

// Options wires the gateway's collaborators together.
type Options struct {
	Config  *config.Config
	Ring    *ring.Ring
	Shards  *shard.Pool
	Agent   *shark.Agent
	Chooser shark.Chooser
	Auth    auth.Authenticator
	Authz   auth.Authorizer
	Probes  Probes
}

// Gateway is the front-door request engine. Every handler captures the
// current ring snapshot at entry and uses it for the whole request.
type Gateway struct {
	cfg      *config.Config
	ring     *ring.Ring
	shards   *shard.Pool
	agent    *shark.Agent
	chooser  shark.Chooser
	auth     auth.Authenticator
	authz    auth.Authorizer
	throttle *throttle.Throttle
	probes   Probes
	logger   zerolog.Logger
}

// New creates a gateway.
func New(opts Options) *Gateway {
	probes := opts.Probes
	if probes == nil {
		probes = NopProbes{}
	}
	return &Gateway{
		cfg:     opts.Config,
		ring:    opts.Ring,
		shards:  opts.Shards,
		agent:   opts.Agent,
		chooser: opts.Chooser,
		auth:    opts.Auth,
		authz:   opts.Authz,
		throttle: throttle.New(opts.Config.Throttle.Slots, opts.Config.Throttle.Queue,
			throttleObserver{probes: probes}),
		probes: probes,
		logger: log.WithComponent("gateway"),
	}
}

// Handler returns the front-door HTTP handler. Object names are a single
// path segment: a literal slash in a name must be percent-encoded.
func (g *Gateway) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("OPTIONS /{login}/buckets", g.handle("optionsbuckets", g.optionsBuckets))
	mux.HandleFunc("GET /{login}/buckets", g.handle("listbuckets", g.listBuckets))
	mux.HandleFunc("PUT /{login}/buckets/{bucket}", g.handle("putbucket", g.putBucket))
	mux.HandleFunc("HEAD /{login}/buckets/{bucket}", g.handle("headbucket", g.headBucket))
	mux.HandleFunc("DELETE /{login}/buckets/{bucket}", g.handle("deletebucket", g.deleteBucket))
	mux.HandleFunc("GET /{login}/buckets/{bucket}/objects", g.handle("listobjects", g.listObjects))
	mux.HandleFunc("PUT /{login}/buckets/{bucket}/objects/{object}", g.handle("putobject", g.putObject))
	mux.HandleFunc("GET /{login}/buckets/{bucket}/objects/{object}", g.handle("getobject", g.getObject))
	mux.HandleFunc("HEAD /{login}/buckets/{bucket}/objects/{object}", g.handle("headobject", g.headObject))
	mux.HandleFunc("DELETE /{login}/buckets/{bucket}/objects/{object}", g.handle("deleteobject", g.deleteObject))
	mux.HandleFunc("PUT /{login}/buckets/{bucket}/objects/{object}/metadata", g.handle("putmetadata", g.putMetadata))

	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		apierr.ResourceNotFound(r.URL.Path).WriteJSON(w)
	})
	return mux
}

// handlerFunc is one routed operation. A returned error is translated to
// the wire; if response headers were already sent the connection is
// aborted instead.
type handlerFunc func(w http.ResponseWriter, r *http.Request, req *requestInfo) error

func (g *Gateway) handle(operation string, fn handlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		reqID := r.Header.Get("X-Request-Id")
		if reqID == "" {
			reqID = uuid.NewString()
		}
		w.Header().Set("X-Request-Id", reqID)

		sw := &statusWriter{ResponseWriter: w}
		defer g.complete(operation, r, sw, start)

		release, ok := g.throttle.Acquire(r.Context())
		if !ok {
			apierr.Throttled().WriteJSON(sw)
			return
		}
		defer func() {
			release()
			metrics.SlotsInUse.Set(float64(g.throttle.InUse()))
		}()
		metrics.SlotsInUse.Set(float64(g.throttle.InUse()))

		req := &requestInfo{
			id:        reqID,
			operation: operation,
			snap:      g.ring.Snapshot(),
			logger: log.WithReqID(reqID).With().
				Str("operation", operation).Logger(),
		}

		if err := fn(sw, r, req); err != nil {
			ae := apierr.From(err)
			if ae.Status >= 500 {
				req.logger.Error().Err(ae).Msg("request failed")
			} else {
				req.logger.Debug().Err(ae).Msg("request failed")
			}
			if sw.wroteHeader {
				// Too late for an error body; drop the connection so the
				// client sees a truncated response.
				panic(http.ErrAbortHandler)
			}
			ae.WriteJSON(sw)
		}
	}
}

func (g *Gateway) complete(operation string, r *http.Request, sw *statusWriter, start time.Time) {
	status := sw.status
	if status == 0 {
		status = http.StatusOK
	}

	total := time.Since(start)
	latency := total
	if !sw.firstByte.IsZero() {
		latency = sw.firstByte.Sub(start)
	}

	metrics.RequestsCompleted.WithLabelValues(operation, r.Method, strconv.Itoa(status)).Inc()
	metrics.RequestLatency.WithLabelValues(operation).Observe(float64(latency.Milliseconds()))
	metrics.RequestTime.WithLabelValues(operation).Observe(float64(total.Milliseconds()))

	g.logger.Info().
		Str("method", r.Method).
		Str("path", r.URL.Path).
		Str("operation", operation).
		Int("status", status).
		Dur("duration", total).
		Msg("request completed")
}

// statusWriter records the response status and time to first byte.
type statusWriter struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
	firstByte   time.Time
}

func (w *statusWriter) WriteHeader(status int) {
	if !w.wroteHeader {
		w.status = status
		w.wroteHeader = true
		w.firstByte = time.Now()
	}
	w.ResponseWriter.WriteHeader(status)
}

func (w *statusWriter) Write(p []byte) (int, error) {
	if !w.wroteHeader {
		w.WriteHeader(http.StatusOK)
	}
	return w.ResponseWriter.Write(p)
}

func (w *statusWriter) Flush() {
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Unwrap exposes the underlying writer to http.ResponseController.
func (w *statusWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}
