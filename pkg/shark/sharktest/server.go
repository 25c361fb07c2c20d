package sharktest

import (
	"bytes"
	"crypto/md5"
	"encoding/base64"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/burrowlabs/burrow/pkg/shark"
	"github.com/burrowlabs/burrow/pkg/types"
)

// Server is an in-memory storage node. Bodies are stored by path; PUT
// responses carry the Computed-MD5 the gateway compares against its own
// digest. Fault modes cover the failure handling the gateway implements.
type Server struct {
	mu     sync.Mutex
	bodies map[string][]byte

	failPuts   int // respond with this status instead of storing
	rejectPing bool

	srv *httptest.Server
}

// New starts an in-memory storage node.
func New() *Server {
	s := &Server{bodies: make(map[string][]byte)}
	s.srv = httptest.NewServer(http.HandlerFunc(s.handle))
	return s
}

// Close shuts the node down.
func (s *Server) Close() {
	s.srv.Close()
}

// Shark returns the node's identity, with the test server address as the
// storage id.
func (s *Server) Shark() types.Shark {
	u, _ := url.Parse(s.srv.URL)
	return types.Shark{Datacenter: "test-dc", StorageID: u.Host}
}

// FailPutsWith makes subsequent PUTs respond with status and store
// nothing. Pass 0 to restore normal behavior.
func (s *Server) FailPutsWith(status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failPuts = status
}

// RejectPings makes the node report unhealthy, failing candidate-set
// probes.
func (s *Server) RejectPings(reject bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rejectPing = reject
}

// Body returns the stored body for a path.
func (s *Server) Body(path string) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	body, ok := s.bodies[path]
	return body, ok
}

// Paths returns every stored path, sorted.
func (s *Server) Paths() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	paths := make([]string, 0, len(s.bodies))
	for p := range s.bodies {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

// Seed stores a body directly.
func (s *Server) Seed(path string, body []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bodies[path] = body
}

func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path == "/ping" {
		s.mu.Lock()
		reject := s.rejectPing
		s.mu.Unlock()
		if reject {
			http.Error(w, "unhealthy", http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
		return
	}

	switch r.Method {
	case http.MethodPut:
		s.handlePut(w, r)
	case http.MethodGet:
		s.handleGet(w, r)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (s *Server) handlePut(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	failStatus := s.failPuts
	s.mu.Unlock()
	if failStatus != 0 {
		io.Copy(io.Discard, r.Body)
		w.WriteHeader(failStatus)
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "truncated body", http.StatusBadRequest)
		return
	}

	sum := md5.Sum(body)
	computed := base64.StdEncoding.EncodeToString(sum[:])

	// A forwarded Content-MD5 is verified against what actually arrived.
	if expected := r.Header.Get("Content-MD5"); expected != "" && expected != computed {
		w.Header().Set(shark.HeaderComputedMD5, computed)
		w.WriteHeader(shark.StatusChecksumError)
		return
	}

	s.mu.Lock()
	s.bodies[r.URL.Path] = body
	s.mu.Unlock()

	w.Header().Set(shark.HeaderComputedMD5, computed)
	w.WriteHeader(http.StatusCreated)
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	body, ok := s.bodies[r.URL.Path]
	s.mu.Unlock()
	if !ok {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	// ServeContent supplies Range, 206, and 416 handling.
	name := r.URL.Path[strings.LastIndex(r.URL.Path, "/")+1:]
	http.ServeContent(w, r, name, time.Time{}, bytes.NewReader(body))
}
