package command

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
)

// mockServer is a test API server keyed by "METHOD /path".
type mockServer struct {
	*httptest.Server
	mu       sync.Mutex
	handlers map[string]http.HandlerFunc
	requests []recorded
}

type recorded struct {
	Method string
	Path   string
	Query  string
	Auth   string
	Body   map[string]any
}

func newMockServer(t *testing.T) *mockServer {
	t.Helper()
	m := &mockServer{handlers: make(map[string]http.HandlerFunc)}
	m.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := recorded{Method: r.Method, Path: r.URL.EscapedPath(), Query: r.URL.RawQuery, Auth: r.Header.Get("Authorization")}
		_ = json.NewDecoder(r.Body).Decode(&rec.Body)
		m.mu.Lock()
		m.requests = append(m.requests, rec)
		h, ok := m.handlers[r.Method+" "+rec.Path]
		m.mu.Unlock()
		if !ok {
			errorResponse(w, http.StatusNotFound, "AS-DEF-4040", "definition not found", nil)
			return
		}
		h(w, r)
	}))
	t.Cleanup(m.Close)
	return m
}

func (m *mockServer) handle(pattern string, h http.HandlerFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[pattern] = h
}

func (m *mockServer) ok(pattern string, data any) {
	m.handle(pattern, func(w http.ResponseWriter, r *http.Request) {
		jsonResponse(w, http.StatusOK, data)
	})
}

func (m *mockServer) last() recorded {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.requests) == 0 {
		return recorded{}
	}
	return m.requests[len(m.requests)-1]
}

// jsonResponse writes a success envelope.
func jsonResponse(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{"code": "OK", "message": "Success", "data": data})
}

// errorResponse writes an error envelope.
func errorResponse(w http.ResponseWriter, status int, code, message string, details any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{"code": code, "message": message, "details": details})
}

// run executes the CLI against server with an isolated config file.
func run(t *testing.T, server *mockServer, args ...string) (string, error) {
	t.Helper()
	return runWithInput(t, server, "", args...)
}

func runWithInput(t *testing.T, server *mockServer, input string, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	app := App()
	app.Writer, app.ErrWriter = &out, &out
	app.Reader = strings.NewReader(input)
	full := []string{"autosave-cli", "--config", filepath.Join(t.TempDir(), "cli.yaml")}
	if server != nil {
		full = append(full, "--server", server.URL)
	}
	err := app.Run(append(full, args...))
	return out.String(), err
}
