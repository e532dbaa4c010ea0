package testutil

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

// BatchJSON renders payload as [{"result":{"data":{"json":payload}}}]
func BatchJSON(t *testing.T, payload any) []byte {
	t.Helper()
	b, err := json.Marshal([]any{
		map[string]any{"result": map[string]any{"data": map[string]any{"json": payload}}},
	})
	require.NoError(t, err)
	return b
}

// BatchError renders an error member as [{"error":{"json":{...}}}]
func BatchError(t *testing.T, code, message string) []byte {
	t.Helper()
	b, err := json.Marshal([]any{
		map[string]any{"error": map[string]any{"json": map[string]any{
			"message": message,
			"code":    -32001,
			"data":    map[string]any{"code": code},
		}}},
	})
	require.NoError(t, err)
	return b
}

// RPCCall is one request received by an RPCServer
type RPCCall struct {
	Method    string
	Procedure string
	Auth      string
	Input     json.RawMessage
}

// RPCServer serves batched procedures from handlers keyed by procedure name
// and records every call. Unknown procedures answer 404.
type RPCServer struct {
	*httptest.Server

	t        *testing.T
	mu       sync.Mutex
	calls    []RPCCall
	handlers map[string]http.HandlerFunc
}

// NewRPCServer starts a server mounted at /api/trpc
func NewRPCServer(t *testing.T) *RPCServer {
	t.Helper()
	s := &RPCServer{t: t, handlers: make(map[string]http.HandlerFunc)}
	s.Server = httptest.NewServer(http.HandlerFunc(s.serve))
	t.Cleanup(s.Close)
	return s
}

// Handle registers a handler for proc, replacing any previous one
func (s *RPCServer) Handle(proc string, h http.HandlerFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers[proc] = h
}

// Reply registers a handler answering proc with a batch-json payload
func (s *RPCServer) Reply(proc string, payload any) {
	body := BatchJSON(s.t, payload)
	s.Handle(proc, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(body)
	})
}

// Calls returns the recorded calls
func (s *RPCServer) Calls() []RPCCall {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]RPCCall, len(s.calls))
	copy(out, s.calls)
	return out
}

// CallsTo returns the recorded calls of one procedure
func (s *RPCServer) CallsTo(proc string) []RPCCall {
	var out []RPCCall
	for _, c := range s.Calls() {
		if c.Procedure == proc {
			out = append(out, c)
		}
	}
	return out
}

func (s *RPCServer) serve(w http.ResponseWriter, r *http.Request) {
	proc := strings.TrimPrefix(r.URL.Path, "/api/trpc/")

	var raw []byte
	if r.Method == http.MethodGet {
		raw = []byte(r.URL.Query().Get("input"))
	} else {
		raw, _ = io.ReadAll(r.Body)
	}
	var batch map[string]struct {
		JSON json.RawMessage `json:"json"`
	}
	_ = json.Unmarshal(raw, &batch)

	s.mu.Lock()
	s.calls = append(s.calls, RPCCall{
		Method:    r.Method,
		Procedure: proc,
		Auth:      r.Header.Get("Authorization"),
		Input:     batch["0"].JSON,
	})
	h := s.handlers[proc]
	s.mu.Unlock()

	if h == nil {
		http.NotFound(w, r)
		return
	}
	h(w, r)
}
