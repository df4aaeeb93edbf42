// Package openroutertest provides a fake OpenRouter chat-completions server for tests.
package openroutertest

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/mapachekurt/llm-council/internal/openrouter"
)

// Reply describes how the fake server answers one request.
type Reply struct {
	Status    int             // defaults to 200
	Content   string          // choices[0].message.content
	Reasoning json.RawMessage // top-level "reasoning", omitted when nil
	Body      string          // raw body, overrides Content/Reasoning when set
	Delay     time.Duration   // wait before answering, aborted when the client goes away
}

// Text answers with the given content.
func Text(content string) Reply {
	return Reply{Status: http.StatusOK, Content: content}
}

// Fail answers with the given status code.
func Fail(status int) Reply {
	return Reply{Status: status, Body: `{"error":{"message":"upstream failure"}}`}
}

// Responder decides the reply for a decoded request.
type Responder func(req openrouter.Request) Reply

// Call is one recorded request.
type Call struct {
	Request openrouter.Request
	Header  http.Header
}

// Server is a fake chat-completions endpoint backed by httptest.
type Server struct {
	*httptest.Server

	respond Responder

	mu    sync.Mutex
	calls []Call
}

// NewServer starts a fake server and closes it when the test ends.
func NewServer(t testing.TB, respond Responder) *Server {
	t.Helper()
	s := &Server{respond: respond}
	s.Server = httptest.NewServer(http.HandlerFunc(s.handle))
	t.Cleanup(s.Close)
	return s
}

// Client returns an openrouter client pointed at the fake server.
func (s *Server) Client(opts ...openrouter.Option) *openrouter.Client {
	return openrouter.New(append([]openrouter.Option{openrouter.WithEndpoint(s.URL)}, opts...)...)
}

// Calls returns every recorded request in arrival order.
func (s *Server) Calls() []Call {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Call, len(s.calls))
	copy(out, s.calls)
	return out
}

// CallsFor returns the recorded requests addressed to model.
func (s *Server) CallsFor(model string) []Call {
	var out []Call
	for _, c := range s.Calls() {
		if c.Request.Model == model {
			out = append(out, c)
		}
	}
	return out
}

// Prompt returns the single user message of a recorded call.
func (c Call) Prompt() string {
	if len(c.Request.Messages) == 0 {
		return ""
	}
	return c.Request.Messages[0].Content
}

func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	var req openrouter.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad request body", http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	s.calls = append(s.calls, Call{Request: req, Header: r.Header.Clone()})
	s.mu.Unlock()

	reply := s.respond(req)
	if reply.Delay > 0 {
		select {
		case <-time.After(reply.Delay):
		case <-r.Context().Done():
			return
		}
	}

	status := reply.Status
	if status == 0 {
		status = http.StatusOK
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if reply.Body != "" {
		_, _ = w.Write([]byte(reply.Body))
		return
	}

	body := map[string]any{
		"choices": []map[string]any{
			{"message": map[string]any{"role": "assistant", "content": reply.Content}},
		},
	}
	if reply.Reasoning != nil {
		body["reasoning"] = reply.Reasoning
	}
	_ = json.NewEncoder(w).Encode(body)
}
