package pushnotifier

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

// mockAPI is a fake PushNotifier API that counts hits per "METHOD /path"
type mockAPI struct {
	sync.Mutex
	server *httptest.Server
	hits   map[string]int
	routes map[string]http.HandlerFunc
}

func newMockAPI(t *testing.T) *mockAPI {
	m := &mockAPI{
		hits:   make(map[string]int),
		routes: make(map[string]http.HandlerFunc),
	}
	m.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := r.Method + " " + r.URL.Path
		m.Lock()
		m.hits[key]++
		handler, ok := m.routes[key]
		m.Unlock()

		if !ok {
			t.Errorf("Unexpected call: %s", key)
			w.WriteHeader(http.StatusNotFound)
			w.Write([]byte(`{"status":"error","message":"not found"}`))
			return
		}
		handler(w, r)
	}))
	t.Cleanup(m.server.Close)
	return m
}

func (m *mockAPI) handle(method string, path string, handler http.HandlerFunc) {
	m.Lock()
	defer m.Unlock()
	m.routes[method+" "+path] = handler
}

func (m *mockAPI) respond(method string, path string, status int, body string) {
	m.handle(method, path, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		w.Write([]byte(body))
	})
}

func (m *mockAPI) count(method string, path string) int {
	m.Lock()
	defer m.Unlock()
	return m.hits[method+" "+path]
}

func (m *mockAPI) total() int {
	m.Lock()
	defer m.Unlock()
	total := 0
	for _, n := range m.hits {
		total += n
	}
	return total
}

func (m *mockAPI) config() *Config {
	return &Config{
		Package:  "com.example.app",
		APIToken: "api-token",
		BaseURL:  m.server.URL + "/v2",
	}
}

func connectedTransport(t *testing.T, config *Config) *Transport {
	transport := NewTransport(config, zerolog.Nop())
	if err := transport.Connect(context.Background()); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	t.Cleanup(func() {
		transport.Disconnect(context.Background())
	})
	return transport
}

func newTestSession(t *testing.T, m *mockAPI) *Session {
	config := m.config()
	return NewSession(connectedTransport(t, config), config, zerolog.Nop())
}

// fixedClock pins the session's notion of now
func fixedClock(s *Session, now time.Time) {
	s.now = func() time.Time { return now }
}
