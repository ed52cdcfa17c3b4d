package middleware

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"fixitnow/internal/domain"
)

// memoryCmdable keeps idempotency entries in a map. Only Get and Set are implemented.
type memoryCmdable struct {
	redis.Cmdable

	mu      sync.Mutex
	entries map[string]string
	getErr  error
}

func newMemoryCmdable() *memoryCmdable {
	return &memoryCmdable{entries: make(map[string]string)}
}

func (m *memoryCmdable) Get(_ context.Context, key string) *redis.StringCmd {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return redis.NewStringResult("", m.getErr)
	}
	v, ok := m.entries[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(v, nil)
}

func (m *memoryCmdable) Set(_ context.Context, key string, value any, _ time.Duration) *redis.StatusCmd {
	m.mu.Lock()
	defer m.mu.Unlock()
	switch v := value.(type) {
	case []byte:
		m.entries[key] = string(v)
	case string:
		m.entries[key] = v
	}
	return redis.NewStatusResult("OK", nil)
}

type idempotencyServer struct {
	engine *gin.Engine
	calls  int
	status int
}

func newIdempotencyServer(store redis.Cmdable) *idempotencyServer {
	gin.SetMode(gin.TestMode)
	s := &idempotencyServer{engine: gin.New(), status: http.StatusOK}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	s.engine.Use(func(c *gin.Context) {
		c.Set(actorKey, domain.Actor{ID: c.GetHeader("X-Test-Actor"), Role: domain.RoleTechnician})
		c.Next()
	})
	s.engine.Use(IdempotencyMiddleware(store, logger))
	handle := func(c *gin.Context) {
		s.calls++
		c.JSON(s.status, gin.H{"call": s.calls, "id": c.Param("id")})
	}
	s.engine.POST("/v1/bookings/:id/accept", handle)
	s.engine.POST("/v1/bookings/:id/reject", handle)
	s.engine.GET("/v1/bookings/:id", handle)
	return s
}

func (s *idempotencyServer) send(method, path, actorID, key string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	req.Header.Set("X-Test-Actor", actorID)
	if key != "" {
		req.Header.Set(idempotencyHeader, key)
	}
	w := httptest.NewRecorder()
	s.engine.ServeHTTP(w, req)
	return w
}

func TestIdempotencyCacheKey_Scoping(t *testing.T) {
	base := idempotencyCacheKey("tech-1", http.MethodPost, "/v1/bookings/:id/accept", "b-1", "k-1")

	others := map[string]string{
		"actor":   idempotencyCacheKey("tech-2", http.MethodPost, "/v1/bookings/:id/accept", "b-1", "k-1"),
		"method":  idempotencyCacheKey("tech-1", http.MethodPut, "/v1/bookings/:id/accept", "b-1", "k-1"),
		"route":   idempotencyCacheKey("tech-1", http.MethodPost, "/v1/bookings/:id/reject", "b-1", "k-1"),
		"booking": idempotencyCacheKey("tech-1", http.MethodPost, "/v1/bookings/:id/accept", "b-2", "k-1"),
		"key":     idempotencyCacheKey("tech-1", http.MethodPost, "/v1/bookings/:id/accept", "b-1", "k-2"),
	}
	for name, k := range others {
		if k == base {
			t.Errorf("%s: expected a distinct cache key, both are %q", name, k)
		}
	}
	if want := "idempotency:tech-1:POST /v1/bookings/:id/accept:b-1:k-1"; base != want {
		t.Errorf("expected %q, got %q", want, base)
	}
}

func TestIdempotencyMiddleware_ReplaysSameRequest(t *testing.T) {
	s := newIdempotencyServer(newMemoryCmdable())

	first := s.send(http.MethodPost, "/v1/bookings/b-1/accept", "tech-1", "k-1")
	second := s.send(http.MethodPost, "/v1/bookings/b-1/accept", "tech-1", "k-1")

	if s.calls != 1 {
		t.Fatalf("expected the handler to run once, ran %d times", s.calls)
	}
	if second.Header().Get("Idempotent-Replayed") != "true" {
		t.Error("expected the replay header on the repeat")
	}
	if second.Code != first.Code || second.Body.String() != first.Body.String() {
		t.Errorf("expected %d %s replayed, got %d %s", first.Code, first.Body, second.Code, second.Body)
	}
}

func TestIdempotencyMiddleware_ScopesKeys(t *testing.T) {
	s := newIdempotencyServer(newMemoryCmdable())

	s.send(http.MethodPost, "/v1/bookings/b-1/accept", "tech-1", "k-1")
	s.send(http.MethodPost, "/v1/bookings/b-1/accept", "tech-2", "k-1")
	s.send(http.MethodPost, "/v1/bookings/b-2/accept", "tech-1", "k-1")
	s.send(http.MethodPost, "/v1/bookings/b-1/reject", "tech-1", "k-1")

	if s.calls != 4 {
		t.Errorf("expected every scope to reach the handler, got %d calls", s.calls)
	}
}

func TestIdempotencyMiddleware_Passthrough(t *testing.T) {
	store := newMemoryCmdable()
	s := newIdempotencyServer(store)

	s.send(http.MethodGet, "/v1/bookings/b-1", "tech-1", "k-1")
	s.send(http.MethodGet, "/v1/bookings/b-1", "tech-1", "k-1")
	s.send(http.MethodPost, "/v1/bookings/b-1/accept", "tech-1", "")
	s.send(http.MethodPost, "/v1/bookings/b-1/accept", "tech-1", "")

	if s.calls != 4 {
		t.Errorf("expected reads and unkeyed writes to run every time, got %d calls", s.calls)
	}
	if len(store.entries) != 0 {
		t.Errorf("expected nothing cached, got %v", store.entries)
	}
}

func TestIdempotencyMiddleware_ServerErrorsNotCached(t *testing.T) {
	s := newIdempotencyServer(newMemoryCmdable())
	s.status = http.StatusServiceUnavailable

	s.send(http.MethodPost, "/v1/bookings/b-1/accept", "tech-1", "k-1")
	s.status = http.StatusOK
	w := s.send(http.MethodPost, "/v1/bookings/b-1/accept", "tech-1", "k-1")

	if s.calls != 2 || w.Code != http.StatusOK {
		t.Errorf("expected the retry to run, got %d calls and status %d", s.calls, w.Code)
	}
}

func TestIdempotencyMiddleware_StoreDown(t *testing.T) {
	store := newMemoryCmdable()
	store.getErr = errors.New("dial tcp 127.0.0.1:6379: connect: connection refused")
	s := newIdempotencyServer(store)

	for i := 0; i < 2; i++ {
		if w := s.send(http.MethodPost, "/v1/bookings/b-1/accept", "tech-1", "k-1"); w.Code != http.StatusOK {
			t.Fatalf("attempt %d: expected 200, got %d", i, w.Code)
		}
	}
	if s.calls != 2 {
		t.Errorf("expected the handler to run without replay, got %d calls", s.calls)
	}
}
