package middleware

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"

	"github.com/delgadoservices/fieldstock-backend/pkg/config"
	pkgerrors "github.com/delgadoservices/fieldstock-backend/pkg/errors"
)

type fakeStore struct {
	data map[string]string
	gets int
	sets int
}

func newFakeStore() *fakeStore {
	return &fakeStore{data: make(map[string]string)}
}

func (f *fakeStore) Get(_ context.Context, key string) (string, error) {
	f.gets++
	if v, ok := f.data[key]; ok {
		return v, nil
	}
	return "", redis.Nil
}

func (f *fakeStore) SetNX(_ context.Context, key string, value any, _ time.Duration) (bool, error) {
	f.sets++
	if _, ok := f.data[key]; ok {
		return false, nil
	}
	str, _ := value.(string)
	f.data[key] = str
	return true, nil
}

func (f *fakeStore) IdempotencyKey(scope, id string) string {
	return fmt.Sprintf("fake:%s:%s", scope, id)
}

func (f *fakeStore) Del(_ context.Context, keys ...string) error {
	for _, key := range keys {
		delete(f.data, key)
	}
	return nil
}

func TestRouteTTLSelection(t *testing.T) {
	cfg := config.IdempotencyConfig{}
	tuned := config.IdempotencyConfig{TTL: 2 * time.Hour}

	tests := []struct {
		name string
		cfg  config.IdempotencyConfig
		path string
		want time.Duration
		ok   bool
	}{
		{"create reservation", cfg, "/api/v1/jobs/8d6a/reservations", defaultIdempotencyTTL, true},
		{"allocate", cfg, "/api/v1/reservations/8d6a/allocate", defaultIdempotencyTTL, true},
		{"allocate tuned ttl", tuned, "/api/v1/reservations/8d6a/allocate", 2 * time.Hour, true},
		{"stock adjustment", cfg, "/api/v1/items/8d6a/adjustments", defaultIdempotencyTTL, true},
		{"bill", cfg, "/api/v1/reservations/8d6a/bill", criticalIdempotencyTTL, true},
		{"override keeps critical ttl", tuned, "/api/v1/reservations/8d6a/override", criticalIdempotencyTTL, true},
		{"read is exempt", cfg, "/api/v1/reservations/8d6a", 0, false},
	}

	for _, tt := range tests {
		ttl, ok := routeTTL(http.MethodPost, tt.path, tt.cfg)
		if ok != tt.ok {
			t.Fatalf("%s: expected ok=%v got %v", tt.name, tt.ok, ok)
		}
		if ok && ttl != tt.want {
			t.Fatalf("%s: expected ttl=%v got %v", tt.name, tt.want, ttl)
		}
	}
}

// groupRouter mounts the middleware the same way the real router does, via
// r.Use inside a route group. At that point chi has not resolved the leaf
// route yet, so the guard must work from the URL path alone.
func groupRouter(store *fakeStore, handler http.HandlerFunc) http.Handler {
	r := chi.NewRouter()
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(Idempotency(store, config.IdempotencyConfig{}, nil))
		r.Post("/reservations/{id}/allocate", handler)
	})
	return r
}

func TestIdempotencyGuardEngagesInsideRouteGroup(t *testing.T) {
	store := newFakeStore()
	handlerCalled := false
	router := groupRouter(store, func(w http.ResponseWriter, r *http.Request) {
		handlerCalled = true
		w.WriteHeader(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/reservations/123/allocate", strings.NewReader(`{"requested":5}`))
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 without idempotency key, got %d", resp.Code)
	}
	if handlerCalled {
		t.Fatal("handler ran without an idempotency key")
	}
}

func TestIdempotencyGuardConsultsStoreInsideRouteGroup(t *testing.T) {
	store := newFakeStore()
	var calls int
	router := groupRouter(store, func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"data":{"ok":true}}`))
	})

	send := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/reservations/123/allocate", strings.NewReader(`{"requested":5}`))
		req.Header.Set("Idempotency-Key", "alloc-1")
		resp := httptest.NewRecorder()
		router.ServeHTTP(resp, req)
		return resp
	}

	first := send()
	if first.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", first.Code)
	}
	if store.gets != 1 || store.sets != 1 {
		t.Fatalf("store gets=%d sets=%d after first request, want 1/1", store.gets, store.sets)
	}

	replay := send()
	if replay.Code != http.StatusOK {
		t.Fatalf("expected replayed 200 got %d", replay.Code)
	}
	if calls != 1 {
		t.Fatalf("handler executed %d times, expected 1", calls)
	}
	if strings.TrimSpace(replay.Body.String()) != `{"data":{"ok":true}}` {
		t.Fatalf("expected stored body got %s", replay.Body.String())
	}
	if replay.Header().Get("Content-Type") != "application/json" {
		t.Fatal("expected content-type preserved on replay")
	}
}

func TestIdempotencyMiddlewareDetectsBodyChange(t *testing.T) {
	store := newFakeStore()
	mw := Idempotency(store, config.IdempotencyConfig{}, nil)
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/reservations/123/bill", strings.NewReader(`{}`))
	req.Header.Set("Idempotency-Key", "bill-1")
	mw(handler).ServeHTTP(httptest.NewRecorder(), req)

	replay := httptest.NewRequest(http.MethodPost, "/api/v1/reservations/123/bill", strings.NewReader(`{"note":"changed"}`))
	replay.Header.Set("Idempotency-Key", "bill-1")
	resp := httptest.NewRecorder()
	mw(handler).ServeHTTP(resp, replay)

	if resp.Code != http.StatusConflict {
		t.Fatalf("expected 409 got %d", resp.Code)
	}
	var payload struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &payload); err != nil {
		t.Fatalf("parse error response: %v", err)
	}
	if payload.Error.Code != string(pkgerrors.CodeIdempotency) {
		t.Fatalf("expected error code %s got %s", pkgerrors.CodeIdempotency, payload.Error.Code)
	}
}

func TestIdempotencyScopedPerActor(t *testing.T) {
	store := newFakeStore()
	var calls int
	router := groupRouter(store, func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusOK)
	})

	for _, actor := range []string{"0c7a44f9-9a2b-4f36-9d86-7a43cbe07f10", "5f2d1b7e-3c44-49c1-8a77-2f0a4f9b6a21"} {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/reservations/123/allocate", strings.NewReader(`{"requested":5}`))
		req.Header.Set("Idempotency-Key", "shared-key")
		req.Header.Set("X-Actor-Id", actor)
		resp := httptest.NewRecorder()
		ActorContext(nil)(router).ServeHTTP(resp, req)
		if resp.Code != http.StatusOK {
			t.Fatalf("actor %s: expected 200 got %d", actor, resp.Code)
		}
	}
	if calls != 2 {
		t.Fatalf("same key under different actors must not collide, handler ran %d times", calls)
	}
}
