package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrors "github.com/mochkris/procurement-backend/pkg/errors"
)

type fakeStore struct {
	data   map[string]string
	ttls   map[string]time.Duration
	getErr error
}

func newFakeStore() *fakeStore {
	return &fakeStore{data: map[string]string{}, ttls: map[string]time.Duration{}}
}

func (f *fakeStore) Get(_ context.Context, key string) (string, error) {
	if f.getErr != nil {
		return "", f.getErr
	}
	if v, ok := f.data[key]; ok {
		return v, nil
	}
	return "", redis.Nil
}

func (f *fakeStore) SetNX(_ context.Context, key string, value any, ttl time.Duration) (bool, error) {
	if _, ok := f.data[key]; ok {
		return false, nil
	}
	f.data[key], _ = value.(string)
	f.ttls[key] = ttl
	return true, nil
}

func (f *fakeStore) IdempotencyKey(scope, id string) string {
	return fmt.Sprintf("fake:%s:%s", scope, id)
}

func requestWithPattern(method, url, pattern string, body io.Reader) *http.Request {
	req := httptest.NewRequest(method, url, body)
	rc := chi.NewRouteContext()
	rc.RoutePatterns = []string{pattern}
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rc))
}

func receiptRequest(key, body string) *http.Request {
	req := requestWithPattern(http.MethodPost, "/api/v1/purchase-orders/42/receipt", "/api/v1/purchase-orders/{id}/receipt", strings.NewReader(body))
	if key != "" {
		req.Header.Set(idempotencyHeader, key)
	}
	return req
}

func TestIdempotencyTTL(t *testing.T) {
	cases := []struct {
		method  string
		pattern string
		want    time.Duration
		ok      bool
	}{
		{http.MethodPost, "/api/v1/purchase-orders/{id}/receipt", criticalIdempotencyTTL, true},
		{http.MethodPost, "/api/v1/purchase-orders/{id}/complete", criticalIdempotencyTTL, true},
		{http.MethodPost, "/api/v1/requisitions/{id}/fulfillment", criticalIdempotencyTTL, true},
		{http.MethodPost, "/api/v1/inventory/{productId}/adjust", criticalIdempotencyTTL, true},
		{http.MethodPost, "/api/v1/inventory/9/adjust", criticalIdempotencyTTL, true},
		{http.MethodPost, "/api/v1/requisitions", defaultIdempotencyTTL, true},
		{http.MethodPost, "/api/v1/purchase-orders/{id}/approval", defaultIdempotencyTTL, true},
		{http.MethodPost, "/api/v1/suppliers/{id}/ratings", defaultIdempotencyTTL, true},
		{http.MethodGet, "/api/v1/purchase-orders/{id}", 0, false},
		{http.MethodPatch, "/api/v1/inventory/{productId}", 0, false},
		{http.MethodPost, "/api/v1/purchase-orders/1/2/receipt", 0, false},
		{http.MethodPost, "", 0, false},
	}
	for _, tc := range cases {
		t.Run(tc.method+" "+tc.pattern, func(t *testing.T) {
			ttl, ok := idempotencyTTL(tc.method, tc.pattern)
			assert.Equal(t, tc.ok, ok)
			assert.Equal(t, tc.want, ttl)
		})
	}
}

func TestIdempotencyPassesThroughWithoutHeader(t *testing.T) {
	store := newFakeStore()
	calls := 0
	handler := Idempotency(store, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusCreated)
	}))

	for i := 0; i < 2; i++ {
		resp := httptest.NewRecorder()
		handler.ServeHTTP(resp, receiptRequest("", `{"damaged":false}`))
		assert.Equal(t, http.StatusCreated, resp.Code)
	}
	assert.Equal(t, 2, calls)
	assert.Empty(t, store.data)
}

func TestIdempotencyReplaysStoredResponse(t *testing.T) {
	store := newFakeStore()
	calls := 0
	handler := Idempotency(store, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		body, _ := io.ReadAll(r.Body)
		assert.JSONEq(t, `{"damaged":false}`, string(body))
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusAccepted)
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))

	first := httptest.NewRecorder()
	handler.ServeHTTP(first, receiptRequest("abc", `{"damaged":false}`))
	require.Equal(t, http.StatusAccepted, first.Code)
	assert.Empty(t, first.Header().Get("Idempotent-Replayed"))

	replay := httptest.NewRecorder()
	handler.ServeHTTP(replay, receiptRequest("abc", `{"damaged":false}`))
	assert.Equal(t, http.StatusAccepted, replay.Code)
	assert.Equal(t, "application/json", replay.Header().Get("Content-Type"))
	assert.Equal(t, "true", replay.Header().Get("Idempotent-Replayed"))
	assert.JSONEq(t, `{"ok":true}`, replay.Body.String())
	assert.Equal(t, 1, calls)

	for _, ttl := range store.ttls {
		assert.Equal(t, criticalIdempotencyTTL, ttl)
	}
}

func TestIdempotencyRejectsChangedBody(t *testing.T) {
	store := newFakeStore()
	handler := Idempotency(store, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	handler.ServeHTTP(httptest.NewRecorder(), receiptRequest("xyz", `{"damaged":false}`))

	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, receiptRequest("xyz", `{"damaged":true}`))
	require.Equal(t, http.StatusConflict, resp.Code)

	var payload struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &payload))
	assert.Equal(t, string(pkgerrors.CodeIdempotency), payload.Error.Code)
}

func TestIdempotencyDoesNotStoreServerErrors(t *testing.T) {
	store := newFakeStore()
	calls := 0
	handler := Idempotency(store, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))

	for i := 0; i < 2; i++ {
		req := requestWithPattern(http.MethodPost, "/api/v1/requisitions/7/fulfillment", "/api/v1/requisitions/{id}/fulfillment", strings.NewReader(""))
		req.Header.Set(idempotencyHeader, "retry-me")
		handler.ServeHTTP(httptest.NewRecorder(), req)
	}
	assert.Equal(t, 2, calls)
	assert.Len(t, store.data, 1)
}

func TestIdempotencyStoreFailureIsDependencyError(t *testing.T) {
	store := newFakeStore()
	store.getErr = errors.New("connection refused")
	handler := Idempotency(store, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler must not run when the store is unreachable")
	}))

	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, receiptRequest("abc", `{}`))
	assert.Equal(t, http.StatusServiceUnavailable, resp.Code)
}

func TestRoutePatternFallsBackToPathInsideGroups(t *testing.T) {
	req := requestWithPattern(http.MethodPost, "/api/v1/purchase-orders/42/receipt", "/api/v1/*", nil)
	assert.Equal(t, "/api/v1/purchase-orders/42/receipt", routePattern(req))
	_, ok := idempotencyTTL(http.MethodPost, routePattern(req))
	assert.True(t, ok)
}
