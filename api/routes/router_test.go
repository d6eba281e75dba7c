package routes

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	pkgAuth "github.com/mochkris/procurement-backend/pkg/auth"
	"github.com/mochkris/procurement-backend/pkg/config"
	"github.com/mochkris/procurement-backend/pkg/db/models"
	"github.com/mochkris/procurement-backend/pkg/enums"
	"github.com/mochkris/procurement-backend/pkg/logger"
	"github.com/mochkris/procurement-backend/pkg/outbox"
)

type stubPinger struct{}

func (stubPinger) Ping(context.Context) error {
	return nil
}

type memoryEdgeStore struct {
	mu     sync.Mutex
	values map[string]string
	counts map[string]int64
}

func newMemoryEdgeStore() *memoryEdgeStore {
	return &memoryEdgeStore{values: map[string]string{}, counts: map[string]int64{}}
}

func (m *memoryEdgeStore) Get(_ context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if v, ok := m.values[key]; ok {
		return v, nil
	}
	return "", redis.Nil
}

func (m *memoryEdgeStore) SetNX(_ context.Context, key string, value any, _ time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.values[key]; ok {
		return false, nil
	}
	m.values[key] = fmt.Sprint(value)
	return true, nil
}

func (m *memoryEdgeStore) IdempotencyKey(scope, id string) string {
	return "idem:" + scope + ":" + id
}

func (m *memoryEdgeStore) FixedWindowAllow(_ context.Context, scope string, limit int64, _ time.Duration) (bool, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counts[scope]++
	return m.counts[scope] <= limit, m.counts[scope], nil
}

func (m *memoryEdgeStore) Ping(context.Context) error {
	return nil
}

func testConfig() *config.Config {
	return &config.Config{
		App: config.AppConfig{Env: "test"},
		HTTP: config.HTTPConfig{
			WriteRateLimit:  100,
			WriteRateWindow: time.Minute,
		},
		JWT: config.JWTConfig{
			Secret:            "secret",
			Issuer:            "issuer",
			ExpirationMinutes: 60,
		},
	}
}

func newTestRouter(cfg *config.Config, cache edgeStore) http.Handler {
	logg := logger.New(logger.Options{ServiceName: "test-routing", Level: logger.ParseLevel("debug"), Output: io.Discard})
	return NewRouter(
		cfg,
		logg,
		stubPinger{},
		cache,
		promhttp.HandlerFor(prometheus.NewRegistry(), promhttp.HandlerOpts{}),
		nil, // inventory
		nil, // requisitions
		nil, // purchase orders
		nil, // receiving
		nil, // suppliers
		nil, // documents
		&stubDeadLetters{},
	)
}

type stubDeadLetters struct {
	requeued []uuid.UUID
}

func (s *stubDeadLetters) List(context.Context, outbox.DLQFilter) ([]models.OutboxDLQ, error) {
	return []models.OutboxDLQ{{EventID: uuid.New(), ErrorReason: enums.OutboxDLQReasonMaxAttempts}}, nil
}

func (s *stubDeadLetters) Requeue(_ context.Context, eventID uuid.UUID) (*models.OutboxDLQ, error) {
	s.requeued = append(s.requeued, eventID)
	return &models.OutboxDLQ{EventID: eventID}, nil
}

func buildToken(t *testing.T, cfg *config.Config, role enums.ActorRole) string {
	t.Helper()
	token, err := pkgAuth.MintAccessToken(cfg.JWT, time.Now(), pkgAuth.AccessTokenPayload{
		UserID: uuid.New(),
		Role:   role,
	})
	if err != nil {
		t.Fatalf("mint token: %v", err)
	}
	return token
}

func TestHealthAndMetricsArePublic(t *testing.T) {
	router := newTestRouter(testConfig(), nil)
	for _, path := range []string{"/health/live", "/health/ready", "/metrics"} {
		resp := httptest.NewRecorder()
		router.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, path, nil))
		if resp.Code != http.StatusOK {
			t.Fatalf("%s: expected 200 got %d", path, resp.Code)
		}
	}
}

func TestAPIRejectsMissingJWT(t *testing.T) {
	router := newTestRouter(testConfig(), nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/api/v1/ping", nil))
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token got %d", resp.Code)
	}
}

func TestPingSucceedsWithJWT(t *testing.T) {
	cfg := testConfig()
	router := newTestRouter(cfg, nil)
	req := httptest.NewRequest(http.MethodGet, "/api/v1/ping", nil)
	req.Header.Set("Authorization", "Bearer "+buildToken(t, cfg, enums.ActorRoleDepartment))
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
}

func TestRoleGates(t *testing.T) {
	cfg := testConfig()
	router := newTestRouter(cfg, nil)
	id := uuid.NewString()

	// Allowed callers reach the controller, which rejects the empty payload
	// before touching the service.
	cases := []struct {
		name   string
		role   enums.ActorRole
		path   string
		status int
	}{
		{name: "department cannot approve requisitions", role: enums.ActorRoleDepartment, path: "/api/v1/requisitions/" + id + "/approval", status: http.StatusForbidden},
		{name: "vp approves requisitions", role: enums.ActorRoleVP, path: "/api/v1/requisitions/" + id + "/approval", status: http.StatusBadRequest},
		{name: "admin approves requisitions", role: enums.ActorRoleAdmin, path: "/api/v1/requisitions/" + id + "/approval", status: http.StatusBadRequest},
		{name: "vp cannot raise requisitions", role: enums.ActorRoleVP, path: "/api/v1/requisitions", status: http.StatusForbidden},
		{name: "department raises requisitions", role: enums.ActorRoleDepartment, path: "/api/v1/requisitions", status: http.StatusBadRequest},
		{name: "custodian cannot open purchase orders", role: enums.ActorRoleCustodian, path: "/api/v1/purchase-orders/direct", status: http.StatusForbidden},
		{name: "purchasing opens purchase orders", role: enums.ActorRolePurchasing, path: "/api/v1/purchase-orders/direct", status: http.StatusBadRequest},
		{name: "purchasing cannot receive goods", role: enums.ActorRolePurchasing, path: "/api/v1/purchase-orders/" + id + "/receipt", status: http.StatusForbidden},
		{name: "manager receives goods", role: enums.ActorRoleManager, path: "/api/v1/purchase-orders/" + id + "/receipt", status: http.StatusBadRequest},
		{name: "department cannot adjust stock", role: enums.ActorRoleDepartment, path: "/api/v1/inventory/3/adjust", status: http.StatusForbidden},
		{name: "custodian adjusts stock", role: enums.ActorRoleCustodian, path: "/api/v1/inventory/3/adjust", status: http.StatusBadRequest},
		{name: "department cannot rate suppliers", role: enums.ActorRoleDepartment, path: "/api/v1/suppliers/" + id + "/ratings", status: http.StatusForbidden},
		{name: "manager rates suppliers", role: enums.ActorRoleManager, path: "/api/v1/suppliers/" + id + "/ratings", status: http.StatusBadRequest},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, tc.path, strings.NewReader(`{}`))
			req.Header.Set("Authorization", "Bearer "+buildToken(t, cfg, tc.role))
			resp := httptest.NewRecorder()
			router.ServeHTTP(resp, req)
			if resp.Code != tc.status {
				t.Fatalf("expected %d got %d (%s)", tc.status, resp.Code, resp.Body.String())
			}
		})
	}
}

func TestWriteRateLimitApplies(t *testing.T) {
	cfg := testConfig()
	cfg.HTTP.WriteRateLimit = 1
	router := newTestRouter(cfg, newMemoryEdgeStore())
	token := buildToken(t, cfg, enums.ActorRoleDepartment)

	var codes []int
	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/requisitions", strings.NewReader(`{}`))
		req.Header.Set("Authorization", "Bearer "+token)
		resp := httptest.NewRecorder()
		router.ServeHTTP(resp, req)
		codes = append(codes, resp.Code)
	}
	if codes[0] != http.StatusBadRequest || codes[1] != http.StatusTooManyRequests {
		t.Fatalf("unexpected status sequence %v", codes)
	}
}

func TestIdempotencyReplaysWithinAPI(t *testing.T) {
	cfg := testConfig()
	store := newMemoryEdgeStore()
	router := newTestRouter(cfg, store)
	token := buildToken(t, cfg, enums.ActorRoleDepartment)

	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/requisitions", strings.NewReader(`{}`))
		req.Header.Set("Authorization", "Bearer "+token)
		req.Header.Set("Idempotency-Key", "same")
		resp := httptest.NewRecorder()
		router.ServeHTTP(resp, req)
		if resp.Code != http.StatusBadRequest {
			t.Fatalf("attempt %d: expected 400 got %d", i, resp.Code)
		}
	}
	if len(store.values) != 1 {
		t.Fatalf("expected one stored idempotency record, got %d", len(store.values))
	}
}

func TestDeadLetterAdminIsAdminOnly(t *testing.T) {
	cfg := testConfig()
	router := newTestRouter(cfg, nil)
	eventID := uuid.NewString()

	cases := []struct {
		role   enums.ActorRole
		method string
		path   string
		status int
	}{
		{enums.ActorRoleManager, http.MethodGet, "/api/v1/admin/outbox/dead-letters", http.StatusForbidden},
		{enums.ActorRoleAdmin, http.MethodGet, "/api/v1/admin/outbox/dead-letters?reason=max_attempts", http.StatusOK},
		{enums.ActorRoleAdmin, http.MethodGet, "/api/v1/admin/outbox/dead-letters?reason=bogus", http.StatusBadRequest},
		{enums.ActorRolePurchasing, http.MethodPost, "/api/v1/admin/outbox/dead-letters/" + eventID + "/requeue", http.StatusForbidden},
		{enums.ActorRoleAdmin, http.MethodPost, "/api/v1/admin/outbox/dead-letters/" + eventID + "/requeue", http.StatusAccepted},
		{enums.ActorRoleAdmin, http.MethodPost, "/api/v1/admin/outbox/dead-letters/not-a-uuid/requeue", http.StatusBadRequest},
	}
	for _, tc := range cases {
		req := httptest.NewRequest(tc.method, tc.path, nil)
		req.Header.Set("Authorization", "Bearer "+buildToken(t, cfg, tc.role))
		resp := httptest.NewRecorder()
		router.ServeHTTP(resp, req)
		if resp.Code != tc.status {
			t.Fatalf("%s %s as %s: expected %d got %d (%s)", tc.method, tc.path, tc.role, tc.status, resp.Code, resp.Body.String())
		}
	}
}
