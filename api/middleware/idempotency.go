package middleware

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/redis/go-redis/v9"

	"github.com/mochkris/procurement-backend/api/responses"
	pkgerrors "github.com/mochkris/procurement-backend/pkg/errors"
	"github.com/mochkris/procurement-backend/pkg/logger"
	pkgredis "github.com/mochkris/procurement-backend/pkg/redis"
)

const (
	idempotencyHeader = "Idempotency-Key"

	defaultIdempotencyTTL  = 24 * time.Hour
	criticalIdempotencyTTL = 7 * 24 * time.Hour
)

// idempotentRoute matches both chi patterns ("{id}") and concrete paths, one
// segment per "*".
type idempotentRoute struct {
	method string
	shape  string
	ttl    time.Duration
}

// Stock-moving routes keep their keys for a week so a retried receipt never
// credits inventory twice.
var idempotentRoutes = []idempotentRoute{
	{http.MethodPost, "/api/v1/inventory", defaultIdempotencyTTL},
	{http.MethodPost, "/api/v1/inventory/provision", defaultIdempotencyTTL},
	{http.MethodPost, "/api/v1/inventory/*/adjust", criticalIdempotencyTTL},
	{http.MethodPost, "/api/v1/requisitions", defaultIdempotencyTTL},
	{http.MethodPost, "/api/v1/requisitions/*/approval", defaultIdempotencyTTL},
	{http.MethodPost, "/api/v1/requisitions/*/fulfillment", criticalIdempotencyTTL},
	{http.MethodPost, "/api/v1/purchase-orders/from-requisition", defaultIdempotencyTTL},
	{http.MethodPost, "/api/v1/purchase-orders/direct", defaultIdempotencyTTL},
	{http.MethodPost, "/api/v1/purchase-orders/*/approval", defaultIdempotencyTTL},
	{http.MethodPost, "/api/v1/purchase-orders/*/resubmit", defaultIdempotencyTTL},
	{http.MethodPost, "/api/v1/purchase-orders/*/ready-for-delivery", defaultIdempotencyTTL},
	{http.MethodPost, "/api/v1/purchase-orders/*/receipt", criticalIdempotencyTTL},
	{http.MethodPost, "/api/v1/purchase-orders/*/complete", criticalIdempotencyTTL},
	{http.MethodPost, "/api/v1/suppliers", defaultIdempotencyTTL},
	{http.MethodPost, "/api/v1/suppliers/*/ratings", defaultIdempotencyTTL},
}

func idempotencyTTL(method, pattern string) (time.Duration, bool) {
	if pattern == "" {
		return 0, false
	}
	for _, route := range idempotentRoutes {
		if route.method != method {
			continue
		}
		if ok, _ := path.Match(route.shape, pattern); ok {
			return route.ttl, true
		}
	}
	return 0, false
}

type storedResponse struct {
	Status      int    `json:"status"`
	ContentType string `json:"content_type,omitempty"`
	Body        []byte `json:"body"`
	RequestHash string `json:"request_hash"`
}

func (s storedResponse) replay(w http.ResponseWriter) {
	if s.ContentType != "" {
		w.Header().Set("Content-Type", s.ContentType)
	}
	w.Header().Set("Idempotent-Replayed", "true")
	w.WriteHeader(s.Status)
	_, _ = w.Write(s.Body)
}

// Idempotency replays the stored response when a request on a listed route repeats
// its Idempotency-Key with the same body. Requests without the header pass through,
// and 5xx responses are never stored so the client can retry them.
func Idempotency(store pkgredis.IdempotencyStore, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ttl, covered := idempotencyTTL(r.Method, routePattern(r))
			clientKey := strings.TrimSpace(r.Header.Get(idempotencyHeader))
			if !covered || store == nil || clientKey == "" {
				next.ServeHTTP(w, r)
				return
			}
			ctx := r.Context()

			body, err := io.ReadAll(r.Body)
			if err != nil {
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "read request body"))
				return
			}
			r.Body = io.NopCloser(bytes.NewReader(body))

			sum := sha256.Sum256(body)
			hash := hex.EncodeToString(sum[:])
			key := store.IdempotencyKey(idempotencyScope(r), clientKey)

			raw, err := store.Get(ctx, key)
			switch {
			case errors.Is(err, redis.Nil):
			case err != nil:
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check idempotency"))
				return
			case raw != "":
				var prior storedResponse
				if err := json.Unmarshal([]byte(raw), &prior); err != nil {
					responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode idempotency record"))
					return
				}
				if prior.RequestHash != hash {
					responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeIdempotency, "idempotency key reused with different request body"))
					return
				}
				prior.replay(w)
				return
			}

			var captured bytes.Buffer
			ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
			ww.Tee(&captured)
			next.ServeHTTP(ww, r)

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			if status >= http.StatusInternalServerError {
				return
			}

			payload, err := json.Marshal(storedResponse{
				Status:      status,
				ContentType: ww.Header().Get("Content-Type"),
				Body:        captured.Bytes(),
				RequestHash: hash,
			})
			if err != nil {
				if logg != nil {
					logg.Error(ctx, "idempotency.encode_failed", err)
				}
				return
			}
			if _, err := store.SetNX(ctx, key, string(payload), ttl); err != nil && logg != nil {
				logg.Error(ctx, "idempotency.persist_failed", err)
			}
		})
	}
}

// idempotencyScope keys records per caller and concrete path so two users can
// reuse the same client key.
func idempotencyScope(r *http.Request) string {
	return strings.Join([]string{
		UserIDFromContext(r.Context()),
		RoleFromContext(r.Context()),
		r.Method,
		r.URL.Path,
	}, "|")
}

func routePattern(r *http.Request) string {
	if r == nil {
		return ""
	}
	// Inside a mounted group chi only knows the partial pattern ("/api/v1/*").
	if rc := chi.RouteContext(r.Context()); rc != nil {
		if pattern := rc.RoutePattern(); pattern != "" && !strings.HasSuffix(pattern, "*") {
			return pattern
		}
	}
	return strings.TrimSuffix(r.URL.Path, "/")
}
