package middleware

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/mochkris/procurement-backend/pkg/logger"
)

func TestRequestIDEchoesOrMints(t *testing.T) {
	var seen string
	handler := RequestID(nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = RequestIDFromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(requestIDHeader, "trace-abc")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	require.Equal(t, "trace-abc", seen)
	require.Equal(t, "trace-abc", rec.Header().Get(requestIDHeader))

	for _, bad := range []string{"", "has space", strings.Repeat("a", maxRequestIDLen+1)} {
		req = httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set(requestIDHeader, bad)
		rec = httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		require.NotEqual(t, bad, seen)
		require.Len(t, seen, 36)
		require.Equal(t, seen, rec.Header().Get(requestIDHeader))
	}
}

func TestLoggingRecordsRouteAndStatus(t *testing.T) {
	buf := &bytes.Buffer{}
	logg := logger.New(logger.Options{ServiceName: "test", Output: buf})

	r := chi.NewRouter()
	r.Use(RequestID(logg), Logging(logg))
	r.Get("/requisitions/{requisitionId}", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusAccepted)
		_, _ = w.Write([]byte("ok"))
	})

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/requisitions/rf-1", nil))

	out := buf.String()
	require.Contains(t, out, `"route":"/requisitions/{requisitionId}"`)
	require.Contains(t, out, `"status":202`)
	require.Contains(t, out, `"bytes":2`)
	require.Contains(t, out, `"request_id"`)
	require.Contains(t, out, `"level":"info"`)
}

func TestRecovererWritesInternalEnvelope(t *testing.T) {
	buf := &bytes.Buffer{}
	logg := logger.New(logger.Options{ServiceName: "test", Output: buf})
	handler := Recoverer(logg)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("nil supplier")
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/suppliers", nil))

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	require.Contains(t, rec.Body.String(), "INTERNAL_ERROR")
	require.NotContains(t, rec.Body.String(), "nil supplier")
	require.Contains(t, buf.String(), `"panic":"nil supplier"`)
}

func TestRecovererRepanicsAbortHandler(t *testing.T) {
	handler := Recoverer(nil)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic(http.ErrAbortHandler)
	}))
	require.PanicsWithValue(t, http.ErrAbortHandler, func() {
		handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	})
}
