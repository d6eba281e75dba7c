package errors

import (
	stdErrors "errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
	"github.com/stretchr/testify/require"
)

func TestMetadataForWorkflowCodes(t *testing.T) {
	cases := map[Code]int{
		CodeValidation:    http.StatusBadRequest,
		CodeStateConflict: http.StatusUnprocessableEntity,
		CodeInsufficient:  http.StatusConflict,
		CodeIdempotency:   http.StatusConflict,
		CodeRateLimit:     http.StatusTooManyRequests,
		CodeDependency:    http.StatusServiceUnavailable,
	}
	for code, status := range cases {
		require.Equal(t, status, MetadataFor(code).HTTPStatus, code)
	}

	require.True(t, MetadataFor(CodeStateConflict).DetailsAllowed)
	require.False(t, MetadataFor(CodeInternal).ExposeMessage)
	require.True(t, MetadataFor(CodeInternal).Retryable)
}

func TestMetadataForUnknownCodeDefaultsToInternal(t *testing.T) {
	require.Equal(t, MetadataFor(CodeInternal), MetadataFor("SOMETHING_UNKNOWN"))
}

func TestWrapKeepsCauseInChainAndMessage(t *testing.T) {
	cause := stdErrors.New("connection reset")
	wrapped := Wrap(CodeDependency, cause, "load supplier").WithDetails(map[string]any{"supplier_id": "s-1"})

	require.ErrorIs(t, wrapped, cause)
	require.Equal(t, "DEPENDENCY_ERROR: load supplier: connection reset", wrapped.Error())
	require.Equal(t, map[string]any{"supplier_id": "s-1"}, wrapped.Details())
	require.Equal(t, "STATE_CONFLICT: already approved", New(CodeStateConflict, "already approved").Error())
}

func TestAsAndCodeOf(t *testing.T) {
	err := fmt.Errorf("approve: %w", New(CodeForbidden, "manager role required"))

	require.Equal(t, CodeForbidden, As(err).Code())
	require.Equal(t, CodeForbidden, CodeOf(err))
	require.True(t, IsCode(err, CodeForbidden))
	require.False(t, IsCode(err, CodeNotFound))

	require.Nil(t, As(nil))
	require.Equal(t, CodeInternal, CodeOf(stdErrors.New("plain")))
	require.Nil(t, (*Error)(nil).WithDetails("x"))
}

func TestLogFieldsIncludesPostgresDiagnostics(t *testing.T) {
	pgErr := &pgconn.PgError{Code: "23505", ConstraintName: "suppliers_name_key", TableName: "suppliers"}
	fields := LogFields(Wrap(CodeConflict, pgErr, "supplier exists"))

	require.Equal(t, "CONFLICT", fields["error_code"])
	require.Equal(t, "23505", fields["pg_code"])
	require.Equal(t, "suppliers_name_key", fields["pg_constraint"])
	require.NotContains(t, fields, "pg_column")
	require.Len(t, fields["error_chain"], 2)

	pqFields := LogFields(&pq.Error{Code: "23503", Table: "inventory_transactions"})
	require.Equal(t, "23503", pqFields["pg_code"])
	require.Equal(t, "INTERNAL_ERROR", pqFields["error_code"])
	require.NotContains(t, pqFields, "error_chain")

	require.Empty(t, LogFields(nil))
}
