package errors

import (
	stdErrors "errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
)

// LogFields flattens err for structured logs: the code, the unwrap chain, and any
// postgres diagnostics from pgx or lib/pq. Empty values are left out.
func LogFields(err error) map[string]any {
	if err == nil {
		return map[string]any{}
	}
	fields := map[string]any{
		"error_code": string(CodeOf(err)),
	}

	var chain []string
	for e := err; e != nil; e = stdErrors.Unwrap(e) {
		chain = append(chain, fmt.Sprintf("%T: %v", e, e))
	}
	if len(chain) > 1 {
		fields["error_chain"] = chain
	}

	pg := map[string]string{}
	var pgxErr *pgconn.PgError
	var pqErr *pq.Error
	switch {
	case stdErrors.As(err, &pgxErr):
		pg["pg_code"] = pgxErr.Code
		pg["pg_constraint"] = pgxErr.ConstraintName
		pg["pg_table"] = pgxErr.TableName
		pg["pg_column"] = pgxErr.ColumnName
		pg["pg_detail"] = pgxErr.Detail
		pg["pg_message"] = pgxErr.Message
	case stdErrors.As(err, &pqErr):
		pg["pg_code"] = string(pqErr.Code)
		pg["pg_constraint"] = pqErr.Constraint
		pg["pg_table"] = pqErr.Table
		pg["pg_column"] = pqErr.Column
		pg["pg_detail"] = pqErr.Detail
		pg["pg_message"] = pqErr.Message
	}
	for key, value := range pg {
		if value != "" {
			fields[key] = value
		}
	}
	return fields
}
