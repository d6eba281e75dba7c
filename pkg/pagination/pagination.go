// Package pagination implements opaque keyset cursors. List queries fetch one
// row past the page size; Trim uses that extra row to decide whether a next
// cursor exists.
package pagination

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	DefaultLimit = 25
	MaxLimit     = 100
)

var (
	cursorEncoding = base64.RawURLEncoding

	errMalformedCursor = errors.New("malformed cursor")
)

// Params holds cursor pagination inputs from controllers or services.
type Params struct {
	Limit  int
	Cursor string
}

// Cursor positions a (created_at, id) ordered query.
type Cursor struct {
	CreatedAt time.Time
	ID        uuid.UUID
}

// NormalizeLimit clamps limit into [1, MaxLimit], defaulting to DefaultLimit.
func NormalizeLimit(limit int) int {
	switch {
	case limit <= 0:
		return DefaultLimit
	case limit > MaxLimit:
		return MaxLimit
	}
	return limit
}

// LimitWithBuffer is the row count a list query should fetch.
func LimitWithBuffer(limit int) int {
	return NormalizeLimit(limit) + 1
}

// Trim cuts rows fetched with LimitWithBuffer(limit) down to the page and
// returns the cursor of its last row when more rows exist.
func Trim[T any](rows []T, limit int, cursorOf func(T) string) ([]T, string) {
	limit = NormalizeLimit(limit)
	if len(rows) <= limit {
		return rows, ""
	}
	rows = rows[:limit]
	return rows, cursorOf(rows[len(rows)-1])
}

func EncodeCursor(cursor Cursor) string {
	raw := cursor.CreatedAt.UTC().Format(time.RFC3339Nano) + "|" + cursor.ID.String()
	return cursorEncoding.EncodeToString([]byte(raw))
}

// ParseCursor returns nil for a blank value.
func ParseCursor(value string) (*Cursor, error) {
	raw, err := decode(value)
	if err != nil || raw == "" {
		return nil, err
	}
	stamp, id, ok := strings.Cut(raw, "|")
	if !ok {
		return nil, errMalformedCursor
	}
	createdAt, err := time.Parse(time.RFC3339Nano, stamp)
	if err != nil {
		return nil, fmt.Errorf("%w: timestamp", errMalformedCursor)
	}
	parsedID, err := uuid.Parse(id)
	if err != nil {
		return nil, fmt.Errorf("%w: id", errMalformedCursor)
	}
	return &Cursor{CreatedAt: createdAt, ID: parsedID}, nil
}

// EncodeKeyCursor positions a query ordered by a numeric key.
func EncodeKeyCursor(id int64) string {
	return cursorEncoding.EncodeToString([]byte(strconv.FormatInt(id, 10)))
}

// ParseKeyCursor returns 0 for a blank value.
func ParseKeyCursor(value string) (int64, error) {
	raw, err := decode(value)
	if err != nil || raw == "" {
		return 0, err
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: key", errMalformedCursor)
	}
	return id, nil
}

func decode(value string) (string, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return "", nil
	}
	raw, err := cursorEncoding.DecodeString(value)
	if err != nil {
		return "", fmt.Errorf("%w: %v", errMalformedCursor, err)
	}
	return string(raw), nil
}
