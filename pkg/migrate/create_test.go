package migrate

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestSlug(t *testing.T) {
	require.Equal(t, "add_supplier_ratings", Slug("  Add supplier-ratings!! "))
	require.Equal(t, "", Slug("***"))
}

func TestCreateAtWritesValidMigration(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "migrations")
	at := time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC)

	path, err := createAt(dir, "Add supplier ratings", at)
	require.NoError(t, err)
	require.Equal(t, filepath.Join(dir, "20260304050607_add_supplier_ratings.sql"), path)

	body, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Contains(t, string(body), "-- +goose Up")
	require.Contains(t, string(body), "-- revert add_supplier_ratings")
	require.NoError(t, ValidateDir(dir))

	_, err = createAt(dir, "add supplier ratings", at)
	require.ErrorIs(t, err, os.ErrExist)
}

func TestCreateAtRejectsEmptyInput(t *testing.T) {
	_, err := createAt("", "x", time.Now())
	require.Error(t, err)
	_, err = createAt(t.TempDir(), "--", time.Now())
	require.ErrorContains(t, err, "no usable characters")
}
