package instance

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGetIDPrefersDyno(t *testing.T) {
	t.Setenv("DYNO", "web.1")
	t.Setenv("WORKER_ID", "worker-3")
	require.Equal(t, "web.1", GetID())
}

func TestGetIDFallsBack(t *testing.T) {
	t.Setenv("DYNO", "")
	t.Setenv("WORKER_ID", "worker-3")
	require.Equal(t, "worker-3", GetID())

	t.Setenv("WORKER_ID", "")
	require.Equal(t, "local", GetID())
}
