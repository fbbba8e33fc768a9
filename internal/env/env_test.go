package env

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestGetDuration(t *testing.T) {
	t.Setenv("X_PAUSE", "1500ms")
	require.Equal(t, 1500*time.Millisecond, GetDuration("X_PAUSE", time.Second))

	t.Setenv("X_PAUSE", "2")
	require.Equal(t, 2*time.Second, GetDuration("X_PAUSE", time.Second))

	t.Setenv("X_PAUSE", "soon")
	require.Equal(t, time.Second, GetDuration("X_PAUSE", time.Second))
}

func TestGetList(t *testing.T) {
	t.Setenv("X_FIELDS", "Block, Block #;\nBlockNumber,,")
	require.Equal(t, []string{"Block", "Block #", "BlockNumber"}, GetList("X_FIELDS", nil))

	t.Setenv("X_FIELDS", " , ")
	require.Equal(t, []string{"Lot"}, GetList("X_FIELDS", []string{"Lot"}))
}

func TestScalars(t *testing.T) {
	t.Setenv("X_BOOL", "yes")
	require.True(t, GetBool("X_BOOL", false))
	t.Setenv("X_BOOL", "maybe")
	require.True(t, GetBool("X_BOOL", true))

	t.Setenv("X_INT", " 42 ")
	require.Equal(t, 42, GetInt("X_INT", 0))
	t.Setenv("X_FLOAT", "2.5")
	require.Equal(t, 2.5, GetFloat("X_FLOAT", 5))
	require.Equal(t, "fallback", Get("X_UNSET_FOR_TEST", "fallback"))
}
