package storage

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestClampLimit(t *testing.T) {
	require.Equal(t, DefaultRecentLimit, ClampLimit(0))
	require.Equal(t, DefaultRecentLimit, ClampLimit(-3))
	require.Equal(t, 7, ClampLimit(7))
	require.Equal(t, MaxRecentLimit, ClampLimit(MaxRecentLimit+1))
}
