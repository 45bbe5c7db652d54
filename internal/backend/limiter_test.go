package backend

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLimiterPoolPerKey(t *testing.T) {
	p := newLimiterPool(0.001, 1)
	require.True(t, p.Allow("10.0.0.1"))
	require.False(t, p.Allow("10.0.0.1"))
	require.True(t, p.Allow("10.0.0.2"))
}

func TestLimiterPoolDefaults(t *testing.T) {
	p := newLimiterPool(0, 0)
	require.Equal(t, float64(defaultRPS), p.rps)
	require.Equal(t, defaultBurst, p.burst)
}
