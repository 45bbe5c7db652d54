package testutil

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSkipIfNoNetwork(t *testing.T) {
	t.Setenv("PITCHLINE_TEST_SKIP_NETWORK", "")
	SkipIfNoNetwork(t)

	skipped := true
	t.Run("skips when set", func(t *testing.T) {
		t.Setenv("PITCHLINE_TEST_SKIP_NETWORK", "1")
		defer func() { skipped = t.Skipped() }()
		SkipIfNoNetwork(t)
		skipped = false
	})
	require.True(t, skipped)
}
