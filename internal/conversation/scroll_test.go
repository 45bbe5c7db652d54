package conversation

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestViewportDistanceFromBottom(t *testing.T) {
	require.Equal(t, 0, Viewport{Offset: 80, Height: 20, ContentHeight: 100}.DistanceFromBottom())
	require.Equal(t, 30, Viewport{Offset: 50, Height: 20, ContentHeight: 100}.DistanceFromBottom())
	require.Equal(t, 0, Viewport{Offset: 0, Height: 20, ContentHeight: 5}.DistanceFromBottom())
}

func TestScrollPolicyStartsFollowing(t *testing.T) {
	p := NewScrollPolicy(0)
	require.Equal(t, Following, p.Mode())
	require.Equal(t, DefaultScrollThreshold, p.Threshold())
}

// Reader at the bottom sees growth and is moved to the end.
func TestScrollFollowingJumpsOnGrowth(t *testing.T) {
	p := NewScrollPolicy(2)
	require.Equal(t, ActionJumpToBottom, p.OnCount(3))

	require.Equal(t, Following, p.OnScroll(Viewport{Offset: 79, Height: 20, ContentHeight: 100}))
	require.Equal(t, ActionJumpToBottom, p.OnCount(4))
}

// Reader scrolled up keeps their place while messages arrive.
func TestScrollReadingPreservesPosition(t *testing.T) {
	p := NewScrollPolicy(2)
	p.OnCount(10)

	require.Equal(t, Reading, p.OnScroll(Viewport{Offset: 10, Height: 20, ContentHeight: 100}))
	require.Equal(t, ActionNone, p.OnCount(11))
	require.Equal(t, ActionNone, p.OnCount(12))
	require.Equal(t, Reading, p.Mode())
}

// Sending re-engages following even when reading.
func TestScrollSendReengagesFollowing(t *testing.T) {
	p := NewScrollPolicy(2)
	p.OnCount(10)
	p.OnScroll(Viewport{Offset: 0, Height: 20, ContentHeight: 100})
	require.Equal(t, Reading, p.Mode())

	require.Equal(t, ActionJumpToBottom, p.OnSend())
	require.Equal(t, Following, p.Mode())
	require.Equal(t, ActionJumpToBottom, p.OnCount(11))
}

func TestScrollReturningToBottomResumesFollowing(t *testing.T) {
	p := NewScrollPolicy(2)
	p.OnScroll(Viewport{Offset: 0, Height: 20, ContentHeight: 100})
	require.Equal(t, Reading, p.Mode())

	require.Equal(t, Following, p.OnScroll(Viewport{Offset: 78, Height: 20, ContentHeight: 100}))
}

func TestScrollNoJumpWithoutGrowth(t *testing.T) {
	p := NewScrollPolicy(2)
	require.Equal(t, ActionJumpToBottom, p.OnCount(5))
	require.Equal(t, ActionNone, p.OnCount(5))
	require.Equal(t, ActionNone, p.OnCount(4))
}

func TestScrollReset(t *testing.T) {
	p := NewScrollPolicy(2)
	p.OnCount(5)
	p.OnScroll(Viewport{Offset: 0, Height: 20, ContentHeight: 100})
	p.Reset()
	require.Equal(t, Following, p.Mode())
	require.Equal(t, ActionJumpToBottom, p.OnCount(1))
}
