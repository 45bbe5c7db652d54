package conversation

// ScrollMode is the viewport policy of the conversation view.
type ScrollMode int

const (
	// Following auto-scrolls to the newest message on every update.
	Following ScrollMode = iota
	// Reading preserves the reader's position while messages arrive.
	Reading
)

func (m ScrollMode) String() string {
	if m == Reading {
		return "reading"
	}
	return "following"
}

// ScrollAction is what the view must do after a transition.
type ScrollAction int

const (
	ActionNone ScrollAction = iota
	ActionJumpToBottom
)

// DefaultScrollThreshold is the distance from the bottom, in rows, that still
// counts as "at the bottom".
const DefaultScrollThreshold = 2

// Viewport carries raw viewport metrics in rows (or any consistent unit).
type Viewport struct {
	Offset        int // first visible row
	Height        int // visible rows
	ContentHeight int // total rows of content
}

// DistanceFromBottom is how far the bottom edge of the viewport is from the
// end of the content. Never negative.
func (v Viewport) DistanceFromBottom() int {
	d := v.ContentHeight - (v.Offset + v.Height)
	if d < 0 {
		return 0
	}
	return d
}

// ScrollPolicy decides whether growth of the conversation should move the
// viewport. It is not safe for concurrent use; the engine serializes access.
type ScrollPolicy struct {
	mode      ScrollMode
	threshold int
	lastCount int
}

// NewScrollPolicy starts in Following mode.
func NewScrollPolicy(threshold int) *ScrollPolicy {
	if threshold <= 0 {
		threshold = DefaultScrollThreshold
	}
	return &ScrollPolicy{mode: Following, threshold: threshold}
}

// Mode returns the current mode.
func (p *ScrollPolicy) Mode() ScrollMode { return p.mode }

// Threshold returns the bottom tolerance.
func (p *ScrollPolicy) Threshold() int { return p.threshold }

// OnScroll applies a viewport scroll event.
func (p *ScrollPolicy) OnScroll(v Viewport) ScrollMode {
	if v.DistanceFromBottom() > p.threshold {
		p.mode = Reading
	} else {
		p.mode = Following
	}
	return p.mode
}

// OnSend re-engages following regardless of the read position.
func (p *ScrollPolicy) OnSend() ScrollAction {
	p.mode = Following
	return ActionJumpToBottom
}

// OnCount records the canonical message count and asks for a jump when it
// grew while following.
func (p *ScrollPolicy) OnCount(n int) ScrollAction {
	grew := n > p.lastCount
	p.lastCount = n
	if grew && p.mode == Following {
		return ActionJumpToBottom
	}
	return ActionNone
}

// Reset returns to the initial state, used when the conversation changes.
func (p *ScrollPolicy) Reset() {
	p.mode = Following
	p.lastCount = 0
}
