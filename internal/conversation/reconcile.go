// Package conversation keeps a two-party message thread consistent while
// local optimistic sends and periodic server snapshots arrive independently.
package conversation

import (
	"sort"
	"strings"
	"time"

	"github.com/tOgg1/pitchline/internal/models"
)

// DefaultMatchTolerance bounds how far a confirmed message's timestamp may
// drift from the local send time and still supersede the optimistic copy.
const DefaultMatchTolerance = 10 * time.Second

// Reconcile merges the latest confirmed history with the optimistic messages
// that have not been confirmed yet. It returns the canonical sequence and the
// optimistic messages that are still outstanding.
//
// An optimistic message is superseded by a confirmed message with the same
// sender, receiver and content whose timestamp lies within tolerance. Each
// confirmed message supersedes at most one optimistic message, so two rapid
// identical sends need two confirmations. Inputs are not modified.
func Reconcile(confirmed, pending []models.Message, tolerance time.Duration) (canonical, outstanding []models.Message) {
	if tolerance <= 0 {
		tolerance = DefaultMatchTolerance
	}

	canonical = make([]models.Message, 0, len(confirmed)+len(pending))
	seen := make(map[string]struct{}, len(confirmed))
	for _, msg := range confirmed {
		if msg.ID != "" {
			if _, dup := seen[msg.ID]; dup {
				continue
			}
			seen[msg.ID] = struct{}{}
		}
		canonical = append(canonical, msg)
	}

	used := make([]bool, len(canonical))
	for _, opt := range pending {
		if idx := matchConfirmed(canonical, used, opt, tolerance); idx >= 0 {
			used[idx] = true
			continue
		}
		outstanding = append(outstanding, opt)
	}

	canonical = append(canonical, outstanding...)
	sort.SliceStable(canonical, func(i, j int) bool {
		return canonical[i].CreatedAt.Before(canonical[j].CreatedAt)
	})
	return canonical, outstanding
}

// matchConfirmed returns the index of the closest unused confirmed message
// that represents the same logical send as opt, or -1.
func matchConfirmed(confirmed []models.Message, used []bool, opt models.Message, tolerance time.Duration) int {
	best := -1
	var bestDelta time.Duration
	for i := range confirmed {
		if used[i] || !sameSend(confirmed[i], opt) {
			continue
		}
		delta := absDuration(confirmed[i].CreatedAt.Sub(opt.CreatedAt))
		if delta > tolerance {
			continue
		}
		if best < 0 || delta < bestDelta {
			best = i
			bestDelta = delta
		}
	}
	return best
}

func sameSend(a, b models.Message) bool {
	return strings.TrimSpace(a.Sender) == strings.TrimSpace(b.Sender) &&
		strings.TrimSpace(a.Receiver) == strings.TrimSpace(b.Receiver) &&
		strings.TrimSpace(a.Content) == strings.TrimSpace(b.Content)
}

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}
