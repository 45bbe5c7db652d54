package conversation

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"sort"
	"strings"

	"github.com/tOgg1/pitchline/internal/identity"
	"github.com/tOgg1/pitchline/internal/models"
)

// Fetch errors.
var (
	ErrIdentityNotReady = errors.New("conversation identity not ready")
	ErrCorruptResult    = errors.New("backend returned a malformed message")
)

// Backend is the message service: a polled source of truth plus a write sink.
type Backend interface {
	// Conversation returns the full history between sender and receiver.
	Conversation(ctx context.Context, sender, receiver string) ([]models.Message, error)
	// Send persists one message. Only success or failure matters.
	Send(ctx context.Context, sender, receiver, content string) error
}

// Fetcher retrieves the authoritative history for a pair.
type Fetcher struct {
	backend Backend
}

// NewFetcher wraps backend.
func NewFetcher(backend Backend) *Fetcher {
	return &Fetcher{backend: backend}
}

// Fetch returns the pair's history tagged confirmed and sorted by creation
// time. An unready pair returns ErrIdentityNotReady without touching the
// backend. A result containing a malformed message is rejected whole.
func (f *Fetcher) Fetch(ctx context.Context, pair identity.Pair) ([]models.Message, error) {
	pair = pair.Normalize()
	if !pair.Ready() {
		return nil, ErrIdentityNotReady
	}
	if f == nil || f.backend == nil {
		return nil, fmt.Errorf("fetch %s: no backend configured", pair)
	}

	raw, err := f.backend.Conversation(ctx, pair.Sender, pair.Receiver)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", pair, err)
	}

	out := make([]models.Message, 0, len(raw))
	for i, msg := range raw {
		msg.Sender = strings.TrimSpace(msg.Sender)
		msg.Receiver = strings.TrimSpace(msg.Receiver)
		if msg.Sender == "" || msg.Receiver == "" || msg.CreatedAt.IsZero() {
			return nil, fmt.Errorf("fetch %s: message %d: %w", pair, i, ErrCorruptResult)
		}
		msg.ID = strings.TrimSpace(msg.ID)
		if msg.ID == "" {
			msg.ID = derivedID(msg)
		}
		msg.Origin = models.OriginConfirmed
		out = append(out, msg)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

// derivedID gives id-less backend messages a stable identity across polls.
func derivedID(msg models.Message) string {
	h := fnv.New64a()
	_, _ = h.Write([]byte(msg.Sender))
	_, _ = h.Write([]byte{0})
	_, _ = h.Write([]byte(msg.Receiver))
	_, _ = h.Write([]byte{0})
	_, _ = h.Write([]byte(msg.Content))
	_, _ = h.Write([]byte{0})
	_, _ = h.Write([]byte(msg.CreatedAt.UTC().Format("2006-01-02T15:04:05.000000000")))
	return fmt.Sprintf("srv-%016x", h.Sum64())
}
