package conversation

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/tOgg1/pitchline/internal/identity"
	"github.com/tOgg1/pitchline/internal/models"
)

// fakeBackend stores messages in memory. Conversation and Send can be gated
// on a channel to hold a request in flight; holdFirstFetch gates only the
// first Conversation call.
type fakeBackend struct {
	mu        sync.Mutex
	messages  []models.Message
	fetchErr  error
	sendErr   error
	fetches   int
	sends     int
	fetchGate chan struct{}
	sendGate  chan struct{}
	stamp     func() time.Time
	nextID    int

	holdFirstFetch chan struct{}
}

func (f *fakeBackend) Conversation(ctx context.Context, sender, receiver string) ([]models.Message, error) {
	f.mu.Lock()
	f.fetches++
	gate := f.fetchGate
	if f.fetches == 1 && f.holdFirstFetch != nil {
		gate = f.holdFirstFetch
	}
	// the answer reflects the history at request time
	var out []models.Message
	for _, m := range f.messages {
		if (m.Sender == sender && m.Receiver == receiver) || (m.Sender == receiver && m.Receiver == sender) {
			out = append(out, m)
		}
	}
	f.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	return out, nil
}

func (f *fakeBackend) Send(ctx context.Context, sender, receiver, content string) error {
	f.mu.Lock()
	f.sends++
	gate := f.sendGate
	f.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return f.sendErr
	}
	f.nextID++
	at := time.Now()
	if f.stamp != nil {
		at = f.stamp()
	}
	f.messages = append(f.messages, models.Message{
		ID:        fmt.Sprintf("srv-%d", f.nextID),
		Sender:    sender,
		Receiver:  receiver,
		Content:   content,
		CreatedAt: at,
	})
	return nil
}

func (f *fakeBackend) counts() (fetches, sends int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.fetches, f.sends
}

func TestFetchNotReadySkipsBackend(t *testing.T) {
	backend := &fakeBackend{}
	_, err := NewFetcher(backend).Fetch(context.Background(), identity.Pair{Sender: "A"})
	require.ErrorIs(t, err, ErrIdentityNotReady)

	fetches, _ := backend.counts()
	require.Zero(t, fetches)
}

func TestFetchSortsAndTagsConfirmed(t *testing.T) {
	backend := &fakeBackend{messages: []models.Message{
		{ID: "2", Sender: "B", Receiver: "A", Content: "later", CreatedAt: t0.Add(time.Minute)},
		{ID: "1", Sender: "A", Receiver: "B", Content: "first", CreatedAt: t0},
		{ID: "x", Sender: "A", Receiver: "C", Content: "elsewhere", CreatedAt: t0},
	}}

	msgs, err := NewFetcher(backend).Fetch(context.Background(), identity.Pair{Sender: " A ", Receiver: "B"})
	require.NoError(t, err)
	require.Equal(t, []string{"1", "2"}, ids(msgs))
	for _, m := range msgs {
		require.Equal(t, models.OriginConfirmed, m.Origin)
	}
}

func TestFetchRejectsCorruptResult(t *testing.T) {
	backend := &fakeBackend{messages: []models.Message{
		{ID: "1", Sender: "A", Receiver: "B", Content: "no time"},
	}}

	msgs, err := NewFetcher(backend).Fetch(context.Background(), identity.Pair{Sender: "A", Receiver: "B"})
	require.ErrorIs(t, err, ErrCorruptResult)
	require.Nil(t, msgs)
}

func TestFetchDerivesStableIDs(t *testing.T) {
	backend := &fakeBackend{messages: []models.Message{
		{Sender: "A", Receiver: "B", Content: "hi", CreatedAt: t0},
	}}
	fetcher := NewFetcher(backend)
	pair := identity.Pair{Sender: "A", Receiver: "B"}

	first, err := fetcher.Fetch(context.Background(), pair)
	require.NoError(t, err)
	second, err := fetcher.Fetch(context.Background(), pair)
	require.NoError(t, err)

	require.NotEmpty(t, first[0].ID)
	require.Equal(t, first[0].ID, second[0].ID)
}

func TestFetchWrapsBackendError(t *testing.T) {
	boom := errors.New("connection refused")
	backend := &fakeBackend{fetchErr: boom}

	_, err := NewFetcher(backend).Fetch(context.Background(), identity.Pair{Sender: "A", Receiver: "B"})
	require.ErrorIs(t, err, boom)
	require.Contains(t, err.Error(), "A->B")
}
