package conversation

import (
	"time"

	"github.com/tOgg1/pitchline/internal/identity"
	"github.com/tOgg1/pitchline/internal/models"
)

// Observer receives fetch and send outcomes. Failures never reach the view
// as errors that stop it; they are reported here instead.
type Observer interface {
	FetchSucceeded(pair identity.Pair, count int, took time.Duration)
	FetchFailed(pair identity.Pair, err error)
	MessageSent(pair identity.Pair, msg models.Message, took time.Duration)
	SendFailed(pair identity.Pair, msg models.Message, err error)
}

// NopObserver discards everything.
type NopObserver struct{}

func (NopObserver) FetchSucceeded(identity.Pair, int, time.Duration) {}
func (NopObserver) FetchFailed(identity.Pair, error) {}
func (NopObserver) MessageSent(identity.Pair, models.Message, time.Duration) {}
func (NopObserver) SendFailed(identity.Pair, models.Message, error) {}
