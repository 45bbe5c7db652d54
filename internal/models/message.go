// Package models defines the data types shared by the pitchline client and backend.
package models

import (
	"strings"
	"time"
)

// Origin records where a message in the local view came from. It is never
// sent to or read from the backend.
type Origin string

const (
	// OriginOptimistic marks a message written locally and not yet seen in a fetch.
	OriginOptimistic Origin = "optimistic"
	// OriginConfirmed marks a message attested by the backend.
	OriginConfirmed Origin = "confirmed"
)

// Message is one entry in a two-party conversation.
type Message struct {
	ID        string    `json:"id"`
	Sender    string    `json:"sender"`
	Receiver  string    `json:"receiver"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"createdAt"`
	Origin    Origin    `json:"-"`
}

// IsOptimistic reports whether the message is still awaiting confirmation.
func (m Message) IsOptimistic() bool {
	return m.Origin == OriginOptimistic
}

// IsFrom reports whether participant authored the message.
func (m Message) IsFrom(participant string) bool {
	participant = strings.TrimSpace(participant)
	return participant != "" && strings.TrimSpace(m.Sender) == participant
}

// Validate checks the fields every persisted message needs.
func (m Message) Validate() error {
	var errs ValidationErrors
	sender := strings.TrimSpace(m.Sender)
	receiver := strings.TrimSpace(m.Receiver)
	if sender == "" {
		errs.Add("sender", ErrMissingSender)
	}
	if receiver == "" {
		errs.Add("receiver", ErrMissingReceiver)
	}
	if sender != "" && sender == receiver {
		errs.Add("receiver", ErrSelfConversation)
	}
	if strings.TrimSpace(m.Content) == "" {
		errs.Add("content", ErrEmptyContent)
	}
	return errs.Err()
}

// Day is a calendar date in some viewer's time zone.
type Day struct {
	Year  int
	Month time.Month
	Day   int
}

// DayOf returns the calendar date of t in loc. A nil loc means time.Local.
func DayOf(t time.Time, loc *time.Location) Day {
	if loc == nil {
		loc = time.Local
	}
	y, m, d := t.In(loc).Date()
	return Day{Year: y, Month: m, Day: d}
}

// Time returns midnight of the day in loc.
func (d Day) Time(loc *time.Location) time.Time {
	if loc == nil {
		loc = time.Local
	}
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, loc)
}

// Label renders the day for date separators, e.g. "Mon, 02 Mar 2026".
func (d Day) Label() string {
	return d.Time(time.UTC).Format("Mon, 02 Jan 2006")
}

func (d Day) String() string {
	return d.Time(time.UTC).Format("2006-01-02")
}

// Group is a run of consecutive messages sharing one calendar day.
type Group struct {
	Date     Day       `json:"date"`
	Messages []Message `json:"messages"`
}
