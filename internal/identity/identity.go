// Package identity resolves the two participants of the open conversation.
package identity

import "strings"

// Pair identifies a two-party conversation from the viewer's side.
type Pair struct {
	Sender   string `json:"sender"`
	Receiver string `json:"receiver"`
}

// Ready reports whether both participants are known. An unready pair is a
// valid pre-state: fetches and sends wait for it instead of failing.
func (p Pair) Ready() bool {
	return strings.TrimSpace(p.Sender) != "" && strings.TrimSpace(p.Receiver) != ""
}

// Normalize trims both identifiers.
func (p Pair) Normalize() Pair {
	return Pair{Sender: strings.TrimSpace(p.Sender), Receiver: strings.TrimSpace(p.Receiver)}
}

func (p Pair) String() string {
	return p.Sender + "->" + p.Receiver
}

// Provider supplies the participants of the currently open conversation.
type Provider interface {
	Identity() Pair
}

// Static is a Provider with a fixed pair.
type Static Pair

// Identity implements Provider.
func (s Static) Identity() Pair {
	return Pair(s).Normalize()
}

// Override layers explicit participants over a fallback provider. Empty
// fields fall through to the fallback.
type Override struct {
	Sender   string
	Receiver string
	Fallback Provider
}

// Identity implements Provider.
func (o Override) Identity() Pair {
	var base Pair
	if o.Fallback != nil {
		base = o.Fallback.Identity()
	}
	if s := strings.TrimSpace(o.Sender); s != "" {
		base.Sender = s
	}
	if r := strings.TrimSpace(o.Receiver); r != "" {
		base.Receiver = r
	}
	return base.Normalize()
}
