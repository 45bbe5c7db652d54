package chattui

import (
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/reflow/wordwrap"

	"github.com/tOgg1/pitchline/internal/conversation"
	"github.com/tOgg1/pitchline/internal/models"
)

const (
	loadingText = "Loading messages..."
	emptyText   = "No messages yet. Start a conversation!"
	pendingMark = "(sending…)"
	failedMark  = "(not delivered)"
	ownLabel    = "You"
	timeLayout  = "15:04"

	minCardWidth = 16
)

// renderConversation lays the snapshot's day groups out for a viewport of
// the given width.
func renderConversation(snap conversation.Snapshot, viewer string, width int, loc *time.Location, st styles) string {
	if width <= 0 {
		width = 80
	}
	if snap.Loading {
		return lipgloss.PlaceHorizontal(width, lipgloss.Center, st.muted.Render(loadingText))
	}
	if len(snap.Canonical) == 0 {
		return lipgloss.PlaceHorizontal(width, lipgloss.Center, st.empty.Render(emptyText))
	}

	var b strings.Builder
	for gi, group := range snap.Groups {
		if gi > 0 {
			b.WriteString("\n")
		}
		b.WriteString(lipgloss.PlaceHorizontal(width, lipgloss.Center, st.datePill.Render(group.Date.Label())))
		b.WriteString("\n")
		for _, msg := range group.Messages {
			b.WriteString(renderMessage(msg, snap.IsFailed(msg.ID), viewer, width, loc, st))
			b.WriteString("\n")
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

func renderMessage(msg models.Message, failed bool, viewer string, width int, loc *time.Location, st styles) string {
	if loc == nil {
		loc = time.Local
	}
	own := msg.IsFrom(viewer)

	name := st.nameStyle(msg.Sender).Render(msg.Sender)
	if own {
		name = st.ownName.Render(ownLabel)
	}
	meta := name + "  " + st.timestamp.Render(msg.CreatedAt.In(loc).Format(timeLayout))
	switch {
	case failed:
		meta += "  " + st.failed.Render(failedMark)
	case msg.IsOptimistic():
		meta += "  " + st.pending.Render(pendingMark)
	}

	// cards take at most two thirds of the row, minus border and padding
	limit := width*2/3 - 4
	if limit < minCardWidth {
		limit = minCardWidth
	}
	body := st.body.Render(wordwrap.String(msg.Content, limit))

	card := st.otherCard
	align := lipgloss.Left
	if own {
		card = st.ownCard
		align = lipgloss.Right
	}
	return lipgloss.PlaceHorizontal(width, align, card.Render(meta+"\n"+body))
}
