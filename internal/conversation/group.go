package conversation

import (
	"time"

	"github.com/tOgg1/pitchline/internal/models"
)

// GroupByDay partitions msgs into runs sharing a calendar day in loc. A new
// group starts exactly when the day differs from the previous message, so the
// message order is never changed. A nil loc means time.Local.
func GroupByDay(msgs []models.Message, loc *time.Location) []models.Group {
	if len(msgs) == 0 {
		return nil
	}
	var groups []models.Group
	for _, msg := range msgs {
		day := models.DayOf(msg.CreatedAt, loc)
		if n := len(groups); n == 0 || groups[n-1].Date != day {
			groups = append(groups, models.Group{Date: day})
		}
		last := &groups[len(groups)-1]
		last.Messages = append(last.Messages, msg)
	}
	return groups
}
