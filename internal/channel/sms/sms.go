// Package sms formats the text command a rider sends to book without data.
package sms

import (
	"strconv"
	"strings"

	"github.com/example/taxilink/internal/booking"
	"github.com/example/taxilink/internal/models"
)

const ShortCode = "40404"

// TextDraft holds the offline booking fields.
type TextDraft struct {
	Pickup      string            `json:"pickup"`
	Destination string            `json:"destination"`
	Time        models.TimeWindow `json:"time"`
	Passengers  int               `json:"passengers"`
}

// NewTextDraft validates the time window and passenger count.
func NewTextDraft(pickup, destination string, when models.TimeWindow, passengers int) (TextDraft, error) {
	d := TextDraft{Pickup: pickup, Destination: destination, Time: when, Passengers: passengers}
	if !when.Valid() || passengers < 1 {
		return TextDraft{}, booking.ErrInvalidDraft
	}
	return d, nil
}

func (d TextDraft) Ready() bool { return d.Pickup != "" && d.Destination != "" }

// Command renders "BOOK <pickup> TO <destination> <TIME> <n>P", or the
// guidance text while a location is missing. It has no side effects.
func Command(d TextDraft) string {
	if !d.Ready() {
		return booking.Guidance
	}
	var b strings.Builder
	b.WriteString("BOOK ")
	b.WriteString(d.Pickup)
	b.WriteString(" TO ")
	b.WriteString(d.Destination)
	b.WriteByte(' ')
	b.WriteString(strings.ToUpper(string(d.Time)))
	b.WriteByte(' ')
	b.WriteString(strconv.Itoa(d.Passengers))
	b.WriteByte('P')
	return b.String()
}
