// Package expiry decides which credentials are due an alert on a given day.
//
// Classification is a pure function of the record and the run date; nothing
// about earlier runs is remembered, so running twice on the same day yields
// the same events.
package expiry

import (
	"time"

	"github.com/open-sspm/credwatch/internal/inventory"
)

// Event is a credential whose remaining lifetime matched a threshold.
type Event struct {
	Record        inventory.Record
	RunDate       time.Time
	DaysRemaining int
}

type Classifier struct {
	Thresholds Thresholds
}

func NewClassifier(thresholds Thresholds) Classifier {
	if len(thresholds) == 0 {
		thresholds = DefaultThresholds
	}
	return Classifier{Thresholds: NewThresholds(thresholds...)}
}

const secondsPerDay = 24 * 60 * 60

// DaysRemaining is the number of calendar days from runDate to expiry, both
// taken as UTC dates. Expiry on the run date is 0; past expiry is negative.
// Whole day numbers are compared so far-future dates do not overflow a
// time.Duration.
func DaysRemaining(expiry, runDate time.Time) int {
	e := inventory.DateOf(expiry)
	r := inventory.DateOf(runDate)
	return int(e.Unix()/secondsPerDay - r.Unix()/secondsPerDay)
}

func (c Classifier) Classify(rec inventory.Record, runDate time.Time) (Event, bool) {
	days := DaysRemaining(rec.ExpiryDate, runDate)
	if !c.Thresholds.Contains(days) {
		return Event{}, false
	}
	return Event{
		Record:        rec,
		RunDate:       inventory.DateOf(runDate),
		DaysRemaining: days,
	}, true
}

func (c Classifier) ClassifyAll(records []inventory.Record, runDate time.Time) []Event {
	var events []Event
	for _, rec := range records {
		if ev, ok := c.Classify(rec, runDate); ok {
			events = append(events, ev)
		}
	}
	return events
}
