// Package window decides where a pending catch record sits in its
// retrospective validation window.
package window

import (
	"time"

	"github.com/fes-tools/landrecon/internal/utils"
)

// RetrospectivePeriod is how long after creation a record with no end
// date stays due for landing validation.
const RetrospectivePeriod = 14 * 24 * time.Hour

// State is the position of a record relative to its window at query time.
type State int

const (
	// NotYetDue records have an expected date still in the future.
	NotYetDue State = iota
	// Due records should be checked against upstream landing data.
	Due
	// Exceeded records are past the hard limit.
	Exceeded
)

func (s State) String() string {
	switch s {
	case NotYetDue:
		return "not_yet_due"
	case Due:
		return "due"
	case Exceeded:
		return "exceeded"
	}
	return "unknown"
}

// Record carries the dates the classifier needs. ExpectedDate and EndDate
// are calendar days; zero means absent. EndDate only counts together with
// an ExpectedDate.
type Record struct {
	CreatedAt    time.Time
	ExpectedDate time.Time
	EndDate      time.Time
}

// Classify evaluates r at now.
func Classify(now time.Time, r Record) State {
	if !r.ExpectedDate.IsZero() && utils.DayOf(now).Before(utils.DayOf(r.ExpectedDate)) {
		return NotYetDue
	}
	if r.endDated() {
		// The day after the end date is the last day still inside the window.
		lastDay := utils.DayOf(r.EndDate).AddDate(0, 0, 1)
		if utils.DayOf(now).After(lastDay) {
			return Exceeded
		}
		return Due
	}
	if now.After(r.CreatedAt.Add(RetrospectivePeriod)) {
		return Exceeded
	}
	return Due
}

func (r Record) endDated() bool {
	return !r.ExpectedDate.IsZero() && !r.EndDate.IsZero()
}

// Deadline is the last instant r is still Due. For end-dated records that
// is the end of the day after EndDate.
func Deadline(r Record) time.Time {
	if r.endDated() {
		return utils.DayOf(r.EndDate).AddDate(0, 0, 2).Add(-time.Nanosecond)
	}
	return r.CreatedAt.Add(RetrospectivePeriod)
}

const (
	StatusPending        = "Pending"
	StatusHasLandingData = "HasLandingData"
	StatusExceeded       = "Exceeded14Days"
	StatusNeverExpected  = "DataNeverExpected"
)

// IsPendingStatus reports whether a catch entry status counts as pending.
// An entry that was never given a status is pending.
func IsPendingStatus(status string) bool {
	return status == "" || status == StatusPending
}
