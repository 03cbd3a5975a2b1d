package appointment

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Interval is a half-open time range [Start, End).
type Interval struct {
	Start time.Time
	End   time.Time
}

// Overlaps uses the half-open test, so back-to-back intervals do not collide.
func Overlaps(a, b Interval) bool {
	return a.Start.Before(b.End) && a.End.After(b.Start)
}

// FindConflict returns the first existing interval that overlaps candidate.
func FindConflict(existing []Interval, candidate Interval) (Interval, bool) {
	for _, iv := range existing {
		if Overlaps(iv, candidate) {
			return iv, true
		}
	}
	return Interval{}, false
}

// CheckConflict fails with ErrSlotAlreadyBooked when an approved appointment
// of employeeID overlaps iv. excludeID skips the appointment being updated.
func CheckConflict(ctx context.Context, repo Repository, employeeID uuid.UUID, iv Interval, excludeID *uuid.UUID) error {
	rows, err := repo.ListApprovedOverlapping(ctx, employeeID, iv, excludeID)
	if err != nil {
		return fmt.Errorf("load approved appointments: %w", err)
	}

	existing := make([]Interval, 0, len(rows))
	for _, a := range rows {
		existing = append(existing, a.Interval())
	}
	if _, found := FindConflict(existing, iv); found {
		return ErrSlotAlreadyBooked
	}
	return nil
}
