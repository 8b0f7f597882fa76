package member

import (
	"fmt"

	"github.com/pkg/errors"
)

// Resolution statuses
const (
	ResolutionCurrent  = "current"
	ResolutionPending  = "pending"
	ResolutionAwaiting = "awaiting"
)

const awaitingAssignment = "awaiting assignment"

// Resolution is the effective section of a person.
// Section is only set by the Service; ResolveSection leaves it nil.
type Resolution struct {
	Status     string
	Year       *SchoolYear // year of the resolved enrollment; nil when awaiting
	Enrollment *Enrollment
	Section    *Section
}

// Label is the display name of the resolved section.
func (r Resolution) Label() string {
	switch {
	case r.Status == ResolutionAwaiting:
		return awaitingAssignment
	case r.Section != nil:
		return r.Section.Name
	case r.Enrollment != nil:
		return fmt.Sprintf("section #%d", r.Enrollment.SectionID)
	}
	return ""
}

// Tag is the display status: "current", "pending (2024-2025)" or "awaiting assignment".
func (r Resolution) Tag() string {
	switch r.Status {
	case ResolutionPending:
		if r.Year != nil {
			return fmt.Sprintf("%s (%s)", ResolutionPending, r.Year.Range)
		}
		return ResolutionPending
	case ResolutionAwaiting:
		return awaitingAssignment
	}
	return r.Status
}

// ResolveSection picks the effective enrollment of a person among enrollments:
// the current year's first, else next year's (pending), else none (awaiting).
// next is nil when the next school year does not exist yet.
func ResolveSection(current SchoolYear, next *SchoolYear, enrollments []Enrollment) (Resolution, error) {
	cur, err := findEnrollment(enrollments, current.Name)
	if err != nil {
		return Resolution{}, err
	}
	if cur != nil {
		year := current
		return Resolution{Status: ResolutionCurrent, Year: &year, Enrollment: cur}, nil
	}

	if next != nil {
		nxt, err := findEnrollment(enrollments, next.Name)
		if err != nil {
			return Resolution{}, err
		}
		if nxt != nil {
			year := *next
			return Resolution{Status: ResolutionPending, Year: &year, Enrollment: nxt}, nil
		}
	}
	return Resolution{Status: ResolutionAwaiting}, nil
}

// findEnrollment returns the single enrollment for year, if any.
func findEnrollment(enrollments []Enrollment, year int) (*Enrollment, error) {
	var found *Enrollment
	for i := range enrollments {
		e := enrollments[i]
		if e.SchoolYear != year {
			continue
		}
		if found != nil && found.PersonID == e.PersonID {
			return nil, errors.Wrapf(ErrDuplicateEnrollment, "person %s, school year %d", e.PersonID, year)
		}
		found = &e
	}
	return found, nil
}
