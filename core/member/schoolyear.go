package member

import (
	"fmt"
	"sort"
	"time"
)

// School years run from August 1st to July 31st of the following year.
const (
	schoolYearStartMonth = time.August
	schoolYearStartDay   = 1
)

// NewSchoolYear builds the school year starting on August 1st of year.
func NewSchoolYear(year int) SchoolYear {
	return SchoolYear{
		Name:      year,
		StartDate: time.Date(year, schoolYearStartMonth, schoolYearStartDay, 0, 0, 0, 0, time.UTC),
		EndDate:   time.Date(year+1, schoolYearStartMonth, schoolYearStartDay, 0, 0, 0, 0, time.UTC).AddDate(0, 0, -1),
		Range:     fmt.Sprintf("%d-%d", year, year+1),
	}
}

// SchoolYearStarting returns the name of the school year that contains today by convention.
func SchoolYearStarting(today time.Time) int {
	today = truncateDate(today)
	if today.Before(time.Date(today.Year(), schoolYearStartMonth, schoolYearStartDay, 0, 0, 0, 0, time.UTC)) {
		return today.Year() - 1
	}
	return today.Year()
}

// CurrentSchoolYear returns the school year whose interval contains today.
func CurrentSchoolYear(years []SchoolYear, today time.Time) (SchoolYear, error) {
	for _, sy := range years {
		if sy.Contains(today) {
			return sy, nil
		}
	}
	return SchoolYear{}, ErrMissingCurrentSchoolYear
}

// NextSchoolYear returns the school year with the smallest start date strictly after current's,
// or ErrUnknownNextSchoolYear.
func NextSchoolYear(years []SchoolYear, current SchoolYear) (SchoolYear, error) {
	var (
		next  SchoolYear
		found bool
	)
	for _, sy := range years {
		if !sy.StartDate.After(current.StartDate) {
			continue
		}
		if !found || sy.StartDate.Before(next.StartDate) {
			next = sy
			found = true
		}
	}
	if !found {
		return SchoolYear{}, ErrUnknownNextSchoolYear
	}
	return next, nil
}

func sortSchoolYears(years []SchoolYear) {
	sort.Slice(years, func(i, j int) bool { return years[i].StartDate.Before(years[j].StartDate) })
}

// truncateDate drops the time of day, in UTC.
func truncateDate(t time.Time) time.Time {
	if t.IsZero() {
		return t
	}
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
