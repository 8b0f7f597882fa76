package member

import (
	"fmt"
	"sort"
	"strconv"
	"time"
)

// adultThreshold is 18 years in the YYYYMMDD-as-number encoding.
const adultThreshold = 180000

// IsAdult reports whether a person born on birthday is over 18 on ref.
// Persons without a known birthday are presumed adults.
// Ages are compared as YYYYMMDD numbers: exactly 18 years on ref is not adult yet.
func IsAdult(birthday, ref time.Time) bool {
	if birthday.IsZero() {
		return true
	}
	return dateNumber(ref)-dateNumber(birthday) > adultThreshold
}

func dateNumber(t time.Time) int {
	n, _ := strconv.Atoi(t.Format("20060102"))
	return n
}

// AgeAtYearEnd is the age reached on December 31 of the school year by persons born in birthYear.
func AgeAtYearEnd(birthYear, schoolYearName int) int {
	return schoolYearName - birthYear
}

// BranchForAge returns the first branch, by ascending min age, whose range contains age.
// Branches missing a bound never match.
func BranchForAge(age int, branches []Branch) (Branch, bool) {
	for _, b := range sortedBranches(branches) {
		if b.MinAgeDec31 == nil || b.MaxAgeDec31 == nil {
			continue
		}
		if *b.MinAgeDec31 <= age && age <= *b.MaxAgeDec31 {
			return b, true
		}
	}
	return Branch{}, false
}

func sortedBranches(branches []Branch) []Branch {
	sorted := make([]Branch, len(branches))
	copy(sorted, branches)
	sort.SliceStable(sorted, func(i, j int) bool {
		mi, mj := sorted[i].MinAgeDec31, sorted[j].MinAgeDec31
		if mi == nil || mj == nil {
			return mj == nil && mi != nil
		}
		return *mi < *mj
	})
	return sorted
}

type BirthYearChoice struct {
	Year   int     `json:"year"`
	Label  string  `json:"label"`
	Branch *Branch `json:"branch,omitempty"`
}

// BirthYearChoices labels the last span birth years, most recent first, with the branch
// persons born that year belong to during the currentYear school year, e.g. "2015 (Cub Scouts)".
func BirthYearChoices(today time.Time, currentYear int, branches []Branch, span int) []BirthYearChoice {
	if span <= 0 {
		return nil
	}
	choices := make([]BirthYearChoice, 0, span)
	for year := today.Year(); year > today.Year()-span; year-- {
		choice := BirthYearChoice{Year: year, Label: strconv.Itoa(year)}
		if b, ok := BranchForAge(AgeAtYearEnd(year, currentYear), branches); ok {
			b := b
			choice.Branch = &b
			choice.Label = fmt.Sprintf("%d (%s)", year, b.Name)
		}
		choices = append(choices, choice)
	}
	return choices
}
