package member

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveSection(t *testing.T) {
	sy2023, sy2024 := NewSchoolYear(2023), NewSchoolYear(2024)
	const pid = "p1"

	tests := []struct {
		name        string
		next        *SchoolYear
		enrollments []Enrollment
		wantStatus  string
		wantSection int
		wantTag     string
	}{
		{
			name:        "current year enrollment",
			next:        &sy2024,
			enrollments: []Enrollment{{PersonID: pid, SectionID: 2, SchoolYear: 2023}},
			wantStatus:  ResolutionCurrent,
			wantSection: 2,
			wantTag:     "current",
		},
		{
			name: "current year wins over next year",
			next: &sy2024,
			enrollments: []Enrollment{
				{PersonID: pid, SectionID: 4, SchoolYear: 2024},
				{PersonID: pid, SectionID: 3, SchoolYear: 2023},
			},
			wantStatus:  ResolutionCurrent,
			wantSection: 3,
			wantTag:     "current",
		},
		{
			name:        "next year only",
			next:        &sy2024,
			enrollments: []Enrollment{{PersonID: pid, SectionID: 4, SchoolYear: 2024}},
			wantStatus:  ResolutionPending,
			wantSection: 4,
			wantTag:     "pending (2024-2025)",
		},
		{
			name:        "next year enrollment but next year unknown",
			enrollments: []Enrollment{{PersonID: pid, SectionID: 4, SchoolYear: 2024}},
			wantStatus:  ResolutionAwaiting,
			wantTag:     "awaiting assignment",
		},
		{
			name:        "past year enrollment only",
			next:        &sy2024,
			enrollments: []Enrollment{{PersonID: pid, SectionID: 1, SchoolYear: 2022}},
			wantStatus:  ResolutionAwaiting,
			wantTag:     "awaiting assignment",
		},
		{
			name:       "no enrollment",
			next:       &sy2024,
			wantStatus: ResolutionAwaiting,
			wantTag:    "awaiting assignment",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := ResolveSection(sy2023, tt.next, tt.enrollments)
			require.NoError(t, err)
			assert.Equal(t, tt.wantStatus, res.Status)
			assert.Equal(t, tt.wantTag, res.Tag())
			if tt.wantSection == 0 {
				assert.Nil(t, res.Enrollment)
				assert.Equal(t, "awaiting assignment", res.Label())
			} else if assert.NotNil(t, res.Enrollment) {
				assert.Equal(t, tt.wantSection, res.Enrollment.SectionID)
			}
		})
	}
}

func TestResolveSection_DoesNotMutate(t *testing.T) {
	sy2023, sy2024 := NewSchoolYear(2023), NewSchoolYear(2024)
	enrollments := []Enrollment{{PersonID: "p1", SectionID: 4, SchoolYear: 2024}}
	before := append([]Enrollment(nil), enrollments...)

	_, err := ResolveSection(sy2023, &sy2024, enrollments)
	require.NoError(t, err)
	assert.Equal(t, before, enrollments)
}

func TestResolveSection_DuplicateEnrollment(t *testing.T) {
	sy2023, sy2024 := NewSchoolYear(2023), NewSchoolYear(2024)

	_, err := ResolveSection(sy2023, &sy2024, []Enrollment{
		{PersonID: "p1", SectionID: 2, SchoolYear: 2023},
		{PersonID: "p1", SectionID: 3, SchoolYear: 2023},
	})
	assert.True(t, errors.Is(err, ErrDuplicateEnrollment), "got %v", err)

	_, err = ResolveSection(sy2023, &sy2024, []Enrollment{
		{PersonID: "p1", SectionID: 2, SchoolYear: 2024},
		{PersonID: "p1", SectionID: 3, SchoolYear: 2024},
	})
	assert.True(t, errors.Is(err, ErrDuplicateEnrollment), "got %v", err)
}

func TestResolution_Label(t *testing.T) {
	sy := NewSchoolYear(2024)
	res := Resolution{
		Status:     ResolutionPending,
		Year:       &sy,
		Enrollment: &Enrollment{PersonID: "p1", SectionID: 4, SchoolYear: 2024},
		Section:    &Section{ID: 4, Name: "Explorers"},
	}
	assert.Equal(t, "Explorers", res.Label())
	assert.Equal(t, "pending (2024-2025)", res.Tag())

	res.Section = nil
	assert.Equal(t, "section #4", res.Label())
}
