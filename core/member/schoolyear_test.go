package member

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSchoolYear(t *testing.T) {
	sy := NewSchoolYear(2023)
	assert.Equal(t, 2023, sy.Name)
	assert.Equal(t, date(2023, time.August, 1), sy.StartDate)
	assert.Equal(t, date(2024, time.July, 31), sy.EndDate)
	assert.Equal(t, "2023-2024", sy.Range)

	assert.True(t, sy.Contains(date(2023, time.August, 1)))
	assert.True(t, sy.Contains(date(2024, time.July, 31).Add(20*time.Hour)))
	assert.False(t, sy.Contains(date(2023, time.July, 31)))
	assert.False(t, sy.Contains(date(2024, time.August, 1)))
}

func TestSchoolYearStarting(t *testing.T) {
	tests := []struct {
		today time.Time
		want  int
	}{
		{today: date(2024, time.March, 1), want: 2023},
		{today: date(2024, time.July, 31), want: 2023},
		{today: date(2024, time.August, 1), want: 2024},
		{today: date(2024, time.December, 31), want: 2024},
	}
	for _, tt := range tests {
		if got := SchoolYearStarting(tt.today); got != tt.want {
			t.Errorf("SchoolYearStarting(%s) = %d, want %d", tt.today.Format("2006-01-02"), got, tt.want)
		}
	}
}

func TestCurrentAndNextSchoolYear(t *testing.T) {
	years := []SchoolYear{NewSchoolYear(2025), NewSchoolYear(2023), NewSchoolYear(2024)}

	current, err := CurrentSchoolYear(years, date(2024, time.March, 1))
	require.NoError(t, err)
	assert.Equal(t, 2023, current.Name)

	next, err := NextSchoolYear(years, current)
	require.NoError(t, err)
	assert.Equal(t, 2024, next.Name)

	last, err := CurrentSchoolYear(years, date(2025, time.September, 1))
	require.NoError(t, err)
	_, err = NextSchoolYear(years, last)
	assert.Equal(t, ErrUnknownNextSchoolYear, err)

	_, err = CurrentSchoolYear(years, date(2023, time.July, 31))
	assert.Equal(t, ErrMissingCurrentSchoolYear, err)

	_, err = CurrentSchoolYear(nil, date(2024, time.March, 1))
	assert.Equal(t, ErrMissingCurrentSchoolYear, err)
}
