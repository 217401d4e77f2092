package schedule

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func tpl(day time.Weekday, start, end string, dur, cap int) TimeTemplate {
	s, _ := ParseMinuteOfDay(start)
	e, _ := ParseMinuteOfDay(end)
	return TimeTemplate{
		ID:                  uuid.New(),
		HospitalID:          uuid.New(),
		DayOfWeek:           day,
		StartMinute:         s,
		EndMinute:           e,
		SlotDurationMinutes: dur,
		MaxConcurrent:       cap,
		IsActive:            true,
	}
}

func TestGenerateSlots(t *testing.T) {
	tests := []struct {
		name      string
		templates []TimeTemplate
		want      []Slot
	}{
		{
			name:      "no templates",
			templates: nil,
			want:      nil,
		},
		{
			name:      "even division",
			templates: []TimeTemplate{tpl(time.Monday, "09:00", "10:00", 30, 2)},
			want: []Slot{
				{Start: 540, End: 570, Capacity: 2},
				{Start: 570, End: 600, Capacity: 2},
			},
		},
		{
			name:      "trailing partial slot dropped",
			templates: []TimeTemplate{tpl(time.Monday, "09:00", "09:50", 30, 1)},
			want: []Slot{
				{Start: 540, End: 570, Capacity: 1},
			},
		},
		{
			name:      "window shorter than duration yields nothing",
			templates: []TimeTemplate{tpl(time.Monday, "09:00", "09:20", 30, 1)},
			want:      nil,
		},
		{
			name: "morning and afternoon blocks with different capacities",
			templates: []TimeTemplate{
				tpl(time.Monday, "09:00", "10:00", 30, 3),
				tpl(time.Monday, "14:00", "15:00", 60, 1),
			},
			want: []Slot{
				{Start: 540, End: 570, Capacity: 3},
				{Start: 570, End: 600, Capacity: 3},
				{Start: 840, End: 900, Capacity: 1},
			},
		},
		{
			name: "inactive template skipped",
			templates: []TimeTemplate{
				func() TimeTemplate {
					t := tpl(time.Monday, "09:00", "10:00", 30, 2)
					t.IsActive = false
					return t
				}(),
			},
			want: nil,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := GenerateSlots(tc.templates)
			assert.Equal(t, tc.want, got)

			// Same inputs, same output.
			assert.Equal(t, got, GenerateSlots(tc.templates))
		})
	}
}

func TestGenerateSlotsStrictlyIncreasing(t *testing.T) {
	slots := GenerateSlots([]TimeTemplate{
		tpl(time.Tuesday, "08:00", "12:00", 20, 2),
		tpl(time.Tuesday, "13:00", "17:30", 45, 1),
	})
	require.NotEmpty(t, slots)

	for i := 1; i < len(slots); i++ {
		assert.Greater(t, slots[i].Start, slots[i-1].Start)
	}
}

func TestComputeAvailability(t *testing.T) {
	slots := []Slot{
		{Start: 540, End: 570, Capacity: 2},
		{Start: 570, End: 600, Capacity: 2},
		{Start: 600, End: 630, Capacity: 1},
	}

	booked := map[MinuteOfDay]int{
		540: 1,
		600: 3, // overbooked rows from a cancelled-era template edit
	}

	got := ComputeAvailability(slots, booked)
	require.Len(t, got, 3)

	assert.Equal(t, 1, got[0].Remaining)
	assert.True(t, got[0].Available)

	assert.Equal(t, 2, got[1].Remaining)
	assert.True(t, got[1].Available)

	// Remaining floors at zero, never negative.
	assert.Equal(t, 0, got[2].Remaining)
	assert.False(t, got[2].Available)
}

func TestMatchTemplate(t *testing.T) {
	templates := []TimeTemplate{
		tpl(time.Monday, "09:00", "12:00", 30, 2),
		tpl(time.Monday, "14:00", "17:00", 30, 1),
	}

	m, _ := ParseMinuteOfDay("09:30")
	require.NotNil(t, MatchTemplate(templates, m))

	// End boundary is exclusive.
	noon, _ := ParseMinuteOfDay("12:00")
	assert.Nil(t, MatchTemplate(templates, noon))

	gap, _ := ParseMinuteOfDay("13:00")
	assert.Nil(t, MatchTemplate(templates, gap))

	afternoon, _ := ParseMinuteOfDay("14:00")
	got := MatchTemplate(templates, afternoon)
	require.NotNil(t, got)
	assert.Equal(t, 1, got.MaxConcurrent)
}

func TestClosureMatches(t *testing.T) {
	date := func(y int, m time.Month, d int) time.Time {
		return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	}

	exact := Closure{Date: date(2026, time.December, 25)}
	assert.True(t, exact.Matches(date(2026, time.December, 25)))
	assert.False(t, exact.Matches(date(2027, time.December, 25)))

	recurring := Closure{Date: date(2020, time.January, 1), IsRecurring: true}
	assert.True(t, recurring.Matches(date(2026, time.January, 1)))
	assert.True(t, recurring.Matches(date(2030, time.January, 1)))
	assert.False(t, recurring.Matches(date(2026, time.January, 2)))

	// Feb 29 closure only matches leap years, never drifts to Mar 1.
	leap := Closure{Date: date(2024, time.February, 29), IsRecurring: true}
	assert.True(t, leap.Matches(date(2028, time.February, 29)))
	assert.False(t, leap.Matches(date(2026, time.March, 1)))
}

func TestTemplateValidate(t *testing.T) {
	valid := tpl(time.Monday, "09:00", "17:00", 30, 2)
	require.NoError(t, valid.Validate())

	inverted := valid
	inverted.StartMinute, inverted.EndMinute = inverted.EndMinute, inverted.StartMinute
	assert.ErrorIs(t, inverted.Validate(), ErrInvalidTemplate)

	shortDur := valid
	shortDur.SlotDurationMinutes = 5
	assert.ErrorIs(t, shortDur.Validate(), ErrInvalidTemplate)

	longDur := valid
	longDur.SlotDurationMinutes = 180
	assert.ErrorIs(t, longDur.Validate(), ErrInvalidTemplate)

	zeroCap := valid
	zeroCap.MaxConcurrent = 0
	assert.ErrorIs(t, zeroCap.Validate(), ErrInvalidTemplate)

	hugeCap := valid
	hugeCap.MaxConcurrent = 11
	assert.ErrorIs(t, hugeCap.Validate(), ErrInvalidTemplate)
}
