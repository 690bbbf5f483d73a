package ranking

import (
	"errors"
	"testing"
	"time"
)

func TestParsePeriod(t *testing.T) {
	tests := []struct {
		input   string
		want    Period
		wantErr bool
	}{
		{input: "day", want: PeriodDay},
		{input: "week", want: PeriodWeek},
		{input: "month", want: PeriodMonth},
		{input: "all", want: PeriodAll},
		{input: "", want: PeriodAll},
		{input: "year", wantErr: true},
		{input: "DAY", wantErr: true},
		{input: "weekly", wantErr: true},
	}

	for _, tt := range tests {
		t.Run("input_"+tt.input, func(t *testing.T) {
			got, err := ParsePeriod(tt.input)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidPeriod) {
					t.Errorf("ParsePeriod(%q) error = %v, want ErrInvalidPeriod", tt.input, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParsePeriod(%q) unexpected error: %v", tt.input, err)
			}
			if got != tt.want {
				t.Errorf("ParsePeriod(%q) = %s, want %s", tt.input, got, tt.want)
			}
		})
	}
}

func TestPeriodWindow(t *testing.T) {
	// Wednesday, June 18 2025, 15:04:05 UTC
	at := time.Date(2025, 6, 18, 15, 4, 5, 0, time.UTC)

	tests := []struct {
		period    Period
		wantStart time.Time
		wantEnd   time.Time
	}{
		{
			period:    PeriodDay,
			wantStart: time.Date(2025, 6, 18, 0, 0, 0, 0, time.UTC),
			wantEnd:   time.Date(2025, 6, 19, 0, 0, 0, 0, time.UTC),
		},
		{
			period:    PeriodWeek,
			wantStart: time.Date(2025, 6, 16, 0, 0, 0, 0, time.UTC), // Monday
			wantEnd:   time.Date(2025, 6, 23, 0, 0, 0, 0, time.UTC),
		},
		{
			period:    PeriodMonth,
			wantStart: time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC),
			wantEnd:   time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC),
		},
		{
			period:    PeriodAll,
			wantStart: time.Time{},
			wantEnd:   time.Time{},
		},
	}

	for _, tt := range tests {
		t.Run(string(tt.period), func(t *testing.T) {
			start, end := tt.period.Window(at)
			if !start.Equal(tt.wantStart) {
				t.Errorf("Window() start = %v, want %v", start, tt.wantStart)
			}
			if !end.Equal(tt.wantEnd) {
				t.Errorf("Window() end = %v, want %v", end, tt.wantEnd)
			}
		})
	}
}

func TestPeriodWindow_WeekStartsMonday(t *testing.T) {
	// A Sunday belongs to the week that started the previous Monday.
	sunday := time.Date(2025, 6, 22, 10, 0, 0, 0, time.UTC)
	start, _ := PeriodWeek.Window(sunday)
	if want := time.Date(2025, 6, 16, 0, 0, 0, 0, time.UTC); !start.Equal(want) {
		t.Errorf("Sunday week start = %v, want %v", start, want)
	}

	// A Monday starts its own week.
	monday := time.Date(2025, 6, 16, 0, 0, 0, 0, time.UTC)
	start, _ = PeriodWeek.Window(monday)
	if !start.Equal(monday) {
		t.Errorf("Monday week start = %v, want %v", start, monday)
	}
}

func TestPeriodWindow_NonUTCInput(t *testing.T) {
	// 23:30 in UTC+2 on June 18 is 21:30 UTC the same day; windows anchor
	// to the UTC calendar regardless of the input zone.
	loc := time.FixedZone("UTC+2", 2*3600)
	at := time.Date(2025, 6, 18, 23, 30, 0, 0, loc)

	start, end := PeriodDay.Window(at)
	if want := time.Date(2025, 6, 18, 0, 0, 0, 0, time.UTC); !start.Equal(want) {
		t.Errorf("day start = %v, want %v", start, want)
	}
	if want := time.Date(2025, 6, 19, 0, 0, 0, 0, time.UTC); !end.Equal(want) {
		t.Errorf("day end = %v, want %v", end, want)
	}
}

func TestPeriodWindow_DayBoundaryIsExclusive(t *testing.T) {
	// 23:59:59 falls inside the day; 00:00:01 the next morning does not.
	queryTime := time.Date(2025, 6, 18, 12, 0, 0, 0, time.UTC)
	start, end := PeriodDay.Window(queryTime)

	lastSecond := time.Date(2025, 6, 18, 23, 59, 59, 0, time.UTC)
	nextMorning := time.Date(2025, 6, 19, 0, 0, 1, 0, time.UTC)
	prevNight := time.Date(2025, 6, 17, 23, 59, 59, 0, time.UTC)

	inWindow := func(ts time.Time) bool {
		return !ts.Before(start) && ts.Before(end)
	}
	if !inWindow(lastSecond) {
		t.Errorf("23:59:59 excluded from its own day window [%v, %v)", start, end)
	}
	if inWindow(nextMorning) {
		t.Errorf("00:00:01 next day included in window [%v, %v)", start, end)
	}
	if inWindow(prevNight) {
		t.Errorf("23:59:59 previous day included in window [%v, %v)", start, end)
	}
}

func TestPeriodWindow_MonthBoundary(t *testing.T) {
	// January rolls into February; December rolls into next year.
	start, end := PeriodMonth.Window(time.Date(2025, 12, 31, 23, 59, 59, 0, time.UTC))
	if want := time.Date(2025, 12, 1, 0, 0, 0, 0, time.UTC); !start.Equal(want) {
		t.Errorf("month start = %v, want %v", start, want)
	}
	if want := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC); !end.Equal(want) {
		t.Errorf("month end = %v, want %v", end, want)
	}
}
