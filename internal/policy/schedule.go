package policy

import (
	"errors"
	"fmt"
	"slices"
	"time"
)

var ErrInvalidSchedule = errors.New("invalid peak schedule")

const DefaultPeakFloor = 5

// PeakWindow is a daily interval of expected peak traffic. Start and End are
// "HH:MM" and both inclusive; End before Start wraps past midnight. An empty
// Days list means every day.
type PeakWindow struct {
	Days  []time.Weekday `json:"days,omitempty" mapstructure:"days"`
	Start string         `json:"start" mapstructure:"start"`
	End   string         `json:"end" mapstructure:"end"`
}

type window struct {
	days  []time.Weekday
	start int // minute of day
	end   int
}

func (w window) onDay(d time.Weekday) bool {
	return len(w.days) == 0 || slices.Contains(w.days, d)
}

func (w window) contains(t time.Time) bool {
	minute := t.Hour()*60 + t.Minute()
	if w.start <= w.end {
		return w.onDay(t.Weekday()) && minute >= w.start && minute <= w.end
	}
	// wrapping: the after-midnight part belongs to the previous day's window
	if minute >= w.start {
		return w.onDay(t.Weekday())
	}
	if minute <= w.end {
		return w.onDay(t.Add(-24 * time.Hour).Weekday())
	}
	return false
}

// Schedule holds the known peak windows and the minimum fleet size enforced
// inside them.
type Schedule struct {
	location *time.Location
	floor    int
	windows  []window
}

// DefaultPeakWindows are the two daily traffic peaks of the reference workload.
func DefaultPeakWindows() []PeakWindow {
	return []PeakWindow{
		{Start: "09:00", End: "11:59"},
		{Start: "14:00", End: "16:59"},
	}
}

func NewSchedule(location *time.Location, floor int, windows ...PeakWindow) (*Schedule, error) {
	if location == nil {
		location = time.UTC
	}
	if floor < 0 {
		return nil, fmt.Errorf("%w: negative floor %d", ErrInvalidSchedule, floor)
	}

	s := &Schedule{location: location, floor: floor}
	for i, pw := range windows {
		start, err := parseClock(pw.Start)
		if err != nil {
			return nil, fmt.Errorf("%w: window %d start: %v", ErrInvalidSchedule, i, err)
		}
		end, err := parseClock(pw.End)
		if err != nil {
			return nil, fmt.Errorf("%w: window %d end: %v", ErrInvalidSchedule, i, err)
		}
		s.windows = append(s.windows, window{days: slices.Clone(pw.Days), start: start, end: end})
	}
	return s, nil
}

func DefaultSchedule() *Schedule {
	s, _ := NewSchedule(time.UTC, DefaultPeakFloor, DefaultPeakWindows()...)
	return s
}

// InPeak reports whether t, converted to the schedule's location, falls in
// any window.
func (s *Schedule) InPeak(t time.Time) bool {
	local := t.In(s.location)
	for _, w := range s.windows {
		if w.contains(local) {
			return true
		}
	}
	return false
}

func (s *Schedule) Floor() int {
	return s.floor
}

func (s *Schedule) Location() *time.Location {
	return s.location
}

func parseClock(v string) (int, error) {
	t, err := time.Parse("15:04", v)
	if err != nil {
		return 0, fmt.Errorf("%q is not HH:MM", v)
	}
	return t.Hour()*60 + t.Minute(), nil
}
