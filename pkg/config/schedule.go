package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/OldStager01/predictive-autoscaler/internal/policy"
)

var weekdays = map[string]time.Weekday{
	"sun": time.Sunday, "sunday": time.Sunday,
	"mon": time.Monday, "monday": time.Monday,
	"tue": time.Tuesday, "tuesday": time.Tuesday,
	"wed": time.Wednesday, "wednesday": time.Wednesday,
	"thu": time.Thursday, "thursday": time.Thursday,
	"fri": time.Friday, "friday": time.Friday,
	"sat": time.Saturday, "saturday": time.Saturday,
}

func parseWeekday(name string) (time.Weekday, error) {
	d, ok := weekdays[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return 0, fmt.Errorf("unknown weekday %q", name)
	}
	return d, nil
}

// PeakWindows converts the configured windows, resolving day names.
func (s ScheduleConfig) PeakWindows() ([]policy.PeakWindow, error) {
	windows := make([]policy.PeakWindow, 0, len(s.Windows))
	for _, w := range s.Windows {
		pw := policy.PeakWindow{Start: w.Start, End: w.End}
		for _, name := range w.Days {
			d, err := parseWeekday(name)
			if err != nil {
				return nil, err
			}
			pw.Days = append(pw.Days, d)
		}
		windows = append(windows, pw)
	}
	return windows, nil
}

// Build returns the policy schedule, or nil when peak-hour floors are disabled.
func (s ScheduleConfig) Build() (*policy.Schedule, error) {
	if !s.Enabled {
		return nil, nil
	}
	loc, err := s.LoadLocation()
	if err != nil {
		return nil, fmt.Errorf("invalid timezone %q: %w", s.Timezone, err)
	}
	windows, err := s.PeakWindows()
	if err != nil {
		return nil, err
	}
	return policy.NewSchedule(loc, s.Floor, windows...)
}
