package monitor

import (
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
)

const (
	day  = 24 * time.Hour
	week = 7 * day
)

var effortPattern = regexp.MustCompile(`^(\d+(?:\.\d+)?)\s*([a-z]+)$`)

var effortUnits = map[string]time.Duration{
	"m": time.Minute, "min": time.Minute, "mins": time.Minute, "minute": time.Minute, "minutes": time.Minute,
	"h": time.Hour, "hr": time.Hour, "hrs": time.Hour, "hour": time.Hour, "hours": time.Hour,
	"d": day, "day": day, "days": day,
	"w": week, "wk": week, "wks": week, "week": week, "weeks": week,
}

// ParseEffort converts a free-form effort estimate into a duration.
// It accepts a number followed by a unit ("30m", "1.5h", "2 days",
// "3 weeks") as well as Go duration strings ("1h30m"). A day is 24 hours
// and a week is 7 days. The second return value is false for anything
// else, including non-positive amounts and amounts too large for a
// Duration.
func ParseEffort(s string) (time.Duration, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return 0, false
	}

	if d, err := time.ParseDuration(s); err == nil {
		if d <= 0 {
			return 0, false
		}
		return d, true
	}

	m := effortPattern.FindStringSubmatch(s)
	if m == nil {
		return 0, false
	}
	unit, ok := effortUnits[m[2]]
	if !ok {
		return 0, false
	}
	n, err := strconv.ParseFloat(m[1], 64)
	if err != nil || n <= 0 {
		return 0, false
	}
	d := n * float64(unit)
	if d < 1 || d >= math.MaxInt64 {
		return 0, false
	}
	return time.Duration(d), true
}

const minuteRound = time.Minute

// timeMultiple scales d by f.
func timeMultiple(d time.Duration, f float64) time.Duration {
	return time.Duration(float64(d) * f)
}
