package market

import (
	"fmt"
	"strings"
	"time"
)

// Interval is the bar width of a series.
type Interval string

const (
	Interval1m  Interval = "1m"
	Interval5m  Interval = "5m"
	Interval15m Interval = "15m"
	Interval30m Interval = "30m"
	Interval1h  Interval = "1h"
	Interval4h  Interval = "4h"
	Interval1d  Interval = "1d"
	Interval1w  Interval = "1w"
	Interval1M  Interval = "1M"
)

var intervalDurations = map[Interval]time.Duration{
	Interval1m:  time.Minute,
	Interval5m:  5 * time.Minute,
	Interval15m: 15 * time.Minute,
	Interval30m: 30 * time.Minute,
	Interval1h:  time.Hour,
	Interval4h:  4 * time.Hour,
	Interval1d:  24 * time.Hour,
	Interval1w:  7 * 24 * time.Hour,
	Interval1M:  30 * 24 * time.Hour,
}

var intervalAliases = map[string]Interval{
	"60m":    Interval1h,
	"240m":   Interval4h,
	"1wk":    Interval1w,
	"1mo":    Interval1M,
	"daily":  Interval1d,
	"weekly": Interval1w,
}

// Intervals lists every supported interval from the finest to the coarsest.
func Intervals() []Interval {
	return []Interval{Interval1m, Interval5m, Interval15m, Interval30m, Interval1h, Interval4h, Interval1d, Interval1w, Interval1M}
}

// ParseInterval accepts the canonical names plus a few common aliases.
// "1m" is a minute and "1M" a month, so matching is case-sensitive.
func ParseInterval(s string) (Interval, error) {
	s = strings.TrimSpace(s)
	if _, ok := intervalDurations[Interval(s)]; ok {
		return Interval(s), nil
	}
	if iv, ok := intervalAliases[strings.ToLower(s)]; ok {
		return iv, nil
	}
	return "", fmt.Errorf("unknown interval %q", s)
}

func (i Interval) Valid() bool {
	_, ok := intervalDurations[i]
	return ok
}

// Duration is the nominal width of one bar. Months count as 30 days.
func (i Interval) Duration() time.Duration {
	return intervalDurations[i]
}

// Intraday reports whether bars are narrower than a day.
func (i Interval) Intraday() bool {
	d := i.Duration()
	return d > 0 && d < 24*time.Hour
}

// Align snaps t onto the interval boundary in UTC. Intraday bars truncate
// the instant and daily bars keep the calendar date. Weekly bars start on
// the Monday of their ISO week, monthly bars on the first of the month.
func (i Interval) Align(t time.Time) time.Time {
	t = t.UTC()
	if i.Intraday() {
		return t.Truncate(i.Duration())
	}
	y, m, d := t.Date()
	switch i {
	case Interval1w:
		back := (int(t.Weekday()) + 6) % 7
		return time.Date(y, m, d-back, 0, 0, 0, 0, time.UTC)
	case Interval1M:
		return time.Date(y, m, 1, 0, 0, 0, 0, time.UTC)
	}
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func (i Interval) String() string { return string(i) }
