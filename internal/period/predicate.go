package period

import (
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"cashrecon/internal/core"
)

type kind int

const (
	kindDay kind = iota + 1
	kindMonth
	kindYear
	kindRange
)

var ErrInvalidPeriod = errors.New("invalid period")

// Predicate selects the dates that belong to a period.
type Predicate struct {
	kind  kind
	start core.Date
	end   core.Date
}

// Day selects a single date.
func Day(d core.Date) Predicate {
	return Predicate{kind: kindDay, start: d, end: d}
}

// Month selects every day of year-month.
func Month(year, month int) Predicate {
	start := core.NewDate(year, month, 1)
	end := core.Date{Time: start.AddDate(0, 1, -1)}
	return Predicate{kind: kindMonth, start: start, end: end}
}

// Year selects a whole calendar year. Its series is bucketed by month.
func Year(year int) Predicate {
	return Predicate{kind: kindYear, start: core.NewDate(year, 1, 1), end: core.NewDate(year, 12, 31)}
}

// Range selects start..end inclusive. A range with start after end is empty.
func Range(start, end core.Date) Predicate {
	return Predicate{kind: kindRange, start: start, end: end}
}

// Contains reports whether d falls inside the period.
func (p Predicate) Contains(d core.Date) bool {
	return !d.Before(p.start.Time) && !d.After(p.end.Time)
}

// WholeYear reports whether the period is a calendar year.
func (p Predicate) WholeYear() bool {
	return p.kind == kindYear
}

// Bounds returns the first and last date of the period.
func (p Predicate) Bounds() (core.Date, core.Date) {
	return p.start, p.end
}

// Empty reports whether no date can match.
func (p Predicate) Empty() bool {
	return p.start.After(p.end.Time)
}

func (p Predicate) bucketKey(d core.Date) string {
	if p.kind == kindYear {
		return d.MonthKey()
	}
	return d.String()
}

func (p Predicate) String() string {
	switch p.kind {
	case kindDay:
		return "day:" + p.start.String()
	case kindMonth:
		return "month:" + p.start.MonthKey()
	case kindYear:
		return "year:" + strconv.Itoa(p.start.Year())
	case kindRange:
		return "range:" + p.start.String() + ".." + p.end.String()
	}
	return "invalid"
}

// ParseQuery builds a predicate from exactly one of day, month, year or a
// from/to pair. A from after to is rejected here even though Range accepts it.
func ParseQuery(q url.Values) (Predicate, error) {
	day, month, year := q.Get("day"), q.Get("month"), q.Get("year")
	from, to := q.Get("from"), q.Get("to")

	set := 0
	for _, v := range []string{day, month, year} {
		if v != "" {
			set++
		}
	}
	if from != "" || to != "" {
		set++
	}
	if set != 1 {
		return Predicate{}, fmt.Errorf("%w: exactly one of day, month, year or from/to is required", ErrInvalidPeriod)
	}

	switch {
	case day != "":
		d, err := core.ParseDate(day)
		if err != nil {
			return Predicate{}, fmt.Errorf("%w: %v", ErrInvalidPeriod, err)
		}
		return Day(d), nil
	case month != "":
		t, err := time.Parse("2006-01", strings.TrimSpace(month))
		if err != nil {
			return Predicate{}, fmt.Errorf("%w: month %q", ErrInvalidPeriod, month)
		}
		return Month(t.Year(), int(t.Month())), nil
	case year != "":
		y, err := strconv.Atoi(strings.TrimSpace(year))
		if err != nil || y < 1 || y > 9999 {
			return Predicate{}, fmt.Errorf("%w: year %q", ErrInvalidPeriod, year)
		}
		return Year(y), nil
	}

	if from == "" || to == "" {
		return Predicate{}, fmt.Errorf("%w: both from and to are required", ErrInvalidPeriod)
	}
	start, err := core.ParseDate(from)
	if err != nil {
		return Predicate{}, fmt.Errorf("%w: %v", ErrInvalidPeriod, err)
	}
	end, err := core.ParseDate(to)
	if err != nil {
		return Predicate{}, fmt.Errorf("%w: %v", ErrInvalidPeriod, err)
	}
	if start.After(end.Time) {
		return Predicate{}, fmt.Errorf("%w: from %s is after to %s", ErrInvalidPeriod, start, end)
	}
	return Range(start, end), nil
}
