package core

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"time"
)

// Date is a calendar day in the server's local zone. Instants are stored
// as epoch seconds; Date exists only at the boundary and for bucketing.
type Date struct {
	time.Time
}

// NewDate builds a Date at local midnight.
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.Local)}
}

// DateOf truncates an instant to its local calendar day.
func DateOf(t time.Time) Date {
	year, month, day := t.Local().Date()
	return NewDate(year, int(month), day)
}

// ParseDate parses a YYYY-MM-DD day in the local zone.
func ParseDate(s string) (Date, error) {
	t, err := time.ParseInLocation("2006-01-02", s, time.Local)
	if err != nil {
		return Date{}, fmt.Errorf("parse date %q: %w", s, err)
	}
	return Date{Time: t}, nil
}

func (d Date) String() string {
	return d.Format("2006-01-02")
}

func (d Date) MarshalJSON() ([]byte, error) {
	return []byte(strconv.Quote(d.String())), nil
}

func (d *Date) UnmarshalJSON(data []byte) error {
	s, err := strconv.Unquote(string(data))
	if err != nil {
		return err
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// Window returns the day's bucketing window as epoch seconds: local
// midnight and the midnight 24 hours later. Both ends are inclusive when
// filtering record start times, matching the day aggregator's policy.
func (d Date) Window() (begin, end int64) {
	begin = d.Unix()
	end = d.AddDate(0, 0, 1).Unix()
	return begin, end
}

var ErrInvalidWeek = errors.New("invalid ISO week identifier")

// ISOWeek identifies a Monday-starting ISO-8601 week (YYYY-Www).
type ISOWeek struct {
	Year int
	Week int

	raw string
}

var isoWeekPattern = regexp.MustCompile(`^(\d{4})-W(\d{2})$`)

// ParseISOWeek parses identifiers like "2019-W28". The week must exist in
// the given ISO year; week 53 is only valid for long years.
func ParseISOWeek(s string) (ISOWeek, error) {
	m := isoWeekPattern.FindStringSubmatch(s)
	if m == nil {
		return ISOWeek{}, fmt.Errorf("%w: %q", ErrInvalidWeek, s)
	}
	year, _ := strconv.Atoi(m[1])
	week, _ := strconv.Atoi(m[2])
	if week < 1 || week > 53 {
		return ISOWeek{}, fmt.Errorf("%w: %q", ErrInvalidWeek, s)
	}
	w := ISOWeek{Year: year, Week: week, raw: s}
	monday := w.Monday()
	if y, wk := monday.ISOWeek(); y != year || wk != week {
		return ISOWeek{}, fmt.Errorf("%w: %q has no week %d", ErrInvalidWeek, s, week)
	}
	return w, nil
}

// String echoes the identifier exactly as parsed.
func (w ISOWeek) String() string {
	if w.raw != "" {
		return w.raw
	}
	return fmt.Sprintf("%04d-W%02d", w.Year, w.Week)
}

// Monday returns the first day of the week. January 4th is always in
// ISO week 1, which anchors the arithmetic.
func (w ISOWeek) Monday() Date {
	jan4 := time.Date(w.Year, time.January, 4, 0, 0, 0, 0, time.Local)
	week1Monday := jan4.AddDate(0, 0, -((int(jan4.Weekday()) + 6) % 7))
	return Date{Time: week1Monday.AddDate(0, 0, (w.Week-1)*7)}
}

// Days returns the week's seven calendar days, Monday first.
func (w ISOWeek) Days() [7]Date {
	var days [7]Date
	monday := w.Monday()
	for i := range days {
		days[i] = Date{Time: monday.AddDate(0, 0, i)}
	}
	return days
}
