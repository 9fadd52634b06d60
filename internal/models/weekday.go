package models

import (
	"strconv"
	"strings"
)

// Weekday is a school day in canonical form ("Monday".."Saturday").
type Weekday string

const (
	Monday    Weekday = "Monday"
	Tuesday   Weekday = "Tuesday"
	Wednesday Weekday = "Wednesday"
	Thursday  Weekday = "Thursday"
	Friday    Weekday = "Friday"
	Saturday  Weekday = "Saturday"
)

var Weekdays = []Weekday{Monday, Tuesday, Wednesday, Thursday, Friday, Saturday}

// Ordinal is 1 for Monday through 6 for Saturday, 0 for anything else.
func (d Weekday) Ordinal() int {
	for i, wd := range Weekdays {
		if wd == d {
			return i + 1
		}
	}
	return 0
}

func (d Weekday) Valid() bool {
	return d.Ordinal() != 0
}

// ParseWeekday accepts full names, short forms and ISO numbers 1..6,
// case-insensitive. Sunday is not a school day.
func ParseWeekday(s string) (Weekday, bool) {
	s = strings.TrimSpace(strings.ToLower(s))
	if s == "" {
		return "", false
	}

	if n, err := strconv.Atoi(s); err == nil {
		if n >= 1 && n <= len(Weekdays) {
			return Weekdays[n-1], true
		}
		return "", false
	}

	switch s {
	case "mon", "monday":
		return Monday, true
	case "tue", "tues", "tuesday":
		return Tuesday, true
	case "wed", "wednesday":
		return Wednesday, true
	case "thu", "thur", "thurs", "thursday":
		return Thursday, true
	case "fri", "friday":
		return Friday, true
	case "sat", "saturday":
		return Saturday, true
	default:
		return "", false
	}
}
