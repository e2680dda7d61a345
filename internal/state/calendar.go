/*
Package state
File: calendar.go
Description:
    The in-game calendar. Dates advance in whole days only, driven by explicit
    "advance time" commands, never by the wall clock.

    Month lengths follow the Gregorian calendar; February has 29 days in leap
    years (divisible by 4, except centuries not divisible by 400).
*/

package state

import "fmt"

// Date is a calendar day in the campaign.
type Date struct {
	Day   int `json:"day"`
	Month int `json:"month"` // 1-12
	Year  int `json:"year"`
}

// EpochYear anchors Ordinal; any campaign date on or after it is valid.
const EpochYear = 3000

var monthLengths = [12]int{31, 28, 31, 30, 31, 30, 31, 31, 30, 31, 30, 31}

var monthNames = [12]string{
	"January", "February", "March", "April", "May", "June",
	"July", "August", "September", "October", "November", "December",
}

// IsLeapYear applies the standard Gregorian rule.
func IsLeapYear(year int) bool {
	return year%4 == 0 && (year%100 != 0 || year%400 == 0)
}

// DaysInMonth returns the length of month in year.
func DaysInMonth(month, year int) int {
	if month < 1 || month > 12 {
		return 0
	}
	if month == 2 && IsLeapYear(year) {
		return 29
	}
	return monthLengths[month-1]
}

func daysInYear(year int) int {
	if IsLeapYear(year) {
		return 366
	}
	return 365
}

// Valid reports whether d names a real day on or after the epoch.
func (d Date) Valid() bool {
	if d.Year < EpochYear || d.Month < 1 || d.Month > 12 {
		return false
	}
	return d.Day >= 1 && d.Day <= DaysInMonth(d.Month, d.Year)
}

// AddDays moves forward (or back, for negative n) by n days with month/year rollover.
func (d Date) AddDays(n int) Date {
	for n > 0 {
		left := DaysInMonth(d.Month, d.Year) - d.Day
		if n <= left {
			d.Day += n
			return d
		}
		n -= left + 1
		d.Day = 1
		d.Month++
		if d.Month > 12 {
			d.Month = 1
			d.Year++
		}
	}
	for n < 0 {
		if -n < d.Day {
			d.Day += n
			return d
		}
		n += d.Day
		d.Month--
		if d.Month < 1 {
			d.Month = 12
			d.Year--
		}
		d.Day = DaysInMonth(d.Month, d.Year)
	}
	return d
}

// Ordinal counts days since 1 January of EpochYear (which is day 0).
func (d Date) Ordinal() int {
	days := 0
	for y := EpochYear; y < d.Year; y++ {
		days += daysInYear(y)
	}
	for m := 1; m < d.Month; m++ {
		days += DaysInMonth(m, d.Year)
	}
	return days + d.Day - 1
}

// DaysUntil returns other.Ordinal() - d.Ordinal().
func (d Date) DaysUntil(other Date) int {
	return other.Ordinal() - d.Ordinal()
}

// Before reports whether d is strictly earlier than other.
func (d Date) Before(other Date) bool {
	return d.Ordinal() < other.Ordinal()
}

// After reports whether d is strictly later than other.
func (d Date) After(other Date) bool {
	return d.Ordinal() > other.Ordinal()
}

func (d Date) String() string {
	if d.Month < 1 || d.Month > 12 {
		return fmt.Sprintf("%d/%d/%d", d.Day, d.Month, d.Year)
	}
	return fmt.Sprintf("%d %s %d", d.Day, monthNames[d.Month-1], d.Year)
}

// DaysBetween is the signed number of days from a to b.
func DaysBetween(a, b Date) int {
	return a.DaysUntil(b)
}
