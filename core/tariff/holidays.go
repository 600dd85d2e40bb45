package tariff

import "time"

type civilDate struct {
	year  int
	month time.Month
	day   int
}

func dateOf(t time.Time) civilDate {
	y, m, d := t.Date()
	return civilDate{y, m, d}
}

// SloveniaHolidays returns the non-working public holidays of a year.
func SloveniaHolidays(year int) map[civilDate]bool {
	fixed := []struct {
		m time.Month
		d int
	}{
		{time.January, 1}, {time.January, 2},
		{time.February, 8},
		{time.April, 27},
		{time.May, 1}, {time.May, 2},
		{time.June, 25},
		{time.August, 15},
		{time.October, 31},
		{time.November, 1},
		{time.December, 25}, {time.December, 26},
	}
	h := make(map[civilDate]bool, len(fixed)+3)
	for _, f := range fixed {
		h[civilDate{year, f.m, f.d}] = true
	}
	easter := EasterSunday(year)
	for _, offset := range []int{0, 1, 49} {
		h[dateOf(easter.AddDate(0, 0, offset))] = true
	}
	return h
}

// EasterSunday computes the Gregorian Easter date (anonymous algorithm).
func EasterSunday(year int) time.Time {
	a := year % 19
	b := year / 100
	c := year % 100
	d := b / 4
	e := b % 4
	f := (b + 8) / 25
	g := (b - f + 1) / 3
	h := (19*a + b - d - g + 15) % 30
	i := c / 4
	k := c % 4
	l := (32 + 2*e + 2*i - h - k) % 7
	m := (a + 11*h + 22*l) / 451
	month := (h + l - 7*m + 114) / 31
	day := ((h + l - 7*m + 114) % 31) + 1
	return time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
}
