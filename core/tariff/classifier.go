// Package tariff assigns Slovenian network-tariff time blocks (1..5) to
// timestamps. Block 1 is the most expensive; block 5 the cheapest.
package tariff

import (
	"fmt"
	"sync"
	"time"

	"github.com/kilianp07/bessim/core/model"
)

// NumBlocks is the number of tariff blocks.
const NumBlocks = 5

var (
	highWorking = [24]int{3, 3, 3, 3, 3, 3, 2, 1, 1, 1, 1, 1, 1, 1, 2, 2, 1, 1, 1, 1, 2, 2, 3, 3}
	highWorkoff = [24]int{4, 4, 4, 4, 4, 4, 3, 2, 2, 2, 2, 2, 2, 2, 3, 3, 2, 2, 2, 2, 3, 3, 4, 4}
	lowWorking  = highWorkoff
	lowWorkoff  = [24]int{5, 5, 5, 5, 5, 5, 4, 3, 3, 3, 3, 3, 3, 3, 4, 4, 3, 3, 3, 3, 4, 4, 5, 5}
)

// DefaultHighSeason lists the months treated as high season (October to
// March inclusive).
var DefaultHighSeason = []time.Month{
	time.October, time.November, time.December,
	time.January, time.February, time.March,
}

// Config tunes the classifier.
type Config struct {
	// HighSeason months; empty means DefaultHighSeason.
	HighSeason []time.Month
	// Shift is subtracted from each timestamp before lookup so that a sample
	// stamped at the end of its interval is classified by its start.
	Shift time.Duration
	// Location used to read the wall-clock hour; nil keeps the timestamp's own.
	Location *time.Location
	// ExtraHolidays are additional work-off dates (only Y/M/D are used).
	ExtraHolidays []time.Time
}

// Classifier maps timestamps to tariff blocks. It is safe for concurrent use.
type Classifier struct {
	high      [13]bool
	shift     time.Duration
	autoShift bool
	loc       *time.Location
	extra     map[civilDate]bool
	cache     *holidayCache
}

type holidayCache struct {
	mu    sync.Mutex
	years map[int]map[civilDate]bool
}

// New returns a Classifier. The zero Config uses DefaultHighSeason and a
// 15 minute shift.
func New(cfg Config) *Classifier {
	c := &Classifier{
		shift: cfg.Shift,
		loc:   cfg.Location,
		extra: make(map[civilDate]bool),
		cache: &holidayCache{years: make(map[int]map[civilDate]bool)},
	}
	if c.shift == 0 {
		c.shift = model.DefaultStep
		c.autoShift = true
	}
	months := cfg.HighSeason
	if len(months) == 0 {
		months = DefaultHighSeason
	}
	for _, m := range months {
		c.high[m] = true
	}
	for _, d := range cfg.ExtraHolidays {
		c.extra[dateOf(d)] = true
	}
	return c
}

// Block returns the tariff block for t.
func (c *Classifier) Block(t time.Time) int {
	if c.loc != nil {
		t = t.In(c.loc)
	}
	t = t.Add(-c.shift)
	return c.table(t)[t.Hour()]
}

func (c *Classifier) table(t time.Time) *[24]int {
	off := c.IsWorkoff(t)
	switch {
	case c.high[t.Month()] && !off:
		return &highWorking
	case c.high[t.Month()]:
		return &highWorkoff
	case !off:
		return &lowWorking
	default:
		return &lowWorkoff
	}
}

// IsHighSeason reports whether t falls in a high-season month.
func (c *Classifier) IsHighSeason(t time.Time) bool { return c.high[t.Month()] }

// IsWorkoff reports whether t is a weekend day or a public holiday.
func (c *Classifier) IsWorkoff(t time.Time) bool {
	if wd := t.Weekday(); wd == time.Saturday || wd == time.Sunday {
		return true
	}
	d := dateOf(t)
	if c.extra[d] {
		return true
	}
	return c.holidaysFor(t.Year())[d]
}

func (c *Classifier) holidaysFor(year int) map[civilDate]bool {
	c.cache.mu.Lock()
	defer c.cache.mu.Unlock()
	if h, ok := c.cache.years[year]; ok {
		return h
	}
	h := SloveniaHolidays(year)
	c.cache.years[year] = h
	return h
}

// Label returns a copy of s where every unlabelled sample carries its block.
// Unless a shift was configured explicitly, the series step is used.
func (c *Classifier) Label(s *model.Series) *model.Series {
	cc := *c
	if c.autoShift {
		cc.shift = s.Step()
	}
	out := s.Clone()
	for i := range out.Samples {
		if out.Samples[i].Block == 0 {
			out.Samples[i].Block = cc.Block(out.Samples[i].Time)
		}
	}
	return out
}

// ParseMonths converts month numbers (1..12) into time.Month values.
func ParseMonths(nums []int) ([]time.Month, error) {
	out := make([]time.Month, 0, len(nums))
	for _, n := range nums {
		if n < 1 || n > 12 {
			return nil, fmt.Errorf("invalid month %d", n)
		}
		out = append(out, time.Month(n))
	}
	return out, nil
}
