// Package calendar answers "is D a trading day?" and "what is the prev/next
// trading day?" from a flat file of legal trading dates, plus a secondary
// per-year holiday file used only for display and sanity checks.
//
// Design mirrors the teacher's market.Calendar in shape (lazy load, a
// handful of small query methods) but the membership test itself follows
// section 4.1 exactly: a sorted slice and a hash set, not weekday+holiday
// inference.
package calendar

import (
	"bufio"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/nitinkhare/stockrs-go/internal/stockerr"
)

// Calendar holds every legal trading date as both a sorted slice (for
// next/prev search) and a set (for membership tests), plus lazily-loaded
// per-year holiday lists for display purposes only.
type Calendar struct {
	dates   []int // sorted ascending, YYYYMMDD
	dateSet map[int]struct{}

	holidayFileTemplate string // contains "{}" for the year
	holidaysByYear      map[int]map[string]struct{}
}

// Load reads the trading-dates file (one YYYYMMDD per line) into the sorted
// slice and hash set. holidayFileTemplate is a path template containing "{}"
// for the year, consulted lazily by HolidaysForYear.
func Load(tradingDatesPath, holidayFileTemplate string) (*Calendar, error) {
	f, err := os.Open(tradingDatesPath)
	if err != nil {
		return nil, stockerr.Wrap(stockerr.KindConfig, "calendar", "load trading dates", err)
	}
	defer f.Close()

	c := &Calendar{
		dateSet:             make(map[int]struct{}),
		holidayFileTemplate: holidayFileTemplate,
		holidaysByYear:      make(map[int]map[string]struct{}),
	}

	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		d, err := strconv.Atoi(line)
		if err != nil {
			return nil, stockerr.Wrap(stockerr.KindParsing, "calendar", "parse trading date line", err)
		}
		if _, dup := c.dateSet[d]; !dup {
			c.dates = append(c.dates, d)
			c.dateSet[d] = struct{}{}
		}
	}
	if err := sc.Err(); err != nil {
		return nil, stockerr.Wrap(stockerr.KindIO, "calendar", "scan trading dates file", err)
	}
	sort.Ints(c.dates)
	return c, nil
}

// IsTradingDay reports pure set membership, per section 4.1.
func (c *Calendar) IsTradingDay(d int) bool {
	_, ok := c.dateSet[d]
	return ok
}

// NextTradingDay returns the smallest element strictly greater than d; if
// none exists, returns d unchanged.
func (c *Calendar) NextTradingDay(d int) int {
	i := sort.SearchInts(c.dates, d+1)
	for ; i < len(c.dates); i++ {
		if c.dates[i] > d {
			return c.dates[i]
		}
	}
	return d
}

// PrevTradingDay returns the largest element strictly less than d; if none
// exists, returns d unchanged.
func (c *Calendar) PrevTradingDay(d int) int {
	i := sort.SearchInts(c.dates, d)
	if i == 0 {
		return d
	}
	return c.dates[i-1]
}

// HolidaysForYear loads (once, then caches) the per-year holiday display
// file for sanity checks. It refuses rather than silently treating weekends
// as trading days when the file for a requested year is missing.
func (c *Calendar) HolidaysForYear(year int) (map[string]struct{}, error) {
	if hs, ok := c.holidaysByYear[year]; ok {
		return hs, nil
	}
	path := strings.Replace(c.holidayFileTemplate, "{}", fmt.Sprintf("%d", year), 1)
	f, err := os.Open(path)
	if err != nil {
		return nil, stockerr.Wrap(stockerr.KindConfig, "calendar", fmt.Sprintf("load holiday file for year %d", year), err)
	}
	defer f.Close()

	hs := make(map[string]struct{})
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		hs[line] = struct{}{}
	}
	if err := sc.Err(); err != nil {
		return nil, stockerr.Wrap(stockerr.KindIO, "calendar", "scan holiday file", err)
	}
	c.holidaysByYear[year] = hs
	return hs, nil
}

// First returns the earliest loaded trading date, or 0 if none loaded.
func (c *Calendar) First() int {
	if len(c.dates) == 0 {
		return 0
	}
	return c.dates[0]
}

// Last returns the latest loaded trading date, or 0 if none loaded.
func (c *Calendar) Last() int {
	if len(c.dates) == 0 {
		return 0
	}
	return c.dates[len(c.dates)-1]
}
