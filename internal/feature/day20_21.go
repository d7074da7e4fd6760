package feature

import (
	"fmt"
	"math"
	"time"

	"github.com/nitinkhare/stockrs-go/internal/stockerr"
)

// day20/day21 derive calendar-position features from asof alone: weekday,
// seasonal month encoding, and the special trading-calendar windows
// (month/quarter/half-year end, triple witching, window dressing, the
// "Santa Claus rally").

func parseYMD(asof int) (time.Time, error) {
	s := fmt.Sprintf("%08d", asof)
	t, err := time.Parse("20060102", s)
	if err != nil {
		return time.Time{}, stockerr.Wrap(stockerr.KindParsing, "feature.day20", fmt.Sprintf("parse asof %d", asof), err)
	}
	return t, nil
}

func isMonthEndTradingDay(b Bundle, t time.Time) bool {
	if b.Cal == nil {
		return false
	}
	next := b.Cal.NextTradingDay(b.Asof)
	if next == b.Asof {
		return false
	}
	nextT, err := parseYMD(next)
	if err != nil {
		return false
	}
	return nextT.Month() != t.Month()
}

func isThirdFriday(t time.Time) bool {
	if t.Weekday() != time.Friday {
		return false
	}
	return t.Day() >= 15 && t.Day() <= 21
}

func init() {
	weekdays := []time.Weekday{time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday}
	names := []string{"mon", "tue", "wed", "thu", "fri"}
	for i := range weekdays {
		wd := weekdays[i]
		Register("day20.weekday_onehot_"+names[i], func(b Bundle) (float64, error) {
			t, err := parseYMD(b.Asof)
			if err != nil {
				return 0, err
			}
			if t.Weekday() == wd {
				return 1, nil
			}
			return 0, nil
		})
	}

	Register("day20.month_sin", func(b Bundle) (float64, error) {
		t, err := parseYMD(b.Asof)
		if err != nil {
			return 0, err
		}
		return math.Sin(2 * math.Pi * float64(t.Month()) / 12), nil
	})
	Register("day20.month_cos", func(b Bundle) (float64, error) {
		t, err := parseYMD(b.Asof)
		if err != nil {
			return 0, err
		}
		return math.Cos(2 * math.Pi * float64(t.Month()) / 12), nil
	})

	Register("day21.month_end_flag", func(b Bundle) (float64, error) {
		t, err := parseYMD(b.Asof)
		if err != nil {
			return 0, err
		}
		if isMonthEndTradingDay(b, t) {
			return 1, nil
		}
		return 0, nil
	})

	Register("day21.quarter_end_flag", func(b Bundle) (float64, error) {
		t, err := parseYMD(b.Asof)
		if err != nil {
			return 0, err
		}
		if isMonthEndTradingDay(b, t) && t.Month()%3 == 0 {
			return 1, nil
		}
		return 0, nil
	})

	Register("day21.half_year_end_flag", func(b Bundle) (float64, error) {
		t, err := parseYMD(b.Asof)
		if err != nil {
			return 0, err
		}
		if isMonthEndTradingDay(b, t) && (t.Month() == time.June || t.Month() == time.December) {
			return 1, nil
		}
		return 0, nil
	})

	Register("day21.triple_witching_flag", func(b Bundle) (float64, error) {
		t, err := parseYMD(b.Asof)
		if err != nil {
			return 0, err
		}
		switch t.Month() {
		case time.March, time.June, time.September, time.December:
			if isThirdFriday(t) {
				return 1, nil
			}
		}
		return 0, nil
	})

	Register("day21.window_dressing_flag", func(b Bundle) (float64, error) {
		t, err := parseYMD(b.Asof)
		if err != nil {
			return 0, err
		}
		if t.Month()%3 != 0 {
			return 0, nil
		}
		lastDay := time.Date(t.Year(), t.Month()+1, 0, 0, 0, 0, 0, t.Location()).Day()
		if t.Day() >= lastDay-3 {
			return 1, nil
		}
		return 0, nil
	})

	Register("day21.santa_rally_flag", func(b Bundle) (float64, error) {
		t, err := parseYMD(b.Asof)
		if err != nil {
			return 0, err
		}
		if (t.Month() == time.December && t.Day() >= 26) || (t.Month() == time.January && t.Day() <= 3) {
			return 1, nil
		}
		return 0, nil
	})

	Register("day21.week_of_year_norm", func(b Bundle) (float64, error) {
		t, err := parseYMD(b.Asof)
		if err != nil {
			return 0, err
		}
		_, week := t.ISOWeek()
		return float64(week) / 52.0, nil
	})
}
