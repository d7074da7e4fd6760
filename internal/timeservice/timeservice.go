// Package timeservice maintains the Runner's monotone event cursor. It
// never emits an instant outside a trading day and never runs two events
// out of order, matching the teacher's scheduler's explicit-state style
// (no package-level mutable clock) generalized to the two modes the spec
// requires: Simulated (instant cursor jumps) and Wall-clock (real sleeps).
package timeservice

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/nitinkhare/stockrs-go/internal/calendar"
	"github.com/nitinkhare/stockrs-go/internal/stockerr"
)

// Mode selects how Advance paces the cursor.
type Mode int

const (
	// Simulated jumps the cursor to each scheduled instant with no wall
	// clock delay — used by the Backtest backend.
	Simulated Mode = iota
	// WallClock sleeps until OS time reaches the next scheduled instant —
	// used by the Real/Paper backends.
	WallClock
)

// ScheduleConfig describes the per-day event schedule and the overall
// trading window.
type ScheduleConfig struct {
	StartDate                 int // YYYYMMDD
	EndDate                   int // YYYYMMDD
	TradingStartHHMM          int
	TradingEndHHMM            int
	MorningWindowEndHHMM      int
	EventCheckIntervalMinutes int
}

// Event is one instant the Runner must process.
type Event struct {
	Ts         int64 // YYYYMMDDHHMM
	Date       int   // YYYYMMDD
	DayChanged bool  // true the first time a new trading date is emitted
	EndOfDay   bool  // true when this is the day's last scheduled instant
}

// Service is the monotone event cursor. Not safe for concurrent Advance
// calls — the Runner's event loop is single-threaded by design (section 5).
type Service struct {
	cal    *calendar.Calendar
	cfg    ScheduleConfig
	mode   Mode
	events []int // sorted HHMM instants within one trading day

	day int // current trading date, 0 before the first Advance
	idx int // index into events for the current day, -1 before the first Advance

	stopOnce sync.Once
	stopCh   chan struct{}
}

// New builds a Service over cal and cfg. The schedule is computed once;
// StartDate must itself be a trading day.
func New(cal *calendar.Calendar, cfg ScheduleConfig, mode Mode) (*Service, error) {
	events := buildDaySchedule(cfg)
	if len(events) == 0 {
		return nil, stockerr.New(stockerr.KindConfig, "timeservice", "empty event schedule")
	}
	if !cal.IsTradingDay(cfg.StartDate) {
		return nil, stockerr.New(stockerr.KindConfig, "timeservice", "start_date is not a trading day")
	}

	return &Service{
		cal:    cal,
		cfg:    cfg,
		mode:   mode,
		events: events,
		day:    cfg.StartDate,
		idx:    -1,
		stopCh: make(chan struct{}),
	}, nil
}

// Stop sets the cooperative stop flag. Safe to call concurrently with
// Advance; an in-flight WallClock sleep wakes immediately.
func (s *Service) Stop() {
	s.stopOnce.Do(func() { close(s.stopCh) })
}

// Advance moves the cursor to the next scheduled instant. done=true means
// the cursor has passed end_date — the Runner must stop after this event
// (there is no Event payload in that case).
func (s *Service) Advance(ctx context.Context) (Event, bool, error) {
	dayChanged := false

	if s.idx+1 < len(s.events) {
		s.idx++
	} else {
		next := s.cal.NextTradingDay(s.day)
		if next == s.day || next > s.cfg.EndDate {
			return Event{}, true, nil
		}
		s.day = next
		s.idx = 0
		dayChanged = true
	}

	if s.idx == 0 && s.day == s.cfg.StartDate {
		dayChanged = true
	}

	if s.mode == WallClock {
		target := hhmmToTime(s.day, s.events[s.idx])
		if err := s.sleepUntil(ctx, target); err != nil {
			return Event{}, false, err
		}
	}

	ts := ymdhm(s.day, s.events[s.idx])
	endOfDay := s.idx == len(s.events)-1
	return Event{Ts: ts, Date: s.day, DayChanged: dayChanged, EndOfDay: endOfDay}, false, nil
}

func (s *Service) sleepUntil(ctx context.Context, target time.Time) error {
	select {
	case <-s.stopCh:
		return stockerr.New(stockerr.KindGeneral, "timeservice", "stopped")
	default:
	}
	now := time.Now()
	if !target.After(now) {
		return nil
	}
	timer := time.NewTimer(target.Sub(now))
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-s.stopCh:
		return stockerr.New(stockerr.KindGeneral, "timeservice", "stopped")
	}
}

// FormatYMDHM renders a YYYYMMDDHHMM cursor value for consumers that key
// data by minute.
func FormatYMDHM(ts int64) string {
	date := int(ts / 10000)
	hhmm := int(ts % 10000)
	return time.Date(date/10000, time.Month((date/100)%100), date%100, hhmm/100, hhmm%100, 0, 0, time.Local).Format("2006-01-02 15:04")
}

func buildDaySchedule(cfg ScheduleConfig) []int {
	set := make(map[int]struct{})
	add := func(hhmm int) { set[hhmm] = struct{}{} }

	add(cfg.TradingStartHHMM)
	add(cfg.TradingEndHHMM)
	if cfg.MorningWindowEndHHMM != 0 {
		add(cfg.MorningWindowEndHHMM)
	}

	if cfg.EventCheckIntervalMinutes > 0 {
		start := hhmmToMinutes(cfg.TradingStartHHMM)
		end := hhmmToMinutes(cfg.TradingEndHHMM)
		for m := start; m <= end; m += cfg.EventCheckIntervalMinutes {
			add(minutesToHHMM(m))
		}
	}

	out := make([]int, 0, len(set))
	for hhmm := range set {
		out = append(out, hhmm)
	}
	sort.Ints(out)
	return out
}

func hhmmToMinutes(hhmm int) int {
	return (hhmm/100)*60 + hhmm%100
}

func minutesToHHMM(m int) int {
	return (m/60)*100 + m%60
}

func ymdhm(date, hhmm int) int64 {
	return int64(date)*10000 + int64(hhmm)
}

func hhmmToTime(date, hhmm int) time.Time {
	y, mo, d := date/10000, (date/100)%100, date%100
	return time.Date(y, time.Month(mo), d, hhmm/100, hhmm%100, 0, 0, time.Local)
}
