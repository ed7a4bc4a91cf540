package sched

import (
	"time"

	"StockNewsScanner/internal/domain"
)

// Mode gates whether alerts are actively sent or only collected.
type Mode string

const (
	ModeNormal Mode = "NORMAL"
	ModeSleep  Mode = "SLEEP"
)

// Transition is the result of one tick of the mode machine.
type Transition int

const (
	None Transition = iota
	WakeUp
	ToSleep
)

const defaultLookback = 12 * time.Hour

// Config defines the sleep window and the daily brief hour.
type Config struct {
	Enabled   bool
	StartHour int
	EndHour   int
	Weekends  bool
	BriefHour int
	Location  *time.Location
}

// Scheduler is the day/night operating-mode state machine. The mode is
// a pure predicate of wall-clock time; transitions are detected once
// per driver tick by comparing against the previously stored mode.
type Scheduler struct {
	cfg         Config
	mode        Mode
	lastSwitch  time.Time
	sleepEvents int
	state       domain.SchedulerState
}

// New builds a scheduler; the first Tick seeds the mode without
// reporting a transition.
func New(cfg Config) *Scheduler {
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	return &Scheduler{cfg: cfg}
}

// Restore hydrates the persisted record (last wake-up, last brief date).
func (s *Scheduler) Restore(state domain.SchedulerState) {
	s.state = state
}

// State returns the record to persist.
func (s *Scheduler) State() domain.SchedulerState {
	return s.state
}

// Mode returns the current operating mode.
func (s *Scheduler) Mode() Mode {
	if s.mode == "" {
		return ModeNormal
	}
	return s.mode
}

func (s *Scheduler) asleep(now time.Time) bool {
	if !s.cfg.Enabled {
		return false
	}

	local := now.In(s.cfg.Location)
	weekday := local.Weekday()
	if weekday == time.Saturday || weekday == time.Sunday {
		return s.cfg.Weekends
	}

	hour := local.Hour()
	if s.cfg.StartHour <= s.cfg.EndHour {
		return hour >= s.cfg.StartHour && hour < s.cfg.EndHour
	}
	// Window wraps past midnight.
	return hour >= s.cfg.StartHour || hour < s.cfg.EndHour
}

// Tick evaluates the predicate and returns the transition, if any.
func (s *Scheduler) Tick(now time.Time) Transition {
	next := ModeNormal
	if s.asleep(now) {
		next = ModeSleep
	}

	if s.mode == "" {
		s.mode = next
		s.lastSwitch = now
		return None
	}
	if next == s.mode {
		return None
	}

	prev := s.mode
	s.mode = next
	s.lastSwitch = now

	if prev == ModeSleep {
		return WakeUp
	}
	s.sleepEvents = 0
	return ToSleep
}

// RecordSleepEvent counts an event collected while sleeping.
func (s *Scheduler) RecordSleepEvent() {
	s.sleepEvents++
}

// SleepEvents reports how many events arrived during the current or
// most recent sleep window.
func (s *Scheduler) SleepEvents() int {
	return s.sleepEvents
}

// WakeLookback returns the instant the wake-up report should cover
// from: the persisted last wake-up, or a default lookback.
func (s *Scheduler) WakeLookback(now time.Time) time.Time {
	if s.state.LastWakeUp.IsZero() {
		return now.Add(-defaultLookback)
	}
	return s.state.LastWakeUp
}

// CommitWakeUp records a completed wake-up report. Called only after
// delivery succeeded (or there was nothing to deliver).
func (s *Scheduler) CommitWakeUp(now time.Time) {
	s.state.LastWakeUp = now
	s.sleepEvents = 0
}

// BriefDue reports whether the mode-independent daily brief should
// fire: once per calendar day at the configured local hour.
func (s *Scheduler) BriefDue(now time.Time) bool {
	local := now.In(s.cfg.Location)
	if local.Hour() != s.cfg.BriefHour {
		return false
	}
	return s.state.LastBriefDate != local.Format("2006-01-02")
}

// CommitBrief marks the daily brief as sent for today.
func (s *Scheduler) CommitBrief(now time.Time) {
	s.state.LastBriefDate = now.In(s.cfg.Location).Format("2006-01-02")
}

// RetentionAllowed reports whether the retention sweep may run: not
// while sleeping, and not during the early-morning grace window, so the
// wake-up digest keeps its overnight material.
func (s *Scheduler) RetentionAllowed(now time.Time) bool {
	if s.Mode() == ModeSleep || s.asleep(now) {
		return false
	}
	return now.In(s.cfg.Location).Hour() >= s.cfg.BriefHour
}
