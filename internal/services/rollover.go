// Package services owns ledger state and orchestrates load, month rollover,
// persistence and reminder scheduling around the pure reducer.
package services

import (
	"time"

	"debtr/internal/core"
)

// MonthState is the rollover controller's state.
type MonthState int

const (
	// Stable: the ledger's month matches the wall clock.
	Stable MonthState = iota
	// Rolling: a new month was observed and reconciliation is pending.
	Rolling
)

func (s MonthState) String() string {
	if s == Rolling {
		return "rolling"
	}
	return "stable"
}

// MonthDetector decides whether stored metadata belongs to an earlier month.
type MonthDetector interface {
	Detect(md core.Metadata, now time.Time) MonthState
}

// CalendarDetector compares month indices, and years when the record carries
// one. A record without a year cannot tell a gap of exactly twelve months
// from no gap at all.
type CalendarDetector struct{}

func (CalendarDetector) Detect(md core.Metadata, now time.Time) MonthState {
	if md.CurrMonth != core.MonthOf(now) {
		return Rolling
	}
	if md.CurrYear != 0 && md.CurrYear != now.Year() {
		return Rolling
	}
	return Stable
}

// MonthsBetween counts calendar months from the record's month to now.
// Returns -1 when the record has no year.
func MonthsBetween(md core.Metadata, now time.Time) int {
	if md.CurrYear == 0 {
		return -1
	}
	return (now.Year()-md.CurrYear)*12 + core.MonthOf(now) - md.CurrMonth
}
