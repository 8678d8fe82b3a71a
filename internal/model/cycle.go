package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// TriggerType indicates what started a monitoring cycle.
type TriggerType string

const (
	TriggerScheduled TriggerType = "SCHEDULED"
	TriggerManual    TriggerType = "MANUAL"
	TriggerStartup   TriggerType = "STARTUP"
)

// ReportEntry is one (product, source) line of a cycle report.
type ReportEntry struct {
	Product     string          `json:"product"`
	Source      string          `json:"source"`
	Found       bool            `json:"found"`
	Price       decimal.Decimal `json:"price"`
	Method      string          `json:"method,omitempty"`
	Previous    decimal.Decimal `json:"previous"`
	HasPrevious bool            `json:"has_previous"`
	Floor       decimal.Decimal `json:"floor"`
}

// CycleResult is returned by every monitoring cycle.
type CycleResult struct {
	ID         string        `json:"id"`
	Trigger    TriggerType   `json:"trigger"`
	StartedAt  time.Time     `json:"started_at"`
	FinishedAt time.Time     `json:"finished_at"`
	Alerts     []AlertEvent  `json:"alerts"`
	Report     []ReportEntry `json:"report"`
	SaveError  string        `json:"save_error,omitempty"`
}

// FoundCount returns how many report entries carry a price.
func (r *CycleResult) FoundCount() int {
	n := 0
	for _, e := range r.Report {
		if e.Found {
			n++
		}
	}
	return n
}
