package dto

import (
	"time"

	"golang-stock-valuation/internal/entity"

	"github.com/google/uuid"
)

// Trigger is what started a tracking cycle.
type Trigger string

const (
	TriggerScheduled Trigger = "scheduled"
	TriggerManual    Trigger = "manual"
)

// HoldingStatus is the per-holding outcome of a cycle.
type HoldingStatus string

const (
	HoldingStatusOK            HoldingStatus = "ok"
	HoldingStatusEstimateOnly  HoldingStatus = "estimate_only"
	HoldingStatusPersistFailed HoldingStatus = "persist_failed"
	HoldingStatusNotApplicable HoldingStatus = "not_applicable"
)

// RunCycleRequest asks for one tracking cycle for a user.
type RunCycleRequest struct {
	CycleID uuid.UUID       `json:"cycle_id"`
	UserID  string          `json:"user_id"`
	Force   bool            `json:"force"`
	Markets []entity.Market `json:"markets,omitempty"`
	Trigger Trigger         `json:"trigger"`
}

// HoldingReport is one line of a cycle report.
type HoldingReport struct {
	Holding      Holding                 `json:"holding"`
	Status       HoldingStatus           `json:"status"`
	Price        float64                 `json:"price"`
	PriceSource  string                  `json:"price_source"`
	CurrentValue float64                 `json:"current_value"`
	PnL          float64                 `json:"pnl"`
	PnLPercent   float64                 `json:"pnl_percent"`
	Valuation    *ValuationResult        `json:"valuation,omitempty"`
	Record       *entity.ValuationRecord `json:"record,omitempty"`
	Change       *ChangeAnalysis         `json:"change,omitempty"`
	Error        string                  `json:"error,omitempty"`
}

// Alertable reports whether the alert policy may look at this holding.
func (r HoldingReport) Alertable() bool {
	return r.Status == HoldingStatusOK || r.Status == HoldingStatusNotApplicable
}

// CycleReport is the best-effort summary of one tracking cycle.
type CycleReport struct {
	CycleID     uuid.UUID       `json:"cycle_id"`
	UserID      string          `json:"user_id"`
	Trigger     Trigger         `json:"trigger"`
	Force       bool            `json:"force"`
	StartedAt   time.Time       `json:"started_at"`
	FinishedAt  time.Time       `json:"finished_at"`
	OpenMarkets []entity.Market `json:"open_markets"`
	Skipped     bool            `json:"skipped"`
	FirstRun    bool            `json:"first_run"`
	Holdings    []HoldingReport `json:"holdings"`
	Events      []AlertEvent    `json:"events"`
	TotalCost   float64         `json:"total_cost"`
	TotalValue  float64         `json:"total_value"`
	TotalPnL    float64         `json:"total_pnl"`
	TotalPnLPct float64         `json:"total_pnl_pct"`
	SnapshotErr string          `json:"snapshot_error,omitempty"`
	NotifyErr   string          `json:"notify_error,omitempty"`
	Notified    bool            `json:"notified"`
}

// CycleStreamPayload is the message published to the cycle request stream.
type CycleStreamPayload struct {
	CycleID     string   `json:"cycle_id"`
	UserID      string   `json:"user_id"`
	Force       bool     `json:"force"`
	Markets     []string `json:"markets,omitempty"`
	Trigger     Trigger  `json:"trigger"`
	RequestedAt int64    `json:"requested_at"`
}
