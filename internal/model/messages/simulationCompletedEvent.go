package messages

import (
	"time"

	"github.com/LeonardoBeccarini/cropwater/internal/model/entities"
)

const (
	StatusOK   = "OK"
	StatusFail = "FAIL"
)

// SimulationCompletedEvent is published by the simulator once a run finishes or fails.
// Consumers (persistence) store the summary and the daily table.
type SimulationCompletedEvent struct {
	FieldID   string                 `json:"field_id"`
	RunID     string                 `json:"run_id"`
	Crop      string                 `json:"crop"`
	Status    string                 `json:"status"`           // "OK" | "FAIL"
	Reason    string                 `json:"reason,omitempty"` // error text when Status is FAIL
	Plan      entities.PlanKind      `json:"plan,omitempty"`
	Start     time.Time              `json:"start"`
	End       time.Time              `json:"end"`
	Summary   *entities.SeasonTotals `json:"summary,omitempty"`
	Daily     []entities.DailyOutput `json:"daily,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

// Completed builds the success event for a result.
func Completed(fieldID string, r *entities.SimulationResult, ts time.Time) SimulationCompletedEvent {
	s := r.Summary
	return SimulationCompletedEvent{
		FieldID:   fieldID,
		RunID:     r.RunID,
		Crop:      r.Crop,
		Status:    StatusOK,
		Plan:      r.Plan,
		Start:     r.Start,
		End:       r.End,
		Summary:   &s,
		Daily:     r.Daily,
		Timestamp: ts,
	}
}

// Failed builds the failure event; only identifiers and the reason are set.
func Failed(fieldID, runID, crop string, err error, ts time.Time) SimulationCompletedEvent {
	return SimulationCompletedEvent{
		FieldID:   fieldID,
		RunID:     runID,
		Crop:      crop,
		Status:    StatusFail,
		Reason:    err.Error(),
		Timestamp: ts,
	}
}
