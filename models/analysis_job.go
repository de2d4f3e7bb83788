package models

import (
	"database/sql/driver"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// AnalysisJobStatus represents the status of a bill analysis job
type AnalysisJobStatus string

const (
	JobStatusPending    AnalysisJobStatus = "pending"
	JobStatusInProgress AnalysisJobStatus = "in_progress"
	JobStatusCompleted  AnalysisJobStatus = "completed"
	JobStatusFailed     AnalysisJobStatus = "failed"
)

// AnalysisStep represents one step of the processing pipeline
type AnalysisStep struct {
	Name   string `json:"name"`
	Status string `json:"status"` // "pending", "in_progress", "completed", "failed"
}

// AnalysisSteps represents the ordered steps of an analysis job
type AnalysisSteps []AnalysisStep

// Value implements driver.Valuer for JSONB
func (a AnalysisSteps) Value() (driver.Value, error) {
	return json.Marshal(a)
}

// Scan implements sql.Scanner for JSONB
func (a *AnalysisSteps) Scan(value interface{}) error {
	if value == nil {
		*a = make(AnalysisSteps, 0)
		return nil
	}

	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		*a = make(AnalysisSteps, 0)
		return nil
	}

	if len(bytes) == 0 {
		*a = make(AnalysisSteps, 0)
		return nil
	}

	return json.Unmarshal(bytes, a)
}

// AnalysisJob represents a background bill processing job
type AnalysisJob struct {
	ID           uuid.UUID         `json:"id"`
	BillID       *uuid.UUID        `json:"bill_id,omitempty"`
	FileName     string            `json:"file_name"`
	StoragePath  *string           `json:"storage_path,omitempty"`
	Status       AnalysisJobStatus `json:"status"`
	CurrentStep  *string           `json:"current_step,omitempty"`
	Steps        AnalysisSteps     `json:"steps"`
	ErrorMessage *string           `json:"error_message,omitempty"`
	CreatedAt    time.Time         `json:"created_at"`
	UpdatedAt    time.Time         `json:"updated_at"`
	CompletedAt  *time.Time        `json:"completed_at,omitempty"`
}
