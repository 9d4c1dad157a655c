package domain

import (
	"encoding"
	"time"
)

type TaskStatus string

const (
	StatusPending   TaskStatus = "PENDING"
	StatusRunning   TaskStatus = "RUNNING"
	StatusCompleted TaskStatus = "COMPLETED"
	StatusFailed    TaskStatus = "FAILED"
	StatusCanceled  TaskStatus = "CANCELED"
)

// AnalysisTask is the durable record of one batch run. It is the source of
// truth once a batch has finished; the in-memory progress entry exists only
// for sub-second polling while the batch is live.
type AnalysisTask struct {
	ID               string     `json:"id"`
	OwnerID          string     `json:"ownerId,omitempty"`
	Name             string     `json:"name,omitempty"`
	Status           TaskStatus `json:"status"`
	TotalPrompts     int        `json:"totalPrompts"`
	CompletedPrompts int        `json:"completedPrompts"`
	// Endpoint and Model identify the provider used; the API key is never
	// persisted with the record.
	Endpoint       string    `json:"endpoint"`
	Model          string    `json:"model,omitempty"`
	Brands         []string  `json:"brands"`
	Domains        []string  `json:"domains"`
	Concurrency    int       `json:"concurrency"`
	RequestDelayMs int       `json:"requestDelayMs"`
	Webhook        string    `json:"webhook,omitempty"`
	Error          string    `json:"error,omitempty"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
	CompletedAt    string    `json:"completedAt,omitempty"` // RFC3339
}

// TaskProgress is the live view of a running batch, read by pollers.
type TaskProgress struct {
	Status         TaskStatus `json:"status"`
	ProcessedCount int        `json:"processedCount"`
	TotalCount     int        `json:"totalCount"`
	StartTime      time.Time  `json:"startTime"`
	ElapsedSeconds float64    `json:"elapsedSeconds"`
}

var (
	_ encoding.BinaryMarshaler = TaskStatus("")
	_ encoding.TextMarshaler   = TaskStatus("")
)

func (s TaskStatus) MarshalBinary() ([]byte, error) { return []byte(string(s)), nil }
func (s TaskStatus) MarshalText() ([]byte, error)   { return []byte(string(s)), nil }

// Terminal reports whether the status admits no further transitions.
func (s TaskStatus) Terminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusCanceled:
		return true
	}
	return false
}
