package events

import (
	"context"
	"time"
)

// EventType represents the type of event emitted during a dedup pass.
type EventType string

const (
	// EventTypePassStarted indicates a dedup pass began
	EventTypePassStarted EventType = "pass_started"
	// EventTypePassCompleted indicates a dedup pass produced its partition
	EventTypePassCompleted EventType = "pass_completed"
	// EventTypePassFailed indicates a dedup pass aborted
	EventTypePassFailed EventType = "pass_failed"
	// EventTypeProgress indicates a progress milestone was reached
	EventTypeProgress EventType = "progress"
	// EventTypeDataTolerance indicates malformed input was accepted with a default
	EventTypeDataTolerance EventType = "data_tolerance"
	// EventTypeClusterFormed indicates a near-duplicate cluster was resolved
	EventTypeClusterFormed EventType = "cluster_formed"
	// EventTypeModeAsymmetry flags that by_answer mode drops group tracking
	EventTypeModeAsymmetry EventType = "mode_asymmetry"
)

// IsValid checks if the event type is known
func (t EventType) IsValid() bool {
	switch t {
	case EventTypePassStarted, EventTypePassCompleted, EventTypePassFailed,
		EventTypeProgress, EventTypeDataTolerance, EventTypeClusterFormed,
		EventTypeModeAsymmetry:
		return true
	}
	return false
}

// EventSeverity represents the severity level of an event.
type EventSeverity string

const (
	// SeverityInfo indicates informational events
	SeverityInfo EventSeverity = "info"
	// SeverityWarning indicates potentially problematic events
	SeverityWarning EventSeverity = "warning"
	// SeverityError indicates error events
	SeverityError EventSeverity = "error"
)

// Event represents one auditable occurrence during a dedup pass.
type Event struct {
	// ID is the unique identifier for this event
	ID string `json:"id"`
	// Type is the type of event
	Type EventType `json:"type"`
	// Timestamp is when the event occurred
	Timestamp time.Time `json:"timestamp"`
	// PassID is the dedup pass that produced this event
	PassID string `json:"pass_id"`
	// Severity is the severity level of this event
	Severity EventSeverity `json:"severity"`
	// Message is a human-readable description of the event
	Message string `json:"message"`
	// Data contains structured, type-specific data (must be JSON-serializable)
	Data map[string]interface{} `json:"data"`
}

// Hook receives events as they are emitted. Hooks run on the pass goroutine
// and must not block.
type Hook func(*Event)

// ToleranceKind names the malformed-input decision that was taken.
type ToleranceKind string

const (
	// ToleranceMissingQuestion means an absent question defaulted to ""
	ToleranceMissingQuestion ToleranceKind = "missing_question"
	// ToleranceMissingAnswer means an absent answer defaulted to ""
	ToleranceMissingAnswer ToleranceKind = "missing_answer"
	// ToleranceMissingID means an absent id was assigned from the record position
	ToleranceMissingID ToleranceKind = "missing_id"
	// ToleranceUnparseableSource means the id had no <file>_<index> form
	ToleranceUnparseableSource ToleranceKind = "unparseable_source_label"
	// ToleranceDuplicateID means a repeated id was reassigned a fresh one
	ToleranceDuplicateID ToleranceKind = "duplicate_id"
)

// PassStartedData contains data for pass_started events
type PassStartedData struct {
	// Mode is the dedup mode (by_question or by_answer)
	Mode string `json:"mode"`
	// Threshold is the similarity threshold
	Threshold float64 `json:"threshold"`
	// NumPerm is the MinHash permutation count
	NumPerm int `json:"num_perm"`
	// MinAnswerLength is the by_answer length filter
	MinAnswerLength int `json:"min_answer_length"`
	// TotalRecords is the number of input records
	TotalRecords int `json:"total_records"`
	// PriorityOrder lists source labels best first
	PriorityOrder []string `json:"priority_order,omitempty"`
}

// PassCompletedData contains data for pass_completed events
type PassCompletedData struct {
	Total            int   `json:"total"`
	Kept             int   `json:"kept"`
	Groups           int   `json:"groups"`
	Duplicates       int   `json:"duplicates"`
	Filtered         int   `json:"filtered"`
	Singletons       int   `json:"singletons"`
	ProcessingTimeMs int64 `json:"processing_time_ms"`
}

// PassFailedData contains data for pass_failed events
type PassFailedData struct {
	// Phase is the pass state the failure occurred in
	Phase string `json:"phase"`
	// Error is the failure message
	Error string `json:"error"`
}

// ProgressData contains data for progress events
type ProgressData struct {
	Percent int    `json:"percent"`
	Phase   string `json:"phase"`
}

// DataToleranceData contains data for data_tolerance events
type DataToleranceData struct {
	// Kind is the tolerance decision taken
	Kind ToleranceKind `json:"kind"`
	// RecordID is the id of the record (after any id assignment)
	RecordID string `json:"record_id"`
	// RecordIndex is the position of the record in the input
	RecordIndex int `json:"record_index"`
	// Detail describes the default that was applied
	Detail string `json:"detail"`
}

// ClusterFormedData contains data for cluster_formed events
type ClusterFormedData struct {
	KeptID       string   `json:"kept_id"`
	DuplicateIDs []string `json:"duplicate_ids"`
	// Candidates is the raw candidate count before seen ids were excluded
	Candidates int `json:"candidates"`
}

// EventStore defines the interface for persisting pass events.
type EventStore interface {
	// StoreEvent stores a new event
	StoreEvent(ctx context.Context, event *Event) error

	// GetEvents retrieves events for a pass matching the given filter
	GetEvents(ctx context.Context, passID string, filter EventFilter) ([]*Event, error)
}

// EventFilter specifies criteria for querying events.
type EventFilter struct {
	// Type filters events by event type
	Type EventType
	// Severity filters events by severity level
	Severity EventSeverity
	// Limit limits the number of events returned
	Limit int
}
