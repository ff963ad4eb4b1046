package events

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type passIDKey struct{}

// WithPassID returns a context carrying passID. Events emitted by a pass
// running under this context are tagged with it.
func WithPassID(ctx context.Context, passID string) context.Context {
	return context.WithValue(ctx, passIDKey{}, passID)
}

// PassIDFromContext returns the pass id carried by ctx, or "".
func PassIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(passIDKey{}).(string)
	return id
}

// NewPassID returns a fresh pass identifier.
func NewPassID() string {
	return uuid.New().String()
}

// NewEvent creates an Event with no specific data structure.
func NewEvent(eventType EventType, passID string, severity EventSeverity, message string, data map[string]interface{}) *Event {
	if data == nil {
		data = make(map[string]interface{})
	}
	return &Event{
		ID:        uuid.New().String(),
		Type:      eventType,
		Timestamp: time.Now(),
		PassID:    passID,
		Severity:  severity,
		Message:   message,
		Data:      data,
	}
}

// NewPassStartedEvent creates a pass_started event with type-safe data.
func NewPassStartedEvent(passID, message string, data PassStartedData) (*Event, error) {
	event := NewEvent(EventTypePassStarted, passID, SeverityInfo, message, nil)
	if err := event.SetPassStartedData(data); err != nil {
		return nil, err
	}
	return event, nil
}

// NewPassCompletedEvent creates a pass_completed event with type-safe data.
func NewPassCompletedEvent(passID, message string, data PassCompletedData) (*Event, error) {
	event := NewEvent(EventTypePassCompleted, passID, SeverityInfo, message, nil)
	if err := event.SetPassCompletedData(data); err != nil {
		return nil, err
	}
	return event, nil
}

// NewPassFailedEvent creates a pass_failed event with type-safe data.
func NewPassFailedEvent(passID, message string, data PassFailedData) (*Event, error) {
	event := NewEvent(EventTypePassFailed, passID, SeverityError, message, nil)
	if err := event.SetPassFailedData(data); err != nil {
		return nil, err
	}
	return event, nil
}

// NewProgressEvent creates a progress event with type-safe data.
func NewProgressEvent(passID string, data ProgressData) (*Event, error) {
	event := NewEvent(EventTypeProgress, passID, SeverityInfo, "progress", nil)
	if err := event.SetProgressData(data); err != nil {
		return nil, err
	}
	return event, nil
}

// NewDataToleranceEvent creates a data_tolerance warning with type-safe data.
func NewDataToleranceEvent(passID, message string, data DataToleranceData) (*Event, error) {
	event := NewEvent(EventTypeDataTolerance, passID, SeverityWarning, message, nil)
	if err := event.SetDataToleranceData(data); err != nil {
		return nil, err
	}
	return event, nil
}

// NewClusterFormedEvent creates a cluster_formed event with type-safe data.
func NewClusterFormedEvent(passID, message string, data ClusterFormedData) (*Event, error) {
	event := NewEvent(EventTypeClusterFormed, passID, SeverityInfo, message, nil)
	if err := event.SetClusterFormedData(data); err != nil {
		return nil, err
	}
	return event, nil
}
