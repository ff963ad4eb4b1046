package events

import (
	"encoding/json"
	"strings"
	"testing"
	"time"
)

func TestJSONTagsSnakeCase(t *testing.T) {
	event := &Event{
		ID:        "test-event-123",
		Type:      EventTypeDataTolerance,
		Timestamp: time.Date(2025, 10, 15, 12, 0, 0, 0, time.UTC),
		PassID:    "pass-1",
		Severity:  SeverityWarning,
		Message:   "missing answer",
		Data: map[string]interface{}{
			"record_id": "fileA_0",
		},
	}

	jsonBytes, err := json.Marshal(event)
	if err != nil {
		t.Fatalf("Failed to marshal Event: %v", err)
	}

	jsonStr := string(jsonBytes)
	for _, field := range []string{`"id"`, `"type"`, `"timestamp"`, `"pass_id"`, `"severity"`, `"message"`, `"data"`} {
		if !strings.Contains(jsonStr, field) {
			t.Errorf("JSON missing expected field: %s\nGot: %s", field, jsonStr)
		}
	}
}

func TestDataToleranceDataHelpers(t *testing.T) {
	data := DataToleranceData{
		Kind:        ToleranceMissingAnswer,
		RecordID:    "fileA_3",
		RecordIndex: 3,
		Detail:      "answer defaulted to empty string",
	}

	event, err := NewDataToleranceEvent("pass-1", "record fileA_3 has no answer", data)
	if err != nil {
		t.Fatalf("NewDataToleranceEvent failed: %v", err)
	}

	if event.Severity != SeverityWarning {
		t.Errorf("Severity = %q, want warning", event.Severity)
	}
	if event.Data["kind"] != string(ToleranceMissingAnswer) {
		t.Errorf("Data map kind incorrect: got %v", event.Data["kind"])
	}

	retrieved, err := event.GetDataToleranceData()
	if err != nil {
		t.Fatalf("GetDataToleranceData failed: %v", err)
	}
	if *retrieved != data {
		t.Errorf("round trip mismatch: got %+v, want %+v", *retrieved, data)
	}
}

func TestPassCompletedDataHelpers(t *testing.T) {
	data := PassCompletedData{
		Total:            10,
		Kept:             6,
		Groups:           2,
		Duplicates:       4,
		Singletons:       4,
		ProcessingTimeMs: 12,
	}

	event, err := NewPassCompletedEvent("pass-2", "done", data)
	if err != nil {
		t.Fatalf("NewPassCompletedEvent failed: %v", err)
	}
	if event.Type != EventTypePassCompleted || event.PassID != "pass-2" {
		t.Errorf("unexpected event header: %+v", event)
	}

	retrieved, err := event.GetPassCompletedData()
	if err != nil {
		t.Fatalf("GetPassCompletedData failed: %v", err)
	}
	if *retrieved != data {
		t.Errorf("round trip mismatch: got %+v, want %+v", *retrieved, data)
	}
}

func TestClusterFormedDataHelpers(t *testing.T) {
	event, err := NewClusterFormedEvent("pass-3", "cluster", ClusterFormedData{
		KeptID:       "fileA_0",
		DuplicateIDs: []string{"fileB_1", "fileB_2"},
		Candidates:   3,
	})
	if err != nil {
		t.Fatalf("NewClusterFormedEvent failed: %v", err)
	}

	retrieved, err := event.GetClusterFormedData()
	if err != nil {
		t.Fatalf("GetClusterFormedData failed: %v", err)
	}
	if retrieved.KeptID != "fileA_0" || len(retrieved.DuplicateIDs) != 2 || retrieved.Candidates != 3 {
		t.Errorf("unexpected data: %+v", retrieved)
	}
}

func TestNewEventDefaultsData(t *testing.T) {
	event := NewEvent(EventTypeModeAsymmetry, "pass-4", SeverityWarning, "no groups in by_answer mode", nil)
	if event.Data == nil {
		t.Fatalf("Data should be initialized")
	}
	if event.ID == "" || event.Timestamp.IsZero() {
		t.Errorf("ID and Timestamp should be set: %+v", event)
	}
}

func TestPassFailedAndProgressHelpers(t *testing.T) {
	failed, err := NewPassFailedEvent("pass-5", "boom", PassFailedData{Phase: "indexing", Error: "bad threshold"})
	if err != nil {
		t.Fatalf("NewPassFailedEvent failed: %v", err)
	}
	if failed.Severity != SeverityError {
		t.Errorf("Severity = %q, want error", failed.Severity)
	}
	fd, err := failed.GetPassFailedData()
	if err != nil || fd.Phase != "indexing" {
		t.Errorf("unexpected failed data: %+v, %v", fd, err)
	}

	progress, err := NewProgressEvent("pass-5", ProgressData{Percent: 40, Phase: "indexing"})
	if err != nil {
		t.Fatalf("NewProgressEvent failed: %v", err)
	}
	pd, err := progress.GetProgressData()
	if err != nil || pd.Percent != 40 {
		t.Errorf("unexpected progress data: %+v, %v", pd, err)
	}

	started, err := NewPassStartedEvent("pass-5", "start", PassStartedData{Mode: "by_question", NumPerm: 128, PriorityOrder: []string{"a.json"}})
	if err != nil {
		t.Fatalf("NewPassStartedEvent failed: %v", err)
	}
	sd, err := started.GetPassStartedData()
	if err != nil || sd.NumPerm != 128 || len(sd.PriorityOrder) != 1 {
		t.Errorf("unexpected started data: %+v, %v", sd, err)
	}
}
