package types

import (
	"fmt"
	"time"
)

// PassStatus is the lifecycle state of a stored dedup pass
//
// A pass is created as processing, then moves exactly once to either
// completed or failed.
type PassStatus string

const (
	// PassProcessing means the pass is running
	PassProcessing PassStatus = "processing"
	// PassCompleted means the partition was written
	PassCompleted PassStatus = "completed"
	// PassFailed means the pass aborted; ErrorMessage says why
	PassFailed PassStatus = "failed"
)

// IsValid checks if the status value is valid
func (s PassStatus) IsValid() bool {
	switch s {
	case PassProcessing, PassCompleted, PassFailed:
		return true
	}
	return false
}

// IsTerminal returns true once the pass can no longer change
func (s PassStatus) IsTerminal() bool {
	return s == PassCompleted || s == PassFailed
}

// PassRecord is the persisted summary of one dedup pass.
type PassRecord struct {
	ID               string     `json:"id"`
	InputFiles       []string   `json:"input_files"`
	OutputFile       string     `json:"output_file,omitempty"`
	DeletedPairsFile string     `json:"deleted_pairs_file,omitempty"`
	Mode             DedupMode  `json:"mode"`
	Threshold        float64    `json:"threshold"`
	NumPerm          int        `json:"num_perm"`
	MinAnswerLength  int        `json:"min_answer_length"`
	Status           PassStatus `json:"status"`
	OriginalCount    int        `json:"original_count"`
	KeptCount        int        `json:"kept_count"`
	Progress         int        `json:"progress"`
	ErrorMessage     string     `json:"error_message,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

// Validate checks if the pass record has valid field values
func (p *PassRecord) Validate() error {
	if p.ID == "" {
		return fmt.Errorf("pass id is required")
	}
	if !p.Mode.IsValid() {
		return fmt.Errorf("invalid mode: %s", p.Mode)
	}
	if !p.Status.IsValid() {
		return fmt.Errorf("invalid status: %s", p.Status)
	}
	if p.Progress < 0 || p.Progress > 100 {
		return fmt.Errorf("progress must be between 0 and 100 (got %d)", p.Progress)
	}
	if p.OriginalCount < 0 || p.KeptCount < 0 {
		return fmt.Errorf("record counts must be non-negative")
	}
	if p.KeptCount > p.OriginalCount {
		return fmt.Errorf("kept count %d exceeds original count %d", p.KeptCount, p.OriginalCount)
	}
	return nil
}

// RemovedCount is the number of records the pass did not keep.
func (p *PassRecord) RemovedCount() int {
	return p.OriginalCount - p.KeptCount
}
