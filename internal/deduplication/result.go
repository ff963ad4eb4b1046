package deduplication

import (
	"encoding/json"
	"fmt"

	"github.com/Saberlve/LLM-Kit-sub000/internal/types"
)

// DeletedGroup is one resolved cluster: the representative that was kept
// and the near-duplicates discarded in its favour.
//
// It serializes as a flat list with the kept record first.
type DeletedGroup struct {
	Kept       types.QARecord
	Duplicates []types.QARecord
}

// Records returns the group as a list, kept record first.
func (g DeletedGroup) Records() []types.QARecord {
	out := make([]types.QARecord, 0, len(g.Duplicates)+1)
	out = append(out, g.Kept)
	return append(out, g.Duplicates...)
}

// Size returns the number of records in the group, including the kept one.
func (g DeletedGroup) Size() int {
	return len(g.Duplicates) + 1
}

// MarshalJSON encodes the group as [kept, duplicates...].
func (g DeletedGroup) MarshalJSON() ([]byte, error) {
	return json.Marshal(g.Records())
}

// UnmarshalJSON decodes a [kept, duplicates...] list.
func (g *DeletedGroup) UnmarshalJSON(data []byte) error {
	var records []types.QARecord
	if err := json.Unmarshal(data, &records); err != nil {
		return err
	}
	if len(records) == 0 {
		return fmt.Errorf("deleted group must contain at least the kept record")
	}
	g.Kept = records[0]
	g.Duplicates = records[1:]
	return nil
}

// Result is the partition produced by one dedup pass.
type Result struct {
	// PassID identifies the pass that produced this result
	PassID string `json:"pass_id"`

	// Mode is the dedup mode the pass ran in
	Mode types.DedupMode `json:"mode"`

	// Kept are the surviving records, in cluster discovery order
	Kept []types.QARecord `json:"kept"`

	// DeletedGroups lists each multi-record cluster, representative first.
	// Always empty in by_answer mode.
	DeletedGroups []DeletedGroup `json:"deleted_groups"`

	// Merged are ids discarded as near-duplicates in by_answer mode, which
	// does not track groups
	Merged []string `json:"merged,omitempty"`

	// Filtered are ids dropped by the by_answer minimum-length filter
	Filtered []string `json:"filtered,omitempty"`

	// Statistics about the pass
	Stats Stats `json:"stats"`
}

// Stats provides metrics about a dedup pass
type Stats struct {
	// Total is the number of input records
	Total int `json:"total"`

	// Kept is the number of surviving records
	Kept int `json:"kept"`

	// Groups is the number of deleted groups (by_question mode)
	Groups int `json:"groups"`

	// Duplicates is the number of records discarded inside deleted groups
	Duplicates int `json:"duplicates"`

	// Merged is the number of records discarded in by_answer mode
	Merged int `json:"merged"`

	// Filtered is the number of records dropped by the length filter
	Filtered int `json:"filtered"`

	// Singletons is the number of records with no unseen candidate
	Singletons int `json:"singletons"`

	// Clusters is the number of multi-record clusters, in either mode
	Clusters int `json:"clusters"`

	// Candidates is the total number of raw LSH candidates returned
	Candidates int `json:"candidates"`

	// ProcessingTimeMs is the time taken for the pass in milliseconds
	ProcessingTimeMs int64 `json:"processing_time_ms"`
}

// KeptIDs returns the ids of the kept records in order.
func (r *Result) KeptIDs() []string {
	ids := make([]string, len(r.Kept))
	for i, rec := range r.Kept {
		ids[i] = rec.ID
	}
	return ids
}

// Validate checks the partition against the input ids: every input id is
// in exactly one of kept, a group's duplicates, merged or filtered, and
// the statistics match. Failures wrap ErrInvariantViolation.
func (r *Result) Validate(inputIDs []string) error {
	if r.Stats.Kept != len(r.Kept) {
		return invariantErrorf("stats.kept (%d) does not match kept length (%d)", r.Stats.Kept, len(r.Kept))
	}
	if r.Stats.Groups != len(r.DeletedGroups) {
		return invariantErrorf("stats.groups (%d) does not match deleted_groups length (%d)",
			r.Stats.Groups, len(r.DeletedGroups))
	}
	if r.Stats.Merged != len(r.Merged) {
		return invariantErrorf("stats.merged (%d) does not match merged length (%d)", r.Stats.Merged, len(r.Merged))
	}
	if r.Stats.Filtered != len(r.Filtered) {
		return invariantErrorf("stats.filtered (%d) does not match filtered length (%d)",
			r.Stats.Filtered, len(r.Filtered))
	}
	if !r.Mode.TracksDeletedGroups() && len(r.DeletedGroups) > 0 {
		return invariantErrorf("mode %s does not track deleted groups (got %d)", r.Mode, len(r.DeletedGroups))
	}
	if r.Mode.TracksDeletedGroups() && len(r.Merged) > 0 {
		return invariantErrorf("mode %s records duplicates in groups, not merged (got %d)", r.Mode, len(r.Merged))
	}

	owner := make(map[string]string, len(inputIDs))
	claim := func(id, partition string) error {
		if prev, exists := owner[id]; exists {
			return invariantErrorf("id %s appears in both %s and %s", id, prev, partition)
		}
		owner[id] = partition
		return nil
	}

	keptSet := make(map[string]struct{}, len(r.Kept))
	for _, rec := range r.Kept {
		if err := claim(rec.ID, "kept"); err != nil {
			return err
		}
		keptSet[rec.ID] = struct{}{}
	}

	duplicates := 0
	for i, g := range r.DeletedGroups {
		if len(g.Duplicates) == 0 {
			return invariantErrorf("deleted group %d has no duplicates", i)
		}
		if _, ok := keptSet[g.Kept.ID]; !ok {
			return invariantErrorf("deleted group %d representative %s is not in kept", i, g.Kept.ID)
		}
		for _, dup := range g.Duplicates {
			if err := claim(dup.ID, fmt.Sprintf("deleted group %d", i)); err != nil {
				return err
			}
		}
		duplicates += len(g.Duplicates)
	}
	if r.Stats.Duplicates != duplicates {
		return invariantErrorf("stats.duplicates (%d) does not match deleted group members (%d)",
			r.Stats.Duplicates, duplicates)
	}

	for _, id := range r.Merged {
		if err := claim(id, "merged"); err != nil {
			return err
		}
	}
	for _, id := range r.Filtered {
		if err := claim(id, "filtered"); err != nil {
			return err
		}
	}

	if r.Stats.Total != len(inputIDs) {
		return invariantErrorf("stats.total (%d) does not match input length (%d)", r.Stats.Total, len(inputIDs))
	}
	if len(owner) != len(inputIDs) {
		return invariantErrorf("partition covers %d ids, input has %d", len(owner), len(inputIDs))
	}
	for _, id := range inputIDs {
		if _, ok := owner[id]; !ok {
			return invariantErrorf("input id %s is missing from the partition", id)
		}
	}
	return nil
}
