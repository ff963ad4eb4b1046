// Package priorities ranks QA records by the source file that produced them.
package priorities

import "strings"

const labelExt = ".json"

// PriorityMap maps a source label (e.g. "fileA.json") to a rank, lower
// is better. A PriorityMap is read-only once built.
type PriorityMap struct {
	ranks map[string]int
	order []string
}

// FromOrder builds a PriorityMap where each label's rank is its position in
// order (first = 0). A repeated label keeps its first rank. Labels without
// a .json extension are normalized to carry one.
func FromOrder(order []string) PriorityMap {
	ranks := make(map[string]int, len(order))
	kept := make([]string, 0, len(order))
	for _, name := range order {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		label := withExt(name)
		if _, exists := ranks[label]; exists {
			continue
		}
		ranks[label] = len(kept)
		kept = append(kept, label)
	}
	return PriorityMap{ranks: ranks, order: kept}
}

// Len returns the number of ranked labels.
func (m PriorityMap) Len() int {
	return len(m.ranks)
}

// Rank returns the rank of label. Unknown labels rank Len(), below every
// mapped label.
func (m PriorityMap) Rank(label string) int {
	if rank, ok := m.ranks[label]; ok {
		return rank
	}
	return len(m.ranks)
}

// Contains reports whether label has an explicit rank.
func (m PriorityMap) Contains(label string) bool {
	_, ok := m.ranks[label]
	return ok
}

// Order returns the ranked labels, best first.
func (m PriorityMap) Order() []string {
	out := make([]string, len(m.order))
	copy(out, m.order)
	return out
}

// ParseSourceLabel derives the source label from a record id of the form
// <sourceFile>_<index>. The filename may itself contain underscores: every
// segment except the last is re-joined with "_". ".json" is appended unless
// already present.
//
// Examples:
//   - "fileA_3"       -> "fileA.json", true
//   - "my_file_12"    -> "my_file.json", true
//   - "x.json_7"      -> "x.json", true
//   - "standalone"    -> "standalone.json", false
//
// ok is false when the id carries no underscore; the whole id is then used
// as the filename and callers should treat the record as lowest priority
// unless that fallback label happens to be ranked.
func ParseSourceLabel(id string) (label string, ok bool) {
	i := strings.LastIndex(id, "_")
	if i <= 0 {
		return withExt(id), false
	}
	return withExt(id[:i]), true
}

func withExt(name string) string {
	if strings.HasSuffix(name, labelExt) {
		return name
	}
	return name + labelExt
}
