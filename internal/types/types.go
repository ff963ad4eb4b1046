package types

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// QARecord is one question/answer pair produced by the generation pipeline.
// Records are immutable once constructed; the deduplication engine owns them
// for the duration of a single pass.
type QARecord struct {
	ID          string `json:"id"`
	Question    string `json:"question"`
	Answer      string `json:"answer"`
	SourceLabel string `json:"source_label,omitempty"` // originating file, e.g. "fileA.json"
}

// Validate checks if the record has valid field values
func (r *QARecord) Validate() error {
	if strings.TrimSpace(r.ID) == "" {
		return fmt.Errorf("id is required")
	}
	if !utf8.ValidString(r.Question) {
		return fmt.Errorf("question is not valid UTF-8 (id=%s)", r.ID)
	}
	if !utf8.ValidString(r.Answer) {
		return fmt.Errorf("answer is not valid UTF-8 (id=%s)", r.ID)
	}
	return nil
}

// Text returns the field a dedup mode signs on.
func (r *QARecord) Text(field Field) string {
	if field == FieldAnswer {
		return r.Answer
	}
	return r.Question
}

// TextLength returns the length of the given field in characters (runes, not bytes).
func (r *QARecord) TextLength(field Field) int {
	return utf8.RuneCountInString(r.Text(field))
}

// RawQARecord is a QA record as decoded from upstream JSON, before any
// tolerance defaults are applied. Nil fields were absent from the source.
type RawQARecord struct {
	ID       *string `json:"id,omitempty"`
	Question *string `json:"question,omitempty"`
	Answer   *string `json:"answer,omitempty"`
}

// StringPtr is a convenience for building raw records in code.
func StringPtr(s string) *string {
	return &s
}

// Field names a QA text field
type Field string

const (
	FieldQuestion Field = "question"
	FieldAnswer   Field = "answer"
)

// IsValid checks if the field value is valid
func (f Field) IsValid() bool {
	switch f {
	case FieldQuestion, FieldAnswer:
		return true
	}
	return false
}

// DedupMode selects which text a pass signs on
//
// Mode asymmetry:
// - by_question: signs question text, tracks deleted groups, no length filter
// - by_answer: signs answer text, drops short answers, does not track deleted groups
type DedupMode string

const (
	ModeByQuestion DedupMode = "by_question"
	ModeByAnswer   DedupMode = "by_answer"
)

// IsValid checks if the mode value is valid
func (m DedupMode) IsValid() bool {
	switch m {
	case ModeByQuestion, ModeByAnswer:
		return true
	}
	return false
}

// SignField returns the field whose text is tokenized and signed.
func (m DedupMode) SignField() Field {
	if m == ModeByAnswer {
		return FieldAnswer
	}
	return FieldQuestion
}

// TieBreakField returns the field whose length breaks priority ties.
// This is always the other field from SignField: by_question prefers the
// longer answer, by_answer prefers the longer question.
func (m DedupMode) TieBreakField() Field {
	if m == ModeByAnswer {
		return FieldQuestion
	}
	return FieldAnswer
}

// TracksDeletedGroups reports whether the mode records cluster membership.
func (m DedupMode) TracksDeletedGroups() bool {
	return m == ModeByQuestion
}

// ModeFromByAnswer maps the legacy dedup_by_answer flag to a mode.
func ModeFromByAnswer(byAnswer bool) DedupMode {
	if byAnswer {
		return ModeByAnswer
	}
	return ModeByQuestion
}
