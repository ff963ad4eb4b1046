package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/Saberlve/LLM-Kit-sub000/internal/deduplication"
	"github.com/Saberlve/LLM-Kit-sub000/internal/types"
)

// SaveKeptPairs replaces the kept records of a pass. Output order is kept.
func (s *SQLiteStorage) SaveKeptPairs(ctx context.Context, passID string, kept []types.QARecord) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM kept_pairs WHERE pass_id = ?`, passID); err != nil {
			return fmt.Errorf("failed to clear kept pairs: %w", err)
		}

		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO kept_pairs (pass_id, position, record_id, question, answer, source_label)
			VALUES (?, ?, ?, ?, ?, ?)
		`)
		if err != nil {
			return fmt.Errorf("failed to prepare kept pair insert: %w", err)
		}
		defer stmt.Close()

		for i, rec := range kept {
			if _, err := stmt.ExecContext(ctx, passID, i, rec.ID, rec.Question, rec.Answer, rec.SourceLabel); err != nil {
				return fmt.Errorf("failed to save kept pair %s: %w", rec.ID, err)
			}
		}
		return nil
	})
}

// SaveDeletedGroups replaces the deleted groups of a pass. Each group is
// stored with its kept record at position 0.
func (s *SQLiteStorage) SaveDeletedGroups(ctx context.Context, passID string, groups []deduplication.DeletedGroup) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM deleted_groups WHERE pass_id = ?`, passID); err != nil {
			return fmt.Errorf("failed to clear deleted groups: %w", err)
		}

		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO deleted_groups (pass_id, group_index, position, record_id, question, answer, source_label)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`)
		if err != nil {
			return fmt.Errorf("failed to prepare deleted group insert: %w", err)
		}
		defer stmt.Close()

		for g, group := range groups {
			for pos, rec := range group.Records() {
				if _, err := stmt.ExecContext(ctx, passID, g, pos, rec.ID, rec.Question, rec.Answer, rec.SourceLabel); err != nil {
					return fmt.Errorf("failed to save deleted group %d record %s: %w", g, rec.ID, err)
				}
			}
		}
		return nil
	})
}

// GetKeptPairs returns the kept records of a pass in output order
func (s *SQLiteStorage) GetKeptPairs(ctx context.Context, passID string) ([]types.QARecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT record_id, question, answer, source_label
		FROM kept_pairs
		WHERE pass_id = ?
		ORDER BY position ASC
	`, passID)
	if err != nil {
		return nil, fmt.Errorf("failed to query kept pairs: %w", err)
	}
	defer rows.Close()

	kept := []types.QARecord{}
	for rows.Next() {
		var rec types.QARecord
		if err := rows.Scan(&rec.ID, &rec.Question, &rec.Answer, &rec.SourceLabel); err != nil {
			return nil, fmt.Errorf("failed to scan kept pair: %w", err)
		}
		kept = append(kept, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating kept pair rows: %w", err)
	}
	return kept, nil
}

// GetDeletedGroups returns the deleted groups of a pass in output order
func (s *SQLiteStorage) GetDeletedGroups(ctx context.Context, passID string) ([]deduplication.DeletedGroup, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT group_index, position, record_id, question, answer, source_label
		FROM deleted_groups
		WHERE pass_id = ?
		ORDER BY group_index ASC, position ASC
	`, passID)
	if err != nil {
		return nil, fmt.Errorf("failed to query deleted groups: %w", err)
	}
	defer rows.Close()

	groups := []deduplication.DeletedGroup{}
	current := -1
	for rows.Next() {
		var (
			groupIndex, position int
			rec                  types.QARecord
		)
		if err := rows.Scan(&groupIndex, &position, &rec.ID, &rec.Question, &rec.Answer, &rec.SourceLabel); err != nil {
			return nil, fmt.Errorf("failed to scan deleted group row: %w", err)
		}

		if groupIndex != current {
			if position != 0 {
				return nil, fmt.Errorf("deleted group %d has no kept record", groupIndex)
			}
			groups = append(groups, deduplication.DeletedGroup{Kept: rec})
			current = groupIndex
			continue
		}
		last := &groups[len(groups)-1]
		last.Duplicates = append(last.Duplicates, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating deleted group rows: %w", err)
	}
	return groups, nil
}

func (s *SQLiteStorage) withTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}
