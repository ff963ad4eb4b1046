package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/Saberlve/LLM-Kit-sub000/internal/types"
)

const passColumns = `
	id, input_files, output_file, deleted_pairs_file, mode, threshold,
	num_perm, min_answer_length, status, original_count, kept_count,
	progress, error_message, created_at, updated_at
`

// CreatePass inserts a new pass record. Status defaults to processing and
// timestamps to now when unset; both are written back to pass.
func (s *SQLiteStorage) CreatePass(ctx context.Context, pass *types.PassRecord) error {
	now := time.Now()
	if pass.Status == "" {
		pass.Status = types.PassProcessing
	}
	if pass.CreatedAt.IsZero() {
		pass.CreatedAt = now
	}
	if pass.UpdatedAt.IsZero() {
		pass.UpdatedAt = pass.CreatedAt
	}
	if err := pass.Validate(); err != nil {
		return fmt.Errorf("invalid pass: %w", err)
	}

	inputFiles := pass.InputFiles
	if inputFiles == nil {
		inputFiles = []string{}
	}
	filesJSON, err := json.Marshal(inputFiles)
	if err != nil {
		return fmt.Errorf("failed to marshal input files: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO passes (`+passColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		pass.ID,
		string(filesJSON),
		pass.OutputFile,
		pass.DeletedPairsFile,
		string(pass.Mode),
		pass.Threshold,
		pass.NumPerm,
		pass.MinAnswerLength,
		string(pass.Status),
		pass.OriginalCount,
		pass.KeptCount,
		pass.Progress,
		pass.ErrorMessage,
		formatTime(pass.CreatedAt),
		formatTime(pass.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to create pass %s: %w", pass.ID, err)
	}
	return nil
}

// UpdatePassProgress raises the stored progress of a running pass.
// Progress never moves backwards, and a finished pass is left unchanged.
func (s *SQLiteStorage) UpdatePassProgress(ctx context.Context, id string, progress int) error {
	if progress < 0 || progress > 100 {
		return fmt.Errorf("progress must be between 0 and 100 (got %d)", progress)
	}

	result, err := s.db.ExecContext(ctx, `
		UPDATE passes
		SET progress = MAX(progress, ?), updated_at = ?
		WHERE id = ? AND status = ?
	`, progress, formatTime(time.Now()), id, string(types.PassProcessing))
	if err != nil {
		return fmt.Errorf("failed to update progress for pass %s: %w", id, err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}
	if n == 0 {
		if _, err := s.passStatus(ctx, id); err != nil {
			return err
		}
	}
	return nil
}

// CompletePass marks a running pass completed with its output counts.
func (s *SQLiteStorage) CompletePass(ctx context.Context, id string, originalCount, keptCount int) error {
	return s.finishPass(ctx, id, `
		UPDATE passes
		SET status = ?, progress = 100, original_count = ?, kept_count = ?, updated_at = ?
		WHERE id = ? AND status = ?
	`, string(types.PassCompleted), originalCount, keptCount, formatTime(time.Now()), id, string(types.PassProcessing))
}

// FailPass marks a running pass failed with the given error message.
func (s *SQLiteStorage) FailPass(ctx context.Context, id string, message string) error {
	return s.finishPass(ctx, id, `
		UPDATE passes
		SET status = ?, error_message = ?, updated_at = ?
		WHERE id = ? AND status = ?
	`, string(types.PassFailed), message, formatTime(time.Now()), id, string(types.PassProcessing))
}

func (s *SQLiteStorage) finishPass(ctx context.Context, id, query string, args ...interface{}) error {
	result, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to finish pass %s: %w", id, err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}
	if n > 0 {
		return nil
	}

	status, err := s.passStatus(ctx, id)
	if err != nil {
		return err
	}
	return fmt.Errorf("pass %s is already %s", id, status)
}

func (s *SQLiteStorage) passStatus(ctx context.Context, id string) (types.PassStatus, error) {
	var status string
	err := s.db.QueryRowContext(ctx, `SELECT status FROM passes WHERE id = ?`, id).Scan(&status)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("%w: %s", ErrPassNotFound, id)
	}
	if err != nil {
		return "", fmt.Errorf("failed to read status of pass %s: %w", id, err)
	}
	return types.PassStatus(status), nil
}

// GetPass retrieves a pass by id
func (s *SQLiteStorage) GetPass(ctx context.Context, id string) (*types.PassRecord, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+passColumns+` FROM passes WHERE id = ?`, id)
	pass, err := scanPass(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrPassNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	return pass, nil
}

// LatestPass retrieves the most recently created pass
func (s *SQLiteStorage) LatestPass(ctx context.Context) (*types.PassRecord, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+passColumns+` FROM passes
		ORDER BY created_at DESC, rowid DESC
		LIMIT 1
	`)
	pass, err := scanPass(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrPassNotFound
	}
	if err != nil {
		return nil, err
	}
	return pass, nil
}

// ListPasses returns passes newest first. A limit of zero or less returns
// every pass.
func (s *SQLiteStorage) ListPasses(ctx context.Context, limit int) ([]*types.PassRecord, error) {
	query := `SELECT ` + passColumns + ` FROM passes ORDER BY created_at DESC, rowid DESC`
	args := []interface{}{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query passes: %w", err)
	}
	defer rows.Close()

	var passes []*types.PassRecord
	for rows.Next() {
		pass, err := scanPass(rows)
		if err != nil {
			return nil, err
		}
		passes = append(passes, pass)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating pass rows: %w", err)
	}
	return passes, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanPass(row rowScanner) (*types.PassRecord, error) {
	var (
		pass      types.PassRecord
		filesJSON string
		mode      string
		status    string
		createdAt string
		updatedAt string
	)

	err := row.Scan(
		&pass.ID,
		&filesJSON,
		&pass.OutputFile,
		&pass.DeletedPairsFile,
		&mode,
		&pass.Threshold,
		&pass.NumPerm,
		&pass.MinAnswerLength,
		&status,
		&pass.OriginalCount,
		&pass.KeptCount,
		&pass.Progress,
		&pass.ErrorMessage,
		&createdAt,
		&updatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan pass: %w", err)
	}

	pass.Mode = types.DedupMode(mode)
	pass.Status = types.PassStatus(status)
	if err := json.Unmarshal([]byte(filesJSON), &pass.InputFiles); err != nil {
		return nil, fmt.Errorf("failed to unmarshal input files for pass %s: %w", pass.ID, err)
	}
	if pass.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if pass.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}
	return &pass, nil
}
