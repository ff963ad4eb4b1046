package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/Saberlve/LLM-Kit-sub000/internal/events"
)

var _ events.EventStore = (*SQLiteStorage)(nil)

// StoreEvent stores a pass event in the database
func (s *SQLiteStorage) StoreEvent(ctx context.Context, event *events.Event) error {
	// Marshal the Data field to JSON
	data := event.Data
	if data == nil {
		data = map[string]interface{}{}
	}
	dataJSON, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to marshal event data: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO pass_events (id, pass_id, type, timestamp, severity, message, data)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`,
		event.ID,
		event.PassID,
		string(event.Type),
		formatTime(event.Timestamp),
		string(event.Severity),
		event.Message,
		string(dataJSON),
	)
	if err != nil {
		return fmt.Errorf("failed to store event (type=%s, pass=%s): %w", event.Type, event.PassID, err)
	}
	return nil
}

// GetEvents retrieves the events of a pass matching filter, oldest first
func (s *SQLiteStorage) GetEvents(ctx context.Context, passID string, filter events.EventFilter) ([]*events.Event, error) {
	query := `
		SELECT id, pass_id, type, timestamp, severity, message, data
		FROM pass_events
		WHERE pass_id = ?
	`
	args := []interface{}{passID}

	// Apply filters
	if filter.Type != "" {
		query += " AND type = ?"
		args = append(args, string(filter.Type))
	}
	if filter.Severity != "" {
		query += " AND severity = ?"
		args = append(args, string(filter.Severity))
	}

	query += " ORDER BY timestamp ASC, rowid ASC"

	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query events: %w", err)
	}
	defer rows.Close()

	return scanEvents(rows)
}

// scanEvents is a helper function to scan rows into Event structs
func scanEvents(rows *sql.Rows) ([]*events.Event, error) {
	var result []*events.Event

	for rows.Next() {
		var (
			event     events.Event
			eventType string
			severity  string
			timestamp string
			dataJSON  string
		)

		err := rows.Scan(
			&event.ID,
			&event.PassID,
			&eventType,
			&timestamp,
			&severity,
			&event.Message,
			&dataJSON,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}

		event.Type = events.EventType(eventType)
		event.Severity = events.EventSeverity(severity)
		if event.Timestamp, err = parseTime(timestamp); err != nil {
			return nil, err
		}

		// Unmarshal the JSON data field
		event.Data = make(map[string]interface{})
		if dataJSON != "" && dataJSON != "{}" {
			if err := json.Unmarshal([]byte(dataJSON), &event.Data); err != nil {
				return nil, fmt.Errorf("failed to unmarshal event data: %w", err)
			}
		}

		result = append(result, &event)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating event rows: %w", err)
	}

	return result, nil
}
