package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"
)

// Sample represents a recorded gesture sample stored in the database.
type Sample struct {
	ID          int64           `json:"id"`
	GestureID   string          `json:"gesture_id"`
	SampleIndex int             `json:"sample_index"`
	Data        json.RawMessage `json:"data"`
	CreatedAt   time.Time       `json:"created_at"`
}

// SampleRepository stores raw training samples.
type SampleRepository struct {
	db *sql.DB
}

// Samples returns the sample repository for this store.
func (s *Store) Samples() *SampleRepository {
	return &SampleRepository{db: s.db}
}

// Append adds samples after the gesture's existing ones in a single
// transaction and returns the new sample count.
func (r *SampleRepository) Append(ctx context.Context, gestureID string, samples []json.RawMessage) (int, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	var next int
	if err := tx.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(sample_index) + 1, 0) FROM gesture_samples WHERE gesture_id = ?`,
		gestureID,
	).Scan(&next); err != nil {
		return 0, err
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO gesture_samples (gesture_id, sample_index, data) VALUES (?, ?, ?)`)
	if err != nil {
		return 0, err
	}
	defer stmt.Close()

	for i, data := range samples {
		if _, err := stmt.ExecContext(ctx, gestureID, next+i, string(data)); err != nil {
			return 0, err
		}
	}

	total := next + len(samples)
	result, err := tx.ExecContext(ctx, `UPDATE gestures SET samples = ?, updated_at = ? WHERE id = ?`,
		total, time.Now().UTC(), gestureID)
	if err != nil {
		return 0, err
	}
	if err := requireRow(result); err != nil {
		return 0, err
	}

	return total, tx.Commit()
}

// GetByGestureID retrieves all samples for a given gesture.
func (r *SampleRepository) GetByGestureID(ctx context.Context, gestureID string) ([]Sample, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, gesture_id, sample_index, data, created_at
		 FROM gesture_samples
		 WHERE gesture_id = ?
		 ORDER BY sample_index`,
		gestureID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var samples []Sample
	for rows.Next() {
		var s Sample
		var data string
		if err := rows.Scan(&s.ID, &s.GestureID, &s.SampleIndex, &data, &s.CreatedAt); err != nil {
			return nil, err
		}
		s.Data = json.RawMessage(data)
		samples = append(samples, s)
	}

	return samples, rows.Err()
}

// Raw returns just the sample payloads, in recording order.
func (r *SampleRepository) Raw(ctx context.Context, gestureID string) ([]json.RawMessage, error) {
	samples, err := r.GetByGestureID(ctx, gestureID)
	if err != nil {
		return nil, err
	}
	out := make([]json.RawMessage, len(samples))
	for i, s := range samples {
		out[i] = s.Data
	}
	return out, nil
}
