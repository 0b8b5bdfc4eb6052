package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Gesture is a trained classifier template stored in the database.
type Gesture struct {
	ID        string      `json:"id"`
	Label     string      `json:"label"`
	Tolerance float64     `json:"tolerance"`
	Samples   int         `json:"samples"`
	Frames    [][]float64 `json:"frames,omitempty"`
	CreatedAt time.Time   `json:"created_at"`
	UpdatedAt time.Time   `json:"updated_at"`
}

// GestureRepository provides CRUD operations for gesture templates.
type GestureRepository struct {
	db *sql.DB
}

// Gestures returns the gesture repository for this store.
func (s *Store) Gestures() *GestureRepository {
	return &GestureRepository{db: s.db}
}

const gestureColumns = `id, label, tolerance, samples, frames, created_at, updated_at`

// Create inserts a new gesture, assigning an ID when missing.
func (r *GestureRepository) Create(ctx context.Context, g *Gesture) error {
	if g.ID == "" {
		g.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	g.CreatedAt = now
	g.UpdatedAt = now

	frames, err := encodeFrames(g.Frames)
	if err != nil {
		return err
	}

	_, err = r.db.ExecContext(ctx,
		`INSERT INTO gestures (`+gestureColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		g.ID, g.Label, g.Tolerance, g.Samples, frames, g.CreatedAt, g.UpdatedAt,
	)
	return err
}

// GetByID retrieves a gesture by its ID.
func (r *GestureRepository) GetByID(ctx context.Context, id string) (*Gesture, error) {
	return r.get(ctx, `SELECT `+gestureColumns+` FROM gestures WHERE id = ?`, id)
}

// GetByLabel retrieves a gesture by its classifier label.
func (r *GestureRepository) GetByLabel(ctx context.Context, label string) (*Gesture, error) {
	return r.get(ctx, `SELECT `+gestureColumns+` FROM gestures WHERE label = ?`, label)
}

func (r *GestureRepository) get(ctx context.Context, query string, arg any) (*Gesture, error) {
	g, err := scanGesture(r.db.QueryRowContext(ctx, query, arg))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return g, err
}

// List retrieves all gestures ordered by label.
func (r *GestureRepository) List(ctx context.Context) ([]*Gesture, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+gestureColumns+` FROM gestures ORDER BY label`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var gestures []*Gesture
	for rows.Next() {
		g, err := scanGesture(rows)
		if err != nil {
			return nil, err
		}
		gestures = append(gestures, g)
	}
	return gestures, rows.Err()
}

// Update updates an existing gesture.
func (r *GestureRepository) Update(ctx context.Context, g *Gesture) error {
	g.UpdatedAt = time.Now().UTC()

	frames, err := encodeFrames(g.Frames)
	if err != nil {
		return err
	}

	result, err := r.db.ExecContext(ctx,
		`UPDATE gestures SET label = ?, tolerance = ?, samples = ?, frames = ?, updated_at = ?
		 WHERE id = ?`,
		g.Label, g.Tolerance, g.Samples, frames, g.UpdatedAt, g.ID,
	)
	if err != nil {
		return err
	}
	return requireRow(result)
}

// Delete removes a gesture and its samples.
func (r *GestureRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM gestures WHERE id = ?`, id)
	if err != nil {
		return err
	}
	return requireRow(result)
}

func requireRow(result sql.Result) error {
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func encodeFrames(frames [][]float64) (string, error) {
	if frames == nil {
		frames = [][]float64{}
	}
	data, err := json.Marshal(frames)
	if err != nil {
		return "", fmt.Errorf("encode frames: %w", err)
	}
	return string(data), nil
}

func scanGesture(s scanner) (*Gesture, error) {
	g := &Gesture{}
	var frames string
	if err := s.Scan(&g.ID, &g.Label, &g.Tolerance, &g.Samples, &frames, &g.CreatedAt, &g.UpdatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(frames), &g.Frames); err != nil {
		return nil, fmt.Errorf("decode frames of %s: %w", g.Label, err)
	}
	return g, nil
}
