package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Direction identifies which pipeline produced a history record.
type Direction string

const (
	DirectionRecognition Direction = "recognition"
	DirectionGeneration  Direction = "generation"
)

// HistoryRecord is one completed utterance or timeline.
type HistoryRecord struct {
	ID        string    `json:"id"`
	Direction Direction `json:"direction"`
	Input     string    `json:"input"`
	Output    string    `json:"output"`
	Favorite  bool      `json:"favorite"`
	CreatedAt time.Time `json:"created_at"`
}

// HistoryRepository stores history records.
type HistoryRepository struct {
	db *sql.DB
}

// History returns the history repository for this store.
func (s *Store) History() *HistoryRepository {
	return &HistoryRepository{db: s.db}
}

// Append inserts a record, assigning an ID and timestamp when missing.
func (r *HistoryRepository) Append(ctx context.Context, rec HistoryRecord) error {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO history (id, direction, input, output, favorite, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		rec.ID, string(rec.Direction), rec.Input, rec.Output, rec.Favorite, rec.CreatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("append history: %w", err)
	}
	return nil
}

// Get returns a record by ID.
func (r *HistoryRepository) Get(ctx context.Context, id string) (*HistoryRecord, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, direction, input, output, favorite, created_at FROM history WHERE id = ?`, id)
	rec, err := scanHistory(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return rec, err
}

// List returns the newest records first. A non-positive limit returns all.
// With favorites set only favorite records are returned.
func (r *HistoryRepository) List(ctx context.Context, limit int, favorites bool) ([]*HistoryRecord, error) {
	query := `SELECT id, direction, input, output, favorite, created_at FROM history`
	if favorites {
		query += ` WHERE favorite = 1`
	}
	query += ` ORDER BY created_at DESC, rowid DESC`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []*HistoryRecord
	for rows.Next() {
		rec, err := scanHistory(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// SetFavorite marks or unmarks a record as favorite.
func (r *HistoryRepository) SetFavorite(ctx context.Context, id string, favorite bool) error {
	result, err := r.db.ExecContext(ctx, `UPDATE history SET favorite = ? WHERE id = ?`, favorite, id)
	if err != nil {
		return err
	}
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanHistory(s scanner) (*HistoryRecord, error) {
	rec := &HistoryRecord{}
	var direction string
	if err := s.Scan(&rec.ID, &direction, &rec.Input, &rec.Output, &rec.Favorite, &rec.CreatedAt); err != nil {
		return nil, err
	}
	rec.Direction = Direction(direction)
	return rec, nil
}
