package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/ayusman/voiceheard/internal/vocab"
)

const activeVocabularyKey = "vocabulary.active"

// VocabularyRepository stores versioned vocabulary bundles.
type VocabularyRepository struct {
	db *sql.DB
}

// Vocabularies returns the vocabulary repository for this store.
func (s *Store) Vocabularies() *VocabularyRepository {
	return &VocabularyRepository{db: s.db}
}

// Save stores a bundle under its version, replacing an existing copy.
func (r *VocabularyRepository) Save(ctx context.Context, b *vocab.Bundle) error {
	data, err := b.Marshal()
	if err != nil {
		return fmt.Errorf("encode vocabulary %s: %w", b.Version, err)
	}
	_, err = r.db.ExecContext(ctx,
		`INSERT INTO vocabularies (version, data, created_at) VALUES (?, ?, ?)
		 ON CONFLICT(version) DO UPDATE SET data = excluded.data`,
		b.Version, string(data), time.Now().UTC(),
	)
	return err
}

// Load returns the bundle stored under version.
func (r *VocabularyRepository) Load(ctx context.Context, version string) (*vocab.Bundle, error) {
	var data string
	err := r.db.QueryRowContext(ctx, `SELECT data FROM vocabularies WHERE version = ?`, version).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return vocab.Parse([]byte(data))
}

// Versions lists stored versions, oldest first.
func (r *VocabularyRepository) Versions(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT version FROM vocabularies ORDER BY created_at, version`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var versions []string
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		versions = append(versions, v)
	}
	return versions, rows.Err()
}

// Activate marks a stored version as the one to load at startup.
func (r *VocabularyRepository) Activate(ctx context.Context, version string) error {
	var exists int
	err := r.db.QueryRowContext(ctx, `SELECT 1 FROM vocabularies WHERE version = ?`, version).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx,
		`INSERT INTO settings (key, value) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		activeVocabularyKey, version,
	)
	return err
}

// Active returns the active bundle, ErrNotFound if none was activated.
func (r *VocabularyRepository) Active(ctx context.Context) (*vocab.Bundle, error) {
	var version string
	err := r.db.QueryRowContext(ctx, `SELECT value FROM settings WHERE key = ?`, activeVocabularyKey).Scan(&version)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return r.Load(ctx, version)
}

// LoadOrSeed returns the active bundle, storing and activating seed first
// when nothing is active yet.
func (r *VocabularyRepository) LoadOrSeed(ctx context.Context, seed *vocab.Bundle) (*vocab.Bundle, error) {
	b, err := r.Active(ctx)
	if err == nil {
		return b, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, err
	}
	if err := r.Save(ctx, seed); err != nil {
		return nil, err
	}
	if err := r.Activate(ctx, seed.Version); err != nil {
		return nil, err
	}
	return seed, nil
}
