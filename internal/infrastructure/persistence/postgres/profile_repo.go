// Package postgres implements the PostgreSQL persistence layer for the
// PyKIDS profile server.
package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/pykids/progress-hub/internal/domain/profile"
	"github.com/pykids/progress-hub/internal/domain/progress"

	"github.com/jackc/pgx/v5"
)

// ══════════════════════════════════════════════════════════════════════════════
// PROFILE REPOSITORY IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

// profileColumns is the canonical column list shared by every SELECT.
const profileColumns = `id, email, selected_avatar, progress, total_score,
	   completed_lessons, completed_quizzes, last_active_lesson,
	   created_at, updated_at`

// ProfileRepository implements profile.Repository for PostgreSQL.
type ProfileRepository struct {
	conn *Connection
}

// NewProfileRepository creates a new ProfileRepository.
func NewProfileRepository(conn *Connection) *ProfileRepository {
	return &ProfileRepository{conn: conn}
}

// ─────────────────────────────────────────────────────────────────────────────
// CRUD Operations
// ─────────────────────────────────────────────────────────────────────────────

// Create creates a new profile.
func (r *ProfileRepository) Create(ctx context.Context, p *profile.Profile) error {
	query := `
		INSERT INTO users (
			id, email, selected_avatar, progress, total_score,
			completed_lessons, completed_quizzes, last_active_lesson,
			created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	progressJSON, pointerJSON, err := marshalProfileJSON(p)
	if err != nil {
		return err
	}

	_, err = r.conn.Exec(ctx, query,
		p.ID,
		p.Email,
		p.SelectedAvatar,
		progressJSON,
		p.TotalScore,
		p.CompletedLessons,
		p.CompletedQuizzes,
		pointerJSON,
		p.CreatedAt,
		p.UpdatedAt,
	)
	if err != nil {
		if IsUniqueViolation(err) {
			return profile.ErrProfileAlreadyExists
		}
		return fmt.Errorf("failed to create profile: %w", err)
	}

	return nil
}

// GetByID returns a profile by learner ID.
func (r *ProfileRepository) GetByID(ctx context.Context, id string) (*profile.Profile, error) {
	query := `SELECT ` + profileColumns + ` FROM users WHERE id = $1`

	row := r.conn.QueryRow(ctx, query, id)
	return scanProfile(row)
}

// UpdateAvatar changes the avatar of an existing profile.
func (r *ProfileRepository) UpdateAvatar(ctx context.Context, id, avatar string) (*profile.Profile, error) {
	query := `
		UPDATE users
		SET selected_avatar = $1, updated_at = $2
		WHERE id = $3
		RETURNING ` + profileColumns

	row := r.conn.QueryRow(ctx, query, avatar, time.Now().UTC(), id)
	return scanProfile(row)
}

// ApplyUpdate atomically applies a progress update: the row is locked,
// the record merged, aggregates recomputed by full rescan, and the row
// written back, all in one transaction. Concurrent updates to the same
// profile serialize on the row lock, so no completion is lost.
func (r *ProfileRepository) ApplyUpdate(ctx context.Context, id string, u progress.Update) (*profile.Profile, bool, error) {
	var (
		updated *profile.Profile
		isNew   bool
	)

	err := r.conn.WithTx(ctx, DefaultTxOptions(), func(tx pgx.Tx) error {
		query := `SELECT ` + profileColumns + ` FROM users WHERE id = $1 FOR UPDATE`

		p, err := scanProfile(tx.QueryRow(ctx, query, id))
		if err != nil {
			return err
		}

		isNew, err = p.ApplyUpdate(u, time.Now().UTC())
		if err != nil {
			return err
		}

		progressJSON, pointerJSON, err := marshalProfileJSON(p)
		if err != nil {
			return err
		}

		writeQuery := `
			UPDATE users
			SET progress = $1, total_score = $2, completed_lessons = $3,
			    completed_quizzes = $4, last_active_lesson = $5, updated_at = $6
			WHERE id = $7
		`
		_, err = tx.Exec(ctx, writeQuery,
			progressJSON,
			p.TotalScore,
			p.CompletedLessons,
			p.CompletedQuizzes,
			pointerJSON,
			p.UpdatedAt,
			p.ID,
		)
		if err != nil {
			return fmt.Errorf("failed to write merged progress: %w", err)
		}

		updated = p
		return nil
	})
	if err != nil {
		return nil, false, err
	}

	return updated, isNew, nil
}

// Replace overwrites the whole profile row.
func (r *ProfileRepository) Replace(ctx context.Context, p *profile.Profile) error {
	query := `
		UPDATE users
		SET email = $1, selected_avatar = $2, progress = $3, total_score = $4,
		    completed_lessons = $5, completed_quizzes = $6,
		    last_active_lesson = $7, updated_at = $8
		WHERE id = $9
	`

	progressJSON, pointerJSON, err := marshalProfileJSON(p)
	if err != nil {
		return err
	}

	result, err := r.conn.Exec(ctx, query,
		p.Email,
		p.SelectedAvatar,
		progressJSON,
		p.TotalScore,
		p.CompletedLessons,
		p.CompletedQuizzes,
		pointerJSON,
		time.Now().UTC(),
		p.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to replace profile: %w", err)
	}

	if result.RowsAffected() == 0 {
		return profile.ErrProfileNotFound
	}

	return nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Bulk Operations
// ─────────────────────────────────────────────────────────────────────────────

// Exists checks whether a profile exists.
func (r *ProfileRepository) Exists(ctx context.Context, id string) (bool, error) {
	query := `SELECT EXISTS(SELECT 1 FROM users WHERE id = $1)`

	var exists bool
	if err := r.conn.QueryRow(ctx, query, id).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check profile existence: %w", err)
	}

	return exists, nil
}

// Count returns the total number of profiles.
func (r *ProfileRepository) Count(ctx context.Context) (int, error) {
	query := `SELECT COUNT(*) FROM users`

	var count int
	if err := r.conn.QueryRow(ctx, query).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count profiles: %w", err)
	}

	return count, nil
}

// List returns a stable page of profiles for the integrity sweep.
func (r *ProfileRepository) List(ctx context.Context, offset, limit int) ([]*profile.Profile, error) {
	query := `SELECT ` + profileColumns + ` FROM users ORDER BY id LIMIT $1 OFFSET $2`

	rows, err := r.conn.Query(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list profiles: %w", err)
	}
	defer rows.Close()

	var profiles []*profile.Profile
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, err
		}
		profiles = append(profiles, p)
	}

	return profiles, rows.Err()
}

// ─────────────────────────────────────────────────────────────────────────────
// Integrity Audit
// ─────────────────────────────────────────────────────────────────────────────

// RecordCorrection stores one sweep correction in the audit trail.
func (r *ProfileRepository) RecordCorrection(ctx context.Context, userID, field string, stored, computed int64) error {
	query := `
		INSERT INTO integrity_audit (user_id, field, stored_value, computed_value)
		VALUES ($1, $2, $3, $4)
	`

	if _, err := r.conn.Exec(ctx, query, userID, field, stored, computed); err != nil {
		return fmt.Errorf("failed to record correction: %w", err)
	}

	return nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Scan Helpers
// ─────────────────────────────────────────────────────────────────────────────

// scanProfile reads one profile row. Works for both pgx.Row and pgx.Rows.
func scanProfile(row pgx.Row) (*profile.Profile, error) {
	var (
		p           profile.Profile
		progressRaw []byte
		pointerRaw  []byte
	)

	err := row.Scan(
		&p.ID,
		&p.Email,
		&p.SelectedAvatar,
		&progressRaw,
		&p.TotalScore,
		&p.CompletedLessons,
		&p.CompletedQuizzes,
		&pointerRaw,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		if IsNoRows(err) {
			return nil, profile.ErrProfileNotFound
		}
		return nil, fmt.Errorf("failed to scan profile: %w", err)
	}

	p.Progress = progress.NewMap()
	if len(progressRaw) > 0 {
		if err := json.Unmarshal(progressRaw, &p.Progress); err != nil {
			return nil, fmt.Errorf("failed to decode progress map: %w", err)
		}
	}

	if len(pointerRaw) > 0 {
		var ptr progress.Pointer
		if err := json.Unmarshal(pointerRaw, &ptr); err != nil {
			return nil, fmt.Errorf("failed to decode last active lesson: %w", err)
		}
		if !ptr.IsZero() {
			p.LastActiveLesson = &ptr
		}
	}

	return &p, nil
}

// marshalProfileJSON encodes the JSONB columns of a profile.
// A nil pointer becomes SQL NULL, not the string "null".
func marshalProfileJSON(p *profile.Profile) ([]byte, []byte, error) {
	progressMap := p.Progress
	if progressMap == nil {
		progressMap = progress.NewMap()
	}

	progressJSON, err := json.Marshal(progressMap)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to marshal progress map: %w", err)
	}

	var pointerJSON []byte
	if p.LastActiveLesson != nil {
		pointerJSON, err = json.Marshal(p.LastActiveLesson)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to marshal last active lesson: %w", err)
		}
	}

	return progressJSON, pointerJSON, nil
}
