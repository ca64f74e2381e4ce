// Package postgres implements the PostgreSQL persistence layer for the
// PyKIDS profile server.
package postgres

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 001: CREATE USERS
// ══════════════════════════════════════════════════════════════════════════════

const migration001Up = `
-- Migration: Create users table
-- Version: 001
-- The progress column is the authoritative per-topic record map:
-- {"moduleId": {"topicId": {"completed": bool, "score": int, "completedAt": ts}}}

CREATE TABLE IF NOT EXISTS users (
    id TEXT PRIMARY KEY,
    email TEXT NOT NULL DEFAULT '',
    selected_avatar TEXT NOT NULL DEFAULT '',
    progress JSONB NOT NULL DEFAULT '{}'::jsonb,
    total_score BIGINT NOT NULL DEFAULT 0,
    completed_lessons INTEGER NOT NULL DEFAULT 0,
    completed_quizzes INTEGER NOT NULL DEFAULT 0,
    last_active_lesson JSONB,
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    -- Constraints for data integrity
    CONSTRAINT valid_total_score CHECK (total_score >= 0),
    CONSTRAINT valid_completed_lessons CHECK (completed_lessons >= 0),
    CONSTRAINT valid_completed_quizzes CHECK (completed_quizzes >= 0)
);

-- Indexes for common queries
CREATE INDEX IF NOT EXISTS idx_users_email ON users(email);
CREATE INDEX IF NOT EXISTS idx_users_updated_at ON users(updated_at DESC);
CREATE INDEX IF NOT EXISTS idx_users_total_score ON users(total_score DESC);

-- Updated_at trigger function for automatic timestamp updates
CREATE OR REPLACE FUNCTION update_updated_at_column()
RETURNS TRIGGER AS $$
BEGIN
    NEW.updated_at = NOW();
    RETURN NEW;
END;
$$ language 'plpgsql';

DROP TRIGGER IF EXISTS update_users_updated_at ON users;
CREATE TRIGGER update_users_updated_at
    BEFORE UPDATE ON users
    FOR EACH ROW
    EXECUTE FUNCTION update_updated_at_column();
`

const migration001Down = `
DROP TRIGGER IF EXISTS update_users_updated_at ON users;
DROP FUNCTION IF EXISTS update_updated_at_column();
DROP TABLE IF EXISTS users;
`

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 002: CREATE INTEGRITY AUDIT
// ══════════════════════════════════════════════════════════════════════════════

const migration002Up = `
-- Migration: Create integrity audit table
-- Version: 002
-- Purpose: Record corrections made by the nightly aggregate sweep.
-- Stored aggregates are derived from the progress map; when they drift
-- (manual edits, old incremental-update bugs), the sweep fixes the row
-- and leaves an audit trail here.

CREATE TABLE IF NOT EXISTS integrity_audit (
    id SERIAL PRIMARY KEY,
    user_id TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
    field VARCHAR(50) NOT NULL,
    stored_value BIGINT NOT NULL,
    computed_value BIGINT NOT NULL,
    corrected_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    CONSTRAINT valid_audit_field CHECK (field IN ('total_score', 'completed_lessons', 'completed_quizzes'))
);

CREATE INDEX IF NOT EXISTS idx_integrity_audit_user ON integrity_audit(user_id);
CREATE INDEX IF NOT EXISTS idx_integrity_audit_corrected_at ON integrity_audit(corrected_at DESC);
`

const migration002Down = `
DROP TABLE IF EXISTS integrity_audit;
`
