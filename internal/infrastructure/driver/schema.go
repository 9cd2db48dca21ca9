package driver

import (
	"context"
	"fmt"
	"strings"
)

// schema is shared by postgres and sqlite: timestamps are unix milliseconds,
// ids are nanoid strings
const schema = `
CREATE TABLE IF NOT EXISTS formations (
    id TEXT PRIMARY KEY,
    title TEXT NOT NULL,
    quiz_required BOOLEAN NOT NULL DEFAULT FALSE,
    certificate_validity_days INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS sections (
    id TEXT PRIMARY KEY,
    formation_id TEXT NOT NULL REFERENCES formations (id) ON DELETE CASCADE,
    position INTEGER NOT NULL,
    title TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS lessons (
    id TEXT PRIMARY KEY,
    section_id TEXT NOT NULL REFERENCES sections (id) ON DELETE CASCADE,
    formation_id TEXT NOT NULL REFERENCES formations (id) ON DELETE CASCADE,
    position INTEGER NOT NULL,
    title TEXT NOT NULL,
    nominal_extent DOUBLE PRECISION NOT NULL DEFAULT 0,
    published BOOLEAN NOT NULL DEFAULT TRUE
);

CREATE TABLE IF NOT EXISTS formation_assignments (
    user_id TEXT NOT NULL,
    formation_id TEXT NOT NULL REFERENCES formations (id) ON DELETE CASCADE,
    mandatory BOOLEAN NOT NULL DEFAULT FALSE,
    due_at BIGINT,
    assigned_at BIGINT NOT NULL,
    PRIMARY KEY (user_id, formation_id)
);

CREATE TABLE IF NOT EXISTS bank_members (
    bank_id TEXT NOT NULL,
    user_id TEXT NOT NULL,
    PRIMARY KEY (bank_id, user_id)
);

CREATE TABLE IF NOT EXISTS bank_formations (
    bank_id TEXT NOT NULL,
    formation_id TEXT NOT NULL REFERENCES formations (id) ON DELETE CASCADE,
    mandatory BOOLEAN NOT NULL DEFAULT FALSE,
    due_at BIGINT,
    assigned_at BIGINT NOT NULL,
    PRIMARY KEY (bank_id, formation_id)
);

CREATE TABLE IF NOT EXISTS lesson_progress (
    user_id TEXT NOT NULL,
    lesson_id TEXT NOT NULL REFERENCES lessons (id) ON DELETE CASCADE,
    formation_id TEXT NOT NULL REFERENCES formations (id) ON DELETE CASCADE,
    percentage DOUBLE PRECISION NOT NULL DEFAULT 0,
    current_position DOUBLE PRECISION NOT NULL DEFAULT 0,
    total_extent DOUBLE PRECISION NOT NULL DEFAULT 0,
    accumulated_time BIGINT NOT NULL DEFAULT 0,
    completed BOOLEAN NOT NULL DEFAULT FALSE,
    started_at BIGINT NOT NULL,
    last_accessed_at BIGINT NOT NULL,
    completed_at BIGINT,
    PRIMARY KEY (user_id, lesson_id)
);

CREATE INDEX IF NOT EXISTS lesson_progress_user_formation ON lesson_progress (user_id, formation_id);

CREATE TABLE IF NOT EXISTS quizzes (
    id TEXT PRIMARY KEY,
    formation_id TEXT NOT NULL UNIQUE REFERENCES formations (id) ON DELETE CASCADE,
    title TEXT NOT NULL,
    passing_score INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS quiz_questions (
    id TEXT PRIMARY KEY,
    quiz_id TEXT NOT NULL REFERENCES quizzes (id) ON DELETE CASCADE,
    position INTEGER NOT NULL,
    kind TEXT NOT NULL,
    points INTEGER NOT NULL,
    prompt TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS quiz_answers (
    id TEXT PRIMARY KEY,
    question_id TEXT NOT NULL REFERENCES quiz_questions (id) ON DELETE CASCADE,
    position INTEGER NOT NULL,
    label TEXT NOT NULL,
    correct BOOLEAN NOT NULL DEFAULT FALSE
);

CREATE TABLE IF NOT EXISTS quiz_attempts (
    id TEXT PRIMARY KEY,
    user_id TEXT NOT NULL,
    quiz_id TEXT NOT NULL REFERENCES quizzes (id) ON DELETE CASCADE,
    formation_id TEXT NOT NULL,
    started_at BIGINT NOT NULL,
    completed_at BIGINT,
    answer_key TEXT NOT NULL,
    answers TEXT,
    score INTEGER NOT NULL DEFAULT 0,
    points_earned INTEGER NOT NULL DEFAULT 0,
    points_possible INTEGER NOT NULL DEFAULT 0,
    passed BOOLEAN NOT NULL DEFAULT FALSE,
    elapsed_time BIGINT NOT NULL DEFAULT 0
);

CREATE UNIQUE INDEX IF NOT EXISTS quiz_attempts_one_open ON quiz_attempts (user_id, quiz_id) WHERE completed_at IS NULL;

CREATE TABLE IF NOT EXISTS quiz_attempt_results (
    attempt_id TEXT NOT NULL REFERENCES quiz_attempts (id) ON DELETE CASCADE,
    question_id TEXT NOT NULL,
    points_earned INTEGER NOT NULL,
    points_possible INTEGER NOT NULL,
    correct BOOLEAN NOT NULL,
    PRIMARY KEY (attempt_id, question_id)
);

CREATE TABLE IF NOT EXISTS certificates (
    id TEXT PRIMARY KEY,
    number TEXT NOT NULL UNIQUE,
    user_id TEXT NOT NULL,
    formation_id TEXT NOT NULL REFERENCES formations (id) ON DELETE CASCADE,
    issued_at BIGINT NOT NULL,
    completed_at BIGINT NOT NULL,
    score INTEGER,
    expires_at BIGINT,
    verification_code TEXT NOT NULL,
    UNIQUE (user_id, formation_id)
)
`

// Migrate create missing tables and indexes, statements are idempotent
func Migrate(ctx context.Context, conn ITransactionalDB) error {
	for _, stmt := range strings.Split(schema, ";") {
		stmt = strings.TrimSpace(stmt)
		if stmt == "" {
			continue
		}
		if _, err := conn.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}
