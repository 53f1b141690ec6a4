package server

import (
	"fmt"
	"strings"
)

// migrate runs database migrations
func (s *store) migrate() error {
	migrations := []string{
		migrationUsers,
		migrationSessions,
		migrationPosts,
		migrationLikes,
		migrationComments,
	}

	serial := "INTEGER PRIMARY KEY AUTOINCREMENT"
	if s.postgres {
		serial = "BIGSERIAL PRIMARY KEY"
	}

	for i, m := range migrations {
		stmt := strings.ReplaceAll(m, "{{serial}}", serial)
		for _, part := range strings.Split(stmt, ";") {
			if strings.TrimSpace(part) == "" {
				continue
			}
			if _, err := s.db.Exec(part); err != nil {
				return fmt.Errorf("migration %d failed: %w", i+1, err)
			}
		}
	}

	return nil
}

const migrationUsers = `
CREATE TABLE IF NOT EXISTS users (
    id {{serial}},
    email VARCHAR(255) UNIQUE NOT NULL,
    name VARCHAR(255) NOT NULL DEFAULT '',
    profile_img TEXT,
    password_hash VARCHAR(255) NOT NULL,
    created_at TEXT NOT NULL
);
`

const migrationSessions = `
CREATE TABLE IF NOT EXISTS sessions (
    id VARCHAR(64) PRIMARY KEY,
    user_id BIGINT NOT NULL REFERENCES users(id),
    expires_at TEXT NOT NULL,
    created_at TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_sessions_user ON sessions(user_id);
`

const migrationPosts = `
CREATE TABLE IF NOT EXISTS posts (
    id {{serial}},
    user_id BIGINT NOT NULL REFERENCES users(id),
    content TEXT NOT NULL,
    post_img TEXT NOT NULL DEFAULT '',
    created_at TEXT NOT NULL
);
`

const migrationLikes = `
CREATE TABLE IF NOT EXISTS likes (
    post_id BIGINT NOT NULL REFERENCES posts(id),
    user_id BIGINT NOT NULL REFERENCES users(id),
    created_at TEXT NOT NULL,
    PRIMARY KEY (post_id, user_id)
);
`

const migrationComments = `
CREATE TABLE IF NOT EXISTS comments (
    id {{serial}},
    post_id BIGINT NOT NULL REFERENCES posts(id),
    user_id BIGINT NOT NULL REFERENCES users(id),
    body TEXT NOT NULL,
    created_at TEXT NOT NULL,
    updated_at TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_comments_post ON comments(post_id);
`
