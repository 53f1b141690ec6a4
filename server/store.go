package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/existflow/instafeed/internal/model"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

var (
	errNotFound  = errors.New("not found")
	errDuplicate = errors.New("already exists")
)

const timeLayout = time.RFC3339Nano

// store is the server's storage on top of SQLite or PostgreSQL
type store struct {
	db       *sql.DB
	postgres bool
}

// openStore opens dbURL. postgres:// URLs use lib/pq, anything else is a SQLite path.
func openStore(dbURL string) (*store, error) {
	driver, dsn, postgres := "sqlite", dbURL, false
	if strings.HasPrefix(dbURL, "postgres://") || strings.HasPrefix(dbURL, "postgresql://") {
		driver, postgres = "postgres", true
	} else {
		dsn = strings.TrimPrefix(dbURL, "sqlite:")
		if err := os.MkdirAll(filepath.Dir(dsn), 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, err
	}
	if !postgres {
		db.SetMaxOpenConns(1)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, err
	}

	s := &store{db: db, postgres: postgres}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *store) Close() error {
	return s.db.Close()
}

// q rewrites ? placeholders to $n for PostgreSQL
func (s *store) q(query string) string {
	if !s.postgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func now() string {
	return time.Now().UTC().Format(timeLayout)
}

func parseStamp(s string) time.Time {
	t, _ := time.Parse(timeLayout, s)
	return t
}

func isUnique(err error) bool {
	return err != nil && strings.Contains(strings.ToLower(err.Error()), "unique")
}

// Users

type userRow struct {
	model.User
	PasswordHash string
}

func (s *store) createUser(ctx context.Context, email, name, hash string) (model.User, error) {
	var id int64
	err := s.db.QueryRowContext(ctx, s.q(`
		INSERT INTO users (email, name, password_hash, created_at)
		VALUES (?, ?, ?, ?)
		RETURNING id`),
		email, name, hash, now(),
	).Scan(&id)
	if isUnique(err) {
		return model.User{}, errDuplicate
	}
	if err != nil {
		return model.User{}, err
	}
	return model.User{ID: id, Email: email, Name: name}, nil
}

func (s *store) scanUser(row *sql.Row) (userRow, error) {
	var (
		u   userRow
		img sql.NullString
	)
	err := row.Scan(&u.ID, &u.Email, &u.Name, &img, &u.PasswordHash)
	if errors.Is(err, sql.ErrNoRows) {
		return userRow{}, errNotFound
	}
	if err != nil {
		return userRow{}, err
	}
	if img.Valid && img.String != "" {
		v := img.String
		u.ProfileImg = &v
	}
	return u, nil
}

func (s *store) userByEmail(ctx context.Context, email string) (userRow, error) {
	return s.scanUser(s.db.QueryRowContext(ctx, s.q(`
		SELECT id, email, name, profile_img, password_hash FROM users WHERE email = ?`), email))
}

func (s *store) userByID(ctx context.Context, id int64) (userRow, error) {
	return s.scanUser(s.db.QueryRowContext(ctx, s.q(`
		SELECT id, email, name, profile_img, password_hash FROM users WHERE id = ?`), id))
}

func (s *store) updateUser(ctx context.Context, id int64, patch model.UserPatch) error {
	if patch.Name != nil {
		if _, err := s.db.ExecContext(ctx, s.q(`UPDATE users SET name = ? WHERE id = ?`), *patch.Name, id); err != nil {
			return err
		}
	}
	if patch.ProfileImg != nil {
		var img any
		if *patch.ProfileImg != "" {
			img = *patch.ProfileImg
		}
		if _, err := s.db.ExecContext(ctx, s.q(`UPDATE users SET profile_img = ? WHERE id = ?`), img, id); err != nil {
			return err
		}
	}
	return nil
}

// Sessions

func (s *store) createSession(ctx context.Context, id string, userID int64, expiresAt time.Time) error {
	_, err := s.db.ExecContext(ctx, s.q(`
		INSERT INTO sessions (id, user_id, expires_at, created_at) VALUES (?, ?, ?, ?)`),
		id, userID, expiresAt.UTC().Format(timeLayout), now())
	return err
}

// sessionUser returns the user of a live session
func (s *store) sessionUser(ctx context.Context, id string) (int64, error) {
	var (
		userID  int64
		expires string
	)
	err := s.db.QueryRowContext(ctx, s.q(`SELECT user_id, expires_at FROM sessions WHERE id = ?`), id).Scan(&userID, &expires)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, errNotFound
	}
	if err != nil {
		return 0, err
	}
	if time.Now().After(parseStamp(expires)) {
		return 0, errNotFound
	}
	return userID, nil
}

func (s *store) deleteSession(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, s.q(`DELETE FROM sessions WHERE id = ?`), id)
	return err
}

// Posts

type postRow struct {
	model.Post
	AuthorID int64
}

const postColumns = `p.id, p.content, p.post_img, u.email, p.user_id, p.created_at`

func (s *store) scanPost(scan func(...any) error) (postRow, error) {
	var (
		p       postRow
		img     sql.NullString
		created string
	)
	if err := scan(&p.PostID, &p.Content, &img, &p.Author, &p.AuthorID, &created); err != nil {
		return postRow{}, err
	}
	p.PostImg = img.String
	p.CreatedAt = parseStamp(created)
	return p, nil
}

func (s *store) listPosts(ctx context.Context, offset, limit int) ([]model.Post, error) {
	rows, err := s.db.QueryContext(ctx, s.q(`
		SELECT `+postColumns+`
		FROM posts p JOIN users u ON u.id = p.user_id
		ORDER BY p.id DESC
		LIMIT ? OFFSET ?`), limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Post
	for rows.Next() {
		p, err := s.scanPost(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, p.Post)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	// SQLite runs on one connection; release it before the likes queries.
	_ = rows.Close()
	for i := range out {
		if out[i].LikedBy, err = s.likedBy(ctx, out[i].PostID); err != nil {
			return nil, err
		}
	}
	if out == nil {
		out = []model.Post{}
	}
	return out, nil
}

func (s *store) getPost(ctx context.Context, id int64) (postRow, error) {
	row := s.db.QueryRowContext(ctx, s.q(`
		SELECT `+postColumns+`
		FROM posts p JOIN users u ON u.id = p.user_id
		WHERE p.id = ?`), id)
	p, err := s.scanPost(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return postRow{}, errNotFound
	}
	if err != nil {
		return postRow{}, err
	}
	if p.LikedBy, err = s.likedBy(ctx, id); err != nil {
		return postRow{}, err
	}
	return p, nil
}

func (s *store) createPost(ctx context.Context, userID int64, in model.PostInput) (int64, error) {
	var id int64
	err := s.db.QueryRowContext(ctx, s.q(`
		INSERT INTO posts (user_id, content, post_img, created_at)
		VALUES (?, ?, ?, ?)
		RETURNING id`),
		userID, in.Content, in.PostImg, now(),
	).Scan(&id)
	return id, err
}

func (s *store) updatePost(ctx context.Context, id int64, content string, img *string) error {
	if img == nil {
		_, err := s.db.ExecContext(ctx, s.q(`UPDATE posts SET content = ? WHERE id = ?`), content, id)
		return err
	}
	_, err := s.db.ExecContext(ctx, s.q(`UPDATE posts SET content = ?, post_img = ? WHERE id = ?`), content, *img, id)
	return err
}

func (s *store) deletePost(ctx context.Context, id int64) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	for _, stmt := range []string{
		`DELETE FROM comments WHERE post_id = ?`,
		`DELETE FROM likes WHERE post_id = ?`,
		`DELETE FROM posts WHERE id = ?`,
	} {
		if _, err := tx.ExecContext(ctx, s.q(stmt), id); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// Likes

func (s *store) likedBy(ctx context.Context, postID int64) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, s.q(`
		SELECT u.email FROM likes l JOIN users u ON u.id = l.user_id
		WHERE l.post_id = ? ORDER BY l.created_at`), postID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []string{}
	for rows.Next() {
		var email string
		if err := rows.Scan(&email); err != nil {
			return nil, err
		}
		out = append(out, email)
	}
	return out, rows.Err()
}

// setLike records the user's like state and returns the new total
func (s *store) setLike(ctx context.Context, postID, userID int64, liked bool) (int, error) {
	var err error
	if liked {
		_, err = s.db.ExecContext(ctx, s.q(`
			INSERT INTO likes (post_id, user_id, created_at) VALUES (?, ?, ?)
			ON CONFLICT (post_id, user_id) DO NOTHING`), postID, userID, now())
	} else {
		_, err = s.db.ExecContext(ctx, s.q(`DELETE FROM likes WHERE post_id = ? AND user_id = ?`), postID, userID)
	}
	if err != nil {
		return 0, err
	}
	var total int
	err = s.db.QueryRowContext(ctx, s.q(`SELECT COUNT(*) FROM likes WHERE post_id = ?`), postID).Scan(&total)
	return total, err
}

func (s *store) hasLiked(ctx context.Context, postID, userID int64) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx, s.q(`SELECT COUNT(*) FROM likes WHERE post_id = ? AND user_id = ?`), postID, userID).Scan(&n)
	return n > 0, err
}

// Comments

type commentRow struct {
	model.Comment
	AuthorID int64
}

func (s *store) listComments(ctx context.Context, postID int64) ([]model.Comment, error) {
	rows, err := s.db.QueryContext(ctx, s.q(`
		SELECT c.id, c.post_id, u.email, c.body, c.created_at, c.updated_at
		FROM comments c JOIN users u ON u.id = c.user_id
		WHERE c.post_id = ? ORDER BY c.id`), postID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []model.Comment{}
	for rows.Next() {
		var (
			c                model.Comment
			created, updated string
		)
		if err := rows.Scan(&c.ID, &c.PostID, &c.UserID, &c.Comment, &created, &updated); err != nil {
			return nil, err
		}
		c.CreatedAt, c.UpdatedAt = parseStamp(created), parseStamp(updated)
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *store) createComment(ctx context.Context, postID int64, user model.User, text string) (model.Comment, error) {
	stamp := now()
	var id int64
	err := s.db.QueryRowContext(ctx, s.q(`
		INSERT INTO comments (post_id, user_id, body, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
		RETURNING id`),
		postID, user.ID, text, stamp, stamp,
	).Scan(&id)
	if err != nil {
		return model.Comment{}, err
	}
	t := parseStamp(stamp)
	return model.Comment{ID: id, PostID: postID, UserID: user.Email, Comment: text, CreatedAt: t, UpdatedAt: t}, nil
}

func (s *store) getComment(ctx context.Context, postID, id int64) (commentRow, error) {
	var (
		c       commentRow
		created string
		updated string
	)
	err := s.db.QueryRowContext(ctx, s.q(`
		SELECT c.id, c.post_id, u.email, c.user_id, c.body, c.created_at, c.updated_at
		FROM comments c JOIN users u ON u.id = c.user_id
		WHERE c.post_id = ? AND c.id = ?`), postID, id,
	).Scan(&c.ID, &c.PostID, &c.UserID, &c.AuthorID, &c.Comment.Comment, &created, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return commentRow{}, errNotFound
	}
	if err != nil {
		return commentRow{}, err
	}
	c.CreatedAt, c.UpdatedAt = parseStamp(created), parseStamp(updated)
	return c, nil
}

func (s *store) deleteComment(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx, s.q(`DELETE FROM comments WHERE id = ?`), id)
	return err
}
