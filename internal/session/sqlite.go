package session

import (
	"context"
	"fmt"

	"github.com/existflow/instafeed/internal/db"
	"github.com/existflow/instafeed/internal/model"
)

const sqliteKey = "session"

// SQLiteStore keeps the session in the local database's kv table
type SQLiteStore struct {
	db *db.DB
}

// NewSQLiteStore wraps an open database
func NewSQLiteStore(d *db.DB) *SQLiteStore {
	return &SQLiteStore{db: d}
}

func (s *SQLiteStore) Load(ctx context.Context) (*model.Session, error) {
	v, ok, err := s.db.GetValue(ctx, sqliteKey)
	if err != nil {
		return nil, fmt.Errorf("failed to read session: %w", err)
	}
	if !ok {
		return nil, nil
	}
	return decode([]byte(v))
}

func (s *SQLiteStore) Save(ctx context.Context, sess model.Session) error {
	data, err := encode(sess)
	if err != nil {
		return err
	}
	if err := s.db.PutValue(ctx, sqliteKey, string(data)); err != nil {
		return fmt.Errorf("failed to write session: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Clear(ctx context.Context) error {
	return s.db.DeleteValue(ctx, sqliteKey)
}
