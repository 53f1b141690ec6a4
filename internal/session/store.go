// Package session persists the signed-in identity between runs.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/existflow/instafeed/internal/model"
)

// ErrCorrupt is returned by Load when stored data cannot be decoded.
// Callers treat it like an absent session and clear the store.
var ErrCorrupt = errors.New("session data is corrupt")

// Store is where the current session lives between runs.
// Load returns (nil, nil) when nothing is stored.
type Store interface {
	Load(ctx context.Context) (*model.Session, error)
	Save(ctx context.Context, s model.Session) error
	Clear(ctx context.Context) error
}

func encode(s model.Session) ([]byte, error) {
	return json.Marshal(s)
}

func decode(data []byte) (*model.Session, error) {
	var s model.Session
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	if !s.Valid() {
		return nil, fmt.Errorf("%w: no identity", ErrCorrupt)
	}
	return &s, nil
}
