package session

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/existflow/instafeed/internal/model"
)

// sealedFile is the on-disk layout when a passphrase is configured
type sealedFile struct {
	Version int    `json:"version"`
	Salt    string `json:"salt"`
	Data    string `json:"data"`
}

// FileStore keeps the session in a JSON file, sealed with AES-GCM when
// a passphrase is set.
type FileStore struct {
	path       string
	passphrase string
	mu         sync.Mutex
}

// NewFileStore creates a store at path. An empty passphrase stores plain JSON.
func NewFileStore(path, passphrase string) *FileStore {
	return &FileStore{path: path, passphrase: passphrase}
}

// Path returns the file location
func (f *FileStore) Path() string {
	return f.path
}

func (f *FileStore) Load(_ context.Context) (*model.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	data, err := os.ReadFile(f.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read session: %w", err)
	}

	if f.passphrase == "" {
		return decode(data)
	}

	var sf sealedFile
	if err := json.Unmarshal(data, &sf); err != nil || sf.Data == "" {
		return nil, fmt.Errorf("%w: not a sealed session file", ErrCorrupt)
	}
	salt, err := base64.StdEncoding.DecodeString(sf.Salt)
	if err != nil {
		return nil, fmt.Errorf("%w: bad salt", ErrCorrupt)
	}
	plain, err := newSealer(f.passphrase, salt).open(sf.Data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	return decode(plain)
}

func (f *FileStore) Save(_ context.Context, s model.Session) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	data, err := encode(s)
	if err != nil {
		return err
	}

	if f.passphrase != "" {
		salt, err := newSalt()
		if err != nil {
			return fmt.Errorf("failed to generate salt: %w", err)
		}
		sealed, err := newSealer(f.passphrase, salt).seal(data)
		if err != nil {
			return fmt.Errorf("failed to seal session: %w", err)
		}
		data, err = json.Marshal(sealedFile{
			Version: 1,
			Salt:    base64.StdEncoding.EncodeToString(salt),
			Data:    sealed,
		})
		if err != nil {
			return err
		}
	}

	if err := os.MkdirAll(filepath.Dir(f.path), 0700); err != nil {
		return fmt.Errorf("failed to create session directory: %w", err)
	}
	// Write then rename so a crash never leaves half a file.
	tmp := f.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return fmt.Errorf("failed to write session: %w", err)
	}
	if err := os.Rename(tmp, f.path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("failed to write session: %w", err)
	}
	return nil
}

func (f *FileStore) Clear(_ context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := os.Remove(f.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to remove session: %w", err)
	}
	return nil
}
