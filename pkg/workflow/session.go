package workflow

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/filconv/filconv/pkg/logger"
)

// CacheState is what a client remembers between runs.
type CacheState struct {
	BootID   int64  `json:"bootId,omitempty"`
	Username string `json:"loggedInUser,omitempty"`
}

// Cache persists CacheState. Load on an empty cache returns the zero state.
type Cache interface {
	Load(ctx context.Context) (CacheState, error)
	Save(ctx context.Context, st CacheState) error
}

// BootSource reports the server's current boot id.
type BootSource interface {
	BootID(ctx context.Context) (int64, error)
}

// Session tracks the logged-in user across server restarts: a cached user
// is forgotten as soon as the server reports a different boot id.
type Session struct {
	cache Cache
}

func NewSession(c Cache) *Session {
	return &Session{cache: c}
}

// Sync fetches the boot id and clears the cached user when it changed. A
// server that cannot be reached leaves the cache untouched. It returns the
// username still logged in, if any.
func (s *Session) Sync(ctx context.Context, src BootSource) (string, error) {
	st, err := s.cache.Load(ctx)
	if err != nil {
		return "", err
	}
	id, err := src.BootID(ctx)
	if err != nil {
		logger.Warnf("could not fetch boot id: %v", err)
		return st.Username, nil
	}
	if st.BootID != id {
		if st.Username != "" {
			logger.Infof("server restarted, signing out %s", st.Username)
		}
		st = CacheState{BootID: id}
		if err := s.cache.Save(ctx, st); err != nil {
			return "", err
		}
	}
	return st.Username, nil
}

// Adopt records username after a login unless a user is already cached. It
// returns the user now logged in.
func (s *Session) Adopt(ctx context.Context, username string) (string, error) {
	st, err := s.cache.Load(ctx)
	if err != nil {
		return "", err
	}
	if st.Username != "" || username == "" {
		return st.Username, nil
	}
	st.Username = username
	return username, s.cache.Save(ctx, st)
}

func (s *Session) Username(ctx context.Context) (string, error) {
	st, err := s.cache.Load(ctx)
	return st.Username, err
}

// Logout forgets the cached user and keeps the boot id.
func (s *Session) Logout(ctx context.Context) error {
	st, err := s.cache.Load(ctx)
	if err != nil {
		return err
	}
	st.Username = ""
	return s.cache.Save(ctx, st)
}

type MemoryCache struct {
	mu sync.Mutex
	st CacheState
}

func NewMemoryCache() *MemoryCache { return &MemoryCache{} }

func (m *MemoryCache) Load(context.Context) (CacheState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.st, nil
}

func (m *MemoryCache) Save(_ context.Context, st CacheState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.st = st
	return nil
}

// FileCache keeps the state in a JSON file.
type FileCache struct {
	Path string
}

// DefaultCachePath is session.json under the user's config directory.
func DefaultCachePath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "filconv", "session.json"), nil
}

func (f *FileCache) Load(context.Context) (CacheState, error) {
	var st CacheState
	data, err := os.ReadFile(f.Path)
	if errors.Is(err, fs.ErrNotExist) {
		return st, nil
	}
	if err != nil {
		return st, err
	}
	if err := json.Unmarshal(data, &st); err != nil {
		logger.Warnf("ignoring unreadable session cache %s: %v", f.Path, err)
		return CacheState{}, nil
	}
	return st, nil
}

// Save writes through a temp file so a crash never leaves half a file.
func (f *FileCache) Save(_ context.Context, st CacheState) error {
	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return err
	}
	dir := filepath.Dir(f.Path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("create cache dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".session-*.json")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), f.Path)
}
