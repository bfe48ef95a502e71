package session

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/go-faster/errors"
	"github.com/gotd/td/session"
)

const (
	sessionFilePrefix = "session_"
	sessionFileExt    = ".json"
)

// Manager keeps one MTProto session file per phone number
type Manager struct {
	sessionsDir string
	cache       map[string]*session.FileStorage
	mu          sync.Mutex
}

// NewManager creates a new session manager rooted at dataDir/sessions
func NewManager(dataDir string) (*Manager, error) {
	sessionsDir := filepath.Join(dataDir, "sessions")

	// Session files hold auth keys, keep the directory private
	if err := os.MkdirAll(sessionsDir, 0o700); err != nil {
		return nil, errors.Wrap(err, "create sessions dir")
	}

	return &Manager{
		sessionsDir: sessionsDir,
		cache:       make(map[string]*session.FileStorage),
	}, nil
}

// Dir returns the directory holding the session files
func (m *Manager) Dir() string {
	return m.sessionsDir
}

// Storage returns the gotd session storage of a phone number
func (m *Manager) Storage(phone string) *session.FileStorage {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := safeKey(phone)
	if s, ok := m.cache[key]; ok {
		return s
	}

	s := &session.FileStorage{Path: m.getFilePath(key)}
	m.cache[key] = s
	return s
}

// Exists reports whether a non-empty session is stored for phone
func (m *Manager) Exists(ctx context.Context, phone string) bool {
	data, err := m.Storage(phone).LoadSession(ctx)
	return err == nil && len(data) > 0
}

// Delete removes the session of phone from cache and disk
func (m *Manager) Delete(phone string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := safeKey(phone)
	delete(m.cache, key)

	if err := os.Remove(m.getFilePath(key)); err != nil {
		return false
	}
	return true
}

// List returns information about all stored sessions, newest first
func (m *Manager) List() []Info {
	m.mu.Lock()
	defer m.mu.Unlock()

	var sessions []Info

	entries, err := os.ReadDir(m.sessionsDir)
	if err != nil {
		return sessions
	}

	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasPrefix(name, sessionFilePrefix) || !strings.HasSuffix(name, sessionFileExt) {
			continue
		}

		fi, err := entry.Info()
		if err != nil {
			continue
		}
		sessions = append(sessions, Info{
			Phone:     keyFromFilename(name),
			Path:      filepath.Join(m.sessionsDir, name),
			Size:      fi.Size(),
			UpdatedAt: fi.ModTime(),
		})
	}

	sort.Slice(sessions, func(i, j int) bool {
		return sessions[i].UpdatedAt.After(sessions[j].UpdatedAt)
	})
	return sessions
}

// getFilePath returns the file path for a session key
func (m *Manager) getFilePath(key string) string {
	return filepath.Join(m.sessionsDir, sessionFilePrefix+key+sessionFileExt)
}

// safeKey converts a phone number to a safe filename
func safeKey(phone string) string {
	phone = strings.TrimSpace(phone)
	// Remove null bytes and path traversal components
	phone = strings.ReplaceAll(phone, "\x00", "")
	phone = strings.ReplaceAll(phone, "..", "")
	phone = strings.ReplaceAll(phone, "/", "")
	phone = strings.ReplaceAll(phone, "\\", "")
	return strings.ReplaceAll(phone, " ", "")
}

// keyFromFilename converts a filename back to a phone number
func keyFromFilename(filename string) string {
	name := strings.TrimSuffix(filename, sessionFileExt)
	return strings.TrimPrefix(name, sessionFilePrefix)
}
