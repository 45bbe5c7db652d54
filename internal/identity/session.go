package identity

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"
)

const sessionVersion = 1

// Session is the persisted login state: the signed-in investor, the
// enterprise whose conversation was last opened, and unsent drafts.
type Session struct {
	Version    int               `json:"version"`
	Investor   string            `json:"investor,omitempty"`
	Enterprise string            `json:"enterprise,omitempty"`
	Drafts     map[string]string `json:"drafts,omitempty"` // enterprise -> compose text
	UpdatedAt  time.Time         `json:"updated_at,omitempty"`
}

// SessionStore keeps the Session in a JSON file and serves it as a Provider.
type SessionStore struct {
	path     string
	lockPath string

	mu      sync.Mutex
	session Session
}

// NewSessionStore returns a store backed by path. Nothing is read until Load.
func NewSessionStore(path string) *SessionStore {
	path = strings.TrimSpace(path)
	return &SessionStore{
		path:     path,
		lockPath: path + ".lock",
		session:  Session{Version: sessionVersion},
	}
}

// Path returns the backing file.
func (s *SessionStore) Path() string { return s.path }

// Load reads the session file. A missing file yields an empty session.
func (s *SessionStore) Load() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.path == "" {
		return nil
	}

	var loaded Session
	err := withFileLock(s.lockPath, func() error {
		payload, err := os.ReadFile(s.path)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return nil
			}
			return err
		}
		if len(payload) == 0 {
			return nil
		}
		return json.Unmarshal(payload, &loaded)
	})
	if err != nil {
		return fmt.Errorf("load session %s: %w", s.path, err)
	}
	loaded.Version = sessionVersion
	s.session = loaded
	return nil
}

// Snapshot returns a copy of the in-memory session.
func (s *SessionStore) Snapshot() Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneSession(s.session)
}

// Identity implements Provider: the investor talks to the enterprise.
func (s *SessionStore) Identity() Pair {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Pair{Sender: s.session.Investor, Receiver: s.session.Enterprise}.Normalize()
}

// Login records the investor and, when non-empty, the enterprise.
func (s *SessionStore) Login(investor, enterprise string) error {
	investor = strings.TrimSpace(investor)
	if investor == "" {
		return fmt.Errorf("investor required")
	}
	s.mu.Lock()
	s.session.Investor = investor
	if e := strings.TrimSpace(enterprise); e != "" {
		s.session.Enterprise = e
	}
	s.mu.Unlock()
	return s.Save()
}

// SetEnterprise switches the conversation partner.
func (s *SessionStore) SetEnterprise(enterprise string) error {
	s.mu.Lock()
	s.session.Enterprise = strings.TrimSpace(enterprise)
	s.mu.Unlock()
	return s.Save()
}

// Draft returns the unsent compose text for enterprise.
func (s *SessionStore) Draft(enterprise string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.session.Drafts[strings.TrimSpace(enterprise)]
}

// SetDraft stores or, for blank text, removes the draft for enterprise.
func (s *SessionStore) SetDraft(enterprise, text string) {
	enterprise = strings.TrimSpace(enterprise)
	if enterprise == "" {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if strings.TrimSpace(text) == "" {
		delete(s.session.Drafts, enterprise)
		return
	}
	if s.session.Drafts == nil {
		s.session.Drafts = make(map[string]string)
	}
	s.session.Drafts[enterprise] = text
}

// Clear forgets the signed-in participants and removes the file.
func (s *SessionStore) Clear() error {
	s.mu.Lock()
	s.session = Session{Version: sessionVersion}
	path := s.path
	s.mu.Unlock()
	if path == "" {
		return nil
	}
	return withFileLock(s.lockPath, func() error {
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			return err
		}
		return nil
	})
}

// Save writes the session atomically.
func (s *SessionStore) Save() error {
	s.mu.Lock()
	if s.path == "" {
		s.mu.Unlock()
		return nil
	}
	session := cloneSession(s.session)
	s.mu.Unlock()

	session.Version = sessionVersion
	session.UpdatedAt = time.Now().UTC()
	return withFileLock(s.lockPath, func() error {
		return writeAtomicJSON(s.path, session)
	})
}

func cloneSession(in Session) Session {
	out := in
	if in.Drafts != nil {
		out.Drafts = make(map[string]string, len(in.Drafts))
		for k, v := range in.Drafts {
			out.Drafts[k] = v
		}
	}
	return out
}

func withFileLock(lockPath string, fn func() error) error {
	if strings.TrimSpace(lockPath) == "" {
		return fn()
	}
	if err := os.MkdirAll(filepath.Dir(lockPath), 0o700); err != nil {
		return err
	}
	f, err := os.OpenFile(lockPath, os.O_CREATE|os.O_RDWR, 0o600)
	if err != nil {
		return err
	}
	defer f.Close()
	if err := syscall.Flock(int(f.Fd()), syscall.LOCK_EX); err != nil {
		return fmt.Errorf("lock %s: %w", lockPath, err)
	}
	defer func() {
		_ = syscall.Flock(int(f.Fd()), syscall.LOCK_UN)
	}()
	return fn()
}

func writeAtomicJSON(path string, session Session) error {
	payload, err := json.MarshalIndent(session, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, payload, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
