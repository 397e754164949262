package auth

import (
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/glorpus-work/shelfkeep/pkg/errors"
	"github.com/glorpus-work/shelfkeep/pkg/fsutil"
)

// Session is the persisted authentication state.
type Session struct {
	Token   string    `yaml:"token"`
	SavedAt time.Time `yaml:"saved_at"`
}

// LoadSession reads a stored session from path. A missing file fails with
// ErrNoSession so callers can surface a re-login instruction.
func LoadSession(path string) (*Session, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, errors.ErrNoSession
	}
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read session %s", path)
	}

	var s Session
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, errors.Wrapf(err, "failed to parse session %s", path)
	}
	if s.Token == "" {
		return nil, errors.ErrNoSession
	}
	return &s, nil
}

// SaveSession writes the session to path with owner-only permissions.
func SaveSession(path string, s *Session) error {
	data, err := yaml.Marshal(s)
	if err != nil {
		return errors.Wrap(err, "failed to encode session")
	}

	if err := os.MkdirAll(filepath.Dir(path), fsutil.DirModeSecure); err != nil {
		return errors.Wrap(err, "failed to create session directory")
	}
	if err := os.WriteFile(path, data, fsutil.FileModeSecure); err != nil {
		return errors.Wrapf(err, "failed to write session %s", path)
	}
	return nil
}

// Authenticator returns the authenticator for this session.
func (s *Session) Authenticator() Authenticator {
	return SessionAuth{Token: s.Token}
}
