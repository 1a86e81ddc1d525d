// Package state persists the client session between runs: the bearer token,
// the resolved user record and the joined room id. These three are one unit;
// logout clears them together.
package state

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/adrg/xdg"
	"github.com/pelletier/go-toml/v2"

	"github.com/MonishPuttu/internhub-chat/internal/chat"
)

// fileState is the on-disk layout of the session file.
type fileState struct {
	Token      string    `toml:"token"`
	User       chat.User `toml:"user"`
	JoinedRoom string    `toml:"joined-room"`
}

// Store reads and writes the session file. Reads go to disk on every call;
// the file is small and a concurrent login/logout in another terminal should
// win.
type Store struct {
	path string
}

// NewStore opens a store backed by the given file path.
func NewStore(path string) *Store { return &Store{path: path} }

// DefaultStore places the session file under the XDG state directory.
func DefaultStore() (*Store, error) {
	path, err := xdg.StateFile("internhub/session.toml")
	if err != nil {
		return nil, fmt.Errorf("resolving state path: %w", err)
	}
	return NewStore(path), nil
}

// Token returns the stored bearer credential, or "".
func (s *Store) Token() string {
	return s.load().Token
}

// SetToken persists the bearer credential.
func (s *Store) SetToken(token string) error {
	cur := s.load()
	cur.Token = token
	return s.save(cur)
}

// User returns the stored identity, if one has been resolved.
func (s *Store) User() (chat.User, bool) {
	cur := s.load()
	return cur.User, cur.User.ID != ""
}

// SetUser persists the resolved identity.
func (s *Store) SetUser(u chat.User) error {
	cur := s.load()
	cur.User = u
	return s.save(cur)
}

// ActiveRoom returns the persisted room id, or "".
func (s *Store) ActiveRoom() string {
	return s.load().JoinedRoom
}

// SetActiveRoom persists the joined room so a restart can rejoin it.
func (s *Store) SetActiveRoom(id string) error {
	cur := s.load()
	cur.JoinedRoom = id
	return s.save(cur)
}

// ClearActiveRoom forgets the joined room, keeping the credential.
func (s *Store) ClearActiveRoom() error {
	cur := s.load()
	cur.JoinedRoom = ""
	return s.save(cur)
}

// Clear wipes the whole session file. Equivalent to logout.
func (s *Store) Clear() error {
	err := os.Remove(s.path)
	if os.IsNotExist(err) {
		return nil
	}
	return err
}

func (s *Store) load() fileState {
	var cur fileState
	data, err := os.ReadFile(s.path)
	if err != nil {
		return cur
	}
	// a corrupt file reads as an empty session
	_ = toml.Unmarshal(data, &cur)
	return cur
}

func (s *Store) save(cur fileState) error {
	data, err := toml.Marshal(cur)
	if err != nil {
		return fmt.Errorf("marshaling error: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o750); err != nil {
		return err
	}
	return os.WriteFile(s.path, data, 0o600)
}
