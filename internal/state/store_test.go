package state

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/MonishPuttu/internhub-chat/internal/chat"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	return NewStore(filepath.Join(t.TempDir(), "session.toml"))
}

func TestStore_EmptyOnFirstUse(t *testing.T) {
	s := newTestStore(t)
	if s.Token() != "" {
		t.Error("fresh store has a token")
	}
	if _, ok := s.User(); ok {
		t.Error("fresh store has a user")
	}
	if s.ActiveRoom() != "" {
		t.Error("fresh store has an active room")
	}
}

func TestStore_Roundtrip(t *testing.T) {
	s := newTestStore(t)

	if err := s.SetToken("tok-123"); err != nil {
		t.Fatal(err)
	}
	if err := s.SetUser(chat.User{ID: "u1", Name: "Asha"}); err != nil {
		t.Fatal(err)
	}
	if err := s.SetActiveRoom("room-7"); err != nil {
		t.Fatal(err)
	}

	if got := s.Token(); got != "tok-123" {
		t.Errorf("Token() = %q", got)
	}
	user, ok := s.User()
	if !ok || user.ID != "u1" || user.Name != "Asha" {
		t.Errorf("User() = %+v, %v", user, ok)
	}
	if got := s.ActiveRoom(); got != "room-7" {
		t.Errorf("ActiveRoom() = %q", got)
	}
}

func TestStore_ClearActiveRoomKeepsCredential(t *testing.T) {
	s := newTestStore(t)
	_ = s.SetToken("tok-123")
	_ = s.SetActiveRoom("room-7")

	if err := s.ClearActiveRoom(); err != nil {
		t.Fatal(err)
	}
	if s.ActiveRoom() != "" {
		t.Error("active room survived ClearActiveRoom")
	}
	if s.Token() != "tok-123" {
		t.Error("ClearActiveRoom wiped the token")
	}
}

func TestStore_ClearWipesEverything(t *testing.T) {
	s := newTestStore(t)
	_ = s.SetToken("tok-123")
	_ = s.SetUser(chat.User{ID: "u1"})
	_ = s.SetActiveRoom("room-7")

	if err := s.Clear(); err != nil {
		t.Fatal(err)
	}
	if s.Token() != "" || s.ActiveRoom() != "" {
		t.Error("Clear left state behind")
	}
	if _, ok := s.User(); ok {
		t.Error("Clear left the user behind")
	}

	// clearing an already-empty store is fine
	if err := s.Clear(); err != nil {
		t.Fatal(err)
	}
}

func TestStore_CorruptFileReadsAsEmpty(t *testing.T) {
	s := newTestStore(t)
	_ = s.SetToken("tok")
	// scribble over the file
	if err := os.WriteFile(s.path, []byte("not = [valid"), 0o600); err != nil {
		t.Fatal(err)
	}
	if s.Token() != "" {
		t.Error("corrupt file did not read as an empty session")
	}
}
