package chat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// Socket is the slice of the connection manager the session drives.
// *Conn satisfies it.
type Socket interface {
	Connect(userID string) error
	Emit(event string, payload any) error
	Status() Status
}

// Directory is the durable REST backend: room creation and membership are
// authorized there before any realtime join is emitted.
type Directory interface {
	ListRooms(ctx context.Context) ([]Room, error)
	CreateRoom(ctx context.Context, name string) (Room, error)
	RegisterMembership(ctx context.Context, roomID string) error
	RoomMembers(ctx context.Context, roomID string) ([]Member, error)
	RoomMessages(ctx context.Context, roomID string) ([]Message, error)
	Identity(ctx context.Context) (User, error)
}

// StateStore is the durable client-side state: credential identity and the
// active room id, so a restart can rejoin automatically.
type StateStore interface {
	User() (User, bool)
	SetUser(User) error
	ActiveRoom() string
	SetActiveRoom(id string) error
	ClearActiveRoom() error
	Clear() error
}

// Session ties the connection manager, the reconciliation log, the REST
// directory and the persisted state together around one rule: the user is in
// at most one room at a time. All command failures land in a single error
// slot the UI can render and dismiss; none of them crash the caller.
type Session struct {
	// PendingTimeout bounds how long an optimistic send may stay
	// unacknowledged before it is marked failed.
	PendingTimeout time.Duration

	// OnUpdate, when set, is called after any state change a UI would want
	// to re-render for. Set it before Connect.
	OnUpdate func()

	sock  Socket
	dir   Directory
	state StateStore
	msgs  *Log
	log   zerolog.Logger

	mu         sync.Mutex
	user       User
	activeRoom string
	members    []Member
	typing     map[string]struct{}
	errMsg     string

	sweepOnce sync.Once
	done      chan struct{}
}

func NewSession(sock Socket, dir Directory, state StateStore, log zerolog.Logger) *Session {
	s := &Session{
		PendingTimeout: 10 * time.Second,
		sock:           sock,
		dir:            dir,
		state:          state,
		msgs:           NewLog(),
		log:            log.With().Str("component", "session").Logger(),
		typing:         make(map[string]struct{}),
		done:           make(chan struct{}),
	}
	if c, ok := sock.(*Conn); ok {
		c.Initialize(s.HandleEvent, s.resync)
	}
	return s
}

// Connect resolves the user identity, opens the realtime connection and
// replays the persisted room join if there is one.
func (s *Session) Connect(ctx context.Context) error {
	user, err := s.resolveUser(ctx)
	if err != nil {
		s.setErr(err)
		return err
	}
	if err := s.sock.Connect(user.ID); err != nil {
		// non-fatal: the conn keeps retrying, the UI renders disconnected
		s.setErr(err)
		s.notify()
		return nil
	}
	s.sweepOnce.Do(func() { go s.sweepPending() })
	s.resync()
	s.notify()
	return nil
}

// resync re-emits the room join for the persisted active room. Runs after
// every successful connect, including automatic reconnects.
func (s *Session) resync() {
	roomID := s.state.ActiveRoom()
	if roomID == "" {
		return
	}
	s.mu.Lock()
	userID := s.user.ID
	s.activeRoom = roomID
	s.mu.Unlock()
	if err := s.sock.Emit(EventJoinRoom, joinRoomPayload{RoomID: roomID, UserID: userID}); err != nil {
		s.log.Warn().Err(err).Str("room", roomID).Msg("room rejoin failed")
	}
}

// JoinRoom makes roomID the active room. The ordering is a hard invariant:
// REST membership registration first, then the realtime join, then
// persistence, then the history fetch. The realtime join is never emitted
// when the membership call rejected, so the client cannot start receiving
// broadcasts it is not authorized for.
func (s *Session) JoinRoom(ctx context.Context, roomID string) error {
	user, err := s.resolveUser(ctx)
	if err != nil {
		s.setErr(err)
		return err
	}
	if s.sock.Status() != StatusConnected {
		s.setErr(ErrNotConnected)
		return ErrNotConnected
	}
	if err := s.dir.RegisterMembership(ctx, roomID); err != nil {
		err = fmt.Errorf("joining room %s: %w", roomID, err)
		s.setErr(err)
		return err
	}
	if err := s.sock.Emit(EventJoinRoom, joinRoomPayload{RoomID: roomID, UserID: user.ID}); err != nil {
		s.setErr(err)
		return err
	}

	s.mu.Lock()
	s.activeRoom = roomID
	s.typing = make(map[string]struct{})
	s.mu.Unlock()
	if err := s.state.SetActiveRoom(roomID); err != nil {
		s.log.Warn().Err(err).Msg("persisting active room failed")
	}

	s.loadRoom(ctx, roomID)
	s.notify()
	return nil
}

// loadRoom fetches history and membership for roomID. The results are tagged
// with the room they were fetched for and dropped if the active room changed
// while the fetch was in flight.
func (s *Session) loadRoom(ctx context.Context, roomID string) {
	var (
		history []Message
		members []Member
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		history, err = s.dir.RoomMessages(gctx, roomID)
		return err
	})
	g.Go(func() error {
		var err error
		members, err = s.dir.RoomMembers(gctx, roomID)
		return err
	})
	if err := g.Wait(); err != nil {
		s.setErr(fmt.Errorf("loading room %s: %w", roomID, err))
		return
	}

	s.mu.Lock()
	stale := s.activeRoom != roomID
	if !stale {
		s.members = members
	}
	s.mu.Unlock()
	if stale {
		s.log.Debug().Str("room", roomID).Msg("discarding fetch for inactive room")
		return
	}
	s.msgs.Merge(history)
}

// LeaveRoom leaves the active room and clears all room-scoped state. No-op
// when no room is active or the socket is down.
func (s *Session) LeaveRoom() {
	s.mu.Lock()
	roomID := s.activeRoom
	s.mu.Unlock()
	if roomID == "" || s.sock.Status() != StatusConnected {
		return
	}
	if err := s.sock.Emit(EventLeaveRoom, roomID); err != nil {
		s.log.Warn().Err(err).Str("room", roomID).Msg("leave emit failed")
	}

	s.mu.Lock()
	s.activeRoom = ""
	s.members = nil
	s.typing = make(map[string]struct{})
	s.mu.Unlock()
	if err := s.state.ClearActiveRoom(); err != nil {
		s.log.Warn().Err(err).Msg("clearing active room failed")
	}
	s.msgs.Clear()
	s.notify()
}

// CreateRoom creates a room via the directory and joins it. The name is
// validated client-side; an empty name never reaches the server.
func (s *Session) CreateRoom(ctx context.Context, name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		err := fmt.Errorf("%w: room name is empty", ErrValidation)
		s.setErr(err)
		return err
	}
	room, err := s.dir.CreateRoom(ctx, name)
	if err != nil {
		err = fmt.Errorf("creating room: %w", err)
		s.setErr(err)
		return err
	}
	return s.JoinRoom(ctx, room.ID)
}

// Send submits text to the active room. The pending record is appended to
// the log unconditionally so the UI stays responsive; reconciliation against
// the server echo happens in HandleEvent, and the pending sweeper marks the
// record failed if no echo ever arrives.
func (s *Session) Send(text string) error {
	text = strings.TrimSpace(text)
	s.mu.Lock()
	roomID, userID := s.activeRoom, s.user.ID
	s.mu.Unlock()
	if text == "" || roomID == "" || s.sock.Status() != StatusConnected {
		s.setErr(ErrNotReady)
		return ErrNotReady
	}

	m := newPending(roomID, userID, text, time.Now())
	err := s.sock.Emit(EventSendRoomMessage, sendPayload{
		Text:      m.Text,
		SenderID:  m.SenderID,
		RoomID:    m.RoomID,
		CreatedAt: m.CreatedAt,
		Timestamp: m.Timestamp,
	})
	s.msgs.AppendPending(m)
	if err != nil {
		s.setErr(err)
	}
	s.notify()
	return nil
}

// NotifyTyping emits a typing or stop_typing event for the active room.
// Best-effort presence; failures are only logged.
func (s *Session) NotifyTyping(active bool) {
	s.mu.Lock()
	roomID, userID := s.activeRoom, s.user.ID
	s.mu.Unlock()
	if roomID == "" || s.sock.Status() != StatusConnected {
		return
	}
	event := EventStopTyping
	if active {
		event = EventTyping
	}
	if err := s.sock.Emit(event, typingPayload{RoomID: roomID, UserID: userID}); err != nil {
		s.log.Debug().Err(err).Msg("typing emit failed")
	}
}

// HandleEvent dispatches one inbound realtime event into session state.
// Registered as the connection's event handler.
func (s *Session) HandleEvent(event string, data json.RawMessage) {
	switch event {
	case EventReceiveRoomMessage, EventReceiveMessage:
		var m Message
		if err := json.Unmarshal(data, &m); err != nil {
			s.log.Warn().Err(err).Str("event", event).Msg("bad payload")
			return
		}
		s.mu.Lock()
		active := s.activeRoom
		s.mu.Unlock()
		if s.msgs.ApplyBroadcast(m, active) {
			s.notify()
		}
	case EventMessageSent:
		var m Message
		if err := json.Unmarshal(data, &m); err != nil {
			s.log.Warn().Err(err).Str("event", event).Msg("bad payload")
			return
		}
		s.msgs.ApplyAck(m)
		s.notify()
	case EventMessageError:
		var p errorPayload
		_ = json.Unmarshal(data, &p)
		s.log.Error().Str("reason", p.Message).Msg("send rejected by server")
		s.setErr(fmt.Errorf("%w: %s", ErrRemote, p.Message))
		s.notify()
	case EventTyping, EventStopTyping:
		var p typingPayload
		if err := json.Unmarshal(data, &p); err != nil {
			return
		}
		s.mu.Lock()
		if p.RoomID == s.activeRoom {
			if event == EventTyping {
				s.typing[p.UserID] = struct{}{}
			} else {
				delete(s.typing, p.UserID)
			}
		}
		s.mu.Unlock()
		s.notify()
	default:
		s.log.Debug().Str("event", event).Msg("unhandled event")
	}
}

// Logout clears the whole persisted session: token, user and active room go
// together.
func (s *Session) Logout() error {
	s.mu.Lock()
	s.user = User{}
	s.activeRoom = ""
	s.members = nil
	s.typing = make(map[string]struct{})
	s.mu.Unlock()
	s.msgs.Clear()
	return s.state.Clear()
}

// Close stops the pending sweeper. The connection is closed separately.
func (s *Session) Close() {
	select {
	case <-s.done:
	default:
		close(s.done)
	}
}

// Messages returns the rendered sequence: the log filtered to the active
// room, in arrival order.
func (s *Session) Messages() []Message {
	s.mu.Lock()
	roomID := s.activeRoom
	s.mu.Unlock()
	if roomID == "" {
		return nil
	}
	return s.msgs.Visible(roomID)
}

// Members returns the membership of the active room as of the last join.
func (s *Session) Members() []Member {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Member(nil), s.members...)
}

// Typing returns ids of users currently typing in the active room.
func (s *Session) Typing() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]string, 0, len(s.typing))
	for id := range s.typing {
		ids = append(ids, id)
	}
	return ids
}

// ActiveRoom returns the active room id, or "".
func (s *Session) ActiveRoom() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.activeRoom
}

// Status reports the transport state for the connecting/disconnected
// indicator.
func (s *Session) Status() Status { return s.sock.Status() }

// Err returns the current error slot contents, or "".
func (s *Session) Err() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.errMsg
}

// ClearErr dismisses the error slot.
func (s *Session) ClearErr() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.errMsg = ""
}

// resolveUser prefers the in-memory user, then the persisted record, then
// the auth backend. An Unauthorized response from identity resolution means
// the stored credential is stale, which is not recoverable client-side: the
// whole local session is cleared.
func (s *Session) resolveUser(ctx context.Context) (User, error) {
	s.mu.Lock()
	user := s.user
	s.mu.Unlock()
	if user.ID != "" {
		return user, nil
	}
	if stored, ok := s.state.User(); ok && stored.ID != "" {
		s.mu.Lock()
		s.user = stored
		s.mu.Unlock()
		return stored, nil
	}

	user, err := s.dir.Identity(ctx)
	if err != nil {
		if errors.Is(err, ErrUnauthorized) {
			if clearErr := s.state.Clear(); clearErr != nil {
				s.log.Warn().Err(clearErr).Msg("clearing stale session failed")
			}
			return User{}, fmt.Errorf("%w: credential rejected", ErrAuthRequired)
		}
		return User{}, fmt.Errorf("%w: %v", ErrAuthRequired, err)
	}
	s.mu.Lock()
	s.user = user
	s.mu.Unlock()
	if err := s.state.SetUser(user); err != nil {
		s.log.Warn().Err(err).Msg("persisting user failed")
	}
	return user, nil
}

// sweepPending periodically flags optimistic sends that outlived
// PendingTimeout without a server echo.
func (s *Session) sweepPending() {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-s.done:
			return
		case now := <-ticker.C:
			if failed := s.msgs.MarkFailed(now.Add(-s.PendingTimeout)); len(failed) > 0 {
				s.log.Warn().Strs("ids", failed).Msg("sends unacknowledged, marked failed")
				s.notify()
			}
		}
	}
}

func (s *Session) setErr(err error) {
	s.mu.Lock()
	s.errMsg = err.Error()
	s.mu.Unlock()
	s.notify()
}

func (s *Session) notify() {
	if s.OnUpdate != nil {
		s.OnUpdate()
	}
}
