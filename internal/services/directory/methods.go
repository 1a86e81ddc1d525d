package directory

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/MonishPuttu/internhub-chat/internal/chat"
)

type createRoomRequest struct {
	Name string `json:"name"`
}

// ListRooms fetches every room visible to the authenticated user.
func (c *Client) ListRooms(ctx context.Context) ([]chat.Room, error) {
	var rooms []chat.Room
	if err := c.get(ctx, "/rooms", &rooms); err != nil {
		return nil, err
	}
	return rooms, nil
}

// CreateRoom asks the backend to create a room and returns it.
func (c *Client) CreateRoom(ctx context.Context, name string) (chat.Room, error) {
	var room chat.Room
	if err := c.post(ctx, "/rooms", createRoomRequest{Name: name}, &room); err != nil {
		return chat.Room{}, err
	}
	return room, nil
}

// RegisterMembership enrolls the authenticated user in a room. This must
// succeed before the realtime join is emitted.
func (c *Client) RegisterMembership(ctx context.Context, roomID string) error {
	return c.post(ctx, "/rooms/"+roomID+"/join", nil, nil)
}

// RoomMembers lists the users enrolled in a room.
func (c *Client) RoomMembers(ctx context.Context, roomID string) ([]chat.Member, error) {
	var members []chat.Member
	if err := c.get(ctx, "/rooms/"+roomID+"/users", &members); err != nil {
		return nil, err
	}
	return members, nil
}

// RoomMessages fetches the persisted message history of a room.
func (c *Client) RoomMessages(ctx context.Context, roomID string) ([]chat.Message, error) {
	var msgs []chat.Message
	if err := c.get(ctx, "/rooms/"+roomID+"/messages", &msgs); err != nil {
		return nil, err
	}
	return msgs, nil
}

// Identity resolves who the stored credential belongs to.
func (c *Client) Identity(ctx context.Context) (chat.User, error) {
	var user chat.User
	if err := c.get(ctx, "/auth/me", &user); err != nil {
		return chat.User{}, err
	}
	return user, nil
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, path, nil)
	if err != nil {
		return err
	}
	return c.do(req, out)
}

func (c *Client) post(ctx context.Context, path string, body, out any) error {
	var payload io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("json marshal error: %w", err)
		}
		payload = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, path, payload)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json; charset=utf-8")
	return c.do(req, out)
}

// do executes the request and maps failures onto the session error taxonomy:
// transport failures become ErrNetwork, credential rejections ErrUnauthorized.
func (c *Client) do(req *http.Request, out any) error {
	res, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", chat.ErrNetwork, err)
	}
	defer func() {
		_ = res.Body.Close()
	}()

	switch {
	case res.StatusCode == http.StatusUnauthorized || res.StatusCode == http.StatusForbidden:
		return fmt.Errorf("%w: %s %s", chat.ErrUnauthorized, req.Method, req.URL.Path)
	case res.StatusCode >= 300:
		body, _ := io.ReadAll(res.Body)
		return fmt.Errorf("request failed (%d): %s", res.StatusCode, string(body))
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(res.Body).Decode(out); err != nil {
		return fmt.Errorf("json decode error: %w", err)
	}
	return nil
}
