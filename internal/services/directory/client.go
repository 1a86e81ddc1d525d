// Package directory implements RESTful requests to the InternHub chat
// backend: rooms, membership, message history and identity resolution. The
// backend owns the durable state; this client is the authorization gate the
// realtime session consults before emitting any room join.
package directory

import (
	"net/http"
	"time"

	"github.com/MonishPuttu/internhub-chat/internal/services"
)

// Client satisfies chat.Directory against the chat backend's REST surface.
type Client struct {
	http *http.Client
}

// NewClient provides a directory client for the backend at baseURL,
// authenticating every request with token.
func NewClient(baseURL, token string) *Client {
	transport := services.Transport{
		BaseURL:               baseURL,
		Token:                 token,
		MaxIdleConns:          10,
		IdleConnTimeout:       30 * time.Second,
		TLSHandshakeTimeout:   5 * time.Second,
		ResponseHeaderTimeout: 10 * time.Second,
	}

	return &Client{
		http: &http.Client{
			Timeout:   15 * time.Second,
			Transport: &transport,
		},
	}
}
