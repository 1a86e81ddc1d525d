// Package services holds HTTP plumbing shared by the REST clients.
package services

import (
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Transport allows custom attributes to be added to each HTTP request sent by
// an http.Client that uses this transport: the backend base URL, the bearer
// credential and a request id for correlation.
type Transport struct {
	BaseURL,
	Token string
	MaxIdleConns int
	IdleConnTimeout,
	TLSHandshakeTimeout,
	ResponseHeaderTimeout time.Duration
}

// RoundTrip adds upon the normal http.Transport.RoundTrip() behavior to add
// bearer auth and a base url to each request.
// Reference: https://cs.opensource.google/go/x/oauth2/+/refs/tags/v0.31.0:transport.go
func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	baseURL := strings.TrimSuffix(t.BaseURL, "/")
	path := "/" + strings.TrimPrefix(req.URL.String(), "/")
	newURL, err := req.URL.Parse(baseURL + path)
	if err != nil {
		return nil, err
	}
	req.URL = newURL

	if t.Token != "" {
		req.Header.Set("Authorization", "Bearer "+t.Token)
	}
	req.Header.Set("X-Request-ID", uuid.NewString())
	return http.DefaultTransport.RoundTrip(req)
}
