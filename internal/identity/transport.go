package identity

import (
	"context"
	"net/http"

	"github.com/google/uuid"
)

type TokenSource interface {
	Token(ctx context.Context) string
}

// bearerTransport attaches the current session token so callers never
// handle credentials themselves.
type bearerTransport struct {
	base      http.RoundTripper
	tokens    TokenSource
	clientID  uuid.UUID
	userAgent string
}

func (t *bearerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	r := req.Clone(req.Context())

	if t.tokens != nil {
		if token := t.tokens.Token(r.Context()); token != "" {
			r.Header.Set("Authorization", "Bearer "+token)
		}
	}
	if t.clientID != uuid.Nil {
		r.Header.Set("X-Client-ID", t.clientID.String())
	}
	if t.userAgent != "" {
		r.Header.Set("User-Agent", t.userAgent)
	}
	r.Header.Set("X-Request-ID", uuid.NewString())

	return t.base.RoundTrip(r)
}
