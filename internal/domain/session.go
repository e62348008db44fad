package domain

import "context"

const (
	SessionTokenKey = "token"
	SessionUserKey  = "user"
)

type Session struct {
	Token string       `json:"token"`
	User  *UserProfile `json:"user"`
}

func (s *Session) Complete() bool {
	return s != nil && s.Token != "" && s.User != nil
}

// KeyValueStore is the durable local persistence surface. Multi-key
// operations are atomic: readers never observe part of a SetMany or
// DeleteMany.
type KeyValueStore interface {
	GetMany(ctx context.Context, keys ...string) (map[string]string, error)
	SetMany(ctx context.Context, entries map[string]string) error
	DeleteMany(ctx context.Context, keys ...string) error
	Close() error
}
