// Package profile keeps the profile view behind a session check and edits
// the signed-in user. All exported methods must be called on the event loop.
package profile

import (
	"context"

	"fdss/internal/domain"
	"fdss/internal/event"
	"fdss/internal/logger"
	"fdss/internal/loop"
	"fdss/internal/session"
)

type Sessions interface {
	Load(ctx context.Context) *domain.Session
	UpdateUser(ctx context.Context, user *domain.UserProfile) (bool, error)
	Clear(ctx context.Context) error
}

type Guard struct {
	sessions Sessions
	bus      *event.Bus
	clock    loop.Clock
	log      logger.Logger
}

func NewGuard(sessions Sessions, bus *event.Bus, clock loop.Clock, log logger.Logger) *Guard {
	return &Guard{
		sessions: sessions,
		bus:      bus,
		clock:    clock,
		log:      log.With("component", "profile_guard"),
	}
}

// Activate runs once per entry into the profile view. Without a session it
// redirects to login and reports false.
func (g *Guard) Activate(ctx context.Context) (*domain.Session, bool) {
	sess := g.Check(ctx)
	if sess == nil {
		g.log.Debug("no session, redirecting to login")
		g.bus.Publish(event.Navigate, event.RouteLogin)
		return nil, false
	}
	return sess, true
}

// Check loads the session without navigating. A token past its exp claim
// counts as no session and is cleared.
func (g *Guard) Check(ctx context.Context) *domain.Session {
	sess := g.sessions.Load(ctx)
	if sess == nil {
		return nil
	}

	if session.Expired(sess.Token, g.clock.Now()) {
		g.log.Info("session token expired", "email", sess.User.Email)
		if err := g.sessions.Clear(ctx); err != nil {
			g.log.Error("failed to clear expired session", "error", err)
		}
		return nil
	}

	return sess
}
