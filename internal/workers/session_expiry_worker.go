package workers

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
	Clear(ctx context.Context) error
}

// SessionExpiryWorker ends a session once its token passes the exp claim,
// so an idle profile view does not outlive its credentials.
type SessionExpiryWorker struct {
	sessions Sessions
	loop     *loop.Loop
	bus      *event.Bus
	log      logger.Logger
}

func NewSessionExpiryWorker(sessions Sessions, lp *loop.Loop, bus *event.Bus, log logger.Logger) Worker {
	return &SessionExpiryWorker{
		sessions: sessions,
		loop:     lp,
		bus:      bus,
		log:      log,
	}
}

func (w *SessionExpiryWorker) Name() string {
	return "session_expiry"
}

func (w *SessionExpiryWorker) Run(ctx context.Context) error {
	sess := w.sessions.Load(ctx)
	if sess == nil || !session.Expired(sess.Token, w.loop.Clock().Now()) {
		return nil
	}

	token := sess.Token
	w.loop.Post(func() {
		current := w.sessions.Load(context.Background())
		if current == nil || current.Token != token {
			return
		}
		if err := w.sessions.Clear(context.Background()); err != nil {
			w.log.Error("failed to clear expired session", "error", err)
			return
		}
		w.log.Info("session token expired", "email", current.User.Email)
		w.bus.Publish(event.Navigate, event.RouteLogin)
	})

	return nil
}
