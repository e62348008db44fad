package identity

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"fdss/internal/domain"
	"fdss/internal/event"
	"fdss/internal/logger"
	"fdss/internal/loop"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"golang.org/x/sync/errgroup"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 8192

	DefaultReconnectInterval = 5 * time.Second
)

var (
	errSessionEnded   = errors.New("session ended")
	errSessionChanged = errors.New("session changed")
)

type EventSessions interface {
	Load(ctx context.Context) *domain.Session
	UpdateUser(ctx context.Context, user *domain.UserProfile) (bool, error)
	Clear(ctx context.Context) error
}

// Listener keeps a websocket open to the identity service while a session
// exists and applies what the service pushes: revocations end the session,
// profile updates replace the stored user.
type Listener struct {
	url       string
	sessions  EventSessions
	loop      *loop.Loop
	bus       *event.Bus
	clientID  uuid.UUID
	log       logger.Logger
	reconnect time.Duration
	dialer    websocket.Dialer
}

type ListenerOption func(*Listener)

func WithReconnectInterval(d time.Duration) ListenerOption {
	return func(l *Listener) { l.reconnect = d }
}

func NewListener(url string, sessions EventSessions, lp *loop.Loop, bus *event.Bus, clientID uuid.UUID, log logger.Logger, opts ...ListenerOption) *Listener {
	l := &Listener{
		url:       url,
		sessions:  sessions,
		loop:      lp,
		bus:       bus,
		clientID:  clientID,
		log:       log.With("component", "identity_events"),
		reconnect: DefaultReconnectInterval,
		dialer:    websocket.Dialer{HandshakeTimeout: 5 * time.Second},
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Run blocks until ctx is done.
func (l *Listener) Run(ctx context.Context) error {
	attempt := 0

	for {
		if ctx.Err() != nil {
			l.log.Info("identity event listener stopped")
			return nil
		}

		if sess := l.sessions.Load(ctx); sess != nil {
			attempt++
			l.log.Debug("connecting to identity events", "attempt", attempt)

			err := l.listen(ctx, sess.Token)
			switch {
			case errors.Is(err, domain.ErrUnauthorized):
				l.log.Warn("identity events rejected the session token")
				l.endSession(sess.Token)
			case errors.Is(err, errSessionEnded), errors.Is(err, errSessionChanged):
				attempt = 0
			case err != nil:
				l.log.Warn("identity events connection lost, will retry", "error", err)
			}
		}

		select {
		case <-ctx.Done():
			l.log.Info("identity event listener stopped")
			return nil
		case <-time.After(l.reconnect):
		}
	}
}

func (l *Listener) listen(ctx context.Context, token string) error {
	header := make(http.Header)
	header.Set("Authorization", "Bearer "+token)
	if l.clientID != uuid.Nil {
		header.Set("X-Client-ID", l.clientID.String())
	}

	conn, res, err := l.dialer.DialContext(ctx, l.url, header)
	if err != nil {
		if res != nil && res.StatusCode == http.StatusUnauthorized {
			return domain.ErrUnauthorized
		}
		return fmt.Errorf("dial failed: %w", err)
	}
	l.log.Info("connected to identity events", "url", l.url)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error { return l.readPump(gctx, conn, token) })
	g.Go(func() error { return l.pingPump(gctx, conn, token) })

	go func() {
		<-gctx.Done()
		_ = conn.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, "shutting down"),
			time.Now().Add(writeWait),
		)
		conn.Close()
	}()

	return g.Wait()
}

func (l *Listener) readPump(ctx context.Context, conn *websocket.Conn, token string) error {
	conn.SetReadLimit(maxMessageSize)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				return nil
			}
			return err
		}

		var ev domain.IdentityEvent
		if err := json.Unmarshal(raw, &ev); err != nil {
			l.log.Error("invalid identity event received", "error", err)
			continue
		}

		switch ev.Type {
		case domain.IdentityEventSessionRevoked:
			l.log.Info("session revoked by identity service")
			l.endSession(token)
			return errSessionEnded
		case domain.IdentityEventProfileUpdated:
			var user domain.UserProfile
			if err := json.Unmarshal(ev.Payload, &user); err != nil || user.Email == "" || !user.Role.Valid() {
				l.log.Error("invalid profile payload received", "error", err)
				continue
			}
			l.applyProfile(token, &user)
		default:
			l.log.Debug("ignoring identity event", "type", ev.Type)
		}
	}
}

// pingPump keeps the connection alive and drops it once the stored session
// no longer carries token.
func (l *Listener) pingPump(ctx context.Context, conn *websocket.Conn, token string) error {
	ping := time.NewTicker(pingPeriod)
	defer ping.Stop()
	check := time.NewTicker(l.reconnect)
	defer check.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-check.C:
			if sess := l.sessions.Load(ctx); sess == nil || sess.Token != token {
				l.log.Debug("session changed, closing identity events connection")
				return errSessionChanged
			}
		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return err
			}
		}
	}
}

// endSession clears the session on the loop, unless a newer login already
// replaced token.
func (l *Listener) endSession(token string) {
	l.loop.Post(func() {
		ctx := context.Background()
		if sess := l.sessions.Load(ctx); sess == nil || sess.Token != token {
			return
		}
		if err := l.sessions.Clear(ctx); err != nil {
			l.log.Error("failed to clear revoked session", "error", err)
			return
		}
		l.bus.Publish(event.Navigate, event.RouteLogin)
	})
}

func (l *Listener) applyProfile(token string, user *domain.UserProfile) {
	l.loop.Post(func() {
		ctx := context.Background()
		if sess := l.sessions.Load(ctx); sess == nil || sess.Token != token {
			return
		}
		if _, err := l.sessions.UpdateUser(ctx, user); err != nil {
			l.log.Error("failed to store pushed profile", "error", err)
			return
		}
		l.bus.Publish(event.SessionUpdated, user)
	})
}
