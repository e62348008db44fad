package identity

import (
	"context"
	"testing"
	"time"

	"fdss/internal/domain"
	"fdss/internal/event"
	"fdss/internal/identity/identitytest"
	"fdss/internal/logger"
	"fdss/internal/loop"
	"fdss/internal/session"
	"fdss/internal/storage/memory"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type listenerHarness struct {
	srv      *identitytest.Server
	loop     *loop.Loop
	store    *session.Store
	listener *Listener
	routes   []event.Route
	updates  []*domain.UserProfile
}

func newListenerHarness(t *testing.T) *listenerHarness {
	t.Helper()

	srv := identitytest.NewServer()
	t.Cleanup(srv.Close)
	srv.AddUser("Ada", "ada@x.com", "password1", domain.RoleMember)

	ctx, cancel := context.WithCancel(context.Background())
	lp := loop.New(logger.Nop())
	loopDone := make(chan struct{})
	go func() {
		defer close(loopDone)
		_ = lp.Run(ctx)
	}()

	h := &listenerHarness{
		srv:   srv,
		loop:  lp,
		store: session.NewStore(memory.NewKV(), logger.Nop()),
	}

	bus := event.New(logger.Nop())
	bus.Subscribe(event.Navigate, func(e any) { h.routes = append(h.routes, e.(event.Route)) })
	bus.Subscribe(event.SessionUpdated, func(e any) { h.updates = append(h.updates, e.(*domain.UserProfile)) })

	h.listener = NewListener(srv.EventsURL(), h.store, lp, bus, uuid.New(), logger.Nop(),
		WithReconnectInterval(20*time.Millisecond))

	runDone := make(chan error, 1)
	go func() { runDone <- h.listener.Run(ctx) }()

	t.Cleanup(func() {
		cancel()
		select {
		case err := <-runDone:
			assert.NoError(t, err)
		case <-time.After(5 * time.Second):
			t.Error("listener did not stop")
		}
		<-loopDone
	})
	return h
}

func (h *listenerHarness) signIn(t *testing.T, token string, user *domain.UserProfile) {
	t.Helper()
	require.NoError(t, h.store.Save(context.Background(), &domain.Session{Token: token, User: user}))
}

func (h *listenerHarness) navigations() []event.Route {
	var r []event.Route
	h.loop.Do(func() { r = append(r, h.routes...) })
	return r
}

func (h *listenerHarness) pushedUsers() []*domain.UserProfile {
	var u []*domain.UserProfile
	h.loop.Do(func() { u = append(u, h.updates...) })
	return u
}

func ada() *domain.UserProfile {
	return &domain.UserProfile{FullName: "Ada", Email: "ada@x.com", Role: domain.RoleMember}
}

func TestListenerStaysIdleWithoutSession(t *testing.T) {
	h := newListenerHarness(t)

	assert.Never(t, func() bool { return len(h.srv.Requests()) > 0 }, 150*time.Millisecond, 10*time.Millisecond)
}

func TestRevocationClearsSession(t *testing.T) {
	h := newListenerHarness(t)
	h.signIn(t, h.srv.IssueToken("ada@x.com", time.Hour), ada())

	require.Eventually(t, func() bool { return h.srv.Connected("ada@x.com") == 1 }, 2*time.Second, 10*time.Millisecond)
	require.Equal(t, 1, h.srv.Revoke("ada@x.com"))

	require.Eventually(t, func() bool { return h.store.Load(context.Background()) == nil }, 2*time.Second, 10*time.Millisecond)
	assert.Eventually(t, func() bool {
		nav := h.navigations()
		return len(nav) == 1 && nav[0] == event.RouteLogin
	}, 2*time.Second, 10*time.Millisecond)
}

func TestRejectedHandshakeClearsSession(t *testing.T) {
	h := newListenerHarness(t)
	h.signIn(t, "not-a-jwt", ada())

	require.Eventually(t, func() bool { return h.store.Load(context.Background()) == nil }, 2*time.Second, 10*time.Millisecond)
	assert.Eventually(t, func() bool { return len(h.navigations()) == 1 }, 2*time.Second, 10*time.Millisecond)
	assert.Zero(t, h.srv.Connected("ada@x.com"))
}

func TestPushedProfileReplacesStoredUser(t *testing.T) {
	h := newListenerHarness(t)
	token := h.srv.IssueToken("ada@x.com", time.Hour)
	h.signIn(t, token, &domain.UserProfile{FullName: "Old Name", Email: "ada@x.com", Role: domain.RoleMember})

	require.Eventually(t, func() bool { return h.srv.Connected("ada@x.com") == 1 }, 2*time.Second, 10*time.Millisecond)
	require.Equal(t, 1, h.srv.PushProfile("ada@x.com"))

	require.Eventually(t, func() bool {
		sess := h.store.Load(context.Background())
		return sess != nil && sess.User.FullName == "Ada"
	}, 2*time.Second, 10*time.Millisecond)

	assert.Equal(t, token, h.store.Load(context.Background()).Token)
	assert.Equal(t, []*domain.UserProfile{ada()}, h.pushedUsers())
	assert.Empty(t, h.navigations())
}

func TestLogoutDropsConnection(t *testing.T) {
	h := newListenerHarness(t)
	h.signIn(t, h.srv.IssueToken("ada@x.com", time.Hour), ada())

	require.Eventually(t, func() bool { return h.srv.Connected("ada@x.com") == 1 }, 2*time.Second, 10*time.Millisecond)
	require.NoError(t, h.store.Clear(context.Background()))

	assert.Eventually(t, func() bool { return h.srv.Connected("ada@x.com") == 0 }, 2*time.Second, 10*time.Millisecond)
	assert.Empty(t, h.navigations())
}
