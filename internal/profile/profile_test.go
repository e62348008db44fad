package profile

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"fdss/internal/domain"
	"fdss/internal/event"
	"fdss/internal/logger"
	"fdss/internal/loop"
	"fdss/internal/session"
	"fdss/internal/storage/memory"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeIdentity struct {
	domain.IdentityService

	mu      sync.Mutex
	updates []domain.ProfileUpdate
	gate    chan struct{}
	update  func(domain.ProfileUpdate) (*domain.UserProfile, error)
}

func (f *fakeIdentity) UpdateProfile(_ context.Context, req domain.ProfileUpdate) (*domain.UserProfile, error) {
	f.mu.Lock()
	f.updates = append(f.updates, req)
	gate := f.gate
	f.mu.Unlock()
	if gate != nil {
		<-gate
	}
	return f.update(req)
}

func (f *fakeIdentity) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.updates)
}

type harness struct {
	loop   *loop.Loop
	clock  *loop.FakeClock
	store  *session.Store
	id     *fakeIdentity
	guard  *Guard
	editor *Editor
	routes []event.Route
}

var start = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

func newHarness(t *testing.T) *harness {
	t.Helper()
	clock := loop.NewFakeClock(start)
	return newHarnessWithClock(t, clock, clock)
}

func newHarnessWithClock(t *testing.T, clock loop.Clock, fake *loop.FakeClock) *harness {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	lp := loop.New(logger.Nop(), loop.WithClock(clock))
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = lp.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	h := &harness{
		loop:  lp,
		clock: fake,
		store: session.NewStore(memory.NewKV(), logger.Nop()),
		id:    &fakeIdentity{},
	}

	bus := event.New(logger.Nop())
	bus.Subscribe(event.Navigate, func(e any) { h.routes = append(h.routes, e.(event.Route)) })

	h.guard = NewGuard(h.store, bus, clock, logger.Nop())
	h.editor = NewEditor(ctx, Deps{
		Identity:   h.id,
		Sessions:   h.store,
		Guard:      h.guard,
		Loop:       lp,
		Bus:        bus,
		Log:        logger.Nop(),
		MessageTTL: 3 * time.Second,
	})
	return h
}

func (h *harness) do(fn func()) { h.loop.Do(fn) }

func (h *harness) state() EditorState {
	var s EditorState
	h.loop.Do(func() { s = h.editor.State() })
	return s
}

func (h *harness) navigations() []event.Route {
	var r []event.Route
	h.loop.Do(func() { r = append(r, h.routes...) })
	return r
}

func (h *harness) advance(d time.Duration) {
	h.clock.Advance(d)
	h.loop.Do(func() {})
}

func (h *harness) signIn(t *testing.T, token string) {
	t.Helper()
	require.NoError(t, h.store.Save(context.Background(), &domain.Session{Token: token, User: ada()}))
}

func (h *harness) open(t *testing.T) {
	t.Helper()
	var ok bool
	h.do(func() { ok = h.editor.Open() })
	require.True(t, ok)
}

func ada() *domain.UserProfile {
	return &domain.UserProfile{FullName: "Ada", Email: "ada@x.com", Role: domain.RoleMember}
}

func signedToken(t *testing.T, exp time.Time) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "ada@x.com",
		"exp": exp.Unix(),
	}).SignedString([]byte("secret"))
	require.NoError(t, err)
	return token
}

func TestGuardWithoutSessionRedirects(t *testing.T) {
	h := newHarness(t)

	var ok bool
	h.do(func() { ok = h.editor.Open() })

	assert.False(t, ok)
	assert.Equal(t, []event.Route{event.RouteLogin}, h.navigations())
	assert.Nil(t, h.state().User, "no profile data is exposed")
}

func TestGuardAdmitsStoredSession(t *testing.T) {
	h := newHarness(t)
	h.signIn(t, "t1")

	sess, ok := h.guard.Activate(context.Background())
	require.True(t, ok)
	assert.Equal(t, ada(), sess.User)
	assert.Empty(t, h.navigations())

	h.open(t)
	st := h.state()
	assert.Equal(t, domain.ModeViewing, st.Mode)
	assert.Equal(t, ada(), st.User)
	assert.Equal(t, domain.ProfileUpdate{FullName: "Ada", Email: "ada@x.com"}, st.Form)
}

func TestGuardTreatsExpiredTokenAsAbsent(t *testing.T) {
	h := newHarness(t)
	h.signIn(t, signedToken(t, start.Add(-time.Minute)))

	_, ok := h.guard.Activate(context.Background())

	assert.False(t, ok)
	assert.Nil(t, h.store.Load(context.Background()), "expired session is cleared")
	assert.Equal(t, []event.Route{event.RouteLogin}, h.navigations())
}

func TestGuardAcceptsUnexpiredToken(t *testing.T) {
	h := newHarness(t)
	h.signIn(t, signedToken(t, start.Add(time.Hour)))

	assert.NotNil(t, h.guard.Check(context.Background()))
}

func TestEditThenCancelRestoresForm(t *testing.T) {
	h := newHarness(t)
	h.signIn(t, "t1")
	h.open(t)

	h.do(h.editor.Edit)
	require.Equal(t, domain.ModeEditing, h.state().Mode)

	h.do(func() { h.editor.ChangeField(domain.ProfileUpdate{FullName: "", Email: "ada@x.com"}) })
	h.do(h.editor.Save)
	require.Equal(t, domain.ErrMissingFields.Message, h.state().Error)
	assert.Zero(t, h.id.calls())

	h.do(h.editor.Cancel)

	st := h.state()
	assert.Equal(t, domain.ModeViewing, st.Mode)
	assert.Equal(t, domain.FormFrom(ada()), st.Form)
	assert.Empty(t, st.Error)
}

func TestSaveUpdatesSessionAndClearsMessage(t *testing.T) {
	h := newHarness(t)
	h.signIn(t, "t1")
	h.open(t)
	updated := &domain.UserProfile{FullName: "Ada L", Email: "ada@l.com", Role: domain.RoleMember}
	h.id.update = func(domain.ProfileUpdate) (*domain.UserProfile, error) { return updated, nil }

	h.do(h.editor.Edit)
	h.do(func() { h.editor.ChangeField(domain.ProfileUpdate{FullName: "Ada L", Email: "ada@l.com"}) })
	h.do(h.editor.Save)
	assert.True(t, h.state().Loading)
	h.loop.Drain()

	st := h.state()
	assert.Equal(t, domain.ModeViewing, st.Mode)
	assert.Equal(t, updated, st.User)
	assert.Equal(t, domain.MsgProfileUpdated, st.Message)
	assert.False(t, st.Loading)
	assert.Equal(t, &domain.Session{Token: "t1", User: updated}, h.store.Load(context.Background()))

	h.advance(2999 * time.Millisecond)
	assert.Equal(t, domain.MsgProfileUpdated, h.state().Message)
	h.advance(time.Millisecond)
	assert.Empty(t, h.state().Message)
}

// heldClock fires timers on Advance but holds their callbacks until
// release, so a timer can count as fired while its work is not yet queued.
type heldClock struct {
	*loop.FakeClock

	mu   sync.Mutex
	held []func()
}

func (c *heldClock) AfterFunc(d time.Duration, f func()) loop.Timer {
	return c.FakeClock.AfterFunc(d, func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		c.held = append(c.held, f)
	})
}

func (c *heldClock) release() {
	c.mu.Lock()
	held := c.held
	c.held = nil
	c.mu.Unlock()
	for _, f := range held {
		f()
	}
}

func TestStaleMessageTimerKeepsNewerMessage(t *testing.T) {
	clock := &heldClock{FakeClock: loop.NewFakeClock(start)}
	h := newHarnessWithClock(t, clock, clock.FakeClock)
	h.signIn(t, "t1")
	h.open(t)
	h.id.update = func(req domain.ProfileUpdate) (*domain.UserProfile, error) {
		return &domain.UserProfile{FullName: req.FullName, Email: req.Email, Role: domain.RoleMember}, nil
	}

	save := func(name string) {
		h.do(h.editor.Edit)
		h.do(func() { h.editor.ChangeField(domain.ProfileUpdate{FullName: name, Email: "ada@l.com"}) })
		h.do(h.editor.Save)
		h.loop.Drain()
		require.Equal(t, domain.MsgProfileUpdated, h.state().Message)
	}

	save("Ada L")
	h.advance(3 * time.Second)
	assert.Equal(t, domain.MsgProfileUpdated, h.state().Message, "callback held back")

	save("Ada Lovelace")
	clock.release()
	h.do(func() {})
	assert.Equal(t, domain.MsgProfileUpdated, h.state().Message, "first timer must not clear the second message")

	h.advance(3 * time.Second)
	clock.release()
	h.do(func() {})
	assert.Empty(t, h.state().Message)
}

func TestSaveFailureStaysEditing(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"detail", &domain.ServiceError{Status: http.StatusBadRequest, Detail: "Email already in use"}, "Email already in use"},
		{"no detail", &domain.ServiceError{Status: http.StatusInternalServerError}, domain.MsgUpdateFailed},
		{"transport", domain.ErrTransport, domain.MsgUpdateFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			h.signIn(t, "t1")
			h.open(t)
			h.id.update = func(domain.ProfileUpdate) (*domain.UserProfile, error) { return nil, tt.err }

			h.do(h.editor.Edit)
			h.do(func() { h.editor.ChangeField(domain.ProfileUpdate{FullName: "B", Email: "b@x.com"}) })
			h.do(h.editor.Save)
			h.loop.Drain()

			st := h.state()
			assert.Equal(t, domain.ModeEditing, st.Mode)
			assert.Equal(t, tt.want, st.Error)
			assert.Equal(t, domain.ProfileUpdate{FullName: "B", Email: "b@x.com"}, st.Form)
			assert.Equal(t, &domain.Session{Token: "t1", User: ada()}, h.store.Load(context.Background()))
		})
	}
}

func TestSaveWithoutSessionRedirects(t *testing.T) {
	h := newHarness(t)
	h.signIn(t, "t1")
	h.open(t)
	h.do(h.editor.Edit)

	require.NoError(t, h.store.Clear(context.Background()))
	h.do(h.editor.Save)

	assert.Zero(t, h.id.calls())
	assert.Equal(t, []event.Route{event.RouteLogin}, h.navigations())
}

func TestSaveIgnoredWhileLoading(t *testing.T) {
	h := newHarness(t)
	h.signIn(t, "t1")
	h.open(t)
	h.id.update = func(domain.ProfileUpdate) (*domain.UserProfile, error) { return ada(), nil }
	h.id.gate = make(chan struct{})

	h.do(h.editor.Edit)
	h.do(h.editor.Save)
	h.do(h.editor.Save)
	close(h.id.gate)
	h.loop.Drain()

	assert.Equal(t, 1, h.id.calls())
}

func TestCloseDiscardsResultButKeepsSessionWrite(t *testing.T) {
	h := newHarness(t)
	h.signIn(t, "t1")
	h.open(t)
	updated := &domain.UserProfile{FullName: "New", Email: "ada@x.com", Role: domain.RoleMember}
	h.id.update = func(domain.ProfileUpdate) (*domain.UserProfile, error) { return updated, nil }
	h.id.gate = make(chan struct{})

	h.do(h.editor.Edit)
	h.do(h.editor.Save)
	h.do(h.editor.Close)
	close(h.id.gate)
	h.loop.Drain()

	st := h.state()
	assert.Equal(t, domain.ModeEditing, st.Mode)
	assert.Empty(t, st.Message)
	assert.Equal(t, updated, h.store.Load(context.Background()).User)
	assert.Zero(t, h.clock.Pending())
}

func TestUpdateAfterLogoutDoesNotResurrectSession(t *testing.T) {
	h := newHarness(t)
	h.signIn(t, "t1")
	h.open(t)
	h.id.update = func(domain.ProfileUpdate) (*domain.UserProfile, error) { return ada(), nil }
	h.id.gate = make(chan struct{})

	h.do(h.editor.Edit)
	h.do(h.editor.Save)
	require.NoError(t, h.store.Clear(context.Background()))
	close(h.id.gate)
	h.loop.Drain()

	assert.Nil(t, h.store.Load(context.Background()))
	assert.Equal(t, []event.Route{event.RouteLogin}, h.navigations())
}

func TestLogoutRequiresConfirmation(t *testing.T) {
	h := newHarness(t)
	h.signIn(t, "t1")
	h.open(t)

	var prompt string
	h.do(func() {
		h.editor.Logout(ConfirmFunc(func(p string) bool {
			prompt = p
			return false
		}))
	})

	assert.Equal(t, LogoutPrompt, prompt)
	assert.NotNil(t, h.store.Load(context.Background()))
	assert.Empty(t, h.navigations())

	h.do(func() { h.editor.Logout(ConfirmFunc(func(string) bool { return true })) })

	assert.Nil(t, h.store.Load(context.Background()))
	assert.Equal(t, []event.Route{event.RouteLogin}, h.navigations())
}

type failingClear struct {
	*session.Store
}

func (failingClear) Clear(context.Context) error { return errors.New("read-only") }

func TestLogoutClearFailureStays(t *testing.T) {
	h := newHarness(t)
	h.signIn(t, "t1")
	h.editor.sessions = failingClear{h.store}
	h.open(t)

	h.do(func() { h.editor.Logout(ConfirmFunc(func(string) bool { return true })) })

	assert.Equal(t, domain.MsgLogoutFailed, h.state().Error)
	assert.Empty(t, h.navigations())
}

func TestRefreshPicksUpPushedUser(t *testing.T) {
	h := newHarness(t)
	h.signIn(t, "t1")
	h.open(t)

	pushed := &domain.UserProfile{FullName: "Pushed", Email: "ada@x.com", Role: domain.RoleManager}
	_, err := h.store.UpdateUser(context.Background(), pushed)
	require.NoError(t, err)

	h.do(h.editor.Refresh)
	assert.Equal(t, pushed, h.state().User)

	require.NoError(t, h.store.Clear(context.Background()))
	h.do(h.editor.Refresh)
	assert.Equal(t, []event.Route{event.RouteLogin}, h.navigations())
}
