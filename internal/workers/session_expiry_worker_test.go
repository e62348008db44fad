package workers

import (
	"context"
	"sync/atomic"
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

var now = time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

func startLoop(t *testing.T) *loop.Loop {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	lp := loop.New(logger.Nop(), loop.WithClock(loop.NewFakeClock(now)))
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = lp.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return lp
}

func tokenExpiringAt(t *testing.T, exp time.Time) string {
	t.Helper()
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "u@x.com",
		"exp": exp.Unix(),
	}).SignedString([]byte("secret"))
	require.NoError(t, err)
	return signed
}

func TestSessionExpiryWorker(t *testing.T) {
	tests := []struct {
		name     string
		token    func(t *testing.T) string
		wantGone bool
	}{
		{"expired", func(t *testing.T) string { return tokenExpiringAt(t, now.Add(-time.Second)) }, true},
		{"valid", func(t *testing.T) string { return tokenExpiringAt(t, now.Add(time.Hour)) }, false},
		{"opaque", func(*testing.T) string { return "opaque" }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			lp := startLoop(t)
			store := session.NewStore(memory.NewKV(), logger.Nop())
			require.NoError(t, store.Save(ctx, &domain.Session{
				Token: tt.token(t),
				User:  &domain.UserProfile{FullName: "A", Email: "u@x.com", Role: domain.RoleMember},
			}))

			var routes []event.Route
			bus := event.New(logger.Nop())
			bus.Subscribe(event.Navigate, func(e any) { routes = append(routes, e.(event.Route)) })

			w := NewSessionExpiryWorker(store, lp, bus, logger.Nop())
			assert.Equal(t, "session_expiry", w.Name())
			require.NoError(t, w.Run(ctx))

			var got []event.Route
			lp.Do(func() { got = append(got, routes...) })

			if tt.wantGone {
				assert.Nil(t, store.Load(ctx))
				assert.Equal(t, []event.Route{event.RouteLogin}, got)
			} else {
				assert.NotNil(t, store.Load(ctx))
				assert.Empty(t, got)
			}
		})
	}
}

func TestSessionExpiryWorkerWithoutSession(t *testing.T) {
	lp := startLoop(t)
	w := NewSessionExpiryWorker(session.NewStore(memory.NewKV(), logger.Nop()), lp, event.New(logger.Nop()), logger.Nop())

	assert.NoError(t, w.Run(context.Background()))
}

type countingWorker struct {
	runs atomic.Int32
}

func (w *countingWorker) Name() string { return "counting" }

func (w *countingWorker) Run(context.Context) error {
	w.runs.Add(1)
	return nil
}

func TestRunByDurationStopsWithContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	w := &countingWorker{}

	NewScheduler(logger.Nop()).RunByDuration(ctx, 5*time.Millisecond, w)

	require.Eventually(t, func() bool { return w.runs.Load() >= 2 }, time.Second, time.Millisecond)
	cancel()

	time.Sleep(20 * time.Millisecond)
	stopped := w.runs.Load()
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, stopped, w.runs.Load())
}
