package event

import (
	"testing"

	"fdss/internal/logger"

	"github.com/stretchr/testify/assert"
)

func TestPublishReachesSubscribersInOrder(t *testing.T) {
	bus := New(logger.Nop())

	var got []string
	bus.Subscribe(Navigate, func(e any) { got = append(got, "a:"+string(e.(Route))) })
	bus.Subscribe(Navigate, func(e any) { got = append(got, "b:"+string(e.(Route))) })
	bus.Subscribe(FlowChanged, func(any) { got = append(got, "flow") })

	bus.Publish(Navigate, RouteProfile)

	assert.Equal(t, []string{"a:profile", "b:profile"}, got)
}

func TestPanickingHandlerDoesNotStopOthers(t *testing.T) {
	bus := New(logger.Nop())

	called := false
	bus.Subscribe(Navigate, func(any) { panic("boom") })
	bus.Subscribe(Navigate, func(any) { called = true })

	assert.NotPanics(t, func() { bus.Publish(Navigate, RouteLogin) })
	assert.True(t, called)
}

func TestPublishWithoutSubscribers(t *testing.T) {
	bus := New(logger.Nop())
	assert.NotPanics(t, func() { bus.Publish(ProfileChanged, nil) })
}
