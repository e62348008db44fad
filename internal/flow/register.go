package flow

import (
	"context"
	"errors"
	"net/http"
	"time"

	"fdss/internal/domain"
	"fdss/internal/event"
	"fdss/internal/logger"
	"fdss/internal/loop"
	"fdss/internal/validator"
)

type RegistrationState struct {
	Status
	// Done is set once the account exists; the view only waits for the
	// redirect to login after that.
	Done bool
}

type Registration struct {
	identity domain.IdentityService
	loop     *loop.Loop
	bus      *event.Bus
	log      logger.Logger
	delay    time.Duration

	ctx    context.Context
	cancel context.CancelFunc

	state   RegistrationState
	pending loop.Timer
	closed  bool
}

func NewRegistration(ctx context.Context, d Deps) *Registration {
	delay := d.RedirectDelay
	if delay <= 0 {
		delay = DefaultRedirectDelay
	}

	cctx, cancel := context.WithCancel(ctx)

	return &Registration{
		identity: d.Identity,
		loop:     d.Loop,
		bus:      d.Bus,
		log:      d.Log.With("component", "registration"),
		delay:    delay,
		ctx:      cctx,
		cancel:   cancel,
	}
}

func (r *Registration) State() RegistrationState { return r.state }

func (r *Registration) ChangeField() {
	if r.closed || r.state.Error == "" {
		return
	}
	r.state.Error = ""
	r.publish()
}

func (r *Registration) Submit(req domain.Registration) {
	if r.closed || r.state.Loading || r.state.Done {
		return
	}
	if err := validator.ValidateRegistration(req); err != nil {
		r.state.fail(err.Error())
		r.publish()
		return
	}

	r.state.start()
	r.publish()

	r.loop.Go(func() func() {
		err := r.identity.Register(r.ctx, req)
		return func() { r.finish(req.Email, err) }
	})
}

func (r *Registration) finish(email string, err error) {
	if r.closed {
		return
	}

	if err != nil {
		r.log.Info("registration failed", "error", err)
		r.state.fail(registrationMessage(err))
		r.publish()
		return
	}

	r.log.Info("account registered", "email", email)
	r.state.succeed(domain.MsgRegistered)
	r.state.Done = true
	r.pending = r.loop.AfterFunc(r.delay, func() {
		if !r.closed {
			r.bus.Publish(event.Navigate, event.RouteLogin)
		}
	})
	r.publish()
}

func (r *Registration) Close() {
	if r.closed {
		return
	}
	r.closed = true
	if r.pending != nil {
		r.pending.Stop()
	}
	r.cancel()
}

func (r *Registration) publish() {
	r.bus.Publish(event.RegistrationChanged, r.state)
}

func registrationMessage(err error) string {
	var se *domain.ServiceError
	if errors.As(err, &se) {
		if se.Detail != "" {
			return se.Detail
		}
		if se.Status == http.StatusBadRequest || se.Status == http.StatusConflict {
			return domain.MsgEmailTaken
		}
	}
	return domain.MsgRegisterFailed
}
