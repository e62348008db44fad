// Package flow drives the login, forgot-password and reset-password views.
// All exported methods must be called on the event loop.
package flow

import (
	"context"
	"time"

	"fdss/internal/domain"
	"fdss/internal/event"
	"fdss/internal/logger"
	"fdss/internal/loop"
	"fdss/internal/validator"
)

const DefaultRedirectDelay = 2 * time.Second

type SessionWriter interface {
	Save(ctx context.Context, sess *domain.Session) error
}

type Deps struct {
	Identity      domain.IdentityService
	Sessions      SessionWriter
	Loop          *loop.Loop
	Bus           *event.Bus
	Log           logger.Logger
	RedirectDelay time.Duration
}

type State struct {
	View domain.FlowView
	Status
}

type Controller struct {
	identity domain.IdentityService
	sessions SessionWriter
	loop     *loop.Loop
	bus      *event.Bus
	log      logger.Logger
	delay    time.Duration

	ctx    context.Context
	cancel context.CancelFunc

	state   State
	epoch   uint64
	pending loop.Timer
	closed  bool
}

func NewController(ctx context.Context, d Deps) *Controller {
	delay := d.RedirectDelay
	if delay <= 0 {
		delay = DefaultRedirectDelay
	}

	cctx, cancel := context.WithCancel(ctx)

	return &Controller{
		identity: d.Identity,
		sessions: d.Sessions,
		loop:     d.Loop,
		bus:      d.Bus,
		log:      d.Log.With("component", "auth_flow"),
		delay:    delay,
		ctx:      cctx,
		cancel:   cancel,
		state:    State{View: domain.ViewLogin},
	}
}

func (c *Controller) State() State { return c.state }

// ForgotPassword switches from the login view to the reset request view.
func (c *Controller) ForgotPassword() {
	if c.closed || c.state.View != domain.ViewLogin {
		return
	}
	c.goTo(domain.ViewForgotPassword)
}

// Back returns to the login view from either reset view.
func (c *Controller) Back() {
	if c.closed || c.state.View == domain.ViewLogin {
		return
	}
	c.goTo(domain.ViewLogin)
}

// ChangeField is called on every input event. It clears Error only.
func (c *Controller) ChangeField() {
	if c.closed || c.state.Error == "" {
		return
	}
	c.state.Error = ""
	c.publish()
}

func (c *Controller) SubmitLogin(creds domain.Credentials) {
	if !c.accepts(domain.ViewLogin) {
		return
	}
	if err := validator.ValidateLogin(creds); err != nil {
		c.reject(err)
		return
	}

	epoch := c.begin()
	c.loop.Go(func() func() {
		res, err := c.identity.Login(c.ctx, creds)
		return func() { c.finishLogin(epoch, res, err) }
	})
}

func (c *Controller) finishLogin(epoch uint64, res *domain.AuthResult, err error) {
	var saveErr error
	if err == nil {
		// The session outlives the view, so it is stored even when the
		// controller is gone by now.
		saveErr = c.sessions.Save(context.WithoutCancel(c.ctx), &domain.Session{Token: res.Token, User: res.User})
	}

	if !c.current(epoch) {
		c.log.Debug("discarding stale login result")
		return
	}

	switch {
	case err != nil:
		c.log.Info("login failed", "error", err)
		c.state.fail(domain.UserMessage(err, domain.MsgLoginFailed))
	case saveErr != nil:
		c.log.Error("failed to persist session", "error", saveErr)
		c.state.fail(domain.MsgLoginFailed)
	default:
		c.log.Info("login succeeded", "email", res.User.Email)
		c.state.Status.reset()
		c.publish()
		c.bus.Publish(event.Navigate, event.RouteProfile)
		return
	}
	c.publish()
}

func (c *Controller) SubmitForgotPassword(req domain.ResetRequest) {
	if !c.accepts(domain.ViewForgotPassword) {
		return
	}
	if err := validator.ValidateResetRequest(req); err != nil {
		c.reject(err)
		return
	}

	epoch := c.begin()
	c.loop.Go(func() func() {
		msg, err := c.identity.ForgotPassword(c.ctx, req)
		return func() {
			c.finish(epoch, err, domain.MsgResetRequestFailed, orDefault(msg, domain.MsgResetRequested), domain.ViewResetPassword)
		}
	})
}

func (c *Controller) SubmitResetPassword(req domain.ResetConfirmation) {
	if !c.accepts(domain.ViewResetPassword) {
		return
	}
	if err := validator.ValidateReset(req); err != nil {
		c.reject(err)
		return
	}

	epoch := c.begin()
	c.loop.Go(func() func() {
		msg, err := c.identity.ResetPassword(c.ctx, req)
		return func() {
			c.finish(epoch, err, domain.MsgResetConfirmFailed, orDefault(msg, domain.MsgResetConfirmed), domain.ViewLogin)
		}
	})
}

// finish settles a reset request: failure stays put, success shows the
// message and moves on after the redirect delay.
func (c *Controller) finish(epoch uint64, err error, fallback, success string, next domain.FlowView) {
	if !c.current(epoch) {
		c.log.Debug("discarding stale reset result", "view", c.state.View.String())
		return
	}

	if err != nil {
		c.log.Info("reset request failed", "view", c.state.View.String(), "error", err)
		c.state.fail(domain.UserMessage(err, fallback))
		c.publish()
		return
	}

	c.state.succeed(success)
	c.pending = c.loop.AfterFunc(c.delay, func() {
		if c.current(epoch) {
			c.goTo(next)
		}
	})
	c.publish()
}

// Close tears the controller down. Late results are dropped.
func (c *Controller) Close() {
	if c.closed {
		return
	}
	c.closed = true
	c.stopPending()
	c.cancel()
}

func (c *Controller) accepts(view domain.FlowView) bool {
	return !c.closed && c.state.View == view && !c.state.Loading
}

func (c *Controller) reject(err error) {
	c.state.fail(err.Error())
	c.publish()
}

func (c *Controller) begin() uint64 {
	c.state.start()
	c.publish()
	return c.epoch
}

func (c *Controller) current(epoch uint64) bool {
	return !c.closed && epoch == c.epoch
}

func (c *Controller) goTo(view domain.FlowView) {
	c.stopPending()
	c.epoch++
	c.state = State{View: view}
	c.publish()
}

func (c *Controller) stopPending() {
	if c.pending != nil {
		c.pending.Stop()
		c.pending = nil
	}
}

func (c *Controller) publish() {
	c.bus.Publish(event.FlowChanged, c.state)
}

func orDefault(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}
