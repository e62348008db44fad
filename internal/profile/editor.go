package profile

import (
	"context"
	"time"

	"fdss/internal/domain"
	"fdss/internal/event"
	"fdss/internal/logger"
	"fdss/internal/loop"
	"fdss/internal/validator"
)

const (
	DefaultMessageTTL = 3 * time.Second
	LogoutPrompt      = "Are you sure you want to logout?"
)

// Confirmer is the yes/no gate in front of logout.
type Confirmer interface {
	Confirm(prompt string) bool
}

type ConfirmFunc func(prompt string) bool

func (f ConfirmFunc) Confirm(prompt string) bool { return f(prompt) }

type Deps struct {
	Identity   domain.IdentityService
	Sessions   Sessions
	Guard      *Guard
	Loop       *loop.Loop
	Bus        *event.Bus
	Log        logger.Logger
	MessageTTL time.Duration
}

type EditorState struct {
	Mode domain.EditorMode
	User *domain.UserProfile
	Form domain.ProfileUpdate

	Loading bool
	Error   string
	Message string
}

type Editor struct {
	identity domain.IdentityService
	sessions Sessions
	guard    *Guard
	loop     *loop.Loop
	bus      *event.Bus
	log      logger.Logger
	ttl      time.Duration

	ctx    context.Context
	cancel context.CancelFunc

	state    EditorState
	epoch    uint64
	msgTimer loop.Timer
	closed   bool
}

func NewEditor(ctx context.Context, d Deps) *Editor {
	ttl := d.MessageTTL
	if ttl <= 0 {
		ttl = DefaultMessageTTL
	}

	cctx, cancel := context.WithCancel(ctx)

	return &Editor{
		identity: d.Identity,
		sessions: d.Sessions,
		guard:    d.Guard,
		loop:     d.Loop,
		bus:      d.Bus,
		log:      d.Log.With("component", "profile_editor"),
		ttl:      ttl,
		ctx:      cctx,
		cancel:   cancel,
	}
}

func (e *Editor) State() EditorState { return e.state }

// Open activates the guard and shows the stored user. It reports false when
// the view was redirected to login instead.
func (e *Editor) Open() bool {
	if e.closed {
		return false
	}

	sess, ok := e.guard.Activate(e.ctx)
	if !ok {
		return false
	}

	e.show(sess.User)
	e.publish()
	return true
}

// Refresh picks up a user written to the session by someone else. Pending
// edits are left alone.
func (e *Editor) Refresh() {
	if e.closed || e.state.User == nil || e.state.Mode != domain.ModeViewing || e.state.Loading {
		return
	}

	sess := e.guard.Check(e.ctx)
	if sess == nil {
		e.leave()
		return
	}

	e.show(sess.User)
	e.publish()
}

func (e *Editor) Edit() {
	if e.closed || e.state.User == nil || e.state.Mode != domain.ModeViewing {
		return
	}

	e.state.Mode = domain.ModeEditing
	e.state.Form = domain.FormFrom(e.state.User)
	e.state.Error = ""
	e.publish()
}

// Cancel drops the edits. A save still in flight is forgotten by the view.
func (e *Editor) Cancel() {
	if e.closed || e.state.Mode != domain.ModeEditing {
		return
	}

	e.epoch++
	e.state.Mode = domain.ModeViewing
	e.state.Form = domain.FormFrom(e.state.User)
	e.state.Loading = false
	e.state.Error = ""
	e.publish()
}

func (e *Editor) ChangeField(form domain.ProfileUpdate) {
	if e.closed || e.state.Mode != domain.ModeEditing {
		return
	}

	e.state.Form = form
	e.state.Error = ""
	e.publish()
}

func (e *Editor) Save() {
	if e.closed || e.state.Mode != domain.ModeEditing || e.state.Loading {
		return
	}

	if e.guard.Check(e.ctx) == nil {
		e.leave()
		return
	}

	form := e.state.Form
	if err := validator.ValidateProfile(form); err != nil {
		e.state.Error = err.Error()
		e.publish()
		return
	}

	e.stopMessage()
	e.state.Loading = true
	e.state.Error = ""
	e.state.Message = ""
	e.publish()

	epoch := e.epoch
	e.loop.Go(func() func() {
		user, err := e.identity.UpdateProfile(e.ctx, form)
		return func() { e.finishSave(epoch, user, err) }
	})
}

func (e *Editor) finishSave(epoch uint64, user *domain.UserProfile, err error) {
	var (
		stored  bool
		syncErr error
	)
	if err == nil {
		stored, syncErr = e.sessions.UpdateUser(context.WithoutCancel(e.ctx), user)
	}

	if e.closed || epoch != e.epoch {
		e.log.Debug("discarding stale profile update")
		return
	}

	e.state.Loading = false

	switch {
	case err != nil:
		e.log.Info("profile update failed", "error", err)
		e.state.Error = domain.UserMessage(err, domain.MsgUpdateFailed)
	case syncErr != nil:
		e.log.Error("failed to store updated user", "error", syncErr)
		e.state.Error = domain.MsgUpdateFailed
	case !stored:
		e.log.Info("session ended during profile update")
		e.leave()
		return
	default:
		e.log.Info("profile updated", "email", user.Email)
		e.show(user)
		e.state.Message = domain.MsgProfileUpdated
		var timer loop.Timer
		timer = e.loop.AfterFunc(e.ttl, func() {
			// a newer message owns msgTimer
			if e.closed || e.msgTimer != timer {
				return
			}
			e.msgTimer = nil
			e.state.Message = ""
			e.publish()
		})
		e.msgTimer = timer
	}
	e.publish()
}

// Logout clears the session after c agrees and sends the user to login.
func (e *Editor) Logout(c Confirmer) {
	if e.closed || !c.Confirm(LogoutPrompt) {
		return
	}

	if err := e.sessions.Clear(context.WithoutCancel(e.ctx)); err != nil {
		e.log.Error("failed to clear session on logout", "error", err)
		e.state.Error = domain.MsgLogoutFailed
		e.publish()
		return
	}

	e.log.Info("logged out")
	e.leave()
}

// Close tears the editor down. Late results are dropped.
func (e *Editor) Close() {
	if e.closed {
		return
	}
	e.closed = true
	e.stopMessage()
	e.cancel()
}

func (e *Editor) show(user *domain.UserProfile) {
	e.state.Mode = domain.ModeViewing
	e.state.User = user
	e.state.Form = domain.FormFrom(user)
	e.state.Error = ""
}

func (e *Editor) leave() {
	e.epoch++
	e.stopMessage()
	e.state = EditorState{}
	e.publish()
	e.bus.Publish(event.Navigate, event.RouteLogin)
}

func (e *Editor) stopMessage() {
	if e.msgTimer != nil {
		e.msgTimer.Stop()
		e.msgTimer = nil
	}
}

func (e *Editor) publish() {
	e.bus.Publish(event.ProfileChanged, e.state)
}
