package main

import (
	"context"
	"fmt"
	"io"
	"strings"

	"fdss/internal/config"
	"fdss/internal/domain"
	"fdss/internal/event"
	"fdss/internal/flow"
	"fdss/internal/logger"
	"fdss/internal/loop"
	"fdss/internal/profile"
	"fdss/internal/session"
)

// app owns the active view. Every method runs on the loop.
type app struct {
	ctx      context.Context
	cfg      *config.Config
	log      logger.Logger
	loop     *loop.Loop
	bus      *event.Bus
	store    *session.Store
	identity domain.IdentityService
	guard    *profile.Guard
	out      io.Writer

	route  event.Route
	flow   *flow.Controller
	reg    *flow.Registration
	editor *profile.Editor
}

func (a *app) subscribe() {
	a.bus.Subscribe(event.Navigate, func(e any) { a.navigate(e.(event.Route)) })
	a.bus.Subscribe(event.FlowChanged, func(e any) { a.renderFlow(e.(flow.State)) })
	a.bus.Subscribe(event.RegistrationChanged, func(e any) { a.renderRegistration(e.(flow.RegistrationState)) })
	a.bus.Subscribe(event.ProfileChanged, func(e any) { a.renderProfile(e.(profile.EditorState)) })
	a.bus.Subscribe(event.SessionUpdated, func(any) {
		if a.editor != nil {
			a.editor.Refresh()
		}
	})
}

func (a *app) flowDeps() flow.Deps {
	return flow.Deps{
		Identity:      a.identity,
		Sessions:      a.store,
		Loop:          a.loop,
		Bus:           a.bus,
		Log:           a.log,
		RedirectDelay: a.cfg.RedirectDelay,
	}
}

// navigate tears down the current view and builds the next one.
func (a *app) navigate(route event.Route) {
	a.closeView()
	a.route = route
	a.log.Debug("navigating", "route", string(route))

	switch route {
	case event.RouteLogin:
		a.flow = flow.NewController(a.ctx, a.flowDeps())
		a.renderFlow(a.flow.State())
	case event.RouteRegister:
		a.reg = flow.NewRegistration(a.ctx, a.flowDeps())
		a.renderRegistration(a.reg.State())
	case event.RouteProfile:
		a.editor = profile.NewEditor(a.ctx, profile.Deps{
			Identity:   a.identity,
			Sessions:   a.store,
			Guard:      a.guard,
			Loop:       a.loop,
			Bus:        a.bus,
			Log:        a.log,
			MessageTTL: a.cfg.ProfileMessageTTL,
		})
		a.editor.Open()
	}
}

func (a *app) closeView() {
	if a.flow != nil {
		a.flow.Close()
		a.flow = nil
	}
	if a.reg != nil {
		a.reg.Close()
		a.reg = nil
	}
	if a.editor != nil {
		a.editor.Close()
		a.editor = nil
	}
}

// handle runs one parsed command line against the active view.
func (a *app) handle(cmd string, args []string) {
	switch {
	case cmd == "register" && a.reg == nil:
		a.navigate(event.RouteRegister)
		return
	case cmd == "signin" && a.flow == nil:
		a.navigate(event.RouteLogin)
		return
	}

	switch {
	case a.flow != nil:
		a.handleFlow(cmd, args)
	case a.reg != nil:
		a.handleRegistration(cmd, args)
	case a.editor != nil:
		a.handleProfile(cmd, args)
	}
}

func (a *app) handleFlow(cmd string, args []string) {
	a.flow.ChangeField()

	switch cmd {
	case "login":
		a.flow.SubmitLogin(domain.Credentials{Email: arg(args, 0), Password: arg(args, 1)})
	case "forgot":
		a.flow.ForgotPassword()
	case "back":
		a.flow.Back()
	case "request":
		a.flow.SubmitForgotPassword(domain.ResetRequest{Email: arg(args, 0)})
	case "reset":
		a.flow.SubmitResetPassword(domain.ResetConfirmation{Token: arg(args, 0), NewPassword: arg(args, 1)})
	default:
		a.unknown(cmd)
	}
}

func (a *app) handleRegistration(cmd string, args []string) {
	a.reg.ChangeField()

	switch cmd {
	case "create":
		a.reg.Submit(domain.Registration{
			Email:           arg(args, 0),
			Password:        arg(args, 1),
			ConfirmPassword: arg(args, 2),
			FullName:        strings.Join(rest(args, 3), " "),
			Role:            domain.RoleMember,
		})
	default:
		a.unknown(cmd)
	}
}

func (a *app) handleProfile(cmd string, args []string) {
	form := a.editor.State().Form

	switch cmd {
	case "edit":
		a.editor.Edit()
	case "name":
		form.FullName = strings.Join(args, " ")
		a.editor.ChangeField(form)
	case "email":
		form.Email = arg(args, 0)
		a.editor.ChangeField(form)
	case "save":
		a.editor.Save()
	case "cancel":
		a.editor.Cancel()
	default:
		a.unknown(cmd)
	}
}

func (a *app) logout(confirmed bool) {
	if a.editor == nil {
		a.unknown("logout")
		return
	}
	a.editor.Logout(profile.ConfirmFunc(func(string) bool { return confirmed }))
}

func (a *app) unknown(cmd string) {
	fmt.Fprintf(a.out, "unknown command %q on %s view, try help\n", cmd, a.route)
}

func (a *app) renderFlow(st flow.State) {
	fmt.Fprintf(a.out, "[%s]%s\n", st.View, status(st.Loading, st.Error, st.Message))
}

func (a *app) renderRegistration(st flow.RegistrationState) {
	fmt.Fprintf(a.out, "[register]%s\n", status(st.Loading, st.Error, st.Message))
}

func (a *app) renderProfile(st profile.EditorState) {
	if st.User == nil {
		return
	}
	fmt.Fprintf(a.out, "[profile %s] %s <%s> %s%s\n", st.Mode, st.User.FullName, st.User.Email, st.User.Role, status(st.Loading, st.Error, st.Message))
	if st.Mode == domain.ModeEditing {
		fmt.Fprintf(a.out, "  form: name=%q email=%q\n", st.Form.FullName, st.Form.Email)
	}
}

func status(loading bool, errMsg, msg string) string {
	switch {
	case loading:
		return " loading..."
	case errMsg != "":
		return " error: " + errMsg
	case msg != "":
		return " " + msg
	}
	return ""
}

func arg(args []string, i int) string {
	if i < len(args) {
		return args[i]
	}
	return ""
}

func rest(args []string, i int) []string {
	if i < len(args) {
		return args[i:]
	}
	return nil
}

const help = `login view:     login <email> <password> | forgot | register
forgot view:    request <email> | back
reset view:     reset <token> <new-password> | back
register view:  create <email> <password> <confirm> <full name> | signin
profile view:   edit | name <full name> | email <email> | save | cancel | logout
anywhere:       help | quit
`
