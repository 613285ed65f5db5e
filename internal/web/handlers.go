// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package web

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/holomush/authportal/internal/coordinator"
	"github.com/holomush/authportal/internal/identity"
	"github.com/holomush/authportal/internal/visitor"
	"github.com/holomush/authportal/pkg/errutil"
)

// Status strings from the remote service with a friendlier rendering.
const statusVerificationLinkSent = "verification-link-sent"

// verificationLinkSentText replaces statusVerificationLinkSent on the
// verify-email page.
const verificationLinkSentText = "A new verification link has been sent to the email address you provided during registration."

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	st := stateOf(r.Context())
	routes := st.visitor.Coordinator.Routes()
	target := routes.GuestLanding
	if st.mount.Status() == identity.StatusAuthenticated {
		target = routes.Home
	}
	http.Redirect(w, r, target, http.StatusSeeOther)
}

func (s *Server) showLogin(w http.ResponseWriter, r *http.Request) {
	s.page(w, r, http.StatusOK, pageLogin, view{})
}

func (s *Server) submitLogin(w http.ResponseWriter, r *http.Request) {
	form := coordinator.LoginForm{
		Email:    r.PostFormValue(coordinator.FieldEmail),
		Password: r.PostFormValue(coordinator.FieldPassword),
		Remember: r.PostFormValue("remember") == "on",
	}
	res := stateOf(r.Context()).mount.Login(r.Context(), form)

	old := map[string]string{coordinator.FieldEmail: form.Email}
	if form.Remember {
		old["remember"] = "on"
	}
	s.finish(w, r, res, r.URL.Path, pageLogin, view{form: old})
}

func (s *Server) showRegister(w http.ResponseWriter, r *http.Request) {
	s.page(w, r, http.StatusOK, pageRegister, view{})
}

func (s *Server) submitRegister(w http.ResponseWriter, r *http.Request) {
	form := coordinator.RegisterForm{
		Name:                 r.PostFormValue(coordinator.FieldName),
		Email:                r.PostFormValue(coordinator.FieldEmail),
		Password:             r.PostFormValue(coordinator.FieldPassword),
		PasswordConfirmation: r.PostFormValue(coordinator.FieldPasswordConfirmation),
	}
	res := stateOf(r.Context()).mount.Register(r.Context(), form)

	s.finish(w, r, res, r.URL.Path, pageRegister, view{form: map[string]string{
		coordinator.FieldName:  form.Name,
		coordinator.FieldEmail: form.Email,
	}})
}

func (s *Server) showForgotPassword(w http.ResponseWriter, r *http.Request) {
	s.page(w, r, http.StatusOK, pageForgotPassword, view{})
}

func (s *Server) submitForgotPassword(w http.ResponseWriter, r *http.Request) {
	form := coordinator.ForgotPasswordForm{Email: r.PostFormValue(coordinator.FieldEmail)}
	res := stateOf(r.Context()).mount.ForgotPassword(r.Context(), form)

	s.finish(w, r, res, r.URL.Path, pageForgotPassword, view{form: map[string]string{
		coordinator.FieldEmail: form.Email,
	}})
}

func (s *Server) showResetPassword(w http.ResponseWriter, r *http.Request) {
	s.page(w, r, http.StatusOK, pageResetPassword, view{form: map[string]string{
		coordinator.FieldEmail: r.URL.Query().Get(coordinator.FieldEmail),
	}})
}

func (s *Server) submitResetPassword(w http.ResponseWriter, r *http.Request) {
	form := coordinator.ResetPasswordForm{
		Token:                chi.URLParam(r, "token"),
		Email:                r.PostFormValue(coordinator.FieldEmail),
		Password:             r.PostFormValue(coordinator.FieldPassword),
		PasswordConfirmation: r.PostFormValue(coordinator.FieldPasswordConfirmation),
	}
	res := stateOf(r.Context()).mount.ResetPassword(r.Context(), form)

	s.finish(w, r, res, r.URL.Path, pageResetPassword, view{form: map[string]string{
		coordinator.FieldEmail: form.Email,
	}})
}

func (s *Server) showVerifyEmail(w http.ResponseWriter, r *http.Request) {
	s.page(w, r, http.StatusOK, pageVerifyEmail, view{})
}

func (s *Server) submitResendVerification(w http.ResponseWriter, r *http.Request) {
	res := stateOf(r.Context()).mount.ResendVerification(r.Context())
	target := stateOf(r.Context()).visitor.Coordinator.Routes().VerifyEmail
	s.finish(w, r, res, target, pageVerifyEmail, view{})
}

func (s *Server) showDashboard(w http.ResponseWriter, r *http.Request) {
	s.page(w, r, http.StatusOK, pageDashboard, view{})
}

// submitLogout ends the remote session and forgets the visitor; the next
// request starts a new one.
func (s *Server) submitLogout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	st := stateOf(ctx)

	res := st.visitor.Coordinator.Logout(ctx)
	if err := s.registry.Forget(ctx, st.visitor); err != nil {
		errutil.LogErrorContext(ctx, s.logger, "visitor forget failed", err)
	}
	visitor.ClearCookie(w, s.cookies)
	http.Redirect(w, r, res.Redirect, http.StatusSeeOther)
}

// finish answers an action. Stale results re-enter through a GET of
// staleTarget, redirects are followed, a status message is carried to
// staleTarget and failures re-render page with the submitted input.
func (s *Server) finish(w http.ResponseWriter, r *http.Request, res coordinator.Result, staleTarget, page string, data view) {
	switch {
	case res.Stale:
		http.Redirect(w, r, staleTarget, http.StatusSeeOther)
	case res.Redirect != "":
		http.Redirect(w, r, res.Redirect, http.StatusSeeOther)
	case res.Failed():
		data.Errors = res.FieldErrors
		data.Notice = res.Notice
		s.page(w, r, http.StatusUnprocessableEntity, page, data)
	case res.Status != "":
		http.Redirect(w, r, coordinator.EncodeStatus(staleTarget, res.Status), http.StatusSeeOther)
	default:
		http.Redirect(w, r, staleTarget, http.StatusSeeOther)
	}
}

// page renders a page for the mounted visitor, consuming any flash.
func (s *Server) page(w http.ResponseWriter, r *http.Request, code int, page string, data view) {
	st := stateOf(r.Context())

	data.Path = r.URL.Path
	data.CSRFToken = st.visitor.CSRFToken()
	if st.mount != nil {
		data.Identity = st.mount.Identity()
		if data.Notice == "" {
			data.Notice = st.mount.Notice()
		}
	}
	if st.flash != "" {
		if data.Status == "" {
			data.Status = st.flash
		}
		visitor.ClearCookie(w, s.flashCookie)
	}
	if page == pageVerifyEmail && data.Status == statusVerificationLinkSent {
		data.Status = verificationLinkSentText
	}

	if err := s.templates.render(w, code, page, data); err != nil {
		errutil.LogErrorContext(r.Context(), s.logger, "page render failed", err, "page", page)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
	}
}
