// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package web serves the portal's pages. Every page request is attached to
// a visitor, mounted through the visitor's coordinator and either
// redirected or rendered from embedded templates.
package web

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/holomush/authportal/internal/pagepolicy"
	"github.com/holomush/authportal/internal/visitor"
	"github.com/holomush/authportal/pkg/errutil"
)

// Observer receives page response events. The metrics layer implements it.
type Observer interface {
	ObservePageResponse(route string, code int)
}

// Options configures a Server.
type Options struct {
	Registry *visitor.Registry

	// Pages declares page modes. Nil uses pagepolicy.Default.
	Pages *pagepolicy.Table

	Cookies  visitor.CookieOptions
	Observer Observer
	Logger   *slog.Logger
}

// Server is the portal's HTTP handler.
type Server struct {
	registry    *visitor.Registry
	pages       *pagepolicy.Table
	cookies     visitor.CookieOptions
	flashCookie visitor.CookieOptions
	observer    Observer
	logger      *slog.Logger
	templates   templates
	now         func() time.Time
	router      chi.Router
}

// New builds the portal router.
func New(opts Options) (*Server, error) {
	tmpls, err := parseTemplates()
	if err != nil {
		return nil, err
	}

	s := &Server{
		registry:  opts.Registry,
		pages:     opts.Pages,
		cookies:   opts.Cookies,
		observer:  opts.Observer,
		logger:    opts.Logger,
		templates: tmpls,
		now:       time.Now,
	}
	if s.pages == nil {
		s.pages = pagepolicy.Default()
	}
	if s.cookies.Name == "" {
		s.cookies.Name = visitor.DefaultCookieName
	}
	s.flashCookie = s.cookies.Named(s.cookies.Name + "_flash")
	if s.observer == nil {
		s.observer = nopObserver{}
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}

	s.router = s.routes()
	return s, nil
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(chimw.Recoverer)
	r.Use(s.requestID)
	r.Use(s.accessLog)

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		s.renderError(w, http.StatusNotFound, "Not found", "The page you are looking for could not be found.")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		s.renderError(w, http.StatusMethodNotAllowed, "Method not allowed", "That action is not available here.")
	})

	r.Group(func(r chi.Router) {
		r.Use(s.attachVisitor, s.checkCSRF, s.consumeStatus, s.gate)

		r.Get("/", s.handleRoot)
		r.Get("/login", s.showLogin)
		r.Post("/login", s.submitLogin)
		r.Get("/register", s.showRegister)
		r.Post("/register", s.submitRegister)
		r.Get("/forgot-password", s.showForgotPassword)
		r.Post("/forgot-password", s.submitForgotPassword)
		r.Get("/password-reset/{token}", s.showResetPassword)
		r.Post("/password-reset/{token}", s.submitResetPassword)
		r.Get("/verify-email", s.showVerifyEmail)
		r.Post("/email/verification-notification", s.submitResendVerification)
		r.Get("/dashboard", s.showDashboard)
		r.Post("/logout", s.submitLogout)
	})
	return r
}

// renderError renders the error page without visitor state.
func (s *Server) renderError(w http.ResponseWriter, code int, title, message string) {
	if err := s.templates.render(w, code, pageError, view{Title: title, Message: message}); err != nil {
		errutil.LogError(s.logger, "error page render failed", err)
		http.Error(w, message, code)
	}
}

type nopObserver struct{}

func (nopObserver) ObservePageResponse(string, int) {}
