// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package web

import (
	"context"
	"encoding/base64"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/oklog/ulid/v2"

	"github.com/holomush/authportal/internal/coordinator"
	"github.com/holomush/authportal/internal/logging"
	"github.com/holomush/authportal/internal/visitor"
	"github.com/holomush/authportal/pkg/errutil"
)

// RequestIDHeader carries the request id on responses.
const RequestIDHeader = "X-Request-Id"

// csrfField is the form field holding the visitor's portal CSRF token.
const (
	csrfField  = "_token"
	csrfHeader = "X-CSRF-Token"
)

// statusPageExpired is answered when a form's CSRF token does not match.
const statusPageExpired = 419

// flashTTL bounds how long an unread status message survives.
const flashTTL = 5 * time.Minute

// requestID assigns every request a ulid and adds it to log records.
func (s *Server) requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := ulid.Make().String()
		w.Header().Set(RequestIDHeader, id)

		ctx := context.WithValue(r.Context(), requestIDKey{}, id)
		ctx = logging.WithAttrs(ctx, slog.String("request_id", id))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// accessLog logs each response and records it by route pattern.
func (s *Server) accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := s.now()
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		route := "unmatched"
		if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
			route = rc.RoutePattern()
		}
		s.observer.ObservePageResponse(route, status)
		s.logger.InfoContext(r.Context(), "request",
			"method", r.Method,
			"path", r.URL.Path,
			"route", route,
			"status", status,
			"bytes", ww.BytesWritten(),
			"duration", s.now().Sub(start))
	})
}

// attachVisitor resolves the visitor for the portal cookie, refreshes the
// cookie and persists the visitor's jar once the handler is done. The save
// is skipped by the registry once the visitor has logged out.
func (s *Server) attachVisitor(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		raw := visitor.ReadCookie(r, s.cookies)
		v, issued, err := s.registry.Attach(ctx, raw)
		if err != nil {
			errutil.LogErrorContext(ctx, s.logger, "visitor attach failed", err)
			s.renderError(w, http.StatusInternalServerError, "Something went wrong",
				"We couldn't start your session. Please try again.")
			return
		}

		value := raw
		if issued != "" {
			value = issued
		}
		visitor.SetCookie(w, value, s.now().Add(s.registry.IdleTTL()), s.cookies)

		st := &requestState{visitor: v}
		ctx = logging.WithAttrs(ctx, slog.String("visitor_id", v.ID.String()))
		ctx = withState(ctx, st)
		next.ServeHTTP(w, r.WithContext(ctx))

		if err := s.registry.Save(ctx, v); err != nil {
			errutil.LogErrorContext(ctx, s.logger, "visitor save failed", err)
		}
	})
}

// checkCSRF rejects unsafe requests that do not echo the visitor's token.
func (s *Server) checkCSRF(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet, http.MethodHead, http.MethodOptions:
			next.ServeHTTP(w, r)
			return
		}

		v := stateOf(r.Context()).visitor
		token := r.PostFormValue(csrfField)
		if token == "" {
			token = r.Header.Get(csrfHeader)
		}
		if v == nil || !v.CheckCSRF(token) {
			s.logger.WarnContext(r.Context(), "portal csrf token mismatch", "path", r.URL.Path)
			s.renderError(w, statusPageExpired, "Page expired",
				"This page has expired. Go back, reload and try again.")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// consumeStatus moves a status message out of the URL into the flash
// cookie, then reads a pending flash for the page about to render.
func (s *Server) consumeStatus(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			next.ServeHTTP(w, r)
			return
		}

		if msg, clean, found := coordinator.DecodeStatus(r.URL.RequestURI()); found {
			if msg != "" {
				visitor.SetCookie(w, base64.RawURLEncoding.EncodeToString([]byte(msg)),
					s.now().Add(flashTTL), s.flashCookie)
			}
			http.Redirect(w, r, clean, http.StatusSeeOther)
			return
		}

		if raw := visitor.ReadCookie(r, s.flashCookie); raw != "" {
			if b, err := base64.RawURLEncoding.DecodeString(raw); err == nil {
				stateOf(r.Context()).flash = string(b)
			}
		}
		next.ServeHTTP(w, r)
	})
}

// gate mounts the requested page for the visitor and follows the
// coordinator's redirect, if any.
func (s *Server) gate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		st := stateOf(r.Context())
		page := s.pages.Lookup(r.URL.Path)

		m, action := st.visitor.Coordinator.Mount(r.Context(), page)
		if action.IsRedirect() {
			http.Redirect(w, r, action.Target, http.StatusSeeOther)
			return
		}
		st.mount = m
		next.ServeHTTP(w, r)
	})
}
