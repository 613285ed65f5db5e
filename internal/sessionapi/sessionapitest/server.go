// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package sessionapitest provides an in-process fake of the remote session
// service for tests. It keeps users, sessions and reset tokens in memory and
// speaks the same JSON contract as the real service.
package sessionapitest

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"time"

	"github.com/asaskevich/govalidator"
)

// Cookie names used by the fake.
const (
	SessionCookie = "portal_remote_session"
	XSRFCookie    = "XSRF-TOKEN"
)

// Status strings returned by the fake.
const (
	StatusResetLinkSent        = "We have emailed your password reset link."
	StatusPasswordReset        = "Your password has been reset."
	StatusVerificationLinkSent = "verification-link-sent"
)

// User is an account known to the fake.
type User struct {
	ID       int64
	Name     string
	Email    string
	Password string
	Verified bool
}

type session struct {
	userID int64
	csrf   string
}

// Server is a fake remote session service.
type Server struct {
	*httptest.Server

	mu          sync.Mutex
	users       map[string]*User
	sessions    map[string]*session
	resetTokens map[string]string
	nextID      int64
	calls       map[string]int
	forced      map[string][]int
	gates       map[string]chan struct{}
	withhold    bool
}

// New starts a fake server. Call Close when done.
func New() *Server {
	s := &Server{
		users:       make(map[string]*User),
		sessions:    make(map[string]*session),
		resetTokens: make(map[string]string),
		calls:       make(map[string]int),
		forced:      make(map[string][]int),
		gates:       make(map[string]chan struct{}),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /sanctum/csrf-cookie", s.handleCSRF)
	mux.HandleFunc("GET /api/user", s.handleUser)
	mux.HandleFunc("POST /login", s.guard(s.handleLogin))
	mux.HandleFunc("POST /logout", s.guard(s.handleLogout))
	mux.HandleFunc("POST /register", s.guard(s.handleRegister))
	mux.HandleFunc("POST /forgot-password", s.guard(s.handleForgot))
	mux.HandleFunc("POST /reset-password", s.guard(s.handleReset))
	mux.HandleFunc("POST /email/verification-notification", s.guard(s.handleResend))

	s.Server = httptest.NewServer(s.intercept(mux))
	return s
}

// AddUser registers an account and returns its id.
func (s *Server) AddUser(u User) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	u.ID = s.nextID
	s.users[strings.ToLower(u.Email)] = &u
	return u.ID
}

// VerifyEmail marks the account as verified.
func (s *Server) VerifyEmail(email string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u, ok := s.users[strings.ToLower(email)]; ok {
		u.Verified = true
	}
}

// IssueResetToken creates a password reset token for email.
func (s *Server) IssueResetToken(email string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	token := randomHex()
	s.resetTokens[token] = strings.ToLower(email)
	return token
}

// ExpireSessions drops every remote session, as if they all timed out.
func (s *Server) ExpireSessions() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions = make(map[string]*session)
}

// WithholdUnverified makes GET /api/user answer 409 for unverified users.
func (s *Server) WithholdUnverified(on bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.withhold = on
}

// FailNext makes the next request to path answer with status.
// Repeated calls queue further statuses.
func (s *Server) FailNext(path string, status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.forced[path] = append(s.forced[path], status)
}

// Hold makes requests to path wait until the returned release func runs.
func (s *Server) Hold(path string) (release func()) {
	ch := make(chan struct{})
	s.mu.Lock()
	s.gates[path] = ch
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			if s.gates[path] == ch {
				delete(s.gates, path)
			}
			s.mu.Unlock()
			close(ch)
		})
	}
}

// Calls returns how many requests reached path.
func (s *Server) Calls(path string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[path]
}

// intercept counts calls, applies holds and forced statuses.
func (s *Server) intercept(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := r.URL.Path

		s.mu.Lock()
		s.calls[path]++
		gate := s.gates[path]
		s.mu.Unlock()

		if gate != nil {
			select {
			case <-gate:
			case <-r.Context().Done():
				return
			case <-time.After(30 * time.Second):
			}
		}

		s.mu.Lock()
		var forced int
		if q := s.forced[path]; len(q) > 0 {
			forced = q[0]
			s.forced[path] = q[1:]
		}
		s.mu.Unlock()

		if forced != 0 {
			writeJSON(w, forced, map[string]any{"message": http.StatusText(forced)})
			return
		}
		next.ServeHTTP(w, r)
	})
}

// current returns the request's session, creating one when create is set.
// Callers hold s.mu.
func (s *Server) current(w http.ResponseWriter, r *http.Request, create bool) *session {
	if c, err := r.Cookie(SessionCookie); err == nil {
		if sess, ok := s.sessions[c.Value]; ok {
			return sess
		}
	}
	if !create {
		return nil
	}
	id := randomHex()
	sess := &session{}
	s.sessions[id] = sess
	http.SetCookie(w, &http.Cookie{Name: SessionCookie, Value: id, Path: "/", HttpOnly: true})
	return sess
}

func (s *Server) rotateCSRF(w http.ResponseWriter, sess *session) {
	sess.csrf = randomHex()
	http.SetCookie(w, &http.Cookie{Name: XSRFCookie, Value: sess.csrf, Path: "/"})
}

func (s *Server) userByID(id int64) *User {
	for _, u := range s.users {
		if u.ID == id {
			return u
		}
	}
	return nil
}

func (s *Server) handleCSRF(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rotateCSRF(w, s.current(w, r, true))
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleUser(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess := s.current(w, r, false)
	if sess == nil || sess.userID == 0 {
		writeJSON(w, http.StatusUnauthorized, map[string]any{"message": "Unauthenticated."})
		return
	}
	u := s.userByID(sess.userID)
	if u == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]any{"message": "Unauthenticated."})
		return
	}
	if s.withhold && !u.Verified {
		writeJSON(w, http.StatusConflict, map[string]any{"message": "Your email address is not verified."})
		return
	}
	body := map[string]any{"id": u.ID, "name": u.Name, "email": u.Email, "email_verified_at": nil}
	if u.Verified {
		body["email_verified_at"] = "2026-01-01T00:00:00.000000Z"
	}
	writeJSON(w, http.StatusOK, body)
}

type sessionHandler func(w http.ResponseWriter, r *http.Request, sess *session)

// guard enforces the XSRF header on state-changing requests and runs h with
// s.mu held.
func (s *Server) guard(h sessionHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		defer s.mu.Unlock()
		sess := s.current(w, r, false)
		if sess == nil || sess.csrf == "" || r.Header.Get("X-XSRF-TOKEN") != sess.csrf {
			writeJSON(w, 419, map[string]any{"message": "CSRF token mismatch."})
			return
		}
		h(w, r, sess)
	}
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request, sess *session) {
	var in struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	_ = json.NewDecoder(r.Body).Decode(&in) //nolint:errcheck // empty payload validates as missing fields

	errs := fieldErrors{}
	errs.require("email", in.Email)
	errs.require("password", in.Password)
	if len(errs) > 0 {
		writeValidation(w, errs)
		return
	}

	u, ok := s.users[strings.ToLower(in.Email)]
	if !ok || u.Password != in.Password {
		writeValidation(w, fieldErrors{"email": {"These credentials do not match our records."}})
		return
	}
	sess.userID = u.ID
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleLogout(w http.ResponseWriter, _ *http.Request, sess *session) {
	sess.userID = 0
	s.rotateCSRF(w, sess)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request, sess *session) {
	var in struct {
		Name                 string `json:"name"`
		Email                string `json:"email"`
		Password             string `json:"password"`
		PasswordConfirmation string `json:"password_confirmation"`
	}
	_ = json.NewDecoder(r.Body).Decode(&in) //nolint:errcheck // empty payload validates as missing fields

	errs := fieldErrors{}
	errs.require("name", in.Name)
	errs.email("email", in.Email)
	if _, taken := s.users[strings.ToLower(in.Email)]; taken {
		errs.add("email", "The email has already been taken.")
	}
	errs.password(in.Password, in.PasswordConfirmation)
	if len(errs) > 0 {
		writeValidation(w, errs)
		return
	}

	s.nextID++
	u := &User{ID: s.nextID, Name: in.Name, Email: in.Email, Password: in.Password}
	s.users[strings.ToLower(in.Email)] = u
	sess.userID = u.ID
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleForgot(w http.ResponseWriter, r *http.Request, _ *session) {
	var in struct {
		Email string `json:"email"`
	}
	_ = json.NewDecoder(r.Body).Decode(&in) //nolint:errcheck // empty payload validates as missing fields

	errs := fieldErrors{}
	errs.email("email", in.Email)
	if len(errs) == 0 {
		if _, ok := s.users[strings.ToLower(in.Email)]; !ok {
			errs.add("email", "We can't find a user with that email address.")
		}
	}
	if len(errs) > 0 {
		writeValidation(w, errs)
		return
	}
	s.resetTokens[randomHex()] = strings.ToLower(in.Email)
	writeJSON(w, http.StatusOK, map[string]any{"status": StatusResetLinkSent})
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request, _ *session) {
	var in struct {
		Token                string `json:"token"`
		Email                string `json:"email"`
		Password             string `json:"password"`
		PasswordConfirmation string `json:"password_confirmation"`
	}
	_ = json.NewDecoder(r.Body).Decode(&in) //nolint:errcheck // empty payload validates as missing fields

	errs := fieldErrors{}
	errs.email("email", in.Email)
	errs.password(in.Password, in.PasswordConfirmation)
	if len(errs) > 0 {
		writeValidation(w, errs)
		return
	}

	owner, ok := s.resetTokens[in.Token]
	if !ok || owner != strings.ToLower(in.Email) {
		writeValidation(w, fieldErrors{"email": {"This password reset token is invalid."}})
		return
	}
	delete(s.resetTokens, in.Token)
	s.users[owner].Password = in.Password
	writeJSON(w, http.StatusOK, map[string]any{"status": StatusPasswordReset})
}

func (s *Server) handleResend(w http.ResponseWriter, _ *http.Request, sess *session) {
	if sess.userID == 0 {
		writeJSON(w, http.StatusUnauthorized, map[string]any{"message": "Unauthenticated."})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": StatusVerificationLinkSent})
}

type fieldErrors map[string][]string

func (fe fieldErrors) add(field, msg string) {
	fe[field] = append(fe[field], msg)
}

func (fe fieldErrors) require(field, value string) {
	if strings.TrimSpace(value) == "" {
		fe.add(field, "The "+field+" field is required.")
	}
}

func (fe fieldErrors) email(field, value string) {
	if strings.TrimSpace(value) == "" {
		fe.require(field, value)
		return
	}
	if !govalidator.IsEmail(value) {
		fe.add(field, "The "+field+" field must be a valid email address.")
	}
}

func (fe fieldErrors) password(password, confirmation string) {
	switch {
	case password == "":
		fe.require("password", password)
	case len(password) < 8:
		fe.add("password", "The password field must be at least 8 characters.")
	case password != confirmation:
		fe.add("password", "The password field confirmation does not match.")
	}
}

func writeValidation(w http.ResponseWriter, errs fieldErrors) {
	msg := "The given data was invalid."
	for _, field := range []string{"token", "name", "email", "password"} {
		if msgs := errs[field]; len(msgs) > 0 {
			msg = msgs[0]
			break
		}
	}
	writeJSON(w, http.StatusUnprocessableEntity, map[string]any{"message": msg, "errors": errs})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body) //nolint:errcheck // test server
}

func randomHex() string {
	b := make([]byte, 16)
	_, _ = rand.Read(b) //nolint:errcheck // crypto/rand.Read does not fail
	return hex.EncodeToString(b)
}
