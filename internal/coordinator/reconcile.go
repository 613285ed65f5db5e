// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package coordinator

import (
	"github.com/holomush/authportal/internal/identity"
)

// View is the session state a page is reconciled against.
type View struct {
	Status   identity.Status
	Identity *identity.Identity
}

// ActionKind is the outcome of reconciliation.
type ActionKind int

const (
	// ActionResolving means the session is not resolved yet; render nothing.
	ActionResolving ActionKind = iota
	// ActionRender means the page may render.
	ActionRender
	// ActionRedirect means the visitor must be sent to Action.Target.
	ActionRedirect
)

// Redirect reasons, used in logs and metrics.
const (
	ReasonAuthenticatedOnGuestPage = "authenticated_on_guest_page"
	ReasonGuestOnAuthPage          = "guest_on_auth_page"
	ReasonUnverified               = "unverified"
	ReasonAlreadyVerified          = "already_verified"
)

// Action is the result of Reconcile.
type Action struct {
	Kind   ActionKind
	Target string
	Reason string
}

// Render is the action that lets the page render.
func Render() Action { return Action{Kind: ActionRender} }

// Resolving is the action for an unresolved session.
func Resolving() Action { return Action{Kind: ActionResolving} }

// RedirectTo sends the visitor to target.
func RedirectTo(target, reason string) Action {
	return Action{Kind: ActionRedirect, Target: target, Reason: reason}
}

// IsRedirect reports whether the action navigates away.
func (a Action) IsRedirect() bool { return a.Kind == ActionRedirect }

// Reconcile decides whether page may render for view. It is pure: the same
// inputs always give the same action.
func Reconcile(view View, page Page, routes Routes) Action {
	routes = routes.WithDefaults()

	if !view.Status.Resolved() {
		return Resolving()
	}

	authenticated := view.Status == identity.StatusAuthenticated
	onVerifyPage := page.Path == routes.VerifyEmail

	switch {
	case page.Mode.Access == AccessGuestOnly && authenticated:
		return RedirectTo(afterAuthentication(page, routes), ReasonAuthenticatedOnGuestPage)
	case page.Mode.Access == AccessAuthOnly && !authenticated:
		return RedirectTo(routes.Login, ReasonGuestOnAuthPage)
	case page.Mode.RequireVerified && authenticated && !view.Identity.Verified() && !onVerifyPage:
		return RedirectTo(routes.VerifyEmail, ReasonUnverified)
	case onVerifyPage && authenticated && view.Identity.Verified():
		return RedirectTo(afterAuthentication(page, routes), ReasonAlreadyVerified)
	default:
		return Render()
	}
}

// afterAuthentication is where an authenticated visitor goes from page.
func afterAuthentication(page Page, routes Routes) string {
	if page.Mode.RedirectIfAuthenticated != "" {
		return page.Mode.RedirectIfAuthenticated
	}
	return routes.Home
}
