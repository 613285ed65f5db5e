// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package pagepolicy maps request paths to the page modes the coordinator
// reconciles against.
package pagepolicy

import (
	"strings"

	"github.com/gobwas/glob"
	"github.com/samber/oops"

	"github.com/holomush/authportal/internal/coordinator"
)

// Rule declares the mode of every path matching Pattern. Patterns are globs
// with '/' as separator: "*" stays within one segment, "**" spans segments.
type Rule struct {
	Pattern string
	Mode    coordinator.PageMode
}

// compiledRule holds a rule and its compiled glob.
type compiledRule struct {
	rule Rule
	glob glob.Glob
}

// Table resolves paths to pages. The first matching rule wins; paths no rule
// matches are unrestricted. Table is immutable and safe for concurrent use.
type Table struct {
	rules []compiledRule
}

// DefaultRules returns the built-in page declarations.
func DefaultRules() []Rule {
	guestOnly := coordinator.PageMode{Access: coordinator.AccessGuestOnly, RedirectIfAuthenticated: "/dashboard"}
	return []Rule{
		{Pattern: "/login", Mode: guestOnly},
		{Pattern: "/register", Mode: guestOnly},
		{Pattern: "/forgot-password", Mode: guestOnly},
		{Pattern: "/password-reset/*", Mode: guestOnly},
		{Pattern: "/verify-email", Mode: coordinator.PageMode{Access: coordinator.AccessAuthOnly}},
		{Pattern: "/email/verification-notification", Mode: coordinator.PageMode{Access: coordinator.AccessAuthOnly}},
		{Pattern: "/dashboard", Mode: coordinator.PageMode{Access: coordinator.AccessAuthOnly, RequireVerified: true}},
		{Pattern: "/dashboard/**", Mode: coordinator.PageMode{Access: coordinator.AccessAuthOnly, RequireVerified: true}},
	}
}

// Default returns a Table of DefaultRules.
//
// Panics if a default pattern fails to compile (programming error).
func Default() *Table {
	t, err := New(DefaultRules())
	if err != nil {
		panic("invalid default page pattern: " + err.Error())
	}
	return t
}

// New compiles rules in order.
func New(rules []Rule) (*Table, error) {
	compiled := make([]compiledRule, 0, len(rules))
	for i, r := range rules {
		if !strings.HasPrefix(r.Pattern, "/") {
			return nil, oops.In("pagepolicy").
				Code("INVALID_PAGE_PATTERN").
				With("index", i).
				With("pattern", r.Pattern).
				Errorf("page pattern must start with /")
		}
		g, err := glob.Compile(r.Pattern, '/')
		if err != nil {
			return nil, oops.In("pagepolicy").
				Code("INVALID_PAGE_PATTERN").
				With("index", i).
				With("pattern", r.Pattern).
				Wrap(err)
		}
		compiled = append(compiled, compiledRule{rule: r, glob: g})
	}
	return &Table{rules: compiled}, nil
}

// Lookup returns the page declared for path.
func (t *Table) Lookup(path string) coordinator.Page {
	path = normalize(path)
	for _, r := range t.rules {
		if r.glob.Match(path) {
			return coordinator.Page{Path: path, Mode: r.rule.Mode}
		}
	}
	return coordinator.Page{Path: path}
}

// Rules returns the rules in match order.
func (t *Table) Rules() []Rule {
	out := make([]Rule, len(t.rules))
	for i, r := range t.rules {
		out[i] = r.rule
	}
	return out
}

// normalize drops a trailing slash so "/login/" matches "/login".
func normalize(path string) string {
	if path == "" {
		return "/"
	}
	if len(path) > 1 {
		path = strings.TrimRight(path, "/")
		if path == "" {
			return "/"
		}
	}
	return path
}
