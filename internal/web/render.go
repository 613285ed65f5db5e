// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package web

import (
	"bytes"
	"embed"
	"html/template"
	"net/http"

	"github.com/samber/oops"

	"github.com/holomush/authportal/internal/identity"
)

//go:embed templates/*.html
var templateFS embed.FS

// Template names.
const (
	pageLogin          = "login"
	pageRegister       = "register"
	pageForgotPassword = "forgot_password"
	pageResetPassword  = "reset_password"
	pageVerifyEmail    = "verify_email"
	pageDashboard      = "dashboard"
	pageError          = "error"
)

var pageTitles = map[string]string{
	pageLogin:          "Log in",
	pageRegister:       "Register",
	pageForgotPassword: "Forgot password",
	pageResetPassword:  "Reset password",
	pageVerifyEmail:    "Verify email",
	pageDashboard:      "Dashboard",
}

// view is the data every template receives.
type view struct {
	Title     string
	Path      string
	CSRFToken string
	Identity  *identity.Identity
	Status    string
	Notice    string
	Message   string
	Errors    identity.FieldErrors
	form      map[string]string
}

// Old returns the previously submitted value of a non-secret field.
func (v view) Old(field string) string {
	return v.form[field]
}

// templates holds one parsed set per page, each sharing the layout.
type templates map[string]*template.Template

func parseTemplates() (templates, error) {
	out := templates{}
	for _, name := range []string{
		pageLogin, pageRegister, pageForgotPassword, pageResetPassword,
		pageVerifyEmail, pageDashboard, pageError,
	} {
		t, err := template.ParseFS(templateFS, "templates/layout.html", "templates/"+name+".html")
		if err != nil {
			return nil, oops.In("web").Code("TEMPLATE_PARSE_FAILED").With("page", name).Wrap(err)
		}
		out[name] = t
	}
	return out, nil
}

// render executes page into a buffer first so template errors never
// produce a half-written response.
func (t templates) render(w http.ResponseWriter, code int, page string, data view) error {
	tmpl, ok := t[page]
	if !ok {
		return oops.In("web").Code("TEMPLATE_UNKNOWN").With("page", page).Errorf("unknown page template")
	}
	if data.Title == "" {
		data.Title = pageTitles[page]
	}

	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, "layout", data); err != nil {
		return oops.In("web").Code("TEMPLATE_EXEC_FAILED").With("page", page).Wrap(err)
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(code)
	_, _ = buf.WriteTo(w) //nolint:errcheck // client disconnects are not actionable
	return nil
}
