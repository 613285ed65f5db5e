// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package coordinator

import (
	"strings"
	"unicode/utf8"

	"github.com/asaskevich/govalidator"

	"github.com/holomush/authportal/internal/identity"
)

// Form field names, shared with the remote service's validation envelope.
const (
	FieldName                 = "name"
	FieldEmail                = "email"
	FieldPassword             = "password"
	FieldPasswordConfirmation = "password_confirmation"
	FieldToken                = "token"
)

const (
	minPasswordLength = "8"
	maxFieldLength    = "255"
)

// LoginForm is the login page submission.
type LoginForm struct {
	Email    string
	Password string
	Remember bool
}

// Validate applies the local login rules.
func (f LoginForm) Validate() identity.FieldErrors {
	fe := identity.FieldErrors{}
	checkEmail(fe, f.Email)
	checkRequired(fe, FieldPassword, f.Password)
	return fe
}

// RegisterForm is the registration page submission.
type RegisterForm struct {
	Name                 string
	Email                string
	Password             string
	PasswordConfirmation string
}

// Validate applies the local registration rules.
func (f RegisterForm) Validate() identity.FieldErrors {
	fe := identity.FieldErrors{}
	if checkRequired(fe, FieldName, f.Name) && !govalidator.StringLength(f.Name, "1", maxFieldLength) {
		fe.Add(FieldName, "The name field must not be greater than 255 characters.")
	}
	checkEmail(fe, f.Email)
	checkNewPassword(fe, f.Password, f.PasswordConfirmation)
	return fe
}

// ForgotPasswordForm requests a reset link.
type ForgotPasswordForm struct {
	Email string
}

// Validate applies the local forgot-password rules.
func (f ForgotPasswordForm) Validate() identity.FieldErrors {
	fe := identity.FieldErrors{}
	checkEmail(fe, f.Email)
	return fe
}

// ResetPasswordForm completes a reset with the token from the emailed link.
type ResetPasswordForm struct {
	Token                string
	Email                string
	Password             string
	PasswordConfirmation string
}

// Validate applies the local reset-password rules.
func (f ResetPasswordForm) Validate() identity.FieldErrors {
	fe := identity.FieldErrors{}
	checkRequired(fe, FieldToken, f.Token)
	checkEmail(fe, f.Email)
	checkNewPassword(fe, f.Password, f.PasswordConfirmation)
	return fe
}

func checkRequired(fe identity.FieldErrors, field, value string) bool {
	if strings.TrimSpace(value) == "" {
		fe.Add(field, "The "+strings.ReplaceAll(field, "_", " ")+" field is required.")
		return false
	}
	return true
}

func checkEmail(fe identity.FieldErrors, value string) {
	if !checkRequired(fe, FieldEmail, value) {
		return
	}
	if !govalidator.StringLength(value, "1", maxFieldLength) || !govalidator.IsEmail(value) {
		fe.Add(FieldEmail, "The email field must be a valid email address.")
	}
}

func checkNewPassword(fe identity.FieldErrors, password, confirmation string) {
	if checkRequired(fe, FieldPassword, password) &&
		!govalidator.StringLength(password, minPasswordLength, maxFieldLength) {
		if utf8.RuneCountInString(password) > 255 {
			fe.Add(FieldPassword, "The password field must not be greater than 255 characters.")
		} else {
			fe.Add(FieldPassword, "The password field must be at least "+minPasswordLength+" characters.")
		}
	}
	if !checkRequired(fe, FieldPasswordConfirmation, confirmation) {
		return
	}
	if password != confirmation {
		fe.Add(FieldPasswordConfirmation, "The password confirmation does not match.")
	}
}
