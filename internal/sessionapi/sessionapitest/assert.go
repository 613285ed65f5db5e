// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package sessionapitest

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/holomush/authportal/internal/sessionapi"
	"github.com/holomush/authportal/pkg/errutil"
)

// AssertFailure asserts that err is a coded remote failure of kind raised by
// operation op. Form-level kinds must not carry field errors.
func AssertFailure(t *testing.T, err error, kind sessionapi.Kind, op string) {
	t.Helper()
	assert.Equal(t, kind, sessionapi.Classify(err))
	errutil.AssertErrorCode(t, err, kind.Code())
	errutil.AssertErrorContext(t, err, "operation", op)
	if kind != sessionapi.KindValidation {
		assert.Nil(t, sessionapi.FieldsOf(err), "%s failures carry no field errors", kind)
	}
}
