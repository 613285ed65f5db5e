// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package visitor

import (
	"strings"
	"testing"

	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateToken(t *testing.T) {
	a, err := GenerateToken()
	require.NoError(t, err)
	b, err := GenerateToken()
	require.NoError(t, err)

	assert.Len(t, a, TokenBytes*2)
	assert.NotEqual(t, a, b)
}

func TestVerifyToken(t *testing.T) {
	hash := HashToken("secret")

	assert.True(t, VerifyToken("secret", hash))
	assert.False(t, VerifyToken("other", hash))
	assert.False(t, VerifyToken("", hash))
	assert.False(t, VerifyToken("secret", ""))
}

func TestEqualTokens(t *testing.T) {
	assert.True(t, EqualTokens("abc", "abc"))
	assert.False(t, EqualTokens("abc", "abd"))
	assert.False(t, EqualTokens("", ""))
}

func TestCookieValue_RoundTrip(t *testing.T) {
	id := ulid.Make()

	gotID, secret, ok := parseCookieValue(cookieValue(id, "s3cret"))

	require.True(t, ok)
	assert.Equal(t, id, gotID)
	assert.Equal(t, "s3cret", secret)
}

func TestParseCookieValue_Rejects(t *testing.T) {
	id := ulid.Make().String()
	tests := map[string]string{
		"empty":          "",
		"no separator":   id,
		"empty secret":   id + ".",
		"bad id":         "not-a-ulid.secret",
		"lowercase junk": strings.Repeat("u", 26) + ".secret",
	}
	for name, value := range tests {
		t.Run(name, func(t *testing.T) {
			_, _, ok := parseCookieValue(value)
			assert.False(t, ok)
		})
	}
}
