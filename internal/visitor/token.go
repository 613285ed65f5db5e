// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package visitor

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"strings"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// TokenBytes is the size of visitor secrets and CSRF tokens (64 hex chars).
const TokenBytes = 32

// GenerateToken creates a random hex token.
func GenerateToken() (string, error) {
	b := make([]byte, TokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", oops.Code("VISITOR_TOKEN_GENERATE_FAILED").
			With("operation", "crypto/rand.Read").
			With("requested_bytes", TokenBytes).
			Wrap(err)
	}
	return hex.EncodeToString(b), nil
}

// HashToken computes the SHA256 hash of a token. Only hashes are kept in
// memory and in the jar store.
func HashToken(token string) string {
	h := sha256.Sum256([]byte(token))
	return hex.EncodeToString(h[:])
}

// VerifyToken checks token against a stored hash in constant time.
func VerifyToken(token, hash string) bool {
	if token == "" || hash == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(HashToken(token)), []byte(hash)) == 1
}

// EqualTokens compares two plaintext tokens in constant time.
func EqualTokens(a, b string) bool {
	if a == "" || b == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

// cookieValue joins a visitor id and its secret into the cookie value.
func cookieValue(id ulid.ULID, secret string) string {
	return id.String() + "." + secret
}

// parseCookieValue splits a cookie value into id and secret.
func parseCookieValue(v string) (ulid.ULID, string, bool) {
	idPart, secret, ok := strings.Cut(v, ".")
	if !ok || secret == "" {
		return ulid.ULID{}, "", false
	}
	id, err := ulid.ParseStrict(idPart)
	if err != nil {
		return ulid.ULID{}, "", false
	}
	return id, secret, true
}
