// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package coordinator

import (
	"encoding/base64"
	"net/url"
	"unicode/utf8"
)

// StatusParam is the query parameter that carries a StatusMessage across a
// navigation.
const StatusParam = "status"

// legacyStatusParam is accepted on decode for links issued before StatusParam.
const legacyStatusParam = "reset"

// EncodeStatus returns target with msg attached as a base64url query
// parameter. An empty msg returns target unchanged.
func EncodeStatus(target, msg string) string {
	if msg == "" {
		return target
	}
	u, err := url.Parse(target)
	if err != nil {
		return target
	}
	q := u.Query()
	q.Set(StatusParam, base64.RawURLEncoding.EncodeToString([]byte(msg)))
	u.RawQuery = q.Encode()
	return u.String()
}

// DecodeStatus extracts the StatusMessage from target and returns target
// without it. found reports whether a status parameter was present at all;
// msg is empty when the value did not decode.
func DecodeStatus(target string) (msg, clean string, found bool) {
	u, err := url.Parse(target)
	if err != nil {
		return "", target, false
	}
	q := u.Query()

	var raw string
	for _, name := range []string{StatusParam, legacyStatusParam} {
		if q.Has(name) {
			found = true
			if raw == "" {
				raw = q.Get(name)
			}
			q.Del(name)
		}
	}
	if !found {
		return "", target, false
	}

	u.RawQuery = q.Encode()
	return decodeStatusValue(raw), u.String(), true
}

// decodeStatusValue accepts URL-safe and standard alphabets, padded or not.
func decodeStatusValue(raw string) string {
	for _, enc := range []*base64.Encoding{
		base64.RawURLEncoding,
		base64.URLEncoding,
		base64.StdEncoding,
		base64.RawStdEncoding,
	} {
		if b, err := enc.DecodeString(raw); err == nil && utf8.Valid(b) {
			return string(b)
		}
	}
	return ""
}
