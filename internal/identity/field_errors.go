// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package identity

import "sort"

// FieldErrors maps a form field name to its ordered validation messages.
// Both the remote service (422 responses) and local form rules produce this
// shape so pages render them uniformly.
type FieldErrors map[string][]string

// Add appends a message for field. Empty messages are ignored so every
// stored sequence stays non-empty.
func (fe FieldErrors) Add(field, msg string) {
	if msg == "" {
		return
	}
	fe[field] = append(fe[field], msg)
}

// Merge appends the messages of other after the existing ones, field by field.
// A nil receiver is not allowed; use Merged for a fresh value.
func (fe FieldErrors) Merge(other FieldErrors) {
	for field, msgs := range other {
		for _, msg := range msgs {
			fe.Add(field, msg)
		}
	}
}

// Merged combines any number of FieldErrors into a new value.
func Merged(sets ...FieldErrors) FieldErrors {
	out := FieldErrors{}
	for _, s := range sets {
		out.Merge(s)
	}
	return out
}

// Has reports whether field has at least one message.
func (fe FieldErrors) Has(field string) bool {
	return len(fe[field]) > 0
}

// First returns the first message for field, or "".
func (fe FieldErrors) First(field string) string {
	if msgs := fe[field]; len(msgs) > 0 {
		return msgs[0]
	}
	return ""
}

// Empty reports whether there are no messages at all.
func (fe FieldErrors) Empty() bool {
	for _, msgs := range fe {
		if len(msgs) > 0 {
			return false
		}
	}
	return true
}

// Fields returns the names of fields with messages, sorted.
func (fe FieldErrors) Fields() []string {
	names := make([]string, 0, len(fe))
	for field, msgs := range fe {
		if len(msgs) > 0 {
			names = append(names, field)
		}
	}
	sort.Strings(names)
	return names
}
