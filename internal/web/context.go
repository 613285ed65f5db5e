// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package web

import (
	"context"

	"github.com/holomush/authportal/internal/coordinator"
	"github.com/holomush/authportal/internal/visitor"
)

type (
	requestIDKey    struct{}
	requestStateKey struct{}
)

// requestState is filled in by the middleware chain as a request passes
// through it.
type requestState struct {
	visitor *visitor.Visitor
	mount   *coordinator.Mount

	// flash is a status message carried over by the flash cookie.
	flash string
}

func withState(ctx context.Context, st *requestState) context.Context {
	return context.WithValue(ctx, requestStateKey{}, st)
}

// stateOf returns the request's state. Handlers behind attachVisitor always
// have one.
func stateOf(ctx context.Context) *requestState {
	if st, ok := ctx.Value(requestStateKey{}).(*requestState); ok {
		return st
	}
	return &requestState{}
}

// RequestID returns the id assigned to the request, or "".
func RequestID(ctx context.Context) string {
	if id, ok := ctx.Value(requestIDKey{}).(string); ok {
		return id
	}
	return ""
}
