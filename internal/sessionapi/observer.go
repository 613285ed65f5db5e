// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package sessionapi

import (
	"errors"
	"time"
)

// Call outcomes reported to an Observer besides the failure kinds.
const (
	outcomeOK               = "ok"
	outcomeNotAuthenticated = "not_authenticated"
)

// Observer receives one report per remote call. The metrics layer
// implements it; outcome is "ok", "not_authenticated" or a Kind.
type Observer interface {
	ObserveRemoteCall(operation, outcome string, elapsed time.Duration)
}

type nopObserver struct{}

func (nopObserver) ObserveRemoteCall(string, string, time.Duration) {}

func isNotAuthenticated(err error) bool {
	return errors.Is(err, ErrNotAuthenticated)
}
