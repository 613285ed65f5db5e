// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

//go:build tools
// +build tools

// Package main pins dependencies that only build-tagged suites import, so
// go.mod keeps them when the integration tag is off.
// See https://go.dev/wiki/Modules#how-can-i-track-tool-dependencies-for-a-module
package main

import (
	// Integration suites (//go:build integration)
	_ "github.com/onsi/ginkgo/v2"
	_ "github.com/onsi/gomega"
	_ "github.com/testcontainers/testcontainers-go/modules/redis"

	// Unit test helpers
	_ "github.com/alicebob/miniredis/v2"
	_ "github.com/stretchr/testify/mock"
)
