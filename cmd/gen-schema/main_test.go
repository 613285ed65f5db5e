// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/holomush/authportal/internal/config"
)

func TestRun_WritesThenChecks(t *testing.T) {
	out := filepath.Join(t.TempDir(), "schemas", "config.schema.json")

	require.NoError(t, run(out, false))
	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Contains(t, string(data), config.SchemaID)

	assert.NoError(t, run(out, true))
}

func TestRun_CheckDetectsStaleFile(t *testing.T) {
	out := filepath.Join(t.TempDir(), "config.schema.json")
	require.NoError(t, os.WriteFile(out, []byte(`{"stale":true}`), 0o600))

	err := run(out, true)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "out of date")
}

func TestRun_CheckMissingFile(t *testing.T) {
	err := run(filepath.Join(t.TempDir(), "missing.json"), true)
	assert.Error(t, err)
}
