// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package config_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/holomush/authportal/internal/config"
	"github.com/holomush/authportal/pkg/errutil"
)

func TestGenerateSchema(t *testing.T) {
	data, err := config.GenerateSchema()
	require.NoError(t, err)

	var schema map[string]any
	require.NoError(t, json.Unmarshal(data, &schema))
	assert.Equal(t, config.SchemaID, schema["$id"])

	props, ok := schema["properties"].(map[string]any)
	require.True(t, ok)
	for _, key := range []string{"listen_addr", "api", "session", "store", "routes", "pages"} {
		assert.Contains(t, props, key)
	}

	api := props["api"].(map[string]any)["properties"].(map[string]any)
	timeout := api["timeout"].(map[string]any)
	assert.Equal(t, "string", timeout["type"])
}

func TestValidateYAML(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		code string
	}{
		{"minimal", "api:\n  base_url: https://api.example.com\n", ""},
		{"durations", "session:\n  idle_ttl: 2h\n  max_age: 90s\n", ""},
		{"pages", "pages:\n  - pattern: /a\n    access: guest-only\n", ""},
		{"empty", "  \n", "CONFIG_EMPTY"},
		{"bad yaml", "api: [", "CONFIG_YAML_INVALID"},
		{"unknown key", "listen: \"80\"\n", "CONFIG_SCHEMA_VIOLATION"},
		{"bad duration", "session:\n  idle_ttl: forever\n", "CONFIG_SCHEMA_VIOLATION"},
		{"bad access", "pages:\n  - pattern: /a\n    access: admins\n", "CONFIG_SCHEMA_VIOLATION"},
		{"page without pattern", "pages:\n  - access: auth-only\n", "CONFIG_SCHEMA_VIOLATION"},
		{"bad driver", "store:\n  driver: etcd\n", "CONFIG_SCHEMA_VIOLATION"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := config.ValidateYAML([]byte(tt.doc))
			if tt.code == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			errutil.AssertErrorCode(t, err, tt.code)
		})
	}
}
