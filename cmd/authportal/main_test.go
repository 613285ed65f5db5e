// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/holomush/authportal/internal/config"
	"github.com/holomush/authportal/internal/observability"
	"github.com/holomush/authportal/internal/visitor"
	"github.com/holomush/authportal/pkg/errutil"
)

// execute runs the root command with args and returns its output.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	configFile = ""
	t.Cleanup(func() { configFile = "" })

	cmd := NewRootCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(new(bytes.Buffer))
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

func TestRootCommand_HasExpectedSubcommands(t *testing.T) {
	out, err := execute(t, "--help")
	require.NoError(t, err)

	for _, sub := range []string{"serve", "status", "config"} {
		assert.Contains(t, out, sub, "Help missing %q command", sub)
	}
}

func TestRootCommand_ConfigFlag(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		wantFlag string
	}{
		{
			name:     "separate value",
			args:     []string{"--config", "/path/to/config.yaml", "--help"},
			wantFlag: "/path/to/config.yaml",
		},
		{
			name:     "with equals",
			args:     []string{"--config=/etc/authportal.yaml", "--help"},
			wantFlag: "/etc/authportal.yaml",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			configFile = ""
			cmd := NewRootCmd()
			cmd.SetOut(new(bytes.Buffer))
			cmd.SetArgs(tt.args)

			require.NoError(t, cmd.Execute())
			assert.Equal(t, tt.wantFlag, configFile)
			configFile = ""
		})
	}
}

func TestRootCommand_VersionFlag(t *testing.T) {
	cmd := NewRootCmd()
	cmd.Version = "test-version"
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetArgs([]string{"--version"})

	require.NoError(t, cmd.Execute())
	assert.Contains(t, buf.String(), "test-version")
}

func TestServeCommand_RegistersConfigFlags(t *testing.T) {
	cmd := newServeCmd()
	for _, name := range []string{"listen-addr", "metrics-addr", "log-format", "log-level", "api-base-url", "store", "redis-url"} {
		assert.NotNil(t, cmd.Flags().Lookup(name), name)
	}
}

func TestServeCommand_RejectsInvalidConfig(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	_, err := execute(t, "serve", "--log-format", "xml", "--api-base-url", "http://api.test")
	require.Error(t, err)
	errutil.AssertErrorCode(t, err, "CONFIG_INVALID")
}

func TestServeCommand_MissingExplicitConfig(t *testing.T) {
	_, err := execute(t, "--config", filepath.Join(t.TempDir(), "missing.yaml"), "serve")
	require.Error(t, err)
	errutil.AssertErrorCode(t, err, "CONFIG_LOAD_FAILED")
}

func TestLoadConfig_DefaultPathMayBeMissing(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	configFile = ""

	cmd := newServeCmd()
	require.NoError(t, cmd.Flags().Set("api-base-url", "https://api.example.com"))

	cfg, err := loadConfig(cmd)
	require.NoError(t, err)
	assert.Equal(t, "https://api.example.com", cfg.API.BaseURL)
	assert.Equal(t, config.Default().ListenAddr, cfg.ListenAddr)
}

func TestOpenStore_Memory(t *testing.T) {
	cfg := config.Default()

	store, err := openStore(context.Background(), &cfg)
	require.NoError(t, err)
	defer store.close()

	assert.IsType(t, &visitor.MemoryStore{}, store.jars)
	assert.NoError(t, store.ready(context.Background()))
}

func TestOpenStore_Redis(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := config.Default()
	cfg.Store.Driver = config.StoreRedis
	cfg.Store.RedisURL = "redis://" + mr.Addr()
	cfg.Session.JarSecret = "0123456789abcdef0123"

	store, err := openStore(context.Background(), &cfg)
	require.NoError(t, err)
	defer store.close()

	require.IsType(t, &visitor.RedisStore{}, store.jars)
	assert.NoError(t, store.ready(context.Background()))

	require.NoError(t, store.jars.Save(context.Background(), "v1", visitor.Record{SecretHash: "h"}, 0))
	raw, err := mr.Get(cfg.Store.Prefix + "v1")
	require.NoError(t, err)
	assert.NotContains(t, raw, `"secret_hash"`)
}

func TestOpenStore_RedisUnavailable(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	cfg := config.Default()
	cfg.Store.Driver = config.StoreRedis
	cfg.Store.RedisURL = "redis://" + addr

	_, err := openStore(context.Background(), &cfg)
	require.Error(t, err)
	errutil.AssertErrorCode(t, err, "VISITOR_REDIS_UNAVAILABLE")
}

func TestStatusCommand_Healthy(t *testing.T) {
	obs := observability.NewServer("127.0.0.1:0", func(context.Context) error { return nil }, nil)
	ts := httptest.NewServer(obs.Handler())
	defer ts.Close()

	out, err := execute(t, "status", "--addr", ts.URL)
	require.NoError(t, err)
	assert.Contains(t, out, "liveness")
	assert.Contains(t, out, "readiness")
	assert.NotContains(t, out, "unhealthy")
}

func TestStatusCommand_JSONUnready(t *testing.T) {
	obs := observability.NewServer("127.0.0.1:0", func(context.Context) error { return errors.New("redis down") }, nil)
	ts := httptest.NewServer(obs.Handler())
	defer ts.Close()

	out, err := execute(t, "status", "--json", "--addr", strings.TrimPrefix(ts.URL, "http://"))
	require.Error(t, err)
	errutil.AssertErrorCode(t, err, "STATUS_UNHEALTHY")

	start := strings.Index(out, "[")
	end := strings.LastIndex(out, "]")
	require.True(t, start >= 0 && end > start, "no JSON in %q", out)

	var statuses []ProbeStatus
	require.NoError(t, json.Unmarshal([]byte(out[start:end+1]), &statuses))
	require.Len(t, statuses, 2)
	assert.True(t, statuses[0].Healthy)
	assert.False(t, statuses[1].Healthy)
	assert.Equal(t, 503, statuses[1].Code)
}

func TestStatusCommand_NotRunning(t *testing.T) {
	ts := httptest.NewServer(nil)
	addr := ts.URL
	ts.Close()

	_, err := execute(t, "status", "--addr", addr)
	require.Error(t, err)
	errutil.AssertErrorCode(t, err, "STATUS_UNHEALTHY")
}

func TestConfigSchemaCommand(t *testing.T) {
	out, err := execute(t, "config", "schema")
	require.NoError(t, err)
	assert.Contains(t, out, config.SchemaID)
}

func TestConfigInitAndValidate(t *testing.T) {
	home := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", home)
	path := filepath.Join(home, "authportal", "config.yaml")

	out, err := execute(t, "config", "init")
	require.NoError(t, err)
	assert.Contains(t, out, path)
	assert.FileExists(t, path)

	_, err = execute(t, "config", "init")
	require.Error(t, err)
	errutil.AssertErrorCode(t, err, "CONFIG_EXISTS")

	// Defaults leave the remote service unset.
	_, err = execute(t, "config", "validate")
	require.Error(t, err)
	errutil.AssertErrorCode(t, err, "CONFIG_INVALID")

	bad := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("upstream: https://api.example.com\n"), 0o600))

	_, err = execute(t, "config", "validate", bad)
	require.Error(t, err, "unknown keys fail the schema")
	errutil.AssertErrorCode(t, err, "CONFIG_SCHEMA_VIOLATION")
}

func TestConfigValidate_ValidFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`listen_addr: "127.0.0.1:8080"
api:
  base_url: https://api.example.com
  timeout: 5s
session:
  idle_ttl: 1h
`), 0o600))

	out, err := execute(t, "--config", path, "config", "validate")
	require.NoError(t, err)
	assert.Contains(t, out, "is valid")
}
