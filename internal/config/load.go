// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package config

import (
	"errors"
	"io/fs"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/samber/oops"
	"github.com/spf13/pflag"
	yamlv3 "gopkg.in/yaml.v3"
)

// flagKeys maps command-line flags to config keys.
var flagKeys = map[string]string{
	"listen-addr":   "listen_addr",
	"metrics-addr":  "metrics_addr",
	"log-format":    "log.format",
	"log-level":     "log.level",
	"api-base-url":  "api.base_url",
	"api-timeout":   "api.timeout",
	"cookie-secure": "session.cookie_secure",
	"store":         "store.driver",
	"redis-url":     "store.redis_url",
}

// RegisterFlags adds the config override flags. Flag defaults are
// only shown in help; unset flags never override the file.
func RegisterFlags(flags *pflag.FlagSet) {
	d := Default()
	flags.String("listen-addr", d.ListenAddr, "portal HTTP listen address")
	flags.String("metrics-addr", d.MetricsAddr, "metrics/health HTTP address (empty = disabled)")
	flags.String("log-format", d.Log.Format, "log format (json or text)")
	flags.String("log-level", d.Log.Level, "log level (debug, info, warn, error)")
	flags.String("api-base-url", "", "remote session service origin")
	flags.Duration("api-timeout", d.API.Timeout, "timeout for each remote call")
	flags.Bool("cookie-secure", d.Session.CookieSecure, "mark portal cookies Secure")
	flags.String("store", d.Store.Driver, "visitor store driver (memory or redis)")
	flags.String("redis-url", "", "redis URL for the redis store")
}

// Load builds the configuration from Default, the YAML file at path and
// the changed flags, in that order. A missing file is an error only when
// required is true. flags may be nil.
func Load(path string, required bool, flags *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			if required || !errors.Is(err, fs.ErrNotExist) {
				return nil, oops.In("config").Code("CONFIG_LOAD_FAILED").With("path", path).Wrap(err)
			}
		}
	}

	if flags != nil {
		err := k.Load(posflag.ProviderWithFlag(flags, ".", k, func(f *pflag.Flag) (string, any) {
			key, ok := flagKeys[f.Name]
			if !ok || !f.Changed {
				return "", nil
			}
			return key, posflag.FlagVal(flags, f)
		}), nil)
		if err != nil {
			return nil, oops.In("config").Code("CONFIG_FLAGS_FAILED").Wrap(err)
		}
	}

	cfg := Default()
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, oops.In("config").Code("CONFIG_DECODE_FAILED").With("path", path).Wrap(err)
	}
	return &cfg, nil
}

// YAML renders the configuration as a config file.
func (c *Config) YAML() ([]byte, error) {
	data, err := yamlv3.Marshal(c)
	if err != nil {
		return nil, oops.In("config").Code("CONFIG_ENCODE_FAILED").Wrap(err)
	}
	return data, nil
}
