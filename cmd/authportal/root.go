// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package main

import (
	"github.com/spf13/cobra"

	"github.com/holomush/authportal/internal/config"
	"github.com/holomush/authportal/internal/xdg"
)

// Global flags available to all subcommands.
var configFile string

// NewRootCmd creates the root command for the authportal CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "authportal",
		Short: "authportal - sign-in portal for a remote session service",
		Long: `authportal serves the login, registration, password reset and email
verification pages for a cookie-session authentication service, keeping
each browser's session state in step with the remote service.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&configFile, "config", "", "config file path (default $XDG_CONFIG_HOME/authportal/config.yaml)")

	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newStatusCmd())
	cmd.AddCommand(newConfigCmd())

	return cmd
}

// configPath returns the --config path, or the XDG default. explicit
// reports whether the user named the file.
func configPath() (path string, explicit bool, err error) {
	if configFile != "" {
		return configFile, true, nil
	}
	path, err = xdg.ConfigFile()
	if err != nil {
		return "", false, err
	}
	return path, false, nil
}

// loadConfig loads and validates the configuration for cmd. A missing
// default config file is fine; a missing --config file is not.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, explicit, err := configPath()
	if err != nil {
		return nil, err
	}
	cfg, err := config.Load(path, explicit, cmd.Flags())
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
