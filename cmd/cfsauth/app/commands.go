// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package app provides the entry point for the cfsauth command-line application.
package app

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/stacklok/toolhive-core/env"

	"github.com/cloudfilesync/cfsauth/pkg/config"
	"github.com/cloudfilesync/cfsauth/pkg/logger"
)

// NewRootCmd creates a new root command for the cfsauth CLI.
func NewRootCmd() *cobra.Command {
	return newRootCmd(config.NewViper(), loginDeps{stdin: os.Stdin}, &env.OSReader{})
}

func newRootCmd(v *viper.Viper, deps loginDeps, envReader env.Reader) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:               "cfsauth",
		DisableAutoGenTag: true,
		Short:             "cfsauth obtains OAuth access tokens for CloudFileSync",
		Long: `cfsauth obtains OAuth 2.0 access tokens for the cloud-storage providers CloudFileSync syncs to.

It opens the provider's consent page in your browser, receives the redirect on a
local callback listener, exchanges the authorization code for an access token and
prints the token so it can be copied into the CloudFileSync configuration.

Settings are read from $XDG_CONFIG_HOME/cfsauth/config.yaml (or --config), from
CFSAUTH_* environment variables and from command-line flags, in increasing order
of precedence.`,
		Run: func(cmd *cobra.Command, _ []string) {
			// If no subcommand is provided, print help
			if err := cmd.Help(); err != nil {
				logger.Errorf("Error displaying help: %v", err)
			}
		},
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			logger.Initialize()

			path, err := config.ReadConfigFile(v, v.GetString(config.KeyConfig))
			if err != nil {
				return err
			}
			if path != "" {
				logger.Debugf("Using config file %s", path)
			}
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Add persistent flags
	rootCmd.PersistentFlags().Bool("debug", false, "Enable debug mode")
	if err := viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug")); err != nil {
		logger.Errorf("Error binding debug flag: %v", err)
	}

	rootCmd.PersistentFlags().StringP("config", "c", "", "Path to the cfsauth configuration file")
	// CFSAUTH_CONFIG also names the file
	if err := v.BindPFlag(config.KeyConfig, rootCmd.PersistentFlags().Lookup("config")); err != nil {
		logger.Errorf("Error binding config flag: %v", err)
	}

	// Add subcommands
	rootCmd.AddCommand(newLoginCmd(v, deps))
	rootCmd.AddCommand(newVerifyCmd(v, envReader))
	rootCmd.AddCommand(newProvidersCmd(v))
	rootCmd.AddCommand(newVersionCmd())

	return rootCmd
}

// bindFlags returns a PreRunE that binds the command's flags to config keys
// on v. Binding happens when the command runs because several commands
// share keys.
func bindFlags(v *viper.Viper, bindings map[string]string) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, _ []string) error {
		return bindFlagSet(v, cmd.Flags(), bindings)
	}
}

func bindFlagSet(v *viper.Viper, flags *pflag.FlagSet, bindings map[string]string) error {
	for name, key := range bindings {
		flag := flags.Lookup(name)
		if flag == nil {
			return fmt.Errorf("unknown flag %q", name)
		}
		if err := v.BindPFlag(key, flag); err != nil {
			return fmt.Errorf("error binding %s flag: %w", name, err)
		}
	}
	return nil
}
