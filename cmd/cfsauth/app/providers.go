// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package app

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/cloudfilesync/cfsauth/pkg/config"
	"github.com/cloudfilesync/cfsauth/pkg/output"
	"github.com/cloudfilesync/cfsauth/pkg/provider"
)

func newProvidersCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "providers",
		Short:   "List the built-in provider presets",
		Args:    cobra.NoArgs,
		PreRunE: bindFlags(v, map[string]string{"output": config.KeyOutput}),
		RunE: func(cmd *cobra.Command, _ []string) error {
			format := v.GetString(config.KeyOutput)
			printer, err := output.NewPrinter(cmd.OutOrStdout(), format)
			if err != nil {
				return err
			}
			return printer.PrintProviders(provider.List())
		},
	}

	cmd.Flags().StringP("output", "o", output.FormatText, "Output format (text, json or yaml)")

	return cmd
}
