// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package app

import (
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/stacklok/toolhive-core/env"

	"github.com/cloudfilesync/cfsauth/pkg/auth/verify"
	"github.com/cloudfilesync/cfsauth/pkg/config"
	cfserrors "github.com/cloudfilesync/cfsauth/pkg/errors"
	"github.com/cloudfilesync/cfsauth/pkg/logger"
	"github.com/cloudfilesync/cfsauth/pkg/networking"
	"github.com/cloudfilesync/cfsauth/pkg/output"
	"github.com/cloudfilesync/cfsauth/pkg/provider"
)

// TokenEnvVar can carry the token to verify instead of --token
const TokenEnvVar = "CFSAUTH_ACCESS_TOKEN"

var verifyFlagKeys = map[string]string{
	"provider":        config.KeyProvider,
	"user-info-url":   config.KeyUserInfoURL,
	"output":          config.KeyOutput,
	"ca-cert":         config.KeyCACertPath,
	"request-timeout": config.KeyRequestTimeout,
}

func newVerifyCmd(v *viper.Viper, envReader env.Reader) *cobra.Command {
	var token string

	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Check an access token against the provider's user info endpoint",
		Long: `Check that an access token is accepted by the provider and show the account it
belongs to. The token is taken from --token or the CFSAUTH_ACCESS_TOKEN environment
variable.`,
		Args:    cobra.NoArgs,
		PreRunE: bindFlags(v, verifyFlagKeys),
		RunE: func(cmd *cobra.Command, _ []string) error {
			if token == "" {
				token = strings.TrimSpace(envReader.Getenv(TokenEnvVar))
			}
			if token == "" {
				return cfserrors.NewInvalidArgumentError("no token given, use --token or "+TokenEnvVar, nil)
			}

			cfg, err := config.Load(v)
			if err != nil {
				return err
			}
			p, err := cfg.Merge()
			if err != nil {
				return err
			}

			client, err := networking.NewHttpClientBuilder().
				WithTimeout(cfg.RequestTimeout).
				WithCABundle(cfg.CACertPath).
				Build()
			if err != nil {
				return cfserrors.NewInvalidArgumentError("failed to create HTTP client", err)
			}

			verifier, err := verify.NewVerifier(client, p.UserInfoURL, verifierOptions(p)...)
			if err != nil {
				return err
			}
			printer, err := output.NewPrinter(cmd.OutOrStdout(), cfg.Output)
			if err != nil {
				return err
			}

			account, err := verifier.Verify(cmd.Context(), token)
			if err != nil {
				return err
			}
			logger.Debugw("token accepted", "provider", p.Name, "account", account.Name)
			return printer.PrintAccount(account)
		},
	}

	cmd.Flags().StringVar(&token, "token", "", "Access token to verify")
	cmd.Flags().String("provider", config.DefaultProvider, "Provider preset")
	cmd.Flags().String("user-info-url", "", "User info endpoint (overrides the preset)")
	cmd.Flags().StringP("output", "o", output.FormatText, "Output format (text, json or yaml)")
	cmd.Flags().String("ca-cert", "", "Path to a CA certificate bundle for provider requests")
	cmd.Flags().Duration("request-timeout", config.DefaultRequestTimeout, "Timeout of the user info request")

	return cmd
}

func verifierOptions(p *provider.Provider) []verify.Option {
	var opts []verify.Option
	if p.UserInfoMethod != "" {
		opts = append(opts, verify.WithMethod(p.UserInfoMethod))
	}
	if p.UserInfoAuth == provider.UserInfoBearer {
		opts = append(opts, verify.WithBearerAuth())
	}
	return opts
}
