// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package app

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/term"

	"github.com/cloudfilesync/cfsauth/pkg/auth/oauth"
	"github.com/cloudfilesync/cfsauth/pkg/config"
	cfserrors "github.com/cloudfilesync/cfsauth/pkg/errors"
	"github.com/cloudfilesync/cfsauth/pkg/logger"
	"github.com/cloudfilesync/cfsauth/pkg/networking"
	"github.com/cloudfilesync/cfsauth/pkg/output"
	"github.com/cloudfilesync/cfsauth/pkg/provider"
)

// ErrLoginFailed is returned when the login produced an error outcome. The
// outcome has already been printed.
var ErrLoginFailed = errors.New("login failed")

// loginDeps are the parts of a login that tests replace
type loginDeps struct {
	flowOptions []oauth.FlowOption
	stdin       io.Reader
}

// loginFlagKeys maps login flags to config keys
var loginFlagKeys = map[string]string{
	"provider":        config.KeyProvider,
	"client-id":       config.KeyClientID,
	"client-secret":   config.KeyClientSecret,
	"auth-url":        config.KeyAuthURL,
	"token-url":       config.KeyTokenURL,
	"scope":           config.KeyScopes,
	"auth-param":      config.KeyAuthParams,
	"port":            config.KeyPort,
	"callback-path":   config.KeyCallbackPath,
	"redirect-url":    config.KeyRedirectURL,
	"shutdown-delay":  config.KeyShutdownDelay,
	"output":          config.KeyOutput,
	"ca-cert":         config.KeyCACertPath,
	"request-timeout": config.KeyRequestTimeout,
	"token-request":   config.KeyTokenRequest,
}

func newLoginCmd(v *viper.Viper, deps loginDeps) *cobra.Command {
	var (
		noBrowser bool
		askSecret bool
	)

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Authorize cfsauth with a provider and print the access token",
		Long: `Run the OAuth 2.0 authorization code flow against a provider.

The provider's consent page is opened in your browser. After you approve access
the provider redirects to the local callback listener, the authorization code is
exchanged for an access token, and the token is shown in the browser and printed
to stdout. Log lines go to stderr.

The redirect URI (http://localhost:<port><callback-path> unless --redirect-url is
set) must match the one registered with the provider.`,
		Example: `  # Baidu Netdisk with the built-in application key
  cfsauth login --client-secret "$BAIDU_SECRET"

  # Aliyun Drive with an application registered on the alipan open platform
  cfsauth login --provider aliyun --client-id my-app --ask-secret

  # Any OAuth 2.0 provider
  cfsauth login --provider custom --client-id my-app \
    --auth-url https://auth.example.com/authorize \
    --token-url https://auth.example.com/token --scope files.read`,
		Args:    cobra.NoArgs,
		PreRunE: bindFlags(v, loginFlagKeys),
		RunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Flags().Changed("no-browser") {
				v.Set(config.KeyOpenBrowser, !noBrowser)
			}
			return runLogin(cmd, v, deps, askSecret)
		},
	}

	cmd.Flags().String("provider", config.DefaultProvider,
		fmt.Sprintf("Provider preset (%s)", strings.Join(provider.Names(), ", ")))
	cmd.Flags().String("client-id", "", "OAuth client ID (defaults to the provider's built-in application key)")
	cmd.Flags().String("client-secret", "", "OAuth client secret")
	cmd.Flags().String("auth-url", "", "Authorization endpoint (overrides the preset)")
	cmd.Flags().String("token-url", "", "Token endpoint (overrides the preset)")
	cmd.Flags().StringSlice("scope", nil, "Scopes to request (overrides the preset)")
	cmd.Flags().StringToString("auth-param", nil, "Extra query parameters for the consent page (key=value)")
	cmd.Flags().Int("port", config.DefaultPort, "Port of the local callback listener")
	cmd.Flags().String("callback-path", config.DefaultCallbackPath, "Path of the local callback listener")
	cmd.Flags().String("redirect-url", "", "Redirect URI registered with the provider, if it is not the local listener")
	cmd.Flags().Duration("shutdown-delay", config.DefaultShutdownDelay,
		"How long the listener stays up after the result page is served")
	cmd.Flags().BoolVar(&noBrowser, "no-browser", false, "Print the consent URL instead of opening a browser")
	cmd.Flags().StringP("output", "o", output.FormatText, "Output format (text, json or yaml)")
	cmd.Flags().String("ca-cert", "", "Path to a CA certificate bundle for provider requests")
	cmd.Flags().Duration("request-timeout", config.DefaultRequestTimeout, "Timeout of the token request")
	cmd.Flags().String("token-request", "", "Token request encoding, form or json (overrides the preset)")
	cmd.Flags().BoolVar(&askSecret, "ask-secret", false, "Read the client secret from the terminal or stdin")

	return cmd
}

func runLogin(cmd *cobra.Command, v *viper.Viper, deps loginDeps, askSecret bool) error {
	cfg, err := config.Load(v)
	if err != nil {
		return err
	}
	p, err := cfg.Resolve()
	if err != nil {
		return err
	}

	if askSecret {
		secret, err := readSecret(deps.stdin, cmd.ErrOrStderr())
		if err != nil {
			return err
		}
		cfg.ClientSecret = secret
	}
	if cfg.ClientSecret == "" {
		logger.Warnf("No client secret configured; %s will most likely reject the token request", p.DisplayName)
	}

	printer, err := output.NewPrinter(cmd.OutOrStdout(), cfg.Output)
	if err != nil {
		return err
	}

	if err := networking.CheckPort(cfg.Port); err != nil {
		return cfserrors.NewCallbackError("cannot start the callback listener", err)
	}

	client, err := networking.NewHttpClientBuilder().
		WithTimeout(cfg.RequestTimeout).
		WithCABundle(cfg.CACertPath).
		Build()
	if err != nil {
		return cfserrors.NewInvalidArgumentError("failed to create HTTP client", err)
	}

	opts := append([]oauth.FlowOption{oauth.WithHTTPClient(client)}, deps.flowOptions...)
	flow, err := oauth.NewFlow(newFlowConfig(cfg, p), opts...)
	if err != nil {
		return err
	}

	logger.Infof("Logging in to %s (redirect URI %s)", p.DisplayName, cfg.RedirectURI())
	outcome, err := flow.Start(cmd.Context(), cfg.OpenBrowser)
	if err != nil {
		return err
	}

	if len(outcome.Claims) > 0 {
		logger.Debugw("token claims", "claims", map[string]any(outcome.Claims))
	}
	if err := printer.PrintOutcome(outcome); err != nil {
		return err
	}
	if !outcome.Succeeded() {
		return ErrLoginFailed
	}
	return nil
}

func newFlowConfig(cfg *config.Config, p *provider.Provider) *oauth.Config {
	return &oauth.Config{
		ClientID:       p.ClientID,
		ClientSecret:   cfg.ClientSecret,
		AuthURL:        p.AuthURL,
		TokenURL:       p.TokenURL,
		RedirectURL:    cfg.RedirectURI(),
		Scopes:         p.Scopes,
		ScopeDelimiter: p.ScopeDelimiter,
		AuthParams:     p.AuthParams,
		TokenRequest:   p.TokenRequest,
		ListenAddr:     cfg.ListenAddr(),
		CallbackPath:   cfg.CallbackPath,
		ShutdownDelay:  cfg.ShutdownDelay,
	}
}

// readSecret prompts on a terminal without echo and reads one line otherwise
func readSecret(in io.Reader, prompt io.Writer) (string, error) {
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		fmt.Fprint(prompt, "Enter client secret (input will be hidden): ")
		value, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(prompt)
		if err != nil {
			return "", cfserrors.NewInvalidArgumentError("failed to read client secret from terminal", err)
		}
		return strings.TrimSpace(string(value)), nil
	}

	data, err := io.ReadAll(io.LimitReader(in, 4096))
	if err != nil {
		return "", cfserrors.NewInvalidArgumentError("failed to read client secret from stdin", err)
	}
	secret, _, _ := strings.Cut(string(data), "\n")
	secret = strings.TrimSpace(secret)
	if secret == "" {
		return "", cfserrors.NewInvalidArgumentError("client secret read from stdin is empty", nil)
	}
	return secret, nil
}
