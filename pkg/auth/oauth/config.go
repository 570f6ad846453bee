// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package oauth

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/oauth2"

	cfserrors "github.com/cloudfilesync/cfsauth/pkg/errors"
	"github.com/cloudfilesync/cfsauth/pkg/networking"
	"github.com/cloudfilesync/cfsauth/pkg/provider"
)

// Config contains the OAuth 2.0 settings of a single login.
type Config struct {
	// ClientID is the application key registered with the provider
	ClientID string

	// ClientSecret is sent with the token request
	ClientSecret string

	// AuthURL is the consent page
	AuthURL string

	// TokenURL is where the authorization code is exchanged
	TokenURL string

	// RedirectURL is the redirect URI registered with the provider
	RedirectURL string

	// Scopes requested on the consent page
	Scopes []string

	// ScopeDelimiter joins Scopes on the consent URL. Empty means a space.
	ScopeDelimiter string

	// TokenRequest selects the token request encoding, provider.TokenRequestForm
	// (the default) or provider.TokenRequestJSON
	TokenRequest string

	// AuthParams are extra query parameters for the consent page
	AuthParams map[string]string

	// ListenAddr is the address of the local callback listener, e.g. ":8000"
	ListenAddr string

	// CallbackPath is the only path the listener answers on
	CallbackPath string

	// ShutdownDelay keeps the listener alive after the outcome so the
	// browser can finish loading the result page
	ShutdownDelay time.Duration
}

// Validate checks that the configuration can drive a login.
func (c *Config) Validate() error {
	var errs []error

	if strings.TrimSpace(c.ClientID) == "" {
		errs = append(errs, errors.New("client ID is required"))
	}
	if err := networking.ValidateEndpointURL(c.AuthURL); err != nil {
		errs = append(errs, fmt.Errorf("auth URL: %w", err))
	}
	if err := networking.ValidateEndpointURL(c.TokenURL); err != nil {
		errs = append(errs, fmt.Errorf("token URL: %w", err))
	}
	if u, err := url.Parse(c.RedirectURL); err != nil || !u.IsAbs() || u.Host == "" {
		errs = append(errs, fmt.Errorf("redirect URL %q must be an absolute URL", c.RedirectURL))
	}
	if !strings.HasPrefix(c.CallbackPath, "/") {
		errs = append(errs, fmt.Errorf("callback path %q must start with /", c.CallbackPath))
	}
	if c.ShutdownDelay < 0 {
		errs = append(errs, errors.New("shutdown delay must not be negative"))
	}
	switch c.TokenRequest {
	case "", provider.TokenRequestForm, provider.TokenRequestJSON:
	default:
		errs = append(errs, fmt.Errorf("unsupported token request encoding %q", c.TokenRequest))
	}

	if len(errs) > 0 {
		return cfserrors.NewInvalidArgumentError("invalid OAuth configuration", errors.Join(errs...))
	}
	return nil
}

func (c *Config) newExchanger(client *http.Client) Exchanger {
	if c.TokenRequest == provider.TokenRequestJSON {
		return NewJSONExchanger(client, c)
	}
	return NewFormExchanger(client, c)
}

func (c *Config) oauth2Config() *oauth2.Config {
	return &oauth2.Config{
		ClientID:     c.ClientID,
		ClientSecret: c.ClientSecret,
		RedirectURL:  c.RedirectURL,
		Scopes:       c.Scopes,
		Endpoint: oauth2.Endpoint{
			AuthURL:   c.AuthURL,
			TokenURL:  c.TokenURL,
			AuthStyle: oauth2.AuthStyleInParams,
		},
	}
}
