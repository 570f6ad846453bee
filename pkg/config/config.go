// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package config contains the cfsauth configuration structure and the logic
// required to load it from defaults, the config file, the environment and
// command-line flags.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/adrg/xdg"
	"github.com/spf13/viper"

	cfserrors "github.com/cloudfilesync/cfsauth/pkg/errors"
	"github.com/cloudfilesync/cfsauth/pkg/networking"
	"github.com/cloudfilesync/cfsauth/pkg/output"
	"github.com/cloudfilesync/cfsauth/pkg/provider"
)

// EnvPrefix is the prefix of every environment variable cfsauth reads.
const EnvPrefix = "CFSAUTH"

// Keys shared by the config file, the environment and flag bindings.
const (
	KeyProvider       = "provider"
	KeyClientID       = "client_id"
	KeyClientSecret   = "client_secret"
	KeyAuthURL        = "auth_url"
	KeyTokenURL       = "token_url"
	KeyUserInfoURL    = "user_info_url"
	KeyScopes         = "scopes"
	KeyAuthParams     = "auth_params"
	KeyPort           = "port"
	KeyCallbackPath   = "callback_path"
	KeyRedirectURL    = "redirect_url"
	KeyShutdownDelay  = "shutdown_delay"
	KeyOpenBrowser    = "open_browser"
	KeyOutput         = "output"
	KeyCACertPath     = "ca_cert_path"
	KeyRequestTimeout = "request_timeout"
	KeyTokenRequest   = "token_request"

	// KeyConfig holds an explicit config file path
	KeyConfig = "config"
)

// Default values
const (
	DefaultProvider       = provider.Baidu
	DefaultPort           = 8000
	DefaultCallbackPath   = "/callback"
	DefaultShutdownDelay  = 5 * time.Second
	DefaultRequestTimeout = 30 * time.Second
)

// Config represents the resolved cfsauth settings.
type Config struct {
	Provider       string            `yaml:"provider"`
	ClientID       string            `yaml:"client_id,omitempty"`
	ClientSecret   string            `yaml:"client_secret,omitempty"`
	AuthURL        string            `yaml:"auth_url,omitempty"`
	TokenURL       string            `yaml:"token_url,omitempty"`
	UserInfoURL    string            `yaml:"user_info_url,omitempty"`
	Scopes         []string          `yaml:"scopes,omitempty"`
	AuthParams     map[string]string `yaml:"auth_params,omitempty"`
	Port           int               `yaml:"port"`
	CallbackPath   string            `yaml:"callback_path"`
	RedirectURL    string            `yaml:"redirect_url,omitempty"`
	ShutdownDelay  time.Duration     `yaml:"shutdown_delay"`
	OpenBrowser    bool              `yaml:"open_browser"`
	Output         string            `yaml:"output"`
	CACertPath     string            `yaml:"ca_cert_path,omitempty"`
	RequestTimeout time.Duration     `yaml:"request_timeout"`
	TokenRequest   string            `yaml:"token_request,omitempty"`
}

// defaultPathGenerator locates an existing config file in the xdg config dirs
var defaultPathGenerator = func() (string, error) {
	return xdg.SearchConfigFile("cfsauth/config.yaml")
}

// getConfigPath is the current path generator, can be replaced in tests
var getConfigPath = defaultPathGenerator

// SetDefaults registers the default value of every key on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault(KeyProvider, DefaultProvider)
	v.SetDefault(KeyPort, DefaultPort)
	v.SetDefault(KeyCallbackPath, DefaultCallbackPath)
	v.SetDefault(KeyShutdownDelay, DefaultShutdownDelay)
	v.SetDefault(KeyOpenBrowser, true)
	v.SetDefault(KeyOutput, output.FormatText)
	v.SetDefault(KeyRequestTimeout, DefaultRequestTimeout)
}

// NewViper returns a viper instance with defaults registered and CFSAUTH_*
// environment variables bound.
func NewViper() *viper.Viper {
	v := viper.New()
	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()
	return v
}

// ReadConfigFile merges a YAML config file into v and returns its path.
// An empty path means the default xdg location; a missing default file is
// not an error and yields an empty path.
func ReadConfigFile(v *viper.Viper, path string) (string, error) {
	if path == "" {
		found, err := getConfigPath()
		if err != nil {
			// nothing under $XDG_CONFIG_HOME or $XDG_CONFIG_DIRS
			return "", nil
		}
		path = found
	}

	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	if err := v.ReadInConfig(); err != nil {
		return "", cfserrors.NewInvalidArgumentError(fmt.Sprintf("failed to read config file %s", path), err)
	}
	return path, nil
}

// Load builds a Config from v and validates it.
func Load(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		Provider:       strings.ToLower(strings.TrimSpace(v.GetString(KeyProvider))),
		ClientID:       v.GetString(KeyClientID),
		ClientSecret:   v.GetString(KeyClientSecret),
		AuthURL:        v.GetString(KeyAuthURL),
		TokenURL:       v.GetString(KeyTokenURL),
		UserInfoURL:    v.GetString(KeyUserInfoURL),
		Scopes:         v.GetStringSlice(KeyScopes),
		AuthParams:     v.GetStringMapString(KeyAuthParams),
		TokenRequest:   strings.ToLower(strings.TrimSpace(v.GetString(KeyTokenRequest))),
		Port:           v.GetInt(KeyPort),
		CallbackPath:   v.GetString(KeyCallbackPath),
		RedirectURL:    v.GetString(KeyRedirectURL),
		ShutdownDelay:  v.GetDuration(KeyShutdownDelay),
		OpenBrowser:    v.GetBool(KeyOpenBrowser),
		Output:         strings.ToLower(v.GetString(KeyOutput)),
		CACertPath:     v.GetString(KeyCACertPath),
		RequestTimeout: v.GetDuration(KeyRequestTimeout),
	}
	if len(cfg.AuthParams) == 0 {
		cfg.AuthParams = nil
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the settings that do not depend on the provider preset.
func (c *Config) Validate() error {
	var errs []error

	if _, err := provider.Get(c.Provider); err != nil {
		errs = append(errs, err)
	}
	if c.Port < 1 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("port %d out of range [1, 65535]", c.Port))
	}
	if !strings.HasPrefix(c.CallbackPath, "/") {
		errs = append(errs, fmt.Errorf("callback path %q must start with /", c.CallbackPath))
	}
	if c.ShutdownDelay < 0 {
		errs = append(errs, fmt.Errorf("shutdown delay must not be negative, got %s", c.ShutdownDelay))
	}
	if c.RequestTimeout <= 0 {
		errs = append(errs, fmt.Errorf("request timeout must be positive, got %s", c.RequestTimeout))
	}
	if err := output.ValidateFormat(c.Output); err != nil {
		errs = append(errs, err)
	}
	if c.RedirectURL != "" {
		u, err := url.Parse(c.RedirectURL)
		switch {
		case err != nil || !u.IsAbs() || u.Host == "":
			errs = append(errs, fmt.Errorf("redirect URL %q must be an absolute URL", c.RedirectURL))
		case u.Path != c.CallbackPath:
			// the listener only answers on the callback path
			errs = append(errs, fmt.Errorf("redirect URL path %q does not match callback path %q", u.Path, c.CallbackPath))
		}
	}
	switch c.TokenRequest {
	case "", provider.TokenRequestForm, provider.TokenRequestJSON:
	default:
		errs = append(errs, fmt.Errorf("token request %q must be %s or %s",
			c.TokenRequest, provider.TokenRequestForm, provider.TokenRequestJSON))
	}

	if len(errs) > 0 {
		return cfserrors.NewInvalidArgumentError("invalid configuration", errors.Join(errs...))
	}
	return nil
}

// RedirectURI returns the redirect URI registered with the provider. Unless
// overridden it points at the local callback listener.
func (c *Config) RedirectURI() string {
	if c.RedirectURL != "" {
		return c.RedirectURL
	}
	return fmt.Sprintf("http://localhost:%d%s", c.Port, c.CallbackPath)
}

// ListenAddr is the address the callback listener binds to.
func (c *Config) ListenAddr() string {
	return networking.ListenAddr(c.Port)
}

// Resolve merges the named provider preset with the endpoint and client
// overrides from the configuration.
func (c *Config) Resolve() (*provider.Provider, error) {
	p, err := c.Merge()
	if err != nil {
		return nil, err
	}

	var missing []string
	if p.ClientID == "" {
		missing = append(missing, KeyClientID)
	}
	if p.AuthURL == "" {
		missing = append(missing, KeyAuthURL)
	}
	if p.TokenURL == "" {
		missing = append(missing, KeyTokenURL)
	}
	if len(missing) > 0 {
		return nil, cfserrors.NewInvalidArgumentError(
			fmt.Sprintf("provider %s requires %s", p.Name, strings.Join(missing, ", ")), nil)
	}
	return p, nil
}

// Merge applies the overrides to the named preset without requiring the
// settings a login needs. `cfsauth verify` uses it.
func (c *Config) Merge() (*provider.Provider, error) {
	p, err := provider.Get(c.Provider)
	if err != nil {
		return nil, err
	}

	overrideString(&p.ClientID, c.ClientID)
	overrideString(&p.AuthURL, c.AuthURL)
	overrideString(&p.TokenURL, c.TokenURL)
	overrideString(&p.UserInfoURL, c.UserInfoURL)
	overrideString(&p.TokenRequest, c.TokenRequest)
	if len(c.Scopes) > 0 {
		p.Scopes = c.Scopes
	}
	if len(c.AuthParams) > 0 {
		if p.AuthParams == nil {
			p.AuthParams = make(map[string]string, len(c.AuthParams))
		}
		for k, val := range c.AuthParams {
			p.AuthParams[k] = val
		}
	}
	return p, nil
}

func overrideString(dst *string, val string) {
	if v := strings.TrimSpace(val); v != "" {
		*dst = v
	}
}
