// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package oauth

import (
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cfserrors "github.com/cloudfilesync/cfsauth/pkg/errors"
	"github.com/cloudfilesync/cfsauth/pkg/provider"
)

func validConfig() *Config {
	return &Config{
		ClientID:      "8Q4pf1s8G1iG9l1m1nP2qO3t1G2fS3l1",
		AuthURL:       "https://openapi.baidu.com/oauth/2.0/authorize",
		TokenURL:      "https://openapi.baidu.com/oauth/2.0/token",
		RedirectURL:   "http://localhost:8000/callback",
		Scopes:        []string{"netdisk"},
		ListenAddr:    ":8000",
		CallbackPath:  "/callback",
		ShutdownDelay: 5 * time.Second,
	}
}

func TestConfig_Validate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		mutate      func(c *Config)
		errContains string
	}{
		{name: "valid", mutate: func(*Config) {}},
		{name: "no client secret is fine", mutate: func(c *Config) { c.ClientSecret = "" }},
		{name: "loopback http token URL", mutate: func(c *Config) { c.TokenURL = "http://127.0.0.1:9000/token" }},
		{name: "missing client ID", mutate: func(c *Config) { c.ClientID = "  " }, errContains: "client ID is required"},
		{name: "plain http auth URL", mutate: func(c *Config) { c.AuthURL = "http://openapi.baidu.com/oauth/2.0/authorize" }, errContains: "auth URL"},
		{name: "empty token URL", mutate: func(c *Config) { c.TokenURL = "" }, errContains: "token URL"},
		{name: "relative redirect URL", mutate: func(c *Config) { c.RedirectURL = "/callback" }, errContains: "redirect URL"},
		{name: "bad callback path", mutate: func(c *Config) { c.CallbackPath = "callback" }, errContains: "callback path"},
		{name: "negative delay", mutate: func(c *Config) { c.ShutdownDelay = -1 }, errContains: "shutdown delay"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := validConfig()
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.errContains == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, cfserrors.IsInvalidArgument(err))
			assert.Contains(t, err.Error(), tt.errContains)
		})
	}
}

func TestNewFlow_RejectsInvalidConfig(t *testing.T) {
	t.Parallel()

	_, err := NewFlow(nil)
	require.Error(t, err)
	assert.True(t, cfserrors.IsInvalidArgument(err))

	cfg := validConfig()
	cfg.ClientID = ""
	_, err = NewFlow(cfg)
	require.Error(t, err)
	assert.True(t, cfserrors.IsInvalidArgument(err))
}

func TestNewFlow_DefaultExchanger(t *testing.T) {
	t.Parallel()

	flow, err := NewFlow(validConfig())
	require.NoError(t, err)
	assert.IsType(t, &FormExchanger{}, flow.exchanger)
	assert.NotNil(t, flow.openURL)
	assert.Empty(t, flow.Addr())
}

func TestNewFlow_JSONExchanger(t *testing.T) {
	t.Parallel()

	cfg := validConfig()
	cfg.TokenRequest = provider.TokenRequestJSON
	flow, err := NewFlow(cfg)
	require.NoError(t, err)
	assert.IsType(t, &JSONExchanger{}, flow.exchanger)

	cfg = validConfig()
	cfg.TokenRequest = "xml"
	_, err = NewFlow(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unsupported token request encoding "xml"`)
}

func TestFlow_AuthCodeURLScopeDelimiter(t *testing.T) {
	t.Parallel()

	cfg := validConfig()
	cfg.AuthURL = "https://openapi.alipan.com/oauth/authorize"
	cfg.Scopes = []string{"user:base", "file:all:read"}
	cfg.ScopeDelimiter = ","
	flow, err := NewFlow(cfg)
	require.NoError(t, err)

	u, err := url.Parse(flow.AuthCodeURL())
	require.NoError(t, err)
	assert.Equal(t, "user:base,file:all:read", u.Query().Get("scope"))

	// an explicit auth param still wins
	cfg.AuthParams = map[string]string{"scope": "user:base"}
	flow, err = NewFlow(cfg)
	require.NoError(t, err)
	u, err = url.Parse(flow.AuthCodeURL())
	require.NoError(t, err)
	assert.Equal(t, "user:base", u.Query().Get("scope"))
}

func TestFlow_AuthCodeURL(t *testing.T) {
	t.Parallel()

	cfg := validConfig()
	cfg.AuthParams = map[string]string{"display": "popup"}
	flow, err := NewFlow(cfg)
	require.NoError(t, err)

	u, err := url.Parse(flow.AuthCodeURL())
	require.NoError(t, err)

	assert.Equal(t, "https", u.Scheme)
	assert.Equal(t, "openapi.baidu.com", u.Host)
	assert.Equal(t, "/oauth/2.0/authorize", u.Path)

	q := u.Query()
	assert.Equal(t, "code", q.Get("response_type"))
	assert.Equal(t, cfg.ClientID, q.Get("client_id"))
	assert.Equal(t, "http://localhost:8000/callback", q.Get("redirect_uri"))
	assert.Equal(t, "netdisk", q.Get("scope"))
	assert.Equal(t, "popup", q.Get("display"))
	assert.False(t, q.Has("code_challenge"))
}
