// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package provider holds the OAuth endpoint presets for the cloud-storage
// providers CloudFileSync can sync to.
package provider

import (
	"fmt"
	"maps"
	"net/http"
	"slices"
	"strings"

	"github.com/cloudfilesync/cfsauth/pkg/errors"
)

const (
	// Aliyun is the Aliyun Drive (alipan.com) open platform preset
	Aliyun = "aliyun"
	// Baidu is the Baidu Netdisk (pan.baidu.com) preset
	Baidu = "baidu"
	// Custom is a provider whose endpoints all come from configuration
	Custom = "custom"
)

// Token request encodings
const (
	// TokenRequestForm posts an application/x-www-form-urlencoded body
	TokenRequestForm = "form"
	// TokenRequestJSON posts an application/json body
	TokenRequestJSON = "json"
)

// How the access token is presented to the user info endpoint
const (
	// UserInfoQuery sends it as the access_token query parameter
	UserInfoQuery = "query"
	// UserInfoBearer sends it in an Authorization: Bearer header
	UserInfoBearer = "bearer"
)

// Provider describes the OAuth 2.0 endpoints of an identity provider.
type Provider struct {
	// Name is the preset identifier used on the command line
	Name string `json:"name" yaml:"name"`

	// DisplayName is shown to humans
	DisplayName string `json:"display_name" yaml:"display_name"`

	// AuthURL is the authorization (consent page) endpoint
	AuthURL string `json:"auth_url" yaml:"auth_url"`

	// TokenURL is the token endpoint the authorization code is exchanged at
	TokenURL string `json:"token_url" yaml:"token_url"`

	// UserInfoURL is used by `cfsauth verify` to check a token
	UserInfoURL string `json:"user_info_url,omitempty" yaml:"user_info_url,omitempty"`

	// Scopes requested on the consent page
	Scopes []string `json:"scopes,omitempty" yaml:"scopes,omitempty"`

	// ScopeDelimiter joins Scopes on the consent URL. Empty means a space.
	ScopeDelimiter string `json:"scope_delimiter,omitempty" yaml:"scope_delimiter,omitempty"`

	// ClientID is the application key registered with the provider, if the
	// preset ships one
	ClientID string `json:"client_id,omitempty" yaml:"client_id,omitempty"`

	// AuthParams are extra query parameters appended to the consent URL
	AuthParams map[string]string `json:"auth_params,omitempty" yaml:"auth_params,omitempty"`

	// TokenRequest is TokenRequestForm or TokenRequestJSON. Empty means form.
	TokenRequest string `json:"token_request,omitempty" yaml:"token_request,omitempty"`

	// UserInfoMethod is the HTTP method of the user info request. Empty means GET.
	UserInfoMethod string `json:"user_info_method,omitempty" yaml:"user_info_method,omitempty"`

	// UserInfoAuth is UserInfoQuery or UserInfoBearer. Empty means query.
	UserInfoAuth string `json:"user_info_auth,omitempty" yaml:"user_info_auth,omitempty"`
}

var presets = map[string]Provider{
	Aliyun: {
		Name:           Aliyun,
		DisplayName:    "Aliyun Drive",
		AuthURL:        "https://openapi.alipan.com/oauth/authorize",
		TokenURL:       "https://openapi.alipan.com/oauth/access_token",
		UserInfoURL:    "https://openapi.alipan.com/adrive/v1.0/user/getDriveInfo",
		Scopes:         []string{"user:base", "file:all:read", "file:all:write"},
		ScopeDelimiter: ",",
		TokenRequest:   TokenRequestJSON,
		UserInfoMethod: http.MethodPost,
		UserInfoAuth:   UserInfoBearer,
	},
	Baidu: {
		Name:        Baidu,
		DisplayName: "Baidu Netdisk",
		AuthURL:     "https://openapi.baidu.com/oauth/2.0/authorize",
		TokenURL:    "https://openapi.baidu.com/oauth/2.0/token",
		UserInfoURL: "https://pan.baidu.com/rest/2.0/xpan/nas?method=uinfo",
		Scopes:      []string{"netdisk"},
		ClientID:    "8Q4pf1s8G1iG9l1m1nP2qO3t1G2fS3l1",
	},
	Custom: {
		Name:        Custom,
		DisplayName: "Custom OAuth 2.0 provider",
	},
}

// Get returns a copy of the named preset.
func Get(name string) (*Provider, error) {
	p, ok := presets[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return nil, errors.NewInvalidArgumentError(
			fmt.Sprintf("unknown provider %q (valid providers: %s)", name, strings.Join(Names(), ", ")), nil)
	}
	c := p.clone()
	return &c, nil
}

// Names returns the preset identifiers in sorted order.
func Names() []string {
	return slices.Sorted(maps.Keys(presets))
}

// List returns copies of all presets sorted by name.
func List() []Provider {
	out := make([]Provider, 0, len(presets))
	for _, name := range Names() {
		out = append(out, presets[name].clone())
	}
	return out
}

// ScopeString returns the scopes as sent on the consent URL.
func (p Provider) ScopeString() string {
	delim := p.ScopeDelimiter
	if delim == "" {
		delim = " "
	}
	return strings.Join(p.Scopes, delim)
}

func (p Provider) clone() Provider {
	p.Scopes = slices.Clone(p.Scopes)
	p.AuthParams = maps.Clone(p.AuthParams)
	return p
}
