// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package verify checks an access token against a provider's user-info
// endpoint.
package verify

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/tidwall/gjson"

	cfserrors "github.com/cloudfilesync/cfsauth/pkg/errors"
	"github.com/cloudfilesync/cfsauth/pkg/logger"
	"github.com/cloudfilesync/cfsauth/pkg/networking"
	"github.com/cloudfilesync/cfsauth/pkg/versions"
)

const maxUserInfoSize = 1 << 20

// Account describes the user a token belongs to.
type Account struct {
	Name        string `json:"name" yaml:"name"`
	NetdiskName string `json:"netdisk_name,omitempty" yaml:"netdisk_name,omitempty"`
	UK          int64  `json:"uk,omitempty" yaml:"uk,omitempty"`
	UserID      string `json:"user_id,omitempty" yaml:"user_id,omitempty"`
	DriveID     string `json:"drive_id,omitempty" yaml:"drive_id,omitempty"`
	VIPType     int    `json:"vip_type" yaml:"vip_type"`
	AvatarURL   string `json:"avatar_url,omitempty" yaml:"avatar_url,omitempty"`
}

// Membership names the Baidu Netdisk membership level.
func (a *Account) Membership() string {
	switch a.VIPType {
	case 0:
		return "regular"
	case 1:
		return "member"
	case 2:
		return "super member"
	default:
		return fmt.Sprintf("vip type %d", a.VIPType)
	}
}

// Verifier queries a user-info endpoint with an access token.
type Verifier struct {
	client      *http.Client
	userInfoURL string
	method      string
	bearer      bool
}

// Option configures a Verifier.
type Option func(*Verifier)

// WithMethod sets the HTTP method of the user info request. POST requests
// carry an empty JSON object.
func WithMethod(method string) Option {
	return func(v *Verifier) {
		v.method = strings.ToUpper(method)
	}
}

// WithBearerAuth sends the token in an Authorization header instead of the
// access_token query parameter.
func WithBearerAuth() Option {
	return func(v *Verifier) {
		v.bearer = true
	}
}

// NewVerifier creates a Verifier. A nil client uses http.DefaultClient.
func NewVerifier(client *http.Client, userInfoURL string, opts ...Option) (*Verifier, error) {
	if userInfoURL == "" {
		return nil, cfserrors.NewInvalidArgumentError("provider has no user info endpoint", nil)
	}
	if err := networking.ValidateEndpointURL(userInfoURL); err != nil {
		return nil, cfserrors.NewInvalidArgumentError("invalid user info URL", err)
	}
	if client == nil {
		client = http.DefaultClient
	}
	v := &Verifier{client: client, userInfoURL: userInfoURL, method: http.MethodGet}
	for _, opt := range opts {
		opt(v)
	}
	if v.method != http.MethodGet && v.method != http.MethodPost {
		return nil, cfserrors.NewInvalidArgumentError(fmt.Sprintf("unsupported user info method %q", v.method), nil)
	}
	return v, nil
}

// Verify returns the account the token belongs to. A rejected token is a
// provider error.
func (v *Verifier) Verify(ctx context.Context, accessToken string) (*Account, error) {
	if accessToken == "" {
		return nil, cfserrors.NewInvalidArgumentError("access token is required", nil)
	}

	req, err := v.newRequest(ctx, accessToken)
	if err != nil {
		return nil, err
	}

	logger.Debugw("requesting user info", "method", v.method, "url", networking.RedactURL(req.URL.String()))

	resp, err := v.client.Do(req)
	if err != nil {
		return nil, cfserrors.NewTransportError("request failed", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxUserInfoSize))
	if err != nil {
		return nil, cfserrors.NewTransportError("request failed", fmt.Errorf("failed to read user info: %w", err))
	}

	if !gjson.ValidBytes(body) || !gjson.ParseBytes(body).IsObject() {
		if resp.StatusCode >= http.StatusBadRequest {
			return nil, cfserrors.NewTransportError("request failed", networking.NewHTTPErrorFromResponse(resp, body))
		}
		return nil, cfserrors.NewTransportError("request failed", errors.New("user info endpoint returned invalid JSON"))
	}
	return parseUserInfo(gjson.ParseBytes(body), resp)
}

func (v *Verifier) newRequest(ctx context.Context, accessToken string) (*http.Request, error) {
	u, err := url.Parse(v.userInfoURL)
	if err != nil {
		return nil, cfserrors.NewInvalidArgumentError("invalid user info URL", err)
	}
	if !v.bearer {
		q := u.Query()
		q.Set("access_token", accessToken)
		u.RawQuery = q.Encode()
	}

	var body io.Reader
	if v.method == http.MethodPost {
		body = strings.NewReader("{}")
	}
	req, err := http.NewRequestWithContext(ctx, v.method, u.String(), body)
	if err != nil {
		return nil, cfserrors.NewTransportError("request failed", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if v.bearer {
		req.Header.Set("Authorization", "Bearer "+accessToken)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", versions.UserAgent())
	return req, nil
}

func parseUserInfo(res gjson.Result, resp *http.Response) (*Account, error) {
	// Baidu answers 200 with a non-zero errno for rejected tokens
	if errno := res.Get("errno"); errno.Exists() && errno.Int() != 0 {
		msg := res.Get("errmsg").String()
		if msg == "" {
			msg = "token rejected"
		}
		return nil, cfserrors.NewProviderError(fmt.Sprintf("user info rejected (errno %d): %s", errno.Int(), msg), nil)
	}
	if res.Get("error").Exists() {
		desc := res.Get("error_description").String()
		if desc == "" {
			desc = res.Get("error").String()
		}
		return nil, cfserrors.NewProviderError(fmt.Sprintf("user info rejected: %s", desc), nil)
	}
	// Aliyun answers with a string code and a message
	if code := res.Get("code"); code.Type == gjson.String && resp.StatusCode >= http.StatusBadRequest {
		msg := res.Get("message").String()
		if msg == "" {
			msg = code.String()
		}
		return nil, cfserrors.NewProviderError(fmt.Sprintf("user info rejected (%s): %s", code.String(), msg), nil)
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return nil, cfserrors.NewTransportError("request failed", networking.NewHTTPErrorFromResponse(resp, []byte(res.Raw)))
	}

	return &Account{
		Name:        firstString(res, "baidu_name", "name", "nick_name", "preferred_username", "email", "sub"),
		NetdiskName: res.Get("netdisk_name").String(),
		UK:          res.Get("uk").Int(),
		UserID:      res.Get("user_id").String(),
		DriveID:     res.Get("default_drive_id").String(),
		VIPType:     int(res.Get("vip_type").Int()),
		AvatarURL:   firstString(res, "avatar_url", "avatar"),
	}, nil
}

func firstString(res gjson.Result, paths ...string) string {
	for _, p := range paths {
		if v := res.Get(p).String(); v != "" {
			return v
		}
	}
	return ""
}
