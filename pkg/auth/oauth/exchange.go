// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package oauth

//go:generate mockgen -destination=mocks/mock_exchanger.go -package=mocks -source=exchange.go Exchanger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/tidwall/gjson"
	"golang.org/x/oauth2"

	cfserrors "github.com/cloudfilesync/cfsauth/pkg/errors"
	"github.com/cloudfilesync/cfsauth/pkg/logger"
	"github.com/cloudfilesync/cfsauth/pkg/networking"
	"github.com/cloudfilesync/cfsauth/pkg/versions"
)

const (
	// DefaultErrorDescription is used when the provider answers without an
	// access token and without an error_description
	DefaultErrorDescription = "unknown error"

	// requestFailed prefixes every transport failure
	requestFailed = "request failed"

	// maxTokenResponseSize bounds how much of a token response is read
	maxTokenResponseSize = 1 << 20
)

// Exchanger turns an authorization code into a token.
type Exchanger interface {
	Exchange(ctx context.Context, code string) (*oauth2.Token, error)
}

// ProviderError is an error answer from the token endpoint.
type ProviderError struct {
	// Code is the OAuth error code, e.g. invalid_grant. May be empty.
	Code string

	// Description is the error_description, or DefaultErrorDescription
	Description string
}

// Error implements the error interface.
func (e *ProviderError) Error() string {
	return e.Description
}

// IsProviderError reports whether err carries a ProviderError.
func IsProviderError(err error) bool {
	var pe *ProviderError
	return errors.As(err, &pe)
}

// tokenEndpoint carries what every token request needs.
type tokenEndpoint struct {
	client       *http.Client
	tokenURL     string
	clientID     string
	clientSecret string
	redirectURL  string
}

func newTokenEndpoint(client *http.Client, cfg *Config) tokenEndpoint {
	if client == nil {
		client = http.DefaultClient
	}
	return tokenEndpoint{
		client:       client,
		tokenURL:     cfg.TokenURL,
		clientID:     cfg.ClientID,
		clientSecret: cfg.ClientSecret,
		redirectURL:  cfg.RedirectURL,
	}
}

// FormExchanger posts the authorization code to the token endpoint as an
// application/x-www-form-urlencoded body and reads the JSON answer.
type FormExchanger struct {
	tokenEndpoint
}

// NewFormExchanger creates a FormExchanger. A nil client uses
// http.DefaultClient.
func NewFormExchanger(client *http.Client, cfg *Config) *FormExchanger {
	return &FormExchanger{tokenEndpoint: newTokenEndpoint(client, cfg)}
}

// Exchange implements Exchanger. It makes exactly one request.
func (e *FormExchanger) Exchange(ctx context.Context, code string) (*oauth2.Token, error) {
	form := url.Values{
		"grant_type":    {"authorization_code"},
		"code":          {code},
		"client_id":     {e.clientID},
		"client_secret": {e.clientSecret},
		"redirect_uri":  {e.redirectURL},
	}
	return e.post(ctx, "application/x-www-form-urlencoded", []byte(form.Encode()))
}

// JSONExchanger posts the authorization code as an application/json body,
// as the Aliyun Drive open platform expects.
type JSONExchanger struct {
	tokenEndpoint
}

// NewJSONExchanger creates a JSONExchanger. A nil client uses
// http.DefaultClient.
func NewJSONExchanger(client *http.Client, cfg *Config) *JSONExchanger {
	return &JSONExchanger{tokenEndpoint: newTokenEndpoint(client, cfg)}
}

// Exchange implements Exchanger. It makes exactly one request.
func (e *JSONExchanger) Exchange(ctx context.Context, code string) (*oauth2.Token, error) {
	body, err := json.Marshal(map[string]string{
		"grant_type":    "authorization_code",
		"code":          code,
		"client_id":     e.clientID,
		"client_secret": e.clientSecret,
	})
	if err != nil {
		return nil, cfserrors.NewInternalError("failed to encode token request", err)
	}
	return e.post(ctx, "application/json", body)
}

func (e *tokenEndpoint) post(ctx context.Context, contentType string, payload []byte) (*oauth2.Token, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.tokenURL, bytes.NewReader(payload))
	if err != nil {
		return nil, cfserrors.NewTransportError(requestFailed, err)
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", versions.UserAgent())

	logger.Debugw("exchanging authorization code",
		"token_url", networking.RedactURL(e.tokenURL), "content_type", contentType)

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, cfserrors.NewTransportError(requestFailed, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxTokenResponseSize))
	if err != nil {
		return nil, cfserrors.NewTransportError(requestFailed, fmt.Errorf("failed to read token response: %w", err))
	}

	logger.Debugw("token endpoint answered", "status", resp.StatusCode, "bytes", len(body))

	token, err := parseTokenResponse(body)
	if err != nil && !IsProviderError(err) && resp.StatusCode >= http.StatusBadRequest {
		return nil, cfserrors.NewTransportError(requestFailed, networking.NewHTTPErrorFromResponse(resp, body))
	}
	return token, err
}

// parseTokenResponse reads a token endpoint body. The body is interpreted
// the same way whatever the HTTP status was.
func parseTokenResponse(body []byte) (*oauth2.Token, error) {
	if !gjson.ValidBytes(body) {
		return nil, cfserrors.NewTransportError(requestFailed, errors.New("token endpoint returned invalid JSON"))
	}
	res := gjson.ParseBytes(body)
	if !res.IsObject() {
		return nil, cfserrors.NewTransportError(requestFailed, errors.New("token endpoint did not return a JSON object"))
	}

	access := res.Get("access_token")
	if !isScalar(access) || access.String() == "" {
		// RFC 6749 fields first, then the Aliyun code/message pair
		desc := firstString(res, "error_description", "message")
		if desc == "" {
			desc = DefaultErrorDescription
		}
		return nil, &ProviderError{Code: firstString(res, "error", "code"), Description: desc}
	}

	token := &oauth2.Token{
		AccessToken:  access.String(),
		TokenType:    res.Get("token_type").String(),
		RefreshToken: res.Get("refresh_token").String(),
	}
	if expiresIn := res.Get("expires_in").Int(); expiresIn > 0 {
		token.ExpiresIn = expiresIn
		token.Expiry = time.Now().Add(time.Duration(expiresIn) * time.Second)
	}

	extra := make(map[string]interface{})
	res.ForEach(func(key, value gjson.Result) bool {
		extra[key.String()] = value.Value()
		return true
	})
	return token.WithExtra(extra), nil
}

func firstString(res gjson.Result, paths ...string) string {
	for _, p := range paths {
		if v := res.Get(p); v.Type == gjson.String && v.String() != "" {
			return v.String()
		}
	}
	return ""
}

func isScalar(r gjson.Result) bool {
	return r.Type == gjson.String || r.Type == gjson.Number
}
