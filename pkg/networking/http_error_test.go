// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package networking

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewHTTPError(t *testing.T) {
	t.Parallel()

	err := NewHTTPError(404, "https://pan.baidu.com/rest/2.0/xpan/nas?method=uinfo&access_token=secret", "not found")

	var httpErr *HTTPError
	require.True(t, errors.As(err, &httpErr))
	assert.Equal(t, 404, httpErr.StatusCode)
	assert.Equal(t, "not found", httpErr.Message)
	assert.NotContains(t, httpErr.URL, "secret")
	assert.Contains(t, httpErr.URL, "access_token=REDACTED")
	assert.Contains(t, httpErr.URL, "method=uinfo")
}

func TestHTTPError_Error(t *testing.T) {
	t.Parallel()

	err := &HTTPError{
		StatusCode: 502,
		Message:    "bad gateway",
		URL:        "https://openapi.baidu.com/oauth/2.0/token",
	}

	assert.Equal(t, "HTTP 502 for URL https://openapi.baidu.com/oauth/2.0/token: bad gateway", err.Error())
}

func TestNewHTTPErrorFromResponse(t *testing.T) {
	t.Parallel()

	reqURL, err := url.Parse("https://example.com/userinfo?access_token=abc")
	require.NoError(t, err)

	tests := []struct {
		name        string
		status      int
		body        string
		wantMessage string
	}{
		{
			name:        "body is used as message",
			status:      http.StatusUnauthorized,
			body:        `  {"errno":-6}  `,
			wantMessage: `{"errno":-6}`,
		},
		{
			name:        "empty body falls back to status text",
			status:      http.StatusServiceUnavailable,
			body:        "",
			wantMessage: "Service Unavailable",
		},
		{
			name:        "truncation keeps multi-byte runes whole",
			status:      http.StatusBadRequest,
			body:        strings.Repeat("a", maxErrorPreview-1) + "错误",
			wantMessage: strings.Repeat("a", maxErrorPreview-1) + "...",
		},
		{
			name:        "long body is truncated",
			status:      http.StatusInternalServerError,
			body:        strings.Repeat("x", 1000),
			wantMessage: strings.Repeat("x", maxErrorPreview) + "...",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			resp := &http.Response{
				StatusCode: tt.status,
				Request:    &http.Request{URL: reqURL},
			}

			err := NewHTTPErrorFromResponse(resp, []byte(tt.body))

			var httpErr *HTTPError
			require.True(t, errors.As(err, &httpErr))
			assert.Equal(t, tt.status, httpErr.StatusCode)
			assert.Equal(t, tt.wantMessage, httpErr.Message)
			assert.NotContains(t, httpErr.URL, "abc")
		})
	}
}

func TestIsHTTPError(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		err        error
		statusCode int
		expected   bool
	}{
		{
			name:       "matching HTTPError",
			err:        &HTTPError{StatusCode: 404, URL: "http://example.com"},
			statusCode: 404,
			expected:   true,
		},
		{
			name:       "non-matching status code",
			err:        &HTTPError{StatusCode: 404, URL: "http://example.com"},
			statusCode: 500,
			expected:   false,
		},
		{
			name:       "any HTTPError with statusCode 0",
			err:        &HTTPError{StatusCode: 403, URL: "http://example.com"},
			statusCode: 0,
			expected:   true,
		},
		{
			name:       "non-HTTPError",
			err:        errors.New("some other error"),
			statusCode: 404,
			expected:   false,
		},
		{
			name:       "wrapped HTTPError",
			err:        fmt.Errorf("wrapped: %w", &HTTPError{StatusCode: 500, URL: "http://example.com"}),
			statusCode: 500,
			expected:   true,
		},
		{
			name:       "nil error",
			err:        nil,
			statusCode: 404,
			expected:   false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.expected, IsHTTPError(tt.err, tt.statusCode))
		})
	}
}

func TestRedactURL(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "no query is unchanged",
			input:    "https://openapi.baidu.com/oauth/2.0/token",
			expected: "https://openapi.baidu.com/oauth/2.0/token",
		},
		{
			name:     "non-credential query is unchanged",
			input:    "https://pan.baidu.com/rest/2.0/xpan/nas?method=uinfo",
			expected: "https://pan.baidu.com/rest/2.0/xpan/nas?method=uinfo",
		},
		{
			name:     "code is redacted",
			input:    "http://localhost:8000/callback?code=abc",
			expected: "http://localhost:8000/callback?code=REDACTED",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.expected, RedactURL(tt.input))
		})
	}
}
