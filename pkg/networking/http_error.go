// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package networking

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"unicode/utf8"
)

// maxErrorPreview bounds how much of a response body ends up in an error.
const maxErrorPreview = 256

// credentialParams are query parameters that must never appear in errors or logs.
var credentialParams = []string{"access_token", "client_secret", "code"}

// HTTPError represents an unexpected HTTP status from a provider endpoint.
type HTTPError struct {
	// StatusCode is the HTTP status code.
	StatusCode int

	// Message is a preview of the response body.
	Message string

	// URL is the requested URL with credentials redacted.
	URL string
}

// Error implements the error interface.
func (e *HTTPError) Error() string {
	return fmt.Sprintf("HTTP %d for URL %s: %s", e.StatusCode, e.URL, e.Message)
}

// NewHTTPError creates a new HTTP error. Credential query parameters in the
// URL are redacted.
func NewHTTPError(statusCode int, rawURL, message string) error {
	return &HTTPError{
		StatusCode: statusCode,
		URL:        RedactURL(rawURL),
		Message:    message,
	}
}

// NewHTTPErrorFromResponse builds an HTTPError from a response and the body
// that was already read from it.
func NewHTTPErrorFromResponse(resp *http.Response, body []byte) error {
	preview := strings.TrimSpace(string(body))
	if len(preview) > maxErrorPreview {
		cut := maxErrorPreview
		for cut > 0 && !utf8.RuneStart(preview[cut]) {
			cut--
		}
		preview = preview[:cut] + "..."
	}
	if preview == "" {
		preview = http.StatusText(resp.StatusCode)
	}
	rawURL := ""
	if resp.Request != nil && resp.Request.URL != nil {
		rawURL = resp.Request.URL.String()
	}
	return NewHTTPError(resp.StatusCode, rawURL, preview)
}

// IsHTTPError checks if an error is an HTTPError with the specified status code.
// If statusCode is 0, it matches any HTTPError.
func IsHTTPError(err error, statusCode int) bool {
	var httpErr *HTTPError
	if !errors.As(err, &httpErr) {
		return false
	}
	if statusCode == 0 {
		return true
	}
	return httpErr.StatusCode == statusCode
}

// RedactURL replaces the values of credential query parameters with "REDACTED".
// Unparseable input is returned unchanged.
func RedactURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.RawQuery == "" {
		return rawURL
	}
	q := u.Query()
	redacted := false
	for _, p := range credentialParams {
		if q.Has(p) {
			q.Set(p, "REDACTED")
			redacted = true
		}
	}
	if !redacted {
		return rawURL
	}
	u.RawQuery = q.Encode()
	return u.String()
}
