// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package oauth

import (
	"html/template"
	"net/http"

	"github.com/cloudfilesync/cfsauth/pkg/logger"
)

type pageKind string

const (
	pageSuccess pageKind = "success"
	pageError   pageKind = "error"
	pageInfo    pageKind = "info"
)

type page struct {
	Kind    pageKind
	Title   string
	Message string
	Token   string
	Hint    string
}

var pageTemplate = template.Must(template.New("page").Parse(`<!DOCTYPE html>
<html>
<head>
    <title>{{.Title}}</title>
    <meta charset="utf-8">
    <meta name="viewport" content="width=device-width, initial-scale=1">
    <style>
        body { font-family: Arial, sans-serif; margin: 40px; text-align: center; }
        .container { max-width: 600px; margin: 0 auto; }
        .message { padding: 20px; border-radius: 5px; margin: 20px 0; }
        .success { background-color: #e7f6e7; border: 1px solid #b3e6b3; color: #006600; }
        .error { background-color: #ffe7e7; border: 1px solid #ffb3b3; color: #cc0000; }
        .info { background-color: #e7f0ff; border: 1px solid #b3ccff; color: #003399; }
        textarea { width: 100%; height: 100px; font-family: monospace; }
    </style>
</head>
<body>
    <div class="container">
        <h1>{{.Title}}</h1>
        <div class="message {{.Kind}}">
            {{- if .Message}}
            <p>{{.Message}}</p>
            {{- end}}
            {{- if .Token}}
            <p>Your access token:</p>
            <textarea readonly>{{.Token}}</textarea>
            {{- end}}
            {{- if .Hint}}
            <p>{{.Hint}}</p>
            {{- end}}
        </div>
    </div>
</body>
</html>
`))

// setSecurityHeaders sets common security headers for all responses
func setSecurityHeaders(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Pragma", "no-cache")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.Header().Set("X-Frame-Options", "DENY")
	w.Header().Set("Referrer-Policy", "no-referrer")
	w.Header().Set("Content-Security-Policy", "default-src 'self'; style-src 'unsafe-inline'; script-src 'none'; object-src 'none';")
}

func writePage(w http.ResponseWriter, status int, p page) {
	setSecurityHeaders(w)
	w.WriteHeader(status)
	if err := pageTemplate.Execute(w, p); err != nil {
		logger.Warnf("Failed to write HTML content: %v", err)
	}
}

func writeTokenPage(w http.ResponseWriter, accessToken string) {
	writePage(w, http.StatusOK, page{
		Kind:  pageSuccess,
		Title: "Authorization Successful",
		Token: accessToken,
		Hint:  "Copy the token above into your CloudFileSync configuration. You can close this window.",
	})
}

func writeErrorPage(w http.ResponseWriter, status int, message string) {
	writePage(w, status, page{
		Kind:    pageError,
		Title:   "Authorization Failed",
		Message: message,
		Hint:    "Return to the terminal and run the login again.",
	})
}

func writeInfoPage(w http.ResponseWriter, status int, message string) {
	writePage(w, status, page{
		Kind:    pageInfo,
		Title:   "cfsauth",
		Message: message,
	})
}
