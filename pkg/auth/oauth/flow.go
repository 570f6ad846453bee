// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package oauth runs a one-shot OAuth 2.0 authorization code login against a
// cloud-storage provider using a local callback listener.
package oauth

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/pkg/browser"
	"golang.org/x/oauth2"
	"golang.org/x/sync/errgroup"

	cfserrors "github.com/cloudfilesync/cfsauth/pkg/errors"
	"github.com/cloudfilesync/cfsauth/pkg/logger"
)

const serverShutdownTimeout = 5 * time.Second

// Flow handles a single authorization code login.
type Flow struct {
	config       *Config
	oauth2Config *oauth2.Config
	httpClient   *http.Client
	exchanger    Exchanger
	openURL      func(string) error

	// consumed is set once a callback has claimed the run
	consumed atomic.Bool
	outcomes chan *Outcome
	addr     atomic.Pointer[string]
}

// FlowOption customizes a Flow.
type FlowOption func(*Flow)

// WithExchanger replaces the token exchange.
func WithExchanger(e Exchanger) FlowOption {
	return func(f *Flow) {
		f.exchanger = e
	}
}

// WithBrowser replaces the function used to open the consent page.
func WithBrowser(open func(url string) error) FlowOption {
	return func(f *Flow) {
		f.openURL = open
	}
}

// WithHTTPClient sets the client used by the default FormExchanger.
func WithHTTPClient(client *http.Client) FlowOption {
	return func(f *Flow) {
		f.httpClient = client
	}
}

// NewFlow creates a new login flow.
func NewFlow(config *Config, opts ...FlowOption) (*Flow, error) {
	if config == nil {
		return nil, cfserrors.NewInvalidArgumentError("OAuth config cannot be nil", nil)
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}

	f := &Flow{
		config:       config,
		oauth2Config: config.oauth2Config(),
		openURL:      browser.OpenURL,
		outcomes:     make(chan *Outcome, 1),
	}
	for _, opt := range opts {
		opt(f)
	}
	if f.exchanger == nil {
		f.exchanger = config.newExchanger(f.httpClient)
	}
	return f, nil
}

// AuthCodeURL returns the consent page URL the user has to visit.
func (f *Flow) AuthCodeURL() string {
	opts := make([]oauth2.AuthCodeOption, 0, len(f.config.AuthParams)+1)
	if d := f.config.ScopeDelimiter; d != "" && d != " " && len(f.config.Scopes) > 0 {
		opts = append(opts, oauth2.SetAuthURLParam("scope", strings.Join(f.config.Scopes, d)))
	}
	for k, v := range f.config.AuthParams {
		opts = append(opts, oauth2.SetAuthURLParam(k, v))
	}
	// the providers we target do not require state
	return f.oauth2Config.AuthCodeURL("", opts...)
}

// Addr returns the address the callback listener is bound to, or an empty
// string before Start has bound it.
func (f *Flow) Addr() string {
	if addr := f.addr.Load(); addr != nil {
		return *addr
	}
	return ""
}

// Handler returns the HTTP handler of the callback listener. Only GET on the
// callback path is served; other paths get a silent 404.
func (f *Flow) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Get(f.config.CallbackPath, f.handleCallback)
	r.NotFound(http.NotFound)
	return r
}

// Start runs the login. It returns once a callback has produced an outcome
// and the shutdown delay has elapsed, or when ctx is cancelled. A Flow can
// be started once.
func (f *Flow) Start(ctx context.Context, openBrowser bool) (*Outcome, error) {
	ln, err := net.Listen("tcp", f.config.ListenAddr)
	if err != nil {
		return nil, cfserrors.NewCallbackError(fmt.Sprintf("failed to listen on %s", f.config.ListenAddr), err)
	}
	addr := ln.Addr().String()
	f.addr.Store(&addr)

	server := &http.Server{
		Handler:           f.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Infof("Starting OAuth callback server on %s", addr)
		if err := server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return cfserrors.NewCallbackError("callback server failed", err)
		}
		return nil
	})

	f.presentAuthURL(openBrowser)
	logger.Info("Waiting for OAuth callback...")

	var outcome *Outcome
	select {
	case outcome = <-f.outcomes:
		f.waitBeforeShutdown(ctx)
	case <-gctx.Done():
		select {
		case outcome = <-f.outcomes:
		default:
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), serverShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warnf("Failed to shutdown OAuth callback server: %v", err)
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	if outcome == nil {
		return nil, fmt.Errorf("OAuth flow cancelled: %w", ctx.Err())
	}
	return outcome, nil
}

func (f *Flow) presentAuthURL(openBrowser bool) {
	authURL := f.AuthCodeURL()
	if !openBrowser {
		logger.Infof("Please open this URL in your browser: %s", authURL)
		return
	}

	logger.Infof("Opening browser to: %s", authURL)
	if err := f.openURL(authURL); err != nil {
		logger.Warnf("Failed to open browser: %v", err)
		logger.Infof("Please manually open this URL in your browser: %s", authURL)
	}
}

// waitBeforeShutdown gives the browser time to load the result page
func (f *Flow) waitBeforeShutdown(ctx context.Context) {
	if f.config.ShutdownDelay <= 0 {
		return
	}
	logger.Debugf("Closing callback server in %s", f.config.ShutdownDelay)

	timer := time.NewTimer(f.config.ShutdownDelay)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-ctx.Done():
	}
}
