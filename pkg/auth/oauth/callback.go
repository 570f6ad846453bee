// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package oauth

import (
	"context"
	"fmt"
	"net/http"

	cfserrors "github.com/cloudfilesync/cfsauth/pkg/errors"
	"github.com/cloudfilesync/cfsauth/pkg/logger"
)

// handleCallback handles the redirect from the consent page. The first
// request that carries a code or an error claims the run; later ones are
// turned away without contacting the provider.
func (f *Flow) handleCallback(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	if errParam := query.Get("error"); errParam != "" {
		if !f.consumed.CompareAndSwap(false, true) {
			writeInfoPage(w, http.StatusConflict, "This login has already been completed.")
			return
		}
		desc := query.Get("error_description")
		if desc == "" {
			desc = errParam
		}
		logger.Warnw("authorization denied by provider", "error", errParam)

		outcome := newErrorOutcome(&ProviderError{Code: errParam, Description: desc})
		f.deliver(outcome)
		writeErrorPage(w, http.StatusBadRequest, outcome.Display())
		return
	}

	code := query.Get("code")
	if code == "" {
		logger.Debugf("Callback without authorization code, still waiting")
		writeInfoPage(w, http.StatusBadRequest, "missing authorization code")
		return
	}

	if !f.consumed.CompareAndSwap(false, true) {
		logger.Warnf("Ignoring additional authorization code, one was already exchanged")
		writeInfoPage(w, http.StatusConflict, "This login has already been completed.")
		return
	}

	defer f.recoverClaimed(w)

	logger.Info("Received authorization code, exchanging it for a token")

	// the code is single-use, so finish the exchange even if the browser
	// goes away
	token, err := f.exchanger.Exchange(context.WithoutCancel(r.Context()), code)
	if err == nil && token == nil {
		err = cfserrors.NewInternalError("token exchange returned no token", nil)
	}
	if err != nil {
		outcome := newErrorOutcome(err)
		logger.Warnf("Token exchange failed: %s", outcome.Display())
		f.deliver(outcome)
		writeErrorPage(w, http.StatusBadGateway, outcome.Display())
		return
	}

	logger.Info("OAuth flow completed successfully")
	outcome := newTokenOutcome(token)
	f.deliver(outcome)
	writeTokenPage(w, outcome.Display())
}

// recoverClaimed turns a panic in a request that already claimed the run
// into an error outcome. Without it Start would wait for an outcome that
// never arrives.
func (f *Flow) recoverClaimed(w http.ResponseWriter) {
	rec := recover()
	if rec == nil {
		return
	}
	logger.Errorf("Panic while completing login: %v", rec)
	outcome := newErrorOutcome(cfserrors.NewInternalError(fmt.Sprintf("login failed: %v", rec), nil))
	f.deliver(outcome)
	writeErrorPage(w, http.StatusInternalServerError, outcome.Display())
}

// deliver hands the outcome to Start. The channel holds one outcome and
// only the request that claimed the run calls deliver. The page is written
// afterwards; a graceful shutdown lets that response finish.
func (f *Flow) deliver(outcome *Outcome) {
	select {
	case f.outcomes <- outcome:
	default:
		logger.Warnf("Dropping duplicate login outcome")
	}
}
