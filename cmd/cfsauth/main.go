// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package main is the entry point for the cfsauth CLI.
package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/pkg/browser"

	"github.com/cloudfilesync/cfsauth/cmd/cfsauth/app"
	"github.com/cloudfilesync/cfsauth/pkg/logger"
)

func main() {
	// Initialize the logger
	logger.Initialize()

	// stdout carries the token; keep xdg-open chatter out of it
	browser.Stdout = os.Stderr

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := app.NewRootCmd().ExecuteContext(ctx); err != nil {
		if !errors.Is(err, app.ErrLoginFailed) {
			logger.Errorf("Error: %v", err)
		}
		cancel()
		os.Exit(1)
	}
}
