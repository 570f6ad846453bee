// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package networking provides the HTTP client, port probing and URL helpers
// shared by the login flow and the token verifier.
package networking

import (
	"fmt"
	"net"

	"github.com/cloudfilesync/cfsauth/pkg/logger"
)

const (
	// MinPort is the lowest port accepted for the callback listener
	MinPort = 1
	// MaxPort is the highest port accepted for the callback listener
	MaxPort = 65535
)

// IsAvailable checks if a TCP port can be bound on all interfaces, the way
// the callback listener binds it.
func IsAvailable(port int) bool {
	if port < 0 || port > MaxPort {
		return false
	}
	listener, err := net.Listen("tcp", ListenAddr(port))
	if err != nil {
		return false
	}
	if err := listener.Close(); err != nil {
		logger.Warnf("Failed to close port check listener: %v", err)
	}
	return true
}

// ListenAddr is the address a callback listener on port binds to.
func ListenAddr(port int) string {
	return fmt.Sprintf(":%d", port)
}

// CheckPort validates a callback port. Unlike an ephemeral port, the callback
// port is part of the redirect URI registered with the provider, so a busy
// port is an error rather than a reason to pick another one.
func CheckPort(port int) error {
	if port < MinPort || port > MaxPort {
		return fmt.Errorf("port %d is out of range [%d, %d]", port, MinPort, MaxPort)
	}
	if !IsAvailable(port) {
		return fmt.Errorf("port %d is already in use", port)
	}
	return nil
}
