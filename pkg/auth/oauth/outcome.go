// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package oauth

import (
	"errors"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/oauth2"

	"github.com/cloudfilesync/cfsauth/pkg/logger"
)

// Outcome is the result of a login. Exactly one of Token and Err is set.
type Outcome struct {
	// Token is the token issued by the provider
	Token *oauth2.Token

	// Err is the reason no token was issued
	Err error

	// Claims are the unverified claims of a JWT access or ID token, for
	// display only
	Claims jwt.MapClaims
}

// Succeeded reports whether a token was issued.
func (o *Outcome) Succeeded() bool {
	return o != nil && o.Token != nil && o.Err == nil
}

// Display returns the text shown to the user: the access token on success,
// "error: <description>" for provider errors and the error text otherwise.
func (o *Outcome) Display() string {
	switch {
	case o == nil:
		return ""
	case o.Succeeded():
		return o.Token.AccessToken
	case IsProviderError(o.Err):
		return "error: " + o.Err.Error()
	case o.Err != nil:
		return o.Err.Error()
	default:
		return ""
	}
}

func newTokenOutcome(token *oauth2.Token) *Outcome {
	outcome := &Outcome{Token: token}

	// prefer the ID token when the provider speaks OIDC
	if idToken, ok := token.Extra("id_token").(string); ok && idToken != "" {
		if claims, err := extractJWTClaims(idToken); err == nil {
			outcome.Claims = claims
			logger.Debugf("Extracted JWT claims from ID token")
		} else {
			logger.Debugf("Could not extract JWT claims from ID token: %v", err)
		}
		return outcome
	}

	if claims, err := extractJWTClaims(token.AccessToken); err == nil {
		outcome.Claims = claims
		logger.Debugf("Extracted JWT claims from access token")
	} else {
		logger.Debugf("Access token is not a JWT (opaque token): %v", err)
	}
	return outcome
}

func newErrorOutcome(err error) *Outcome {
	return &Outcome{Err: err}
}

// extractJWTClaims reads the claims of a JWT without verifying its signature
func extractJWTClaims(tokenString string) (jwt.MapClaims, error) {
	parser := jwt.NewParser(jwt.WithoutClaimsValidation())
	token, _, err := parser.ParseUnverified(tokenString, jwt.MapClaims{})
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, errors.New("failed to extract claims")
	}
	return claims, nil
}
