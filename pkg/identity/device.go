package identity

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/zitadel/oidc/v3/pkg/client/rp"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
)

// loginWithDeviceCode runs the OIDC device authorization grant (RFC 8628): it shows the user
// code through prompt and polls the token endpoint until the user approves or the code expires.
func loginWithDeviceCode(
	ctx context.Context,
	party rp.RelyingParty,
	scopes []string,
	prompt DeviceLoginPrompt,
	log *zap.Logger,
) (*Credentials, error) {
	// 1. Start the Device Authorization Flow
	authResponse, err := rp.DeviceAuthorization(ctx, scopes, party, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to start device authorization flow: %w", err)
	}

	// 2. Display User Instructions
	code := DeviceCode{
		UserCode:                authResponse.UserCode,
		VerificationURI:         authResponse.VerificationURI,
		VerificationURIComplete: authResponse.VerificationURIComplete,
		ExpiresIn:               time.Duration(authResponse.ExpiresIn) * time.Second,
	}
	if prompt != nil {
		if err := prompt(ctx, code); err != nil {
			return nil, fmt.Errorf("device login prompt: %w", err)
		}
	} else {
		log.Info("device login pending",
			zap.String("user_code", code.UserCode),
			zap.String("verification_uri", code.VerificationURI))
	}

	// 3. Poll the Token Endpoint
	interval := time.Duration(authResponse.Interval) * time.Second
	if interval == 0 {
		interval = 5 * time.Second
	}

	issuedAt := time.Now()
	token, err := rp.DeviceAccessToken(ctx, authResponse.DeviceCode, interval, party)
	if err != nil {
		return nil, fmt.Errorf("device authorization failed: %w", err)
	}

	// 4. Return the Credentials; the caller persists them
	return &Credentials{
		AccessToken:  token.AccessToken,
		TokenType:    token.TokenType,
		IDToken:      token.IDToken,
		RefreshToken: token.RefreshToken,
		IssuedAt:     issuedAt,
		ExpiresAt:    issuedAt.Add(time.Duration(token.ExpiresIn) * time.Second),
	}, nil
}

// exchangeRefreshToken trades a refresh token for a new token set.
func exchangeRefreshToken(ctx context.Context, party rp.RelyingParty, hc *http.Client, refreshToken string) (*Credentials, error) {
	if hc != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, hc)
	}
	// 1. Build a Token Source seeded with the refresh token only
	tokenSource := party.OAuthConfig().TokenSource(ctx, &oauth2.Token{
		RefreshToken: refreshToken,
	})

	// 2. Exchange it at the Token Endpoint
	issuedAt := time.Now()
	newToken, err := tokenSource.Token()
	if err != nil {
		return nil, fmt.Errorf("failed to refresh token: %w", err)
	}

	// 3. Keep the old refresh token when the provider does not rotate it
	creds := &Credentials{
		AccessToken:  newToken.AccessToken,
		TokenType:    newToken.TokenType,
		RefreshToken: newToken.RefreshToken,
		IssuedAt:     issuedAt,
		ExpiresAt:    newToken.Expiry,
	}
	if creds.RefreshToken == "" {
		creds.RefreshToken = refreshToken
	}
	if idToken, ok := newToken.Extra("id_token").(string); ok {
		creds.IDToken = idToken
	}
	return creds, nil
}
