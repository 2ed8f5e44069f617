// Package auth obtains bearer tokens for the mail service: silently from a
// cached grant when possible, through an interactive sign-in otherwise.
package auth

import (
	"context"

	"golang.org/x/oauth2"
)

// Request property keys understood by brokers.
const (
	PropAuthority = "authority"
	PropResource  = "resource"
)

// PromptType controls whether a broker may reuse an existing sign-in.
type PromptType int

const (
	PromptDefault PromptType = iota
	PromptForceAuthentication
)

// Status is the outcome class of a token request.
type Status int

const (
	StatusSuccess Status = iota
	StatusUserInteractionRequired
	StatusUserCancel
	StatusProviderError
)

func (s Status) String() string {
	switch s {
	case StatusSuccess:
		return "success"
	case StatusUserInteractionRequired:
		return "user interaction required"
	case StatusUserCancel:
		return "user cancel"
	default:
		return "provider error"
	}
}

// Provider is the account provider resolved for an authority.
type Provider struct {
	Authority string
	Endpoint  oauth2.Endpoint
}

// TokenRequest asks a broker for a token on behalf of ClientID.
type TokenRequest struct {
	Provider   *Provider
	ClientID   string
	Prompt     PromptType
	Properties map[string]string
}

// TokenResult is what a broker returns. Tokens is only meaningful on
// success; Err explains any other status.
type TokenResult struct {
	Status Status
	Tokens []string
	Err    error
}

// Broker is the identity broker the Acquirer drives.
type Broker interface {
	FindAccountProvider(ctx context.Context, authority string) (*Provider, error)
	// GetTokenSilently must never show UI.
	GetTokenSilently(ctx context.Context, req TokenRequest) TokenResult
	// RequestToken may prompt the user and blocks until the prompt is
	// answered or ctx is done.
	RequestToken(ctx context.Context, req TokenRequest) TokenResult
}
