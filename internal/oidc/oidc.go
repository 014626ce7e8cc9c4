package oidc

import (
	"context"
	"fmt"

	"github.com/coreos/go-oidc/v3/oidc"
)

// Token is a minimal interface over a verified ID token, satisfied by
// *oidc.IDToken and by test fakes.
type Token interface {
	Claims(v interface{}) error
}

// IDTokenVerifier is the capability the federated bridge depends on:
// one synchronous verification of a raw assertion.
type IDTokenVerifier interface {
	Verify(ctx context.Context, raw string) (Token, error)
}

// Verifier validates Google-issued ID tokens against the provider's
// published keys and the service's registered client ID. Any verification
// error fails closed.
type Verifier struct {
	provider *oidc.Provider
	verifier *oidc.IDTokenVerifier
}

// NewVerifier discovers the issuer and prepares a token verifier bound to
// the given audience.
func NewVerifier(ctx context.Context, issuer, clientID string) (*Verifier, error) {
	provider, err := oidc.NewProvider(ctx, issuer)
	if err != nil {
		return nil, fmt.Errorf("failed to discover OIDC provider: %w", err)
	}
	return &Verifier{
		provider: provider,
		verifier: provider.Verifier(&oidc.Config{ClientID: clientID}),
	}, nil
}

// Verify checks signature, issuer, audience and expiry of the raw ID token.
func (v *Verifier) Verify(ctx context.Context, raw string) (Token, error) {
	idToken, err := v.verifier.Verify(ctx, raw)
	if err != nil {
		return nil, err
	}
	return idToken, nil
}
