package security

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/MicahParks/jwkset"
	"github.com/MicahParks/keyfunc/v3"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
)

// JWKSVerifier verifies operator tokens against keys published by an identity provider's JWKS endpoint.
type JWKSVerifier struct {
	jwks     keyfunc.Keyfunc
	issuer   string
	audience string
}

// NewJWKSVerifier fetches jwksURL in the background and refreshes it every refresh interval.
// Startup does not fail if the endpoint is briefly unreachable.
func NewJWKSVerifier(jwksURL, issuer, audience string, refresh time.Duration, logger *zap.Logger) (*JWKSVerifier, error) {
	storage, err := jwkset.NewStorageFromHTTP(jwksURL, jwkset.HTTPClientStorageOptions{
		Client:                    &http.Client{Timeout: 10 * time.Second},
		NoErrorReturnFirstHTTPReq: true,
		RefreshInterval:           refresh,
		RefreshErrorHandler: func(_ context.Context, err error) {
			logger.Error("jwks refresh failed", zap.String("url", jwksURL), zap.Error(err))
		},
	})
	if err != nil {
		return nil, fmt.Errorf("jwks storage: %w", err)
	}
	k, err := keyfunc.New(keyfunc.Options{Storage: storage})
	if err != nil {
		return nil, fmt.Errorf("jwks keyfunc: %w", err)
	}
	return NewJWKSVerifierWithKeyfunc(k, issuer, audience), nil
}

// NewJWKSVerifierWithKeyfunc returns a verifier using an existing keyfunc.
func NewJWKSVerifierWithKeyfunc(k keyfunc.Keyfunc, issuer, audience string) *JWKSVerifier {
	return &JWKSVerifier{jwks: k, issuer: issuer, audience: audience}
}

// Verify implements TokenVerifier.
func (v *JWKSVerifier) Verify(ctx context.Context, tokenString string) (*Principal, error) {
	claims := &OperatorClaims{}
	_, err := jwt.ParseWithClaims(tokenString, claims, v.jwks.KeyfuncCtx(ctx), parserOptions(v.issuer, v.audience, nil)...)
	if err != nil {
		return nil, ErrInvalidToken
	}
	return claims.principal()
}
