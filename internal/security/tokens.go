package security

import (
	"context"
	"crypto"
	"crypto/ecdsa"
	"crypto/rsa"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var (
	// ErrInvalidToken is returned when a token is malformed or invalid.
	ErrInvalidToken = errors.New("invalid token")
	// ErrSigningDisabled is returned by IssueOperatorToken when the provider has no private key.
	ErrSigningDisabled = errors.New("token signing key not configured")
	// ErrUnauthenticated is returned by guards when no verified principal is attached to the request.
	ErrUnauthenticated = errors.New("authentication required")
)

// Principal is the verified identity of a staff operator.
type Principal struct {
	OperatorID string
	HomeOrgID  string
}

// TokenVerifier turns a bearer token into a Principal.
type TokenVerifier interface {
	Verify(ctx context.Context, token string) (*Principal, error)
}

// OperatorClaims are the JWT claims of an operator token. Subject is the operator id.
type OperatorClaims struct {
	jwt.RegisteredClaims
	HomeOrgID string `json:"home_org_id"`
}

func (c *OperatorClaims) principal() (*Principal, error) {
	if c.Subject == "" || c.HomeOrgID == "" {
		return nil, ErrInvalidToken
	}
	return &Principal{OperatorID: c.Subject, HomeOrgID: c.HomeOrgID}, nil
}

// TokenProvider verifies operator JWTs with a static RS256 or ES256 public key and, when given
// the private key, issues them.
type TokenProvider struct {
	privateKey crypto.Signer
	publicKey  crypto.PublicKey
	issuer     string
	audience   string
	ttl        time.Duration
	now        func() time.Time
}

// NewTokenProvider returns a TokenProvider. privateKey may be nil for verify-only use.
func NewTokenProvider(privateKey crypto.Signer, publicKey crypto.PublicKey, issuer, audience string, ttl time.Duration) *TokenProvider {
	return &TokenProvider{
		privateKey: privateKey,
		publicKey:  publicKey,
		issuer:     issuer,
		audience:   audience,
		ttl:        ttl,
		now:        time.Now,
	}
}

// IssueOperatorToken signs a token for operatorID, valid for the provider's TTL.
func (p *TokenProvider) IssueOperatorToken(operatorID, homeOrgID string) (token string, expiresAt time.Time, err error) {
	if p.privateKey == nil {
		return "", time.Time{}, ErrSigningDisabled
	}
	now := p.now().UTC()
	expiresAt = now.Add(p.ttl)
	claims := OperatorClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   operatorID,
			Issuer:    p.issuer,
			Audience:  jwt.ClaimStrings{p.audience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
		HomeOrgID: homeOrgID,
	}
	var method jwt.SigningMethod
	switch p.privateKey.Public().(type) {
	case *rsa.PublicKey:
		method = jwt.SigningMethodRS256
	case *ecdsa.PublicKey:
		method = jwt.SigningMethodES256
	default:
		return "", time.Time{}, ErrInvalidToken
	}
	token, err = jwt.NewWithClaims(method, claims).SignedString(p.privateKey)
	return token, expiresAt, err
}

// Verify implements TokenVerifier: signature, exp, iss and aud are all checked.
func (p *TokenProvider) Verify(_ context.Context, tokenString string) (*Principal, error) {
	claims := &OperatorClaims{}
	_, err := jwt.ParseWithClaims(tokenString, claims, func(*jwt.Token) (any, error) {
		return p.publicKey, nil
	}, parserOptions(p.issuer, p.audience, p.now)...)
	if err != nil {
		return nil, ErrInvalidToken
	}
	return claims.principal()
}

func parserOptions(issuer, audience string, now func() time.Time) []jwt.ParserOption {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{"RS256", "ES256"}),
		jwt.WithExpirationRequired(),
		jwt.WithIssuer(issuer),
		jwt.WithAudience(audience),
	}
	if now != nil {
		opts = append(opts, jwt.WithTimeFunc(now))
	}
	return opts
}
