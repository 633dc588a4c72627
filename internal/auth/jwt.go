package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Sentinel errors returned by token verification.
var (
	ErrTokenInvalid = errors.New("invalid token")
	ErrTokenExpired = errors.New("token expired")
)

// TokenVerifier validates a bearer credential and yields the Principal it
// represents. Credential issuance is handled elsewhere; this side only
// verifies.
type TokenVerifier interface {
	Verify(ctx context.Context, tokenString string) (*Principal, error)
}

// JWTVerifier verifies HMAC-SHA256 signed bearer tokens.
type JWTVerifier struct {
	secret []byte
	issuer string
}

// NewJWTVerifier creates a verifier for tokens signed with the given secret.
// If issuer is non-empty, the token's iss claim must match it.
func NewJWTVerifier(secret []byte, issuer string) *JWTVerifier {
	return &JWTVerifier{secret: secret, issuer: issuer}
}

// Verify parses and validates a bearer token and extracts the principal
// claims. Expired tokens are reported as ErrTokenExpired so callers can
// tell the client to refresh; every other failure maps to ErrTokenInvalid.
func (v *JWTVerifier) Verify(ctx context.Context, tokenString string) (*Principal, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}

	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (any, error) {
		return v.secret, nil
	}, opts...)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, fmt.Errorf("%w: %s", ErrTokenExpired, err)
		}
		return nil, fmt.Errorf("%w: %s", ErrTokenInvalid, err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, fmt.Errorf("%w: unexpected claims type", ErrTokenInvalid)
	}

	return principalFromClaims(claims)
}

// principalFromClaims builds a Principal from verified token claims.
func principalFromClaims(claims jwt.MapClaims) (*Principal, error) {
	sub, ok := claims["sub"].(string)
	if !ok || sub == "" {
		return nil, fmt.Errorf("%w: missing sub claim", ErrTokenInvalid)
	}
	principalID, err := uuid.Parse(sub)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid sub UUID: %s", ErrTokenInvalid, err)
	}

	roleClaim, ok := claims["role"].(string)
	if !ok {
		return nil, fmt.Errorf("%w: missing role claim", ErrTokenInvalid)
	}
	role, err := ParseRole(roleClaim)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrTokenInvalid, err)
	}

	ispID, _ := claims["isp_id"].(string)
	email, _ := claims["email"].(string)

	return &Principal{
		PrincipalID: principalID,
		Role:        role,
		IspID:       ispID,
		Email:       email,
	}, nil
}
