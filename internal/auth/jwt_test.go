package auth

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

var testSecret = []byte("test-secret-key-min-32-bytes-long!!")

func signToken(t *testing.T, secret []byte, claims jwt.MapClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(secret)
	require.NoError(t, err)
	return signed
}

func validClaims(principalID uuid.UUID) jwt.MapClaims {
	return jwt.MapClaims{
		"sub":    principalID.String(),
		"role":   "operator",
		"isp_id": "tenant-001",
		"email":  "op@example.com",
		"iss":    "tenantgate",
		"exp":    time.Now().Add(time.Hour).Unix(),
	}
}

func TestVerifyValidToken(t *testing.T) {
	principalID := uuid.New()
	verifier := NewJWTVerifier(testSecret, "tenantgate")

	principal, err := verifier.Verify(context.Background(), signToken(t, testSecret, validClaims(principalID)))
	require.NoError(t, err)
	require.Equal(t, principalID, principal.PrincipalID)
	require.Equal(t, RoleOperator, principal.Role)
	require.Equal(t, "tenant-001", principal.IspID)
	require.Equal(t, "op@example.com", principal.Email)
	require.False(t, principal.IsSuper())
}

func TestVerifyExpiredToken(t *testing.T) {
	claims := validClaims(uuid.New())
	claims["exp"] = time.Now().Add(-time.Hour).Unix()

	verifier := NewJWTVerifier(testSecret, "tenantgate")
	_, err := verifier.Verify(context.Background(), signToken(t, testSecret, claims))
	require.ErrorIs(t, err, ErrTokenExpired)
}

func TestVerifyRejections(t *testing.T) {
	verifier := NewJWTVerifier(testSecret, "tenantgate")

	tests := []struct {
		name  string
		token string
	}{
		{
			name:  "empty token",
			token: "",
		},
		{
			name:  "garbage token",
			token: "not-a-jwt",
		},
		{
			name:  "wrong secret",
			token: signToken(t, []byte("another-secret-key-32-bytes-long!!!"), validClaims(uuid.New())),
		},
		{
			name: "wrong issuer",
			token: signToken(t, testSecret, jwt.MapClaims{
				"sub":  uuid.NewString(),
				"role": "admin",
				"iss":  "somewhere-else",
				"exp":  time.Now().Add(time.Hour).Unix(),
			}),
		},
		{
			name: "missing sub",
			token: signToken(t, testSecret, jwt.MapClaims{
				"role": "admin",
				"iss":  "tenantgate",
				"exp":  time.Now().Add(time.Hour).Unix(),
			}),
		},
		{
			name: "sub is not a UUID",
			token: signToken(t, testSecret, jwt.MapClaims{
				"sub":  "user-42",
				"role": "admin",
				"iss":  "tenantgate",
				"exp":  time.Now().Add(time.Hour).Unix(),
			}),
		},
		{
			name: "missing role",
			token: signToken(t, testSecret, jwt.MapClaims{
				"sub": uuid.NewString(),
				"iss": "tenantgate",
				"exp": time.Now().Add(time.Hour).Unix(),
			}),
		},
		{
			name: "unknown role",
			token: signToken(t, testSecret, jwt.MapClaims{
				"sub":  uuid.NewString(),
				"role": "godmode",
				"iss":  "tenantgate",
				"exp":  time.Now().Add(time.Hour).Unix(),
			}),
		},
		{
			name: "missing exp",
			token: signToken(t, testSecret, jwt.MapClaims{
				"sub":  uuid.NewString(),
				"role": "admin",
				"iss":  "tenantgate",
			}),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := verifier.Verify(context.Background(), tt.token)
			require.ErrorIs(t, err, ErrTokenInvalid)
		})
	}
}

func TestVerifyNoIssuerCheck(t *testing.T) {
	claims := validClaims(uuid.New())
	claims["iss"] = "anything"

	verifier := NewJWTVerifier(testSecret, "")
	_, err := verifier.Verify(context.Background(), signToken(t, testSecret, claims))
	require.NoError(t, err)
}

func TestParseRole(t *testing.T) {
	for _, role := range []string{"super", "admin", "operator", "readonly"} {
		parsed, err := ParseRole(role)
		require.NoError(t, err)
		require.Equal(t, Role(role), parsed)
	}

	_, err := ParseRole("root")
	require.Error(t, err)
}

func TestPrincipalContextRoundTrip(t *testing.T) {
	principal := &Principal{PrincipalID: uuid.New(), Role: RoleAdmin}

	ctx := WithPrincipal(context.Background(), principal)
	require.Equal(t, principal, PrincipalFromContext(ctx))

	require.Nil(t, PrincipalFromContext(context.Background()))
}
