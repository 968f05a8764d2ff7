package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestService_GenerateAndValidate(t *testing.T) {
	svc := NewService("test-secret", time.Hour)

	token, err := svc.GenerateToken("ops")
	require.NoError(t, err)
	require.NotEmpty(t, token)

	claims, err := svc.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "ops", claims.Username)
	assert.Equal(t, "ops", claims.Subject)
	assert.Equal(t, "predictive-autoscaler", claims.Issuer)
}

func TestService_ValidateToken(t *testing.T) {
	issuer := NewService("test-secret", time.Hour)
	valid, err := issuer.GenerateToken("ops")
	require.NoError(t, err)

	expired, err := NewService("test-secret", -time.Hour).GenerateToken("ops")
	require.NoError(t, err)

	tests := []struct {
		name    string
		svc     *Service
		token   string
		wantErr error
	}{
		{name: "garbage", svc: issuer, token: "invalid-token", wantErr: ErrInvalidToken},
		{name: "expired", svc: issuer, token: expired, wantErr: ErrExpiredToken},
		{name: "wrong secret", svc: NewService("other-secret", time.Hour), token: valid, wantErr: ErrInvalidToken},
		{name: "wrong issuer", svc: NewService("test-secret", time.Hour).WithIssuer("someone-else"), token: valid, wantErr: ErrInvalidToken},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.svc.ValidateToken(tt.token)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestCheckPassword(t *testing.T) {
	hash, err := HashPassword("mypassword123")
	require.NoError(t, err)

	assert.True(t, CheckPassword("mypassword123", hash))
	assert.False(t, CheckPassword("wrongpassword", hash))
}

func TestOperators_Authenticate(t *testing.T) {
	hash, err := HashPassword("s3cret")
	require.NoError(t, err)
	ops := Operators{"ops": hash}

	assert.True(t, ops.Authenticate("ops", "s3cret"))
	assert.False(t, ops.Authenticate("ops", "nope"))
	assert.False(t, ops.Authenticate("nobody", "s3cret"))
}
