package auth

import (
	"chat-realtime/errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHashPassword_RoundTrip(t *testing.T) {
	req := require.New(t)

	hash, err := HashPassword("Correct-Horse-42")
	req.NoError(err)
	req.Contains(hash, "$argon2id$")

	ok, err := ComparePassword("Correct-Horse-42", hash)
	req.NoError(err)
	req.True(ok)

	ok, err = ComparePassword("wrong-password", hash)
	req.NoError(err)
	req.False(ok)
}

func TestComparePassword_RejectsMalformedHash(t *testing.T) {
	_, err := ComparePassword("whatever", "$bcrypt$nope")
	require.Error(t, err)
}

func TestValidateRegister(t *testing.T) {
	tests := []struct {
		name    string
		request RegisterRequest
		wantErr error
	}{
		{"valid", RegisterRequest{Username: "alice", Email: "alice@example.com", Password: "Str0ng-Passw0rd!"}, nil},
		{"bad email", RegisterRequest{Username: "alice", Email: "alice", Password: "Str0ng-Passw0rd!"}, errors.ErrInvalidInput},
		{"short username", RegisterRequest{Username: "al", Email: "alice@example.com", Password: "Str0ng-Passw0rd!"}, errors.ErrInvalidInput},
		{"short password", RegisterRequest{Username: "alice", Email: "alice@example.com", Password: "Sh0rt!"}, errors.ErrInvalidInput},
		{"weak password", RegisterRequest{Username: "alice", Email: "alice@example.com", Password: "alllowercaseletters"}, errors.ErrInvalidPassword},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateRegister(tt.request)
			if tt.wantErr == nil {
				require.NoError(t, err)
				return
			}
			require.ErrorIs(t, err, tt.wantErr)
		})
	}
}
