package auth

import (
	"crypto/sha256"
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeriveUserID(t *testing.T) {
	tests := []struct {
		name     string
		username string
		want     string
		wantErr  bool
	}{
		{name: "valid username", username: "alice", want: computeExpectedHash("alice")},
		{name: "email username", username: "bob@example.com", want: computeExpectedHash("bob@example.com")},
		{name: "username with spaces", username: "user name", want: computeExpectedHash("user name")},
		{name: "empty username", username: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DeriveUserID(tt.username)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrEmptyUsername)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.True(t, ValidUserID(got), "derived id must pass the identity middleware")
		})
	}
}

func TestDeriveUserID_Uniqueness(t *testing.T) {
	id1, err := DeriveUserID("alice")
	require.NoError(t, err)
	id2, err := DeriveUserID("bob")
	require.NoError(t, err)
	assert.NotEqual(t, id1, id2)
}

func TestLocalUserID(t *testing.T) {
	id, err := LocalUserID()
	if err != nil {
		t.Skipf("no current user: %v", err)
	}
	assert.Regexp(t, "^[a-f0-9]{64}$", id)
}

func computeExpectedHash(input string) string {
	hash := sha256.Sum256([]byte(input))
	return hex.EncodeToString(hash[:])
}
