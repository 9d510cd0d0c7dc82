// Package auth resolves the caller identity of pitchroom API requests and
// throttles writes per identity.
//
// The daemon binds to localhost by default and trusts the X-User-ID header
// sent by the client. Clients without a configured user id derive a stable
// one from the operating system username.
package auth

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"os/user"
)

var (
	// ErrEmptyUsername is returned when an empty username is provided
	ErrEmptyUsername = errors.New("username cannot be empty")
)

// DeriveUserID derives a stable user ID from a username using SHA256 hashing.
//
// The ID is the hex-encoded SHA256 of the username. The same username always
// yields the same ID and the ID satisfies ValidUserID.
//
// Example:
//
//	id, err := auth.DeriveUserID("alice")
//	// id = "2bd806c97f0e00af1a1fc3328fa763a9269723c8db8fac4f93af71db186d6e90"
//
// Returns ErrEmptyUsername if username is empty.
func DeriveUserID(username string) (string, error) {
	if username == "" {
		return "", ErrEmptyUsername
	}
	hash := sha256.Sum256([]byte(username))
	return hex.EncodeToString(hash[:]), nil
}

// LocalUserID derives the user ID of the current operating system user.
func LocalUserID() (string, error) {
	u, err := user.Current()
	if err != nil {
		return "", err
	}
	return DeriveUserID(u.Username)
}
