// Package session stores the per-user state the client caches between
// requests: the CSRF state, the authorization code, the access token and the
// user id. No other keys are accepted.
//
// Stores are request-scoped and not safe for concurrent mutation. When a host
// shares backing storage between parallel requests for the same user, the
// read-modify-write of session keys is not atomic; callers must serialize.
package session

import (
	"errors"
	"slices"
)

const (
	KeyState       = "state"
	KeyCode        = "code"
	KeyAccessToken = "access_token"
	KeyUserID      = "user_id"
)

var supportedKeys = []string{KeyState, KeyCode, KeyAccessToken, KeyUserID}

// SupportedKeys returns the four keys a Store accepts.
func SupportedKeys() []string {
	return slices.Clone(supportedKeys)
}

func IsSupportedKey(key string) bool {
	return slices.Contains(supportedKeys, key)
}

var ErrUnreadable = errors.New("session value unreadable")

// Store is the session capability used by the client. Unsupported keys are
// logged and ignored; GetPersistentData returns def for them.
type Store interface {
	SetPersistentData(key string, value string)
	GetPersistentData(key string, def string) string
	ClearPersistentData(key string)
	ClearAllPersistentData()
}

// Backend is the host's storage for scoped session names.
type Backend interface {
	Put(name string, value string) error
	Get(name string) (value string, ok bool, err error)
	Delete(name string) error
}

// State tracks the logical session lifecycle.
type State int

const (
	StateUninitialized State = iota
	StateActive
	StateCleared
)

func (s State) String() string {
	switch s {
	case StateActive:
		return "active"
	case StateCleared:
		return "cleared"
	default:
		return "uninitialized"
	}
}
