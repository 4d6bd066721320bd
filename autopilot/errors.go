package autopilot

import "errors"

// ErrAlreadyRunning is returned by Start when the user already has an active
// session.
var ErrAlreadyRunning = errors.New("autopilot already running for this user")

// ErrNotRunning is returned by operations that require an active session.
var ErrNotRunning = errors.New("autopilot is not running for this user")

// ErrUnauthenticated is returned by Start when the user has no usable
// platform credential.
var ErrUnauthenticated = errors.New("no valid platform credential for this user")

// ErrUnhealthyAccount is returned by Start when the account health score is
// below the start threshold.
var ErrUnhealthyAccount = errors.New("account health too low to start autopilot")

// ErrInvalidAction is returned when an action's payload is rejected before
// enqueue.
var ErrInvalidAction = errors.New("invalid action")

// ErrSessionNotFound is returned by session stores for unknown users.
var ErrSessionNotFound = errors.New("session not found")

// ErrCredentialNotFound is returned by credential stores for users with no
// stored platform credential.
var ErrCredentialNotFound = errors.New("credential not found")
