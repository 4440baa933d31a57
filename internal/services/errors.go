package services

import "errors"

// ErrNoUsableKey means no API key is enabled anywhere. The user has to
// enable or add one before outbound calls can run.
var ErrNoUsableKey = errors.New("no usable API key")

// ErrStaleKeyRow means a stats update referenced a key whose material has
// changed since the caller read it.
var ErrStaleKeyRow = errors.New("stale key row: fingerprint mismatch")
