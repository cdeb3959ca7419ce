// Package otp implements the one-time-password registry: time-boxed,
// single-use numeric codes keyed by email. Each flow (signup, reset) gets
// its own registry instance with disjoint storage.
package otp

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"time"
)

// Flow names used to separate registry instances.
const (
	FlowSignup = "signup"
	FlowReset  = "reset"
)

// Status classifies the outcome of a verification attempt.
type Status int

const (
	// StatusOK means the code matched and was consumed.
	StatusOK Status = iota
	// StatusNotFound means no entry exists for the email.
	StatusNotFound
	// StatusExpired means the entry aged out and was evicted.
	StatusExpired
	// StatusMismatch means the submitted code differs; the entry stays.
	StatusMismatch
)

// Result reports a verification outcome.
type Result struct {
	Valid  bool
	Status Status
}

// Registry issues and verifies single-use codes for one flow.
//
// Issue overwrites any prior unconsumed entry for the email. Verify evicts
// the entry when it is expired or matched, never on a plain mismatch.
// Outstanding reports whether an unconsumed entry survives for the email,
// regardless of its age; its absence is the proof of verification during
// signup.
type Registry interface {
	Issue(ctx context.Context, email string) (string, error)
	Verify(ctx context.Context, email, submitted string) (Result, error)
	Outstanding(ctx context.Context, email string) (bool, error)
}

const codeSpace = 1000000

// GenerateCode returns a uniformly random 6-digit zero-padded code.
func GenerateCode() (string, error) {
	n, errRand := rand.Int(rand.Reader, big.NewInt(codeSpace))
	if errRand != nil {
		return "", fmt.Errorf("otp: generate code: %w", errRand)
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}

// DefaultExpiry is the code validity window.
const DefaultExpiry = 5 * time.Minute
