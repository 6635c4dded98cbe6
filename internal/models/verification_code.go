// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package models

import "time"

// CodeState is the lifecycle state of a verification code.
type CodeState string

const (
	CodeStateCreated     CodeState = "created"
	CodeStateSent        CodeState = "sent"
	CodeStateActivated   CodeState = "activated"
	CodeStateInvalidated CodeState = "invalidated"
	CodeStateExpired     CodeState = "expired"
)

// PendingCodeStates are the states in which a code is still eligible for
// verification. Queries filtering for "the active code" must use this set.
var PendingCodeStates = []CodeState{CodeStateCreated, CodeStateSent}

// VerificationCode is a short-lived numeric code issued to confirm
// ownership of a user's email address. Records are never deleted; terminal
// states are kept for rate-limit history.
type VerificationCode struct { //nolint:govet // fieldalignment: readability over optimization
	ID        int64     `db:"id" json:"id"`
	UserID    int64     `db:"user_id" json:"user_id"`
	Code      string    `db:"code" json:"-"`
	State     CodeState `db:"state" json:"state"`
	Attempts  int64     `db:"attempts" json:"attempts"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// Pending reports whether the code is still eligible for verification.
func (c *VerificationCode) Pending() bool {
	return c.State == CodeStateCreated || c.State == CodeStateSent
}

// ExpiredAt reports whether the code's lifetime had elapsed at the given
// instant.
func (c *VerificationCode) ExpiredAt(now time.Time, lifetime time.Duration) bool {
	return now.Sub(c.CreatedAt) > lifetime
}
