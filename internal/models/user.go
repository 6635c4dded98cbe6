// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package models

import "time"

// User is an account whose email address can be confirmed with a
// verification code.
type User struct { //nolint:govet // fieldalignment: readability over optimization
	ID              int64      `db:"id" json:"id"`
	Email           string     `db:"email" json:"email"`
	EmailVerifiedAt *time.Time `db:"email_verified_at" json:"email_verified_at"`
	CreatedAt       time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time  `db:"updated_at" json:"updated_at"`
}

// EmailVerified reports whether the user's email address has been confirmed.
func (u *User) EmailVerified() bool {
	return u.EmailVerifiedAt != nil
}
