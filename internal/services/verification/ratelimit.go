// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package verification

import (
	"context"
	"time"

	"codeberg.org/oliverandrich/verifyd/internal/config"
	"codeberg.org/oliverandrich/verifyd/internal/repository"
)

// Sliding windows measured backward from now.
const (
	rateWindowHour  = time.Hour
	rateWindowShort = 5 * time.Minute
)

// RateLimiter decides whether a user may receive a new code. Read-only; it
// never mutates the store.
type RateLimiter struct {
	repo *repository.Repository
	cfg  *config.VerificationConfig
}

// NewRateLimiter creates a rate limiter over the code store.
func NewRateLimiter(repo *repository.Repository, cfg *config.VerificationConfig) *RateLimiter {
	return &RateLimiter{repo: repo, cfg: cfg}
}

// CanIssue reports whether the user is below both issuance limits: pending
// codes created within the last hour and within the last five minutes. Both
// windows are evaluated; either one can deny on its own.
func (rl *RateLimiter) CanIssue(ctx context.Context, userID int64, now time.Time) (bool, error) {
	hourCount, err := rl.repo.CountPendingCodesSince(ctx, userID, now.Add(-rateWindowHour))
	if err != nil {
		return false, err
	}

	shortCount, err := rl.repo.CountPendingCodesSince(ctx, userID, now.Add(-rateWindowShort))
	if err != nil {
		return false, err
	}

	if hourCount >= rl.cfg.LimitPerHour {
		return false, nil
	}
	if shortCount >= rl.cfg.LimitPer5Min {
		return false, nil
	}
	return true, nil
}
