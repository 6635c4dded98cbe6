// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package verification

import (
	"context"
	"fmt"
	"time"

	"codeberg.org/oliverandrich/verifyd/internal/config"
	"codeberg.org/oliverandrich/verifyd/internal/models"
	"codeberg.org/oliverandrich/verifyd/internal/repository"
)

// Lifecycle owns the verification-code state machine. All transitions go
// through its methods; nothing else mutates code records.
//
// States move one way only:
//
//	created -> sent -> activated | invalidated | expired
//
// A created code may also be invalidated or expired without ever being sent.
type Lifecycle struct {
	repo     *repository.Repository
	cfg      *config.VerificationConfig
	generate Generator
}

// NewLifecycle creates the state machine service. A nil generator selects the
// crypto/rand default.
func NewLifecycle(repo *repository.Repository, cfg *config.VerificationConfig, gen Generator) *Lifecycle {
	if gen == nil {
		gen = GenerateCode
	}
	return &Lifecycle{repo: repo, cfg: cfg, generate: gen}
}

// Create generates a fresh code for the user, persists it in the created
// state and invalidates every other pending code the user still has. The
// store performs both writes in one transaction.
func (l *Lifecycle) Create(ctx context.Context, user *models.User, now time.Time) (*models.VerificationCode, error) {
	value, err := l.generate(l.cfg.CodeLength)
	if err != nil {
		return nil, fmt.Errorf("failed to generate code: %w", err)
	}

	code, err := l.repo.CreateVerificationCode(ctx, user.ID, value, now)
	if err != nil {
		return nil, fmt.Errorf("failed to persist code: %w", err)
	}
	return code, nil
}

// MarkSent transitions a code to sent after delivery was attempted.
func (l *Lifecycle) MarkSent(ctx context.Context, code *models.VerificationCode) (*models.VerificationCode, error) {
	return l.repo.UpdateCodeState(ctx, code.ID, models.CodeStateSent)
}

// Expire transitions a code to the terminal expired state.
func (l *Lifecycle) Expire(ctx context.Context, code *models.VerificationCode) (*models.VerificationCode, error) {
	return l.repo.UpdateCodeState(ctx, code.ID, models.CodeStateExpired)
}

// Invalidate transitions a code to the terminal invalidated state.
func (l *Lifecycle) Invalidate(ctx context.Context, code *models.VerificationCode) (*models.VerificationCode, error) {
	return l.repo.UpdateCodeState(ctx, code.ID, models.CodeStateInvalidated)
}

// HandleFailedAttempt increments the attempt counter. Reaching the configured
// maximum invalidates the code in the same persisted write.
func (l *Lifecycle) HandleFailedAttempt(ctx context.Context, code *models.VerificationCode) (*models.VerificationCode, error) {
	return l.repo.RegisterFailedAttempt(ctx, code.ID, l.cfg.MaxAttempts)
}

// Activate marks the code activated and stamps the owning user's
// email_verified_at. Both writes share one transaction; a partially applied
// activation never becomes visible.
func (l *Lifecycle) Activate(ctx context.Context, code *models.VerificationCode, now time.Time) error {
	return l.repo.ActivateVerificationCode(ctx, code.ID, code.UserID, now)
}

// FindActive returns the user's latest pending code, or
// repository.ErrNotFound when nothing is awaiting verification.
func (l *Lifecycle) FindActive(ctx context.Context, userID int64) (*models.VerificationCode, error) {
	return l.repo.LatestPendingCode(ctx, userID)
}
