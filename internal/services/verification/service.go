// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package verification implements the verification-code core: the code
// lifecycle state machine, per-user issuance rate limiting and the two
// public operations Issue and Verify.
package verification

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"codeberg.org/oliverandrich/verifyd/internal/config"
	"codeberg.org/oliverandrich/verifyd/internal/models"
	"codeberg.org/oliverandrich/verifyd/internal/repository"
)

var (
	// ErrUserNotFound means the issuance target does not exist.
	ErrUserNotFound = errors.New("user not found")
	// ErrRateLimited means issuance was denied by the window policy.
	ErrRateLimited = errors.New("code request limit exceeded")
	// ErrCodeRejected covers every verification failure: unknown email, no
	// active code, expired, wrong value, too many attempts. Callers get one
	// error so the endpoint cannot be used to probe registered addresses or
	// code state.
	ErrCodeRejected = errors.New("wrong verification code")
)

// Notifier delivers an issued code to its recipient. Delivery is best
// effort; the core does not branch on the outcome.
type Notifier interface {
	Send(ctx context.Context, email string, code *models.VerificationCode) error
}

// Service orchestrates the lifecycle and the rate limiter behind the two
// public operations. It is the only entry point for the HTTP layer.
type Service struct {
	repo      *repository.Repository
	cfg       *config.VerificationConfig
	lifecycle *Lifecycle
	limiter   *RateLimiter
	notifier  Notifier
}

// NewService wires the verification core. A nil generator selects the
// crypto/rand default.
func NewService(repo *repository.Repository, cfg *config.VerificationConfig, notifier Notifier, gen Generator) *Service {
	return &Service{
		repo:      repo,
		cfg:       cfg,
		lifecycle: NewLifecycle(repo, cfg, gen),
		limiter:   NewRateLimiter(repo, cfg),
		notifier:  notifier,
	}
}

// Issue creates a new code for the user behind email and hands it to the
// notifier. The code is marked sent regardless of delivery outcome; a failed
// send is logged but the user stays rate-limited until the window clears
// (kept from the original behavior on purpose).
func (s *Service) Issue(ctx context.Context, email string, now time.Time) error {
	user, err := s.repo.GetUserByEmail(ctx, email)
	if errors.Is(err, repository.ErrNotFound) {
		return ErrUserNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to resolve user: %w", err)
	}

	ok, err := s.limiter.CanIssue(ctx, user.ID, now)
	if err != nil {
		return fmt.Errorf("failed to check issuance limits: %w", err)
	}
	if !ok {
		slog.Info("issue_rate_limited", "user_id", user.ID)
		return ErrRateLimited
	}

	code, err := s.lifecycle.Create(ctx, user, now)
	if err != nil {
		return err
	}

	if err := s.notifier.Send(ctx, user.Email, code); err != nil {
		slog.Warn("code_delivery_failed", "user_id", user.ID, "code_id", code.ID, "error", err)
	}

	if _, err := s.lifecycle.MarkSent(ctx, code); err != nil {
		return fmt.Errorf("failed to mark code sent: %w", err)
	}

	slog.Info("code_issued", "user_id", user.ID, "code_id", code.ID)
	return nil
}

// Verify checks a submitted code against the user's active one. The lifetime
// check runs before the match check, so a correct code submitted too late
// still expires the record. Success activates the code and stamps the user's
// verified timestamp atomically.
func (s *Service) Verify(ctx context.Context, email, submitted string, now time.Time) error {
	user, err := s.repo.GetUserByEmail(ctx, email)
	if errors.Is(err, repository.ErrNotFound) {
		slog.Info("verify_unknown_email")
		return ErrCodeRejected
	}
	if err != nil {
		return fmt.Errorf("failed to resolve user: %w", err)
	}

	code, err := s.lifecycle.FindActive(ctx, user.ID)
	if errors.Is(err, repository.ErrNotFound) {
		slog.Info("verify_no_active_code", "user_id", user.ID)
		return ErrCodeRejected
	}
	if err != nil {
		return fmt.Errorf("failed to look up active code: %w", err)
	}

	if code.ExpiredAt(now, s.cfg.CodeLifetime) {
		if _, err := s.lifecycle.Expire(ctx, code); err != nil {
			return fmt.Errorf("failed to expire code: %w", err)
		}
		slog.Info("verify_code_expired", "user_id", user.ID, "code_id", code.ID)
		return ErrCodeRejected
	}

	if code.Code != submitted {
		updated, err := s.lifecycle.HandleFailedAttempt(ctx, code)
		if err != nil {
			return fmt.Errorf("failed to register attempt: %w", err)
		}
		slog.Info("verify_code_mismatch",
			"user_id", user.ID, "code_id", code.ID, "attempts", updated.Attempts, "state", updated.State)
		return ErrCodeRejected
	}

	if err := s.lifecycle.Activate(ctx, code, now); err != nil {
		return fmt.Errorf("failed to activate code: %w", err)
	}

	slog.Info("email_verified", "user_id", user.ID, "code_id", code.ID)
	return nil
}
