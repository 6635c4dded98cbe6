// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/vinovest/sqlx"

	"codeberg.org/oliverandrich/verifyd/internal/models"
)

// CreateVerificationCode inserts a new code in the created state and
// invalidates every other pending code for the same user. Both writes happen
// in one transaction so two concurrent issuances can never leave a user with
// two pending codes.
func (r *Repository) CreateVerificationCode(ctx context.Context, userID int64, code string, now time.Time) (*models.VerificationCode, error) {
	var id int64
	err := r.inTx(ctx, func(tx *sqlx.Tx) error {
		res, err := tx.ExecContext(ctx,
			`INSERT INTO verification_codes (user_id, code, state, attempts, created_at) VALUES (?, ?, ?, 0, ?)`,
			userID, code, models.CodeStateCreated, now.UTC())
		if err != nil {
			return err
		}
		if id, err = res.LastInsertId(); err != nil {
			return err
		}

		query, args, err := sqlx.In(
			`UPDATE verification_codes SET state = ? WHERE user_id = ? AND state IN (?) AND id != ?`,
			models.CodeStateInvalidated, userID, models.PendingCodeStates, id)
		if err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx, query, args...)
		return err
	})
	if err != nil {
		return nil, err
	}
	return r.GetVerificationCode(ctx, id)
}

// GetVerificationCode retrieves a code by ID.
func (r *Repository) GetVerificationCode(ctx context.Context, id int64) (*models.VerificationCode, error) {
	var code models.VerificationCode
	if err := r.db.GetContext(ctx, &code, `SELECT * FROM verification_codes WHERE id = ?`, id); err != nil {
		return nil, wrapError(err)
	}
	return &code, nil
}

// LatestPendingCode returns the most recently created pending code for a
// user, or ErrNotFound if no code is awaiting verification.
func (r *Repository) LatestPendingCode(ctx context.Context, userID int64) (*models.VerificationCode, error) {
	query, args, err := sqlx.In(
		`SELECT * FROM verification_codes WHERE user_id = ? AND state IN (?) ORDER BY created_at DESC, id DESC LIMIT 1`,
		userID, models.PendingCodeStates)
	if err != nil {
		return nil, err
	}
	var code models.VerificationCode
	if err := r.db.GetContext(ctx, &code, query, args...); err != nil {
		return nil, wrapError(err)
	}
	return &code, nil
}

// CountPendingCodesSince counts a user's pending codes created after the
// cutoff. Terminal codes drop out of the count by virtue of their state.
func (r *Repository) CountPendingCodesSince(ctx context.Context, userID int64, cutoff time.Time) (int64, error) {
	query, args, err := sqlx.In(
		`SELECT count(*) FROM verification_codes WHERE user_id = ? AND state IN (?) AND created_at > ?`,
		userID, models.PendingCodeStates, cutoff.UTC())
	if err != nil {
		return 0, err
	}
	var count int64
	if err := r.db.GetContext(ctx, &count, query, args...); err != nil {
		return 0, err
	}
	return count, nil
}

// UpdateCodeState sets the state of a single code.
func (r *Repository) UpdateCodeState(ctx context.Context, id int64, state models.CodeState) (*models.VerificationCode, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE verification_codes SET state = ? WHERE id = ?`, state, id)
	if err != nil {
		return nil, err
	}
	if n, err := res.RowsAffected(); err != nil {
		return nil, err
	} else if n == 0 {
		return nil, ErrNotFound
	}
	return r.GetVerificationCode(ctx, id)
}

// RegisterFailedAttempt increments the attempt counter and, when the counter
// reaches maxAttempts, invalidates the code in the same persisted write.
func (r *Repository) RegisterFailedAttempt(ctx context.Context, id int64, maxAttempts int64) (*models.VerificationCode, error) {
	err := r.inTx(ctx, func(tx *sqlx.Tx) error {
		var code models.VerificationCode
		if err := tx.GetContext(ctx, &code, `SELECT * FROM verification_codes WHERE id = ?`, id); err != nil {
			return wrapError(err)
		}

		attempts := code.Attempts + 1
		state := code.State
		if attempts >= maxAttempts && code.Pending() {
			state = models.CodeStateInvalidated
		}

		_, err := tx.ExecContext(ctx,
			`UPDATE verification_codes SET attempts = ?, state = ? WHERE id = ?`,
			attempts, state, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return r.GetVerificationCode(ctx, id)
}

// ActivateVerificationCode marks the code as activated and stamps the owning
// user's email_verified_at in one transaction. Either both writes land or
// neither does.
func (r *Repository) ActivateVerificationCode(ctx context.Context, codeID, userID int64, now time.Time) error {
	return r.inTx(ctx, func(tx *sqlx.Tx) error {
		res, err := tx.ExecContext(ctx,
			`UPDATE verification_codes SET state = ? WHERE id = ?`,
			models.CodeStateActivated, codeID)
		if err != nil {
			return err
		}
		if n, err := res.RowsAffected(); err != nil {
			return err
		} else if n == 0 {
			return fmt.Errorf("activate code %d: %w", codeID, ErrNotFound)
		}

		res, err = tx.ExecContext(ctx,
			`UPDATE users SET email_verified_at = ?, updated_at = ? WHERE id = ?`,
			now.UTC(), now.UTC(), userID)
		if err != nil {
			return err
		}
		if n, err := res.RowsAffected(); err != nil {
			return err
		} else if n == 0 {
			return fmt.Errorf("mark user %d verified: %w", userID, ErrNotFound)
		}
		return nil
	})
}
