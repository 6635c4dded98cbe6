// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package verification_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"codeberg.org/oliverandrich/verifyd/internal/config"
	"codeberg.org/oliverandrich/verifyd/internal/models"
	"codeberg.org/oliverandrich/verifyd/internal/repository"
	"codeberg.org/oliverandrich/verifyd/internal/services/verification"
	"codeberg.org/oliverandrich/verifyd/internal/testutil"
)

func testConfig() *config.VerificationConfig {
	return &config.VerificationConfig{
		CodeLength:   4,
		CodeLifetime: 5 * time.Minute,
		MaxAttempts:  3,
		LimitPerHour: 5,
		LimitPer5Min: 1,
	}
}

// fixedCodes returns a generator that hands out the given codes in order and
// repeats the last one.
func fixedCodes(codes ...string) verification.Generator {
	i := 0
	return func(int) (string, error) {
		c := codes[i]
		if i < len(codes)-1 {
			i++
		}
		return c, nil
	}
}

func newTestService(t *testing.T, notifier verification.Notifier, gen verification.Generator) (*verification.Service, *repository.Repository) {
	t.Helper()
	_, repo := testutil.NewTestDB(t)
	return verification.NewService(repo, testConfig(), notifier, gen), repo
}

func TestIssue_SendsAndMarksSent(t *testing.T) {
	notifier := &testutil.FakeNotifier{}
	svc, repo := newTestService(t, notifier, nil)
	ctx := context.Background()
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	user := testutil.NewTestUser(t, repo, "alice@example.com")

	err := svc.Issue(ctx, user.Email, now)

	require.NoError(t, err)
	require.Len(t, notifier.Recipients, 1)
	assert.Equal(t, "alice@example.com", notifier.Recipients[0])

	code, err := repo.LatestPendingCode(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, models.CodeStateSent, code.State)
	assert.Len(t, code.Code, 4)
}

func TestIssue_UnknownEmail(t *testing.T) {
	svc, _ := newTestService(t, &testutil.FakeNotifier{}, nil)

	err := svc.Issue(context.Background(), "nobody@example.com", time.Now().UTC())

	assert.ErrorIs(t, err, verification.ErrUserNotFound)
}

func TestIssue_FiveMinuteLimit(t *testing.T) {
	notifier := &testutil.FakeNotifier{}
	svc, repo := newTestService(t, notifier, nil)
	ctx := context.Background()
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	user := testutil.NewTestUser(t, repo, "alice@example.com")

	require.NoError(t, svc.Issue(ctx, user.Email, now))

	err := svc.Issue(ctx, user.Email, now.Add(4*time.Minute))

	assert.ErrorIs(t, err, verification.ErrRateLimited)
	assert.Len(t, notifier.Recipients, 1)
}

func TestIssue_FiveMinuteLimitResets(t *testing.T) {
	svc, repo := newTestService(t, &testutil.FakeNotifier{}, nil)
	ctx := context.Background()
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	user := testutil.NewTestUser(t, repo, "alice@example.com")

	require.NoError(t, svc.Issue(ctx, user.Email, now))

	err := svc.Issue(ctx, user.Email, now.Add(6*time.Minute))

	require.NoError(t, err)
}

func TestIssue_PreviousCodesInvalidated(t *testing.T) {
	svc, repo := newTestService(t, &testutil.FakeNotifier{}, nil)
	ctx := context.Background()
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	user := testutil.NewTestUser(t, repo, "alice@example.com")

	require.NoError(t, svc.Issue(ctx, user.Email, now))
	first, err := repo.LatestPendingCode(ctx, user.ID)
	require.NoError(t, err)

	require.NoError(t, svc.Issue(ctx, user.Email, now.Add(10*time.Minute)))
	second, err := repo.LatestPendingCode(ctx, user.ID)
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, second.ID)

	// Exactly one code stays pending; the earlier one is invalidated.
	first, err = repo.GetVerificationCode(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, models.CodeStateInvalidated, first.State)

	count, err := repo.CountPendingCodesSince(ctx, user.ID, now.Add(-time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestIssue_NotifierFailureStillMarksSent(t *testing.T) {
	notifier := &testutil.FakeNotifier{Err: assert.AnError}
	svc, repo := newTestService(t, notifier, nil)
	ctx := context.Background()
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	user := testutil.NewTestUser(t, repo, "alice@example.com")

	// Delivery is best effort: the failed send does not fail issuance.
	err := svc.Issue(ctx, user.Email, now)

	require.NoError(t, err)
	code, err := repo.LatestPendingCode(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, models.CodeStateSent, code.State)
}

func TestVerify_ActivatesCodeAndUser(t *testing.T) {
	svc, repo := newTestService(t, &testutil.FakeNotifier{}, fixedCodes("1234"))
	ctx := context.Background()
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	user := testutil.NewTestUser(t, repo, "alice@example.com")
	require.NoError(t, svc.Issue(ctx, user.Email, now))
	code, err := repo.LatestPendingCode(ctx, user.ID)
	require.NoError(t, err)

	err = svc.Verify(ctx, user.Email, "1234", now.Add(time.Minute))

	require.NoError(t, err)

	code, err = repo.GetVerificationCode(ctx, code.ID)
	require.NoError(t, err)
	assert.Equal(t, models.CodeStateActivated, code.State)

	user, err = repo.GetUserByID(ctx, user.ID)
	require.NoError(t, err)
	assert.True(t, user.EmailVerified())
}

func TestVerify_ActivatedCodeCannotBeReused(t *testing.T) {
	svc, repo := newTestService(t, &testutil.FakeNotifier{}, fixedCodes("1234"))
	ctx := context.Background()
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	user := testutil.NewTestUser(t, repo, "alice@example.com")
	require.NoError(t, svc.Issue(ctx, user.Email, now))
	require.NoError(t, svc.Verify(ctx, user.Email, "1234", now.Add(time.Minute)))

	err := svc.Verify(ctx, user.Email, "1234", now.Add(2*time.Minute))

	assert.ErrorIs(t, err, verification.ErrCodeRejected)
}

func TestVerify_ExpiredCode(t *testing.T) {
	svc, repo := newTestService(t, &testutil.FakeNotifier{}, fixedCodes("1234"))
	ctx := context.Background()
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	user := testutil.NewTestUser(t, repo, "alice@example.com")
	require.NoError(t, svc.Issue(ctx, user.Email, now))
	code, err := repo.LatestPendingCode(ctx, user.ID)
	require.NoError(t, err)

	// The lifetime check wins even though the submitted value is correct.
	err = svc.Verify(ctx, user.Email, "1234", now.Add(6*time.Minute))

	assert.ErrorIs(t, err, verification.ErrCodeRejected)

	code, err = repo.GetVerificationCode(ctx, code.ID)
	require.NoError(t, err)
	assert.Equal(t, models.CodeStateExpired, code.State)

	user, err = repo.GetUserByID(ctx, user.ID)
	require.NoError(t, err)
	assert.False(t, user.EmailVerified())
}

func TestVerify_WrongCodeAttemptsInvalidate(t *testing.T) {
	svc, repo := newTestService(t, &testutil.FakeNotifier{}, fixedCodes("1234"))
	ctx := context.Background()
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	user := testutil.NewTestUser(t, repo, "alice@example.com")
	require.NoError(t, svc.Issue(ctx, user.Email, now))
	code, err := repo.LatestPendingCode(ctx, user.ID)
	require.NoError(t, err)

	when := now.Add(time.Minute)
	for range 3 {
		err := svc.Verify(ctx, user.Email, "0000", when)
		assert.ErrorIs(t, err, verification.ErrCodeRejected)
	}

	code, err = repo.GetVerificationCode(ctx, code.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(3), code.Attempts)
	assert.Equal(t, models.CodeStateInvalidated, code.State)

	// The correct value no longer helps: the code is not pending anymore.
	err = svc.Verify(ctx, user.Email, "1234", when)
	assert.ErrorIs(t, err, verification.ErrCodeRejected)
}

func TestVerify_UnknownEmailIndistinguishable(t *testing.T) {
	svc, _ := newTestService(t, &testutil.FakeNotifier{}, nil)

	err := svc.Verify(context.Background(), "nobody@example.com", "1234", time.Now().UTC())

	assert.ErrorIs(t, err, verification.ErrCodeRejected)
}

func TestVerify_NoActiveCode(t *testing.T) {
	svc, repo := newTestService(t, &testutil.FakeNotifier{}, nil)
	ctx := context.Background()

	user := testutil.NewTestUser(t, repo, "alice@example.com")

	err := svc.Verify(ctx, user.Email, "1234", time.Now().UTC())

	assert.ErrorIs(t, err, verification.ErrCodeRejected)
}

func TestIssue_AllowedAgainAfterActivation(t *testing.T) {
	svc, repo := newTestService(t, &testutil.FakeNotifier{}, fixedCodes("1234"))
	ctx := context.Background()
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	user := testutil.NewTestUser(t, repo, "alice@example.com")
	require.NoError(t, svc.Issue(ctx, user.Email, now))

	// Still inside the 5-minute window, but activation empties the pending
	// set, so a fresh issuance goes through.
	assert.ErrorIs(t, svc.Issue(ctx, user.Email, now.Add(time.Minute)), verification.ErrRateLimited)
	require.NoError(t, svc.Verify(ctx, user.Email, "1234", now.Add(2*time.Minute)))

	err := svc.Issue(ctx, user.Email, now.Add(3*time.Minute))

	require.NoError(t, err)
}
