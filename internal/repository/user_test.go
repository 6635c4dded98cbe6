// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package repository_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"codeberg.org/oliverandrich/verifyd/internal/repository"
	"codeberg.org/oliverandrich/verifyd/internal/testutil"
)

func TestCreateUser(t *testing.T) {
	_, repo := testutil.NewTestDB(t)
	ctx := context.Background()

	user, err := repo.CreateUser(ctx, "test@example.com")

	require.NoError(t, err)
	assert.NotZero(t, user.ID)
	assert.Equal(t, "test@example.com", user.Email)
	assert.False(t, user.EmailVerified())
}

func TestCreateUser_DuplicateEmail(t *testing.T) {
	_, repo := testutil.NewTestDB(t)
	ctx := context.Background()

	_, err := repo.CreateUser(ctx, "test@example.com")
	require.NoError(t, err)

	_, err = repo.CreateUser(ctx, "test@example.com")

	assert.Error(t, err)
}

func TestGetUserByEmail(t *testing.T) {
	_, repo := testutil.NewTestDB(t)
	ctx := context.Background()

	created, err := repo.CreateUser(ctx, "test@example.com")
	require.NoError(t, err)

	retrieved, err := repo.GetUserByEmail(ctx, "test@example.com")

	require.NoError(t, err)
	assert.Equal(t, created.ID, retrieved.ID)
	assert.Equal(t, "test@example.com", retrieved.Email)
}

func TestGetUserByEmail_NotFound(t *testing.T) {
	_, repo := testutil.NewTestDB(t)

	_, err := repo.GetUserByEmail(context.Background(), "nonexistent@example.com")

	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestGetUserByID_NotFound(t *testing.T) {
	_, repo := testutil.NewTestDB(t)

	_, err := repo.GetUserByID(context.Background(), 4711)

	assert.ErrorIs(t, err, repository.ErrNotFound)
}
