package userrepo_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stockledger/internal/domain"
	apperror "stockledger/internal/errors"
	"stockledger/internal/pkg/database/dbtest"
	"stockledger/internal/pkg/logger"
	"stockledger/internal/repository/userrepo"
)

func TestUserRepository(t *testing.T) {
	repo := userrepo.NewUserRepository(dbtest.NewSQLite(t), logger.NewNop())
	ctx := context.Background()

	saved, err := repo.Save(ctx, domain.User{
		Username:     "admin",
		Email:        "admin@example.com",
		PasswordHash: "hash",
		IsAdmin:      true,
	})
	require.NoError(t, err)
	assert.NotZero(t, saved.ID)

	byName, err := repo.FindByUsername(ctx, "admin")
	require.NoError(t, err)
	assert.Equal(t, saved.ID, byName.ID)
	assert.True(t, byName.IsAdmin)
	assert.Equal(t, "hash", byName.PasswordHash)

	byID, err := repo.FindByID(ctx, saved.ID)
	require.NoError(t, err)
	assert.Equal(t, "admin@example.com", byID.Email)

	_, err = repo.FindByUsername(ctx, "ghost")
	assert.True(t, apperror.IsNotFound(err))
}

func TestUserRepository_DuplicateIsConflict(t *testing.T) {
	repo := userrepo.NewUserRepository(dbtest.NewSQLite(t), logger.NewNop())
	ctx := context.Background()

	_, err := repo.Save(ctx, domain.User{Username: "kim", Email: "kim@example.com", PasswordHash: "h"})
	require.NoError(t, err)

	_, err = repo.Save(ctx, domain.User{Username: "kim", Email: "other@example.com", PasswordHash: "h"})
	var conflict *apperror.ConflictError
	assert.True(t, errors.As(err, &conflict))
}
