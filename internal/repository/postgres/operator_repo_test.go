package postgres_test

import (
	"context"
	"testing"
	"time"

	"github.com/dom/stream-games/internal/domain"
	"github.com/dom/stream-games/internal/repository"
	"github.com/dom/stream-games/internal/repository/postgres"
	"github.com/dom/stream-games/internal/testutil"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOperatorRepository_GetByUsername(t *testing.T) {
	testDB := testutil.NewTestDB(t)
	repo := postgres.NewOperatorRepository(testDB.DB)
	ctx := context.Background()

	operator, _ := testutil.NewOperatorBuilder().WithUsername("streamer").Build(t, testDB.DB)

	tests := []struct {
		name     string
		username string
		wantErr  error
	}{
		{name: "existing operator", username: "streamer"},
		{name: "unknown operator", username: "ghost", wantErr: repository.ErrNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := repo.GetByUsername(ctx, tt.username)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, operator.ID, got.ID)
		})
	}
}

func TestOperatorRepository_UpsertCredentials(t *testing.T) {
	testDB := testutil.NewTestDB(t)
	repo := postgres.NewOperatorRepository(testDB.DB)
	ctx := context.Background()

	created, err := repo.UpsertCredentials(ctx, "admin", "hash-1")
	require.NoError(t, err)

	rotated, err := repo.UpsertCredentials(ctx, "admin", "hash-2")
	require.NoError(t, err)
	assert.Equal(t, created.ID, rotated.ID)
	assert.Equal(t, "hash-2", rotated.PasswordHash)
}

func TestSessionRepository_Lifecycle(t *testing.T) {
	testDB := testutil.NewTestDB(t)
	sessions := postgres.NewSessionRepository(testDB.DB)
	ctx := context.Background()

	operator, _ := testutil.NewOperatorBuilder().Build(t, testDB.DB)
	now := time.Now()

	live := &domain.OperatorSession{ID: uuid.New(), OperatorID: operator.ID, ExpiresAt: now.Add(time.Hour)}
	stale := &domain.OperatorSession{ID: uuid.New(), OperatorID: operator.ID, ExpiresAt: now.Add(-time.Minute)}
	require.NoError(t, sessions.Create(ctx, live))
	require.NoError(t, sessions.Create(ctx, stale))

	pruned, err := sessions.DeleteExpired(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, int64(1), pruned)

	got, err := sessions.GetByID(ctx, live.ID)
	require.NoError(t, err)
	assert.Equal(t, operator.ID, got.OperatorID)

	require.NoError(t, sessions.Delete(ctx, live.ID))
	_, err = sessions.GetByID(ctx, live.ID)
	assert.ErrorIs(t, err, repository.ErrNotFound)
}
