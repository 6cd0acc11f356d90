package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/dom/stream-games/internal/domain"
	"github.com/dom/stream-games/internal/repository/postgres"
	"github.com/dom/stream-games/internal/service"
	"github.com/dom/stream-games/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestAuthService_Login(t *testing.T) {
	testDB := testutil.NewTestDB(t)
	repos := postgres.NewRepositories(testDB.DB)
	authService := service.NewAuthService(repos.Operator, repos.Session, testutil.TestConfig())
	ctx := context.Background()

	operator, rawPassword := testutil.NewOperatorBuilder().
		WithUsername("streamer").
		WithPassword("correctpassword").
		Build(t, testDB.DB)

	tests := []struct {
		name    string
		input   service.LoginInput
		wantErr error
	}{
		{
			name:  "successful login",
			input: service.LoginInput{Username: operator.Username, Password: rawPassword},
		},
		{
			name:    "wrong password",
			input:   service.LoginInput{Username: operator.Username, Password: "wrong"},
			wantErr: domain.ErrUnauthorized,
		},
		{
			name:    "unknown operator",
			input:   service.LoginInput{Username: "ghost", Password: rawPassword},
			wantErr: domain.ErrUnauthorized,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := authService.Login(ctx, tt.input)

			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, operator.ID, result.Operator.ID)
			assert.NotEmpty(t, result.Token)
			assert.NotEmpty(t, result.CSRFToken)
			assert.True(t, result.ExpiresAt.After(time.Now()))
		})
	}
}

func TestAuthService_ValidateTokenAndLogout(t *testing.T) {
	testDB := testutil.NewTestDB(t)
	repos := postgres.NewRepositories(testDB.DB)
	authService := service.NewAuthService(repos.Operator, repos.Session, testutil.TestConfig())
	ctx := context.Background()

	operator, rawPassword := testutil.NewOperatorBuilder().Build(t, testDB.DB)
	result, err := authService.Login(ctx, service.LoginInput{Username: operator.Username, Password: rawPassword})
	require.NoError(t, err)

	claims, err := authService.ValidateToken(ctx, result.Token)
	require.NoError(t, err)
	assert.Equal(t, operator.ID, claims.OperatorID)

	_, err = authService.ValidateToken(ctx, result.Token+"tampered")
	assert.ErrorIs(t, err, domain.ErrUnauthorized)

	otherCfg := testutil.TestConfig()
	otherCfg.JWTSecret = "another-secret"
	other := service.NewAuthService(repos.Operator, repos.Session, otherCfg)
	_, err = other.ValidateToken(ctx, result.Token)
	assert.ErrorIs(t, err, domain.ErrUnauthorized)

	require.NoError(t, authService.Logout(ctx, claims.SessionID))
	_, err = authService.ValidateToken(ctx, result.Token)
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
}

func TestAuthService_ExpiredSession(t *testing.T) {
	testDB := testutil.NewTestDB(t)
	repos := postgres.NewRepositories(testDB.DB)
	cfg := testutil.TestConfig()
	cfg.SessionTTL = -time.Minute
	authService := service.NewAuthService(repos.Operator, repos.Session, cfg)
	ctx := context.Background()

	operator, rawPassword := testutil.NewOperatorBuilder().Build(t, testDB.DB)
	result, err := authService.Login(ctx, service.LoginInput{Username: operator.Username, Password: rawPassword})
	require.NoError(t, err)

	_, err = authService.ValidateToken(ctx, result.Token)
	assert.ErrorIs(t, err, domain.ErrUnauthorized)

	pruned, err := authService.PruneSessions(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), pruned)
}

func TestAuthService_EnsureOperator(t *testing.T) {
	testDB := testutil.NewTestDB(t)
	repos := postgres.NewRepositories(testDB.DB)
	ctx := context.Background()

	cfg := testutil.TestConfig()
	authService := service.NewAuthService(repos.Operator, repos.Session, cfg)

	op, err := authService.EnsureOperator(ctx)
	require.NoError(t, err)
	assert.Nil(t, op, "nothing configured")

	cfg.AdminUser = "admin"
	cfg.AdminPasswordHash = "plain-text"
	_, err = authService.EnsureOperator(ctx)
	assert.Error(t, err)

	hash, err := bcrypt.GenerateFromPassword([]byte("first"), bcrypt.MinCost)
	require.NoError(t, err)
	cfg.AdminPasswordHash = string(hash)
	op, err = authService.EnsureOperator(ctx)
	require.NoError(t, err)
	require.NotNil(t, op)

	_, err = authService.Login(ctx, service.LoginInput{Username: "admin", Password: "first"})
	require.NoError(t, err)

	// Rotating the hash keeps the same operator row
	hash, err = bcrypt.GenerateFromPassword([]byte("second"), bcrypt.MinCost)
	require.NoError(t, err)
	cfg.AdminPasswordHash = string(hash)
	rotated, err := authService.EnsureOperator(ctx)
	require.NoError(t, err)
	assert.Equal(t, op.ID, rotated.ID)

	_, err = authService.Login(ctx, service.LoginInput{Username: "admin", Password: "first"})
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
	_, err = authService.Login(ctx, service.LoginInput{Username: "admin", Password: "second"})
	require.NoError(t, err)
}
