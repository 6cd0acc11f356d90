package postgres_test

import (
	"context"
	"testing"

	"github.com/dom/stream-games/internal/domain"
	"github.com/dom/stream-games/internal/engine"
	"github.com/dom/stream-games/internal/repository"
	"github.com/dom/stream-games/internal/repository/postgres"
	"github.com/dom/stream-games/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTournamentRepository_Start(t *testing.T) {
	testDB := testutil.NewTestDB(t)
	repo := postgres.NewTournamentRepository(testDB.DB)
	ctx := context.Background()

	tournament := &domain.Tournament{Name: "Copa"}
	phase, err := repo.Start(ctx, tournament, engine.BuildTeams([]string{"Red", "Blue"}))
	require.NoError(t, err)
	assert.Equal(t, domain.TournamentActive, tournament.Status)
	assert.Equal(t, 1, tournament.CurrentPhase)
	assert.Equal(t, domain.PhaseOpen, phase.Status)
	assert.Len(t, phase.Teams.Data(), 2)

	_, err = repo.Start(ctx, &domain.Tournament{Name: "Outra"}, engine.PlaceholderTeams())
	assert.ErrorIs(t, err, domain.ErrTournamentAlreadyActive)

	active, err := repo.GetActive(ctx)
	require.NoError(t, err)
	assert.Equal(t, tournament.ID, active.ID)
}

func TestTournamentRepository_GetActiveAndLatest(t *testing.T) {
	testDB := testutil.NewTestDB(t)
	repo := postgres.NewTournamentRepository(testDB.DB)
	ctx := context.Background()

	_, err := repo.GetActive(ctx)
	assert.ErrorIs(t, err, repository.ErrNotFound)
	_, err = repo.GetLatest(ctx)
	assert.ErrorIs(t, err, repository.ErrNotFound)

	tournament, _ := testutil.NewTournamentBuilder().WithName("Copa").Build(t, testDB.DB)
	_, _, err = repo.Finish(ctx, 10)
	require.NoError(t, err)

	_, err = repo.GetActive(ctx)
	assert.ErrorIs(t, err, repository.ErrNotFound)

	latest, err := repo.GetLatest(ctx)
	require.NoError(t, err)
	assert.Equal(t, tournament.ID, latest.ID)
	assert.Equal(t, domain.TournamentFinished, latest.Status)
}

func TestTournamentRepository_DecidePhase(t *testing.T) {
	testDB := testutil.NewTestDB(t)
	repo := postgres.NewTournamentRepository(testDB.DB)
	participants := postgres.NewParticipantRepository(testDB.DB)
	ctx := context.Background()

	tournament, _ := testutil.NewTournamentBuilder().Build(t, testDB.DB)
	testutil.AddParticipant(t, testDB.DB, tournament, 1, "ana", "blue")
	testutil.AddParticipant(t, testDB.DB, tournament, 1, "bia", "red")
	testutil.AddParticipant(t, testDB.DB, tournament, 1, "caio", "red")
	testutil.AddParticipant(t, testDB.DB, tournament, 1, "duda", "")

	_, err := repo.DecidePhase(ctx, "purple")
	assert.ErrorIs(t, err, domain.ErrInvalidTeam)

	res, err := repo.DecidePhase(ctx, "#1")
	require.NoError(t, err)
	assert.Equal(t, "red", res.Winner.Key)
	assert.Equal(t, 2, res.Survivors)
	assert.Equal(t, 2, res.Eliminated)
	assert.Equal(t, domain.PhaseDecided, res.Phase.Status)
	assert.NotNil(t, res.Phase.ClosedAt, "deciding an open phase closes it too")

	for _, name := range []string{"ana", "duda"} {
		p, err := participants.Get(ctx, tournament.ID, name)
		require.NoError(t, err)
		assert.False(t, p.Alive, name)
		require.NotNil(t, p.EliminatedAtPhase)
		assert.Equal(t, 1, *p.EliminatedAtPhase)
	}

	stored, err := repo.GetPhase(ctx, tournament.ID, 1)
	require.NoError(t, err)
	require.NotNil(t, stored.WinningTeamKey)
	assert.Equal(t, "red", *stored.WinningTeamKey)

	_, err = repo.DecidePhase(ctx, "red")
	assert.ErrorIs(t, err, domain.ErrPhaseDecided)
}

func TestTournamentRepository_EliminatedStayEliminated(t *testing.T) {
	testDB := testutil.NewTestDB(t)
	repo := postgres.NewTournamentRepository(testDB.DB)
	participants := postgres.NewParticipantRepository(testDB.DB)
	ctx := context.Background()

	tournament, _ := testutil.NewTournamentBuilder().WithTeams("Red", "Blue").Build(t, testDB.DB)
	testutil.AddParticipant(t, testDB.DB, tournament, 1, "ana", "blue")
	testutil.AddParticipant(t, testDB.DB, tournament, 1, "bia", "red")

	_, err := repo.DecidePhase(ctx, "red")
	require.NoError(t, err)

	_, next, err := repo.OpenNextPhase(ctx, engine.BuildTeams([]string{"Lobos", "Corvos"}))
	require.NoError(t, err)
	assert.Equal(t, 2, next.Number)

	_, err = participants.Join(ctx, repository.JoinInput{Name: "bia", NameKey: "bia", TeamInput: "corvos"})
	require.NoError(t, err)

	res, err := repo.DecidePhase(ctx, "lobos")
	require.NoError(t, err)
	assert.Equal(t, 0, res.Survivors)
	assert.Equal(t, 1, res.Eliminated)

	ana, err := participants.Get(ctx, tournament.ID, "ana")
	require.NoError(t, err)
	assert.Equal(t, 1, *ana.EliminatedAtPhase, "earlier elimination is not overwritten")

	bia, err := participants.Get(ctx, tournament.ID, "bia")
	require.NoError(t, err)
	assert.Equal(t, 2, *bia.EliminatedAtPhase)
}

func TestTournamentRepository_SetPoints(t *testing.T) {
	testDB := testutil.NewTestDB(t)
	repo := postgres.NewTournamentRepository(testDB.DB)
	ctx := context.Background()

	tournament, _ := testutil.NewTournamentBuilder().Build(t, testDB.DB)

	_, _, err := repo.SetPoints(ctx, []repository.PointsEntry{{Team: "red", Points: 3}, {Team: "#3", Points: 8}})
	require.NoError(t, err)

	// A second call replaces the whole map
	_, p, err := repo.SetPoints(ctx, []repository.PointsEntry{{Team: "Blue", Points: 1}, {Team: "nope", Points: 9}})
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"blue": 1}, p.Points.Data())

	stored, err := repo.GetPhase(ctx, tournament.ID, 1)
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"blue": 1}, stored.Points.Data())
}

func TestParticipantRepository_Join(t *testing.T) {
	testDB := testutil.NewTestDB(t)
	repo := postgres.NewParticipantRepository(testDB.DB)
	ctx := context.Background()

	_, err := repo.Join(ctx, repository.JoinInput{Name: "ana", NameKey: "ana", TeamInput: "red"})
	assert.ErrorIs(t, err, domain.ErrTournamentInactive)

	tournament, _ := testutil.NewTournamentBuilder().Build(t, testDB.DB)

	display := "Ana Maria"
	res, err := repo.Join(ctx, repository.JoinInput{Name: "ana", NameKey: "ana", DisplayName: &display, TeamInput: "2"})
	require.NoError(t, err)
	assert.Equal(t, "blue", res.Team.Key)
	assert.True(t, res.Participant.Alive)

	_, err = repo.Join(ctx, repository.JoinInput{Name: "Ana", NameKey: "ana", TeamInput: "green"})
	require.NoError(t, err)

	counts, err := repo.CountChoices(ctx, tournament.ID, 1)
	require.NoError(t, err)
	assert.Equal(t, map[string]int64{"green": 1}, counts)

	lists, err := repo.ListChoosers(ctx, tournament.ID, 1)
	require.NoError(t, err)
	require.Len(t, lists["green"], 1)
	assert.Equal(t, repository.TeamMember{Name: "Ana", DisplayName: "Ana Maria"}, lists["green"][0])

	_, err = repo.Join(ctx, repository.JoinInput{Name: "bia", NameKey: "bia", TeamInput: "yellow"})
	assert.ErrorIs(t, err, domain.ErrInvalidTeam)

	alive, err := repo.ListAlive(ctx, tournament.ID, 10)
	require.NoError(t, err)
	assert.Len(t, alive, 1)
}
