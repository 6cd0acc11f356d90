package service_test

import (
	"context"
	"sync"
	"testing"

	"github.com/dom/stream-games/internal/broadcast"
	"github.com/dom/stream-games/internal/domain"
	"github.com/dom/stream-games/internal/repository"
	"github.com/dom/stream-games/internal/repository/postgres"
	"github.com/dom/stream-games/internal/service"
	"github.com/dom/stream-games/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type tournamentFixture struct {
	db        *testutil.TestDB
	repos     *repository.Repositories
	svc       *service.TournamentService
	publisher *testutil.RecordingPublisher
	announcer *testutil.RecordingAnnouncer
}

func newTournamentFixture(t *testing.T) *tournamentFixture {
	t.Helper()

	testDB := testutil.NewTestDB(t)
	repos := postgres.NewRepositories(testDB.DB)
	publisher := &testutil.RecordingPublisher{}
	announcer := &testutil.RecordingAnnouncer{}

	return &tournamentFixture{
		db:        testDB,
		repos:     repos,
		svc:       service.NewTournamentService(repos.Tournament, repos.Participant, publisher, announcer, testutil.DiscardLogger()),
		publisher: publisher,
		announcer: announcer,
	}
}

func (f *tournamentFixture) join(t *testing.T, user, team string) *service.JoinResult {
	t.Helper()
	res, err := f.svc.Join(context.Background(), service.JoinInput{User: user, Team: team})
	require.NoError(t, err)
	return res
}

func TestTournamentService_DecideEliminatesWrongPicks(t *testing.T) {
	f := newTournamentFixture(t)
	ctx := context.Background()

	tournament, phase, err := f.svc.Start(ctx, "", []string{"Red", "Blue", "Green"})
	require.NoError(t, err)
	assert.Equal(t, domain.DefaultTournamentName, tournament.Name)
	assert.Equal(t, 1, phase.Number)

	ana := f.join(t, "Ana", "blue")
	assert.Equal(t, "blue", ana.TeamKey)
	bia := f.join(t, "Bia", "Red")
	assert.Equal(t, "Red", bia.TeamName)
	assert.Equal(t, map[string]int64{"blue": 1, "red": 1}, bia.CountsByKey)

	// Registered without a pick for this phase
	testutil.AddParticipant(t, f.db.DB, tournament, 1, "Caio", "")

	result, err := f.svc.Decide(ctx, "Red")
	require.NoError(t, err)
	assert.Equal(t, "red", result.WinnerTeam.Key)
	assert.Equal(t, 1, result.Survivors)
	assert.Equal(t, 2, result.Eliminated)

	got, err := f.repos.Participant.Get(ctx, tournament.ID, "ana")
	require.NoError(t, err)
	assert.False(t, got.Alive)
	require.NotNil(t, got.EliminatedAtPhase)
	assert.Equal(t, 1, *got.EliminatedAtPhase)

	got, err = f.repos.Participant.Get(ctx, tournament.ID, "caio")
	require.NoError(t, err)
	assert.False(t, got.Alive)

	got, err = f.repos.Participant.Get(ctx, tournament.ID, "bia")
	require.NoError(t, err)
	assert.True(t, got.Alive)
	assert.Nil(t, got.EliminatedAtPhase)
}

func TestTournamentService_OpenNextRequiresDecided(t *testing.T) {
	f := newTournamentFixture(t)
	ctx := context.Background()

	_, _, err := f.svc.Start(ctx, "Copa", []string{"Red", "Blue"})
	require.NoError(t, err)
	f.join(t, "ana", "red")

	_, err = f.svc.OpenNextPhase(ctx, []string{"X", "Y"})
	testutil.AssertErrorIs(t, err, domain.ErrPhaseNotDecided)

	_, err = f.svc.ClosePhase(ctx)
	require.NoError(t, err)
	_, err = f.svc.OpenNextPhase(ctx, []string{"X", "Y"})
	testutil.AssertErrorIs(t, err, domain.ErrPhaseNotDecided)

	_, err = f.svc.Decide(ctx, "red")
	require.NoError(t, err)

	next, err := f.svc.OpenNextPhase(ctx, []string{"X", "Y"})
	require.NoError(t, err)
	assert.Equal(t, 2, next.Number)
	assert.Equal(t, domain.PhaseOpen, next.Status)

	active, err := f.repos.Tournament.GetActive(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, active.CurrentPhase)
}

func TestTournamentService_PhaseTransitions(t *testing.T) {
	f := newTournamentFixture(t)
	ctx := context.Background()

	_, err := f.svc.ClosePhase(ctx)
	testutil.AssertErrorIs(t, err, domain.ErrTournamentInactive)

	_, _, err = f.svc.Start(ctx, "Copa", []string{"Red", "Blue"})
	require.NoError(t, err)

	_, _, err = f.svc.Start(ctx, "Outra", []string{"A", "B"})
	testutil.AssertErrorIs(t, err, domain.ErrTournamentAlreadyActive)

	updated, err := f.svc.UpdateTeams(ctx, []string{"Lobos", "Corvos", "Lobos"})
	require.NoError(t, err)
	teams := updated.Teams.Data()
	require.Len(t, teams, 3)
	assert.Equal(t, "lobos2", teams[2].Key)

	closed, err := f.svc.ClosePhase(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.PhaseClosed, closed.Status)

	again, err := f.svc.ClosePhase(ctx)
	require.NoError(t, err, "closing twice is a no-op")
	assert.Equal(t, domain.PhaseClosed, again.Status)

	_, err = f.svc.UpdateTeams(ctx, []string{"A", "B"})
	testutil.AssertErrorIs(t, err, domain.ErrPhaseNotOpen)

	_, err = f.svc.Join(ctx, service.JoinInput{User: "ana", Team: "lobos"})
	testutil.AssertErrorIs(t, err, domain.ErrPhaseNotOpen)

	_, err = f.svc.Decide(ctx, "ninguem")
	testutil.AssertErrorIs(t, err, domain.ErrInvalidTeam)

	_, err = f.svc.Decide(ctx, "#2")
	require.NoError(t, err)

	_, err = f.svc.Decide(ctx, "#1")
	testutil.AssertErrorIs(t, err, domain.ErrPhaseDecided)

	_, err = f.svc.ClosePhase(ctx)
	testutil.AssertErrorIs(t, err, domain.ErrPhaseDecided)
}

func TestTournamentService_JoinRules(t *testing.T) {
	f := newTournamentFixture(t)
	ctx := context.Background()

	_, err := f.svc.Join(ctx, service.JoinInput{User: "ana", Team: "red"})
	testutil.AssertErrorIs(t, err, domain.ErrTournamentInactive)

	tournament, _, err := f.svc.Start(ctx, "Copa", []string{"Red", "Blue"})
	require.NoError(t, err)

	_, err = f.svc.Join(ctx, service.JoinInput{User: "@@", Team: "red"})
	testutil.AssertErrorIs(t, err, domain.ErrInvalidParticipant)

	_, err = f.svc.Join(ctx, service.JoinInput{User: "ana", Team: "purple"})
	testutil.AssertErrorIs(t, err, domain.ErrInvalidTeam)

	// Re-picking moves the vote instead of adding one
	f.join(t, "ana", "red")
	res, err := f.svc.Join(ctx, service.JoinInput{User: "@ANA", DisplayName: "Ana Maria", Team: "blue"})
	require.NoError(t, err)
	assert.Equal(t, map[string]int64{"blue": 1}, res.CountsByKey)

	p, err := f.repos.Participant.Get(ctx, tournament.ID, "ana")
	require.NoError(t, err)
	assert.Equal(t, "Ana Maria", p.Label())

	// A later pick without a display name keeps the stored one
	f.join(t, "ana", "red")
	p, err = f.repos.Participant.Get(ctx, tournament.ID, "ana")
	require.NoError(t, err)
	assert.Equal(t, "Ana Maria", p.Label())

	_, err = f.svc.Decide(ctx, "red")
	require.NoError(t, err)
	_, err = f.svc.OpenNextPhase(ctx, []string{"Lobos", "Corvos"})
	require.NoError(t, err)

	_, err = f.svc.Join(ctx, service.JoinInput{User: "newcomer", Team: "lobos"})
	testutil.AssertErrorIs(t, err, domain.ErrNotAlive)

	res = f.join(t, "ana", "corvos")
	assert.Equal(t, 2, res.Phase)
}

func TestTournamentService_SetPointsAndState(t *testing.T) {
	f := newTournamentFixture(t)
	ctx := context.Background()

	state, err := f.svc.PublicState(ctx)
	require.NoError(t, err)
	assert.False(t, state.Active)

	_, _, err = f.svc.Start(ctx, "Copa", []string{"Red", "Blue"})
	require.NoError(t, err)
	f.join(t, "ana", "red")
	f.join(t, "bia", "red")
	f.join(t, "caio", "blue")

	_, err = f.svc.SetPoints(ctx, []repository.PointsEntry{
		{Team: "RED", Points: 10},
		{Team: "#2", Points: 4},
		{Team: "ghost", Points: 99},
	})
	require.NoError(t, err)

	public, err := f.svc.PublicState(ctx)
	require.NoError(t, err)
	require.NotNil(t, public.Phase)
	assert.Equal(t, map[string]int{"red": 10, "blue": 4}, public.Phase.Points)
	require.Len(t, public.Phase.Teams, 2)
	assert.Equal(t, int64(2), public.Phase.Teams[0].Count)
	assert.Nil(t, public.Phase.Teams[0].List)
	assert.Nil(t, public.Alive)

	operator, err := f.svc.OperatorState(ctx)
	require.NoError(t, err)
	require.Len(t, operator.Phase.Teams[0].List, 2)
	assert.Equal(t, "bia", operator.Phase.Teams[0].List[0].Name, "most recent first")
	assert.Len(t, operator.Alive, 3)
}

func TestTournamentService_FinishAndWinners(t *testing.T) {
	f := newTournamentFixture(t)
	ctx := context.Background()

	empty, err := f.svc.Winners(ctx, 0)
	require.NoError(t, err)
	assert.False(t, empty.Active)
	assert.Empty(t, empty.Rows)

	_, _, err = f.svc.Start(ctx, "Copa", []string{"Red", "Blue"})
	require.NoError(t, err)
	f.join(t, "ana", "red")
	f.join(t, "bia", "red")
	f.join(t, "caio", "blue")
	_, err = f.svc.Decide(ctx, "red")
	require.NoError(t, err)

	live, err := f.svc.Winners(ctx, 0)
	require.NoError(t, err)
	assert.True(t, live.Active)
	assert.Len(t, live.Rows, 2)

	finished, winners, err := f.svc.Finish(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, domain.TournamentFinished, finished.Status)
	assert.NotNil(t, finished.EndedAt)
	require.Len(t, winners, 1)

	after, err := f.svc.Winners(ctx, 10)
	require.NoError(t, err)
	assert.False(t, after.Active)
	assert.Len(t, after.Rows, 2)

	_, _, err = f.svc.Finish(ctx, 0)
	testutil.AssertErrorIs(t, err, domain.ErrTournamentInactive)

	// A fresh tournament can start once the previous one is finished
	_, _, err = f.svc.Start(ctx, "Revanche", []string{"A", "B"})
	require.NoError(t, err)
}

func TestTournamentService_NotifiesAndAnnounces(t *testing.T) {
	f := newTournamentFixture(t)
	ctx := context.Background()

	_, _, err := f.svc.Start(ctx, "Copa", []string{"Red", "Blue"})
	require.NoError(t, err)
	f.join(t, "ana", "red")
	_, err = f.svc.ClosePhase(ctx)
	require.NoError(t, err)
	_, err = f.svc.Decide(ctx, "red")
	require.NoError(t, err)

	var reasons []interface{}
	for _, e := range f.publisher.Events(broadcast.PoolGlobal) {
		assert.Equal(t, broadcast.EventTournamentChanged, e.Name)
		reasons = append(reasons, e.Payload.(map[string]interface{})["reason"])
	}
	assert.Equal(t, []interface{}{"start", "join", "close", "decide"}, reasons)

	decide := f.publisher.Events(broadcast.PoolGlobal)[3].Payload.(map[string]interface{})
	assert.Equal(t, "red", decide["winnerTeam"])

	messages := f.announcer.Messages()
	require.Len(t, messages, 3)
	assert.Contains(t, messages[2], "Red")
}

func TestTournamentService_ConcurrentStart(t *testing.T) {
	f := newTournamentFixture(t)
	ctx := context.Background()

	const n = 5
	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, _, errs[i] = f.svc.Start(ctx, "Copa", []string{"Red", "Blue"})
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		assert.ErrorIs(t, err, domain.ErrTournamentAlreadyActive)
	}
	assert.Equal(t, 1, succeeded)
}

func TestTournamentService_ConcurrentJoinsAndDecide(t *testing.T) {
	f := newTournamentFixture(t)
	ctx := context.Background()

	_, _, err := f.svc.Start(ctx, "Copa", []string{"Red", "Blue"})
	require.NoError(t, err)

	const n = 20
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			team := "red"
			if i%2 == 1 {
				team = "blue"
			}
			_, _ = f.svc.Join(ctx, service.JoinInput{User: "viewer" + string(rune('a'+i)), Team: team})
		}(i)
	}
	wg.Wait()

	result, err := f.svc.Decide(ctx, "red")
	require.NoError(t, err)
	assert.Equal(t, n/2, result.Survivors)
	assert.Equal(t, n/2, result.Eliminated)
}
