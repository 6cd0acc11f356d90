package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/dom/stream-games/internal/announce"
	"github.com/dom/stream-games/internal/broadcast"
	"github.com/dom/stream-games/internal/domain"
	"github.com/dom/stream-games/internal/engine"
	"github.com/dom/stream-games/internal/repository"
	"github.com/google/uuid"
)

const (
	DefaultFinishLimit  = 80
	DefaultWinnersLimit = 50
	MaxListLimit        = 2000
)

type TournamentService struct {
	tournamentRepo  repository.TournamentRepository
	participantRepo repository.ParticipantRepository
	publisher       Publisher
	announcer       announce.Announcer
	logger          *slog.Logger
}

func NewTournamentService(tournamentRepo repository.TournamentRepository, participantRepo repository.ParticipantRepository, publisher Publisher, announcer announce.Announcer, logger *slog.Logger) *TournamentService {
	return &TournamentService{
		tournamentRepo:  tournamentRepo,
		participantRepo: participantRepo,
		publisher:       publisher,
		announcer:       announcer,
		logger:          logger,
	}
}

type TeamView struct {
	Key    string                  `json:"key"`
	Name   string                  `json:"name"`
	Count  int64                   `json:"count"`
	Points int                     `json:"points"`
	List   []repository.TeamMember `json:"list,omitempty"`
}

type PhaseView struct {
	Number      int                `json:"number"`
	Status      domain.PhaseStatus `json:"status"`
	WinnerTeam  *string            `json:"winnerTeam"`
	Teams       []TeamView         `json:"teams"`
	CountsByKey map[string]int64   `json:"countsByKey"`
	Points      map[string]int     `json:"points"`
}

type AliveView struct {
	Name       string `json:"name"`
	TwitchName string `json:"twitchName"`
}

type TournamentState struct {
	Active     bool               `json:"active"`
	Tournament *domain.Tournament `json:"tournament"`
	Phase      *PhaseView         `json:"phase"`
	Alive      []AliveView        `json:"alive,omitempty"`
}

type JoinInput struct {
	User        string
	DisplayName string
	Team        string
}

type JoinResult struct {
	TournamentID uuid.UUID        `json:"tournamentId"`
	Phase        int              `json:"phase"`
	TeamKey      string           `json:"teamKey"`
	TeamName     string           `json:"teamName"`
	CountsByKey  map[string]int64 `json:"countsByKey"`
}

type DecideResult struct {
	Phase      int         `json:"phase"`
	WinnerTeam domain.Team `json:"winnerTeam"`
	Survivors  int         `json:"survivors"`
	Eliminated int         `json:"eliminated"`
}

type WinnerView struct {
	TwitchName  string    `json:"twitchName"`
	DisplayName string    `json:"displayName"`
	JoinedAt    time.Time `json:"joinedAt"`
}

type WinnersList struct {
	Active     bool               `json:"active"`
	Tournament *domain.Tournament `json:"tournament"`
	Rows       []WinnerView       `json:"rows"`
}

func (s *TournamentService) Start(ctx context.Context, name string, teamNames []string) (*domain.Tournament, *domain.Phase, error) {
	tournament := &domain.Tournament{
		ID:   uuid.New(),
		Name: engine.SafeText(name, 80),
	}
	if tournament.Name == "" {
		tournament.Name = domain.DefaultTournamentName
	}

	teams := engine.BuildTeams(teamNames)
	phase, err := s.tournamentRepo.Start(ctx, tournament, teams)
	if err != nil {
		return nil, nil, err
	}

	s.notify("start", map[string]interface{}{"tournamentId": tournament.ID})
	s.announce(ctx, announce.PhaseOpened(tournament.Name, phase.Number, teams))
	return tournament, phase, nil
}

func (s *TournamentService) ClosePhase(ctx context.Context) (*domain.Phase, error) {
	t, p, err := s.tournamentRepo.ClosePhase(ctx)
	if err != nil {
		return nil, err
	}

	s.notify("close", map[string]interface{}{"tournamentId": t.ID, "phase": p.Number})
	s.announce(ctx, announce.PhaseClosed(t.Name, p.Number))
	return p, nil
}

func (s *TournamentService) UpdateTeams(ctx context.Context, teamNames []string) (*domain.Phase, error) {
	t, p, err := s.tournamentRepo.UpdateTeams(ctx, engine.BuildTeams(teamNames))
	if err != nil {
		return nil, err
	}

	s.notify("teams", map[string]interface{}{"tournamentId": t.ID, "phase": p.Number})
	return p, nil
}

func (s *TournamentService) SetPoints(ctx context.Context, entries []repository.PointsEntry) (*domain.Phase, error) {
	t, p, err := s.tournamentRepo.SetPoints(ctx, entries)
	if err != nil {
		return nil, err
	}

	s.notify("points", map[string]interface{}{"tournamentId": t.ID, "phase": p.Number})
	return p, nil
}

// Decide settles the current phase and eliminates everyone who did not pick
// the winning team.
func (s *TournamentService) Decide(ctx context.Context, teamInput string) (*DecideResult, error) {
	res, err := s.tournamentRepo.DecidePhase(ctx, teamInput)
	if err != nil {
		return nil, err
	}

	s.notify("decide", map[string]interface{}{
		"tournamentId": res.Tournament.ID,
		"phase":        res.Phase.Number,
		"winnerTeam":   res.Winner.Key,
	})
	s.announce(ctx, announce.PhaseDecided(res.Tournament.Name, res.Phase.Number, res.Winner.Name))

	return &DecideResult{
		Phase:      res.Phase.Number,
		WinnerTeam: res.Winner,
		Survivors:  res.Survivors,
		Eliminated: res.Eliminated,
	}, nil
}

func (s *TournamentService) OpenNextPhase(ctx context.Context, teamNames []string) (*domain.Phase, error) {
	teams := engine.BuildTeams(teamNames)
	t, p, err := s.tournamentRepo.OpenNextPhase(ctx, teams)
	if err != nil {
		return nil, err
	}

	s.notify("open-next", map[string]interface{}{"tournamentId": t.ID, "phase": p.Number})
	s.announce(ctx, announce.PhaseOpened(t.Name, p.Number, teams))
	return p, nil
}

// Finish ends the active tournament and returns up to limit surviving
// participants as its winners.
func (s *TournamentService) Finish(ctx context.Context, limit int) (*domain.Tournament, []*domain.Participant, error) {
	if limit <= 0 {
		limit = DefaultFinishLimit
	}
	limit = engine.ClampInt(limit, 1, MaxListLimit)

	t, winners, err := s.tournamentRepo.Finish(ctx, limit)
	if err != nil {
		return nil, nil, err
	}

	handles := make([]string, 0, len(winners))
	for _, w := range winners {
		handles = append(handles, w.Name)
	}

	s.notify("finish", map[string]interface{}{"tournamentId": t.ID})
	s.announce(ctx, announce.TournamentFinished(t.Name, handles))
	return t, winners, nil
}

// Join records the participant's team pick for the current phase.
func (s *TournamentService) Join(ctx context.Context, input JoinInput) (*JoinResult, error) {
	name := engine.SanitizeName(input.User, engine.MaxParticipantName)
	key := engine.NormalizeName(name)
	if name == "" || key == "" {
		return nil, domain.ErrInvalidParticipant
	}

	var display *string
	if d := engine.SafeText(input.DisplayName, engine.MaxDisplayName); d != "" {
		display = &d
	}

	res, err := s.participantRepo.Join(ctx, repository.JoinInput{
		Name:        name,
		NameKey:     key,
		DisplayName: display,
		TeamInput:   input.Team,
	})
	if err != nil {
		return nil, err
	}

	counts, err := s.participantRepo.CountChoices(ctx, res.Tournament.ID, res.Phase.Number)
	if err != nil {
		return nil, err
	}

	s.notify("join", map[string]interface{}{"tournamentId": res.Tournament.ID, "phase": res.Phase.Number})

	return &JoinResult{
		TournamentID: res.Tournament.ID,
		Phase:        res.Phase.Number,
		TeamKey:      res.Team.Key,
		TeamName:     res.Team.Name,
		CountsByKey:  counts,
	}, nil
}

// PublicState is the active tournament with per-team counts.
func (s *TournamentService) PublicState(ctx context.Context) (*TournamentState, error) {
	return s.state(ctx, false)
}

// OperatorState adds per-team participant lists and the alive roster.
func (s *TournamentService) OperatorState(ctx context.Context) (*TournamentState, error) {
	return s.state(ctx, true)
}

func (s *TournamentService) state(ctx context.Context, detailed bool) (*TournamentState, error) {
	t, err := s.tournamentRepo.GetActive(ctx)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return &TournamentState{Active: false}, nil
		}
		return nil, err
	}

	state := &TournamentState{Active: true, Tournament: t}

	p, err := s.tournamentRepo.GetPhase(ctx, t.ID, t.CurrentPhase)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return nil, err
	}
	if p != nil {
		counts, err := s.participantRepo.CountChoices(ctx, t.ID, p.Number)
		if err != nil {
			return nil, err
		}
		var lists map[string][]repository.TeamMember
		if detailed {
			if lists, err = s.participantRepo.ListChoosers(ctx, t.ID, p.Number); err != nil {
				return nil, err
			}
		}

		points := p.Points.Data()
		if points == nil {
			points = map[string]int{}
		}
		view := &PhaseView{
			Number:      p.Number,
			Status:      p.Status,
			WinnerTeam:  p.WinningTeamKey,
			CountsByKey: counts,
			Points:      points,
		}
		for _, team := range p.Teams.Data() {
			view.Teams = append(view.Teams, TeamView{
				Key:    team.Key,
				Name:   team.Name,
				Count:  counts[team.Key],
				Points: points[team.Key],
				List:   lists[team.Key],
			})
		}
		state.Phase = view
	}

	if detailed {
		alive, err := s.participantRepo.ListAlive(ctx, t.ID, MaxListLimit)
		if err != nil {
			return nil, err
		}
		state.Alive = make([]AliveView, 0, len(alive))
		for _, a := range alive {
			state.Alive = append(state.Alive, AliveView{Name: a.Label(), TwitchName: a.Name})
		}
	}

	return state, nil
}

// Winners lists surviving participants of the active tournament, or of the
// most recent one when none is active.
func (s *TournamentService) Winners(ctx context.Context, limit int) (*WinnersList, error) {
	if limit <= 0 {
		limit = DefaultWinnersLimit
	}
	limit = engine.ClampInt(limit, 1, MaxListLimit)

	t, err := s.tournamentRepo.GetLatest(ctx)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return &WinnersList{Rows: []WinnerView{}}, nil
		}
		return nil, err
	}

	alive, err := s.participantRepo.ListAlive(ctx, t.ID, limit)
	if err != nil {
		return nil, err
	}

	list := &WinnersList{
		Active:     t.Status == domain.TournamentActive,
		Tournament: t,
		Rows:       make([]WinnerView, 0, len(alive)),
	}
	for _, a := range alive {
		list.Rows = append(list.Rows, WinnerView{
			TwitchName:  a.Name,
			DisplayName: a.Label(),
			JoinedAt:    a.JoinedAt,
		})
	}
	return list, nil
}

func (s *TournamentService) notify(reason string, extra map[string]interface{}) {
	s.publisher.PublishJSON(broadcast.PoolGlobal, broadcast.EventTournamentChanged, tournamentNotice(reason, extra))
}

func tournamentNotice(reason string, extra map[string]interface{}) map[string]interface{} {
	payload := map[string]interface{}{"reason": reason}
	for k, v := range extra {
		payload[k] = v
	}
	return payload
}

func (s *TournamentService) announce(ctx context.Context, text string) {
	announceText(ctx, s.announcer, s.logger, text)
}
