package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dom/stream-games/internal/domain"
	"github.com/dom/stream-games/internal/engine"
	"github.com/dom/stream-games/internal/repository"
	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type tournamentRepository struct {
	db *gorm.DB
}

func NewTournamentRepository(db *gorm.DB) *tournamentRepository {
	return &tournamentRepository{db: db}
}

func newPhase(tournamentID uuid.UUID, number int, teams []domain.Team, now time.Time) *domain.Phase {
	return &domain.Phase{
		ID:           uuid.New(),
		TournamentID: tournamentID,
		Number:       number,
		Status:       domain.PhaseOpen,
		Teams:        datatypes.NewJSONType(teams),
		Points:       datatypes.NewJSONType(map[string]int{}),
		OpenedAt:     now,
	}
}

// lockCurrent loads the active tournament and its current phase with the
// given row lock strength ("UPDATE" or "SHARE").
func lockCurrent(tx *gorm.DB, strength string) (*domain.Tournament, *domain.Phase, error) {
	var t domain.Tournament
	err := tx.Clauses(clause.Locking{Strength: strength}).
		Where("status = ?", domain.TournamentActive).
		First(&t).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, domain.ErrTournamentInactive
		}
		return nil, nil, err
	}

	var p domain.Phase
	err = tx.Clauses(clause.Locking{Strength: strength}).
		Where("tournament_id = ? AND number = ?", t.ID, t.CurrentPhase).
		First(&p).Error
	if err != nil {
		return nil, nil, fmt.Errorf("loading phase %d of tournament %s: %w", t.CurrentPhase, t.ID, err)
	}

	return &t, &p, nil
}

func (r *tournamentRepository) Start(ctx context.Context, tournament *domain.Tournament, teams []domain.Team) (*domain.Phase, error) {
	var phase *domain.Phase
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := advisoryLock(tx, tournamentLockKey); err != nil {
			return err
		}

		var active int64
		err := tx.Model(&domain.Tournament{}).
			Where("status = ?", domain.TournamentActive).
			Count(&active).Error
		if err != nil {
			return err
		}
		if active > 0 {
			return domain.ErrTournamentAlreadyActive
		}

		now := time.Now()
		if tournament.ID == uuid.Nil {
			tournament.ID = uuid.New()
		}
		tournament.Status = domain.TournamentActive
		tournament.CurrentPhase = 1
		tournament.CreatedAt = now
		if err := tx.Create(tournament).Error; err != nil {
			return err
		}

		phase = newPhase(tournament.ID, 1, teams, now)
		return tx.Create(phase).Error
	})
	if err != nil {
		return nil, err
	}
	return phase, nil
}

func (r *tournamentRepository) GetActive(ctx context.Context) (*domain.Tournament, error) {
	var t domain.Tournament
	err := r.db.WithContext(ctx).Where("status = ?", domain.TournamentActive).First(&t).Error
	if err != nil {
		return nil, translate(err)
	}
	return &t, nil
}

func (r *tournamentRepository) GetLatest(ctx context.Context) (*domain.Tournament, error) {
	t, err := r.GetActive(ctx)
	if err == nil || !errors.Is(err, repository.ErrNotFound) {
		return t, err
	}

	var latest domain.Tournament
	err = r.db.WithContext(ctx).Order("created_at DESC").First(&latest).Error
	if err != nil {
		return nil, translate(err)
	}
	return &latest, nil
}

func (r *tournamentRepository) GetPhase(ctx context.Context, tournamentID uuid.UUID, number int) (*domain.Phase, error) {
	var p domain.Phase
	err := r.db.WithContext(ctx).
		Where("tournament_id = ? AND number = ?", tournamentID, number).
		First(&p).Error
	if err != nil {
		return nil, translate(err)
	}
	return &p, nil
}

func (r *tournamentRepository) ClosePhase(ctx context.Context) (*domain.Tournament, *domain.Phase, error) {
	var t *domain.Tournament
	var p *domain.Phase
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		t, p, err = lockCurrent(tx, "UPDATE")
		if err != nil {
			return err
		}

		switch p.Status {
		case domain.PhaseDecided:
			return domain.ErrPhaseDecided
		case domain.PhaseClosed:
			return nil
		}

		now := time.Now()
		p.Status = domain.PhaseClosed
		p.ClosedAt = &now
		return tx.Model(p).Updates(map[string]interface{}{
			"status":    domain.PhaseClosed,
			"closed_at": now,
		}).Error
	})
	if err != nil {
		return nil, nil, err
	}
	return t, p, nil
}

func (r *tournamentRepository) UpdateTeams(ctx context.Context, teams []domain.Team) (*domain.Tournament, *domain.Phase, error) {
	var t *domain.Tournament
	var p *domain.Phase
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		t, p, err = lockCurrent(tx, "UPDATE")
		if err != nil {
			return err
		}
		if p.Status != domain.PhaseOpen {
			return domain.ErrPhaseNotOpen
		}

		p.Teams = datatypes.NewJSONType(teams)
		return tx.Model(p).Update("teams", p.Teams).Error
	})
	if err != nil {
		return nil, nil, err
	}
	return t, p, nil
}

func (r *tournamentRepository) SetPoints(ctx context.Context, entries []repository.PointsEntry) (*domain.Tournament, *domain.Phase, error) {
	var t *domain.Tournament
	var p *domain.Phase
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		t, p, err = lockCurrent(tx, "UPDATE")
		if err != nil {
			return err
		}

		teams := p.Teams.Data()
		points := make(map[string]int, len(entries))
		for _, e := range entries {
			team, ok := engine.ResolveTeam(teams, e.Team)
			if !ok {
				continue
			}
			points[team.Key] = e.Points
		}

		p.Points = datatypes.NewJSONType(points)
		return tx.Model(p).Update("points", p.Points).Error
	})
	if err != nil {
		return nil, nil, err
	}
	return t, p, nil
}

func (r *tournamentRepository) DecidePhase(ctx context.Context, teamInput string) (*repository.DecideResult, error) {
	var result repository.DecideResult
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		t, p, err := lockCurrent(tx, "UPDATE")
		if err != nil {
			return err
		}
		if p.Status == domain.PhaseDecided {
			return domain.ErrPhaseDecided
		}

		winner, ok := engine.ResolveTeam(p.Teams.Data(), teamInput)
		if !ok {
			return domain.ErrInvalidTeam
		}

		now := time.Now()
		err = tx.Model(p).Updates(map[string]interface{}{
			"status":           domain.PhaseDecided,
			"winning_team_key": winner.Key,
			"decided_at":       now,
			"closed_at":        gorm.Expr("COALESCE(closed_at, ?)", now),
		}).Error
		if err != nil {
			return err
		}
		if p.ClosedAt == nil {
			p.ClosedAt = &now
		}
		p.Status = domain.PhaseDecided
		p.WinningTeamKey = &winner.Key
		p.DecidedAt = &now

		var alive []*domain.Participant
		err = tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("tournament_id = ? AND alive = ?", t.ID, true).
			Find(&alive).Error
		if err != nil {
			return err
		}

		var choices []domain.Choice
		err = tx.Where("tournament_id = ? AND phase_number = ?", t.ID, p.Number).Find(&choices).Error
		if err != nil {
			return err
		}

		aliveKeys := make([]string, len(alive))
		for i, a := range alive {
			aliveKeys[i] = a.NameKey
		}
		picks := make(map[string]string, len(choices))
		for _, c := range choices {
			picks[c.NameKey] = c.TeamKey
		}

		survivors, eliminated := engine.Eliminate(aliveKeys, picks, winner.Key)
		if len(eliminated) > 0 {
			err = tx.Model(&domain.Participant{}).
				Where("tournament_id = ? AND name_key IN ?", t.ID, eliminated).
				Updates(map[string]interface{}{
					"alive":               false,
					"eliminated_at_phase": p.Number,
					"updated_at":          now,
				}).Error
			if err != nil {
				return err
			}
		}

		result = repository.DecideResult{
			Tournament: t,
			Phase:      p,
			Winner:     winner,
			Survivors:  len(survivors),
			Eliminated: len(eliminated),
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}

func (r *tournamentRepository) OpenNextPhase(ctx context.Context, teams []domain.Team) (*domain.Tournament, *domain.Phase, error) {
	var t *domain.Tournament
	var next *domain.Phase
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var cur *domain.Phase
		var err error
		t, cur, err = lockCurrent(tx, "UPDATE")
		if err != nil {
			return err
		}
		if cur.Status != domain.PhaseDecided {
			return domain.ErrPhaseNotDecided
		}

		next = newPhase(t.ID, cur.Number+1, teams, time.Now())
		if err := tx.Create(next).Error; err != nil {
			return err
		}

		t.CurrentPhase = next.Number
		return tx.Model(t).Update("current_phase", next.Number).Error
	})
	if err != nil {
		return nil, nil, err
	}
	return t, next, nil
}

func (r *tournamentRepository) Finish(ctx context.Context, limit int) (*domain.Tournament, []*domain.Participant, error) {
	var t domain.Tournament
	var winners []*domain.Participant
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("status = ?", domain.TournamentActive).
			First(&t).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return domain.ErrTournamentInactive
			}
			return err
		}

		now := time.Now()
		t.Status = domain.TournamentFinished
		t.EndedAt = &now
		err = tx.Model(&t).Updates(map[string]interface{}{
			"status":   domain.TournamentFinished,
			"ended_at": now,
		}).Error
		if err != nil {
			return err
		}

		return tx.Where("tournament_id = ? AND alive = ?", t.ID, true).
			Order("updated_at DESC").
			Limit(limit).
			Find(&winners).Error
	})
	if err != nil {
		return nil, nil, err
	}
	return &t, winners, nil
}
