package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/dom/stream-games/internal/domain"
	"github.com/dom/stream-games/internal/engine"
	"github.com/dom/stream-games/internal/repository"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type participantRepository struct {
	db *gorm.DB
}

func NewParticipantRepository(db *gorm.DB) *participantRepository {
	return &participantRepository{db: db}
}

func (r *participantRepository) Join(ctx context.Context, input repository.JoinInput) (*repository.JoinResult, error) {
	var result repository.JoinResult
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// SHARE lets joins run side by side while blocking a concurrent decide.
		t, p, err := lockCurrent(tx, "SHARE")
		if err != nil {
			return err
		}
		if p.Status != domain.PhaseOpen {
			return domain.ErrPhaseNotOpen
		}

		var existing domain.Participant
		err = tx.Where("tournament_id = ? AND name_key = ?", t.ID, input.NameKey).First(&existing).Error
		found := err == nil
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		if p.Number > 1 && (!found || !existing.Alive) {
			return domain.ErrNotAlive
		}

		team, ok := engine.ResolveTeam(p.Teams.Data(), input.TeamInput)
		if !ok {
			return domain.ErrInvalidTeam
		}

		now := time.Now()
		participant := &domain.Participant{
			ID:           uuid.New(),
			TournamentID: t.ID,
			Name:         input.Name,
			NameKey:      input.NameKey,
			DisplayName:  input.DisplayName,
			Alive:        true,
			JoinedAt:     now,
			UpdatedAt:    now,
		}
		err = tx.Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "tournament_id"}, {Name: "name_key"}},
			DoUpdates: clause.Assignments(map[string]interface{}{
				"name":         gorm.Expr("EXCLUDED.name"),
				"updated_at":   gorm.Expr("EXCLUDED.updated_at"),
				"display_name": gorm.Expr("COALESCE(EXCLUDED.display_name, tournament_participants.display_name)"),
			}),
		}).Create(participant).Error
		if err != nil {
			return err
		}

		choice := &domain.Choice{
			ID:           uuid.New(),
			TournamentID: t.ID,
			PhaseNumber:  p.Number,
			NameKey:      input.NameKey,
			TeamKey:      team.Key,
			ChosenAt:     now,
			UpdatedAt:    now,
		}
		err = tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "tournament_id"}, {Name: "phase_number"}, {Name: "name_key"}},
			DoUpdates: clause.AssignmentColumns([]string{"team_key", "updated_at"}),
		}).Create(choice).Error
		if err != nil {
			return err
		}

		var stored domain.Participant
		err = tx.Where("tournament_id = ? AND name_key = ?", t.ID, input.NameKey).First(&stored).Error
		if err != nil {
			return err
		}

		result = repository.JoinResult{
			Tournament:  t,
			Phase:       p,
			Team:        team,
			Participant: &stored,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}

func (r *participantRepository) Get(ctx context.Context, tournamentID uuid.UUID, nameKey string) (*domain.Participant, error) {
	var p domain.Participant
	err := r.db.WithContext(ctx).
		Where("tournament_id = ? AND name_key = ?", tournamentID, nameKey).
		First(&p).Error
	if err != nil {
		return nil, translate(err)
	}
	return &p, nil
}

func (r *participantRepository) CountChoices(ctx context.Context, tournamentID uuid.UUID, phase int) (map[string]int64, error) {
	var rows []struct {
		TeamKey string
		Total   int64
	}
	err := r.db.WithContext(ctx).Model(&domain.Choice{}).
		Select("team_key, COUNT(*) AS total").
		Where("tournament_id = ? AND phase_number = ?", tournamentID, phase).
		Group("team_key").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	counts := make(map[string]int64, len(rows))
	for _, row := range rows {
		counts[row.TeamKey] = row.Total
	}
	return counts, nil
}

func (r *participantRepository) ListChoosers(ctx context.Context, tournamentID uuid.UUID, phase int) (map[string][]repository.TeamMember, error) {
	var rows []struct {
		TeamKey     string
		Name        string
		DisplayName *string
	}
	err := r.db.WithContext(ctx).
		Table("tournament_choices AS c").
		Select("c.team_key, p.name, p.display_name").
		Joins("JOIN tournament_participants AS p ON p.tournament_id = c.tournament_id AND p.name_key = c.name_key").
		Where("c.tournament_id = ? AND c.phase_number = ?", tournamentID, phase).
		Order("p.updated_at DESC").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	members := make(map[string][]repository.TeamMember)
	for _, row := range rows {
		m := repository.TeamMember{Name: row.Name, DisplayName: row.Name}
		if row.DisplayName != nil && *row.DisplayName != "" {
			m.DisplayName = *row.DisplayName
		}
		members[row.TeamKey] = append(members[row.TeamKey], m)
	}
	return members, nil
}

func (r *participantRepository) ListAlive(ctx context.Context, tournamentID uuid.UUID, limit int) ([]*domain.Participant, error) {
	var participants []*domain.Participant
	err := r.db.WithContext(ctx).
		Where("tournament_id = ? AND alive = ?", tournamentID, true).
		Order("updated_at DESC").
		Limit(limit).
		Find(&participants).Error
	if err != nil {
		return nil, err
	}
	return participants, nil
}
