package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

type TournamentStatus string

const (
	TournamentActive   TournamentStatus = "ACTIVE"
	TournamentFinished TournamentStatus = "FINISHED"
)

type PhaseStatus string

const (
	PhaseOpen    PhaseStatus = "OPEN"
	PhaseClosed  PhaseStatus = "CLOSED"
	PhaseDecided PhaseStatus = "DECIDED"
)

const DefaultTournamentName = "Torneio"

type Tournament struct {
	ID           uuid.UUID        `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	Name         string           `json:"name" gorm:"size:80;not null"`
	Status       TournamentStatus `json:"status" gorm:"size:16;not null;uniqueIndex:idx_tournaments_single_active,where:status = 'ACTIVE'"`
	CurrentPhase int              `json:"currentPhase" gorm:"not null"`
	CreatedAt    time.Time        `json:"createdAt" gorm:"index"`
	EndedAt      *time.Time       `json:"endedAt,omitempty"`
}

// Team is one selectable side within a single phase.
type Team struct {
	Key  string `json:"key"`
	Name string `json:"name"`
}

type Phase struct {
	ID             uuid.UUID                          `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	TournamentID   uuid.UUID                          `json:"tournamentId" gorm:"type:uuid;not null;uniqueIndex:idx_phases_tournament_number,priority:1"`
	Tournament     *Tournament                        `json:"-" gorm:"foreignKey:TournamentID;constraint:OnDelete:CASCADE"`
	Number         int                                `json:"number" gorm:"not null;uniqueIndex:idx_phases_tournament_number,priority:2"`
	Status         PhaseStatus                        `json:"status" gorm:"size:16;not null"`
	Teams          datatypes.JSONType[[]Team]         `json:"teams" gorm:"not null"`
	Points         datatypes.JSONType[map[string]int] `json:"points" gorm:"not null"`
	WinningTeamKey *string                            `json:"winningTeamKey,omitempty" gorm:"size:64"`
	OpenedAt       time.Time                          `json:"openedAt"`
	ClosedAt       *time.Time                         `json:"closedAt,omitempty"`
	DecidedAt      *time.Time                         `json:"decidedAt,omitempty"`
}

func (Phase) TableName() string {
	return "tournament_phases"
}

type Participant struct {
	ID                uuid.UUID `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	TournamentID      uuid.UUID `json:"tournamentId" gorm:"type:uuid;not null;uniqueIndex:idx_participants_tournament_name,priority:1;index:idx_participants_alive,priority:1"`
	Name              string    `json:"name" gorm:"size:40;not null"`
	NameKey           string    `json:"-" gorm:"size:64;not null;uniqueIndex:idx_participants_tournament_name,priority:2"`
	DisplayName       *string   `json:"displayName,omitempty" gorm:"size:60"`
	Alive             bool      `json:"alive" gorm:"not null;index:idx_participants_alive,priority:2"`
	EliminatedAtPhase *int      `json:"eliminatedAtPhase,omitempty"`
	JoinedAt          time.Time `json:"joinedAt"`
	UpdatedAt         time.Time `json:"updatedAt"`
}

func (Participant) TableName() string {
	return "tournament_participants"
}

// Label is the name shown to viewers: display name when set, chat handle otherwise.
func (p *Participant) Label() string {
	if p.DisplayName != nil && *p.DisplayName != "" {
		return *p.DisplayName
	}
	return p.Name
}

type Choice struct {
	ID           uuid.UUID `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	TournamentID uuid.UUID `json:"tournamentId" gorm:"type:uuid;not null;uniqueIndex:idx_choices_phase_name,priority:1"`
	PhaseNumber  int       `json:"phaseNumber" gorm:"not null;uniqueIndex:idx_choices_phase_name,priority:2"`
	NameKey      string    `json:"-" gorm:"size:64;not null;uniqueIndex:idx_choices_phase_name,priority:3"`
	TeamKey      string    `json:"teamKey" gorm:"size:64;not null;index"`
	ChosenAt     time.Time `json:"chosenAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

func (Choice) TableName() string {
	return "tournament_choices"
}
