package domain

import (
	"time"

	"github.com/google/uuid"
)

const (
	MinWinners     = 1
	MaxWinners     = 10
	DefaultWinners = 3
)

// Round is one open/closed cycle of the prediction game. Amounts are in cents.
// The partial unique index keeps at most one row with is_open = true.
type Round struct {
	ID            uuid.UUID  `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	IsOpen        bool       `json:"isOpen" gorm:"not null;uniqueIndex:idx_rounds_single_open,where:is_open = true"`
	BuyThreshold  int64      `json:"buyThreshold" gorm:"not null"`
	WinnersWanted int        `json:"winnersWanted" gorm:"not null"`
	CreatedAt     time.Time  `json:"createdAt" gorm:"index"`
	UpdatedAt     time.Time  `json:"updatedAt"`
	ClosedAt      *time.Time `json:"closedAt,omitempty"`
}

// Guess is a participant's latest submitted value for a round.
type Guess struct {
	ID         uuid.UUID `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	RoundID    uuid.UUID `json:"roundId" gorm:"type:uuid;not null;uniqueIndex:idx_guesses_round_name,priority:1"`
	Round      *Round    `json:"-" gorm:"foreignKey:RoundID;constraint:OnDelete:CASCADE"`
	Name       string    `json:"user" gorm:"size:40;not null"`
	NameKey    string    `json:"-" gorm:"size:64;not null;uniqueIndex:idx_guesses_round_name,priority:2"`
	ValueCents int64     `json:"valueCents" gorm:"not null"`
	RawText    string    `json:"rawText" gorm:"size:300"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt" gorm:"index"`
}

// RankedGuess is a guess scored against a resolved result.
type RankedGuess struct {
	Name       string `json:"name"`
	ValueCents int64  `json:"valueCents"`
	DeltaCents int64  `json:"deltaCents"`
}
