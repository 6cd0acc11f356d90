package domain

import (
	"time"

	"github.com/google/uuid"
)

type Operator struct {
	ID           uuid.UUID `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	Username     string    `json:"username" gorm:"uniqueIndex;not null"`
	PasswordHash string    `json:"-" gorm:"not null"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// OperatorSession backs a signed session token; deleting the row revokes the token.
type OperatorSession struct {
	ID         uuid.UUID `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	OperatorID uuid.UUID `json:"operatorId" gorm:"type:uuid;not null;index"`
	ExpiresAt  time.Time `json:"expiresAt" gorm:"not null"`
	CreatedAt  time.Time `json:"createdAt"`
}
