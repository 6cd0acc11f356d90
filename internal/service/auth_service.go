package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dom/stream-games/internal/config"
	"github.com/dom/stream-games/internal/domain"
	"github.com/dom/stream-games/internal/repository"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

type AuthService struct {
	operatorRepo repository.OperatorRepository
	sessionRepo  repository.SessionRepository
	cfg          *config.Config
}

func NewAuthService(operatorRepo repository.OperatorRepository, sessionRepo repository.SessionRepository, cfg *config.Config) *AuthService {
	return &AuthService{
		operatorRepo: operatorRepo,
		sessionRepo:  sessionRepo,
		cfg:          cfg,
	}
}

type LoginInput struct {
	Username string
	Password string
}

type AuthResult struct {
	Operator  *domain.Operator
	Token     string
	CSRFToken string
	ExpiresAt time.Time
}

// Claims identifies the operator and the server-side session behind a token.
type Claims struct {
	OperatorID uuid.UUID
	SessionID  uuid.UUID
}

// EnsureOperator seeds or refreshes the operator account configured through
// the environment. A missing username or hash leaves the table untouched.
func (s *AuthService) EnsureOperator(ctx context.Context) (*domain.Operator, error) {
	if s.cfg.AdminUser == "" || s.cfg.AdminPasswordHash == "" {
		return nil, nil
	}
	if _, err := bcrypt.Cost([]byte(s.cfg.AdminPasswordHash)); err != nil {
		return nil, fmt.Errorf("ADMIN_PASSWORD_HASH is not a bcrypt hash: %w", err)
	}
	return s.operatorRepo.UpsertCredentials(ctx, s.cfg.AdminUser, s.cfg.AdminPasswordHash)
}

func (s *AuthService) Login(ctx context.Context, input LoginInput) (*AuthResult, error) {
	operator, err := s.operatorRepo.GetByUsername(ctx, input.Username)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, domain.ErrUnauthorized
		}
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(operator.PasswordHash), []byte(input.Password)); err != nil {
		return nil, domain.ErrUnauthorized
	}

	now := time.Now()
	session := &domain.OperatorSession{
		ID:         uuid.New(),
		OperatorID: operator.ID,
		ExpiresAt:  now.Add(s.cfg.SessionTTL),
		CreatedAt:  now,
	}
	if err := s.sessionRepo.Create(ctx, session); err != nil {
		return nil, err
	}

	token, err := s.generateToken(operator, session)
	if err != nil {
		return nil, err
	}

	return &AuthResult{
		Operator:  operator,
		Token:     token,
		CSRFToken: uuid.NewString(),
		ExpiresAt: session.ExpiresAt,
	}, nil
}

func (s *AuthService) generateToken(operator *domain.Operator, session *domain.OperatorSession) (string, error) {
	claims := jwt.MapClaims{
		"sub":  operator.ID.String(),
		"sid":  session.ID.String(),
		"name": operator.Username,
		"exp":  session.ExpiresAt.Unix(),
		"iat":  session.CreatedAt.Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(s.cfg.JWTSecret))
}

// ValidateToken checks the signature and expiry and that the session has
// not been revoked.
func (s *AuthService) ValidateToken(ctx context.Context, tokenString string) (*Claims, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return []byte(s.cfg.JWTSecret), nil
	})
	if err != nil || !token.Valid {
		return nil, domain.ErrUnauthorized
	}

	mapClaims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, domain.ErrUnauthorized
	}
	sub, _ := mapClaims["sub"].(string)
	sid, _ := mapClaims["sid"].(string)
	operatorID, err := uuid.Parse(sub)
	if err != nil {
		return nil, domain.ErrUnauthorized
	}
	sessionID, err := uuid.Parse(sid)
	if err != nil {
		return nil, domain.ErrUnauthorized
	}

	session, err := s.sessionRepo.GetByID(ctx, sessionID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, domain.ErrUnauthorized
		}
		return nil, err
	}
	if session.OperatorID != operatorID || time.Now().After(session.ExpiresAt) {
		return nil, domain.ErrUnauthorized
	}

	return &Claims{OperatorID: operatorID, SessionID: sessionID}, nil
}

func (s *AuthService) GetOperator(ctx context.Context, id uuid.UUID) (*domain.Operator, error) {
	operator, err := s.operatorRepo.GetByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, domain.ErrUnauthorized
	}
	return operator, err
}

func (s *AuthService) Logout(ctx context.Context, sessionID uuid.UUID) error {
	return s.sessionRepo.Delete(ctx, sessionID)
}

// PruneSessions removes expired sessions and reports how many were deleted.
func (s *AuthService) PruneSessions(ctx context.Context) (int64, error) {
	return s.sessionRepo.DeleteExpired(ctx, time.Now())
}
