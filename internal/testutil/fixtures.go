package testutil

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/dom/stream-games/internal/domain"
	"github.com/dom/stream-games/internal/engine"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// OperatorBuilder creates test operators with a builder pattern
type OperatorBuilder struct {
	username string
	password string
}

func NewOperatorBuilder() *OperatorBuilder {
	return &OperatorBuilder{
		username: fmt.Sprintf("op_%s", uuid.New().String()[:8]),
		password: "testpassword123",
	}
}

func (b *OperatorBuilder) WithUsername(username string) *OperatorBuilder {
	b.username = username
	return b
}

func (b *OperatorBuilder) WithPassword(password string) *OperatorBuilder {
	b.password = password
	return b
}

// Build creates the operator in the database and returns it with the raw password
func (b *OperatorBuilder) Build(t *testing.T, db *gorm.DB) (*domain.Operator, string) {
	t.Helper()

	hashed, err := bcrypt.GenerateFromPassword([]byte(b.password), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("failed to hash password: %v", err)
	}

	now := time.Now()
	operator := &domain.Operator{
		ID:           uuid.New(),
		Username:     b.username,
		PasswordHash: string(hashed),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := db.Create(operator).Error; err != nil {
		t.Fatalf("failed to create operator: %v", err)
	}

	return operator, b.password
}

// OperatorSession carries what a browser would hold after logging in.
type OperatorSession struct {
	Token     string
	CSRFToken string
	Cookies   []*http.Cookie
}

// BuildAndLogin creates the operator and logs in through the API.
func (b *OperatorBuilder) BuildAndLogin(t *testing.T, ts *TestServer) (*domain.Operator, *OperatorSession) {
	t.Helper()

	operator, password := b.Build(t, ts.DB.DB)

	body, _ := json.Marshal(map[string]string{
		"username": operator.Username,
		"password": password,
	})
	resp, err := http.Post(ts.APIURL("/auth/login"), "application/json", bytes.NewBuffer(body))
	if err != nil {
		t.Fatalf("failed to log in: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("unexpected login status code: %d", resp.StatusCode)
	}

	var login struct {
		Token     string `json:"token"`
		CSRFToken string `json:"csrfToken"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&login); err != nil {
		t.Fatalf("failed to decode login response: %v", err)
	}

	return operator, &OperatorSession{
		Token:     login.Token,
		CSRFToken: login.CSRFToken,
		Cookies:   resp.Cookies(),
	}
}

// RoundBuilder creates prediction rounds directly in the database
type RoundBuilder struct {
	open          bool
	thresholdCent int64
	winners       int
	createdAt     time.Time
}

func NewRoundBuilder() *RoundBuilder {
	return &RoundBuilder{
		open:      true,
		winners:   domain.DefaultWinners,
		createdAt: time.Now(),
	}
}

func (b *RoundBuilder) Closed() *RoundBuilder {
	b.open = false
	return b
}

func (b *RoundBuilder) WithThreshold(cents int64) *RoundBuilder {
	b.thresholdCent = cents
	return b
}

func (b *RoundBuilder) WithWinners(n int) *RoundBuilder {
	b.winners = n
	return b
}

func (b *RoundBuilder) CreatedAt(at time.Time) *RoundBuilder {
	b.createdAt = at
	return b
}

func (b *RoundBuilder) Build(t *testing.T, db *gorm.DB) *domain.Round {
	t.Helper()

	round := &domain.Round{
		ID:            uuid.New(),
		IsOpen:        b.open,
		BuyThreshold:  b.thresholdCent,
		WinnersWanted: b.winners,
		CreatedAt:     b.createdAt,
		UpdatedAt:     b.createdAt,
	}
	if !b.open {
		closed := b.createdAt
		round.ClosedAt = &closed
	}
	if err := db.Create(round).Error; err != nil {
		t.Fatalf("failed to create round: %v", err)
	}
	return round
}

// AddGuess stores a guess for round as if name had submitted cents.
func AddGuess(t *testing.T, db *gorm.DB, round *domain.Round, name string, cents int64) *domain.Guess {
	t.Helper()

	now := time.Now()
	guess := &domain.Guess{
		ID:         uuid.New(),
		RoundID:    round.ID,
		Name:       name,
		NameKey:    engine.NormalizeName(name),
		ValueCents: cents,
		RawText:    engine.FormatCents(cents),
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := db.Create(guess).Error; err != nil {
		t.Fatalf("failed to create guess: %v", err)
	}
	return guess
}

// TournamentBuilder creates an ACTIVE tournament with its first phase open
type TournamentBuilder struct {
	name  string
	teams []string
}

func NewTournamentBuilder() *TournamentBuilder {
	return &TournamentBuilder{
		name:  domain.DefaultTournamentName,
		teams: []string{"Red", "Blue", "Green"},
	}
}

func (b *TournamentBuilder) WithName(name string) *TournamentBuilder {
	b.name = name
	return b
}

func (b *TournamentBuilder) WithTeams(teams ...string) *TournamentBuilder {
	b.teams = teams
	return b
}

func (b *TournamentBuilder) Build(t *testing.T, db *gorm.DB) (*domain.Tournament, *domain.Phase) {
	t.Helper()

	now := time.Now()
	tournament := &domain.Tournament{
		ID:           uuid.New(),
		Name:         b.name,
		Status:       domain.TournamentActive,
		CurrentPhase: 1,
		CreatedAt:    now,
	}
	if err := db.Create(tournament).Error; err != nil {
		t.Fatalf("failed to create tournament: %v", err)
	}

	phase := &domain.Phase{
		ID:           uuid.New(),
		TournamentID: tournament.ID,
		Number:       1,
		Status:       domain.PhaseOpen,
		Teams:        datatypes.NewJSONType(engine.BuildTeams(b.teams)),
		Points:       datatypes.NewJSONType(map[string]int{}),
		OpenedAt:     now,
	}
	if err := db.Create(phase).Error; err != nil {
		t.Fatalf("failed to create phase: %v", err)
	}

	return tournament, phase
}

// AddParticipant registers name in tournament, alive, with a pick for phase.
func AddParticipant(t *testing.T, db *gorm.DB, tournament *domain.Tournament, phase int, name, teamKey string) *domain.Participant {
	t.Helper()

	now := time.Now()
	p := &domain.Participant{
		ID:           uuid.New(),
		TournamentID: tournament.ID,
		Name:         name,
		NameKey:      engine.NormalizeName(name),
		Alive:        true,
		JoinedAt:     now,
		UpdatedAt:    now,
	}
	if err := db.Create(p).Error; err != nil {
		t.Fatalf("failed to create participant: %v", err)
	}

	if teamKey != "" {
		choice := &domain.Choice{
			ID:           uuid.New(),
			TournamentID: tournament.ID,
			PhaseNumber:  phase,
			NameKey:      p.NameKey,
			TeamKey:      teamKey,
			ChosenAt:     now,
			UpdatedAt:    now,
		}
		if err := db.Create(choice).Error; err != nil {
			t.Fatalf("failed to create choice: %v", err)
		}
	}

	return p
}

// OperatorRequest builds a request carrying the operator's cookies and CSRF header.
func OperatorRequest(t *testing.T, method, url string, body interface{}, session *OperatorSession) *http.Request {
	t.Helper()

	req := newJSONRequest(t, method, url, body)
	if session != nil {
		for _, c := range session.Cookies {
			req.AddCookie(c)
		}
		req.Header.Set("X-CSRF-Token", session.CSRFToken)
	}
	return req
}

// BearerRequest builds a request authenticated with an Authorization header.
func BearerRequest(t *testing.T, method, url string, body interface{}, token string) *http.Request {
	t.Helper()

	req := newJSONRequest(t, method, url, body)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return req
}

// PublicRequest builds a request carrying the public app key.
func PublicRequest(t *testing.T, method, url string, body interface{}, appKey string) *http.Request {
	t.Helper()

	req := newJSONRequest(t, method, url, body)
	if appKey != "" {
		req.Header.Set("X-App-Key", appKey)
	}
	return req
}

func newJSONRequest(t *testing.T, method, url string, body interface{}) *http.Request {
	t.Helper()

	bodyReader := bytes.NewBuffer(nil)
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("failed to marshal body: %v", err)
		}
		bodyReader = bytes.NewBuffer(jsonBody)
	}

	req, err := http.NewRequestWithContext(context.Background(), method, url, bodyReader)
	if err != nil {
		t.Fatalf("failed to create request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return req
}

// Do sends req with the default client and fails the test on transport errors.
func Do(t *testing.T, req *http.Request) *http.Response {
	t.Helper()

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("request %s %s failed: %v", req.Method, req.URL, err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}
