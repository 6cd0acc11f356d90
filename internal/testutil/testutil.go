package testutil

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/dom/stream-games/internal/api"
	"github.com/dom/stream-games/internal/api/handlers"
	"github.com/dom/stream-games/internal/broadcast"
	"github.com/dom/stream-games/internal/config"
	"github.com/dom/stream-games/internal/metrics"
	"github.com/dom/stream-games/internal/repository"
	repoPostgres "github.com/dom/stream-games/internal/repository/postgres"
	"github.com/dom/stream-games/internal/service"
	"github.com/testcontainers/testcontainers-go"
	tcPostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	gormPostgres "gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// TestDB manages a testcontainers PostgreSQL instance
type TestDB struct {
	Container testcontainers.Container
	DB        *gorm.DB
	DSN       string
}

// NewTestDB starts a PostgreSQL container and migrates the schema. It skips
// the test under -short.
func NewTestDB(t *testing.T) *TestDB {
	t.Helper()

	if testing.Short() {
		t.Skip("skipping postgres integration test in short mode")
	}

	ctx := context.Background()

	container, err := tcPostgres.Run(ctx,
		"postgres:15-alpine",
		tcPostgres.WithDatabase("test_stream_games"),
		tcPostgres.WithUsername("test"),
		tcPostgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	if err != nil {
		t.Fatalf("failed to start postgres container: %v", err)
	}

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("failed to get connection string: %v", err)
	}

	db, err := gorm.Open(gormPostgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to connect to database: %v", err)
	}

	if err := repoPostgres.Migrate(db); err != nil {
		t.Fatalf("failed to run migrations: %v", err)
	}

	testDB := &TestDB{
		Container: container,
		DB:        db,
		DSN:       dsn,
	}

	t.Cleanup(func() {
		testDB.Cleanup()
	})

	return testDB
}

// Cleanup terminates the container
func (tdb *TestDB) Cleanup() {
	if tdb.Container != nil {
		tdb.Container.Terminate(context.Background())
	}
}

// Truncate clears all tables for test isolation
func (tdb *TestDB) Truncate(t *testing.T) {
	t.Helper()

	tables := []string{
		"tournament_choices",
		"tournament_participants",
		"tournament_phases",
		"tournaments",
		"guesses",
		"rounds",
		"operator_sessions",
		"operators",
	}

	for _, table := range tables {
		if err := tdb.DB.Exec(fmt.Sprintf("TRUNCATE TABLE %s CASCADE", table)).Error; err != nil {
			t.Logf("warning: failed to truncate %s: %v", table, err)
		}
	}
}

// TestConfig returns a configuration suitable for testing
func TestConfig() *config.Config {
	return &config.Config{
		HTTPAddr:           ":0",
		Environment:        "test",
		LogLevel:           slog.LevelError,
		JWTSecret:          "test-jwt-secret-key-for-testing-only",
		SessionTTL:         time.Hour,
		PublicAppKey:       "test-key",
		StreamHeartbeat:    200 * time.Millisecond,
		GuessRatePerWindow: 1000,
		GuessRateWindow:    time.Second,
		JoinRatePerWindow:  1000,
		JoinRateWindow:     time.Second,
		LoginRatePerWindow: 1000,
		LoginRateWindow:    time.Second,
		AnnounceEnabled:    false,
		AnnounceSubject:    "chat.announce",
	}
}

// DiscardLogger returns a logger that drops everything.
func DiscardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// TestServer holds all components for integration testing
type TestServer struct {
	Server    *httptest.Server
	DB        *TestDB
	Repos     *repository.Repositories
	Services  *service.Services
	Hub       *broadcast.Hub
	Metrics   *metrics.Metrics
	Announcer *RecordingAnnouncer
	Config    *config.Config
}

// NewTestServer creates a complete test server with all dependencies.
// Mutate cfg through the optional callback before the router is built.
func NewTestServer(t *testing.T, configure ...func(*config.Config)) *TestServer {
	t.Helper()

	testDB := NewTestDB(t)
	cfg := TestConfig()
	for _, fn := range configure {
		fn(cfg)
	}
	log := DiscardLogger()

	repos := repoPostgres.NewRepositories(testDB.DB)
	m := metrics.New()
	hub := broadcast.NewHub(log,
		broadcast.WithHeartbeat(cfg.StreamHeartbeat),
		broadcast.WithAllowedOrigins(cfg.AllowedOrigins),
		broadcast.WithMetrics(m),
	)
	announcer := &RecordingAnnouncer{}

	services := service.NewServices(repos, hub, announcer, cfg, log)
	router := api.NewRouter(services, hub, m, map[string]handlers.Checker{
		"announcer": announcer,
	}, cfg, log)

	server := httptest.NewServer(router)

	ts := &TestServer{
		Server:    server,
		DB:        testDB,
		Repos:     repos,
		Services:  services,
		Hub:       hub,
		Metrics:   m,
		Announcer: announcer,
		Config:    cfg,
	}

	t.Cleanup(func() {
		hub.Close()
		server.Close()
	})

	return ts
}

// BaseURL returns the test server's base URL
func (ts *TestServer) BaseURL() string {
	return ts.Server.URL
}

// APIURL returns the full API URL for a given path
func (ts *TestServer) APIURL(path string) string {
	return fmt.Sprintf("%s/api/v1%s", ts.Server.URL, path)
}

// WebSocketURL returns the ws:// form of an API path.
func (ts *TestServer) WebSocketURL(path string) string {
	wsURL := "ws" + ts.Server.URL[4:]
	return fmt.Sprintf("%s/api/v1%s", wsURL, path)
}
