package integration

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"classroom-analytics/internal/app"
	"classroom-analytics/internal/domain"
	pgloader "classroom-analytics/internal/infra/postgres"
	pgmigrations "classroom-analytics/internal/infra/postgres/migrations"
	infraredis "classroom-analytics/internal/infra/redis"
	"github.com/jackc/pgx/v4/pgxpool"
	goredis "github.com/redis/go-redis/v9"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/migrate"
)

type testClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func TestInactivityAlertEndToEnd(t *testing.T) {
	ctx := context.Background()
	requireDocker(t)

	pgURL, pgCleanup := startPostgres(t, ctx)
	defer pgCleanup()
	redisURL, redisCleanup := startRedis(t, ctx)
	defer redisCleanup()

	seedSession(t, ctx, pgURL, 42, 7)

	pool, err := pgxpool.Connect(ctx, pgURL)
	if err != nil {
		t.Fatalf("connect pg: %v", err)
	}
	defer pool.Close()

	redisClient, err := redisClientFromURL(redisURL)
	if err != nil {
		t.Fatalf("redis client: %v", err)
	}

	resolver := infraredis.NewSessionResolver(redisClient, pgloader.NewSessionLoader(pool), 5*time.Minute)
	registry := app.NewRegistryWithPresence(infraredis.NewPresence(redisClient, 5*time.Minute))

	clock := &testClock{t: time.Now()}
	service := app.NewAnalyticsServiceWithClock(registry, domain.AlertCooldown, clock.Now)
	publisher := app.NewEventPublisherWithClock(service, clock.Now)
	processor := app.NewProcessorWithClock(service, time.Minute, clock.Now)

	// Producers know the quiz, not the session.
	sessionID, err := resolver.ResolveQuizSession(ctx, 7)
	if err != nil {
		t.Fatalf("resolve quiz: %v", err)
	}
	if sessionID != 42 {
		t.Fatalf("expected quiz 7 to resolve to session 42, got %d", sessionID)
	}

	if err := service.SubscribeToAlert(sessionID, 1, domain.AlertStudentInactivity, nil); err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	alerts, cancel := service.SubscribeToSessionAlerts(sessionID)
	defer cancel()

	publisher.NotifyStudentJoined(sessionID, 10, "Alice")
	publisher.NotifyStudentJoined(sessionID, 11, "Bob")

	exists, err := redisClient.Exists(ctx, "analytics:session:42").Result()
	if err != nil || exists != 1 {
		t.Fatalf("expected presence marker in redis, exists=%d err=%v", exists, err)
	}

	clock.Advance(11 * time.Minute)
	processor.ProcessAll()

	select {
	case alert := <-alerts:
		if alert.AlertType != domain.AlertStudentInactivity {
			t.Fatalf("expected inactivity alert, got %s", alert.AlertType)
		}
		if alert.Data["inactiveCount"] != 2 {
			t.Fatalf("expected inactiveCount=2, got %v", alert.Data["inactiveCount"])
		}
	case <-time.After(time.Second):
		t.Fatalf("expected inactivity alert")
	}

	service.Cleanup(sessionID)
	exists, err = redisClient.Exists(ctx, "analytics:session:42").Result()
	if err != nil || exists != 0 {
		t.Fatalf("expected presence marker cleared, exists=%d err=%v", exists, err)
	}
}

func startPostgres(t *testing.T, ctx context.Context) (string, func()) {
	t.Helper()
	req := tc.ContainerRequest{
		Image:        "postgres:15-alpine",
		Env:          map[string]string{"POSTGRES_USER": "analytics", "POSTGRES_PASSWORD": "analyticspass", "POSTGRES_DB": "analyticsdb"},
		ExposedPorts: []string{"5432/tcp"},
		WaitingFor:   wait.ForListeningPort("5432/tcp").WithStartupTimeout(60 * time.Second),
	}
	container, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		if strings.Contains(err.Error(), "Cannot connect to the Docker daemon") {
			t.Skipf("docker not available: %v", err)
		}
		t.Fatalf("start postgres: %v", err)
	}
	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("host: %v", err)
	}
	port, err := container.MappedPort(ctx, "5432/tcp")
	if err != nil {
		t.Fatalf("port: %v", err)
	}
	dsn := fmt.Sprintf("postgres://analytics:analyticspass@%s:%s/analyticsdb?sslmode=disable", host, port.Port())
	return dsn, func() {
		_ = container.Terminate(ctx)
	}
}

func startRedis(t *testing.T, ctx context.Context) (string, func()) {
	t.Helper()
	req := tc.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForListeningPort("6379/tcp").WithStartupTimeout(30 * time.Second),
	}
	container, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		if strings.Contains(err.Error(), "Cannot connect to the Docker daemon") {
			t.Skipf("docker not available: %v", err)
		}
		t.Fatalf("start redis: %v", err)
	}
	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("redis host: %v", err)
	}
	port, err := container.MappedPort(ctx, "6379/tcp")
	if err != nil {
		t.Fatalf("redis port: %v", err)
	}
	url := fmt.Sprintf("redis://%s:%s", host, port.Port())
	return url, func() {
		_ = container.Terminate(ctx)
	}
}

func seedSession(t *testing.T, ctx context.Context, dsn string, sessionID, quizID int64) {
	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn)))
	db := bun.NewDB(sqldb, pgdialect.New())
	defer db.Close()

	migrator := migrate.NewMigrator(db, pgmigrations.Migrations)
	if err := migrator.Init(ctx); err != nil {
		t.Fatalf("migrator init: %v", err)
	}
	if _, err := migrator.Migrate(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	if _, err := db.ExecContext(ctx, `INSERT INTO sessions (id, title) VALUES (?, ?) ON CONFLICT (id) DO NOTHING`, sessionID, "Algorithms 101"); err != nil {
		t.Fatalf("insert session: %v", err)
	}
	if _, err := db.ExecContext(ctx, `INSERT INTO quizzes (id, session_id) VALUES (?, ?) ON CONFLICT (id) DO NOTHING`, quizID, sessionID); err != nil {
		t.Fatalf("insert quiz: %v", err)
	}
}

func redisClientFromURL(url string) (*goredis.Client, error) {
	opts, err := goredis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	return goredis.NewClient(&goredis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	}), nil
}

func requireDocker(t *testing.T) {
	t.Helper()
	if _, err := tc.NewDockerProvider(); err != nil {
		t.Skipf("docker not available: %v", err)
	}
}
