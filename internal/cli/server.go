package cli

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"classroom-analytics/internal/app"
	"classroom-analytics/internal/config"
	"classroom-analytics/internal/domain"
	"classroom-analytics/internal/infra/memory"
	pgloader "classroom-analytics/internal/infra/postgres"
	infraredis "classroom-analytics/internal/infra/redis"
	transport "classroom-analytics/internal/transport/http"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the analytics server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, *port)
		},
	}
}

func runServer(ctx context.Context, configPath, portFlag string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		if !os.IsNotExist(err) {
			return err
		}
		log.Printf("config %s not found, using defaults", configPath)
	}

	if cfg.Postgres.URL != "" {
		if err := runMigrationsWithConfig(ctx, cfg); err != nil {
			return err
		}
	}

	finalPort := portFlag
	if finalPort == "" {
		finalPort = cfg.Server.Port
	}
	if finalPort == "" {
		finalPort = "8080"
	}

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
	}
	redisTTL := config.TTLDuration(cfg.Redis.TTL, 4*time.Hour)

	var pool *pgxpool.Pool
	if cfg.Postgres.URL != "" {
		pool, err = pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return err
		}
		defer pool.Close()
	}

	registry := app.NewRegistry()
	if redisClient != nil {
		registry = app.NewRegistryWithPresence(infraredis.NewPresence(redisClient, redisTTL))
	}

	cooldown := config.TTLDuration(cfg.Analytics.AlertCooldown, domain.AlertCooldown)
	service := app.NewAnalyticsService(registry, cooldown)
	publisher := app.NewEventPublisher(service)

	interval := config.TTLDuration(cfg.Analytics.ProcessingInterval, app.DefaultProcessingInterval)
	processor := app.NewProcessor(service, interval)
	processor.Start()
	defer processor.Stop()

	var loader memory.SessionLoader = memory.NewStaticSessionLoader(sampleQuizSessions())
	if pool != nil {
		loader = pgloader.NewSessionLoader(pool)
	}
	resolverTTL := config.TTLDuration(cfg.Analytics.ResolverTTL, 10*time.Minute)
	var resolver transport.SessionResolver
	if redisClient != nil {
		resolver = infraredis.NewSessionResolver(redisClient, loader, resolverTTL)
	} else {
		resolver = memory.NewSessionResolver(loader, resolverTTL)
	}

	wsHandler := transport.NewWSHandler(service, publisher, resolver)

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	mux.HandleFunc("/ws", wsHandler.ServeWS)
	transport.NewAlertsHandler(service).Register(mux)
	transport.NewStreamHandler(service).Register(mux)
	if cfg.Analytics.TestEndpoints {
		transport.NewTestHandler(publisher, processor).Register(mux)
	}

	server := &http.Server{
		Addr:         ":" + finalPort,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 0, // streaming endpoints hold connections open
	}

	go func() {
		log.Printf("starting classroom analytics on :%s", finalPort)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("failed to start server: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stop:
		log.Println("shutting down server...")
	case <-ctx.Done():
		log.Println("context canceled, shutting down server...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

// sampleQuizSessions maps quiz ids to sessions for demo runs without
// Postgres; real deployments resolve through the quizzes table.
func sampleQuizSessions() map[int64]int64 {
	return map[int64]int64{
		1: 42,
		2: 42,
		3: 7,
	}
}
