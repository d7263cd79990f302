package cli

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/lexmartem/uznai/internal/app"
	"github.com/lexmartem/uznai/internal/config"
	"github.com/lexmartem/uznai/internal/domain"
	"github.com/lexmartem/uznai/internal/infra/memory"
	"github.com/lexmartem/uznai/internal/infra/postgres"
	redisinfra "github.com/lexmartem/uznai/internal/infra/redis"
	transport "github.com/lexmartem/uznai/internal/transport/http"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the quiz authority",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, *port)
		},
	}
}

func runServer(ctx context.Context, configPath, portFlag string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
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
	redisTTL := config.TTLDuration(cfg.Redis.TTL, time.Hour)

	var pool *pgxpool.Pool
	if cfg.Postgres.URL != "" {
		pool, err = pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return err
		}
	}

	var quizzes app.QuizStore = memory.NewQuizStoreSeeded(sampleQuizzes())
	if pool != nil {
		quizzes = postgres.NewQuizStore(pool)
	}

	// The session read path goes through the Redis document cache when
	// available; collaborative edits invalidate it.
	quizTTL := config.TTLDuration(cfg.Quiz.TTL, 10*time.Minute)
	var reader app.QuizReader = quizzes
	var invalidate app.QuizCacheInvalidator
	if redisClient != nil {
		cache := redisinfra.NewQuizCache(redisClient, quizzes, quizTTL)
		reader = cache
		invalidate = cache
	}

	var store app.SessionStore
	if redisClient != nil {
		store = redisinfra.NewSessionStore(redisClient, redisTTL)
	} else {
		store = memory.NewSessionStore()
	}

	collab := app.NewCollabService(quizzes, invalidate)
	sessions := app.NewSessionService(store, reader)

	wsHandler := transport.NewWSHandler(collab)
	sessionHandler := transport.NewSessionHandler(sessions)
	quizHandler := transport.NewQuizHandler(quizzes)

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	mux.HandleFunc("/ws", wsHandler.ServeWS)
	sessionHandler.Register(mux)
	quizHandler.Register(mux)

	server := &http.Server{
		Addr:         ":" + finalPort,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		log.Printf("starting quiz authority on :%s", finalPort)
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

// sampleQuizzes seeds the in-memory store for runs without Postgres.
func sampleQuizzes() map[string]domain.Quiz {
	return map[string]domain.Quiz{
		"quiz-1": {
			Title:            "Getting started",
			CreatorID:        "demo",
			IsPublic:         true,
			TimeLimitMinutes: 5,
			Questions: []domain.Question{
				{
					ID:           "q1",
					QuestionText: "What is 2 + 2?",
					QuestionType: domain.QuestionMultipleChoiceSingle,
					OrderIndex:   0,
					Answers: []domain.Answer{
						{ID: "a1", AnswerText: "3", OrderIndex: 0},
						{ID: "a2", AnswerText: "4", IsCorrect: true, OrderIndex: 1},
						{ID: "a3", AnswerText: "5", OrderIndex: 2},
					},
				},
			},
		},
	}
}
