package cli

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/jonboulle/clockwork"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"trivia-rooms/internal/app"
	"trivia-rooms/internal/config"
	"trivia-rooms/internal/domain"
	"trivia-rooms/internal/infra/memory"
	pgloader "trivia-rooms/internal/infra/postgres"
	redisinfra "trivia-rooms/internal/infra/redis"
	transport "trivia-rooms/internal/transport/http"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the trivia server",
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
	redisTTL := config.TTLDuration(cfg.Redis.TTL, 10*time.Minute)

	var pool *pgxpool.Pool
	if cfg.Postgres.URL != "" {
		pool, err = pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return err
		}
		defer pool.Close()
	}

	var loader memory.BankLoader = memory.NewStaticBankLoader(sampleBanks())
	if pool != nil {
		loader = pgloader.NewBankLoader(pool)
	}

	bankTTL := config.TTLDuration(cfg.Questions.TTL, 10*time.Minute)
	var questionRepo app.QuestionRepository
	if redisClient != nil {
		questionRepo = redisinfra.NewQuestionRepository(redisClient, loader, bankTTL)
	} else {
		questionRepo = memory.NewQuestionRepository(loader, bankTTL)
	}

	var registry app.RoomRepository
	if redisClient != nil {
		registry = redisinfra.NewRoomRegistry(redisClient, redisTTL)
	} else {
		registry = memory.NewRoomRegistry()
	}

	bankID := cfg.Questions.Bank
	if bankID == "" {
		bankID = "default"
	}
	roomCfg := app.DefaultRoomConfig()
	if cfg.Room.MaxPlayers > 0 {
		roomCfg.MaxPlayers = cfg.Room.MaxPlayers
	}

	hub := transport.NewHub()
	service := app.NewGameService(registry, questionRepo, hub, clockwork.NewRealClock(), bankID, roomCfg)
	wsHandler := transport.NewWSHandler(service, hub)

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", transport.NewHealthHandler(service))
	mux.HandleFunc("/api/rooms", transport.NewRoomsHandler(service))
	mux.HandleFunc("/ws", wsHandler.ServeWS)

	server := &http.Server{
		Addr:         ":" + finalPort,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		log.Info().Str("port", finalPort).Msg("starting trivia server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("server stopped")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stop:
		log.Info().Msg("shutting down server")
	case <-ctx.Done():
		log.Info().Msg("context canceled, shutting down server")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

// sampleBanks provides the demo question set used when no database is
// configured.
func sampleBanks() map[string]domain.QuestionBank {
	return map[string]domain.QuestionBank{
		"default": {
			ID: "default",
			Questions: []domain.Question{
				{
					ID:            1,
					Prompt:        "What is the capital of France?",
					Options:       []string{"London", "Berlin", "Paris", "Madrid"},
					CorrectAnswer: 2,
					TimeLimit:     10,
				},
				{
					ID:            2,
					Prompt:        "Which planet is known as the Red Planet?",
					Options:       []string{"Venus", "Mars", "Jupiter", "Saturn"},
					CorrectAnswer: 1,
					TimeLimit:     10,
				},
				{
					ID:            3,
					Prompt:        "What is 5 + 7?",
					Options:       []string{"10", "11", "12", "13"},
					CorrectAnswer: 2,
					TimeLimit:     8,
				},
			},
		},
	}
}
