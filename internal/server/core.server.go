package server

import (
	"context"
	"fmt"
	"net/http"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"ledger-service/internal/config"
	hrest "ledger-service/internal/handler/rest"
	"ledger-service/internal/pub"
	"ledger-service/internal/repository"
	"ledger-service/internal/service"
	"ledger-service/internal/usecase"
)

// Server owns every long-lived resource: the database pool, redis client,
// kafka publisher and the HTTP listener.
type Server struct {
	http      *http.Server
	db        *pgxpool.Pool
	rdb       *redis.Client
	publisher *pub.JournalEventPublisher
	log       *zap.Logger
}

// New connects the backing services, seeds the system and wires the engine
// behind the REST handler.
func New(cfg config.AppConfig, log *zap.Logger) (*Server, error) {
	// --- DB connection ---
	dbpool, err := config.ConnectDB(log)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := repository.EnsureSchema(context.Background(), dbpool); err != nil {
		dbpool.Close()
		return nil, err
	}

	// --- Redis client ---
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPass,
		DB:       0,
	})

	// --- Kafka publisher ---
	publisher := pub.NewJournalEventPublisher(cfg.KafkaBrokers, cfg.KafkaTopic, log)

	// --- Repositories ---
	settingsRepo := repository.NewSettingsRepo(dbpool)
	accountRepo := repository.NewAccountRepo(dbpool)
	journalRepo := repository.NewJournalRepo(dbpool)
	ledgerRepo := repository.NewLedgerRepo(dbpool)
	statementRepo := repository.NewStatementRepo(dbpool)

	// --- Usecases ---
	allocator := usecase.NewNumberAllocator(settingsRepo)
	accountUC := usecase.NewAccountUsecase(accountRepo, allocator, rdb, log)
	journalUC := usecase.NewJournalUsecase(journalRepo, accountRepo, rdb, publisher, log)
	ledgerUC := usecase.NewLedgerUsecase(ledgerRepo, settingsRepo, rdb, log)
	reconcileUC := usecase.NewReconcileUsecase(ledgerRepo, statementRepo, accountRepo, log)

	// --- Seed counters and base accounts before serving ---
	seeder := service.NewSystemSeeder(settingsRepo, accountRepo, log)
	if err := seeder.SeedSystem(context.Background()); err != nil {
		dbpool.Close()
		return nil, fmt.Errorf("system seeding failed: %w", err)
	}

	// --- REST handler ---
	handler := hrest.NewLedgerRestHandler(accountUC, journalUC, ledgerUC, reconcileUC, statementRepo, log)

	return &Server{
		http: &http.Server{
			Addr:    cfg.HTTPAddr,
			Handler: handler.Router(),
		},
		db:        dbpool,
		rdb:       rdb,
		publisher: publisher,
		log:       log,
	}, nil
}

// Start blocks serving HTTP until Shutdown is called or the listener fails.
func (s *Server) Start() error {
	s.log.Info("ledger REST service running", zap.String("addr", s.http.Addr))
	if err := s.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests then releases resources.
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.http.Shutdown(ctx)
	if cerr := s.publisher.Close(); cerr != nil && err == nil {
		err = cerr
	}
	if cerr := s.rdb.Close(); cerr != nil && err == nil {
		err = cerr
	}
	s.db.Close()
	return err
}
