// Package main is the entry point of the NexLearn economy engine: the
// gamification subsystem maintaining XP/currency balances, idempotent
// reward grants, daily quests, and two-party quiz duels.
//
// The layout follows Clean Architecture / DDD:
//   - Domain: entities, invariants and repository contracts
//   - Application: grant service, quest tracker, duel coordinator
//   - Infrastructure: postgres/redis persistence, event bus, scheduler
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nexlearn/nexlearn-economy/config"

	appchallenge "github.com/nexlearn/nexlearn-economy/internal/application/challenge"
	appquest "github.com/nexlearn/nexlearn-economy/internal/application/quest"
	appreward "github.com/nexlearn/nexlearn-economy/internal/application/reward"

	domainchallenge "github.com/nexlearn/nexlearn-economy/internal/domain/challenge"
	"github.com/nexlearn/nexlearn-economy/internal/domain/notification"
	"github.com/nexlearn/nexlearn-economy/internal/domain/shared"

	"github.com/nexlearn/nexlearn-economy/internal/infrastructure/messaging"
	"github.com/nexlearn/nexlearn-economy/internal/infrastructure/persistence/postgres"
	engineredis "github.com/nexlearn/nexlearn-economy/internal/infrastructure/persistence/redis"
	"github.com/nexlearn/nexlearn-economy/internal/infrastructure/scheduler"
	"github.com/nexlearn/nexlearn-economy/internal/infrastructure/service"

	"github.com/nexlearn/nexlearn-economy/pkg/logger"
)

// deliveryInterval is how often the outbox delivery loop polls.
const deliveryInterval = 10 * time.Second

// deliveryBatch bounds one delivery pass.
const deliveryBatch = 100

// engine bundles the wired application services.
type engine struct {
	rewards *appreward.Service
	quests  *appquest.Tracker
	duels   *appchallenge.Coordinator
	outbox  notification.Outbox
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "engine: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log := logger.New(logger.Options{
		Level:     logger.ParseLevel(cfg.App.LogLevel),
		Output:    os.Stdout,
		AddCaller: cfg.App.Debug,
	}).With(logger.String("app", cfg.App.Name))
	log.Info("starting economy engine", logger.String("env", string(cfg.App.Environment)))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── PostgreSQL ────────────────────────────────────────────────────────

	conn, err := postgres.NewConnectionFromURL(ctx, cfg.Database.URL)
	if err != nil {
		return fmt.Errorf("postgres: %w", err)
	}
	defer conn.Close()

	if err := postgres.NewMigrator(conn).Migrate(ctx); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	log.Info("database ready")

	// ── Redis (optional) and event bus ────────────────────────────────────

	var bus shared.EventBus
	var watcher domainchallenge.Watcher
	var presence notification.PresenceOracle

	busConfig := messaging.InMemoryEventBusConfig{
		AsyncMode:      true,
		WorkerPoolSize: cfg.Engine.EventBusWorkers,
		EnableMetrics:  true,
		Logger:         slog.Default(),
	}

	if cfg.Redis.Disabled {
		inmem := messaging.NewInMemoryEventBus(busConfig)
		defer inmem.Close()
		bus = inmem
		log.Info("redis disabled, using in-memory event bus")
	} else {
		redisClient, err := engineredis.NewClient(ctx, engineredis.Config{
			Host:     cfg.Redis.Host,
			Port:     cfg.Redis.Port,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			PoolSize: cfg.Redis.PoolSize,
		})
		if err != nil {
			return fmt.Errorf("redis: %w", err)
		}
		defer redisClient.Close()

		redisBus, err := messaging.NewRedisEventBus(messaging.RedisEventBusConfig{
			Client:         messaging.NewGoRedisClient(redisClient),
			LocalBusConfig: busConfig,
		})
		if err != nil {
			return fmt.Errorf("event bus: %w", err)
		}
		defer redisBus.Close()
		bus = redisBus

		watcher = engineredis.NewChallengeWatcher(redisClient)
		presence = engineredis.NewPresenceTracker(redisClient)
		log.Info("redis connected", logger.String("addr", fmt.Sprintf("%s:%d", cfg.Redis.Host, cfg.Redis.Port)))
	}

	// ── Repositories and collaborators ────────────────────────────────────

	ledgerRepo := postgres.NewLedgerRepository(conn)
	claimRepo := postgres.NewClaimRepository(conn)
	questRepo := postgres.NewQuestRepository(conn)
	challengeRepo := postgres.NewChallengeRepository(conn)
	outbox := postgres.NewNotificationOutbox(conn)
	activitySink := postgres.NewActivityRepository(conn)

	// The static catalogue stands in for the course service until the
	// real client is wired.
	cat := service.NewStaticCatalogue()

	// ── Application services ──────────────────────────────────────────────

	rewardService := appreward.NewService(ledgerRepo, claimRepo, cat, bus, outbox, presence, activitySink, log)
	questTracker := appquest.NewTracker(questRepo, rewardService, bus, log)
	duelCoordinator := appchallenge.NewCoordinator(challengeRepo, cat, rewardService, bus, watcher, outbox, activitySink, log)

	eng := &engine{
		rewards: rewardService,
		quests:  questTracker,
		duels:   duelCoordinator,
		outbox:  outbox,
	}

	unsubscribe, err := questTracker.Subscribe(bus)
	if err != nil {
		return fmt.Errorf("quest subscriptions: %w", err)
	}
	defer unsubscribe()

	// ── Scheduler and delivery loop ───────────────────────────────────────

	sched, err := scheduler.New(questTracker, log)
	if err != nil {
		return fmt.Errorf("scheduler: %w", err)
	}
	sched.Start()
	defer func() {
		if err := sched.Shutdown(); err != nil {
			log.Warn("scheduler shutdown", logger.Err(err))
		}
	}()

	go eng.deliverNotifications(ctx, log)

	log.Info("economy engine running")
	<-ctx.Done()
	log.Info("shutting down")
	return nil
}

// deliverNotifications drains the outbox periodically. Actual delivery
// transports (push, email) plug in here; the engine itself only logs
// and marks entries sent.
func (e *engine) deliverNotifications(ctx context.Context, log *logger.Logger) {
	ticker := time.NewTicker(deliveryInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		pending, err := e.outbox.ListPending(ctx, deliveryBatch)
		if err != nil {
			log.Warn("outbox listing failed", logger.Err(err))
			continue
		}
		for _, n := range pending {
			log.Info("notification delivered",
				logger.UserID(n.UserID),
				logger.String("notification_type", string(n.Type)))
			if err := e.outbox.MarkSent(ctx, n.ID); err != nil {
				log.Warn("outbox mark sent failed", logger.Err(err))
			}
		}
	}
}
