// Package main wires the inventory management core's engines, storage,
// ingress dispatcher, and background jobs into a single running
// process, then blocks until a shutdown signal arrives.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/primebrokerage/ims-core/internal/cache"
	"github.com/primebrokerage/ims-core/internal/clock"
	"github.com/primebrokerage/ims-core/internal/config"
	"github.com/primebrokerage/ims-core/internal/eventbus"
	"github.com/primebrokerage/ims-core/internal/ingress"
	"github.com/primebrokerage/ims-core/internal/ingress/kafkabus"
	"github.com/primebrokerage/ims-core/internal/inventory"
	"github.com/primebrokerage/ims-core/internal/locate"
	"github.com/primebrokerage/ims-core/internal/metrics"
	"github.com/primebrokerage/ims-core/internal/position"
	"github.com/primebrokerage/ims-core/internal/ruleengine"
	"github.com/primebrokerage/ims-core/internal/scheduler"
	"github.com/primebrokerage/ims-core/internal/shortsell"
	"github.com/primebrokerage/ims-core/internal/snapshot"
	"github.com/primebrokerage/ims-core/internal/store"
	"github.com/primebrokerage/ims-core/internal/store/memstore"
	"github.com/primebrokerage/ims-core/internal/store/sqlitestore"
	"github.com/primebrokerage/ims-core/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.New(logger.Config{Level: "info", Pretty: true}).Fatal().Err(err).Msg("failed to load configuration")
	}

	log := logger.New(logger.Config{Level: cfg.LogLevel, Pretty: cfg.Environment == "development"})
	log.Info().Str("environment", cfg.Environment).Msg("starting ims-core")

	st, err := openStore(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open store")
	}
	defer st.Close()

	clk := clock.SystemClock{}
	cal := clock.NewStaticCalendar()
	bus := eventbus.NewMemoryBus(log)

	reg := prometheus.NewRegistry()
	m := metrics.New(reg)

	rules := ruleengine.New(st.Rules(), log)
	posEngine := position.New(st.Positions(), st.Securities(), st.IndexCompositions(), cal, log)
	invCache := cache.New(cache.DefaultTTL)
	invEngine := inventory.New(st.Positions(), st.Contracts(), st.Securities(), st.Inventory(), st.ExternalAvailability(), rules, invCache, log)
	locateWorkflow := locate.New(st.Locates(), invEngine, rules, bus, clk, log)
	// validator is the short-sell hot-path entry point embedding services call
	// directly; this core has no transport of its own (no REST/gRPC) to drive
	// it, so it's constructed here and handed to whatever in-process caller
	// owns the order-entry path.
	validator := shortsell.New(st.ClientLimits(), st.AULimits(), bus, clk, log).WithMetrics(m)
	log.Info().Str("component", "shortsell_validator").Msg("validator ready")
	_ = validator

	deadLetter := ingress.NewMemoryDeadLetterSink()
	dispatcher := ingress.New(ingress.DefaultConfig(), st.Dedup(), deadLetter, log).WithMetrics(m)
	ingress.RegisterRoutes(dispatcher, ingress.Engines{
		Position:  posEngine,
		Inventory: invEngine,
		Locate:    locateWorkflow,
	})
	dispatcher.Start()
	defer dispatcher.Stop()

	sched := scheduler.New(log)
	if err := sched.AddJob(cfg.LocateExpirySweepCron, locateWorkflow.ExpirySweepJob()); err != nil {
		log.Fatal().Err(err).Msg("failed to register locate expiry sweep job")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var kbus *kafkabus.Bus
	if cfg.BusDriver == "kafka" {
		kbus = kafkabus.New(cfg.KafkaBrokers, log)
		defer kbus.Close()
		for _, topic := range cfg.KafkaTopics {
			bridgeKafkaTopic(ctx, dispatcher, kbus, topic, cfg.KafkaGroupID, log)
		}
	}

	registerSnapshotJobs(ctx, st, cfg, sched, log)

	sched.Start()
	defer sched.Stop()

	log.Info().Msg("ims-core running")

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	log.Info().Msg("shutdown signal received, draining")
}

func openStore(cfg *config.Config) (store.Store, error) {
	switch cfg.StoreDriver {
	case "sqlite":
		return sqlitestore.New(sqlitestore.Config{Path: cfg.SQLitePath, Profile: sqlitestore.ProfileLedger, Name: "ims"})
	default:
		return memstore.New(), nil
	}
}

// bridgeKafkaTopic ranges over topic's AckableEvent stream in its own
// goroutine, dispatching each event and acking only once the dispatcher
// has accepted it (Handled); a Deferred or Rejected verdict leaves the
// message uncommitted so the consumer group redelivers it, matching
// kafkabus.Bus.Consume's backpressure contract.
func bridgeKafkaTopic(ctx context.Context, d *ingress.Dispatcher, kbus *kafkabus.Bus, topic, groupID string, log zerolog.Logger) {
	events := kbus.Consume(ctx, topic, groupID)
	go func() {
		for ae := range events {
			outcome := d.Dispatch(ctx, ae.Event)
			if outcome == eventbus.Handled {
				if err := ae.Ack(ctx); err != nil {
					log.Warn().Err(err).Str("topic", topic).Str("eventId", ae.Event.Header.EventID).Msg("failed to ack processed message")
				}
			}
		}
	}()
}

// registerSnapshotJobs wires the periodic snapshot upload and retention
// sweep onto sched when snapshotting is enabled and the store is backed
// by sqlite (the only durable file VACUUM INTO can archive).
func registerSnapshotJobs(ctx context.Context, st store.Store, cfg *config.Config, sched *scheduler.Scheduler, log zerolog.Logger) {
	if !cfg.SnapshotEnabled {
		return
	}
	sqliteDB, ok := st.(*sqlitestore.SQLiteStore)
	if !ok {
		log.Warn().Msg("snapshotting requires IMS_STORE_DRIVER=sqlite, disabling")
		return
	}

	initCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	snapSvc, err := snapshot.New(initCtx, sqliteDB.DB(), "ims", cfg.SQLitePath+".staging", snapshot.S3Config{
		Bucket:          cfg.SnapshotBucket,
		Endpoint:        cfg.S3Endpoint,
		Region:          cfg.S3Region,
		AccessKeyID:     cfg.S3AccessKeyID,
		SecretAccessKey: cfg.S3SecretAccessKey,
	}, log)
	if err != nil {
		log.Error().Err(err).Msg("failed to initialize snapshot service, snapshots disabled")
		return
	}

	if err := sched.AddJob(everySeconds(cfg.SnapshotInterval), snapshot.NewJob(snapSvc)); err != nil {
		log.Error().Err(err).Msg("failed to register snapshot job")
	}
	if err := sched.AddJob("0 0 3 * * *", snapshot.NewRotationJob(snapSvc, cfg.SnapshotRetention, cfg.SnapshotMinKeep)); err != nil {
		log.Error().Err(err).Msg("failed to register snapshot rotation job")
	}
}

// everySeconds renders interval as an "@every" cron descriptor, for
// intervals that don't map onto a fixed wall-clock cadence like
// SnapshotInterval.
func everySeconds(interval time.Duration) string {
	if interval < time.Second {
		interval = time.Second
	}
	return "@every " + interval.String()
}
