package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	auditkafka "pharmatrace/internal/audit/kafka"
	auditservice "pharmatrace/internal/audit/service"
	auditstore "pharmatrace/internal/audit/store"
	auditworker "pharmatrace/internal/audit/worker"
	batchmetrics "pharmatrace/internal/batch/metrics"
	batchservice "pharmatrace/internal/batch/service"
	batchstore "pharmatrace/internal/batch/store"
	catalogservice "pharmatrace/internal/catalog/service"
	catalogstore "pharmatrace/internal/catalog/store"
	partyservice "pharmatrace/internal/party/service"
	partystore "pharmatrace/internal/party/store"
	"pharmatrace/internal/platform/config"
	"pharmatrace/internal/platform/httpserver"
	"pharmatrace/internal/platform/logger"
	"pharmatrace/internal/platform/postgres"
	platformredis "pharmatrace/internal/platform/redis"
	printjobmetrics "pharmatrace/internal/printjob/metrics"
	"pharmatrace/internal/printjob/notify"
	printjobservice "pharmatrace/internal/printjob/service"
	printjobstore "pharmatrace/internal/printjob/store"
	recallservice "pharmatrace/internal/recall/service"
	recallstore "pharmatrace/internal/recall/store"
	transfermetrics "pharmatrace/internal/transfer/metrics"
	transferservice "pharmatrace/internal/transfer/service"
	transferstore "pharmatrace/internal/transfer/store"
	httptransport "pharmatrace/internal/transport/http"
	unitmetrics "pharmatrace/internal/unit/metrics"
	unitservice "pharmatrace/internal/unit/service"
	unitstore "pharmatrace/internal/unit/store"
	verifyservice "pharmatrace/internal/verify/service"
)

// main wires stores, services, and background workers, then runs the HTTP
// server until a shutdown signal. Business logic lives in the internal
// service packages.
func main() {
	cfg := config.FromEnv()
	log := logger.New()

	if err := run(context.Background(), cfg, log); err != nil {
		log.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Server, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Persistence: postgres when configured, in-memory otherwise.
	var (
		partyStore    partyservice.Store
		catalogStore  catalogservice.Store
		batchStore    batchservice.Store
		unitStore     unitservice.Store
		transferStore transferservice.Store
		recallStore   recallservice.Store
		jobStore      printjobservice.Store
		auditOutbox   auditservice.Store
		txRunner      transferservice.TxRunner
	)
	if cfg.DatabaseURL != "" {
		db, err := postgres.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			return err
		}
		defer db.Close()

		partyStore = partystore.NewPostgres(db)
		catalogStore = catalogstore.NewPostgres(db)
		batchStore = batchstore.NewPostgres(db)
		unitStore = unitstore.NewPostgres(db)
		transferStore = transferstore.NewPostgres(db)
		recallStore = recallstore.NewPostgres(db)
		jobStore = printjobstore.NewPostgres(db)
		auditOutbox = auditstore.NewPostgres(db)
		txRunner = newTransferPostgresTx(db)
		log.Info("using postgres stores")
	} else {
		partyStore = partystore.NewInMemory()
		catalogStore = catalogstore.NewInMemory()
		batchStore = batchstore.NewInMemory()
		unitStore = unitstore.NewInMemory()
		transferStore = transferstore.NewInMemory()
		recallStore = recallstore.NewInMemory()
		jobStore = printjobstore.NewInMemory()
		auditOutbox = auditstore.NewInMemory()
		txRunner = transferservice.NewMemoryTx()
		log.Info("using in-memory stores")
	}

	// Print-job notification: redis pub/sub when configured, in-process
	// channels otherwise.
	var notifier notify.Notifier = notify.NewInProcess()
	redisClient, err := platformredis.New(cfg.RedisURL)
	if err != nil {
		return err
	}
	if redisClient != nil {
		defer redisClient.Close()
		notifier = notify.NewRedis(redisClient)
		log.Info("using redis print-job notifier")
	}

	parties := partyservice.New(partyStore)
	catalog := catalogservice.New(catalogStore, parties)
	ledger := batchservice.NewLedger(batchStore, catalog, parties, batchmetrics.New())
	registry := unitservice.New(unitStore, ledger, unitmetrics.New())
	trail := auditservice.New(auditOutbox, log)
	engine := transferservice.New(transferStore, txRunner, ledger, registry, parties,
		trail, transfermetrics.New(), cfg.ConflictRetries)
	recalls := recallservice.New(recallStore, txRunner, ledger, registry, engine, trail)
	scheduler := printjobservice.New(jobStore, ledger, registry,
		printjobservice.NewCodeSigner(cfg.AccessCodeSigningKey), notifier, trail,
		printjobmetrics.New(), log)
	watcher := printjobservice.NewWatcher(scheduler, notifier, cfg.JobPollInterval)
	verifier := verifyservice.New(registry, ledger, catalog, parties, recalls)

	handler := httptransport.NewHandler(log, parties, catalog, ledger, registry,
		engine, recalls, scheduler, watcher, verifier)
	srv := httpserver.New(cfg.Addr, httptransport.NewRouter(handler))

	group, ctx := errgroup.WithContext(ctx)

	// Audit events stay in the outbox until a kafka sink drains them.
	if len(cfg.KafkaBrokers) > 0 {
		publisher, err := auditkafka.New(ctx, cfg.KafkaBrokers, cfg.AuditTopic)
		if err != nil {
			return err
		}
		defer publisher.Close()

		worker := auditworker.New(auditOutbox, publisher, log)
		group.Go(func() error {
			return worker.Run(ctx)
		})
		log.Info("audit outbox worker started", "topic", cfg.AuditTopic)
	}

	group.Go(func() error {
		log.Info("listening", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	group.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := group.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	log.Info("shutdown complete")
	return nil
}
