package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"egress-worker/internal/application"
	"egress-worker/internal/domain"
	"egress-worker/internal/infrastructure/config"
	"egress-worker/internal/infrastructure/database"
	httphandler "egress-worker/internal/infrastructure/http"
	"egress-worker/internal/infrastructure/jobs"
	"egress-worker/internal/infrastructure/metrics"
	"egress-worker/internal/infrastructure/netaddr"
	"egress-worker/internal/infrastructure/queue"
	"egress-worker/internal/infrastructure/tracking"
	"egress-worker/pkg/log"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

func main() {
	log.InitLogger("egress-worker")
	defer log.L().Sync()
	log.L().Info("Starting egress worker", zap.String("event", "worker_start"))

	// Load configuration
	cfg, err := config.LoadConfig(".")
	if err != nil {
		log.L().Fatal("Failed to load configuration", zap.Error(err))
	}
	settings, err := cfg.ToWorkerSettings()
	if err != nil {
		log.L().Fatal("Invalid worker configuration", zap.Error(err))
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.NewMetrics(reg)

	// Address registry and error tracking
	var (
		resolver  domain.AddressResolver
		errSource httphandler.JobErrorSource
		dbManager *database.MongoDBManager
	)
	reporter := tracking.MultiReporter{tracking.LogReporter{}}
	if cfg.MongoDB.EnableDatabase {
		dbManager, err = database.NewMongoDBManager(
			cfg.MongoDB.ConnectionString,
			cfg.MongoDB.DatabaseName,
			cfg.MongoDB.AddressCollection,
			cfg.MongoDB.ErrorCollection,
		)
		if err != nil {
			log.L().Fatal("Failed to connect to MongoDB", zap.Error(err))
		}
		for _, rec := range cfg.StaticRecords() {
			if err := dbManager.SaveAddress(context.Background(), rec); err != nil {
				log.L().Fatal("Failed to seed address registry", zap.Error(err))
			}
		}
		resolver = dbManager
		errSource = dbManager
		reporter = append(reporter, tracking.NewStoreReporter(dbManager, log.InstanceID()))
	} else {
		log.L().Warn("MongoDB disabled, using configured address registry",
			zap.Int("addresses", len(cfg.Registry.Addresses)))
		resolver = database.NewStaticRegistry(cfg.StaticRecords())
	}

	// a closed channel stops every subscription; exit and let the supervisor restart us
	brokerLost := make(chan error, 1)
	broker, err := queue.NewRabbitMQBroker(cfg.RabbitMQ.URL, settings.MessageTTL, func(err error) {
		select {
		case brokerLost <- err:
		default:
		}
	})
	if err != nil {
		log.L().Fatal("Failed to create queue broker", zap.Error(err))
	}

	var exitOnce sync.Once
	terminate := func(code int) {
		exitOnce.Do(func() {
			log.L().Info("Worker exiting", zap.String("event", "worker_exit"), zap.Int("code", code))
			if err := broker.Close(); err != nil {
				log.L().Warn("Failed to close queue broker", zap.Error(err))
			}
			if dbManager != nil {
				if err := dbManager.Close(); err != nil {
					log.L().Warn("Failed to close MongoDB", zap.Error(err))
				}
			}
			_ = log.L().Sync()
			os.Exit(code)
		})
	}

	registry := domain.NewJobRegistry()
	jobs.Register(registry)

	state := domain.NewWorkerState()
	label := domain.NewStatusLabel()
	dispatcher := application.NewJobDispatcher(registry, reporter, label, m)
	consumer := application.NewJobConsumer(broker, dispatcher, state, terminate, m)
	membership := application.NewMembershipManager(resolver, consumer, m)
	coordinator := application.NewShutdownCoordinator(state, terminate, settings, m)
	loop := application.NewWorkerLoop(netaddr.NewInterfaceLister(cfg.Worker.IncludeLoopback), membership, coordinator, state, settings)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	coordinator.WatchSignals(ctx)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return loop.Run(gctx)
	})
	g.Go(func() error {
		select {
		case <-gctx.Done():
			return nil
		case err := <-brokerLost:
			return fmt.Errorf("rabbitmq channel closed: %w", err)
		}
	})

	if cfg.Server.Enabled {
		handler := httphandler.NewHandler(state, label, consumer, registry, errSource, reg)
		server := httphandler.NewServer(fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port), handler)
		g.Go(server.Start)
		g.Go(func() error {
			<-gctx.Done()
			stopCtx, stop := context.WithTimeout(context.Background(), 5*time.Second)
			defer stop()
			return server.Stop(stopCtx)
		})
	}

	// The loop only returns when something else failed; a requested exit
	// leaves through terminate.
	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		log.L().Error("Worker stopped", zap.String("event", "worker_failed"), zap.Error(err))
		terminate(1)
	}
	terminate(0)
}
