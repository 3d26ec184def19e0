package router

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"time"

	"careerguide/internal/api/v1/handler"
	"careerguide/internal/backend"
	"careerguide/internal/cache"
	"careerguide/internal/config"
	"careerguide/internal/entitlement"
	"careerguide/internal/middleware"
	"careerguide/internal/orchestrator/usagesweep"
	"careerguide/internal/payment"
	"careerguide/internal/pgmq"
	"careerguide/internal/pubsub"
	"careerguide/internal/repository"
	"careerguide/internal/service"
	"careerguide/internal/usage"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/cors"
	"github.com/rs/zerolog"
)

const pendingOrderTTL = 24 * time.Hour

// infra holds the connections opened for the configured stores.
type infra struct {
	db        *sql.DB
	redis     *redis.Client
	closers   []func() error
	store     usage.Store
	sweeper   usage.Sweeper
	pending   payment.PendingOrders
	publisher pubsub.Publisher
	receiver  pubsub.Subscriber
	queue     service.PaymentWatchQueue
}

func (in *infra) Close() {
	for i := len(in.closers) - 1; i >= 0; i-- {
		_ = in.closers[i]()
	}
}

func (in *infra) openDB(ctx context.Context, cfg *config.Config) (*sql.DB, error) {
	if in.db != nil {
		return in.db, nil
	}
	db, err := repository.OpenDB(ctx, cfg)
	if err != nil {
		return nil, err
	}
	in.db = db
	in.closers = append(in.closers, db.Close)
	return db, nil
}

func (in *infra) openRedis(ctx context.Context, cfg *config.Config) (*redis.Client, error) {
	if in.redis != nil {
		return in.redis, nil
	}
	client, err := cache.NewClient(ctx, cfg)
	if err != nil {
		return nil, err
	}
	in.redis = client
	in.closers = append(in.closers, client.Close)
	return client, nil
}

func buildInfra(ctx context.Context, cfg *config.Config, instanceID string, logger zerolog.Logger) (*infra, error) {
	in := &infra{}
	fail := func(err error) (*infra, error) {
		in.Close()
		return nil, err
	}

	switch cfg.UsageStore {
	case "", "memory":
		store := usage.NewMemoryStore()
		in.store, in.sweeper = store, store
		in.pending = payment.NewMemoryPendingOrders()
	case "redis":
		client, err := in.openRedis(ctx, cfg)
		if err != nil {
			return fail(err)
		}
		in.store = cache.NewUsageCounterStore(client, cfg.UsageRetentionMonths)
		in.pending = cache.NewPendingOrderStore(client, pendingOrderTTL)
	case "postgres":
		db, err := in.openDB(ctx, cfg)
		if err != nil {
			return fail(err)
		}
		repo := repository.NewUsageCounterRepo(db)
		if err := repo.EnsureSchema(ctx); err != nil {
			return fail(err)
		}
		in.store = repo
		in.pending = payment.NewMemoryPendingOrders()
	default:
		return fail(fmt.Errorf("unknown USAGE_STORE %q", cfg.UsageStore))
	}
	logger.Info().Str("usage_store", cfg.UsageStore).Msg("Usage store initialized")

	if cfg.GCPProjectID != "" {
		pub, err := pubsub.NewPublisher(ctx, cfg)
		if err != nil {
			return fail(err)
		}
		in.closers = append(in.closers, pub.Close)
		sub, err := pubsub.NewSubscriber(ctx, cfg, instanceID, logger)
		if err != nil {
			return fail(err)
		}
		in.closers = append(in.closers, sub.Close)
		in.publisher, in.receiver = pubsub.WithOrigin(pub, instanceID), sub
		logger.Info().Str("topic", cfg.PubSubSignalsTopic).Msg("Pub/Sub signals enabled")
	} else {
		bus := pubsub.NewLocalBus(logger)
		in.publisher, in.receiver = pubsub.WithOrigin(bus, instanceID), bus
		logger.Info().Msg("No GCP project configured, using in-process signals")
	}

	if cfg.PaymentWatchEnabled {
		db, err := in.openDB(ctx, cfg)
		if err != nil {
			return fail(err)
		}
		q := pgmq.New(db)
		if err := q.CreateQueue(ctx, cfg.PaymentWatchQueueName); err != nil {
			return fail(err)
		}
		in.queue = q
	}
	return in, nil
}

// startSweeper sweeps an in-process usage store in the background. The returned
// function stops the sweep and waits for it to exit.
func startSweeper(sweeper usage.Sweeper, cfg *config.Config, logger zerolog.Logger) func() {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := usagesweep.Run(ctx, logger, sweeper, cfg.UsageSweepInterval(), cfg.UsageRetentionMonths); err != nil {
			logger.Error().Err(err).Msg("Usage sweep stopped")
		}
	}()
	return func() {
		cancel()
		<-done
	}
}

// New wires the gateway and starts the signal listener, plus the usage sweep
// when counters live in memory. The returned function stops both and closes
// every connection.
func New(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (http.Handler, func(), error) {
	instanceID := uuid.NewString()
	logger = logger.With().Str("instance_id", instanceID).Logger()
	logger.Info().Str("environment", cfg.Environment).Msg("App environment loaded")

	in, err := buildInfra(ctx, cfg, instanceID, logger)
	if err != nil {
		return nil, nil, err
	}

	backendClient := backend.NewClient(cfg.BackendBaseURL, cfg.BackendTimeout(), logger)
	registry := entitlement.NewRegistry(backendClient, logger, entitlement.WithFreshness(cfg.EntitlementFreshness()))
	tracker := usage.NewTracker(in.store, time.Now, logger)
	poller := payment.NewPoller(backendClient, logger,
		payment.WithMaxAttempts(cfg.PaymentPollMaxAttempts),
		payment.WithInterval(cfg.PaymentPollInterval()),
	)

	entSvc := service.NewEntitlementService(registry, tracker, backendClient, in.publisher, logger)
	paySvc := service.NewPaymentService(poller, in.pending, registry, in.publisher, in.queue, cfg.PaymentWatchQueueName, logger)

	listenCtx, stopListener := context.WithCancel(context.Background())
	listener := service.NewSignalListener(in.receiver, registry, instanceID, logger)
	go func() {
		if err := listener.Run(listenCtx); err != nil {
			logger.Error().Err(err).Msg("Signal listener stopped")
		}
	}()

	stopSweeper := func() {}
	if in.sweeper != nil {
		stopSweeper = startSweeper(in.sweeper, cfg, logger)
	}

	h := newHandler(cfg, entSvc, paySvc, logger)
	cleanup := func() {
		stopSweeper()
		stopListener()
		in.Close()
	}
	logger.Info().Msg("Router initialized")
	return h, cleanup, nil
}

func newHandler(cfg *config.Config, entSvc service.EntitlementService, paySvc service.PaymentService, logger zerolog.Logger) http.Handler {
	validate := validator.New(validator.WithRequiredStructEnabled())

	entitlementHandler := handler.NewEntitlementHandler(entSvc, paySvc, logger)
	usageHandler := handler.NewUsageHandler(entSvc, validate, logger)
	paymentHandler := handler.NewPaymentHandler(paySvc, validate, logger)

	authMiddleware := middleware.AuthMiddleware(cfg.JWTSecret, logger)

	mux := http.NewServeMux()

	apiV1Mux := http.NewServeMux()
	entitlementHandler.RegisterRoutes(apiV1Mux, authMiddleware)
	usageHandler.RegisterRoutes(apiV1Mux, authMiddleware)
	paymentHandler.RegisterRoutes(apiV1Mux, authMiddleware)

	// Mount the API v1 routes under /v1
	mux.Handle("/v1/", http.StripPrefix("/v1", apiV1Mux))

	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	c := cors.New(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
		Debug:            false,
	})

	return middleware.LoggerMiddleware(logger)(c.Handler(mux))
}
