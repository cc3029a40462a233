package di

import (
    "fmt"
    "time"

    "OppScan/internal/domain/models"
    "OppScan/internal/domain/repository"
    "OppScan/internal/handler/api"
    mid "OppScan/internal/middleware"
    internalrepo "OppScan/internal/repository"
    "OppScan/internal/service/discovery"
    "OppScan/internal/service/pricing"
    "OppScan/internal/usecase"
    pkgcache "OppScan/pkg/cache"
    "OppScan/pkg/config"
    xhttp "OppScan/pkg/http"
    pkgkafka "OppScan/pkg/kafka"
    applogger "OppScan/pkg/logger"
    "OppScan/pkg/metrics"
    "OppScan/pkg/server"
)

// ProvideLogger creates the application logger, shipping aggregated
// error logs to Kafka when a producer is configured.
func ProvideLogger(cfg *config.Config, producer *pkgkafka.Producer) (*applogger.Logger, error) {
	format := "console"
	level := "debug"
	if cfg.Environment == "production" {
		format = "json"
		level = "info"
	}

	l, err := applogger.New(&applogger.Config{Level: level, Format: format, Output: "stdout"})
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}

	if producer != nil && cfg.Kafka.LogsTopic != "" {
		l.AddCollector(&applogger.CollectionConfig{
			TimeInterval:   30 * time.Second,
			CountThreshold: 100,
			Topic:          cfg.Kafka.LogsTopic,
			Publisher:      internalrepo.NewLogPublisher(producer),
		})
	}
	return l, nil
}

// ProvideKafkaProducer creates a Kafka producer, nil when Kafka is
// disabled.
func ProvideKafkaProducer(cfg *config.Config) (*pkgkafka.Producer, error) {
	if !cfg.Kafka.Enabled {
		return nil, nil
	}

	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithCompression(cfg.Kafka.Compression),
		pkgkafka.WithRequiredAcks(cfg.Kafka.RequiredAcks),
		pkgkafka.WithBatchSize(cfg.Kafka.Producer.BatchSize),
		pkgkafka.WithBatchBytes(cfg.Kafka.Producer.BatchBytes),
		pkgkafka.WithBatchTimeout(cfg.Kafka.Producer.Linger),
		pkgkafka.WithTimeouts(cfg.Kafka.Producer.WriteTimeout, cfg.Kafka.Producer.ReadTimeout),
		pkgkafka.WithMaxAttempts(cfg.Kafka.Producer.MaxAttempts),
		pkgkafka.WithAsync(cfg.Kafka.Producer.Async),
		pkgkafka.WithHashByKey(true),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}
	return producer, nil
}

// ProvideCache builds the cache layer: layered memory+Redis when Redis is
// configured, in-memory otherwise.
func ProvideCache(cfg *config.Config) (pkgcache.Service, error) {
	if !cfg.Cache.Redis.Enabled {
		return pkgcache.NewMemoryCache(), nil
	}

	redisCache, err := pkgcache.NewRedisCache(
		pkgcache.WithRedisHost(cfg.Cache.Redis.Host),
		pkgcache.WithRedisPort(cfg.Cache.Redis.Port),
		pkgcache.WithRedisPassword(cfg.Cache.Redis.Password),
		pkgcache.WithRedisDB(cfg.Cache.Redis.DB),
	)
	if err != nil {
		return nil, fmt.Errorf("redis cache: %w", err)
	}
	return pkgcache.NewLayeredCache(redisCache), nil
}

// ProvideMetrics creates a Prometheus metrics recorder.
func ProvideMetrics() repository.Metrics {
	return metrics.New()
}

// ProvideScanBackend creates the discovery REST client.
func ProvideScanBackend(cfg *config.Config) repository.ScanBackend {
	return discovery.New(cfg.Discovery.BaseURL, cfg.Discovery.APIKey, cfg.Discovery.Timeout)
}

// ProvidePricingService resolves session pricing with configured defaults.
func ProvidePricingService(backend repository.ScanBackend, cfg *config.Config, logger *applogger.Logger) *pricing.Service {
	return pricing.New(backend, models.PricingConfig{
		OpportunityScanCost: cfg.Pricing.OpportunityScanCost,
		ValidationCost:      cfg.Pricing.ValidationCost,
		ExecutionCost:       cfg.Pricing.ExecutionCost,
		PerCallEstimate:     cfg.Pricing.PerCallEstimate,
	}, logger)
}

// ProvideStreamHub creates the WebSocket event hub.
func ProvideStreamHub(logger *applogger.Logger) *api.StreamHub {
	return api.NewStreamHub(logger)
}

// ProvideOutcomeSink creates the Kafka event sink, nil without a producer.
func ProvideOutcomeSink(producer *pkgkafka.Producer, cfg *config.Config, logger *applogger.Logger) *internalrepo.KafkaOutcomeSink {
	if producer == nil {
		return nil
	}
	return internalrepo.NewKafkaOutcomeSink(producer, cfg.Kafka.EventsTopic, cfg.Kafka.OutcomesTopic, logger)
}

// ProvideEventPipeline assembles the notification path: log always, then
// WebSocket and Kafka sinks.
func ProvideEventPipeline(
    m repository.Metrics,
    logger *applogger.Logger,
    hub *api.StreamHub,
    sink *internalrepo.KafkaOutcomeSink,
    cfg *config.Config,
) *mid.EventPipeline {
	sinks := []repository.Notifier{usecase.NewLogNotifier(logger), hub}
	if sink != nil {
		sinks = append(sinks, sink)
	}

	opts := make([]mid.PipelineOption, 0, 2)
	if cfg.Events.ProgressThrottle > 0 {
		opts = append(opts, mid.WithProgressThrottle(cfg.Events.ProgressThrottle))
	}
	if cfg.Events.BufferSize > 0 {
		opts = append(opts, mid.WithBufferSize(cfg.Events.BufferSize))
	}
	return mid.NewEventPipeline(m, sinks, opts...)
}

// ProvideOrchestrator creates the scan polling orchestrator.
func ProvideOrchestrator(
    backend repository.ScanBackend,
    pricingSvc *pricing.Service,
    pipeline *mid.EventPipeline,
    m repository.Metrics,
    logger *applogger.Logger,
) *usecase.ScanOrchestrator {
	return usecase.NewScanOrchestrator(backend, pricingSvc, usecase.NewReconciler(), pipeline, m, logger)
}

// ProvideOutcomeStore creates the per-session outcome cache.
func ProvideOutcomeStore(c pkgcache.Service, cfg *config.Config) repository.OutcomeCache {
	return internalrepo.NewCachedOutcomeStore(c, cfg.Cache.OutcomeTTL)
}

// ProvideSessionManager creates the session-scoped scan lifecycle owner.
func ProvideSessionManager(orch *usecase.ScanOrchestrator, store repository.OutcomeCache, logger *applogger.Logger) *usecase.SessionManager {
	return usecase.NewSessionManager(orch, store, logger)
}

// ProvideValidator creates the on-demand validation entrypoint.
func ProvideValidator(backend repository.ScanBackend, m repository.Metrics, logger *applogger.Logger) *usecase.Validator {
	return usecase.NewValidator(backend, m, logger)
}

// ProvideBatchExecutor creates the concurrent trade executor.
func ProvideBatchExecutor(backend repository.ScanBackend, m repository.Metrics, logger *applogger.Logger) *usecase.BatchExecutor {
	return usecase.NewBatchExecutor(backend, m, logger)
}

// ProvideHandler creates the HTTP route handler.
func ProvideHandler(
    logger *applogger.Logger,
    sessions *usecase.SessionManager,
    valid *usecase.Validator,
    executor *usecase.BatchExecutor,
    pricingSvc *pricing.Service,
    hub *api.StreamHub,
) xhttp.Handler {
	return api.NewScansEchoHandler(logger, sessions, valid, executor, pricingSvc, hub)
}

// ProvideApp creates the application server.
func ProvideApp(
    cfg *config.Config,
    logger *applogger.Logger,
    sessions *usecase.SessionManager,
    pipeline *mid.EventPipeline,
    hub *api.StreamHub,
    sink *internalrepo.KafkaOutcomeSink,
    cacheSvc pkgcache.Service,
    handler xhttp.Handler,
) *server.App {
	return server.New(cfg, logger, sessions, pipeline, hub, sink, cacheSvc, handler)
}
