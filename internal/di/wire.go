//go:build wireinject
// +build wireinject

package di

import (
    "OppScan/pkg/config"
    "OppScan/pkg/server"

    "github.com/google/wire"
)

// InitializeApp wires up all dependencies and returns the application.
// Wire will generate the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, error) {
    wire.Build(
        // Metrics
        ProvideMetrics,

        // Infrastructure clients
        ProvideKafkaProducer,
        ProvideCache,
        ProvideLogger,
        ProvideScanBackend,

        // Sinks and notification path
        ProvideStreamHub,
        ProvideOutcomeSink,
        ProvideEventPipeline,

        // Use cases
        ProvidePricingService,
        ProvideOrchestrator,
        ProvideOutcomeStore,
        ProvideSessionManager,
        ProvideValidator,
        ProvideBatchExecutor,

        // HTTP surface
        ProvideHandler,

        // Application server
        ProvideApp,
    )
    return &server.App{}, nil
}
