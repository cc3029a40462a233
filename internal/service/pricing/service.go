package pricing

import (
	"context"
	"sync"

	icache "OppScan/internal/service/cache"
	"OppScan/internal/domain/models"
	drepo "OppScan/internal/domain/repository"
	applogger "OppScan/pkg/logger"
)

const cacheKey = "pricing:session"

// Service resolves the session PricingConfig: fetched once from the
// backend, cached for the session, defaults applied on any failure.
// The returned config is read-only.
type Service struct {
	backend  drepo.ScanBackend
	defaults models.PricingConfig
	cache    *icache.TTLCache
	logger   *applogger.Logger

	mu      sync.Mutex
	fetched bool
}

// New creates a pricing service with the configured fallback costs.
func New(backend drepo.ScanBackend, defaults models.PricingConfig, logger *applogger.Logger) *Service {
	return &Service{
		backend:  backend,
		defaults: defaults,
		cache:    icache.NewTTLCache(),
		logger:   logger,
	}
}

// Get returns the session pricing config. It never fails: the configured
// defaults cover an unreachable pricing endpoint.
func (s *Service) Get(ctx context.Context) *models.PricingConfig {
	if v, ok := s.cache.Get(cacheKey); ok {
		return v.(*models.PricingConfig)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if v, ok := s.cache.Get(cacheKey); ok {
		return v.(*models.PricingConfig)
	}
	if s.fetched {
		// Earlier fetch failed; stick with defaults for the session.
		d := s.defaults
		return &d
	}
	s.fetched = true

	cfg, err := s.backend.Pricing(ctx)
	if err != nil {
		if s.logger != nil {
			s.logger.Warn("pricing fetch failed, using defaults", applogger.Error(err))
		}
		d := s.defaults
		s.cache.Set(cacheKey, &d, 0)
		return &d
	}

	s.cache.Set(cacheKey, cfg, 0)
	return cfg
}
