package repository

import (
	"context"
	"errors"
	"time"

	"OppScan/internal/domain/models"
	"OppScan/pkg/cache"
	"OppScan/pkg/kafka"
	applogger "OppScan/pkg/logger"
)

const outcomeKeyPrefix = "outcome"

// CachedOutcomeStore keeps the last terminal outcome per session in the
// cache layer, so a reconnecting consumer reads the previous result
// instead of triggering a rescan.
type CachedOutcomeStore struct {
	cache cache.Service
	ttl   time.Duration
}

func NewCachedOutcomeStore(c cache.Service, ttl time.Duration) *CachedOutcomeStore {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &CachedOutcomeStore{cache: c, ttl: ttl}
}

func (s *CachedOutcomeStore) StoreOutcome(ctx context.Context, session string, out *models.ScanOutcome) error {
	return s.cache.Set(ctx, cache.GenerateKey(outcomeKeyPrefix, session), out, s.ttl)
}

// LastOutcome returns nil without error when no outcome is cached.
func (s *CachedOutcomeStore) LastOutcome(ctx context.Context, session string) (*models.ScanOutcome, error) {
	var out models.ScanOutcome
	err := s.cache.Get(ctx, cache.GenerateKey(outcomeKeyPrefix, session), &out)
	if err != nil {
		if errors.Is(err, cache.ErrCacheMiss) {
			return nil, nil
		}
		return nil, err
	}
	return &out, nil
}

// KafkaOutcomeSink publishes scan events for downstream consumers: every
// event goes to the events topic, terminal outcomes additionally to the
// outcomes topic keyed by scan ID.
type KafkaOutcomeSink struct {
	producer      *kafka.Producer
	eventsTopic   string
	outcomesTopic string
	logger        *applogger.Logger
}

func NewKafkaOutcomeSink(producer *kafka.Producer, eventsTopic, outcomesTopic string, logger *applogger.Logger) *KafkaOutcomeSink {
	return &KafkaOutcomeSink{
		producer:      producer,
		eventsTopic:   eventsTopic,
		outcomesTopic: outcomesTopic,
		logger:        logger,
	}
}

// Notify publishes the event. Failures are logged, never propagated: the
// poll loop must not stall on a broker outage.
func (s *KafkaOutcomeSink) Notify(ctx context.Context, ev *models.ScanEvent) {
	if err := s.producer.Publish(ctx, s.eventsTopic, []byte(ev.ScanID), ev); err != nil {
		s.logger.Warn("failed to publish scan event",
			applogger.String("scan_id", ev.ScanID),
			applogger.String("kind", ev.Kind),
			applogger.Error(err),
		)
	}

	if ev.Terminal() && ev.Outcome != nil {
		if err := s.producer.Publish(ctx, s.outcomesTopic, []byte(ev.ScanID), ev.Outcome); err != nil {
			s.logger.Warn("failed to publish scan outcome",
				applogger.String("scan_id", ev.ScanID),
				applogger.Error(err),
			)
		}
	}
}

// Close flushes and closes the underlying producer.
func (s *KafkaOutcomeSink) Close() error {
	return s.producer.Close()
}
