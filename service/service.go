// Package service exposes the engine over NATS request/reply: query
// resolution, batch resolution, provider and health inspection and cache
// invalidation. One subscription per operation, all on a shared queue group
// so multiple instances load-balance.
package service

import (
	"context"
	"log/slog"
	"sync"

	"github.com/nats-io/nats.go"

	"github.com/c360/quantdata/engine"
	"github.com/c360/quantdata/errors"
	"github.com/c360/quantdata/health"
	"github.com/c360/quantdata/natsclient"
)

// Config tunes the service surface.
type Config struct {
	// SubjectPrefix roots every request subject.
	SubjectPrefix string `json:"subject_prefix" mapstructure:"subject_prefix"`

	// QueueGroup is the NATS queue group shared by service instances.
	QueueGroup string `json:"queue_group" mapstructure:"queue_group"`
}

// DefaultConfig returns the default service subjects.
func DefaultConfig() Config {
	return Config{
		SubjectPrefix: "quantdata",
		QueueGroup:    "quantdata-svc",
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.SubjectPrefix == "" {
		c.SubjectPrefix = d.SubjectPrefix
	}
	if c.QueueGroup == "" {
		c.QueueGroup = d.QueueGroup
	}
	return c
}

// Service bridges NATS subjects to engine operations.
type Service struct {
	cfg     Config
	engine  *engine.Engine
	watcher *health.Watcher
	client  *natsclient.Client
	logger  *slog.Logger

	mu   sync.Mutex
	subs []*nats.Subscription
}

// New creates the service. The watcher may be nil; the health subject then
// reports only registry presence.
func New(cfg Config, eng *engine.Engine, watcher *health.Watcher, client *natsclient.Client, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		cfg:     cfg.withDefaults(),
		engine:  eng,
		watcher: watcher,
		client:  client,
		logger:  logger.With("component", "Service"),
	}
}

// Subjects returns the request subjects the service answers on.
func (s *Service) Subjects() []string {
	prefix := s.cfg.SubjectPrefix
	return []string{
		prefix + ".query",
		prefix + ".query.batch",
		prefix + ".providers",
		prefix + ".providers.metrics",
		prefix + ".health",
		prefix + ".cache.invalidate",
	}
}

// Start subscribes every operation subject. The context bounds handler
// execution for requests received after it ends.
func (s *Service) Start(ctx context.Context) error {
	conn := s.client.Conn()
	if conn == nil {
		return errors.WrapTransient(errors.ErrNoConnection, "Service", "Start", "connection check")
	}

	handlers := map[string]func(context.Context, []byte) []byte{
		s.cfg.SubjectPrefix + ".query":             s.handleQuery,
		s.cfg.SubjectPrefix + ".query.batch":       s.handleBatch,
		s.cfg.SubjectPrefix + ".providers":         s.handleProviders,
		s.cfg.SubjectPrefix + ".providers.metrics": s.handleProviderMetrics,
		s.cfg.SubjectPrefix + ".health":            s.handleHealth,
		s.cfg.SubjectPrefix + ".cache.invalidate":  s.handleInvalidate,
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for subject, handler := range handlers {
		sub, err := conn.QueueSubscribe(subject, s.cfg.QueueGroup, func(msg *nats.Msg) {
			reply := handler(ctx, msg.Data)
			if err := msg.Respond(reply); err != nil {
				s.logger.Warn("reply failed", "subject", msg.Subject, "error", err)
			}
		})
		if err != nil {
			s.unsubscribeLocked()
			return errors.WrapTransient(err, "Service", "Start", "subscribe "+subject)
		}
		s.subs = append(s.subs, sub)
	}

	s.logger.Info("service started", "subjects", len(s.subs), "prefix", s.cfg.SubjectPrefix)
	return nil
}

// Stop unsubscribes every subject. The NATS connection stays open; the
// owner closes it.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.unsubscribeLocked()
}

func (s *Service) unsubscribeLocked() {
	for _, sub := range s.subs {
		if err := sub.Unsubscribe(); err != nil {
			s.logger.Warn("unsubscribe failed", "error", err)
		}
	}
	s.subs = nil
}
