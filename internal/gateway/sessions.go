package gateway

import (
	"context"
	"log/slog"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Sessions counts open connections per service. One registry is shared
// by every endpoint so the active-session gauge covers the whole daemon.
type Sessions struct {
	mu       sync.RWMutex
	counts   map[string]int64
	meter    metric.Meter
	gauge    metric.Int64ObservableGauge
	requests metric.Int64Counter
}

func NewSessions(log *slog.Logger) *Sessions {
	s := &Sessions{
		counts: make(map[string]int64),
		meter:  otel.Meter("github.com/vaanilabs/vaani/gateway"),
	}
	if err := s.initMetrics(); err != nil {
		log.Warn("failed to initialize session metrics", slog.String("error", err.Error()))
	}
	return s
}

func (s *Sessions) initMetrics() error {
	gauge, err := s.meter.Int64ObservableGauge("vaani.gateway.active_sessions",
		metric.WithDescription("Open websocket sessions per service"))
	if err != nil {
		return err
	}
	s.gauge = gauge
	requests, err := s.meter.Int64Counter("vaani.gateway.requests",
		metric.WithDescription("Decoded requests per service and message type"))
	if err != nil {
		return err
	}
	s.requests = requests
	_, err = s.meter.RegisterCallback(func(_ context.Context, obs metric.Observer) error {
		s.mu.RLock()
		defer s.mu.RUnlock()
		for service, n := range s.counts {
			obs.ObserveInt64(gauge, n, metric.WithAttributes(attribute.String("service", service)))
		}
		return nil
	}, gauge)
	return err
}

func (s *Sessions) countRequest(service, requestType string) {
	if s.requests == nil {
		return
	}
	s.requests.Add(context.Background(), 1, metric.WithAttributes(
		attribute.String("service", service),
		attribute.String("type", requestType)))
}

func (s *Sessions) add(service string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.counts[service]++
}

func (s *Sessions) remove(service string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.counts[service] <= 1 {
		delete(s.counts, service)
		return
	}
	s.counts[service]--
}

// Active reports the open session count for one service.
func (s *Sessions) Active(service string) int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.counts[service]
}
