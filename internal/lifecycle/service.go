package lifecycle

import (
	"log/slog"

	"github.com/roach88/golfkpi/internal/clock"
	"github.com/roach88/golfkpi/internal/idgen"
	"github.com/roach88/golfkpi/internal/store"
)

// Service records and reads round facts.
//
// Thread-safety: Service holds no mutable state of its own; concurrent
// calls are serialized by the store's single writer.
type Service struct {
	store  *store.Store
	ids    idgen.Generator
	clock  clock.Clock
	logger *slog.Logger
}

// Option allows configuration of service parameters.
type Option func(*Service)

// WithClock sets the clock that stamps events and scores.
// Default: clock.System.
func WithClock(c clock.Clock) Option {
	return func(s *Service) {
		s.clock = c
	}
}

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) {
		s.logger = l
	}
}

// New creates a Service over st that takes round and event IDs from ids.
func New(st *store.Store, ids idgen.Generator, opts ...Option) *Service {
	s := &Service{
		store:  st,
		ids:    ids,
		clock:  clock.System{},
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}
