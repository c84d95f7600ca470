package health

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

const checkTimeout = 10 * time.Second

// Checker is implemented by every provider client.
type Checker interface {
	Name() string
	IsConfigured() bool
	Test(ctx context.Context) error
}

// Broadcaster pushes health updates to connected WebSocket clients.
type Broadcaster interface {
	Broadcast(msgType string, payload any) error
}

// Service runs connectivity checks against the configured providers
// and caches the most recent result per provider.
type Service struct {
	mu          sync.RWMutex
	checkers    []Checker
	results     map[string]Check
	broadcaster Broadcaster
	logger      zerolog.Logger
}

func NewService(logger zerolog.Logger) *Service {
	return &Service{
		results: make(map[string]Check),
		logger:  logger.With().Str("component", "health").Logger(),
	}
}

// Register adds a provider to the check rotation.
func (s *Service) Register(c Checker) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.checkers = append(s.checkers, c)
	s.results[c.Name()] = Check{Name: c.Name(), Status: StatusUnknown}
}

// SetBroadcaster sets the WebSocket broadcaster for health updates.
func (s *Service) SetBroadcaster(b Broadcaster) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.broadcaster = b
}

// RunChecks tests every registered provider and returns the fresh
// results. Unconfigured providers are marked skipped, not errored.
func (s *Service) RunChecks(ctx context.Context) []Check {
	s.mu.RLock()
	checkers := make([]Checker, len(s.checkers))
	copy(checkers, s.checkers)
	s.mu.RUnlock()

	results := make([]Check, 0, len(checkers))
	for _, c := range checkers {
		results = append(results, s.runCheck(ctx, c))
	}
	return results
}

func (s *Service) runCheck(ctx context.Context, c Checker) Check {
	now := time.Now()
	result := Check{Name: c.Name(), Status: StatusOK, CheckedAt: &now}

	if !c.IsConfigured() {
		result.Status = StatusSkipped
		result.Message = "not configured"
	} else {
		checkCtx, cancel := context.WithTimeout(ctx, checkTimeout)
		err := c.Test(checkCtx)
		cancel()
		if err != nil {
			result.Status = StatusError
			result.Message = err.Error()
		}
	}

	s.store(result)
	return result
}

// store records the result and broadcasts on status transitions.
func (s *Service) store(result Check) {
	s.mu.Lock()
	prev, known := s.results[result.Name]
	s.results[result.Name] = result
	broadcaster := s.broadcaster
	s.mu.Unlock()

	if !known || prev.Status == result.Status {
		return
	}

	s.logger.Info().
		Str("provider", result.Name).
		Str("oldStatus", string(prev.Status)).
		Str("newStatus", string(result.Status)).
		Str("message", result.Message).
		Msg("provider health changed")

	if broadcaster != nil {
		_ = broadcaster.Broadcast("health:update", result)
	}
}

// Checks returns the cached results in registration order.
func (s *Service) Checks() []Check {
	s.mu.RLock()
	defer s.mu.RUnlock()

	results := make([]Check, 0, len(s.checkers))
	for _, c := range s.checkers {
		results = append(results, s.results[c.Name()])
	}
	return results
}

// Healthy reports whether no configured provider is failing.
func (s *Service) Healthy() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, result := range s.results {
		if result.Status == StatusError {
			return false
		}
	}
	return true
}
