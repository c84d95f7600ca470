package health

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/rs/zerolog"
)

type fakeChecker struct {
	name       string
	configured bool
	err        error
}

func (f *fakeChecker) Name() string                   { return f.name }
func (f *fakeChecker) IsConfigured() bool             { return f.configured }
func (f *fakeChecker) Test(ctx context.Context) error { return f.err }

type fakeBroadcaster struct {
	mu       sync.Mutex
	messages []string
}

func (f *fakeBroadcaster) Broadcast(msgType string, payload any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.messages = append(f.messages, msgType)
	return nil
}

func TestServiceRunChecks(t *testing.T) {
	svc := NewService(zerolog.Nop())
	svc.Register(&fakeChecker{name: "plex", configured: true})
	svc.Register(&fakeChecker{name: "radarr", configured: true, err: errors.New("connection refused")})
	svc.Register(&fakeChecker{name: "sonarr"})

	results := svc.RunChecks(context.Background())
	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}

	byName := make(map[string]Check)
	for _, r := range results {
		byName[r.Name] = r
	}

	if byName["plex"].Status != StatusOK {
		t.Errorf("expected plex ok, got %s", byName["plex"].Status)
	}
	if byName["radarr"].Status != StatusError {
		t.Errorf("expected radarr error, got %s", byName["radarr"].Status)
	}
	if byName["radarr"].Message != "connection refused" {
		t.Errorf("unexpected radarr message: %s", byName["radarr"].Message)
	}
	if byName["sonarr"].Status != StatusSkipped {
		t.Errorf("expected sonarr skipped, got %s", byName["sonarr"].Status)
	}

	if svc.Healthy() {
		t.Error("expected unhealthy with a failing provider")
	}
}

func TestServiceChecksBeforeRun(t *testing.T) {
	svc := NewService(zerolog.Nop())
	svc.Register(&fakeChecker{name: "plex", configured: true})

	checks := svc.Checks()
	if len(checks) != 1 {
		t.Fatalf("expected 1 check, got %d", len(checks))
	}
	if checks[0].Status != StatusUnknown {
		t.Errorf("expected unknown before first run, got %s", checks[0].Status)
	}
	if !svc.Healthy() {
		t.Error("unknown status should not count as unhealthy")
	}
}

func TestServiceBroadcastsOnTransition(t *testing.T) {
	svc := NewService(zerolog.Nop())
	b := &fakeBroadcaster{}
	svc.SetBroadcaster(b)

	checker := &fakeChecker{name: "tautulli", configured: true}
	svc.Register(checker)

	// unknown -> ok
	svc.RunChecks(context.Background())
	// ok -> ok, no broadcast
	svc.RunChecks(context.Background())
	// ok -> error
	checker.err = errors.New("timeout")
	svc.RunChecks(context.Background())

	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.messages) != 2 {
		t.Fatalf("expected 2 broadcasts, got %d", len(b.messages))
	}
	for _, msg := range b.messages {
		if msg != "health:update" {
			t.Errorf("unexpected message type %s", msg)
		}
	}
}
