package health

import (
	"context"
	"errors"
	"testing"
)

// --- Mocks ---

type mockDBPinger struct {
	err error
}

func (m *mockDBPinger) Ping(_ context.Context) error { return m.err }

type mockChecker struct {
	err error
}

func (m *mockChecker) HealthCheck(_ context.Context) error { return m.err }

// --- Tests ---

func TestCheck_AllHealthy(t *testing.T) {
	svc := New(&mockDBPinger{}, &mockChecker{}, &mockChecker{})
	r := svc.Check(context.Background())

	if r.Status != Healthy {
		t.Errorf("expected %q, got %q", Healthy, r.Status)
	}
	for _, name := range []string{"database", "embedding", "generation"} {
		if r.Checks[name] != CheckOK {
			t.Errorf("expected %s %q, got %q", name, CheckOK, r.Checks[name])
		}
	}
}

func TestCheck_DBErrorIsUnhealthy(t *testing.T) {
	svc := New(&mockDBPinger{err: errors.New("conn refused")}, &mockChecker{}, &mockChecker{})
	r := svc.Check(context.Background())

	if r.Status != Unhealthy {
		t.Errorf("expected %q, got %q", Unhealthy, r.Status)
	}
	if r.Checks["database"] != CheckError {
		t.Errorf("expected database %q, got %q", CheckError, r.Checks["database"])
	}
}

func TestCheck_ProviderErrorDegrades(t *testing.T) {
	svc := New(&mockDBPinger{}, &mockChecker{err: errors.New("timeout")}, &mockChecker{})
	r := svc.Check(context.Background())

	if r.Status != Degraded {
		t.Errorf("expected %q, got %q", Degraded, r.Status)
	}
	if r.Checks["embedding"] != CheckError {
		t.Errorf("expected embedding %q, got %q", CheckError, r.Checks["embedding"])
	}
	if r.Checks["generation"] != CheckOK {
		t.Errorf("expected generation %q, got %q", CheckOK, r.Checks["generation"])
	}
}

func TestCheck_NilProvidersSkipped(t *testing.T) {
	svc := New(&mockDBPinger{}, nil, nil)
	r := svc.Check(context.Background())

	if r.Status != Healthy {
		t.Errorf("expected %q, got %q", Healthy, r.Status)
	}
	if _, ok := r.Checks["embedding"]; ok {
		t.Error("expected no embedding check when provider is nil")
	}
}
