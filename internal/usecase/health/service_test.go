package health

import (
	"context"
	"errors"
	"testing"
)

// --- Mocks ---

type mockStorePinger struct {
	err error
}

func (m *mockStorePinger) Ping(_ context.Context) error { return m.err }

type mockModelChecker struct {
	err error
}

func (m *mockModelChecker) HealthCheck(_ context.Context) error { return m.err }

// --- Tests ---

func TestCheck_AllHealthy(t *testing.T) {
	svc := New(&mockStorePinger{}, map[string]ModelChecker{
		"general": &mockModelChecker{},
		"code":    &mockModelChecker{},
	})
	r := svc.Check(context.Background())

	if r.Status != Healthy {
		t.Errorf("expected %q, got %q", Healthy, r.Status)
	}
	if r.Checks["cache"] != CheckOK {
		t.Errorf("expected cache %q, got %q", CheckOK, r.Checks["cache"])
	}
	if r.Checks["model:general"] != CheckOK {
		t.Errorf("expected model:general %q, got %q", CheckOK, r.Checks["model:general"])
	}
	if r.Checks["model:code"] != CheckOK {
		t.Errorf("expected model:code %q, got %q", CheckOK, r.Checks["model:code"])
	}
}

func TestCheck_StoreError(t *testing.T) {
	svc := New(&mockStorePinger{err: errors.New("conn refused")}, map[string]ModelChecker{
		"general": &mockModelChecker{},
	})
	r := svc.Check(context.Background())

	if r.Status != Degraded {
		t.Errorf("expected %q, got %q", Degraded, r.Status)
	}
	if r.Checks["cache"] != CheckError {
		t.Errorf("expected cache %q, got %q", CheckError, r.Checks["cache"])
	}
	if r.Checks["model:general"] != CheckOK {
		t.Errorf("expected model:general %q, got %q", CheckOK, r.Checks["model:general"])
	}
}

func TestCheck_ModelError(t *testing.T) {
	svc := New(&mockStorePinger{}, map[string]ModelChecker{
		"general": &mockModelChecker{},
		"code":    &mockModelChecker{err: errors.New("timeout")},
	})
	r := svc.Check(context.Background())

	if r.Status != Degraded {
		t.Errorf("expected %q, got %q", Degraded, r.Status)
	}
	if r.Checks["model:code"] != CheckError {
		t.Errorf("expected model:code %q, got %q", CheckError, r.Checks["model:code"])
	}
}

func TestCheck_NilStore(t *testing.T) {
	svc := New(nil, map[string]ModelChecker{"general": &mockModelChecker{}})
	r := svc.Check(context.Background())

	if r.Status != Healthy {
		t.Errorf("expected %q, got %q", Healthy, r.Status)
	}
	if _, ok := r.Checks["cache"]; ok {
		t.Error("expected no cache check when store is nil")
	}
}
