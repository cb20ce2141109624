package session

import (
	"testing"

	"github.com/dreamware/redisd/internal/apperr"
)

func TestAddSessionDroppedWhileNotRunning(t *testing.T) {
	r := NewRegistry()
	r.AddSession(New(1, nil))

	if r.Len() != 0 {
		t.Errorf("expected session to be dropped while registry not running")
	}
}

func TestAddAndGetSession(t *testing.T) {
	r := NewRegistry()
	r.SetRunning(true)

	s := New(1, nil)
	r.AddSession(s)

	got, ok := r.Get(1)
	if !ok || got != s {
		t.Errorf("expected to find added session")
	}
}

func TestAddSessionDuplicateIDPanics(t *testing.T) {
	r := NewRegistry()
	r.SetRunning(true)
	r.AddSession(New(1, nil))

	defer func() {
		if recover() == nil {
			t.Errorf("expected panic on duplicate session id")
		}
	}()
	r.AddSession(New(1, nil))
}

func TestCancelSessionErrors(t *testing.T) {
	r := NewRegistry()

	if err := r.CancelSession(1); err != apperr.ErrBusy {
		t.Errorf("expected ErrBusy while not running, got %v", err)
	}

	r.SetRunning(true)
	if err := r.CancelSession(99); err == nil {
		t.Errorf("expected ErrNotFound for missing session")
	}

	s := New(1, nil)
	r.AddSession(s)
	if err := r.CancelSession(1); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !s.Cancelled() {
		t.Errorf("expected session to be marked cancelled")
	}
}

func TestEndSessionRemovesSession(t *testing.T) {
	r := NewRegistry()
	r.SetRunning(true)
	r.AddSession(New(1, nil))

	r.EndSession(1)
	if _, ok := r.Get(1); ok {
		t.Errorf("expected session removed after EndSession")
	}
}

func TestEndSessionMissingWhileRunningPanics(t *testing.T) {
	r := NewRegistry()
	r.SetRunning(true)

	defer func() {
		if recover() == nil {
			t.Errorf("expected panic ending a missing session while running")
		}
	}()
	r.EndSession(42)
}

func TestEndSessionMissingWhileNotRunningNoop(t *testing.T) {
	r := NewRegistry()
	r.EndSession(42) // must not panic
}

func TestClearEmptiesRegistry(t *testing.T) {
	r := NewRegistry()
	r.SetRunning(true)
	r.AddSession(New(1, nil))
	r.AddSession(New(2, nil))

	r.Clear()
	if r.Len() != 0 {
		t.Errorf("expected registry empty after Clear")
	}
}
