package core

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func TestRunGate_TryAcquireRelease(t *testing.T) {
	gate := NewRunGate(1)

	if !gate.TryAcquire() {
		t.Fatal("first TryAcquire = false, want true")
	}
	if gate.TryAcquire() {
		t.Error("second TryAcquire = true, want false while slot is held")
	}
	if got := gate.ActiveCount(); got != 1 {
		t.Errorf("ActiveCount = %d, want 1", got)
	}

	gate.Release()

	if got := gate.Status(); got.Active != 0 || got.Available != 1 || got.Capacity != 1 {
		t.Errorf("Status = %+v, want {0 1 1}", got)
	}
	if !gate.TryAcquire() {
		t.Error("TryAcquire after Release = false, want true")
	}
	gate.Release()
}

func TestRunGate_DefaultCapacity(t *testing.T) {
	if got := NewRunGate(0).Status().Capacity; got != 1 {
		t.Errorf("Capacity = %d, want 1", got)
	}
}

func TestRunGate_ConcurrentTryAcquire(t *testing.T) {
	gate := NewRunGate(1)

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		winners int
	)
	start := make(chan struct{})
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			if gate.TryAcquire() {
				mu.Lock()
				winners++
				mu.Unlock()
			}
		}()
	}
	close(start)
	wg.Wait()

	if winners != 1 {
		t.Errorf("winners = %d, want exactly 1", winners)
	}
}

func TestRunGate_WaitForDrain(t *testing.T) {
	gate := NewRunGate(1)

	if err := gate.WaitForDrain(context.Background()); err != nil {
		t.Fatalf("WaitForDrain on idle gate: %v", err)
	}

	gate.TryAcquire()
	go func() {
		time.Sleep(60 * time.Millisecond)
		gate.Release()
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := gate.WaitForDrain(ctx); err != nil {
		t.Errorf("WaitForDrain = %v, want nil", err)
	}
}

func TestRunGate_WaitForDrainTimeout(t *testing.T) {
	gate := NewRunGate(1)
	gate.TryAcquire()
	defer gate.Release()

	ctx, cancel := context.WithTimeout(context.Background(), 80*time.Millisecond)
	defer cancel()

	if err := gate.WaitForDrain(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("WaitForDrain = %v, want DeadlineExceeded", err)
	}
}
