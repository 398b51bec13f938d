package jobs

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"
)

type fakeRegen struct {
	calls atomic.Int64
	err   error
}

func (f *fakeRegen) Sweep(_ context.Context) (int, error) {
	f.calls.Add(1)
	return 2, f.err
}

type fakeAlerts struct {
	calls atomic.Int64
	err   error
}

func (f *fakeAlerts) SweepNoSignal(_ context.Context) error {
	f.calls.Add(1)
	return f.err
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestRunnerRunsBothSweeps(t *testing.T) {
	regen := &fakeRegen{}
	alerts := &fakeAlerts{}
	r := NewRunner(regen, alerts, 10*time.Millisecond, 10*time.Millisecond, time.Second, quietLogger())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		r.Run(ctx)
		close(done)
	}()

	time.Sleep(60 * time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("runner did not stop")
	}

	if regen.calls.Load() == 0 {
		t.Fatalf("expected regeneration sweeps")
	}
	if alerts.calls.Load() == 0 {
		t.Fatalf("expected alert sweeps")
	}
}

func TestRunnerSurvivesSweepErrors(t *testing.T) {
	regen := &fakeRegen{err: errors.New("db down")}
	alerts := &fakeAlerts{err: errors.New("db down")}
	r := NewRunner(regen, alerts, 5*time.Millisecond, 5*time.Millisecond, time.Second, quietLogger())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		r.Run(ctx)
		close(done)
	}()

	time.Sleep(40 * time.Millisecond)
	cancel()
	<-done

	// errors are logged, never fatal: sweeps keep firing
	if regen.calls.Load() < 2 || alerts.calls.Load() < 2 {
		t.Fatalf("expected repeated sweeps despite errors")
	}
}

func TestRunnerDefaults(t *testing.T) {
	r := NewRunner(&fakeRegen{}, &fakeAlerts{}, 0, 0, 0, nil)
	if r.regenInterval == 0 || r.alertInterval == 0 || r.sweepTimeout == 0 {
		t.Fatalf("expected interval defaults")
	}
	if r.logger == nil {
		t.Fatalf("expected default logger")
	}
}
