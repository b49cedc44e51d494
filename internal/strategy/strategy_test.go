package strategy

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStrategy struct {
	ticks       atomic.Int32
	onStartErr  error
	tickErr     func(n int32) error
	interval    time.Duration
	startedCh   chan struct{}
	stoppedCh   chan struct{}
}

func newFakeStrategy() *fakeStrategy {
	return &fakeStrategy{interval: 5 * time.Millisecond, startedCh: make(chan struct{}, 1), stoppedCh: make(chan struct{}, 1)}
}

func (f *fakeStrategy) Descriptor() Descriptor { return Descriptor{ID: "fake", Name: "Fake"} }
func (f *fakeStrategy) TickInterval() time.Duration { return f.interval }

func (f *fakeStrategy) OnStart(ctx context.Context) error {
	f.startedCh <- struct{}{}
	return f.onStartErr
}

func (f *fakeStrategy) OnStop(ctx context.Context) error {
	f.stoppedCh <- struct{}{}
	return nil
}

func (f *fakeStrategy) Tick(ctx context.Context) error {
	n := f.ticks.Add(1)
	if f.tickErr != nil {
		return f.tickErr(n)
	}
	return nil
}

func TestRunner_StartStop_CallsOnStartOnStopExactlyOnce(t *testing.T) {
	fs := newFakeStrategy()
	r := NewRunner(fs, zerolog.Nop())

	r.Start()
	select {
	case <-fs.startedCh:
	case <-time.After(time.Second):
		t.Fatal("OnStart was not called")
	}

	require.Eventually(t, func() bool { return fs.ticks.Load() > 0 }, time.Second, time.Millisecond)

	r.Stop()
	select {
	case <-fs.stoppedCh:
	case <-time.After(time.Second):
		t.Fatal("OnStop was not called")
	}

	assert.False(t, r.IsRunning())
}

func TestRunner_StartIsIdempotent(t *testing.T) {
	fs := newFakeStrategy()
	r := NewRunner(fs, zerolog.Nop())

	r.Start()
	<-fs.startedCh
	r.Start() // second call is a no-op, must not block trying to send OnStart again

	select {
	case <-fs.startedCh:
		t.Fatal("OnStart should not be called twice")
	case <-time.After(50 * time.Millisecond):
	}

	r.Stop()
	<-fs.stoppedCh
}

func TestRunner_StopIsIdempotent(t *testing.T) {
	fs := newFakeStrategy()
	r := NewRunner(fs, zerolog.Nop())

	r.Start()
	<-fs.startedCh
	r.Stop()
	<-fs.stoppedCh

	r.Stop() // should not block or panic
	assert.False(t, r.IsRunning())
}

func TestRunner_TickErrorRetriesAfterDelay(t *testing.T) {
	fs := newFakeStrategy()
	fs.interval = time.Millisecond
	failOnce := atomic.Bool{}
	fs.tickErr = func(n int32) error {
		if n == 1 && failOnce.CompareAndSwap(false, true) {
			return errors.New("boom")
		}
		return nil
	}

	r := NewRunner(fs, zerolog.Nop())
	r.Start()
	<-fs.startedCh

	require.Eventually(t, func() bool { return fs.ticks.Load() >= 2 }, 2*time.Second, time.Millisecond)
	r.Stop()
	<-fs.stoppedCh
}

func TestRunner_OnStartFailureClearsRunningAndRecordsFatalError(t *testing.T) {
	fs := newFakeStrategy()
	fs.onStartErr = errors.New("credentials rejected")
	r := NewRunner(fs, zerolog.Nop())

	r.Start()
	<-fs.startedCh

	require.Eventually(t, func() bool { return !r.IsRunning() }, time.Second, time.Millisecond)
	require.Error(t, r.FatalError())
	assert.Contains(t, r.FatalError().Error(), "credentials rejected")
}

func TestPerformance_Update(t *testing.T) {
	var p Performance
	p.Update(10, true)
	p.Update(-5, false)

	assert.Equal(t, 2, p.Trades)
	assert.Equal(t, 1, p.WinCount)
	assert.Equal(t, 5.0, p.ProfitLoss)
	assert.Equal(t, 50.0, p.WinRate)
	assert.Equal(t, 0.0, p.MaxDrawdown) // cumulative profit_loss never dipped below zero

	p.Update(-20, false)
	assert.InDelta(t, -15.0, p.MaxDrawdown, 0.0001)
}
