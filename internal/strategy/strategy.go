// Package strategy defines the Strategy interface and the Runner that
// drives its tick loop. Translated from original base_strategy.py's
// asyncio task model (start/stop/_run/on_start/on_stop/tick/
// update_performance) into Go goroutine + context.Context idioms, the way
// the teacher structures cancellable background loops
// (internal/scheduler, internal/application/scheduler).
package strategy

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/sawpanic/tradebot/internal/venueerrors"
)

// ParamInfo documents one strategy parameter for discovery by callers
// (e.g. the HTTP control plane listing available strategies).
type ParamInfo struct {
	Name        string
	Type        string // "float", "int", "string", "bool"
	Required    bool
	Default     any
	Description string
}

// Descriptor is the strategy's static metadata, independent of any running
// instance.
type Descriptor struct {
	ID          string
	Name        string
	Description string
	Parameters  []ParamInfo
	Venues      []string // venue ids required by this strategy, if fixed
}

// Performance is the running tally of a strategy instance's trading
// outcomes, mirroring the original's self.performance dict.
type Performance struct {
	Trades      int
	WinCount    int
	ProfitLoss  float64
	WinRate     float64
	MaxDrawdown float64
}

// Update folds one more closed trade into the performance tally.
func (p *Performance) Update(tradeProfit float64, isWin bool) {
	p.Trades++
	p.ProfitLoss += tradeProfit
	if isWin {
		p.WinCount++
	}
	if p.Trades > 0 {
		p.WinRate = float64(p.WinCount) / float64(p.Trades) * 100
	}
	drawdown := p.ProfitLoss
	if drawdown > 0 {
		drawdown = 0
	}
	if drawdown < p.MaxDrawdown {
		p.MaxDrawdown = drawdown
	}
}

// Strategy is one tradable behavior driven by a Runner. OnStart runs once
// per Start; OnStop runs once when the loop that follows exits, and is not
// called when OnStart itself fails. Tick runs repeatedly until the context
// is canceled or Stop is called.
type Strategy interface {
	Descriptor() Descriptor
	OnStart(ctx context.Context) error
	OnStop(ctx context.Context) error
	Tick(ctx context.Context) error
	TickInterval() time.Duration
}

// errorRetryDelay is how long the loop pauses after a tick error before
// retrying, matching the original's asyncio.sleep(5) backoff.
const errorRetryDelay = 5 * time.Second

// Runner drives one Strategy's lifecycle: idempotent Start/Stop, a
// canceled-context tick loop, and performance accounting.
type Runner struct {
	strategy   Strategy
	strategyID string
	log        zerolog.Logger

	running atomic.Bool
	cancel  context.CancelFunc
	done    chan struct{}

	mu          sync.Mutex
	startTime   time.Time
	lastTick    time.Time
	performance Performance
	fatalErr    error
}

// NewRunner builds a Runner around strategy, not yet started.
func NewRunner(strategy Strategy, log zerolog.Logger) *Runner {
	desc := strategy.Descriptor()
	return &Runner{
		strategy:   strategy,
		strategyID: desc.ID,
		log:        log.With().Str("component", "strategy_runner").Str("strategy_id", desc.ID).Logger(),
	}
}

// FatalError returns the error that stopped the loop outside of Tick (i.e.
// inside OnStart), if any. Cleared on the next successful Start.
func (r *Runner) FatalError() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.fatalErr
}

// Start begins the tick loop in a background goroutine. The loop runs on
// a context the Runner owns for its entire lifetime, canceled only by
// Stop — it must never be derived from a caller's context (an HTTP
// request context dies the instant ServeHTTP returns, which would kill
// a strategy started via the control plane within milliseconds). Calling
// Start while already running is a no-op, matching the original's
// "already running" guard.
func (r *Runner) Start() {
	if !r.running.CompareAndSwap(false, true) {
		r.log.Warn().Msg("strategy is already running")
		return
	}

	runCtx, cancel := context.WithCancel(context.Background())
	r.cancel = cancel
	r.done = make(chan struct{})

	r.mu.Lock()
	r.startTime = time.Now()
	r.lastTick = r.startTime
	r.fatalErr = nil
	r.mu.Unlock()

	go r.run(runCtx)
	r.log.Info().Msg("strategy started")
}

// Stop cancels the tick loop and blocks until OnStop has returned. Calling
// Stop while not running is a no-op.
func (r *Runner) Stop() {
	if !r.running.CompareAndSwap(true, false) {
		r.log.Warn().Msg("strategy is not running")
		return
	}
	r.cancel()
	<-r.done
	r.log.Info().Msg("strategy stopped")
}

// IsRunning reports whether the tick loop is active.
func (r *Runner) IsRunning() bool { return r.running.Load() }

// Performance returns a snapshot of the accumulated performance tally.
func (r *Runner) Performance() Performance {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.performance
}

// RecordTrade folds a closed trade's outcome into the performance tally.
func (r *Runner) RecordTrade(profit float64, isWin bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.performance.Update(profit, isWin)
}

// LastTick returns the time of the most recently completed tick.
func (r *Runner) LastTick() time.Time {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lastTick
}

func (r *Runner) run(ctx context.Context) {
	defer close(r.done)

	if err := r.strategy.OnStart(ctx); err != nil {
		fatal := venueerrors.FatalLoop(r.strategyID, err)
		r.log.Error().Err(fatal).Msg("fatal error starting strategy")
		r.mu.Lock()
		r.fatalErr = fatal
		r.mu.Unlock()
		r.running.Store(false)
		return
	}

	interval := r.strategy.TickInterval()
	if interval <= 0 {
		interval = time.Minute
	}

	for {
		select {
		case <-ctx.Done():
			r.running.Store(false)
			r.stopStrategy(context.Background())
			return
		default:
		}

		if err := r.strategy.Tick(ctx); err != nil {
			r.log.Error().Err(err).Msg("error in strategy tick")
			if !r.sleep(ctx, errorRetryDelay) {
				r.running.Store(false)
				r.stopStrategy(context.Background())
				return
			}
			continue
		}

		r.mu.Lock()
		r.lastTick = time.Now()
		r.mu.Unlock()

		if !r.sleep(ctx, interval) {
			r.running.Store(false)
			r.stopStrategy(context.Background())
			return
		}
	}
}

// sleep waits for d or ctx cancellation, returning false if canceled.
func (r *Runner) sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

func (r *Runner) stopStrategy(ctx context.Context) {
	if err := r.strategy.OnStop(ctx); err != nil {
		r.log.Error().Err(err).Msg("error stopping strategy")
	}
}

// ConstructionError wraps an invalid-parameter failure at strategy
// construction, for factories to return via venueerrors.
func ConstructionError(strategyID string, format string, args ...any) error {
	return venueerrors.StrategyConstruction(strategyID, fmt.Errorf(format, args...))
}
