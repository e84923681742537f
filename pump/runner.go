package pump

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/squadracorsepolito/acmenet/internal"
)

var (
	ErrAlreadyStarted = errors.New("pump: runner already started")
	ErrNoPumps        = errors.New("pump: runner has no pumps")
)

// State is the lifecycle state of a [Runner].
type State int

const (
	// StateIdle means Run has not been called yet.
	StateIdle State = iota
	// StateActive means the runner is refreshing its pumps.
	StateActive
	// StateStopping means the runner has been deactivated
	// but the in-flight cycle has not completed yet.
	StateStopping
	// StateFinished means Run has returned.
	StateFinished
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateActive:
		return "active"
	case StateStopping:
		return "stopping"
	case StateFinished:
		return "finished"
	default:
		return "unknown"
	}
}

// Runner refreshes a fixed list of pumps, in order, on the goroutine calling Run
// until it is deactivated or the context passed to Run is cancelled.
type Runner struct {
	tel *internal.Telemetry
	cfg *RunnerConfig

	pumps []Refresher
	stats *internal.Stats

	mux         sync.Mutex
	state       State
	deactivated bool
	cancel      context.CancelFunc

	startedCh  chan struct{}
	finishedCh chan struct{}
}

// NewRunner returns a runner driving pumps. A nil cfg selects [NewDefaultRunnerConfig].
func NewRunner(name string, cfg *RunnerConfig, pumps ...Refresher) *Runner {
	if cfg == nil {
		cfg = NewDefaultRunnerConfig()
	}

	tel := internal.NewTelemetry("runner", name)

	return &Runner{
		tel: tel,
		cfg: cfg,

		pumps: pumps,
		stats: internal.NewStats(tel.Logger(), cfg.StatsInterval),

		state: StateIdle,

		startedCh:  make(chan struct{}),
		finishedCh: make(chan struct{}),
	}
}

func (r *Runner) Init(_ context.Context) error {
	if len(r.pumps) == 0 {
		return ErrNoPumps
	}

	r.tel.LogInfo("initialized", "pumps", len(r.pumps))

	return nil
}

// Run refreshes the pumps until the runner is deactivated or ctx is done.
// If the runner was deactivated before Run, Run returns right away.
// A runner can be run only once.
func (r *Runner) Run(ctx context.Context) error {
	r.mux.Lock()

	if r.state != StateIdle {
		r.mux.Unlock()
		return ErrAlreadyStarted
	}

	runCtx, cancel := context.WithCancel(ctx)
	r.cancel = cancel

	if r.deactivated {
		r.state = StateStopping
	} else {
		r.state = StateActive
	}

	close(r.startedCh)
	r.mux.Unlock()

	r.tel.LogInfo("running")

	defer func() {
		cancel()

		r.mux.Lock()
		r.state = StateFinished
		close(r.finishedCh)
		r.mux.Unlock()

		r.tel.LogInfo("stopped")
	}()

	if r.cfg.LogStats {
		go r.stats.RunStats(runCtx)
	}

	backoff := r.cfg.IdleBackoff
	for r.isActive() && runCtx.Err() == nil {
		dispatched := 0
		for _, p := range r.pumps {
			dispatched += p.Refresh(runCtx)
		}

		if dispatched > 0 {
			if r.cfg.LogStats {
				r.stats.AddItems(dispatched)
			}

			backoff = r.cfg.IdleBackoff
			continue
		}

		if backoff <= 0 {
			continue
		}

		r.idle(runCtx, backoff)

		backoff *= 2
		if r.cfg.MaxIdleBackoff > 0 && backoff > r.cfg.MaxIdleBackoff {
			backoff = r.cfg.MaxIdleBackoff
		}
	}

	return nil
}

func (r *Runner) idle(ctx context.Context, d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}

func (r *Runner) isActive() bool {
	r.mux.Lock()
	defer r.mux.Unlock()

	return r.state == StateActive
}

// State returns the current lifecycle state.
func (r *Runner) State() State {
	r.mux.Lock()
	defer r.mux.Unlock()

	return r.state
}

// WaitUntilStarted blocks until Run has been called or ctx is done.
func (r *Runner) WaitUntilStarted(ctx context.Context) error {
	select {
	case <-r.startedCh:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Deactivate stops the runner and waits until Run has returned or ctx is done.
// The context handed to the pumps is cancelled, so blocking sources give up
// their wait; a handler that never returns keeps Deactivate waiting.
//
// Deactivating a runner that has not started yet is allowed:
// Run will return as soon as it is called.
func (r *Runner) Deactivate(ctx context.Context) error {
	r.mux.Lock()

	r.deactivated = true
	if r.state == StateActive {
		r.state = StateStopping
	}

	if r.cancel != nil {
		r.cancel()
	}

	r.mux.Unlock()

	select {
	case <-r.finishedCh:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Done returns a channel closed when Run returns.
func (r *Runner) Done() <-chan struct{} {
	return r.finishedCh
}

// Stop deactivates the runner and waits for it to finish.
// A runner whose Run was never called is only marked as deactivated,
// so a later Run returns right away and Stop does not block.
func (r *Runner) Stop() {
	r.tel.LogInfo("stopping")

	r.mux.Lock()
	if r.state == StateIdle {
		r.deactivated = true
		r.mux.Unlock()
		return
	}
	r.mux.Unlock()

	if err := r.Deactivate(context.Background()); err != nil {
		r.tel.LogError("failed to deactivate", err)
	}
}
