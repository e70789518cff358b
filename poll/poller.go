// Package poll maintains the freshest known chat record for a target chat id
// (pull mode).
//
// The poller fetches eagerly when a target is selected and on a fixed cadence
// thereafter. Cadence, not job status, is the state machine here:
//
//	Idle      no target, no timer, snapshot cleared
//	Settling  target just set, eager fetch in flight
//	Active    ticker running, each tick fetches
//	Quiesced  target set, snapshot terminal, no ticker
//
// Quiesced is not forever: a followup against the same chat moves the job
// back to queued/processing, and the next observation (tick, Refetch, or an
// external notifier) must re-arm the ticker. Stopping permanently on a
// terminal status is the bug this package exists to avoid.
package poll

import (
	"context"
	"sync"
	"time"

	"github.com/justapithecus/teller/log"
	"github.com/justapithecus/teller/metrics"
	"github.com/justapithecus/teller/types"
)

// DefaultInterval is the tick period used when Config.Interval is unset.
// The exact value is a tunable, not a correctness parameter.
const DefaultInterval = 3 * time.Second

// Fetcher fetches the current chat record for an id.
// client.Client implements this; tests substitute stubs.
type Fetcher interface {
	FetchChat(ctx context.Context, id string) (*types.ChatRecord, error)
}

// Config configures a Poller.
type Config struct {
	// Interval is the tick period (default DefaultInterval).
	Interval time.Duration
	// Logger is an optional logger for cadence transitions.
	Logger *log.Logger
	// Collector is an optional session metrics collector.
	Collector *metrics.Collector
	// OnUpdate is invoked with every snapshot replacement.
	OnUpdate func(*types.ChatRecord)
	// OnError is invoked with every fetch failure.
	OnError func(error)
}

// Poller tracks one chat job. Designed for a single owning caller; snapshots
// are safe to read from anywhere.
//
// Lock discipline:
//   - mu guards target/cadence/snapshot state.
//   - fetchMu serializes fetches: ticks TryLock and drop when a fetch is
//     still in flight, Refetch waits. Serialization means a completed fetch
//     is always the most recent one; the generation counter additionally
//     discards completions from a superseded target.
//   - Acquisition order is fetchMu then mu, never the reverse.
type Poller struct {
	fetcher   Fetcher
	interval  time.Duration
	logger    *log.Logger
	collector *metrics.Collector
	onUpdate  func(*types.ChatRecord)
	onError   func(error)

	fetchMu sync.Mutex

	mu         sync.Mutex
	target     string
	gen        uint64
	snapshot   *types.ChatRecord
	lastErr    error
	lastStatus types.Status
	stopTick   chan struct{}
	closed     bool
}

// New creates a poller in the Idle state.
func New(fetcher Fetcher, cfg Config) *Poller {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.Nop()
	}
	return &Poller{
		fetcher:   fetcher,
		interval:  cfg.Interval,
		logger:    logger,
		collector: cfg.Collector,
		onUpdate:  cfg.OnUpdate,
		onError:   cfg.OnError,
	}
}

// SetTarget selects the chat to track. An empty id returns to Idle. Changing
// ids cancels the previous cadence, resets status memory, clears the
// snapshot, and restarts at Settling with an eager fetch. Setting the
// current id again is a no-op.
func (p *Poller) SetTarget(id string) {
	p.mu.Lock()
	if p.closed || id == p.target {
		p.mu.Unlock()
		return
	}

	// Exit the old target: cancel its timer before anything else runs for
	// the new one, and invalidate completions of its in-flight fetch.
	p.stopTimerLocked()
	p.gen++
	p.target = id
	p.snapshot = nil
	p.lastErr = nil
	p.lastStatus = ""

	if id == "" {
		p.mu.Unlock()
		return
	}

	// Optimistic activation: no snapshot exists yet, so arm the ticker now
	// rather than waiting for the settling fetch to succeed.
	p.startTimerLocked()
	gen := p.gen
	p.mu.Unlock()

	p.logger.Info("poll target set", map[string]any{"chat_id": id})

	// Eager settling fetch; the first tick is a full interval away.
	go func() {
		p.fetchMu.Lock()
		defer p.fetchMu.Unlock()
		p.fetchLocked(context.Background(), gen)
	}()
}

// Snapshot returns the record from the most recently completed fetch, or nil.
func (p *Poller) Snapshot() *types.ChatRecord {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.snapshot
}

// Err returns the most recent fetch failure, or nil. Cleared by the next
// successful fetch and by target changes.
func (p *Poller) Err() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastErr
}

// Refetch issues exactly one fetch for the current target and applies the
// cadence rules to its outcome. Waits for any in-flight fetch to finish
// first. This is the entry point for external triggers (a followup was just
// sent, a notifier fired). Returns the fetch error, or nil when there is no
// target.
func (p *Poller) Refetch(ctx context.Context) error {
	p.mu.Lock()
	gen := p.gen
	p.mu.Unlock()

	p.fetchMu.Lock()
	defer p.fetchMu.Unlock()
	return p.fetchLocked(ctx, gen)
}

// Close tears the poller down: timer canceled unconditionally, target
// cleared, any in-flight fetch completion discarded. Idempotent.
func (p *Poller) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	p.closed = true
	p.gen++
	p.target = ""
	p.snapshot = nil
	p.stopTimerLocked()
}

// fetchLocked performs one fetch and applies the outcome. Caller must hold
// fetchMu. Outcomes for a generation other than the current one are
// discarded: the target changed (or the poller closed) while the fetch was
// in flight, and stale data must not overwrite the new target's state.
func (p *Poller) fetchLocked(ctx context.Context, gen uint64) error {
	p.mu.Lock()
	if p.closed || gen != p.gen || p.target == "" {
		p.mu.Unlock()
		return nil
	}
	target := p.target
	p.mu.Unlock()

	p.collector.IncFetchesIssued()
	rec, err := p.fetcher.FetchChat(ctx, target)

	p.mu.Lock()
	if p.closed || gen != p.gen {
		p.mu.Unlock()
		p.collector.IncStaleDiscarded()
		return nil
	}

	if err != nil {
		// Transient by assumption: surface the error but leave the cadence
		// untouched so the next tick retries.
		p.lastErr = err
		p.collector.IncFetchFailures()
		onError := p.onError
		p.mu.Unlock()

		p.logger.Warn("chat fetch failed", map[string]any{
			"chat_id": target,
			"error":   err.Error(),
		})
		if onError != nil {
			onError(err)
		}
		return err
	}

	prev := p.lastStatus
	p.snapshot = rec
	p.lastErr = nil
	p.lastStatus = rec.Status

	if rec.Status.IsTerminal() {
		// Active -> Quiesced. Followups reactivate via the branch below.
		p.stopTimerLocked()
	} else {
		// Settling confirmation, or Quiesced -> Active hysteresis when the
		// previously observed status was terminal. startTimerLocked is a
		// no-op while a ticker is already live.
		p.startTimerLocked()
	}
	onUpdate := p.onUpdate
	p.mu.Unlock()

	if prev.IsTerminal() && rec.Status.IsActive() {
		p.logger.Info("chat reactivated, cadence resumed", map[string]any{
			"chat_id": target,
			"from":    string(prev),
			"to":      string(rec.Status),
		})
	}
	if onUpdate != nil {
		onUpdate(rec)
	}
	return nil
}

// startTimerLocked arms the cadence ticker. Caller must hold mu. No-op when
// a ticker is already running, so no path produces two live timers.
func (p *Poller) startTimerLocked() {
	if p.stopTick != nil {
		return
	}
	stop := make(chan struct{})
	p.stopTick = stop
	p.collector.IncTimerStarts()
	go p.tickLoop(stop, p.gen)
}

// stopTimerLocked cancels the cadence ticker if present. Caller must hold mu.
func (p *Poller) stopTimerLocked() {
	if p.stopTick == nil {
		return
	}
	close(p.stopTick)
	p.stopTick = nil
	p.collector.IncTimerStops()
}

// tickLoop runs the cadence ticker until its stop channel closes. The ticker
// is scoped to this goroutine; stopping the cadence always reaches the
// deferred Stop.
func (p *Poller) tickLoop(stop <-chan struct{}, gen uint64) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			p.tick(gen)
		}
	}
}

// tick issues a cadence fetch unless one is already in flight, in which case
// the tick is dropped. A dropped tick is safe: the in-flight fetch's
// completion carries fresher data than the dropped one would have.
func (p *Poller) tick(gen uint64) {
	if !p.fetchMu.TryLock() {
		p.collector.IncTicksDropped()
		return
	}
	defer p.fetchMu.Unlock()
	p.fetchLocked(context.Background(), gen)
}
