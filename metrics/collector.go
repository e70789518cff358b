// Package metrics provides per-session metrics collection.
//
// The Collector accumulates counters during a single chat session. It is a
// leaf package with no internal dependencies; the decoder and poller record
// into it live, and the stats surface reads an atomic snapshot.
package metrics

import "sync"

// Snapshot is an immutable point-in-time view of session metrics.
// Returned by Collector.Snapshot(). Safe to read concurrently after creation.
type Snapshot struct {
	// Push mode (stream decoder)
	ChunksDecoded int64
	DecodeErrors  int64
	StreamsOpened int64
	StreamErrors  int64

	// Pull mode (poller)
	FetchesIssued  int64
	FetchFailures  int64
	TicksDropped   int64
	TimerStarts    int64
	TimerStops     int64
	StaleDiscarded int64

	// Dimensions (informational, set at construction)
	ChatID string
}

// Collector accumulates metrics during a single session.
// Thread-safe via sync.Mutex. All increment methods are nil-receiver safe so
// components can treat the collector as optional.
type Collector struct {
	mu sync.Mutex

	chunksDecoded int64
	decodeErrors  int64
	streamsOpened int64
	streamErrors  int64

	fetchesIssued  int64
	fetchFailures  int64
	ticksDropped   int64
	timerStarts    int64
	timerStops     int64
	staleDiscarded int64

	chatID string
}

// NewCollector creates a Collector labelled with the chat id it observes.
// An empty id is allowed for sessions that have not created a chat yet.
func NewCollector(chatID string) *Collector {
	return &Collector{chatID: chatID}
}

// IncChunksDecoded records one well-formed stream record.
func (c *Collector) IncChunksDecoded() { c.inc(func() { c.chunksDecoded++ }) }

// IncDecodeErrors records one malformed stream record that was skipped.
func (c *Collector) IncDecodeErrors() { c.inc(func() { c.decodeErrors++ }) }

// IncStreamsOpened records one successfully opened push-mode stream.
func (c *Collector) IncStreamsOpened() { c.inc(func() { c.streamsOpened++ }) }

// IncStreamErrors records one stream session terminated by transport failure.
func (c *Collector) IncStreamErrors() { c.inc(func() { c.streamErrors++ }) }

// IncFetchesIssued records one fetch of the chat resource.
func (c *Collector) IncFetchesIssued() { c.inc(func() { c.fetchesIssued++ }) }

// IncFetchFailures records one failed fetch (network or decode).
func (c *Collector) IncFetchFailures() { c.inc(func() { c.fetchFailures++ }) }

// IncTicksDropped records one tick skipped because a fetch was in flight.
func (c *Collector) IncTicksDropped() { c.inc(func() { c.ticksDropped++ }) }

// IncTimerStarts records one cadence timer activation.
func (c *Collector) IncTimerStarts() { c.inc(func() { c.timerStarts++ }) }

// IncTimerStops records one cadence timer cancellation.
func (c *Collector) IncTimerStops() { c.inc(func() { c.timerStops++ }) }

// IncStaleDiscarded records one fetch completion discarded because its
// target generation was superseded.
func (c *Collector) IncStaleDiscarded() { c.inc(func() { c.staleDiscarded++ }) }

func (c *Collector) inc(fn func()) {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	fn()
}

// Snapshot returns an atomic copy of all counters.
func (c *Collector) Snapshot() Snapshot {
	if c == nil {
		return Snapshot{}
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return Snapshot{
		ChunksDecoded:  c.chunksDecoded,
		DecodeErrors:   c.decodeErrors,
		StreamsOpened:  c.streamsOpened,
		StreamErrors:   c.streamErrors,
		FetchesIssued:  c.fetchesIssued,
		FetchFailures:  c.fetchFailures,
		TicksDropped:   c.ticksDropped,
		TimerStarts:    c.timerStarts,
		TimerStops:     c.timerStops,
		StaleDiscarded: c.staleDiscarded,
		ChatID:         c.chatID,
	}
}
