package conversation

import "sync"

// Store owns a State and serializes event application. It is the dispatch
// entry point the UI and transports share: transports dispatch lifecycle
// events, the UI reads snapshots and optionally subscribes to changes.
//
// The state itself stays immutable; the store only swaps the current value
// under its lock, so snapshots handed out earlier remain valid.
type Store struct {
	mu       sync.Mutex
	state    State
	onChange func(State)
}

// NewStore creates a store with an empty conversation.
func NewStore() *Store {
	return &Store{}
}

// Subscribe registers a single change callback, replacing any previous one.
// The callback runs on the dispatching goroutine, outside the store lock;
// it must not block for long.
func (st *Store) Subscribe(fn func(State)) {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.onChange = fn
}

// Dispatch applies the event and notifies the subscriber with the new state.
func (st *Store) Dispatch(event Event) State {
	st.mu.Lock()
	st.state = Apply(st.state, event)
	next := st.state
	fn := st.onChange
	st.mu.Unlock()

	if fn != nil {
		fn(next)
	}
	return next
}

// State returns the current conversation snapshot.
func (st *Store) State() State {
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.state
}
