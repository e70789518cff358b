// Package conversation holds the renderable conversation state and the pure
// reducer that advances it. Both push-mode (stream decoder) and pull-mode
// (poller) transports feed the same event vocabulary, so the UI renders one
// consistent view regardless of transport.
package conversation

import (
	"time"

	"github.com/justapithecus/teller/types"
)

// Role identifies the author of a message.
type Role string

// Role constants.
const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one rendered conversation entry. The chunk sequence is owned by
// the message and mutated only through Apply.
type Message struct {
	ID        string
	Role      Role
	Chunks    []types.Chunk
	CreatedAt time.Time
	Streaming bool
}

// State is the renderable conversation. Values are treated as immutable:
// Apply returns a new State and never mutates its input.
//
// Invariant: if StreamingID is non-empty, exactly one message has that id
// and Streaming=true; every other message has Streaming=false.
type State struct {
	Messages []Message
	Loading  bool
	// Err is the user-visible error message; empty means no error.
	Err string
	// StreamingID is the id of the message currently receiving chunks;
	// empty means none.
	StreamingID string
}

// Event is the closed set of conversation transitions.
// Implementations are the *Sent/*Started/... structs in this package.
type Event interface {
	isEvent()
}

// UserSent appends a user message holding a single text chunk.
type UserSent struct {
	Content string
}

// AssistantStarted appends an empty assistant message with the given id and
// marks it as the streaming target. The transport layer guarantees no other
// message is streaming when it dispatches this.
type AssistantStarted struct {
	MessageID string
}

// ChunkAppended appends one chunk to the message with the given id.
// No-op if no message matches.
type ChunkAppended struct {
	MessageID string
	Chunk     types.Chunk
}

// StreamingFinished marks the matching message as settled and clears the
// streaming id unconditionally, so finishing is idempotent.
type StreamingFinished struct {
	MessageID string
}

// ErrorRaised surfaces a user-visible error and halts loading. Messages
// already rendered are left untouched.
type ErrorRaised struct {
	Message string
}

// ErrorCleared removes the user-visible error. Nothing else changes.
type ErrorCleared struct{}

func (UserSent) isEvent()          {}
func (AssistantStarted) isEvent()  {}
func (ChunkAppended) isEvent()     {}
func (StreamingFinished) isEvent() {}
func (ErrorRaised) isEvent()       {}
func (ErrorCleared) isEvent()      {}
