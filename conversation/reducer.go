package conversation

import (
	"time"

	"github.com/google/uuid"

	"github.com/justapithecus/teller/types"
)

// Apply is the total state-transition function. It never panics and never
// mutates its input: each event yields a new State sharing unchanged
// messages with the prior one. Unknown events and no-op conditions return
// the input unchanged.
func Apply(s State, event Event) State {
	switch ev := event.(type) {
	case UserSent:
		return appendMessage(s, Message{
			ID:        uuid.NewString(),
			Role:      RoleUser,
			Chunks:    []types.Chunk{{Type: types.ChunkTypeText, Content: ev.Content}},
			CreatedAt: time.Now(),
		})

	case AssistantStarted:
		next := appendMessage(s, Message{
			ID:        ev.MessageID,
			Role:      RoleAssistant,
			CreatedAt: time.Now(),
			Streaming: true,
		})
		next.Loading = true
		next.StreamingID = ev.MessageID
		return next

	case ChunkAppended:
		idx := indexOf(s.Messages, ev.MessageID)
		if idx < 0 {
			return s
		}
		msgs := cloneMessages(s.Messages)
		target := &msgs[idx]
		// Copy-on-append: the prior state may share the backing array.
		chunks := make([]types.Chunk, len(target.Chunks), len(target.Chunks)+1)
		copy(chunks, target.Chunks)
		target.Chunks = append(chunks, ev.Chunk)
		s.Messages = msgs
		return s

	case StreamingFinished:
		// Clearing is unconditional, not only on an id match: finishing is
		// idempotent, the last finish wins, and no message may stay marked
		// streaming once the streaming id is gone.
		if anyStreaming(s.Messages) {
			msgs := cloneMessages(s.Messages)
			for i := range msgs {
				msgs[i].Streaming = false
			}
			s.Messages = msgs
		}
		s.Loading = false
		s.StreamingID = ""
		return s

	case ErrorRaised:
		s.Err = ev.Message
		s.Loading = false
		s.StreamingID = ""
		return s

	case ErrorCleared:
		s.Err = ""
		return s

	default:
		return s
	}
}

func appendMessage(s State, m Message) State {
	msgs := make([]Message, len(s.Messages), len(s.Messages)+1)
	copy(msgs, s.Messages)
	s.Messages = append(msgs, m)
	return s
}

func anyStreaming(msgs []Message) bool {
	for i := range msgs {
		if msgs[i].Streaming {
			return true
		}
	}
	return false
}

func indexOf(msgs []Message, id string) int {
	for i := range msgs {
		if msgs[i].ID == id {
			return i
		}
	}
	return -1
}

func cloneMessages(msgs []Message) []Message {
	out := make([]Message, len(msgs))
	copy(out, msgs)
	return out
}
