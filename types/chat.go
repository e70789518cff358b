package types

import (
	"fmt"
	"time"
)

// Status is the lifecycle status of a chat job.
type Status string

// Chat job status constants.
const (
	StatusQueued     Status = "queued"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
	StatusTimeout    Status = "timeout"
)

// IsTerminal returns true if no further progress happens without new input.
// Timeout is terminal in the same sense as completed: a followup against the
// same chat may still move it back to queued.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusTimeout
}

// IsActive returns true if the backend is still working on the chat.
func (s Status) IsActive() bool {
	return s == StatusQueued || s == StatusProcessing
}

// Strategy is the portfolio construction strategy requested for a chat.
type Strategy string

// Strategy constants.
const (
	StrategyPassive      Strategy = "Passive"
	StrategyConservative Strategy = "Conservative"
	StrategyAggressive   Strategy = "Aggressive"
)

// Valid returns true if s is a known strategy.
func (s Strategy) Valid() bool {
	switch s {
	case StrategyPassive, StrategyConservative, StrategyAggressive:
		return true
	}
	return false
}

// ChatMessage is one message in a chat job's history as stored by the backend.
type ChatMessage struct {
	// Type is "user" or "agent".
	Type string `json:"type"`
	// Message is the message text.
	Message string `json:"message"`
	// Reasonings are intermediate reasoning steps recorded by the agent.
	Reasonings []string `json:"reasonings,omitempty"`
	// Timestamp is when the message was recorded.
	Timestamp time.Time `json:"timestamp"`
}

// PortfolioPosition is a single position in a constructed portfolio.
type PortfolioPosition struct {
	Asset        string  `json:"asset"`
	Quantity     float64 `json:"quantity"`
	PositionType string  `json:"position_type"`
	EntryPrice   float64 `json:"entry_price"`
	Leverage     float64 `json:"leverage"`
}

// ChatRecord is the mutable chat job resource returned by the backend.
// The poller refetches this shape; Status drives its cadence.
type ChatRecord struct {
	ID           string              `json:"id"`
	Status       Status              `json:"status"`
	Strategy     Strategy            `json:"strategy"`
	TargetAPY    float64             `json:"target_apy"`
	MaxDrawdown  float64             `json:"max_drawdown"`
	Messages     []ChatMessage       `json:"messages"`
	Portfolio    []PortfolioPosition `json:"portfolio,omitempty"`
	ErrorMessage *string             `json:"error_message,omitempty"`
	CreatedAt    time.Time           `json:"created_at"`
	UpdatedAt    time.Time           `json:"updated_at"`
}

// Prompt length bounds enforced by the backend; validated client-side so a
// bad request never ties up a job slot.
const (
	MinPromptLen = 1
	MaxPromptLen = 5000
)

// ChatCreateRequest is the payload for creating a new chat job.
type ChatCreateRequest struct {
	UserPrompt  string   `json:"user_prompt"`
	Strategy    Strategy `json:"strategy"`
	TargetAPY   float64  `json:"target_apy"`
	MaxDrawdown float64  `json:"max_drawdown"`
}

// Validate checks request bounds before the request leaves the client.
func (r *ChatCreateRequest) Validate() error {
	if len(r.UserPrompt) < MinPromptLen || len(r.UserPrompt) > MaxPromptLen {
		return fmt.Errorf("user_prompt length %d outside [%d, %d]", len(r.UserPrompt), MinPromptLen, MaxPromptLen)
	}
	if !r.Strategy.Valid() {
		return fmt.Errorf("unknown strategy %q", r.Strategy)
	}
	if r.TargetAPY < 0 || r.TargetAPY > 200 {
		return fmt.Errorf("target_apy %v outside [0, 200]", r.TargetAPY)
	}
	if r.MaxDrawdown < 0 || r.MaxDrawdown > 100 {
		return fmt.Errorf("max_drawdown %v outside [0, 100]", r.MaxDrawdown)
	}
	return nil
}

// FollowupRequest is the payload for continuing an existing chat job.
type FollowupRequest struct {
	Prompt string `json:"prompt"`
}

// Validate checks request bounds before the request leaves the client.
func (r *FollowupRequest) Validate() error {
	if len(r.Prompt) < MinPromptLen || len(r.Prompt) > MaxPromptLen {
		return fmt.Errorf("prompt length %d outside [%d, %d]", len(r.Prompt), MinPromptLen, MaxPromptLen)
	}
	return nil
}
