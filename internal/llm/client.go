// Package llm provides LLM provider clients for the reverser and checker
// agents. All providers keep conversation history client-side.
package llm

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// Message is a single message in a conversation.
type Message struct {
	Role    string `json:"role"` // system, user, assistant
	Content string `json:"content"`
}

// Client is the interface all LLM providers satisfy.
type Client interface {
	// Complete sends a bare prompt and returns the response text.
	Complete(ctx context.Context, prompt string) (string, error)

	// CompleteWithSystem sends a prompt with a system message.
	CompleteWithSystem(ctx context.Context, systemPrompt, userPrompt string) (string, error)

	// Send sends an explicit message list. A leading system message is
	// treated as the system prompt.
	Send(ctx context.Context, messages []Message) (string, error)

	// NewConversation starts a conversation with the given system prompt
	// and returns its ID.
	NewConversation(system string) string

	// Resume appends a user message to a conversation and returns the
	// assistant's response, recording it in the history.
	Resume(ctx context.Context, conversationID, message string) (string, error)
}

// conversations holds client-side multi-turn history shared by providers.
type conversations struct {
	mu       sync.Mutex
	sessions map[string][]Message
}

func newConversations() *conversations {
	return &conversations{sessions: make(map[string][]Message)}
}

func (c *conversations) start(system string) string {
	id := uuid.NewString()
	c.mu.Lock()
	c.sessions[id] = []Message{{Role: "system", Content: system}}
	c.mu.Unlock()
	return id
}

// snapshotWith returns a copy of the history with the user message
// appended, or an error for an unknown conversation ID.
func (c *conversations) snapshotWith(id, userMessage string) ([]Message, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	history, ok := c.sessions[id]
	if !ok {
		return nil, fmt.Errorf("unknown conversation ID: %s", id)
	}
	history = append(history, Message{Role: "user", Content: userMessage})
	c.sessions[id] = history
	return append([]Message(nil), history...), nil
}

func (c *conversations) recordAssistant(id, response string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if history, ok := c.sessions[id]; ok {
		c.sessions[id] = append(history, Message{Role: "assistant", Content: response})
	}
}
