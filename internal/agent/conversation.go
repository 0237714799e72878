package agent

import (
	"context"
	"sync"
	"time"
)

// gateState is the approval gate's position for one conversation.
type gateState string

const (
	gateIdle             gateState = "idle"
	gateAwaitingApproval gateState = "awaiting_approval"
)

// Message is one turn of a conversation. Immutable once appended.
type Message struct {
	Role     string    `json:"role"`
	Text     string    `json:"text"`
	Proposed []Action  `json:"proposed_actions,omitempty"`
	At       time.Time `json:"at"`
}

// Action is a validated proposed action awaiting approval. Raw keeps the
// original untyped payload solely for the executor's re-validation.
type Action struct {
	ID      string         `json:"id"`
	Kind    ActionKind     `json:"kind"`
	Args    Arguments      `json:"-"`
	Raw     map[string]any `json:"arguments"`
	Preview string         `json:"preview"`
}

// Batch is the ordered set of actions proposed together in one assistant
// turn, approved or rejected as a unit. At most one batch is pending per
// conversation.
type Batch struct {
	ID        string    `json:"id"`
	Actions   []Action  `json:"actions"`
	CreatedAt time.Time `json:"created_at"`
}

// Conversation owns one session's message history and the gate state.
// The core never deletes conversations; retention is a UI concern. Stale
// pending batches, however, expire (see startPurge).
type Conversation struct {
	mu       sync.Mutex
	id       string
	messages []Message
	state    gateState
	pending  *Batch
}

func (c *Conversation) append(m Message) {
	m.At = time.Now()
	c.messages = append(c.messages, m)
}

// cancelPending discards the pending batch and appends a cancellation notice.
// Caller holds c.mu.
func (c *Conversation) cancelPending(notice string) {
	if c.pending == nil {
		return
	}
	c.pending = nil
	c.state = gateIdle
	c.append(Message{Role: RoleAssistant, Text: notice})
}

const pendingBatchTTL = 15 * time.Minute

// conversationStore is a thread-safe in-memory conversation registry.
type conversationStore struct {
	mu            sync.Mutex
	conversations map[string]*Conversation
}

func newConversationStore() *conversationStore {
	return &conversationStore{conversations: make(map[string]*Conversation)}
}

// getOrCreate returns the conversation, creating it on first interaction.
func (s *conversationStore) getOrCreate(id string) *Conversation {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.conversations[id]
	if !ok {
		c = &Conversation{id: id, state: gateIdle}
		s.conversations[id] = c
	}
	return c
}

func (s *conversationStore) get(id string) (*Conversation, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.conversations[id]
	return c, ok
}

// startPurge starts a background goroutine that cancels pending batches
// nobody resolved within the TTL. Conversations themselves are kept.
func (s *conversationStore) startPurge(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(5 * time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.mu.Lock()
				conversations := make([]*Conversation, 0, len(s.conversations))
				for _, c := range s.conversations {
					conversations = append(conversations, c)
				}
				s.mu.Unlock()

				for _, c := range conversations {
					c.mu.Lock()
					if c.pending != nil && time.Since(c.pending.CreatedAt) > pendingBatchTTL {
						c.cancelPending("The proposed actions expired without a decision and were discarded.")
					}
					c.mu.Unlock()
				}
			}
		}
	}()
}
