// Package memory keeps per-session conversation history for follow-up
// questions, so "what is the punishment for that?" resolves against the
// previous exchange.
package memory

import (
	"strings"
	"sync"
	"time"
)

// Message roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one turn of a conversation.
type Message struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

type conversation struct {
	messages  []Message
	updatedAt time.Time
}

// Store holds conversation history in memory, bounded per session and
// expired by inactivity. History is an ephemeral prompt aid; the durable
// record lives in the chat log.
type Store struct {
	mu            sync.RWMutex
	conversations map[string]*conversation
	maxMessages   int
	ttl           time.Duration
	stop          chan struct{}
	stopOnce      sync.Once
}

// NewStore creates a store keeping at most maxMessages per session and
// dropping sessions idle longer than ttl.
func NewStore(maxMessages int, ttl time.Duration) *Store {
	s := &Store{
		conversations: make(map[string]*conversation),
		maxMessages:   maxMessages,
		ttl:           ttl,
		stop:          make(chan struct{}),
	}
	go s.expireLoop()
	return s
}

// DefaultStore keeps 20 messages (10 turns) per session with a one hour
// inactivity expiry.
func DefaultStore() *Store {
	return NewStore(20, time.Hour)
}

// AddUserMessage records a user turn.
func (s *Store) AddUserMessage(sessionID, content string) {
	s.add(sessionID, RoleUser, content)
}

// AddAssistantMessage records an assistant turn.
func (s *Store) AddAssistantMessage(sessionID, content string) {
	s.add(sessionID, RoleAssistant, content)
}

func (s *Store) add(sessionID, role, content string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	conv := s.conversations[sessionID]
	if conv == nil {
		conv = &conversation{}
		s.conversations[sessionID] = conv
	}

	conv.messages = append(conv.messages, Message{
		Role:      role,
		Content:   content,
		Timestamp: time.Now(),
	})
	conv.updatedAt = time.Now()

	if len(conv.messages) > s.maxMessages {
		conv.messages = conv.messages[len(conv.messages)-s.maxMessages:]
	}
}

// History returns a copy of the session's messages, nil for an unknown
// session.
func (s *Store) History(sessionID string) []Message {
	s.mu.RLock()
	defer s.mu.RUnlock()

	conv := s.conversations[sessionID]
	if conv == nil {
		return nil
	}
	messages := make([]Message, len(conv.messages))
	copy(messages, conv.messages)
	return messages
}

// RecentHistory returns the last n messages of the session.
func (s *Store) RecentHistory(sessionID string, n int) []Message {
	history := s.History(sessionID)
	if len(history) <= n {
		return history
	}
	return history[len(history)-n:]
}

// ClearSession drops a session's history.
func (s *Store) ClearSession(sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.conversations, sessionID)
}

// Close stops the expiry loop.
func (s *Store) Close() {
	s.stopOnce.Do(func() { close(s.stop) })
}

func (s *Store) expireLoop() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			s.expire()
		}
	}
}

func (s *Store) expire() {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	for id, conv := range s.conversations {
		if now.Sub(conv.updatedAt) > s.ttl {
			delete(s.conversations, id)
		}
	}
}

// FormatForPrompt renders history as alternating "User:"/"Assistant:"
// lines for inclusion in a prompt.
func FormatForPrompt(messages []Message) string {
	if len(messages) == 0 {
		return ""
	}
	var sb strings.Builder
	for _, msg := range messages {
		switch msg.Role {
		case RoleUser:
			sb.WriteString("User: ")
		case RoleAssistant:
			sb.WriteString("Assistant: ")
		default:
			continue
		}
		sb.WriteString(msg.Content)
		sb.WriteByte('\n')
	}
	return sb.String()
}
