package memory

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Exchange is one completed (user, assistant) turn. It is never mutated
// after it has been appended.
type Exchange struct {
	ID        string    `json:"id"`
	User      string    `json:"user"`
	Assistant string    `json:"assistant"`
	Timestamp time.Time `json:"timestamp"`
}

// Memory is the bounded, in-process conversation memory. Oldest exchanges
// are evicted first once MaxHistory is reached.
type Memory struct {
	mu            sync.RWMutex
	maxHistory    int
	contextWindow int
	exchanges     []Exchange
	now           func() time.Time
}

// New creates a memory holding at most maxHistory exchanges and rendering
// the last contextWindow of them in ContextText.
func New(maxHistory, contextWindow int) *Memory {
	if maxHistory <= 0 {
		maxHistory = 10
	}
	if contextWindow <= 0 {
		contextWindow = 3
	}
	return &Memory{maxHistory: maxHistory, contextWindow: contextWindow, now: time.Now}
}

// Append records a completed turn.
func (m *Memory) Append(user, assistant string) Exchange {
	ex := Exchange{
		ID:        uuid.NewString(),
		User:      user,
		Assistant: assistant,
		Timestamp: m.now(),
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.exchanges = append(m.exchanges, ex)
	if over := len(m.exchanges) - m.maxHistory; over > 0 {
		m.exchanges = append([]Exchange(nil), m.exchanges[over:]...)
	}
	return ex
}

// Recent returns up to n of the newest exchanges, oldest first.
func (m *Memory) Recent(n int) []Exchange {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if n <= 0 || len(m.exchanges) == 0 {
		return nil
	}
	if n > len(m.exchanges) {
		n = len(m.exchanges)
	}
	return append([]Exchange(nil), m.exchanges[len(m.exchanges)-n:]...)
}

// Len reports how many exchanges are held.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.exchanges)
}

// ContextText renders the recent exchanges as a numbered block for
// prompts. It returns "" when memory is empty.
func (m *Memory) ContextText() string {
	recent := m.Recent(m.contextWindow)
	if len(recent) == 0 {
		return ""
	}
	var b strings.Builder
	for i, ex := range recent {
		fmt.Fprintf(&b, "%d. User: %s\n   Assistant: %s\n", i+1, ex.User, ex.Assistant)
	}
	return strings.TrimRight(b.String(), "\n")
}

// Clear drops every exchange.
func (m *Memory) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.exchanges = nil
}
