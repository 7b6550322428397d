package chat

import (
	"sync"
	"time"
)

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

type Message struct {
	Role      string    `json:"role"` // "user" or "assistant"
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"createdAt"`
}

// History is the raw role/content transcript used by the casual chat path.
// It keeps at most Limit messages, dropping the oldest first.
type History struct {
	mu       sync.Mutex
	limit    int
	messages []Message
}

func NewHistory(limit int) *History {
	if limit <= 0 {
		limit = 20
	}
	return &History{limit: limit}
}

func (h *History) Add(role, content string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.messages = append(h.messages, Message{Role: role, Content: content, CreatedAt: time.Now()})
	if over := len(h.messages) - h.limit; over > 0 {
		h.messages = append([]Message(nil), h.messages[over:]...)
	}
}

// Messages returns a copy of the stored transcript, oldest first.
func (h *History) Messages() []Message {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]Message(nil), h.messages...)
}

func (h *History) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.messages)
}

func (h *History) Clear() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.messages = nil
}

// Sliding window for context limitation: the newest messages whose combined
// content fits in maxChars, at most maxMessages of them.
func BuildSlidingWindow(messages []Message, maxMessages, maxChars int) []Message {
	var window []Message
	totalChars := 0

	// Start from the end (latest message), prepend to window
	for i := len(messages) - 1; i >= 0; i-- {
		if maxMessages > 0 && len(window) == maxMessages {
			break
		}
		m := messages[i]
		if maxChars > 0 && totalChars+len(m.Content) > maxChars {
			break
		}
		window = append([]Message{m}, window...)
		totalChars += len(m.Content)
	}
	return window
}
