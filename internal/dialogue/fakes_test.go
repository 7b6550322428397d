package dialogue

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go-jarvis/internal/chat"
	"go-jarvis/internal/llm"
	"go-jarvis/internal/logging"
	"go-jarvis/internal/memory"
)

var errOffline = errors.New("offline")

// fakeBackend answers per agent; agents without a scripted reply fail.
type fakeBackend struct {
	mu       sync.Mutex
	replies  map[Agent]string
	panics   bool
	calls    []Agent
	requests []llm.Request
}

func newFakeBackend(replies map[Agent]string) *fakeBackend {
	if replies == nil {
		replies = map[Agent]string{}
	}
	return &fakeBackend{replies: replies}
}

func agentOf(req llm.Request) Agent {
	if len(req.Messages) == 0 {
		return Agent(-1)
	}
	sys := req.Messages[0].Content
	for a, p := range profiles {
		if strings.HasPrefix(sys, "your role: "+p.Role+",") || strings.HasPrefix(sys, "your role: "+p.Role+" named ") {
			return a
		}
	}
	return Agent(-1)
}

func (f *fakeBackend) Complete(_ context.Context, req llm.Request) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.panics {
		panic("backend exploded")
	}
	a := agentOf(req)
	f.calls = append(f.calls, a)
	f.requests = append(f.requests, req)
	reply, ok := f.replies[a]
	if !ok {
		return "", fmt.Errorf("%w: %v", llm.ErrBackend, errOffline)
	}
	return reply, nil
}

func (f *fakeBackend) called(a Agent) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if c == a {
			n++
		}
	}
	return n
}

func (f *fakeBackend) last(a Agent) llm.Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := len(f.calls) - 1; i >= 0; i-- {
		if f.calls[i] == a {
			return f.requests[i]
		}
	}
	return llm.Request{}
}

type fakeSearcher struct {
	mu       sync.Mutex
	snippets []string
	queries  []string
	max      []int
}

func (s *fakeSearcher) Search(_ context.Context, keywords string, maxResults int) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queries = append(s.queries, keywords)
	s.max = append(s.max, maxResults)
	return s.snippets
}

type fakePages struct {
	text     string
	ok       bool
	urls     []string
	maxChars []int
}

func (p *fakePages) Fetch(_ context.Context, url string, maxChars int) (string, bool) {
	p.urls = append(p.urls, url)
	p.maxChars = append(p.maxChars, maxChars)
	return p.text, p.ok
}

// newYear is 2024-01-01 08:00 in Taipei.
var newYear = time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)

func newTestEngine(backend llm.Completer, search Searcher, opts Options) *Engine {
	opts.Logger = logging.Discard()
	e := NewEngine(backend, search, nil, memory.New(10, 3), chat.NewHistory(opts.ChatHistoryMessages), opts)
	e.clock.now = func() time.Time { return newYear }
	return e
}

func userContent(req llm.Request) string {
	for i := len(req.Messages) - 1; i >= 0; i-- {
		if req.Messages[i].Role == llm.RoleUser {
			return req.Messages[i].Content
		}
	}
	return ""
}
