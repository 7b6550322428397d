package dialogue

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"go-jarvis/internal/chat"
	"go-jarvis/internal/llm"
	"go-jarvis/internal/memory"
	"go-jarvis/internal/tools"
)

const (
	BasisWeb       = "Based on web search"
	BasisKnowledge = "Based on my knowledge"
)

// Route tells which path produced a reply.
type Route string

const (
	RouteCommand Route = "command"
	RouteTime    Route = "time"
	RouteChat    Route = "chat"
	RouteSearch  Route = "search"
	RoutePage    Route = "page"
	RouteVision  Route = "vision"
	RouteError   Route = "error"
)

// Action is a side effect the front end has to honour.
type Action string

const (
	ActionNone  Action = ""
	ActionExit  Action = "exit"
	ActionClear Action = "clear"
)

// Reply is the outcome of one turn.
type Reply struct {
	TurnID         string          `json:"turn_id"`
	Text           string          `json:"text"`
	Action         Action          `json:"action,omitempty"`
	Route          Route           `json:"route"`
	Basis          string          `json:"basis,omitempty"`
	Classification *Classification `json:"classification,omitempty"`
	Keywords       string          `json:"keywords,omitempty"`
	Snippets       []string        `json:"snippets,omitempty"`
}

// Searcher returns text snippets for a keyword string. It never fails.
type Searcher interface {
	Search(ctx context.Context, keywords string, maxResults int) []string
}

// PageReader returns the visible text of a single page.
type PageReader interface {
	Fetch(ctx context.Context, url string, maxChars int) (string, bool)
}

// Options configures an Engine
type Options struct {
	AssistantName       string
	UserName            string
	DefaultLocation     string
	MaxResults          int
	MaxContextChars     int
	MaxPageChars        int
	ChatHistoryMessages int
	ForceSearchOnTopics bool
	HedgeFollowup       bool
	Tables              *Tables
	Logger              *slog.Logger
}

// Engine runs the routing pipeline for one conversation. Turns are
// processed one at a time.
type Engine struct {
	mu sync.Mutex

	backend    llm.Completer
	classifier *Classifier
	keywords   *KeywordExtractor
	search     Searcher
	pages      PageReader
	memory     *memory.Memory
	history    *chat.History
	clock      *Clock
	tables     *Tables
	opts       Options
	logger     *slog.Logger
}

// NewEngine wires the pipeline. pages may be nil, which disables direct
// page reading.
func NewEngine(backend llm.Completer, search Searcher, pages PageReader, mem *memory.Memory, history *chat.History, opts Options) *Engine {
	if opts.AssistantName == "" {
		opts.AssistantName = "JARVIS"
	}
	if opts.UserName == "" {
		opts.UserName = "Sir"
	}
	if opts.DefaultLocation == "" {
		opts.DefaultLocation = "Taiwan"
	}
	if opts.MaxResults <= 0 {
		opts.MaxResults = 2
	}
	if opts.MaxContextChars <= 0 {
		opts.MaxContextChars = 8000
	}
	if opts.MaxPageChars <= 0 {
		opts.MaxPageChars = 10000
	}
	if opts.ChatHistoryMessages <= 0 {
		opts.ChatHistoryMessages = 20
	}
	if opts.Tables == nil {
		opts.Tables = DefaultTables()
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if mem == nil {
		mem = memory.New(0, 0)
	}
	if history == nil {
		history = chat.NewHistory(opts.ChatHistoryMessages)
	}
	return &Engine{
		backend:    backend,
		classifier: NewClassifier(backend, opts.Tables, opts.Logger),
		keywords:   NewKeywordExtractor(backend, opts.Logger),
		search:     search,
		pages:      pages,
		memory:     mem,
		history:    history,
		clock:      NewClock(opts.Tables, opts.DefaultLocation),
		tables:     opts.Tables,
		opts:       opts,
		logger:     opts.Logger.With("component", "engine"),
	}
}

// Memory exposes the conversation memory for read-only front ends.
func (e *Engine) Memory() *memory.Memory { return e.memory }

// Recent returns up to n of the newest exchanges.
func (e *Engine) Recent(n int) []memory.Exchange { return e.memory.Recent(n) }

// Clock exposes the time lookup used for direct time questions.
func (e *Engine) Clock() *Clock { return e.clock }

// Apology is the reply used whenever the backend cannot answer.
func (e *Engine) Apology() string {
	return fmt.Sprintf("I apologize, %s. I'm experiencing some connectivity issues.", e.opts.UserName)
}

// Farewell is spoken when the conversation ends.
func (e *Engine) Farewell() string {
	return fmt.Sprintf("Goodbye, %s. %s signing off.", e.opts.UserName, e.opts.AssistantName)
}

// Greeting depends on the hour of t.
func (e *Engine) Greeting(t time.Time) string {
	switch h := t.Hour(); {
	case h < 12:
		return fmt.Sprintf("Good morning, %s. %s at your service.", e.opts.UserName, e.opts.AssistantName)
	case h < 17:
		return fmt.Sprintf("Good afternoon, %s. How may I assist you today?", e.opts.UserName)
	default:
		return fmt.Sprintf("Good evening, %s. %s ready for your commands.", e.opts.UserName, e.opts.AssistantName)
	}
}

// ClearMemory wipes both the exchange memory and the chat transcript.
func (e *Engine) ClearMemory() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.memory.Clear()
	e.history.Clear()
}

// Submit processes one utterance, optionally with an image, and returns
// the reply. Backend failures become an apology; the only error is
// ErrEmptyUtterance.
func (e *Engine) Submit(ctx context.Context, text string, image *llm.Image) (reply Reply, err error) {
	text = strings.TrimSpace(text)
	if text == "" && image == nil {
		return Reply{}, ErrEmptyUtterance
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	turnID := uuid.NewString()
	logger := e.logger.With("turn", turnID)
	defer func() {
		if r := recover(); r != nil {
			logger.Error("turn panicked", "panic", r, "stack", string(debug.Stack()))
			reply = Reply{TurnID: turnID, Text: e.Apology(), Route: RouteError}
			err = nil
		}
	}()

	start := time.Now()
	reply = e.route(ctx, logger, text, image)
	reply.TurnID = turnID
	logger.Info("turn complete",
		"route", reply.Route,
		"basis", reply.Basis,
		"snippets", len(reply.Snippets),
		"elapsed", time.Since(start).Round(time.Millisecond))
	return reply, nil
}

func (e *Engine) route(ctx context.Context, logger *slog.Logger, text string, image *llm.Image) Reply {
	if image != nil {
		return e.vision(ctx, logger, text, image)
	}

	if e.tables.IsExit(text) {
		return Reply{Text: e.Farewell(), Action: ActionExit, Route: RouteCommand}
	}
	if e.tables.IsClear(text) {
		e.memory.Clear()
		e.history.Clear()
		return Reply{
			Text:   fmt.Sprintf("Memory cleared, %s. Starting fresh.", e.opts.UserName),
			Action: ActionClear,
			Route:  RouteCommand,
		}
	}

	if answer, ok := e.clock.Answer(text); ok {
		logger.Debug("time query answered locally")
		e.record(text, answer)
		return Reply{Text: answer, Route: RouteTime}
	}

	if e.pages != nil {
		if question, pageURL := extractURL(text); pageURL != "" {
			return e.readPage(ctx, logger, text, question, pageURL)
		}
	}

	verdict := e.decide(ctx, text)
	logger.Debug("classified", "kind", verdict.Kind, "reason", verdict.Reason)

	if verdict.Kind == Casual {
		answer, err := e.chat(ctx, text)
		if err != nil {
			logger.Warn("chat completion failed", "err", err)
			answer = e.Apology()
			e.record(text, answer)
			return Reply{Text: answer, Route: RouteChat, Classification: &verdict}
		}
		if phrase, hedged := e.tables.Hedging(answer); hedged && e.opts.HedgeFollowup && !e.tables.SearchDenied(text) {
			logger.Info("answer hedged, following up with search", "phrase", phrase)
			verdict.Reason = "hedged answer: " + phrase
			return e.retrieve(ctx, logger, text, verdict)
		}
		e.record(text, answer)
		return Reply{Text: answer, Route: RouteChat, Classification: &verdict}
	}

	return e.retrieve(ctx, logger, text, verdict)
}

// decide applies user overrides, the classifier and the topic table.
func (e *Engine) decide(ctx context.Context, text string) Classification {
	if e.tables.SearchDenied(text) {
		return Classification{Kind: Casual, Reason: "user declined search"}
	}
	if e.tables.SearchRequested(text) {
		return Classification{Kind: NeedsSearch, Reason: "user requested search"}
	}
	verdict := e.classifier.Classify(ctx, text)
	if verdict.Kind == Casual && e.opts.ForceSearchOnTopics {
		if topic, ok := e.tables.TimeSensitive(text); ok {
			return Classification{Kind: NeedsSearch, Reason: "time-sensitive topic: " + topic}
		}
	}
	return verdict
}

func (e *Engine) chat(ctx context.Context, text string) (string, error) {
	profile := ProfileFor(AgentChat)
	msgs := []llm.Message{{
		Role: llm.RoleSystem,
		Content: e.persona(profile) + fmt.Sprintf("\nThe user is %s. Today is %s.",
			e.opts.UserName, e.now().Format("Monday, January 02, 2006")),
	}}
	for _, m := range chat.BuildSlidingWindow(e.history.Messages(), e.opts.ChatHistoryMessages, 0) {
		msgs = append(msgs, llm.Message{Role: m.Role, Content: m.Content})
	}
	msgs = append(msgs, llm.Message{Role: llm.RoleUser, Content: text})
	return e.backend.Complete(ctx, profile.withMessages(msgs))
}

func (e *Engine) retrieve(ctx context.Context, logger *slog.Logger, text string, verdict Classification) Reply {
	question := e.keywords.ExtractQuestion(ctx, text)
	keywords := NormalizeKeywords(e.keywords.Extract(ctx, question, e.memory.ContextText()))
	if keywords == "" {
		keywords = NormalizeKeywords(question)
	}
	logger.Debug("searching", "question", question, "keywords", keywords)

	var snippets []string
	if e.search != nil {
		snippets = e.search.Search(ctx, keywords, e.opts.MaxResults)
	}
	answer, basis := e.synthesize(ctx, logger, question, snippets)
	e.record(text, answer)
	return Reply{
		Text:           answer,
		Route:          RouteSearch,
		Basis:          basis,
		Classification: &verdict,
		Keywords:       keywords,
		Snippets:       snippets,
	}
}

func (e *Engine) readPage(ctx context.Context, logger *slog.Logger, text, question, pageURL string) Reply {
	if question == "" {
		question = "Summarize this page."
	}
	var snippets []string
	if content, ok := e.pages.Fetch(ctx, pageURL, e.opts.MaxPageChars); ok {
		snippets = []string{content}
	} else {
		logger.Info("page unavailable", "url", pageURL)
	}
	answer, basis := e.synthesize(ctx, logger, question, snippets)
	e.record(text, answer)
	return Reply{Text: answer, Route: RoutePage, Basis: basis, Snippets: snippets}
}

// synthesize answers question from snippets. The basis label is decided
// here from whether any snippet was usable.
func (e *Engine) synthesize(ctx context.Context, logger *slog.Logger, question string, snippets []string) (string, string) {
	results := tools.Truncate(strings.Join(snippets, "\n\n"), e.opts.MaxContextChars, "...")
	basis := BasisKnowledge
	if strings.TrimSpace(results) != "" {
		basis = BasisWeb
	}

	profile := ProfileFor(AgentSynthesizer)
	req := profile.withMessages([]llm.Message{
		{Role: llm.RoleSystem, Content: e.persona(profile)},
		{Role: llm.RoleUser, Content: e.synthesisPrompt(question, results, basis)},
	})
	answer, err := e.backend.Complete(ctx, req)
	if err != nil {
		logger.Warn("synthesis failed", "err", err)
		return e.Apology(), basis
	}
	return ensureBasisLabel(answer, basis), basis
}

func (e *Engine) synthesisPrompt(question, results, basis string) string {
	var b strings.Builder
	now := e.now()
	fmt.Fprintf(&b, "CURRENT DATE: %s\n", now.Format("January 02, 2006 at 03:04 PM"))
	fmt.Fprintf(&b, "Location: %s\n\n", e.opts.DefaultLocation)
	if ctxText := e.memory.ContextText(); ctxText != "" {
		fmt.Fprintf(&b, "Recent conversation:\n%s\n\n", ctxText)
	}
	fmt.Fprintf(&b, "Question: %s\n\n", question)
	b.WriteString("Search results:\n=====\n")
	if results == "" {
		b.WriteString("(no usable results)")
	} else {
		b.WriteString(results)
	}
	b.WriteString("\n=====\n\n")
	b.WriteString("Instructions:\n")
	fmt.Fprintf(&b, "- Start the answer with %q.\n", basis+",")
	b.WriteString("- Answer in at most three short sentences that can be spoken aloud.\n")
	b.WriteString("- Use the search results for facts, prices, dates and names when they are relevant.\n")
	b.WriteString("- If the results do not contain the answer, say what you know and mention that it may be out of date.\n")
	fmt.Fprintf(&b, "- Address the user as %s. No markdown, lists or URLs.\n", e.opts.UserName)
	return b.String()
}

func (e *Engine) vision(ctx context.Context, logger *slog.Logger, text string, image *llm.Image) Reply {
	prompt := text
	if prompt == "" {
		prompt = "What is in this image?"
	}
	profile := ProfileFor(AgentVision)
	req := profile.withMessages([]llm.Message{
		{Role: llm.RoleSystem, Content: e.persona(profile)},
		{Role: llm.RoleUser, Content: prompt, Image: image},
	})
	answer, err := e.backend.Complete(ctx, req)
	if err != nil {
		logger.Warn("vision completion failed", "err", err)
		answer = e.Apology()
	}
	recorded := text
	if recorded == "" {
		recorded = "[Image]"
	}
	e.record(recorded, answer)
	return Reply{Text: answer, Route: RouteVision}
}

func (e *Engine) persona(p Profile) string {
	return fmt.Sprintf("your role: %s named %s, please reply in English", p.Role, e.opts.AssistantName)
}

func (e *Engine) record(user, assistant string) {
	e.memory.Append(user, assistant)
	e.history.Add(chat.RoleUser, user)
	e.history.Add(chat.RoleAssistant, assistant)
}

func (e *Engine) now() time.Time {
	return e.clock.now().In(e.clock.Location())
}

// ensureBasisLabel prefixes answer with basis unless it already carries
// one of the two labels.
func ensureBasisLabel(answer, basis string) string {
	lower := strings.ToLower(answer)
	if strings.Contains(lower, strings.ToLower(BasisWeb)) || strings.Contains(lower, strings.ToLower(BasisKnowledge)) {
		return answer
	}
	return basis + ", " + answer
}
