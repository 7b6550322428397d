package dialogue

import (
	"context"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-jarvis/internal/llm"
)

func TestSubmit_TimeQueryBypassesBackendAndSearch(t *testing.T) {
	backend := newFakeBackend(nil)
	search := &fakeSearcher{}
	e := newTestEngine(backend, search, Options{})

	reply, err := e.Submit(context.Background(), "What time is it in Tokyo?", nil)
	require.NoError(t, err)
	assert.Equal(t, RouteTime, reply.Route)
	assert.Equal(t, "The current time in Tokyo is 9:00 AM on January 01, 2024.", reply.Text)
	assert.Empty(t, backend.calls)
	assert.Empty(t, search.queries)
	assert.Equal(t, 1, e.Memory().Len())
	assert.NotEmpty(t, reply.TurnID)
}

func TestSubmit_HelloWithBackendDown(t *testing.T) {
	e := newTestEngine(newFakeBackend(nil), &fakeSearcher{}, Options{})

	reply, err := e.Submit(context.Background(), "hello", nil)
	require.NoError(t, err)
	assert.Equal(t, RouteChat, reply.Route)
	require.NotNil(t, reply.Classification)
	assert.Equal(t, Casual, reply.Classification.Kind)
	assert.Equal(t, "I apologize, Sir. I'm experiencing some connectivity issues.", reply.Text)
	assert.Equal(t, 1, e.Memory().Len())
}

func TestSubmit_HelloChat(t *testing.T) {
	backend := newFakeBackend(map[Agent]string{AgentChat: "Hello, Sir. Lovely to hear from you."})
	search := &fakeSearcher{}
	e := newTestEngine(backend, search, Options{})

	reply, err := e.Submit(context.Background(), "hello", nil)
	require.NoError(t, err)
	assert.Equal(t, "Hello, Sir. Lovely to hear from you.", reply.Text)
	assert.Equal(t, RouteChat, reply.Route)
	assert.Empty(t, search.queries)

	recent := e.Memory().Recent(1)
	require.Len(t, recent, 1)
	assert.Equal(t, "hello", recent[0].User)
	assert.Equal(t, reply.Text, recent[0].Assistant)

	req := backend.last(AgentChat)
	assert.Equal(t, 150, req.MaxTokens)
	assert.InDelta(t, 0.7, req.Temperature, 1e-9)
}

func TestSubmit_StockPriceUsesWebSearch(t *testing.T) {
	backend := newFakeBackend(map[Agent]string{
		AgentClassifier:        "search",
		AgentQuestionExtractor: "What is the current stock price of Apple?",
		AgentKeywordExtractor:  "Apple, stock price,  current",
		AgentSynthesizer:       "Apple closed at 190 dollars, Sir.",
	})
	search := &fakeSearcher{snippets: []string{"AAPL closed at $190.12 on Friday.", "Apple Inc. shares rose 1%."}}
	e := newTestEngine(backend, search, Options{MaxResults: 3})

	reply, err := e.Submit(context.Background(), "What's the current stock price of Apple?", nil)
	require.NoError(t, err)

	assert.Equal(t, RouteSearch, reply.Route)
	assert.Equal(t, NeedsSearch, reply.Classification.Kind)
	assert.Equal(t, BasisWeb, reply.Basis)
	assert.Equal(t, "Based on web search, Apple closed at 190 dollars, Sir.", reply.Text)
	assert.Equal(t, "Apple stock price current", reply.Keywords)
	assert.Equal(t, []string{"Apple stock price current"}, search.queries)
	assert.Equal(t, []int{3}, search.max)

	prompt := userContent(backend.last(AgentSynthesizer))
	assert.Contains(t, prompt, "CURRENT DATE: January 01, 2024 at 08:00 AM")
	assert.Contains(t, prompt, "Location: Taiwan")
	assert.Contains(t, prompt, "Question: What is the current stock price of Apple?")
	assert.Contains(t, prompt, "=====\nAAPL closed at $190.12 on Friday.\n\nApple Inc. shares rose 1%.\n=====")
	assert.Contains(t, prompt, `"Based on web search,"`)
	assert.Equal(t, 1, e.Memory().Len())
}

func TestSubmit_NoSnippetsLabelsKnowledge(t *testing.T) {
	backend := newFakeBackend(map[Agent]string{
		AgentClassifier:        "search",
		AgentQuestionExtractor: "What is the current stock price of Apple?",
		AgentKeywordExtractor:  "Apple stock price",
		AgentSynthesizer:       "Apple traded near 190 dollars when I last checked.",
	})
	e := newTestEngine(backend, &fakeSearcher{}, Options{})

	reply, err := e.Submit(context.Background(), "What's the current stock price of Apple?", nil)
	require.NoError(t, err)
	assert.Equal(t, BasisKnowledge, reply.Basis)
	assert.True(t, strings.HasPrefix(reply.Text, "Based on my knowledge, "))
	assert.Contains(t, userContent(backend.last(AgentSynthesizer)), "(no usable results)")
}

func TestSubmit_KeepsExistingBasisLabel(t *testing.T) {
	backend := newFakeBackend(map[Agent]string{
		AgentClassifier:  "search",
		AgentSynthesizer: "Based on web search, it is sunny in Taipei.",
	})
	e := newTestEngine(backend, &fakeSearcher{snippets: []string{"Sunny, 25C"}}, Options{})

	reply, err := e.Submit(context.Background(), "What is the weather in Taipei like this afternoon?", nil)
	require.NoError(t, err)
	assert.Equal(t, "Based on web search, it is sunny in Taipei.", reply.Text)
}

func TestSubmit_ExtractorFailuresFallBackToUtterance(t *testing.T) {
	backend := newFakeBackend(map[Agent]string{
		AgentClassifier:  "search",
		AgentSynthesizer: "Based on web search, yes.",
	})
	search := &fakeSearcher{snippets: []string{"x"}}
	e := newTestEngine(backend, search, Options{})

	_, err := e.Submit(context.Background(), "Who won the election in Taiwan, in 2024?", nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"Who won the election in Taiwan in 2024?"}, search.queries)
}

func TestSubmit_SynthesisFailureApologises(t *testing.T) {
	backend := newFakeBackend(map[Agent]string{AgentClassifier: "search"})
	e := newTestEngine(backend, &fakeSearcher{snippets: []string{"x"}}, Options{UserName: "Tony"})

	reply, err := e.Submit(context.Background(), "Who is the current prime minister of Japan?", nil)
	require.NoError(t, err)
	assert.Equal(t, "I apologize, Tony. I'm experiencing some connectivity issues.", reply.Text)
	assert.Equal(t, 1, e.Memory().Len())
}

func TestSubmit_ContextBudget(t *testing.T) {
	long := strings.Repeat("a", 5000)
	backend := newFakeBackend(map[Agent]string{AgentClassifier: "search", AgentSynthesizer: "ok"})
	e := newTestEngine(backend, &fakeSearcher{snippets: []string{long, long}}, Options{MaxContextChars: 8000})

	_, err := e.Submit(context.Background(), "What is in those long documents about?", nil)
	require.NoError(t, err)

	prompt := userContent(backend.last(AgentSynthesizer))
	start := strings.Index(prompt, "=====\n") + len("=====\n")
	end := strings.LastIndex(prompt, "\n=====")
	require.Greater(t, end, start)
	results := prompt[start:end]
	assert.Equal(t, 8000, utf8.RuneCountInString(results))
	assert.True(t, strings.HasSuffix(results, "..."))
}

func TestSubmit_ExitCommand(t *testing.T) {
	backend := newFakeBackend(nil)
	e := newTestEngine(backend, &fakeSearcher{}, Options{})

	reply, err := e.Submit(context.Background(), "Okay, goodbye", nil)
	require.NoError(t, err)
	assert.Equal(t, ActionExit, reply.Action)
	assert.Equal(t, "Goodbye, Sir. JARVIS signing off.", reply.Text)
	assert.Empty(t, backend.calls)
	assert.Zero(t, e.Memory().Len())
}

func TestSubmit_ClearCommand(t *testing.T) {
	backend := newFakeBackend(map[Agent]string{AgentChat: "hi"})
	e := newTestEngine(backend, &fakeSearcher{}, Options{})

	_, err := e.Submit(context.Background(), "hello", nil)
	require.NoError(t, err)
	require.Equal(t, 1, e.Memory().Len())

	reply, err := e.Submit(context.Background(), "please clear memory", nil)
	require.NoError(t, err)
	assert.Equal(t, ActionClear, reply.Action)
	assert.Equal(t, "Memory cleared, Sir. Starting fresh.", reply.Text)
	assert.Zero(t, e.Memory().Len())
	assert.Zero(t, e.history.Len())
}

func TestSubmit_TopicForcesSearch(t *testing.T) {
	newBackend := func() *fakeBackend {
		return newFakeBackend(map[Agent]string{
			AgentClassifier:  "casual",
			AgentChat:        "It is usually mild.",
			AgentSynthesizer: "Based on web search, rain is expected.",
		})
	}
	text := "weather in paris this weekend"

	forced := newTestEngine(newBackend(), &fakeSearcher{snippets: []string{"rain"}}, Options{ForceSearchOnTopics: true})
	reply, err := forced.Submit(context.Background(), text, nil)
	require.NoError(t, err)
	assert.Equal(t, RouteSearch, reply.Route)
	assert.Equal(t, "time-sensitive topic: weather", reply.Classification.Reason)

	plain := newTestEngine(newBackend(), &fakeSearcher{snippets: []string{"rain"}}, Options{})
	reply, err = plain.Submit(context.Background(), text, nil)
	require.NoError(t, err)
	assert.Equal(t, RouteChat, reply.Route)
	assert.Equal(t, "It is usually mild.", reply.Text)
}

func TestSubmit_HedgedAnswerFollowsUpWithSearch(t *testing.T) {
	backend := newFakeBackend(map[Agent]string{
		AgentClassifier:  "casual",
		AgentChat:        "I don't have real-time information about that.",
		AgentSynthesizer: "Based on web search, the match ended 2 to 1.",
	})
	search := &fakeSearcher{snippets: []string{"Final: 2-1"}}
	e := newTestEngine(backend, search, Options{HedgeFollowup: true})

	reply, err := e.Submit(context.Background(), "how did the match go", nil)
	require.NoError(t, err)
	assert.Equal(t, RouteSearch, reply.Route)
	assert.Equal(t, "Based on web search, the match ended 2 to 1.", reply.Text)
	assert.Len(t, search.queries, 1)

	recent := e.Memory().Recent(10)
	require.Len(t, recent, 1)
	assert.Equal(t, reply.Text, recent[0].Assistant)
}

func TestSubmit_SearchOverrides(t *testing.T) {
	backend := newFakeBackend(map[Agent]string{AgentChat: "Why did the cat sit on the computer?", AgentSynthesizer: "ok"})
	e := newTestEngine(backend, &fakeSearcher{}, Options{ForceSearchOnTopics: true})

	reply, err := e.Submit(context.Background(), "don't search, just tell me a joke about the latest news", nil)
	require.NoError(t, err)
	assert.Equal(t, RouteChat, reply.Route)
	assert.Zero(t, backend.called(AgentClassifier))

	reply, err = e.Submit(context.Background(), "search the web for cat jokes", nil)
	require.NoError(t, err)
	assert.Equal(t, RouteSearch, reply.Route)
	assert.Zero(t, backend.called(AgentClassifier))
}

func TestSubmit_ReadsLinkedPage(t *testing.T) {
	backend := newFakeBackend(map[Agent]string{AgentSynthesizer: "It is about Go generics."})
	pages := &fakePages{text: "Go 1.18 adds generics.", ok: true}
	e := newTestEngine(backend, &fakeSearcher{}, Options{})
	e.pages = pages

	reply, err := e.Submit(context.Background(), "summarize https://go.dev/blog/intro-generics.", nil)
	require.NoError(t, err)
	assert.Equal(t, RoutePage, reply.Route)
	assert.Equal(t, []string{"https://go.dev/blog/intro-generics"}, pages.urls)
	assert.Equal(t, []int{10000}, pages.maxChars)
	assert.Equal(t, "Based on web search, It is about Go generics.", reply.Text)
	assert.Contains(t, userContent(backend.last(AgentSynthesizer)), "Question: summarize")
	assert.Zero(t, backend.called(AgentClassifier))
}

func TestSubmit_Vision(t *testing.T) {
	backend := newFakeBackend(map[Agent]string{AgentVision: "A cat on a keyboard."})
	e := newTestEngine(backend, &fakeSearcher{}, Options{})
	img := &llm.Image{MIMEType: "image/png", Data: []byte{0x89, 'P', 'N', 'G'}}

	reply, err := e.Submit(context.Background(), "", img)
	require.NoError(t, err)
	assert.Equal(t, RouteVision, reply.Route)
	assert.Equal(t, "A cat on a keyboard.", reply.Text)

	req := backend.last(AgentVision)
	last := req.Messages[len(req.Messages)-1]
	assert.Same(t, img, last.Image)
	assert.Equal(t, "What is in this image?", last.Content)
	assert.Equal(t, "[Image]", e.Memory().Recent(1)[0].User)
}

func TestSubmit_EmptyUtterance(t *testing.T) {
	e := newTestEngine(newFakeBackend(nil), &fakeSearcher{}, Options{})
	_, err := e.Submit(context.Background(), "   ", nil)
	assert.ErrorIs(t, err, ErrEmptyUtterance)
}

func TestSubmit_RecoversFromPanic(t *testing.T) {
	backend := newFakeBackend(nil)
	backend.panics = true
	e := newTestEngine(backend, &fakeSearcher{}, Options{})

	reply, err := e.Submit(context.Background(), "tell me something interesting about octopuses", nil)
	require.NoError(t, err)
	assert.Equal(t, RouteError, reply.Route)
	assert.Equal(t, e.Apology(), reply.Text)

	// the engine lock was released
	backend.panics = false
	_, err = e.Submit(context.Background(), "current time", nil)
	assert.NoError(t, err)
}

func TestSubmit_ChatHistoryWindow(t *testing.T) {
	backend := newFakeBackend(map[Agent]string{AgentClassifier: "casual", AgentChat: "sure"})
	e := newTestEngine(backend, &fakeSearcher{}, Options{ChatHistoryMessages: 4})

	for _, text := range []string{"one", "two", "three"} {
		_, err := e.Submit(context.Background(), text, nil)
		require.NoError(t, err)
	}
	_, err := e.Submit(context.Background(), "four", nil)
	require.NoError(t, err)

	msgs := backend.last(AgentChat).Messages
	// system + 4 history messages + current utterance
	require.Len(t, msgs, 6)
	assert.Equal(t, "two", msgs[1].Content)
	assert.Equal(t, "three", msgs[3].Content)
	assert.Equal(t, "four", msgs[5].Content)
}

func TestSubmit_MemoryContextReachesKeywordExtractor(t *testing.T) {
	backend := newFakeBackend(map[Agent]string{
		AgentClassifier:       "search",
		AgentKeywordExtractor: "nvidia ceo age",
		AgentSynthesizer:      "Based on web search, he is 61.",
	})
	e := newTestEngine(backend, &fakeSearcher{snippets: []string{"x"}}, Options{})

	_, err := e.Submit(context.Background(), "Who is the CEO of Nvidia these days?", nil)
	require.NoError(t, err)
	_, err = e.Submit(context.Background(), "And how old is he now exactly?", nil)
	require.NoError(t, err)

	content := userContent(backend.last(AgentKeywordExtractor))
	assert.Contains(t, content, "1. User: Who is the CEO of Nvidia these days?")
	assert.Contains(t, userContent(backend.last(AgentSynthesizer)), "Recent conversation:\n1. User:")
}

func TestGreeting(t *testing.T) {
	e := newTestEngine(newFakeBackend(nil), nil, Options{UserName: "Tony"})
	at := func(h int) string { return e.Greeting(time.Date(2024, time.March, 1, h, 30, 0, 0, time.UTC)) }
	assert.Equal(t, "Good morning, Tony. JARVIS at your service.", at(9))
	assert.Equal(t, "Good afternoon, Tony. How may I assist you today?", at(13))
	assert.Equal(t, "Good evening, Tony. JARVIS ready for your commands.", at(20))
}
