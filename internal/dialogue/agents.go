package dialogue

import (
	"context"
	"fmt"

	"go-jarvis/internal/llm"
)

// Agent names one of the fixed prompt templates sent to the completion
// backend.
type Agent int

const (
	AgentClassifier Agent = iota
	AgentQuestionExtractor
	AgentKeywordExtractor
	AgentSynthesizer
	AgentChat
	AgentVision
)

func (a Agent) String() string {
	switch a {
	case AgentClassifier:
		return "classifier"
	case AgentQuestionExtractor:
		return "question_extractor"
	case AgentKeywordExtractor:
		return "keyword_extractor"
	case AgentSynthesizer:
		return "synthesizer"
	case AgentChat:
		return "chat"
	case AgentVision:
		return "vision"
	}
	return fmt.Sprintf("agent(%d)", int(a))
}

// Profile is the static configuration of an agent.
type Profile struct {
	Role        string
	Task        string
	Temperature float64
	MaxTokens   int
}

const (
	defaultTopP             = 0.9
	defaultFrequencyPenalty = 0.1
	defaultPresencePenalty  = 0.1
)

var profiles = map[Agent]Profile{
	AgentClassifier: {
		Role: "a query router for a voice assistant",
		Task: "Decide whether the message is casual conversation (greetings, small talk, " +
			"opinions, jokes, thanks) or a question that needs current or factual information " +
			"from the web (news, prices, weather, scores, events, facts about people, places or things). " +
			"Reply with exactly one word: casual or search.",
		Temperature: 0.1,
		MaxTokens:   10,
	},
	AgentQuestionExtractor: {
		Role: "a question analyst",
		Task: "Extract the core question from the message. Remove filler, greetings and " +
			"politeness. Keep names, dates, places, numbers and qualifiers such as most, first, " +
			"last, how many, latest and according to. Reply with the question only.",
		Temperature: 0.1,
		MaxTokens:   200,
	},
	AgentKeywordExtractor: {
		Role: "a search keyword generator",
		Task: "Turn the question into a short comma-separated list of search engine keywords. " +
			"Preserve superlatives and quantifiers (most, first, last, how many). " +
			"Preserve attribution phrases (according to ...). " +
			"Add temporal qualifiers (latest, current, the year) when the question implies recency. " +
			"Leave out stopwords, particles and punctuation. Use the conversation context only to " +
			"resolve pronouns. Reply with the keywords only.",
		Temperature: 0.1,
		MaxTokens:   200,
	},
	AgentSynthesizer: {
		Role: "a concise voice assistant",
		Task: "Answer the question using the search results when they are relevant.",
		Temperature: 0.2,
		MaxTokens:   300,
	},
	AgentChat: {
		Role: "a friendly and witty personal assistant who keeps answers short enough to be spoken aloud",
		Task: "Continue the conversation.",
		Temperature: 0.7,
		MaxTokens:   150,
	},
	AgentVision: {
		Role: "a personal assistant that can see images",
		Task: "Describe or answer questions about the attached image in a few sentences.",
		Temperature: 0.4,
		MaxTokens:   300,
	},
}

// ProfileFor returns the profile of a.
func ProfileFor(a Agent) Profile {
	return profiles[a]
}

// systemPrompt renders the fixed role line.
func (p Profile) systemPrompt() string {
	return "your role: " + p.Role + ", please reply in English"
}

// request builds a single-shot request for input.
func (p Profile) request(input string) llm.Request {
	return p.withMessages([]llm.Message{
		{Role: llm.RoleSystem, Content: p.systemPrompt()},
		{Role: llm.RoleUser, Content: "your task: " + p.Task + "\n message: " + input},
	})
}

func (p Profile) withMessages(msgs []llm.Message) llm.Request {
	return llm.Request{
		Messages:         msgs,
		MaxTokens:        p.MaxTokens,
		Temperature:      p.Temperature,
		TopP:             defaultTopP,
		FrequencyPenalty: defaultFrequencyPenalty,
		PresencePenalty:  defaultPresencePenalty,
	}
}

// ask runs agent a over input on backend.
func ask(ctx context.Context, backend llm.Completer, a Agent, input string) (string, error) {
	return backend.Complete(ctx, ProfileFor(a).request(input))
}
