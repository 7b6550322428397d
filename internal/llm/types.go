package llm

import (
	"context"
	"encoding/base64"
	"errors"
)

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

var (
	// ErrBackend wraps every failure of a completion backend.
	ErrBackend = errors.New("completion backend failure")
	// ErrEmptyResponse is returned when the backend answered with no text.
	ErrEmptyResponse = errors.New("empty completion")
)

// Image is an inline picture attached to a user message
type Image struct {
	MIMEType string
	Data     []byte
}

// DataURL encodes the image as a data: URL
func (i *Image) DataURL() string {
	return "data:" + i.MIMEType + ";base64," + base64.StdEncoding.EncodeToString(i.Data)
}

// Base64 returns the raw base64 payload
func (i *Image) Base64() string {
	return base64.StdEncoding.EncodeToString(i.Data)
}

// Message is one chat message sent to a backend
type Message struct {
	Role    string
	Content string
	Image   *Image
}

// Request encapsulates a completion call
type Request struct {
	Messages         []Message
	MaxTokens        int
	Temperature      float64
	TopP             float64
	FrequencyPenalty float64
	PresencePenalty  float64
}

// Completer returns the first choice's text for a request
type Completer interface {
	Complete(ctx context.Context, req Request) (string, error)
}

// CompleterFunc adapts a function to Completer
type CompleterFunc func(ctx context.Context, req Request) (string, error)

func (f CompleterFunc) Complete(ctx context.Context, req Request) (string, error) {
	return f(ctx, req)
}

// splitSystem separates system messages (joined) from the conversation
func splitSystem(msgs []Message) (string, []Message) {
	var system string
	rest := make([]Message, 0, len(msgs))
	for _, m := range msgs {
		if m.Role == RoleSystem {
			if system != "" {
				system += "\n\n"
			}
			system += m.Content
			continue
		}
		rest = append(rest, m)
	}
	return system, rest
}
