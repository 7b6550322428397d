//go:build !whisper

package whisper

import (
	"context"
	"log/slog"

	"go-jarvis/internal/config"
	"go-jarvis/internal/speech"
)

// Listener is unavailable without the whisper build tag.
type Listener struct{}

func Open(config.SpeechConfig, *slog.Logger) (*Listener, error) {
	return nil, ErrUnavailable
}

func (*Listener) Listen(context.Context) (string, error) {
	return "", speech.ErrServiceError
}

func (*Listener) Close() error { return nil }
