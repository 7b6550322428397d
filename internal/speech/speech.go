// Package speech holds the voice input and output collaborators of the
// conversation loop.
package speech

import (
	"context"
	"errors"
)

var (
	// ErrNoSpeech means the listening window closed without any speech.
	ErrNoSpeech = errors.New("no speech detected")
	// ErrNotUnderstood means audio was captured but could not be transcribed.
	ErrNotUnderstood = errors.New("speech not understood")
	// ErrServiceError means the recogniser itself failed.
	ErrServiceError = errors.New("speech service error")
)

// Listener produces one utterance per call.
type Listener interface {
	Listen(ctx context.Context) (string, error)
}

// Speaker renders text as audio.
type Speaker interface {
	Speak(ctx context.Context, text string) error
}

// Recoverable reports whether err is one of the listener outcomes that is
// treated like empty input.
func Recoverable(err error) bool {
	return errors.Is(err, ErrNoSpeech) || errors.Is(err, ErrNotUnderstood) || errors.Is(err, ErrServiceError)
}

// Nop discards everything it is asked to say.
type Nop struct{}

func (Nop) Speak(context.Context, string) error { return nil }
