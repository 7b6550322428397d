//go:build whisper

package whisper

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go-jarvis/internal/config"
	"go-jarvis/internal/speech"
)

// Listener records one utterance from the default microphone per Listen
// call and transcribes it.
type Listener struct {
	rec    *Recorder
	tr     *Transcriber
	chime  *Chime
	logger *slog.Logger
}

// Open initialises audio capture and loads the whisper model.
func Open(cfg config.SpeechConfig, logger *slog.Logger) (*Listener, error) {
	if logger == nil {
		logger = slog.Default()
	}
	rec := NewRecorder()
	if err := rec.Init(); err != nil {
		return nil, fmt.Errorf("init audio: %w", err)
	}
	tr, err := NewTranscriber(cfg.WhisperModel)
	if err != nil {
		rec.Close()
		return nil, err
	}
	return &Listener{
		rec:    rec,
		tr:     tr,
		chime:  NewChime(cfg.Chime),
		logger: logger.With("component", "stt"),
	}, nil
}

func (l *Listener) Listen(ctx context.Context) (string, error) {
	if err := l.chime.Play(); err != nil {
		l.logger.Debug("chime failed", "err", err)
	}
	l.logger.Info("listening")

	pcm, err := l.rec.RecordAuto(ctx)
	if err != nil {
		return "", fmt.Errorf("%w: %v", speech.ErrServiceError, err)
	}
	if len(pcm) == 0 {
		return "", speech.ErrNoSpeech
	}
	l.logger.Debug("recorded", "samples", len(pcm))

	ctx, cancel := context.WithTimeout(ctx, 60*time.Second)
	defer cancel()
	text, err := l.tr.Transcribe(ctx, pcm)
	if err != nil {
		return "", fmt.Errorf("%w: %v", speech.ErrNotUnderstood, err)
	}
	text = strings.TrimSpace(strings.ReplaceAll(text, blankAudio, ""))
	if text == "" {
		return "", speech.ErrNoSpeech
	}
	l.logger.Info("transcribed", "text", text)
	return text, nil
}

func (l *Listener) Close() error {
	l.rec.Close()
	return l.tr.Close()
}
