package dialogue

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"runtime/debug"
	"time"

	"go-jarvis/internal/speech"
)

// maxListenFailures consecutive input failures end the session.
const maxListenFailures = 3

// ErrInputFailed ends a session whose listener keeps failing.
var ErrInputFailed = errors.New("speech input keeps failing")

// Session is the outer conversation loop: listen, submit, speak.
type Session struct {
	engine   *Engine
	listener speech.Listener
	speaker  speech.Speaker
	logger   *slog.Logger
	now      func() time.Time

	retryDelay time.Duration
	failures   int
}

func NewSession(engine *Engine, listener speech.Listener, speaker speech.Speaker, logger *slog.Logger) *Session {
	if speaker == nil {
		speaker = speech.Nop{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Session{
		engine:   engine,
		listener: listener,
		speaker:  speaker,
		logger:   logger.With("component", "session"),
		now:      time.Now,

		retryDelay: time.Second,
	}
}

// Run greets the user and processes utterances until an exit command
// (ErrUserAbort), the end of input (nil), a listener that fails
// maxListenFailures times in a row (ErrInputFailed) or cancellation of ctx.
func (s *Session) Run(ctx context.Context) error {
	s.say(ctx, s.engine.Greeting(s.now().In(s.engine.Clock().Location())))
	for {
		if err := ctx.Err(); err != nil {
			s.say(context.WithoutCancel(ctx), s.engine.Farewell())
			return err
		}
		done, err := s.step(ctx)
		if done {
			return err
		}
	}
}

// step handles one utterance. Panics are converted into an apology so
// the loop keeps listening.
func (s *Session) step(ctx context.Context) (done bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("conversation loop panicked", "panic", r, "stack", string(debug.Stack()))
			s.say(ctx, s.errorMessage())
			done, err = false, nil
		}
	}()

	text, err := s.listener.Listen(ctx)
	switch {
	case err == nil:
		s.failures = 0
	case speech.Recoverable(err):
		s.failures = 0
		s.logger.Debug("no usable input", "err", err)
		return false, nil
	case errors.Is(err, io.EOF):
		s.say(ctx, s.engine.Farewell())
		return true, nil
	case ctx.Err() != nil:
		return false, nil
	default:
		s.failures++
		s.logger.Error("listen failed", "err", err, "consecutive", s.failures)
		s.say(ctx, s.errorMessage())
		if s.failures >= maxListenFailures {
			return true, fmt.Errorf("%w: %w", ErrInputFailed, err)
		}
		s.pause(ctx)
		return false, nil
	}

	reply, err := s.engine.Submit(ctx, text, nil)
	if errors.Is(err, ErrEmptyUtterance) {
		return false, nil
	}
	if err != nil {
		s.logger.Error("turn failed", "err", err)
		s.say(ctx, s.errorMessage())
		return false, nil
	}

	s.say(ctx, reply.Text)
	if reply.Action == ActionExit {
		return true, ErrUserAbort
	}
	return false, nil
}

// pause waits retryDelay before listening again after a failure.
func (s *Session) pause(ctx context.Context) {
	if s.retryDelay <= 0 {
		return
	}
	t := time.NewTimer(s.retryDelay)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

func (s *Session) errorMessage() string {
	return fmt.Sprintf("I apologize, %s. There seems to be an error.", s.engine.opts.UserName)
}

// say never fails; output errors are logged.
func (s *Session) say(ctx context.Context, text string) {
	if err := s.speaker.Speak(ctx, text); err != nil {
		s.logger.Warn("speech output failed", "err", err)
	}
}
