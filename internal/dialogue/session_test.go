package dialogue

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"go-jarvis/internal/logging"
	"go-jarvis/internal/speech"
)

type heard struct {
	text string
	err  error
}

// scriptedListener replays inputs, then reports io.EOF.
type scriptedListener struct {
	inputs []heard
}

func (l *scriptedListener) Listen(ctx context.Context) (string, error) {
	if len(l.inputs) == 0 {
		return "", io.EOF
	}
	next := l.inputs[0]
	l.inputs = l.inputs[1:]
	return next.text, next.err
}

type recordingSpeaker struct {
	mu   sync.Mutex
	said []string
	err  error
}

func (s *recordingSpeaker) Speak(_ context.Context, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.said = append(s.said, text)
	return s.err
}

func newTestSession(e *Engine, l speech.Listener, s speech.Speaker) *Session {
	sess := NewSession(e, l, s, logging.Discard())
	sess.now = func() time.Time { return newYear }
	sess.retryDelay = 0
	return sess
}

func TestSession_RunUntilExit(t *testing.T) {
	e := newTestEngine(newFakeBackend(nil), &fakeSearcher{}, Options{})
	listener := &scriptedListener{inputs: []heard{
		{err: speech.ErrNoSpeech},
		{err: speech.ErrNotUnderstood},
		{err: speech.ErrServiceError},
		{text: "what time is it in Tokyo"},
		{text: "bye"},
		{text: "never reached"},
	}}
	speaker := &recordingSpeaker{}

	err := newTestSession(e, listener, speaker).Run(context.Background())
	require.ErrorIs(t, err, ErrUserAbort)
	assert.Equal(t, []string{
		"Good morning, Sir. JARVIS at your service.",
		"The current time in Tokyo is 9:00 AM on January 01, 2024.",
		"Goodbye, Sir. JARVIS signing off.",
	}, speaker.said)
	assert.Len(t, listener.inputs, 1)
}

func TestSession_EndOfInput(t *testing.T) {
	e := newTestEngine(newFakeBackend(nil), &fakeSearcher{}, Options{})
	speaker := &recordingSpeaker{}

	err := newTestSession(e, &scriptedListener{}, speaker).Run(context.Background())
	assert.NoError(t, err)
	assert.Equal(t, "Goodbye, Sir. JARVIS signing off.", speaker.said[len(speaker.said)-1])
}

func TestSession_ListenErrorApologises(t *testing.T) {
	e := newTestEngine(newFakeBackend(nil), &fakeSearcher{}, Options{UserName: "Pepper"})
	listener := &scriptedListener{inputs: []heard{{err: errors.New("microphone unplugged")}, {text: "quit"}}}
	speaker := &recordingSpeaker{}

	err := newTestSession(e, listener, speaker).Run(context.Background())
	require.ErrorIs(t, err, ErrUserAbort)
	assert.Contains(t, speaker.said, "I apologize, Pepper. There seems to be an error.")
}

func TestSession_PersistentListenErrorEndsSession(t *testing.T) {
	e := newTestEngine(newFakeBackend(nil), &fakeSearcher{}, Options{})
	unplugged := errors.New("microphone unplugged")
	listener := &scriptedListener{inputs: []heard{
		{err: unplugged}, {err: unplugged}, {err: unplugged}, {text: "never reached"},
	}}
	speaker := &recordingSpeaker{}

	err := newTestSession(e, listener, speaker).Run(context.Background())
	require.ErrorIs(t, err, ErrInputFailed)
	assert.ErrorIs(t, err, unplugged)
	assert.Len(t, listener.inputs, 1)
	assert.Len(t, speaker.said, 1+maxListenFailures)
}

func TestSession_ListenFailuresResetAfterInput(t *testing.T) {
	e := newTestEngine(newFakeBackend(nil), &fakeSearcher{}, Options{})
	flaky := errors.New("device busy")
	listener := &scriptedListener{inputs: []heard{
		{err: flaky}, {err: flaky}, {text: "current time"},
		{err: flaky}, {err: flaky}, {text: "bye"},
	}}

	err := newTestSession(e, listener, &recordingSpeaker{}).Run(context.Background())
	require.ErrorIs(t, err, ErrUserAbort)
}

func TestSession_RetryDelayHonoursCancellation(t *testing.T) {
	e := newTestEngine(newFakeBackend(nil), &fakeSearcher{}, Options{})
	sess := newTestSession(e, &scriptedListener{}, &recordingSpeaker{})
	sess.retryDelay = time.Hour
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	start := time.Now()
	sess.pause(ctx)
	assert.Less(t, time.Since(start), time.Second)
}

func TestSession_SpeakerErrorsAreSwallowed(t *testing.T) {
	e := newTestEngine(newFakeBackend(nil), &fakeSearcher{}, Options{})
	listener := &scriptedListener{inputs: []heard{{text: "current time"}, {text: "exit"}}}
	speaker := &recordingSpeaker{err: errors.New("no audio device")}

	err := newTestSession(e, listener, speaker).Run(context.Background())
	require.ErrorIs(t, err, ErrUserAbort)
	assert.Len(t, speaker.said, 3)
}

func TestSession_ClearContinues(t *testing.T) {
	e := newTestEngine(newFakeBackend(nil), &fakeSearcher{}, Options{})
	listener := &scriptedListener{inputs: []heard{{text: "current time"}, {text: "forget it all"}, {text: "stop"}}}
	speaker := &recordingSpeaker{}

	err := newTestSession(e, listener, speaker).Run(context.Background())
	require.ErrorIs(t, err, ErrUserAbort)
	assert.Contains(t, speaker.said, "Memory cleared, Sir. Starting fresh.")
	assert.Zero(t, e.Memory().Len())
}

type blockingListener struct{}

func (blockingListener) Listen(ctx context.Context) (string, error) {
	<-ctx.Done()
	return "", ctx.Err()
}

func TestSession_Cancellation(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	e := newTestEngine(newFakeBackend(nil), &fakeSearcher{}, Options{})
	speaker := &recordingSpeaker{}
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- newTestSession(e, blockingListener{}, speaker).Run(ctx) }()
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("session did not stop after cancellation")
	}
	assert.Equal(t, "Goodbye, Sir. JARVIS signing off.", speaker.said[len(speaker.said)-1])
}
