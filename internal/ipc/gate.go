package ipc

import (
	"context"

	"go-jarvis/internal/speech"
)

// Gate makes a listener wait for a push-to-talk trigger before each
// utterance.
type Gate struct {
	inner    speech.Listener
	triggers chan struct{}
}

func NewGate(inner speech.Listener) *Gate {
	return &Gate{inner: inner, triggers: make(chan struct{}, 1)}
}

// Handle is a Server handler. Triggers arriving while one is pending are
// dropped.
func (g *Gate) Handle(msg ControlMessage) {
	if msg.Cmd != CmdTrigger {
		return
	}
	select {
	case g.triggers <- struct{}{}:
	default:
	}
}

func (g *Gate) Listen(ctx context.Context) (string, error) {
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case <-g.triggers:
	}
	return g.inner.Listen(ctx)
}
