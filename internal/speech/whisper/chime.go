//go:build whisper

package whisper

import (
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/faiface/beep"
	"github.com/faiface/beep/mp3"
	"github.com/faiface/beep/speaker"
)

// Chime plays a short mp3 before listening starts. An empty path is silent.
type Chime struct {
	path     string
	initOnce sync.Once
	initErr  error
}

func NewChime(path string) *Chime {
	return &Chime{path: path}
}

func (c *Chime) Play() error {
	if c.path == "" {
		return nil
	}
	f, err := os.Open(c.path)
	if err != nil {
		return fmt.Errorf("open chime: %w", err)
	}
	streamer, format, err := mp3.Decode(f)
	if err != nil {
		f.Close()
		return fmt.Errorf("decode chime: %w", err)
	}
	defer streamer.Close()

	c.initOnce.Do(func() {
		c.initErr = speaker.Init(format.SampleRate, format.SampleRate.N(time.Second/10))
	})
	if c.initErr != nil {
		return fmt.Errorf("init speaker: %w", c.initErr)
	}

	done := make(chan struct{})
	speaker.Play(beep.Seq(streamer, beep.Callback(func() {
		close(done)
	})))
	<-done
	return nil
}
