//go:build whisper

package whisper

import (
	"context"
	"math"

	"github.com/gordonklaus/portaudio"
)

const (
	frameSize        = 320 // 20ms
	silenceThreshRMS = 0.015
	silenceFrames    = 30 // 600ms
	maxLengthSeconds = 10
)

// Recorder captures mono 16 kHz audio from the default input device.
type Recorder struct{}

func NewRecorder() *Recorder { return &Recorder{} }

func (r *Recorder) Init() error {
	return portaudio.Initialize()
}

func (r *Recorder) Close() {
	portaudio.Terminate()
}

// RecordAuto records until 600ms of silence follow speech, at most
// maxLengthSeconds. Leading silence is dropped.
func (r *Recorder) RecordAuto(ctx context.Context) ([]float32, error) {
	buf := make([]float32, frameSize)
	out := make([]float32, 0, sampleRate*3)

	stream, err := portaudio.OpenDefaultStream(1, 0, sampleRate, len(buf), buf)
	if err != nil {
		return nil, err
	}
	defer stream.Close()

	if err := stream.Start(); err != nil {
		return nil, err
	}
	defer stream.Stop()

	var (
		speaking bool
		quiet    int
	)
	maxFrames := maxLengthSeconds * sampleRate / frameSize
	for i := 0; i < maxFrames; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := stream.Read(); err != nil {
			return nil, err
		}

		if frameRMS(buf) > silenceThreshRMS {
			speaking = true
			quiet = 0
			out = append(out, buf...)
			continue
		}
		if speaking {
			quiet++
			if quiet >= silenceFrames {
				break
			}
			out = append(out, buf...)
		}
	}
	return out, nil
}

func frameRMS(f []float32) float64 {
	var s float64
	for _, x := range f {
		s += float64(x * x)
	}
	return math.Sqrt(s / float64(len(f)))
}
