// Package whisper captures microphone audio and transcribes it locally
// with whisper.cpp. The real implementation needs cgo and is compiled only
// with the "whisper" build tag.
package whisper

import "errors"

// ErrUnavailable is returned by Open when the binary was built without
// the whisper tag.
var ErrUnavailable = errors.New("voice input not compiled in (build with -tags whisper)")

const (
	sampleRate = 16000
	blankAudio = "[BLANK_AUDIO]"
)
