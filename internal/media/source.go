package media

import (
	"errors"

	"github.com/pion/webrtc/v4"
)

// Capture kinds.
type Kind string

const (
	KindCamera     Kind = "camera"
	KindMicrophone Kind = "microphone"
	KindScreen     Kind = "screen"
)

var (
	// ErrNoDevice means the capture hardware could not be opened.
	ErrNoDevice = errors.New("capture device unavailable")

	// ErrCaptureDenied means the user declined the capture prompt.
	ErrCaptureDenied = errors.New("capture denied")
)

// Source is one live capture feed. It owns the hardware (or synthetic)
// producer behind a local track that peer connections send from.
//
// SetEnabled(false) keeps the track negotiated but stops frames flowing,
// so remote peers receive silence/black rather than losing the track.
// Done is closed when the capture ends on its own, e.g. the OS-level
// "stop sharing" control; Stop also closes it.
type Source interface {
	Kind() Kind
	Track() webrtc.TrackLocal
	SetEnabled(enabled bool)
	Enabled() bool
	Done() <-chan struct{}
	Stop()
}

// Devices opens capture sources. The production implementation reads
// RTP from local capture pipelines; tests substitute synthetic sources.
type Devices interface {
	OpenCamera() (Source, error)
	OpenMicrophone() (Source, error)
	OpenScreen() (Source, error)
}
