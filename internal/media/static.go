package media

import (
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/pion/webrtc/v4"
)

// StaticSource is a capture source with no producer behind it: the track
// exists and can be negotiated but never carries frames. It backs the
// --no-device mode and the test suite.
type StaticSource struct {
	kind    Kind
	track   webrtc.TrackLocal
	enabled atomic.Bool
	done    chan struct{}
	once    sync.Once
}

func NewStaticSource(kind Kind) *StaticSource {
	mime := webrtc.MimeTypeVP8
	if kind == KindMicrophone {
		mime = webrtc.MimeTypeOpus
	}
	track, _ := webrtc.NewTrackLocalStaticSample(
		webrtc.RTPCodecCapability{MimeType: mime},
		string(kind), "upscholar-"+uuid.NewString(),
	)

	s := &StaticSource{
		kind:  kind,
		track: track,
		done:  make(chan struct{}),
	}
	s.enabled.Store(true)
	return s
}

func (s *StaticSource) Kind() Kind { return s.kind }

func (s *StaticSource) Track() webrtc.TrackLocal { return s.track }

func (s *StaticSource) SetEnabled(enabled bool) { s.enabled.Store(enabled) }

func (s *StaticSource) Enabled() bool { return s.enabled.Load() }

func (s *StaticSource) Done() <-chan struct{} { return s.done }

func (s *StaticSource) Stop() {
	s.once.Do(func() { close(s.done) })
}

// End simulates the capture ending on its own, the way the OS screen
// share control does.
func (s *StaticSource) End() { s.Stop() }

// StaticDevices opens synthetic sources for every kind. DenyScreen and
// FailCamera let callers model a declined prompt and a missing camera.
type StaticDevices struct {
	FailCamera     bool
	FailMicrophone bool
	DenyScreen     bool
}

func (d StaticDevices) OpenCamera() (Source, error) {
	if d.FailCamera {
		return nil, ErrNoDevice
	}
	return NewStaticSource(KindCamera), nil
}

func (d StaticDevices) OpenMicrophone() (Source, error) {
	if d.FailMicrophone {
		return nil, ErrNoDevice
	}
	return NewStaticSource(KindMicrophone), nil
}

func (d StaticDevices) OpenScreen() (Source, error) {
	if d.DenyScreen {
		return nil, ErrCaptureDenied
	}
	return NewStaticSource(KindScreen), nil
}
