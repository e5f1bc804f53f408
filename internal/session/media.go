package session

import (
	"errors"
	"log/slog"
	"sync"

	"github.com/pion/webrtc/v4"

	"github.com/Asmer72582/upscholar-live/internal/media"
	"github.com/Asmer72582/upscholar-live/internal/protocol"
)

// MediaController owns the local capture state: the camera/microphone
// pair and, while sharing, the screen source. It is the only component
// allowed to start or stop hardware capture. Exactly one of camera or
// screen is the outgoing video at any time.
type MediaController struct {
	mu      sync.Mutex
	devices media.Devices

	camera media.Source
	mic    media.Source
	screen media.Source

	videoOK  bool
	acquired bool

	// Participants that asked for a link before capture was ready. The
	// queue is owned here and drained exactly once when media lands.
	pending []string
	drained bool
}

func NewMediaController(devices media.Devices) *MediaController {
	return &MediaController{devices: devices}
}

// Acquire opens camera and microphone. A missing camera degrades to an
// audio-only session rather than aborting; a missing microphone as well
// is fatal. Returns the ids that were queued while capture was pending;
// the caller must evaluate link initiation for each exactly once.
func (m *MediaController) Acquire() ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	camera, err := m.devices.OpenCamera()
	if err != nil {
		slog.Warn("camera unavailable, retrying audio-only", "err", err)
		m.videoOK = false
	} else {
		m.camera = camera
		m.videoOK = true
	}

	mic, err := m.devices.OpenMicrophone()
	if err != nil {
		if m.camera != nil {
			m.camera.Stop()
			m.camera = nil
		}
		return nil, WrapError("acquire media", ErrMediaUnavailable, err.Error())
	}
	m.mic = mic

	m.acquired = true
	m.drained = true
	queued := m.pending
	m.pending = nil
	return queued, nil
}

// Defer queues a participant id until capture is ready. Returns false
// once media is available, meaning the caller should proceed directly.
func (m *MediaController) Defer(remoteID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.acquired {
		return false
	}
	m.pending = append(m.pending, remoteID)
	return true
}

// VideoTrack returns the current outgoing video track: the screen while
// sharing, else the camera, nil for audio-only sessions.
func (m *MediaController) VideoTrack() webrtc.TrackLocal {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.screen != nil {
		return m.screen.Track()
	}
	if m.camera != nil {
		return m.camera.Track()
	}
	return nil
}

// AudioTrack returns the microphone track.
func (m *MediaController) AudioTrack() webrtc.TrackLocal {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.mic == nil {
		return nil
	}
	return m.mic.Track()
}

// ToggleVideo flips the enabled flag on the live video source in place.
// The track stays negotiated; peers simply receive blank frames. No
// renegotiation happens.
func (m *MediaController) ToggleVideo() bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	src := m.camera
	if m.screen != nil {
		src = m.screen
	}
	if src == nil {
		return false
	}
	src.SetEnabled(!src.Enabled())
	return src.Enabled()
}

// ToggleAudio flips the enabled flag on the microphone in place.
func (m *MediaController) ToggleAudio() bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.mic == nil {
		return false
	}
	m.mic.SetEnabled(!m.mic.Enabled())
	return m.mic.Enabled()
}

// Flags reports the capability flags to broadcast after a toggle.
func (m *MediaController) Flags() protocol.UpdateParticipantPayload {
	m.mu.Lock()
	defer m.mu.Unlock()

	flags := protocol.UpdateParticipantPayload{Screen: m.screen != nil}
	if m.mic != nil {
		flags.Audio = m.mic.Enabled()
	}
	switch {
	case m.screen != nil:
		flags.Video = m.screen.Enabled()
	case m.camera != nil:
		flags.Video = m.camera.Enabled()
	}
	return flags
}

// Sharing reports whether a screen capture is live.
func (m *MediaController) Sharing() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.screen != nil
}

// StartScreenShare captures the screen and substitutes it for the
// camera on every live link via the supplied swap function. The audio
// track is untouched, so audio flows uninterrupted. onAutoStop runs when
// the capture ends from the OS side, on the same path as a manual stop.
func (m *MediaController) StartScreenShare(substitute func(webrtc.TrackLocal), onAutoStop func()) error {
	m.mu.Lock()
	if m.screen != nil {
		m.mu.Unlock()
		return nil
	}

	screen, err := m.devices.OpenScreen()
	if err != nil {
		m.mu.Unlock()
		if errors.Is(err, media.ErrCaptureDenied) {
			return WrapError("start screen share", ErrScreenCaptureDenied, "camera sharing continues")
		}
		return NewError("start screen share", err)
	}
	m.screen = screen
	track := screen.Track()
	done := screen.Done()
	m.mu.Unlock()

	substitute(track)

	go func() {
		<-done
		m.mu.Lock()
		stillSharing := m.screen == screen
		m.mu.Unlock()
		if stillSharing && onAutoStop != nil {
			onAutoStop()
		}
	}()

	return nil
}

// StopScreenShare reverses the substitution back to the camera and
// stops the screen capture hardware.
func (m *MediaController) StopScreenShare(substitute func(webrtc.TrackLocal)) {
	m.mu.Lock()
	screen := m.screen
	if screen == nil {
		m.mu.Unlock()
		return
	}
	m.screen = nil
	var cameraTrack webrtc.TrackLocal
	if m.camera != nil {
		cameraTrack = m.camera.Track()
	}
	m.mu.Unlock()

	if cameraTrack != nil {
		substitute(cameraTrack)
	}
	screen.Stop()
}

// HasVideo reports whether a camera was acquired.
func (m *MediaController) HasVideo() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.videoOK
}

// StopAll releases every capture source, screen included.
func (m *MediaController) StopAll() {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, src := range []media.Source{m.screen, m.camera, m.mic} {
		if src != nil {
			src.Stop()
		}
	}
	m.screen, m.camera, m.mic = nil, nil, nil
	m.acquired = false
}
