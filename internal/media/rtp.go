package media

import (
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/pion/rtp"
	"github.com/pion/webrtc/v4"
)

// RTPSource reads RTP packets from a local UDP port, as produced by an
// external capture pipeline (gstreamer, ffmpeg), and forwards them into
// a local track. Disabling the source drops packets instead of writing
// them, which keeps the track alive but silent.
type RTPSource struct {
	kind    Kind
	track   *webrtc.TrackLocalStaticRTP
	conn    *net.UDPConn
	enabled atomic.Bool
	done    chan struct{}
	once    sync.Once
}

// NewRTPSource listens on addr and starts pumping packets into a new
// local track of the given codec.
func NewRTPSource(kind Kind, mimeType, addr string) (*RTPSource, error) {
	udpAddr, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return nil, fmt.Errorf("resolve %s capture addr: %w", kind, err)
	}
	conn, err := net.ListenUDP("udp", udpAddr)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", ErrNoDevice, err)
	}

	streamID := "upscholar-" + uuid.NewString()
	track, err := webrtc.NewTrackLocalStaticRTP(
		webrtc.RTPCodecCapability{MimeType: mimeType},
		string(kind), streamID,
	)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("create %s track: %w", kind, err)
	}

	s := &RTPSource{
		kind:  kind,
		track: track,
		conn:  conn,
		done:  make(chan struct{}),
	}
	s.enabled.Store(true)

	go s.pump()
	return s, nil
}

func (s *RTPSource) pump() {
	defer s.Stop()

	buf := make([]byte, 1500)
	for {
		// keep the read unblocked with a short timeout so Stop is
		// observed promptly
		_ = s.conn.SetReadDeadline(time.Now().Add(500 * time.Millisecond))

		n, _, err := s.conn.ReadFromUDP(buf)
		if err != nil {
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				select {
				case <-s.done:
					return
				default:
					continue
				}
			}
			if errors.Is(err, net.ErrClosed) {
				return
			}
			slog.Error("capture read failed", "kind", s.kind, "err", err)
			return
		}

		if !s.enabled.Load() {
			continue
		}

		var pkt rtp.Packet
		if err := pkt.Unmarshal(buf[:n]); err != nil {
			// ignore non-RTP
			continue
		}
		if err := s.track.WriteRTP(&pkt); err != nil {
			slog.Error("track write failed", "kind", s.kind, "err", err)
			return
		}
	}
}

func (s *RTPSource) Kind() Kind { return s.kind }

func (s *RTPSource) Track() webrtc.TrackLocal { return s.track }

func (s *RTPSource) SetEnabled(enabled bool) { s.enabled.Store(enabled) }

func (s *RTPSource) Enabled() bool { return s.enabled.Load() }

func (s *RTPSource) Done() <-chan struct{} { return s.done }

// Stop releases the UDP listener. Safe to call more than once.
func (s *RTPSource) Stop() {
	s.once.Do(func() {
		close(s.done)
		s.conn.Close()
	})
}

// RTPDevices opens RTP-fed sources on configured local ports. An empty
// screen address means the deployment offers no screen capture, which
// surfaces as ErrCaptureDenied the same way a declined prompt would.
type RTPDevices struct {
	CameraAddr     string
	MicrophoneAddr string
	ScreenAddr     string
}

func (d RTPDevices) OpenCamera() (Source, error) {
	if d.CameraAddr == "" {
		return nil, ErrNoDevice
	}
	return NewRTPSource(KindCamera, webrtc.MimeTypeVP8, d.CameraAddr)
}

func (d RTPDevices) OpenMicrophone() (Source, error) {
	if d.MicrophoneAddr == "" {
		return nil, ErrNoDevice
	}
	return NewRTPSource(KindMicrophone, webrtc.MimeTypeOpus, d.MicrophoneAddr)
}

func (d RTPDevices) OpenScreen() (Source, error) {
	if d.ScreenAddr == "" {
		return nil, ErrCaptureDenied
	}
	return NewRTPSource(KindScreen, webrtc.MimeTypeVP8, d.ScreenAddr)
}
