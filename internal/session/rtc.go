package session

import (
	"github.com/pion/webrtc/v4"
)

// pionPeer adapts a pion PeerConnection to the Peer surface the link
// manager negotiates against.
type pionPeer struct {
	pc          *webrtc.PeerConnection
	videoSender *webrtc.RTPSender
	audioSender *webrtc.RTPSender
}

// NewPionPeerFactory returns a PeerFactory producing pion-backed peers
// configured with the given ICE servers. The outgoing tracks are read
// from the media controller at link-creation time so a link created
// mid-screen-share starts with the right video track.
func NewPionPeerFactory(cfg webrtc.Configuration, media *MediaController) PeerFactory {
	return func(remoteID string, events PeerEvents) (Peer, error) {
		pc, err := webrtc.NewPeerConnection(cfg)
		if err != nil {
			return nil, err
		}

		p := &pionPeer{pc: pc}

		if audio := media.AudioTrack(); audio != nil {
			sender, err := pc.AddTrack(audio)
			if err != nil {
				pc.Close()
				return nil, err
			}
			p.audioSender = sender
		}
		if video := media.VideoTrack(); video != nil {
			sender, err := pc.AddTrack(video)
			if err != nil {
				pc.Close()
				return nil, err
			}
			p.videoSender = sender
		}

		pc.OnICECandidate(func(c *webrtc.ICECandidate) {
			if c == nil {
				return
			}
			events.OnCandidate(c.ToJSON())
		})

		pc.OnConnectionStateChange(func(state webrtc.PeerConnectionState) {
			switch state {
			case webrtc.PeerConnectionStateConnected:
				events.OnConnected()
			case webrtc.PeerConnectionStateFailed:
				events.OnFailed(ErrNegotiationFailed)
			}
		})

		pc.OnTrack(func(track *webrtc.TrackRemote, _ *webrtc.RTPReceiver) {
			events.OnRemoteTrack(track)
		})

		return p, nil
	}
}

func (p *pionPeer) CreateOffer() (string, error) {
	offer, err := p.pc.CreateOffer(nil)
	if err != nil {
		return "", err
	}
	if err := p.pc.SetLocalDescription(offer); err != nil {
		return "", err
	}
	return p.pc.LocalDescription().SDP, nil
}

func (p *pionPeer) AcceptOffer(sdp string) (string, error) {
	offer := webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: sdp}
	if err := p.pc.SetRemoteDescription(offer); err != nil {
		return "", err
	}

	answer, err := p.pc.CreateAnswer(nil)
	if err != nil {
		return "", err
	}
	if err := p.pc.SetLocalDescription(answer); err != nil {
		return "", err
	}
	return p.pc.LocalDescription().SDP, nil
}

func (p *pionPeer) AcceptAnswer(sdp string) error {
	answer := webrtc.SessionDescription{Type: webrtc.SDPTypeAnswer, SDP: sdp}
	return p.pc.SetRemoteDescription(answer)
}

func (p *pionPeer) AddCandidate(c webrtc.ICECandidateInit) error {
	return p.pc.AddICECandidate(c)
}

func (p *pionPeer) ReplaceVideoTrack(t webrtc.TrackLocal) error {
	if p.videoSender == nil {
		return ErrTrackSubstitutionFailed
	}
	return p.videoSender.ReplaceTrack(t)
}

func (p *pionPeer) Close() error {
	return p.pc.Close()
}

// RTCConfiguration builds a pion configuration from STUN/TURN settings.
func RTCConfiguration(stunServers, turnServers []string, turnUser, turnPass string) webrtc.Configuration {
	iceServers := []webrtc.ICEServer{{URLs: stunServers}}
	if len(turnServers) > 0 {
		iceServers = append(iceServers, webrtc.ICEServer{
			URLs:       turnServers,
			Username:   turnUser,
			Credential: turnPass,
		})
	}
	return webrtc.Configuration{ICEServers: iceServers}
}
