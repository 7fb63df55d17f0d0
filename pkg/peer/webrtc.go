package peer

import (
	"github.com/pion/webrtc/v3"
	"github.com/sirupsen/logrus"
)

// Callbacks the peer fires as its connection progresses. They are invoked
// from pion's internal goroutines and must not block.
type Callbacks struct {
	// Called once the peer connection is established.
	OnConnected func()
	// Called for every locally gathered ICE candidate, to be trickled out.
	OnCandidate func(webrtc.ICECandidateInit)
	// Called when the peer starts publishing a new remote track.
	OnTrack func(*webrtc.TrackRemote)
}

// Installs the connection callbacks. Kept separate from construction so that
// the caller can finish assembling its handlers around the peer first.
func (p *Peer) On(callbacks Callbacks) {
	p.callbacks = callbacks
	p.conn.OnConnectionStateChange(p.onConnectionStateChanged)
	p.conn.OnICECandidate(p.onICECandidateGathered)
	p.conn.OnTrack(p.onRtpTrackReceived)
}

// A callback that is called once the state of the peer connection changes.
func (p *Peer) onConnectionStateChanged(state webrtc.PeerConnectionState) {
	p.logger.WithField("state", state).Debug("connection state changed")

	// Teardown is driven by the signal channel, not by ICE: a dropped
	// connection surfaces as a closed socket.
	if state == webrtc.PeerConnectionStateConnected {
		go p.callbacks.OnConnected()
	}
}

// A callback that is called once we receive an ICE candidate for this peer
// connection.
func (p *Peer) onICECandidateGathered(candidate *webrtc.ICECandidate) {
	if candidate == nil {
		p.logger.Debug("ICE candidate gathering finished")
		return
	}

	p.logger.WithField("candidate", candidate).Debug("ICE candidate gathered")
	p.callbacks.OnCandidate(candidate.ToJSON())
}

// A callback that is called once we receive first RTP packets from a track,
// i.e. each time the peer starts publishing a track.
func (p *Peer) onRtpTrackReceived(track *webrtc.TrackRemote, _ *webrtc.RTPReceiver) {
	p.logger.WithFields(logrus.Fields{
		"kind":   track.Kind(),
		"stream": track.StreamID(),
	}).Info("remote track received")

	p.callbacks.OnTrack(track)
}
