package peer

import (
	"errors"
	"fmt"
	"strings"

	"github.com/pion/rtcp"
	"github.com/pion/webrtc/v3"
	"github.com/sirupsen/logrus"

	"github.com/brook-video/brook/pkg/signaling"
	"github.com/brook-video/brook/pkg/webrtc_ext"
)

var (
	ErrCantCreatePeerConnection = errors.New("can't create peer connection")
	ErrCantSetRemoteDescription = errors.New("can't set remote description")
	ErrCantCreateOffer          = errors.New("can't create offer")
	ErrCantCreateAnswer         = errors.New("can't create answer")
	ErrCantSetLocalDescription  = errors.New("can't set local description")
	ErrCantAddCandidate         = errors.New("can't add ICE candidate")
	ErrCantAddTransceiver       = errors.New("can't add transceiver")
	ErrCantStopTransceiver      = errors.New("can't stop transceiver")
	ErrCantWriteRTCP            = errors.New("can't write RTCP")
	ErrCantCreateLocalTrack     = errors.New("can't create local track")
	ErrCantForwardRTP           = errors.New("can't forward RTP")
)

// A wrapped representation of the peer connection (single peer in the room).
// The peer gets information about the things happening outside via public
// methods and informs the outside world through the callbacks installed
// with On. All methods that touch negotiation or track state expect to be
// called under the room lock.
type Peer struct {
	id     uint32
	logger *logrus.Entry
	signal *signaling.Sender
	conn   *webrtc.PeerConnection

	callbacks Callbacks

	name  *string
	audio *MediaTrack
	video *MediaTrack

	// Remote candidates that arrived before the remote description.
	pendingCandidates []webrtc.ICECandidateInit
}

// Instantiates a new peer and announces its ID over the signal channel. The
// caller is expected to install the callbacks with On before negotiation
// starts.
func NewPeer(
	factory *webrtc_ext.PeerConnectionFactory,
	id uint32,
	roomID uint32,
	signal *signaling.Sender,
) (*Peer, error) {
	logger := logrus.WithFields(logrus.Fields{"room": roomID, "peer": id})

	conn, err := factory.CreatePeerConnection()
	if err != nil {
		logger.WithError(err).Error("failed to create peer connection")
		return nil, ErrCantCreatePeerConnection
	}

	peer := &Peer{
		id:     id,
		logger: logger,
		signal: signal,
		conn:   conn,
	}

	// The first message on a fresh signal channel tells the peer its ID.
	if err := peer.SendMessage(signaling.IDMessage(id)); err != nil {
		if closeErr := conn.Close(); closeErr != nil {
			logger.WithError(closeErr).Error("failed to close peer connection")
		}
		return nil, err
	}

	return peer, nil
}

func (p *Peer) ID() uint32 {
	return p.id
}

// Reports whether the underlying connection is established.
func (p *Peer) Connected() bool {
	return p.conn.ConnectionState() == webrtc.PeerConnectionStateConnected
}

func (p *Peer) Name() (string, bool) {
	if p.name == nil {
		return "", false
	}
	return *p.name, true
}

func (p *Peer) SetName(name string) {
	p.name = &name
}

// Remembers a track the peer publishes, so that it can be fanned out to the
// other peers in the room.
func (p *Peer) SetTrack(track Track) {
	switch track.Kind {
	case webrtc.RTPCodecTypeAudio:
		p.audio = &track.MediaTrack
	case webrtc.RTPCodecTypeVideo:
		p.video = &track.MediaTrack
	}
}

// Reports whether the peer publishes both of its expected tracks.
func (p *Peer) HasAudioAndVideo() bool {
	return p.audio != nil && p.video != nil
}

// Returns the forwarding tracks this peer publishes, video first.
func (p *Peer) Tracks() []*webrtc.TrackLocalStaticRTP {
	tracks := make([]*webrtc.TrackLocalStaticRTP, 0, 2)
	if p.video != nil {
		tracks = append(tracks, p.video.Local)
	}
	if p.audio != nil {
		tracks = append(tracks, p.audio.Local)
	}
	return tracks
}

// Tries to send the given message to the remote counterpart of our peer.
func (p *Peer) SendMessage(message signaling.ServerMessage) error {
	return p.signal.Send(message)
}

// Asks the remote peer to send us the given kind of media.
func (p *Peer) AddRecvonlyTransceiver(kind webrtc.RTPCodecType) error {
	_, err := p.conn.AddTransceiverFromKind(kind, webrtc.RTPTransceiverInit{
		Direction: webrtc.RTPTransceiverDirectionRecvonly,
	})
	if err != nil {
		p.logger.WithError(err).Error("failed to add recvonly transceiver")
		return ErrCantAddTransceiver
	}

	return nil
}

// Starts sending the given forwarding track to the remote peer.
func (p *Peer) AddSendonlyTransceiver(track *webrtc.TrackLocalStaticRTP) error {
	_, err := p.conn.AddTransceiverFromTrack(track, webrtc.RTPTransceiverInit{
		Direction: webrtc.RTPTransceiverDirectionSendonly,
	})
	if err != nil {
		p.logger.WithError(err).Error("failed to add sendonly transceiver")
		return ErrCantAddTransceiver
	}

	return nil
}

// Stops the transceivers over which the tracks of the given peer were sent
// to us, typically because that peer has left.
func (p *Peer) StopTransceivers(peerID uint32) error {
	for _, transceiver := range p.sendingTransceivers(peerID) {
		if err := transceiver.Stop(); err != nil {
			p.logger.WithError(err).Error("failed to stop transceiver")
			return ErrCantStopTransceiver
		}
	}

	return nil
}

// Forwarding track IDs start with the publisher's ID followed by a hyphen,
// so the tracks of peer 7 never match those of peer 70.
func (p *Peer) sendingTransceivers(peerID uint32) []*webrtc.RTPTransceiver {
	prefix := fmt.Sprintf("%d-", peerID)

	var matched []*webrtc.RTPTransceiver
	for _, transceiver := range p.conn.GetTransceivers() {
		sender := transceiver.Sender()
		if sender == nil || sender.Track() == nil {
			continue
		}
		if strings.HasPrefix(sender.Track().ID(), prefix) {
			matched = append(matched, transceiver)
		}
	}

	return matched
}

// Creates an offer, applies it locally and sends it to the peer.
func (p *Peer) SendOffer() error {
	offer, err := p.conn.CreateOffer(nil)
	if err != nil {
		p.logger.WithError(err).Error("failed to create offer")
		return ErrCantCreateOffer
	}

	if err := p.conn.SetLocalDescription(offer); err != nil {
		p.logger.WithError(err).Error("failed to set local description")
		return ErrCantSetLocalDescription
	}

	return p.SendMessage(signaling.OfferMessage(offer.SDP))
}

// Applies an offer received from the peer and replies with an answer. If our
// own offer is still in flight, the incoming offer is dropped; the peer picks
// up any changes with the next negotiation round.
func (p *Peer) RecvOffer(sdp string) error {
	if p.conn.SignalingState() != webrtc.SignalingStateStable {
		p.logger.Debug("signaling state not stable, dropping offer")
		return nil
	}

	offer := webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: sdp}
	if err := p.setRemoteDescription(offer); err != nil {
		return err
	}

	answer, err := p.conn.CreateAnswer(nil)
	if err != nil {
		p.logger.WithError(err).Error("failed to create answer")
		return ErrCantCreateAnswer
	}

	if err := p.conn.SetLocalDescription(answer); err != nil {
		p.logger.WithError(err).Error("failed to set local description")
		return ErrCantSetLocalDescription
	}

	return p.SendMessage(signaling.AnswerMessage(answer.SDP))
}

// Applies the answer to the offer we sent earlier.
func (p *Peer) RecvAnswer(sdp string) error {
	return p.setRemoteDescription(webrtc.SessionDescription{Type: webrtc.SDPTypeAnswer, SDP: sdp})
}

func (p *Peer) setRemoteDescription(description webrtc.SessionDescription) error {
	if err := p.conn.SetRemoteDescription(description); err != nil {
		p.logger.WithError(err).Error("failed to set remote description")
		return ErrCantSetRemoteDescription
	}

	// Candidates that raced ahead of the description are applied now, in
	// arrival order.
	for _, candidate := range p.pendingCandidates {
		if err := p.conn.AddICECandidate(candidate); err != nil {
			p.logger.WithError(err).Error("failed to add ICE candidate")
			return ErrCantAddCandidate
		}
	}
	p.pendingCandidates = nil

	return nil
}

// Adds a remote ICE candidate. Candidates arriving before the remote
// description are buffered until it is set.
func (p *Peer) AddCandidate(candidate webrtc.ICECandidateInit) error {
	if p.conn.RemoteDescription() == nil {
		p.pendingCandidates = append(p.pendingCandidates, candidate)
		return nil
	}

	if err := p.conn.AddICECandidate(candidate); err != nil {
		p.logger.WithError(err).Error("failed to add ICE candidate")
		return ErrCantAddCandidate
	}

	return nil
}

// Asks the peer for a keyframe on its published video track. A no-op until
// the peer publishes video.
func (p *Peer) SendPLI() error {
	if p.video == nil {
		return nil
	}

	packets := []rtcp.Packet{&rtcp.PictureLossIndication{MediaSSRC: p.video.SSRC}}
	if err := p.conn.WriteRTCP(packets); err != nil {
		p.logger.WithError(err).Error("failed to send RTCP PLI")
		return ErrCantWriteRTCP
	}

	return nil
}

// Closes the peer connection. From this moment on, no media flows through
// the peer.
func (p *Peer) Close() error {
	return p.conn.Close()
}
