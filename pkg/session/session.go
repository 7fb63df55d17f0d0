package session

import (
	"github.com/pion/webrtc/v3"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"

	"github.com/brook-video/brook/pkg/peer"
	"github.com/brook-video/brook/pkg/room"
	"github.com/brook-video/brook/pkg/signaling"
	"github.com/brook-video/brook/pkg/telemetry"
	"github.com/brook-video/brook/pkg/webrtc_ext"
)

// Session ties one signaling connection to its peer and room. It is a cheap
// handle shared by all tasks of the connection; every handler takes the room
// lock for the whole compound operation, so the room never changes
// mid-flight.
type Session struct {
	rooms     *room.Registry
	code      string
	room      *room.Room
	peer      *peer.Peer
	logger    *logrus.Entry
	telemetry *telemetry.Telemetry
}

// NewSession joins the room registered under the given code: the peer is
// created, equipped to receive video and audio, and subscribed to every
// track the room already carries. Its offer is sent later, once the
// connection is established.
func NewSession(
	rooms *room.Registry,
	factory *webrtc_ext.PeerConnectionFactory,
	code string,
	signal *signaling.Sender,
) (*Session, error) {
	r := rooms.GetRoom(code)

	session, err := join(rooms, r, factory, code, signal)
	if err != nil {
		// A failed join may leave a peerless room behind.
		if r.PeerCount() == 0 {
			rooms.RemoveRoom(code)
		}
		return nil, err
	}

	return session, nil
}

// The locked portion of the join handshake.
func join(
	rooms *room.Registry,
	r *room.Room,
	factory *webrtc_ext.PeerConnectionFactory,
	code string,
	signal *signaling.Sender,
) (*Session, error) {
	r.Lock()
	defer r.Unlock()

	p, err := r.AddPeer(factory, signal)
	if err != nil {
		return nil, err
	}

	session := &Session{
		rooms:     rooms,
		code:      code,
		room:      r,
		peer:      p,
		logger:    logrus.WithFields(logrus.Fields{"room": r.ID(), "peer": p.ID()}),
		telemetry: r.Telemetry().CreateChild("session", attribute.Int64("peer", int64(p.ID()))),
	}

	for _, kind := range []webrtc.RTPCodecType{webrtc.RTPCodecTypeVideo, webrtc.RTPCodecTypeAudio} {
		if err := p.AddRecvonlyTransceiver(kind); err != nil {
			session.evict(err)
			return nil, err
		}
	}

	if err := r.AddOtherPeersTracks(p); err != nil {
		session.evict(err)
		return nil, err
	}

	return session, nil
}

// Removes a peer that failed to finish joining. The room lock is already
// held here.
func (s *Session) evict(reason error) {
	s.telemetry.Fail(reason)
	s.telemetry.End()

	if _, err := s.room.HandlePeerLeave(s.peer.ID()); err != nil {
		s.logger.WithError(err).Warn("failed to clean up after failed join")
	}
}

func (s *Session) PeerID() uint32 {
	return s.peer.ID()
}

// On installs the peer connection callbacks.
func (s *Session) On(callbacks peer.Callbacks) {
	s.peer.On(callbacks)
}

// HandleConnected runs once the peer connection is established: the peer
// gets the server's offer and the current roster, and, if it has already
// named itself, the others get the join announcement.
func (s *Session) HandleConnected() error {
	s.room.Lock()
	defer s.room.Unlock()

	s.logger.Info("peer connected")
	s.telemetry.AddEvent("connected")

	peers := s.room.PeersFor(s.peer)
	if err := s.peer.SendOffer(); err != nil {
		return err
	}
	if err := s.peer.SendMessage(signaling.PeersMessage(peers)); err != nil {
		return err
	}

	return s.room.SendJoinedPeer(s.peer)
}

// HandleMessage dispatches one decoded message from the peer.
func (s *Session) HandleMessage(message *signaling.PeerMessage) error {
	s.room.Lock()
	defer s.room.Unlock()

	switch {
	case message.Offer != nil:
		return s.peer.RecvOffer(*message.Offer)
	case message.Answer != nil:
		return s.peer.RecvAnswer(*message.Answer)
	case message.Candidate != nil:
		return s.peer.AddCandidate(*message.Candidate)
	case message.Name != nil:
		s.peer.SetName(*message.Name)
		return nil
	case message.PLI != nil:
		return s.room.SendPLI(*message.PLI)
	}

	return signaling.ErrUnknownMessage
}

// HandleTrack fans a freshly published track out to everyone else in the
// room. The consumers renegotiate once the publisher has announced both of
// its tracks.
func (s *Session) HandleTrack(track peer.Track) error {
	s.room.Lock()
	defer s.room.Unlock()

	s.peer.SetTrack(track)
	s.telemetry.AddEvent("track published", attribute.String("track", track.Local.ID()))
	sendOffer := s.peer.HasAudioAndVideo()

	return s.room.AddPeerTrackToOthers(s.peer.ID(), track.Local, sendOffer)
}

// Leave removes the peer from its room and drops the room once the last
// peer is gone. Safe to call repeatedly and from multiple tasks.
func (s *Session) Leave() error {
	s.room.Lock()
	left, err := s.room.HandlePeerLeave(s.peer.ID())
	empty := s.room.Empty()
	s.room.Unlock()

	if left {
		s.telemetry.End()
		if empty {
			s.rooms.RemoveRoom(s.code)
		}
	}

	return err
}
