package room

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/pion/webrtc/v3"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/exp/slices"

	"github.com/brook-video/brook/pkg/peer"
	"github.com/brook-video/brook/pkg/signaling"
	"github.com/brook-video/brook/pkg/telemetry"
	"github.com/brook-video/brook/pkg/webrtc_ext"
)

// A single room. Peers sharing a room code see and hear each other.
//
// The room lock must be held across every operation below except Lock,
// Unlock and PeerCount; sessions keep it across each compound operation so
// that the peer list and peer state never change mid-flight.
type Room struct {
	mu sync.Mutex

	id    uint32
	code  string
	peers []*peer.Peer

	// Shared with the registry, so peer IDs are unique across rooms.
	nextPeerID *atomic.Uint32

	logger    *logrus.Entry
	telemetry *telemetry.Telemetry
}

func newRoom(id uint32, code string, nextPeerID *atomic.Uint32) *Room {
	return &Room{
		id:         id,
		code:       code,
		nextPeerID: nextPeerID,
		logger:     logrus.WithFields(logrus.Fields{"room": id, "code": code}),
		telemetry: telemetry.NewTelemetry(
			context.Background(),
			"room",
			attribute.Int64("id", int64(id)),
			attribute.String("code", code),
		),
	}
}

func (r *Room) Lock()   { r.mu.Lock() }
func (r *Room) Unlock() { r.mu.Unlock() }

func (r *Room) ID() uint32   { return r.id }
func (r *Room) Code() string { return r.code }

// Telemetry exposes the room span so that sessions can hang their own
// spans off it.
func (r *Room) Telemetry() *telemetry.Telemetry { return r.telemetry }

// Empty reports whether the last peer has left.
func (r *Room) Empty() bool {
	return len(r.peers) == 0
}

// PeerCount locks on its own, it serves the metrics endpoint rather than
// the session flow.
func (r *Room) PeerCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.peers)
}

// AddPeer creates a peer for a freshly accepted connection and adds it to
// the room.
func (r *Room) AddPeer(factory *webrtc_ext.PeerConnectionFactory, signal *signaling.Sender) (*peer.Peer, error) {
	id := r.nextPeerID.Add(1)

	p, err := peer.NewPeer(factory, id, r.id, signal)
	if err != nil {
		return nil, err
	}

	r.peers = append(r.peers, p)
	r.logger.WithField("peer", id).Info("peer joined")
	r.telemetry.AddEvent("peer joined")

	return p, nil
}

// GetPeer looks a peer up by its ID.
func (r *Room) GetPeer(id uint32) *peer.Peer {
	index := slices.IndexFunc(r.peers, func(p *peer.Peer) bool { return p.ID() == id })
	if index == -1 {
		r.logger.Errorf("Bug: peer %d is not in the room", id)
		return nil
	}

	return r.peers[index]
}

// AddOtherPeersTracks subscribes a newly joined peer to every track the
// other peers already publish. Runs before the joiner's first offer, so
// that offer already advertises the existing tracks.
func (r *Room) AddOtherPeersTracks(target *peer.Peer) error {
	for _, other := range r.peers {
		if other.ID() == target.ID() {
			continue
		}
		for _, track := range other.Tracks() {
			if err := target.AddSendonlyTransceiver(track); err != nil {
				return err
			}
		}
	}

	return nil
}

// AddPeerTrackToOthers fans a peer's new track out to everyone else.
// Renegotiation is batched: sendOffer is true only once the publisher has
// announced both of its tracks, so each consumer renegotiates once instead
// of twice.
func (r *Room) AddPeerTrackToOthers(peerID uint32, track *webrtc.TrackLocalStaticRTP, sendOffer bool) error {
	for _, other := range r.peers {
		if other.ID() == peerID {
			continue
		}
		if err := other.AddSendonlyTransceiver(track); err != nil {
			return err
		}
		if sendOffer {
			if err := other.SendOffer(); err != nil {
				return err
			}
		}
	}

	return nil
}

// PeersFor returns the roster the given peer should see: every other peer
// that is connected and has named itself.
func (r *Room) PeersFor(target *peer.Peer) []signaling.PeerInfo {
	peers := []signaling.PeerInfo{}
	for _, p := range r.peers {
		if p.ID() == target.ID() || !p.Connected() {
			continue
		}
		name, ok := p.Name()
		if !ok {
			continue
		}
		peers = append(peers, signaling.PeerInfo{ID: p.ID(), Name: name})
	}

	return peers
}

// SendJoinedPeer announces a freshly connected peer to everyone else. A
// no-op until the peer has named itself.
func (r *Room) SendJoinedPeer(joined *peer.Peer) error {
	name, ok := joined.Name()
	if !ok {
		return nil
	}

	info := signaling.PeerInfo{ID: joined.ID(), Name: name}
	for _, other := range r.peers {
		if other.ID() == joined.ID() {
			continue
		}
		if err := other.SendMessage(signaling.PeerJoinedMessage(info)); err != nil {
			return err
		}
	}

	return nil
}

// SendPLI asks the identified peer for a keyframe. Unknown IDs are ignored,
// the requester may be racing a leave.
func (r *Room) SendPLI(peerID uint32) error {
	index := slices.IndexFunc(r.peers, func(p *peer.Peer) bool { return p.ID() == peerID })
	if index == -1 {
		r.logger.WithField("peer", peerID).Debug("pli for unknown peer")
		return nil
	}

	return r.peers[index].SendPLI()
}

// HandlePeerLeave removes the peer and walks the remaining peers through
// the leave protocol: announce the departure, detach the leaver's tracks,
// renegotiate. Unknown IDs return false, which makes leave idempotent. The
// broadcast continues past individual failures so a single broken peer
// cannot hold up the cleanup of the others; the first error is returned.
func (r *Room) HandlePeerLeave(id uint32) (bool, error) {
	index := slices.IndexFunc(r.peers, func(p *peer.Peer) bool { return p.ID() == id })
	if index == -1 {
		return false, nil
	}

	leaver := r.peers[index]

	// Swap-remove, the peer order carries no meaning.
	r.peers[index] = r.peers[len(r.peers)-1]
	r.peers = r.peers[:len(r.peers)-1]

	if err := leaver.Close(); err != nil {
		r.logger.WithError(err).Warn("failed to close peer connection")
	}

	r.logger.WithField("peer", id).Info("peer left")
	r.telemetry.AddEvent("peer left")

	var firstErr error
	for _, other := range r.peers {
		if err := other.SendMessage(signaling.PeerLeftMessage(id)); err != nil && firstErr == nil {
			firstErr = err
		}
		if err := other.StopTransceivers(id); err != nil && firstErr == nil {
			firstErr = err
		}
		if err := other.SendOffer(); err != nil && firstErr == nil {
			firstErr = err
		}
	}

	return true, firstErr
}
