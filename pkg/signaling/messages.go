package signaling

import (
	"encoding/json"
	"errors"

	"github.com/pion/webrtc/v3"
)

// ErrUnknownMessage is returned when an incoming frame decodes to none of the
// known message variants.
var ErrUnknownMessage = errors.New("unknown signal message")

// PeerInfo is the roster entry for a single peer as seen by the others.
type PeerInfo struct {
	ID   uint32 `json:"id"`
	Name string `json:"name"`
}

// PeerMessage is a message sent by a peer over its signal channel. Exactly one
// field is set; the field determines the variant.
type PeerMessage struct {
	Offer     *string                  `json:"offer,omitempty"`
	Answer    *string                  `json:"answer,omitempty"`
	Candidate *webrtc.ICECandidateInit `json:"candidate,omitempty"`
	Name      *string                  `json:"name,omitempty"`
	PLI       *uint32                  `json:"pli,omitempty"`
}

// ServerMessage is a message sent to a peer over its signal channel. Exactly
// one field is set; the field determines the variant.
type ServerMessage struct {
	Offer      *string                  `json:"offer,omitempty"`
	Answer     *string                  `json:"answer,omitempty"`
	Candidate  *webrtc.ICECandidateInit `json:"candidate,omitempty"`
	ID         *uint32                  `json:"id,omitempty"`
	Peers      *[]PeerInfo              `json:"peers,omitempty"`
	PeerJoined *PeerInfo                `json:"peerJoined,omitempty"`
	PeerLeft   *uint32                  `json:"peerLeft,omitempty"`
}

// OfferMessage wraps a session description offer.
func OfferMessage(sdp string) ServerMessage {
	return ServerMessage{Offer: &sdp}
}

// AnswerMessage wraps a session description answer.
func AnswerMessage(sdp string) ServerMessage {
	return ServerMessage{Answer: &sdp}
}

// CandidateMessage wraps a trickled ICE candidate.
func CandidateMessage(candidate webrtc.ICECandidateInit) ServerMessage {
	return ServerMessage{Candidate: &candidate}
}

// IDMessage tells a peer the ID the server assigned to it.
func IDMessage(id uint32) ServerMessage {
	return ServerMessage{ID: &id}
}

// PeersMessage wraps the current roster. A nil slice is sent as an empty
// array, not null.
func PeersMessage(peers []PeerInfo) ServerMessage {
	if peers == nil {
		peers = []PeerInfo{}
	}
	return ServerMessage{Peers: &peers}
}

// PeerJoinedMessage announces a newly joined peer.
func PeerJoinedMessage(peer PeerInfo) ServerMessage {
	return ServerMessage{PeerJoined: &peer}
}

// PeerLeftMessage announces that a peer left the room.
func PeerLeftMessage(id uint32) ServerMessage {
	return ServerMessage{PeerLeft: &id}
}

func decodePeerMessage(data []byte) (*PeerMessage, error) {
	var message PeerMessage
	if err := json.Unmarshal(data, &message); err != nil {
		return nil, err
	}

	if message.Offer == nil && message.Answer == nil && message.Candidate == nil &&
		message.Name == nil && message.PLI == nil {
		return nil, ErrUnknownMessage
	}

	return &message, nil
}
