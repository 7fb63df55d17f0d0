package peer

import (
	"errors"
	"fmt"
	"io"

	"github.com/pion/webrtc/v3"
	"github.com/sirupsen/logrus"

	"github.com/brook-video/brook/pkg/channel"
)

const trackQueueSize = 2

// MediaTrack is the fan-out side of one published track: the local track the
// other peers subscribe to, plus the SSRC of the remote track feeding it.
type MediaTrack struct {
	Local *webrtc.TrackLocalStaticRTP
	SSRC  uint32
}

// Track announces one published track, emitted once forwarding starts.
type Track struct {
	MediaTrack
	Kind webrtc.RTPCodecType
}

// TrackSender turns remote tracks into local forwarding tracks and announces
// them over the track channel.
type TrackSender struct {
	peerID uint32
	queue  *channel.Sender[Track]
	errors *channel.Sender[error]
	logger *logrus.Entry
}

// NewTrackChannel creates the channel over which a peer announces the tracks
// it publishes.
func NewTrackChannel(
	peerID uint32,
	errors *channel.Sender[error],
	logger *logrus.Entry,
) (*TrackSender, *channel.Receiver[Track]) {
	queueSender, queueReceiver := channel.New[Track](trackQueueSize)

	sender := &TrackSender{
		peerID: peerID,
		queue:  queueSender,
		errors: errors,
		logger: logger,
	}

	return sender, queueReceiver
}

// Send creates the forwarding track for a freshly received remote track,
// announces it and starts pumping RTP into it.
func (s *TrackSender) Send(remote *webrtc.TrackRemote) {
	local, err := newForwardingTrack(s.peerID, remote.Kind(), remote.Codec().RTPCodecCapability, remote.StreamID())
	if err != nil {
		s.logger.WithError(err).Error("failed to create local track")
		channel.Report(s.errors, ErrCantCreateLocalTrack)
		return
	}

	track := Track{
		MediaTrack: MediaTrack{Local: local, SSRC: uint32(remote.SSRC())},
		Kind:       remote.Kind(),
	}

	if err := s.queue.Send(track); err != nil {
		// The session is already gone, nobody is interested in the track.
		return
	}

	go s.forward(remote, local)
}

// Copies RTP from the remote track to the local one until the remote side
// stops sending.
func (s *TrackSender) forward(remote *webrtc.TrackRemote, local *webrtc.TrackLocalStaticRTP) {
	for {
		packet, _, err := remote.ReadRTP()
		if err != nil {
			s.logger.WithError(err).Debug("remote track ended")
			return
		}

		// ErrClosedPipe means we don't have any subscribers, this is ok if no
		// other peers have connected yet.
		if err := local.WriteRTP(packet); err != nil && !errors.Is(err, io.ErrClosedPipe) {
			s.logger.WithError(err).Error("failed to write to local track")
			channel.Report(s.errors, ErrCantForwardRTP)
			return
		}
	}
}

// Forwarding track IDs follow the "{peer}-{kind}" convention that the
// unsubscription logic relies on.
func newForwardingTrack(
	peerID uint32,
	kind webrtc.RTPCodecType,
	capability webrtc.RTPCodecCapability,
	streamID string,
) (*webrtc.TrackLocalStaticRTP, error) {
	return webrtc.NewTrackLocalStaticRTP(capability, fmt.Sprintf("%d-%s", peerID, kind), streamID)
}
