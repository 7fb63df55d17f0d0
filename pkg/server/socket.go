package server

import (
	"github.com/gorilla/websocket"
	"github.com/pion/webrtc/v3"
	"github.com/sirupsen/logrus"

	"github.com/brook-video/brook/pkg/channel"
	"github.com/brook-video/brook/pkg/peer"
	"github.com/brook-video/brook/pkg/session"
	"github.com/brook-video/brook/pkg/signaling"
)

const errorQueueSize = 4

// handleSocket owns one signaling connection from upgrade to teardown. The
// reader loop runs right here; the writer, the error drain and the track
// drain get goroutines of their own.
func (s *Server) handleSocket(conn *websocket.Conn, code string) {
	logger := logrus.WithField("code", code)

	errSender, errReceiver := channel.New[error](errorQueueSize)
	signalSender, signalReceiver := signaling.NewChannel(conn, errSender, logger)

	sess, err := session.NewSession(s.rooms, s.factory, code, signalSender)
	if err != nil {
		logger.WithError(err).Error("failed to create session")
		signalSender.Close()
		conn.Close()
		return
	}
	s.peersJoined.Inc()

	logger = logger.WithField("peer", sess.PeerID())
	logger.Info("connection established")

	trackSender, trackReceiver := peer.NewTrackChannel(sess.PeerID(), errSender, logger)

	sess.On(peer.Callbacks{
		OnConnected: func() {
			// The peer already spawned a goroutine for us, no need for
			// another one.
			channel.Report(errSender, sess.HandleConnected())
		},
		OnCandidate: func(candidate webrtc.ICECandidateInit) {
			channel.Report(errSender, signalSender.Send(signaling.CandidateMessage(candidate)))
		},
		OnTrack: trackSender.Send,
	})

	// Every task failure lands in the error sink. The first one tears the
	// session down; the rest are only logged.
	go func() {
		left := false
		for {
			taskErr, ok := errReceiver.Recv()
			if !ok {
				return
			}
			logger.WithError(taskErr).Error("session task failed")
			if !left {
				left = true
				if err := sess.Leave(); err != nil {
					logger.WithError(err).Warn("failed to leave after error")
				}
			}
		}
	}()

	// Announced tracks go through the session, which fans them out to the
	// rest of the room.
	channel.Go(errSender, func() error {
		for {
			track, ok := trackReceiver.Recv()
			if !ok {
				return nil
			}
			if err := sess.HandleTrack(track); err != nil {
				return err
			}
			s.tracksForwarded.Inc()
		}
	})

	for {
		message, err := signalReceiver.Recv()
		if err != nil {
			channel.Report(errSender, err)
			break
		}
		if message == nil {
			logger.Debug("signal channel closed by peer")
			break
		}
		if err := sess.HandleMessage(message); err != nil {
			channel.Report(errSender, err)
			break
		}
	}

	if err := sess.Leave(); err != nil {
		logger.WithError(err).Warn("failed to leave room")
	}

	signalSender.Close()
	trackReceiver.Seal()
	errReceiver.Seal()

	if err := conn.Close(); err != nil {
		logger.WithError(err).Debug("failed to close connection")
	}

	logger.Info("connection closed")
}
