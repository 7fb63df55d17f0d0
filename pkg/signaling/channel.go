package signaling

import (
	"encoding/json"
	"errors"
	"io"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/brook-video/brook/pkg/channel"
)

// Transport is the subset of a WebSocket connection the signal channel needs.
// *websocket.Conn satisfies it; tests substitute their own.
type Transport interface {
	ReadMessage() (messageType int, data []byte, err error)
	WriteMessage(messageType int, data []byte) error
	Close() error
}

const sendQueueSize = 4

// Sender queues outgoing server messages for delivery over the transport.
type Sender struct {
	queue *channel.Sender[ServerMessage]
}

// Receiver reads and decodes incoming peer messages from the transport.
type Receiver struct {
	transport Transport
	logger    *logrus.Entry
}

// NewChannel wraps a transport into a signal channel. A writer goroutine owns
// all writes to the transport; encoding and write failures are reported to the
// error sink. The returned sender is safe for concurrent use.
func NewChannel(transport Transport, errors *channel.Sender[error], logger *logrus.Entry) (*Sender, *Receiver) {
	queueSender, queueReceiver := channel.New[ServerMessage](sendQueueSize)

	go func() {
		defer queueReceiver.Seal()

		for {
			message, ok := queueReceiver.Recv()
			if !ok {
				return
			}

			data, err := json.Marshal(message)
			if err != nil {
				channel.Report(errors, err)
				continue
			}

			if err := transport.WriteMessage(websocket.TextMessage, data); err != nil {
				channel.Report(errors, err)
				return
			}
		}
	}()

	sender := &Sender{queue: queueSender}
	receiver := &Receiver{transport: transport, logger: logger}

	return sender, receiver
}

// Send queues a message for delivery. It returns channel.ErrSealed once the
// channel is closed.
func (s *Sender) Send(message ServerMessage) error {
	return s.queue.Send(message)
}

// Close stops the writer goroutine. Messages already queued are still
// written before it stops.
func (s *Sender) Close() {
	s.queue.Seal()
}

// Recv blocks until the next peer message arrives. A nil message with a nil
// error means the peer closed the connection normally.
func (r *Receiver) Recv() (*PeerMessage, error) {
	for {
		messageType, data, err := r.transport.ReadMessage()
		if err != nil {
			if isNormalClose(err) {
				return nil, nil
			}
			return nil, err
		}

		if messageType != websocket.TextMessage {
			r.logger.Debug("ignoring non-text message")
			continue
		}

		return decodePeerMessage(data)
	}
}

func isNormalClose(err error) bool {
	if errors.Is(err, io.EOF) {
		return true
	}
	return websocket.IsCloseError(err,
		websocket.CloseNormalClosure,
		websocket.CloseGoingAway,
		websocket.CloseNoStatusReceived,
	)
}
