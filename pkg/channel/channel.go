package channel

import (
	"errors"
	"sync/atomic"
)

// ErrSealed is returned by Send once the channel has been sealed.
var ErrSealed = errors.New("channel is sealed")

// New creates a bounded channel and returns its two counterparts, one that
// can only send and one that can only receive. Unlike a plain Go channel,
// either side can seal it: a sender blocked on a full queue unblocks with an
// error instead of waiting on a consumer that is gone, and a draining
// receiver gets a definite end of stream once the leftovers are consumed.
func New[M any](capacity int) (*Sender[M], *Receiver[M]) {
	messages := make(chan M, capacity)
	sealed := make(chan struct{})
	alreadySealed := &atomic.Bool{}
	sender := &Sender[M]{messages, sealed, alreadySealed}
	receiver := &Receiver[M]{messages, sealed, alreadySealed}
	return sender, receiver
}

// Sender is the sending counterpart of a channel.
type Sender[M any] struct {
	messages      chan M
	sealed        chan struct{}
	alreadySealed *atomic.Bool
}

// Send enqueues a message, blocking while the channel is full. Returns
// ErrSealed once the channel is sealed. A sender that was already blocked on
// a full channel when the seal happened may still deliver its message if the
// receiver keeps draining; there is no guarantee which of the two wins.
func (s *Sender[M]) Send(message M) error {
	if s.alreadySealed.Load() {
		return ErrSealed
	}

	select {
	case <-s.sealed:
		return ErrSealed
	case s.messages <- message:
		return nil
	}
}

// Seal marks the channel as sealed from the sending side, telling the
// receiver that nothing more is coming.
func (s *Sender[M]) Seal() {
	seal(s.sealed, s.alreadySealed)
}

// Receiver is the receiving counterpart of a channel.
type Receiver[M any] struct {
	messages      chan M
	sealed        chan struct{}
	alreadySealed *atomic.Bool
}

// Recv blocks until a message is available or the channel is sealed and
// drained. The second return value is false only in the latter case.
func (r *Receiver[M]) Recv() (M, bool) {
	select {
	case message := <-r.messages:
		return message, true
	default:
	}

	select {
	case message := <-r.messages:
		return message, true
	case <-r.sealed:
	}

	// Sealed. Consume the leftovers before reporting the end of the stream.
	select {
	case message := <-r.messages:
		return message, true
	default:
		var nothing M
		return nothing, false
	}
}

// Seal marks the channel as sealed from the receiving side. Senders fail
// instead of blocking from here on.
func (r *Receiver[M]) Seal() {
	seal(r.sealed, r.alreadySealed)
}

func seal(sealed chan struct{}, alreadySealed *atomic.Bool) {
	if alreadySealed.CompareAndSwap(false, true) {
		close(sealed)
	}
}
