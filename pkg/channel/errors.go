package channel

// Report forwards a non-nil error to the sink. An error that shows up after
// the sink is sealed is dropped; the session it belonged to is already gone.
func Report(sink *Sender[error], err error) {
	if err == nil {
		return
	}

	_ = sink.Send(err)
}

// Go runs fn on a new goroutine and reports its error, if any, to the sink.
func Go(sink *Sender[error], fn func() error) {
	go func() {
		Report(sink, fn())
	}()
}
