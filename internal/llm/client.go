// Package llm wraps the text-completion providers behind one narrow
// interface and owns API-key rotation and request rate limiting. The
// parsing core never talks to a provider SDK directly.
package llm

import (
	"context"
	"io"
)

// Stream yields the ordered text chunks of a live completion. Recv
// returns io.EOF when the stream terminates normally; any other error
// means the stream failed mid-flight.
type Stream interface {
	Recv() (string, error)
}

// Client is one completion provider. The API key is passed per call so
// the scheduler can rotate keys between attempts.
type Client interface {
	// Complete runs a blocking completion and returns the full text.
	Complete(ctx context.Context, apiKey, prompt string) (string, error)

	// CompleteStream starts a streaming completion. The returned Stream
	// is ready once the call returns; chunk delivery order is the
	// provider's emission order.
	CompleteStream(ctx context.Context, apiKey, prompt string) (Stream, error)
}

// chunkOrErr moves one stream element between the producer goroutine
// and Recv.
type chunkOrErr struct {
	text string
	err  error
}

// chanStream adapts a producer goroutine into the Stream interface.
type chanStream struct {
	ch chan chunkOrErr
}

func newChanStream() *chanStream {
	return &chanStream{ch: make(chan chunkOrErr, 8)}
}

func (s *chanStream) Recv() (string, error) {
	item, ok := <-s.ch
	if !ok {
		return "", io.EOF
	}
	return item.text, item.err
}

// send forwards one chunk unless the request context is gone, which
// means the consumer disconnected and no more chunks should be pulled.
func (s *chanStream) send(ctx context.Context, text string) bool {
	select {
	case s.ch <- chunkOrErr{text: text}:
		return true
	case <-ctx.Done():
		close(s.ch)
		return false
	}
}

// finish ends the stream normally; subsequent Recv calls return io.EOF.
func (s *chanStream) finish() {
	close(s.ch)
}

// fail delivers a terminal error, then ends the stream.
func (s *chanStream) fail(err error) {
	s.ch <- chunkOrErr{err: err}
	close(s.ch)
}
