// Package dispatch splits long messages into bounded chunks and delivers them in order.
package dispatch

import (
	"context"
	"fmt"

	"github.com/go-pkgz/lgr"

	"github.com/umputun/newsrelay/pkg/domain"
)

//go:generate moq -out mocks/sink.go -pkg mocks -skip-ensure -fmt goimports . Sink

// MaxChunkLen is the largest chunk, in characters, a sink accepts
const MaxChunkLen = 4000

// Sink delivers a single formatted message to the destination
type Sink interface {
	Send(ctx context.Context, destination, text string) error
}

// Dispatcher sends messages through a Sink, chunk by chunk
type Dispatcher struct {
	sink        Sink
	destination string
	maxLen      int
}

// New makes a dispatcher for destination. maxLen outside of (0, MaxChunkLen] is reset to MaxChunkLen.
func New(sink Sink, destination string, maxLen int) *Dispatcher {
	if maxLen <= 0 || maxLen > MaxChunkLen {
		maxLen = MaxChunkLen
	}
	return &Dispatcher{sink: sink, destination: destination, maxLen: maxLen}
}

// Dispatch splits message and sends chunks strictly one after another. On the first failure
// it stops and returns *domain.DeliveryError with the number of chunks already sent.
// Sent chunks are never retracted. Empty message sends nothing.
func (d *Dispatcher) Dispatch(ctx context.Context, message string) (sent int, err error) {
	chunks := Split(message, d.maxLen)
	for i, chunk := range chunks {
		if err := d.sink.Send(ctx, d.destination, chunk); err != nil {
			return sent, &domain.DeliveryError{Sent: sent, Total: len(chunks), Err: fmt.Errorf("send chunk %d: %w", i+1, err)}
		}
		sent++
		lgr.Printf("[DEBUG] chunk %d/%d sent to %s, %d chars", i+1, len(chunks), d.destination, len([]rune(chunk)))
	}
	return sent, nil
}

// Split cuts message into consecutive segments of at most maxLen characters (runes).
// All segments except the last one are exactly maxLen long; joined in order they
// reproduce message. Empty message gives no segments.
func Split(message string, maxLen int) []string {
	if message == "" {
		return nil
	}
	if maxLen <= 0 {
		return []string{message}
	}

	res := make([]string, 0, len(message)/maxLen+1)
	start, count := 0, 0
	for pos := range message {
		if count == maxLen {
			res = append(res, message[start:pos])
			start, count = pos, 0
		}
		count++
	}
	return append(res, message[start:])
}
