package mux

import (
	"context"
	"io"
)

// handle is the connection's side of a Channel. The backlog is only
// touched by the goroutine pumping the connection.
type handle struct {
	in  chan []byte // connection -> application
	out chan []byte // application -> connection

	backlog      [][]byte
	backlogBytes int
}

// enqueue appends data to the backlog unless that would exceed limit bytes.
// An empty backlog always accepts one payload.
func (h *handle) enqueue(data []byte, limit int) bool {
	if len(h.backlog) > 0 && h.backlogBytes+len(data) > limit {
		return false
	}
	h.backlog = append(h.backlog, data)
	h.backlogBytes += len(data)
	return true
}

// deliver hands backlog payloads, oldest first, to a reader that is
// already waiting. It never blocks.
func (h *handle) deliver() {
	for len(h.backlog) > 0 {
		select {
		case h.in <- h.backlog[0]:
			h.backlogBytes -= len(h.backlog[0])
			h.backlog[0] = nil
			h.backlog = h.backlog[1:]
		default:
			return
		}
	}
}

// Channel is an application endpoint bound to one channel id. It never
// touches the transport: Read and Write block until the connection owner's
// ChannelLoop hands data over. Both queues are unbuffered.
//
// A Channel may be used from a different goroutine than the one driving the
// connection, but Read and Recv must not be called concurrently with each
// other.
type Channel struct {
	id   ChannelID
	in   <-chan []byte
	out  chan<- []byte
	done <-chan struct{}

	// rest is the unread part of the last payload taken by Read.
	rest []byte
}

// ID returns the channel id the handle is bound to.
func (c *Channel) ID() ChannelID { return c.id }

// Read blocks until a payload arrives and copies it into p. Bytes that do
// not fit are kept for the next Read. After the connection is closed and
// nothing is buffered, Read returns io.EOF.
func (c *Channel) Read(p []byte) (int, error) {
	if len(c.rest) == 0 {
		select {
		case data := <-c.in:
			c.rest = data
		case <-c.done:
			return 0, io.EOF
		}
	}
	n := copy(p, c.rest)
	c.rest = c.rest[n:]
	return n, nil
}

// Write blocks until the connection takes p. It does not wait for p to be
// written to the transport.
func (c *Channel) Write(p []byte) (int, error) {
	if err := c.Send(context.Background(), p); err != nil {
		return 0, err
	}
	return len(p), nil
}

// Send is Write with cancellation. data is copied before it is handed over.
func (c *Channel) Send(ctx context.Context, data []byte) error {
	msg := append([]byte(nil), data...)
	select {
	case c.out <- msg:
		return nil
	case <-c.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Recv returns the next whole payload, or what remains of one partially
// consumed by Read.
func (c *Channel) Recv(ctx context.Context) ([]byte, error) {
	if len(c.rest) > 0 {
		data := c.rest
		c.rest = nil
		return data, nil
	}
	select {
	case data := <-c.in:
		return data, nil
	case <-c.done:
		return nil, io.EOF
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
