package mux

import (
	"bytes"
	"io"
	"net"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/TheusHen/mage/mage/crypto"
)

// pipeBuffer is one direction of an in-memory duplex. Writes never block
// and a single Read returns everything buffered so far, so several frames
// can arrive in one transport read.
type pipeBuffer struct {
	mu       sync.Mutex
	buf      bytes.Buffer
	closed   bool
	deadline time.Time
	notify   chan struct{}
}

func newPipeBuffer() *pipeBuffer {
	return &pipeBuffer{notify: make(chan struct{}, 1)}
}

func (b *pipeBuffer) signal() {
	select {
	case b.notify <- struct{}{}:
	default:
	}
}

func (b *pipeBuffer) Read(p []byte) (int, error) {
	for {
		b.mu.Lock()
		if b.buf.Len() > 0 {
			n, _ := b.buf.Read(p)
			b.mu.Unlock()
			return n, nil
		}
		if b.closed {
			b.mu.Unlock()
			return 0, io.EOF
		}
		deadline := b.deadline
		b.mu.Unlock()

		if deadline.IsZero() {
			<-b.notify
			continue
		}
		wait := time.Until(deadline)
		if wait <= 0 {
			return 0, os.ErrDeadlineExceeded
		}
		timer := time.NewTimer(wait)
		select {
		case <-b.notify:
			timer.Stop()
		case <-timer.C:
			return 0, os.ErrDeadlineExceeded
		}
	}
}

func (b *pipeBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return 0, io.ErrClosedPipe
	}
	b.buf.Write(p)
	b.mu.Unlock()
	b.signal()
	return len(p), nil
}

func (b *pipeBuffer) close() {
	b.mu.Lock()
	b.closed = true
	b.mu.Unlock()
	b.signal()
}

type pipeEnd struct {
	r, w *pipeBuffer
}

func (e *pipeEnd) Read(p []byte) (int, error)  { return e.r.Read(p) }
func (e *pipeEnd) Write(p []byte) (int, error) { return e.w.Write(p) }

func (e *pipeEnd) SetReadDeadline(t time.Time) error {
	e.r.mu.Lock()
	e.r.deadline = t
	e.r.mu.Unlock()
	e.r.signal()
	return nil
}

// Close ends both directions, like closing a socket.
func (e *pipeEnd) Close() error {
	e.r.close()
	e.w.close()
	return nil
}

func bufferedPipe() (*pipeEnd, *pipeEnd) {
	a, b := newPipeBuffer(), newPipeBuffer()
	return &pipeEnd{r: a, w: b}, &pipeEnd{r: b, w: a}
}

func seed(b byte) []byte { return bytes.Repeat([]byte{b}, 32) }

func publicKey(t testing.TB, s []byte) []byte {
	pub, err := crypto.PublicKeyFromSeed(s)
	require.NoError(t, err)
	return pub[:]
}

// newPair connects a client with seed [1;32] and a server with seed
// [2;32] over rwc pair a, b.
func newPair(t testing.TB, a, b io.ReadWriter, opts ...Option) (client, server *Connection) {
	t.Helper()
	client, err := NewConn(1, a, false, seed(1), publicKey(t, seed(2)), opts...)
	require.NoError(t, err)
	server, err = NewConn(1, b, true, seed(2), publicKey(t, seed(1)), opts...)
	require.NoError(t, err)
	return client, server
}

func newPipePair(t testing.TB, opts ...Option) (client, server *Connection) {
	a, b := bufferedPipe()
	client, server = newPair(t, a, b, opts...)
	t.Cleanup(func() {
		client.Close()
		server.Close()
	})
	return client, server
}

func newTCPPair(t testing.TB, opts ...Option) (client, server *Connection) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	accepted := make(chan net.Conn, 1)
	go func() {
		c, err := ln.Accept()
		if err != nil {
			close(accepted)
			return
		}
		accepted <- c
	}()
	a, err := net.Dial("tcp", ln.Addr().String())
	require.NoError(t, err)
	b, ok := <-accepted
	require.True(t, ok, "accept failed")

	client, server = newPair(t, a, b, opts...)
	t.Cleanup(func() {
		client.Close()
		server.Close()
	})
	return client, server
}

// readChannel calls ReadAllChannels until n bytes arrived for ch.
func readChannel(t testing.TB, c *Connection, ch ChannelID, n int) []byte {
	t.Helper()
	var got []byte
	deadline := time.Now().Add(5 * time.Second)
	for len(got) < n {
		require.True(t, time.Now().Before(deadline), "timed out with %d of %d bytes", len(got), n)
		payloads, err := c.ReadAllChannels()
		require.NoError(t, err)
		got = append(got, payloads[ch]...)
	}
	return got
}
