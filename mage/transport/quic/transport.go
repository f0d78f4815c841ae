// Package quic runs mage connections over QUIC, one bidirectional stream
// per connection.
package quic

import (
	"context"
	"io"
	"net"
	"time"

	"github.com/pkg/errors"
	q "github.com/quic-go/quic-go"

	"github.com/TheusHen/mage/mage/transport"
)

// streamOpen is written by the dialer as the first byte of the stream.
// QUIC only announces a stream to the peer once data is sent on it.
const streamOpen byte = 0x6d

var ErrBadPreamble = errors.New("quic: unexpected stream preamble")

// Transport dials and listens on QUIC. The zero value is ready to use.
type Transport struct {
	// KeepAlive is the keep-alive period; zero uses 15s.
	KeepAlive time.Duration
	// IdleTimeout closes silent connections; zero uses the quic-go default.
	IdleTimeout time.Duration
}

func (t Transport) config() *q.Config {
	keepAlive := t.KeepAlive
	if keepAlive == 0 {
		keepAlive = 15 * time.Second
	}
	return &q.Config{
		KeepAlivePeriod: keepAlive,
		MaxIdleTimeout:  t.IdleTimeout,
	}
}

func (t Transport) Listen(addr string) (transport.Listener, error) {
	tlsConf, err := newTLSConfig()
	if err != nil {
		return nil, err
	}
	ln, err := q.ListenAddr(addr, tlsConf, t.config())
	if err != nil {
		return nil, errors.Wrapf(err, "quic: listen %s", addr)
	}
	return &Listener{inner: ln}, nil
}

func (t Transport) Dial(ctx context.Context, addr string) (transport.Conn, error) {
	tlsConf, err := newTLSConfig()
	if err != nil {
		return nil, err
	}
	conn, err := q.DialAddr(ctx, addr, tlsConf, t.config())
	if err != nil {
		return nil, errors.Wrapf(err, "quic: dial %s", addr)
	}
	st, err := conn.OpenStreamSync(ctx)
	if err != nil {
		conn.CloseWithError(0, "")
		return nil, errors.Wrap(err, "quic: open stream")
	}
	if _, err := st.Write([]byte{streamOpen}); err != nil {
		conn.CloseWithError(0, "")
		return nil, errors.Wrap(err, "quic: write preamble")
	}
	return &Conn{Stream: st, conn: conn}, nil
}

type Listener struct {
	inner *q.Listener
}

// Accept waits for a QUIC connection and its first stream.
func (l *Listener) Accept(ctx context.Context) (transport.Conn, error) {
	conn, err := l.inner.Accept(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "quic: accept")
	}
	st, err := conn.AcceptStream(ctx)
	if err != nil {
		conn.CloseWithError(0, "")
		return nil, errors.Wrap(err, "quic: accept stream")
	}
	var pre [1]byte
	if _, err := io.ReadFull(st, pre[:]); err != nil {
		conn.CloseWithError(0, "")
		return nil, errors.Wrap(err, "quic: read preamble")
	}
	if pre[0] != streamOpen {
		conn.CloseWithError(1, "bad preamble")
		return nil, errors.Wrapf(ErrBadPreamble, "got %#x", pre[0])
	}
	return &Conn{Stream: st, conn: conn}, nil
}

func (l *Listener) Addr() net.Addr { return l.inner.Addr() }

func (l *Listener) Close() error { return l.inner.Close() }

// Conn is one QUIC stream used as a duplex byte stream.
type Conn struct {
	q.Stream
	conn q.Connection
}

func (c *Conn) RemoteAddr() net.Addr { return c.conn.RemoteAddr() }

func (c *Conn) LocalAddr() net.Addr { return c.conn.LocalAddr() }

// Close ends both directions of the stream and then the QUIC connection.
func (c *Conn) Close() error {
	c.Stream.CancelRead(0)
	err := c.Stream.Close()
	if cerr := c.conn.CloseWithError(0, ""); err == nil {
		err = cerr
	}
	return err
}
