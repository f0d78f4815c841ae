// Package transport supplies the duplex byte streams that mage connections
// run over. The frame layer authenticates peers itself, so a transport only
// has to deliver bytes in order.
package transport

import (
	"context"
	"io"
	"net"
	"time"
)

// Conn is one duplex byte stream. SetReadDeadline lets mux.ChannelLoop poll
// it without blocking.
type Conn interface {
	io.ReadWriteCloser
	SetReadDeadline(t time.Time) error
	RemoteAddr() net.Addr
}

type Listener interface {
	Accept(ctx context.Context) (Conn, error)
	Addr() net.Addr
	Close() error
}

type Transport interface {
	Dial(ctx context.Context, addr string) (Conn, error)
	Listen(addr string) (Listener, error)
}
