package transport

import (
	"context"
	"net"
	"time"

	"github.com/pkg/errors"
)

// TCP carries each connection over its own TCP socket.
type TCP struct {
	KeepAlive time.Duration
}

func (t TCP) Dial(ctx context.Context, addr string) (Conn, error) {
	d := net.Dialer{KeepAlive: t.KeepAlive}
	c, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, errors.Wrapf(err, "tcp: dial %s", addr)
	}
	return c.(*net.TCPConn), nil
}

func (t TCP) Listen(addr string) (Listener, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, errors.Wrapf(err, "tcp: listen %s", addr)
	}
	return &tcpListener{ln: ln.(*net.TCPListener)}, nil
}

type tcpListener struct {
	ln *net.TCPListener
}

// Accept waits for the next connection or for ctx to end.
func (l *tcpListener) Accept(ctx context.Context) (Conn, error) {
	defer l.ln.SetDeadline(time.Time{})
	stop := context.AfterFunc(ctx, func() {
		l.ln.SetDeadline(time.Unix(1, 0))
	})
	defer stop()

	c, err := l.ln.AcceptTCP()
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, errors.Wrap(err, "tcp: accept")
	}
	return c, nil
}

func (l *tcpListener) Addr() net.Addr { return l.ln.Addr() }

func (l *tcpListener) Close() error { return l.ln.Close() }
