package transport

import (
	"context"
	"io"
	"net"
	"os"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

// exchange checks that a and b form one duplex byte stream.
func exchange(t *testing.T, a, b Conn) {
	t.Helper()
	var eg errgroup.Group
	eg.Go(func() error {
		_, err := a.Write([]byte("ping"))
		return err
	})
	buf := make([]byte, 4)
	_, err := io.ReadFull(b, buf)
	require.NoError(t, err)
	require.Equal(t, "ping", string(buf))
	require.NoError(t, eg.Wait())

	_, err = b.Write([]byte("pong"))
	require.NoError(t, err)
	_, err = io.ReadFull(a, buf)
	require.NoError(t, err)
	require.Equal(t, "pong", string(buf))
}

// readDeadline checks that an expired deadline surfaces as a timeout and
// that the conn stays usable afterwards.
func readDeadline(t *testing.T, a, b Conn) {
	t.Helper()
	require.NoError(t, b.SetReadDeadline(time.Now().Add(10*time.Millisecond)))
	_, err := b.Read(make([]byte, 1))
	var ne net.Error
	require.True(t, errors.Is(err, os.ErrDeadlineExceeded) || (errors.As(err, &ne) && ne.Timeout()), "got %v", err)

	require.NoError(t, b.SetReadDeadline(time.Time{}))
	exchange(t, a, b)
}

func dialPair(t *testing.T, tr Transport, addr string) (client, server Conn) {
	t.Helper()
	ln, err := tr.Listen(addr)
	require.NoError(t, err)
	t.Cleanup(func() { ln.Close() })

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var eg errgroup.Group
	eg.Go(func() error {
		var err error
		server, err = ln.Accept(ctx)
		return err
	})
	client, err = tr.Dial(ctx, ln.Addr().String())
	require.NoError(t, err)
	require.NoError(t, eg.Wait())
	t.Cleanup(func() {
		client.Close()
		server.Close()
	})
	return client, server
}

func TestTCP(t *testing.T) {
	client, server := dialPair(t, TCP{}, "127.0.0.1:0")
	exchange(t, client, server)
	readDeadline(t, client, server)
	require.NotNil(t, server.RemoteAddr())
}

func TestTCPAcceptCancel(t *testing.T) {
	ln, err := TCP{}.Listen("127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = ln.Accept(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded)

	// The listener still accepts after a cancelled Accept.
	var eg errgroup.Group
	eg.Go(func() error {
		c, err := TCP{}.Dial(context.Background(), ln.Addr().String())
		if err == nil {
			c.Close()
		}
		return err
	})
	c, err := ln.Accept(context.Background())
	require.NoError(t, err)
	c.Close()
	require.NoError(t, eg.Wait())
}

func TestTCPDialError(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	ln.Close()

	_, err = TCP{}.Dial(context.Background(), addr)
	require.Error(t, err)
	require.Contains(t, err.Error(), addr)
}
