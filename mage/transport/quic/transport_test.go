package quic

import (
	"context"
	"io"
	"net"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/TheusHen/mage/mage/transport"
)

var _ transport.Transport = Transport{}

func TestDialAccept(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	ln, err := Transport{}.Listen("127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	var server transport.Conn
	var eg errgroup.Group
	eg.Go(func() error {
		var err error
		server, err = ln.Accept(ctx)
		return err
	})

	client, err := Transport{}.Dial(ctx, ln.Addr().String())
	require.NoError(t, err)
	defer client.Close()
	require.NoError(t, eg.Wait())
	defer server.Close()

	_, err = client.Write([]byte("ping"))
	require.NoError(t, err)
	buf := make([]byte, 4)
	_, err = io.ReadFull(server, buf)
	require.NoError(t, err)
	require.Equal(t, "ping", string(buf))

	_, err = server.Write([]byte("pong"))
	require.NoError(t, err)
	_, err = io.ReadFull(client, buf)
	require.NoError(t, err)
	require.Equal(t, "pong", string(buf))

	require.NoError(t, client.SetReadDeadline(time.Now().Add(10*time.Millisecond)))
	_, err = client.Read(buf)
	var ne net.Error
	require.True(t, errors.As(err, &ne) && ne.Timeout(), "got %v", err)
	require.NotNil(t, server.RemoteAddr())
}

func TestAcceptCancel(t *testing.T) {
	ln, err := Transport{}.Listen("127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = ln.Accept(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}
