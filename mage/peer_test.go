package mage

import (
	"bytes"
	"context"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/TheusHen/mage/mage/identity"
	"github.com/TheusHen/mage/mage/mux"
	"github.com/TheusHen/mage/mage/protocol"
	"github.com/TheusHen/mage/mage/registry"
)

func fixedIdentity(t *testing.T, b byte) identity.Identity {
	t.Helper()
	id, err := identity.FromSeed(bytes.Repeat([]byte{b}, 32))
	require.NoError(t, err)
	return id
}

func connect(t *testing.T, transportName string) (client, server *mux.Connection) {
	t.Helper()
	tr, err := NewTransport(transportName)
	require.NoError(t, err)

	clientID, serverID := fixedIdentity(t, 1), fixedIdentity(t, 2)
	serverPeer := NewPeer(serverID, tr, nil)
	require.NoError(t, serverPeer.Listen("127.0.0.1:0"))
	clientPeer := NewPeer(clientID, tr, nil)
	t.Cleanup(func() {
		clientPeer.Close()
		serverPeer.Close()
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var eg errgroup.Group
	eg.Go(func() error {
		var err error
		server, err = serverPeer.Accept(ctx, clientID.PublicKey)
		return err
	})
	client, err = clientPeer.Dial(ctx, serverPeer.ListenAddr(), 0x42, serverID.PublicKey)
	require.NoError(t, err)
	require.NoError(t, eg.Wait())

	require.Equal(t, protocol.ConnectionID(0x42), client.ID())
	got, err := serverPeer.Connections().Get(server.ID())
	require.NoError(t, err)
	require.Same(t, server, got)
	return client, server
}

func TestPeerLegacyRoundTrip(t *testing.T) {
	for _, name := range []string{"tcp", "quic"} {
		t.Run(name, func(t *testing.T) {
			client, server := connect(t, name)
			data := bytes.Repeat([]byte{7}, 100)

			_, err := client.Write(data)
			require.NoError(t, err)
			got := make([]byte, len(data))
			_, err = io.ReadFull(server, got)
			require.NoError(t, err)
			require.Equal(t, data, got)

			_, err = server.Write(data)
			require.NoError(t, err)
			_, err = io.ReadFull(client, got)
			require.NoError(t, err)
			require.Equal(t, data, got)
		})
	}
}

func TestPeerChannels(t *testing.T) {
	for _, name := range []string{"tcp", "quic"} {
		t.Run(name, func(t *testing.T) {
			client, server := connect(t, name)
			c4, s4 := client.GetChannel(4), server.GetChannel(4)

			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			eg, ctx := errgroup.WithContext(ctx)
			done := make(chan struct{})
			eg.Go(func() error {
				for {
					select {
					case <-done:
						return nil
					default:
					}
					if err := client.ChannelLoop(); err != nil {
						return err
					}
					if err := server.ChannelLoop(); err != nil {
						return err
					}
				}
			})

			want := bytes.Repeat([]byte("channel four "), 100)
			require.NoError(t, c4.Send(ctx, want))
			var got []byte
			for len(got) < len(want) {
				data, err := s4.Recv(ctx)
				require.NoError(t, err)
				got = append(got, data...)
			}
			require.Equal(t, want, got)

			close(done)
			require.NoError(t, eg.Wait())
		})
	}
}

func TestPeerAcceptWithoutListen(t *testing.T) {
	p := NewPeer(fixedIdentity(t, 1), nil, nil)
	_, err := p.Accept(context.Background(), identity.PublicKey{})
	require.ErrorIs(t, err, ErrNotListening)
	require.Empty(t, p.ListenAddr())
}

func TestPeerDialRejectsID(t *testing.T) {
	tr, err := NewTransport("tcp")
	require.NoError(t, err)
	p := NewPeer(fixedIdentity(t, 1), tr, nil)
	_, err = p.Dial(context.Background(), "127.0.0.1:1", protocol.MaxConnectionID+1, fixedIdentity(t, 2).PublicKey)
	require.ErrorIs(t, err, protocol.ErrConnectionIDRange)
}

func TestPeerHangup(t *testing.T) {
	client, _ := connect(t, "tcp")
	p := NewPeer(fixedIdentity(t, 1), nil, nil)
	require.NoError(t, p.Connections().Register(client))

	require.NoError(t, p.Hangup(client))
	_, err := p.Connections().Get(client.ID())
	require.ErrorIs(t, err, registry.ErrNotFound)
	_, err = client.WriteChannel(0, []byte("late"))
	require.ErrorIs(t, err, mux.ErrTransport)
}

func TestNewTransport(t *testing.T) {
	for _, name := range []string{"", "tcp", "quic"} {
		_, err := NewTransport(name)
		require.NoError(t, err)
	}
	_, err := NewTransport("carrier-pigeon")
	require.ErrorIs(t, err, ErrUnknownTransport)
}
