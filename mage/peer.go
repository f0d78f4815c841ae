package mage

import (
	"context"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/TheusHen/mage/mage/identity"
	"github.com/TheusHen/mage/mage/mux"
	"github.com/TheusHen/mage/mage/protocol"
	"github.com/TheusHen/mage/mage/registry"
	"github.com/TheusHen/mage/mage/transport"
	"github.com/TheusHen/mage/mage/transport/quic"
)

var (
	ErrNotListening     = errors.New("peer is not listening")
	ErrUnknownTransport = errors.New("unknown transport")
)

// NewTransport returns the transport registered under name: "tcp" or
// "quic".
func NewTransport(name string) (transport.Transport, error) {
	switch name {
	case "tcp", "":
		return transport.TCP{}, nil
	case "quic":
		return quic.Transport{}, nil
	default:
		return nil, errors.Wrapf(ErrUnknownTransport, "%q", name)
	}
}

// Peer is a high-level helper that combines a transport with the local
// identity and keeps track of the connections it made.
type Peer struct {
	Identity  identity.Identity
	Transport transport.Transport
	Options   []mux.Option

	log      *zap.Logger
	conns    *registry.Registry
	listener transport.Listener
}

func NewPeer(id identity.Identity, t transport.Transport, log *zap.Logger, opts ...mux.Option) *Peer {
	if log == nil {
		log = zap.NewNop()
	}
	return &Peer{
		Identity:  id,
		Transport: t,
		Options:   append([]mux.Option{mux.WithLogger(log)}, opts...),
		log:       log,
		conns:     registry.New(),
	}
}

// Connections is the table of live connections made by this peer.
func (p *Peer) Connections() *registry.Registry { return p.conns }

func (p *Peer) Listen(addr string) error {
	ln, err := p.Transport.Listen(addr)
	if err != nil {
		return err
	}
	p.listener = ln
	p.log.Info("listening", zap.Stringer("addr", ln.Addr()), zap.Stringer("key", p.Identity.PublicKey))
	return nil
}

func (p *Peer) ListenAddr() string {
	if p.listener == nil {
		return ""
	}
	return p.listener.Addr().String()
}

// Accept waits for the next inbound connection and serves it in the server
// role. remote is the public key the client is expected to hold; a client
// with any other key fails at its first frame. The connection id comes
// from the peer's registry.
func (p *Peer) Accept(ctx context.Context, remote identity.PublicKey) (*mux.Connection, error) {
	if p.listener == nil {
		return nil, ErrNotListening
	}
	raw, err := p.listener.Accept(ctx)
	if err != nil {
		return nil, err
	}
	id, err := p.conns.Reserve()
	if err != nil {
		raw.Close()
		return nil, err
	}
	c, err := mux.NewConn(id, raw, true, p.Identity.Seed[:], remote.Bytes(), p.Options...)
	if err != nil {
		p.conns.Release(id)
		raw.Close()
		return nil, err
	}
	if err := p.conns.Bind(id, c); err != nil {
		c.Close()
		return nil, err
	}
	p.log.Info("accepted",
		zap.Stringer("conn", id),
		zap.Stringer("remote_addr", raw.RemoteAddr()),
		zap.String("remote_key", remote.Fingerprint().Short()))
	return c, nil
}

// Dial connects to addr in the client role, labelling outgoing frames with
// id.
func (p *Peer) Dial(ctx context.Context, addr string, id protocol.ConnectionID, remote identity.PublicKey) (*mux.Connection, error) {
	if err := id.Check(); err != nil {
		return nil, err
	}
	raw, err := p.Transport.Dial(ctx, addr)
	if err != nil {
		return nil, err
	}
	c, err := mux.NewConn(id, raw, false, p.Identity.Seed[:], remote.Bytes(), p.Options...)
	if err != nil {
		raw.Close()
		return nil, err
	}
	if err := p.conns.Register(c); err != nil {
		c.Close()
		return nil, err
	}
	p.log.Info("dialed",
		zap.Stringer("conn", id),
		zap.String("addr", addr),
		zap.String("remote_key", remote.Fingerprint().Short()))
	return c, nil
}

// Hangup closes c and forgets it.
func (p *Peer) Hangup(c *mux.Connection) error {
	p.conns.Release(c.ID())
	return c.Close()
}

// Close stops listening and closes every connection.
func (p *Peer) Close() error {
	var err error
	if p.listener != nil {
		err = p.listener.Close()
	}
	if cerr := p.conns.CloseAll(); err == nil {
		err = cerr
	}
	return err
}
