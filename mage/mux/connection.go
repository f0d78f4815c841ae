package mux

import (
	"io"
	"net"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/TheusHen/mage/mage/protocol"
	"github.com/TheusHen/mage/mage/stream"
)

type (
	ConnectionID = protocol.ConnectionID
	ChannelID    = protocol.ChannelID
)

type flusher interface {
	Flush() error
}

type readDeadliner interface {
	SetReadDeadline(t time.Time) error
}

// Connection carries any number of channels over one duplex byte stream.
//
// ReadAllChannels, WriteChannel, ChannelLoop and the deprecated Read and
// Write must be called from one goroutine at a time. GetChannel and Close
// may be called from any goroutine.
type Connection struct {
	id     ConnectionID
	stream *stream.Stream
	r      io.Reader
	w      io.Writer
	log    *zap.Logger
	opts   options
	stats  Stats

	bufs sync.Pool
	// tail holds the start of a frame cut off by the previous read.
	tail []byte
	// pending holds decoded payloads that a legacy Read could not return.
	pending map[ChannelID][]byte

	mu       sync.Mutex
	channels map[ChannelID][]*handle

	done      chan struct{}
	closeOnce sync.Once
}

// New creates a connection over r and w. id is embedded in every outgoing
// frame and must fit in 3 bytes; seed and remoteKey must be 32 bytes each.
// server selects the key-derivation role; the peer must use the other one.
func New(id ConnectionID, r io.Reader, w io.Writer, server bool, seed, remoteKey []byte, opts ...Option) (*Connection, error) {
	if err := id.Check(); err != nil {
		return nil, err
	}
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	s, err := stream.New(server, seed, remoteKey, o.streamOpts...)
	if err != nil {
		return nil, err
	}
	c := &Connection{
		id:       id,
		stream:   s,
		r:        r,
		w:        w,
		log:      o.log.With(zap.Stringer("conn", id), zap.Bool("server", server)),
		opts:     o,
		channels: make(map[ChannelID][]*handle),
		done:     make(chan struct{}),
	}
	c.bufs.New = func() interface{} {
		buf := make([]byte, o.readSize)
		return &buf
	}
	return c, nil
}

// NewConn is New for a single io.ReadWriter such as a net.Conn.
func NewConn(id ConnectionID, rw io.ReadWriter, server bool, seed, remoteKey []byte, opts ...Option) (*Connection, error) {
	return New(id, rw, rw, server, seed, remoteKey, opts...)
}

// ID returns the connection id written into every frame.
func (c *Connection) ID() ConnectionID { return c.id }

// LocalPublic returns the public key derived from the local seed.
func (c *Connection) LocalPublic() [32]byte { return c.stream.LocalPublic() }

// Stats returns the live traffic counters.
func (c *Connection) Stats() *Stats { return &c.stats }

// ReadAllChannels performs one blocking read from the transport and returns
// the decoded payloads grouped by channel, each in arrival order. The map is
// empty when the read produced no complete frame. Payloads left over by a
// legacy Read are returned first, without touching the transport.
func (c *Connection) ReadAllChannels() (map[ChannelID][]byte, error) {
	return c.readAll(false)
}

func (c *Connection) readAll(poll bool) (map[ChannelID][]byte, error) {
	if len(c.pending) > 0 {
		out := c.pending
		c.pending = nil
		return out, nil
	}

	bufp := c.bufs.Get().(*[]byte)
	defer c.bufs.Put(bufp)
	buf := *bufp

	if poll {
		if d, ok := c.r.(readDeadliner); ok && c.opts.pollInterval > 0 {
			if err := d.SetReadDeadline(time.Now().Add(c.opts.pollInterval)); err == nil {
				defer d.SetReadDeadline(time.Time{})
			}
		}
	}

	n, err := c.r.Read(buf)
	if n == 0 {
		if err == nil || (poll && isTimeout(err)) {
			return map[ChannelID][]byte{}, nil
		}
		return nil, &TransportError{Op: "read", Err: err}
	}
	// A read error that came with data is reported by the next read.
	c.stats.BytesReceived.Add(int64(n))
	return c.decode(buf[:n])
}

func (c *Connection) decode(raw []byte) (map[ChannelID][]byte, error) {
	if len(c.tail) > 0 {
		raw = append(c.tail, raw...)
		c.tail = nil
	}
	frames, rest, err := protocol.SplitFrames(raw)
	if err != nil {
		c.log.Warn("dropping unparsable input", zap.Int("bytes", len(raw)), zap.Error(err))
		return nil, err
	}
	if len(rest) > 0 {
		c.tail = append([]byte(nil), rest...)
	}

	packets, err := c.stream.Open(frames)
	if err != nil {
		c.log.Warn("dropping unauthenticated frames", zap.Int("frames", len(frames)), zap.Error(err))
		return nil, err
	}
	c.stats.FramesReceived.Add(int64(len(packets)))

	out := make(map[ChannelID][]byte)
	for _, p := range packets {
		if p.ConnectionID != c.id {
			c.log.Debug("frame for another connection id", zap.Stringer("frame_conn", p.ConnectionID))
		}
		out[p.Channel] = append(out[p.Channel], p.Payload...)
	}
	return out, nil
}

// WriteChannel seals data for channel ch and writes it frame by frame,
// flushing after every frame when the writer has a Flush method. It returns
// the number of wire bytes written.
func (c *Connection) WriteChannel(ch ChannelID, data []byte) (int, error) {
	frames, err := c.stream.Chunk(c.id, ch, data)
	if err != nil {
		return 0, err
	}
	total := 0
	for _, f := range frames {
		n, err := c.w.Write(f)
		total += n
		c.stats.BytesSent.Add(int64(n))
		if err != nil {
			return total, &TransportError{Op: "write", Err: err}
		}
		if fl, ok := c.w.(flusher); ok {
			if err := fl.Flush(); err != nil {
				return total, &TransportError{Op: "flush", Err: err}
			}
		}
		c.stats.FramesSent.Add(1)
	}
	return total, nil
}

// GetChannel registers a new handle for ch and returns it. Every handle
// registered for a channel receives every payload arriving on it.
func (c *Connection) GetChannel(ch ChannelID) *Channel {
	h := &handle{
		in:  make(chan []byte),
		out: make(chan []byte),
	}
	c.mu.Lock()
	c.channels[ch] = append(c.channels[ch], h)
	count := len(c.channels[ch])
	c.mu.Unlock()

	c.log.Debug("channel registered", zap.Uint8("channel", uint8(ch)), zap.Int("handles", count))
	return &Channel{id: ch, in: h.in, out: h.out, done: c.done}
}

// ChannelLoop runs one pump cycle: ChannelLoopIn, then ChannelLoopOut.
// It is meant to be called repeatedly by the connection owner.
func (c *Connection) ChannelLoop() error {
	if err := c.ChannelLoopIn(); err != nil {
		return err
	}
	return c.ChannelLoopOut()
}

// ChannelLoopIn reads once from the transport and offers each channel's
// payload to every handle registered for it. Nothing waits on a handle: a
// payload a handle is not ready for stays in that handle's backlog and is
// offered again on later cycles, up to the backlog limit. Beyond the limit
// the payload is dropped for that handle only.
//
// When the reader supports SetReadDeadline the read is bounded by the poll
// interval and a timeout counts as an empty read.
func (c *Connection) ChannelLoopIn() error {
	c.deliverBacklogs()
	payloads, err := c.readAll(true)
	if err != nil {
		return err
	}
	for _, ch := range sortedChannels(payloads) {
		c.broadcast(ch, payloads[ch])
	}
	return nil
}

// ChannelLoopOut collects whatever handles are currently trying to write,
// without waiting on any of them, and sends one aggregated write per channel.
func (c *Connection) ChannelLoopOut() error {
	outgoing := make(map[ChannelID][]byte)
	c.mu.Lock()
	for ch, hs := range c.channels {
		for _, h := range hs {
			select {
			case data := <-h.out:
				outgoing[ch] = append(outgoing[ch], data...)
			default:
			}
		}
	}
	c.mu.Unlock()

	for _, ch := range sortedChannels(outgoing) {
		if _, err := c.WriteChannel(ch, outgoing[ch]); err != nil {
			return err
		}
	}
	return nil
}

// broadcast queues data on every handle registered for ch and hands over
// as much of each handle's backlog as the handle accepts without waiting.
func (c *Connection) broadcast(ch ChannelID, data []byte) {
	c.mu.Lock()
	hs := append([]*handle(nil), c.channels[ch]...)
	c.mu.Unlock()

	if len(hs) == 0 {
		c.stats.Dropped.Add(1)
		c.log.Debug("no handle for channel", zap.Uint8("channel", uint8(ch)), zap.Int("bytes", len(data)))
		return
	}
	for i, h := range hs {
		msg := data
		if i > 0 {
			msg = append([]byte(nil), data...)
		}
		if !h.enqueue(msg, c.opts.backlogLimit) {
			c.stats.Dropped.Add(1)
			c.log.Debug("handle backlog full, payload dropped",
				zap.Uint8("channel", uint8(ch)), zap.Int("bytes", len(data)), zap.Int("backlog", h.backlogBytes))
			continue
		}
		h.deliver()
	}
}

// deliverBacklogs retries payloads that handles were not ready for on
// earlier cycles.
func (c *Connection) deliverBacklogs() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, hs := range c.channels {
		for _, h := range hs {
			h.deliver()
		}
	}
}

// Close wakes every blocked Channel operation and closes the reader and
// writer if they are io.Closers.
func (c *Connection) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.done)
		for _, x := range []interface{}{c.r, c.w} {
			cl, ok := x.(io.Closer)
			if !ok {
				continue
			}
			if cerr := cl.Close(); cerr != nil && err == nil && !isClosed(cerr) {
				err = errors.Wrap(cerr, "mux: close")
			}
		}
		c.log.Debug("connection closed")
	})
	return err
}

func sortedChannels(m map[ChannelID][]byte) []ChannelID {
	out := make([]ChannelID, 0, len(m))
	for ch := range m {
		out = append(out, ch)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func isTimeout(err error) bool {
	if errors.Is(err, os.ErrDeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

func isClosed(err error) bool {
	return errors.Is(err, net.ErrClosed) || errors.Is(err, os.ErrClosed) || errors.Is(err, io.ErrClosedPipe)
}
