package mux

import (
	"time"

	"go.uber.org/zap"

	"github.com/TheusHen/mage/mage/protocol"
	"github.com/TheusHen/mage/mage/stream"
)

const (
	// DefaultReadBufferSize is the size of the single read performed by
	// ReadAllChannels. It holds several maximum-size frames.
	DefaultReadBufferSize = 8 * protocol.MaxFrameSize

	// DefaultPollInterval bounds the transport read inside ChannelLoop when
	// the reader supports read deadlines.
	DefaultPollInterval = 10 * time.Millisecond

	// DefaultBacklogLimit is how many bytes a Channel handle may have
	// waiting for its reader before new payloads for it are dropped.
	DefaultBacklogLimit = 64 * 1024
)

type options struct {
	log          *zap.Logger
	readSize     int
	pollInterval time.Duration
	backlogLimit int
	streamOpts   []stream.Option
}

func defaultOptions() options {
	return options{
		log:          zap.NewNop(),
		readSize:     DefaultReadBufferSize,
		pollInterval: DefaultPollInterval,
		backlogLimit: DefaultBacklogLimit,
	}
}

// Option configures a Connection.
type Option func(*options)

// WithLogger sets the logger. The default discards everything.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.log = l
		}
	}
}

// WithReadBufferSize sets the size of the transport read buffer. Values
// below protocol.MaxFrameSize are raised to it.
func WithReadBufferSize(n int) Option {
	return func(o *options) {
		if n < protocol.MaxFrameSize {
			n = protocol.MaxFrameSize
		}
		o.readSize = n
	}
}

// WithPollInterval sets how long ChannelLoop waits for inbound data on
// readers with read deadlines. Zero makes ChannelLoop block on the read
// like ReadAllChannels does.
func WithPollInterval(d time.Duration) Option {
	return func(o *options) { o.pollInterval = d }
}

// WithCompression enables lz4 compression of outgoing segments.
func WithCompression(level stream.CompressionLevel) Option {
	return func(o *options) {
		o.streamOpts = append(o.streamOpts, stream.WithCompression(level))
	}
}

// WithBacklogLimit bounds the bytes held for a Channel handle whose reader
// is not keeping up. Zero keeps at most one payload per handle.
func WithBacklogLimit(n int) Option {
	return func(o *options) {
		if n < 0 {
			n = 0
		}
		o.backlogLimit = n
	}
}
