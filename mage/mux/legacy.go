package mux

import (
	"io"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/TheusHen/mage/mage/protocol"
)

// Read reads channel 0 as if the connection were a single stream.
// Payloads for other channels are offered to their handles, as ChannelLoop
// would. If the channel 0 payload does not fit in p, Read returns
// ErrBufferTooSmall and keeps the payload for the next read.
//
// A read that carried no channel 0 data returns 0, nil. Callers that loop
// until they have n bytes, such as io.ReadFull, keep calling Read until data
// arrives, so they spin while the peer only uses other channels.
//
// Deprecated: use ReadAllChannels, or GetChannel with ChannelLoop.
func (c *Connection) Read(p []byte) (int, error) {
	payloads, err := c.ReadAllChannels()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return 0, io.EOF
		}
		return 0, err
	}

	data, ok := payloads[protocol.DefaultChannel]
	delete(payloads, protocol.DefaultChannel)
	for _, ch := range sortedChannels(payloads) {
		c.broadcast(ch, payloads[ch])
	}
	if !ok {
		return 0, nil
	}

	if len(data) > len(p) {
		if c.pending == nil {
			c.pending = make(map[ChannelID][]byte)
		}
		c.pending[protocol.DefaultChannel] = data
		c.log.Debug("legacy read buffer too small", zap.Int("have", len(p)), zap.Int("need", len(data)))
		return 0, errors.Wrapf(ErrBufferTooSmall, "need %d bytes, have %d", len(data), len(p))
	}
	return copy(p, data), nil
}

// Write writes p to channel 0. It returns len(p) on success.
//
// Deprecated: use WriteChannel, or GetChannel with ChannelLoop.
func (c *Connection) Write(p []byte) (int, error) {
	if _, err := c.WriteChannel(protocol.DefaultChannel, p); err != nil {
		return 0, err
	}
	return len(p), nil
}

// Flush flushes the writer if it buffers.
func (c *Connection) Flush() error {
	if fl, ok := c.w.(flusher); ok {
		if err := fl.Flush(); err != nil {
			return &TransportError{Op: "flush", Err: err}
		}
	}
	return nil
}
