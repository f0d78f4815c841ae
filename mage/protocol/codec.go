package protocol

import (
	"encoding/binary"

	"github.com/pkg/errors"
)

const (
	// HeaderSize is ConnectionID(3) + ChannelID(1) + Length(2).
	HeaderSize = 6

	// MaxFrameSize bounds a whole frame so that several fit a single
	// receive buffer.
	MaxFrameSize = 512

	// MaxBodySize is the largest sealed body a frame can carry.
	MaxBodySize = MaxFrameSize - HeaderSize
)

var ErrFrame = errors.New("protocol: malformed frame")

// Header is the cleartext part of a frame.
// Format:
//
//	3 bytes: connection id (big endian)
//	1 byte:  channel id
//	2 bytes: body length (big endian)
//
// The header is authenticated as additional data of the sealed body.
type Header struct {
	ConnectionID ConnectionID
	Channel      ChannelID
	Length       uint16
}

// Put writes h into the first HeaderSize bytes of b.
func (h Header) Put(b []byte) {
	id := uint32(h.ConnectionID)
	b[0] = byte(id >> 16)
	b[1] = byte(id >> 8)
	b[2] = byte(id)
	b[3] = byte(h.Channel)
	binary.BigEndian.PutUint16(b[4:6], h.Length)
}

// Bytes returns the encoded header.
func (h Header) Bytes() []byte {
	b := make([]byte, HeaderSize)
	h.Put(b)
	return b
}

// ParseHeader decodes a header from the start of b.
func ParseHeader(b []byte) (Header, error) {
	if len(b) < HeaderSize {
		return Header{}, errors.Wrapf(ErrFrame, "header needs %d bytes, have %d", HeaderSize, len(b))
	}
	h := Header{
		ConnectionID: ConnectionID(uint32(b[0])<<16 | uint32(b[1])<<8 | uint32(b[2])),
		Channel:      ChannelID(b[3]),
		Length:       binary.BigEndian.Uint16(b[4:6]),
	}
	if int(h.Length) > MaxBodySize {
		return Header{}, errors.Wrapf(ErrFrame, "body length %d exceeds %d", h.Length, MaxBodySize)
	}
	return h, nil
}

// Frame is one wire frame with its body still sealed.
type Frame struct {
	Header
	Body []byte
}

// AppendFrame appends the encoded frame to dst.
func AppendFrame(dst []byte, f Frame) ([]byte, error) {
	if err := f.ConnectionID.Check(); err != nil {
		return nil, err
	}
	if len(f.Body) > MaxBodySize {
		return nil, errors.Wrapf(ErrFrame, "body length %d exceeds %d", len(f.Body), MaxBodySize)
	}
	f.Length = uint16(len(f.Body))
	var hdr [HeaderSize]byte
	f.Header.Put(hdr[:])
	dst = append(dst, hdr[:]...)
	return append(dst, f.Body...), nil
}

// EncodeFrame returns the encoded frame as a new buffer.
func EncodeFrame(f Frame) ([]byte, error) {
	return AppendFrame(make([]byte, 0, HeaderSize+len(f.Body)), f)
}

// SplitFrames parses as many complete frames as raw holds and returns the
// trailing bytes of an incomplete frame in rest. Body slices alias raw.
func SplitFrames(raw []byte) (frames []Frame, rest []byte, err error) {
	for len(raw) > 0 {
		if len(raw) < HeaderSize {
			return frames, raw, nil
		}
		h, err := ParseHeader(raw)
		if err != nil {
			return nil, nil, err
		}
		end := HeaderSize + int(h.Length)
		if len(raw) < end {
			return frames, raw, nil
		}
		frames = append(frames, Frame{Header: h, Body: raw[HeaderSize:end]})
		raw = raw[end:]
	}
	return frames, nil, nil
}

// ParseFrames parses back-to-back frames that must end exactly at the end
// of raw. A truncated trailing frame is ErrFrame.
func ParseFrames(raw []byte) ([]Frame, error) {
	frames, rest, err := SplitFrames(raw)
	if err != nil {
		return nil, err
	}
	if len(rest) > 0 {
		return nil, errors.Wrapf(ErrFrame, "truncated frame: %d trailing bytes", len(rest))
	}
	return frames, nil
}
