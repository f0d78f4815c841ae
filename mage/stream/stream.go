package stream

import (
	"github.com/pkg/errors"

	"github.com/TheusHen/mage/mage/crypto"
	"github.com/TheusHen/mage/mage/protocol"
)

const (
	// MaxSegmentSize is the largest slice of application data carried by
	// one frame.
	MaxSegmentSize = protocol.MaxBodySize - crypto.Overhead - 1

	flagCompressed byte = 1 << 0
)

var ErrAuthentication = errors.New("stream: frame authentication failed")

// authError matches ErrAuthentication and unwraps to the crypto failure
// (crypto.ErrDecryptionFailed or crypto.ErrReplay).
type authError struct {
	header protocol.Header
	err    error
}

func (e *authError) Error() string {
	return ErrAuthentication.Error() + ": " + e.header.ConnectionID.String() + " " + e.header.Channel.String() + ": " + e.err.Error()
}

func (e *authError) Unwrap() error { return e.err }

func (e *authError) Is(target error) bool { return target == ErrAuthentication }

// Stream owns the session keys and record counters of one connection.
// It is not safe for concurrent Chunk calls or concurrent Dechunk calls.
type Stream struct {
	sc          *crypto.SecureChannel
	compression CompressionLevel
}

// Option configures a Stream.
type Option func(*Stream)

// WithCompression compresses each segment with lz4 when that makes it
// smaller. The peer decodes compressed segments regardless of its own
// options.
func WithCompression(level CompressionLevel) Option {
	return func(s *Stream) { s.compression = level }
}

// New derives a Stream from the local seed and the peer's public key.
// Both must be exactly 32 bytes; the peers must use opposite roles.
func New(server bool, seed, remoteKey []byte, opts ...Option) (*Stream, error) {
	sc, err := crypto.NewSecureChannel(server, seed, remoteKey)
	if err != nil {
		return nil, err
	}
	s := &Stream{sc: sc}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// LocalPublic returns the public key the peer must be configured with.
func (s *Stream) LocalPublic() [32]byte { return s.sc.LocalPublic() }

// RemotePublic returns the configured peer public key.
func (s *Stream) RemotePublic() [32]byte { return s.sc.RemotePublic() }

// Sent returns the number of frames sealed so far.
func (s *Stream) Sent() uint64 { return s.sc.SendCounter() }

// Chunk splits data into segments of at most MaxSegmentSize bytes and seals
// each into a wire-ready frame. Empty data still produces one frame.
func (s *Stream) Chunk(id protocol.ConnectionID, ch protocol.ChannelID, data []byte) ([][]byte, error) {
	if err := id.Check(); err != nil {
		return nil, err
	}

	n := (len(data) + MaxSegmentSize - 1) / MaxSegmentSize
	if n == 0 {
		n = 1
	}
	out := make([][]byte, 0, n)
	for i := 0; i < n; i++ {
		start := i * MaxSegmentSize
		end := start + MaxSegmentSize
		if end > len(data) {
			end = len(data)
		}
		frame, err := s.seal(id, ch, data[start:end])
		if err != nil {
			return nil, err
		}
		out = append(out, frame)
	}
	return out, nil
}

func (s *Stream) seal(id protocol.ConnectionID, ch protocol.ChannelID, segment []byte) ([]byte, error) {
	var flags byte
	if s.compression != CompressionNone {
		if packed, ok := compressSegment(segment, s.compression); ok {
			segment = packed
			flags |= flagCompressed
		}
	}
	plaintext := make([]byte, 1+len(segment))
	plaintext[0] = flags
	copy(plaintext[1:], segment)

	h := protocol.Header{
		ConnectionID: id,
		Channel:      ch,
		Length:       uint16(len(plaintext) + crypto.Overhead),
	}
	body := s.sc.Encrypt(plaintext, h.Bytes())
	return protocol.EncodeFrame(protocol.Frame{Header: h, Body: body})
}

// Dechunk parses and opens every frame in raw, which must contain whole
// frames only. On any failure nothing is returned and the receive counter
// is left as it was, so a failed call can be retried with intact input.
func (s *Stream) Dechunk(raw []byte) ([]protocol.Packet, error) {
	frames, err := protocol.ParseFrames(raw)
	if err != nil {
		return nil, err
	}
	return s.Open(frames)
}

// Open authenticates and decrypts already split frames, in order, with the
// same all-or-nothing behavior as Dechunk.
func (s *Stream) Open(frames []protocol.Frame) ([]protocol.Packet, error) {
	mark := s.sc.Mark()
	packets := make([]protocol.Packet, 0, len(frames))
	for i, f := range frames {
		p, err := s.open(f)
		if err != nil {
			s.sc.Rewind(mark)
			return nil, errors.WithMessagef(err, "frame %d of %d", i+1, len(frames))
		}
		packets = append(packets, p)
	}
	return packets, nil
}

func (s *Stream) open(f protocol.Frame) (protocol.Packet, error) {
	if len(f.Body) < crypto.Overhead+1 {
		return protocol.Packet{}, errors.Wrapf(protocol.ErrFrame, "body of %d bytes is shorter than the seal", len(f.Body))
	}
	plaintext, err := s.sc.Decrypt(f.Body, f.Header.Bytes())
	if err != nil {
		return protocol.Packet{}, &authError{header: f.Header, err: err}
	}

	flags, segment := plaintext[0], plaintext[1:]
	switch flags {
	case 0:
	case flagCompressed:
		if segment, err = decompressSegment(segment); err != nil {
			return protocol.Packet{}, err
		}
	default:
		return protocol.Packet{}, errors.Wrapf(protocol.ErrFrame, "unknown segment flags %#x", flags)
	}
	return protocol.Packet{
		ConnectionID: f.ConnectionID,
		Channel:      f.Channel,
		Payload:      segment,
	}, nil
}
