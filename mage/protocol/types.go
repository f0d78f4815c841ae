// Package protocol defines the mage wire frame and the identifiers it carries.
package protocol

import (
	"fmt"

	"github.com/pkg/errors"
)

// ConnectionID identifies one logical link. It occupies 3 bytes on the wire.
type ConnectionID uint32

// ChannelID identifies one multiplexed stream within a connection.
type ChannelID uint8

const (
	// MaxConnectionID is the largest id that fits the 3-byte header field.
	MaxConnectionID ConnectionID = 0xFFFFFF

	// DefaultChannel carries the legacy whole-connection stream.
	DefaultChannel ChannelID = 0
)

var ErrConnectionIDRange = errors.New("protocol: connection id does not fit in 3 bytes")

// Valid reports whether id can be serialized.
func (id ConnectionID) Valid() bool { return id <= MaxConnectionID }

// Check returns ErrConnectionIDRange if id cannot be serialized.
func (id ConnectionID) Check() error {
	if !id.Valid() {
		return errors.Wrapf(ErrConnectionIDRange, "%#x", uint32(id))
	}
	return nil
}

func (id ConnectionID) String() string { return fmt.Sprintf("conn-%06x", uint32(id)) }

func (c ChannelID) String() string { return fmt.Sprintf("ch-%d", uint8(c)) }

// Packet is one decoded frame: the channel segment it carried, in plaintext.
type Packet struct {
	ConnectionID ConnectionID
	Channel      ChannelID
	Payload      []byte
}
