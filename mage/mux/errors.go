package mux

import (
	"net"

	"github.com/pkg/errors"
)

var (
	ErrTransport      = errors.New("mux: transport failure")
	ErrBufferTooSmall = errors.New("mux: read buffer too small for channel payload")
	ErrClosed         = net.ErrClosed
)

// TransportError is a failure of the underlying reader or writer.
// It matches ErrTransport and unwraps to the transport's own error.
type TransportError struct {
	Op  string // "read", "write" or "flush"
	Err error
}

func (e *TransportError) Error() string {
	return "mux: transport " + e.Op + ": " + e.Err.Error()
}

func (e *TransportError) Unwrap() error { return e.Err }

func (e *TransportError) Is(target error) bool { return target == ErrTransport }
