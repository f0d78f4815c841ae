package mux

import "sync/atomic"

// Stats tracks traffic through a Connection.
type Stats struct {
	FramesSent     atomic.Int64
	FramesReceived atomic.Int64
	BytesSent      atomic.Int64 // wire bytes, headers and seals included
	BytesReceived  atomic.Int64 // wire bytes, headers and seals included
	Dropped        atomic.Int64 // payloads with no handle registered, or past a full backlog
}
