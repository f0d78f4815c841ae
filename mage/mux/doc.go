// Package mux multiplexes channels over one encrypted mage connection.
//
// A Connection wraps a duplex byte stream (any io.Reader plus io.Writer)
// with a stream.Stream codec. It can be used directly, one blocking call at
// a time (ReadAllChannels, WriteChannel), or through Channel handles that
// are serviced by repeatedly calling ChannelLoop:
//
//	conn, err := mux.New(0, tcpConn, tcpConn, false, seed, serverKey)
//	ch := conn.GetChannel(4)
//	go func() { ch.Write([]byte("hello")) }()
//	for {
//		if err := conn.ChannelLoop(); err != nil {
//			return err
//		}
//	}
//
// The package starts no goroutines. Channel handles may be used from other
// goroutines; a Channel operation completes only when the goroutine driving
// ChannelLoop hands data to or from it.
package mux
