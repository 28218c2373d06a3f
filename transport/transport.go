// Package transport implements the Transport (C3): a TCP listener bound to
// a single chosen address that accepts exactly one connection and then
// stops listening, handing the accepted connection off as a byte stream
// for the TLS-PSK engine to drive.
//
// Grounded on session_status_choose_address()'s uv_listen/uv_tcp_bind call
// (_examples/original_source/skt-server.c) and on how the teacher wires a
// net.Listener into a goroutine-per-connection model in obfs4proxy.go's
// acceptLoop (clientHandlerChan-driven accept loop), adapted down to a
// listener that serves exactly one connection, since spec.md's Non-goals
// exclude multi-peer/resumable sessions.
package transport

import (
	"fmt"
	"net"
)

// Listener wraps a net.Listener that is closed after its first successful
// Accept, matching the session's "advertise once, serve one peer" model.
type Listener struct {
	inner net.Listener
}

// Listen opens a TCP listener on addr (an IP chosen by addrsel) and an
// OS-assigned ephemeral port, mirroring uv_tcp_bind(..., 0) in the
// original (the third argument, "ipv6only", is N/A: Go's net package binds
// a single family per net.IP).
func Listen(addr net.IP) (*Listener, error) {
	l, err := net.ListenTCP("tcp", &net.TCPAddr{IP: addr, Port: 0})
	if err != nil {
		return nil, fmt.Errorf("transport: failed to listen: %w", err)
	}
	return &Listener{inner: l}, nil
}

// Addr returns the bound address, including the OS-assigned port -- the
// equivalent of uv_tcp_getsockname() in the original.
func (l *Listener) Addr() net.Addr {
	return l.inner.Addr()
}

// Accept blocks for the single peer connection this listener will ever
// serve, then closes the listening socket itself (no further connections
// are ever accepted on this port, by design: spec.md's Non-goals exclude
// serving more than one peer per session).
func (l *Listener) Accept() (net.Conn, error) {
	conn, err := l.inner.Accept()
	if err != nil {
		return nil, fmt.Errorf("transport: accept failed: %w", err)
	}
	if cerr := l.inner.Close(); cerr != nil {
		conn.Close()
		return nil, fmt.Errorf("transport: failed to stop listening after accept: %w", cerr)
	}
	return conn, nil
}

// Close stops listening without ever having accepted a connection
// (used on startup failure or user-requested cancellation before a peer
// connects).
func (l *Listener) Close() error {
	return l.inner.Close()
}
