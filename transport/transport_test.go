package transport

import (
	"net"
	"testing"
	"time"
)

func TestAcceptClosesListenerAfterOneConnection(t *testing.T) {
	l, err := Listen(net.ParseIP("127.0.0.1"))
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	defer l.Close()

	addr := l.Addr().String()
	go func() {
		conn, err := net.DialTimeout("tcp", addr, time.Second)
		if err != nil {
			return
		}
		conn.Close()
	}()

	conn, err := l.Accept()
	if err != nil {
		t.Fatalf("Accept: %v", err)
	}
	conn.Close()

	if _, err := net.DialTimeout("tcp", addr, 200*time.Millisecond); err == nil {
		t.Fatalf("expected second dial to fail, listener should have stopped")
	}
}
