package skt

import (
	"bytes"
	"net"
	"testing"

	"github.com/skt-project/skt-server/tlspsk"
)

func TestFormatURLRoundTrip(t *testing.T) {
	cases := []struct {
		addr string
		port int
	}{
		{"127.0.0.1", 9001},
		{"192.168.1.42", 65535},
		{"::1", 443},
		{"2001:db8::1", 1},
	}

	psk, err := tlspsk.NewPSK()
	if err != nil {
		t.Fatalf("NewPSK: %v", err)
	}

	for _, tc := range cases {
		addr := net.ParseIP(tc.addr)
		if addr == nil {
			t.Fatalf("ParseIP(%q) failed", tc.addr)
		}
		url := FormatURL(psk, addr, tc.port)

		hex, host, port, err := ParseURL(url)
		if err != nil {
			t.Fatalf("ParseURL(%q): %v", url, err)
		}
		if hex != psk.Hex() {
			t.Errorf("url %q: hex = %q, want %q", url, hex, psk.Hex())
		}
		if len(hex) != 32 {
			t.Errorf("url %q: hex length = %d, want 32", url, len(hex))
		}
		wantHost := addr.String()
		if addr.To4() == nil {
			wantHost = "[" + wantHost + "]"
		}
		if host != wantHost {
			t.Errorf("url %q: host = %q, want %q", url, host, wantHost)
		}
		if port != tc.port {
			t.Errorf("url %q: port = %d, want %d", url, port, tc.port)
		}
	}
}

func TestParseURLRejectsMalformed(t *testing.T) {
	cases := []string{
		"",
		"OPENPGP+SKT://short@127.0.0.1:80",
		"http://AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA@127.0.0.1:80",
		"OPENPGP+SKT://AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA@127.0.0.1:notaport",
	}
	for _, c := range cases {
		if _, _, _, err := ParseURL(c); err == nil {
			t.Errorf("ParseURL(%q) succeeded, want error", c)
		}
	}
}

func TestAdvertiseWritesURLThenQRCode(t *testing.T) {
	psk, err := tlspsk.NewPSK()
	if err != nil {
		t.Fatalf("NewPSK: %v", err)
	}
	var buf bytes.Buffer
	if err := Advertise(&buf, psk, net.ParseIP("127.0.0.1"), 9001); err != nil {
		t.Fatalf("Advertise: %v", err)
	}
	out := buf.String()
	wantURL := FormatURL(psk, net.ParseIP("127.0.0.1"), 9001)
	if !bytes.HasPrefix([]byte(out), []byte(wantURL+"\n")) {
		t.Fatalf("Advertise output does not start with the URL line: %q", out[:min(len(out), 80)])
	}
	if len(out) <= len(wantURL)+1 {
		t.Fatalf("Advertise output has no QR code body")
	}
}
