package skt

import (
	"fmt"
	"io"
	"net"
	"regexp"
	"strconv"

	"github.com/skt-project/skt-server/qr"
	"github.com/skt-project/skt-server/tlspsk"
)

// urlScheme is the advertisement URL's fixed scheme, per spec: the
// literal string the peer's client recognizes and the reason this
// protocol needs no length obfuscation in framing (§11's dropped-siphash
// note) -- it is never meant to look like anything else.
const urlScheme = "OPENPGP+SKT"

var urlPattern = regexp.MustCompile(`^OPENPGP\+SKT://([0-9A-Fa-f]{32})@(\[[0-9A-Fa-f:]+\]|[^@:\[\]]+):(\d+)$`)

// FormatURL builds the advertisement URL: OPENPGP+SKT://<32-hex-upper>@<host>:<port>,
// bracketing IPv6 hosts.
func FormatURL(psk tlspsk.PSK, addr net.IP, port int) string {
	host := addr.String()
	if addr.To4() == nil {
		host = "[" + host + "]"
	}
	return fmt.Sprintf("%s://%s@%s:%d", urlScheme, psk.Hex(), host, port)
}

// ParseURL recovers the PSK hex, host, and port from an advertisement URL,
// the inverse of FormatURL. Used by the URL round-trip property (spec.md
// §8) and by any future client-side tooling.
func ParseURL(url string) (pskHex, host string, port int, err error) {
	m := urlPattern.FindStringSubmatch(url)
	if m == nil {
		return "", "", 0, fmt.Errorf("skt: malformed advertisement URL %q", url)
	}
	port, err = strconv.Atoi(m[3])
	if err != nil {
		return "", "", 0, fmt.Errorf("skt: malformed port in advertisement URL %q: %w", url, err)
	}
	return m[1], m[2], port, nil
}

// Advertise writes the advertisement URL followed by its QR code rendering
// to w, matching the original's behavior of printing the URL line then the
// half-block QR code to standard output.
func Advertise(w io.Writer, psk tlspsk.PSK, addr net.IP, port int) error {
	url := FormatURL(psk, addr, port)
	if _, err := fmt.Fprintln(w, url); err != nil {
		return fmt.Errorf("skt: writing advertisement URL: %w", err)
	}

	code, err := qr.Encode([]byte(url))
	if err != nil {
		return fmt.Errorf("skt: encoding advertisement QR code: %w", err)
	}
	if _, err := io.WriteString(w, code.Render()); err != nil {
		return fmt.Errorf("skt: writing advertisement QR code: %w", err)
	}
	return nil
}
