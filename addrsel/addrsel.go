// Package addrsel implements the Address Selector (C1): choosing which
// local IP address the session advertises and binds to, instead of
// listening on the wildcard address.
//
// Grounded on session_status_choose_address() in
// _examples/original_source/skt-server.c, which walks getifaddrs(3)
// rejecting loopback and down interfaces and takes the first acceptable
// address it finds ("FIXME: we're just taking the first up, non-loopback
// address / be cleverer about prefering wifi, preferring link-local
// addresses, and RFC1918 addresses" -- left as a FIXME in the original and
// carried forward unchanged here, since spec.md's Open Questions do not
// revisit this policy).
package addrsel

import (
	"errors"
	"fmt"
	"log"
	"net"
)

// ErrNoAddress is returned when no interface offers an acceptable address.
var ErrNoAddress = errors.New("addrsel: could not find an acceptable address to bind to")

// Logger is the minimal logging surface addrsel needs; *log.Logger
// satisfies it, matching the bracketed-severity-tag convention the rest of
// this repository's ambient logging uses.
type Logger interface {
	Printf(format string, v ...interface{})
}

// interfaceAddrs abstracts net.Interfaces/net.InterfaceAddrs so tests can
// supply a fake topology without touching the host's real interfaces.
type interfaceAddrs interface {
	Interfaces() ([]net.Interface, error)
	Addrs(iface net.Interface) ([]net.Addr, error)
}

type netInterfaceAddrs struct{}

func (netInterfaceAddrs) Interfaces() ([]net.Interface, error) { return net.Interfaces() }
func (netInterfaceAddrs) Addrs(iface net.Interface) ([]net.Addr, error) { return iface.Addrs() }

// Choose selects the first acceptable address (not loopback, not on a
// down interface) across all local network interfaces. It logs every
// rejected candidate and the one it ultimately picks at verbose>2,
// matching the original's log_level>2 diagnostic.
func Choose(logger Logger, verbose int) (net.IP, error) {
	return choose(netInterfaceAddrs{}, logger, verbose)
}

func choose(src interfaceAddrs, logger Logger, verbose int) (net.IP, error) {
	ifaces, err := src.Interfaces()
	if err != nil {
		return nil, fmt.Errorf("addrsel: enumerating interfaces: %w", err)
	}

	var chosen net.IP
	var chosenIface string

	for _, iface := range ifaces {
		if iface.Flags&net.FlagLoopback != 0 {
			logVerbose(logger, verbose, "skipping %s because it is loopback", iface.Name)
			continue
		}
		if iface.Flags&net.FlagUp == 0 {
			logVerbose(logger, verbose, "skipping %s because it is not up", iface.Name)
			continue
		}

		addrs, err := src.Addrs(iface)
		if err != nil {
			logVerbose(logger, verbose, "skipping %s: %v", iface.Name, err)
			continue
		}
		for _, addr := range addrs {
			ip := ipFromAddr(addr)
			if ip == nil {
				continue
			}
			logVerbose(logger, verbose, "%s %s: %s", marker(chosen), iface.Name, ip)
			if chosen == nil {
				chosen = ip
				chosenIface = iface.Name
			}
		}
	}

	if chosen == nil {
		return nil, ErrNoAddress
	}
	logVerbose(logger, verbose, "selected %s on interface %s", chosen, chosenIface)
	return chosen, nil
}

func marker(chosen net.IP) string {
	if chosen == nil {
		return "*"
	}
	return " "
}

func ipFromAddr(addr net.Addr) net.IP {
	switch a := addr.(type) {
	case *net.IPNet:
		return a.IP
	case *net.IPAddr:
		return a.IP
	default:
		return nil
	}
}

func logVerbose(logger Logger, verbose int, format string, v ...interface{}) {
	if logger == nil || verbose <= 2 {
		return
	}
	logger.Printf("[DEBUG] addrsel: "+format, v...)
}

var _ Logger = (*log.Logger)(nil)
