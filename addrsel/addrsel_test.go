package addrsel

import (
	"net"
	"testing"
)

type fakeTopology struct {
	ifaces []net.Interface
	addrs  map[string][]net.Addr
}

func (f fakeTopology) Interfaces() ([]net.Interface, error) { return f.ifaces, nil }
func (f fakeTopology) Addrs(iface net.Interface) ([]net.Addr, error) {
	return f.addrs[iface.Name], nil
}

func mustParseIPNet(t *testing.T, cidr string) *net.IPNet {
	t.Helper()
	ip, ipnet, err := net.ParseCIDR(cidr)
	if err != nil {
		t.Fatalf("ParseCIDR(%q): %v", cidr, err)
	}
	ipnet.IP = ip
	return ipnet
}

func TestChooseSkipsLoopbackAndDown(t *testing.T) {
	topo := fakeTopology{
		ifaces: []net.Interface{
			{Name: "lo", Flags: net.FlagUp | net.FlagLoopback},
			{Name: "eth_down", Flags: 0},
			{Name: "eth0", Flags: net.FlagUp},
		},
		addrs: map[string][]net.Addr{
			"lo":       {mustParseIPNet(t, "127.0.0.1/8")},
			"eth_down": {mustParseIPNet(t, "203.0.113.5/24")},
			"eth0":     {mustParseIPNet(t, "192.0.2.10/24")},
		},
	}

	ip, err := choose(topo, nil, 0)
	if err != nil {
		t.Fatalf("choose: %v", err)
	}
	if ip.String() != "192.0.2.10" {
		t.Fatalf("choose = %s, want 192.0.2.10", ip)
	}
}

func TestChooseFirstMatchWins(t *testing.T) {
	topo := fakeTopology{
		ifaces: []net.Interface{
			{Name: "eth0", Flags: net.FlagUp},
			{Name: "eth1", Flags: net.FlagUp},
		},
		addrs: map[string][]net.Addr{
			"eth0": {mustParseIPNet(t, "192.0.2.10/24")},
			"eth1": {mustParseIPNet(t, "192.0.2.20/24")},
		},
	}

	ip, err := choose(topo, nil, 0)
	if err != nil {
		t.Fatalf("choose: %v", err)
	}
	if ip.String() != "192.0.2.10" {
		t.Fatalf("choose = %s, want first-interface address 192.0.2.10", ip)
	}
}

func TestChooseNoAcceptableAddress(t *testing.T) {
	topo := fakeTopology{
		ifaces: []net.Interface{
			{Name: "lo", Flags: net.FlagUp | net.FlagLoopback},
		},
		addrs: map[string][]net.Addr{
			"lo": {mustParseIPNet(t, "127.0.0.1/8")},
		},
	}

	if _, err := choose(topo, nil, 0); err != ErrNoAddress {
		t.Fatalf("choose error = %v, want %v", err, ErrNoAddress)
	}
}
