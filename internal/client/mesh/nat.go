package mesh

import (
	"net"
	"strings"
)

// Shared address space used by carrier-grade NAT and by overlay VPNs such
// as Tailscale and WARP.
var cgnat = &net.IPNet{IP: net.IPv4(100, 64, 0, 0).To4(), Mask: net.CIDRMask(10, 32)}

var tunnelNames = []string{"tun", "tap", "wg", "ppp", "warp"}

// BehindRestrictiveNAT reports whether an active interface looks like a VPN
// tunnel or sits in the CGNAT range. Direct connections from such hosts
// usually fail without a TURN relay.
func BehindRestrictiveNAT() bool {
	ifaces, err := net.Interfaces()
	if err != nil {
		return false
	}
	for _, iface := range ifaces {
		if iface.Flags&net.FlagUp == 0 || iface.Flags&net.FlagLoopback != 0 {
			continue
		}
		addrs, err := iface.Addrs()
		if err != nil {
			addrs = nil
		}
		if restrictive(iface.Name, ips(addrs)) {
			return true
		}
	}
	return false
}

func restrictive(name string, addrs []net.IP) bool {
	name = strings.ToLower(name)
	for _, t := range tunnelNames {
		if strings.Contains(name, t) {
			return true
		}
	}
	for _, ip := range addrs {
		if cgnat.Contains(ip) {
			return true
		}
	}
	return false
}

func ips(addrs []net.Addr) []net.IP {
	out := make([]net.IP, 0, len(addrs))
	for _, a := range addrs {
		switch v := a.(type) {
		case *net.IPNet:
			out = append(out, v.IP)
		case *net.IPAddr:
			out = append(out, v.IP)
		}
	}
	return out
}
