package ftp

import (
	"errors"
	"fmt"
	"net/netip"
	"strconv"
	"strings"
)

// ErrBadPortTuple reports a PORT argument that does not contain six
// comma-separated decimals.
var ErrBadPortTuple = errors.New("ftp: cannot interpret address tuple")

// FormatPasvTuple renders the six-decimal tuple of a PASV reply:
// h1,h2,h3,h4,p1,p2 where p1*256+p2 is the data port.
func FormatPasvTuple(ip netip.Addr, port uint16) string {
	o := ip.As4()
	return fmt.Sprintf("%d,%d,%d,%d,%d,%d", o[0], o[1], o[2], o[3], port>>8, port&0xFF)
}

// ParsePortTuple parses the argument of a PORT command, the same six
// comma-separated decimals PASV emits, into the client address and data port.
func ParsePortTuple(args string) (netip.Addr, uint16, error) {
	parts := strings.Split(args, ",")
	if len(parts) != 6 {
		return netip.Addr{}, 0, ErrBadPortTuple
	}
	var n [6]int
	for i, p := range parts {
		v, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil || v < 0 || v > 255 {
			return netip.Addr{}, 0, ErrBadPortTuple
		}
		n[i] = v
	}
	ip := netip.AddrFrom4([4]byte{byte(n[0]), byte(n[1]), byte(n[2]), byte(n[3])})
	return ip, uint16(n[4])<<8 | uint16(n[5]), nil
}
