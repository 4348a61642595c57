package topology

import (
	"encoding/binary"
	"fmt"
	"net/netip"
)

// defaultDestination is the all-addresses route destination.
func defaultDestination() netip.Prefix {
	return netip.PrefixFrom(netip.IPv4Unspecified(), 0)
}

// blockCapacity returns how many sub-blocks of the given prefix length
// fit inside the parent prefix. Returns 0 when the sub-block is not
// smaller than the parent.
func blockCapacity(parent netip.Prefix, subnetBits int) int {
	if subnetBits <= parent.Bits() || subnetBits > parent.Addr().BitLen() {
		return 0
	}
	shift := subnetBits - parent.Bits()
	if shift >= 31 {
		return 1 << 30
	}
	return 1 << shift
}

// blockAt returns the index-th sub-block of the given prefix length
// inside the parent, counting from zero in address order. Only IPv4
// parents are supported; cloud perimeter networks are IPv4 address
// spaces.
func blockAt(parent netip.Prefix, subnetBits, index int) (netip.Prefix, error) {
	addr := parent.Masked().Addr()
	if !addr.Is4() {
		return netip.Prefix{}, fmt.Errorf("network %s: only IPv4 networks are supported", parent)
	}
	if cap := blockCapacity(parent, subnetBits); index >= cap {
		return netip.Prefix{}, fmt.Errorf("block index %d out of range for /%d inside %s", index, subnetBits, parent)
	}
	a4 := addr.As4()
	base := binary.BigEndian.Uint32(a4[:])
	step := uint32(1) << (32 - subnetBits)
	base += uint32(index) * step
	var out [4]byte
	binary.BigEndian.PutUint32(out[:], base)
	return netip.PrefixFrom(netip.AddrFrom4(out), subnetBits), nil
}
