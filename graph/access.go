package graph

import (
	"fmt"
	"net/netip"
)

// Direction classifies a rule as applying to traffic entering or
// leaving the entities an access group is attached to.
type Direction string

const (
	// DirectionInbound matches traffic arriving at the group's members.
	DirectionInbound Direction = "inbound"

	// DirectionOutbound matches traffic leaving the group's members.
	DirectionOutbound Direction = "outbound"
)

// IsValid returns true if the direction is a recognized value.
func (d Direction) IsValid() bool {
	switch d {
	case DirectionInbound, DirectionOutbound:
		return true
	default:
		return false
	}
}

// String returns the string representation of the direction.
func (d Direction) String() string {
	return string(d)
}

// Protocol identifies the transport protocol a rule matches.
type Protocol string

const (
	// ProtocolTCP matches TCP traffic.
	ProtocolTCP Protocol = "tcp"

	// ProtocolUDP matches UDP traffic.
	ProtocolUDP Protocol = "udp"

	// ProtocolICMP matches ICMP traffic. Port ranges are ignored.
	ProtocolICMP Protocol = "icmp"
)

// IsValid returns true if the protocol is a recognized value.
func (p Protocol) IsValid() bool {
	switch p {
	case ProtocolTCP, ProtocolUDP, ProtocolICMP:
		return true
	default:
		return false
	}
}

// String returns the string representation of the protocol.
func (p Protocol) String() string {
	return string(p)
}

// Ports with a fixed meaning to the hardening checks in the policy
// compiler and the compliance checker.
const (
	PortPlaintextHTTP  uint16 = 80
	PortEncryptedHTTPS uint16 = 443
)

// PortRange is an inclusive range of transport ports.
type PortRange struct {
	From uint16 `json:"from"`
	To   uint16 `json:"to"`
}

// Port returns a PortRange covering a single port.
func Port(p uint16) PortRange {
	return PortRange{From: p, To: p}
}

// Contains returns true if the range includes the given port.
func (pr PortRange) Contains(port uint16) bool {
	return port >= pr.From && port <= pr.To
}

// String returns the range as "from-to", or a single port number when
// the range covers one port.
func (pr PortRange) String() string {
	if pr.From == pr.To {
		return fmt.Sprintf("%d", pr.From)
	}
	return fmt.Sprintf("%d-%d", pr.From, pr.To)
}

// PeerKind discriminates the two legal forms of a rule peer.
type PeerKind string

const (
	// PeerKindCIDR is a raw address range peer.
	PeerKindCIDR PeerKind = "cidr"

	// PeerKindGroup is a reference to another access group.
	PeerKindGroup PeerKind = "group"
)

// Peer is the source (for inbound rules) or destination (for outbound
// rules) of a rule: either a raw address range or a reference to
// another access group, never both.
type Peer struct {
	// Kind selects which of the two fields below is meaningful.
	Kind PeerKind `json:"kind"`

	// CIDR is the address range when Kind is PeerKindCIDR.
	CIDR netip.Prefix `json:"cidr,omitempty"`

	// Group is the referenced access group name when Kind is
	// PeerKindGroup.
	Group string `json:"group,omitempty"`
}

// CIDRPeer returns a Peer for a raw address range.
func CIDRPeer(p netip.Prefix) Peer {
	return Peer{Kind: PeerKindCIDR, CIDR: p}
}

// GroupPeer returns a Peer referencing another access group by name.
func GroupPeer(name string) Peer {
	return Peer{Kind: PeerKindGroup, Group: name}
}

// IsUnrestricted returns true for an all-addresses CIDR peer
// (0.0.0.0/0 or ::/0). Group peers are never unrestricted.
func (p Peer) IsUnrestricted() bool {
	return p.Kind == PeerKindCIDR && p.CIDR.Bits() == 0
}

// String returns the peer's address range or group name.
func (p Peer) String() string {
	if p.Kind == PeerKindGroup {
		return p.Group
	}
	return p.CIDR.String()
}

// Rule is a single allow entry in an access group. The model is
// allow-only: traffic not matched by any rule in a direction is denied.
type Rule struct {
	Direction Direction `json:"direction"`
	Protocol  Protocol  `json:"protocol"`
	Ports     PortRange `json:"ports"`
	Peer      Peer      `json:"peer"`
}

// Validate checks that the rule's enum fields and peer are well formed.
func (r Rule) Validate() error {
	if !r.Direction.IsValid() {
		return fmt.Errorf("rule direction %q is not valid", r.Direction)
	}
	if !r.Protocol.IsValid() {
		return fmt.Errorf("rule protocol %q is not valid", r.Protocol)
	}
	if r.Ports.From > r.Ports.To {
		return fmt.Errorf("rule port range %s is inverted", r.Ports)
	}
	switch r.Peer.Kind {
	case PeerKindCIDR:
		if !r.Peer.CIDR.IsValid() {
			return fmt.Errorf("rule cidr peer is not a valid prefix")
		}
	case PeerKindGroup:
		if r.Peer.Group == "" {
			return fmt.Errorf("rule group peer names no group")
		}
	default:
		return fmt.Errorf("rule peer kind %q is not valid", r.Peer.Kind)
	}
	return nil
}

// AccessGroup is a named, allow-only set of traffic rules scoped to one
// network. Rules are attached after compilation; the set is unordered.
type AccessGroup struct {
	// Name is the logical name, unique among access groups. Required.
	Name string `json:"name"`

	// Network is the name of the owning network. Required.
	Network string `json:"network"`

	// Description is free-form text for operators.
	Description string `json:"description,omitempty"`

	// Inbound and Outbound hold the compiled rules attached to this
	// group. Empty means deny-all for that direction.
	Inbound  []Rule `json:"inbound,omitempty"`
	Outbound []Rule `json:"outbound,omitempty"`
}

// Rules returns the attached rules for the given direction.
func (ag *AccessGroup) Rules(d Direction) []Rule {
	if d == DirectionInbound {
		return ag.Inbound
	}
	return ag.Outbound
}

// Properties returns the access group's attributes as a property map.
func (ag *AccessGroup) Properties() map[string]any {
	return map[string]any{
		"network":        ag.Network,
		"inbound_rules":  len(ag.Inbound),
		"outbound_rules": len(ag.Outbound),
	}
}
