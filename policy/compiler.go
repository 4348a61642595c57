// Package policy compiles declared high-level access intents into the
// concrete allow-rule sets attached to access groups.
//
// The model is deny-by-default: a group with no declared intent for a
// direction permits nothing in that direction. Two intent forms exist,
// a raw address-range source and a group-to-group grant; the latter
// always compiles to group-reference peers so that cross-group trust
// is never expressed as an address range.
//
// The compiler is pure: it reads the graph to validate references but
// returns the compiled rule sets for the caller to attach.
package policy

import (
	"errors"
	"fmt"
	"log/slog"
	"net/netip"
	"sort"

	"github.com/lainnemunkombwe-cyber/compliant-cloud-perimeter/graph"
)

// Sentinel errors for policy compilation. Both are scoped to a single
// access group; the caller may still compile other artifacts.
var (
	// ErrUnrestrictedAdminAccess indicates an intent opened an
	// administrative port (remote shell and the like) to an
	// unrestricted source.
	ErrUnrestrictedAdminAccess = errors.New("unrestricted source on administrative port")

	// ErrPlaintextIngress indicates an intent opened the plaintext web
	// port to an unrestricted source while the encrypted port is also
	// declared reachable on the same group.
	ErrPlaintextIngress = errors.New("plaintext ingress alongside encrypted port")
)

// defaultAdminPorts are the ports treated as administrative when the
// compiler is not configured with an explicit set.
var defaultAdminPorts = []uint16{22, 3389}

// Intent is one declared high-level allowance. Exactly one of CIDR or
// PeerGroup is set; constructors enforce the distinction.
type Intent struct {
	// Group is the access group the intent applies to.
	Group string `json:"group"`

	// Direction the rule applies to on Group.
	Direction graph.Direction `json:"direction"`

	Protocol graph.Protocol  `json:"protocol"`
	Ports    graph.PortRange `json:"ports"`

	// CIDR is the raw address-range peer, when set.
	CIDR netip.Prefix `json:"cidr,omitempty"`

	// PeerGroup is the referenced access group, when set.
	PeerGroup string `json:"peer_group,omitempty"`
}

// AllowFromCIDR declares that traffic from the given address range may
// reach the group on the given protocol and ports.
func AllowFromCIDR(group string, dir graph.Direction, proto graph.Protocol, ports graph.PortRange, cidr netip.Prefix) Intent {
	return Intent{Group: group, Direction: dir, Protocol: proto, Ports: ports, CIDR: cidr}
}

// AllowGroupToGroup declares that members of from may reach members of
// to on the given protocol and ports. It compiles to an outbound rule
// on from and an inbound rule on to, both with group-reference peers.
func AllowGroupToGroup(from, to string, proto graph.Protocol, ports graph.PortRange) Intent {
	return Intent{Group: to, Direction: graph.DirectionInbound, Protocol: proto, Ports: ports, PeerGroup: from}
}

// RuleSet is the compiled rule set for one access group.
type RuleSet struct {
	Group    string       `json:"group"`
	Inbound  []graph.Rule `json:"inbound,omitempty"`
	Outbound []graph.Rule `json:"outbound,omitempty"`
}

// CompilerOption configures a Compiler.
type CompilerOption func(*Compiler)

// WithAdminPorts replaces the set of ports treated as administrative.
func WithAdminPorts(ports ...uint16) CompilerOption {
	return func(c *Compiler) {
		c.adminPorts = make(map[uint16]bool, len(ports))
		for _, p := range ports {
			c.adminPorts[p] = true
		}
	}
}

// WithLogger sets the compiler's logger.
func WithLogger(logger *slog.Logger) CompilerOption {
	return func(c *Compiler) {
		c.logger = logger
	}
}

// Compiler turns access intents into per-group rule sets.
type Compiler struct {
	adminPorts map[uint16]bool
	logger     *slog.Logger
}

// NewCompiler returns a compiler with the default administrative port
// set (SSH and RDP) unless overridden.
func NewCompiler(opts ...CompilerOption) *Compiler {
	c := &Compiler{adminPorts: make(map[uint16]bool)}
	for _, p := range defaultAdminPorts {
		c.adminPorts[p] = true
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	return c
}

// adminPortIn returns the first configured administrative port covered
// by the range, and whether one is.
func (c *Compiler) adminPortIn(pr graph.PortRange) (uint16, bool) {
	ports := make([]int, 0, len(c.adminPorts))
	for p := range c.adminPorts {
		ports = append(ports, int(p))
	}
	sort.Ints(ports)
	for _, p := range ports {
		if pr.Contains(uint16(p)) {
			return uint16(p), true
		}
	}
	return 0, false
}

// Compile validates and compiles the given intents against the graph.
// Every access group registered in the graph receives a rule set, so
// groups without intents carry explicit deny-all (empty) sets. The
// graph is not mutated; the caller attaches the returned sets.
//
// Compilation fails with ErrUnrestrictedAdminAccess when an intent
// opens an administrative port to an unrestricted source, and with
// ErrPlaintextIngress when an unrestricted inbound intent on port 80
// coexists with a declared inbound intent on port 443 for the same
// group.
func (c *Compiler) Compile(g *graph.Graph, intents []Intent) ([]RuleSet, error) {
	sets := make(map[string]*RuleSet)
	for _, name := range g.AccessGroupNames() {
		sets[name] = &RuleSet{Group: name}
	}

	for _, in := range intents {
		if err := c.validate(g, in); err != nil {
			return nil, err
		}

		rule := graph.Rule{
			Direction: in.Direction,
			Protocol:  in.Protocol,
			Ports:     in.Ports,
		}
		if in.PeerGroup != "" {
			rule.Peer = graph.GroupPeer(in.PeerGroup)
		} else {
			rule.Peer = graph.CIDRPeer(in.CIDR)
		}

		set := sets[in.Group]
		if in.Direction == graph.DirectionInbound {
			set.Inbound = append(set.Inbound, rule)
		} else {
			set.Outbound = append(set.Outbound, rule)
		}

		// A group-to-group grant also opens the reverse direction on
		// the peer so the grant is usable without a blanket egress
		// rule.
		if in.PeerGroup != "" && in.Direction == graph.DirectionInbound {
			peer := sets[in.PeerGroup]
			peer.Outbound = append(peer.Outbound, graph.Rule{
				Direction: graph.DirectionOutbound,
				Protocol:  in.Protocol,
				Ports:     in.Ports,
				Peer:      graph.GroupPeer(in.Group),
			})
		}
	}

	if err := c.checkPlaintextIngress(sets); err != nil {
		return nil, err
	}

	out := make([]RuleSet, 0, len(sets))
	for _, name := range g.AccessGroupNames() {
		out = append(out, *sets[name])
	}
	return out, nil
}

func (c *Compiler) validate(g *graph.Graph, in Intent) error {
	if _, err := g.AccessGroup(in.Group); err != nil {
		return err
	}
	if !in.Direction.IsValid() {
		return fmt.Errorf("intent for group %q: direction %q is not valid", in.Group, in.Direction)
	}
	if !in.Protocol.IsValid() {
		return fmt.Errorf("intent for group %q: protocol %q is not valid", in.Group, in.Protocol)
	}
	if in.Ports.From > in.Ports.To {
		return fmt.Errorf("intent for group %q: port range %s is inverted", in.Group, in.Ports)
	}
	if in.PeerGroup != "" {
		if in.CIDR.IsValid() {
			return fmt.Errorf("intent for group %q: both cidr and peer group set", in.Group)
		}
		if _, err := g.AccessGroup(in.PeerGroup); err != nil {
			return err
		}
		return nil
	}
	if !in.CIDR.IsValid() {
		return fmt.Errorf("intent for group %q: neither cidr nor peer group set", in.Group)
	}
	if in.CIDR.Bits() == 0 {
		if port, ok := c.adminPortIn(in.Ports); ok {
			return fmt.Errorf("group %q port %d: %w", in.Group, port, ErrUnrestrictedAdminAccess)
		}
	}
	return nil
}

// checkPlaintextIngress rejects unrestricted inbound port 80 on any
// group that also declares inbound port 443; encrypted-only public
// ingress is the model's contract.
func (c *Compiler) checkPlaintextIngress(sets map[string]*RuleSet) error {
	groups := make([]string, 0, len(sets))
	for name := range sets {
		groups = append(groups, name)
	}
	sort.Strings(groups)
	for _, name := range groups {
		set := sets[name]
		var plaintextOpen, encryptedReachable bool
		for _, r := range set.Inbound {
			if r.Ports.Contains(graph.PortEncryptedHTTPS) {
				encryptedReachable = true
			}
			if r.Ports.Contains(graph.PortPlaintextHTTP) && r.Peer.IsUnrestricted() {
				plaintextOpen = true
			}
		}
		if plaintextOpen && encryptedReachable {
			return fmt.Errorf("group %q: %w", set.Group, ErrPlaintextIngress)
		}
	}
	return nil
}
