// Package compliance verifies a resolved perimeter graph against the
// segmentation and least-privilege invariants and reports every breach
// it finds.
//
// The checker is the final gate before artifacts are handed to the
// provisioning collaborator. It never mutates the graph and never
// stops at the first problem: the caller gets the complete violation
// list and decides whether to block provisioning (emit-then-warn).
// Operator-supplied rules written as CEL expressions run after the
// built-in invariants.
package compliance

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/lainnemunkombwe-cyber/compliant-cloud-perimeter/graph"
)

// Invariant names, as reported in violations.
const (
	InvariantSubnetContainment     = "subnet-containment"
	InvariantPrivateNoGatewayRoute = "private-no-gateway-route"
	InvariantAdminPortRestricted   = "admin-port-restricted"
	InvariantPlaintextIngress      = "plaintext-over-encrypted"
	InvariantCrossTierReference    = "cross-tier-group-reference"
	InvariantScopedActionsOnly     = "scoped-actions-only"
	InvariantBindingCardinality    = "binding-cardinality"
)

// defaultAdminPorts mirrors the policy compiler's default set.
var defaultAdminPorts = []uint16{22, 3389}

// Option configures a Checker.
type Option func(*Checker)

// WithAdminPorts replaces the set of ports treated as administrative.
func WithAdminPorts(ports ...uint16) Option {
	return func(c *Checker) {
		c.adminPorts = make(map[uint16]bool, len(ports))
		for _, p := range ports {
			c.adminPorts[p] = true
		}
	}
}

// WithRule registers an operator-supplied CEL rule, evaluated per
// entity after the built-in invariants.
func WithRule(r *CustomRule) Option {
	return func(c *Checker) {
		c.rules = append(c.rules, r)
	}
}

// WithLogger sets the checker's logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Checker) {
		c.logger = logger
	}
}

// Checker runs the compliance invariants over a resolved graph.
type Checker struct {
	adminPorts map[uint16]bool
	rules      []*CustomRule
	logger     *slog.Logger
}

// NewChecker returns a checker with the default administrative port
// set unless overridden.
func NewChecker(opts ...Option) *Checker {
	c := &Checker{adminPorts: make(map[uint16]bool)}
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

// Check walks the resolved graph and returns the complete, ordered
// violation list. An empty report signals a compliant graph. Check is
// a pure verification pass; the graph is never mutated.
func (c *Checker) Check(g *graph.Graph) *Report {
	report := newReport()

	c.checkSubnetContainment(g, report)
	c.checkPrivateRouteDomains(g, report)
	c.checkAdminPorts(g, report)
	c.checkPlaintextIngress(g, report)
	c.checkCrossTierReferences(g, report)
	c.checkScopedActions(g, report)
	c.checkBindingCardinality(g, report)
	c.runCustomRules(g, report)

	if !report.Compliant() {
		c.logger.Warn("compliance check found violations",
			"report_id", report.ID,
			"violations", len(report.Violations),
			"risk_score", report.RiskScore())
	}
	return report
}

// checkSubnetContainment asserts that within each network all subnet
// blocks are contained in the network block and pairwise disjoint.
func (c *Checker) checkSubnetContainment(g *graph.Graph, report *Report) {
	for _, netName := range g.NetworkNames() {
		n, _ := g.Network(netName)
		subnets := g.SubnetsOfNetwork(netName)
		for i, s := range subnets {
			contained := n.CIDR.Contains(s.CIDR.Addr()) && s.CIDR.Bits() >= n.CIDR.Bits()
			if !contained {
				report.add(InvariantSubnetContainment, SeverityHigh,
					fmt.Sprintf("subnet block %s is not contained in network block %s", s.CIDR, n.CIDR),
					s.Name, netName)
			}
			for _, other := range subnets[i+1:] {
				if s.CIDR.Overlaps(other.CIDR) {
					report.add(InvariantSubnetContainment, SeverityHigh,
						fmt.Sprintf("subnet blocks %s and %s overlap", s.CIDR, other.CIDR),
						s.Name, other.Name)
				}
			}
		}
	}
}

// checkPrivateRouteDomains asserts that no private subnet can reach a
// gateway: its route domain must be private-tier and carry no gateway
// route. A wrong attachment yields a single violation naming the
// subnet and the domain.
func (c *Checker) checkPrivateRouteDomains(g *graph.Graph, report *Report) {
	for _, name := range g.SubnetNames() {
		s, _ := g.Subnet(name)
		if s.Tier != graph.TierPrivate {
			continue
		}
		rd, err := g.RouteDomain(s.RouteDomain)
		if err != nil {
			continue
		}
		var gatewayRoute bool
		for _, r := range rd.Routes {
			if r.Gateway != "" {
				gatewayRoute = true
				break
			}
		}
		switch {
		case gatewayRoute:
			report.add(InvariantPrivateNoGatewayRoute, SeverityHigh,
				fmt.Sprintf("private subnet %q is attached to route domain %q which routes to a gateway", s.Name, rd.Name),
				s.Name, rd.Name)
		case rd.Tier != graph.TierPrivate:
			report.add(InvariantPrivateNoGatewayRoute, SeverityHigh,
				fmt.Sprintf("private subnet %q is attached to %s-tier route domain %q", s.Name, rd.Tier, rd.Name),
				s.Name, rd.Name)
		}
	}
}

// checkAdminPorts asserts that no attached rule opens an
// administrative port to an unrestricted source.
func (c *Checker) checkAdminPorts(g *graph.Graph, report *Report) {
	ports := make([]int, 0, len(c.adminPorts))
	for p := range c.adminPorts {
		ports = append(ports, int(p))
	}
	sort.Ints(ports)

	for _, name := range g.AccessGroupNames() {
		ag, _ := g.AccessGroup(name)
		for _, r := range ag.Inbound {
			if !r.Peer.IsUnrestricted() {
				continue
			}
			for _, p := range ports {
				if r.Ports.Contains(uint16(p)) {
					report.add(InvariantAdminPortRestricted, SeverityCritical,
						fmt.Sprintf("access group %q exposes administrative port %d to %s", name, p, r.Peer),
						name)
					break
				}
			}
		}
	}
}

// checkPlaintextIngress asserts that no group serves unrestricted
// plaintext web traffic while the encrypted port is reachable.
func (c *Checker) checkPlaintextIngress(g *graph.Graph, report *Report) {
	for _, name := range g.AccessGroupNames() {
		ag, _ := g.AccessGroup(name)
		var plaintextOpen, encryptedReachable bool
		for _, r := range ag.Inbound {
			if r.Ports.Contains(graph.PortEncryptedHTTPS) {
				encryptedReachable = true
			}
			if r.Ports.Contains(graph.PortPlaintextHTTP) && r.Peer.IsUnrestricted() {
				plaintextOpen = true
			}
		}
		if plaintextOpen && encryptedReachable {
			report.add(InvariantPlaintextIngress, SeverityHigh,
				fmt.Sprintf("access group %q serves unrestricted port %d while port %d is reachable",
					name, graph.PortPlaintextHTTP, graph.PortEncryptedHTTPS),
				name)
		}
	}
}

// checkCrossTierReferences asserts that trust between two modeled
// access groups is expressed as a group reference, never as the peer
// subnet's raw address range.
func (c *Checker) checkCrossTierReferences(g *graph.Graph, report *Report) {
	for _, name := range g.AccessGroupNames() {
		ag, _ := g.AccessGroup(name)
		ownTiers := c.groupTiers(g, name)
		for _, r := range append(append([]graph.Rule{}, ag.Inbound...), ag.Outbound...) {
			if r.Peer.Kind != graph.PeerKindCIDR {
				continue
			}
			peerSubnet := g.SubnetByCIDR(r.Peer.CIDR.String())
			if peerSubnet == nil {
				continue
			}
			// The peer range is a modeled subnet; only flag it when a
			// modeled group sits on the other end.
			if !c.subnetHostsGroups(g, peerSubnet.Name) {
				continue
			}
			crossTier := len(ownTiers) == 0 || !ownTiers[peerSubnet.Tier]
			if crossTier {
				report.add(InvariantCrossTierReference, SeverityMedium,
					fmt.Sprintf("access group %q addresses peer subnet %q by raw range %s; reference the peer access group instead", name, peerSubnet.Name, r.Peer.CIDR),
					name, peerSubnet.Name)
			}
		}
	}
}

// groupTiers returns the tiers of the subnets hosting the group's
// compute entities.
func (c *Checker) groupTiers(g *graph.Graph, group string) map[graph.Tier]bool {
	tiers := make(map[graph.Tier]bool)
	for _, compute := range g.ComputesInGroup(group) {
		if s, err := g.Subnet(compute.Subnet); err == nil {
			tiers[s.Tier] = true
		}
	}
	return tiers
}

// subnetHostsGroups returns true when at least one compute in the
// subnet is attached to a modeled access group.
func (c *Checker) subnetHostsGroups(g *graph.Graph, subnet string) bool {
	for _, name := range g.ComputeNames() {
		compute, _ := g.Compute(name)
		if compute.Subnet == subnet && len(compute.AccessGroups) > 0 {
			return true
		}
	}
	return false
}

// checkScopedActions asserts that identities enumerate actions
// explicitly: no wildcard-on-wildcard statement without the bootstrap
// mark, and no managed full-access permission set.
func (c *Checker) checkScopedActions(g *graph.Graph, report *Report) {
	for _, name := range g.IdentityNames() {
		id, _ := g.Identity(name)

		stmtNames := make([]string, 0, len(id.Statements))
		for n := range id.Statements {
			stmtNames = append(stmtNames, n)
		}
		sort.Strings(stmtNames)

		for _, stmtName := range stmtNames {
			stmt := id.Statements[stmtName]
			if stmt.Resource != "*" {
				continue
			}
			for _, a := range stmt.Actions {
				if a == "*" && !id.ProviderManagedBootstrap {
					report.add(InvariantScopedActionsOnly, SeverityHigh,
						fmt.Sprintf("identity %q statement %q grants all actions on all resources", name, stmtName),
						name)
					break
				}
			}
		}

		for _, mp := range id.ManagedPolicies {
			if strings.Contains(mp, "FullAccess") && !id.ProviderManagedBootstrap {
				report.add(InvariantScopedActionsOnly, SeverityHigh,
					fmt.Sprintf("identity %q attaches managed full-access set %q; use a scoped equivalent", name, mp),
					name)
			}
		}
	}
}

// checkBindingCardinality asserts that every compute entity has
// exactly one binding and that no binding serves two compute entities.
func (c *Checker) checkBindingCardinality(g *graph.Graph, report *Report) {
	bindingUsers := make(map[string][]string)
	for _, name := range g.ComputeNames() {
		compute, _ := g.Compute(name)
		if compute.Binding == "" {
			report.add(InvariantBindingCardinality, SeverityMedium,
				fmt.Sprintf("compute %q has no binding and cannot receive credentials", name),
				name)
			continue
		}
		bindingUsers[compute.Binding] = append(bindingUsers[compute.Binding], name)
	}

	for _, binding := range g.BindingNames() {
		users := bindingUsers[binding]
		if len(users) > 1 {
			report.add(InvariantBindingCardinality, SeverityMedium,
				fmt.Sprintf("binding %q is shared by %d compute entities", binding, len(users)),
				append([]string{binding}, users...)...)
		}
	}
}

// runCustomRules evaluates operator-supplied CEL rules against every
// entity in the graph, in a fixed entity order.
func (c *Checker) runCustomRules(g *graph.Graph, report *Report) {
	if len(c.rules) == 0 {
		return
	}
	for _, e := range graphEntities(g) {
		for _, rule := range c.rules {
			matched, err := rule.eval(e.kind, e.name, e.properties)
			if err != nil {
				c.logger.Warn("custom rule evaluation failed",
					"rule", rule.Name(),
					"entity", e.name,
					"error", err)
				continue
			}
			if matched {
				report.add(rule.Name(), rule.Severity(), rule.Message(), e.name)
			}
		}
	}
}

type entity struct {
	kind       string
	name       string
	properties map[string]any
}

// graphEntities flattens the graph into (kind, name, properties)
// tuples in a deterministic order.
func graphEntities(g *graph.Graph) []entity {
	var out []entity
	for _, name := range g.NetworkNames() {
		n, _ := g.Network(name)
		out = append(out, entity{"network", name, n.Properties()})
	}
	for _, name := range g.GatewayNames() {
		gw, _ := g.Gateway(name)
		out = append(out, entity{"gateway", name, gw.Properties()})
	}
	for _, name := range g.SubnetNames() {
		s, _ := g.Subnet(name)
		out = append(out, entity{"subnet", name, s.Properties()})
	}
	for _, name := range g.RouteDomainNames() {
		rd, _ := g.RouteDomain(name)
		out = append(out, entity{"route_domain", name, rd.Properties()})
	}
	for _, name := range g.AccessGroupNames() {
		ag, _ := g.AccessGroup(name)
		out = append(out, entity{"access_group", name, ag.Properties()})
	}
	for _, name := range g.IdentityNames() {
		id, _ := g.Identity(name)
		out = append(out, entity{"identity", name, id.Properties()})
	}
	for _, name := range g.BindingNames() {
		b, _ := g.Binding(name)
		out = append(out, entity{"binding", name, b.Properties()})
	}
	for _, name := range g.ComputeNames() {
		compute, _ := g.Compute(name)
		out = append(out, entity{"compute", name, compute.Properties()})
	}
	return out
}
