package compliance

import (
	"net/netip"
	"testing"

	"github.com/lainnemunkombwe-cyber/compliant-cloud-perimeter/graph"
)

func mustAdd(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("graph construction error = %v", err)
	}
}

// compliantGraph builds a small graph that satisfies every invariant.
func compliantGraph(t *testing.T) *graph.Graph {
	t.Helper()
	g := graph.New()
	mustAdd(t, g.AddNetwork(graph.Network{Name: "prod", CIDR: netip.MustParsePrefix("10.0.0.0/16"), MonitoringEnabled: true}))
	mustAdd(t, g.AddGateway(graph.Gateway{Name: "prod-igw", Network: "prod"}))
	mustAdd(t, g.AddRouteDomain(graph.RouteDomain{
		Name: "prod-public", Network: "prod", Tier: graph.TierPublic,
		Routes: []graph.Route{{Destination: netip.MustParsePrefix("0.0.0.0/0"), Gateway: "prod-igw"}},
	}))
	mustAdd(t, g.AddRouteDomain(graph.RouteDomain{Name: "prod-private", Network: "prod", Tier: graph.TierPrivate}))
	mustAdd(t, g.AddSubnet(graph.Subnet{
		Name: "prod-public-a", Network: "prod", CIDR: netip.MustParsePrefix("10.0.1.0/24"),
		Tier: graph.TierPublic, AvailabilityZone: "a", RouteDomain: "prod-public",
	}))
	mustAdd(t, g.AddSubnet(graph.Subnet{
		Name: "prod-private-a", Network: "prod", CIDR: netip.MustParsePrefix("10.0.3.0/24"),
		Tier: graph.TierPrivate, AvailabilityZone: "a", RouteDomain: "prod-private",
	}))
	mustAdd(t, g.AddAccessGroup(graph.AccessGroup{Name: "web", Network: "prod"}))
	mustAdd(t, g.AddAccessGroup(graph.AccessGroup{Name: "app", Network: "prod"}))
	mustAdd(t, g.AddIdentity(graph.Identity{
		Name:  "web-role",
		Trust: graph.TrustStatement{PrincipalType: "service", Principals: []string{"compute-service"}},
		Statements: map[string]graph.Statement{
			"write-logs": {Effect: graph.EffectAllow, Actions: []string{"logs:PutLogEvents"}, Resource: "arn:aws:logs:*"},
		},
	}))
	mustAdd(t, g.AddBinding(graph.Binding{Name: "web-profile", Identity: "web-role"}))
	mustAdd(t, g.AddBinding(graph.Binding{Name: "app-profile", Identity: "web-role"}))
	mustAdd(t, g.AddCompute(graph.Compute{Name: "web-1", Subnet: "prod-public-a", AccessGroups: []string{"web"}, Binding: "web-profile"}))
	mustAdd(t, g.AddCompute(graph.Compute{Name: "app-1", Subnet: "prod-private-a", AccessGroups: []string{"app"}, Binding: "app-profile"}))

	mustAdd(t, g.AttachRules("web",
		[]graph.Rule{{Direction: graph.DirectionInbound, Protocol: graph.ProtocolTCP, Ports: graph.Port(443), Peer: graph.CIDRPeer(netip.MustParsePrefix("0.0.0.0/0"))}},
		[]graph.Rule{{Direction: graph.DirectionOutbound, Protocol: graph.ProtocolTCP, Ports: graph.Port(8080), Peer: graph.GroupPeer("app")}},
	))
	mustAdd(t, g.AttachRules("app",
		[]graph.Rule{{Direction: graph.DirectionInbound, Protocol: graph.ProtocolTCP, Ports: graph.Port(8080), Peer: graph.GroupPeer("web")}},
		nil,
	))
	return g
}

func TestCheck_CompliantGraph(t *testing.T) {
	report := NewChecker().Check(compliantGraph(t))
	if !report.Compliant() {
		t.Errorf("Check() found %d violations on a compliant graph: %v", len(report.Violations), report.Violations)
	}
	if report.ID == "" {
		t.Error("Check() report has no ID")
	}
	if report.RiskScore() != 0 {
		t.Errorf("RiskScore() = %v, want 0", report.RiskScore())
	}
}

func TestCheck_PrivateSubnetOnPublicRouteDomain(t *testing.T) {
	g := graph.New()
	mustAdd(t, g.AddNetwork(graph.Network{Name: "prod", CIDR: netip.MustParsePrefix("10.0.0.0/16")}))
	mustAdd(t, g.AddGateway(graph.Gateway{Name: "prod-igw", Network: "prod"}))
	mustAdd(t, g.AddRouteDomain(graph.RouteDomain{
		Name: "prod-public", Network: "prod", Tier: graph.TierPublic,
		Routes: []graph.Route{{Destination: netip.MustParsePrefix("0.0.0.0/0"), Gateway: "prod-igw"}},
	}))
	// Wrong attachment: private subnet on the public route domain.
	mustAdd(t, g.AddSubnet(graph.Subnet{
		Name: "prod-private-a", Network: "prod", CIDR: netip.MustParsePrefix("10.0.3.0/24"),
		Tier: graph.TierPrivate, AvailabilityZone: "a", RouteDomain: "prod-public",
	}))

	report := NewChecker().Check(g)
	violations := report.ByInvariant(InvariantPrivateNoGatewayRoute)
	if len(violations) != 1 {
		t.Fatalf("violations = %d, want exactly 1: %v", len(report.Violations), report.Violations)
	}
	v := violations[0]
	if len(v.EntityIDs) != 2 || v.EntityIDs[0] != "prod-private-a" || v.EntityIDs[1] != "prod-public" {
		t.Errorf("EntityIDs = %v, want [prod-private-a prod-public]", v.EntityIDs)
	}
	if len(report.Violations) != 1 {
		t.Errorf("total violations = %d, want 1", len(report.Violations))
	}
}

func TestCheck_SubnetContainment(t *testing.T) {
	g := graph.New()
	mustAdd(t, g.AddNetwork(graph.Network{Name: "prod", CIDR: netip.MustParsePrefix("10.0.0.0/16")}))
	mustAdd(t, g.AddRouteDomain(graph.RouteDomain{Name: "rd", Network: "prod", Tier: graph.TierPrivate}))
	// Outside the network block.
	mustAdd(t, g.AddSubnet(graph.Subnet{
		Name: "stray", Network: "prod", CIDR: netip.MustParsePrefix("192.168.1.0/24"),
		Tier: graph.TierPrivate, AvailabilityZone: "a", RouteDomain: "rd",
	}))
	// Two overlapping blocks inside the network.
	mustAdd(t, g.AddSubnet(graph.Subnet{
		Name: "wide", Network: "prod", CIDR: netip.MustParsePrefix("10.0.0.0/23"),
		Tier: graph.TierPrivate, AvailabilityZone: "a", RouteDomain: "rd",
	}))
	mustAdd(t, g.AddSubnet(graph.Subnet{
		Name: "nested", Network: "prod", CIDR: netip.MustParsePrefix("10.0.1.0/24"),
		Tier: graph.TierPrivate, AvailabilityZone: "a", RouteDomain: "rd",
	}))

	report := NewChecker().Check(g)
	violations := report.ByInvariant(InvariantSubnetContainment)
	if len(violations) != 2 {
		t.Fatalf("containment violations = %d, want 2 (one stray, one overlap): %v", len(violations), violations)
	}
}

func TestCheck_AdminPortExposure(t *testing.T) {
	g := graph.New()
	mustAdd(t, g.AddNetwork(graph.Network{Name: "prod", CIDR: netip.MustParsePrefix("10.0.0.0/16")}))
	mustAdd(t, g.AddAccessGroup(graph.AccessGroup{Name: "bastion", Network: "prod"}))
	mustAdd(t, g.AttachRules("bastion",
		[]graph.Rule{{Direction: graph.DirectionInbound, Protocol: graph.ProtocolTCP, Ports: graph.Port(22), Peer: graph.CIDRPeer(netip.MustParsePrefix("0.0.0.0/0"))}},
		nil,
	))

	report := NewChecker().Check(g)
	violations := report.ByInvariant(InvariantAdminPortRestricted)
	if len(violations) != 1 {
		t.Fatalf("admin port violations = %d, want 1", len(violations))
	}
	if violations[0].Severity != SeverityCritical {
		t.Errorf("severity = %v, want critical", violations[0].Severity)
	}
}

func TestCheck_PlaintextIngress(t *testing.T) {
	g := graph.New()
	mustAdd(t, g.AddNetwork(graph.Network{Name: "prod", CIDR: netip.MustParsePrefix("10.0.0.0/16")}))
	mustAdd(t, g.AddAccessGroup(graph.AccessGroup{Name: "web", Network: "prod"}))
	mustAdd(t, g.AttachRules("web",
		[]graph.Rule{
			{Direction: graph.DirectionInbound, Protocol: graph.ProtocolTCP, Ports: graph.Port(443), Peer: graph.CIDRPeer(netip.MustParsePrefix("0.0.0.0/0"))},
			{Direction: graph.DirectionInbound, Protocol: graph.ProtocolTCP, Ports: graph.Port(80), Peer: graph.CIDRPeer(netip.MustParsePrefix("0.0.0.0/0"))},
		},
		nil,
	))

	report := NewChecker().Check(g)
	if len(report.ByInvariant(InvariantPlaintextIngress)) != 1 {
		t.Errorf("plaintext violations = %d, want 1", len(report.ByInvariant(InvariantPlaintextIngress)))
	}
}

func TestCheck_CrossTierRawRange(t *testing.T) {
	g := compliantGraph(t)
	// Replace app's group-reference rule with the public subnet's raw
	// range: web's compute lives there, so this must be flagged.
	mustAdd(t, g.AttachRules("app",
		[]graph.Rule{{Direction: graph.DirectionInbound, Protocol: graph.ProtocolTCP, Ports: graph.Port(8080), Peer: graph.CIDRPeer(netip.MustParsePrefix("10.0.1.0/24"))}},
		nil,
	))

	report := NewChecker().Check(g)
	violations := report.ByInvariant(InvariantCrossTierReference)
	if len(violations) != 1 {
		t.Fatalf("cross-tier violations = %d, want 1: %v", len(violations), report.Violations)
	}
	v := violations[0]
	if v.EntityIDs[0] != "app" || v.EntityIDs[1] != "prod-public-a" {
		t.Errorf("EntityIDs = %v, want [app prod-public-a]", v.EntityIDs)
	}
}

func TestCheck_CrossTierRawRangeUnmodeledPeer(t *testing.T) {
	g := compliantGraph(t)
	// A raw range that matches no modeled subnet is fine.
	mustAdd(t, g.AttachRules("app",
		[]graph.Rule{{Direction: graph.DirectionInbound, Protocol: graph.ProtocolTCP, Ports: graph.Port(8080), Peer: graph.CIDRPeer(netip.MustParsePrefix("172.16.0.0/24"))}},
		nil,
	))

	report := NewChecker().Check(g)
	if len(report.ByInvariant(InvariantCrossTierReference)) != 0 {
		t.Error("cross-tier violation recorded for unmodeled peer range")
	}
}

func TestCheck_ScopedActions(t *testing.T) {
	g := graph.New()
	mustAdd(t, g.AddNetwork(graph.Network{Name: "prod", CIDR: netip.MustParsePrefix("10.0.0.0/16")}))
	mustAdd(t, g.AddIdentity(graph.Identity{
		Name:  "god-role",
		Trust: graph.TrustStatement{PrincipalType: "service", Principals: []string{"compute-service"}},
		Statements: map[string]graph.Statement{
			"everything": {Effect: graph.EffectAllow, Actions: []string{"*"}, Resource: "*"},
		},
	}))
	mustAdd(t, g.AddIdentity(graph.Identity{
		Name:            "lazy-role",
		Trust:           graph.TrustStatement{PrincipalType: "service", Principals: []string{"compute-service"}},
		ManagedPolicies: []string{"AmazonS3FullAccess"},
	}))
	mustAdd(t, g.AddIdentity(graph.Identity{
		Name:                     "bootstrap-role",
		Trust:                    graph.TrustStatement{PrincipalType: "service", Principals: []string{"compute-service"}},
		ProviderManagedBootstrap: true,
		Statements: map[string]graph.Statement{
			"everything": {Effect: graph.EffectAllow, Actions: []string{"*"}, Resource: "*"},
		},
	}))

	report := NewChecker().Check(g)
	violations := report.ByInvariant(InvariantScopedActionsOnly)
	if len(violations) != 2 {
		t.Fatalf("scoped-action violations = %d, want 2: %v", len(violations), violations)
	}
	for _, v := range violations {
		if v.EntityIDs[0] == "bootstrap-role" {
			t.Error("bootstrap-marked identity was flagged")
		}
	}
}

func TestCheck_BindingCardinality(t *testing.T) {
	g := graph.New()
	mustAdd(t, g.AddNetwork(graph.Network{Name: "prod", CIDR: netip.MustParsePrefix("10.0.0.0/16")}))
	mustAdd(t, g.AddRouteDomain(graph.RouteDomain{Name: "rd", Network: "prod", Tier: graph.TierPrivate}))
	mustAdd(t, g.AddSubnet(graph.Subnet{
		Name: "s", Network: "prod", CIDR: netip.MustParsePrefix("10.0.1.0/24"),
		Tier: graph.TierPrivate, AvailabilityZone: "a", RouteDomain: "rd",
	}))
	mustAdd(t, g.AddAccessGroup(graph.AccessGroup{Name: "app", Network: "prod"}))
	mustAdd(t, g.AddIdentity(graph.Identity{Name: "role"}))
	mustAdd(t, g.AddBinding(graph.Binding{Name: "shared", Identity: "role"}))
	mustAdd(t, g.AddCompute(graph.Compute{Name: "a-1", Subnet: "s", AccessGroups: []string{"app"}, Binding: "shared"}))
	mustAdd(t, g.AddCompute(graph.Compute{Name: "a-2", Subnet: "s", AccessGroups: []string{"app"}, Binding: "shared"}))
	mustAdd(t, g.AddCompute(graph.Compute{Name: "a-3", Subnet: "s", AccessGroups: []string{"app"}}))

	report := NewChecker().Check(g)
	violations := report.ByInvariant(InvariantBindingCardinality)
	if len(violations) != 2 {
		t.Fatalf("binding violations = %d, want 2 (one missing, one shared): %v", len(violations), violations)
	}
}

func TestCheck_CollectsAllViolations(t *testing.T) {
	g := graph.New()
	mustAdd(t, g.AddNetwork(graph.Network{Name: "prod", CIDR: netip.MustParsePrefix("10.0.0.0/16")}))
	mustAdd(t, g.AddGateway(graph.Gateway{Name: "igw", Network: "prod"}))
	mustAdd(t, g.AddRouteDomain(graph.RouteDomain{
		Name: "public", Network: "prod", Tier: graph.TierPublic,
		Routes: []graph.Route{{Destination: netip.MustParsePrefix("0.0.0.0/0"), Gateway: "igw"}},
	}))
	mustAdd(t, g.AddSubnet(graph.Subnet{
		Name: "leaky", Network: "prod", CIDR: netip.MustParsePrefix("192.168.0.0/24"),
		Tier: graph.TierPrivate, AvailabilityZone: "a", RouteDomain: "public",
	}))
	mustAdd(t, g.AddAccessGroup(graph.AccessGroup{Name: "bastion", Network: "prod"}))
	mustAdd(t, g.AttachRules("bastion",
		[]graph.Rule{{Direction: graph.DirectionInbound, Protocol: graph.ProtocolTCP, Ports: graph.Port(22), Peer: graph.CIDRPeer(netip.MustParsePrefix("0.0.0.0/0"))}},
		nil,
	))

	report := NewChecker().Check(g)
	if len(report.Violations) != 3 {
		t.Errorf("violations = %d, want 3 (containment, private route, admin port): %v",
			len(report.Violations), report.Violations)
	}
}
