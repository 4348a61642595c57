package graph

import (
	"errors"
	"fmt"
	"sort"
)

// Sentinel errors for graph construction. They can be matched with
// errors.Is on anything the Add* methods return.
var (
	// ErrDanglingReference indicates an edge named an entity that has
	// not been constructed yet.
	ErrDanglingReference = errors.New("dangling reference")

	// ErrDuplicateIdentifier indicates two entities of the same type
	// share a logical name.
	ErrDuplicateIdentifier = errors.New("duplicate identifier")

	// ErrMissingAttribute indicates a required attribute was absent at
	// construction time. The graph never invents defaults.
	ErrMissingAttribute = errors.New("missing required attribute")

	// ErrNotFound indicates a lookup named an unknown entity.
	ErrNotFound = errors.New("entity not found")
)

// Graph is an arena of perimeter entities indexed by logical name per
// type. A graph is exclusively owned by the resolution run that builds
// it; it is not safe for concurrent mutation and never needs to be,
// because construction, resolution and checking are sequential phases.
type Graph struct {
	networks     map[string]*Network
	gateways     map[string]*Gateway
	routeDomains map[string]*RouteDomain
	subnets      map[string]*Subnet
	accessGroups map[string]*AccessGroup
	identities   map[string]*Identity
	bindings     map[string]*Binding
	computes     map[string]*Compute
}

// New returns an empty graph.
func New() *Graph {
	return &Graph{
		networks:     make(map[string]*Network),
		gateways:     make(map[string]*Gateway),
		routeDomains: make(map[string]*RouteDomain),
		subnets:      make(map[string]*Subnet),
		accessGroups: make(map[string]*AccessGroup),
		identities:   make(map[string]*Identity),
		bindings:     make(map[string]*Binding),
		computes:     make(map[string]*Compute),
	}
}

func duplicate(kind, name string) error {
	return fmt.Errorf("%s %q: %w", kind, name, ErrDuplicateIdentifier)
}

func dangling(kind, name, refKind, ref string) error {
	return fmt.Errorf("%s %q references %s %q: %w", kind, name, refKind, ref, ErrDanglingReference)
}

func missing(kind, name, attr string) error {
	return fmt.Errorf("%s %q: %s: %w", kind, name, attr, ErrMissingAttribute)
}

// AddNetwork registers a network. The name and CIDR are required.
func (g *Graph) AddNetwork(n Network) error {
	if n.Name == "" {
		return missing("network", n.Name, "name")
	}
	if !n.CIDR.IsValid() {
		return missing("network", n.Name, "cidr")
	}
	if _, ok := g.networks[n.Name]; ok {
		return duplicate("network", n.Name)
	}
	g.networks[n.Name] = &n
	return nil
}

// AddGateway registers a gateway on an existing network. A network has
// at most one gateway; a second registration for the same network fails
// with ErrDuplicateIdentifier.
func (g *Graph) AddGateway(gw Gateway) error {
	if gw.Name == "" {
		return missing("gateway", gw.Name, "name")
	}
	if gw.Network == "" {
		return missing("gateway", gw.Name, "network")
	}
	if _, ok := g.networks[gw.Network]; !ok {
		return dangling("gateway", gw.Name, "network", gw.Network)
	}
	if _, ok := g.gateways[gw.Name]; ok {
		return duplicate("gateway", gw.Name)
	}
	for _, existing := range g.gateways {
		if existing.Network == gw.Network {
			return fmt.Errorf("network %q already has gateway %q: %w", gw.Network, existing.Name, ErrDuplicateIdentifier)
		}
	}
	g.gateways[gw.Name] = &gw
	return nil
}

// AddRouteDomain registers a route domain on an existing network. Every
// route naming a gateway must reference a constructed gateway.
func (g *Graph) AddRouteDomain(rd RouteDomain) error {
	if rd.Name == "" {
		return missing("route domain", rd.Name, "name")
	}
	if rd.Network == "" {
		return missing("route domain", rd.Name, "network")
	}
	if !rd.Tier.IsValid() {
		return missing("route domain", rd.Name, "tier")
	}
	if _, ok := g.networks[rd.Network]; !ok {
		return dangling("route domain", rd.Name, "network", rd.Network)
	}
	if _, ok := g.routeDomains[rd.Name]; ok {
		return duplicate("route domain", rd.Name)
	}
	for _, r := range rd.Routes {
		if r.Gateway == "" {
			continue
		}
		if _, ok := g.gateways[r.Gateway]; !ok {
			return dangling("route domain", rd.Name, "gateway", r.Gateway)
		}
	}
	g.routeDomains[rd.Name] = &rd
	return nil
}

// AddSubnet registers a subnet. The owning network and route domain
// must already exist; the CIDR, tier and availability zone are
// required. Tier agreement with the route domain is a compliance
// invariant, not a construction error, so the checker can report it.
func (g *Graph) AddSubnet(s Subnet) error {
	if s.Name == "" {
		return missing("subnet", s.Name, "name")
	}
	if s.Network == "" {
		return missing("subnet", s.Name, "network")
	}
	if !s.CIDR.IsValid() {
		return missing("subnet", s.Name, "cidr")
	}
	if !s.Tier.IsValid() {
		return missing("subnet", s.Name, "tier")
	}
	if s.AvailabilityZone == "" {
		return missing("subnet", s.Name, "availability zone")
	}
	if s.RouteDomain == "" {
		return missing("subnet", s.Name, "route domain")
	}
	if _, ok := g.networks[s.Network]; !ok {
		return dangling("subnet", s.Name, "network", s.Network)
	}
	if _, ok := g.routeDomains[s.RouteDomain]; !ok {
		return dangling("subnet", s.Name, "route domain", s.RouteDomain)
	}
	if _, ok := g.subnets[s.Name]; ok {
		return duplicate("subnet", s.Name)
	}
	g.subnets[s.Name] = &s
	return nil
}

// AddAccessGroup registers an access group scoped to an existing
// network. Rules are attached later via AttachRules.
func (g *Graph) AddAccessGroup(ag AccessGroup) error {
	if ag.Name == "" {
		return missing("access group", ag.Name, "name")
	}
	if ag.Network == "" {
		return missing("access group", ag.Name, "network")
	}
	if _, ok := g.networks[ag.Network]; !ok {
		return dangling("access group", ag.Name, "network", ag.Network)
	}
	if _, ok := g.accessGroups[ag.Name]; ok {
		return duplicate("access group", ag.Name)
	}
	g.accessGroups[ag.Name] = &ag
	return nil
}

// AttachRules attaches compiled rules to an access group. Group peers
// must reference constructed access groups. Rules replace any
// previously attached set for the group.
func (g *Graph) AttachRules(group string, inbound, outbound []Rule) error {
	ag, ok := g.accessGroups[group]
	if !ok {
		return fmt.Errorf("access group %q: %w", group, ErrNotFound)
	}
	for _, r := range append(append([]Rule{}, inbound...), outbound...) {
		if err := r.Validate(); err != nil {
			return fmt.Errorf("access group %q: %w", group, err)
		}
		if r.Peer.Kind == PeerKindGroup {
			if _, ok := g.accessGroups[r.Peer.Group]; !ok {
				return dangling("access group", group, "access group", r.Peer.Group)
			}
		}
	}
	ag.Inbound = inbound
	ag.Outbound = outbound
	return nil
}

// AddIdentity registers an identity. An identity needs a name; trust
// and statement content is validated by the role assembler.
func (g *Graph) AddIdentity(id Identity) error {
	if id.Name == "" {
		return missing("identity", id.Name, "name")
	}
	if _, ok := g.identities[id.Name]; ok {
		return duplicate("identity", id.Name)
	}
	g.identities[id.Name] = &id
	return nil
}

// AddBinding registers a binding to an existing identity.
func (g *Graph) AddBinding(b Binding) error {
	if b.Name == "" {
		return missing("binding", b.Name, "name")
	}
	if b.Identity == "" {
		return missing("binding", b.Name, "identity")
	}
	if _, ok := g.identities[b.Identity]; !ok {
		return dangling("binding", b.Name, "identity", b.Identity)
	}
	if _, ok := g.bindings[b.Name]; ok {
		return duplicate("binding", b.Name)
	}
	g.bindings[b.Name] = &b
	return nil
}

// AddCompute registers a compute entity in an existing subnet with at
// least one existing access group. A named binding must exist; an
// empty binding is permitted at construction so the compliance checker
// can report it.
func (g *Graph) AddCompute(c Compute) error {
	if c.Name == "" {
		return missing("compute", c.Name, "name")
	}
	if c.Subnet == "" {
		return missing("compute", c.Name, "subnet")
	}
	if len(c.AccessGroups) == 0 {
		return missing("compute", c.Name, "access groups")
	}
	if _, ok := g.subnets[c.Subnet]; !ok {
		return dangling("compute", c.Name, "subnet", c.Subnet)
	}
	for _, agName := range c.AccessGroups {
		if _, ok := g.accessGroups[agName]; !ok {
			return dangling("compute", c.Name, "access group", agName)
		}
	}
	if c.Binding != "" {
		if _, ok := g.bindings[c.Binding]; !ok {
			return dangling("compute", c.Name, "binding", c.Binding)
		}
	}
	if _, ok := g.computes[c.Name]; ok {
		return duplicate("compute", c.Name)
	}
	g.computes[c.Name] = &c
	return nil
}

// Network returns the named network.
func (g *Graph) Network(name string) (*Network, error) {
	n, ok := g.networks[name]
	if !ok {
		return nil, fmt.Errorf("network %q: %w", name, ErrNotFound)
	}
	return n, nil
}

// Gateway returns the named gateway.
func (g *Graph) Gateway(name string) (*Gateway, error) {
	gw, ok := g.gateways[name]
	if !ok {
		return nil, fmt.Errorf("gateway %q: %w", name, ErrNotFound)
	}
	return gw, nil
}

// GatewayForNetwork returns the gateway attached to the named network,
// or ErrNotFound if the network has none.
func (g *Graph) GatewayForNetwork(network string) (*Gateway, error) {
	for _, name := range sortedKeys(g.gateways) {
		if g.gateways[name].Network == network {
			return g.gateways[name], nil
		}
	}
	return nil, fmt.Errorf("gateway for network %q: %w", network, ErrNotFound)
}

// RouteDomain returns the named route domain.
func (g *Graph) RouteDomain(name string) (*RouteDomain, error) {
	rd, ok := g.routeDomains[name]
	if !ok {
		return nil, fmt.Errorf("route domain %q: %w", name, ErrNotFound)
	}
	return rd, nil
}

// Subnet returns the named subnet.
func (g *Graph) Subnet(name string) (*Subnet, error) {
	s, ok := g.subnets[name]
	if !ok {
		return nil, fmt.Errorf("subnet %q: %w", name, ErrNotFound)
	}
	return s, nil
}

// AccessGroup returns the named access group.
func (g *Graph) AccessGroup(name string) (*AccessGroup, error) {
	ag, ok := g.accessGroups[name]
	if !ok {
		return nil, fmt.Errorf("access group %q: %w", name, ErrNotFound)
	}
	return ag, nil
}

// Identity returns the named identity.
func (g *Graph) Identity(name string) (*Identity, error) {
	id, ok := g.identities[name]
	if !ok {
		return nil, fmt.Errorf("identity %q: %w", name, ErrNotFound)
	}
	return id, nil
}

// Binding returns the named binding.
func (g *Graph) Binding(name string) (*Binding, error) {
	b, ok := g.bindings[name]
	if !ok {
		return nil, fmt.Errorf("binding %q: %w", name, ErrNotFound)
	}
	return b, nil
}

// Compute returns the named compute entity.
func (g *Graph) Compute(name string) (*Compute, error) {
	c, ok := g.computes[name]
	if !ok {
		return nil, fmt.Errorf("compute %q: %w", name, ErrNotFound)
	}
	return c, nil
}

// NetworkNames returns all network names in sorted order.
func (g *Graph) NetworkNames() []string { return sortedKeys(g.networks) }

// GatewayNames returns all gateway names in sorted order.
func (g *Graph) GatewayNames() []string { return sortedKeys(g.gateways) }

// SubnetNames returns all subnet names in sorted order.
func (g *Graph) SubnetNames() []string { return sortedKeys(g.subnets) }

// RouteDomainNames returns all route domain names in sorted order.
func (g *Graph) RouteDomainNames() []string { return sortedKeys(g.routeDomains) }

// AccessGroupNames returns all access group names in sorted order.
func (g *Graph) AccessGroupNames() []string { return sortedKeys(g.accessGroups) }

// IdentityNames returns all identity names in sorted order.
func (g *Graph) IdentityNames() []string { return sortedKeys(g.identities) }

// BindingNames returns all binding names in sorted order.
func (g *Graph) BindingNames() []string { return sortedKeys(g.bindings) }

// ComputeNames returns all compute names in sorted order.
func (g *Graph) ComputeNames() []string { return sortedKeys(g.computes) }

// SubnetsOfNetwork returns the subnets belonging to the named network,
// sorted by name.
func (g *Graph) SubnetsOfNetwork(network string) []*Subnet {
	var out []*Subnet
	for _, name := range g.SubnetNames() {
		if g.subnets[name].Network == network {
			out = append(out, g.subnets[name])
		}
	}
	return out
}

// SubnetByCIDR returns the subnet whose block exactly matches the given
// prefix string, or nil when none does.
func (g *Graph) SubnetByCIDR(cidr string) *Subnet {
	for _, name := range g.SubnetNames() {
		if g.subnets[name].CIDR.String() == cidr {
			return g.subnets[name]
		}
	}
	return nil
}

// ComputesInGroup returns the compute entities attached to the named
// access group, sorted by name.
func (g *Graph) ComputesInGroup(group string) []*Compute {
	var out []*Compute
	for _, name := range g.ComputeNames() {
		for _, agName := range g.computes[name].AccessGroups {
			if agName == group {
				out = append(out, g.computes[name])
				break
			}
		}
	}
	return out
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
