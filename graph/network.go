package graph

import "net/netip"

// Tier classifies a subnet or route domain as publicly routable or
// internal-only.
type Tier string

const (
	// TierPublic marks subnets whose route domain carries a default
	// route to the network gateway.
	TierPublic Tier = "public"

	// TierPrivate marks subnets with no route to any gateway.
	TierPrivate Tier = "private"
)

// IsValid returns true if the tier is a recognized value.
func (t Tier) IsValid() bool {
	switch t {
	case TierPublic, TierPrivate:
		return true
	default:
		return false
	}
}

// String returns the string representation of the tier.
func (t Tier) String() string {
	return string(t)
}

// Network is an isolated address space that owns a CIDR block and
// contains subnets. A network has at most one gateway.
type Network struct {
	// Name is the logical name, unique among networks. Required.
	Name string `json:"name"`

	// CIDR is the address block the network owns. Required.
	CIDR netip.Prefix `json:"cidr"`

	// MonitoringEnabled records whether the perimeter declares a
	// continuous-monitoring recorder for this network. The recorder
	// itself is provisioned by the external collaborator.
	MonitoringEnabled bool `json:"monitoring_enabled,omitempty"`
}

// Properties returns the network's attributes as a property map for
// rule evaluation.
func (n *Network) Properties() map[string]any {
	return map[string]any{
		"cidr":               n.CIDR.String(),
		"monitoring_enabled": n.MonitoringEnabled,
	}
}

// Gateway is the single controlled point of entry and exit between a
// network and outside address space. Only public route domains may
// reference it.
type Gateway struct {
	// Name is the logical name, unique among gateways. Required.
	Name string `json:"name"`

	// Network is the name of the network this gateway attaches to.
	// Required.
	Network string `json:"network"`
}

// Properties returns the gateway's attributes as a property map.
func (gw *Gateway) Properties() map[string]any {
	return map[string]any{
		"network": gw.Network,
	}
}

// Route is a single routing entry in a route domain. A default route
// (destination 0.0.0.0/0) pointing at a gateway makes the domain
// public.
type Route struct {
	// Destination is the address range the route matches.
	Destination netip.Prefix `json:"destination"`

	// Gateway names the gateway traffic is forwarded to. Empty for
	// local routes.
	Gateway string `json:"gateway,omitempty"`
}

// IsDefault returns true if the route matches all addresses.
func (r Route) IsDefault() bool {
	return r.Destination.Bits() == 0
}

// RouteDomain is a named set of routes shared by one or more subnets of
// the same tier.
type RouteDomain struct {
	// Name is the logical name, unique among route domains. Required.
	Name string `json:"name"`

	// Network is the name of the owning network. Required.
	Network string `json:"network"`

	// Tier is the tier of every subnet associated with this domain.
	// Required.
	Tier Tier `json:"tier"`

	// Routes is the ordered route list.
	Routes []Route `json:"routes,omitempty"`
}

// DefaultRoute returns the domain's default route and true, or the zero
// Route and false when the domain has none.
func (rd *RouteDomain) DefaultRoute() (Route, bool) {
	for _, r := range rd.Routes {
		if r.IsDefault() {
			return r, true
		}
	}
	return Route{}, false
}

// Properties returns the route domain's attributes as a property map.
func (rd *RouteDomain) Properties() map[string]any {
	_, hasDefault := rd.DefaultRoute()
	return map[string]any{
		"network":           rd.Network,
		"tier":              rd.Tier.String(),
		"route_count":       len(rd.Routes),
		"has_default_route": hasDefault,
	}
}

// Subnet is a sub-range of a network's address space bound to one
// availability zone and exactly one route domain.
type Subnet struct {
	// Name is the logical name, unique among subnets. Required.
	Name string `json:"name"`

	// Network is the name of the owning network. Required.
	Network string `json:"network"`

	// CIDR is the subnet's address block, a disjoint sub-range of the
	// network's block. Required.
	CIDR netip.Prefix `json:"cidr"`

	// Tier is the subnet tier. Required.
	Tier Tier `json:"tier"`

	// AvailabilityZone is the zone the subnet is placed in. Required.
	AvailabilityZone string `json:"availability_zone"`

	// RouteDomain names the route domain the subnet belongs to.
	// Required.
	RouteDomain string `json:"route_domain"`
}

// Properties returns the subnet's attributes as a property map.
func (s *Subnet) Properties() map[string]any {
	return map[string]any{
		"network":           s.Network,
		"cidr":              s.CIDR.String(),
		"tier":              s.Tier.String(),
		"availability_zone": s.AvailabilityZone,
		"route_domain":      s.RouteDomain,
	}
}
