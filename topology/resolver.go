// Package topology assigns address blocks and availability-zone
// placement to the subnets of a perimeter network.
//
// The resolver partitions a network's CIDR block into equal-sized
// sub-blocks with a deterministic bit-partition: blocks are handed out
// in ascending address order, public tier before private, zones in
// their declared order within a tier. Block zero is reserved, so the
// first subnet of a 10.0.0.0/16 network partitioned into /24s is
// 10.0.1.0/24. Identical ordered input always yields an identical
// resolved topology, and a block is never reassigned within a run.
package topology

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/lainnemunkombwe-cyber/compliant-cloud-perimeter/graph"
)

// ErrAddressSpaceExhausted indicates the requested subnet count and
// size cannot fit inside the network's block.
var ErrAddressSpaceExhausted = errors.New("address space exhausted")

// Request describes the subnet topology wanted for one network.
type Request struct {
	// AvailabilityZones lists the zones to place subnets in, in the
	// order blocks should be assigned.
	AvailabilityZones []string `json:"availability_zones"`

	// PublicPerAZ and PrivatePerAZ are the number of subnets of each
	// tier per availability zone.
	PublicPerAZ  int `json:"public_per_az"`
	PrivatePerAZ int `json:"private_per_az"`

	// SubnetBits is the prefix length of every subnet, e.g. 24 for /24
	// blocks.
	SubnetBits int `json:"subnet_bits"`
}

// ResolvedRoute is one route of a resolved route domain.
type ResolvedRoute struct {
	Destination string `json:"destination"`
	Gateway     string `json:"gateway,omitempty"`
}

// ResolvedRouteDomain is a route domain with its final route list.
type ResolvedRouteDomain struct {
	Name   string          `json:"name"`
	Tier   string          `json:"tier"`
	Routes []ResolvedRoute `json:"routes,omitempty"`
}

// ResolvedSubnet is a subnet with its assigned block and placement.
type ResolvedSubnet struct {
	Name             string `json:"name"`
	CIDR             string `json:"cidr"`
	Tier             string `json:"tier"`
	AvailabilityZone string `json:"availability_zone"`
	RouteDomain      string `json:"route_domain"`
}

// Topology is the resolved addressing artifact for one network, part
// of the contract handed to the provisioning collaborator.
type Topology struct {
	Network           string                `json:"network"`
	CIDR              string                `json:"cidr"`
	Gateway           string                `json:"gateway,omitempty"`
	MonitoringEnabled bool                  `json:"monitoring_enabled,omitempty"`
	RouteDomains      []ResolvedRouteDomain `json:"route_domains"`
	Subnets           []ResolvedSubnet      `json:"subnets"`
}

// Resolver computes subnet addressing for a graph's networks.
type Resolver struct {
	logger *slog.Logger
}

// NewResolver returns a resolver. A nil logger falls back to
// slog.Default().
func NewResolver(logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{logger: logger}
}

// Resolve partitions the named network's block per the request,
// registers the resulting route domains and subnets in the graph, and
// returns the resolved topology artifact.
//
// Public subnets require a gateway on the network; the public route
// domain carries a default route to it, the private route domain
// carries no routes. Fails with ErrAddressSpaceExhausted when the
// request does not fit.
func (r *Resolver) Resolve(g *graph.Graph, network string, req Request) (*Topology, error) {
	n, err := g.Network(network)
	if err != nil {
		return nil, err
	}
	if len(req.AvailabilityZones) == 0 {
		return nil, fmt.Errorf("network %q: request names no availability zones", network)
	}
	if req.PublicPerAZ < 0 || req.PrivatePerAZ < 0 {
		return nil, fmt.Errorf("network %q: negative subnet count", network)
	}
	total := len(req.AvailabilityZones) * (req.PublicPerAZ + req.PrivatePerAZ)
	if total == 0 {
		return nil, fmt.Errorf("network %q: request yields no subnets", network)
	}
	if req.SubnetBits <= n.CIDR.Bits() {
		return nil, fmt.Errorf("network %q: /%d subnets do not fit inside %s: %w",
			network, req.SubnetBits, n.CIDR, ErrAddressSpaceExhausted)
	}
	// Block zero of the partition is reserved.
	if capacity := blockCapacity(n.CIDR, req.SubnetBits); total+1 > capacity {
		return nil, fmt.Errorf("network %q: %d /%d subnets requested, %d blocks available in %s: %w",
			network, total, req.SubnetBits, capacity-1, n.CIDR, ErrAddressSpaceExhausted)
	}

	topo := &Topology{
		Network:           network,
		CIDR:              n.CIDR.String(),
		MonitoringEnabled: n.MonitoringEnabled,
	}

	var gatewayName string
	if req.PublicPerAZ > 0 {
		gw, err := g.GatewayForNetwork(network)
		if err != nil {
			return nil, fmt.Errorf("network %q: public subnets require a gateway: %w", network, err)
		}
		gatewayName = gw.Name
		topo.Gateway = gatewayName
	}

	domains := map[graph.Tier]string{}
	if req.PublicPerAZ > 0 {
		name := fmt.Sprintf("%s-public", network)
		rd := graph.RouteDomain{
			Name:    name,
			Network: network,
			Tier:    graph.TierPublic,
			Routes: []graph.Route{{
				Destination: defaultDestination(),
				Gateway:     gatewayName,
			}},
		}
		if err := g.AddRouteDomain(rd); err != nil {
			return nil, err
		}
		domains[graph.TierPublic] = name
		topo.RouteDomains = append(topo.RouteDomains, ResolvedRouteDomain{
			Name: name,
			Tier: graph.TierPublic.String(),
			Routes: []ResolvedRoute{{
				Destination: rd.Routes[0].Destination.String(),
				Gateway:     gatewayName,
			}},
		})
	}
	if req.PrivatePerAZ > 0 {
		name := fmt.Sprintf("%s-private", network)
		if err := g.AddRouteDomain(graph.RouteDomain{Name: name, Network: network, Tier: graph.TierPrivate}); err != nil {
			return nil, err
		}
		domains[graph.TierPrivate] = name
		topo.RouteDomains = append(topo.RouteDomains, ResolvedRouteDomain{
			Name: name,
			Tier: graph.TierPrivate.String(),
		})
	}

	index := 1
	for _, tier := range []graph.Tier{graph.TierPublic, graph.TierPrivate} {
		perAZ := req.PublicPerAZ
		if tier == graph.TierPrivate {
			perAZ = req.PrivatePerAZ
		}
		for _, az := range req.AvailabilityZones {
			for i := 0; i < perAZ; i++ {
				block, err := blockAt(n.CIDR, req.SubnetBits, index)
				if err != nil {
					return nil, err
				}
				name := fmt.Sprintf("%s-%s-%s", network, tier, az)
				if perAZ > 1 {
					name = fmt.Sprintf("%s-%d", name, i+1)
				}
				s := graph.Subnet{
					Name:             name,
					Network:          network,
					CIDR:             block,
					Tier:             tier,
					AvailabilityZone: az,
					RouteDomain:      domains[tier],
				}
				if err := g.AddSubnet(s); err != nil {
					return nil, err
				}
				r.logger.Debug("allocated subnet block",
					"subnet", name,
					"cidr", block.String(),
					"tier", tier.String(),
					"zone", az)
				topo.Subnets = append(topo.Subnets, ResolvedSubnet{
					Name:             name,
					CIDR:             block.String(),
					Tier:             tier.String(),
					AvailabilityZone: az,
					RouteDomain:      domains[tier],
				})
				index++
			}
		}
	}

	return topo, nil
}
