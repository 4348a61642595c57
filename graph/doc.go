// Package graph provides the resource graph model for a cloud network
// perimeter: typed entities (networks, subnets, route domains, gateways,
// access groups, identities, bindings, compute) indexed by logical name,
// with cross-entity edges stored as name references.
//
// # Core Concepts
//
// The graph is an arena: every entity is registered under a logical name
// unique within its type, and relationships between entities (a subnet
// belonging to a network, a rule referencing a peer access group) are
// plain name references resolved at lookup time. This keeps the model
// free of cyclic ownership pointers and lets several independent
// topologies be built in the same process without shared state.
//
// # Construction
//
// Entities are added through the Add* methods, which validate structure
// at construction time:
//
//	g := graph.New()
//	err := g.AddNetwork(graph.Network{
//	    Name: "prod",
//	    CIDR: netip.MustParsePrefix("10.0.0.0/16"),
//	})
//
// A reference to an entity that has not been constructed yet fails with
// ErrDanglingReference; a second entity with the same name within one
// type fails with ErrDuplicateIdentifier; a required attribute left
// empty fails with ErrMissingAttribute. No defaults are invented.
//
// Once a resolution run completes, the graph is treated as immutable;
// re-running with modified input produces a new graph.
package graph
