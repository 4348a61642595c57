// Package manifest provides loading and parsing of perimeter.yaml
// declarative input files. A manifest describes the target perimeter
// (network, subnet topology, access intents, identities and bindings)
// and is turned into a resource graph plus intent set for the
// resolution pipeline.
package manifest

import (
	"fmt"
	"net/netip"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/lainnemunkombwe-cyber/compliant-cloud-perimeter/graph"
	"github.com/lainnemunkombwe-cyber/compliant-cloud-perimeter/policy"
	"github.com/lainnemunkombwe-cyber/compliant-cloud-perimeter/topology"
)

// Config represents a perimeter.yaml file.
type Config struct {
	// Version of the manifest layout.
	Version string `yaml:"version,omitempty"`

	// Network is the perimeter's isolated address space.
	Network NetworkConfig `yaml:"network"`

	// Topology requests the per-zone subnet layout.
	Topology TopologyConfig `yaml:"topology"`

	// AccessGroups declares the named rule containers.
	AccessGroups []AccessGroupConfig `yaml:"access_groups,omitempty"`

	// Intents declares the high-level allowances to compile.
	Intents []IntentConfig `yaml:"intents,omitempty"`

	// Identities declares the assumable roles.
	Identities []IdentityConfig `yaml:"identities,omitempty"`

	// Bindings associate identities with compute entities.
	Bindings []BindingConfig `yaml:"bindings,omitempty"`

	// Computes declares the compute instances. Subnet names follow the
	// resolver's "<network>-<tier>-<zone>" convention.
	Computes []ComputeConfig `yaml:"computes,omitempty"`
}

// NetworkConfig declares the perimeter network.
type NetworkConfig struct {
	Name string `yaml:"name"`
	CIDR string `yaml:"cidr"`

	// Gateway, when set, names the network's single public gateway.
	Gateway string `yaml:"gateway,omitempty"`

	// Monitoring declares the continuous-monitoring recorder.
	Monitoring bool `yaml:"monitoring,omitempty"`
}

// TopologyConfig requests the subnet layout.
type TopologyConfig struct {
	AvailabilityZones []string `yaml:"availability_zones"`
	PublicPerAZ       int      `yaml:"public_per_az"`
	PrivatePerAZ      int      `yaml:"private_per_az"`
	SubnetBits        int      `yaml:"subnet_bits"`
}

// AccessGroupConfig declares one access group.
type AccessGroupConfig struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description,omitempty"`
}

// IntentConfig declares one access intent. Exactly one of CIDR or
// PeerGroup must be set.
type IntentConfig struct {
	Group     string `yaml:"group"`
	Direction string `yaml:"direction"`
	Protocol  string `yaml:"protocol"`
	FromPort  uint16 `yaml:"from_port"`
	ToPort    uint16 `yaml:"to_port,omitempty"` // defaults to FromPort
	CIDR      string `yaml:"cidr,omitempty"`
	PeerGroup string `yaml:"peer_group,omitempty"`
}

// IdentityConfig declares one assumable role.
type IdentityConfig struct {
	Name            string                     `yaml:"name"`
	Trust           TrustConfig                `yaml:"trust"`
	Statements      map[string]StatementConfig `yaml:"statements,omitempty"`
	ManagedPolicies []string                   `yaml:"managed_policies,omitempty"`

	// Bootstrap marks a provider-managed baseline role.
	Bootstrap bool `yaml:"bootstrap,omitempty"`
}

// TrustConfig declares who may assume an identity.
type TrustConfig struct {
	PrincipalType string   `yaml:"principal_type"`
	Principals    []string `yaml:"principals"`
}

// StatementConfig declares one scoped permission statement.
type StatementConfig struct {
	Effect   string   `yaml:"effect"`
	Actions  []string `yaml:"actions"`
	Resource string   `yaml:"resource"`
}

// BindingConfig associates one identity with one compute entity.
type BindingConfig struct {
	Name     string `yaml:"name"`
	Identity string `yaml:"identity"`
}

// ComputeConfig declares one compute instance.
type ComputeConfig struct {
	Name         string   `yaml:"name"`
	Subnet       string   `yaml:"subnet"`
	AccessGroups []string `yaml:"access_groups"`
	Binding      string   `yaml:"binding,omitempty"`
}

// Load reads and parses a perimeter.yaml file from the given path. If
// the path is a directory, it looks for perimeter.yaml or
// perimeter.yml in that directory.
func Load(path string) (*Config, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to stat path: %w", err)
	}

	configPath := path
	if info.IsDir() {
		yamlPath := filepath.Join(path, "perimeter.yaml")
		if _, err := os.Stat(yamlPath); err == nil {
			configPath = yamlPath
		} else {
			ymlPath := filepath.Join(path, "perimeter.yml")
			if _, err := os.Stat(ymlPath); err != nil {
				return nil, fmt.Errorf("no perimeter.yaml or perimeter.yml found in %s", path)
			}
			configPath = ymlPath
		}
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest file: %w", err)
	}
	return Parse(data)
}

// Parse parses manifest bytes.
func Parse(data []byte) (*Config, error) {
	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse manifest: %w", err)
	}
	return &config, nil
}

// Validate checks the manifest for errors the graph and pipeline would
// otherwise surface later with less context.
func (c *Config) Validate() error {
	if c.Network.Name == "" {
		return fmt.Errorf("manifest: network.name is required")
	}
	if c.Network.CIDR == "" {
		return fmt.Errorf("manifest: network.cidr is required")
	}
	if _, err := netip.ParsePrefix(c.Network.CIDR); err != nil {
		return fmt.Errorf("manifest: network.cidr: %w", err)
	}
	if c.Topology.PublicPerAZ > 0 && c.Network.Gateway == "" {
		return fmt.Errorf("manifest: public subnets require network.gateway")
	}
	for i, in := range c.Intents {
		if (in.CIDR == "") == (in.PeerGroup == "") {
			return fmt.Errorf("manifest: intents[%d]: exactly one of cidr or peer_group must be set", i)
		}
		if in.CIDR != "" {
			if _, err := netip.ParsePrefix(in.CIDR); err != nil {
				return fmt.Errorf("manifest: intents[%d]: cidr: %w", i, err)
			}
		}
	}
	return nil
}

// TopologyRequest returns the subnet layout request for the resolver.
func (c *Config) TopologyRequest() topology.Request {
	return topology.Request{
		AvailabilityZones: c.Topology.AvailabilityZones,
		PublicPerAZ:       c.Topology.PublicPerAZ,
		PrivatePerAZ:      c.Topology.PrivatePerAZ,
		SubnetBits:        c.Topology.SubnetBits,
	}
}

// AccessIntents converts the declared intents into compiler input.
func (c *Config) AccessIntents() ([]policy.Intent, error) {
	out := make([]policy.Intent, 0, len(c.Intents))
	for i, in := range c.Intents {
		toPort := in.ToPort
		if toPort == 0 {
			toPort = in.FromPort
		}
		intent := policy.Intent{
			Group:     in.Group,
			Direction: graph.Direction(in.Direction),
			Protocol:  graph.Protocol(in.Protocol),
			Ports:     graph.PortRange{From: in.FromPort, To: toPort},
			PeerGroup: in.PeerGroup,
		}
		if in.CIDR != "" {
			p, err := netip.ParsePrefix(in.CIDR)
			if err != nil {
				return nil, fmt.Errorf("manifest: intents[%d]: cidr: %w", i, err)
			}
			intent.CIDR = p
		}
		out = append(out, intent)
	}
	return out, nil
}

// Build constructs the resource graph from the manifest: network,
// gateway, access groups, identities and bindings. Subnets are added
// by the topology resolver, and compute entities by AddComputes once
// their subnets exist.
func Build(c *Config) (*graph.Graph, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}

	cidr, err := netip.ParsePrefix(c.Network.CIDR)
	if err != nil {
		return nil, fmt.Errorf("manifest: network.cidr: %w", err)
	}

	g := graph.New()
	if err := g.AddNetwork(graph.Network{
		Name:              c.Network.Name,
		CIDR:              cidr,
		MonitoringEnabled: c.Network.Monitoring,
	}); err != nil {
		return nil, err
	}
	if c.Network.Gateway != "" {
		if err := g.AddGateway(graph.Gateway{Name: c.Network.Gateway, Network: c.Network.Name}); err != nil {
			return nil, err
		}
	}
	for _, ag := range c.AccessGroups {
		if err := g.AddAccessGroup(graph.AccessGroup{
			Name:        ag.Name,
			Network:     c.Network.Name,
			Description: ag.Description,
		}); err != nil {
			return nil, err
		}
	}
	for _, id := range c.Identities {
		statements := make(map[string]graph.Statement, len(id.Statements))
		for name, s := range id.Statements {
			statements[name] = graph.Statement{
				Effect:   graph.Effect(s.Effect),
				Actions:  s.Actions,
				Resource: s.Resource,
			}
		}
		if err := g.AddIdentity(graph.Identity{
			Name:                     id.Name,
			Trust:                    graph.TrustStatement{PrincipalType: id.Trust.PrincipalType, Principals: id.Trust.Principals},
			Statements:               statements,
			ManagedPolicies:          id.ManagedPolicies,
			ProviderManagedBootstrap: id.Bootstrap,
		}); err != nil {
			return nil, err
		}
	}
	for _, b := range c.Bindings {
		if err := g.AddBinding(graph.Binding{Name: b.Name, Identity: b.Identity}); err != nil {
			return nil, err
		}
	}
	return g, nil
}

// AddComputes registers the manifest's compute entities. It must run
// after topology resolution so the referenced subnets exist.
func AddComputes(g *graph.Graph, c *Config) error {
	for _, compute := range c.Computes {
		if err := g.AddCompute(graph.Compute{
			Name:         compute.Name,
			Subnet:       compute.Subnet,
			AccessGroups: compute.AccessGroups,
			Binding:      compute.Binding,
		}); err != nil {
			return err
		}
	}
	return nil
}
