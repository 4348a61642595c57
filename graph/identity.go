package graph

// Effect is the outcome of a permission statement.
type Effect string

const (
	// EffectAllow grants the statement's actions.
	EffectAllow Effect = "allow"

	// EffectDeny explicitly refuses the statement's actions.
	EffectDeny Effect = "deny"
)

// IsValid returns true if the effect is a recognized value.
func (e Effect) IsValid() bool {
	switch e {
	case EffectAllow, EffectDeny:
		return true
	default:
		return false
	}
}

// String returns the string representation of the effect.
func (e Effect) String() string {
	return string(e)
}

// TrustStatement declares who may assume an identity.
type TrustStatement struct {
	// PrincipalType classifies the principal (e.g. "service", "account").
	PrincipalType string `json:"principal_type"`

	// Principals lists the principal identifiers allowed to assume the
	// identity. At least one is required for assembly.
	Principals []string `json:"principals"`
}

// Statement is one scoped permission entry: an effect applied to an
// explicit action list against a resource pattern.
type Statement struct {
	Effect Effect `json:"effect"`

	// Actions enumerates the permitted actions. The assembler rejects
	// the all-actions wildcard combined with an all-resources pattern.
	Actions []string `json:"actions"`

	// Resource is the resource pattern the actions apply to.
	Resource string `json:"resource"`
}

// Identity is an assumable role: one trust statement plus a mapping
// from statement name to scoped permission statements.
type Identity struct {
	// Name is the logical name, unique among identities. Required.
	Name string `json:"name"`

	// Trust declares who may assume this identity.
	Trust TrustStatement `json:"trust"`

	// Statements maps statement names to scoped permissions.
	Statements map[string]Statement `json:"statements,omitempty"`

	// ManagedPolicies lists vendor-maintained permission sets attached
	// by name. Full-access style sets are flagged by the compliance
	// checker when a scoped equivalent exists.
	ManagedPolicies []string `json:"managed_policies,omitempty"`

	// ProviderManagedBootstrap marks an identity as a vendor-maintained
	// baseline role, exempting it from the wildcard rejection.
	ProviderManagedBootstrap bool `json:"provider_managed_bootstrap,omitempty"`
}

// Properties returns the identity's attributes as a property map.
func (id *Identity) Properties() map[string]any {
	return map[string]any{
		"principal_type":  id.Trust.PrincipalType,
		"principal_count": len(id.Trust.Principals),
		"statement_count": len(id.Statements),
		"bootstrap":       id.ProviderManagedBootstrap,
	}
}

// Binding associates exactly one identity with exactly one compute
// entity. Compute receives temporary credentials only through a
// binding; no static credentials exist in the model.
type Binding struct {
	// Name is the logical name, unique among bindings. Required.
	Name string `json:"name"`

	// Identity names the bound identity. Required.
	Identity string `json:"identity"`
}

// Properties returns the binding's attributes as a property map.
func (b *Binding) Properties() map[string]any {
	return map[string]any{
		"identity": b.Identity,
	}
}

// Compute is a compute instance placed in exactly one subnet, attached
// to one or more access groups, and credentialed through at most one
// binding. The compliance checker flags compute without a binding.
type Compute struct {
	// Name is the logical name, unique among compute entities. Required.
	Name string `json:"name"`

	// Subnet names the subnet the instance is placed in. Required.
	Subnet string `json:"subnet"`

	// AccessGroups names the access groups attached to the instance.
	// At least one is required.
	AccessGroups []string `json:"access_groups"`

	// Binding names the instance's credential binding. The graph
	// permits it to be empty so the compliance checker can report the
	// omission; a compliant graph always sets it.
	Binding string `json:"binding,omitempty"`
}

// Properties returns the compute entity's attributes as a property map.
func (c *Compute) Properties() map[string]any {
	return map[string]any{
		"subnet":             c.Subnet,
		"access_group_count": len(c.AccessGroups),
		"has_binding":        c.Binding != "",
	}
}
