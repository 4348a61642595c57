// Package identity assembles least-privilege role documents from a
// trust statement and a set of named scoped-permission statements.
//
// A document names who may assume the role and exactly which actions
// the role grants on which resource patterns. The assembler refuses an
// all-actions wildcard combined with an all-resources pattern unless
// the caller explicitly marks the role as a provider-managed bootstrap
// (vendor-maintained baseline roles are the single allowed exception).
//
// Assembly is canonical: statement names and action lists are sorted,
// so identical input structures yield structurally identical documents
// regardless of map insertion order.
package identity

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/lainnemunkombwe-cyber/compliant-cloud-perimeter/graph"
)

// Sentinel errors for role assembly. Both are scoped to one identity;
// other identities may still be assembled.
var (
	// ErrEmptyTrustPolicy indicates the trust statement names no
	// principal.
	ErrEmptyTrustPolicy = errors.New("trust statement names no principal")

	// ErrOverbroadPermission indicates a statement grants the
	// all-actions wildcard on the all-resources pattern.
	ErrOverbroadPermission = errors.New("wildcard action on wildcard resource")
)

// Wildcard is the all-actions / all-resources pattern.
const Wildcard = "*"

// DocumentVersion identifies the document layout emitted by Assemble.
const DocumentVersion = "2012-10-17"

// NamedStatement is one scoped statement within a document, carrying
// the name it was declared under.
type NamedStatement struct {
	Name     string       `json:"name"`
	Effect   graph.Effect `json:"effect"`
	Actions  []string     `json:"actions"`
	Resource string       `json:"resource"`
}

// Document is a fully assembled identity document: one trust statement
// plus the sorted scoped statements. It is part of the artifact
// contract handed to the provisioning collaborator.
type Document struct {
	Version    string               `json:"version"`
	Identity   string               `json:"identity"`
	Trust      graph.TrustStatement `json:"trust"`
	Statements []NamedStatement     `json:"statements"`
}

// Marshal returns the canonical JSON encoding of the document.
func (d *Document) Marshal() ([]byte, error) {
	return json.MarshalIndent(d, "", "  ")
}

// Options configure assembly of a single document.
type Options struct {
	// ProviderManagedBootstrap permits wildcard-on-wildcard statements.
	// Reserved for attaching vendor-maintained baseline roles.
	ProviderManagedBootstrap bool
}

// Assemble merges the trust statement and named scoped statements of
// an identity into one document.
//
// Fails with ErrEmptyTrustPolicy when no principal is named and with
// ErrOverbroadPermission when a statement combines the all-actions
// wildcard with the all-resources pattern, unless opts marks the
// identity as provider-managed bootstrap.
func Assemble(name string, trust graph.TrustStatement, statements map[string]graph.Statement, opts Options) (*Document, error) {
	if len(trust.Principals) == 0 {
		return nil, fmt.Errorf("identity %q: %w", name, ErrEmptyTrustPolicy)
	}
	for _, p := range trust.Principals {
		if p == "" {
			return nil, fmt.Errorf("identity %q: %w", name, ErrEmptyTrustPolicy)
		}
	}

	stmtNames := make([]string, 0, len(statements))
	for n := range statements {
		stmtNames = append(stmtNames, n)
	}
	sort.Strings(stmtNames)

	doc := &Document{
		Version:    DocumentVersion,
		Identity:   name,
		Trust:      canonicalTrust(trust),
		Statements: make([]NamedStatement, 0, len(statements)),
	}

	for _, stmtName := range stmtNames {
		stmt := statements[stmtName]
		if !stmt.Effect.IsValid() {
			return nil, fmt.Errorf("identity %q statement %q: effect %q is not valid", name, stmtName, stmt.Effect)
		}
		if len(stmt.Actions) == 0 {
			return nil, fmt.Errorf("identity %q statement %q: no actions enumerated", name, stmtName)
		}
		if !opts.ProviderManagedBootstrap && hasWildcardGrant(stmt) {
			return nil, fmt.Errorf("identity %q statement %q: %w", name, stmtName, ErrOverbroadPermission)
		}
		actions := append([]string(nil), stmt.Actions...)
		sort.Strings(actions)
		doc.Statements = append(doc.Statements, NamedStatement{
			Name:     stmtName,
			Effect:   stmt.Effect,
			Actions:  actions,
			Resource: stmt.Resource,
		})
	}

	return doc, nil
}

// AssembleFromGraph assembles the document for a registered identity.
func AssembleFromGraph(g *graph.Graph, name string) (*Document, error) {
	id, err := g.Identity(name)
	if err != nil {
		return nil, err
	}
	return Assemble(name, id.Trust, id.Statements, Options{
		ProviderManagedBootstrap: id.ProviderManagedBootstrap,
	})
}

func canonicalTrust(trust graph.TrustStatement) graph.TrustStatement {
	principals := append([]string(nil), trust.Principals...)
	sort.Strings(principals)
	return graph.TrustStatement{
		PrincipalType: trust.PrincipalType,
		Principals:    principals,
	}
}

func hasWildcardGrant(stmt graph.Statement) bool {
	if stmt.Resource != Wildcard {
		return false
	}
	for _, a := range stmt.Actions {
		if a == Wildcard {
			return true
		}
	}
	return false
}
