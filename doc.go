// Package perimeter resolves a declarative network manifest into the
// artifacts a cloud provisioner consumes: deterministic subnet
// addressing, default-deny access group rules, least-privilege
// identity documents, and a compliance report.
//
// The pipeline runs four phases in dependency order. Graph
// construction turns the manifest into an in-memory resource graph.
// Topology resolution partitions the network CIDR into per-zone
// subnet blocks. Policy compilation and role assembly produce the
// access rules and identity documents. Compliance checking evaluates
// the structural invariants over the finished graph and collects
// every violation into a report.
//
// Basic usage:
//
//	pipeline, err := perimeter.New(perimeter.WithLogger(logger))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	artifacts, err := pipeline.RunFile(ctx, "perimeter.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if !artifacts.Report.Compliant() {
//	    for _, v := range artifacts.Report.Violations {
//	        logger.Warn("violation", "invariant", v.Invariant, "message", v.Message)
//	    }
//	}
//
// Violations never suppress artifacts: a run that resolves cleanly but
// fails an invariant still returns the full artifact set together with
// the report, and the caller decides whether to provision.
//
// Sub-packages can be used directly when only one phase is needed:
// graph holds the resource model, topology the CIDR resolver, policy
// the rule compiler, identity the document assembler, compliance the
// invariant checker, and manifest the YAML loader.
package perimeter
