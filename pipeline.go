package perimeter

import (
	"context"
	"log/slog"
	"os"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"

	"github.com/lainnemunkombwe-cyber/compliant-cloud-perimeter/compliance"
	"github.com/lainnemunkombwe-cyber/compliant-cloud-perimeter/graph"
	"github.com/lainnemunkombwe-cyber/compliant-cloud-perimeter/identity"
	"github.com/lainnemunkombwe-cyber/compliant-cloud-perimeter/manifest"
	"github.com/lainnemunkombwe-cyber/compliant-cloud-perimeter/policy"
	"github.com/lainnemunkombwe-cyber/compliant-cloud-perimeter/topology"
)

// Artifacts is the contract handed to the external provisioning
// collaborator: the resolved topology, the compiled access group rule
// sets, the assembled identity documents, and the compliance report.
//
// Violations never suppress artifact emission; the caller decides
// whether they block provisioning.
type Artifacts struct {
	// RunID uniquely identifies the resolution run.
	RunID string `json:"run_id"`

	// Topology is the resolved addressing for the network.
	Topology *topology.Topology `json:"topology"`

	// RuleSets are the compiled access group rules, one per group, in
	// sorted group order.
	RuleSets []policy.RuleSet `json:"rule_sets"`

	// Documents are the assembled identity documents, in sorted
	// identity order.
	Documents []*identity.Document `json:"documents"`

	// Report is the compliance violation report for the resolved graph.
	Report *compliance.Report `json:"report"`
}

// Pipeline runs the four resolution phases in dependency order:
// graph construction, topology resolution, policy compilation and role
// assembly, compliance checking. Each phase is a pure in-memory
// computation; all external interaction happens after the pipeline
// returns, outside its responsibility.
type Pipeline struct {
	logger   *slog.Logger
	tracer   trace.Tracer
	metrics  *pipelineMetrics
	resolver *topology.Resolver
	compiler *policy.Compiler
	checker  *compliance.Checker
}

// New creates a pipeline.
//
// Example:
//
//	pipeline, err := perimeter.New(
//	    perimeter.WithLogger(logger),
//	    perimeter.WithAdminPorts(22, 3389, 5985),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	artifacts, err := pipeline.RunFile(ctx, "perimeter.yaml")
func New(opts ...Option) (*Pipeline, error) {
	cfg := &pipelineConfig{}
	for _, opt := range opts {
		opt(cfg)
	}

	if cfg.logger == nil {
		cfg.logger = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		}))
	}

	p := &Pipeline{
		logger:   cfg.logger,
		resolver: topology.NewResolver(cfg.logger),
	}

	if cfg.tracerProvider != nil {
		p.tracer = cfg.tracerProvider.Tracer(instrumentationName)
	}
	if cfg.meterProvider != nil {
		metrics, err := initMetrics(cfg.meterProvider.Meter(instrumentationName))
		if err != nil {
			return nil, &PipelineError{Op: "New", Kind: KindInternal, Err: err}
		}
		p.metrics = metrics
	}

	compilerOpts := []policy.CompilerOption{policy.WithLogger(cfg.logger)}
	checkerOpts := []compliance.Option{compliance.WithLogger(cfg.logger)}
	if len(cfg.adminPorts) > 0 {
		compilerOpts = append(compilerOpts, policy.WithAdminPorts(cfg.adminPorts...))
		checkerOpts = append(checkerOpts, compliance.WithAdminPorts(cfg.adminPorts...))
	}
	for _, rule := range cfg.rules {
		checkerOpts = append(checkerOpts, compliance.WithRule(rule))
	}
	p.compiler = policy.NewCompiler(compilerOpts...)
	p.checker = compliance.NewChecker(checkerOpts...)

	return p, nil
}

// RunFile loads a perimeter manifest from disk and runs the pipeline
// on it.
func (p *Pipeline) RunFile(ctx context.Context, path string) (*Artifacts, error) {
	cfg, err := manifest.Load(path)
	if err != nil {
		return nil, NewConfigurationError("Pipeline.RunFile", err)
	}
	return p.Run(ctx, cfg)
}

// Run resolves the manifest into the artifact set.
//
// Structural and resolution errors abort the run; nothing downstream
// of the failing phase executes. Compliance violations do not: they
// are collected into the report and returned alongside the artifacts.
func (p *Pipeline) Run(ctx context.Context, cfg *manifest.Config) (*Artifacts, error) {
	if err := cfg.Validate(); err != nil {
		return nil, NewConfigurationError("Pipeline.Run", err)
	}

	runID := uuid.New().String()
	p.recordRun(ctx)
	p.logger.Info("starting perimeter resolution", "run_id", runID, "network", cfg.Network.Name)

	g, err := p.build(ctx, cfg)
	if err != nil {
		return nil, err
	}

	topo, err := p.resolve(ctx, g, cfg)
	if err != nil {
		return nil, err
	}

	ruleSets, err := p.compile(ctx, g, cfg)
	if err != nil {
		return nil, err
	}

	docs, err := p.assemble(ctx, g)
	if err != nil {
		return nil, err
	}

	report := p.check(ctx, g)

	p.logger.Info("perimeter resolution complete",
		"run_id", runID,
		"subnets", len(topo.Subnets),
		"rule_sets", len(ruleSets),
		"documents", len(docs),
		"violations", len(report.Violations))

	return &Artifacts{
		RunID:     runID,
		Topology:  topo,
		RuleSets:  ruleSets,
		Documents: docs,
		Report:    report,
	}, nil
}

// build constructs the resource graph from the manifest.
func (p *Pipeline) build(ctx context.Context, cfg *manifest.Config) (*graph.Graph, error) {
	_, done := p.startPhase(ctx, "build")
	g, err := manifest.Build(cfg)
	done(err)
	if err != nil {
		return nil, wrapError("Pipeline.Build", err)
	}
	return g, nil
}

// resolve assigns subnet addressing and registers the manifest's
// compute entities, whose subnets exist only after resolution.
func (p *Pipeline) resolve(ctx context.Context, g *graph.Graph, cfg *manifest.Config) (*topology.Topology, error) {
	_, done := p.startPhase(ctx, "resolve")
	topo, err := p.resolver.Resolve(g, cfg.Network.Name, cfg.TopologyRequest())
	if err == nil {
		err = manifest.AddComputes(g, cfg)
	}
	done(err)
	if err != nil {
		return nil, wrapError("Pipeline.Resolve", err)
	}
	return topo, nil
}

// compile turns the manifest's access intents into rule sets and
// attaches them to the graph's access groups.
func (p *Pipeline) compile(ctx context.Context, g *graph.Graph, cfg *manifest.Config) ([]policy.RuleSet, error) {
	_, done := p.startPhase(ctx, "compile")
	ruleSets, err := func() ([]policy.RuleSet, error) {
		intents, err := cfg.AccessIntents()
		if err != nil {
			return nil, err
		}
		sets, err := p.compiler.Compile(g, intents)
		if err != nil {
			return nil, err
		}
		for _, set := range sets {
			if err := g.AttachRules(set.Group, set.Inbound, set.Outbound); err != nil {
				return nil, err
			}
		}
		return sets, nil
	}()
	done(err)
	if err != nil {
		return nil, wrapError("Pipeline.Compile", err)
	}
	return ruleSets, nil
}

// assemble produces one identity document per registered identity, in
// sorted identity order.
func (p *Pipeline) assemble(ctx context.Context, g *graph.Graph) ([]*identity.Document, error) {
	_, done := p.startPhase(ctx, "assemble")
	docs := make([]*identity.Document, 0, len(g.IdentityNames()))
	var err error
	for _, name := range g.IdentityNames() {
		var doc *identity.Document
		doc, err = identity.AssembleFromGraph(g, name)
		if err != nil {
			break
		}
		docs = append(docs, doc)
	}
	done(err)
	if err != nil {
		return nil, wrapError("Pipeline.Assemble", err)
	}
	return docs, nil
}

// check runs the compliance invariants. Violations are returned as
// data, never as an error.
func (p *Pipeline) check(ctx context.Context, g *graph.Graph) *compliance.Report {
	ctx, done := p.startPhase(ctx, "check")
	report := p.checker.Check(g)
	p.recordViolations(ctx, len(report.Violations))
	done(nil)
	return report
}
