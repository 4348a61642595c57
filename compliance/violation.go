package compliance

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Severity represents how badly a violation undermines the perimeter.
type Severity string

const (
	// SeverityCritical indicates a directly exploitable exposure.
	// Example: an administrative port open to the whole internet.
	SeverityCritical Severity = "critical"

	// SeverityHigh indicates a serious weakening of the perimeter.
	// Examples: a private subnet with a gateway route, an overbroad role.
	SeverityHigh Severity = "high"

	// SeverityMedium indicates a deviation from the segmentation model.
	// Example: cross-tier trust expressed as a raw address range.
	SeverityMedium Severity = "medium"

	// SeverityLow indicates a minor deviation with limited impact.
	SeverityLow Severity = "low"

	// SeverityInfo indicates an observation without direct impact.
	SeverityInfo Severity = "info"
)

// severityWeights maps severity levels to numeric weights so reports
// can be ranked. Higher weights indicate worse violations.
var severityWeights = map[Severity]float64{
	SeverityCritical: 10.0,
	SeverityHigh:     7.5,
	SeverityMedium:   5.0,
	SeverityLow:      2.5,
	SeverityInfo:     1.0,
}

// IsValid returns true if the severity level is valid.
func (s Severity) IsValid() bool {
	switch s {
	case SeverityCritical, SeverityHigh, SeverityMedium, SeverityLow, SeverityInfo:
		return true
	default:
		return false
	}
}

// Weight returns the numeric weight associated with the severity
// level. Returns 0.0 for invalid severity levels.
func (s Severity) Weight() float64 {
	if w, ok := severityWeights[s]; ok {
		return w
	}
	return 0.0
}

// String returns the string representation of the severity.
func (s Severity) String() string {
	return string(s)
}

// Violation is one invariant breach found in a resolved graph.
// Violations are data, not errors: the checker enumerates all of them
// rather than failing on the first.
type Violation struct {
	// Invariant names the breached invariant (e.g. "subnet-containment").
	Invariant string `json:"invariant"`

	// EntityIDs lists the logical names of the offending entities.
	EntityIDs []string `json:"entity_ids"`

	// Message describes the breach for operators.
	Message string `json:"message"`

	// Severity classifies the breach.
	Severity Severity `json:"severity"`
}

// String returns a single-line rendering of the violation.
func (v Violation) String() string {
	return fmt.Sprintf("[%s] %s: %s %v", v.Severity, v.Invariant, v.Message, v.EntityIDs)
}

// Report is the ordered result of one compliance check pass. An empty
// violation list signals a compliant graph.
type Report struct {
	// ID uniquely identifies this check pass.
	ID string `json:"id"`

	// GeneratedAt is the timestamp of the pass.
	GeneratedAt time.Time `json:"generated_at"`

	// Violations holds every breach found, in deterministic order.
	Violations []Violation `json:"violations"`
}

// newReport returns an empty report with a fresh identifier.
func newReport() *Report {
	return &Report{
		ID:          uuid.New().String(),
		GeneratedAt: time.Now().UTC(),
	}
}

// Compliant returns true when the report holds no violations.
func (r *Report) Compliant() bool {
	return len(r.Violations) == 0
}

// ByInvariant returns the violations recorded for one invariant.
func (r *Report) ByInvariant(name string) []Violation {
	var out []Violation
	for _, v := range r.Violations {
		if v.Invariant == name {
			out = append(out, v)
		}
	}
	return out
}

// AtLeast returns the violations at or above the given severity.
func (r *Report) AtLeast(s Severity) []Violation {
	var out []Violation
	for _, v := range r.Violations {
		if v.Severity.Weight() >= s.Weight() {
			out = append(out, v)
		}
	}
	return out
}

// RiskScore returns the summed severity weights of all violations.
func (r *Report) RiskScore() float64 {
	var total float64
	for _, v := range r.Violations {
		total += v.Severity.Weight()
	}
	return total
}

func (r *Report) add(invariant string, severity Severity, message string, entityIDs ...string) {
	r.Violations = append(r.Violations, Violation{
		Invariant: invariant,
		EntityIDs: entityIDs,
		Message:   message,
		Severity:  severity,
	})
}
