package perimeter

import (
	"errors"
	"fmt"

	"github.com/lainnemunkombwe-cyber/compliant-cloud-perimeter/graph"
	"github.com/lainnemunkombwe-cyber/compliant-cloud-perimeter/identity"
	"github.com/lainnemunkombwe-cyber/compliant-cloud-perimeter/policy"
	"github.com/lainnemunkombwe-cyber/compliant-cloud-perimeter/topology"
)

// Error kinds categorize pipeline errors by the phase that raised them.
const (
	// KindStructural represents graph construction errors: dangling
	// references, duplicate identifiers, missing attributes. Fatal;
	// nothing downstream runs.
	KindStructural = "structural"

	// KindResolution represents topology resolution errors. Fatal.
	KindResolution = "resolution"

	// KindPolicy represents policy compilation errors, scoped to one
	// access group.
	KindPolicy = "policy"

	// KindIdentity represents role assembly errors, scoped to one
	// identity.
	KindIdentity = "identity"

	// KindConfiguration represents errors in the declarative manifest.
	KindConfiguration = "configuration"

	// KindInternal represents internal pipeline errors.
	KindInternal = "internal"
)

// PipelineError is a structured error type that wraps underlying
// errors with the operation that failed and the category of error.
//
// PipelineError implements the error interface and supports error
// unwrapping, making it compatible with errors.Is() and errors.As().
type PipelineError struct {
	// Op is the operation that failed (e.g. "Pipeline.Resolve").
	Op string

	// Kind categorizes the error (e.g. KindStructural, KindPolicy).
	Kind string

	// Err is the underlying error that caused this error.
	Err error

	// Context provides additional context about the error (optional).
	Context map[string]any
}

// Error implements the error interface, returning a formatted message
// that includes the operation, kind, and underlying error.
func (e *PipelineError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("perimeter: %s: %s", e.Op, e.Kind)
	}
	if len(e.Context) > 0 {
		return fmt.Sprintf("perimeter: %s (%s): %v [context: %+v]", e.Op, e.Kind, e.Err, e.Context)
	}
	return fmt.Sprintf("perimeter: %s (%s): %v", e.Op, e.Kind, e.Err)
}

// Unwrap returns the underlying error, allowing errors.Is() and
// errors.As() to work correctly with wrapped errors.
func (e *PipelineError) Unwrap() error {
	return e.Err
}

// Is implements error matching for PipelineError, allowing comparison
// based on the underlying error or on Op/Kind.
func (e *PipelineError) Is(target error) bool {
	if target == nil {
		return false
	}
	if t, ok := target.(*PipelineError); ok {
		if t.Kind != "" && e.Kind == t.Kind {
			if t.Op == "" || e.Op == t.Op {
				return true
			}
		}
	}
	return errors.Is(e.Err, target)
}

// WithContext returns a copy of the error with the provided context
// merged in.
func (e *PipelineError) WithContext(ctx map[string]any) *PipelineError {
	newErr := *e
	if newErr.Context == nil {
		newErr.Context = make(map[string]any)
	}
	for k, v := range ctx {
		newErr.Context[k] = v
	}
	return &newErr
}

// classify maps an underlying error to its kind based on the sentinel
// errors of the phase packages.
func classify(err error) string {
	switch {
	case errors.Is(err, graph.ErrDanglingReference),
		errors.Is(err, graph.ErrDuplicateIdentifier),
		errors.Is(err, graph.ErrMissingAttribute),
		errors.Is(err, graph.ErrNotFound):
		return KindStructural
	case errors.Is(err, topology.ErrAddressSpaceExhausted):
		return KindResolution
	case errors.Is(err, policy.ErrUnrestrictedAdminAccess),
		errors.Is(err, policy.ErrPlaintextIngress):
		return KindPolicy
	case errors.Is(err, identity.ErrEmptyTrustPolicy),
		errors.Is(err, identity.ErrOverbroadPermission):
		return KindIdentity
	default:
		return KindInternal
	}
}

// wrapError builds a PipelineError around a phase failure, classifying
// it by the sentinel errors it wraps.
func wrapError(op string, err error) *PipelineError {
	return &PipelineError{Op: op, Kind: classify(err), Err: err}
}

// NewConfigurationError creates a PipelineError with KindConfiguration.
func NewConfigurationError(op string, err error) *PipelineError {
	return &PipelineError{Op: op, Kind: KindConfiguration, Err: err}
}
