// Package flow implements transition resolution and preview simulation.
//
// This file declares the boundaries to the production execution side, which
// lives outside this repository. The runtime walks the same graphs and calls
// the same Resolve contract; it may additionally consult a free-text
// classifier before resolving.
package flow

import (
	"context"

	"github.com/BTreeMap/FlowCanvas/internal/models"
)

// Classifier maps free text onto one of a node's options when the node
// allows freeform interpretation. Implementations live outside this
// subsystem (production uses an LLM-backed service).
type Classifier interface {
	// Classify returns the id of the option the text most plausibly selects,
	// or ok=false when no option applies and resolution should fall back.
	Classify(ctx context.Context, node models.Node, text string) (optionID string, ok bool, err error)
}

// Runtime is the production chat executor boundary. It consumes graph
// snapshots and drives real conversations; this repository only authors the
// graphs it walks.
type Runtime interface {
	// Advance applies a stimulus for a live conversation at the given node.
	Advance(ctx context.Context, flowID, currentNodeID string, st models.Stimulus) (nextNodeID string, err error)
}

// NoopClassifier is a Classifier that never matches. Used in tests and by
// the simulator, which renders free text literally instead of interpreting it.
type NoopClassifier struct{}

// Classify always reports no match.
func (NoopClassifier) Classify(ctx context.Context, node models.Node, text string) (string, bool, error) {
	return "", false, nil
}
