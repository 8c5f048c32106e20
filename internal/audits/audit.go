// Package audits hosts the downstream consumers of the classification
// artifact. Each audit requests its artifacts through the shared run context,
// so sibling audits never trigger the same derivation twice. Audits own
// their aggregate bookkeeping; they never mutate classification results or
// Entity counter fields.
package audits

import (
	"context"

	"pagelens/internal/artifacts"
	"pagelens/internal/entities"
)

// Audit is a single analysis consumer.
type Audit interface {
	Name() string
	Run(ctx context.Context, run *artifacts.Context, in entities.Inputs) (*Result, error)
}

// Result is an audit's output. Details carries the audit-specific payload.
type Result struct {
	Audit   string `json:"audit"`
	Summary string `json:"summary"`
	Details any    `json:"details,omitempty"`
}

// All returns the default audit set.
func All() []Audit {
	return []Audit{
		ThirdPartySummary{},
		FirstPartyShare{},
	}
}
