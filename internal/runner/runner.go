// Package runner orchestrates one analysis run: it owns the run-scoped
// artifact context, executes the audit set against it, and assembles the
// final report.
package runner

import (
	"context"
	"encoding/json"
	"time"

	"pagelens/internal/artifacts"
	"pagelens/internal/audits"
	"pagelens/internal/devtools"
	"pagelens/internal/entities"
	"pagelens/internal/logging"
	"pagelens/internal/records"

	"golang.org/x/sync/errgroup"
)

// AuditOutcome is one audit's result or failure. A failing audit aborts only
// itself; siblings that do not share the failing dependency are unaffected.
type AuditOutcome struct {
	Audit  string         `json:"audit"`
	Result *audits.Result `json:"result,omitempty"`
	Error  string         `json:"error,omitempty"`
}

// Report is the assembled output of one analysis run.
type Report struct {
	RunID             string         `json:"runId"`
	URL               string         `json:"url"`
	FinalDisplayedURL string         `json:"finalDisplayedUrl"`
	GeneratedAt       time.Time      `json:"generatedAt"`
	TotalRequests     int            `json:"totalRequests"`
	ClassifiedURLs    int            `json:"classifiedUrls"`
	EntityCount       int            `json:"entityCount"`
	FirstPartyKey     string         `json:"firstPartyKey,omitempty"`
	Audits            []AuditOutcome `json:"audits"`
	Error             string         `json:"error,omitempty"`
}

// JSON renders the report as indented JSON.
func (r *Report) JSON() ([]byte, error) {
	return json.MarshalIndent(r, "", "  ")
}

// Runner executes a fixed audit set per run.
type Runner struct {
	audits []audits.Audit
}

// New creates a Runner. A nil audit list selects the default set.
func New(auditSet []audits.Audit) *Runner {
	if auditSet == nil {
		auditSet = audits.All()
	}
	return &Runner{audits: auditSet}
}

// Analyze runs the full audit set over one telemetry bundle. Each call
// constructs a fresh run context; contexts are never reused across runs.
func (r *Runner) Analyze(ctx context.Context, bundle *devtools.Bundle) (*Report, error) {
	run := artifacts.NewContext()
	in := entities.Inputs{Log: bundle.DevtoolsLog(), URL: bundle.PageURL()}

	logging.Boot("analysis run %s for %s (%d log entries)", run.ID(), bundle.FinalDisplayedURL, len(bundle.Log))

	report := &Report{
		RunID:             run.ID(),
		URL:               bundle.PageURL().Canonical(),
		FinalDisplayedURL: bundle.FinalDisplayedURL,
		GeneratedAt:       time.Now().UTC(),
		Audits:            make([]AuditOutcome, len(r.audits)),
	}

	// Audits run concurrently against the shared run context; duplicate
	// artifact requests across audits collapse to one computation each.
	g, gctx := errgroup.WithContext(ctx)
	for i, audit := range r.audits {
		i, audit := i, audit
		g.Go(func() error {
			res, err := audit.Run(gctx, run, in)
			if err != nil {
				logging.Audits("%s failed: %v", audit.Name(), err)
				report.Audits[i] = AuditOutcome{Audit: audit.Name(), Error: err.Error()}
				return nil
			}
			report.Audits[i] = AuditOutcome{Audit: audit.Name(), Result: res}
			return nil
		})
	}
	_ = g.Wait()

	// Summary fields resolve against the same cache; nothing recomputes.
	if recs, err := records.NetworkRecords.Request(ctx, records.Inputs{Log: in.Log}, run); err == nil {
		report.TotalRequests = len(recs)
	}
	cls, err := entities.ClassifiedEntities.Request(ctx, in, run)
	if err != nil {
		report.Error = err.Error()
		return report, nil
	}
	report.ClassifiedURLs = len(cls.EntityByURL)
	report.EntityCount = len(cls.URLsByEntity)
	if cls.FirstParty != nil {
		report.FirstPartyKey = cls.KeyOf(cls.FirstParty)
	}

	return report, nil
}

// AnalyzeFile loads a telemetry bundle from disk and analyzes it.
func (r *Runner) AnalyzeFile(ctx context.Context, path string) (*Report, error) {
	bundle, err := devtools.ReadBundle(path)
	if err != nil {
		return nil, err
	}
	return r.Analyze(ctx, bundle)
}
