package audits

import (
	"context"
	"fmt"

	"pagelens/internal/artifacts"
	"pagelens/internal/entities"
	"pagelens/internal/logging"
)

// FirstPartyShare reports the fraction of classified requests attributed to
// the page's own entity.
type FirstPartyShare struct{}

// FirstPartyDetails is the audit payload.
type FirstPartyDetails struct {
	FirstPartyKey     string  `json:"firstPartyKey,omitempty"`
	FirstPartyCount   int     `json:"firstPartyCount"`
	TotalClassified   int     `json:"totalClassified"`
	Share             float64 `json:"share"`
	FirstPartyMissing bool    `json:"firstPartyMissing,omitempty"`
}

func (FirstPartyShare) Name() string { return "first-party-share" }

func (a FirstPartyShare) Run(ctx context.Context, run *artifacts.Context, in entities.Inputs) (*Result, error) {
	cls, err := entities.ClassifiedEntities.Request(ctx, in, run)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", a.Name(), err)
	}

	details := FirstPartyDetails{TotalClassified: len(cls.EntityByURL)}
	if cls.FirstParty == nil {
		details.FirstPartyMissing = true
		return &Result{
			Audit:   a.Name(),
			Summary: "page URL could not be classified",
			Details: details,
		}, nil
	}

	details.FirstPartyKey = cls.KeyOf(cls.FirstParty)
	for url := range cls.EntityByURL {
		if cls.IsFirstParty(url) {
			details.FirstPartyCount++
		}
	}
	if details.TotalClassified > 0 {
		details.Share = float64(details.FirstPartyCount) / float64(details.TotalClassified)
	}

	logging.AuditsDebug("%s: %d/%d requests first party", a.Name(), details.FirstPartyCount, details.TotalClassified)
	return &Result{
		Audit:   a.Name(),
		Summary: fmt.Sprintf("%.0f%% of classified requests are first party", details.Share*100),
		Details: details,
	}, nil
}
