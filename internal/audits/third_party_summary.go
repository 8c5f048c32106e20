package audits

import (
	"context"
	"fmt"
	"sort"

	"pagelens/internal/artifacts"
	"pagelens/internal/entities"
	"pagelens/internal/logging"
)

// ThirdPartySummary breaks observed traffic down by third-party entity:
// request counts and share of total classified requests, first party excluded.
type ThirdPartySummary struct{}

// EntityRow is one third party in the summary, sorted by request count.
type EntityRow struct {
	Entity       string  `json:"entity"`
	Key          string  `json:"key"`
	Category     string  `json:"category,omitempty"`
	RequestCount int     `json:"requestCount"`
	TrafficShare float64 `json:"trafficShare"`
	Unrecognized bool    `json:"unrecognized,omitempty"`
}

// ThirdPartyDetails is the audit payload.
type ThirdPartyDetails struct {
	TotalClassified int         `json:"totalClassified"`
	ThirdPartyCount int         `json:"thirdPartyCount"`
	Rows            []EntityRow `json:"rows"`
}

func (ThirdPartySummary) Name() string { return "third-party-summary" }

func (a ThirdPartySummary) Run(ctx context.Context, run *artifacts.Context, in entities.Inputs) (*Result, error) {
	cls, err := entities.ClassifiedEntities.Request(ctx, in, run)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", a.Name(), err)
	}

	total := len(cls.EntityByURL)
	details := ThirdPartyDetails{TotalClassified: total}

	for entity, urls := range cls.URLsByEntity {
		if entity == cls.FirstParty {
			continue
		}
		row := EntityRow{
			Entity:       entity.Name,
			Key:          cls.KeyOf(entity),
			Category:     entity.Category,
			RequestCount: len(urls),
			Unrecognized: entity.IsUnrecognized,
		}
		if total > 0 {
			row.TrafficShare = float64(len(urls)) / float64(total)
		}
		details.Rows = append(details.Rows, row)
	}

	sort.Slice(details.Rows, func(i, j int) bool {
		if details.Rows[i].RequestCount != details.Rows[j].RequestCount {
			return details.Rows[i].RequestCount > details.Rows[j].RequestCount
		}
		return details.Rows[i].Entity < details.Rows[j].Entity
	})
	details.ThirdPartyCount = len(details.Rows)

	logging.Audits("%s: %d third parties across %d classified requests", a.Name(), details.ThirdPartyCount, total)
	return &Result{
		Audit:   a.Name(),
		Summary: fmt.Sprintf("%d third-party entities observed", details.ThirdPartyCount),
		Details: details,
	}, nil
}
