package entities

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
)

// The known-entity reference dataset: a static snapshot of well-known
// third-party organizations and the domains they serve from.
//
//go:embed data/entities.json
var referenceData []byte

// referenceRecord is one dataset entry.
type referenceRecord struct {
	Name       string   `json:"name"`
	Company    string   `json:"company,omitempty"`
	Category   string   `json:"category,omitempty"`
	Categories []string `json:"categories,omitempty"`
	Homepage   string   `json:"homepage,omitempty"`
	Domains    []string `json:"domains"`
}

var (
	refOnce     sync.Once
	refErr      error
	refByDomain map[string]*referenceRecord
)

func loadReference() error {
	refOnce.Do(func() {
		var recs []*referenceRecord
		if err := json.Unmarshal(referenceData, &recs); err != nil {
			refErr = fmt.Errorf("parse reference dataset: %w", err)
			return
		}
		refByDomain = make(map[string]*referenceRecord)
		for _, rec := range recs {
			for _, d := range rec.Domains {
				refByDomain[strings.ToLower(d)] = rec
			}
		}
	})
	return refErr
}

// lookupReference finds the dataset record serving the given host, matching
// the exact host first and then progressively broader parent domains, so
// "stats.g.doubleclick.net" matches a record listing "doubleclick.net".
func lookupReference(host string) (*referenceRecord, bool) {
	if err := loadReference(); err != nil {
		return nil, false
	}
	host = strings.ToLower(strings.TrimSuffix(host, "."))
	labels := strings.Split(host, ".")
	for i := 0; i < len(labels)-1; i++ {
		if rec, ok := refByDomain[strings.Join(labels[i:], ".")]; ok {
			return rec, true
		}
	}
	return nil, false
}
