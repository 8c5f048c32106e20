// Package entities implements entity classification: grouping every observed
// network request by the organization that served it, distinguishing first
// party from third party. Within one run, a given canonical key (root domain,
// extension origin, or reference-dataset entity name) always resolves to the
// exact same *Entity value; downstream grouping depends on that.
package entities

import (
	"net/url"
	"strings"

	"pagelens/internal/devtools"
	"pagelens/internal/logging"
)

const (
	extensionScheme       = "chrome-extension"
	extensionCategory     = "Chrome Extension"
	chromeWebstoreBaseURL = "https://chromewebstore.google.com/detail/"
)

// Entity represents an organization associated with one or more domains.
type Entity struct {
	Name       string   `json:"name"`
	Company    string   `json:"company"`
	Category   string   `json:"category,omitempty"`
	Categories []string `json:"categories,omitempty"`
	Domains    []string `json:"domains,omitempty"`
	Homepage   string   `json:"homepage,omitempty"`

	// IsUnrecognized is true only for entities synthesized from an unmatched
	// root domain. Extension-derived and reference-dataset entities never
	// carry it.
	IsUnrecognized bool `json:"isUnrecognized,omitempty"`

	// Aggregate counters owned and mutated by downstream consumers.
	// Classification initializes them to zero and never updates them.
	AverageExecutionTime float64 `json:"averageExecutionTime"`
	TotalExecutionTime   float64 `json:"totalExecutionTime"`
	TotalOccurrences     int     `json:"totalOccurrences"`
}

// registry is the run-local canonical-key store. Every entity handed out
// during one classification call is resolved through it by string key, so
// repeated lookups of "the same" organization return the same value.
type registry struct {
	byKey map[string]*Entity
}

func newRegistry() *registry {
	return &registry{byKey: make(map[string]*Entity)}
}

// chromeExtension returns the entity for an extension origin, creating it if
// unseen. name comes from the execution context when known; otherwise the
// extension host stands in.
func (r *registry) chromeExtension(origin, host, name string) *Entity {
	if e, ok := r.byKey[origin]; ok {
		return e
	}
	if name == "" {
		name = host
	}
	e := &Entity{
		Name:       name,
		Company:    name,
		Category:   extensionCategory,
		Categories: []string{},
		Domains:    []string{},
		Homepage:   chromeWebstoreBaseURL + host,
	}
	r.byKey[origin] = e
	return e
}

// unrecognized returns the placeholder entity for an unmatched root domain,
// creating it if unseen.
func (r *registry) unrecognized(rootDomain string) *Entity {
	if e, ok := r.byKey[rootDomain]; ok {
		return e
	}
	e := &Entity{
		Name:           rootDomain,
		Company:        rootDomain,
		Categories:     []string{},
		Domains:        []string{rootDomain},
		IsUnrecognized: true,
	}
	r.byKey[rootDomain] = e
	return e
}

// reference returns the run-local copy of a reference-dataset record, keyed
// by the record's name. Independent runs never share entity values.
func (r *registry) reference(rec *referenceRecord) *Entity {
	if e, ok := r.byKey[rec.Name]; ok {
		return e
	}
	company := rec.Company
	if company == "" {
		company = rec.Name
	}
	e := &Entity{
		Name:       rec.Name,
		Company:    company,
		Category:   rec.Category,
		Categories: append([]string{}, rec.Categories...),
		Domains:    append([]string{}, rec.Domains...),
		Homepage:   rec.Homepage,
	}
	r.byKey[rec.Name] = e
	return e
}

// preloadExtensionOrigins scans the protocol log for execution contexts
// created under the extension scheme and registers a rich entity per origin.
// Must complete before record classification so extension-origin requests
// resolve to these entities rather than generic synthesized ones.
func (r *registry) preloadExtensionOrigins(log *devtools.Log) {
	if log == nil {
		return
	}
	for _, entry := range log.Entries {
		p, ok := entry.ExecutionContextCreated()
		if !ok {
			continue
		}
		origin := p.Context.Origin
		if !strings.HasPrefix(origin, extensionScheme+"://") {
			continue
		}
		if _, seen := r.byKey[origin]; seen {
			continue
		}
		u, err := url.Parse(origin)
		if err != nil || u.Hostname() == "" {
			continue
		}
		r.chromeExtension(origin, u.Hostname(), p.Context.Name)
		logging.EntitiesDebug("preloaded extension entity %q for %s", p.Context.Name, origin)
	}
}
