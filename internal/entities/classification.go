package entities

import (
	"context"
	"fmt"
	"net/url"

	"pagelens/internal/artifacts"
	"pagelens/internal/devtools"
	"pagelens/internal/logging"
	"pagelens/internal/records"
)

// Inputs declares the dependencies of the entity-classification artifact.
type Inputs struct {
	Log *devtools.Log
	URL devtools.PageURL
}

// Fingerprint keys the cache by log content and page URL metadata.
func (in Inputs) Fingerprint() string {
	logHash := "nil"
	if in.Log != nil {
		logHash = in.Log.Hash()
	}
	return fmt.Sprintf("log:%s|main:%s|final:%s", logHash, in.URL.MainDocumentURL, in.URL.FinalDisplayedURL)
}

// Result is the classification output. It is constructed once per run and
// must be treated as read-only by consumers; audits own their aggregate
// bookkeeping separately.
type Result struct {
	// EntityByURL maps each successfully classified request URL to its
	// entity. URLs that could not be classified are absent.
	EntityByURL map[string]*Entity
	// URLsByEntity is the inverse index.
	URLsByEntity map[*Entity][]string
	// EntityByKey exposes every entity by its stable canonical key (root
	// domain, extension origin, or reference-dataset name), so grouping does
	// not have to depend on pointer identity.
	EntityByKey map[string]*Entity
	// FirstParty is the entity representing the page itself, nil when the
	// page URL could not be classified.
	FirstParty *Entity
}

// KeyOf returns the canonical key under which an entity is registered, or ""
// for entities foreign to this result.
func (r *Result) KeyOf(e *Entity) string {
	for key, candidate := range r.EntityByKey {
		if candidate == e {
			return key
		}
	}
	return ""
}

// IsFirstParty reports whether the given request URL was attributed to the
// page's own entity. Compared by identity against FirstParty.
func (r *Result) IsFirstParty(rawURL string) bool {
	if r.FirstParty == nil {
		return false
	}
	e, ok := r.EntityByURL[rawURL]
	return ok && e == r.FirstParty
}

// ClassifiedEntities partitions all observed request URLs into organizational
// entities and resolves which entity is first party.
var ClassifiedEntities = artifacts.Define("EntityClassification", []string{records.NetworkRecords.Name()}, compute)

func compute(ctx context.Context, in Inputs, scope *artifacts.Scope) (*Result, error) {
	timer := logging.StartTimer(logging.CategoryEntities, "EntityClassification")
	defer timer.Stop()

	recs, err := artifacts.Request(ctx, scope, records.NetworkRecords, records.Inputs{Log: in.Log})
	if err != nil {
		return nil, fmt.Errorf("resolve network records: %w", err)
	}

	reg := newRegistry()
	// Extension origins must be registered before any record is classified,
	// so extension-origin requests resolve to the richer entity.
	reg.preloadExtensionOrigins(in.Log)

	result := &Result{
		EntityByURL:  make(map[string]*Entity),
		URLsByEntity: make(map[*Entity][]string),
	}

	for _, rec := range recs {
		// First classification for a URL wins; record order is arrival order.
		if _, seen := result.EntityByURL[rec.URL]; seen {
			continue
		}
		entity := classifyURL(reg, rec.URL)
		if entity == nil {
			continue
		}
		result.EntityByURL[rec.URL] = entity
		result.URLsByEntity[entity] = append(result.URLsByEntity[entity], rec.URL)
	}

	// First-party resolution may register a new synthesized entity even when
	// no network record shared the page's domain.
	if canonical := in.URL.Canonical(); canonical != "" {
		result.FirstParty = classifyURL(reg, canonical)
	}

	result.EntityByKey = reg.byKey

	logging.Entities("classified %d of %d urls into %d entities (run %s)",
		len(result.EntityByURL), len(recs), len(result.URLsByEntity), scope.RunID())
	return result, nil
}

// classifyURL resolves a URL to its entity: the known-entity reference first,
// then placeholder synthesis. Returns nil when the URL yields no entity;
// invalid input is handled by omission, never as an error.
func classifyURL(reg *registry, rawURL string) *Entity {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil
	}
	if host := u.Hostname(); host != "" {
		if rec, ok := lookupReference(host); ok {
			return reg.reference(rec)
		}
	}
	return makeUpEntity(reg, u)
}

// makeUpEntity synthesizes a placeholder entity for URLs the reference
// dataset does not recognize. Valid only for http/https and extension URLs.
func makeUpEntity(reg *registry, u *url.URL) *Entity {
	host := u.Hostname()
	if host == "" {
		return nil
	}

	if u.Scheme == extensionScheme {
		// Extension request with no matching execution-context event: still
		// produce a usable entity keyed by origin, named after the host.
		origin := extensionScheme + "://" + host
		return reg.chromeExtension(origin, host, "")
	}

	if u.Scheme != "http" && u.Scheme != "https" {
		return nil
	}

	rootDomain := RootDomain(host)
	if rootDomain == "" {
		return nil
	}
	return reg.unrecognized(rootDomain)
}
