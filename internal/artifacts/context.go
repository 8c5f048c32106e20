// Package artifacts implements the run-scoped memoized computation engine
// behind pagelens analysis. Derived artifacts (network records, entity
// classification, ...) are expensive, are requested repeatedly by independent
// audits within one run, and depend on each other in a small acyclic graph.
// The engine guarantees each declared computation runs at most once per
// unique input per run, and that concurrent requesters share one in-flight
// execution and one outcome - success or failure.
package artifacts

import (
	"sync"

	"pagelens/internal/logging"

	"github.com/google/uuid"
)

// Context is the run-scoped dependency cache. It maps (artifact name, input
// fingerprint) to an in-flight-or-completed computation. A Context is owned
// by exactly one analysis run: construct it at run start, discard it with the
// run. It must never be shared across runs.
type Context struct {
	id string

	mu      sync.Mutex
	flights map[string]*flight
}

// flight is the per-key future. Until done is closed it represents a pending
// computation; afterwards it holds the terminal outcome for the key.
type flight struct {
	done  chan struct{}
	value any
	err   error
}

// NewContext creates an empty run cache with a fresh run ID.
func NewContext() *Context {
	return &Context{
		id:      uuid.NewString(),
		flights: make(map[string]*flight),
	}
}

// ID returns the run identifier.
func (c *Context) ID() string {
	return c.id
}

// Size returns the number of cached keys, pending or completed.
func (c *Context) Size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.flights)
}

// RootScope returns the unrestricted scope for callers outside any artifact
// producer. Audits and the runner request top-level artifacts through it.
func (c *Context) RootScope() *Scope {
	return &Scope{run: c}
}

// Scope identifies who is requesting an artifact. The root scope (owner "")
// may request anything; a producer's scope is restricted to the dependencies
// its artifact declared. Scopes also carry the resolution chain so a cyclic
// static dependency fails loudly instead of deadlocking.
type Scope struct {
	run      *Context
	owner    string
	declared map[string]struct{}
	path     []string
}

// RunID returns the identifier of the run this scope belongs to.
func (s *Scope) RunID() string {
	return s.run.id
}

func (s *Scope) child(name string, deps []string) *Scope {
	declared := make(map[string]struct{}, len(deps))
	for _, d := range deps {
		declared[d] = struct{}{}
	}
	path := make([]string, 0, len(s.path)+1)
	path = append(path, s.path...)
	path = append(path, name)
	return &Scope{run: s.run, owner: name, declared: declared, path: path}
}

// lookup returns the flight for key, creating a pending one if absent.
// The boolean reports whether the flight already existed.
func (c *Context) lookup(key string) (*flight, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if fl, ok := c.flights[key]; ok {
		logging.ArtifactsDebug("cache hit: %s", key)
		return fl, true
	}
	fl := &flight{done: make(chan struct{})}
	c.flights[key] = fl
	logging.ArtifactsDebug("cache miss: %s", key)
	return fl, false
}
