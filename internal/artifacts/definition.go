package artifacts

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"pagelens/internal/logging"
)

// Producer computes an artifact from its input. Producers that depend on
// other artifacts request them through the supplied scope, which shares the
// run cache with every sibling consumer.
type Producer[In, Out any] func(ctx context.Context, in In, scope *Scope) (Out, error)

// Definition is a named computed artifact: a producer plus the list of
// artifact names it is allowed to request. Dependency names are plain data;
// a producer requesting anything outside its declared list is a programming
// defect and panics.
type Definition[In, Out any] struct {
	name    string
	deps    []string
	produce Producer[In, Out]
}

// Define registers a computed artifact. deps lists the names of artifacts
// the producer may request; nil for leaf artifacts.
func Define[In, Out any](name string, deps []string, produce Producer[In, Out]) *Definition[In, Out] {
	if name == "" {
		panic("artifacts: definition requires a name")
	}
	if produce == nil {
		panic(fmt.Sprintf("artifacts: definition %q requires a producer", name))
	}
	return &Definition[In, Out]{name: name, deps: deps, produce: produce}
}

// Name returns the artifact name.
func (d *Definition[In, Out]) Name() string {
	return d.name
}

// Request resolves the artifact for the given input against the run cache.
// Entry point for callers outside any producer (audits, the runner).
func (d *Definition[In, Out]) Request(ctx context.Context, in In, run *Context) (Out, error) {
	return Request(ctx, run.RootScope(), d, in)
}

// Request resolves an artifact within a scope. The first caller for a
// (name, fingerprint) key executes the producer; concurrent callers for the
// same key await the same pending future. Failures are cached and replayed
// to every later caller of that key within the run.
func Request[In, Out any](ctx context.Context, scope *Scope, d *Definition[In, Out], in In) (Out, error) {
	var zero Out

	if scope.owner != "" {
		if _, ok := scope.declared[d.name]; !ok {
			panic(fmt.Sprintf("artifacts: %q requested undeclared dependency %q", scope.owner, d.name))
		}
	}
	for _, name := range scope.path {
		if name == d.name {
			panic(fmt.Sprintf("artifacts: cyclic dependency on %q via %v", d.name, scope.path))
		}
	}

	key := d.name + "|" + fingerprint(in)

	fl, existed := scope.run.lookup(key)
	if existed {
		// Await the shared future. Abandoning the wait does not cancel the
		// in-flight computation; other requesters may still need it.
		select {
		case <-fl.done:
		case <-ctx.Done():
			return zero, ctx.Err()
		}
		if fl.err != nil {
			return zero, fl.err
		}
		out, ok := fl.value.(Out)
		if !ok {
			panic(fmt.Sprintf("artifacts: %q resolved to %T under two different result types", d.name, fl.value))
		}
		return out, nil
	}

	timer := logging.StartTimer(logging.CategoryArtifacts, d.name)
	out, err := d.produce(ctx, in, scope.child(d.name, d.deps))
	timer.Stop()

	fl.value, fl.err = out, err
	close(fl.done)

	if err != nil {
		logging.Artifacts("%s failed: %v", d.name, err)
		return zero, err
	}
	return out, nil
}

// Fingerprinter lets an input type supply its own stable cache-key component,
// typically because hashing its canonical JSON form would be wasteful (large
// protocol logs) or ambiguous.
type Fingerprinter interface {
	Fingerprint() string
}

// fingerprint derives the structural cache-key component for an input value.
func fingerprint(in any) string {
	if f, ok := in.(Fingerprinter); ok {
		return f.Fingerprint()
	}
	data, err := json.Marshal(in)
	if err != nil {
		panic(fmt.Sprintf("artifacts: unfingerprintable input %T: %v", in, err))
	}
	return hashKey(data)
}

// hashKey creates a short stable key from raw bytes.
func hashKey(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])[:16]
}
