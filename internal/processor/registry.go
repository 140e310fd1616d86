// Package processor normalizes raw webhook payloads from the closed set
// of sources {Emby, AniRSS} and drives the per-event pipeline:
// persist -> aggregate merge -> push trigger.
package processor

import (
	"fmt"

	"github.com/aniways/anipush/internal/db"
)

// Processor is one source variant. Reformat extracts only the fields
// its source can supply; everything else in the row stays nil.
type Processor interface {
	Source() db.Table
	Reformat(raw []byte) (db.Row, error)
	// EnableMerge reports whether events of this source feed the
	// aggregate table.
	EnableMerge() bool
}

// Registry is the static dispatch table over source variants. It is
// built once at startup; there is no runtime registration.
type Registry struct {
	processors map[db.Table]Processor
}

// NewRegistry builds the dispatch table. Registering the same source
// twice is a developer error during setup, so it panics.
func NewRegistry(processors ...Processor) *Registry {
	r := &Registry{processors: make(map[db.Table]Processor, len(processors))}
	for _, p := range processors {
		if _, exists := r.processors[p.Source()]; exists {
			panic(fmt.Sprintf("processor for source %q is already registered", p.Source()))
		}
		r.processors[p.Source()] = p
	}
	return r
}

// Get returns the processor for a source.
func (r *Registry) Get(source db.Table) (Processor, bool) {
	p, ok := r.processors[source]
	return p, ok
}
