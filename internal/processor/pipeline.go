package processor

import (
	"context"
	"log"

	"github.com/aniways/anipush/internal/db"
	"github.com/aniways/anipush/internal/store"
)

// Pusher triggers one push cycle for a source. Satisfied by
// push.Service.
type Pusher interface {
	Push(ctx context.Context, source db.Table) error
}

// Pipeline drives one webhook event through reformat, persistence,
// optional aggregate merge and the push trigger. Stage containment:
// reformat and persistence failures abort the event; a merge failure is
// logged and the push trigger still runs.
type Pipeline struct {
	st       *store.Store
	registry *Registry
	merger   *Merger
	pusher   Pusher
}

func NewPipeline(st *store.Store, registry *Registry, merger *Merger, pusher Pusher) *Pipeline {
	return &Pipeline{st: st, registry: registry, merger: merger, pusher: pusher}
}

// Run processes one raw event for a source. Errors are contained here:
// each webhook event is independent and a failure must not leak into
// the caller or into other events.
func (p *Pipeline) Run(ctx context.Context, source db.Table, raw []byte) {
	proc, ok := p.registry.Get(source)
	if !ok {
		log.Printf("%s: no processor registered, event discarded", source)
		return
	}

	row, err := proc.Reformat(raw)
	if err != nil {
		log.Printf("%s: reformat failed: %v", source, err)
		return
	}

	if err := p.persist(source, row); err != nil {
		log.Printf("%s: persistence failed: %v", source, err)
		return
	}
	log.Printf("%s: event persisted", source)

	if proc.EnableMerge() {
		if err := p.merger.Merge(source, row); err != nil {
			log.Printf("%s: aggregate merge failed: %v", source, err)
		} else {
			log.Printf("%s: aggregate merge done", source)
		}
	}

	if err := p.pusher.Push(ctx, source); err != nil {
		log.Printf("%s: push failed: %v", source, err)
	}
}

// persist upserts the canonical row into the source's own table,
// conflicting on the content id when the event carries one.
func (p *Pipeline) persist(source db.Table, row db.Row) error {
	var conflict []string
	if id, ok := row["tmdb_id"].(string); ok && id != "" {
		conflict = []string{"tmdb_id"}
	}
	return p.st.Upsert(source, row, conflict)
}
