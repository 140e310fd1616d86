// Destination-set state: which chat groups and which users receive
// pushes for each source. Persisted as a small JSON document next to
// the database, kept in memory behind a thread-safe handle.

package pushtarget

import (
	"encoding/json"
	"log"
	"os"
	"path/filepath"
	"sync"

	"github.com/aniways/anipush/internal/apperr"
)

// Targets is the on-disk document shape. Keys are source names, values
// are deduplicated id lists.
type Targets struct {
	GroupPushTarget   map[string][]int64 `json:"GroupPushTarget"`
	PrivatePushTarget map[string][]int64 `json:"PrivatePushTarget"`
}

func emptyTargets() Targets {
	return Targets{
		GroupPushTarget:   make(map[string][]int64),
		PrivatePushTarget: make(map[string][]int64),
	}
}

// Handle owns the destination sets. All mutations go through it and are
// persisted immediately; readers get snapshots.
type Handle struct {
	path    string
	mu      sync.RWMutex
	targets Targets
	// Set by persistLocked so the file watcher can tell our own writes
	// from external edits and skip the reload. Without it a Block would
	// be undone when the watcher reloads the document it just saved.
	selfWrite bool
}

// Load reads the destination file, creating an empty one when absent.
func Load(path string) (*Handle, error) {
	h := &Handle{path: path, targets: emptyTargets()}
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		if err := h.persistLocked(); err != nil {
			return nil, err
		}
		log.Printf("PushTarget: created destination file at %s", path)
		return h, nil
	}
	if err != nil {
		return nil, apperr.Wrap(apperr.ConfigIOError, err, "failed to read destination file %s", path)
	}
	if err := json.Unmarshal(data, &h.targets); err != nil {
		return nil, apperr.Wrap(apperr.ConfigIOError, err, "destination file %s is not valid JSON", path)
	}
	h.normalizeLocked()
	return h, nil
}

// GroupTargets returns the group destination ids for a source, empty
// when the source has no registrations.
func (h *Handle) GroupTargets(source string) []int64 {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return append([]int64(nil), h.targets.GroupPushTarget[source]...)
}

// PrivateTargets returns the private destination ids for a source.
func (h *Handle) PrivateTargets(source string) []int64 {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return append([]int64(nil), h.targets.PrivatePushTarget[source]...)
}

// Snapshot returns a deep copy of the full document.
func (h *Handle) Snapshot() Targets {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := emptyTargets()
	for k, v := range h.targets.GroupPushTarget {
		out.GroupPushTarget[k] = append([]int64(nil), v...)
	}
	for k, v := range h.targets.PrivatePushTarget {
		out.PrivatePushTarget[k] = append([]int64(nil), v...)
	}
	return out
}

// RegisterGroup adds a group destination for a source and persists.
// Re-registration is a no-op.
func (h *Handle) RegisterGroup(source string, id int64) error {
	return h.mutate(func() {
		h.targets.GroupPushTarget[source] = addID(h.targets.GroupPushTarget[source], id)
	})
}

// RegisterPrivate adds a private destination for a source and persists.
func (h *Handle) RegisterPrivate(source string, id int64) error {
	return h.mutate(func() {
		h.targets.PrivatePushTarget[source] = addID(h.targets.PrivatePushTarget[source], id)
	})
}

// UnregisterGroup removes a group destination for a source and persists.
func (h *Handle) UnregisterGroup(source string, id int64) error {
	return h.mutate(func() {
		h.targets.GroupPushTarget[source] = removeID(h.targets.GroupPushTarget[source], id)
	})
}

// UnregisterPrivate removes a private destination for a source.
func (h *Handle) UnregisterPrivate(source string, id int64) error {
	return h.mutate(func() {
		h.targets.PrivatePushTarget[source] = removeID(h.targets.PrivatePushTarget[source], id)
	})
}

// Block saves the current destination sets to disk and clears the
// in-memory copy, silencing all pushes until Restore.
func (h *Handle) Block() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if err := h.persistLocked(); err != nil {
		return err
	}
	h.targets = emptyTargets()
	return nil
}

// Restore reloads the destination sets last saved to disk.
func (h *Handle) Restore() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.reloadLocked()
}

func (h *Handle) mutate(apply func()) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	apply()
	return h.persistLocked()
}

func (h *Handle) persistLocked() error {
	data, err := json.MarshalIndent(h.targets, "", "  ")
	if err != nil {
		return apperr.Wrap(apperr.ConfigIOError, err, "failed to encode destination file")
	}
	if err := os.MkdirAll(filepath.Dir(h.path), 0o755); err != nil {
		return apperr.Wrap(apperr.ConfigIOError, err, "failed to create destination directory")
	}
	if err := os.WriteFile(h.path, data, 0o644); err != nil {
		return apperr.Wrap(apperr.ConfigIOError, err, "failed to write destination file %s", h.path)
	}
	h.selfWrite = true
	return nil
}

func (h *Handle) reloadLocked() error {
	data, err := os.ReadFile(h.path)
	if err != nil {
		return apperr.Wrap(apperr.ConfigIOError, err, "failed to read destination file %s", h.path)
	}
	targets := emptyTargets()
	if err := json.Unmarshal(data, &targets); err != nil {
		return apperr.Wrap(apperr.ConfigIOError, err, "destination file %s is not valid JSON", h.path)
	}
	h.targets = targets
	h.normalizeLocked()
	return nil
}

func (h *Handle) normalizeLocked() {
	if h.targets.GroupPushTarget == nil {
		h.targets.GroupPushTarget = make(map[string][]int64)
	}
	if h.targets.PrivatePushTarget == nil {
		h.targets.PrivatePushTarget = make(map[string][]int64)
	}
	for k, v := range h.targets.GroupPushTarget {
		h.targets.GroupPushTarget[k] = dedupe(v)
	}
	for k, v := range h.targets.PrivatePushTarget {
		h.targets.PrivatePushTarget[k] = dedupe(v)
	}
}

func addID(ids []int64, id int64) []int64 {
	for _, existing := range ids {
		if existing == id {
			return ids
		}
	}
	return append(ids, id)
}

func removeID(ids []int64, id int64) []int64 {
	for i, existing := range ids {
		if existing == id {
			return append(ids[:i], ids[i+1:]...)
		}
	}
	return ids
}

func dedupe(ids []int64) []int64 {
	seen := make(map[int64]bool, len(ids))
	var out []int64
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}
