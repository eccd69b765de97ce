package tracker

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"sort"
	"sync"
	"time"

	"meshbridge/pkg/models"
)

// DefaultMaxSize caps the registry when no explicit size is configured.
const DefaultMaxSize = 100

// Registry is a bounded, deduplicated, recency-ordered store of which
// trackers we have seen and when. At most one entry per mesh id; entries are
// kept in descending last-seen order; the oldest entry is evicted when the
// bound is exceeded.
type Registry struct {
	mu      sync.RWMutex
	entries []models.TrackerStatus
	maxSize int
}

// New creates a registry bounded to maxSize entries.
func New(maxSize int) *Registry {
	if maxSize <= 0 {
		maxSize = DefaultMaxSize
	}
	return &Registry{maxSize: maxSize}
}

// Upsert records a sighting: any existing entry with the same mesh id is
// replaced, the order is re-established, and the oldest entry is dropped if
// the registry is over capacity.
func (r *Registry) Upsert(status models.TrackerStatus) {
	r.mu.Lock()
	defer r.mu.Unlock()

	kept := r.entries[:0]
	for _, t := range r.entries {
		if t.MeshID != status.MeshID {
			kept = append(kept, t)
		}
	}
	r.entries = append(kept, status)

	sort.SliceStable(r.entries, func(i, j int) bool {
		return r.entries[i].LastSeen > r.entries[j].LastSeen
	})

	if len(r.entries) > r.maxSize {
		removed := r.entries[len(r.entries)-1]
		r.entries = r.entries[:len(r.entries)-1]
		log.Printf("Removed oldest tracker: %s", removed.MeshID)
	}
}

// Snapshot returns a copy of the entries in descending last-seen order.
func (r *Registry) Snapshot() []models.TrackerStatus {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entries := make([]models.TrackerStatus, len(r.entries))
	copy(entries, r.entries)
	return entries
}

// Len returns the number of entries.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

// Clear removes all entries.
func (r *Registry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = nil
}

// Save writes the full ordered registry to path as JSON. The write goes
// through a temp file and rename so a crash mid-write cannot corrupt the
// registry we reload at startup.
func (r *Registry) Save(path string) error {
	data, err := json.Marshal(r.Snapshot())
	if err != nil {
		return fmt.Errorf("failed to encode trackers: %w", err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("failed to replace %s: %w", path, err)
	}
	return nil
}

// Load restores entries from path. A missing file is a no-op and malformed
// content leaves the registry empty; restore failure is never fatal.
func (r *Registry) Load(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			log.Printf("Tracker file %s does not exist, no trackers loaded", path)
			return nil
		}
		log.Printf("Warning - failed to read tracker file %s: %v", path, err)
		return nil
	}

	var entries []models.TrackerStatus
	if err := json.Unmarshal(data, &entries); err != nil {
		log.Printf("Warning - failed to decode tracker file %s: %v", path, err)
		return nil
	}

	for _, t := range entries {
		r.Upsert(t)
	}
	log.Printf("Loaded %d trackers from %s", r.Len(), path)
	return nil
}

// FormatEntry renders the nth entry for a constrained-width status line: the
// last 4 characters of the mesh id, a "*" suffix for peer-shared devices,
// then elapsed seconds since last seen, shown as "xx" once it reaches 100.
// Out-of-range n yields an empty string.
func (r *Registry) FormatEntry(n int) string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if n < 0 || n >= len(r.entries) {
		return ""
	}
	t := r.entries[n]

	id := t.MeshID
	if len(id) > 4 {
		id = id[len(id)-4:]
	}
	if t.SharedWithUs {
		id += "*"
	}

	latency := time.Now().Unix() - t.LastSeen
	if latency >= 100 {
		return fmt.Sprintf("%s xx", id)
	}
	return fmt.Sprintf("%s %d", id, latency)
}
