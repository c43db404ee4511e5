package queue

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"
)

// MaxSkipWindow is the hard upper bound on how long a skip suppresses an
// item, regardless of upstream activity.
const MaxSkipWindow = 7 * 24 * time.Hour

// skipFileVersion identifies the current on-disk format.
const skipFileVersion = 2

// SkipRegistry maps item ids to the moment they were skipped. A skipped
// item stays suppressed until the skip window elapses or the item itself
// is updated after the skip, whichever comes first. The registry persists
// on every mutation.
type SkipRegistry struct {
	path    string
	skipped map[string]time.Time
}

type skipFile struct {
	Version int               `json:"version"`
	Skipped [][2]json.RawMessage `json:"skipped"`
}

// LoadSkipRegistry reads the skip file at path, creating an empty registry
// when the file does not exist. The legacy format — a bare array of item
// ids — is upgraded in place: every id receives a skip timestamp of now.
func LoadSkipRegistry(path string, now time.Time) (*SkipRegistry, error) {
	r := &SkipRegistry{path: path, skipped: make(map[string]time.Time)}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return r, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read skip list: %w", err)
	}

	var versioned skipFile
	if err := json.Unmarshal(data, &versioned); err == nil && versioned.Version >= 2 {
		for _, pair := range versioned.Skipped {
			id, ok := decodeID(pair[0])
			if !ok {
				continue
			}
			var ms int64
			if err := json.Unmarshal(pair[1], &ms); err != nil {
				continue
			}
			r.skipped[id] = time.UnixMilli(ms)
		}
		return r, nil
	}

	// legacy bare array of ids
	var legacy []json.RawMessage
	if err := json.Unmarshal(data, &legacy); err != nil {
		return nil, fmt.Errorf("parse skip list: %w", err)
	}
	for _, raw := range legacy {
		if id, ok := decodeID(raw); ok {
			r.skipped[id] = now
		}
	}
	return r, nil
}

// decodeID accepts both string and numeric item ids; numbers come from
// the legacy format.
func decodeID(raw json.RawMessage) (string, bool) {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s, true
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return n.String(), true
	}
	return "", false
}

// Suppressed reports whether an item is still hidden by an earlier skip:
// the window has not elapsed and the item has not been updated since the
// skip.
func (r *SkipRegistry) Suppressed(id string, lastUpdated, now time.Time) bool {
	at, ok := r.skipped[id]
	if !ok {
		return false
	}
	if !now.Before(at.Add(MaxSkipWindow)) {
		return false
	}
	return lastUpdated.Before(at)
}

// Add records (or refreshes) a skip and persists.
func (r *SkipRegistry) Add(id string, now time.Time) error {
	r.skipped[id] = now
	return r.save(now)
}

// Remove drops an entry — the item was merged or approved through the
// tool — and persists. Removing an absent id is a no-op.
func (r *SkipRegistry) Remove(id string, now time.Time) error {
	if _, ok := r.skipped[id]; !ok {
		return nil
	}
	delete(r.skipped, id)
	return r.save(now)
}

func (r *SkipRegistry) Has(id string) bool {
	_, ok := r.skipped[id]
	return ok
}

func (r *SkipRegistry) Len() int { return len(r.skipped) }

// Flush prunes expired entries and writes the file. Called on shutdown.
func (r *SkipRegistry) Flush(now time.Time) error {
	return r.save(now)
}

// save prunes entries past the window and writes temp-then-rename so a
// crash mid-write cannot corrupt the file.
func (r *SkipRegistry) save(now time.Time) error {
	for id, at := range r.skipped {
		if !now.Before(at.Add(MaxSkipWindow)) {
			delete(r.skipped, id)
		}
	}

	out := skipFile{Version: skipFileVersion}
	ids := make([]string, 0, len(r.skipped))
	for id := range r.skipped {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		idRaw, _ := json.Marshal(id)
		msRaw, _ := json.Marshal(r.skipped[id].UnixMilli())
		out.Skipped = append(out.Skipped, [2]json.RawMessage{idRaw, msRaw})
	}
	if out.Skipped == nil {
		out.Skipped = [][2]json.RawMessage{}
	}

	data, err := json.Marshal(out)
	if err != nil {
		return err
	}
	return atomicWrite(r.path, data)
}

func atomicWrite(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
