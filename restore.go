package main

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	log "github.com/sirupsen/logrus"
)

// UnresolvedEntry is a manifest entry restore could not put back.
type UnresolvedEntry struct {
	Entry  ManifestEntry
	Reason string
}

// RestoreOutcome aggregates one restore pass.
type RestoreOutcome struct {
	ManifestPath  string
	TotalEntries  int
	RestoredCount int // files moved back to their recorded path
	IntactCount   int // already at the recorded path with matching content
	RecreatedDirs int
	Unresolved    []UnresolvedEntry
}

func (o *RestoreOutcome) unresolved(e ManifestEntry, reason string) {
	o.Unresolved = append(o.Unresolved, UnresolvedEntry{Entry: e, Reason: reason})
	log.WithFields(log.Fields{"path": e.Path, "reason": reason}).Warn("unresolvable entry")
}

// Coordinator replays a manifest in reverse capture order, recreating
// missing directories and moving renamed files back to their recorded
// paths. File identity is established by content checksum, never guessed
// from names.
type Coordinator struct {
	Progress func(done, total int)
}

// Restore drives a full pass over the manifest at manifestPath. Individual
// entries that cannot be put back are reported in the outcome; only an
// unreadable manifest or root aborts.
func (c *Coordinator) Restore(manifestPath string) (*RestoreOutcome, error) {
	m, err := ReadManifest(manifestPath)
	if err != nil {
		return nil, err
	}
	if info, err := os.Stat(m.Root); err != nil || !info.IsDir() {
		return nil, fmt.Errorf("%w: %s", ErrInaccessibleRoot, m.Root)
	}

	idx, err := indexByChecksum(m.Root)
	if err != nil {
		return nil, err
	}
	// files resting at their recorded path are claimed by their own entries
	// up front, so relocating a missing duplicate can never take a file
	// another entry already owns at its recorded home
	for _, e := range m.Entries {
		if e.Type == EntryFile && e.Checksum != "" && idx.byPath[e.Path] == e.Checksum {
			idx.claimed[e.Path] = true
		}
	}

	out := &RestoreOutcome{ManifestPath: manifestPath, TotalEntries: len(m.Entries)}
	total := len(m.Entries)

	// reverse capture order puts parents before their children
	var deferred []ManifestEntry
	for i := total - 1; i >= 0; i-- {
		e := m.Entries[i]
		if c.restoreEntry(e, idx, out, false) {
			deferred = append(deferred, e)
		}
		if c.Progress != nil {
			c.Progress(total-i, total)
		}
	}
	// entries whose recorded path was occupied get one more chance, now
	// that the blocking file may itself have moved back
	for _, e := range deferred {
		c.restoreEntry(e, idx, out, true)
	}
	return out, nil
}

// restoreEntry handles one manifest entry. It returns true when the entry
// should be retried after the rest of the replay (recorded path occupied).
func (c *Coordinator) restoreEntry(e ManifestEntry, idx *checksumIndex, out *RestoreOutcome, final bool) bool {
	switch e.Type {
	case EntryDir:
		info, err := os.Stat(e.Path)
		switch {
		case err == nil && info.IsDir():
			// still there
		case err == nil:
			out.unresolved(e, "a non-directory sits at the recorded path")
		default:
			if mkErr := os.MkdirAll(e.Path, e.Perm); mkErr != nil {
				out.unresolved(e, fmt.Sprintf("recreate failed: %v", mkErr))
			} else {
				out.RecreatedDirs++
				log.WithField("dir", e.Path).Debug("directory recreated")
			}
		}
	case EntryFile:
		return c.restoreFile(e, idx, out, final)
	case EntryOther:
		if _, err := os.Lstat(e.Path); err != nil {
			out.unresolved(e, "non-regular object missing (not recreated)")
		}
	}
	return false
}

func (c *Coordinator) restoreFile(e ManifestEntry, idx *checksumIndex, out *RestoreOutcome, final bool) bool {
	if e.Checksum == "" {
		// recorded unreadable: when something still sits at the path assume
		// it survived, otherwise there is nothing to match against
		if _, err := os.Stat(e.Path); err == nil {
			out.IntactCount++
		} else {
			out.unresolved(e, "no checksum was recorded, cannot locate by content")
		}
		return false
	}

	// pre-claimed in Restore: the file already rests at its recorded path
	if sum, ok := idx.byPath[e.Path]; ok && sum == e.Checksum {
		out.IntactCount++
		return false
	}

	if _, err := os.Lstat(e.Path); err == nil {
		// something else occupies the recorded path; it may move away
		// later in the replay
		if !final {
			return true
		}
		out.unresolved(e, "recorded path is occupied by different content")
		return false
	}

	candidate := idx.claim(e)
	if candidate == "" {
		out.unresolved(e, "no unclaimed file with matching content under the root")
		return false
	}
	if err := os.MkdirAll(filepath.Dir(e.Path), 0o755); err != nil {
		out.unresolved(e, fmt.Sprintf("recreate parent: %v", err))
		return false
	}
	if err := os.Rename(candidate, e.Path); err != nil {
		out.unresolved(e, fmt.Sprintf("move back failed: %v", err))
		return false
	}
	out.RestoredCount++
	log.WithFields(log.Fields{"from": candidate, "to": e.Path}).Debug("restored")
	return false
}

// checksumIndex maps the current on-disk content of a tree so renamed files
// can be located by what they contain.
type checksumIndex struct {
	byPath  map[string]string   // path -> checksum
	bySum   map[string][]string // checksum -> candidate paths, sorted
	claimed map[string]bool     // paths already matched to an entry
}

func indexByChecksum(root string) (*checksumIndex, error) {
	idx := &checksumIndex{
		byPath:  make(map[string]string),
		bySum:   make(map[string][]string),
		claimed: make(map[string]bool),
	}
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			log.WithError(err).WithField("path", path).Warn("skipping unreadable entry")
			if d != nil && d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}
		sum, hashErr := hashFile(path)
		if hashErr != nil {
			log.WithError(hashErr).WithField("path", path).Warn("skipping unreadable file")
			return nil
		}
		idx.byPath[path] = sum
		idx.bySum[sum] = append(idx.bySum[sum], path)
		return nil
	})
	if err != nil {
		return nil, err
	}
	for _, paths := range idx.bySum {
		sort.Strings(paths)
	}
	return idx, nil
}

// claim picks the candidate for e and marks it used. Candidates share e's
// exact checksum so any pick is byte-equivalent; same-directory candidates
// win, remaining ties break in sorted path order.
func (idx *checksumIndex) claim(e ManifestEntry) string {
	dir := filepath.Dir(e.Path)
	fallback := ""
	for _, p := range idx.bySum[e.Checksum] {
		if idx.claimed[p] {
			continue
		}
		if filepath.Dir(p) == dir {
			idx.claimed[p] = true
			return p
		}
		if fallback == "" {
			fallback = p
		}
	}
	if fallback != "" {
		idx.claimed[fallback] = true
	}
	return fallback
}
