package main

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

// Recorder captures a directory tree into a manifest before a destructive
// pass. Entries are written depth first with children before their parents,
// so a replay in reverse order visits parents first.
type Recorder struct {
	BackupDir string
	OnEntry   func(ManifestEntry) // optional, fired as each object is recorded
}

func NewRecorder(backupDir string) *Recorder {
	return &Recorder{BackupDir: backupDir}
}

// CreateBackup walks root and writes its manifest into BackupDir, named
// after the root and the capture time so it never collides with a previous
// run and never lives inside the tree it records. Unreadable objects keep
// their entry (no checksum) and the walk continues; only an inaccessible
// root or a manifest write failure aborts.
func (r *Recorder) CreateBackup(root string) (string, *Manifest, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return "", nil, fmt.Errorf("%w: %v", ErrInaccessibleRoot, err)
	}
	info, err := os.Stat(absRoot)
	if err != nil || !info.IsDir() {
		return "", nil, fmt.Errorf("%w: %s", ErrInaccessibleRoot, root)
	}
	// "|" is the manifest field delimiter; entry paths under such a root
	// could never be read back (the header root soaks up the remainder of
	// its line, entry lines cannot)
	if strings.ContainsRune(absRoot, '|') {
		return "", nil, fmt.Errorf("%w: path %q contains the manifest delimiter %q", ErrInaccessibleRoot, absRoot, "|")
	}

	m := &Manifest{
		RunID:     uuid.NewString(),
		CreatedAt: time.Now(),
		Root:      absRoot,
	}
	if err := r.capture(absRoot, absRoot, m); err != nil {
		return "", nil, err
	}

	if err := os.MkdirAll(r.BackupDir, 0o755); err != nil {
		return "", nil, fmt.Errorf("%w: %v", ErrManifestWrite, err)
	}
	name := fmt.Sprintf("backup-%s-%s-%s.txt",
		sanitizeName(filepath.Base(absRoot)),
		m.CreatedAt.Format("20060102-150405"),
		m.RunID[:8])
	path := filepath.Join(r.BackupDir, name)
	if err := WriteManifest(m, path); err != nil {
		return "", nil, err
	}

	log.WithFields(log.Fields{"manifest": path, "entries": len(m.Entries)}).Debug("backup complete")
	return path, m, nil
}

// capture records the contents of dir. The root directory itself gets no
// entry; restore never has to move it.
func (r *Recorder) capture(dir, root string, m *Manifest) error {
	children, err := os.ReadDir(dir)
	if err != nil {
		if dir == root {
			return fmt.Errorf("%w: %v", ErrInaccessibleRoot, err)
		}
		log.WithError(err).WithField("dir", dir).Warn("directory unreadable, recording without contents")
		return nil
	}
	for _, child := range children {
		path := filepath.Join(dir, child.Name())
		if strings.ContainsRune(child.Name(), '|') {
			// the delimiter cannot be encoded into an entry line
			log.WithField("path", path).Warn("name contains the manifest delimiter \"|\", object not recorded")
			continue
		}
		if child.IsDir() {
			if err := r.capture(path, root, m); err != nil {
				return err
			}
		}
		r.record(m, r.entryFor(path, root, child))
	}
	return nil
}

func (r *Recorder) record(m *Manifest, e ManifestEntry) {
	m.Entries = append(m.Entries, e)
	if r.OnEntry != nil {
		r.OnEntry(e)
	}
}

func (r *Recorder) entryFor(path, root string, child os.DirEntry) ManifestEntry {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		rel = child.Name()
	}
	e := ManifestEntry{Path: path, RelPath: rel}

	info, err := child.Info()
	if err != nil {
		log.WithError(err).WithField("path", path).Warn("stat failed, recording bare entry")
		e.Type = EntryOther
		return e
	}
	e.Perm = info.Mode().Perm()
	e.ModTime = info.ModTime()

	switch {
	case info.IsDir():
		e.Type = EntryDir
	case info.Mode().IsRegular():
		e.Type = EntryFile
		e.Size = info.Size()
		sum, err := hashFile(path)
		if err != nil {
			log.WithError(err).WithField("path", path).Warn("file unreadable, recording without checksum")
		} else {
			e.Checksum = sum
		}
	default:
		// symlinks, sockets, devices: recorded so restore can notice them,
		// but there is no content to hash
		e.Type = EntryOther
	}
	return e
}

// hashFile streams path through SHA-256 in 64 KiB chunks.
func hashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	buf := make([]byte, 64*1024)
	if _, err := io.CopyBuffer(h, f, buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

var unsafeNameChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// sanitizeName flattens a directory base name into something safe inside a
// manifest file name.
func sanitizeName(s string) string {
	s = unsafeNameChars.ReplaceAllString(s, "-")
	s = strings.Trim(s, "-")
	if s == "" {
		return "root"
	}
	return s
}
