package main

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const manifestFormat = "unixcmd-manifest/1"

// EntryType tags the kind of file-system object a manifest line records.
type EntryType string

const (
	EntryFile  EntryType = "file"
	EntryDir   EntryType = "dir"
	EntryOther EntryType = "other"
)

// ManifestEntry is one captured file-system object.
type ManifestEntry struct {
	Path     string // absolute path at capture time
	RelPath  string // relative to the backup root
	Type     EntryType
	Perm     os.FileMode
	Size     int64 // zero for directories
	ModTime  time.Time
	Checksum string // SHA-256 hex for regular files, empty when unreadable
}

// Manifest is one backup record: a header plus entries in capture order,
// children before their parents. It is written once and read back verbatim
// by restore.
type Manifest struct {
	RunID     string
	CreatedAt time.Time
	Root      string
	Entries   []ManifestEntry
}

// encode renders the "path|relativePath|type|permissions|size|mtime|checksum"
// line. Permissions are octal, mtime is Unix seconds.
func (e ManifestEntry) encode() string {
	return strings.Join([]string{
		e.Path,
		e.RelPath,
		string(e.Type),
		fmt.Sprintf("%04o", e.Perm.Perm()),
		strconv.FormatInt(e.Size, 10),
		strconv.FormatInt(e.ModTime.Unix(), 10),
		e.Checksum,
	}, "|")
}

func parseManifestEntry(line string) (ManifestEntry, error) {
	fields := strings.Split(line, "|")
	if len(fields) != 7 {
		return ManifestEntry{}, fmt.Errorf("want 7 fields, got %d", len(fields))
	}
	entryType := EntryType(fields[2])
	switch entryType {
	case EntryFile, EntryDir, EntryOther:
	default:
		return ManifestEntry{}, fmt.Errorf("unknown entry type %q", fields[2])
	}
	perm, err := strconv.ParseUint(fields[3], 8, 32)
	if err != nil {
		return ManifestEntry{}, fmt.Errorf("permissions %q: %v", fields[3], err)
	}
	size, err := strconv.ParseInt(fields[4], 10, 64)
	if err != nil {
		return ManifestEntry{}, fmt.Errorf("size %q: %v", fields[4], err)
	}
	mtime, err := strconv.ParseInt(fields[5], 10, 64)
	if err != nil {
		return ManifestEntry{}, fmt.Errorf("mtime %q: %v", fields[5], err)
	}
	return ManifestEntry{
		Path:     fields[0],
		RelPath:  fields[1],
		Type:     entryType,
		Perm:     os.FileMode(perm),
		Size:     size,
		ModTime:  time.Unix(mtime, 0),
		Checksum: fields[6],
	}, nil
}

// WriteManifest writes m to path. Any failure is wrapped as
// ErrManifestWrite and the partial file is removed.
func WriteManifest(m *Manifest, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrManifestWrite, err)
	}
	w := bufio.NewWriter(f)
	fmt.Fprintf(w, "%s|%s|%s|%s\n", manifestFormat, m.RunID, m.CreatedAt.Format(time.RFC3339), m.Root)
	for _, e := range m.Entries {
		fmt.Fprintln(w, e.encode())
	}
	if err := w.Flush(); err != nil {
		f.Close()
		os.Remove(path)
		return fmt.Errorf("%w: %v", ErrManifestWrite, err)
	}
	if err := f.Close(); err != nil {
		os.Remove(path)
		return fmt.Errorf("%w: %v", ErrManifestWrite, err)
	}
	return nil
}

// ReadManifest parses a manifest file. I/O and parse problems are fatal
// here; deciding what to do about individual entries is the caller's job.
func ReadManifest(path string) (*Manifest, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open manifest: %w", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	if !scanner.Scan() {
		if err := scanner.Err(); err != nil {
			return nil, fmt.Errorf("read manifest: %w", err)
		}
		return nil, fmt.Errorf("manifest %s is empty", path)
	}
	// the root may contain the delimiter, so it soaks up the remainder
	header := strings.SplitN(scanner.Text(), "|", 4)
	if len(header) != 4 || header[0] != manifestFormat {
		return nil, fmt.Errorf("%s is not a %s file", path, manifestFormat)
	}
	createdAt, err := time.Parse(time.RFC3339, header[2])
	if err != nil {
		return nil, fmt.Errorf("manifest header time: %v", err)
	}

	m := &Manifest{RunID: header[1], CreatedAt: createdAt, Root: header[3]}
	lineNo := 1
	for scanner.Scan() {
		lineNo++
		line := scanner.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}
		e, err := parseManifestEntry(line)
		if err != nil {
			return nil, fmt.Errorf("manifest line %d: %w", lineNo, err)
		}
		m.Entries = append(m.Entries, e)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	return m, nil
}
