package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	log "github.com/sirupsen/logrus"
)

// one extraction at a time; a second concurrent call gets ErrBusy.
var extractSupervisor = &Supervisor{}

// ExtractOutcome summarizes one finished extraction.
type ExtractOutcome struct {
	Archive string
	Dest    string
	Deleted bool
}

// archiveStem strips the archive extension, treating the compound tar
// suffixes as one unit so "bundle.tar.gz" becomes "bundle".
func archiveStem(name string) string {
	lower := strings.ToLower(name)
	for _, suf := range tarCompoundSuffixes {
		if strings.HasSuffix(lower, suf) {
			return name[:len(name)-len(suf)]
		}
	}
	return strings.TrimSuffix(name, filepath.Ext(name))
}

// extractorFor maps an archive to the external tool invocation that unpacks
// it into dest. It only builds the argument list; the caller resolves the
// binary.
func extractorFor(archive, dest string) (string, []string, error) {
	lower := strings.ToLower(archive)
	switch {
	case strings.HasSuffix(lower, ".tar"):
		return "tar", []string{"-xf", archive, "-C", dest}, nil
	case strings.HasSuffix(lower, ".tar.gz"), strings.HasSuffix(lower, ".tgz"):
		return "tar", []string{"-xzf", archive, "-C", dest}, nil
	case strings.HasSuffix(lower, ".tar.bz2"), strings.HasSuffix(lower, ".tbz2"):
		return "tar", []string{"-xjf", archive, "-C", dest}, nil
	case strings.HasSuffix(lower, ".tar.xz"), strings.HasSuffix(lower, ".txz"):
		return "tar", []string{"-xJf", archive, "-C", dest}, nil
	case strings.HasSuffix(lower, ".zip"):
		return "unzip", []string{"-o", archive, "-d", dest}, nil
	case strings.HasSuffix(lower, ".rar"):
		return "unrar", []string{"x", "-o+", archive, dest + string(os.PathSeparator)}, nil
	case strings.HasSuffix(lower, ".7z"):
		return "7z", []string{"x", archive, "-o" + dest}, nil
	}
	return "", nil, fmt.Errorf("no extractor known for %s", filepath.Base(archive))
}

func extractCommand(ctx context.Context, archive, dest string) (*exec.Cmd, error) {
	tool, args, err := extractorFor(archive, dest)
	if err != nil {
		return nil, err
	}
	bin, err := exec.LookPath(tool)
	if err != nil {
		return nil, fmt.Errorf("%s is required to extract %s but was not found in PATH", tool, filepath.Base(archive))
	}
	return exec.CommandContext(ctx, bin, args...), nil
}

// ExtractArchive unpacks one archive with the matching external tool. With
// CreateSubfolder set the contents land in a directory named after the
// archive stem; a failed or cancelled run removes that directory again.
func ExtractArchive(ctx context.Context, archive string, s Settings, events chan<- ProgressEvent) (*ExtractOutcome, error) {
	archive, err := filepath.Abs(archive)
	if err != nil {
		return nil, err
	}
	if _, err := os.Stat(archive); err != nil {
		return nil, err
	}

	dest := filepath.Dir(archive)
	created := ""
	if s.CreateSubfolder {
		dest = filepath.Join(dest, archiveStem(filepath.Base(archive)))
		if err := os.MkdirAll(dest, 0o755); err != nil {
			return nil, err
		}
		created = dest
	}

	cmd, err := extractCommand(ctx, archive, dest)
	if err != nil {
		if created != "" {
			os.Remove(created)
		}
		return nil, err
	}
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	rs := RunSpec{Command: cmd, Events: events}
	if created != "" {
		rs.PartialPaths = []string{created}
	}
	if err := extractSupervisor.Run(ctx, rs); err != nil {
		if msg := lastLine(stderr.String()); msg != "" {
			return nil, fmt.Errorf("%w: %s", err, msg)
		}
		return nil, err
	}

	out := &ExtractOutcome{Archive: archive, Dest: dest}
	if s.DeleteArchivesAfterExtract {
		if err := os.Remove(archive); err != nil {
			log.WithError(err).WithField("archive", archive).Warn("could not delete archive after extraction")
		} else {
			out.Deleted = true
		}
	}
	return out, nil
}
