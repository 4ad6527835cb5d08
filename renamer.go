package main

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	log "github.com/sirupsen/logrus"
)

// RenameStatus classifies what happened (or would happen) to one file.
type RenameStatus string

const (
	StatusRenamed     RenameStatus = "renamed"
	StatusWouldRename RenameStatus = "would-rename"
	StatusSkipped     RenameStatus = "skipped"
	StatusCollision   RenameStatus = "collision"
	StatusInvalid     RenameStatus = "invalid-pattern"
	StatusFailed      RenameStatus = "failed"
)

// PlanItem is one candidate file with its computed target name.
type PlanItem struct {
	Path    string
	Dir     string
	OldName string
	NewName string
	Status  RenameStatus
	Reason  string
}

// RenamePlan is the full mapping computed for one root. Dry and real runs
// share the same plan, so both report identically.
type RenamePlan struct {
	Root  string
	Items []PlanItem
}

// NeedsWork reports whether the plan contains anything beyond skips.
func (p *RenamePlan) NeedsWork() bool {
	for _, it := range p.Items {
		if it.Status == StatusWouldRename {
			return true
		}
	}
	return false
}

// RenameResult records the final outcome for one file.
type RenameResult struct {
	Path    string
	NewPath string
	Status  RenameStatus
	Reason  string
}

// RenameOutcome aggregates one full pass.
type RenameOutcome struct {
	DryRun          bool
	TotalCandidates int
	RenamedCount    int
	SkippedCount    int
	ErrorCount      int
	Results         []RenameResult
}

// Renamer applies an ordered rule list to every regular file under a root.
// Files are processed one at a time; renames stay within their directory.
type Renamer struct {
	Rules    []RenameRule
	Progress func(done, total int) // fired after every processed file
}

// Plan walks root and computes the target name for every regular file.
// Collisions are decided here against the pre-run state of the tree, which
// keeps a dry run and the real run that follows it in agreement.
func (rn *Renamer) Plan(root string) (*RenamePlan, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInaccessibleRoot, err)
	}
	if info, err := os.Stat(absRoot); err != nil || !info.IsDir() {
		return nil, fmt.Errorf("%w: %s", ErrInaccessibleRoot, root)
	}

	plan := &RenamePlan{Root: absRoot}
	walkErr := filepath.WalkDir(absRoot, func(path string, d fs.DirEntry, err error) error {
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

		item := PlanItem{Path: path, Dir: filepath.Dir(path), OldName: d.Name()}
		newName, err := ApplyRules(d.Name(), rn.Rules)
		switch {
		case err != nil:
			item.Status = StatusInvalid
			item.Reason = err.Error()
			item.NewName = d.Name()
		case badFileName(newName):
			item.Status = StatusInvalid
			item.Reason = fmt.Sprintf("rules produce invalid name %q", newName)
			item.NewName = d.Name()
		case newName == d.Name():
			item.Status = StatusSkipped
			item.NewName = newName
		default:
			item.Status = StatusWouldRename
			item.NewName = newName
		}
		plan.Items = append(plan.Items, item)
		return nil
	})
	if walkErr != nil {
		return nil, walkErr
	}
	rn.markCollisions(plan)
	return plan, nil
}

// badFileName rejects targets that would escape the directory or vanish.
func badFileName(name string) bool {
	return name == "" || name == "." || name == ".." ||
		strings.ContainsRune(name, os.PathSeparator)
}

// markCollisions downgrades items whose targets clash with each other or
// with an existing object. No member of a clashing group is renamed.
func (rn *Renamer) markCollisions(plan *RenamePlan) {
	claims := make(map[string][]int)
	for i := range plan.Items {
		if plan.Items[i].Status != StatusWouldRename {
			continue
		}
		target := filepath.Join(plan.Items[i].Dir, plan.Items[i].NewName)
		claims[target] = append(claims[target], i)
	}
	for target, idxs := range claims {
		if len(idxs) > 1 {
			for _, i := range idxs {
				plan.Items[i].Status = StatusCollision
				plan.Items[i].Reason = fmt.Sprintf("%d files map to %q", len(idxs), filepath.Base(target))
			}
			continue
		}
		it := &plan.Items[idxs[0]]
		dst, err := os.Stat(target)
		if err != nil {
			continue
		}
		// a case-only rename on a case-insensitive filesystem stats itself
		if src, err := os.Stat(it.Path); err == nil && os.SameFile(src, dst) {
			continue
		}
		it.Status = StatusCollision
		it.Reason = fmt.Sprintf("%q already exists", it.NewName)
	}
}

// Apply executes (or, with dryRun, previews) a plan. The progress callback
// fires after every item and reaches done == total exactly at the end.
func (rn *Renamer) Apply(plan *RenamePlan, dryRun bool) *RenameOutcome {
	out := &RenameOutcome{DryRun: dryRun, TotalCandidates: len(plan.Items)}
	total := len(plan.Items)

	for i := range plan.Items {
		it := &plan.Items[i]
		res := RenameResult{
			Path:    it.Path,
			NewPath: filepath.Join(it.Dir, it.NewName),
			Status:  it.Status,
			Reason:  it.Reason,
		}
		switch it.Status {
		case StatusSkipped:
			out.SkippedCount++
		case StatusCollision, StatusInvalid:
			out.ErrorCount++
		case StatusWouldRename:
			if dryRun {
				out.RenamedCount++
			} else if err := os.Rename(it.Path, res.NewPath); err != nil {
				res.Status = StatusFailed
				res.Reason = err.Error()
				out.ErrorCount++
				log.WithError(err).WithField("path", it.Path).Error("rename failed")
			} else {
				res.Status = StatusRenamed
				out.RenamedCount++
				log.WithFields(log.Fields{"from": it.OldName, "to": it.NewName}).Debug("renamed")
			}
		}
		out.Results = append(out.Results, res)
		if rn.Progress != nil {
			rn.Progress(i+1, total)
		}
	}
	return out
}

// Run is the one-call form: plan, then apply.
func (rn *Renamer) Run(root string, dryRun bool) (*RenameOutcome, error) {
	plan, err := rn.Plan(root)
	if err != nil {
		return nil, err
	}
	return rn.Apply(plan, dryRun), nil
}
