package main

import (
	"fmt"
	"os"
	"sort"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
	"github.com/schollz/progressbar/v3"
)

var (
	headerColor = color.New(color.FgCyan, color.Bold)
	okColor     = color.New(color.FgGreen)
	warnColor   = color.New(color.FgYellow)
	errColor    = color.New(color.FgRed, color.Bold)
)

func stdoutIsTTY() bool {
	return isatty.IsTerminal(os.Stdout.Fd()) || isatty.IsCygwinTerminal(os.Stdout.Fd())
}

// printRenamePreview lists every planned change grouped by directory, with
// collisions and invalid results called out inline.
func printRenamePreview(plan *RenamePlan) {
	byDir := make(map[string][]PlanItem)
	for _, it := range plan.Items {
		if it.Status == StatusSkipped {
			continue
		}
		byDir[it.Dir] = append(byDir[it.Dir], it)
	}
	if len(byDir) == 0 {
		fmt.Println("Nothing to rename.")
		return
	}

	dirs := make([]string, 0, len(byDir))
	for d := range byDir {
		dirs = append(dirs, d)
	}
	sort.Strings(dirs)

	for _, d := range dirs {
		headerColor.Printf("%s\n", d)
		for _, it := range byDir[d] {
			switch it.Status {
			case StatusCollision, StatusInvalid:
				fmt.Printf("  %s %s %s\n", it.OldName, errColor.Sprint("!!"), it.Reason)
			default:
				fmt.Printf("  %s %s %s\n", it.OldName, okColor.Sprint("->"), it.NewName)
			}
		}
	}
}

func printRenameSummary(out *RenameOutcome) {
	verb := "renamed"
	if out.DryRun {
		verb = "would rename"
	}
	line := fmt.Sprintf("%s: %d %s, %d skipped, %d errors",
		okColor.Sprintf("%d files", out.TotalCandidates), out.RenamedCount, verb, out.SkippedCount, out.ErrorCount)
	if out.ErrorCount > 0 {
		line = fmt.Sprintf("%s: %d %s, %d skipped, %s",
			okColor.Sprintf("%d files", out.TotalCandidates), out.RenamedCount, verb, out.SkippedCount,
			errColor.Sprintf("%d errors", out.ErrorCount))
	}
	fmt.Println(line)
	for _, r := range out.Results {
		if r.Status == StatusFailed {
			errColor.Printf("  %s: %s\n", r.Path, r.Reason)
		}
	}
}

func printRestoreSummary(out *RestoreOutcome) {
	fmt.Printf("%d entries: %s restored, %d already intact, %d directories recreated\n",
		out.TotalEntries, okColor.Sprintf("%d", out.RestoredCount), out.IntactCount, out.RecreatedDirs)
	if len(out.Unresolved) > 0 {
		errColor.Printf("%d entries could not be restored:\n", len(out.Unresolved))
		for _, u := range out.Unresolved {
			fmt.Printf("  %s: %s\n", u.Entry.RelPath, u.Reason)
		}
	}
}

func printMediaInfo(mi *MediaInfo) {
	headerColor.Printf("%s\n", mi.Path)
	fmt.Print(RenderInfoSheet(mi, ""))
}

func newFileBar(total int, desc string) *progressbar.ProgressBar {
	return progressbar.NewOptions(total,
		progressbar.OptionSetDescription(desc),
		progressbar.OptionSetWidth(50),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetItsString("files"),
		progressbar.OptionOnCompletion(func() { fmt.Println() }),
	)
}

func newPercentBar(desc string) *progressbar.ProgressBar {
	return progressbar.NewOptions(100,
		progressbar.OptionSetDescription(desc),
		progressbar.OptionSetWidth(50),
		progressbar.OptionOnCompletion(func() { fmt.Println() }),
	)
}

func newCountSpinner(desc, its string) *progressbar.ProgressBar {
	return progressbar.NewOptions(-1,
		progressbar.OptionSetDescription(desc),
		progressbar.OptionSpinnerType(14),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetItsString(its),
	)
}

func newSpinner(desc string) *progressbar.ProgressBar {
	return progressbar.NewOptions(-1,
		progressbar.OptionSetDescription(desc),
		progressbar.OptionSpinnerType(14),
	)
}
