package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func underscoreRules() []RenameRule {
	return []RenameRule{{Match: "_", Replacement: " ", Kind: RuleLiteral, CaseSensitive: true}}
}

func TestRenamerDryRunMatchesRealRun(t *testing.T) {
	layout := map[string]string{
		"My_File.txt":        "one",
		"sub/Other_File.txt": "two",
		"sub/plain.txt":      "three",
	}
	build := func(t *testing.T) string {
		root := t.TempDir()
		for rel, content := range layout {
			writeFile(t, filepath.Join(root, rel), content)
		}
		return root
	}

	rn := &Renamer{Rules: underscoreRules()}

	dryRoot := build(t)
	dry, err := rn.Run(dryRoot, true)
	require.NoError(t, err)

	realRoot := build(t)
	applied, err := rn.Run(realRoot, false)
	require.NoError(t, err)

	require.Equal(t, dry.TotalCandidates, applied.TotalCandidates)
	require.Equal(t, dry.RenamedCount, applied.RenamedCount)
	require.Equal(t, dry.SkippedCount, applied.SkippedCount)
	require.Equal(t, dry.ErrorCount, applied.ErrorCount)
	require.Len(t, applied.Results, len(dry.Results))
	for i := range dry.Results {
		require.Equal(t, filepath.Base(dry.Results[i].NewPath), filepath.Base(applied.Results[i].NewPath))
	}

	// the dry run touched nothing
	require.FileExists(t, filepath.Join(dryRoot, "My_File.txt"))
	// the real run moved what it promised
	require.FileExists(t, filepath.Join(realRoot, "My File.txt"))
	require.FileExists(t, filepath.Join(realRoot, "sub", "Other File.txt"))
	require.FileExists(t, filepath.Join(realRoot, "sub", "plain.txt"))
}

func TestRenamerSecondPassRenamesNothing(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "Ep1_Final2.mkv"), "x")

	rules := []RenameRule{
		{Match: "_", Replacement: " ", Kind: RuleLiteral, CaseSensitive: true},
		{Kind: RuleSmartSpace},
	}
	rn := &Renamer{Rules: rules}

	first, err := rn.Run(root, false)
	require.NoError(t, err)
	require.Equal(t, 1, first.RenamedCount)
	require.FileExists(t, filepath.Join(root, "Ep 1 Final 2.mkv"))

	second, err := rn.Run(root, false)
	require.NoError(t, err)
	require.Zero(t, second.RenamedCount)
	require.Zero(t, second.ErrorCount)
	require.Equal(t, second.TotalCandidates, second.SkippedCount)
}

func TestRenamerDuplicateTargetsAllCollide(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "a_1.txt"), "first")
	writeFile(t, filepath.Join(root, "a-1.txt"), "second")

	rules := []RenameRule{
		{Match: "_", Replacement: ".", Kind: RuleLiteral, CaseSensitive: true},
		{Match: "-", Replacement: ".", Kind: RuleLiteral, CaseSensitive: true},
	}
	out, err := (&Renamer{Rules: rules}).Run(root, false)
	require.NoError(t, err)

	require.Equal(t, 2, out.ErrorCount)
	require.Zero(t, out.RenamedCount)
	for _, r := range out.Results {
		require.Equal(t, StatusCollision, r.Status)
	}
	require.FileExists(t, filepath.Join(root, "a_1.txt"))
	require.FileExists(t, filepath.Join(root, "a-1.txt"))
}

func TestRenamerExistingTargetCollides(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "a_b.txt"), "new")
	writeFile(t, filepath.Join(root, "a b.txt"), "old")

	out, err := (&Renamer{Rules: underscoreRules()}).Run(root, false)
	require.NoError(t, err)

	require.Equal(t, 1, out.ErrorCount)
	require.Zero(t, out.RenamedCount)

	// the occupant is untouched
	content, err := os.ReadFile(filepath.Join(root, "a b.txt"))
	require.NoError(t, err)
	require.Equal(t, "old", string(content))
	require.FileExists(t, filepath.Join(root, "a_b.txt"))
}

func TestRenamerProgressMonotonicEndsAtHundred(t *testing.T) {
	root := t.TempDir()
	for _, name := range []string{"a_1.txt", "b_2.txt", "c_3.txt", "d.txt", "e_5.txt", "f.txt", "g_7.txt"} {
		writeFile(t, filepath.Join(root, name), name)
	}

	var pcts []int
	rn := &Renamer{
		Rules: underscoreRules(),
		Progress: func(done, total int) {
			pcts = append(pcts, done*100/total)
		},
	}
	out, err := rn.Run(root, false)
	require.NoError(t, err)
	require.Equal(t, 7, out.TotalCandidates)

	require.Len(t, pcts, 7)
	for i := 1; i < len(pcts); i++ {
		require.GreaterOrEqual(t, pcts[i], pcts[i-1])
	}
	require.Equal(t, 100, pcts[len(pcts)-1])
	require.NotEqual(t, 100, pcts[len(pcts)-2])
}

func TestRenamerInvalidPatternIsPerFile(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "one.txt"), "1")
	writeFile(t, filepath.Join(root, "two.txt"), "2")

	rules := []RenameRule{{Match: "(", Kind: RuleRegex, CaseSensitive: true}}
	out, err := (&Renamer{Rules: rules}).Run(root, false)
	require.NoError(t, err)

	require.Equal(t, 2, out.ErrorCount)
	for _, r := range out.Results {
		require.Equal(t, StatusInvalid, r.Status)
		require.Contains(t, r.Reason, "rule 1")
	}
	require.FileExists(t, filepath.Join(root, "one.txt"))
	require.FileExists(t, filepath.Join(root, "two.txt"))
}

func TestRenamerMissingRoot(t *testing.T) {
	rn := &Renamer{Rules: underscoreRules()}
	_, err := rn.Plan(filepath.Join(t.TempDir(), "nope"))
	require.ErrorIs(t, err, ErrInaccessibleRoot)
}

func TestRenamerEmptyRoot(t *testing.T) {
	out, err := (&Renamer{Rules: underscoreRules()}).Run(t.TempDir(), false)
	require.NoError(t, err)
	require.Zero(t, out.TotalCandidates)
	require.Zero(t, out.ErrorCount)
}
