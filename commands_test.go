package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGatherRules(t *testing.T) {
	rules, err := gatherRules([]string{"-| |literal|true"}, "", true, false, true)
	require.NoError(t, err)
	require.Len(t, rules, 3)
	require.Equal(t, "-", rules[0].Match)
	require.Equal(t, "_", rules[1].Match)
	require.Equal(t, RuleLiteral, rules[1].Kind)
	require.Equal(t, RuleSmartSpace, rules[2].Kind)

	rulesPath := filepath.Join(t.TempDir(), "rules.txt")
	require.NoError(t, os.WriteFile(rulesPath, []byte("# comment\n_|.|literal|true\n"), 0o644))
	rules, err = gatherRules(nil, rulesPath, false, true, false)
	require.NoError(t, err)
	require.Len(t, rules, 2)
	require.Equal(t, ".", rules[0].Replacement)
	require.Equal(t, RuleDigitSpace, rules[1].Kind)

	_, err = gatherRules(nil, "", false, false, false)
	require.Error(t, err)
}

func TestLatestManifestPicksNewest(t *testing.T) {
	backupDir := t.TempDir()
	root := filepath.Join(t.TempDir(), "Movies")
	require.NoError(t, os.MkdirAll(root, 0o755))

	prefix := "backup-" + sanitizeName(filepath.Base(root)) + "-"
	older := prefix + "20260101-090000-aaaaaaaa.txt"
	newer := prefix + "20260301-090000-bbbbbbbb.txt"
	foreign := "backup-Other-20260401-090000-cccccccc.txt"
	for _, name := range []string{older, newer, foreign} {
		require.NoError(t, os.WriteFile(filepath.Join(backupDir, name), []byte("x"), 0o644))
	}

	got, err := latestManifest(backupDir, root)
	require.NoError(t, err)
	require.Equal(t, filepath.Join(backupDir, newer), got)
}

func TestLatestManifestNoneRecorded(t *testing.T) {
	_, err := latestManifest(filepath.Join(t.TempDir(), "absent"), t.TempDir())
	require.Error(t, err)

	_, err = latestManifest(t.TempDir(), t.TempDir())
	require.Error(t, err)
}

func testConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestRenameCommandEndToEnd(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "My_File.txt"), "content")
	cfg := testConfig(t, "showProgress = false\nbackupEnabled = false\n")

	cmd := newRootCmd()
	cmd.SetOut(io.Discard)
	cmd.SetErr(io.Discard)
	cmd.SetArgs([]string{"rename", "--underscores", "--config", cfg, root})
	require.NoError(t, cmd.Execute())

	require.FileExists(t, filepath.Join(root, "My File.txt"))
	require.NoFileExists(t, filepath.Join(root, "My_File.txt"))
}

func TestRenameCommandDryRun(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "My_File.txt"), "content")
	cfg := testConfig(t, "showProgress = false\nbackupEnabled = false\n")

	cmd := newRootCmd()
	cmd.SetOut(io.Discard)
	cmd.SetErr(io.Discard)
	cmd.SetArgs([]string{"rename", "-n", "--underscores", "--config", cfg, root})
	require.NoError(t, cmd.Execute())

	require.FileExists(t, filepath.Join(root, "My_File.txt"))
	require.NoFileExists(t, filepath.Join(root, "My File.txt"))
}

func TestBackupCommandEndToEnd(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "a.txt"), "alpha")

	backupDir := filepath.Join(t.TempDir(), "backups")
	cfg := testConfig(t, fmt.Sprintf("showProgress = false\nbackupDir = %q\n", backupDir))

	cmd := newRootCmd()
	cmd.SetOut(io.Discard)
	cmd.SetErr(io.Discard)
	cmd.SetArgs([]string{"backup", "--config", cfg, root})
	require.NoError(t, cmd.Execute())

	entries, err := os.ReadDir(backupDir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.True(t, strings.HasPrefix(entries[0].Name(), "backup-"))
}

func TestRenameCommandBackupThenRestore(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "My_File.txt"), "content")

	backupDir := filepath.Join(t.TempDir(), "backups")
	cfg := testConfig(t, fmt.Sprintf("showProgress = false\nbackupDir = %q\n", backupDir))

	cmd := newRootCmd()
	cmd.SetOut(io.Discard)
	cmd.SetErr(io.Discard)
	cmd.SetArgs([]string{"rename", "--underscores", "--config", cfg, root})
	require.NoError(t, cmd.Execute())
	require.FileExists(t, filepath.Join(root, "My File.txt"))

	manifest, err := latestManifest(backupDir, root)
	require.NoError(t, err)

	// restoring through the CLI undoes the rename
	cmd = newRootCmd()
	cmd.SetOut(io.Discard)
	cmd.SetErr(io.Discard)
	cmd.SetArgs([]string{"restore", "--config", cfg, manifest})
	require.NoError(t, cmd.Execute())
	require.FileExists(t, filepath.Join(root, "My_File.txt"))
}
