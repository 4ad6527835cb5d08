package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/schollz/progressbar/v3"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var version = "dev" // set at build time with -ldflags

// settings is resolved once in the root PersistentPreRunE and read-only
// afterwards.
var settings Settings

func newRootCmd() *cobra.Command {
	var (
		cfgPath    string
		verbose    bool
		dryRun     bool
		noColor    bool
		noProgress bool
	)
	root := &cobra.Command{
		Use:           "unix-commands",
		Short:         "Batch renaming, backups and media utilities for large file collections",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			log.SetOutput(os.Stderr)
			log.SetFormatter(&log.TextFormatter{DisableTimestamp: true})
			if verbose {
				log.SetLevel(log.DebugLevel)
			}

			path := cfgPath
			explicit := path != ""
			if !explicit {
				path = DefaultConfigPath()
			}
			s, err := LoadSettings(path, explicit)
			if err != nil {
				return err
			}
			if err := s.Validate(); err != nil {
				return err
			}
			if cmd.Root().PersistentFlags().Changed("dry-run") {
				s.DryRun = dryRun
			}
			if noColor || !stdoutIsTTY() {
				s.Color = false
			}
			if noProgress || !stdoutIsTTY() {
				s.ShowProgress = false
			}
			color.NoColor = !s.Color
			settings = s
			return nil
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&cfgPath, "config", "", "config file (default "+DefaultConfigPath()+")")
	pf.BoolVarP(&verbose, "verbose", "v", false, "log debug detail to stderr")
	pf.BoolVarP(&dryRun, "dry-run", "n", false, "report what would change without touching anything")
	pf.BoolVar(&noColor, "no-color", false, "disable colored output")
	pf.BoolVar(&noProgress, "no-progress", false, "disable progress bars")

	root.AddCommand(
		newRenameCmd(),
		newBackupCmd(),
		newRestoreCmd(),
		newInfoCmd(),
		newExtractCmd(),
		newTranscodeCmd(),
	)
	return root
}

// Execute runs the CLI with ctx wired through to every walk and child
// process.
func Execute(ctx context.Context) error {
	return newRootCmd().ExecuteContext(ctx)
}

// gatherRules folds the rule sources into one ordered list: rules file
// first, then inline --rule flags, then the shortcut flags.
func gatherRules(inline []string, file string, smart, digit, underscores bool) ([]RenameRule, error) {
	var rules []RenameRule
	if file != "" {
		fromFile, err := LoadRuleFile(file)
		if err != nil {
			return nil, err
		}
		rules = append(rules, fromFile...)
	}
	for _, raw := range inline {
		r, err := ParseRule(raw)
		if err != nil {
			return nil, err
		}
		rules = append(rules, r)
	}
	if underscores {
		rules = append(rules, RenameRule{Match: "_", Replacement: " ", Kind: RuleLiteral, CaseSensitive: true})
	}
	if smart {
		rules = append(rules, RenameRule{Kind: RuleSmartSpace})
	}
	if digit {
		rules = append(rules, RenameRule{Kind: RuleDigitSpace})
	}
	if len(rules) == 0 {
		return nil, errors.New("no rules given: use --rule, --rules-file or a shortcut flag")
	}
	return rules, nil
}

func newRenameCmd() *cobra.Command {
	var (
		inline      []string
		rulesFile   string
		smartSpaces bool
		digitSpaces bool
		underscores bool
		noBackup    bool
	)
	cmd := &cobra.Command{
		Use:   "rename DIR",
		Short: "Apply rename rules to every file under a directory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rules, err := gatherRules(inline, rulesFile, smartSpaces, digitSpaces, underscores)
			if err != nil {
				return err
			}
			rn := &Renamer{Rules: rules}
			plan, err := rn.Plan(args[0])
			if err != nil {
				return err
			}
			printRenamePreview(plan)

			if !settings.DryRun && settings.BackupEnabled && !noBackup && plan.NeedsWork() {
				rec := NewRecorder(settings.BackupDir)
				manifestPath, _, err := rec.CreateBackup(plan.Root)
				if err != nil {
					return fmt.Errorf("backup before rename: %w", err)
				}
				fmt.Printf("backup manifest: %s\n", manifestPath)
			}

			if settings.ShowProgress {
				var bar *progressbar.ProgressBar
				rn.Progress = func(done, total int) {
					if bar == nil {
						bar = newFileBar(total, "renaming")
					}
					bar.Set(done)
				}
			}

			out := rn.Apply(plan, settings.DryRun)
			printRenameSummary(out)
			if out.ErrorCount > 0 {
				return fmt.Errorf("%d files had errors", out.ErrorCount)
			}
			return nil
		},
	}
	cmd.Flags().StringArrayVar(&inline, "rule", nil, "rule as match|replacement|kind|case_sensitive (repeatable)")
	cmd.Flags().StringVar(&rulesFile, "rules-file", "", "file with one rule per line")
	cmd.Flags().BoolVar(&smartSpaces, "smart-spaces", false, "space out CamelCase and letter-digit seams")
	cmd.Flags().BoolVar(&digitSpaces, "digit-spaces", false, "space out every letter-digit seam")
	cmd.Flags().BoolVar(&underscores, "underscores", false, "replace underscores with spaces")
	cmd.Flags().BoolVar(&noBackup, "no-backup", false, "skip the backup manifest before renaming")
	return cmd
}

func newBackupCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "backup DIR",
		Short: "Record a directory tree into a restore manifest",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rec := NewRecorder(settings.BackupDir)
			var sp *progressbar.ProgressBar
			if settings.ShowProgress {
				sp = newCountSpinner("capturing", "objects")
				rec.OnEntry = func(ManifestEntry) { sp.Add(1) }
			}
			path, m, err := rec.CreateBackup(args[0])
			if sp != nil {
				fmt.Println()
			}
			if err != nil {
				return err
			}
			files := 0
			for _, e := range m.Entries {
				if e.Type == EntryFile {
					files++
				}
			}
			okColor.Printf("%s\n", path)
			fmt.Printf("%d objects recorded, %d files hashed\n", len(m.Entries), files)
			return nil
		},
	}
}

// latestManifest finds the newest manifest the recorder wrote for root.
// Manifest names embed the capture time, so the lexically last one wins.
func latestManifest(backupDir, root string) (string, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return "", err
	}
	prefix := "backup-" + sanitizeName(filepath.Base(abs)) + "-"

	entries, err := os.ReadDir(backupDir)
	if err != nil {
		if os.IsNotExist(err) {
			return "", errors.New("no backups recorded yet")
		}
		return "", err
	}
	var names []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasPrefix(e.Name(), prefix) && strings.HasSuffix(e.Name(), ".txt") {
			names = append(names, e.Name())
		}
	}
	if len(names) == 0 {
		return "", fmt.Errorf("no manifest for %s under %s", root, backupDir)
	}
	sort.Strings(names)
	return filepath.Join(backupDir, names[len(names)-1]), nil
}

func newRestoreCmd() *cobra.Command {
	var last string
	cmd := &cobra.Command{
		Use:   "restore [MANIFEST]",
		Short: "Replay a backup manifest, undoing renames by checksum",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var manifestPath string
			switch {
			case len(args) == 1:
				manifestPath = args[0]
			case last != "":
				p, err := latestManifest(settings.BackupDir, last)
				if err != nil {
					return err
				}
				manifestPath = p
			default:
				return errors.New("give a manifest path or --last DIR")
			}

			co := &Coordinator{}
			if settings.ShowProgress {
				var bar *progressbar.ProgressBar
				co.Progress = func(done, total int) {
					if bar == nil {
						bar = newFileBar(total, "restoring")
					}
					bar.Set(done)
				}
			}
			out, err := co.Restore(manifestPath)
			if err != nil {
				return err
			}
			printRestoreSummary(out)
			if len(out.Unresolved) > 0 {
				return fmt.Errorf("%d entries could not be restored", len(out.Unresolved))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&last, "last", "", "restore the most recent manifest recorded for this directory")
	return cmd
}

func newInfoCmd() *cobra.Command {
	var (
		write   bool
		withMD5 bool
		workers int
	)
	cmd := &cobra.Command{
		Use:   "info PATH",
		Short: "Probe media files and print or write info sheets",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := os.Stat(args[0])
			if err != nil {
				return err
			}
			var infos []*MediaInfo
			if st.IsDir() {
				infos, err = ProbeTree(cmd.Context(), args[0], workers)
				if err != nil {
					return err
				}
			} else {
				mi, err := ProbeFile(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				infos = append(infos, mi)
			}
			if len(infos) == 0 {
				fmt.Println("No media files found.")
				return nil
			}

			failed := 0
			for i, mi := range infos {
				if write {
					sidecar, err := WriteInfoSheet(mi, withMD5)
					if err != nil {
						log.WithError(err).WithField("file", mi.Path).Error("could not write info sheet")
						failed++
						continue
					}
					okColor.Printf("%s\n", sidecar)
					continue
				}
				if i > 0 {
					fmt.Println()
				}
				printMediaInfo(mi)
			}
			if failed > 0 {
				return fmt.Errorf("%d info sheets failed", failed)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&write, "write", false, "write a .info.txt sidecar next to each file")
	cmd.Flags().BoolVar(&withMD5, "md5", false, "include an MD5 checksum in the sheet (reads the whole file)")
	cmd.Flags().IntVar(&workers, "workers", 4, "parallel probes when PATH is a directory")
	return cmd
}

func newExtractCmd() *cobra.Command {
	var (
		subfolder bool
		del       bool
		keep      bool
	)
	cmd := &cobra.Command{
		Use:   "extract ARCHIVE...",
		Short: "Unpack archives with the matching external tool",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s := settings
			if cmd.Flags().Changed("subfolder") {
				s.CreateSubfolder = subfolder
			}
			if del {
				s.DeleteArchivesAfterExtract = true
			}
			if keep {
				s.DeleteArchivesAfterExtract = false
			}

			failed := 0
			for _, archive := range args {
				if err := cmd.Context().Err(); err != nil {
					return err
				}
				var stop chan struct{}
				if s.ShowProgress {
					sp := newSpinner("extracting " + filepath.Base(archive))
					stop = make(chan struct{})
					go func() {
						t := time.NewTicker(120 * time.Millisecond)
						defer t.Stop()
						for {
							select {
							case <-stop:
								return
							case <-t.C:
								sp.Add(1)
							}
						}
					}()
				}
				out, err := ExtractArchive(cmd.Context(), archive, s, nil)
				if stop != nil {
					close(stop)
					fmt.Println()
				}
				if err != nil {
					if cmd.Context().Err() != nil {
						return err
					}
					errColor.Printf("%s: %v\n", archive, err)
					failed++
					continue
				}
				suffix := ""
				if out.Deleted {
					suffix = " (archive deleted)"
				}
				okColor.Printf("%s -> %s%s\n", out.Archive, out.Dest, suffix)
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d archives failed", failed, len(args))
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&subfolder, "subfolder", true, "extract into a directory named after the archive")
	cmd.Flags().BoolVar(&del, "delete", false, "delete each archive after successful extraction")
	cmd.Flags().BoolVar(&keep, "keep", false, "keep archives even when the config says otherwise")
	cmd.MarkFlagsMutuallyExclusive("delete", "keep")
	return cmd
}

func newTranscodeCmd() *cobra.Command {
	var (
		output string
		codec  string
		preset string
		crf    int
	)
	cmd := &cobra.Command{
		Use:   "transcode INPUT",
		Short: "Re-encode a video with ffmpeg, copying the audio streams",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			input, err := filepath.Abs(args[0])
			if err != nil {
				return err
			}
			ts := settings.Transcode
			if cmd.Flags().Changed("codec") {
				ts.Codec = codec
			}
			if cmd.Flags().Changed("preset") {
				ts.Preset = preset
			}
			if cmd.Flags().Changed("crf") {
				ts.CRF = crf
			}
			check := settings
			check.Transcode = ts
			if err := check.Validate(); err != nil {
				return err
			}

			out := output
			if out == "" {
				out = strings.TrimSuffix(input, filepath.Ext(input)) + ".transcoded.mkv"
			}
			job := TranscodeJob{Input: input, Output: out, Settings: ts}

			events := make(chan ProgressEvent, 8)
			done := make(chan struct{})
			go func() {
				defer close(done)
				if settings.ShowProgress {
					bar := newPercentBar("transcoding")
					for ev := range events {
						bar.Set(ev.Percent)
						if ev.Message != "" {
							bar.Describe("transcoding " + ev.Message)
						}
					}
					return
				}
				for ev := range events {
					log.WithFields(log.Fields{"percent": ev.Percent, "state": ev.Message}).Debug("transcode progress")
				}
			}()
			err = Transcode(cmd.Context(), job, events)
			close(events)
			<-done
			if err != nil {
				return err
			}
			okColor.Printf("wrote %s\n", out)
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "output path (default INPUT with a .transcoded.mkv suffix)")
	cmd.Flags().StringVar(&codec, "codec", "", "video codec passed to ffmpeg -c:v")
	cmd.Flags().StringVar(&preset, "preset", "", "ffmpeg preset")
	cmd.Flags().IntVar(&crf, "crf", 0, "constant rate factor (0-51)")
	return cmd
}
