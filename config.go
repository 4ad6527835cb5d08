package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"
)

const appName = "unix-commands"

// TranscodeSettings selects ffmpeg encoding parameters.
type TranscodeSettings struct {
	Codec  string `toml:"codec"`
	Preset string `toml:"preset"`
	CRF    int    `toml:"crf"`
}

// Settings is the resolved configuration. Precedence is command-line flags
// over the config file over the defaults; the resolved value is immutable
// for the rest of the run.
type Settings struct {
	DryRun                     bool   `toml:"dryRun"`
	ShowProgress               bool   `toml:"showProgress"`
	BackupEnabled              bool   `toml:"backupEnabled"`
	CreateSubfolder            bool   `toml:"createSubfolder"`
	DeleteArchivesAfterExtract bool   `toml:"deleteArchivesAfterExtract"`
	Color                      bool   `toml:"color"`
	BackupDir                  string `toml:"backupDir"`

	Transcode TranscodeSettings `toml:"transcode"`
}

func DefaultSettings() Settings {
	return Settings{
		ShowProgress:    true,
		BackupEnabled:   true,
		CreateSubfolder: true,
		Color:           true,
		BackupDir:       defaultBackupDir(),
		Transcode: TranscodeSettings{
			Codec:  "libx265",
			Preset: "medium",
			CRF:    23,
		},
	}
}

// LoadSettings overlays the TOML file at path onto the defaults. A missing
// file at the default location is fine; an explicitly named one must exist.
func LoadSettings(path string, explicit bool) (Settings, error) {
	s := DefaultSettings()
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) && !explicit {
			return s, nil
		}
		return s, fmt.Errorf("read config: %w", err)
	}
	if err := toml.Unmarshal(data, &s); err != nil {
		return s, fmt.Errorf("parse config %s: %w", path, err)
	}
	return s, nil
}

var ffmpegPresets = map[string]bool{
	"ultrafast": true, "superfast": true, "veryfast": true, "faster": true,
	"fast": true, "medium": true, "slow": true, "slower": true, "veryslow": true,
}

func (s Settings) Validate() error {
	if s.Transcode.Preset != "" && !ffmpegPresets[s.Transcode.Preset] {
		return fmt.Errorf("unknown ffmpeg preset %q", s.Transcode.Preset)
	}
	if s.Transcode.CRF < 0 || s.Transcode.CRF > 51 {
		return fmt.Errorf("crf must be between 0 and 51, got %d", s.Transcode.CRF)
	}
	return nil
}

// DefaultConfigPath is ~/.config/unix-commands/config.toml (or the platform
// equivalent).
func DefaultConfigPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, appName, "config.toml")
}

// defaultBackupDir honors XDG_DATA_HOME and falls back to ~/.local/share.
// Manifests must live outside the trees they record, so a stable home
// directory location is the default.
func defaultBackupDir() string {
	if dir := os.Getenv("XDG_DATA_HOME"); dir != "" {
		return filepath.Join(dir, appName, "backups")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), appName, "backups")
	}
	return filepath.Join(home, ".local", "share", appName, "backups")
}
