package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestParseFFmpegProgress(t *testing.T) {
	raw := "frame=600\nout_time_ms=25000000\nspeed=2.5x\nprogress=continue\n"
	ev, ok := parseFFmpegProgress(raw, 100*time.Second)
	require.True(t, ok)
	require.Equal(t, 25, ev.Percent)
	require.Contains(t, ev.Message, "25s")
	require.Contains(t, ev.Message, "2.5x")
}

func TestParseFFmpegProgressEnd(t *testing.T) {
	raw := "out_time_ms=99000000\nspeed=1.0x\nprogress=end\n"
	ev, ok := parseFFmpegProgress(raw, 100*time.Second)
	require.True(t, ok)
	require.Equal(t, 100, ev.Percent)
}

func TestParseFFmpegProgressNoDuration(t *testing.T) {
	_, ok := parseFFmpegProgress("out_time_ms=25000000\nprogress=continue\n", 0)
	require.False(t, ok)

	_, ok = parseFFmpegProgress("junk\nwithout=fields\n", 100*time.Second)
	require.False(t, ok)
}

func TestParseFFmpegProgressKeepsLatestBlock(t *testing.T) {
	raw := "out_time_ms=10000000\nprogress=continue\nout_time_ms=90000000\nspeed=3.1x\nprogress=continue\n"
	ev, ok := parseFFmpegProgress(raw, 100*time.Second)
	require.True(t, ok)
	require.Equal(t, 90, ev.Percent)

	// never reports done before ffmpeg says so
	ev, ok = parseFFmpegProgress("out_time_ms=99999999999\nprogress=continue\n", 10*time.Second)
	require.True(t, ok)
	require.Equal(t, 99, ev.Percent)
}

func TestFFmpegArgsShape(t *testing.T) {
	job := TranscodeJob{
		Input:    "/in/movie.avi",
		Output:   "/out/movie.mkv",
		Settings: TranscodeSettings{Codec: "libx265", Preset: "slow", CRF: 20},
	}
	want := []string{
		"-hide_banner", "-nostdin", "-y",
		"-i", "/in/movie.avi",
		"-c:v", "libx265",
		"-preset", "slow",
		"-crf", "20",
		"-c:a", "copy",
		"-progress", "/tmp/p.txt",
		"-nostats",
		"-loglevel", "error",
		"/out/movie.mkv",
	}
	require.Equal(t, want, job.ffmpegArgs("/tmp/p.txt"))
}

func TestPartialOutputsSparesExistingFile(t *testing.T) {
	dir := t.TempDir()
	fresh := filepath.Join(dir, "new.mkv")
	require.Equal(t, []string{fresh}, partialOutputs(fresh))

	existing := filepath.Join(dir, "old.mkv")
	require.NoError(t, os.WriteFile(existing, []byte("previous encode"), 0o644))
	require.Nil(t, partialOutputs(existing))
}

func TestLastLine(t *testing.T) {
	require.Equal(t, "boom", lastLine("warning\nboom\n\n"))
	require.Equal(t, "", lastLine("  \n\n"))
}
