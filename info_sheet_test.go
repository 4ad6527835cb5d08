package main

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestRenderInfoSheetSections(t *testing.T) {
	mi := &MediaInfo{
		Path:       "/media/shows/Show S01E01.mkv",
		Kind:       KindVideo,
		Size:       1_500_000_000,
		ModTime:    time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC),
		Format:     "matroska,webm",
		Duration:   42*time.Minute + 12*time.Second,
		Bitrate:    3_215_000,
		Width:      1920,
		Height:     1080,
		VideoCodec: "h264",
		AudioCodec: "aac",
	}
	sheet := RenderInfoSheet(mi, "")

	require.True(t, strings.HasPrefix(sheet, "[title]\nShow S01E01\n"))
	require.Contains(t, sheet, "[details]\n")
	require.Contains(t, sheet, "file: Show S01E01.mkv\n")
	require.Contains(t, sheet, "size: 1.5 GB\n")
	require.Contains(t, sheet, "duration: 42m12s\n")
	require.Contains(t, sheet, "resolution: 1920x1080\n")
	require.Contains(t, sheet, "video codec: h264\n")
	require.Contains(t, sheet, "audio codec: aac\n")
	require.Contains(t, sheet, "bitrate: 3215 kb/s\n")
	require.NotContains(t, sheet, "[tags]")
	require.NotContains(t, sheet, "[checksum]")
}

func TestRenderInfoSheetTagBlock(t *testing.T) {
	mi := &MediaInfo{
		Path:    "/music/song.mp3",
		Kind:    KindAudio,
		Size:    9_000_000,
		ModTime: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
		Title:   "Bicycles",
		Artist:  "Night Transit",
		Album:   "Crosstown",
		Genre:   "Electronic",
		Year:    2021,
	}
	sheet := RenderInfoSheet(mi, "0123456789abcdef0123456789abcdef")

	require.Contains(t, sheet, "[title]\nBicycles\n")
	require.Contains(t, sheet, "[tags]\nartist: Night Transit\nalbum: Crosstown\ngenre: Electronic\nyear: 2021\n")
	require.Contains(t, sheet, "[checksum]\nmd5: 0123456789abcdef0123456789abcdef\n")
}

func TestWriteInfoSheetSidecar(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tone.wav")
	writeWAV(t, path, 8000, 1, 1000)

	mi, err := ProbeFile(context.Background(), path)
	require.NoError(t, err)

	sidecar, err := WriteInfoSheet(mi, true)
	require.NoError(t, err)
	require.Equal(t, path+".info.txt", sidecar)

	data, err := os.ReadFile(sidecar)
	require.NoError(t, err)
	require.Contains(t, string(data), "sample rate: 8000 Hz")
	require.Contains(t, string(data), "md5: ")
}
