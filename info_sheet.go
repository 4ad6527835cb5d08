package main

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
)

// RenderInfoSheet produces the sidecar text for one probed file, in the
// bracketed-section layout the suite's other sidecars use. Empty fields are
// left out rather than printed blank.
func RenderInfoSheet(mi *MediaInfo, md5sum string) string {
	var b strings.Builder

	title := mi.Title
	if title == "" {
		title = strings.TrimSuffix(filepath.Base(mi.Path), filepath.Ext(mi.Path))
	}
	fmt.Fprintf(&b, "[title]\n%s\n\n", title)

	b.WriteString("[details]\n")
	fmt.Fprintf(&b, "file: %s\n", filepath.Base(mi.Path))
	fmt.Fprintf(&b, "kind: %s\n", mi.Kind)
	if mi.Format != "" {
		fmt.Fprintf(&b, "format: %s\n", mi.Format)
	}
	fmt.Fprintf(&b, "size: %s\n", humanize.Bytes(uint64(mi.Size)))
	fmt.Fprintf(&b, "modified: %s\n", mi.ModTime.Format(time.RFC3339))
	if mi.Duration > 0 {
		fmt.Fprintf(&b, "duration: %s\n", mi.Duration.Round(time.Second))
	}
	if mi.Width > 0 && mi.Height > 0 {
		fmt.Fprintf(&b, "resolution: %dx%d\n", mi.Width, mi.Height)
	}
	if mi.VideoCodec != "" {
		fmt.Fprintf(&b, "video codec: %s\n", mi.VideoCodec)
	}
	if mi.AudioCodec != "" {
		fmt.Fprintf(&b, "audio codec: %s\n", mi.AudioCodec)
	}
	if mi.SampleRate > 0 {
		fmt.Fprintf(&b, "sample rate: %d Hz\n", mi.SampleRate)
	}
	if mi.Channels > 0 {
		fmt.Fprintf(&b, "channels: %d\n", mi.Channels)
	}
	if mi.Bitrate > 0 {
		fmt.Fprintf(&b, "bitrate: %d kb/s\n", mi.Bitrate/1000)
	}

	var tags []string
	if mi.Artist != "" {
		tags = append(tags, "artist: "+mi.Artist)
	}
	if mi.Album != "" {
		tags = append(tags, "album: "+mi.Album)
	}
	if mi.Genre != "" {
		tags = append(tags, "genre: "+mi.Genre)
	}
	if mi.Year != 0 {
		tags = append(tags, fmt.Sprintf("year: %d", mi.Year))
	}
	if len(tags) > 0 {
		fmt.Fprintf(&b, "\n[tags]\n%s\n", strings.Join(tags, "\n"))
	}

	if md5sum != "" {
		fmt.Fprintf(&b, "\n[checksum]\nmd5: %s\n", md5sum)
	}
	return b.String()
}

// WriteInfoSheet writes the sidecar next to the media file as
// "<name>.info.txt" and returns the sidecar path. The MD5 hash is optional
// because it reads the whole file.
func WriteInfoSheet(mi *MediaInfo, withMD5 bool) (string, error) {
	var sum string
	if withMD5 {
		s, err := md5File(mi.Path)
		if err != nil {
			return "", err
		}
		sum = s
	}
	sidecar := mi.Path + ".info.txt"
	if err := os.WriteFile(sidecar, []byte(RenderInfoSheet(mi, sum)), 0o644); err != nil {
		return "", err
	}
	return sidecar, nil
}

// md5File streams path through MD5. The sidecar consumers expect MD5, not
// the SHA-256 the backup manifests carry.
func md5File(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := md5.New()
	buf := make([]byte, 64*1024)
	if _, err := io.CopyBuffer(h, f, buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
