package main

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/dhowden/tag"
	"github.com/go-audio/wav"
	log "github.com/sirupsen/logrus"
	"github.com/tidwall/gjson"
)

// MediaInfo is what the probe learned about one file. Fields stay zero when
// the probe could not establish them.
type MediaInfo struct {
	Path    string
	Kind    FileKind
	Size    int64
	ModTime time.Time

	Format     string
	Duration   time.Duration
	Bitrate    int64
	Width      int64
	Height     int64
	VideoCodec string
	AudioCodec string
	SampleRate int
	Channels   int

	Title  string
	Artist string
	Album  string
	Genre  string
	Year   int
}

// ProbeFile inspects path: stat always, embedded tags and WAV headers
// in-process for audio, ffprobe for video. Probe failures degrade to the
// stat-level info rather than failing the file.
func ProbeFile(ctx context.Context, path string) (*MediaInfo, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	mi := &MediaInfo{
		Path:    path,
		Kind:    KindOf(path),
		Size:    info.Size(),
		ModTime: info.ModTime(),
		Format:  strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), "."),
	}
	switch mi.Kind {
	case KindAudio:
		probeAudio(path, mi)
	case KindVideo:
		probeVideo(ctx, path, mi)
	}
	return mi, nil
}

func probeAudio(path string, mi *MediaInfo) {
	f, err := os.Open(path)
	if err != nil {
		log.WithError(err).WithField("path", path).Warn("cannot open for tag probe")
		return
	}
	defer f.Close()

	if m, err := tag.ReadFrom(f); err == nil {
		mi.Title = m.Title()
		mi.Artist = m.Artist()
		mi.Album = m.Album()
		mi.Genre = m.Genre()
		mi.Year = m.Year()
		if format := m.Format(); format != "" {
			mi.Format = string(format)
		}
	}

	if !strings.EqualFold(filepath.Ext(path), ".wav") {
		return
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return
	}
	decoder := wav.NewDecoder(f)
	if !decoder.IsValidFile() {
		return
	}
	if format := decoder.Format(); format != nil {
		mi.SampleRate = int(format.SampleRate)
		mi.Channels = int(format.NumChannels)
	}
	if duration, err := decoder.Duration(); err == nil && duration > 0 {
		mi.Duration = duration
	}
}

func probeVideo(ctx context.Context, path string, mi *MediaInfo) {
	ffprobe, err := exec.LookPath("ffprobe")
	if err != nil {
		log.Warn("ffprobe not found in PATH, video details unavailable")
		return
	}
	cmd := exec.CommandContext(ctx, ffprobe,
		"-v", "error",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		path)
	out, err := cmd.Output()
	if err != nil {
		log.WithError(err).WithField("path", path).Warn("ffprobe failed")
		return
	}
	applyProbeJSON(out, mi)
}

// applyProbeJSON fills mi from ffprobe's JSON document. ffprobe reports
// numbers like duration and sample_rate as strings; gjson coerces them.
func applyProbeJSON(out []byte, mi *MediaInfo) {
	doc := gjson.ParseBytes(out)

	if d := doc.Get("format.duration").Float(); d > 0 {
		mi.Duration = time.Duration(d * float64(time.Second))
	}
	mi.Bitrate = doc.Get("format.bit_rate").Int()
	if name := doc.Get("format.format_name").String(); name != "" {
		mi.Format = name
	}
	if title := doc.Get("format.tags.title").String(); title != "" {
		mi.Title = title
	}

	if v := doc.Get(`streams.#(codec_type=="video")`); v.Exists() {
		mi.Width = v.Get("width").Int()
		mi.Height = v.Get("height").Int()
		mi.VideoCodec = v.Get("codec_name").String()
	}
	if a := doc.Get(`streams.#(codec_type=="audio")`); a.Exists() {
		mi.AudioCodec = a.Get("codec_name").String()
		mi.SampleRate = int(a.Get("sample_rate").Int())
		mi.Channels = int(a.Get("channels").Int())
	}
}

// ProbeDuration asks ffprobe for the container duration only. Transcoding
// needs it to turn elapsed time into a percentage.
func ProbeDuration(ctx context.Context, path string) (time.Duration, error) {
	ffprobe, err := exec.LookPath("ffprobe")
	if err != nil {
		return 0, fmt.Errorf("ffprobe not found in PATH")
	}
	cmd := exec.CommandContext(ctx, ffprobe,
		"-v", "error",
		"-print_format", "json",
		"-show_format",
		path)
	out, err := cmd.Output()
	if err != nil {
		return 0, fmt.Errorf("ffprobe %s: %w", filepath.Base(path), err)
	}
	d := gjson.GetBytes(out, "format.duration").Float()
	if d <= 0 {
		return 0, fmt.Errorf("no duration reported for %s", filepath.Base(path))
	}
	return time.Duration(d * float64(time.Second)), nil
}

// ProbeTree probes every audio and video file under root with a small
// worker pool and returns the results sorted by path.
func ProbeTree(ctx context.Context, root string, workers int) ([]*MediaInfo, error) {
	var paths []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
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
		switch KindOf(path) {
		case KindAudio, KindVideo:
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if len(paths) == 0 {
		return nil, nil
	}
	if workers < 1 {
		workers = 1
	}
	if workers > len(paths) {
		workers = len(paths)
	}

	jobs := make(chan string, len(paths))
	results := make(chan *MediaInfo, len(paths))

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for path := range jobs {
				mi, err := ProbeFile(ctx, path)
				if err != nil {
					log.WithError(err).WithField("path", path).Warn("probe failed")
					continue
				}
				results <- mi
			}
		}()
	}
	for _, p := range paths {
		jobs <- p
	}
	close(jobs)
	wg.Wait()
	close(results)

	infos := make([]*MediaInfo, 0, len(paths))
	for mi := range results {
		infos = append(infos, mi)
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Path < infos[j].Path })
	return infos, nil
}
