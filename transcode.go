package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
)

// one transcode at a time, independent of extractions.
var transcodeSupervisor = &Supervisor{}

// TranscodeJob describes one ffmpeg re-encode.
type TranscodeJob struct {
	Input    string
	Output   string
	Settings TranscodeSettings
}

// ffmpegArgs builds the argument list for one job. Audio is copied verbatim;
// only the video stream is re-encoded. Progress lines go to progressFile so
// the supervisor can poll them.
func (j TranscodeJob) ffmpegArgs(progressFile string) []string {
	return []string{
		"-hide_banner",
		"-nostdin",
		"-y",
		"-i", j.Input,
		"-c:v", j.Settings.Codec,
		"-preset", j.Settings.Preset,
		"-crf", strconv.Itoa(j.Settings.CRF),
		"-c:a", "copy",
		"-progress", progressFile,
		"-nostats",
		"-loglevel", "error",
		j.Output,
	}
}

// parseFFmpegProgress turns the latest -progress block into an event.
// ffmpeg appends key=value blocks to the file, so the last occurrence of
// each key wins. out_time_ms is microseconds despite the name.
func parseFFmpegProgress(raw string, total time.Duration) (ProgressEvent, bool) {
	var (
		outTime time.Duration
		speed   string
		seen    bool
	)
	for _, line := range strings.Split(raw, "\n") {
		key, val, ok := strings.Cut(strings.TrimSpace(line), "=")
		if !ok {
			continue
		}
		switch key {
		case "out_time_ms":
			us, err := strconv.ParseInt(val, 10, 64)
			if err != nil || us < 0 {
				continue
			}
			outTime = time.Duration(us) * time.Microsecond
			seen = true
		case "speed":
			speed = strings.TrimSpace(val)
		case "progress":
			if val == "end" {
				return ProgressEvent{Percent: 100, Message: "finishing"}, true
			}
		}
	}
	if !seen || total <= 0 {
		return ProgressEvent{}, false
	}
	pct := int(outTime * 100 / total)
	if pct > 99 {
		pct = 99
	}
	msg := outTime.Round(time.Second).String()
	if speed != "" {
		msg += " at " + speed
	}
	return ProgressEvent{Percent: pct, Message: msg}, true
}

// Transcode re-encodes job.Input into job.Output under the transcode
// supervisor. Cancelling ctx kills ffmpeg and deletes the partial output.
func Transcode(ctx context.Context, job TranscodeJob, events chan<- ProgressEvent) error {
	bin, err := exec.LookPath("ffmpeg")
	if err != nil {
		return fmt.Errorf("ffmpeg not found in PATH")
	}
	if job.Input == job.Output {
		return fmt.Errorf("output would overwrite input %s", job.Input)
	}

	total, err := ProbeDuration(ctx, job.Input)
	if err != nil {
		log.WithError(err).Warn("could not probe input duration, progress will be coarse")
		total = 0
	}

	progress, err := os.CreateTemp("", "unixcmd-progress-*.txt")
	if err != nil {
		return err
	}
	progress.Close()
	defer os.Remove(progress.Name())

	cmd := exec.CommandContext(ctx, bin, job.ffmpegArgs(progress.Name())...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	rs := RunSpec{
		Command:      cmd,
		ProgressFile: progress.Name(),
		ParseEvent: func(raw string) (ProgressEvent, bool) {
			return parseFFmpegProgress(raw, total)
		},
		PartialPaths: partialOutputs(job.Output),
		Events:       events,
	}
	if err := transcodeSupervisor.Run(ctx, rs); err != nil {
		if msg := lastLine(stderr.String()); msg != "" {
			return fmt.Errorf("%w: %s", err, msg)
		}
		return err
	}
	return nil
}

// partialOutputs lists what a failed or cancelled run is allowed to delete.
// A file that already sat at the output path was not produced by this run
// (ffmpeg -y overwrites it in place), so it is left alone.
func partialOutputs(output string) []string {
	if _, err := os.Lstat(output); err == nil {
		return nil
	}
	return []string{output}
}

// lastLine returns the final non-empty line of tool output, which for ffmpeg
// and the extractors is where the actual complaint lives.
func lastLine(s string) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		if l := strings.TrimSpace(lines[i]); l != "" {
			return l
		}
	}
	return ""
}
