package media

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
)

// commandResult is an internal process execution response.
type commandResult struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// commandRunner abstracts process execution for testability.
type commandRunner interface {
	Run(ctx context.Context, name string, args ...string) (commandResult, error)
}

// execRunner executes commands via os/exec.
type execRunner struct{}

// Run executes one command and captures stdout/stderr and exit code.
func (r *execRunner) Run(ctx context.Context, name string, args ...string) (commandResult, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var stdout bytes.Buffer
	var stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	result := commandResult{
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		ExitCode: 0,
	}
	if err != nil {
		result.ExitCode = -1
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			result.ExitCode = exitErr.ExitCode()
		}
		return result, err
	}

	return result, nil
}

// Toolbox provides duration probing, silence measurement, and segment
// extraction over local media files via ffmpeg and ffprobe.
type Toolbox struct {
	ffmpegPath  string
	ffprobePath string
	runner      commandRunner
}

// NewToolbox constructs the production toolbox using tools on PATH.
func NewToolbox() *Toolbox {
	return &Toolbox{
		ffmpegPath:  "ffmpeg",
		ffprobePath: "ffprobe",
		runner:      &execRunner{},
	}
}

// ProbeDuration returns the total duration of a media file in seconds.
// Callers treat any error as "duration unknown", never as fatal.
func (t *Toolbox) ProbeDuration(ctx context.Context, path string) (float64, error) {
	result, err := t.runner.Run(ctx, t.ffprobePath,
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=nokey=1:noprint_wrappers=1",
		path,
	)
	if err != nil {
		return 0, fmt.Errorf("ffprobe duration: %w", err)
	}

	value := strings.TrimSpace(result.Stdout)
	if value == "" || value == "N/A" {
		return 0, fmt.Errorf("ffprobe duration missing for %s", path)
	}

	duration, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, fmt.Errorf("ffprobe duration %q: %w", value, err)
	}
	if duration <= 0 {
		return 0, fmt.Errorf("ffprobe duration %v is not positive", duration)
	}
	return duration, nil
}

// SilenceRatio reports the fraction of the file's duration that stays below
// noiseDB for at least minSpan seconds. Callers treat errors as "unknown".
func (t *Toolbox) SilenceRatio(ctx context.Context, path string, noiseDB, minSpan float64) (float64, error) {
	total, err := t.ProbeDuration(ctx, path)
	if err != nil {
		return 0, err
	}

	result, runErr := t.runner.Run(ctx, t.ffmpegPath,
		"-hide_banner",
		"-nostdin",
		"-i", path,
		"-af", fmt.Sprintf("silencedetect=noise=%gdB:d=%g", noiseDB, minSpan),
		"-f", "null",
		"-",
	)
	if runErr != nil {
		return 0, fmt.Errorf("ffmpeg silencedetect: %w", runErr)
	}

	silent := sumSilence(result.Stderr, total)
	ratio := silent / total
	if ratio < 0 {
		ratio = 0
	}
	if ratio > 1 {
		ratio = 1
	}
	return ratio, nil
}

// Extract materializes one time range of src as a mono 16 kHz PCM WAV at
// dest. A non-positive duration converts the whole file instead.
func (t *Toolbox) Extract(ctx context.Context, src, dest string, start, duration float64) error {
	args := []string{
		"-hide_banner",
		"-nostdin",
		"-y",
	}
	if duration > 0 {
		args = append(args,
			"-ss", strconv.FormatFloat(start, 'f', -1, 64),
			"-t", strconv.FormatFloat(duration, 'f', -1, 64),
		)
	}
	args = append(args,
		"-i", src,
		"-vn",
		"-ac", "1",
		"-ar", "16000",
		"-c:a", "pcm_s16le",
		dest,
	)

	result, err := t.runner.Run(ctx, t.ffmpegPath, args...)
	if err != nil {
		return fmt.Errorf("ffmpeg extract [%g +%g]: %w: %s", start, duration, err, strings.TrimSpace(result.Stderr))
	}
	return nil
}

// sumSilence totals silence_duration values reported by silencedetect.
// A trailing silence_start without a matching end counts until total.
func sumSilence(stderr string, total float64) float64 {
	var silent float64
	openStart := -1.0

	for _, line := range strings.Split(stderr, "\n") {
		if idx := strings.Index(line, "silence_duration:"); idx >= 0 {
			value := firstFloatToken(line[idx+len("silence_duration:"):])
			if value > 0 {
				silent += value
			}
			openStart = -1
			continue
		}
		if idx := strings.Index(line, "silence_start:"); idx >= 0 {
			openStart = firstFloatToken(line[idx+len("silence_start:"):])
		}
	}

	if openStart >= 0 && openStart < total {
		silent += total - openStart
	}
	return silent
}

// firstFloatToken parses the first whitespace-delimited float in s.
func firstFloatToken(s string) float64 {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return -1
	}
	value, err := strconv.ParseFloat(fields[0], 64)
	if err != nil {
		return -1
	}
	return value
}

// NewToolboxForTests constructs a toolbox with injectable dependencies.
func NewToolboxForTests(ffmpegPath, ffprobePath string, runner commandRunner) *Toolbox {
	return &Toolbox{
		ffmpegPath:  ffmpegPath,
		ffprobePath: ffprobePath,
		runner:      runner,
	}
}
