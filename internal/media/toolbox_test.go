package media

import (
	"context"
	"errors"
	"strings"
	"testing"
)

// fakeRunner simulates command execution order and outcomes.
type fakeRunner struct {
	run func(ctx context.Context, name string, args ...string) (commandResult, error)
}

// Run delegates to injected behavior.
func (f *fakeRunner) Run(ctx context.Context, name string, args ...string) (commandResult, error) {
	if f.run == nil {
		return commandResult{}, nil
	}
	return f.run(ctx, name, args...)
}

// TestProbeDurationParsesFloat checks the good ffprobe path.
func TestProbeDurationParsesFloat(t *testing.T) {
	runner := &fakeRunner{
		run: func(ctx context.Context, name string, args ...string) (commandResult, error) {
			if name != "ffprobe" {
				t.Fatalf("command = %q, want ffprobe", name)
			}
			return commandResult{Stdout: "1234.567\n"}, nil
		},
	}

	tb := NewToolboxForTests("ffmpeg", "ffprobe", runner)
	got, err := tb.ProbeDuration(context.Background(), "/media/talk.mp4")
	if err != nil {
		t.Fatalf("ProbeDuration() error = %v", err)
	}
	if got != 1234.567 {
		t.Fatalf("duration = %v, want 1234.567", got)
	}
}

// TestProbeDurationRejectsMissingValue checks empty and N/A outputs.
func TestProbeDurationRejectsMissingValue(t *testing.T) {
	for _, stdout := range []string{"", "N/A\n", "abc\n", "-3\n"} {
		runner := &fakeRunner{
			run: func(ctx context.Context, name string, args ...string) (commandResult, error) {
				return commandResult{Stdout: stdout}, nil
			},
		}
		tb := NewToolboxForTests("ffmpeg", "ffprobe", runner)
		if _, err := tb.ProbeDuration(context.Background(), "/m.mp4"); err == nil {
			t.Fatalf("expected error for stdout %q", stdout)
		}
	}
}

// TestSilenceRatioSumsDetectedSpans checks silencedetect stderr parsing.
func TestSilenceRatioSumsDetectedSpans(t *testing.T) {
	stderr := strings.Join([]string{
		"[silencedetect @ 0x1] silence_start: 0",
		"[silencedetect @ 0x1] silence_end: 30 | silence_duration: 30",
		"[silencedetect @ 0x1] silence_start: 50",
		"[silencedetect @ 0x1] silence_end: 70 | silence_duration: 20",
	}, "\n")

	runner := &fakeRunner{
		run: func(ctx context.Context, name string, args ...string) (commandResult, error) {
			if name == "ffprobe" {
				return commandResult{Stdout: "100"}, nil
			}
			if !hasArg(args, "-af") {
				t.Fatalf("expected -af filter in args: %v", args)
			}
			if got := argValue(args, "-af"); got != "silencedetect=noise=-35dB:d=2" {
				t.Fatalf("filter = %q", got)
			}
			return commandResult{Stderr: stderr}, nil
		},
	}

	tb := NewToolboxForTests("ffmpeg", "ffprobe", runner)
	ratio, err := tb.SilenceRatio(context.Background(), "/seg.wav", -35, 2)
	if err != nil {
		t.Fatalf("SilenceRatio() error = %v", err)
	}
	if ratio != 0.5 {
		t.Fatalf("ratio = %v, want 0.5", ratio)
	}
}

// TestSilenceRatioCountsTrailingOpenSilence checks files ending in silence.
func TestSilenceRatioCountsTrailingOpenSilence(t *testing.T) {
	runner := &fakeRunner{
		run: func(ctx context.Context, name string, args ...string) (commandResult, error) {
			if name == "ffprobe" {
				return commandResult{Stdout: "100"}, nil
			}
			return commandResult{Stderr: "[silencedetect @ 0x1] silence_start: 90\n"}, nil
		},
	}

	tb := NewToolboxForTests("ffmpeg", "ffprobe", runner)
	ratio, err := tb.SilenceRatio(context.Background(), "/seg.wav", -35, 2)
	if err != nil {
		t.Fatalf("SilenceRatio() error = %v", err)
	}
	if ratio != 0.1 {
		t.Fatalf("ratio = %v, want 0.1", ratio)
	}
}

// TestSilenceRatioPropagatesProbeFailure checks the unknown path.
func TestSilenceRatioPropagatesProbeFailure(t *testing.T) {
	runner := &fakeRunner{
		run: func(ctx context.Context, name string, args ...string) (commandResult, error) {
			return commandResult{ExitCode: 1}, errors.New("exit status 1")
		},
	}

	tb := NewToolboxForTests("ffmpeg", "ffprobe", runner)
	if _, err := tb.SilenceRatio(context.Background(), "/seg.wav", -35, 2); err == nil {
		t.Fatal("expected error")
	}
}

// TestExtractBoundedSegmentArgs verifies seek and duration flags.
func TestExtractBoundedSegmentArgs(t *testing.T) {
	var captured []string
	runner := &fakeRunner{
		run: func(ctx context.Context, name string, args ...string) (commandResult, error) {
			captured = append([]string{}, args...)
			return commandResult{}, nil
		},
	}

	tb := NewToolboxForTests("ffmpeg", "ffprobe", runner)
	if err := tb.Extract(context.Background(), "/in.mp4", "/tmp/seg.wav", 600, 300); err != nil {
		t.Fatalf("Extract() error = %v", err)
	}

	if argValue(captured, "-ss") != "600" {
		t.Fatalf("-ss = %q, want 600", argValue(captured, "-ss"))
	}
	if argValue(captured, "-t") != "300" {
		t.Fatalf("-t = %q, want 300", argValue(captured, "-t"))
	}
	if argValue(captured, "-i") != "/in.mp4" {
		t.Fatalf("-i = %q", argValue(captured, "-i"))
	}
	if captured[len(captured)-1] != "/tmp/seg.wav" {
		t.Fatalf("dest = %q", captured[len(captured)-1])
	}
	if argValue(captured, "-ar") != "16000" {
		t.Fatalf("-ar = %q, want 16000", argValue(captured, "-ar"))
	}
}

// TestExtractWholeFileOmitsSeekFlags verifies unbounded conversion.
func TestExtractWholeFileOmitsSeekFlags(t *testing.T) {
	var captured []string
	runner := &fakeRunner{
		run: func(ctx context.Context, name string, args ...string) (commandResult, error) {
			captured = append([]string{}, args...)
			return commandResult{}, nil
		},
	}

	tb := NewToolboxForTests("ffmpeg", "ffprobe", runner)
	if err := tb.Extract(context.Background(), "/in.mp4", "/tmp/all.wav", 0, 0); err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if hasArg(captured, "-ss") || hasArg(captured, "-t") {
		t.Fatalf("unbounded extract should not seek, args=%v", captured)
	}
}

// TestExtractWrapsCommandFailure verifies stderr context in errors.
func TestExtractWrapsCommandFailure(t *testing.T) {
	runner := &fakeRunner{
		run: func(ctx context.Context, name string, args ...string) (commandResult, error) {
			return commandResult{Stderr: "boom", ExitCode: 1}, errors.New("exit status 1")
		},
	}

	tb := NewToolboxForTests("ffmpeg", "ffprobe", runner)
	err := tb.Extract(context.Background(), "/in.mp4", "/tmp/seg.wav", 0, 10)
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "boom") {
		t.Fatalf("error should carry stderr, got %v", err)
	}
}

// argValue returns value for key-style CLI args.
func argValue(args []string, key string) string {
	for i := 0; i < len(args)-1; i++ {
		if args[i] == key {
			return args[i+1]
		}
	}
	return ""
}

// hasArg reports whether args include the target flag.
func hasArg(args []string, key string) bool {
	for _, arg := range args {
		if arg == key {
			return true
		}
	}
	return false
}
