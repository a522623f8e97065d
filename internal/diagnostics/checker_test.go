package diagnostics

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"longform-transcriber/internal/domain"
)

// TestCheckerRunAllPass validates happy-path diagnostics report.
func TestCheckerRunAllPass(t *testing.T) {
	root := t.TempDir()
	checker := NewCheckerForTests(
		func(name string) (string, error) { return "/usr/local/bin/" + name, nil },
		os.MkdirAll,
		os.CreateTemp,
		os.Remove,
		func(string) error { return nil },
	)

	report := checker.Run(domain.Settings{
		APIBaseURL: "https://generativelanguage.googleapis.com",
		APIKey:     "test-key",
		Model:      "gemini-2.0-flash-exp",
		OutputDir:  filepath.Join(root, "output"),
		RedisAddr:  "localhost:6379",
	})

	if report.HasFailures {
		t.Fatalf("expected no failures, got %+v", report.Items)
	}
	assertStatusByID(t, report, "redis_cache", domain.DiagnosticStatusPass)
}

// TestCheckerRunMissingToolsAndConfig validates failure reporting.
func TestCheckerRunMissingToolsAndConfig(t *testing.T) {
	checker := NewCheckerForTests(
		func(string) (string, error) { return "", errors.New("not found") },
		os.MkdirAll,
		os.CreateTemp,
		os.Remove,
		func(string) error { return nil },
	)

	report := checker.Run(domain.Settings{
		APIBaseURL: "https://generativelanguage.googleapis.com",
		APIKey:     "",
		OutputDir:  "",
	})

	if !report.HasFailures {
		t.Fatal("expected failures")
	}

	assertStatusByID(t, report, "tool_ffmpeg", domain.DiagnosticStatusFail)
	assertStatusByID(t, report, "tool_ffprobe", domain.DiagnosticStatusFail)
	assertStatusByID(t, report, "remote_api", domain.DiagnosticStatusFail)
	assertStatusByID(t, report, "output_dir", domain.DiagnosticStatusFail)
}

// TestCheckerRunInvalidBaseURL validates the remote API URL check.
func TestCheckerRunInvalidBaseURL(t *testing.T) {
	checker := NewCheckerForTests(
		func(name string) (string, error) { return "/usr/local/bin/" + name, nil },
		os.MkdirAll,
		os.CreateTemp,
		os.Remove,
		func(string) error { return nil },
	)

	report := checker.Run(domain.Settings{
		APIBaseURL: "not a url",
		APIKey:     "test-key",
		Model:      "gemini-2.0-flash-exp",
		OutputDir:  t.TempDir(),
	})

	assertStatusByID(t, report, "remote_api", domain.DiagnosticStatusFail)
}

// TestCheckerRunRedisOptional validates cache checks never fail the report.
func TestCheckerRunRedisOptional(t *testing.T) {
	checker := NewCheckerForTests(
		func(name string) (string, error) { return "/usr/local/bin/" + name, nil },
		os.MkdirAll,
		os.CreateTemp,
		os.Remove,
		func(string) error { return errors.New("connection refused") },
	)

	settings := domain.Settings{
		APIBaseURL: "https://generativelanguage.googleapis.com",
		APIKey:     "test-key",
		Model:      "gemini-2.0-flash-exp",
		OutputDir:  t.TempDir(),
	}

	report := checker.Run(settings)
	assertStatusByID(t, report, "redis_cache", domain.DiagnosticStatusWarn)
	if report.HasFailures {
		t.Fatal("unconfigured cache should not fail the report")
	}

	settings.RedisAddr = "localhost:6379"
	report = checker.Run(settings)
	assertStatusByID(t, report, "redis_cache", domain.DiagnosticStatusWarn)
	if report.HasFailures {
		t.Fatal("unreachable cache should not fail the report")
	}
}

// assertStatusByID checks status for one diagnostic item by ID.
func assertStatusByID(t *testing.T, report domain.DiagnosticReport, id string, want domain.DiagnosticStatus) {
	t.Helper()
	for _, item := range report.Items {
		if item.ID == id {
			if item.Status != want {
				t.Fatalf("item %s: got %s, want %s", id, item.Status, want)
			}
			return
		}
	}
	t.Fatalf("diagnostic item not found: %s", id)
}
