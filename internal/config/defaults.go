package config

import (
	"os"
	"path/filepath"

	"longform-transcriber/internal/domain"
)

// DefaultSettings returns baseline runtime configuration for first launch.
// The density thresholds and the silence skip ratio are heuristic defaults,
// not validated policy; tune them per deployment.
func DefaultSettings() domain.Settings {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		homeDir = "."
	}

	return domain.Settings{
		APIBaseURL:               "https://generativelanguage.googleapis.com",
		Model:                    "gemini-2.0-flash-exp",
		OutputDir:                filepath.Join(homeDir, "Documents", "Transcripts"),
		Workers:                  4,
		TranscribeTimeoutSeconds: 600,
		Segmenting: domain.SegmentingSettings{
			SparseLengthSeconds:   600,
			ModerateLengthSeconds: 300,
			DenseLengthSeconds:    180,
			SparseRatio:           0.60,
			ModerateRatio:         0.30,
			SampleWindowSeconds:   60,
		},
		Silence: domain.SilenceSettings{
			SkipRatio:      0.80,
			NoiseDB:        -35,
			MinSpanSeconds: 2.0,
		},
	}
}
