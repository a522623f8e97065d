package domain

// RunStatus tracks each pipeline stage for a single transcription run.
type RunStatus string

const (
	RunStatusIdle         RunStatus = "idle"
	RunStatusPlanning     RunStatus = "planning"
	RunStatusTranscribing RunStatus = "transcribing"
	RunStatusExporting    RunStatus = "exporting"
	RunStatusDone         RunStatus = "done"
	RunStatusFailed       RunStatus = "failed"
	RunStatusCancelled    RunStatus = "cancelled"
)

// SegmentCounts aggregates terminal segment outcomes for one run.
type SegmentCounts struct {
	Total       int `json:"total"`
	Transcribed int `json:"transcribed"`
	Skipped     int `json:"skipped"`
	Failed      int `json:"failed"`
}

// Run stores the current run identity, lifecycle status, and progress.
type Run struct {
	ID                string    `json:"id"`
	MediaPath         string    `json:"mediaPath"`
	Status            RunStatus `json:"status"`
	PlannedSegments   int       `json:"plannedSegments"`
	CompletedSegments int       `json:"completedSegments"`
}

// SegmentingSettings controls how media is partitioned for parallel work.
type SegmentingSettings struct {
	SparseLengthSeconds   float64 `json:"sparseLengthSeconds"`
	ModerateLengthSeconds float64 `json:"moderateLengthSeconds"`
	DenseLengthSeconds    float64 `json:"denseLengthSeconds"`
	SparseRatio           float64 `json:"sparseRatio"`
	ModerateRatio         float64 `json:"moderateRatio"`
	SampleWindowSeconds   float64 `json:"sampleWindowSeconds"`
}

// SilenceSettings controls silence detection and the skip policy.
type SilenceSettings struct {
	SkipRatio      float64 `json:"skipRatio"`
	NoiseDB        float64 `json:"noiseDb"`
	MinSpanSeconds float64 `json:"minSpanSeconds"`
}

// Settings contains user-selectable runtime configuration.
type Settings struct {
	APIBaseURL               string             `json:"apiBaseUrl"`
	APIKey                   string             `json:"apiKey"`
	Model                    string             `json:"model"`
	OutputDir                string             `json:"outputDir"`
	Workers                  int                `json:"workers"`
	TranscribeTimeoutSeconds float64            `json:"transcribeTimeoutSeconds"`
	RedisAddr                string             `json:"redisAddr,omitempty"`
	Segmenting               SegmentingSettings `json:"segmenting"`
	Silence                  SilenceSettings    `json:"silence"`
}
