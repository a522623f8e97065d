package transcribe

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"longform-transcriber/internal/domain"
)

// MediaTools bundles the local media capabilities the pipeline consumes.
// The production implementation shells out to ffmpeg/ffprobe; tests use
// in-memory fakes.
type MediaTools interface {
	// ProbeDuration returns total media duration in seconds. Errors mean
	// "unknown" and force single-segment mode, never a pipeline failure.
	ProbeDuration(ctx context.Context, path string) (float64, error)
	// SilenceRatio reports the silent fraction of a file. Errors mean
	// "unknown" and the segment proceeds to transcription.
	SilenceRatio(ctx context.Context, path string, noiseDB, minSpan float64) (float64, error)
	// Extract materializes one time range of src at dest. A non-positive
	// duration converts the whole file. Failure is segment-local.
	Extract(ctx context.Context, src, dest string, start, duration float64) error
}

// Client transcribes one segment artifact anchored at a timeline offset.
// Calls may block for minutes and fail transiently; each is independently
// time-boxed by the pipeline. Retries, if desired, belong in a caller-
// supplied wrapper.
type Client interface {
	Transcribe(ctx context.Context, artifactPath string, startOffset float64) (string, error)
}

// Cache stores normalized segment transcripts across runs so repeated work
// skips the remote call. A nil cache disables caching.
type Cache interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, text string) error
}

// Config carries tuning knobs for one pipeline instance.
type Config struct {
	Workers           int
	TranscribeTimeout time.Duration
	OutputDir         string
	Segmenting        domain.SegmentingSettings
	Silence           domain.SilenceSettings
}

// Request contains input media and execution callbacks for one run.
type Request struct {
	InputPath string
	OnStage   func(stage string)
	OnPlan    func(plan Plan)
	OnSegment func(index int, outcome Outcome)
}

// PipelineError is a stage-aware error for failures that abort a whole run.
// Per-segment failures never surface here; they become outcome markers.
type PipelineError struct {
	Stage   string `json:"stage"`
	Message string `json:"message"`
	Err     error  `json:"-"`
}

// Error formats run-fatal failures for logs and API responses.
func (e *PipelineError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("%s: %s", e.Stage, e.Message)
}

// Unwrap exposes underlying error for errors.Is / errors.As.
func (e *PipelineError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Pipeline drives planning, bounded parallel segment transcription, drift
// normalization, and deterministic reassembly for one media resource.
type Pipeline struct {
	tools     MediaTools
	client    Client
	cache     Cache
	cfg       Config
	mkdirTemp func(dir, pattern string) (string, error)
	removeAll func(path string) error
	remove    func(path string) error
	stat      func(name string) (os.FileInfo, error)
	mkdirAll  func(path string, perm os.FileMode) error
	writeFile func(name string, data []byte, perm os.FileMode) error
}

// NewPipeline constructs the production pipeline. A nil cache disables
// transcript caching.
func NewPipeline(tools MediaTools, client Client, cache Cache, cfg Config) *Pipeline {
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	return &Pipeline{
		tools:     tools,
		client:    client,
		cache:     cache,
		cfg:       cfg,
		mkdirTemp: os.MkdirTemp,
		removeAll: os.RemoveAll,
		remove:    os.Remove,
		stat:      os.Stat,
		mkdirAll:  os.MkdirAll,
		writeFile: os.WriteFile,
	}
}

// Run plans the media, processes every segment to a terminal outcome, and
// assembles the index-ordered transcript. The only fatal condition is source
// media that cannot be read before planning; everything after that degrades
// to per-segment markers.
func (p *Pipeline) Run(ctx context.Context, req Request) (Result, error) {
	if strings.TrimSpace(req.InputPath) == "" {
		return Result{}, &PipelineError{
			Stage:   "planning",
			Message: "input media path is required",
		}
	}
	if _, err := p.stat(req.InputPath); err != nil {
		return Result{}, &PipelineError{
			Stage:   "planning",
			Message: fmt.Sprintf("cannot access input media: %s", req.InputPath),
			Err:     err,
		}
	}

	tempDir, err := p.mkdirTemp("", "longform-transcriber-*")
	if err != nil {
		return Result{}, &PipelineError{
			Stage:   "planning",
			Message: "failed to create temporary workspace",
			Err:     err,
		}
	}
	defer func() {
		_ = p.removeAll(tempDir)
	}()

	emitStage(req.OnStage, "planning")
	plan := p.planSegments(ctx, req.InputPath, tempDir)
	if req.OnPlan != nil {
		req.OnPlan(plan)
	}

	emitStage(req.OnStage, "transcribing")
	outcomes := p.runWorkers(ctx, req, plan, tempDir)
	if ctxErr := ctx.Err(); ctxErr != nil {
		return Result{}, ctxErr
	}

	emitStage(req.OnStage, "exporting")
	result := Assemble(outcomes)
	if p.cfg.OutputDir != "" {
		textPath, exportErr := p.export(req.InputPath, result.Transcript)
		if exportErr != nil {
			return Result{}, exportErr
		}
		result.TextPath = textPath
	}

	return result, nil
}

// planSegments probes duration, samples content density, and partitions the
// media. Probe failure degrades to a single unbounded segment.
func (p *Pipeline) planSegments(ctx context.Context, inputPath, tempDir string) Plan {
	total, err := p.tools.ProbeDuration(ctx, inputPath)
	if err != nil {
		return SingleSegmentPlan()
	}
	return PlanSegments(total, p.segmentLengthFor(ctx, inputPath, total, tempDir))
}

// segmentLengthFor classifies content density from one sample window
// centered at the media midpoint. Anything it cannot measure is moderate.
func (p *Pipeline) segmentLengthFor(ctx context.Context, inputPath string, total float64, tempDir string) float64 {
	cfg := p.cfg.Segmenting
	if total < cfg.SampleWindowSeconds {
		return SegmentLength(DensityModerate, cfg)
	}

	samplePath := filepath.Join(tempDir, "density-sample.wav")
	start := total/2 - cfg.SampleWindowSeconds/2
	if err := p.tools.Extract(ctx, inputPath, samplePath, start, cfg.SampleWindowSeconds); err != nil {
		return SegmentLength(DensityModerate, cfg)
	}
	defer func() {
		_ = p.remove(samplePath)
	}()

	ratio, err := p.tools.SilenceRatio(ctx, samplePath, p.cfg.Silence.NoiseDB, p.cfg.Silence.MinSpanSeconds)
	if err != nil {
		return SegmentLength(DensityModerate, cfg)
	}
	return SegmentLength(ClassifyDensity(ratio, cfg), cfg)
}

// runWorkers fans plan entries out to a bounded pool. Each worker owns its
// job end-to-end and writes exactly once to its own index-keyed slot, so the
// results slice needs no locking.
func (p *Pipeline) runWorkers(ctx context.Context, req Request, plan Plan, tempDir string) []Outcome {
	outcomes := make([]Outcome, len(plan.Entries))
	sem := make(chan struct{}, p.cfg.Workers)
	var wg sync.WaitGroup

	for _, entry := range plan.Entries {
		wg.Add(1)
		go func(entry PlanEntry) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			outcome := p.processSegment(ctx, req.InputPath, entry, tempDir)
			outcomes[entry.Index] = outcome
			if req.OnSegment != nil {
				req.OnSegment(entry.Index, outcome)
			}
		}(entry)
	}

	wg.Wait()
	return outcomes
}

// processSegment drives one job to its terminal outcome: extract, gate on
// silence, transcribe with a per-call timeout, normalize. Every failure is
// absorbed into a marker and the artifact is removed on every exit path.
func (p *Pipeline) processSegment(ctx context.Context, inputPath string, entry PlanEntry, tempDir string) Outcome {
	artifact := filepath.Join(tempDir, fmt.Sprintf("segment-%03d.wav", entry.Index))
	if err := p.tools.Extract(ctx, inputPath, artifact, entry.Start, entry.Duration); err != nil {
		return Outcome{
			Index: entry.Index,
			Kind:  OutcomeExtractionFailed,
			Text:  errorMarker(entry, "extraction failed"),
		}
	}
	defer func() {
		_ = p.remove(artifact)
	}()

	ratio, ratioErr := p.tools.SilenceRatio(ctx, artifact, p.cfg.Silence.NoiseDB, p.cfg.Silence.MinSpanSeconds)
	if ratioErr == nil && ratio > p.cfg.Silence.SkipRatio {
		return Outcome{
			Index: entry.Index,
			Kind:  OutcomeSkippedSilent,
			Text:  skipMarker(entry),
		}
	}

	key := segmentCacheKey(inputPath, entry)
	if p.cache != nil {
		if text, ok, err := p.cache.Get(ctx, key); err == nil && ok {
			return Outcome{Index: entry.Index, Kind: OutcomeTranscribed, Text: text}
		}
	}

	callCtx := ctx
	if p.cfg.TranscribeTimeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, p.cfg.TranscribeTimeout)
		defer cancel()
	}

	text, err := p.client.Transcribe(callCtx, artifact, entry.Start)
	if err != nil {
		return Outcome{
			Index: entry.Index,
			Kind:  OutcomeTranscriptionFailed,
			Text:  errorMarker(entry, transcribeFailureReason(err)),
		}
	}

	text = NormalizeTimestamps(strings.TrimSpace(text), entry.Start)
	if p.cache != nil {
		_ = p.cache.Set(ctx, key, text)
	}
	return Outcome{Index: entry.Index, Kind: OutcomeTranscribed, Text: text}
}

// export writes the combined transcript next to prior runs in OutputDir.
func (p *Pipeline) export(inputPath, transcript string) (string, error) {
	if err := p.mkdirAll(p.cfg.OutputDir, 0o755); err != nil {
		return "", &PipelineError{
			Stage:   "exporting",
			Message: fmt.Sprintf("cannot create output directory: %s", p.cfg.OutputDir),
			Err:     err,
		}
	}

	textPath := filepath.Join(p.cfg.OutputDir, transcriptFileName(inputPath))
	if err := p.writeFile(textPath, []byte(transcript+"\n"), 0o644); err != nil {
		return "", &PipelineError{
			Stage:   "exporting",
			Message: fmt.Sprintf("failed to write transcript file: %s", textPath),
			Err:     err,
		}
	}
	return textPath, nil
}

// transcribeFailureReason maps client errors to short marker reasons.
func transcribeFailureReason(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return "timeout"
	}
	if errors.Is(err, context.Canceled) {
		return "cancelled"
	}
	return err.Error()
}

// segmentCacheKey identifies one segment of one media resource.
func segmentCacheKey(inputPath string, entry PlanEntry) string {
	if !entry.Bounded {
		return fmt.Sprintf("%s|full", inputPath)
	}
	return fmt.Sprintf("%s|%g|%g", inputPath, entry.Start, entry.Duration)
}

// transcriptFileName builds output text filename from input media name.
func transcriptFileName(inputPath string) string {
	base := filepath.Base(inputPath)
	name := strings.TrimSpace(strings.TrimSuffix(base, filepath.Ext(base)))
	if name == "" || name == "." || name == string(filepath.Separator) {
		name = "transcript"
	}
	return name + ".txt"
}

// emitStage forwards stage updates when callback is configured.
func emitStage(cb func(stage string), stage string) {
	if cb != nil {
		cb(stage)
	}
}

// NewPipelineForTests constructs a pipeline with injectable OS dependencies.
func NewPipelineForTests(
	tools MediaTools,
	client Client,
	cache Cache,
	cfg Config,
	mkdirTemp func(dir, pattern string) (string, error),
	removeAll func(path string) error,
	remove func(path string) error,
	stat func(name string) (os.FileInfo, error),
) *Pipeline {
	p := NewPipeline(tools, client, cache, cfg)
	p.mkdirTemp = mkdirTemp
	p.removeAll = removeAll
	p.remove = remove
	p.stat = stat
	return p
}
