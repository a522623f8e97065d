package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/cors"

	"longform-transcriber/internal/cache"
	"longform-transcriber/internal/config"
	"longform-transcriber/internal/diagnostics"
	"longform-transcriber/internal/domain"
	"longform-transcriber/internal/media"
	"longform-transcriber/internal/remote"
	"longform-transcriber/internal/runs"
	"longform-transcriber/internal/transcribe"
	httptransport "longform-transcriber/internal/transport/http"
)

// pipelineRunner isolates the transcription pipeline behind an interface.
type pipelineRunner interface {
	Run(ctx context.Context, req transcribe.Request) (transcribe.Result, error)
}

// pipelineFactory builds a pipeline for one run from current settings. The
// returned closer releases any cache connection the pipeline holds.
type pipelineFactory func(settings domain.Settings) (pipelineRunner, func(), error)

// App wires configuration, run tracking, the pipeline, and the HTTP surface.
type App struct {
	Store   config.Store
	Runs    *runs.Manager
	checker *diagnostics.Checker
	events  *runs.EventBus

	newPipeline pipelineFactory

	mu          sync.Mutex
	settings    domain.Settings
	activeRunID string
	cancel      context.CancelFunc
	latest      *transcribe.Result
}

// New builds the application with persisted settings and startup diagnostics.
func New() (*App, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("resolve user home: %w", err)
	}

	store := config.NewJSONStore(filepath.Join(homeDir, ".longform-transcriber", "settings.json"))
	settings, err := store.Load()
	if err != nil {
		return nil, fmt.Errorf("load settings: %w", err)
	}

	return &App{
		Store:       store,
		Runs:        runs.NewManager(),
		checker:     diagnostics.NewChecker(),
		events:      runs.NewEventBus(1000),
		newPipeline: buildPipeline,
		settings:    settings,
	}, nil
}

// Serve starts the HTTP API and blocks until the listener fails.
func (a *App) Serve(addr string) error {
	handler := httptransport.NewHandler(a)
	router := httptransport.NewRouter(handler)

	c := cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "PUT", "OPTIONS"},
	})

	return http.ListenAndServe(addr, c.Handler(router))
}

// StartRun creates a run for a media file and executes it asynchronously.
func (a *App) StartRun(mediaPath string) (domain.Run, error) {
	mediaPath = strings.TrimSpace(mediaPath)
	if mediaPath == "" {
		return domain.Run{}, fmt.Errorf("media path is empty")
	}

	settings, err := a.Store.Load()
	if err != nil {
		return domain.Run{}, fmt.Errorf("load settings: %w", err)
	}

	runID := uuid.NewString()
	if err := a.Runs.Start(runID, mediaPath); err != nil {
		return domain.Run{}, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	a.mu.Lock()
	a.settings = settings
	a.activeRunID = runID
	a.cancel = cancel
	a.mu.Unlock()

	a.publishStatus(runID, domain.RunStatusPlanning, "Run started")
	go a.executeRun(ctx, runID, mediaPath, settings)

	return a.Runs.Current(), nil
}

// CancelRun cancels the currently active run, if any.
func (a *App) CancelRun() error {
	a.mu.Lock()
	cancel := a.cancel
	runID := a.activeRunID
	a.mu.Unlock()

	if cancel == nil {
		return runs.ErrNoActiveRun
	}

	cancel()
	if err := a.Runs.Cancel(); err != nil && !errors.Is(err, runs.ErrNoActiveRun) {
		return err
	}

	if runID != "" {
		a.publishStatus(runID, domain.RunStatusCancelled, "Cancellation requested")
	}
	return nil
}

// CurrentRun returns current run metadata and progress.
func (a *App) CurrentRun() domain.Run {
	return a.Runs.Current()
}

// Events returns all events with sequence greater than since.
func (a *App) Events(since int64) []runs.Event {
	return a.events.Since(since)
}

// Settings returns the persisted settings, falling back to the last known
// good copy when the store cannot be read.
func (a *App) Settings() domain.Settings {
	settings, err := a.Store.Load()
	if err != nil {
		a.mu.Lock()
		defer a.mu.Unlock()
		return a.settings
	}

	a.mu.Lock()
	a.settings = settings
	a.mu.Unlock()
	return settings
}

// SaveSettings normalizes and persists settings.
func (a *App) SaveSettings(settings domain.Settings) (domain.Settings, error) {
	normalized := normalizeSettings(settings)
	if err := a.Store.Save(normalized); err != nil {
		return domain.Settings{}, fmt.Errorf("save settings: %w", err)
	}

	a.mu.Lock()
	a.settings = normalized
	a.mu.Unlock()
	return normalized, nil
}

// Diagnostics reruns environment checks against current settings.
func (a *App) Diagnostics() domain.DiagnosticReport {
	return a.checker.Run(a.Settings())
}

// LatestResult returns the most recent completed run result.
func (a *App) LatestResult() (transcribe.Result, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.latest == nil {
		return transcribe.Result{}, false
	}
	return *a.latest, true
}

// executeRun drives the pipeline for one run and maps outcomes to events.
func (a *App) executeRun(ctx context.Context, runID, mediaPath string, settings domain.Settings) {
	pipeline, closeCache, err := a.newPipeline(settings)
	if err != nil {
		a.failRun(runID, err)
		return
	}
	defer closeCache()

	req := transcribe.Request{
		InputPath: mediaPath,
		OnStage: func(stage string) {
			status, ok := stageStatus(stage)
			if !ok {
				return
			}
			if err := a.Runs.Transition(status); err == nil {
				a.publishStatus(runID, status, "Running "+stage+" stage")
			}
		},
		OnPlan: func(plan transcribe.Plan) {
			a.Runs.SetPlanned(len(plan.Entries))
			a.publishStatus(runID, domain.RunStatusTranscribing,
				fmt.Sprintf("Planned %d segments", len(plan.Entries)))
		},
		OnSegment: func(index int, outcome transcribe.Outcome) {
			a.Runs.SegmentCompleted()
			idx := index
			a.publishEvent(runs.Event{
				RunID:        runID,
				Type:         runs.EventTypeSegment,
				SegmentIndex: &idx,
				SegmentKind:  string(outcome.Kind),
				Text:         outcome.Text,
			})
		},
	}

	result, err := pipeline.Run(ctx, req)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			_ = a.Runs.Transition(domain.RunStatusCancelled)
			a.publishStatus(runID, domain.RunStatusCancelled, "Run cancelled")
			a.clearActiveRun(runID)
			return
		}
		a.failRun(runID, err)
		return
	}

	a.mu.Lock()
	a.latest = &result
	a.mu.Unlock()

	if err := a.Runs.Transition(domain.RunStatusDone); err == nil {
		a.publishStatus(runID, domain.RunStatusDone, "Run completed")
	}
	a.publishEvent(runs.Event{
		RunID:    runID,
		Type:     runs.EventTypeResult,
		Status:   domain.RunStatusDone,
		Message:  "Transcript assembled",
		Counts:   &result.Counts,
		TextPath: result.TextPath,
	})
	a.clearActiveRun(runID)
}

// failRun records a fatal run failure and publishes the error event.
func (a *App) failRun(runID string, err error) {
	_ = a.Runs.Transition(domain.RunStatusFailed)
	a.publishStatus(runID, domain.RunStatusFailed, "Run failed")
	a.publishEvent(runs.Event{
		RunID:   runID,
		Type:    runs.EventTypeError,
		Status:  domain.RunStatusFailed,
		Message: err.Error(),
	})
	a.clearActiveRun(runID)
}

// publishStatus sends a normalized status event.
func (a *App) publishStatus(runID string, status domain.RunStatus, message string) {
	a.publishEvent(runs.Event{
		RunID:   runID,
		Type:    runs.EventTypeStatus,
		Status:  status,
		Message: message,
	})
}

// publishEvent stores the event in history.
func (a *App) publishEvent(event runs.Event) {
	a.events.Publish(event)
}

// clearActiveRun clears cancellation handles for completed run IDs.
func (a *App) clearActiveRun(runID string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.activeRunID == runID {
		a.activeRunID = ""
		a.cancel = nil
	}
}

// buildPipeline assembles the production pipeline from settings. A missing
// or unreachable Redis server disables caching rather than failing the run.
func buildPipeline(settings domain.Settings) (pipelineRunner, func(), error) {
	var segmentCache transcribe.Cache
	closeCache := func() {}

	if strings.TrimSpace(settings.RedisAddr) != "" {
		redisCache, err := cache.NewRedisCache(settings.RedisAddr, settings.Model)
		if err == nil {
			segmentCache = redisCache
			closeCache = func() { _ = redisCache.Close() }
		}
	}

	cfg := transcribe.Config{
		Workers:           settings.Workers,
		TranscribeTimeout: time.Duration(settings.TranscribeTimeoutSeconds * float64(time.Second)),
		OutputDir:         settings.OutputDir,
		Segmenting:        settings.Segmenting,
		Silence:           settings.Silence,
	}

	client := remote.NewClient(settings.APIBaseURL, settings.APIKey, settings.Model)
	return transcribe.NewPipeline(media.NewToolbox(), client, segmentCache, cfg), closeCache, nil
}

// stageStatus maps pipeline stage names to run statuses.
func stageStatus(stage string) (domain.RunStatus, bool) {
	switch stage {
	case "planning":
		return domain.RunStatusPlanning, true
	case "transcribing":
		return domain.RunStatusTranscribing, true
	case "exporting":
		return domain.RunStatusExporting, true
	default:
		return "", false
	}
}

// normalizeSettings trims user inputs and restores defaults for empty or
// non-positive values.
func normalizeSettings(settings domain.Settings) domain.Settings {
	defaults := config.DefaultSettings()

	settings.APIBaseURL = strings.TrimSpace(settings.APIBaseURL)
	settings.APIKey = strings.TrimSpace(settings.APIKey)
	settings.Model = strings.TrimSpace(settings.Model)
	settings.OutputDir = strings.TrimSpace(settings.OutputDir)
	settings.RedisAddr = strings.TrimSpace(settings.RedisAddr)

	if settings.APIBaseURL == "" {
		settings.APIBaseURL = defaults.APIBaseURL
	}
	if settings.Model == "" {
		settings.Model = defaults.Model
	}
	if settings.OutputDir == "" {
		settings.OutputDir = defaults.OutputDir
	}
	if settings.Workers <= 0 {
		settings.Workers = defaults.Workers
	}
	if settings.TranscribeTimeoutSeconds <= 0 {
		settings.TranscribeTimeoutSeconds = defaults.TranscribeTimeoutSeconds
	}
	if settings.Segmenting.SparseLengthSeconds <= 0 {
		settings.Segmenting.SparseLengthSeconds = defaults.Segmenting.SparseLengthSeconds
	}
	if settings.Segmenting.ModerateLengthSeconds <= 0 {
		settings.Segmenting.ModerateLengthSeconds = defaults.Segmenting.ModerateLengthSeconds
	}
	if settings.Segmenting.DenseLengthSeconds <= 0 {
		settings.Segmenting.DenseLengthSeconds = defaults.Segmenting.DenseLengthSeconds
	}
	if settings.Segmenting.SparseRatio <= 0 {
		settings.Segmenting.SparseRatio = defaults.Segmenting.SparseRatio
	}
	if settings.Segmenting.ModerateRatio <= 0 {
		settings.Segmenting.ModerateRatio = defaults.Segmenting.ModerateRatio
	}
	if settings.Segmenting.SampleWindowSeconds <= 0 {
		settings.Segmenting.SampleWindowSeconds = defaults.Segmenting.SampleWindowSeconds
	}
	if settings.Silence.SkipRatio <= 0 {
		settings.Silence.SkipRatio = defaults.Silence.SkipRatio
	}
	if settings.Silence.NoiseDB >= 0 {
		settings.Silence.NoiseDB = defaults.Silence.NoiseDB
	}
	if settings.Silence.MinSpanSeconds <= 0 {
		settings.Silence.MinSpanSeconds = defaults.Silence.MinSpanSeconds
	}

	return settings
}
