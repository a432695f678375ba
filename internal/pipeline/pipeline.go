// Package pipeline orchestrates the analysis phases for both tracks and
// assembles the final report.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/videoforensics/veriscope/internal/config"
	"github.com/videoforensics/veriscope/internal/factcheck"
	"github.com/videoforensics/veriscope/internal/fusion"
	"github.com/videoforensics/veriscope/internal/models"
	"github.com/videoforensics/veriscope/internal/probe"
	"github.com/videoforensics/veriscope/internal/structuring"
	"github.com/videoforensics/veriscope/internal/understanding"
)

// Input is one analysis request. Caption and PostedDate only matter for the
// fact-check track.
type Input struct {
	Video      []byte
	Caption    string
	PostedDate string
}

// Pipeline runs the analysis phases. Safe for concurrent use; each call
// owns its job state.
type Pipeline struct {
	prober  probe.Prober
	video   understanding.Service
	engine  *structuring.Engine
	checker *factcheck.Checker
	scorer  *fusion.Scorer

	jobTimeout     time.Duration
	phaseTimeout   time.Duration
	maxUploadBytes int64
	progress       ProgressFunc
}

// New creates a pipeline from configuration and its collaborators.
func New(
	cfg *config.PipelineConfig,
	prober probe.Prober,
	video understanding.Service,
	engine *structuring.Engine,
	checker *factcheck.Checker,
	scorer *fusion.Scorer,
) *Pipeline {
	return &Pipeline{
		prober:         prober,
		video:          video,
		engine:         engine,
		checker:        checker,
		scorer:         scorer,
		jobTimeout:     time.Duration(cfg.JobTimeoutSeconds) * time.Second,
		phaseTimeout:   time.Duration(cfg.PhaseTimeoutSeconds) * time.Second,
		maxUploadBytes: int64(cfg.MaxUploadMB) << 20,
	}
}

// SetProgress installs a progress callback. Must be called before any
// analysis starts.
func (p *Pipeline) SetProgress(fn ProgressFunc) {
	p.progress = fn
}

// AnalyzeFactCheck runs the misinformation track: understanding, claim
// extraction, web fact-checking, splice and timeline analysis, then fusion.
// Understanding and claim extraction are critical; every other phase
// degrades the report on failure.
func (p *Pipeline) AnalyzeFactCheck(ctx context.Context, in Input) (*models.FinalReport, error) {
	if err := p.validate(in); err != nil {
		return nil, err
	}

	job := p.newJob(models.TrackFactCheck, in)
	ctx, cancel := context.WithDeadline(ctx, job.Deadline)
	defer cancel()

	log.Info().Str("job_id", job.ID).Str("track", string(job.Track)).Msg("Starting analysis")

	var (
		mu       sync.Mutex
		warnings []models.Warning
		meta     *models.VideoMetadata
		und      *models.Understanding
		videoID  string
	)
	warn := func(source string, err error) {
		mu.Lock()
		warnings = append(warnings, models.Warning{Source: source, Message: err.Error()})
		mu.Unlock()
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		m, err := p.runProbe(gctx, job, in.Video)
		if err != nil {
			warn(PhaseProbe, err)
			return nil
		}
		meta = m
		return nil
	})
	g.Go(func() error {
		id, u, err := p.runUnderstanding(gctx, job, in.Video)
		if err != nil {
			return &CriticalPhaseError{Phase: PhaseUnderstanding, Err: err}
		}
		videoID, und = id, u
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, p.finishErr(ctx, err)
	}

	structured, err := p.runStructuring(ctx, job, und, in.Caption)
	if err != nil {
		return nil, p.finishErr(ctx, &CriticalPhaseError{Phase: PhaseStructuring, Err: err})
	}
	claims := structured.Claims

	var (
		fcResults []*models.FactCheckResult
		splice    *models.SpliceSignal
		timeline  *models.TimelineSignal
		trust     *models.ModelTrustSignal
	)

	fan, fanCtx := errgroup.WithContext(ctx)
	fan.Go(func() error {
		p.emit(job, PhaseFactCheck, StatusStarted, nil)
		phaseCtx, done := p.phaseContext(fanCtx)
		defer done()
		var fcWarnings []models.Warning
		fcResults, fcWarnings = p.checker.CheckAll(phaseCtx, claims)
		mu.Lock()
		warnings = append(warnings, fcWarnings...)
		mu.Unlock()
		p.emit(job, PhaseFactCheck, StatusCompleted, nil)
		return nil
	})
	fan.Go(func() error {
		s, err := runPhase(p, fanCtx, job, PhaseSplice, func(phaseCtx context.Context) (*models.SpliceSignal, error) {
			return p.video.SpliceAnalysis(phaseCtx, videoID)
		})
		if err != nil {
			warn(PhaseSplice, err)
			return nil
		}
		splice = s
		return nil
	})
	fan.Go(func() error {
		t, err := runPhase(p, fanCtx, job, PhaseTimeline, func(phaseCtx context.Context) (*models.TimelineSignal, error) {
			return p.engine.TimelineCheck(phaseCtx, und.Scenes, claims, in.PostedDate)
		})
		if err != nil {
			warn(PhaseTimeline, err)
			return nil
		}
		timeline = t
		return nil
	})
	fan.Go(func() error {
		ts, err := runPhase(p, fanCtx, job, PhaseAIJudgment, func(phaseCtx context.Context) (*models.ModelTrustSignal, error) {
			return p.aiJudgment(phaseCtx, videoID, meta, structured.Summary())
		})
		if err != nil {
			warn(PhaseAIJudgment, err)
			return nil
		}
		trust = ts
		return nil
	})
	_ = fan.Wait()

	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return nil, ErrJobTimedOut
	}

	prov := probe.ProvenanceFromMetadata(meta)

	p.emit(job, PhaseFusion, StatusStarted, nil)
	fv := p.scorer.Fuse(claims, fcResults, splice, timeline, prov, trust)
	p.emit(job, PhaseFusion, StatusCompleted, nil)

	log.Info().
		Str("job_id", job.ID).
		Str("verdict", string(fv.Verdict)).
		Int("confidence", fv.ConfidencePercent).
		Int("claims", len(claims)).
		Msg("Analysis complete")

	return &models.FinalReport{
		ID:          job.ID,
		Track:       job.Track,
		CreatedAt:   time.Now().UTC(),
		Metadata:    meta,
		Final:       fv,
		Summary:     structured.Summary(),
		Claims:      claims,
		FactCheck:   fcResults,
		Corrections: fusion.BuildCorrections(fcResults),
		TopReasons:  fusion.BuildReasons(fv, prov, trust, splice != nil, timeline != nil),
		Splice:      splice,
		Timeline:    timeline,
		Warnings:    warnings,
		Provenance:  prov,
		ModelTrust:  trust,
	}, nil
}

// AnalyzeAIDetection runs the AI-generation track: metadata probe, an
// upload for the multimodal trust judgment, then fusion. No phase is
// critical; when the upload fails the judgment degrades to metadata-only,
// and the verdict degrades to an unknown with zero scores when every
// signal is missing.
func (p *Pipeline) AnalyzeAIDetection(ctx context.Context, in Input) (*models.FinalReport, error) {
	if err := p.validate(in); err != nil {
		return nil, err
	}

	job := p.newJob(models.TrackAIDetection, in)
	ctx, cancel := context.WithDeadline(ctx, job.Deadline)
	defer cancel()

	log.Info().Str("job_id", job.ID).Str("track", string(job.Track)).Msg("Starting analysis")

	var warnings []models.Warning

	meta, err := p.runProbe(ctx, job, in.Video)
	if err != nil {
		warnings = append(warnings, models.Warning{Source: PhaseProbe, Message: err.Error()})
	}

	videoID, err := runPhase(p, ctx, job, PhaseUnderstanding, func(phaseCtx context.Context) (string, error) {
		return p.video.Upload(phaseCtx, in.Video)
	})
	if err != nil {
		warnings = append(warnings, models.Warning{Source: PhaseUnderstanding, Message: err.Error()})
	}

	trust, err := runPhase(p, ctx, job, PhaseAIJudgment, func(phaseCtx context.Context) (*models.ModelTrustSignal, error) {
		return p.aiJudgment(phaseCtx, videoID, meta, "")
	})
	if err != nil {
		warnings = append(warnings, models.Warning{Source: PhaseAIJudgment, Message: err.Error()})
	}

	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return nil, ErrJobTimedOut
	}

	prov := probe.ProvenanceFromMetadata(meta)

	p.emit(job, PhaseFusion, StatusStarted, nil)
	det := p.scorer.FuseDetection(prov, trust)
	p.emit(job, PhaseFusion, StatusCompleted, nil)

	log.Info().
		Str("job_id", job.ID).
		Bool("is_ai_generated", det.IsAIGenerated).
		Msg("Analysis complete")

	return &models.FinalReport{
		ID:         job.ID,
		Track:      job.Track,
		CreatedAt:  time.Now().UTC(),
		Metadata:   meta,
		Warnings:   warnings,
		Detection:  det,
		Provenance: prov,
		ModelTrust: trust,
	}, nil
}

func (p *Pipeline) validate(in Input) error {
	if len(in.Video) == 0 {
		return fmt.Errorf("%w: empty video", ErrInvalidInput)
	}
	if p.maxUploadBytes > 0 && int64(len(in.Video)) > p.maxUploadBytes {
		return fmt.Errorf("%w: video exceeds %dMB limit", ErrInvalidInput, p.maxUploadBytes>>20)
	}
	return nil
}

func (p *Pipeline) newJob(track models.Track, in Input) *models.AnalysisJob {
	now := time.Now().UTC()
	return &models.AnalysisJob{
		ID:         uuid.New().String(),
		Track:      track,
		Caption:    in.Caption,
		PostedDate: in.PostedDate,
		CreatedAt:  now,
		Deadline:   now.Add(p.jobTimeout),
	}
}

// aiJudgment prefers the multimodal judgment on the indexed video and falls
// back to the metadata-only text judgment when no indexed copy is usable.
func (p *Pipeline) aiJudgment(ctx context.Context, videoID string, meta *models.VideoMetadata, videoContext string) (*models.ModelTrustSignal, error) {
	if videoID != "" {
		ts, err := p.video.AIJudgment(ctx, videoID, meta)
		if err == nil {
			return ts, nil
		}
		log.Warn().Err(err).Msg("Video AI judgment failed, falling back to metadata judgment")
	}
	return p.engine.AIJudgment(ctx, meta, videoContext)
}

func (p *Pipeline) runProbe(ctx context.Context, job *models.AnalysisJob, video []byte) (*models.VideoMetadata, error) {
	p.emit(job, PhaseProbe, StatusStarted, nil)
	phaseCtx, done := p.phaseContext(ctx)
	defer done()

	meta, err := p.prober.Probe(phaseCtx, video)
	if err != nil {
		p.emit(job, PhaseProbe, StatusFailed, err)
		return nil, err
	}
	p.emit(job, PhaseProbe, StatusCompleted, nil)
	return meta, nil
}

func (p *Pipeline) runUnderstanding(ctx context.Context, job *models.AnalysisJob, video []byte) (string, *models.Understanding, error) {
	p.emit(job, PhaseUnderstanding, StatusStarted, nil)

	uploadCtx, doneUpload := p.phaseContext(ctx)
	videoID, err := p.video.Upload(uploadCtx, video)
	doneUpload()
	if err != nil {
		p.emit(job, PhaseUnderstanding, StatusFailed, err)
		return "", nil, fmt.Errorf("upload: %w", err)
	}

	analyzeCtx, doneAnalyze := p.phaseContext(ctx)
	und, err := p.video.Understand(analyzeCtx, videoID)
	doneAnalyze()
	if err != nil {
		p.emit(job, PhaseUnderstanding, StatusFailed, err)
		return "", nil, err
	}

	p.emit(job, PhaseUnderstanding, StatusCompleted, nil)
	return videoID, und, nil
}

func (p *Pipeline) runStructuring(ctx context.Context, job *models.AnalysisJob, und *models.Understanding, caption string) (*structuring.Structured, error) {
	p.emit(job, PhaseStructuring, StatusStarted, nil)
	phaseCtx, done := p.phaseContext(ctx)
	defer done()

	structured, err := p.engine.ExtractClaims(phaseCtx, und, caption)
	if err != nil {
		p.emit(job, PhaseStructuring, StatusFailed, err)
		return nil, err
	}
	p.emit(job, PhaseStructuring, StatusCompleted, nil)
	return structured, nil
}

// runPhase wraps a degradable phase with its timeout and progress events.
func runPhase[T any](p *Pipeline, ctx context.Context, job *models.AnalysisJob, phase string, fn func(context.Context) (T, error)) (T, error) {
	p.emit(job, phase, StatusStarted, nil)
	phaseCtx, done := p.phaseContext(ctx)
	defer done()

	out, err := fn(phaseCtx)
	if err != nil {
		log.Warn().Err(err).Str("job_id", job.ID).Str("phase", phase).Msg("Phase failed, continuing without signal")
		p.emit(job, phase, StatusFailed, err)
		return out, err
	}
	p.emit(job, phase, StatusCompleted, nil)
	return out, nil
}

func (p *Pipeline) phaseContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if p.phaseTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, p.phaseTimeout)
}

func (p *Pipeline) finishErr(ctx context.Context, err error) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return ErrJobTimedOut
	}
	return err
}

func (p *Pipeline) emit(job *models.AnalysisJob, phase, status string, err error) {
	if p.progress == nil {
		return
	}
	ev := Event{
		JobID:  job.ID,
		Phase:  phase,
		Status: status,
		At:     time.Now().UTC(),
	}
	if err != nil {
		ev.Err = err.Error()
	}
	p.progress(ev)
}
