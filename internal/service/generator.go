// Package service sequences the generation use case: validate the upload,
// prepare it, call the inpainting provider, overlay the logo, persist the
// record and mirror it. Exactly one terminal GenerationRecord is left behind
// for every accepted request, whatever happens in between.
package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"server/internal/domain"
	"server/internal/imaging"
	"server/internal/providers/stability"
	"server/internal/providers/vision"
)

// Inpainter is the external generation call. It must not retry internally.
type Inpainter interface {
	Inpaint(ctx context.Context, req stability.InpaintRequest) ([]byte, error)
}

// ImageStore persists image bytes and returns a public URL. Failures here are
// advisory: the record keeps empty URLs.
type ImageStore interface {
	SaveOriginal(ctx context.Context, generationID, filename string, data []byte) (string, error)
	SaveGenerated(ctx context.Context, generationID string, data []byte) (string, error)
}

// Mirror receives read-only copies of terminal records, off the request path.
type Mirror interface {
	Enqueue(rec *domain.GenerationRecord)
}

// Options carries the per-process tunables of the pipeline.
type Options struct {
	MaxImageBytes int64
	AllowedTypes  []string
	MaxDimension  int
	LogoWidthPct  int
	LogoPadding   int
}

// Generator orchestrates one generation request end to end. It is the only
// component that creates or mutates generation records.
type Generator struct {
	opts      Options
	repo      domain.GenerationRepository
	inpainter Inpainter
	describer vision.Describer
	store     ImageStore
	mirror    Mirror
	logo      []byte
	logger    zerolog.Logger
}

// NewGenerator wires the pipeline. store, mirror and logo may be absent; the
// corresponding steps degrade to no-ops.
func NewGenerator(opts Options, repo domain.GenerationRepository, inpainter Inpainter, describer vision.Describer, store ImageStore, mirror Mirror, logo []byte, logger zerolog.Logger) *Generator {
	if describer == nil {
		describer = vision.Static{}
	}
	return &Generator{
		opts:      opts,
		repo:      repo,
		inpainter: inpainter,
		describer: describer,
		store:     store,
		mirror:    mirror,
		logo:      logo,
		logger:    logger,
	}
}

// Input is one upload as received at the HTTP boundary.
type Input struct {
	Data        []byte
	Filename    string
	ContentType string
}

// Result is the success payload of a generation.
type Result struct {
	RecordID    string
	Image       []byte
	LogoApplied bool
}

// Generate runs the pipeline. The work is detached from the caller's
// cancellation: a client disconnect never leaves a record in a non-terminal
// state. The returned error is one of the domain error types.
func (g *Generator) Generate(ctx context.Context, in Input) (*Result, error) {
	// Finalization and the bounded upstream call must survive a client
	// disconnect (the inpainting client enforces its own timeout).
	ctx = context.WithoutCancel(ctx)

	format, err := imaging.Validate(in.Data, in.ContentType, imaging.ValidateOptions{
		MaxBytes:     g.opts.MaxImageBytes,
		AllowedTypes: g.opts.AllowedTypes,
	})
	if err != nil {
		g.recordRejection(ctx, in, err)
		return nil, err
	}

	rec := domain.NewGenerationRecord(in.Filename, int64(len(in.Data)), format)
	if err := g.repo.Create(ctx, rec); err != nil {
		return nil, err
	}

	prepared, err := imaging.ResizeToFit(in.Data, g.opts.MaxDimension)
	if err != nil {
		// Accepted input that cannot be prepared is a processing failure,
		// not a validation failure.
		perr := &domain.ProcessingError{Step: "resize", Err: err}
		g.finalizeFailure(ctx, rec, perr.Error())
		return nil, perr
	}

	if g.store != nil {
		if url, serr := g.store.SaveOriginal(ctx, rec.ID, in.Filename, prepared); serr != nil {
			g.logger.Warn().Err(serr).Str("generation_id", rec.ID).Msg("generate: original image not stored")
		} else {
			rec.OriginalURL = url
		}
	}

	if err := rec.StartProcessing(); err != nil {
		g.finalizeFailure(ctx, rec, err.Error())
		return nil, &domain.PersistenceError{Op: "start_processing", Err: err}
	}
	if err := g.repo.MarkProcessing(ctx, rec); err != nil {
		g.finalizeFailure(ctx, rec, err.Error())
		return nil, err
	}

	description := g.describer.Describe(ctx, prepared, format)
	prompt := stability.BuildPrompt(description)
	mask, err := stability.BuildApparelMask(prepared)
	if err != nil {
		perr := &domain.ProcessingError{Step: "mask", Err: err}
		g.finalizeFailure(ctx, rec, perr.Error())
		return nil, perr
	}

	generated, err := g.inpainter.Inpaint(ctx, stability.InpaintRequest{
		Image:  prepared,
		Mask:   mask,
		Prompt: prompt,
	})
	if err != nil {
		g.finalizeFailure(ctx, rec, err.Error())
		return nil, err
	}

	// Logo overlay is a best-effort enhancement: a failure is noted on the
	// completed record, never surfaced to the caller.
	final := generated
	logoApplied := false
	note := ""
	if len(g.logo) > 0 {
		if withLogo, oerr := imaging.OverlayLogo(generated, g.logo, g.opts.LogoWidthPct, g.opts.LogoPadding); oerr != nil {
			note = fmt.Sprintf("logo overlay failed: %v", oerr)
			g.logger.Warn().Err(oerr).Str("generation_id", rec.ID).Msg("generate: logo overlay failed")
		} else {
			final = withLogo
			logoApplied = true
		}
	}

	generatedURL := ""
	if g.store != nil {
		if url, serr := g.store.SaveGenerated(ctx, rec.ID, final); serr != nil {
			g.logger.Warn().Err(serr).Str("generation_id", rec.ID).Msg("generate: generated image not stored")
		} else {
			generatedURL = url
		}
	}

	if err := rec.Complete(domain.CompleteResult{
		GeneratedURL:  generatedURL,
		GeneratedSize: int64(len(final)),
		PromptUsed:    prompt,
		Description:   description,
		LogoApplied:   logoApplied,
		Note:          note,
	}); err != nil {
		g.finalizeFailure(ctx, rec, err.Error())
		return nil, &domain.PersistenceError{Op: "complete", Err: err}
	}
	if err := g.repo.Complete(ctx, rec); err != nil {
		// The generated image exists but the system has no record of it:
		// the request must fail (known limitation, see DESIGN.md).
		return nil, err
	}

	g.enqueueMirror(rec)
	g.logger.Info().
		Str("generation_id", rec.ID).
		Bool("logo_applied", logoApplied).
		Int("generated_bytes", len(final)).
		Msg("generate: completed")

	return &Result{RecordID: rec.ID, Image: final, LogoApplied: logoApplied}, nil
}

// recordRejection leaves a failed row behind for a rejected upload. The
// record is bookkeeping: persistence trouble here is logged, and the caller
// still gets the validation error.
func (g *Generator) recordRejection(ctx context.Context, in Input, cause error) {
	rec := domain.NewGenerationRecord(in.Filename, int64(len(in.Data)), formatFromContentType(in.ContentType))
	if err := g.repo.Create(ctx, rec); err != nil {
		g.logger.Error().Err(err).Msg("generate: failed to record rejected upload")
		return
	}
	_ = rec.Fail(cause.Error())
	if err := g.repo.Fail(ctx, rec); err != nil {
		g.logger.Error().Err(err).Str("generation_id", rec.ID).Msg("generate: failed to finalize rejected upload")
		return
	}
	g.enqueueMirror(rec)
}

// finalizeFailure drives the record to its failed terminal state.
func (g *Generator) finalizeFailure(ctx context.Context, rec *domain.GenerationRecord, message string) {
	if rec.Status.IsTerminal() {
		return
	}
	_ = rec.Fail(message)
	if err := g.repo.Fail(ctx, rec); err != nil {
		g.logger.Error().Err(err).Str("generation_id", rec.ID).Msg("generate: failed to finalize record")
		return
	}
	g.enqueueMirror(rec)
}

func (g *Generator) enqueueMirror(rec *domain.GenerationRecord) {
	if g.mirror == nil {
		return
	}
	g.mirror.Enqueue(rec)
}

func formatFromContentType(contentType string) string {
	switch contentType {
	case "image/jpeg", "image/jpg":
		return "jpeg"
	case "image/png":
		return "png"
	case "image/webp":
		return "webp"
	default:
		return "unknown"
	}
}

// IsClientError reports whether the pipeline error should map to a 4xx
// response rather than an upstream or internal failure.
func IsClientError(err error) bool {
	var verr *domain.ValidationError
	return errors.As(err, &verr)
}
