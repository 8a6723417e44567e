package service

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"server/internal/domain"
	"server/internal/providers/stability"
	"server/internal/providers/vision"
)

type stubRepo struct {
	createErr     error
	markErr       error
	completeErr   error
	failErr       error
	created       []*domain.GenerationRecord
	markedIDs     []string
	completedRecs []*domain.GenerationRecord
	failedRecs    []*domain.GenerationRecord
}

func (s *stubRepo) Create(ctx context.Context, rec *domain.GenerationRecord) error {
	if s.createErr != nil {
		return s.createErr
	}
	s.created = append(s.created, rec)
	return nil
}

func (s *stubRepo) MarkProcessing(ctx context.Context, rec *domain.GenerationRecord) error {
	if s.markErr != nil {
		return s.markErr
	}
	s.markedIDs = append(s.markedIDs, rec.ID)
	return nil
}

func (s *stubRepo) Complete(ctx context.Context, rec *domain.GenerationRecord) error {
	if s.completeErr != nil {
		return s.completeErr
	}
	s.completedRecs = append(s.completedRecs, rec)
	return nil
}

func (s *stubRepo) Fail(ctx context.Context, rec *domain.GenerationRecord) error {
	if s.failErr != nil {
		return s.failErr
	}
	s.failedRecs = append(s.failedRecs, rec)
	return nil
}

func (s *stubRepo) GetByID(ctx context.Context, id string) (*domain.GenerationRecord, error) {
	return nil, domain.ErrNotFound
}

func (s *stubRepo) List(ctx context.Context, status *domain.GenerationStatus, limit, offset int) ([]domain.GenerationRecord, error) {
	return nil, nil
}

func (s *stubRepo) LiveStatistics(ctx context.Context) (*domain.LiveStatistics, error) {
	return &domain.LiveStatistics{}, nil
}

// terminalCount reports how many terminal record writes the repo saw.
func (s *stubRepo) terminalCount() int {
	return len(s.completedRecs) + len(s.failedRecs)
}

type inpainterFunc func(ctx context.Context, req stability.InpaintRequest) ([]byte, error)

func (f inpainterFunc) Inpaint(ctx context.Context, req stability.InpaintRequest) ([]byte, error) {
	return f(ctx, req)
}

type describerFunc func(ctx context.Context, image []byte, format string) string

func (f describerFunc) Describe(ctx context.Context, image []byte, format string) string {
	return f(ctx, image, format)
}

type stubMirror struct {
	records []*domain.GenerationRecord
}

func (m *stubMirror) Enqueue(rec *domain.GenerationRecord) {
	m.records = append(m.records, rec)
}

type stubStore struct {
	saveErr   error
	originals int
	generated int
}

func (s *stubStore) SaveOriginal(ctx context.Context, generationID, filename string, data []byte) (string, error) {
	if s.saveErr != nil {
		return "", s.saveErr
	}
	s.originals++
	return "http://files/originals/" + generationID, nil
}

func (s *stubStore) SaveGenerated(ctx context.Context, generationID string, data []byte) (string, error) {
	if s.saveErr != nil {
		return "", s.saveErr
	}
	s.generated++
	return "http://files/generations/" + generationID + ".png", nil
}

func pngBytes(t *testing.T, w, h int, c color.Color) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}

func testOptions() Options {
	return Options{
		MaxImageBytes: 10 << 20,
		AllowedTypes:  []string{"image/jpeg", "image/png", "image/webp"},
		MaxDimension:  1024,
		LogoWidthPct:  10,
		LogoPadding:   2,
	}
}

func newTestGenerator(repo *stubRepo, inpaint inpainterFunc, store ImageStore, mirror Mirror, logo []byte) *Generator {
	describe := describerFunc(func(ctx context.Context, image []byte, format string) string {
		return "a corgi"
	})
	return NewGenerator(testOptions(), repo, inpaint, describe, store, mirror, logo, zerolog.Nop())
}

func TestGenerateSuccess(t *testing.T) {
	repo := &stubRepo{}
	mirror := &stubMirror{}
	store := &stubStore{}
	generated := pngBytes(t, 64, 64, color.NRGBA{R: 255, A: 255})
	logo := pngBytes(t, 8, 8, color.NRGBA{B: 255, A: 255})

	var gotPrompt string
	inpaint := inpainterFunc(func(ctx context.Context, req stability.InpaintRequest) ([]byte, error) {
		if len(req.Mask) == 0 {
			t.Fatal("expected a mask in the inpaint request")
		}
		gotPrompt = req.Prompt
		return generated, nil
	})

	g := newTestGenerator(repo, inpaint, store, mirror, logo)
	res, err := g.Generate(context.Background(), Input{
		Data:        pngBytes(t, 32, 32, color.NRGBA{G: 255, A: 255}),
		Filename:    "dog.png",
		ContentType: "image/png",
	})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}

	if !res.LogoApplied {
		t.Error("expected logo to be applied")
	}
	if res.RecordID == "" {
		t.Error("expected a record id")
	}
	if !strings.Contains(gotPrompt, "a corgi") {
		t.Errorf("prompt does not carry the description: %q", gotPrompt)
	}
	if repo.terminalCount() != 1 || len(repo.completedRecs) != 1 {
		t.Fatalf("expected exactly one completed record, got %d completed / %d failed",
			len(repo.completedRecs), len(repo.failedRecs))
	}
	rec := repo.completedRecs[0]
	if rec.Status != domain.GenerationStatusCompleted {
		t.Errorf("record status = %s", rec.Status)
	}
	if rec.GeneratedURL == "" || rec.OriginalURL == "" {
		t.Error("expected stored URLs on the completed record")
	}
	if rec.ErrorMessage != "" {
		t.Errorf("completed record must not carry an error message, got %q", rec.ErrorMessage)
	}
	if len(mirror.records) != 1 || mirror.records[0].Status != domain.GenerationStatusCompleted {
		t.Fatalf("expected the completed record to be mirrored, got %v", mirror.records)
	}
	if store.originals != 1 || store.generated != 1 {
		t.Errorf("expected both images stored, got %d/%d", store.originals, store.generated)
	}
}

func TestGenerateRejectsOversizeBeforeProcessing(t *testing.T) {
	repo := &stubRepo{}
	called := false
	inpaint := inpainterFunc(func(ctx context.Context, req stability.InpaintRequest) ([]byte, error) {
		called = true
		return nil, nil
	})

	g := NewGenerator(Options{
		MaxImageBytes: 16,
		AllowedTypes:  []string{"image/png"},
		MaxDimension:  1024,
	}, repo, inpaint, vision.Static{}, nil, nil, nil, zerolog.Nop())

	_, err := g.Generate(context.Background(), Input{
		Data:        pngBytes(t, 32, 32, color.NRGBA{A: 255}),
		Filename:    "big.png",
		ContentType: "image/png",
	})

	var verr *domain.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if verr.Reason != domain.ValidationTooLarge {
		t.Errorf("reason = %s", verr.Reason)
	}
	if called {
		t.Error("inpainter must not run for rejected input")
	}
	if len(repo.failedRecs) != 1 {
		t.Fatalf("expected one failed record for the rejection, got %d", len(repo.failedRecs))
	}
	if !strings.Contains(repo.failedRecs[0].ErrorMessage, "exceeds") {
		t.Errorf("failed record message = %q", repo.failedRecs[0].ErrorMessage)
	}
}

func TestGenerateUpstreamFailure(t *testing.T) {
	repo := &stubRepo{}
	mirror := &stubMirror{}
	upstream := &domain.UpstreamError{Kind: domain.UpstreamTimeout, Err: context.DeadlineExceeded}
	inpaint := inpainterFunc(func(ctx context.Context, req stability.InpaintRequest) ([]byte, error) {
		return nil, upstream
	})

	g := newTestGenerator(repo, inpaint, nil, mirror, nil)
	_, err := g.Generate(context.Background(), Input{
		Data:        pngBytes(t, 32, 32, color.NRGBA{A: 255}),
		Filename:    "dog.png",
		ContentType: "image/png",
	})

	var uerr *domain.UpstreamError
	if !errors.As(err, &uerr) {
		t.Fatalf("expected UpstreamError, got %v", err)
	}
	if repo.terminalCount() != 1 || len(repo.failedRecs) != 1 {
		t.Fatalf("expected exactly one failed record, got %d completed / %d failed",
			len(repo.completedRecs), len(repo.failedRecs))
	}
	rec := repo.failedRecs[0]
	if rec.ErrorMessage == "" {
		t.Error("failed record must carry an error message")
	}
	if rec.GeneratedURL != "" || rec.GeneratedSize != 0 {
		t.Error("failed record must not carry generated outputs")
	}
	if len(mirror.records) != 1 || mirror.records[0].Status != domain.GenerationStatusFailed {
		t.Fatal("expected the failed record to be mirrored")
	}
}

func TestGenerateLogoFailureIsNonFatal(t *testing.T) {
	repo := &stubRepo{}
	generated := pngBytes(t, 64, 64, color.NRGBA{R: 255, A: 255})
	inpaint := inpainterFunc(func(ctx context.Context, req stability.InpaintRequest) ([]byte, error) {
		return generated, nil
	})

	g := newTestGenerator(repo, inpaint, nil, nil, []byte("not an image"))
	res, err := g.Generate(context.Background(), Input{
		Data:        pngBytes(t, 32, 32, color.NRGBA{A: 255}),
		Filename:    "dog.png",
		ContentType: "image/png",
	})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}

	if res.LogoApplied {
		t.Error("logo must not be marked applied after an overlay failure")
	}
	if !bytes.Equal(res.Image, generated) {
		t.Error("expected the unmodified generated image")
	}
	rec := repo.completedRecs[0]
	if rec.Status != domain.GenerationStatusCompleted {
		t.Fatalf("record status = %s", rec.Status)
	}
	if !strings.Contains(rec.ErrorMessage, "logo overlay failed") {
		t.Errorf("expected an overlay note on the record, got %q", rec.ErrorMessage)
	}
}

func TestGenerateStorageFailureIsBestEffort(t *testing.T) {
	repo := &stubRepo{}
	store := &stubStore{saveErr: errors.New("disk full")}
	generated := pngBytes(t, 64, 64, color.NRGBA{R: 255, A: 255})
	inpaint := inpainterFunc(func(ctx context.Context, req stability.InpaintRequest) ([]byte, error) {
		return generated, nil
	})

	g := newTestGenerator(repo, inpaint, store, nil, nil)
	res, err := g.Generate(context.Background(), Input{
		Data:        pngBytes(t, 32, 32, color.NRGBA{A: 255}),
		Filename:    "dog.png",
		ContentType: "image/png",
	})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}

	if len(res.Image) == 0 {
		t.Fatal("expected image bytes despite storage failure")
	}
	rec := repo.completedRecs[0]
	if rec.OriginalURL != "" || rec.GeneratedURL != "" {
		t.Error("expected empty URLs when storage writes fail")
	}
}

func TestGeneratePersistenceFailureIsFatal(t *testing.T) {
	repo := &stubRepo{createErr: &domain.PersistenceError{Op: "insert", Err: errors.New("connection refused")}}
	called := false
	inpaint := inpainterFunc(func(ctx context.Context, req stability.InpaintRequest) ([]byte, error) {
		called = true
		return nil, nil
	})

	g := newTestGenerator(repo, inpaint, nil, nil, nil)
	_, err := g.Generate(context.Background(), Input{
		Data:        pngBytes(t, 32, 32, color.NRGBA{A: 255}),
		Filename:    "dog.png",
		ContentType: "image/png",
	})

	var perr *domain.PersistenceError
	if !errors.As(err, &perr) {
		t.Fatalf("expected PersistenceError, got %v", err)
	}
	if called {
		t.Error("inpainter must not run when the record cannot be created")
	}
}

func TestGenerateDefaultsToFallbackDescription(t *testing.T) {
	repo := &stubRepo{}
	var gotPrompt string
	inpaint := inpainterFunc(func(ctx context.Context, req stability.InpaintRequest) ([]byte, error) {
		gotPrompt = req.Prompt
		return pngBytes(t, 16, 16, color.NRGBA{A: 255}), nil
	})

	// nil describer falls back to the static description.
	g := NewGenerator(testOptions(), repo, inpaint, nil, nil, nil, nil, zerolog.Nop())
	if _, err := g.Generate(context.Background(), Input{
		Data:        pngBytes(t, 32, 32, color.NRGBA{A: 255}),
		Filename:    "dog.png",
		ContentType: "image/png",
	}); err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if !strings.Contains(gotPrompt, vision.FallbackDescription) {
		t.Errorf("prompt does not carry the fallback description: %q", gotPrompt)
	}
}

func TestGenerateIdenticalInputsGetDistinctRecords(t *testing.T) {
	repo := &stubRepo{}
	inpaint := inpainterFunc(func(ctx context.Context, req stability.InpaintRequest) ([]byte, error) {
		return pngBytes(t, 16, 16, color.NRGBA{A: 255}), nil
	})

	g := newTestGenerator(repo, inpaint, nil, nil, nil)
	in := Input{
		Data:        pngBytes(t, 32, 32, color.NRGBA{A: 255}),
		Filename:    "dog.png",
		ContentType: "image/png",
	}
	first, err := g.Generate(context.Background(), in)
	if err != nil {
		t.Fatalf("first Generate: %v", err)
	}
	second, err := g.Generate(context.Background(), in)
	if err != nil {
		t.Fatalf("second Generate: %v", err)
	}
	if first.RecordID == second.RecordID {
		t.Fatal("identical inputs must produce distinct records")
	}
}

func TestIsClientError(t *testing.T) {
	if !IsClientError(&domain.ValidationError{Reason: domain.ValidationBadType}) {
		t.Error("validation errors are client errors")
	}
	if IsClientError(&domain.UpstreamError{Kind: domain.UpstreamTimeout}) {
		t.Error("upstream errors are not client errors")
	}
}
