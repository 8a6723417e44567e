package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// GenerationStatus enumerates record lifecycle states.
type GenerationStatus string

const (
	GenerationStatusPending    GenerationStatus = "pending"
	GenerationStatusProcessing GenerationStatus = "processing"
	GenerationStatusCompleted  GenerationStatus = "completed"
	GenerationStatusFailed     GenerationStatus = "failed"
)

// IsTerminal reports whether no further transition is allowed from the status.
func (s GenerationStatus) IsTerminal() bool {
	return s == GenerationStatusCompleted || s == GenerationStatusFailed
}

// ParseGenerationStatus validates a free-form status filter value.
func ParseGenerationStatus(v string) (GenerationStatus, error) {
	switch GenerationStatus(strings.ToLower(strings.TrimSpace(v))) {
	case GenerationStatusPending:
		return GenerationStatusPending, nil
	case GenerationStatusProcessing:
		return GenerationStatusProcessing, nil
	case GenerationStatusCompleted:
		return GenerationStatusCompleted, nil
	case GenerationStatusFailed:
		return GenerationStatusFailed, nil
	default:
		return "", fmt.Errorf("domain: unknown status %q", v)
	}
}

// GenerationRecord tracks a single apparel-generation request from upload to
// terminal state. Input facts are immutable once set; output facts are set at
// most once, on completion.
type GenerationRecord struct {
	ID string

	OriginalFilename string
	OriginalURL      string
	OriginalSize     int64
	OriginalFormat   string

	GeneratedURL  string
	GeneratedSize int64

	PromptUsed   string
	Description  string
	LogoApplied  bool
	ErrorMessage string

	Status GenerationStatus

	CreatedAt   time.Time
	StartedAt   *time.Time
	CompletedAt *time.Time
}

// NewGenerationRecord creates a pending record with a fresh identifier.
// Identical inputs submitted twice yield independent records.
func NewGenerationRecord(filename string, size int64, format string) *GenerationRecord {
	return &GenerationRecord{
		ID:               uuid.NewString(),
		OriginalFilename: filename,
		OriginalSize:     size,
		OriginalFormat:   format,
		Status:           GenerationStatusPending,
		CreatedAt:        time.Now().UTC(),
	}
}

// StartProcessing moves the record from pending to processing.
func (r *GenerationRecord) StartProcessing() error {
	if r.Status != GenerationStatusPending {
		return transitionError(r.Status, GenerationStatusProcessing)
	}
	now := time.Now().UTC()
	r.Status = GenerationStatusProcessing
	r.StartedAt = &now
	return nil
}

// CompleteResult carries the output facts recorded on completion. A logo
// overlay failure is non-fatal: LogoApplied stays false and Note documents it
// without changing the terminal status.
type CompleteResult struct {
	GeneratedURL  string
	GeneratedSize int64
	PromptUsed    string
	Description   string
	LogoApplied   bool
	Note          string
}

// Complete moves the record from processing to completed and fixes the output facts.
func (r *GenerationRecord) Complete(res CompleteResult) error {
	if r.Status != GenerationStatusProcessing {
		return transitionError(r.Status, GenerationStatusCompleted)
	}
	now := time.Now().UTC()
	r.Status = GenerationStatusCompleted
	r.CompletedAt = &now
	r.GeneratedURL = res.GeneratedURL
	r.GeneratedSize = res.GeneratedSize
	r.PromptUsed = res.PromptUsed
	r.Description = res.Description
	r.LogoApplied = res.LogoApplied
	r.ErrorMessage = res.Note
	return nil
}

// Fail moves the record from pending or processing to failed. A failed record
// is never retried in place; a retry creates a new record.
func (r *GenerationRecord) Fail(message string) error {
	if r.Status.IsTerminal() {
		return transitionError(r.Status, GenerationStatusFailed)
	}
	if strings.TrimSpace(message) == "" {
		message = "unknown error"
	}
	now := time.Now().UTC()
	r.Status = GenerationStatusFailed
	r.CompletedAt = &now
	r.ErrorMessage = message
	return nil
}

// Duration returns the time spent between start and completion, zero when the
// record never reached a terminal state.
func (r *GenerationRecord) Duration() time.Duration {
	if r.StartedAt == nil || r.CompletedAt == nil {
		return 0
	}
	return r.CompletedAt.Sub(*r.StartedAt)
}

func transitionError(from, to GenerationStatus) error {
	return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
}
