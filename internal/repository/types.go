package repository

import (
	"time"

	"github.com/google/uuid"

	"github.com/unitflow/unitflow/constants"
)

// Submission is the persisted row for an uploaded document. The raw bytes on
// disk never change after upload; Status and ExtractedText are owned by the
// extraction state machine while a run is in flight.
type Submission struct {
	ID            uuid.UUID
	Kind          constants.DocumentKind
	Status        constants.SubmissionStatus
	FilePath      string
	FileExt       string
	ExtractedText string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// ExtractionRun is the append-only audit record for one extraction attempt.
// A finished run is never mutated; retries create new rows.
type ExtractionRun struct {
	ID                uuid.UUID
	SubmissionID      uuid.UUID
	Status            constants.RunStatus
	IsScanned         bool
	OverallConfidence float64
	PageCount         int
	Warnings          []string
	SourceMeta        map[string]any
	ErrorMessage      *string
	StartedAt         time.Time
	FinishedAt        *time.Time
}

// PageRow is one extracted page belonging to a run.
type PageRow struct {
	RunID      uuid.UUID
	PageNumber int
	Text       string
	Confidence float64
}
