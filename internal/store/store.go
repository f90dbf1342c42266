package store

import (
	"context"
	"time"

	"github.com/google/uuid"

	"mediascribe-backend/internal/domain"
)

// Store defines persistence behavior for sessions, files, jobs and their
// dependent entities. Implementations must be safe for concurrent use, and
// the Update* methods must apply their mutation function exclusively: no
// other caller may observe or mutate the entity while the function runs.
// Mutation functions must not perform I/O.
type Store interface {
	CreateSession(ctx context.Context, s *domain.UploadSession) error
	GetSession(ctx context.Context, id uuid.UUID) (*domain.UploadSession, error)
	UpdateSession(ctx context.Context, id uuid.UUID, fn func(*domain.UploadSession) error) error
	DeleteSession(ctx context.Context, id uuid.UUID) error
	ExpiredSessions(ctx context.Context, olderThan time.Time) ([]domain.UploadSession, error)

	// File records are soft-deleted by setting DeletedAt through UpdateFile;
	// rows are never removed.
	CreateFile(ctx context.Context, f *domain.FileRecord) error
	GetFile(ctx context.Context, id uuid.UUID) (*domain.FileRecord, error)
	UpdateFile(ctx context.Context, id uuid.UUID, fn func(*domain.FileRecord) error) error
	ListFiles(ctx context.Context) ([]domain.FileRecord, error)

	SaveTranscription(ctx context.Context, t *domain.Transcription) error
	GetTranscription(ctx context.Context, fileID uuid.UUID) (*domain.Transcription, error)
	DeleteTranscription(ctx context.Context, fileID uuid.UUID) error

	SaveSummary(ctx context.Context, s *domain.Summary) error
	GetSummary(ctx context.Context, fileID uuid.UUID) (*domain.Summary, error)
	DeleteSummary(ctx context.Context, fileID uuid.UUID) error

	CreateJob(ctx context.Context, j *domain.Job) error
	GetJob(ctx context.Context, jobID string) (*domain.Job, error)
	UpdateJob(ctx context.Context, jobID string, fn func(*domain.Job) error) error
	DeleteJobsForFile(ctx context.Context, fileID uuid.UUID) error

	ToggleBookmark(ctx context.Context, owner, fileID uuid.UUID) (bool, error)
	ListBookmarks(ctx context.Context, owner uuid.UUID) ([]uuid.UUID, error)
	DeleteBookmarksForFile(ctx context.Context, fileID uuid.UUID) error
}
