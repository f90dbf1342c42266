package domain

import (
	"time"

	"github.com/google/uuid"
)

// Visibility controls who may read a completed file.
type Visibility string

const (
	VisibilityPrivate Visibility = "private"
	VisibilityPublic  Visibility = "public"
)

// UploadSession tracks an in-progress chunked upload before assembly.
type UploadSession struct {
	ID          uuid.UUID
	Owner       uuid.UUID
	Filename    string
	ContentType string
	TotalSize   int64
	TotalChunks int
	// ChunkSizes has one slot per declared chunk index. A zero entry means
	// the chunk has not arrived yet; chunks may arrive in any order.
	ChunkSizes     []int64
	ReceivedChunks int
	ReceivedBytes  int64
	CreatedAt      time.Time
}

// ChunkReceived reports whether the chunk at index has been stored.
func (s *UploadSession) ChunkReceived(index int) bool {
	return index >= 0 && index < len(s.ChunkSizes) && s.ChunkSizes[index] > 0
}

// FileRecord is the durable metadata for a completed upload.
type FileRecord struct {
	ID          uuid.UUID `json:"id"`
	Owner       uuid.UUID `json:"owner"`
	Filename    string    `json:"filename"`
	ContentType string    `json:"contentType"`
	Size        int64     `json:"size"`
	// ChunkSizes is the storage chunk manifest in index order. Storage
	// chunks are fixed-size and independent of the chunk sizes the client
	// chose during upload.
	ChunkSizes []int64    `json:"-"`
	Title      string     `json:"title,omitempty"`
	Visibility Visibility `json:"visibility"`
	CreatedAt  time.Time  `json:"createdAt"`
	DeletedAt  *time.Time `json:"-"`
}

// Deleted reports whether the record has been soft-deleted.
func (f *FileRecord) Deleted() bool {
	return f.DeletedAt != nil
}

// AccessibleBy reports whether caller may read the file.
func (f *FileRecord) AccessibleBy(caller uuid.UUID) bool {
	return f.Visibility == VisibilityPublic || f.Owner == caller
}

// TranscriptionSegment is one timed slice of a transcription.
type TranscriptionSegment struct {
	ID    int     `json:"id"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}

// Transcription is the speech-to-text result for a file.
type Transcription struct {
	FileID    uuid.UUID              `json:"fileId"`
	Text      string                 `json:"text"`
	Language  string                 `json:"language"`
	Segments  []TranscriptionSegment `json:"segments"`
	CreatedAt time.Time              `json:"createdAt"`
}

// Summary is the LLM summarization result for a file.
type Summary struct {
	FileID    uuid.UUID `json:"fileId"`
	Title     string    `json:"title"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"createdAt"`
}

// JobKind distinguishes the two background pipelines.
type JobKind string

const (
	JobTranscription JobKind = "transcription"
	JobSummarization JobKind = "summarization"
)

// JobState is the three-state status callers poll.
type JobState string

const (
	JobPending   JobState = "pending"
	JobCompleted JobState = "completed"
	JobFailed    JobState = "failed"
)

// Job maps an opaque job identifier to the file it targets. Once a job
// reaches a terminal state it never transitions again.
type Job struct {
	ID        string
	FileID    uuid.UUID
	Kind      JobKind
	State     JobState
	Result    string
	Error     string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Terminal reports whether the job reached Completed or Failed.
func (j *Job) Terminal() bool {
	return j.State == JobCompleted || j.State == JobFailed
}

// Bookmark marks a file as saved by a caller.
type Bookmark struct {
	Owner  uuid.UUID
	FileID uuid.UUID
}

// FileTypeFilter narrows artifact listings by media kind.
type FileTypeFilter string

const (
	FileTypeVideo FileTypeFilter = "video"
	FileTypeAudio FileTypeFilter = "audio"
)

// SortOrder selects how artifact listings are ordered.
type SortOrder string

const (
	SortNewest    SortOrder = "newest"
	SortOldest    SortOrder = "oldest"
	SortAlphaAsc  SortOrder = "alpha_asc"
	SortAlphaDesc SortOrder = "alpha_desc"
)

// ArtifactFilter is an optional filter/sort spec for artifact listings.
type ArtifactFilter struct {
	FileType FileTypeFilter
	Language string
	Search   string
	Sort     SortOrder
}

// UserArtifact pairs a file record with per-caller bookmark state plus the
// transcription/summary payloads that have arrived so far.
type UserArtifact struct {
	File          FileRecord     `json:"file"`
	Transcription *Transcription `json:"transcription,omitempty"`
	Summary       *Summary       `json:"summary,omitempty"`
	IsBookmarked  bool           `json:"isBookmarked"`
}
