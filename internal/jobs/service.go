package jobs

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"mediascribe-backend/internal/chunkstore"
	"mediascribe-backend/internal/domain"
	"mediascribe-backend/internal/llm"
	"mediascribe-backend/internal/store"
	"mediascribe-backend/internal/transcriber"
)

// Service tracks background transcription and summarization jobs and drives
// the external collaborators that execute them. Job status is monotone: once
// a job is recorded Completed or Failed it never reverts.
type Service struct {
	store       store.Store
	chunks      *chunkstore.Store
	transcriber transcriber.Client
	llm         llm.Client
	attempts    int
}

// NewService constructs a Service instance. attempts bounds the LLM retries
// per summarization.
func NewService(st store.Store, chunks *chunkstore.Store, tc transcriber.Client, lc llm.Client, attempts int) *Service {
	if attempts <= 0 {
		attempts = 1
	}
	return &Service{store: st, chunks: chunks, transcriber: tc, llm: lc, attempts: attempts}
}

// StartTranscription streams the assembled file to the external transcriber
// and registers the job id it assigns. The caller's response is only an
// acknowledgment; the result arrives through polling and IngestResult.
func (s *Service) StartTranscription(ctx context.Context, fileID uuid.UUID) (string, error) {
	f, err := s.store.GetFile(ctx, fileID)
	if err != nil {
		return "", err
	}
	if f.Deleted() {
		return "", store.ErrFileNotFound
	}

	data, err := s.chunks.OpenFile(f.ID, len(f.ChunkSizes))
	if err != nil {
		return "", fmt.Errorf("open file %s: %w", f.ID, err)
	}
	defer data.Close()

	jobID, err := s.transcriber.SubmitFile(ctx, f.ID.String(), f.Filename, f.ContentType, data)
	if err != nil {
		return "", err
	}

	now := time.Now().UTC()
	job := &domain.Job{
		ID:        jobID,
		FileID:    f.ID,
		Kind:      domain.JobTranscription,
		State:     domain.JobPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.store.CreateJob(ctx, job); err != nil {
		return "", err
	}
	return jobID, nil
}

// PollStatus reports the job's current state. Terminal local state wins;
// otherwise transcription jobs are delegated to the external collaborator.
// Polling never mutates local job state.
func (s *Service) PollStatus(ctx context.Context, jobID string) (*domain.JobStatusView, error) {
	job, err := s.store.GetJob(ctx, jobID)
	if err != nil {
		return nil, err
	}

	view := &domain.JobStatusView{
		JobID:  job.ID,
		FileID: job.FileID.String(),
		Kind:   job.Kind,
		State:  job.State,
		Result: job.Result,
		Error:  job.Error,
	}
	if job.Terminal() || job.Kind != domain.JobTranscription {
		return view, nil
	}

	state, detail, err := s.transcriber.Status(ctx, jobID)
	if err != nil {
		return nil, err
	}
	view.State = state
	switch state {
	case domain.JobCompleted:
		view.Result = detail
	case domain.JobFailed:
		view.Error = detail
	}
	return view, nil
}

// IngestResult records a finished transcription against the file its job was
// opened for. The payload is parsed leniently: when the structured fields
// are absent the whole payload becomes the transcript text with language
// "unknown". Ingesting an already-terminal job is a no-op.
func (s *Service) IngestResult(ctx context.Context, jobID, payload string) error {
	job, err := s.store.GetJob(ctx, jobID)
	if err != nil {
		return err
	}
	if job.Terminal() {
		return nil
	}

	// The file may have been deleted while the job was in flight; record
	// the failure instead of resurrecting state for a gone file.
	f, err := s.store.GetFile(ctx, job.FileID)
	if err != nil {
		if errors.Is(err, store.ErrFileNotFound) {
			return s.markFailed(ctx, jobID, "file deleted before transcription finished")
		}
		return err
	}
	if f.Deleted() {
		return s.markFailed(ctx, jobID, "file deleted before transcription finished")
	}

	text, language, segments := parseTranscriptionPayload(payload)
	t := &domain.Transcription{
		FileID:    job.FileID,
		Text:      text,
		Language:  language,
		Segments:  segments,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.store.SaveTranscription(ctx, t); err != nil {
		return err
	}
	return s.markCompleted(ctx, jobID, text)
}

// GetTranscription returns the stored transcription for a file.
func (s *Service) GetTranscription(ctx context.Context, fileID uuid.UUID) (*domain.Transcription, error) {
	return s.store.GetTranscription(ctx, fileID)
}

// GetSummary returns the stored summary for a file.
func (s *Service) GetSummary(ctx context.Context, fileID uuid.UUID) (*domain.Summary, error) {
	return s.store.GetSummary(ctx, fileID)
}

// StartSummarization kicks off fire-and-forget summarization of the file's
// transcription. Without a transcription it logs and no-ops; the returned
// job id is empty in that case. Errors inside the background work never
// reach a caller: they land in the job's terminal Failed state.
func (s *Service) StartSummarization(ctx context.Context, fileID uuid.UUID) (string, error) {
	tr, err := s.store.GetTranscription(ctx, fileID)
	if err != nil {
		if errors.Is(err, store.ErrTranscriptionNotFound) {
			log.Printf("[jobs] no transcription found for %s, skipping summarization", fileID)
			return "", nil
		}
		return "", err
	}

	now := time.Now().UTC()
	job := &domain.Job{
		ID:        uuid.NewString(),
		FileID:    fileID,
		Kind:      domain.JobSummarization,
		State:     domain.JobPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.store.CreateJob(ctx, job); err != nil {
		return "", err
	}

	go s.runSummarization(job.ID, fileID, tr)
	return job.ID, nil
}

// runSummarization is the supervised background task. A panic anywhere in
// the call path, the LLM client included, is converted into the job's
// Failed state so the next poll observes failure instead of Pending forever.
func (s *Service) runSummarization(jobID string, fileID uuid.UUID, tr *domain.Transcription) {
	ctx := context.Background()
	defer func() {
		if r := recover(); r != nil {
			log.Printf("[jobs] summarization for %s panicked: %v", fileID, r)
			_ = s.markFailed(ctx, jobID, fmt.Sprintf("internal fault: %v", r))
		}
	}()

	prompt := buildPrompt(tr.Text)

	var reply string
	var lastErr error
	for attempt := 1; attempt <= s.attempts; attempt++ {
		reply, lastErr = s.llm.Generate(ctx, prompt)
		if lastErr == nil {
			break
		}
		log.Printf("[jobs] summarization attempt %d/%d for %s failed: %v", attempt, s.attempts, fileID, lastErr)
	}
	if lastErr != nil {
		_ = s.markFailed(ctx, jobID, lastErr.Error())
		return
	}

	title, body := ParseSummaryReply(reply)

	// Re-fetch the file: it may have been deleted while the LLM call was in
	// flight. Fail soft rather than writing results for a gone file.
	f, err := s.store.GetFile(ctx, fileID)
	if err != nil || f.Deleted() {
		_ = s.markFailed(ctx, jobID, "file deleted during summarization")
		return
	}

	sum := &domain.Summary{
		FileID:    fileID,
		Title:     title,
		Text:      body,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.store.SaveSummary(ctx, sum); err != nil {
		_ = s.markFailed(ctx, jobID, fmt.Sprintf("save summary: %v", err))
		return
	}
	if err := s.store.UpdateFile(ctx, fileID, func(f *domain.FileRecord) error {
		f.Title = title
		return nil
	}); err != nil {
		// The file vanished after the summary was written; undo the orphan.
		_ = s.store.DeleteSummary(ctx, fileID)
		_ = s.markFailed(ctx, jobID, "file deleted during summarization")
		return
	}

	_ = s.markCompleted(ctx, jobID, body)
}

func (s *Service) markCompleted(ctx context.Context, jobID, result string) error {
	return s.store.UpdateJob(ctx, jobID, func(j *domain.Job) error {
		if j.Terminal() {
			return nil
		}
		j.State = domain.JobCompleted
		j.Result = result
		j.UpdatedAt = time.Now().UTC()
		return nil
	})
}

func (s *Service) markFailed(ctx context.Context, jobID, reason string) error {
	err := s.store.UpdateJob(ctx, jobID, func(j *domain.Job) error {
		if j.Terminal() {
			return nil
		}
		j.State = domain.JobFailed
		j.Error = reason
		j.UpdatedAt = time.Now().UTC()
		return nil
	})
	if err != nil && !errors.Is(err, store.ErrJobNotFound) {
		log.Printf("[jobs] record failure for job %s: %v", jobID, err)
	}
	return err
}
