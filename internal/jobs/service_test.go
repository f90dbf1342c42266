package jobs

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mediascribe-backend/internal/chunkstore"
	"mediascribe-backend/internal/domain"
	"mediascribe-backend/internal/store"
)

type fakeTranscriber struct {
	jobID     string
	submitted []byte
	state     domain.JobState
	detail    string
	err       error
}

func (f *fakeTranscriber) SubmitFile(ctx context.Context, fileID, filename, contentType string, data io.Reader) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	body, err := io.ReadAll(data)
	if err != nil {
		return "", err
	}
	f.submitted = body
	return f.jobID, nil
}

func (f *fakeTranscriber) Status(ctx context.Context, jobID string) (domain.JobState, string, error) {
	return f.state, f.detail, f.err
}

func (f *fakeTranscriber) Result(ctx context.Context, jobID string) (string, error) {
	return f.detail, f.err
}

type fakeLLM struct {
	fn func(ctx context.Context, prompt string) (string, error)
}

func (f *fakeLLM) Generate(ctx context.Context, prompt string) (string, error) {
	return f.fn(ctx, prompt)
}

func newTestService(t *testing.T, tc *fakeTranscriber, lc *fakeLLM, attempts int) (*Service, *store.MemoryStore, *chunkstore.Store) {
	t.Helper()
	chunks, err := chunkstore.NewStore(t.TempDir())
	require.NoError(t, err)
	st := store.NewMemoryStore()
	if lc == nil {
		lc = &fakeLLM{fn: func(context.Context, string) (string, error) {
			return "", errors.New("llm not configured for this test")
		}}
	}
	return NewService(st, chunks, tc, lc, attempts), st, chunks
}

func seedFile(t *testing.T, st *store.MemoryStore, chunks *chunkstore.Store, content string) uuid.UUID {
	t.Helper()
	sessionID := uuid.New()
	fileID := uuid.New()
	_, _, err := chunks.WriteSessionChunk(sessionID, 0, strings.NewReader(content))
	require.NoError(t, err)
	total, sizes, err := chunks.Promote(sessionID, fileID, 1, 4)
	require.NoError(t, err)

	require.NoError(t, st.CreateFile(context.Background(), &domain.FileRecord{
		ID:          fileID,
		Owner:       uuid.New(),
		Filename:    "clip.mp4",
		ContentType: "video/mp4",
		Size:        total,
		ChunkSizes:  sizes,
		Visibility:  domain.VisibilityPrivate,
		CreatedAt:   time.Now().UTC(),
	}))
	return fileID
}

func softDeleteFile(st *store.MemoryStore, fileID uuid.UUID) error {
	now := time.Now().UTC()
	return st.UpdateFile(context.Background(), fileID, func(f *domain.FileRecord) error {
		f.DeletedAt = &now
		return nil
	})
}

func waitForTerminal(t *testing.T, st *store.MemoryStore, jobID string) *domain.Job {
	t.Helper()
	var job *domain.Job
	require.Eventually(t, func() bool {
		j, err := st.GetJob(context.Background(), jobID)
		if err != nil || !j.Terminal() {
			return false
		}
		job = j
		return true
	}, 2*time.Second, 10*time.Millisecond)
	return job
}

func TestStartTranscription(t *testing.T) {
	tc := &fakeTranscriber{jobID: "remote-1"}
	svc, st, chunks := newTestService(t, tc, nil, 1)
	ctx := context.Background()
	fileID := seedFile(t, st, chunks, "hello world")

	jobID, err := svc.StartTranscription(ctx, fileID)
	require.NoError(t, err)
	assert.Equal(t, "remote-1", jobID)
	assert.Equal(t, "hello world", string(tc.submitted))

	job, err := st.GetJob(ctx, jobID)
	require.NoError(t, err)
	assert.Equal(t, fileID, job.FileID)
	assert.Equal(t, domain.JobTranscription, job.Kind)
	assert.Equal(t, domain.JobPending, job.State)

	t.Run("unknown file", func(t *testing.T) {
		_, err := svc.StartTranscription(ctx, uuid.New())
		assert.ErrorIs(t, err, store.ErrFileNotFound)
	})

	t.Run("soft-deleted file", func(t *testing.T) {
		gone := seedFile(t, st, chunks, "bye")
		require.NoError(t, softDeleteFile(st, gone))
		_, err := svc.StartTranscription(ctx, gone)
		assert.ErrorIs(t, err, store.ErrFileNotFound)
	})
}

func TestPollStatus(t *testing.T) {
	ctx := context.Background()

	t.Run("pending job delegates to remote", func(t *testing.T) {
		tc := &fakeTranscriber{jobID: "remote-1", state: domain.JobCompleted, detail: "transcript ready"}
		svc, st, chunks := newTestService(t, tc, nil, 1)
		fileID := seedFile(t, st, chunks, "hello")
		jobID, err := svc.StartTranscription(ctx, fileID)
		require.NoError(t, err)

		view, err := svc.PollStatus(ctx, jobID)
		require.NoError(t, err)
		assert.Equal(t, domain.JobCompleted, view.State)
		assert.Equal(t, "transcript ready", view.Result)

		// Polling reports the remote state without persisting it.
		job, err := st.GetJob(ctx, jobID)
		require.NoError(t, err)
		assert.Equal(t, domain.JobPending, job.State)
	})

	t.Run("terminal local state wins", func(t *testing.T) {
		tc := &fakeTranscriber{state: domain.JobCompleted}
		svc, st, _ := newTestService(t, tc, nil, 1)
		require.NoError(t, st.CreateJob(ctx, &domain.Job{
			ID: "done-1", FileID: uuid.New(), Kind: domain.JobTranscription,
			State: domain.JobFailed, Error: "boom",
		}))

		view, err := svc.PollStatus(ctx, "done-1")
		require.NoError(t, err)
		assert.Equal(t, domain.JobFailed, view.State)
		assert.Equal(t, "boom", view.Error)
	})

	t.Run("summarization jobs are never delegated", func(t *testing.T) {
		tc := &fakeTranscriber{err: errors.New("remote must not be called")}
		svc, st, _ := newTestService(t, tc, nil, 1)
		require.NoError(t, st.CreateJob(ctx, &domain.Job{
			ID: "sum-1", FileID: uuid.New(), Kind: domain.JobSummarization, State: domain.JobPending,
		}))

		view, err := svc.PollStatus(ctx, "sum-1")
		require.NoError(t, err)
		assert.Equal(t, domain.JobPending, view.State)
	})

	t.Run("unknown job", func(t *testing.T) {
		svc, _, _ := newTestService(t, &fakeTranscriber{}, nil, 1)
		_, err := svc.PollStatus(ctx, "missing")
		assert.ErrorIs(t, err, store.ErrJobNotFound)
	})
}

func TestIngestResult(t *testing.T) {
	ctx := context.Background()

	t.Run("structured payload", func(t *testing.T) {
		svc, st, chunks := newTestService(t, &fakeTranscriber{jobID: "remote-1"}, nil, 1)
		fileID := seedFile(t, st, chunks, "hello")
		jobID, err := svc.StartTranscription(ctx, fileID)
		require.NoError(t, err)

		payload := `{"text":"hello there","language":"en","segments":[{"id":0,"start":0,"end":1.5,"text":"hello there"}]}`
		require.NoError(t, svc.IngestResult(ctx, jobID, payload))

		tr, err := svc.GetTranscription(ctx, fileID)
		require.NoError(t, err)
		assert.Equal(t, "hello there", tr.Text)
		assert.Equal(t, "en", tr.Language)
		require.Len(t, tr.Segments, 1)
		assert.Equal(t, 1.5, tr.Segments[0].End)

		job, err := st.GetJob(ctx, jobID)
		require.NoError(t, err)
		assert.Equal(t, domain.JobCompleted, job.State)
	})

	t.Run("plain text payload degrades gracefully", func(t *testing.T) {
		svc, st, chunks := newTestService(t, &fakeTranscriber{jobID: "remote-2"}, nil, 1)
		fileID := seedFile(t, st, chunks, "hello")
		jobID, err := svc.StartTranscription(ctx, fileID)
		require.NoError(t, err)

		require.NoError(t, svc.IngestResult(ctx, jobID, "just some words"))
		tr, err := svc.GetTranscription(ctx, fileID)
		require.NoError(t, err)
		assert.Equal(t, "just some words", tr.Text)
		assert.Equal(t, "unknown", tr.Language)
	})

	t.Run("terminal job is a no-op", func(t *testing.T) {
		svc, st, _ := newTestService(t, &fakeTranscriber{}, nil, 1)
		fileID := uuid.New()
		require.NoError(t, st.CreateJob(ctx, &domain.Job{
			ID: "done-1", FileID: fileID, Kind: domain.JobTranscription, State: domain.JobCompleted, Result: "first",
		}))

		require.NoError(t, svc.IngestResult(ctx, "done-1", "second"))
		job, err := st.GetJob(ctx, "done-1")
		require.NoError(t, err)
		assert.Equal(t, "first", job.Result)
		_, err = st.GetTranscription(ctx, fileID)
		assert.ErrorIs(t, err, store.ErrTranscriptionNotFound)
	})

	t.Run("file deleted while job in flight", func(t *testing.T) {
		svc, st, _ := newTestService(t, &fakeTranscriber{}, nil, 1)
		require.NoError(t, st.CreateJob(ctx, &domain.Job{
			ID: "orphan-1", FileID: uuid.New(), Kind: domain.JobTranscription, State: domain.JobPending,
		}))

		require.NoError(t, svc.IngestResult(ctx, "orphan-1", "text"))
		job, err := st.GetJob(ctx, "orphan-1")
		require.NoError(t, err)
		assert.Equal(t, domain.JobFailed, job.State)
		assert.Contains(t, job.Error, "file deleted")
	})

	t.Run("file soft-deleted while job in flight", func(t *testing.T) {
		svc, st, chunks := newTestService(t, &fakeTranscriber{jobID: "remote-3"}, nil, 1)
		fileID := seedFile(t, st, chunks, "hello")
		jobID, err := svc.StartTranscription(ctx, fileID)
		require.NoError(t, err)
		require.NoError(t, softDeleteFile(st, fileID))

		require.NoError(t, svc.IngestResult(ctx, jobID, "text"))
		job, err := st.GetJob(ctx, jobID)
		require.NoError(t, err)
		assert.Equal(t, domain.JobFailed, job.State)
		assert.Contains(t, job.Error, "file deleted")
		_, err = st.GetTranscription(ctx, fileID)
		assert.ErrorIs(t, err, store.ErrTranscriptionNotFound)
	})
}

func TestStartSummarization(t *testing.T) {
	ctx := context.Background()

	seedTranscribed := func(t *testing.T, st *store.MemoryStore, chunks *chunkstore.Store) uuid.UUID {
		fileID := seedFile(t, st, chunks, "hello")
		require.NoError(t, st.SaveTranscription(ctx, &domain.Transcription{
			FileID: fileID, Text: "a long meeting about roadmaps", Language: "en",
		}))
		return fileID
	}

	t.Run("no transcription is a silent no-op", func(t *testing.T) {
		svc, st, chunks := newTestService(t, &fakeTranscriber{}, nil, 1)
		fileID := seedFile(t, st, chunks, "hello")

		jobID, err := svc.StartSummarization(ctx, fileID)
		require.NoError(t, err)
		assert.Empty(t, jobID)
	})

	t.Run("success stores summary and retitles the file", func(t *testing.T) {
		lc := &fakeLLM{fn: func(_ context.Context, prompt string) (string, error) {
			assert.Contains(t, prompt, "a long meeting about roadmaps")
			return `Sure! {"title":"Roadmap Sync","summary":"They planned the roadmap."}`, nil
		}}
		svc, st, chunks := newTestService(t, &fakeTranscriber{}, lc, 3)
		fileID := seedTranscribed(t, st, chunks)

		jobID, err := svc.StartSummarization(ctx, fileID)
		require.NoError(t, err)
		job := waitForTerminal(t, st, jobID)
		assert.Equal(t, domain.JobCompleted, job.State)

		sum, err := st.GetSummary(ctx, fileID)
		require.NoError(t, err)
		assert.Equal(t, "Roadmap Sync", sum.Title)
		assert.Equal(t, "They planned the roadmap.", sum.Text)

		f, err := st.GetFile(ctx, fileID)
		require.NoError(t, err)
		assert.Equal(t, "Roadmap Sync", f.Title)
	})

	t.Run("retries until an attempt succeeds", func(t *testing.T) {
		calls := 0
		lc := &fakeLLM{fn: func(context.Context, string) (string, error) {
			calls++
			if calls < 3 {
				return "", errors.New("model busy")
			}
			return `{"title":"Third Try","summary":"ok"}`, nil
		}}
		svc, st, chunks := newTestService(t, &fakeTranscriber{}, lc, 3)
		fileID := seedTranscribed(t, st, chunks)

		jobID, err := svc.StartSummarization(ctx, fileID)
		require.NoError(t, err)
		job := waitForTerminal(t, st, jobID)
		assert.Equal(t, domain.JobCompleted, job.State)
		assert.Equal(t, 3, calls)
	})

	t.Run("all attempts failing records the last error", func(t *testing.T) {
		lc := &fakeLLM{fn: func(context.Context, string) (string, error) {
			return "", errors.New("model unavailable")
		}}
		svc, st, chunks := newTestService(t, &fakeTranscriber{}, lc, 2)
		fileID := seedTranscribed(t, st, chunks)

		jobID, err := svc.StartSummarization(ctx, fileID)
		require.NoError(t, err)
		job := waitForTerminal(t, st, jobID)
		assert.Equal(t, domain.JobFailed, job.State)
		assert.Contains(t, job.Error, "model unavailable")
		_, err = st.GetSummary(ctx, fileID)
		assert.ErrorIs(t, err, store.ErrSummaryNotFound)
	})

	t.Run("panic is converted into a failed job", func(t *testing.T) {
		lc := &fakeLLM{fn: func(context.Context, string) (string, error) {
			panic("llm client blew up")
		}}
		svc, st, chunks := newTestService(t, &fakeTranscriber{}, lc, 1)
		fileID := seedTranscribed(t, st, chunks)

		jobID, err := svc.StartSummarization(ctx, fileID)
		require.NoError(t, err)
		job := waitForTerminal(t, st, jobID)
		assert.Equal(t, domain.JobFailed, job.State)
		assert.Contains(t, job.Error, "internal fault")
	})

	t.Run("file deleted during the llm call fails soft", func(t *testing.T) {
		var svc *Service
		var st *store.MemoryStore
		var fileID uuid.UUID
		lc := &fakeLLM{fn: func(context.Context, string) (string, error) {
			_ = softDeleteFile(st, fileID)
			return `{"title":"Gone","summary":"too late"}`, nil
		}}
		var chunks *chunkstore.Store
		svc, st, chunks = newTestService(t, &fakeTranscriber{}, lc, 1)
		fileID = seedTranscribed(t, st, chunks)

		jobID, err := svc.StartSummarization(ctx, fileID)
		require.NoError(t, err)
		job := waitForTerminal(t, st, jobID)
		assert.Equal(t, domain.JobFailed, job.State)
		assert.Contains(t, job.Error, "file deleted")
		_, err = st.GetSummary(ctx, fileID)
		assert.ErrorIs(t, err, store.ErrSummaryNotFound)
	})
}
