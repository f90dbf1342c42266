package store

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"mediascribe-backend/internal/domain"
)

// MemoryStore implements Store with process-local maps. It backs tests and
// deployments that run without a database. A single mutex guards every
// table; Update* callbacks run while the lock is held, which gives them the
// exclusive-access guarantee the interface requires.
type MemoryStore struct {
	mu             sync.Mutex
	sessions       map[uuid.UUID]*domain.UploadSession
	files          map[uuid.UUID]*domain.FileRecord
	transcriptions map[uuid.UUID]*domain.Transcription
	summaries      map[uuid.UUID]*domain.Summary
	jobs           map[string]*domain.Job
	bookmarks      map[uuid.UUID]map[uuid.UUID]bool
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sessions:       make(map[uuid.UUID]*domain.UploadSession),
		files:          make(map[uuid.UUID]*domain.FileRecord),
		transcriptions: make(map[uuid.UUID]*domain.Transcription),
		summaries:      make(map[uuid.UUID]*domain.Summary),
		jobs:           make(map[string]*domain.Job),
		bookmarks:      make(map[uuid.UUID]map[uuid.UUID]bool),
	}
}

func (m *MemoryStore) CreateSession(ctx context.Context, s *domain.UploadSession) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[s.ID] = cloneSession(s)
	return nil
}

func (m *MemoryStore) GetSession(ctx context.Context, id uuid.UUID) (*domain.UploadSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return cloneSession(s), nil
}

func (m *MemoryStore) UpdateSession(ctx context.Context, id uuid.UUID, fn func(*domain.UploadSession) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return ErrSessionNotFound
	}
	// Mutate a copy so a failing callback leaves the stored record intact.
	next := cloneSession(s)
	if err := fn(next); err != nil {
		return err
	}
	m.sessions[id] = next
	return nil
}

func (m *MemoryStore) DeleteSession(ctx context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[id]; !ok {
		return ErrSessionNotFound
	}
	delete(m.sessions, id)
	return nil
}

func (m *MemoryStore) ExpiredSessions(ctx context.Context, olderThan time.Time) ([]domain.UploadSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var expired []domain.UploadSession
	for _, s := range m.sessions {
		if s.CreatedAt.Before(olderThan) {
			expired = append(expired, *cloneSession(s))
		}
	}
	return expired, nil
}

func (m *MemoryStore) CreateFile(ctx context.Context, f *domain.FileRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.files[f.ID] = cloneFile(f)
	return nil
}

func (m *MemoryStore) GetFile(ctx context.Context, id uuid.UUID) (*domain.FileRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	f, ok := m.files[id]
	if !ok {
		return nil, ErrFileNotFound
	}
	return cloneFile(f), nil
}

func (m *MemoryStore) UpdateFile(ctx context.Context, id uuid.UUID, fn func(*domain.FileRecord) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	f, ok := m.files[id]
	if !ok {
		return ErrFileNotFound
	}
	next := cloneFile(f)
	if err := fn(next); err != nil {
		return err
	}
	m.files[id] = next
	return nil
}

func (m *MemoryStore) ListFiles(ctx context.Context) ([]domain.FileRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	files := make([]domain.FileRecord, 0, len(m.files))
	for _, f := range m.files {
		files = append(files, *cloneFile(f))
	}
	return files, nil
}

func (m *MemoryStore) SaveTranscription(ctx context.Context, t *domain.Transcription) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.transcriptions[t.FileID] = cloneTranscription(t)
	return nil
}

func (m *MemoryStore) GetTranscription(ctx context.Context, fileID uuid.UUID) (*domain.Transcription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.transcriptions[fileID]
	if !ok {
		return nil, ErrTranscriptionNotFound
	}
	return cloneTranscription(t), nil
}

func (m *MemoryStore) DeleteTranscription(ctx context.Context, fileID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.transcriptions, fileID)
	return nil
}

func (m *MemoryStore) SaveSummary(ctx context.Context, s *domain.Summary) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *s
	m.summaries[s.FileID] = &cp
	return nil
}

func (m *MemoryStore) GetSummary(ctx context.Context, fileID uuid.UUID) (*domain.Summary, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.summaries[fileID]
	if !ok {
		return nil, ErrSummaryNotFound
	}
	cp := *s
	return &cp, nil
}

func (m *MemoryStore) DeleteSummary(ctx context.Context, fileID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.summaries, fileID)
	return nil
}

func (m *MemoryStore) CreateJob(ctx context.Context, j *domain.Job) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *j
	m.jobs[j.ID] = &cp
	return nil
}

func (m *MemoryStore) GetJob(ctx context.Context, jobID string) (*domain.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	j, ok := m.jobs[jobID]
	if !ok {
		return nil, ErrJobNotFound
	}
	cp := *j
	return &cp, nil
}

func (m *MemoryStore) UpdateJob(ctx context.Context, jobID string, fn func(*domain.Job) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	j, ok := m.jobs[jobID]
	if !ok {
		return ErrJobNotFound
	}
	next := *j
	if err := fn(&next); err != nil {
		return err
	}
	m.jobs[jobID] = &next
	return nil
}

func (m *MemoryStore) DeleteJobsForFile(ctx context.Context, fileID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, j := range m.jobs {
		if j.FileID == fileID {
			delete(m.jobs, id)
		}
	}
	return nil
}

func (m *MemoryStore) ToggleBookmark(ctx context.Context, owner, fileID uuid.UUID) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	set, ok := m.bookmarks[owner]
	if !ok {
		set = make(map[uuid.UUID]bool)
		m.bookmarks[owner] = set
	}
	if set[fileID] {
		delete(set, fileID)
		return false, nil
	}
	set[fileID] = true
	return true, nil
}

func (m *MemoryStore) ListBookmarks(ctx context.Context, owner uuid.UUID) ([]uuid.UUID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	set := m.bookmarks[owner]
	ids := make([]uuid.UUID, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	return ids, nil
}

func (m *MemoryStore) DeleteBookmarksForFile(ctx context.Context, fileID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, set := range m.bookmarks {
		delete(set, fileID)
	}
	return nil
}

func cloneSession(s *domain.UploadSession) *domain.UploadSession {
	cp := *s
	cp.ChunkSizes = append([]int64(nil), s.ChunkSizes...)
	return &cp
}

func cloneFile(f *domain.FileRecord) *domain.FileRecord {
	cp := *f
	cp.ChunkSizes = append([]int64(nil), f.ChunkSizes...)
	if f.DeletedAt != nil {
		t := *f.DeletedAt
		cp.DeletedAt = &t
	}
	return &cp
}

func cloneTranscription(t *domain.Transcription) *domain.Transcription {
	cp := *t
	cp.Segments = append([]domain.TranscriptionSegment(nil), t.Segments...)
	return &cp
}
