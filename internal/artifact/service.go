package artifact

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"mediascribe-backend/internal/chunkstore"
	"mediascribe-backend/internal/domain"
	"mediascribe-backend/internal/store"
)

// Service exposes completed-file operations: metadata reads, byte-range
// extraction, visibility, bookmarks and cascading deletion.
type Service struct {
	store  store.Store
	chunks *chunkstore.Store
}

// NewService constructs a Service instance.
func NewService(st store.Store, chunks *chunkstore.Store) *Service {
	return &Service{store: st, chunks: chunks}
}

// visibleFile fetches the record and applies the visibility rule: a file is
// readable if it is public or the caller owns it. Soft-deleted records are
// reported as missing.
func (s *Service) visibleFile(ctx context.Context, caller, fileID uuid.UUID) (*domain.FileRecord, error) {
	f, err := s.store.GetFile(ctx, fileID)
	if err != nil {
		return nil, err
	}
	if f.Deleted() {
		return nil, store.ErrFileNotFound
	}
	if !f.AccessibleBy(caller) {
		return nil, fmt.Errorf("%w: file is private", domain.ErrUnauthorized)
	}
	return f, nil
}

// Get returns the artifact with its transcription/summary payloads, if any
// have arrived yet.
func (s *Service) Get(ctx context.Context, caller, fileID uuid.UUID) (*domain.UserArtifact, error) {
	f, err := s.visibleFile(ctx, caller, fileID)
	if err != nil {
		return nil, err
	}

	art := &domain.UserArtifact{File: *f}
	if t, err := s.store.GetTranscription(ctx, fileID); err == nil {
		art.Transcription = t
	}
	if sum, err := s.store.GetSummary(ctx, fileID); err == nil {
		art.Summary = sum
	}
	bookmarks, err := s.store.ListBookmarks(ctx, caller)
	if err != nil {
		return nil, err
	}
	for _, id := range bookmarks {
		if id == fileID {
			art.IsBookmarked = true
			break
		}
	}
	return art, nil
}

// ReadRange returns file bytes in [start, start+length), clamped to the file
// size. The walk over the storage chunk manifest stops as soon as the
// requested length is satisfied.
func (s *Service) ReadRange(ctx context.Context, caller, fileID uuid.UUID, start, length int64) ([]byte, int64, error) {
	f, err := s.visibleFile(ctx, caller, fileID)
	if err != nil {
		return nil, 0, err
	}
	if start < 0 || start >= f.Size {
		return nil, 0, domain.ErrInvalidRange
	}
	if length <= 0 {
		return nil, 0, domain.ErrInvalidRange
	}
	if remaining := f.Size - start; length > remaining {
		length = remaining
	}

	data := make([]byte, 0, length)
	remaining := length
	offset := start
	var chunkStart int64

	for i, size := range f.ChunkSizes {
		chunkEnd := chunkStart + size
		if offset >= chunkEnd {
			chunkStart = chunkEnd
			continue
		}

		startInChunk := offset - chunkStart
		take := size - startInChunk
		if take > remaining {
			take = remaining
		}

		buf := make([]byte, take)
		if err := s.chunks.ReadChunkAt(fileID, i, startInChunk, buf); err != nil {
			return nil, 0, fmt.Errorf("read chunk %d: %w", i, err)
		}
		data = append(data, buf...)

		remaining -= take
		offset += take
		chunkStart = chunkEnd

		if remaining == 0 {
			break
		}
	}

	return data, f.Size, nil
}

// List returns the caller's artifacts, filtered and sorted.
func (s *Service) List(ctx context.Context, caller uuid.UUID, filter *domain.ArtifactFilter) ([]domain.UserArtifact, error) {
	return s.list(ctx, caller, filter, func(f *domain.FileRecord) bool {
		return f.Owner == caller
	})
}

// ListPublic returns every public artifact, filtered and sorted.
func (s *Service) ListPublic(ctx context.Context, caller uuid.UUID, filter *domain.ArtifactFilter) ([]domain.UserArtifact, error) {
	return s.list(ctx, caller, filter, func(f *domain.FileRecord) bool {
		return f.Visibility == domain.VisibilityPublic
	})
}

func (s *Service) list(ctx context.Context, caller uuid.UUID, filter *domain.ArtifactFilter, keep func(*domain.FileRecord) bool) ([]domain.UserArtifact, error) {
	files, err := s.store.ListFiles(ctx)
	if err != nil {
		return nil, err
	}

	candidates := files[:0]
	for _, f := range files {
		if !f.Deleted() && keep(&f) {
			candidates = append(candidates, f)
		}
	}

	bookmarkIDs, err := s.store.ListBookmarks(ctx, caller)
	if err != nil {
		return nil, err
	}
	bookmarked := make(map[uuid.UUID]bool, len(bookmarkIDs))
	for _, id := range bookmarkIDs {
		bookmarked[id] = true
	}

	artifacts := make([]domain.UserArtifact, 0, len(candidates))
	for _, f := range candidates {
		art := domain.UserArtifact{File: f, IsBookmarked: bookmarked[f.ID]}
		if t, err := s.store.GetTranscription(ctx, f.ID); err == nil {
			art.Transcription = t
		}
		if sum, err := s.store.GetSummary(ctx, f.ID); err == nil {
			art.Summary = sum
		}
		artifacts = append(artifacts, art)
	}

	return Apply(artifacts, filter), nil
}

// SetVisibility flips a file between private and public. Owner-only.
func (s *Service) SetVisibility(ctx context.Context, caller, fileID uuid.UUID, v domain.Visibility) error {
	if v != domain.VisibilityPrivate && v != domain.VisibilityPublic {
		return fmt.Errorf("%w: unknown visibility %q", domain.ErrInvalidRequest, v)
	}
	return s.store.UpdateFile(ctx, fileID, func(f *domain.FileRecord) error {
		if f.Deleted() {
			return store.ErrFileNotFound
		}
		if f.Owner != caller {
			return fmt.Errorf("%w: you don't own this file", domain.ErrUnauthorized)
		}
		f.Visibility = v
		return nil
	})
}

// ToggleBookmark flips the caller's bookmark on an accessible file and
// reports the new state.
func (s *Service) ToggleBookmark(ctx context.Context, caller, fileID uuid.UUID) (bool, error) {
	if _, err := s.visibleFile(ctx, caller, fileID); err != nil {
		return false, err
	}
	return s.store.ToggleBookmark(ctx, caller, fileID)
}

// Delete soft-deletes the file record and removes every dependent entity:
// storage chunks, transcription, summary, job mappings and bookmarks. Missing
// dependents are not an error. Owner-only.
func (s *Service) Delete(ctx context.Context, caller, fileID uuid.UUID) error {
	f, err := s.store.GetFile(ctx, fileID)
	if err != nil {
		return err
	}
	if f.Deleted() {
		return store.ErrFileNotFound
	}
	if f.Owner != caller {
		return fmt.Errorf("%w: you don't own this file", domain.ErrUnauthorized)
	}

	if err := s.store.DeleteTranscription(ctx, fileID); err != nil {
		return err
	}
	if err := s.store.DeleteSummary(ctx, fileID); err != nil {
		return err
	}
	if err := s.store.DeleteJobsForFile(ctx, fileID); err != nil {
		return err
	}
	if err := s.store.DeleteBookmarksForFile(ctx, fileID); err != nil {
		return err
	}

	now := time.Now().UTC()
	err = s.store.UpdateFile(ctx, fileID, func(f *domain.FileRecord) error {
		f.DeletedAt = &now
		return nil
	})
	if err != nil && !errors.Is(err, store.ErrFileNotFound) {
		return err
	}
	return s.chunks.RemoveFile(fileID)
}
