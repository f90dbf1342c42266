package upload

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"

	"mediascribe-backend/internal/chunkstore"
	"mediascribe-backend/internal/config"
	"mediascribe-backend/internal/domain"
	"mediascribe-backend/internal/store"
)

// Service orchestrates the upload session lifecycle between the session
// table and the chunk store.
type Service struct {
	cfg    *config.Config
	store  store.Store
	chunks *chunkstore.Store
}

// NewService constructs a Service instance.
func NewService(cfg *config.Config, st store.Store, chunks *chunkstore.Store) *Service {
	return &Service{cfg: cfg, store: st, chunks: chunks}
}

// Start opens an upload session with a declared shape. The shape is fixed at
// creation: the chunk slot table is pre-sized so chunks can arrive in any
// order.
func (s *Service) Start(ctx context.Context, owner uuid.UUID, req domain.StartUploadRequest) (uuid.UUID, error) {
	if req.Filename == "" {
		return uuid.Nil, fmt.Errorf("%w: filename is required", domain.ErrInvalidRequest)
	}
	if req.TotalSize <= 0 {
		return uuid.Nil, fmt.Errorf("%w: file size must be greater than zero", domain.ErrInvalidRequest)
	}
	if req.TotalSize > s.cfg.MaxUploadBytes {
		return uuid.Nil, fmt.Errorf("%w: file size exceeds maximum limit of %d bytes", domain.ErrInvalidRequest, s.cfg.MaxUploadBytes)
	}
	if !strings.HasPrefix(req.ContentType, "video/") && !strings.HasPrefix(req.ContentType, "audio/") {
		return uuid.Nil, fmt.Errorf("%w: only video and audio files are allowed", domain.ErrInvalidRequest)
	}
	if req.TotalChunks <= 0 {
		return uuid.Nil, fmt.Errorf("%w: chunk count must be greater than zero", domain.ErrInvalidRequest)
	}

	sess := &domain.UploadSession{
		ID:          uuid.New(),
		Owner:       owner,
		Filename:    req.Filename,
		ContentType: req.ContentType,
		TotalSize:   req.TotalSize,
		TotalChunks: req.TotalChunks,
		ChunkSizes:  make([]int64, req.TotalChunks),
		CreatedAt:   time.Now().UTC(),
	}
	if err := s.store.CreateSession(ctx, sess); err != nil {
		return uuid.Nil, err
	}
	return sess.ID, nil
}

// PutChunk stores one chunk. The chunk bytes land in a staging file unique to
// this call; the session slot is then claimed under an exclusive update, and
// only the claim winner commits its staging file to the chunk's final name.
// A losing call discards its own bytes and never touches the winner's. A
// slot, once filled, is immutable.
func (s *Service) PutChunk(ctx context.Context, caller uuid.UUID, sessionID uuid.UUID, index int, data io.Reader) (*domain.ChunkResult, error) {
	sess, err := s.store.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if sess.Owner != caller {
		return nil, fmt.Errorf("%w: you don't own this upload session", domain.ErrUnauthorized)
	}
	if index < 0 || index >= sess.TotalChunks {
		return nil, domain.ErrChunkOutOfRange
	}
	if sess.ChunkReceived(index) {
		return nil, domain.ErrDuplicateChunk
	}

	// Bound the read by what the session can still accept. Reading one byte
	// past the budget detects overflow without buffering an unbounded body.
	budget := sess.TotalSize - sess.ReceivedBytes
	staged, size, _, err := s.chunks.StageSessionChunk(sessionID, index, io.LimitReader(data, budget+1))
	if err != nil {
		return nil, err
	}
	if size == 0 {
		_ = s.chunks.DiscardSessionChunk(staged)
		return nil, fmt.Errorf("%w: chunk is empty", domain.ErrInvalidRequest)
	}
	if size > budget {
		_ = s.chunks.DiscardSessionChunk(staged)
		return nil, fmt.Errorf("%w: chunk exceeds declared file size", domain.ErrInvalidRequest)
	}

	var result domain.ChunkResult
	err = s.store.UpdateSession(ctx, sessionID, func(sess *domain.UploadSession) error {
		// Re-check under the exclusive update: another call may have filled
		// the slot while the bytes were being staged.
		if sess.ChunkReceived(index) {
			return domain.ErrDuplicateChunk
		}
		sess.ChunkSizes[index] = size
		sess.ReceivedChunks++
		sess.ReceivedBytes += size
		result = domain.ChunkResult{
			ReceivedChunks: sess.ReceivedChunks,
			TotalChunks:    sess.TotalChunks,
			IsComplete:     sess.ReceivedChunks == sess.TotalChunks,
		}
		return nil
	})
	if err != nil {
		_ = s.chunks.DiscardSessionChunk(staged)
		return nil, err
	}

	if err := s.chunks.CommitSessionChunk(staged, sessionID, index); err != nil {
		// Release the slot so a retry can claim it.
		_ = s.chunks.DiscardSessionChunk(staged)
		_ = s.store.UpdateSession(ctx, sessionID, func(sess *domain.UploadSession) error {
			sess.ChunkSizes[index] = 0
			sess.ReceivedChunks--
			sess.ReceivedBytes -= size
			return nil
		})
		return nil, err
	}
	return &result, nil
}

// Complete validates the session against its declared shape and promotes it
// into a durable file record. The session is consumed exactly once: a
// concurrent or repeated completion observes ErrSessionNotFound. Validation
// failures leave the session untouched.
func (s *Service) Complete(ctx context.Context, caller uuid.UUID, sessionID uuid.UUID) (*domain.CompleteResult, error) {
	sess, err := s.store.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if sess.Owner != caller {
		return nil, fmt.Errorf("%w: you don't own this upload session", domain.ErrUnauthorized)
	}
	if sess.ReceivedChunks != sess.TotalChunks {
		return nil, domain.ErrIncomplete
	}
	if sess.ReceivedBytes != sess.TotalSize {
		return nil, domain.ErrSizeMismatch
	}

	fileID := uuid.New()
	total, storageSizes, err := s.chunks.Promote(sessionID, fileID, sess.TotalChunks, s.cfg.StorageChunkSize)
	if err != nil {
		return nil, fmt.Errorf("promote session %s: %w", sessionID, err)
	}
	if total != sess.TotalSize {
		_ = s.chunks.RemoveFile(fileID)
		return nil, domain.ErrSizeMismatch
	}

	// Deleting the session is the claim: only one completion can win it.
	if err := s.store.DeleteSession(ctx, sessionID); err != nil {
		_ = s.chunks.RemoveFile(fileID)
		return nil, err
	}

	record := &domain.FileRecord{
		ID:          fileID,
		Owner:       sess.Owner,
		Filename:    sess.Filename,
		ContentType: sess.ContentType,
		Size:        total,
		ChunkSizes:  storageSizes,
		Visibility:  domain.VisibilityPrivate,
		CreatedAt:   time.Now().UTC(),
	}
	if err := s.store.CreateFile(ctx, record); err != nil {
		_ = s.chunks.RemoveFile(fileID)
		return nil, err
	}

	_ = s.chunks.RemoveSession(sessionID)

	return &domain.CompleteResult{
		FileID:    fileID.String(),
		Filename:  record.Filename,
		Size:      record.Size,
		Completed: record.CreatedAt,
	}, nil
}

// Status returns upload progress. Owner-only.
func (s *Service) Status(ctx context.Context, caller uuid.UUID, sessionID uuid.UUID) (*domain.SessionStatus, error) {
	sess, err := s.store.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if sess.Owner != caller {
		return nil, domain.ErrUnauthorized
	}
	return &domain.SessionStatus{
		SessionID:      sess.ID.String(),
		ReceivedChunks: sess.ReceivedChunks,
		TotalChunks:    sess.TotalChunks,
		ReceivedBytes:  sess.ReceivedBytes,
		TotalSize:      sess.TotalSize,
	}, nil
}

// Abort cancels an in-progress session and removes its chunks.
func (s *Service) Abort(ctx context.Context, caller uuid.UUID, sessionID uuid.UUID) error {
	sess, err := s.store.GetSession(ctx, sessionID)
	if err != nil {
		return err
	}
	if sess.Owner != caller {
		return fmt.Errorf("%w: you don't own this upload session", domain.ErrUnauthorized)
	}
	if err := s.store.DeleteSession(ctx, sessionID); err != nil {
		return err
	}
	return s.chunks.RemoveSession(sessionID)
}
