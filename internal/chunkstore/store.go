package chunkstore

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

// Store persists raw chunk bytes on disk, keyed by (owner id, chunk index).
// In-flight upload chunks live under sessions/<id>/ with whatever sizes the
// client chose; promoted files live under files/<id>/ re-chunked into
// fixed-size storage chunks.
type Store struct {
	basePath string
}

// NewStore creates a Store rooted at basePath.
func NewStore(basePath string) (*Store, error) {
	for _, dir := range []string{"sessions", "files"} {
		if err := os.MkdirAll(filepath.Join(basePath, dir), 0o755); err != nil {
			return nil, err
		}
	}
	return &Store{basePath: basePath}, nil
}

func (s *Store) sessionDir(sessionID uuid.UUID) string {
	return filepath.Join(s.basePath, "sessions", sessionID.String())
}

func (s *Store) fileDir(fileID uuid.UUID) string {
	return filepath.Join(s.basePath, "files", fileID.String())
}

func chunkName(index int) string {
	return fmt.Sprintf("chunk-%05d", index)
}

// StageSessionChunk copies the incoming chunk reader to a uniquely named
// staging file next to the chunk's final path and computes its checksum. The
// bytes only reach the final name through CommitSessionChunk, so concurrent
// attempts on the same index never touch each other's data. A crashed write
// never leaves a readable half-chunk behind.
func (s *Store) StageSessionChunk(sessionID uuid.UUID, index int, data io.Reader) (string, int64, string, error) {
	dir := s.sessionDir(sessionID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", 0, "", err
	}

	staged := filepath.Join(dir, fmt.Sprintf("%s.%s.partial", chunkName(index), uuid.NewString()))
	file, err := os.Create(staged)
	if err != nil {
		return "", 0, "", err
	}
	defer file.Close()

	hasher := sha256.New()
	written, err := io.Copy(io.MultiWriter(file, hasher), data)
	if err != nil {
		_ = os.Remove(staged)
		return "", 0, "", err
	}
	if err := file.Close(); err != nil {
		_ = os.Remove(staged)
		return "", 0, "", err
	}

	return staged, written, hex.EncodeToString(hasher.Sum(nil)), nil
}

// CommitSessionChunk renames a staged chunk into its final name. Only the
// caller that claimed the chunk's slot may commit.
func (s *Store) CommitSessionChunk(staged string, sessionID uuid.UUID, index int) error {
	return os.Rename(staged, filepath.Join(s.sessionDir(sessionID), chunkName(index)))
}

// DiscardSessionChunk removes a staged chunk that lost its slot claim.
func (s *Store) DiscardSessionChunk(staged string) error {
	return os.Remove(staged)
}

// WriteSessionChunk stages and immediately commits one chunk. Callers that
// need the claim-then-commit ordering use the staged variants directly.
func (s *Store) WriteSessionChunk(sessionID uuid.UUID, index int, data io.Reader) (int64, string, error) {
	staged, written, checksum, err := s.StageSessionChunk(sessionID, index, data)
	if err != nil {
		return 0, "", err
	}
	if err := s.CommitSessionChunk(staged, sessionID, index); err != nil {
		_ = os.Remove(staged)
		return 0, "", err
	}
	return written, checksum, nil
}

// RemoveSessionChunk deletes a single uploaded chunk. Used to back out a
// chunk write whose session update failed.
func (s *Store) RemoveSessionChunk(sessionID uuid.UUID, index int) error {
	return os.Remove(filepath.Join(s.sessionDir(sessionID), chunkName(index)))
}

// RemoveSession deletes all chunks belonging to the session.
func (s *Store) RemoveSession(sessionID uuid.UUID) error {
	return os.RemoveAll(s.sessionDir(sessionID))
}

// Promote concatenates the session's chunks in index order and rewrites them
// as fixed-size storage chunks under the permanent file id. It returns the
// total byte count and the storage chunk manifest. The target directory is
// assembled under a .partial name and renamed last, so other readers never
// observe a partially promoted file.
func (s *Store) Promote(sessionID, fileID uuid.UUID, chunkCount int, storageChunkSize int64) (int64, []int64, error) {
	if storageChunkSize <= 0 {
		return 0, nil, fmt.Errorf("invalid storage chunk size %d", storageChunkSize)
	}

	finalDir := s.fileDir(fileID)
	stagingDir := finalDir + ".partial"
	if err := os.MkdirAll(stagingDir, 0o755); err != nil {
		return 0, nil, err
	}

	w := &chunkWriter{dir: stagingDir, chunkSize: storageChunkSize}
	for i := 0; i < chunkCount; i++ {
		src, err := os.Open(filepath.Join(s.sessionDir(sessionID), chunkName(i)))
		if err != nil {
			_ = os.RemoveAll(stagingDir)
			return 0, nil, fmt.Errorf("open session chunk %d: %w", i, err)
		}
		_, err = io.Copy(w, src)
		src.Close()
		if err != nil {
			_ = os.RemoveAll(stagingDir)
			return 0, nil, fmt.Errorf("assemble chunk %d: %w", i, err)
		}
	}
	if err := w.Close(); err != nil {
		_ = os.RemoveAll(stagingDir)
		return 0, nil, err
	}

	if err := os.Rename(stagingDir, finalDir); err != nil {
		_ = os.RemoveAll(stagingDir)
		return 0, nil, err
	}
	return w.total, w.sizes, nil
}

// ReadChunkAt reads len(p) bytes from the storage chunk at the given offset.
func (s *Store) ReadChunkAt(fileID uuid.UUID, index int, offset int64, p []byte) error {
	file, err := os.Open(filepath.Join(s.fileDir(fileID), chunkName(index)))
	if err != nil {
		return err
	}
	defer file.Close()

	_, err = io.ReadFull(io.NewSectionReader(file, offset, int64(len(p))), p)
	return err
}

// OpenFile returns a reader over the whole assembled file, streaming the
// storage chunks in index order.
func (s *Store) OpenFile(fileID uuid.UUID, chunkCount int) (io.ReadCloser, error) {
	files := make([]*os.File, 0, chunkCount)
	readers := make([]io.Reader, 0, chunkCount)
	for i := 0; i < chunkCount; i++ {
		f, err := os.Open(filepath.Join(s.fileDir(fileID), chunkName(i)))
		if err != nil {
			for _, open := range files {
				open.Close()
			}
			return nil, err
		}
		files = append(files, f)
		readers = append(readers, f)
	}
	return &multiFileReader{Reader: io.MultiReader(readers...), files: files}, nil
}

// RemoveFile deletes all storage chunks belonging to the file.
func (s *Store) RemoveFile(fileID uuid.UUID) error {
	return os.RemoveAll(s.fileDir(fileID))
}

// chunkWriter splits a byte stream into numbered fixed-size chunk files.
type chunkWriter struct {
	dir       string
	chunkSize int64

	current *os.File
	written int64
	index   int
	total   int64
	sizes   []int64
}

func (w *chunkWriter) Write(p []byte) (int, error) {
	n := len(p)
	for len(p) > 0 {
		if w.current == nil {
			file, err := os.Create(filepath.Join(w.dir, chunkName(w.index)))
			if err != nil {
				return n - len(p), err
			}
			w.current = file
			w.written = 0
		}

		take := int64(len(p))
		if room := w.chunkSize - w.written; take > room {
			take = room
		}
		if _, err := w.current.Write(p[:take]); err != nil {
			return n - len(p), err
		}
		w.written += take
		w.total += take
		p = p[take:]

		if w.written == w.chunkSize {
			if err := w.roll(); err != nil {
				return n - len(p), err
			}
		}
	}
	return n, nil
}

func (w *chunkWriter) roll() error {
	if err := w.current.Close(); err != nil {
		return err
	}
	w.sizes = append(w.sizes, w.written)
	w.current = nil
	w.index++
	return nil
}

func (w *chunkWriter) Close() error {
	if w.current == nil {
		return nil
	}
	return w.roll()
}

type multiFileReader struct {
	io.Reader
	files []*os.File
}

func (r *multiFileReader) Close() error {
	var first error
	for _, f := range r.files {
		if err := f.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
