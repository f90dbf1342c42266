package chunkstore

import (
	"io"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteSessionChunk(t *testing.T) {
	s, err := NewStore(t.TempDir())
	require.NoError(t, err)
	sessionID := uuid.New()

	size, checksum, err := s.WriteSessionChunk(sessionID, 0, strings.NewReader("hello"))
	require.NoError(t, err)
	assert.Equal(t, int64(5), size)
	// sha256("hello")
	assert.Equal(t, "2cf24dba5fb0a30e26e83b2ac5b9e29e1b161e5c1fa7425e73043362938b9824", checksum)

	t.Run("remove single chunk", func(t *testing.T) {
		require.NoError(t, s.RemoveSessionChunk(sessionID, 0))
		assert.Error(t, s.RemoveSessionChunk(sessionID, 0))
	})
}

func TestStagedChunks(t *testing.T) {
	s, err := NewStore(t.TempDir())
	require.NoError(t, err)
	sessionID := uuid.New()

	// Two attempts on the same index stage independently.
	stagedA, sizeA, _, err := s.StageSessionChunk(sessionID, 0, strings.NewReader("abc"))
	require.NoError(t, err)
	assert.Equal(t, int64(3), sizeA)
	stagedB, _, _, err := s.StageSessionChunk(sessionID, 0, strings.NewReader("XYZ"))
	require.NoError(t, err)
	assert.NotEqual(t, stagedA, stagedB)

	require.NoError(t, s.CommitSessionChunk(stagedA, sessionID, 0))
	require.NoError(t, s.DiscardSessionChunk(stagedB))

	// The committed bytes are what promotion sees.
	fileID := uuid.New()
	total, _, err := s.Promote(sessionID, fileID, 1, 4)
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)

	buf := make([]byte, 3)
	require.NoError(t, s.ReadChunkAt(fileID, 0, 0, buf))
	assert.Equal(t, "abc", string(buf))

	t.Run("discarded twice fails", func(t *testing.T) {
		assert.Error(t, s.DiscardSessionChunk(stagedB))
	})
}

func TestPromote(t *testing.T) {
	s, err := NewStore(t.TempDir())
	require.NoError(t, err)
	sessionID := uuid.New()
	fileID := uuid.New()

	// Three session chunks of uneven size, re-chunked at 4 bytes.
	for i, part := range []string{"abcde", "fg", "hijklmn"} {
		_, _, err := s.WriteSessionChunk(sessionID, i, strings.NewReader(part))
		require.NoError(t, err)
	}

	total, sizes, err := s.Promote(sessionID, fileID, 3, 4)
	require.NoError(t, err)
	assert.Equal(t, int64(14), total)
	assert.Equal(t, []int64{4, 4, 4, 2}, sizes)

	t.Run("read chunk at offset", func(t *testing.T) {
		buf := make([]byte, 2)
		require.NoError(t, s.ReadChunkAt(fileID, 1, 1, buf))
		// Storage chunk 1 holds "efgh".
		assert.Equal(t, "fg", string(buf))
	})

	t.Run("open file streams everything in order", func(t *testing.T) {
		r, err := s.OpenFile(fileID, len(sizes))
		require.NoError(t, err)
		defer r.Close()
		data, err := io.ReadAll(r)
		require.NoError(t, err)
		assert.Equal(t, "abcdefghijklmn", string(data))
	})

	t.Run("missing session chunk aborts promotion", func(t *testing.T) {
		otherSession := uuid.New()
		otherFile := uuid.New()
		_, _, err := s.WriteSessionChunk(otherSession, 0, strings.NewReader("x"))
		require.NoError(t, err)

		_, _, err = s.Promote(otherSession, otherFile, 2, 4)
		require.Error(t, err)
		// No half-promoted file is left behind.
		_, err = s.OpenFile(otherFile, 1)
		assert.Error(t, err)
	})
}

func TestPromoteExactMultiple(t *testing.T) {
	s, err := NewStore(t.TempDir())
	require.NoError(t, err)
	sessionID := uuid.New()
	fileID := uuid.New()

	_, _, err = s.WriteSessionChunk(sessionID, 0, strings.NewReader("abcdefgh"))
	require.NoError(t, err)

	total, sizes, err := s.Promote(sessionID, fileID, 1, 4)
	require.NoError(t, err)
	assert.Equal(t, int64(8), total)
	// No trailing zero-size chunk when the total divides evenly.
	assert.Equal(t, []int64{4, 4}, sizes)
}

func TestRemove(t *testing.T) {
	s, err := NewStore(t.TempDir())
	require.NoError(t, err)
	sessionID := uuid.New()
	fileID := uuid.New()

	_, _, err = s.WriteSessionChunk(sessionID, 0, strings.NewReader("abcd"))
	require.NoError(t, err)
	_, _, err = s.Promote(sessionID, fileID, 1, 4)
	require.NoError(t, err)

	require.NoError(t, s.RemoveSession(sessionID))
	require.NoError(t, s.RemoveFile(fileID))
	_, err = s.OpenFile(fileID, 1)
	assert.Error(t, err)

	// Removing what is already gone is not an error.
	assert.NoError(t, s.RemoveSession(sessionID))
	assert.NoError(t, s.RemoveFile(fileID))
}
