package domain

import "errors"

var (
	// ErrUnauthorized indicates the caller does not own the entity or the
	// file is private.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrInvalidRequest indicates a bad declared shape or content type.
	ErrInvalidRequest = errors.New("invalid request")

	// ErrDuplicateChunk indicates the chunk slot was already filled.
	ErrDuplicateChunk = errors.New("chunk already uploaded")

	// ErrChunkOutOfRange indicates the chunk index exceeds the declared count.
	ErrChunkOutOfRange = errors.New("invalid chunk index")

	// ErrIncomplete indicates completion was requested before every declared
	// chunk arrived.
	ErrIncomplete = errors.New("not all chunks have been uploaded")

	// ErrSizeMismatch indicates the stored chunk bytes do not add up to the
	// declared total size.
	ErrSizeMismatch = errors.New("file size mismatch")

	// ErrInvalidRange indicates the requested read starts past the end of
	// the file.
	ErrInvalidRange = errors.New("invalid start position")

	// ErrExternalCall indicates a collaborator call failed or timed out.
	ErrExternalCall = errors.New("external call failed")
)
