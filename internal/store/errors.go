package store

import "errors"

var (
	// ErrSessionNotFound indicates the upload session could not be found.
	ErrSessionNotFound = errors.New("upload session not found")

	// ErrFileNotFound indicates the file record could not be found.
	ErrFileNotFound = errors.New("file not found")

	// ErrJobNotFound indicates the job-to-file mapping is missing.
	ErrJobNotFound = errors.New("job not found")

	// ErrTranscriptionNotFound indicates no transcription has been stored
	// for the file.
	ErrTranscriptionNotFound = errors.New("no transcription found")

	// ErrSummaryNotFound indicates no summary has been stored for the file.
	ErrSummaryNotFound = errors.New("summary not ready")
)
