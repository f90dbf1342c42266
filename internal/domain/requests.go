package domain

import "time"

// StartUploadRequest contains payload from the frontend when opening a session.
type StartUploadRequest struct {
	Filename    string `json:"filename"`
	ContentType string `json:"contentType"`
	TotalSize   int64  `json:"totalSize"`
	TotalChunks int    `json:"totalChunks"`
}

// StartUploadResponse describes the new session returned to the frontend.
type StartUploadResponse struct {
	SessionID     string `json:"sessionId"`
	MaxUploadSize int64  `json:"maxUploadSize"`
}

// ChunkResult is returned after each chunk is stored.
type ChunkResult struct {
	ReceivedChunks int  `json:"receivedChunks"`
	TotalChunks    int  `json:"totalChunks"`
	IsComplete     bool `json:"isComplete"`
}

// SessionStatus exposes upload progress for polling/resume.
type SessionStatus struct {
	SessionID      string `json:"sessionId"`
	ReceivedChunks int    `json:"receivedChunks"`
	TotalChunks    int    `json:"totalChunks"`
	ReceivedBytes  int64  `json:"receivedBytes"`
	TotalSize      int64  `json:"totalSize"`
}

// CompleteResult is returned once the session is promoted to a file.
type CompleteResult struct {
	FileID    string    `json:"fileId"`
	Filename  string    `json:"filename"`
	Size      int64     `json:"size"`
	Completed time.Time `json:"completedAt"`
}

// JobStatusView is what pollers observe for a background job.
type JobStatusView struct {
	JobID  string   `json:"jobId"`
	FileID string   `json:"fileId"`
	Kind   JobKind  `json:"kind"`
	State  JobState `json:"state"`
	Result string   `json:"result,omitempty"`
	Error  string   `json:"error,omitempty"`
}
