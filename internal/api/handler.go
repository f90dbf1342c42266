package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/google/uuid"

	"mediascribe-backend/internal/artifact"
	"mediascribe-backend/internal/config"
	"mediascribe-backend/internal/domain"
	"mediascribe-backend/internal/jobs"
	"mediascribe-backend/internal/store"
	"mediascribe-backend/internal/upload"
)

// Handler wires HTTP routes to the upload, artifact and job services.
type Handler struct {
	cfg       *config.Config
	uploads   *upload.Service
	artifacts *artifact.Service
	jobs      *jobs.Service
}

// NewHandler creates a Handler instance.
func NewHandler(cfg *config.Config, uploads *upload.Service, artifacts *artifact.Service, jobSvc *jobs.Service) *Handler {
	return &Handler{cfg: cfg, uploads: uploads, artifacts: artifacts, jobs: jobSvc}
}

// Router returns a configured chi router.
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-API-Key", "X-User-Id", "X-Chunk-Index"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Get("/healthz", h.handleHealth)

	r.Route("/uploads", func(r chi.Router) {
		r.Post("/init", h.withAuth(h.handleInit))
		r.Post("/{sessionID}/chunks", h.withAuth(h.handleChunk))
		r.Post("/{sessionID}/complete", h.withAuth(h.handleComplete))
		r.Post("/{sessionID}/abort", h.withAuth(h.handleAbort))
		r.Get("/{sessionID}", h.withAuth(h.handleUploadStatus))
	})

	r.Route("/files", func(r chi.Router) {
		r.Get("/", h.withAuth(h.handleListFiles))
		r.Get("/explore", h.withAuth(h.handleExplore))
		r.Get("/{fileID}", h.withAuth(h.handleGetFile))
		r.Delete("/{fileID}", h.withAuth(h.handleDeleteFile))
		r.Get("/{fileID}/range", h.withAuth(h.handleReadRange))
		r.Post("/{fileID}/visibility", h.withAuth(h.handleSetVisibility))
		r.Post("/{fileID}/bookmark", h.withAuth(h.handleToggleBookmark))
		r.Post("/{fileID}/transcribe", h.withAuth(h.handleStartTranscription))
		r.Get("/{fileID}/transcription", h.withAuth(h.handleGetTranscription))
		r.Post("/{fileID}/summarize", h.withAuth(h.handleStartSummarization))
		r.Get("/{fileID}/summary", h.withAuth(h.handleGetSummary))
	})

	r.Route("/jobs", func(r chi.Router) {
		r.Get("/{jobID}", h.withAuth(h.handlePollJob))
		r.Post("/{jobID}/result", h.withAuth(h.handleIngestResult))
	})

	return r
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) handleInit(w http.ResponseWriter, r *http.Request, user uuid.UUID) {
	var req domain.StartUploadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request payload")
		return
	}
	sessionID, err := h.uploads.Start(r.Context(), user, req)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, domain.StartUploadResponse{
		SessionID:     sessionID.String(),
		MaxUploadSize: h.cfg.MaxUploadBytes,
	})
}

func (h *Handler) handleChunk(w http.ResponseWriter, r *http.Request, user uuid.UUID) {
	sessionID, ok := parseID(w, chi.URLParam(r, "sessionID"), "invalid session id")
	if !ok {
		return
	}
	chunkIdxStr := r.Header.Get("X-Chunk-Index")
	if chunkIdxStr == "" {
		writeError(w, http.StatusBadRequest, "missing X-Chunk-Index header")
		return
	}
	chunkIdx, err := strconv.Atoi(chunkIdxStr)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid chunk index")
		return
	}

	result, err := h.uploads.PutChunk(r.Context(), user, sessionID, chunkIdx, r.Body)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *Handler) handleComplete(w http.ResponseWriter, r *http.Request, user uuid.UUID) {
	sessionID, ok := parseID(w, chi.URLParam(r, "sessionID"), "invalid session id")
	if !ok {
		return
	}
	result, err := h.uploads.Complete(r.Context(), user, sessionID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *Handler) handleAbort(w http.ResponseWriter, r *http.Request, user uuid.UUID) {
	sessionID, ok := parseID(w, chi.URLParam(r, "sessionID"), "invalid session id")
	if !ok {
		return
	}
	if err := h.uploads.Abort(r.Context(), user, sessionID); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "aborted"})
}

func (h *Handler) handleUploadStatus(w http.ResponseWriter, r *http.Request, user uuid.UUID) {
	sessionID, ok := parseID(w, chi.URLParam(r, "sessionID"), "invalid session id")
	if !ok {
		return
	}
	status, err := h.uploads.Status(r.Context(), user, sessionID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, status)
}

func (h *Handler) handleListFiles(w http.ResponseWriter, r *http.Request, user uuid.UUID) {
	artifacts, err := h.artifacts.List(r.Context(), user, parseFilter(r))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, artifacts)
}

func (h *Handler) handleExplore(w http.ResponseWriter, r *http.Request, user uuid.UUID) {
	artifacts, err := h.artifacts.ListPublic(r.Context(), user, parseFilter(r))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, artifacts)
}

func (h *Handler) handleGetFile(w http.ResponseWriter, r *http.Request, user uuid.UUID) {
	fileID, ok := parseID(w, chi.URLParam(r, "fileID"), "invalid file id")
	if !ok {
		return
	}
	art, err := h.artifacts.Get(r.Context(), user, fileID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, art)
}

func (h *Handler) handleDeleteFile(w http.ResponseWriter, r *http.Request, user uuid.UUID) {
	fileID, ok := parseID(w, chi.URLParam(r, "fileID"), "invalid file id")
	if !ok {
		return
	}
	if err := h.artifacts.Delete(r.Context(), user, fileID); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func (h *Handler) handleReadRange(w http.ResponseWriter, r *http.Request, user uuid.UUID) {
	fileID, ok := parseID(w, chi.URLParam(r, "fileID"), "invalid file id")
	if !ok {
		return
	}
	start, err := strconv.ParseInt(r.URL.Query().Get("start"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid start parameter")
		return
	}
	length, err := strconv.ParseInt(r.URL.Query().Get("length"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid length parameter")
		return
	}

	data, totalSize, err := h.artifacts.ReadRange(r.Context(), user, fileID, start, length)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("X-Total-Size", strconv.FormatInt(totalSize, 10))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func (h *Handler) handleSetVisibility(w http.ResponseWriter, r *http.Request, user uuid.UUID) {
	fileID, ok := parseID(w, chi.URLParam(r, "fileID"), "invalid file id")
	if !ok {
		return
	}
	var req struct {
		Visibility domain.Visibility `json:"visibility"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request payload")
		return
	}
	if err := h.artifacts.SetVisibility(r.Context(), user, fileID, req.Visibility); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"visibility": string(req.Visibility)})
}

func (h *Handler) handleToggleBookmark(w http.ResponseWriter, r *http.Request, user uuid.UUID) {
	fileID, ok := parseID(w, chi.URLParam(r, "fileID"), "invalid file id")
	if !ok {
		return
	}
	bookmarked, err := h.artifacts.ToggleBookmark(r.Context(), user, fileID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"bookmarked": bookmarked})
}

func (h *Handler) handleStartTranscription(w http.ResponseWriter, r *http.Request, user uuid.UUID) {
	fileID, ok := parseID(w, chi.URLParam(r, "fileID"), "invalid file id")
	if !ok {
		return
	}
	if _, err := h.artifacts.Get(r.Context(), user, fileID); err != nil {
		writeServiceError(w, err)
		return
	}
	jobID, err := h.jobs.StartTranscription(r.Context(), fileID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"jobId": jobID})
}

func (h *Handler) handleGetTranscription(w http.ResponseWriter, r *http.Request, user uuid.UUID) {
	fileID, ok := parseID(w, chi.URLParam(r, "fileID"), "invalid file id")
	if !ok {
		return
	}
	if _, err := h.artifacts.Get(r.Context(), user, fileID); err != nil {
		writeServiceError(w, err)
		return
	}
	t, err := h.jobs.GetTranscription(r.Context(), fileID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (h *Handler) handleStartSummarization(w http.ResponseWriter, r *http.Request, user uuid.UUID) {
	fileID, ok := parseID(w, chi.URLParam(r, "fileID"), "invalid file id")
	if !ok {
		return
	}
	if _, err := h.artifacts.Get(r.Context(), user, fileID); err != nil {
		writeServiceError(w, err)
		return
	}
	jobID, err := h.jobs.StartSummarization(r.Context(), fileID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"jobId": jobID})
}

func (h *Handler) handleGetSummary(w http.ResponseWriter, r *http.Request, user uuid.UUID) {
	fileID, ok := parseID(w, chi.URLParam(r, "fileID"), "invalid file id")
	if !ok {
		return
	}
	if _, err := h.artifacts.Get(r.Context(), user, fileID); err != nil {
		writeServiceError(w, err)
		return
	}
	sum, err := h.jobs.GetSummary(r.Context(), fileID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sum)
}

func (h *Handler) handlePollJob(w http.ResponseWriter, r *http.Request, user uuid.UUID) {
	view, err := h.jobs.PollStatus(r.Context(), chi.URLParam(r, "jobID"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (h *Handler) handleIngestResult(w http.ResponseWriter, r *http.Request, user uuid.UUID) {
	var req struct {
		Payload string `json:"payload"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request payload")
		return
	}
	if err := h.jobs.IngestResult(r.Context(), chi.URLParam(r, "jobID"), req.Payload); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ingested"})
}

type authedHandler func(http.ResponseWriter, *http.Request, uuid.UUID)

func (h *Handler) withAuth(next authedHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		apiKey := r.Header.Get("X-API-Key")
		if apiKey == "" || apiKey != h.cfg.APIKey {
			writeError(w, http.StatusUnauthorized, "invalid api key")
			return
		}
		userIDHeader := r.Header.Get("X-User-Id")
		if userIDHeader == "" {
			writeError(w, http.StatusUnauthorized, "missing user id")
			return
		}
		userID, err := uuid.Parse(userIDHeader)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "invalid user id")
			return
		}
		next(w, r, userID)
	}
}

func parseID(w http.ResponseWriter, raw, message string) (uuid.UUID, bool) {
	id, err := uuid.Parse(raw)
	if err != nil {
		writeError(w, http.StatusBadRequest, message)
		return uuid.Nil, false
	}
	return id, true
}

func parseFilter(r *http.Request) *domain.ArtifactFilter {
	q := r.URL.Query()
	filter := &domain.ArtifactFilter{
		FileType: domain.FileTypeFilter(q.Get("type")),
		Language: q.Get("language"),
		Search:   q.Get("search"),
		Sort:     domain.SortOrder(q.Get("sort")),
	}
	if filter.FileType == "" && filter.Language == "" && filter.Search == "" && filter.Sort == "" {
		return nil
	}
	return filter
}

func writeServiceError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, store.ErrSessionNotFound),
		errors.Is(err, store.ErrFileNotFound),
		errors.Is(err, store.ErrJobNotFound),
		errors.Is(err, store.ErrTranscriptionNotFound),
		errors.Is(err, store.ErrSummaryNotFound):
		status = http.StatusNotFound
	case errors.Is(err, domain.ErrUnauthorized):
		status = http.StatusForbidden
	case errors.Is(err, domain.ErrDuplicateChunk),
		errors.Is(err, domain.ErrIncomplete),
		errors.Is(err, domain.ErrSizeMismatch):
		status = http.StatusConflict
	case errors.Is(err, domain.ErrInvalidRequest),
		errors.Is(err, domain.ErrChunkOutOfRange),
		errors.Is(err, domain.ErrInvalidRange):
		status = http.StatusBadRequest
	case errors.Is(err, domain.ErrExternalCall):
		status = http.StatusBadGateway
	}
	writeError(w, status, err.Error())
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{
		"error": message,
	})
}
