package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	apperrors "github.com/Taichi-iskw/yt-library/internal/errors"
	"github.com/Taichi-iskw/yt-library/internal/logger"
	"github.com/Taichi-iskw/yt-library/internal/model"
	"github.com/Taichi-iskw/yt-library/internal/service/library"
)

const defaultPerPage = 20

// Handler serves the library routes
type Handler struct {
	lib library.Library
	log *logger.Logger
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}

// ProcessRequest is the body of POST /api/process
type ProcessRequest struct {
	URL   string `json:"url"`
	Force bool   `json:"force"`
}

// AskRequest is the body of POST /api/videos/{videoId}/ask
type AskRequest struct {
	SessionID string `json:"session_id"`
	Query     string `json:"query"`
}

// UpdateResponse reports both halves of a video update
type UpdateResponse struct {
	Video           *model.Video      `json:"video,omitempty"`
	VideoError      *ErrorResponse    `json:"video_error,omitempty"`
	Transcript      *model.Transcript `json:"transcript,omitempty"`
	TranscriptError *ErrorResponse    `json:"transcript_error,omitempty"`
}

// DownloadResponse is the result of a finished download
type DownloadResponse struct {
	VideoID  string `json:"video_id"`
	FilePath string `json:"file_path"`
}

// Health handles GET /healthz
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, HealthResponse{Status: "healthy", Timestamp: time.Now().UTC()})
}

// ProcessURL handles POST /api/process
func (h *Handler) ProcessURL(w http.ResponseWriter, r *http.Request) {
	var req ProcessRequest
	if !h.decode(w, r, &req) {
		return
	}

	summary, err := h.lib.ProcessURL(r.Context(), req.URL, req.Force)
	if err != nil {
		h.writeError(w, err)
		return
	}
	status := http.StatusOK
	if summary.Action == library.ActionCreated {
		status = http.StatusCreated
	}
	h.writeJSON(w, status, summary)
}

// ListVideos handles GET /api/videos?page=&per_page=
func (h *Handler) ListVideos(w http.ResponseWriter, r *http.Request) {
	page, ok := h.intQuery(w, r, "page", 1)
	if !ok {
		return
	}
	perPage, ok := h.intQuery(w, r, "per_page", defaultPerPage)
	if !ok {
		return
	}

	result, err := h.lib.ListVideos(r.Context(), page, perPage)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, result)
}

// GetVideo handles GET /api/videos/{videoId}
func (h *Handler) GetVideo(w http.ResponseWriter, r *http.Request) {
	video, err := h.lib.GetVideo(r.Context(), chi.URLParam(r, "videoId"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, video)
}

// DeleteVideo handles DELETE /api/videos/{videoId}
func (h *Handler) DeleteVideo(w http.ResponseWriter, r *http.Request) {
	if err := h.lib.DeleteVideo(r.Context(), chi.URLParam(r, "videoId")); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// UpdateVideo handles POST /api/videos/{videoId}/update.
// A partial success answers 207 with the failing half described in the body.
func (h *Handler) UpdateVideo(w http.ResponseWriter, r *http.Request) {
	result, err := h.lib.UpdateVideo(r.Context(), chi.URLParam(r, "videoId"))
	if err != nil {
		h.writeError(w, err)
		return
	}

	body := UpdateResponse{
		Video:           result.Video,
		VideoError:      errorBody(result.VideoErr),
		Transcript:      result.Transcript,
		TranscriptError: errorBody(result.TranscriptErr),
	}

	status := http.StatusOK
	switch {
	case result.OK():
	case result.VideoErr != nil && result.TranscriptErr != nil:
		status = statusFor(result.VideoErr)
	default:
		status = http.StatusMultiStatus
	}
	h.writeJSON(w, status, body)
}

// GetTranscript handles GET /api/videos/{videoId}/transcript?refresh=
func (h *Handler) GetTranscript(w http.ResponseWriter, r *http.Request) {
	refresh, _ := strconv.ParseBool(r.URL.Query().Get("refresh"))

	transcript, err := h.lib.GetTranscript(r.Context(), chi.URLParam(r, "videoId"), refresh)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, transcript)
}

// Ask handles POST /api/videos/{videoId}/ask
func (h *Handler) Ask(w http.ResponseWriter, r *http.Request) {
	var req AskRequest
	if !h.decode(w, r, &req) {
		return
	}

	answer, err := h.lib.Ask(r.Context(), chi.URLParam(r, "videoId"), req.SessionID, req.Query)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, answer)
}

// Download handles POST /api/videos/{videoId}/download
func (h *Handler) Download(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "videoId")
	path, err := h.lib.Download(r.Context(), id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, DownloadResponse{VideoID: id, FilePath: path})
}

// CancelDownload handles DELETE /api/videos/{videoId}/download
func (h *Handler) CancelDownload(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "videoId")
	if !h.lib.CancelDownload(id) {
		h.writeError(w, apperrors.New(apperrors.CodeNotFound, "no download running for video "+id))
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

// VerifyDownloads handles POST /api/videos/verify
func (h *Handler) VerifyDownloads(w http.ResponseWriter, r *http.Request) {
	report, err := h.lib.VerifyDownloads(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, report)
}

// ScanLibrary handles POST /api/videos/scan
func (h *Handler) ScanLibrary(w http.ResponseWriter, r *http.Request) {
	report, err := h.lib.ScanLibrary(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, report)
}

// ListTags handles GET /api/tags?limit=
func (h *Handler) ListTags(w http.ResponseWriter, r *http.Request) {
	limit, ok := h.intQuery(w, r, "limit", 0)
	if !ok {
		return
	}
	tags, err := h.lib.ListTags(r.Context(), limit)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, tags)
}

// ListChannelTags handles GET /api/channels/{channelId}/tags?min_videos=&limit=
func (h *Handler) ListChannelTags(w http.ResponseWriter, r *http.Request) {
	minVideos, ok := h.intQuery(w, r, "min_videos", 1)
	if !ok {
		return
	}
	limit, ok := h.intQuery(w, r, "limit", 0)
	if !ok {
		return
	}
	tags, err := h.lib.ListChannelTags(r.Context(), chi.URLParam(r, "channelId"), minVideos, limit)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, tags)
}

// ListChannels handles GET /api/channels
func (h *Handler) ListChannels(w http.ResponseWriter, r *http.Request) {
	channels, err := h.lib.ListChannels(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, channels)
}

// GetChannel handles GET /api/channels/{channelId}
func (h *Handler) GetChannel(w http.ResponseWriter, r *http.Request) {
	detail, err := h.lib.GetChannel(r.Context(), chi.URLParam(r, "channelId"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, detail)
}

// ListPlaylists handles GET /api/playlists
func (h *Handler) ListPlaylists(w http.ResponseWriter, r *http.Request) {
	playlists, err := h.lib.ListPlaylists(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, playlists)
}

// GetPlaylist handles GET /api/playlists/{playlistId}
func (h *Handler) GetPlaylist(w http.ResponseWriter, r *http.Request) {
	playlist, err := h.lib.GetPlaylist(r.Context(), chi.URLParam(r, "playlistId"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, playlist)
}

// GetPlaylistVideos handles GET /api/playlists/{playlistId}/videos?sort_by=&limit=
func (h *Handler) GetPlaylistVideos(w http.ResponseWriter, r *http.Request) {
	limit, ok := h.intQuery(w, r, "limit", 0)
	if !ok {
		return
	}
	sortBy := model.PlaylistSort(r.URL.Query().Get("sort_by"))

	entries, err := h.lib.GetPlaylistVideos(r.Context(), chi.URLParam(r, "playlistId"), sortBy, limit)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, entries)
}

// DeletePlaylist handles DELETE /api/playlists/{playlistId}
func (h *Handler) DeletePlaylist(w http.ResponseWriter, r *http.Request) {
	if err := h.lib.DeletePlaylist(r.Context(), chi.URLParam(r, "playlistId")); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		h.writeError(w, apperrors.Wrap(err, apperrors.CodeInvalidArg, "invalid JSON body"))
		return false
	}
	return true
}

func (h *Handler) intQuery(w http.ResponseWriter, r *http.Request, key string, fallback int) (int, bool) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return fallback, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		h.writeError(w, apperrors.New(apperrors.CodeInvalidArg, key+" must be an integer"))
		return 0, false
	}
	return n, true
}
