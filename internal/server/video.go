package server

import (
	"net/http"

	"github.com/apolloyr/tunebridge/internal/services"
	"github.com/apolloyr/tunebridge/internal/shared"
	"github.com/charmbracelet/log"
)

// maxSearchResults bounds the multi-result search endpoint.
const maxSearchResults = 5

// VideoHandler proxies video search and audio URL resolution for the player.
//
// These routes are ordinary request/response glue over [services.VideoSearch];
// they carry no auth state of their own.
type VideoHandler struct {
	search services.VideoSearch
	logger *log.Logger
}

// NewVideoHandler creates the video search handler.
func NewVideoHandler(search services.VideoSearch, logger *log.Logger) *VideoHandler {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &VideoHandler{search: search, logger: logger}
}

// Routes returns the HTTP routes this handler serves.
func (h *VideoHandler) Routes() []string {
	return []string{"/youtube_search", "/youtube_search_multiple", "/youtube_audio"}
}

func (h *VideoHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.URL.Path {
	case "/youtube_search":
		h.searchOne(w, r)
	case "/youtube_search_multiple":
		h.searchMany(w, r)
	case "/youtube_audio":
		h.audio(w, r)
	default:
		http.NotFound(w, r)
	}
}

func (h *VideoHandler) searchOne(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	if query == "" {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "Missing query parameter"})
		return
	}

	videoID, err := h.search.Search(r.Context(), query)
	if err != nil {
		h.logger.Warn("video search failed", "err", err)
		writeJSON(w, http.StatusBadGateway, errorBody{Error: "search unavailable"})
		return
	}

	// A miss is a null videoId, not an error
	var result any
	if videoID != "" {
		result = videoID
	}
	writeJSON(w, http.StatusOK, map[string]any{"videoId": result})
}

func (h *VideoHandler) searchMany(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	if query == "" {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "Missing query parameter"})
		return
	}

	results, err := h.search.SearchMultiple(r.Context(), query, maxSearchResults)
	if err != nil {
		h.logger.Warn("video search failed", "err", err)
		writeJSON(w, http.StatusBadGateway, errorBody{Error: "search unavailable"})
		return
	}

	writeJSON(w, http.StatusOK, results)
}

func (h *VideoHandler) audio(w http.ResponseWriter, r *http.Request) {
	videoID := r.URL.Query().Get("videoId")
	if videoID == "" {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "Missing videoId"})
		return
	}

	audioURL, err := h.search.AudioURL(r.Context(), videoID)
	if err != nil {
		h.logger.Warn("audio resolution failed", "video_id", videoID, "err", err)
		writeJSON(w, http.StatusBadGateway, errorBody{Error: "audio resolution failed"})
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"audio_url": audioURL})
}
