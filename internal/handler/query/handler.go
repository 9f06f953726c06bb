package query

import (
	"encoding/json"
	"errors"
	"mime"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/hlog"

	"github.com/zhouzirui/csvsage/backend/internal/service/ai"
	"github.com/zhouzirui/csvsage/backend/internal/service/analyst"
	"github.com/zhouzirui/csvsage/backend/internal/service/session"
	"github.com/zhouzirui/csvsage/backend/pkg/utils"
)

// Handler serves the conversational query endpoints.
type Handler struct {
	analyst *analyst.Service
}

// New creates the query handler.
func New(analystSvc *analyst.Service) *Handler {
	return &Handler{analyst: analystSvc}
}

// RegisterRoutes mounts the query routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/query/{sessionID}", h.handleQuery)
	r.Get("/history/{sessionID}", h.handleHistory)
}

func (h *Handler) handleQuery(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	query, err := readQuery(r)
	if err != nil {
		utils.RespondError(w, r, http.StatusBadRequest, "invalid request body")
		return
	}

	answer, err := h.analyst.Ask(r.Context(), sessionID, query)
	if err != nil {
		status, message := classify(err)
		if status >= http.StatusInternalServerError {
			hlog.FromRequest(r).Error().Err(err).Str("session_id", sessionID).Msg("query failed")
		}
		utils.RespondError(w, r, status, message)
		return
	}

	utils.RespondJSON(w, r, http.StatusOK, answer)
}

func (h *Handler) handleHistory(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	turns, err := h.analyst.History(r.Context(), sessionID)
	if err != nil {
		status, message := classify(err)
		utils.RespondError(w, r, status, message)
		return
	}
	utils.RespondJSON(w, r, http.StatusOK, map[string]any{
		"session_id": sessionID,
		"turns":      turns,
	})
}

// readQuery accepts a JSON body or form fields.
func readQuery(r *http.Request) (string, error) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "application/json" {
		var payload struct {
			Query string `json:"query"`
		}
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			return "", err
		}
		return payload.Query, nil
	}
	return r.FormValue("query"), nil
}

func classify(err error) (int, string) {
	switch {
	case errors.Is(err, session.ErrSessionNotFound):
		return http.StatusNotFound, err.Error()
	case errors.Is(err, analyst.ErrEmptyQuery):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, analyst.ErrAIUnavailable):
		return http.StatusServiceUnavailable, err.Error()
	case errors.Is(err, ai.ErrCompletionTimeout):
		return http.StatusGatewayTimeout, "LLM query failed: " + err.Error()
	case errors.Is(err, ai.ErrTemplateRender):
		return http.StatusInternalServerError, "prompt template error: " + err.Error()
	default:
		return http.StatusInternalServerError, "LLM query failed: " + err.Error()
	}
}
