package dataset

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/hlog"

	"github.com/zhouzirui/csvsage/backend/internal/analysis/tabular"
	"github.com/zhouzirui/csvsage/backend/internal/service/analyst"
	"github.com/zhouzirui/csvsage/backend/internal/service/chart"
	"github.com/zhouzirui/csvsage/backend/internal/service/session"
	"github.com/zhouzirui/csvsage/backend/pkg/utils"
)

const multipartMemory = 8 << 20

// Handler serves dataset upload, summary and plot endpoints.
type Handler struct {
	analyst        *analyst.Service
	charts         *chart.Service
	maxUploadBytes int64
}

// New creates the dataset handler.
func New(analystSvc *analyst.Service, charts *chart.Service, maxUploadBytes int64) *Handler {
	return &Handler{
		analyst:        analystSvc,
		charts:         charts,
		maxUploadBytes: maxUploadBytes,
	}
}

// RegisterRoutes mounts the dataset routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/upload_csv", h.handleUpload)
	r.Get("/summary/{sessionID}", h.handleSummary)
	r.Get("/visualize/{sessionID}", h.handleVisualize)
	r.Get("/plot/{filename}", h.handlePlot)
}

type uploadResponse struct {
	SessionID      string `json:"session_id"`
	Message        string `json:"message"`
	SummaryPreview any    `json:"summary_preview"`
}

func (h *Handler) handleUpload(w http.ResponseWriter, r *http.Request) {
	if h.maxUploadBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)
	}
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			utils.RespondError(w, r, http.StatusRequestEntityTooLarge, "upload too large")
			return
		}
		utils.RespondError(w, r, http.StatusBadRequest, "invalid multipart form")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		utils.RespondError(w, r, http.StatusBadRequest, "file is required")
		return
	}
	defer file.Close()

	if !strings.HasSuffix(strings.ToLower(header.Filename), ".csv") {
		utils.RespondError(w, r, http.StatusBadRequest, "Only CSV files are supported")
		return
	}

	upload, err := h.analyst.Ingest(r.Context(), r.FormValue("session_id"), file)
	switch {
	case errors.Is(err, analyst.ErrInvalidSessionID), errors.Is(err, tabular.ErrParse):
		utils.RespondError(w, r, http.StatusBadRequest, err.Error())
		return
	case err != nil:
		hlog.FromRequest(r).Error().Err(err).Msg("upload failed")
		utils.RespondError(w, r, http.StatusInternalServerError, "Upload failed: "+err.Error())
		return
	}

	utils.RespondJSON(w, r, http.StatusOK, uploadResponse{
		SessionID:      upload.Session.ID,
		Message:        "CSV uploaded and processed",
		SummaryPreview: upload.Summary,
	})
}

func (h *Handler) handleSummary(w http.ResponseWriter, r *http.Request) {
	summary, err := h.analyst.Summary(r.Context(), chi.URLParam(r, "sessionID"))
	if err != nil {
		respondLookupError(w, r, err)
		return
	}
	utils.RespondJSON(w, r, http.StatusOK, summary)
}

func (h *Handler) handleVisualize(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	ds, err := h.analyst.Dataset(r.Context(), sessionID)
	if err != nil {
		respondLookupError(w, r, err)
		return
	}

	plots, err := h.charts.Render(r.Context(), sessionID, ds)
	if err != nil {
		hlog.FromRequest(r).Error().Err(err).Str("session_id", sessionID).Msg("plot rendering failed")
		utils.RespondError(w, r, http.StatusInternalServerError, "Plot rendering failed: "+err.Error())
		return
	}
	utils.RespondJSON(w, r, http.StatusOK, map[string][]string{"plots": plots})
}

func (h *Handler) handlePlot(w http.ResponseWriter, r *http.Request) {
	path, err := h.charts.Path(chi.URLParam(r, "filename"))
	if err != nil {
		utils.RespondError(w, r, http.StatusNotFound, "Plot not found")
		return
	}
	w.Header().Set("Content-Type", "image/png")
	http.ServeFile(w, r, path)
}

func respondLookupError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, session.ErrSessionNotFound) {
		utils.RespondError(w, r, http.StatusNotFound, err.Error())
		return
	}
	utils.RespondError(w, r, http.StatusInternalServerError, err.Error())
}
