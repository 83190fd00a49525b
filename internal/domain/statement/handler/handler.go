// Package handler exposes the statement pipeline over HTTP.
package handler

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"golang.org/x/time/rate"

	"github.com/lvandyk/schoolpay/internal/domain/statement/parser"
	"github.com/lvandyk/schoolpay/internal/domain/statement/profile"
	"github.com/lvandyk/schoolpay/internal/domain/statement/service"
)

// StatementHandler serves statement analysis, processing and mapping
// profile administration.
type StatementHandler struct {
	service        *service.Service
	logger         *slog.Logger
	limiter        *rate.Limiter
	maxUploadBytes int64
}

// New creates the handler. Uploads beyond maxUploadBytes are rejected and
// the limiter throttles processing requests across all callers.
func New(svc *service.Service, logger *slog.Logger, limiter *rate.Limiter, maxUploadBytes int64) *StatementHandler {
	return &StatementHandler{
		service:        svc,
		logger:         logger,
		limiter:        limiter,
		maxUploadBytes: maxUploadBytes,
	}
}

// Register mounts the statement routes on the router.
func (h *StatementHandler) Register(r *mux.Router) {
	r.HandleFunc("/v1/statements/analyze", h.Analyze).Methods(http.MethodPost)
	r.HandleFunc("/v1/statements/process", h.Process).Methods(http.MethodPost)
	r.HandleFunc("/v1/statements/process/review.csv", h.ProcessReview).Methods(http.MethodPost)
	r.HandleFunc("/v1/mapping-profiles", h.ListProfiles).Methods(http.MethodGet)
	r.HandleFunc("/v1/mapping-profiles/{name}", h.DeleteProfile).Methods(http.MethodDelete)
}

// Analyze previews an uploaded statement and proposes a column mapping.
func (h *StatementHandler) Analyze(w http.ResponseWriter, r *http.Request) {
	data, kind, ok := h.readUpload(w, r)
	if !ok {
		return
	}

	analysis, err := h.service.Analyze(r.Context(), data, kind)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, analysis)
}

// Process reconciles an uploaded statement and returns bucketed results.
func (h *StatementHandler) Process(w http.ResponseWriter, r *http.Request) {
	input, ok := h.readProcessInput(w, r)
	if !ok {
		return
	}

	result, err := h.service.Process(r.Context(), input)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, result)
}

// ProcessReview reconciles a statement and returns the operator review CSV
// instead of the JSON result.
func (h *StatementHandler) ProcessReview(w http.ResponseWriter, r *http.Request) {
	input, ok := h.readProcessInput(w, r)
	if !ok {
		return
	}

	result, err := h.service.Process(r.Context(), input)
	if err != nil {
		h.writeError(w, err)
		return
	}

	data, err := service.ExportReview(result)
	if err != nil {
		h.writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="review.csv"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

// ListProfiles returns saved mapping profiles.
func (h *StatementHandler) ListProfiles(w http.ResponseWriter, r *http.Request) {
	profiles, err := h.service.ListProfiles(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	if profiles == nil {
		profiles = []profile.Profile{}
	}
	h.writeJSON(w, http.StatusOK, profiles)
}

// DeleteProfile removes a mapping profile for its creator.
func (h *StatementHandler) DeleteProfile(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]
	ownerID, err := uuid.Parse(r.URL.Query().Get("ownerId"))
	if err != nil {
		h.writeJSON(w, http.StatusBadRequest, errorBody("a valid ownerId query parameter is required"))
		return
	}

	if err := h.service.DeleteProfile(r.Context(), name, ownerID); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *StatementHandler) readProcessInput(w http.ResponseWriter, r *http.Request) (service.ProcessInput, bool) {
	if !h.limiter.Allow() {
		h.writeJSON(w, http.StatusTooManyRequests, errorBody("too many requests"))
		return service.ProcessInput{}, false
	}

	data, kind, ok := h.readUpload(w, r)
	if !ok {
		return service.ProcessInput{}, false
	}

	input := service.ProcessInput{
		Data:            data,
		Kind:            kind,
		FileName:        r.FormValue("fileName"),
		ProfileName:     r.FormValue("profileName"),
		SaveProfileName: r.FormValue("saveProfileName"),
		BankName:        r.FormValue("bankName"),
	}
	if input.FileName == "" {
		input.FileName = "statement." + string(kind)
	}

	if raw := r.FormValue("mapping"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &input.Mapping); err != nil {
			h.writeJSON(w, http.StatusBadRequest, errorBody("mapping is not valid JSON"))
			return service.ProcessInput{}, false
		}
	}
	if raw := r.FormValue("uploadedBy"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			h.writeJSON(w, http.StatusBadRequest, errorBody("uploadedBy is not a valid id"))
			return service.ProcessInput{}, false
		}
		input.UploadedBy = &id
	}
	return input, true
}

// readUpload pulls the statement bytes and declared kind out of a
// multipart form.
func (h *StatementHandler) readUpload(w http.ResponseWriter, r *http.Request) ([]byte, parser.Kind, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)
	if err := r.ParseMultipartForm(h.maxUploadBytes); err != nil {
		h.writeJSON(w, http.StatusBadRequest, errorBody("could not parse multipart upload"))
		return nil, "", false
	}

	kind := parser.Kind(r.FormValue("kind"))
	if !parser.ValidKind(kind) {
		h.writeJSON(w, http.StatusBadRequest, errorBody("kind must be one of csv, xlsx, pdf"))
		return nil, "", false
	}

	file, _, err := r.FormFile("file")
	if err != nil {
		h.writeJSON(w, http.StatusBadRequest, errorBody("a file field is required"))
		return nil, "", false
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		h.writeJSON(w, http.StatusBadRequest, errorBody("could not read upload"))
		return nil, "", false
	}
	return data, kind, true
}

func (h *StatementHandler) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, parser.ErrMalformedInput), errors.Is(err, parser.ErrUnsupportedKind),
		errors.Is(err, profile.ErrInvalidMapping):
		status = http.StatusBadRequest
	case errors.Is(err, profile.ErrProfileNotFound):
		status = http.StatusNotFound
	case errors.Is(err, profile.ErrNotOwner):
		status = http.StatusForbidden
	}

	if status == http.StatusInternalServerError {
		h.logger.Error("statement request failed", slog.Any("error", err))
		h.writeJSON(w, status, errorBody("internal error"))
		return
	}
	h.writeJSON(w, status, errorBody(err.Error()))
}

func (h *StatementHandler) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		h.logger.Error("failed to encode response", slog.Any("error", err))
	}
}

func errorBody(msg string) map[string]string {
	return map[string]string{"error": msg}
}
