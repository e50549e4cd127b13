package audit

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"smartgarden-cloud/internal/apperr"
	"smartgarden-cloud/internal/observability/metrics"
)

const (
	pumpLogsPath    = "/api/v1/pump/logs"
	defaultLogLimit = 200
)

// Handler serves GET /api/v1/pump/logs and its exports.
type Handler struct {
	reader Reader
	now    func() time.Time
}

// NewHandler constructs a pump log handler.
func NewHandler(reader Reader) (*Handler, error) {
	if reader == nil {
		return nil, errors.New("audit handler: nil reader")
	}
	return &Handler{reader: reader, now: func() time.Time { return time.Now().UTC() }}, nil
}

type entryResponse struct {
	ID              string    `json:"id"`
	GardenID        string    `json:"gardenId"`
	DeviceID        string    `json:"deviceId"`
	Action          string    `json:"action"`
	StartedAt       time.Time `json:"startedAt"`
	DurationSeconds *int      `json:"durationSeconds,omitempty"`
	InitiatedBy     string    `json:"initiatedBy"`
	Actor           string    `json:"actor,omitempty"`
	Status          string    `json:"status"`
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	gardenID := strings.TrimSpace(r.URL.Query().Get("gardenId"))
	if gardenID == "" {
		apperr.Write(w, r, apperr.BadRequest("gardenId required"))
		return
	}
	limit := defaultLogLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			apperr.Write(w, r, apperr.BadRequest("limit must be a positive integer"))
			return
		}
		limit = parsed
	}

	switch strings.TrimPrefix(r.URL.Path, pumpLogsPath) {
	case "", "/":
		h.handleList(w, r, gardenID, limit)
	case "/export.xlsx":
		h.handleExport(w, r, gardenID, limit, "xlsx")
	case "/export.pdf":
		h.handleExport(w, r, gardenID, limit, "pdf")
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request, gardenID string, limit int) {
	entries, err := h.reader.ListByGarden(r.Context(), gardenID, limit)
	if err != nil {
		apperr.Write(w, r, err)
		return
	}
	resp := make([]entryResponse, 0, len(entries))
	for _, entry := range entries {
		resp = append(resp, entryResponse{
			ID:              entry.ID,
			GardenID:        entry.GardenID,
			DeviceID:        entry.DeviceID,
			Action:          string(entry.Action),
			StartedAt:       entry.StartedAt,
			DurationSeconds: entry.DurationSeconds,
			InitiatedBy:     string(entry.InitiatedBy),
			Actor:           entry.Actor,
			Status:          string(entry.Status),
		})
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}

func (h *Handler) handleExport(w http.ResponseWriter, r *http.Request, gardenID string, limit int, format string) {
	start := time.Now()
	result := metrics.ResultSuccess
	defer func() {
		metrics.ObserveExport(format, result, time.Since(start))
	}()

	entries, err := h.reader.ListByGarden(r.Context(), gardenID, limit)
	if err != nil {
		result = metrics.ResultError
		apperr.Write(w, r, err)
		return
	}

	var (
		data        []byte
		contentType string
	)
	switch format {
	case "pdf":
		data, err = BuildPumpLogPDF(gardenID, entries, h.now())
		contentType = "application/pdf"
	default:
		data, err = BuildPumpLogXLSX(gardenID, entries, h.now())
		contentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	}
	if err != nil {
		result = metrics.ResultError
		http.Error(w, "export "+format+" error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", `attachment; filename="pump-log-`+gardenID+`.`+format+`"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}
