package http

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"smartgarden-cloud/internal/apperr"
	thresholdsapp "smartgarden-cloud/internal/thresholds/application"
	thresholds "smartgarden-cloud/internal/thresholds/domain"
	telemetry "smartgarden-cloud/internal/telemetry/domain"
)

const thresholdsPath = "/api/v1/thresholds/"

// Handler serves /api/v1/thresholds/{gardenId}[/{sensorType}].
type Handler struct {
	service *thresholdsapp.Service
}

// NewHandler constructs a handler.
func NewHandler(service *thresholdsapp.Service) (*Handler, error) {
	if service == nil {
		return nil, errors.New("thresholds handler: nil service")
	}
	return &Handler{service: service}, nil
}

type upsertRequest struct {
	SensorType        string   `json:"sensorType"`
	MinThresholdValue *float64 `json:"minThresholdValue"`
	MaxThresholdValue *float64 `json:"maxThresholdValue"`
	AutoWaterEnabled  bool     `json:"autoWaterEnabled"`
	PumpMaxSeconds    *int     `json:"pumpMaxSeconds"`
}

type thresholdResponse struct {
	GardenID          string    `json:"gardenId"`
	SensorType        string    `json:"sensorType"`
	MinThresholdValue float64   `json:"minThresholdValue"`
	MaxThresholdValue float64   `json:"maxThresholdValue"`
	AutoWaterEnabled  bool      `json:"autoWaterEnabled"`
	PumpMaxSeconds    int       `json:"pumpMaxSeconds"`
	UpdatedAt         time.Time `json:"updatedAt"`
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	rest := strings.Trim(strings.TrimPrefix(r.URL.Path, thresholdsPath), "/")
	if rest == "" {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	parts := strings.Split(rest, "/")
	switch {
	case len(parts) == 1 && r.Method == http.MethodPut:
		h.handleUpsert(w, r, parts[0])
	case len(parts) == 1 && r.Method == http.MethodGet:
		h.handleList(w, r, parts[0])
	case len(parts) == 2 && r.Method == http.MethodGet:
		h.handleGet(w, r, parts[0], parts[1])
	case len(parts) <= 2:
		w.WriteHeader(http.StatusMethodNotAllowed)
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (h *Handler) handleUpsert(w http.ResponseWriter, r *http.Request, gardenID string) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "read body error", http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	var req upsertRequest
	if err := json.Unmarshal(body, &req); err != nil {
		apperr.Write(w, r, apperr.BadRequest("invalid json"))
		return
	}
	sensorType, err := telemetry.ParseSensorType(req.SensorType)
	if err != nil {
		apperr.Write(w, r, err)
		return
	}
	if req.MinThresholdValue == nil || req.MaxThresholdValue == nil {
		apperr.Write(w, r, apperr.BadRequest("minThresholdValue and maxThresholdValue required"))
		return
	}

	threshold, err := h.service.Upsert(r.Context(), thresholdsapp.UpsertRequest{
		GardenID:         gardenID,
		SensorType:       sensorType,
		MinValue:         *req.MinThresholdValue,
		MaxValue:         *req.MaxThresholdValue,
		AutoWaterEnabled: req.AutoWaterEnabled,
		PumpMaxSeconds:   req.PumpMaxSeconds,
	})
	if err != nil {
		apperr.Write(w, r, err)
		return
	}
	writeJSON(w, toResponse(*threshold))
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request, gardenID string) {
	list, err := h.service.List(r.Context(), gardenID)
	if err != nil {
		apperr.Write(w, r, err)
		return
	}
	resp := make([]thresholdResponse, 0, len(list))
	for _, threshold := range list {
		resp = append(resp, toResponse(threshold))
	}
	writeJSON(w, resp)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request, gardenID, rawSensorType string) {
	sensorType, err := telemetry.ParseSensorType(rawSensorType)
	if err != nil {
		apperr.Write(w, r, err)
		return
	}
	threshold, err := h.service.Get(r.Context(), gardenID, sensorType)
	if err != nil {
		apperr.Write(w, r, err)
		return
	}
	writeJSON(w, toResponse(*threshold))
}

func toResponse(threshold thresholds.Threshold) thresholdResponse {
	return thresholdResponse{
		GardenID:          threshold.GardenID,
		SensorType:        string(threshold.SensorType),
		MinThresholdValue: threshold.MinValue,
		MaxThresholdValue: threshold.MaxValue,
		AutoWaterEnabled:  threshold.AutoWaterEnabled,
		PumpMaxSeconds:    threshold.PumpMaxSeconds,
		UpdatedAt:         threshold.UpdatedAt,
	}
}

func writeJSON(w http.ResponseWriter, body any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(body)
}
