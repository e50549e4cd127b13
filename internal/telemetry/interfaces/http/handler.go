package http

import (
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"smartgarden-cloud/internal/apperr"
	telemetryapp "smartgarden-cloud/internal/telemetry/application"
	telemetry "smartgarden-cloud/internal/telemetry/domain"
)

// AutoControlHeader flags a stored reading whose auto-control run failed.
const AutoControlHeader = "X-Auto-Control"

const (
	devicesPath = "/api/v1/devices/"
	gardensPath = "/api/v1/gardens/"
)

// IngestHandler serves POST /api/v1/devices/{id}/data.
type IngestHandler struct {
	service *telemetryapp.Service
	logger  *log.Logger
}

// NewIngestHandler constructs an ingest handler.
func NewIngestHandler(service *telemetryapp.Service, logger *log.Logger) (*IngestHandler, error) {
	if service == nil {
		return nil, errors.New("telemetry ingest: nil service")
	}
	if logger == nil {
		logger = log.Default()
	}
	return &IngestHandler{service: service, logger: logger}, nil
}

type ingestRequest struct {
	SensorType string   `json:"sensorType"`
	Value      *float64 `json:"value"`
	Timestamp  string   `json:"timestamp"`
}

// ServeHTTP ingests one reading.
func (h *IngestHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	parts := strings.Split(strings.Trim(strings.TrimPrefix(r.URL.Path, devicesPath), "/"), "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] != "data" {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		h.logger.Printf("telemetry ingest: read body error: %v", err)
		http.Error(w, "read body error", http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	var req ingestRequest
	if err := json.Unmarshal(body, &req); err != nil {
		h.logger.Printf("telemetry ingest: decode error: %v", err)
		apperr.Write(w, r, apperr.BadRequest("invalid json"))
		return
	}

	result, err := h.service.Ingest(r.Context(), telemetryapp.IngestRequest{
		DeviceID:   parts[0],
		SensorType: req.SensorType,
		Value:      req.Value,
		Timestamp:  req.Timestamp,
	})
	if err != nil {
		apperr.Write(w, r, err)
		return
	}
	if result.ControlErr != nil {
		w.Header().Set(AutoControlHeader, "failed")
	}
	w.WriteHeader(http.StatusOK)
}

// HistoryHandler serves GET /api/v1/gardens/{id}/sensor-data.
type HistoryHandler struct {
	service *telemetryapp.Service
}

// NewHistoryHandler constructs a history handler.
func NewHistoryHandler(service *telemetryapp.Service) (*HistoryHandler, error) {
	if service == nil {
		return nil, errors.New("telemetry history: nil service")
	}
	return &HistoryHandler{service: service}, nil
}

type readingResponse struct {
	ID         string    `json:"id"`
	DeviceID   string    `json:"deviceId"`
	SensorType string    `json:"sensorType"`
	Value      float64   `json:"value"`
	Timestamp  time.Time `json:"timestamp"`
}

type historyResponse struct {
	Content       []readingResponse `json:"content"`
	Page          int               `json:"page"`
	Size          int               `json:"size"`
	TotalElements int               `json:"totalElements"`
}

// ServeHTTP returns one page of readings.
func (h *HistoryHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	parts := strings.Split(strings.Trim(strings.TrimPrefix(r.URL.Path, gardensPath), "/"), "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] != "sensor-data" {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	query := r.URL.Query()
	req := telemetryapp.HistoryRequest{GardenID: parts[0]}
	var err error
	if req.From, err = parseTimeParam(query.Get("from")); err != nil {
		apperr.Write(w, r, err)
		return
	}
	if req.To, err = parseTimeParam(query.Get("to")); err != nil {
		apperr.Write(w, r, err)
		return
	}
	if req.Page, err = parseIntParam(query.Get("page")); err != nil {
		apperr.Write(w, r, err)
		return
	}
	if req.Size, err = parseIntParam(query.Get("size")); err != nil {
		apperr.Write(w, r, err)
		return
	}

	page, err := h.service.History(r.Context(), req)
	if err != nil {
		apperr.Write(w, r, err)
		return
	}
	resp := historyResponse{
		Content:       make([]readingResponse, 0, len(page.Readings)),
		Page:          page.Page,
		Size:          page.Size,
		TotalElements: page.Total,
	}
	for _, reading := range page.Readings {
		resp.Content = append(resp.Content, toReadingResponse(reading))
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}

func toReadingResponse(reading telemetry.Reading) readingResponse {
	return readingResponse{
		ID:         reading.ID,
		DeviceID:   reading.DeviceID,
		SensorType: string(reading.SensorType),
		Value:      reading.Value,
		Timestamp:  reading.Timestamp,
	}
}

func parseTimeParam(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, nil
	}
	ts := telemetryapp.ParseTimestamp(value, time.Time{})
	if ts.IsZero() {
		return time.Time{}, apperr.BadRequest("invalid time " + strconv.Quote(value))
	}
	return ts, nil
}

func parseIntParam(value string) (int, error) {
	if value == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, apperr.BadRequest("invalid integer " + strconv.Quote(value))
	}
	return n, nil
}
