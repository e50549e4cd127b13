package http

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"smartgarden-cloud/internal/apperr"
	masterdataapp "smartgarden-cloud/internal/masterdata/application"
	masterdata "smartgarden-cloud/internal/masterdata/domain"
)

const (
	gardensPath = "/api/v1/gardens"
	devicesPath = "/api/v1/devices"
)

// GardenHandler serves /api/v1/gardens and /api/v1/gardens/{id}.
type GardenHandler struct {
	service *masterdataapp.Service
}

// NewGardenHandler constructs a handler.
func NewGardenHandler(service *masterdataapp.Service) (*GardenHandler, error) {
	if service == nil {
		return nil, errors.New("garden handler: nil service")
	}
	return &GardenHandler{service: service}, nil
}

type gardenRequest struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Location    string `json:"location"`
}

type gardenResponse struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Location    string    `json:"location,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
}

func (h *GardenHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	id := strings.Trim(strings.TrimPrefix(r.URL.Path, gardensPath), "/")
	switch {
	case id == "" && r.Method == http.MethodPost:
		h.handleCreate(w, r)
	case id == "" && r.Method == http.MethodGet:
		h.handleList(w, r)
	case id != "" && !strings.Contains(id, "/") && r.Method == http.MethodGet:
		h.handleGet(w, r, id)
	case id != "" && !strings.Contains(id, "/"):
		w.WriteHeader(http.StatusMethodNotAllowed)
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (h *GardenHandler) handleCreate(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "read body error", http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	var req gardenRequest
	if err := json.Unmarshal(body, &req); err != nil {
		apperr.Write(w, r, apperr.BadRequest("invalid json"))
		return
	}
	garden, err := h.service.CreateGarden(r.Context(), masterdata.Garden{
		ID:          req.ID,
		Name:        strings.TrimSpace(req.Name),
		Description: req.Description,
		Location:    req.Location,
	})
	if err != nil {
		apperr.Write(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toGardenResponse(*garden))
}

func (h *GardenHandler) handleList(w http.ResponseWriter, r *http.Request) {
	gardens, err := h.service.ListGardens(r.Context())
	if err != nil {
		apperr.Write(w, r, err)
		return
	}
	resp := make([]gardenResponse, 0, len(gardens))
	for _, garden := range gardens {
		resp = append(resp, toGardenResponse(garden))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *GardenHandler) handleGet(w http.ResponseWriter, r *http.Request, id string) {
	garden, err := h.service.GetGarden(r.Context(), id)
	if err != nil {
		apperr.Write(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toGardenResponse(*garden))
}

// DeviceHandler serves device registration and enablement.
type DeviceHandler struct {
	service *masterdataapp.Service
}

// NewDeviceHandler constructs a handler.
func NewDeviceHandler(service *masterdataapp.Service) (*DeviceHandler, error) {
	if service == nil {
		return nil, errors.New("device handler: nil service")
	}
	return &DeviceHandler{service: service}, nil
}

type registerRequest struct {
	DeviceID string `json:"deviceId"`
	GardenID string `json:"gardenId"`
}

type deviceResponse struct {
	DeviceID string     `json:"deviceId"`
	GardenID string     `json:"gardenId"`
	Enabled  bool       `json:"enabled"`
	LastSeen *time.Time `json:"lastSeen,omitempty"`
	APIKey   string     `json:"apiKey,omitempty"`
}

func (h *DeviceHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	rest := strings.Trim(strings.TrimPrefix(r.URL.Path, devicesPath), "/")
	if rest == "" {
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		h.handleRegister(w, r)
		return
	}
	parts := strings.Split(rest, "/")
	switch {
	case len(parts) == 1 && r.Method == http.MethodGet:
		h.handleGet(w, r, parts[0])
	case len(parts) == 2 && parts[1] == "enable" && r.Method == http.MethodPost:
		h.handleSetEnabled(w, r, parts[0], true)
	case len(parts) == 2 && parts[1] == "disable" && r.Method == http.MethodPost:
		h.handleSetEnabled(w, r, parts[0], false)
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (h *DeviceHandler) handleRegister(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "read body error", http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	var req registerRequest
	if err := json.Unmarshal(body, &req); err != nil {
		apperr.Write(w, r, apperr.BadRequest("invalid json"))
		return
	}
	device, apiKey, err := h.service.RegisterDevice(r.Context(), req.DeviceID, req.GardenID)
	if err != nil {
		apperr.Write(w, r, err)
		return
	}
	resp := toDeviceResponse(*device)
	resp.APIKey = apiKey
	writeJSON(w, http.StatusCreated, resp)
}

func (h *DeviceHandler) handleGet(w http.ResponseWriter, r *http.Request, id string) {
	device, err := h.service.GetDevice(r.Context(), id)
	if err != nil {
		apperr.Write(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toDeviceResponse(*device))
}

func (h *DeviceHandler) handleSetEnabled(w http.ResponseWriter, r *http.Request, id string, enabled bool) {
	device, err := h.service.SetDeviceEnabled(r.Context(), id, enabled)
	if err != nil {
		apperr.Write(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toDeviceResponse(*device))
}

func toGardenResponse(garden masterdata.Garden) gardenResponse {
	return gardenResponse{
		ID:          garden.ID,
		Name:        garden.Name,
		Description: garden.Description,
		Location:    garden.Location,
		CreatedAt:   garden.CreatedAt,
	}
}

func toDeviceResponse(device masterdata.Device) deviceResponse {
	return deviceResponse{
		DeviceID: device.ID,
		GardenID: device.GardenID,
		Enabled:  device.Enabled,
		LastSeen: device.LastSeen,
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
