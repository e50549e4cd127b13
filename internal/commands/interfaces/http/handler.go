package http

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"smartgarden-cloud/internal/apperr"
	"smartgarden-cloud/internal/auth"
	commandsapp "smartgarden-cloud/internal/commands/application"
	commands "smartgarden-cloud/internal/commands/domain"
)

const (
	devicesPath = "/api/v1/devices/"
	gardensPath = "/api/v1/gardens/"
)

// DeviceCommandsHandler serves the device-facing command queue:
// GET /api/v1/devices/{id}/commands and POST /api/v1/devices/{id}/commands/{cmdId}/ack.
type DeviceCommandsHandler struct {
	queue *commandsapp.Queue
}

// NewDeviceCommandsHandler constructs a handler.
func NewDeviceCommandsHandler(queue *commandsapp.Queue) (*DeviceCommandsHandler, error) {
	if queue == nil {
		return nil, errors.New("commands handler: nil queue")
	}
	return &DeviceCommandsHandler{queue: queue}, nil
}

type commandResponse struct {
	ID              string    `json:"id"`
	Action          string    `json:"action"`
	DurationSeconds *int      `json:"durationSeconds"`
	CreatedAt       time.Time `json:"createdAt"`
}

type ackRequest struct {
	DurationSeconds *int   `json:"durationSeconds"`
	Status          string `json:"status"`
}

type ackResponse struct {
	ID                    string    `json:"id"`
	Action                string    `json:"action"`
	Status                string    `json:"status"`
	ActualDurationSeconds *int      `json:"durationSeconds"`
	AcknowledgedAt        time.Time `json:"acknowledgedAt"`
}

func (h *DeviceCommandsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	parts := strings.Split(strings.Trim(strings.TrimPrefix(r.URL.Path, devicesPath), "/"), "/")
	switch {
	case len(parts) == 2 && parts[0] != "" && parts[1] == "commands":
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		h.handlePending(w, r, parts[0])
	case len(parts) == 4 && parts[0] != "" && parts[1] == "commands" && parts[2] != "" && parts[3] == "ack":
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		h.handleAck(w, r, parts[0], parts[2])
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (h *DeviceCommandsHandler) handlePending(w http.ResponseWriter, r *http.Request, deviceID string) {
	pending, err := h.queue.Pending(r.Context(), deviceID)
	if err != nil {
		apperr.Write(w, r, err)
		return
	}
	resp := make([]commandResponse, 0, len(pending))
	for _, cmd := range pending {
		resp = append(resp, commandResponse{
			ID:              cmd.ID,
			Action:          string(cmd.Action),
			DurationSeconds: cmd.DurationSeconds,
			CreatedAt:       cmd.CreatedAt,
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *DeviceCommandsHandler) handleAck(w http.ResponseWriter, r *http.Request, deviceID, commandID string) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "read body error", http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	var req ackRequest
	if err := json.Unmarshal(body, &req); err != nil {
		apperr.Write(w, r, apperr.BadRequest("invalid json"))
		return
	}
	status, err := commands.ParseResultStatus(req.Status)
	if err != nil {
		apperr.Write(w, r, err)
		return
	}
	cmd, err := h.queue.Acknowledge(r.Context(), deviceID, commandID, req.DurationSeconds, status)
	if err != nil {
		apperr.Write(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ackResponse{
		ID:                    cmd.ID,
		Action:                string(cmd.Action),
		Status:                string(cmd.Ack.Result),
		ActualDurationSeconds: cmd.Ack.ActualDurationSeconds,
		AcknowledgedAt:        cmd.Ack.AckedAt,
	})
}

// PumpHandler serves POST /api/v1/gardens/{id}/pump/start|stop.
type PumpHandler struct {
	pump *commandsapp.PumpService
}

// NewPumpHandler constructs a handler.
func NewPumpHandler(pump *commandsapp.PumpService) (*PumpHandler, error) {
	if pump == nil {
		return nil, errors.New("pump handler: nil pump service")
	}
	return &PumpHandler{pump: pump}, nil
}

type pumpStartRequest struct {
	DurationSeconds *int `json:"durationSeconds"`
}

type pumpCommandRef struct {
	ID       string `json:"id"`
	DeviceID string `json:"deviceId"`
}

type pumpResponse struct {
	GardenID        string           `json:"gardenId"`
	Action          string           `json:"action"`
	DurationSeconds *int             `json:"durationSeconds,omitempty"`
	InitiatedBy     string           `json:"initiatedBy"`
	Status          string           `json:"status"`
	IssuedAt        time.Time        `json:"issuedAt"`
	Commands        []pumpCommandRef `json:"commands"`
}

func (h *PumpHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	parts := strings.Split(strings.Trim(strings.TrimPrefix(r.URL.Path, gardensPath), "/"), "/")
	if len(parts) != 3 || parts[0] == "" || parts[1] != "pump" {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	gardenID := parts[0]
	by := initiatorFromRole(auth.RoleFromContext(r.Context()))

	var (
		result *commandsapp.DispatchResult
		err    error
	)
	switch parts[2] {
	case "start":
		var req pumpStartRequest
		body, readErr := io.ReadAll(r.Body)
		if readErr != nil {
			http.Error(w, "read body error", http.StatusBadRequest)
			return
		}
		defer r.Body.Close()
		if len(strings.TrimSpace(string(body))) > 0 {
			if err := json.Unmarshal(body, &req); err != nil {
				apperr.Write(w, r, apperr.BadRequest("invalid json"))
				return
			}
		}
		result, err = h.pump.Start(r.Context(), gardenID, req.DurationSeconds, by)
	case "stop":
		result, err = h.pump.Stop(r.Context(), gardenID, by)
	default:
		w.WriteHeader(http.StatusNotFound)
		return
	}
	if err != nil {
		apperr.Write(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toPumpResponse(result.Dispatch))
}

func initiatorFromRole(role auth.Role) commands.Initiator {
	if role == auth.RoleAdmin {
		return commands.InitiatedByAdmin
	}
	return commands.InitiatedByUser
}

func toPumpResponse(dispatch commands.Dispatch) pumpResponse {
	refs := make([]pumpCommandRef, 0, len(dispatch.Commands))
	for _, cmd := range dispatch.Commands {
		refs = append(refs, pumpCommandRef{ID: cmd.ID, DeviceID: cmd.DeviceID})
	}
	return pumpResponse{
		GardenID:        dispatch.GardenID,
		Action:          string(dispatch.Action),
		DurationSeconds: dispatch.DurationSeconds,
		InitiatedBy:     string(dispatch.InitiatedBy),
		Status:          string(dispatch.Status),
		IssuedAt:        dispatch.IssuedAt,
		Commands:        refs,
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
