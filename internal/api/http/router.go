// Package apihttp composes the bounded-context handlers into the public HTTP surface.
package apihttp

import (
	"errors"
	"net/http"
	"strings"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"smartgarden-cloud/internal/auth"
)

const (
	gardensPath  = "/api/v1/gardens"
	devicesPath  = "/api/v1/devices"
	pumpLogsPath = "/api/v1/pump/logs"
)

// Handlers groups the per-context handlers served by the router.
type Handlers struct {
	Gardens        http.Handler
	Devices        http.Handler
	Thresholds     http.Handler
	Pump           http.Handler
	History        http.Handler
	Ingest         http.Handler
	DeviceCommands http.Handler
	PumpLogs       http.Handler
}

func (h Handlers) validate() error {
	switch {
	case h.Gardens == nil:
		return errors.New("router: nil garden handler")
	case h.Devices == nil:
		return errors.New("router: nil device handler")
	case h.Thresholds == nil:
		return errors.New("router: nil threshold handler")
	case h.Pump == nil:
		return errors.New("router: nil pump handler")
	case h.History == nil:
		return errors.New("router: nil history handler")
	case h.Ingest == nil:
		return errors.New("router: nil ingest handler")
	case h.DeviceCommands == nil:
		return errors.New("router: nil device command handler")
	case h.PumpLogs == nil:
		return errors.New("router: nil pump log handler")
	}
	return nil
}

// ExemptPaths are served without credentials.
var ExemptPaths = []string{"/healthz", "/metrics"}

// NewRouter builds the mux and wraps it with device-key and JWT authentication.
// Device-facing paths only pass the device-key check; everything else needs a token.
func NewRouter(h Handlers, jwt *auth.Middleware, deviceKeys *auth.DeviceKeyMiddleware) (http.Handler, error) {
	if err := h.validate(); err != nil {
		return nil, err
	}
	if jwt == nil {
		return nil, errors.New("router: nil jwt middleware")
	}
	if deviceKeys == nil {
		return nil, errors.New("router: nil device key middleware")
	}

	gardens := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rest := strings.Trim(strings.TrimPrefix(r.URL.Path, gardensPath), "/")
		parts := strings.Split(rest, "/")
		switch {
		case len(parts) >= 2 && parts[1] == "pump":
			h.Pump.ServeHTTP(w, r)
		case len(parts) >= 2 && parts[1] == "sensor-data":
			h.History.ServeHTTP(w, r)
		default:
			h.Gardens.ServeHTTP(w, r)
		}
	})

	devices := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := auth.DevicePathID(r.URL.Path); ok {
			rest := strings.Trim(strings.TrimPrefix(r.URL.Path, devicesPath), "/")
			parts := strings.Split(rest, "/")
			if parts[1] == "data" {
				h.Ingest.ServeHTTP(w, r)
				return
			}
			h.DeviceCommands.ServeHTTP(w, r)
			return
		}
		h.Devices.ServeHTTP(w, r)
	})

	mux := http.NewServeMux()
	mux.Handle(gardensPath, gardens)
	mux.Handle(gardensPath+"/", gardens)
	mux.Handle(devicesPath, devices)
	mux.Handle(devicesPath+"/", devices)
	mux.Handle("/api/v1/thresholds/", h.Thresholds)
	mux.Handle(pumpLogsPath, h.PumpLogs)
	mux.Handle(pumpLogsPath+"/", h.PumpLogs)
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	return deviceKeys.Wrap(jwt.Wrap(mux)), nil
}
