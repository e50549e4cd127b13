package auth

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"strings"

	"smartgarden-cloud/internal/apperr"
)

// DeviceKeyHeader carries the device API key.
const DeviceKeyHeader = "X-DEVICE-KEY"

var errInvalidDeviceKey = fmt.Errorf("auth: invalid device key: %w", apperr.ErrUnauthorized)

// DeviceKeyVerifier checks a device's presented API key.
type DeviceKeyVerifier interface {
	VerifyDeviceKey(ctx context.Context, deviceID, key string) error
}

// DeviceKeyMiddleware authenticates device-facing paths by API key.
type DeviceKeyMiddleware struct {
	verifier DeviceKeyVerifier
	logger   *log.Logger
}

// NewDeviceKeyMiddleware constructs the device key middleware.
func NewDeviceKeyMiddleware(verifier DeviceKeyVerifier, logger *log.Logger) (*DeviceKeyMiddleware, error) {
	if verifier == nil {
		return nil, errors.New("auth: nil device key verifier")
	}
	if logger == nil {
		logger = log.Default()
	}
	return &DeviceKeyMiddleware{verifier: verifier, logger: logger}, nil
}

// Wrap enforces X-DEVICE-KEY on device paths and passes other requests through.
func (m *DeviceKeyMiddleware) Wrap(next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		deviceID, ok := DevicePathID(r.URL.Path)
		if !ok {
			next.ServeHTTP(w, r)
			return
		}
		key := strings.TrimSpace(r.Header.Get(DeviceKeyHeader))
		if key == "" {
			m.logger.Printf("device key missing: device=%s ip=%s", deviceID, ClientIP(r))
			apperr.Write(w, r, errInvalidDeviceKey)
			return
		}
		if err := m.verifier.VerifyDeviceKey(r.Context(), deviceID, key); err != nil {
			m.logger.Printf("device key rejected: device=%s ip=%s err=%v", deviceID, ClientIP(r), err)
			if errors.Is(err, apperr.ErrUnauthorized) {
				apperr.Write(w, r, errInvalidDeviceKey)
				return
			}
			apperr.Write(w, r, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(WithDevice(r.Context(), deviceID)))
	})
}

// ClientIP extracts client ip from common headers or RemoteAddr.
func ClientIP(r *http.Request) string {
	if r == nil {
		return ""
	}
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		parts := strings.Split(forwarded, ",")
		if len(parts) > 0 {
			return strings.TrimSpace(parts[0])
		}
	}
	if realIP := r.Header.Get("X-Real-IP"); realIP != "" {
		return strings.TrimSpace(realIP)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err == nil {
		return host
	}
	return r.RemoteAddr
}
