package auth

import (
	"net/http"
	"regexp"
	"strings"
)

var devicePathPattern = regexp.MustCompile(`^/api/v1/devices/([^/]+)/(data|commands(/.*)?)$`)

// DevicePathID returns the device id of a device-facing path.
func DevicePathID(path string) (string, bool) {
	match := devicePathPattern.FindStringSubmatch(path)
	if match == nil {
		return "", false
	}
	return match[1], true
}

// Policy determines required roles by request.
type Policy struct {
	ExemptPaths    map[string]struct{}
	ExemptPrefixes []string
}

// NewDefaultPolicy builds a default policy with exemptions.
func NewDefaultPolicy(exemptPaths []string, exemptPrefixes []string) Policy {
	set := make(map[string]struct{}, len(exemptPaths))
	for _, path := range exemptPaths {
		set[path] = struct{}{}
	}
	return Policy{ExemptPaths: set, ExemptPrefixes: exemptPrefixes}
}

// IsExempt returns true when a request should skip auth/RBAC.
func (p Policy) IsExempt(r *http.Request) bool {
	if r == nil {
		return true
	}
	if _, ok := p.ExemptPaths[r.URL.Path]; ok {
		return true
	}
	for _, prefix := range p.ExemptPrefixes {
		if strings.HasPrefix(r.URL.Path, prefix) {
			return true
		}
	}
	return false
}

// RequiredRole resolves required role for the request. Device-facing paths
// are authenticated by device key and report ok=false.
func (p Policy) RequiredRole(r *http.Request) (Role, bool) {
	if r == nil {
		return "", false
	}
	path := r.URL.Path
	method := r.Method

	if _, ok := DevicePathID(path); ok {
		return "", false
	}

	switch {
	case strings.HasPrefix(path, "/api/v1/thresholds/"):
		if method == http.MethodGet {
			return RoleUser, true
		}
		return RoleAdmin, true
	case path == "/api/v1/gardens" || path == "/api/v1/gardens/":
		if method == http.MethodGet {
			return RoleUser, true
		}
		return RoleAdmin, true
	case strings.HasPrefix(path, "/api/v1/gardens/") &&
		(strings.HasSuffix(path, "/pump/start") || strings.HasSuffix(path, "/pump/stop")):
		return RoleUser, true
	case path == "/api/v1/devices" || path == "/api/v1/devices/":
		if method == http.MethodGet {
			return RoleUser, true
		}
		return RoleAdmin, true
	case strings.HasPrefix(path, "/api/v1/devices/") &&
		(strings.HasSuffix(path, "/enable") || strings.HasSuffix(path, "/disable")):
		return RoleAdmin, true
	case strings.HasPrefix(path, "/api/v1/pump/logs"):
		return RoleAdmin, true
	}

	if strings.HasPrefix(path, "/api/") {
		if method == http.MethodGet || method == http.MethodHead || method == http.MethodOptions {
			return RoleUser, true
		}
		return RoleAdmin, true
	}
	return "", false
}
