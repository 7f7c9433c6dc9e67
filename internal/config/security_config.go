package config

import "net/http"

type SecurityLevel int

const (
	SecurityPublic  SecurityLevel = iota // No authentication
	SecurityAccess                       // Access token required
	SecurityManager                      // Access token of a branch manager or admin
)

// EndpointSecurityConfig maps "METHOD route-template" to the required level.
// Keys use the mux path template so ids do not matter.
var EndpointSecurityConfig = map[string]SecurityLevel{
	// Public
	http.MethodPost + " /api/auth/login": SecurityPublic,
	http.MethodGet + " /api/time":        SecurityPublic,
	http.MethodGet + " /metrics":         SecurityPublic,
	http.MethodGet + " /healthz":         SecurityPublic,

	// Rentals - Access Protected
	http.MethodGet + " /api/rentals/active":         SecurityAccess,
	http.MethodPost + " /api/rentals":               SecurityAccess,
	http.MethodGet + " /api/rentals/{id}":           SecurityAccess,
	http.MethodPost + " /api/rentals/{id}/cancel":   SecurityAccess,
	http.MethodPost + " /api/rentals/{id}/extend":   SecurityAccess,
	http.MethodPost + " /api/rentals/{id}/complete": SecurityAccess,

	// Reports - Manager Protected
	http.MethodGet + " /api/reports/revenue":     SecurityManager,
	http.MethodGet + " /api/reports/revenue.csv": SecurityManager,
}

// GetSecurityLevel returns the security level for a route
func GetSecurityLevel(method, pathTemplate string) SecurityLevel {
	if level, exists := EndpointSecurityConfig[method+" "+pathTemplate]; exists {
		return level
	}
	// Default to highest security for unknown endpoints
	return SecurityManager
}
