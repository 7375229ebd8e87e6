package models

import "time"

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error     string    `json:"error" example:"Invalid access key format"`
	Message   string    `json:"message" example:"Access key must contain exactly 44 digits"`
	Code      string    `json:"code,omitempty" example:"INVALID_ACCESS_KEY"`
	Timestamp time.Time `json:"timestamp" example:"2025-11-08T15:00:00Z"`
	Path      string    `json:"path" example:"/api/v1/notes/scan"`
}

// HealthResponse represents health check response
type HealthResponse struct {
	Status    string                 `json:"status" example:"healthy"`
	Timestamp time.Time              `json:"timestamp" example:"2025-11-08T15:00:00Z"`
	Version   string                 `json:"version" example:"1.0.0"`
	Services  map[string]ServiceInfo `json:"services"`
	Uptime    string                 `json:"uptime" example:"2h30m45s"`
}

// ServiceInfo represents individual service health
type ServiceInfo struct {
	Status    string    `json:"status" example:"healthy"`
	LastCheck time.Time `json:"last_check" example:"2025-11-08T15:00:00Z"`
	Error     string    `json:"error,omitempty"`
}
