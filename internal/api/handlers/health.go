package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/vamojunto/nfce-api/internal/models"
	"github.com/vamojunto/nfce-api/internal/services"
)

const apiVersion = "1.0.0"

// HealthHandler handles health check requests
type HealthHandler struct {
	services  *services.Container
	logger    *logrus.Logger
	startTime time.Time
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(services *services.Container, logger *logrus.Logger) *HealthHandler {
	return &HealthHandler{
		services:  services,
		logger:    logger,
		startTime: time.Now(),
	}
}

// GetHealth handles general health check
// @Summary Health check
// @Description Get the health status of the API and its dependencies
// @Tags Health
// @Produce json
// @Success 200 {object} models.HealthResponse
// @Failure 503 {object} models.ErrorResponse
// @Router /health [get]
func (h *HealthHandler) GetHealth(c *gin.Context) {
	servicesHealth := h.services.Health()

	status := "healthy"
	for _, serviceHealth := range servicesHealth {
		if healthMap, ok := serviceHealth.(map[string]interface{}); ok {
			if serviceStatus, exists := healthMap["status"]; exists && serviceStatus == "unhealthy" {
				status = "unhealthy"
				break
			}
		}
	}

	response := models.HealthResponse{
		Status:    status,
		Timestamp: time.Now(),
		Version:   apiVersion,
		Services:  make(map[string]models.ServiceInfo),
		Uptime:    time.Since(h.startTime).String(),
	}

	for serviceName, serviceHealth := range servicesHealth {
		if healthMap, ok := serviceHealth.(map[string]interface{}); ok {
			serviceInfo := models.ServiceInfo{
				LastCheck: time.Now(),
			}
			if serviceStatus, exists := healthMap["status"]; exists {
				if s, ok := serviceStatus.(string); ok {
					serviceInfo.Status = s
				}
			}
			if errorMsg, exists := healthMap["error"]; exists {
				if e, ok := errorMsg.(string); ok {
					serviceInfo.Error = e
				}
			}
			response.Services[serviceName] = serviceInfo
		}
	}

	httpStatus := http.StatusOK
	if status == "unhealthy" {
		httpStatus = http.StatusServiceUnavailable
	}

	c.JSON(httpStatus, response)
}

// GetReadiness handles readiness probe
// @Summary Readiness check
// @Description Check if the API is ready to serve requests
// @Tags Health
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Failure 503 {object} models.ErrorResponse
// @Router /health/ready [get]
func (h *HealthHandler) GetReadiness(c *gin.Context) {
	servicesHealth := h.services.Health()

	ready := true
	issues := make([]string, 0)

	// the database is the only hard dependency; cache degrades gracefully
	if dbHealth, exists := servicesHealth["database"]; exists {
		if healthMap, ok := dbHealth.(map[string]interface{}); ok {
			if status, exists := healthMap["status"]; exists && status == "unhealthy" {
				ready = false
				issues = append(issues, "database is unhealthy")
			}
		}
	}

	response := map[string]interface{}{
		"ready":     ready,
		"timestamp": time.Now(),
		"services":  servicesHealth,
	}
	if len(issues) > 0 {
		response["issues"] = issues
	}

	httpStatus := http.StatusOK
	if !ready {
		httpStatus = http.StatusServiceUnavailable
	}

	c.JSON(httpStatus, response)
}

// GetLiveness handles liveness probe
// @Summary Liveness check
// @Description Check if the API is alive and responding
// @Tags Health
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Router /health/live [get]
func (h *HealthHandler) GetLiveness(c *gin.Context) {
	c.JSON(http.StatusOK, map[string]interface{}{
		"alive":     true,
		"timestamp": time.Now(),
		"uptime":    time.Since(h.startTime).String(),
		"version":   apiVersion,
	})
}
