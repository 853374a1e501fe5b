// Package services holds operational helpers shared by the server and the
// healthcheck binary.
package services

import (
	"fmt"
	"log"

	"github.com/localnerve/casedocs/internal/config"
	"github.com/localnerve/casedocs/internal/models"
	"gorm.io/gorm"
)

// HealthCheckResult represents the result of a health check
type HealthCheckResult struct {
	Status       string            `json:"status"`
	Database     string            `json:"database"`
	Definitions  int64             `json:"definitions"`
	Details      map[string]string `json:"details,omitempty"`
	ErrorMessage string            `json:"error,omitempty"`
}

// HealthCheck verifies database connectivity and that the definition store
// is reachable.
func HealthCheck(cfg *config.Config, db *gorm.DB) HealthCheckResult {
	result := HealthCheckResult{
		Status:  "healthy",
		Details: make(map[string]string),
	}

	// Check database connectivity
	sqlDB, err := db.DB()
	if err != nil {
		result.Status = "unhealthy"
		result.Database = "error"
		result.Details["database_error"] = err.Error()
		result.ErrorMessage = fmt.Sprintf("Database connection error: %v", err)
		log.Printf("Health check failed - database connection: %v", err)
		return result
	}
	if err := sqlDB.Ping(); err != nil {
		result.Status = "unhealthy"
		result.Database = "unreachable"
		result.Details["database_ping_error"] = err.Error()
		result.ErrorMessage = fmt.Sprintf("Database ping failed: %v", err)
		log.Printf("Health check failed - database ping: %v", err)
		return result
	}
	result.Database = "ok"
	result.Details["database_type"] = cfg.DBType
	result.Details["database_name"] = cfg.DBDatabase

	// Count distinct deployed definition names as a cheap schema-store probe
	var count int64
	if err := db.Model(&models.DocumentDefinition{}).
		Distinct("name").Count(&count).Error; err != nil {
		result.Status = "unhealthy"
		result.Details["definition_store_error"] = err.Error()
		result.ErrorMessage = fmt.Sprintf("Definition store query failed: %v", err)
		log.Printf("Health check failed - definition store: %v", err)
		return result
	}
	result.Definitions = count

	return result
}
