package services

import (
	"context"

	"github.com/vamojunto/nfce-api/internal/models"
)

// NoteServiceInterface defines the interface for note ingestion and querying
type NoteServiceInterface interface {
	// Scrape resolves the input and extracts the note without persisting it
	Scrape(ctx context.Context, codeOrURL string) (*models.ExtractedNote, error)

	// ProcessAndSave runs the full pipeline and persists the note once per user
	ProcessAndSave(ctx context.Context, userID int64, codeOrURL string) (*models.Note, error)

	// ListNotes returns the user's notes with their items
	ListNotes(ctx context.Context, userID int64, limit, offset int, market string) ([]models.Note, error)

	// GetNote returns one note owned by the user
	GetNote(ctx context.Context, noteID, userID int64) (*models.Note, error)

	// DeleteNote removes a note and its items
	DeleteNote(ctx context.Context, noteID, userID int64) error

	// GetStats returns aggregated spending statistics for the user
	GetStats(ctx context.Context, userID int64) (*models.DashboardStats, error)

	// Health returns service health status
	Health() map[string]interface{}
}

// DocumentFetcher retrieves the consultation page for a built URL
type DocumentFetcher interface {
	// Fetch performs the outbound retrieval and returns the page HTML
	Fetch(ctx context.Context, url string) (string, error)
}

// ExtractorInterface extracts structured note data from consultation HTML
type ExtractorInterface interface {
	// Extract parses the page and assembles the note, applying the
	// per-field fallback strategies
	Extract(html, accessKey string) (*models.ExtractedNote, error)
}

// CacheServiceInterface defines the interface for the extraction cache
type CacheServiceInterface interface {
	// Get retrieves a value from cache
	Get(ctx context.Context, key string) (string, error)

	// Set stores a value in cache with TTL
	Set(ctx context.Context, key string, value string) error

	// Delete removes a value from cache
	Delete(ctx context.Context, key string) error

	// Clear clears all cache entries
	Clear(ctx context.Context) error

	// GetStats returns cache statistics
	GetStats(ctx context.Context) (map[string]interface{}, error)

	// Health returns cache service health status
	Health() map[string]interface{}
}
