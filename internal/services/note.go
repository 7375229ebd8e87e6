package services

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/sirupsen/logrus"
	"github.com/vamojunto/nfce-api/internal/config"
	"github.com/vamojunto/nfce-api/internal/models"
	"github.com/vamojunto/nfce-api/internal/repository"
	"github.com/vamojunto/nfce-api/internal/utils"
)

const cacheKeyPrefix = "nfce:"

// NoteService orchestrates the ingestion pipeline: resolve the access key,
// fetch the consultation page, extract the note and persist it per user.
type NoteService struct {
	cfg       *config.Config
	fetcher   DocumentFetcher
	browser   DocumentFetcher
	extractor ExtractorInterface
	cache     CacheServiceInterface
	repo      repository.NoteRepository
	logger    *logrus.Logger
}

// NewNoteService creates a new note service. browser may be nil, in which
// case the headless fallback is skipped.
func NewNoteService(
	cfg *config.Config,
	fetcher DocumentFetcher,
	browser DocumentFetcher,
	extractor ExtractorInterface,
	cache CacheServiceInterface,
	repo repository.NoteRepository,
	logger *logrus.Logger,
) *NoteService {
	return &NoteService{
		cfg:       cfg,
		fetcher:   fetcher,
		browser:   browser,
		extractor: extractor,
		cache:     cache,
		repo:      repo,
		logger:    logger,
	}
}

// Scrape resolves the input, fetches the consultation page and extracts the
// note without persisting anything. Extractions are cached by access-key
// hash so repeated scans of the same note skip the authority entirely.
func (s *NoteService) Scrape(ctx context.Context, codeOrURL string) (*models.ExtractedNote, error) {
	key, err := ResolveAccessKey(codeOrURL)
	if err != nil {
		return nil, err
	}

	cacheKey := cacheKeyPrefix + utils.HashAccessKey(key)
	if cached, err := s.cache.Get(ctx, cacheKey); err == nil {
		var note models.ExtractedNote
		if err := json.Unmarshal([]byte(cached), &note); err == nil {
			s.logger.WithField("access_key", utils.FormatAccessKey(key)).
				Debug("Extraction served from cache")
			return &note, nil
		}
		// a stale or corrupt entry must not block ingestion
		_ = s.cache.Delete(ctx, cacheKey)
	}

	consultURL := BuildConsultURL(s.cfg.NFCe.BaseURL, key, codeOrURL)

	html, err := s.fetcher.Fetch(ctx, consultURL)
	if err != nil {
		return nil, err
	}

	note, err := s.extractor.Extract(html, key)
	if err != nil && IsKind(err, KindUnusableDocument) && s.browser != nil {
		s.logger.WithField("url", consultURL).
			Info("Static page unusable, retrying with headless browser")
		html, berr := s.browser.Fetch(ctx, consultURL)
		if berr != nil {
			return nil, err
		}
		note, err = s.extractor.Extract(html, key)
	}
	if err != nil {
		return nil, err
	}

	if payload, merr := json.Marshal(note); merr == nil {
		if cerr := s.cache.Set(ctx, cacheKey, string(payload)); cerr != nil {
			s.logger.WithField("error", cerr.Error()).Warn("Failed to cache extraction")
		}
	}

	return note, nil
}

// ProcessAndSave runs the full pipeline and persists the result exactly once
// per (user, access key). The storage unique constraint is the authoritative
// duplicate guard; the existence check only short-circuits the common case.
func (s *NoteService) ProcessAndSave(ctx context.Context, userID int64, codeOrURL string) (*models.Note, error) {
	extracted, err := s.Scrape(ctx, codeOrURL)
	if err != nil {
		return nil, err
	}

	hash := utils.HashAccessKey(extracted.AccessKey)

	exists, err := s.repo.Exists(ctx, userID, hash)
	if err != nil {
		return nil, NewNoteError(KindPersistence, "failed to check for existing note", err)
	}
	if exists {
		return nil, NewNoteError(KindDuplicateNote, "note already registered", nil)
	}

	note := &models.Note{
		UserID:        userID,
		AccessKeyHash: hash,
		MarketName:    extracted.MarketName,
		MarketCNPJ:    extracted.MarketCNPJ,
		MarketAddress: extracted.MarketAddress,
		EmissionDate:  extracted.EmissionDate,
		TotalValue:    extracted.TotalValue,
		TotalTaxes:    extracted.TotalTaxes,
		Items:         make([]models.NoteItem, 0, len(extracted.Products)),
	}
	for _, p := range extracted.Products {
		note.Items = append(note.Items, models.NoteItem{
			Barcode:    p.Barcode,
			Name:       p.Name,
			Quantity:   p.Quantity,
			Unit:       p.Unit,
			UnitPrice:  p.UnitPrice,
			TotalPrice: p.TotalPrice,
			Category:   p.Category,
		})
	}

	if err := s.repo.CreateWithItems(ctx, note); err != nil {
		if errors.Is(err, repository.ErrDuplicateNote) {
			// a concurrent request won the insert race
			return nil, NewNoteError(KindDuplicateNote, "note already registered", err)
		}
		return nil, NewNoteError(KindPersistence, "failed to save note", err)
	}

	s.logger.WithFields(logrus.Fields{
		"user_id": userID,
		"note_id": note.ID,
		"market":  note.MarketName,
		"items":   len(note.Items),
	}).Info("Note saved")

	return note, nil
}

// ListNotes returns the user's notes, newest first
func (s *NoteService) ListNotes(ctx context.Context, userID int64, limit, offset int, market string) ([]models.Note, error) {
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}
	return s.repo.ListByUser(ctx, userID, limit, offset, market)
}

// GetNote returns one note owned by the user
func (s *NoteService) GetNote(ctx context.Context, noteID, userID int64) (*models.Note, error) {
	return s.repo.GetByID(ctx, noteID, userID)
}

// DeleteNote removes a note and its items
func (s *NoteService) DeleteNote(ctx context.Context, noteID, userID int64) error {
	return s.repo.Delete(ctx, noteID, userID)
}

// GetStats returns aggregated spending statistics for the user
func (s *NoteService) GetStats(ctx context.Context, userID int64) (*models.DashboardStats, error) {
	return s.repo.Stats(ctx, userID)
}

// Health returns service health status
func (s *NoteService) Health() map[string]interface{} {
	health := map[string]interface{}{
		"status":   "healthy",
		"base_url": s.cfg.NFCe.BaseURL,
	}
	health["browser_fallback"] = s.browser != nil
	health["cache"] = s.cache.Health()
	return health
}
