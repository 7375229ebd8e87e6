package services

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vamojunto/nfce-api/internal/config"
	"github.com/vamojunto/nfce-api/internal/models"
	"github.com/vamojunto/nfce-api/internal/repository"
)

// fakeFetcher serves a canned page and counts calls
type fakeFetcher struct {
	html  string
	err   error
	calls int
}

func (f *fakeFetcher) Fetch(_ context.Context, _ string) (string, error) {
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	return f.html, nil
}

// fakeNoteRepository keeps notes in memory keyed by (user, hash)
type fakeNoteRepository struct {
	notes  map[string]*models.Note
	nextID int64
}

func newFakeNoteRepository() *fakeNoteRepository {
	return &fakeNoteRepository{notes: make(map[string]*models.Note)}
}

func (r *fakeNoteRepository) key(userID int64, hash string) string {
	return fmt.Sprintf("%d:%s", userID, hash)
}

func (r *fakeNoteRepository) Exists(_ context.Context, userID int64, hash string) (bool, error) {
	_, ok := r.notes[r.key(userID, hash)]
	return ok, nil
}

func (r *fakeNoteRepository) CreateWithItems(_ context.Context, note *models.Note) error {
	k := r.key(note.UserID, note.AccessKeyHash)
	if _, ok := r.notes[k]; ok {
		return repository.ErrDuplicateNote
	}
	r.nextID++
	note.ID = r.nextID
	note.CreatedAt = time.Now()
	r.notes[k] = note
	return nil
}

func (r *fakeNoteRepository) ListByUser(_ context.Context, userID int64, _, _ int, _ string) ([]models.Note, error) {
	var out []models.Note
	for _, n := range r.notes {
		if n.UserID == userID {
			out = append(out, *n)
		}
	}
	return out, nil
}

func (r *fakeNoteRepository) GetByID(_ context.Context, noteID, userID int64) (*models.Note, error) {
	for _, n := range r.notes {
		if n.ID == noteID && n.UserID == userID {
			return n, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *fakeNoteRepository) Delete(_ context.Context, noteID, userID int64) error {
	for k, n := range r.notes {
		if n.ID == noteID && n.UserID == userID {
			delete(r.notes, k)
			return nil
		}
	}
	return repository.ErrNotFound
}

func (r *fakeNoteRepository) Stats(_ context.Context, userID int64) (*models.DashboardStats, error) {
	stats := &models.DashboardStats{CategorySpending: []models.CategorySpending{}}
	for _, n := range r.notes {
		if n.UserID == userID {
			stats.TotalSpent += n.TotalValue
			stats.NotesCount++
			stats.ProductsCount += int64(len(n.Items))
		}
	}
	return stats, nil
}

func newTestNoteService(fetcher DocumentFetcher, repo repository.NoteRepository) *NoteService {
	logger := newTestLogger()
	cfg := &config.Config{
		NFCe: config.NFCeConfig{
			BaseURL:  testBaseURL,
			CacheTTL: time.Minute,
		},
	}
	cache := NewCacheService(nil, time.Minute, logger)
	extractor := NewExtractorService(logger)
	return NewNoteService(cfg, fetcher, nil, extractor, cache, repo, logger)
}

func TestProcessAndSave_PersistsNoteWithItems(t *testing.T) {
	repo := newFakeNoteRepository()
	svc := newTestNoteService(&fakeFetcher{html: fullPage}, repo)

	note, err := svc.ProcessAndSave(context.Background(), 7, testKey)
	require.NoError(t, err)
	require.NotNil(t, note)

	assert.NotZero(t, note.ID)
	assert.Equal(t, int64(7), note.UserID)
	assert.Equal(t, "MERCADO EXEMPLO LTDA", note.MarketName)
	assert.Len(t, note.Items, 2)
	assert.InDelta(t, 17.75, note.TotalValue, 0.001)
	assert.Len(t, note.AccessKeyHash, 64)
}

func TestProcessAndSave_DuplicateForSameUser(t *testing.T) {
	repo := newFakeNoteRepository()
	svc := newTestNoteService(&fakeFetcher{html: fullPage}, repo)

	_, err := svc.ProcessAndSave(context.Background(), 7, testKey)
	require.NoError(t, err)

	_, err = svc.ProcessAndSave(context.Background(), 7, testKey)
	require.Error(t, err)
	assert.True(t, IsKind(err, KindDuplicateNote))
	assert.Len(t, repo.notes, 1)
}

func TestProcessAndSave_SameNoteDifferentUsers(t *testing.T) {
	repo := newFakeNoteRepository()
	svc := newTestNoteService(&fakeFetcher{html: fullPage}, repo)

	_, err := svc.ProcessAndSave(context.Background(), 1, testKey)
	require.NoError(t, err)

	_, err = svc.ProcessAndSave(context.Background(), 2, testKey)
	require.NoError(t, err)

	assert.Len(t, repo.notes, 2)
}

// racingRepo simulates a concurrent insert landing between the existence
// check and the create: Exists always reports false, so only the storage
// constraint catches the duplicate
type racingRepo struct {
	*fakeNoteRepository
}

func (r *racingRepo) Exists(context.Context, int64, string) (bool, error) {
	return false, nil
}

func TestProcessAndSave_InsertRaceReportsDuplicate(t *testing.T) {
	repo := &racingRepo{newFakeNoteRepository()}
	svc := newTestNoteService(&fakeFetcher{html: fullPage}, repo)

	_, err := svc.ProcessAndSave(context.Background(), 7, testKey)
	require.NoError(t, err)

	_, err = svc.ProcessAndSave(context.Background(), 7, testKey)
	require.Error(t, err)
	assert.True(t, IsKind(err, KindDuplicateNote))
	assert.Len(t, repo.notes, 1)
}

func TestScrape_InvalidInputNeverFetches(t *testing.T) {
	fetcher := &fakeFetcher{html: fullPage}
	svc := newTestNoteService(fetcher, newFakeNoteRepository())

	_, err := svc.Scrape(context.Background(), "not-a-key")
	require.Error(t, err)
	assert.True(t, IsKind(err, KindInvalidAccessKey))
	assert.Zero(t, fetcher.calls)
}

func TestScrape_SecondCallServedFromCache(t *testing.T) {
	fetcher := &fakeFetcher{html: fullPage}
	svc := newTestNoteService(fetcher, newFakeNoteRepository())

	first, err := svc.Scrape(context.Background(), testKey)
	require.NoError(t, err)

	second, err := svc.Scrape(context.Background(), testKey)
	require.NoError(t, err)

	assert.Equal(t, 1, fetcher.calls)
	assert.Equal(t, first.MarketName, second.MarketName)
	assert.Equal(t, first.AccessKey, second.AccessKey)
	assert.Len(t, second.Products, len(first.Products))
}

func TestScrape_FetchFailurePropagates(t *testing.T) {
	fetcher := &fakeFetcher{err: NewNoteError(KindFetchFailed, "connection refused", nil)}
	svc := newTestNoteService(fetcher, newFakeNoteRepository())

	_, err := svc.Scrape(context.Background(), testKey)
	require.Error(t, err)
	assert.True(t, IsKind(err, KindFetchFailed))
}

func TestScrape_BrowserFallbackOnUnusablePage(t *testing.T) {
	logger := newTestLogger()
	cfg := &config.Config{
		NFCe: config.NFCeConfig{
			BaseURL:  testBaseURL,
			CacheTTL: time.Minute,
		},
	}

	static := &fakeFetcher{html: `<html><body><p>carregando...</p></body></html>`}
	browser := &fakeFetcher{html: fullPage}

	svc := NewNoteService(cfg, static, browser, NewExtractorService(logger),
		NewCacheService(nil, time.Minute, logger), newFakeNoteRepository(), logger)

	note, err := svc.Scrape(context.Background(), testKey)
	require.NoError(t, err)
	assert.Equal(t, 1, static.calls)
	assert.Equal(t, 1, browser.calls)
	assert.Equal(t, "MERCADO EXEMPLO LTDA", note.MarketName)
}

func TestScrape_NoBrowserFallbackStaysUnusable(t *testing.T) {
	static := &fakeFetcher{html: `<html><body><p>carregando...</p></body></html>`}
	svc := newTestNoteService(static, newFakeNoteRepository())

	_, err := svc.Scrape(context.Background(), testKey)
	require.Error(t, err)
	assert.True(t, IsKind(err, KindUnusableDocument))
}

func TestListNotes_ClampsPaging(t *testing.T) {
	repo := newFakeNoteRepository()
	svc := newTestNoteService(&fakeFetcher{html: fullPage}, repo)

	_, err := svc.ProcessAndSave(context.Background(), 7, testKey)
	require.NoError(t, err)

	notes, err := svc.ListNotes(context.Background(), 7, -5, -1, "")
	require.NoError(t, err)
	assert.Len(t, notes, 1)
}
