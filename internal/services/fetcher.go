package services

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"
)

const fetchUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// FetcherService retrieves consultation pages over plain HTTP
type FetcherService struct {
	client *http.Client
	logger *logrus.Logger
}

// NewFetcherService creates a new fetcher service. Redirects are followed
// automatically (the authority is known to redirect); there is no retry here,
// retry policy belongs to the caller.
func NewFetcherService(timeout time.Duration, logger *logrus.Logger) *FetcherService {
	return &FetcherService{
		client: &http.Client{
			Timeout: timeout,
		},
		logger: logger,
	}
}

// Fetch performs a GET against the consultation URL and returns the page HTML
func (f *FetcherService) Fetch(ctx context.Context, pageURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return "", NewNoteError(KindFetchFailed, "failed to build request", err)
	}
	req.Header.Set("User-Agent", fetchUserAgent)
	req.Header.Set("Accept-Language", "pt-BR,pt;q=0.9")

	start := time.Now()
	resp, err := f.client.Do(req)
	if err != nil {
		f.logger.WithFields(logrus.Fields{
			"url":   pageURL,
			"error": err.Error(),
		}).Error("Failed to fetch consultation page")
		return "", NewNoteError(KindFetchFailed, "failed to fetch consultation page", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		f.logger.WithFields(logrus.Fields{
			"url":    pageURL,
			"status": resp.StatusCode,
		}).Error("Authority returned non-2xx status")
		return "", NewNoteError(KindFetchFailed,
			fmt.Sprintf("authority returned status %d", resp.StatusCode), nil)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", NewNoteError(KindFetchFailed, "failed to read response body", err)
	}

	f.logger.WithFields(logrus.Fields{
		"url":      pageURL,
		"bytes":    len(body),
		"duration": time.Since(start),
	}).Debug("Consultation page fetched")

	return string(body), nil
}
