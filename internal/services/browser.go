package services

import (
	"context"
	"time"

	"github.com/chromedp/chromedp"
	"github.com/sirupsen/logrus"
)

// BrowserFetcher retrieves consultation pages through headless Chrome.
// Some terminal software versions render the receipt client-side, so the
// static HTML carries no results table; this fetcher returns the DOM after
// script execution. It is used only as a fallback when enabled in config.
type BrowserFetcher struct {
	timeout time.Duration
	logger  *logrus.Logger
}

// NewBrowserFetcher creates a new browser-backed fetcher
func NewBrowserFetcher(timeout time.Duration, logger *logrus.Logger) *BrowserFetcher {
	return &BrowserFetcher{
		timeout: timeout,
		logger:  logger,
	}
}

// Fetch navigates to the consultation URL and returns the rendered HTML
func (b *BrowserFetcher) Fetch(ctx context.Context, pageURL string) (string, error) {
	browserCtx, cancel := chromedp.NewContext(ctx)
	defer cancel()

	browserCtx, cancelTimeout := context.WithTimeout(browserCtx, b.timeout)
	defer cancelTimeout()

	b.logger.WithField("url", pageURL).Debug("Fetching consultation page via headless browser")

	var html string
	err := chromedp.Run(browserCtx,
		chromedp.Navigate(pageURL),
		chromedp.WaitReady("body"),
		chromedp.OuterHTML("html", &html),
	)
	if err != nil {
		b.logger.WithFields(logrus.Fields{
			"url":   pageURL,
			"error": err.Error(),
		}).Error("Headless browser fetch failed")
		return "", NewNoteError(KindFetchFailed, "headless browser fetch failed", err)
	}

	return html, nil
}
