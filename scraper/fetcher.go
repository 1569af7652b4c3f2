package scraper

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gocolly/colly/v2"

	"otodom-scraper/config"
	"otodom-scraper/utils"
)

// Fetcher retrieves the raw document behind a URL.
type Fetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// StatusError reports a non-2xx HTTP response.
type StatusError struct {
	URL  string
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("GET %s: %d %s", e.URL, e.Code, http.StatusText(e.Code))
}

// Temporary reports whether repeating the request may succeed.
func (e *StatusError) Temporary() bool {
	return e.Code == http.StatusTooManyRequests || e.Code >= 500
}

func retryable(err error) bool {
	var se *StatusError
	if errors.As(err, &se) {
		return se.Temporary()
	}
	return true
}

// HTTPFetcher downloads pages with a colly collector.
type HTTPFetcher struct {
	collector *colly.Collector
	retry     *utils.RetryConfig
	logger    *utils.Logger
}

// NewHTTPFetcher builds a fetcher from the crawl configuration.
func NewHTTPFetcher(cfg *config.Config, logger *utils.Logger) *HTTPFetcher {
	c := colly.NewCollector(
		colly.UserAgent(cfg.UserAgent),
		colly.AllowURLRevisit(),
	)
	c.SetRequestTimeout(time.Duration(cfg.RequestTimeoutMs) * time.Millisecond)
	_ = c.Limit(&colly.LimitRule{DomainGlob: "*", Parallelism: 1})

	return &HTTPFetcher{
		collector: c,
		logger:    logger,
		retry: &utils.RetryConfig{
			MaxAttempts: cfg.MaxRetries,
			BaseDelay:   2 * time.Second,
			Logger:      logger,
			Retryable:   retryable,
		},
	}
}

// Fetch returns the response body, retrying throttled and server errors.
func (f *HTTPFetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	var body []byte
	err := f.retry.Do(ctx, "fetch "+url, func() error {
		if err := ctx.Err(); err != nil {
			return err
		}
		b, err := f.fetchOnce(url)
		if err != nil {
			return err
		}
		body = b
		return nil
	})
	return body, err
}

func (f *HTTPFetcher) fetchOnce(url string) ([]byte, error) {
	c := f.collector.Clone()

	var (
		body      []byte
		statusErr error
	)
	c.OnResponse(func(r *colly.Response) {
		body = r.Body
	})
	c.OnError(func(r *colly.Response, err error) {
		if r != nil && r.StatusCode != 0 {
			statusErr = &StatusError{URL: url, Code: r.StatusCode}
			return
		}
		statusErr = err
	})

	err := c.Visit(url)
	c.Wait()
	if statusErr != nil {
		return nil, statusErr
	}
	if err != nil {
		return nil, fmt.Errorf("GET %s: %w", url, err)
	}
	return body, nil
}
