package otodom

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"otodom-scraper/scraper"
	"otodom-scraper/utils"
)

const (
	paginationSelector = `nav[data-cy="pagination"] a[data-cy^="pagination.go-to-page"]`
	listingSelector    = `a[data-cy="listing-item-link"][href]`
)

// Walker enumerates listing URLs across the result pages of one search,
// page by page and in document order, never yielding the same URL twice.
// It is single-pass.
type Walker struct {
	fetcher  scraper.Fetcher
	indexURL *url.URL
	seen     *utils.URLSet
	logger   *utils.Logger

	maxPage   int
	page      int
	firstPage *goquery.Document
	queue     []string
}

// NewWalker creates a Walker over the search at indexURL. Links in seed are
// treated as already seen.
func NewWalker(fetcher scraper.Fetcher, indexURL string, seed []string, logger *utils.Logger) (*Walker, error) {
	u, err := url.Parse(indexURL)
	if err != nil {
		return nil, fmt.Errorf("walker: parse index url: %w", err)
	}
	if !u.IsAbs() {
		return nil, fmt.Errorf("walker: index url %q is not absolute", indexURL)
	}
	return &Walker{
		fetcher:  fetcher,
		indexURL: u,
		seen:     utils.NewURLSet(seed...),
		logger:   logger,
	}, nil
}

// DiscoverMaxPage fetches the index page and reads the highest page number
// from its pagination control. A page without pagination counts as one page.
func (w *Walker) DiscoverMaxPage(ctx context.Context) (int, error) {
	if w.maxPage > 0 {
		return w.maxPage, nil
	}

	doc, err := w.fetchPage(ctx, w.indexURL.String())
	if err != nil {
		return 0, fmt.Errorf("walker: discover page count: %w", err)
	}

	maxPage := 1
	doc.Find(paginationSelector).Each(func(_ int, s *goquery.Selection) {
		n, err := strconv.Atoi(strings.TrimSpace(s.Text()))
		if err == nil && n > maxPage {
			maxPage = n
		}
	})

	w.maxPage = maxPage
	// The index is page 1 unless it names another page; keep it for the walk.
	if p := w.indexURL.Query().Get("page"); p == "" || p == "1" {
		w.firstPage = doc
	}
	w.logger.Info("[walker] %d result pages at %s", maxPage, w.indexURL)
	return maxPage, nil
}

// Next returns the next unseen listing URL. It reports false once every page
// has been read or ctx is done. Pages that fail to load are logged and skipped.
func (w *Walker) Next(ctx context.Context) (string, bool) {
	if w.maxPage == 0 {
		if _, err := w.DiscoverMaxPage(ctx); err != nil {
			w.logger.Error("[walker] %v", err)
			return "", false
		}
	}

	for len(w.queue) == 0 {
		if ctx.Err() != nil || w.page >= w.maxPage {
			return "", false
		}
		w.page++
		w.loadPage(ctx, w.page)
	}

	link := w.queue[0]
	w.queue = w.queue[1:]
	return link, true
}

// Page is the number of the result page the last link came from.
func (w *Walker) Page() int {
	return w.page
}

func (w *Walker) MaxPage() int {
	return w.maxPage
}

func (w *Walker) loadPage(ctx context.Context, page int) {
	doc := w.firstPage
	w.firstPage = nil
	if page != 1 || doc == nil {
		var err error
		doc, err = w.fetchPage(ctx, w.pageURL(page))
		if err != nil {
			w.logger.Warn("[walker] Skipping page %d/%d: %v", page, w.maxPage, err)
			return
		}
	}

	found, fresh := 0, 0
	doc.Find(listingSelector).Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		link, ok := w.resolve(href)
		if !ok {
			return
		}
		found++
		if w.seen.Add(link) {
			fresh++
			w.queue = append(w.queue, link)
		}
	})
	w.logger.Debug("[walker] Page %d/%d: %d links, %d new", page, w.maxPage, found, fresh)
}

func (w *Walker) fetchPage(ctx context.Context, pageURL string) (*goquery.Document, error) {
	body, err := w.fetcher.Fetch(ctx, pageURL)
	if err != nil {
		return nil, err
	}
	return goquery.NewDocumentFromReader(bytes.NewReader(body))
}

func (w *Walker) pageURL(page int) string {
	u := *w.indexURL
	q := u.Query()
	q.Set("page", strconv.Itoa(page))
	u.RawQuery = q.Encode()
	return u.String()
}

func (w *Walker) resolve(href string) (string, bool) {
	href = strings.TrimSpace(href)
	if href == "" {
		return "", false
	}
	ref, err := url.Parse(href)
	if err != nil {
		return "", false
	}
	abs := w.indexURL.ResolveReference(ref)
	abs.Fragment, abs.RawFragment = "", ""
	return abs.String(), true
}
