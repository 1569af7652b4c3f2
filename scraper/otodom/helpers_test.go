package otodom

import (
	"context"
	"encoding/json"
	"fmt"
	"html"
	"strings"
	"sync"
	"testing"

	"otodom-scraper/scraper"
)

// fakeFetcher serves canned documents by URL and records every request.
type fakeFetcher struct {
	mu    sync.Mutex
	pages map[string]string
	fail  map[string]error
	calls []string
}

func newFakeFetcher() *fakeFetcher {
	return &fakeFetcher{pages: map[string]string{}, fail: map[string]error{}}
}

func (f *fakeFetcher) Fetch(_ context.Context, url string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, url)
	if err, ok := f.fail[url]; ok {
		return nil, err
	}
	body, ok := f.pages[url]
	if !ok {
		return nil, &scraper.StatusError{URL: url, Code: 404}
	}
	return []byte(body), nil
}

func (f *fakeFetcher) fetched(url string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if c == url {
			n++
		}
	}
	return n
}

// adJSON builds the __NEXT_DATA__ document for an ad.
func adJSON(t *testing.T, ad map[string]any) string {
	t.Helper()
	doc := map[string]any{"props": map[string]any{"pageProps": map[string]any{"ad": ad}}}
	b, err := json.Marshal(doc)
	if err != nil {
		t.Fatalf("marshal ad: %v", err)
	}
	return string(b)
}

func listingHTML(payload string) string {
	return `<html><head><title>ad</title></head><body><main>flat</main>` +
		`<script id="__NEXT_DATA__" type="application/json">` + payload + `</script></body></html>`
}

// basicAd is a listing that passes the strict gate.
func basicAd() map[string]any {
	return map[string]any{
		"target": map[string]any{
			"Area":                "50",
			"Price":               500000,
			"Rooms_num":           []string{"2"},
			"Floor_no":            []string{"floor_3"},
			"Building_floors_num": 4,
			"Extras_types":        []string{"balcony", "lift"},
		},
		"characteristics": []map[string]any{
			{"key": "market", "value": "secondary"},
		},
		"location": map[string]any{
			"coordinates": map[string]any{"latitude": 51.1, "longitude": 17.03},
			"mapDetails":  map[string]any{"radius": 0},
		},
	}
}

// indexHTML renders a result page with the given listing hrefs and page
// numbers in its pagination control.
func indexHTML(hrefs []string, pages ...int) string {
	var b strings.Builder
	b.WriteString("<html><body>")
	if len(pages) > 0 {
		b.WriteString(`<nav data-cy="pagination">`)
		for _, p := range pages {
			fmt.Fprintf(&b, `<a data-cy="pagination.go-to-page-%d" href="?page=%d">%d</a>`, p, p, p)
		}
		b.WriteString(`<a data-cy="pagination.next-page" href="?page=2">next</a></nav>`)
	}
	for _, h := range hrefs {
		fmt.Fprintf(&b, `<article><a data-cy="listing-item-link" href="%s">flat</a></article>`, html.EscapeString(h))
	}
	b.WriteString("</body></html>")
	return b.String()
}
