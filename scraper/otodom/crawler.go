package otodom

import (
	"context"
	"errors"
	"fmt"
	"os"

	"otodom-scraper/models"
	"otodom-scraper/scraper"
	"otodom-scraper/storage"
	"otodom-scraper/utils"
)

// Status is how a crawl run ended.
type Status int

const (
	// StatusCompleted means every result page was walked.
	StatusCompleted Status = iota
	// StatusLimitReached means the listing cap was hit.
	StatusLimitReached
	// StatusInterrupted means the context was cancelled mid-run.
	StatusInterrupted
)

func (s Status) String() string {
	switch s {
	case StatusCompleted:
		return scraper.StateCompleted
	case StatusLimitReached:
		return scraper.StateLimitReached
	case StatusInterrupted:
		return "interrupted"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// milestoneEvery is how often a summary line is logged.
const milestoneEvery = 100

// Waiter delays the next listing fetch.
type Waiter interface {
	Wait(ctx context.Context) error
}

// RunOptions are the parameters of one crawl.
type RunOptions struct {
	// Output is the dataset file. An existing file is resumed.
	Output string
	// Schema is used for a new file. Nil means every field.
	Schema models.Schema
	// MaxListings caps rows written by this run; zero or less is unlimited.
	MaxListings int
	// Fresh truncates Output instead of resuming it.
	Fresh     bool
	Delimiter rune
}

// Crawler drives one search: it walks the result pages, extracts each
// listing and appends the accepted ones to the dataset. Listings are
// processed one at a time.
type Crawler struct {
	indexURL  string
	fetcher   scraper.Fetcher
	extractor *Extractor
	pacer     Waiter
	logger    *utils.Logger
	progress  *scraper.Progress
	sinks     []storage.Sink

	openDataset func(path string, schema models.Schema, mode storage.Mode, delim rune) (storage.RowWriter, error)
}

func New(indexURL string, fetcher scraper.Fetcher, extractor *Extractor, pacer Waiter, logger *utils.Logger) *Crawler {
	return &Crawler{
		indexURL:  indexURL,
		fetcher:   fetcher,
		extractor: extractor,
		pacer:     pacer,
		logger:    logger,
		progress:  scraper.NewProgress(),

		openDataset: func(path string, schema models.Schema, mode storage.Mode, delim rune) (storage.RowWriter, error) {
			return storage.OpenDataset(path, schema, mode, delim)
		},
	}
}

// AddSink mirrors every written listing to s. Sink failures are logged only.
func (c *Crawler) AddSink(s storage.Sink) {
	c.sinks = append(c.sinks, s)
}

// WithProgress makes the crawler report into p instead of its own counters.
func (c *Crawler) WithProgress(p *scraper.Progress) *Crawler {
	c.progress = p
	return c
}

func (c *Crawler) Progress() *scraper.Progress {
	return c.progress
}

// Run crawls until the result pages are exhausted, the cap is reached or
// ctx is done. Only failures that leave the dataset unusable are returned
// as errors; a bad listing or result page is logged and skipped.
func (c *Crawler) Run(ctx context.Context, opts RunOptions) (Status, error) {
	status, err := c.run(ctx, opts)
	if err != nil {
		c.progress.SetState(scraper.StateFailed)
		return status, err
	}
	if status != StatusInterrupted {
		c.progress.SetState(status.String())
	}
	return status, nil
}

func (c *Crawler) run(ctx context.Context, opts RunOptions) (Status, error) {
	if opts.Delimiter == 0 {
		opts.Delimiter = ';'
	}

	schema, links, mode, err := c.prepare(opts)
	if err != nil {
		return StatusCompleted, err
	}

	// The dataset is only touched once the search is known to be reachable.
	walker, err := NewWalker(c.fetcher, c.indexURL, links, c.logger)
	if err != nil {
		return StatusCompleted, err
	}
	maxPage, err := walker.DiscoverMaxPage(ctx)
	if err != nil {
		if ctx.Err() != nil {
			c.logger.Warn("[crawler] Interrupted before the first page: %v", ctx.Err())
			return StatusInterrupted, nil
		}
		return StatusCompleted, err
	}
	c.progress.SetMaxPage(maxPage)

	writer, err := c.openDataset(opts.Output, schema, mode, opts.Delimiter)
	if err != nil {
		return StatusCompleted, err
	}
	defer func() {
		if cerr := writer.Close(); cerr != nil {
			c.logger.Error("[crawler] Closing %s: %v", opts.Output, cerr)
		}
	}()
	c.progress.SetState(scraper.StateCrawling)

	visited := utils.NewURLSet(links...)
	var emitted int

	c.logger.Info("[crawler] Crawling %d pages into %s (%d columns, cap %s)",
		maxPage, opts.Output, len(schema), capString(opts.MaxListings))

	for {
		link, ok := walker.Next(ctx)
		if !ok {
			break
		}
		c.progress.SetPage(walker.Page())
		if !visited.Add(link) {
			continue
		}
		c.progress.Visited()

		if err := c.pacer.Wait(ctx); err != nil {
			break
		}

		listing, err := c.scrape(ctx, link)
		if err != nil {
			if ctx.Err() != nil {
				break
			}
			c.progress.Skipped()
			if IsSkippable(err) {
				c.logger.Info("[crawler] Rejected %s: %v", link, err)
			} else {
				c.logger.Warn("[crawler] Skipping %s: %v", link, err)
			}
			continue
		}

		if err := writer.WriteRow(schema.Project(listing)); err != nil {
			return StatusCompleted, fmt.Errorf("crawler: %w", err)
		}
		c.mirror(ctx, listing)

		emitted++
		total := c.progress.Emitted()
		c.logger.Info("[crawler] #%d page %d/%d %s", emitted, walker.Page(), maxPage, link)
		if total%milestoneEvery == 0 {
			snap := c.progress.Snapshot()
			c.logger.Info("[crawler] %d listings written, %d visited, %d skipped",
				snap.Emitted, snap.Visited, snap.Skipped)
		}

		if opts.MaxListings > 0 && emitted >= opts.MaxListings {
			c.logger.Info("[crawler] Cap of %d listings reached", opts.MaxListings)
			return StatusLimitReached, nil
		}
	}

	if ctx.Err() != nil {
		c.logger.Warn("[crawler] Interrupted after %d listings: %v", emitted, ctx.Err())
		return StatusInterrupted, nil
	}
	c.logger.Info("[crawler] Finished: %d listings written this run", emitted)
	return StatusCompleted, nil
}

// prepare decides between resuming and starting over.
func (c *Crawler) prepare(opts RunOptions) (models.Schema, []string, storage.Mode, error) {
	requested := opts.Schema
	if len(requested) == 0 {
		requested = models.DefaultSchema()
	}

	if opts.Fresh {
		c.progress.SetState(scraper.StateFresh)
		c.logger.Info("[crawler] Starting fresh dataset %s", opts.Output)
		return requested, nil, storage.ModeFresh, nil
	}

	ds, err := storage.LoadDataset(opts.Output, opts.Delimiter)
	switch {
	case errors.Is(err, os.ErrNotExist):
		c.progress.SetState(scraper.StateFresh)
		c.logger.Info("[crawler] No dataset at %s, starting fresh", opts.Output)
		return requested, nil, storage.ModeFresh, nil
	case err != nil:
		return nil, nil, storage.ModeFresh, err
	}

	c.progress.SetState(scraper.StateResume)
	if opts.Schema != nil && opts.Schema.String() != ds.Schema.String() {
		c.logger.Warn("[crawler] Keeping the columns of %s (%s); requested %s ignored",
			opts.Output, ds.Schema, opts.Schema)
	}
	c.logger.Info("[crawler] Resuming %s: %d rows, %d known links", opts.Output, ds.Rows, len(ds.Links))
	return ds.Schema, ds.Links, storage.ModeAppend, nil
}

func (c *Crawler) scrape(ctx context.Context, link string) (*models.Listing, error) {
	body, err := c.fetcher.Fetch(ctx, link)
	if err != nil {
		return nil, err
	}
	return c.extractor.ExtractListing(link, body)
}

func (c *Crawler) mirror(ctx context.Context, l *models.Listing) {
	for _, s := range c.sinks {
		if err := s.Write(ctx, l); err != nil {
			c.logger.Error("[crawler] Mirror write for %s failed: %v", l.Link, err)
		}
	}
}

func capString(n int) string {
	if n <= 0 {
		return "none"
	}
	return fmt.Sprint(n)
}
