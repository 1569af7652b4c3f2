package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"otodom-scraper/config"
	"otodom-scraper/geo"
	"otodom-scraper/models"
	"otodom-scraper/scraper"
	"otodom-scraper/scraper/otodom"
	"otodom-scraper/services"
	"otodom-scraper/storage"
	"otodom-scraper/utils"
)

func main() {
	os.Exit(run())
}

func run() int {
	logger := utils.NewLogger()
	cfg, err := config.Load()
	if err != nil {
		logger.Error("Invalid configuration: %v", err)
		return 1
	}
	if err := logger.SetLevel(cfg.LogLevel); err != nil {
		logger.Warn("Unknown LOG_LEVEL %q, keeping info", cfg.LogLevel)
	}
	if cfg.LogJSON {
		logger.UseJSON()
	}

	fields := flag.String("p", cfg.Fields, "comma-separated fields to scrape (default: all)")
	maxListings := flag.Int("l", cfg.MaxListings, "stop after this many listings (0 = no limit)")
	resume := flag.String("i", "", "existing dataset to resume")
	output := flag.String("o", cfg.OutputPath, "dataset file to write")
	fresh := flag.Bool("fresh", false, "overwrite the output instead of resuming it")
	flag.Parse()

	cfg.Fields = *fields
	schema, err := models.ParseSchema(cfg.FieldList())
	if err != nil {
		logger.Error("Invalid field list: %v (choose from %s)", err, models.DefaultSchema())
		return 2
	}

	out := *output
	if *resume != "" {
		if _, err := os.Stat(*resume); err != nil {
			logger.Error("Cannot resume %s: %v", *resume, err)
			return 2
		}
		if *fresh {
			logger.Error("-i and -fresh cannot be combined")
			return 2
		}
		out = *resume
	}

	logger.Info("=== Otodom Scraping System starting ===")
	logger.Info("Config — fetch: %s | pacing: %d-%dms | cap: %d | strict: %v | output: %s",
		cfg.FetchMode, cfg.PaceMinMs, cfg.PaceMaxMs, *maxListings, cfg.StrictValidation, out)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	classifier, err := loadDistricts(cfg, logger)
	if err != nil {
		logger.Error("[geo] Failed to load district boundaries: %v", err)
		return 1
	}

	fetcher, closeFetcher, err := newFetcher(cfg, logger)
	if err != nil {
		logger.Error("Failed to start %s fetcher: %v", cfg.FetchMode, err)
		return 1
	}
	defer closeFetcher()

	pacer := utils.NewPacer(
		time.Duration(cfg.PaceMinMs)*time.Millisecond,
		time.Duration(cfg.PaceMaxMs)*time.Millisecond,
	)
	crawler := otodom.New(cfg.ListingsURL, fetcher, otodom.NewExtractor(classifier, cfg.StrictValidation), pacer, logger)

	for _, sink := range openSinks(ctx, cfg, logger) {
		defer sink.Close()
		crawler.AddSink(sink)
	}

	if cfg.StatusAddr != "" {
		status := services.NewStatusServer(cfg.StatusAddr, crawler.Progress(), logger)
		if err := status.Start(); err != nil {
			logger.Warn("Status server disabled: %v", err)
		} else {
			defer func() {
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
				defer cancel()
				status.Shutdown(shutdownCtx)
			}()
		}
	}

	var requested models.Schema
	if cfg.FieldList() != nil {
		requested = schema
	}
	result, err := crawler.Run(ctx, otodom.RunOptions{
		Output:      out,
		Schema:      requested,
		MaxListings: *maxListings,
		Fresh:       *fresh,
		Delimiter:   cfg.DelimiterRune(),
	})
	if err != nil {
		logger.Error("Crawl failed: %v", err)
		if errors.Is(err, storage.ErrCorruptDataset) {
			logger.Error("Fix or move %s, or rerun with -fresh", out)
		}
		return 1
	}

	snap := crawler.Progress().Snapshot()
	logger.Info("Crawl %s: %d written, %d visited, %d skipped", result, snap.Emitted, snap.Visited, snap.Skipped)

	listings, _, err := storage.ReadListings(out, cfg.DelimiterRune())
	if err != nil {
		logger.Warn("Skipping insights: %v", err)
	} else {
		insightSvc := services.NewInsightService(logger)
		if classifier != nil {
			insightSvc.WithDistricts(classifier.Names())
		}
		insightSvc.Print(insightSvc.Generate(listings))
	}

	fmt.Printf("  Done. Dataset → %s (%s)\n\n", out, result)
	if result == otodom.StatusInterrupted {
		return 130
	}
	return 0
}

// loadDistricts returns a nil classifier when the boundary file is absent;
// listings are then written without a district.
func loadDistricts(cfg *config.Config, logger *utils.Logger) (*geo.Classifier, error) {
	if cfg.BoundariesPath == "" {
		return nil, nil
	}
	classifier, err := geo.Load(cfg.BoundariesPath, cfg.DistrictNameField)
	if errors.Is(err, os.ErrNotExist) {
		logger.Warn("[geo] No boundaries at %s; District will be empty", cfg.BoundariesPath)
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	logger.Info("[geo] Loaded %d districts from %s", classifier.Len(), cfg.BoundariesPath)
	return classifier, nil
}

func newFetcher(cfg *config.Config, logger *utils.Logger) (scraper.Fetcher, func(), error) {
	if cfg.FetchMode == "browser" {
		b, err := scraper.NewBrowserFetcher(cfg, logger)
		if err != nil {
			return nil, nil, err
		}
		return b, func() { b.Close() }, nil
	}
	return scraper.NewHTTPFetcher(cfg, logger), func() {}, nil
}

// openSinks connects the optional database mirrors. A mirror that cannot be
// reached is left out rather than stopping the crawl.
func openSinks(ctx context.Context, cfg *config.Config, logger *utils.Logger) []storage.Sink {
	var sinks []storage.Sink

	if cfg.PostgresDSN != "" {
		pg, err := storage.NewPostgresWriter(ctx, cfg.PostgresDSN)
		if err != nil {
			logger.Error("Failed to connect to PostgreSQL: %v", err)
			logger.Error("Make sure Docker is running: docker compose up -d")
		} else {
			logger.Info("Mirroring listings to PostgreSQL (table: listings)")
			sinks = append(sinks, pg)
		}
	}

	if cfg.MongoURI != "" {
		mw, err := storage.NewMongoWriter(ctx, cfg.MongoURI, cfg.MongoDB, cfg.MongoCollection)
		if err != nil {
			logger.Error("Failed to connect to MongoDB: %v", err)
		} else {
			logger.Info("Mirroring listings to MongoDB (%s.%s)", cfg.MongoDB, cfg.MongoCollection)
			sinks = append(sinks, mw)
		}
	}

	return sinks
}
