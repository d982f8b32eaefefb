// Package cli builds the cobra command for each of Vigilare's three
// processes: crawler, indexer, queryengine. Each command loads a
// config.Config (from --config-file or flags), wires its process's
// components, and runs until signaled.
package cli

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/vigilare/vigilare/internal/bloomfilter"
	"github.com/vigilare/vigilare/internal/build"
	"github.com/vigilare/vigilare/internal/config"
	"github.com/vigilare/vigilare/internal/domainmgr"
	"github.com/vigilare/vigilare/internal/observability"
	"github.com/vigilare/vigilare/internal/pipeline"
	"github.com/vigilare/vigilare/internal/pipeline/dispatcher"
	"github.com/vigilare/vigilare/internal/pipeline/fetcher"
	"github.com/vigilare/vigilare/internal/pipeline/parser"
	"github.com/vigilare/vigilare/internal/pipeline/writer"
	"github.com/vigilare/vigilare/internal/robots"
	"github.com/vigilare/vigilare/internal/store/crawlstore"
	"github.com/vigilare/vigilare/internal/store/storagestore"
)

var (
	crawlerCfgFile  string
	crawlerSeedURLs []string
	crawlerDataDir  string
	crawlerDryRun   bool
)

// NewCrawlerCommand builds the cobra command for cmd/crawler.
func NewCrawlerCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "crawler",
		Short:   "Crawl seed URLs into the Crawl and Storage stores, under robots.txt and per-domain politeness.",
		Version: build.FullVersion(),
		RunE:    runCrawler,
	}
	cmd.Flags().StringVar(&crawlerCfgFile, "config-file", "", "config file path")
	cmd.Flags().StringArrayVar(&crawlerSeedURLs, "seed-url", nil, "one or more starting URLs (can be repeated)")
	cmd.Flags().StringVar(&crawlerDataDir, "data-dir", "", "directory holding crawl.db, storage.db, search.db")
	cmd.Flags().BoolVar(&crawlerDryRun, "dry-run", false, "recorded in the config only; the crawl still writes to the stores")
	return cmd
}

func loadCrawlerConfig() (config.Config, error) {
	if crawlerCfgFile != "" {
		return config.WithConfigFile(crawlerCfgFile)
	}

	if len(crawlerSeedURLs) == 0 {
		return config.Config{}, fmt.Errorf("at least one --seed-url is required")
	}
	seeds := make([]url.URL, 0, len(crawlerSeedURLs))
	for _, raw := range crawlerSeedURLs {
		u, err := url.Parse(raw)
		if err != nil {
			return config.Config{}, fmt.Errorf("invalid seed URL %q: %w", raw, err)
		}
		seeds = append(seeds, *u)
	}

	builder := config.WithDefault(crawlerDataDir).WithSeedUrls(seeds)
	if crawlerDryRun {
		builder = builder.WithDryRun(true)
	}
	return builder.Build()
}

func runCrawler(cmd *cobra.Command, args []string) error {
	cfg, err := loadCrawlerConfig()
	if err != nil {
		return err
	}

	crawl, err := crawlstore.Open(cfg.CrawlDBPath(), false)
	if err != nil {
		return fmt.Errorf("opening crawl store: %w", err)
	}
	defer crawl.Close()

	storage, err := storagestore.Open(cfg.StorageDBPath(), false)
	if err != nil {
		return fmt.Errorf("opening storage store: %w", err)
	}
	defer storage.Close()

	if err := crawl.ResetStaleReservations(); err != nil {
		return fmt.Errorf("resetting stale reservations: %w", err)
	}

	bloom, err := bloomfilter.Load(cfg.BloomSnapshotPath())
	if err != nil {
		bloom = bloomfilter.New()
	}

	recorder := observability.NewSlogRecorder("crawler")
	pipe := pipeline.New(bloom, domainmgr.New(), robots.NewCachedRobot(cfg.UserAgent()), recorder)

	for _, seed := range cfg.SeedURLs() {
		if err := crawl.InsertFrontierIfAbsent(seed.String(), seed.Hostname(), 0); err != nil {
			return fmt.Errorf("seeding frontier with %s: %w", seed.String(), err)
		}
	}

	dispatch := dispatcher.New(crawl, pipe)
	fetchPool := fetcher.New(pipe, cfg.UserAgent())
	parsePool := parser.New(pipe)
	dbWriter := writer.New(crawl, storage, pipe, cfg.BloomSnapshotPath())

	return runWithGracefulShutdown(cmd.Context(), func(dispatchCtx, workCtx context.Context) {
		done := make(chan struct{})
		go func() { dispatch.Run(dispatchCtx); close(done) }()
		go fetchPool.Run(workCtx)
		go parsePool.Run(workCtx)
		go dbWriter.Run(workCtx)
		<-done
		<-workCtx.Done()
	})
}

// runWithGracefulShutdown runs fn with two contexts: dispatchCtx, cancelled
// on the first SIGINT/SIGTERM so no new fetches are scheduled, and workCtx,
// cancelled shutdownGrace later so in-flight fetch/parse/write work has a
// chance to drain before the pools are torn down. A second signal forces
// immediate exit, per the documented "pending Write-queue items may be
// lost" fallback.
func runWithGracefulShutdown(ctx context.Context, fn func(dispatchCtx, workCtx context.Context)) error {
	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	dispatchCtx, cancelDispatch := context.WithCancel(ctx)
	workCtx, cancelWork := context.WithCancel(ctx)
	defer cancelDispatch()
	defer cancelWork()

	go func() {
		select {
		case <-sigCh:
		case <-ctx.Done():
			cancelDispatch()
			cancelWork()
			return
		}
		cancelDispatch()

		select {
		case <-sigCh:
			os.Exit(1)
		case <-time.After(config.ShutdownGrace):
		}
		cancelWork()

		<-sigCh
		os.Exit(1)
	}()

	done := make(chan struct{})
	go func() { fn(dispatchCtx, workCtx); close(done) }()
	<-done
	return nil
}
