package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/vigilare/vigilare/internal/build"
	"github.com/vigilare/vigilare/internal/config"
	"github.com/vigilare/vigilare/internal/indexer"
	"github.com/vigilare/vigilare/internal/observability"
	"github.com/vigilare/vigilare/internal/pagerank"
	"github.com/vigilare/vigilare/internal/store/crawlstore"
)

var (
	indexerCfgFile string
	indexerDataDir string
	indexerOnce    bool
)

// NewIndexerCommand builds the cobra command for cmd/indexer.
func NewIndexerCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "indexer",
		Short:   "Turn Storage rows into Search documents and periodically recompute PageRank.",
		Version: build.FullVersion(),
		RunE:    runIndexer,
	}
	cmd.Flags().StringVar(&indexerCfgFile, "config-file", "", "config file path")
	cmd.Flags().StringVar(&indexerDataDir, "data-dir", "", "directory holding crawl.db, storage.db, search.db")
	cmd.Flags().BoolVar(&indexerOnce, "once", false, "run a single Tick then exit, instead of looping")
	return cmd
}

func loadIndexerConfig() (config.Config, error) {
	if indexerCfgFile != "" {
		return config.WithConfigFile(indexerCfgFile)
	}
	return config.WithDefault(indexerDataDir).Build()
}

func runIndexer(cmd *cobra.Command, args []string) error {
	cfg, err := loadIndexerConfig()
	if err != nil {
		return err
	}

	recorder := observability.NewSlogRecorder("indexer")

	rankCrawl, err := crawlstore.Open(cfg.CrawlDBPath(), false)
	if err != nil {
		return fmt.Errorf("opening crawl store for pagerank: %w", err)
	}
	defer rankCrawl.Close()
	ranker := pagerank.New(rankCrawl, recorder, cfg.RandomSeed())

	ix, err := indexer.New(cfg, recorder, ranker.Run)
	if err != nil {
		return fmt.Errorf("opening indexer stores: %w", err)
	}
	defer ix.Close()

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case <-sigCh:
			cancel()
		case <-ctx.Done():
		}
	}()

	if indexerOnce {
		_, err := ix.Tick(ctx)
		return err
	}

	ix.Run(ctx)
	return nil
}
