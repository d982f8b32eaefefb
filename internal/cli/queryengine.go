package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/vigilare/vigilare/internal/build"
	"github.com/vigilare/vigilare/internal/config"
	"github.com/vigilare/vigilare/internal/httpapi"
	"github.com/vigilare/vigilare/internal/queryengine"
	"github.com/vigilare/vigilare/internal/store/crawlstore"
	"github.com/vigilare/vigilare/internal/store/searchstore"
)

var (
	queryengineCfgFile string
	queryengineDataDir string
	queryengineAddr    string
)

// NewQueryEngineCommand builds the cobra command for cmd/queryengine.
func NewQueryEngineCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "queryengine",
		Short:   "Serve GET /search, /suggest, and /icon over the Search and Crawl stores.",
		Version: build.FullVersion(),
		RunE:    runQueryEngine,
	}
	cmd.Flags().StringVar(&queryengineCfgFile, "config-file", "", "config file path")
	cmd.Flags().StringVar(&queryengineDataDir, "data-dir", "", "directory holding crawl.db, storage.db, search.db")
	cmd.Flags().StringVar(&queryengineAddr, "addr", ":8080", "address to listen on")
	return cmd
}

func loadQueryEngineConfig() (config.Config, error) {
	if queryengineCfgFile != "" {
		return config.WithConfigFile(queryengineCfgFile)
	}
	return config.WithDefault(queryengineDataDir).Build()
}

func runQueryEngine(cmd *cobra.Command, args []string) error {
	cfg, err := loadQueryEngineConfig()
	if err != nil {
		return err
	}

	search, err := searchstore.Open(cfg.SearchDBPath(), true)
	if err != nil {
		return fmt.Errorf("opening search store: %w", err)
	}
	defer search.Close()

	crawl, err := crawlstore.Open(cfg.CrawlDBPath(), true)
	if err != nil {
		return fmt.Errorf("opening crawl store: %w", err)
	}
	defer crawl.Close()

	engine := queryengine.New(search, crawl)
	server := httpapi.New(engine)

	httpSrv := &http.Server{
		Addr:    queryengineAddr,
		Handler: server.Router(),
	}

	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	serveErr := make(chan error, 1)
	go func() { serveErr <- httpSrv.ListenAndServe() }()

	select {
	case <-sigCh:
	case err := <-serveErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serving http: %w", err)
		}
		return nil
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), config.ShutdownGrace)
	defer shutdownCancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down http server: %w", err)
	}
	return nil
}
