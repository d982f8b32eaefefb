// Command indexer turns Storage rows into Search documents and triggers
// periodic PageRank passes over the Crawl database's link graph.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/vigilare/vigilare/internal/cli"
)

func main() {
	cmd := cli.NewIndexerCommand()
	if err := cmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "indexer:", err)
		os.Exit(1)
	}
}
