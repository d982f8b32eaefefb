// Command queryengine serves the search HTTP API over the Search and
// Crawl stores: GET /search, GET /suggest, GET /icon.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/vigilare/vigilare/internal/cli"
)

func main() {
	cmd := cli.NewQueryEngineCommand()
	if err := cmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "queryengine:", err)
		os.Exit(1)
	}
}
