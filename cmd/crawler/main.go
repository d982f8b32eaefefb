// Command crawler runs Vigilare's crawl-parse-persist pipeline: it
// dispatches frontier rows, fetches and parses pages under robots.txt and
// per-domain politeness, and writes results to the Crawl and Storage
// stores.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/vigilare/vigilare/internal/cli"
)

func main() {
	cmd := cli.NewCrawlerCommand()
	if err := cmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "crawler:", err)
		os.Exit(1)
	}
}
