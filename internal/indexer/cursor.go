package indexer

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// readCursor loads the last processed Storage rowid from path, treating a
// missing file as a fresh start at 0.
func readCursor(path string) (int64, error) {
	content, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("indexer: read cursor: %w", err)
	}

	trimmed := strings.TrimSpace(string(content))
	if trimmed == "" {
		return 0, nil
	}

	id, err := strconv.ParseInt(trimmed, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("indexer: parse cursor: %w", err)
	}
	return id, nil
}

// writeCursor persists id to path via a temp-file-then-rename so a crash
// mid-write never leaves a torn cursor file behind.
func writeCursor(path string, id int64) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, []byte(strconv.FormatInt(id, 10)), 0644); err != nil {
		return fmt.Errorf("indexer: write cursor: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("indexer: rename cursor: %w", err)
	}
	return nil
}
