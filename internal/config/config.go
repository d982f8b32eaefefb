package config

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"
)

// Config holds the operationally meaningful knobs each Vigilare process
// reads at startup: where its data lives, how many workers it runs, and
// HTTP retry/backoff behavior. Everything else (queue capacities, bloom
// sizing, ranking weights) is a fixed design parameter in tunables.go, per
// spec §6.
type Config struct {
	//===============
	// Crawl scope
	//===============
	// Initial pages the crawler dispatches before link discovery takes
	// over. Only meaningful for cmd/crawler.
	seedURLs []url.URL

	//===============
	// Data
	//===============
	// dataDir holds crawl.db, storage.db, search.db, and the Bloom filter
	// snapshot. Every process opens its stores relative to this directory.
	dataDir string

	//===============
	// Workers
	//===============
	// fetcherPoolSize and parserPoolSize override the compile-time pool
	// sizes in tunables.go, for operators sizing a process to its host.
	fetcherPoolSize int
	parserPoolSize  int

	//===============
	// Politeness / retry
	//===============
	// Randomized variation added on top of a fetch's base delay.
	jitter time.Duration
	// Controls the random number generator backing jitter.
	randomSeed int64
	// maxAttempt bounds a retried store or fetch call.
	maxAttempt int
	// initial delay for exponential backoff
	backoffInitialDuration time.Duration
	// multiplier during exponential backoff
	backoffMultiplier float64
	// capped maximum delay for backoff to stop exponential multiplication
	backoffMaxDuration time.Duration

	//===============
	// Fetch
	//===============
	// userAgent overrides tunables.UserAgent when non-empty.
	userAgent string

	//===============
	// Process
	//===============
	// dryRun records the crawler's --dry-run flag. No component reads it:
	// the pipeline writes to the stores whether or not it is set.
	dryRun bool
	// once restricts the indexer to a single tick rather than looping,
	// for operational debugging.
	once bool
}

type configDTO struct {
	SeedURLs               []url.URL     `json:"seedUrls,omitempty"`
	DataDir                string        `json:"dataDir,omitempty"`
	FetcherPoolSize        int           `json:"fetcherPoolSize,omitempty"`
	ParserPoolSize         int           `json:"parserPoolSize,omitempty"`
	Jitter                 time.Duration `json:"jitter,omitempty"`
	RandomSeed             int64         `json:"randomSeed,omitempty"`
	MaxAttempt             int           `json:"maxAttempt,omitempty"`
	BackoffInitialDuration time.Duration `json:"backoffInitialDuration,omitempty"`
	BackoffMultiplier      float64       `json:"backoffMultiplier,omitempty"`
	BackoffMaxDuration     time.Duration `json:"backoffMaxDuration,omitempty"`
	UserAgent              string        `json:"userAgent,omitempty"`
	DryRun                 bool          `json:"dryRun,omitempty"`
	Once                   bool          `json:"once,omitempty"`
}

func newConfigFromDTO(dto configDTO) (Config, error) {
	cfg := *WithDefault(dto.DataDir)

	if len(dto.SeedURLs) > 0 {
		cfg.seedURLs = dto.SeedURLs
	}
	if dto.FetcherPoolSize != 0 {
		cfg.fetcherPoolSize = dto.FetcherPoolSize
	}
	if dto.ParserPoolSize != 0 {
		cfg.parserPoolSize = dto.ParserPoolSize
	}
	if dto.Jitter != 0 {
		cfg.jitter = dto.Jitter
	}
	if dto.RandomSeed != 0 {
		cfg.randomSeed = dto.RandomSeed
	}
	if dto.MaxAttempt != 0 {
		cfg.maxAttempt = dto.MaxAttempt
	}
	if dto.BackoffInitialDuration != 0 {
		cfg.backoffInitialDuration = dto.BackoffInitialDuration
	}
	if dto.BackoffMultiplier != 0 {
		cfg.backoffMultiplier = dto.BackoffMultiplier
	}
	if dto.BackoffMaxDuration != 0 {
		cfg.backoffMaxDuration = dto.BackoffMaxDuration
	}
	if dto.UserAgent != "" {
		cfg.userAgent = dto.UserAgent
	}
	cfg.dryRun = dto.DryRun
	cfg.once = dto.Once

	return cfg, nil
}

// WithConfigFile reads a JSON config file, layering it over WithDefault.
func WithConfigFile(path string) (Config, error) {
	if _, err := os.Stat(path); err != nil {
		return Config{}, fmt.Errorf("%w: %s", ErrFileDoesNotExist, err.Error())
	}
	configContent, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("%w: %s", ErrReadConfigFail, err.Error())
	}

	var dto configDTO
	if err := json.Unmarshal(configContent, &dto); err != nil {
		return Config{}, fmt.Errorf("%w: %s", ErrConfigParsingFail, err.Error())
	}

	return newConfigFromDTO(dto)
}

// WithDefault creates a Config rooted at dataDir ("./data" if empty) with
// default values for every other field.
func WithDefault(dataDir string) *Config {
	if dataDir == "" {
		dataDir = "./data"
	}
	return &Config{
		dataDir:                dataDir,
		fetcherPoolSize:        FetcherPoolSize,
		parserPoolSize:         ParserPoolSize,
		jitter:                 500 * time.Millisecond,
		randomSeed:             time.Now().UnixNano(),
		maxAttempt:             5,
		backoffInitialDuration: 100 * time.Millisecond,
		backoffMultiplier:      2.0,
		backoffMaxDuration:     10 * time.Second,
		userAgent:              UserAgent,
		dryRun:                 false,
		once:                   false,
	}
}

func (c *Config) WithSeedUrls(urls []url.URL) *Config {
	c.seedURLs = urls
	return c
}

func (c *Config) WithDataDir(dir string) *Config {
	c.dataDir = dir
	return c
}

func (c *Config) WithFetcherPoolSize(size int) *Config {
	c.fetcherPoolSize = size
	return c
}

func (c *Config) WithParserPoolSize(size int) *Config {
	c.parserPoolSize = size
	return c
}

func (c *Config) WithJitter(jitter time.Duration) *Config {
	c.jitter = jitter
	return c
}

func (c *Config) WithRandomSeed(seed int64) *Config {
	c.randomSeed = seed
	return c
}

func (c *Config) WithMaxAttempt(attempts int) *Config {
	c.maxAttempt = attempts
	return c
}

func (c *Config) WithBackoffInitialDuration(duration time.Duration) *Config {
	c.backoffInitialDuration = duration
	return c
}

func (c *Config) WithBackoffMultiplier(multiplier float64) *Config {
	c.backoffMultiplier = multiplier
	return c
}

func (c *Config) WithBackoffMaxDuration(duration time.Duration) *Config {
	c.backoffMaxDuration = duration
	return c
}

func (c *Config) WithUserAgent(agent string) *Config {
	c.userAgent = agent
	return c
}

func (c *Config) WithDryRun(dryRun bool) *Config {
	c.dryRun = dryRun
	return c
}

func (c *Config) WithOnce(once bool) *Config {
	c.once = once
	return c
}

func (c *Config) Build() (Config, error) {
	if c.dataDir == "" {
		return Config{}, fmt.Errorf("%w: dataDir cannot be empty", ErrInvalidConfig)
	}
	return *c, nil
}

func (c Config) SeedURLs() []url.URL {
	urls := make([]url.URL, len(c.seedURLs))
	copy(urls, c.seedURLs)
	return urls
}

func (c Config) DataDir() string {
	return c.dataDir
}

// CrawlDBPath, StorageDBPath, SearchDBPath, BloomSnapshotPath are the four
// files every process locates relative to DataDir.
func (c Config) CrawlDBPath() string {
	return filepath.Join(c.dataDir, "crawl.db")
}

func (c Config) StorageDBPath() string {
	return filepath.Join(c.dataDir, "storage.db")
}

func (c Config) SearchDBPath() string {
	return filepath.Join(c.dataDir, "search.db")
}

func (c Config) BloomSnapshotPath() string {
	return filepath.Join(c.dataDir, "bloom.snapshot")
}

func (c Config) IndexerCursorPath() string {
	return filepath.Join(c.dataDir, "indexer_state.txt")
}

func (c Config) FetcherPoolSize() int {
	return c.fetcherPoolSize
}

func (c Config) ParserPoolSize() int {
	return c.parserPoolSize
}

func (c Config) Jitter() time.Duration {
	return c.jitter
}

func (c Config) RandomSeed() int64 {
	return c.randomSeed
}

func (c Config) UserAgent() string {
	return c.userAgent
}

func (c Config) DryRun() bool {
	return c.dryRun
}

func (c Config) Once() bool {
	return c.once
}

func (c Config) MaxAttempt() int {
	return c.maxAttempt
}

func (c Config) BackoffInitialDuration() time.Duration {
	return c.backoffInitialDuration
}

func (c Config) BackoffMultiplier() float64 {
	return c.backoffMultiplier
}

func (c Config) BackoffMaxDuration() time.Duration {
	return c.backoffMaxDuration
}
