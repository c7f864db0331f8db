package testsupport

import (
	"path/filepath"
	"testing"

	"greylit/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.DataDir = filepath.Join(base, "data")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Paths.APIBind = "127.0.0.1:0"

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	if err := builder.cfg.EnsureDirectories(); err != nil {
		t.Fatalf("ensure directories: %v", err)
	}

	return builder.cfg
}

// WithChunkSize overrides the persistence chunk size on the test config.
func WithChunkSize(n int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Processing.ChunkSize = n
	}
}

// WithItemWorkers overrides the per-item worker count on the test config.
func WithItemWorkers(n int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Processing.ItemWorkers = n
	}
}

// WithDedupStrategy selects the duplicate detection strategy for the test config.
func WithDedupStrategy(name string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Dedup.Strategy = name
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.DataDir)
}
