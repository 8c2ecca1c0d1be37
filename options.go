package vecforest

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/hupe1980/vecforest/codec"
	"github.com/hupe1980/vecforest/persistence"
)

// DefaultSeed is the build seed used unless WithSeed is given.
const DefaultSeed uint64 = 0x5eed_f0e5_7ab1_e001

type options struct {
	seed                uint64
	leafSize            int
	searchMultiplier    int
	filterMultiplier    int
	bruteForceThreshold int
	workers             int
	logger              *Logger
	metricsCollector    MetricsCollector
	compression         persistence.CompressionType
	codec               codec.Codec
	memoryLimit         int64
	ioRate              int64
}

// Option configures index construction and load behavior.
type Option func(*options)

// WithSeed sets the seed of the random split choices. Builds with the same
// seed, items and tree count produce identical forests.
func WithSeed(seed uint64) Option {
	return func(o *options) {
		o.seed = seed
	}
}

// WithLeafSize sets the maximum number of items in a leaf bucket.
// Zero selects max(2*dimension, 16).
func WithLeafSize(n int) Option {
	return func(o *options) {
		o.leafSize = n
	}
}

// WithSearchMultiplier scales the default candidate budget of k*trees.
func WithSearchMultiplier(n int) Option {
	return func(o *options) {
		o.searchMultiplier = n
	}
}

// WithFilterMultiplier scales the candidate budget of tag-filtered queries.
// Only items that pass the filter count against the budget.
func WithFilterMultiplier(n int) Option {
	return func(o *options) {
		o.filterMultiplier = n
	}
}

// WithBruteForceThreshold sets the allowed-set size at or below which a
// filtered query scores the allowed items directly instead of walking the
// forest. A negative value selects twice the query budget; zero disables it.
func WithBruteForceThreshold(n int) Option {
	return func(o *options) {
		o.bruteForceThreshold = n
	}
}

// WithWorkers bounds the number of trees built concurrently.
// Zero uses GOMAXPROCS.
func WithWorkers(n int) Option {
	return func(o *options) {
		o.workers = n
	}
}

// WithLogger configures structured logging for operations.
// Pass nil to disable logging.
//
// Example with JSON logging:
//
//	logger := vecforest.NewJSONLogger(os.Stderr, slog.LevelInfo)
//	idx, _ := vecforest.New(64, distance.MetricAngular, 16, vecforest.WithLogger(logger))
func WithLogger(logger *Logger) Option {
	return func(o *options) {
		if logger == nil {
			logger = NoopLogger()
		}
		o.logger = logger
	}
}

// WithLogLevel creates a text logger on stderr with the specified level and sets it.
func WithLogLevel(level slog.Level) Option {
	return func(o *options) {
		o.logger = NewTextLogger(os.Stderr, level)
	}
}

// WithMetricsCollector configures metrics collection for monitoring.
//
// Example:
//
//	metrics := &vecforest.BasicMetricsCollector{}
//	idx, _ := vecforest.New(64, distance.MetricAngular, 16, vecforest.WithMetricsCollector(metrics))
//	// ... use idx ...
//	stats := metrics.GetStats()
//	fmt.Printf("Searches: %d, Avg latency: %dns\n", stats.SearchCount, stats.SearchAvgNanos)
func WithMetricsCollector(mc MetricsCollector) Option {
	return func(o *options) {
		if mc == nil {
			mc = NoopMetricsCollector{}
		}
		o.metricsCollector = mc
	}
}

// WithCompression selects the section compression used when saving.
func WithCompression(c persistence.CompressionType) Option {
	return func(o *options) {
		o.compression = c
	}
}

// WithCodec configures the codec used for the manifest section.
//
// If nil is passed, codec.Default is used. Loading always uses the codec
// named in the file header.
func WithCodec(c codec.Codec) Option {
	return func(o *options) {
		if c == nil {
			c = codec.Default
		}
		o.codec = c
	}
}

// WithMemoryLimit caps the bytes held by item storage and the forest arena.
// Zero disables the limit.
func WithMemoryLimit(bytes int64) Option {
	return func(o *options) {
		o.memoryLimit = bytes
	}
}

// WithIORateLimit caps save and load throughput in bytes per second.
// Zero disables the limit.
func WithIORateLimit(bytesPerSec int64) Option {
	return func(o *options) {
		o.ioRate = bytesPerSec
	}
}

func defaultOptions() options {
	return options{
		seed:                DefaultSeed,
		searchMultiplier:    1,
		filterMultiplier:    4,
		bruteForceThreshold: -1,
		logger:              NoopLogger(),
		metricsCollector:    NoopMetricsCollector{},
		compression:         persistence.CompressionNone,
		codec:               codec.Default,
	}
}

func applyOptions(optFns []Option) (options, error) {
	o := defaultOptions()
	for _, fn := range optFns {
		if fn != nil {
			fn(&o)
		}
	}
	if err := o.validate(); err != nil {
		return options{}, err
	}
	return o, nil
}

func (o *options) validate() error {
	switch {
	case o.leafSize < 0:
		return fmt.Errorf("%w: leaf size %d", ErrInvalidOption, o.leafSize)
	case o.searchMultiplier < 1:
		return fmt.Errorf("%w: search multiplier %d", ErrInvalidOption, o.searchMultiplier)
	case o.filterMultiplier < 1:
		return fmt.Errorf("%w: filter multiplier %d", ErrInvalidOption, o.filterMultiplier)
	case o.workers < 0:
		return fmt.Errorf("%w: workers %d", ErrInvalidOption, o.workers)
	case !o.compression.Valid():
		return fmt.Errorf("%w: compression %d", ErrInvalidOption, o.compression)
	case o.memoryLimit < 0:
		return fmt.Errorf("%w: memory limit %d", ErrInvalidOption, o.memoryLimit)
	case o.ioRate < 0:
		return fmt.Errorf("%w: io rate %d", ErrInvalidOption, o.ioRate)
	}
	return nil
}

// SearchOption configures a single query.
type SearchOption func(*searchOptions)

type searchOptions struct {
	searchK  int
	matchAll bool
}

// WithSearchK overrides the candidate budget of one query.
// Larger values trade latency for recall; values below 1 are ignored.
func WithSearchK(n int) SearchOption {
	return func(o *searchOptions) {
		o.searchK = n
	}
}

// WithMatchAll requires every query tag instead of any of them.
func WithMatchAll() SearchOption {
	return func(o *searchOptions) {
		o.matchAll = true
	}
}

func applySearchOptions(optFns []SearchOption) searchOptions {
	var o searchOptions
	for _, fn := range optFns {
		if fn != nil {
			fn(&o)
		}
	}
	return o
}
