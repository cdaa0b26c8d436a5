package anngo

import (
	"log/slog"

	"github.com/hupe1980/anngo/codec"
	"github.com/hupe1980/anngo/engine"
	"github.com/hupe1980/anngo/persistence"
	"github.com/hupe1980/anngo/resource"
)

type options struct {
	codec              codec.Codec
	logger             *Logger
	metricsCollector   MetricsCollector
	limits             engine.Limits
	resourceController *resource.Controller
	compression        persistence.CompressionType
	randomSeed         *int64
	numWorkers         int
}

// Option configures construction and load behavior.
type Option func(*options)

// WithCodec configures the codec used for config blobs and dump manifests.
//
// If nil is passed, codec.Default is used.
func WithCodec(c codec.Codec) Option {
	return func(o *options) {
		if c == nil {
			c = codec.Default
		}
		o.codec = c
	}
}

// WithLimits overrides the validation limits. Zero fields keep their
// defaults.
func WithLimits(limits engine.Limits) Option {
	return func(o *options) {
		o.limits = limits
	}
}

// WithResourceController attaches a resource controller. Dump and load
// operations then compete for its I/O slots and respect its bandwidth limit.
func WithResourceController(rc *resource.Controller) Option {
	return func(o *options) {
		o.resourceController = rc
	}
}

// WithCompression selects the block compression applied to the index section
// of dumps. The default is zstd; loads always autodetect from the dump
// header, so this only affects writing.
func WithCompression(ct persistence.CompressionType) Option {
	return func(o *options) {
		o.compression = ct
	}
}

// WithRandomSeed pins the RNG used during graph construction, making builds
// reproducible. Without it, the seed comes from the clock.
func WithRandomSeed(seed int64) Option {
	return func(o *options) {
		o.randomSeed = &seed
	}
}

// WithNumWorkers sizes the pool used for batch validation.
// Values <= 0 mean GOMAXPROCS.
func WithNumWorkers(n int) Option {
	return func(o *options) {
		o.numWorkers = n
	}
}

// WithMetricsCollector configures a metrics collector for monitoring
// operations.
//
// Example with BasicMetricsCollector:
//
//	metrics := &anngo.BasicMetricsCollector{}
//	idx, _ := anngo.Construct("hnsw", config, anngo.WithMetricsCollector(metrics))
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

// WithLogger configures structured logging for operations.
//
// Example with JSON logging:
//
//	logger := anngo.NewJSONLogger(slog.LevelInfo)
//	idx, _ := anngo.Construct("hnsw", config, anngo.WithLogger(logger))
func WithLogger(logger *Logger) Option {
	return func(o *options) {
		if logger == nil {
			logger = NoopLogger()
		}
		o.logger = logger
	}
}

// WithLogLevel creates a text logger with the specified level and sets it.
// Convenience wrapper for WithLogger(NewTextLogger(level)).
func WithLogLevel(level slog.Level) Option {
	return func(o *options) {
		o.logger = NewTextLogger(level)
	}
}

func applyOptions(optFns []Option) options {
	o := options{
		metricsCollector: NoopMetricsCollector{},
		logger:           NoopLogger(),
		compression:      persistence.CompressionZSTD,
	}
	for _, fn := range optFns {
		if fn != nil {
			fn(&o)
		}
	}
	return o
}

// engineOptions converts the facade options into an engine option function.
func (o *options) engineOptions() func(*engine.Options) {
	return func(eo *engine.Options) {
		eo.Codec = o.codec
		eo.Limits = o.limits
		eo.RandomSeed = o.randomSeed
		eo.NumWorkers = o.numWorkers
	}
}
