package builder

// DefaultChunkSize is the number of records aggregated per partial accumulator.
const DefaultChunkSize = 4096

// config holds the tuning knobs of a build. None of them affect the result.
type config struct {
	workers   int
	chunkSize int
}

// Option configures a build.
type Option func(*config)

// WithWorkers sets the number of goroutines aggregating chunks concurrently.
// Values below 1 are ignored. The default is 1 (sequential).
func WithWorkers(n int) Option {
	return func(c *config) {
		if n > 0 {
			c.workers = n
		}
	}
}

// WithChunkSize sets how many records each partial accumulator covers.
// Values below 1 are ignored.
func WithChunkSize(n int) Option {
	return func(c *config) {
		if n > 0 {
			c.chunkSize = n
		}
	}
}

func newConfig(opts []Option) config {
	c := config{
		workers:   1,
		chunkSize: DefaultChunkSize,
	}
	for _, opt := range opts {
		opt(&c)
	}
	return c
}
