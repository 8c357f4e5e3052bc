package catalog

import "github.com/okian/akut/pkg/logger"

// Option configures a Catalog.
type Option func(*Catalog)

// WithPattern sets the doublestar pattern matched against paths under the
// load directory.
func WithPattern(pattern string) Option {
	return func(c *Catalog) {
		if pattern != "" {
			c.pattern = pattern
		}
	}
}

// WithConcurrency bounds how many files are read in parallel.
func WithConcurrency(n int) Option {
	return func(c *Catalog) {
		if n > 0 {
			c.concurrency = n
		}
	}
}

// WithLogger overrides the component logger.
func WithLogger(l logger.Logger) Option {
	return func(c *Catalog) {
		if l != nil {
			c.log = l
		}
	}
}
