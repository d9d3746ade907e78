// Package cache caches compiled queries. The IR is immutable once
// built, so one compiled query can be shared by any number of
// concurrent executions.
package cache

import (
	"github.com/dgraph-io/ristretto"
	"github.com/samsarahq/go/oops"

	"github.com/loomhq/weft/frontend"
	"github.com/loomhq/weft/query"
	"github.com/loomhq/weft/schema"
)

// Config bounds the cache.
type Config struct {
	// NumCounters is the number of keys to track frequency for;
	// roughly 10x the expected number of live entries.
	NumCounters int64
	// MaxCost is the total cost budget; entries cost the byte length
	// of their query text.
	MaxCost int64
}

// DefaultConfig is sized for a few thousand distinct queries.
var DefaultConfig = Config{NumCounters: 1e4, MaxCost: 1 << 24}

// Compiler parses and lowers queries against one schema, caching the
// results by query text.
type Compiler struct {
	sch   *schema.Schema
	cache *ristretto.Cache
}

// New builds a caching compiler for sch.
func New(sch *schema.Schema, cfg Config) (*Compiler, error) {
	if cfg.NumCounters == 0 {
		cfg = DefaultConfig
	}
	cache, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: cfg.NumCounters,
		MaxCost:     cfg.MaxCost,
		BufferItems: 64,
	})
	if err != nil {
		return nil, oops.Wrapf(err, "building query cache")
	}
	return &Compiler{sch: sch, cache: cache}, nil
}

// Compile returns the compiled form of text, from cache when
// possible. The returned value is shared: callers must not mutate it.
func (c *Compiler) Compile(text string) (*frontend.CompiledQuery, error) {
	if cached, ok := c.cache.Get(text); ok {
		return cached.(*frontend.CompiledQuery), nil
	}
	parsed, err := query.Parse(text)
	if err != nil {
		return nil, err
	}
	compiled, err := frontend.Compile(c.sch, parsed)
	if err != nil {
		return nil, err
	}
	c.cache.Set(text, compiled, int64(len(text)))
	return compiled, nil
}

// Wait blocks until buffered cache writes have been applied.
func (c *Compiler) Wait() {
	c.cache.Wait()
}

// Close releases the cache's internal resources.
func (c *Compiler) Close() {
	c.cache.Close()
}
