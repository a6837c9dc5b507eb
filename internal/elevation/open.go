package elevation

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/planbiir/trackconv/internal/track"
)

// Source kinds accepted by Options.Source.
const (
	SourceNone  = "none"
	SourceHTTP  = "http"
	SourceTable = "table"
)

// DefaultCacheTTL applies when Options.CacheTTL is zero.
const DefaultCacheTTL = 24 * time.Hour

// Options selects and tunes the elevation source.
type Options struct {
	Source     string        `mapstructure:"source" yaml:"source" validate:"oneof=none http table"`
	URL        string        `mapstructure:"url" yaml:"url" validate:"required_if=Source http"`
	TablePath  string        `mapstructure:"table_path" yaml:"table_path" validate:"required_if=Source table"`
	Timeout    time.Duration `mapstructure:"timeout" yaml:"timeout" validate:"gte=0"`
	Workers    int           `mapstructure:"workers" yaml:"workers" validate:"gte=0,lte=256"`
	CacheTTL   time.Duration `mapstructure:"cache_ttl" yaml:"cache_ttl" validate:"gte=0"`
	ValkeyAddr string        `mapstructure:"valkey_addr" yaml:"valkey_addr"`
}

// Open builds the enricher described by opts. With Source "none" (or empty)
// the enricher has no source and Enrich only copies the document. The
// returned func releases caches and connections.
func Open(opts Options, logger *slog.Logger) (*Enricher, func(), error) {
	if logger == nil {
		logger = slog.Default()
	}
	enricher := &Enricher{Workers: opts.Workers, Timeout: opts.Timeout, Logger: logger}
	noop := func() {}

	var src Source
	switch opts.Source {
	case "", SourceNone:
		return enricher, noop, nil
	case SourceHTTP:
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = DefaultTimeout
		}
		hs := NewHTTPSource(opts.URL)
		hs.Client = &http.Client{Timeout: timeout}
		src = hs
	case SourceTable:
		t, err := LoadTable(opts.TablePath)
		if err != nil {
			return nil, noop, err
		}
		src = t
	default:
		return nil, noop, fmt.Errorf("%w: unknown elevation source %q", track.ErrInvalidParameter, opts.Source)
	}

	ttl := opts.CacheTTL
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}

	var closers []func()
	if opts.ValkeyAddr != "" {
		store, err := NewValkeyStore(opts.ValkeyAddr)
		if err != nil {
			// The shared cache is an optimisation; lookups still work without it.
			logger.Warn("valkey unavailable", "addr", opts.ValkeyAddr, "error", err)
		} else {
			src = &ValkeyCached{Inner: src, Store: store, TTL: ttl, Prefix: "trackconv:ele:"}
			closers = append(closers, store.Close)
		}
	}

	cached := NewCached(src, ttl)
	closers = append(closers, cached.Close)
	enricher.Source = cached

	logger.Debug("elevation source ready", "source", opts.Source, "valkey", opts.ValkeyAddr != "")

	return enricher, func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}, nil
}
