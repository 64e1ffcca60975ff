package prometheus

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// LinksCreated counts successfully persisted short links.
	LinksCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "linksmith_links_created_total",
		Help: "Number of short links successfully created.",
	})

	// RedirectsServed counts resolve requests that ended in a redirect.
	RedirectsServed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "linksmith_redirects_served_total",
		Help: "Number of redirects served for resolved short ids.",
	})

	// LookupMisses counts resolve requests for unknown or malformed ids.
	LookupMisses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "linksmith_lookup_misses_total",
		Help: "Number of resolve requests that did not match a link.",
	})

	// GeneratorCollisions counts candidate ids discarded on the shorten
	// path, whether by the collision filter or by the conditional insert.
	GeneratorCollisions = promauto.NewCounter(prometheus.CounterOpts{
		Name: "linksmith_generator_collisions_total",
		Help: "Number of candidate short ids discarded due to collisions.",
	})

	// CacheHits and CacheMisses track the resolve read-through cache.
	CacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "linksmith_resolve_cache_hits_total",
		Help: "Number of resolve lookups answered from the cache.",
	})
	CacheMisses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "linksmith_resolve_cache_misses_total",
		Help: "Number of resolve lookups that fell through to storage.",
	})
)
