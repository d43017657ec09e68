package router

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"autodev/internal/logging"
	"autodev/internal/metrics"
)

// RouterError is the typed error family from spec.md §4.C's failure
// semantics — the router never panics, every path surfaces one of these.
type RouterError struct {
	Kind    string
	Detail  string
	PerProvider map[string]string
}

func (e *RouterError) Error() string {
	if len(e.PerProvider) == 0 {
		return fmt.Sprintf("router: %s: %s", e.Kind, e.Detail)
	}
	return fmt.Sprintf("router: %s: %s (%v)", e.Kind, e.Detail, e.PerProvider)
}

func errNoProviderAvailable() error {
	return &RouterError{Kind: "NoProviderAvailable", Detail: "no providers registered"}
}

func errAllProvidersFailed(reasons map[string]string) error {
	return &RouterError{Kind: "AllProvidersFailed", Detail: "every tier exhausted", PerProvider: reasons}
}

func errUnsupported(variant Variant) error {
	return &RouterError{Kind: "Unsupported", Detail: string(variant)}
}

func errRateLimited(retryAfter float64) error {
	return &RouterError{Kind: "RateLimited", Detail: fmt.Sprintf("retry after %.1fs", retryAfter)}
}

// registration pairs a provider with its registration order (for stable
// same-tier iteration) and its rate limiter.
type registration struct {
	provider Provider
	order    int
	limiter  *SlidingWindowLimiter
}

// Config controls retry counts, rate limits and the stats window.
// CacheTTL is not read by the Router; the cache's TTL is the one passed
// to OpenCache.
type Config struct {
	CacheTTL        time.Duration
	MaxRetries      int
	RateLimitPerMin int
	StatsWindow     int
}

// Router dispatches Tasks to the cheapest adequate registered Provider.
type Router struct {
	mu        sync.RWMutex
	providers []*registration
	byTier    map[Tier][]*registration
	cache     *Cache
	cfg       Config
	stats     map[string]*providerStats

	// inflight collapses concurrent Dispatch calls sharing a fingerprint
	// into a single provider invocation, so two increments racing on an
	// identical task don't both pay for the same completion.
	inflight singleflight.Group
}

// New constructs a Router backed by the given cache (use OpenCache or
// OpenInMemoryCache).
func New(cache *Cache, cfg Config) *Router {
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.RateLimitPerMin <= 0 {
		cfg.RateLimitPerMin = 50
	}
	return &Router{
		cache:  cache,
		cfg:    cfg,
		byTier: make(map[Tier][]*registration),
		stats:  make(map[string]*providerStats),
	}
}

// Register adds a provider to the router, in registration order. Order
// matters: within one tier, providers are tried in the order registered.
func (r *Router) Register(p Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()

	reg := &registration{
		provider: p,
		order:    len(r.providers),
		limiter:  NewSlidingWindowLimiter(r.cfg.RateLimitPerMin, time.Minute),
	}
	r.providers = append(r.providers, reg)
	r.byTier[p.Tier()] = append(r.byTier[p.Tier()], reg)
	r.stats[p.Name()] = newProviderStats(r.cfg.StatsWindow)
}

// Snapshot returns the current performance snapshot for a provider.
func (r *Router) Snapshot(name string) (Snapshot, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.stats[name]
	if !ok {
		return Snapshot{}, false
	}
	return s.snapshot(name), true
}

// Dispatch routes a Task through the algorithm in spec.md §4.C:
// 1. cache check, 2. tier assessment, 3. tier walk, 4. invoke with
// retry/backoff, 5. cache + stats update, 6. AllProvidersFailed.
func (r *Router) Dispatch(ctx context.Context, task Task) (TaskResult, error) {
	log := logging.Get(logging.CategoryRouter)

	fp := task.Fingerprint()
	if !task.Streaming && r.cache != nil {
		if cached, ok := r.cache.Get(fp); ok {
			log.Debugw("cache hit", "fingerprint", fp, "variant", task.Variant)
			return cached, nil
		}
	}

	r.mu.RLock()
	total := len(r.providers)
	r.mu.RUnlock()
	if total == 0 {
		return TaskResult{}, errNoProviderAvailable()
	}

	v, err, shared := r.inflight.Do(fp, func() (interface{}, error) {
		return r.dispatchUncached(ctx, task, fp)
	})
	if shared {
		log.Debugw("dispatch collapsed into inflight call", "fingerprint", fp, "variant", task.Variant)
	}
	if err != nil {
		return TaskResult{}, err
	}
	return v.(TaskResult), nil
}

func (r *Router) dispatchUncached(ctx context.Context, task Task, fp string) (TaskResult, error) {
	log := logging.Get(logging.CategoryRouter)
	startTier := AssessTier(task)
	reasons := make(map[string]string)

	for _, tier := range AllTiersFrom(startTier) {
		r.mu.RLock()
		regs := append([]*registration(nil), r.byTier[tier]...)
		r.mu.RUnlock()

		for _, reg := range regs {
			if !reg.provider.IsAvailable(ctx) {
				reasons[reg.provider.Name()] = "unavailable"
				continue
			}
			if !Supports(reg.provider, task.Variant) {
				reasons[reg.provider.Name()] = "unsupported variant"
				continue
			}

			result, err := r.invokeWithRetry(ctx, reg, task)
			if err == nil {
				if !task.Streaming && r.cache != nil {
					result.Provider = reg.provider.Name()
					if cacheErr := r.cache.Set(fp, result); cacheErr != nil {
						log.Warnw("cache set failed", "error", cacheErr)
					}
				}
				return result, nil
			}

			var perr *ProviderError
			if asProviderError(err, &perr) && perr.Class == ErrClassRateLimited {
				return TaskResult{}, errRateLimited(perr.RetryAfter)
			}
			reasons[reg.provider.Name()] = err.Error()
		}
	}

	return TaskResult{}, errAllProvidersFailed(reasons)
}

func asProviderError(err error, target **ProviderError) bool {
	pe, ok := err.(*ProviderError)
	if ok {
		*target = pe
	}
	return ok
}

// invokeWithRetry calls a single provider, retrying transient failures
// with exponential backoff up to MaxRetries, per spec.md §4.C step 4.
func (r *Router) invokeWithRetry(ctx context.Context, reg *registration, task Task) (TaskResult, error) {
	name := reg.provider.Name()
	log := logging.Get(logging.CategoryRouter)

	var lastErr error
	backoff := 200 * time.Millisecond

	for attempt := 0; attempt <= r.cfg.MaxRetries; attempt++ {
		if err := reg.limiter.Acquire(ctx); err != nil {
			return TaskResult{}, err
		}

		start := time.Now()
		result, err := r.call(ctx, reg.provider, task)
		elapsed := time.Since(start)

		if err == nil {
			r.statsFor(name).recordSuccess(elapsed, 0)
			metrics.ProviderCalls.WithLabelValues(name, "success").Inc()
			metrics.ProviderLatency.WithLabelValues(name).Observe(elapsed.Seconds())
			return result, nil
		}

		lastErr = err
		r.statsFor(name).recordFailure()
		metrics.ProviderCalls.WithLabelValues(name, "failure").Inc()

		var perr *ProviderError
		if !asProviderError(err, &perr) {
			// Unclassified error: treat as permanent, don't retry.
			return TaskResult{}, err
		}

		switch perr.Class {
		case ErrClassUnsupported:
			return TaskResult{}, ErrUnsupported
		case ErrClassRateLimited:
			return TaskResult{}, err
		case ErrClassPermanent:
			return TaskResult{}, err
		case ErrClassTransient:
			if attempt == r.cfg.MaxRetries {
				return TaskResult{}, err
			}
			log.Debugw("transient provider error, retrying", "provider", name, "attempt", attempt, "backoff", backoff)
			select {
			case <-ctx.Done():
				return TaskResult{}, ctx.Err()
			case <-time.After(backoff):
			}
			backoff *= 2
		}
	}
	return TaskResult{}, lastErr
}

func (r *Router) call(ctx context.Context, p Provider, task Task) (TaskResult, error) {
	if task.Streaming && task.Variant == VariantCodeGeneration {
		return p.CompleteStreaming(ctx, task, func(StreamChunk) {})
	}
	return p.Complete(ctx, task)
}

// DispatchStreaming is Dispatch's streaming counterpart: the caller
// receives chunks as they arrive via onChunk, and the final assembled
// text is cached only once onChunk observes a chunk with Done=true,
// matching "a streamed call does not populate the cache... only the
// final assembled text does, and only if the caller signals completion."
func (r *Router) DispatchStreaming(ctx context.Context, task Task, onChunk func(StreamChunk)) (TaskResult, error) {
	task.Streaming = true

	r.mu.RLock()
	total := len(r.providers)
	r.mu.RUnlock()
	if total == 0 {
		return TaskResult{}, errNoProviderAvailable()
	}

	startTier := AssessTier(task)
	reasons := make(map[string]string)
	completed := false

	wrappedChunk := func(c StreamChunk) {
		if c.Done {
			completed = true
		}
		onChunk(c)
	}

	for _, tier := range AllTiersFrom(startTier) {
		r.mu.RLock()
		regs := append([]*registration(nil), r.byTier[tier]...)
		r.mu.RUnlock()

		for _, reg := range regs {
			if !reg.provider.IsAvailable(ctx) || !Supports(reg.provider, task.Variant) {
				continue
			}
			if err := reg.limiter.Acquire(ctx); err != nil {
				return TaskResult{}, err
			}
			start := time.Now()
			result, err := reg.provider.CompleteStreaming(ctx, task, wrappedChunk)
			elapsed := time.Since(start)
			if err != nil {
				reasons[reg.provider.Name()] = err.Error()
				r.statsFor(reg.provider.Name()).recordFailure()
				continue
			}
			r.statsFor(reg.provider.Name()).recordSuccess(elapsed, 0)
			if completed && r.cache != nil {
				result.Provider = reg.provider.Name()
				_ = r.cache.Set(task.Fingerprint(), result)
			}
			return result, nil
		}
	}
	return TaskResult{}, errAllProvidersFailed(reasons)
}

func (r *Router) statsFor(name string) *providerStats {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.stats[name]
	if !ok {
		s = newProviderStats(r.cfg.StatsWindow)
		r.stats[name] = s
	}
	return s
}
