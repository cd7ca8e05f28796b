package middleware

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/benvon/datarest/internal/database"
	"github.com/benvon/datarest/internal/models"
	"github.com/benvon/datarest/internal/request"
	"github.com/ulule/limiter/v3"
	stdlibmw "github.com/ulule/limiter/v3/drivers/middleware/stdlib"
	"go.uber.org/zap"
)

const defaultRatelimitRate = "5-S"

// RatelimitSource provides the stored rates keyed by scope.
type RatelimitSource interface {
	List(ctx context.Context) (map[string]string, error)
	Set(ctx context.Context, c *models.RatelimitConfig) error
}

var _ RatelimitSource = (*database.RatelimitConfigRepository)(nil)

// RateLimitReloader wraps ulule/limiter and periodically reloads rates from the database.
// Each resource may have its own rate; requests for other paths use the default scope.
type RateLimitReloader struct {
	store       limiter.Store
	repo        RatelimitSource
	defaultRate string
	log         *zap.Logger
	interval    time.Duration
	trigger     chan struct{}
	mu          sync.RWMutex
	current     *scopedLimits
}

type scopedLimits struct {
	fallback *stdlibmw.Middleware
	byScope  map[string]*stdlibmw.Middleware
}

// NewRateLimitReloader creates a rate limiter that loads rates from repo and
// hot-reloads them. Requests pass through unlimited until the first Reload.
func NewRateLimitReloader(store limiter.Store, repo RatelimitSource, defaultRate string, log *zap.Logger, reloadInterval time.Duration) *RateLimitReloader {
	if defaultRate == "" {
		defaultRate = defaultRatelimitRate
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &RateLimitReloader{
		store:       store,
		repo:        repo,
		defaultRate: defaultRate,
		log:         log,
		interval:    reloadInterval,
		trigger:     make(chan struct{}, 1),
	}
}

// Middleware returns a middleware applying the current limits. gorilla/mux
// calls it per request, so it only wraps next.
func (r *RateLimitReloader) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			r.mu.RLock()
			limits := r.current
			r.mu.RUnlock()
			if limits == nil {
				next.ServeHTTP(w, req)
				return
			}
			mw, ok := limits.byScope[request.ResourceFromContext(req)]
			if !ok {
				mw = limits.fallback
			}
			mw.Handler(next).ServeHTTP(w, req)
		})
	}
}

// Trigger requests an immediate reload without blocking.
func (r *RateLimitReloader) Trigger() {
	select {
	case r.trigger <- struct{}{}:
	default:
	}
}

// Start runs the reload loop until ctx is cancelled. Call Reload once before.
func (r *RateLimitReloader) Start(ctx context.Context) {
	var tick <-chan time.Time
	if r.interval > 0 {
		ticker := time.NewTicker(r.interval)
		defer ticker.Stop()
		tick = ticker.C
	}
	for {
		select {
		case <-ctx.Done():
			return
		case <-tick:
			r.Reload(ctx)
		case <-r.trigger:
			r.Reload(ctx)
		}
	}
}

// Reload reads the stored rates and swaps in new limiters. A missing default
// rate is seeded; a failing source falls back to the configured default.
func (r *RateLimitReloader) Reload(ctx context.Context) {
	rates, err := r.repo.List(ctx)
	if err != nil {
		r.log.Warn("failed_to_load_ratelimit_config_from_db_using_default",
			zap.Error(err),
			zap.String("default_rate", r.defaultRate),
		)
		rates = nil
	} else if _, ok := rates[database.DefaultRatelimitScope]; !ok {
		if err := r.repo.Set(ctx, &models.RatelimitConfig{ConfigKey: database.DefaultRatelimitScope, Rate: r.defaultRate}); err != nil {
			r.log.Error("failed_to_save_default_ratelimit_config",
				zap.Error(err),
				zap.String("default_rate", r.defaultRate),
			)
		}
	}

	defaultRate := r.defaultRate
	if stored, ok := rates[database.DefaultRatelimitScope]; ok && stored != "" {
		defaultRate = stored
	}
	fallback := r.limiterFor(database.DefaultRatelimitScope, defaultRate)
	if fallback == nil {
		fallback = r.limiterFor(database.DefaultRatelimitScope, r.defaultRate)
	}
	if fallback == nil {
		return
	}

	limits := &scopedLimits{fallback: fallback, byScope: make(map[string]*stdlibmw.Middleware)}
	for scope, rate := range rates {
		if scope == database.DefaultRatelimitScope {
			continue
		}
		if mw := r.limiterFor(scope, rate); mw != nil {
			limits.byScope[scope] = mw
		}
	}

	r.mu.Lock()
	r.current = limits
	r.mu.Unlock()
	r.log.Debug("ratelimit_config_loaded",
		zap.String("default_rate", defaultRate),
		zap.Int("resource_scopes", len(limits.byScope)),
	)
}

// limiterFor builds the limiter of one scope, or returns nil when rate does not parse.
// Keys are prefixed with the scope so resources never share counters.
func (r *RateLimitReloader) limiterFor(scope, rate string) *stdlibmw.Middleware {
	parsed, err := limiter.NewRateFromFormatted(rate)
	if err != nil {
		r.log.Error("failed_to_parse_rate_limit",
			zap.Error(err),
			zap.String("scope", scope),
			zap.String("rate_str", rate),
		)
		return nil
	}
	instance := limiter.New(r.store, parsed)
	keyGetter := func(req *http.Request) string {
		return scope + ":" + request.ClientIP(req)
	}
	return stdlibmw.NewMiddleware(instance,
		stdlibmw.WithKeyGetter(keyGetter),
		stdlibmw.WithLimitReachedHandler(limitReached),
	)
}

func limitReached(w http.ResponseWriter, r *http.Request) {
	WriteError(w, r, http.StatusTooManyRequests, "Rate limit exceeded", nil)
}
