package nutrition

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/q950417/smart-diet-bot-clean/internal/cache"
	"github.com/q950417/smart-diet-bot-clean/internal/metrics"
)

// minLabelConfidence is the floor below which an image label is discarded
// without consulting the cache or the estimator.
const minLabelConfidence = 0.30

// defaultNegativeTTL bounds how long an unresolvable name is remembered so
// repeated identical queries do not hammer the estimator.
const defaultNegativeTTL = 15 * time.Minute

// Estimator resolves a food name through a remote nutrition service.
type Estimator interface {
	Estimate(ctx context.Context, name string) (Record, error)
}

// Labeler turns an image into a candidate food name with a confidence score.
type Labeler interface {
	Label(ctx context.Context, image []byte) (string, float64, error)
}

// CacheStore is the durable nutrition cache the resolver consults first.
type CacheStore interface {
	Lookup(name string) (Record, bool)
	Append(rec Record) error
}

// Resolver turns an ambiguous query into a nutrition record: local cache
// first, remote estimation on miss, successful remote results written back.
// Every failure mode degrades to "unresolved"; nothing escapes as a hard
// failure.
type Resolver struct {
	store     CacheStore
	estimator Estimator
	labeler   Labeler
	negative  *cache.Redis
	negTTL    time.Duration
	metrics   *metrics.Metrics
	logger    *slog.Logger
}

// NewResolver wires the resolution pipeline. labeler and negative may be nil;
// image queries then resolve to nothing and negative caching is skipped.
func NewResolver(store CacheStore, estimator Estimator, labeler Labeler, negative *cache.Redis, m *metrics.Metrics, logger *slog.Logger) *Resolver {
	return &Resolver{
		store:     store,
		estimator: estimator,
		labeler:   labeler,
		negative:  negative,
		negTTL:    defaultNegativeTTL,
		metrics:   m,
		logger:    logger.With("component", "resolver"),
	}
}

// Resolve runs the tiered resolution for one query. The second return value
// reports whether a complete record was found. No retries: a single
// estimator failure is terminal for this query.
func (r *Resolver) Resolve(ctx context.Context, q Query) (Record, bool) {
	name := strings.TrimSpace(q.Text)

	if len(q.Image) > 0 {
		label, ok := r.labelImage(ctx, q.Image)
		if !ok {
			return Record{}, false
		}
		name = label
	}

	if Normalize(name) == "" {
		r.metrics.Resolutions.WithLabelValues("empty_query").Inc()
		return Record{}, false
	}

	if rec, ok := r.store.Lookup(name); ok {
		r.metrics.CacheLookups.WithLabelValues("hit").Inc()
		r.metrics.Resolutions.WithLabelValues("cache_hit").Inc()
		return rec, true
	}
	r.metrics.CacheLookups.WithLabelValues("miss").Inc()

	if r.recentlyUnresolved(ctx, name) {
		r.metrics.Resolutions.WithLabelValues("negative_cache").Inc()
		return Record{}, false
	}

	rec, err := r.estimator.Estimate(ctx, name)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			r.logger.Debug("no nutrition data upstream", "name", name)
			r.metrics.Resolutions.WithLabelValues("not_found").Inc()
		} else {
			r.logger.Warn("nutrition estimation failed", "error", err, "name", name)
			r.metrics.Resolutions.WithLabelValues("transient_error").Inc()
		}
		r.markUnresolved(ctx, name)
		return Record{}, false
	}

	if err := r.store.Append(rec); err != nil {
		// Cache growth is best-effort; the record still goes to the caller.
		r.logger.Warn("cache write-back failed", "error", err, "name", rec.Name)
		r.metrics.Errors.WithLabelValues("cache_append").Inc()
	}
	r.metrics.Resolutions.WithLabelValues("estimated").Inc()
	return rec, true
}

func (r *Resolver) labelImage(ctx context.Context, image []byte) (string, bool) {
	if r.labeler == nil {
		r.metrics.Resolutions.WithLabelValues("no_labeler").Inc()
		return "", false
	}
	label, confidence, err := r.labeler.Label(ctx, image)
	if err != nil {
		r.logger.Warn("image labeling failed", "error", err)
		r.metrics.Resolutions.WithLabelValues("label_error").Inc()
		return "", false
	}
	if confidence < minLabelConfidence {
		r.logger.Debug("image label below confidence threshold", "label", label, "confidence", confidence)
		r.metrics.Resolutions.WithLabelValues("low_confidence").Inc()
		return "", false
	}
	return label, true
}

func (r *Resolver) recentlyUnresolved(ctx context.Context, name string) bool {
	if r.negative == nil {
		return false
	}
	var seen bool
	ok, err := r.negative.GetJSON(ctx, negativeKey(name), &seen)
	if err != nil {
		r.logger.Warn("negative cache read failed", "error", err)
		return false
	}
	return ok && seen
}

func (r *Resolver) markUnresolved(ctx context.Context, name string) {
	if r.negative == nil {
		return
	}
	if err := r.negative.SetJSON(ctx, negativeKey(name), true, r.negTTL); err != nil {
		r.logger.Warn("negative cache write failed", "error", err)
	}
}

func negativeKey(name string) string {
	return "nores:" + Normalize(name)
}
