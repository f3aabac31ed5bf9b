package router

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/dgraph-io/ristretto/v2"
)

// CachedClassifier memoizes classifier output per normalized question.
// Failures are never cached.
type CachedClassifier struct {
	inner Classifier
	cache *ristretto.Cache[string, map[string]float64]
	ttl   time.Duration
}

// NewCachedClassifier wraps inner with a TTL cache bounded by maxCost bytes.
func NewCachedClassifier(inner Classifier, maxCost int64, ttl time.Duration) (*CachedClassifier, error) {
	if maxCost <= 0 {
		maxCost = 1 << 20
	}
	c, err := ristretto.NewCache(&ristretto.Config[string, map[string]float64]{
		NumCounters: maxCost / 100 * 10,
		MaxCost:     maxCost,
		BufferItems: 64,
	})
	if err != nil {
		return nil, fmt.Errorf("create classifier cache: %w", err)
	}
	return &CachedClassifier{inner: inner, cache: c, ttl: ttl}, nil
}

// Classify returns a cached mapping when available.
func (c *CachedClassifier) Classify(ctx context.Context, question string) (map[string]float64, error) {
	key := cacheKey(question)
	if scores, ok := c.cache.Get(key); ok {
		return copyScores(scores), nil
	}

	scores, err := c.inner.Classify(ctx, question)
	if err != nil {
		return nil, err
	}

	c.cache.SetWithTTL(key, copyScores(scores), scoreCost(key, scores), c.ttl)
	c.cache.Wait()
	return scores, nil
}

// Close releases the cache's background goroutines.
func (c *CachedClassifier) Close() {
	c.cache.Close()
}

func cacheKey(question string) string {
	return strings.ToLower(strings.Join(strings.Fields(question), " "))
}

func scoreCost(key string, scores map[string]float64) int64 {
	cost := int64(len(key))
	for name := range scores {
		cost += int64(len(name)) + 8
	}
	return cost
}

func copyScores(in map[string]float64) map[string]float64 {
	out := make(map[string]float64, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
