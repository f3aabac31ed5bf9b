package router

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingClassifier struct {
	calls  int
	scores map[string]float64
	err    error
}

func (c *countingClassifier) Classify(context.Context, string) (map[string]float64, error) {
	c.calls++
	if c.err != nil {
		return nil, c.err
	}
	return copyScores(c.scores), nil
}

func TestCachedClassifierHits(t *testing.T) {
	inner := &countingClassifier{scores: map[string]float64{"conversation": 0.8}}
	cached, err := NewCachedClassifier(inner, 1<<20, time.Minute)
	require.NoError(t, err)
	defer cached.Close()

	first, err := cached.Classify(context.Background(), "Hello  there")
	require.NoError(t, err)
	first["conversation"] = 0

	second, err := cached.Classify(context.Background(), "hello there")
	require.NoError(t, err)
	assert.Equal(t, 0.8, second["conversation"])
	assert.Equal(t, 1, inner.calls)
}

func TestCachedClassifierSkipsFailures(t *testing.T) {
	inner := &countingClassifier{err: errors.New("down")}
	cached, err := NewCachedClassifier(inner, 0, time.Minute)
	require.NoError(t, err)
	defer cached.Close()

	_, err = cached.Classify(context.Background(), "q")
	require.Error(t, err)
	_, err = cached.Classify(context.Background(), "q")
	require.Error(t, err)
	assert.Equal(t, 2, inner.calls)
}
