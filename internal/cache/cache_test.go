package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeBaselineCache is an in-memory BaselineVolumeCache double, mirroring
// the adapter fakes in internal/adapters/mock — used so the tests in
// this package don't need a live redis instance.
type fakeBaselineCache struct {
	values map[string]float64
}

func newFakeBaselineCache() *fakeBaselineCache {
	return &fakeBaselineCache{values: make(map[string]float64)}
}

func (f *fakeBaselineCache) Get(_ context.Context, symbol string) (float64, bool, error) {
	v, ok := f.values[symbol]
	return v, ok, nil
}

func (f *fakeBaselineCache) Set(_ context.Context, symbol string, baseline float64, _ time.Duration) error {
	f.values[symbol] = baseline
	return nil
}

func TestFakeBaselineCache_MissThenHit(t *testing.T) {
	c := newFakeBaselineCache()
	ctx := context.Background()

	_, ok, err := c.Get(ctx, "AAPL")
	require.NoError(t, err)
	assert.False(t, ok, "expected miss before any Set")

	require.NoError(t, c.Set(ctx, "AAPL", 123456.0, time.Hour))

	v, ok, err := c.Get(ctx, "AAPL")
	require.NoError(t, err)
	assert.True(t, ok, "expected hit after Set")
	assert.Equal(t, 123456.0, v)
}

func TestRedisBaselineCache_KeyPrefix(t *testing.T) {
	c := NewRedisBaselineCache(nil, "")
	assert.Equal(t, "premarket:baseline:AAPL", c.key("AAPL"))

	c2 := NewRedisBaselineCache(nil, "custom:")
	assert.Equal(t, "custom:AAPL", c2.key("AAPL"))
}
