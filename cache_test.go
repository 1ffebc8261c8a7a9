package main

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mithaq/backend/matching"
)

func newTestCache(t *testing.T) (*compatCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	return newCompatCache(rdb, time.Minute), mr
}

func sampleCompatibility(score int) matching.Compatibility {
	return matching.Compatibility{
		Score: score,
		Factors: []matching.FactorResult{
			{Factor: matching.FactorAge, Match: true, Weight: 20},
		},
	}
}

func stampOf(t *testing.T, c *compatCache, ids ...int) cacheStamp {
	t.Helper()
	st, err := c.Stamp(context.Background(), ids...)
	require.NoError(t, err)
	return st
}

// firstKey is the key of (a, b) before either user has been updated.
func firstKey(a, b int) string {
	key, _ := compatKey(a, b, cacheStamp{a: 0, b: 0})
	return key
}

func TestCompatCache_MissThenHit(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()
	st := stampOf(t, c, 1, 2)
	assert.Equal(t, cacheStamp{1: 0, 2: 0}, st)

	got, err := c.Get(ctx, 1, 2, st)
	require.NoError(t, err)
	assert.Nil(t, got)

	require.NoError(t, c.Set(ctx, 1, 2, st, sampleCompatibility(64)))

	got, err = c.Get(ctx, 1, 2, st)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, sampleCompatibility(64), *got)

	// Direction matters.
	got, err = c.Get(ctx, 2, 1, st)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestCompatCache_InvalidateRetiresBothDirections(t *testing.T) {
	c, mr := newTestCache(t)
	ctx := context.Background()
	st := stampOf(t, c, 1, 2, 3)

	require.NoError(t, c.Set(ctx, 1, 2, st, sampleCompatibility(10)))
	require.NoError(t, c.Set(ctx, 3, 1, st, sampleCompatibility(20)))
	require.NoError(t, c.Set(ctx, 2, 3, st, sampleCompatibility(30)))

	require.NoError(t, c.Invalidate(ctx, 1))

	gen, err := mr.Get(compatGenKey(1))
	require.NoError(t, err)
	assert.Equal(t, "1", gen)
	assert.Equal(t, 2*time.Minute, mr.TTL(compatGenKey(1)))

	fresh := stampOf(t, c, 1, 2, 3)
	assert.Equal(t, cacheStamp{1: 1, 2: 0, 3: 0}, fresh)

	tests := []struct {
		name string
		a, b int
		want int // 0 is a miss
	}{
		{"forward", 1, 2, 0},
		{"reverse", 3, 1, 0},
		{"unrelated pair", 2, 3, 30},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := c.Get(ctx, tt.a, tt.b, fresh)
			require.NoError(t, err)
			if tt.want == 0 {
				assert.Nil(t, got)
				return
			}
			require.NotNil(t, got)
			assert.Equal(t, tt.want, got.Score)
		})
	}
}

func TestCompatCache_WriteFromBeforeUpdateIsNeverServed(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()

	// A reader stamps, loads the old profile, and is slow to write back
	// while the profile is updated.
	before := stampOf(t, c, 7, 9)
	require.NoError(t, c.Invalidate(ctx, 9))
	require.NoError(t, c.Set(ctx, 7, 9, before, sampleCompatibility(12)))

	got, err := c.Get(ctx, 7, 9, stampOf(t, c, 7, 9))
	require.NoError(t, err)
	assert.Nil(t, got)

	// Results computed after the update are cached normally.
	after := stampOf(t, c, 7, 9)
	require.NoError(t, c.Set(ctx, 7, 9, after, sampleCompatibility(88)))
	got, err = c.Get(ctx, 7, 9, stampOf(t, c, 7, 9))
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, 88, got.Score)
}

func TestCompatCache_IncompleteStampSkipsCache(t *testing.T) {
	c, mr := newTestCache(t)
	ctx := context.Background()

	tests := []struct {
		name string
		st   cacheStamp
	}{
		{"nil stamp", nil},
		{"missing user", cacheStamp{1: 0}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.NoError(t, c.Set(ctx, 1, 2, tt.st, sampleCompatibility(5)))
			got, err := c.Get(ctx, 1, 2, tt.st)
			require.NoError(t, err)
			assert.Nil(t, got)
			assert.Empty(t, mr.Keys())
		})
	}
}

func TestCacheStamp_Merge(t *testing.T) {
	tests := []struct {
		name string
		a, b cacheStamp
		want cacheStamp
	}{
		{"both", cacheStamp{1: 2}, cacheStamp{3: 4}, cacheStamp{1: 2, 3: 4}},
		{"left nil", nil, cacheStamp{3: 4}, nil},
		{"right nil", cacheStamp{1: 2}, nil, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.a.merge(tt.b))
		})
	}
}

func TestCompatCache_InvalidateUnknownUser(t *testing.T) {
	c, _ := newTestCache(t)
	assert.NoError(t, c.Invalidate(context.Background(), 99))
}

func TestCompatCache_Expires(t *testing.T) {
	c, mr := newTestCache(t)
	ctx := context.Background()
	st := stampOf(t, c, 1, 2)
	require.NoError(t, c.Set(ctx, 1, 2, st, sampleCompatibility(50)))

	mr.FastForward(2 * time.Minute)

	got, err := c.Get(ctx, 1, 2, st)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestCompatCache_CorruptEntry(t *testing.T) {
	c, mr := newTestCache(t)
	st := cacheStamp{1: 0, 2: 0}
	key, _ := compatKey(1, 2, st)
	require.NoError(t, mr.Set(key, "{not json"))

	_, err := c.Get(context.Background(), 1, 2, st)
	assert.ErrorContains(t, err, "cache decode")
}

func TestCompatCache_CorruptGeneration(t *testing.T) {
	c, mr := newTestCache(t)
	require.NoError(t, mr.Set(compatGenKey(4), "x"))

	_, err := c.Stamp(context.Background(), 4)
	assert.ErrorContains(t, err, "cache stamp compat:gen:4")
}

func TestCompatCache_UnreachableServer(t *testing.T) {
	c, mr := newTestCache(t)
	mr.Close()
	ctx := context.Background()

	_, err := c.Stamp(ctx, 1, 2)
	assert.Error(t, err)
	_, err = c.Get(ctx, 1, 2, cacheStamp{1: 0, 2: 0})
	assert.Error(t, err)
}

func TestCompatCache_NilIsDisabled(t *testing.T) {
	var c *compatCache
	ctx := context.Background()

	st, err := c.Stamp(ctx, 1, 2)
	assert.NoError(t, err)
	assert.Nil(t, st)
	got, err := c.Get(ctx, 1, 2, st)
	assert.NoError(t, err)
	assert.Nil(t, got)
	assert.NoError(t, c.Set(ctx, 1, 2, st, sampleCompatibility(1)))
	assert.NoError(t, c.Invalidate(ctx, 1))
	assert.Nil(t, newCompatCache(nil, time.Minute))
}
