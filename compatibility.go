package main

import (
	"context"
	"errors"
	"net/http"

	"github.com/mithaq/backend/matching"
)

// loaders returns the request's dataloaders, building fresh ones when the
// middleware did not run.
func (s *server) loaders(ctx context.Context) *DataLoaders {
	if dl := GetDataLoadersFromContext(ctx); dl != nil {
		return dl
	}
	return NewDataLoaders(s.store)
}

// cacheStamp reads the cache generations of ids. Failures are logged and
// turn caching off for the request.
func (s *server) cacheStamp(ctx context.Context, ids ...int) cacheStamp {
	st, err := s.cache.Stamp(ctx, ids...)
	if err != nil {
		s.log.WithError(err).Warn("compatibility cache stamp", map[string]interface{}{"users": ids})
		return nil
	}
	return st
}

// cachedCompatibility returns the cached result for (a, b), or nil. Cache
// failures are logged and treated as a miss.
func (s *server) cachedCompatibility(ctx context.Context, a, b int, st cacheStamp) *matching.Compatibility {
	cached, err := s.cache.Get(ctx, a, b, st)
	if err != nil {
		s.log.WithError(err).Warn("compatibility cache read", map[string]interface{}{"a": a, "b": b})
		return nil
	}
	if cached != nil {
		compatibilityComputed.WithLabelValues("cache").Inc()
	}
	return cached
}

// computeCompatibility scores the pair and stores the result under st,
// which must have been read before pa and pb were loaded.
func (s *server) computeCompatibility(ctx context.Context, a, b int, st cacheStamp, pa, pb *matching.Profile) matching.Compatibility {
	c := s.scorer.Calculate(pa, pb)
	compatibilityComputed.WithLabelValues("computed").Inc()
	compatibilityScore.Observe(float64(c.Score))

	if err := s.cache.Set(ctx, a, b, st, c); err != nil {
		s.log.WithError(err).Warn("compatibility cache write", map[string]interface{}{"a": a, "b": b})
	}
	return c
}

func (s *server) compatibility(ctx context.Context, a, b int, st cacheStamp, pa, pb *matching.Profile) matching.Compatibility {
	if c := s.cachedCompatibility(ctx, a, b, st); c != nil {
		return *c
	}
	return s.computeCompatibility(ctx, a, b, st, pa, pb)
}

// pairCompatibility scores the caller against the {id} path user, loading
// profiles only on a cache miss. It writes the error response itself and
// reports false on failure.
func (s *server) pairCompatibility(w http.ResponseWriter, r *http.Request) (matching.Compatibility, bool) {
	ctx := r.Context()
	me, _ := userIDFromContext(ctx)
	other, ok := pathID(r, "id")
	if !ok || other == me {
		writeError(w, http.StatusBadRequest, "invalid_user_id")
		return matching.Compatibility{}, false
	}

	st := s.cacheStamp(ctx, me, other)
	if c := s.cachedCompatibility(ctx, me, other, st); c != nil {
		return *c, true
	}

	profiles, errs := s.loaders(ctx).ProfileLoader.LoadMany(ctx, []int{me, other})()
	for i, err := range errs {
		if err == nil {
			continue
		}
		switch {
		case errors.Is(err, ErrProfileNotFound) && i == 0:
			writeError(w, http.StatusNotFound, "profile_not_found")
		case errors.Is(err, ErrProfileNotFound):
			writeError(w, http.StatusNotFound, "user_not_found")
		default:
			s.log.WithError(err).Error("load profiles", map[string]interface{}{"user_id": me, "other": other})
			writeError(w, http.StatusInternalServerError, "db_error")
		}
		return matching.Compatibility{}, false
	}

	return s.computeCompatibility(ctx, me, other, st, profiles[0], profiles[1]), true
}

func (s *server) compatibilityHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c, ok := s.pairCompatibility(w, r)
		if !ok {
			return
		}
		writeJSON(w, http.StatusOK, c)
	}
}

func (s *server) compatibilityDetailsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c, ok := s.pairCompatibility(w, r)
		if !ok {
			return
		}
		writeJSON(w, http.StatusOK, s.scorer.Regroup(c))
	}
}
