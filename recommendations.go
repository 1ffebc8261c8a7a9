package main

import (
	"errors"
	"net/http"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/mithaq/backend/matching"
)

const maxRecommendations = 50

// RecommendationResult is one ranked candidate.
type RecommendationResult struct {
	UserID  int                     `json:"user_id"`
	Score   int                     `json:"score"`
	Factors []matching.FactorResult `json:"factors"`
	Online  bool                    `json:"online"`
}

func oppositeGender(g string) string {
	switch g {
	case matching.GenderMale:
		return matching.GenderFemale
	case matching.GenderFemale:
		return matching.GenderMale
	}
	return ""
}

// recommendationsHandler ranks complete opposite-gender profiles against the
// caller's. Callers below the completion threshold get 403 with their
// completion details so the client can prompt for the missing fields.
func (s *server) recommendationsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		defer func() { recommendationDuration.Observe(time.Since(start).Seconds()) }()

		ctx := r.Context()
		me, _ := userIDFromContext(ctx)
		log := s.log.WithFields(map[string]interface{}{"user_id": me})
		loader := s.loaders(ctx).ProfileLoader

		// Generations are read before any profile is loaded.
		st := s.cacheStamp(ctx, me)
		mine, err := loader.Load(ctx, me)()
		if err != nil && !errors.Is(err, ErrProfileNotFound) {
			log.WithError(err).Error("load own profile", nil)
			writeError(w, http.StatusInternalServerError, "db_error")
			return
		}
		if !matching.IsProfileComplete(mine, s.cfg.Matching.CompletionThreshold) {
			writeJSON(w, http.StatusForbidden, map[string]interface{}{
				"error":      "incomplete_profile",
				"completion": s.completionDetails(mine),
			})
			return
		}

		ids, err := s.store.CandidateIDs(ctx, me, oppositeGender(mine.Gender()), s.cfg.Matching.CandidatePool)
		if err != nil {
			log.WithError(err).Error("list candidates", nil)
			writeError(w, http.StatusInternalServerError, "db_error")
			return
		}

		st = st.merge(s.cacheStamp(ctx, ids...))
		candidates, errs := loader.LoadMany(ctx, ids)()
		results := make([]*RecommendationResult, len(ids))

		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(s.cfg.Matching.Workers)
		for i, id := range ids {
			if len(errs) > i && errs[i] != nil {
				log.WithError(errs[i]).Debug("skip candidate", map[string]interface{}{"candidate": id})
				continue
			}
			g.Go(func() error {
				if err := gctx.Err(); err != nil {
					return err
				}
				c := s.compatibility(gctx, me, id, st, mine, candidates[i])
				results[i] = &RecommendationResult{UserID: id, Score: c.Score, Factors: c.Factors}
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			log.WithError(err).Warn("recommendations cancelled", nil)
			writeError(w, http.StatusServiceUnavailable, "cancelled")
			return
		}

		ranked := make([]RecommendationResult, 0, len(results))
		for _, res := range results {
			if res != nil {
				ranked = append(ranked, *res)
			}
		}
		sort.SliceStable(ranked, func(i, j int) bool {
			return ranked[i].Score > ranked[j].Score
		})
		if limit := queryInt(r, "limit", s.cfg.Matching.RecommendationLimit, maxRecommendations); len(ranked) > limit {
			ranked = ranked[:limit]
		}
		for i := range ranked {
			ranked[i].Online = s.hub.online(ranked[i].UserID)
		}

		writeJSON(w, http.StatusOK, map[string]interface{}{
			"recommendations": ranked,
			"count":           len(ranked),
		})
	}
}
