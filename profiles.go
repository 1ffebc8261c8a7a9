package main

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/mithaq/backend/matching"
)

const maxProfileBytes = 64 << 10

func (s *server) getProfileHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, _ := userIDFromContext(r.Context())

		p, err := s.store.GetProfile(r.Context(), userID)
		if errors.Is(err, ErrProfileNotFound) {
			writeError(w, http.StatusNotFound, "profile_not_found")
			return
		}
		if err != nil {
			s.log.WithError(err).Error("load profile", map[string]interface{}{"user_id": userID})
			writeError(w, http.StatusInternalServerError, "db_error")
			return
		}
		writeJSON(w, http.StatusOK, p)
	}
}

// putProfileHandler replaces the caller's profile. The document must pass
// the schema and the moderation filter before it is stored.
func (s *server) putProfileHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		userID, _ := userIDFromContext(ctx)
		log := s.log.WithFields(map[string]interface{}{"user_id": userID})

		body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxProfileBytes))
		if err != nil {
			writeError(w, http.StatusRequestEntityTooLarge, "payload_too_large")
			return
		}
		problems, err := s.schema.Validate(body)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_json")
			return
		}
		if len(problems) > 0 {
			writeJSON(w, http.StatusBadRequest, map[string]interface{}{
				"error":    "invalid_profile",
				"problems": problems,
			})
			return
		}

		var p matching.Profile
		if err := json.Unmarshal(body, &p); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_json")
			return
		}

		report, err := s.filter.Report(&p, matching.ContentTypeProfile)
		if err != nil {
			log.WithError(err).Error("moderate profile", nil)
			writeError(w, http.StatusInternalServerError, "moderation_error")
			return
		}
		moderationChecks.WithLabelValues(report.ContentType, moderationOutcome(report.IsAppropriate)).Inc()
		if !report.IsAppropriate {
			if err := s.store.SaveModerationReport(ctx, s.newID(), userID, report); err != nil {
				log.WithError(err).Warn("queue moderation report", nil)
			}
			writeJSON(w, http.StatusUnprocessableEntity, map[string]interface{}{
				"error":         "inappropriate_content",
				"flaggedFields": report.FlaggedFields,
			})
			return
		}

		if err := s.store.SaveProfile(ctx, userID, &p); err != nil {
			log.WithError(err).Error("save profile", nil)
			writeError(w, http.StatusInternalServerError, "db_error")
			return
		}
		if err := s.cache.Invalidate(ctx, userID); err != nil {
			log.WithError(err).Warn("invalidate compatibility cache", nil)
		}

		details := s.completionDetails(&p)
		completenessEvaluations.Observe(float64(details.Completeness))
		log.Info("profile saved", map[string]interface{}{"completeness": details.Completeness})

		writeJSON(w, http.StatusOK, map[string]interface{}{
			"profile":    &p,
			"completion": details,
		})
	}
}

func (s *server) completenessHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, _ := userIDFromContext(r.Context())

		p, err := s.store.GetProfile(r.Context(), userID)
		if err != nil && !errors.Is(err, ErrProfileNotFound) {
			s.log.WithError(err).Error("load profile", map[string]interface{}{"user_id": userID})
			writeError(w, http.StatusInternalServerError, "db_error")
			return
		}
		// No stored profile evaluates like an empty one.
		writeJSON(w, http.StatusOK, s.completionDetails(p))
	}
}

// completionDetails applies the configured threshold on top of the
// library's tiering.
func (s *server) completionDetails(p *matching.Profile) matching.CompletionDetails {
	d := matching.GetCompletionDetails(p)
	d.IsComplete = matching.IsProfileComplete(p, s.cfg.Matching.CompletionThreshold)
	return d
}
