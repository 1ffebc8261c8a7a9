package main

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/mithaq/backend/matching"
)

type moderationCheckRequest struct {
	Type    string          `json:"type"`
	Content json.RawMessage `json:"content"`
}

// moderationCheckHandler runs an ad-hoc moderation report. Reports that need
// review are queued and their id returned.
func (s *server) moderationCheckHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		userID, _ := userIDFromContext(ctx)

		var req moderationCheckRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_json")
			return
		}
		if req.Type == "" || len(req.Content) == 0 {
			writeError(w, http.StatusBadRequest, "missing_fields")
			return
		}

		var content any = req.Content
		if req.Type != matching.ContentTypeProfile {
			var decoded any
			if err := json.Unmarshal(req.Content, &decoded); err != nil {
				writeError(w, http.StatusBadRequest, "invalid_json")
				return
			}
			content = decoded
		}

		report, err := s.filter.Report(content, req.Type)
		if errors.Is(err, matching.ErrInvalidContent) {
			writeError(w, http.StatusBadRequest, "invalid_content")
			return
		}
		if err != nil {
			s.log.WithError(err).Error("moderation report", map[string]interface{}{"user_id": userID})
			writeError(w, http.StatusInternalServerError, "moderation_error")
			return
		}
		moderationChecks.WithLabelValues(report.ContentType, moderationOutcome(report.IsAppropriate)).Inc()

		resp := map[string]interface{}{"report": report}
		if report.NeedsReview {
			id := s.newID()
			if err := s.store.SaveModerationReport(ctx, id, userID, report); err != nil {
				s.log.WithError(err).Error("queue moderation report", map[string]interface{}{"user_id": userID})
				writeError(w, http.StatusInternalServerError, "db_error")
				return
			}
			resp["id"] = id.String()
		}
		writeJSON(w, http.StatusOK, resp)
	}
}
