package main

import (
	"context"
	"net/http"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mithaq/backend/matching"
)

const (
	selectProfileSQL = "SELECT data FROM profiles WHERE user_id"
	upsertProfileSQL = "INSERT INTO profiles (user_id, data, gender, completeness, is_complete, updated_at)"
	insertReportSQL  = "INSERT INTO moderation_reports"
)

func TestPutProfile_SavesAndInvalidatesCache(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	before := cacheStamp{7: 0, 9: 0}
	require.NoError(t, env.srv.cache.Set(ctx, 7, 9, before, matching.Compatibility{Score: 55}))
	require.NoError(t, env.srv.cache.Set(ctx, 9, 7, before, matching.Compatibility{Score: 55}))

	env.mock.ExpectExec(regexp.QuoteMeta(upsertProfileSQL)).
		WithArgs(7, sqlmock.AnyArg(), matching.GenderMale, 100, true).
		WillReturnResult(sqlmock.NewResult(0, 1))

	rec := env.do(t, http.MethodPut, "/me/profile", fullProfile(matching.GenderMale), 7)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var resp struct {
		Completion matching.CompletionDetails `json:"completion"`
	}
	decodeBody(t, rec, &resp)
	assert.Equal(t, 100, resp.Completion.Completeness)
	assert.Equal(t, matching.TierExcellent, resp.Completion.Tier)
	assert.True(t, resp.Completion.IsComplete)
	assert.Empty(t, resp.Completion.MissingFields)

	gen, err := env.mr.Get(compatGenKey(7))
	require.NoError(t, err)
	assert.Equal(t, "1", gen)
	after, err := env.srv.cache.Stamp(ctx, 7, 9)
	require.NoError(t, err)
	for _, pair := range [][2]int{{7, 9}, {9, 7}} {
		got, err := env.srv.cache.Get(ctx, pair[0], pair[1], after)
		require.NoError(t, err)
		assert.Nil(t, got, "pair %v", pair)
	}
	assert.NoError(t, env.mock.ExpectationsWereMet())
}

func TestPutProfile_PartialProfileStoredIncomplete(t *testing.T) {
	env := newTestEnv(t)
	p := fullProfile(matching.GenderFemale)
	p.GuardianInfo = nil
	p.PersonalInfo.WearHijab = nil
	p.Education = nil

	env.mock.ExpectExec(regexp.QuoteMeta(upsertProfileSQL)).
		WithArgs(9, sqlmock.AnyArg(), matching.GenderFemale, 67, false).
		WillReturnResult(sqlmock.NewResult(0, 1))

	rec := env.do(t, http.MethodPut, "/me/profile", p, 9)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var resp struct {
		Completion matching.CompletionDetails `json:"completion"`
	}
	decodeBody(t, rec, &resp)
	assert.Equal(t, 67, resp.Completion.Completeness)
	assert.False(t, resp.Completion.IsComplete)
	assert.Equal(t, []string{
		"education.level",
		"guardianInfo.name",
		"guardianInfo.phone",
		"personalInfo.wearHijab",
	}, resp.Completion.MissingFields)
	assert.NoError(t, env.mock.ExpectationsWereMet())
}

func TestPutProfile_NullFieldsReadAsAbsent(t *testing.T) {
	env := newTestEnv(t)
	body := `{
		"basicInfo": {"name": "Omar", "age": 28, "gender": "m"},
		"location": {"city": "Riyadh", "state": null, "country": "SA"},
		"education": {"level": "bachelor"},
		"professional": {"occupation": "engineer", "currentJob": null},
		"religiousInfo": {"religiousLevel": "practicing"},
		"preferences": null,
		"personalInfo": {"about": null, "marriageGoals": null, "hasBeard": true, "wearHijab": null},
		"financialInfo": null,
		"guardianInfo": null
	}`
	// 9 of 11 required fields.
	env.mock.ExpectExec(regexp.QuoteMeta(upsertProfileSQL)).
		WithArgs(7, sqlmock.AnyArg(), matching.GenderMale, 82, true).
		WillReturnResult(sqlmock.NewResult(0, 1))

	rec := env.do(t, http.MethodPut, "/me/profile", body, 7)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var resp struct {
		Profile    matching.Profile           `json:"profile"`
		Completion matching.CompletionDetails `json:"completion"`
	}
	decodeBody(t, rec, &resp)
	assert.Equal(t, 82, resp.Completion.Completeness)
	assert.Equal(t, []string{"personalInfo.about", "financialInfo.situation"}, resp.Completion.MissingFields)
	require.NotNil(t, resp.Profile.PersonalInfo)
	assert.Nil(t, resp.Profile.PersonalInfo.About)
	assert.Nil(t, resp.Profile.FinancialInfo)
	assert.Nil(t, resp.Profile.Preferences)
	assert.NoError(t, env.mock.ExpectationsWereMet())
}

func TestPutProfile_RejectsInvalidDocuments(t *testing.T) {
	tests := []struct {
		name string
		body string
		code string
	}{
		{"not json", `{"basicInfo":`, "invalid_json"},
		{"wrong type", `{"basicInfo":{"age":"thirty"}}`, "invalid_profile"},
		{"unknown section", `{"hobbies":{"list":["chess"]}}`, "invalid_profile"},
		{"unknown gender", `{"basicInfo":{"gender":"x"}}`, "invalid_profile"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			rec := env.do(t, http.MethodPut, "/me/profile", tt.body, 7)

			assert.Equal(t, http.StatusBadRequest, rec.Code)
			var resp map[string]any
			decodeBody(t, rec, &resp)
			assert.Equal(t, tt.code, resp["error"])
			assert.NoError(t, env.mock.ExpectationsWereMet())
		})
	}
}

func TestPutProfile_InappropriateContentIsReported(t *testing.T) {
	env := newTestEnv(t)
	p := fullProfile(matching.GenderMale)
	p.PersonalInfo.About = matching.String("I am not stupid")

	env.mock.ExpectExec(regexp.QuoteMeta(insertReportSQL)).
		WithArgs(fixedReportID.String(), 7, matching.ContentTypeProfile, false,
			sqlmock.AnyArg(), sqlmock.AnyArg(), true, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	rec := env.do(t, http.MethodPut, "/me/profile", p, 7)

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.JSONEq(t, `{"error":"inappropriate_content","flaggedFields":["about"]}`, rec.Body.String())
	assert.NoError(t, env.mock.ExpectationsWereMet())
}

func TestPutProfile_RequiresAuth(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, http.MethodPut, "/me/profile", fullProfile(matching.GenderMale), 0)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestGetProfile(t *testing.T) {
	t.Run("found", func(t *testing.T) {
		env := newTestEnv(t)
		env.mock.ExpectQuery(regexp.QuoteMeta(selectProfileSQL)).WithArgs(7).
			WillReturnRows(sqlmock.NewRows([]string{"data"}).AddRow(profileJSON(t, fullProfile(matching.GenderMale))))

		rec := env.do(t, http.MethodGet, "/me/profile", nil, 7)

		require.Equal(t, http.StatusOK, rec.Code)
		var p matching.Profile
		decodeBody(t, rec, &p)
		assert.Equal(t, matching.GenderMale, p.Gender())
	})

	t.Run("missing", func(t *testing.T) {
		env := newTestEnv(t)
		env.mock.ExpectQuery(regexp.QuoteMeta(selectProfileSQL)).WithArgs(7).
			WillReturnRows(sqlmock.NewRows([]string{"data"}))

		rec := env.do(t, http.MethodGet, "/me/profile", nil, 7)

		assert.Equal(t, http.StatusNotFound, rec.Code)
		assert.JSONEq(t, `{"error":"profile_not_found"}`, rec.Body.String())
	})
}

func TestCompletenessHandler(t *testing.T) {
	t.Run("male missing financial info", func(t *testing.T) {
		env := newTestEnv(t)
		p := fullProfile(matching.GenderMale)
		p.FinancialInfo = nil
		env.mock.ExpectQuery(regexp.QuoteMeta(selectProfileSQL)).WithArgs(7).
			WillReturnRows(sqlmock.NewRows([]string{"data"}).AddRow(profileJSON(t, p)))

		rec := env.do(t, http.MethodGet, "/me/profile/completeness", nil, 7)

		require.Equal(t, http.StatusOK, rec.Code)
		var d matching.CompletionDetails
		decodeBody(t, rec, &d)
		assert.Equal(t, 91, d.Completeness)
		assert.True(t, d.IsComplete)
		assert.Equal(t, matching.TierVeryGood, d.Tier)
		assert.Equal(t, []string{"financialInfo.situation"}, d.MissingFields)
	})

	t.Run("no profile yet", func(t *testing.T) {
		env := newTestEnv(t)
		env.mock.ExpectQuery(regexp.QuoteMeta(selectProfileSQL)).WithArgs(7).
			WillReturnRows(sqlmock.NewRows([]string{"data"}))

		rec := env.do(t, http.MethodGet, "/me/profile/completeness", nil, 7)

		require.Equal(t, http.StatusOK, rec.Code)
		var d matching.CompletionDetails
		decodeBody(t, rec, &d)
		assert.Zero(t, d.Completeness)
		assert.Equal(t, matching.TierIncomplete, d.Tier)
		assert.Len(t, d.MissingFields, 9)
	})
}
