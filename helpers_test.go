package main

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/mithaq/backend/matching"
)

var fixedReportID = uuid.MustParse("6f1c2d3e-4b5a-4c6d-8e7f-901234567890")

type testEnv struct {
	srv  *server
	mock sqlmock.Sqlmock
	mr   *miniredis.Miniredis
	h    http.Handler
}

func testConfig() *Config {
	cfg := &Config{
		App:    AppConfig{Name: "mithaq", Environment: "test"},
		Server: ServerConfig{AllowedOrigins: []string{"http://localhost:5173"}},
		Auth:   AuthConfig{JWTSecret: "test-secret-key-for-testing"},
		Matching: MatchingConfig{
			Weights: matching.DefaultWeights(),
			Workers: 4,
		},
	}
	applyDefaults(cfg)
	return cfg
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })

	cfg := testConfig()
	srv, err := newServer(cfg, newProfileStore(db, cfg.Matching.CompletionThreshold), rdb, NewTestLogger(t))
	require.NoError(t, err)
	srv.newID = func() uuid.UUID { return fixedReportID }

	return &testEnv{srv: srv, mock: mock, mr: mr, h: srv.routes()}
}

// do sends a request through the full router. userID > 0 attaches a token.
func (e *testEnv) do(t *testing.T, method, path string, body any, userID int) *httptest.ResponseRecorder {
	t.Helper()

	var rdr io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		rdr = bytes.NewBufferString(b)
	case []byte:
		rdr = bytes.NewReader(b)
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		rdr = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, rdr)
	req.Header.Set("Content-Type", "application/json")
	if userID > 0 {
		token, err := e.srv.issueToken(userID)
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.h.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), v), rec.Body.String())
}

// fullProfile has every field filled for gender.
func fullProfile(gender string) *matching.Profile {
	name := "Omar"
	if gender == matching.GenderFemale {
		name = "Aisha"
	}
	return &matching.Profile{
		BasicInfo:     &matching.BasicInfo{Name: matching.String(name), Age: matching.Int(28), Gender: matching.String(gender)},
		Location:      &matching.Location{City: matching.String("Riyadh"), State: matching.String("Riyadh"), Country: matching.String("SA")},
		Education:     &matching.Education{Level: matching.String("bachelor")},
		Professional:  &matching.Professional{Occupation: matching.String("engineer"), CurrentJob: matching.String("Aramco")},
		ReligiousInfo: &matching.ReligiousInfo{ReligiousLevel: matching.String("practicing")},
		Preferences:   &matching.Preferences{MarriageType: matching.String("first_wife"), Children: matching.String("yes")},
		PersonalInfo: &matching.PersonalInfo{
			About:     matching.String("Calm and family oriented"),
			HasBeard:  matching.Bool(true),
			WearHijab: matching.Bool(true),
		},
		FinancialInfo: &matching.FinancialInfo{Situation: matching.String("stable")},
		GuardianInfo:  &matching.GuardianInfo{Name: matching.String("Ibrahim"), Phone: matching.String("+966500000000")},
	}
}

func profileJSON(t *testing.T, p *matching.Profile) []byte {
	t.Helper()
	raw, err := json.Marshal(p)
	require.NoError(t, err)
	return raw
}

func profileRows(t *testing.T, profiles map[int]*matching.Profile, order ...int) *sqlmock.Rows {
	t.Helper()
	rows := sqlmock.NewRows([]string{"user_id", "data"})
	for _, id := range order {
		rows.AddRow(id, profileJSON(t, profiles[id]))
	}
	return rows
}
