package main

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/mithaq/backend/matching"
)

// server carries the dependencies every handler shares.
type server struct {
	cfg       *Config
	store     *profileStore
	cache     *compatCache
	scorer    *matching.Scorer
	filter    *matching.Filter
	schema    *profileValidator
	hub       *Hub
	log       Logger
	jwtSecret []byte
	now       func() time.Time
	newID     func() uuid.UUID
}

func newServer(cfg *Config, store *profileStore, rdb *redis.Client, log Logger) (*server, error) {
	scorer, err := matching.NewScorer(cfg.Matching.Weights)
	if err != nil {
		return nil, err
	}
	validator, err := newProfileValidator()
	if err != nil {
		return nil, err
	}
	s := &server{
		cfg:       cfg,
		store:     store,
		cache:     newCompatCache(rdb, cfg.Redis.CacheTTL),
		scorer:    scorer,
		filter:    matching.NewFilter(cfg.Moderation.Words),
		schema:    validator,
		log:       log,
		jwtSecret: []byte(cfg.Auth.JWTSecret),
		now:       time.Now,
		newID:     uuid.New,
	}
	s.hub = newHub(s)
	return s, nil
}

func (s *server) routes() http.Handler {
	mux := http.NewServeMux()

	mux.Handle("POST /register", s.registerHandler())
	mux.Handle("POST /login", s.loginHandler())

	mux.Handle("GET /me/profile", s.authenticate(s.getProfileHandler()))
	mux.Handle("PUT /me/profile", s.authenticate(s.putProfileHandler()))
	mux.Handle("GET /me/profile/completeness", s.authenticate(s.completenessHandler()))

	mux.Handle("GET /compatibility/{id}", s.authenticate(s.compatibilityHandler()))
	mux.Handle("GET /compatibility/{id}/details", s.authenticate(s.compatibilityDetailsHandler()))
	mux.Handle("GET /recommendations", s.authenticate(s.recommendationsHandler()))

	mux.Handle("POST /moderation/check", s.authenticate(s.moderationCheckHandler()))

	mux.Handle("GET /ws/chat", s.wsChatHandler())

	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	mux.Handle("GET /metrics", promhttp.Handler())

	return withCORS(s.cfg.Server.AllowedOrigins)(DataLoaderMiddleware(s.store)(mux))
}
