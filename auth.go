package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

type userIDContextKey string

const userIDKey userIDContextKey = "userID"

func userIDFromContext(ctx context.Context) (int, bool) {
	id, ok := ctx.Value(userIDKey).(int)
	return id, ok
}

type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func decodeCredentials(r *http.Request) (credentialsRequest, string) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return req, "invalid_json"
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	req.Password = strings.TrimSpace(req.Password)
	if req.Email == "" || req.Password == "" {
		return req, "missing_fields"
	}
	return req, ""
}

func (s *server) registerHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		req, code := decodeCredentials(r)
		if code != "" {
			writeError(w, http.StatusBadRequest, code)
			return
		}

		hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
		if err != nil {
			s.log.WithError(err).Error("hash password", nil)
			writeError(w, http.StatusInternalServerError, "hash_error")
			return
		}

		id, err := s.store.CreateUser(r.Context(), req.Email, string(hash))
		if errors.Is(err, ErrEmailExists) {
			writeError(w, http.StatusConflict, "email_exists")
			return
		}
		if err != nil {
			s.log.WithError(err).Error("register user", nil)
			writeError(w, http.StatusInternalServerError, "register_error")
			return
		}

		token, err := s.issueToken(id)
		if err != nil {
			s.log.WithError(err).Error("sign token", map[string]interface{}{"user_id": id})
			writeError(w, http.StatusInternalServerError, "token_generation_error")
			return
		}
		writeJSON(w, http.StatusCreated, map[string]interface{}{"token": token, "id": id})
	}
}

func (s *server) loginHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		req, code := decodeCredentials(r)
		if code != "" {
			writeError(w, http.StatusBadRequest, code)
			return
		}

		id, hash, err := s.store.Credentials(r.Context(), req.Email)
		if errors.Is(err, ErrUserNotFound) {
			writeError(w, http.StatusUnauthorized, "invalid_credentials")
			return
		}
		if err != nil {
			s.log.WithError(err).Error("query credentials", nil)
			writeError(w, http.StatusInternalServerError, "db_error")
			return
		}
		if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(req.Password)); err != nil {
			writeError(w, http.StatusUnauthorized, "invalid_credentials")
			return
		}

		token, err := s.issueToken(id)
		if err != nil {
			s.log.WithError(err).Error("sign token", map[string]interface{}{"user_id": id})
			writeError(w, http.StatusInternalServerError, "token_generation_error")
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{"token": token, "id": id})
	}
}

func (s *server) issueToken(userID int) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id": userID,
		"exp":     s.now().Add(s.cfg.Auth.TokenTTL).Unix(),
	})
	return token.SignedString(s.jwtSecret)
}

// parseToken validates an HS256 token and returns its user id.
func (s *server) parseToken(tokenStr string) (int, error) {
	token, err := jwt.Parse(tokenStr, func(token *jwt.Token) (interface{}, error) {
		return s.jwtSecret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	if err != nil {
		return 0, err
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return 0, errors.New("invalid token claims")
	}
	userID, ok := claims["user_id"].(float64)
	if !ok || userID <= 0 {
		return 0, fmt.Errorf("invalid user id in token")
	}
	return int(userID), nil
}

func bearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if !strings.HasPrefix(h, "Bearer ") {
		return ""
	}
	return strings.TrimPrefix(h, "Bearer ")
}

func (s *server) authenticate(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tokenStr := bearerToken(r)
		if tokenStr == "" {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		userID, err := s.parseToken(tokenStr)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "invalid_token")
			return
		}
		next(w, r.WithContext(context.WithValue(r.Context(), userIDKey, userID)))
	}
}
