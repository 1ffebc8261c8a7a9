package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/mithaq/backend/matching"
)

var (
	ErrProfileNotFound = errors.New("profile not found")
	ErrUserNotFound    = errors.New("user not found")
	ErrEmailExists     = errors.New("email already registered")
)

// pqUniqueViolation is the SQLSTATE for unique_violation.
const pqUniqueViolation = "23505"

// profileStore keeps one JSONB profile document per user, alongside the
// completeness figures recommendations filter on.
type profileStore struct {
	db        *sql.DB
	threshold int
}

func newProfileStore(db *sql.DB, threshold int) *profileStore {
	return &profileStore{db: db, threshold: threshold}
}

func (s *profileStore) CreateUser(ctx context.Context, email, passwordHash string) (int, error) {
	var id int
	err := s.db.QueryRowContext(ctx,
		"INSERT INTO users (email, password_hash) VALUES ($1, $2) RETURNING id",
		email, passwordHash,
	).Scan(&id)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == pqUniqueViolation {
			return 0, ErrEmailExists
		}
		return 0, fmt.Errorf("insert user: %w", err)
	}
	return id, nil
}

func (s *profileStore) Credentials(ctx context.Context, email string) (int, string, error) {
	var (
		id   int
		hash string
	)
	err := s.db.QueryRowContext(ctx,
		"SELECT id, password_hash FROM users WHERE email = $1", email,
	).Scan(&id, &hash)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, "", ErrUserNotFound
	}
	if err != nil {
		return 0, "", fmt.Errorf("query user: %w", err)
	}
	return id, hash, nil
}

func (s *profileStore) GetProfile(ctx context.Context, userID int) (*matching.Profile, error) {
	var raw []byte
	err := s.db.QueryRowContext(ctx,
		"SELECT data FROM profiles WHERE user_id = $1", userID,
	).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrProfileNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query profile: %w", err)
	}
	var p matching.Profile
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("decode profile %d: %w", userID, err)
	}
	return &p, nil
}

// execer is satisfied by both *sql.DB and *sql.Tx.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

const upsertProfileQuery = `
	INSERT INTO profiles (user_id, data, gender, completeness, is_complete, updated_at)
	VALUES ($1, $2, $3, $4, $5, NOW())
	ON CONFLICT (user_id) DO UPDATE SET
		data = EXCLUDED.data,
		gender = EXCLUDED.gender,
		completeness = EXCLUDED.completeness,
		is_complete = EXCLUDED.is_complete,
		updated_at = NOW()`

// SaveProfile upserts p and records its completeness.
func (s *profileStore) SaveProfile(ctx context.Context, userID int, p *matching.Profile) error {
	return s.saveProfile(ctx, s.db, userID, p)
}

// SaveProfileTx is SaveProfile as part of tx.
func (s *profileStore) SaveProfileTx(ctx context.Context, tx *sql.Tx, userID int, p *matching.Profile) error {
	return s.saveProfile(ctx, tx, userID, p)
}

func (s *profileStore) saveProfile(ctx context.Context, ex execer, userID int, p *matching.Profile) error {
	raw, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("encode profile: %w", err)
	}
	completeness := matching.CalculateCompleteness(p)

	_, err = ex.ExecContext(ctx, upsertProfileQuery,
		userID, raw, p.Gender(), completeness, completeness >= s.threshold)
	if err != nil {
		return fmt.Errorf("upsert profile for user %d: %w", userID, err)
	}
	return nil
}

// CandidateIDs lists complete profiles of the given gender other than
// userID, most recently updated first. An empty gender matches everyone.
func (s *profileStore) CandidateIDs(ctx context.Context, userID int, gender string, limit int) ([]int, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT user_id FROM profiles
		WHERE is_complete = TRUE
		  AND user_id <> $1
		  AND ($2 = '' OR gender = $2)
		ORDER BY updated_at DESC, user_id
		LIMIT $3
	`, userID, gender, limit)
	if err != nil {
		return nil, fmt.Errorf("query candidates: %w", err)
	}
	defer rows.Close()

	var ids []int
	for rows.Next() {
		var id int
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// LoadProfiles fetches many profiles in one round trip. Missing ids are
// absent from the result.
func (s *profileStore) LoadProfiles(ctx context.Context, ids []int) (map[int]*matching.Profile, error) {
	out := make(map[int]*matching.Profile, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	keys := make([]int64, len(ids))
	for i, id := range ids {
		keys[i] = int64(id)
	}

	rows, err := s.db.QueryContext(ctx,
		"SELECT user_id, data FROM profiles WHERE user_id = ANY($1)", pq.Array(keys))
	if err != nil {
		return nil, fmt.Errorf("query profiles: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			id  int
			raw []byte
		)
		if err := rows.Scan(&id, &raw); err != nil {
			return nil, err
		}
		var p matching.Profile
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, fmt.Errorf("decode profile %d: %w", id, err)
		}
		out[id] = &p
	}
	return out, rows.Err()
}

// SaveModerationReport queues r for review. userID 0 stores no owner.
func (s *profileStore) SaveModerationReport(ctx context.Context, id uuid.UUID, userID int, r matching.Report) error {
	flagged := r.FlaggedWords
	if r.ContentType == matching.ContentTypeProfile {
		flagged = r.FlaggedFields
	}
	if flagged == nil {
		flagged = []string{}
	}
	raw, err := json.Marshal(flagged)
	if err != nil {
		return err
	}
	owner := sql.NullInt64{Int64: int64(userID), Valid: userID != 0}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO moderation_reports
			(id, user_id, content_type, is_appropriate, moderation_score, flagged, needs_review, checked_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, id.String(), owner, r.ContentType, r.IsAppropriate, r.ModerationScore, raw, r.NeedsReview, r.CheckedAt)
	if err != nil {
		return fmt.Errorf("insert moderation report: %w", err)
	}
	return nil
}

// SaveMessage stores a delivered chat message.
func (s *profileStore) SaveMessage(ctx context.Context, from, to int, content string) (int64, time.Time, error) {
	var (
		id      int64
		created time.Time
	)
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO messages (sender_id, recipient_id, content)
		VALUES ($1, $2, $3)
		RETURNING id, created_at
	`, from, to, content).Scan(&id, &created)
	if err != nil {
		return 0, time.Time{}, fmt.Errorf("insert message: %w", err)
	}
	return id, created, nil
}
