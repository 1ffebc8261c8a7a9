package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/crypto/bcrypt"

	"github.com/mithaq/backend/matching"
)

type seedOptions struct {
	Count      int
	Seed       int64
	Truncate   bool
	Password   string
	SparseRate float64 // share of profiles with fields left out
}

var seedOpts seedOptions

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Fill the database with deterministic sample users",
	Long: `Create sample users with profiles of both genders in one transaction.
The first two users are user1@test.local (male) and user2@test.local
(female), both with complete profiles.`,
	Args: cobra.NoArgs,
	RunE: runSeed,
}

func init() {
	f := seedCmd.Flags()
	f.IntVar(&seedOpts.Count, "count", 200, "number of users to create")
	f.Int64Var(&seedOpts.Seed, "seed", 42, "RNG seed")
	f.BoolVar(&seedOpts.Truncate, "truncate", false, "empty the tables first")
	f.StringVar(&seedOpts.Password, "password", "test1234", "password assigned to every user")
	f.Float64Var(&seedOpts.SparseRate, "sparse-rate", 0.3, "share of profiles with missing fields (0..1)")
	rootCmd.AddCommand(seedCmd)
}

func runSeed(cmd *cobra.Command, args []string) error {
	if seedOpts.Count < 1 {
		return errors.New("--count must be at least 1")
	}
	if seedOpts.SparseRate < 0 || seedOpts.SparseRate > 1 {
		return errors.New("--sparse-rate must be in range 0..1")
	}
	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	if cfg.Database.URL == "" {
		return errors.New("database.url is required")
	}
	log := NewStructured(cfg.Logging.Level, cfg.Logging.Format)

	ctx, cancel := context.WithTimeout(cmd.Context(), 5*time.Minute)
	defer cancel()

	db, err := openDB(ctx, cfg.Database)
	if err != nil {
		return err
	}
	defer db.Close()
	if err := migrate(ctx, db); err != nil {
		return err
	}

	n, err := seed(ctx, db, seedOpts, cfg.Matching.CompletionThreshold)
	if err != nil {
		return err
	}
	log.Info("seed complete", map[string]interface{}{"users": n})
	return nil
}

// seed inserts opts.Count users and profiles in one transaction and returns
// how many were written.
func seed(ctx context.Context, db *sql.DB, opts seedOptions, threshold int) (int, error) {
	r := rand.New(rand.NewSource(opts.Seed))

	hash, err := bcrypt.GenerateFromPassword([]byte(opts.Password), bcrypt.MinCost)
	if err != nil {
		return 0, fmt.Errorf("hash password: %w", err)
	}

	store := newProfileStore(db, threshold)
	count := 0
	err = withTx(ctx, db, func(tx *sql.Tx) error {
		if opts.Truncate {
			if _, err := tx.ExecContext(ctx,
				"TRUNCATE TABLE messages, moderation_reports, profiles, users RESTART IDENTITY CASCADE"); err != nil {
				return fmt.Errorf("truncate: %w", err)
			}
		}

		userStmt, err := tx.PrepareContext(ctx, `
			INSERT INTO users (email, password_hash) VALUES ($1, $2)
			ON CONFLICT (email) DO UPDATE SET password_hash = EXCLUDED.password_hash
			RETURNING id`)
		if err != nil {
			return err
		}
		defer userStmt.Close()

		for i := 0; i < opts.Count; i++ {
			email, gender := seedIdentity(i)
			var id int
			if err := userStmt.QueryRowContext(ctx, email, string(hash)).Scan(&id); err != nil {
				return fmt.Errorf("insert user %d (%s): %w", i, email, err)
			}

			sparse := i >= 2 && r.Float64() < opts.SparseRate
			if err := store.SaveProfileTx(ctx, tx, id, randomProfile(r, gender, sparse)); err != nil {
				return err
			}
			count++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return count, nil
}

// seedIdentity alternates genders so the first two users are one of each.
func seedIdentity(i int) (email, gender string) {
	gender = matching.GenderMale
	if i%2 == 1 {
		gender = matching.GenderFemale
	}
	return fmt.Sprintf("user%d@test.local", i+1), gender
}

var (
	seedMaleNames   = []string{"Omar", "Yusuf", "Khalid", "Ahmad", "Ibrahim", "Hamza", "Bilal", "Tariq"}
	seedFemaleNames = []string{"Aisha", "Maryam", "Fatima", "Khadija", "Huda", "Sara", "Noor", "Layla"}
	seedCities      = []struct{ city, state, country string }{
		{"Riyadh", "Riyadh", "SA"},
		{"Jeddah", "Makkah", "SA"},
		{"Taif", "Makkah", "SA"},
		{"Dammam", "Eastern", "SA"},
		{"Cairo", "Cairo", "EG"},
		{"Giza", "Giza", "EG"},
		{"Amman", "Amman", "JO"},
	}
	seedEducation     = []string{"high_school", "diploma", "bachelor", "master", "phd"}
	seedOccupations   = []string{"engineer", "teacher", "doctor", "accountant", "designer", "pharmacist", "student"}
	seedReligious     = []string{"practicing", "committed", "moderate"}
	seedMarriageTypes = []string{"first_wife", "second_wife", "any"}
	seedChildren      = []string{"yes", "no", "later"}
	seedFinance       = []string{"stable", "good", "excellent"}
	seedAbout         = []string{
		"Calm, family oriented and fond of reading.",
		"I enjoy travel, cooking and long walks.",
		"Looking for a kind partner to build a home with.",
		"Hafidh of Quran, working on a master degree.",
	}
)

func pick(r *rand.Rand, xs []string) *string {
	return matching.String(xs[r.Intn(len(xs))])
}

// randomProfile builds a full profile for gender. Sparse profiles drop a
// random subset of sections so completeness varies.
func randomProfile(r *rand.Rand, gender string, sparse bool) *matching.Profile {
	names := seedMaleNames
	if gender == matching.GenderFemale {
		names = seedFemaleNames
	}
	loc := seedCities[r.Intn(len(seedCities))]

	p := &matching.Profile{
		BasicInfo: &matching.BasicInfo{
			Name:   pick(r, names),
			Age:    matching.Int(20 + r.Intn(20)),
			Gender: matching.String(gender),
		},
		Location: &matching.Location{
			City:    matching.String(loc.city),
			State:   matching.String(loc.state),
			Country: matching.String(loc.country),
		},
		Education:     &matching.Education{Level: pick(r, seedEducation)},
		Professional:  &matching.Professional{Occupation: pick(r, seedOccupations)},
		ReligiousInfo: &matching.ReligiousInfo{ReligiousLevel: pick(r, seedReligious)},
		Preferences: &matching.Preferences{
			MarriageType: pick(r, seedMarriageTypes),
			Children:     pick(r, seedChildren),
		},
		PersonalInfo: &matching.PersonalInfo{
			About:         pick(r, seedAbout),
			MarriageGoals: matching.String("A stable, faithful home"),
		},
	}
	if r.Intn(3) > 0 {
		p.Professional.CurrentJob = matching.String(*p.Professional.Occupation)
	}

	switch gender {
	case matching.GenderMale:
		p.PersonalInfo.HasBeard = matching.Bool(r.Intn(2) == 0)
		p.FinancialInfo = &matching.FinancialInfo{Situation: pick(r, seedFinance)}
	case matching.GenderFemale:
		p.PersonalInfo.WearHijab = matching.Bool(r.Intn(4) > 0)
		p.GuardianInfo = &matching.GuardianInfo{
			Name:  pick(r, seedMaleNames),
			Phone: matching.String(fmt.Sprintf("+9665%08d", r.Intn(100000000))),
		}
	}

	if sparse {
		drops := []func(){
			func() { p.Education = nil },
			func() { p.Professional = nil },
			func() { p.ReligiousInfo = nil },
			func() { p.PersonalInfo.About = nil },
			func() { p.Location = nil },
			func() { p.FinancialInfo = nil },
			func() { p.GuardianInfo = nil },
		}
		for _, i := range r.Perm(len(drops))[:1+r.Intn(4)] {
			drops[i]()
		}
	}
	return p
}
