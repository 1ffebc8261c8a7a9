package matching

import (
	"errors"
	"fmt"
	"sort"
)

// Factor names as they appear in FactorResult.Factor.
const (
	FactorAge          = "age"
	FactorEducation    = "education"
	FactorLocation     = "location"
	FactorReligious    = "religious"
	FactorMarriageType = "marriageType"
	FactorChildren     = "children"
	FactorEmployment   = "employment"
)

// MaxScore is the ceiling of every compatibility score.
const MaxScore = 100

// AgeMatchMaxDiff is the largest age gap still flagged as an age match.
// The flag is informational; points follow the continuous age formula.
const AgeMatchMaxDiff = 5

var ErrInvalidWeights = errors.New("invalid compatibility weights")

// Weights are the maximum points each factor can contribute.
type Weights struct {
	Age          int `json:"age" mapstructure:"age"`
	Education    int `json:"education" mapstructure:"education"`
	Location     int `json:"location" mapstructure:"location"`
	Religious    int `json:"religious" mapstructure:"religious"`
	MarriageType int `json:"marriageType" mapstructure:"marriage_type"`
	Children     int `json:"children" mapstructure:"children"`
	Employment   int `json:"employment" mapstructure:"employment"`
}

// DefaultWeights returns the fixed factor weights. They sum to MaxScore.
func DefaultWeights() Weights {
	return Weights{
		Age:          20,
		Education:    15,
		Location:     15,
		Religious:    20,
		MarriageType: 10,
		Children:     10,
		Employment:   10,
	}
}

// Total is the sum of all factor weights.
func (w Weights) Total() int {
	return w.Age + w.Education + w.Location + w.Religious + w.MarriageType + w.Children + w.Employment
}

// Validate rejects negative weights.
func (w Weights) Validate() error {
	for name, v := range w.byFactor() {
		if v < 0 {
			return fmt.Errorf("%w: %s is %d", ErrInvalidWeights, name, v)
		}
	}
	return nil
}

func (w Weights) byFactor() map[string]int {
	return map[string]int{
		FactorAge:          w.Age,
		FactorEducation:    w.Education,
		FactorLocation:     w.Location,
		FactorReligious:    w.Religious,
		FactorMarriageType: w.MarriageType,
		FactorChildren:     w.Children,
		FactorEmployment:   w.Employment,
	}
}

// FactorResult is one factor's contribution. Weight holds the points
// earned, not the factor's maximum.
type FactorResult struct {
	Factor  string         `json:"factor"`
	Weight  int            `json:"weight"`
	Match   bool           `json:"match"`
	Details map[string]any `json:"details"`
}

// Compatibility is the outcome of comparing two profiles.
type Compatibility struct {
	Score   int            `json:"score"`
	Factors []FactorResult `json:"factors"`
}

// CategoryBreakdown is the earned/possible split of a single factor.
type CategoryBreakdown struct {
	Earned   int  `json:"earned"`
	Possible int  `json:"possible"`
	Match    bool `json:"match"`
}

// CompatibilityDetails regroups a Compatibility for display.
type CompatibilityDetails struct {
	Score              int                          `json:"score"`
	MatchingFactors    []FactorResult               `json:"matchingFactors"`
	NonMatchingFactors []FactorResult               `json:"nonMatchingFactors"`
	Categories         map[string]CategoryBreakdown `json:"categories"`
}

// Scorer computes weighted compatibility. The zero value is not usable;
// build one with NewScorer.
type Scorer struct {
	weights Weights
}

// NewScorer returns a Scorer using w.
func NewScorer(w Weights) (*Scorer, error) {
	if err := w.Validate(); err != nil {
		return nil, err
	}
	return &Scorer{weights: w}, nil
}

var defaultScorer = &Scorer{weights: DefaultWeights()}

// Weights returns the weights the scorer was built with.
func (s *Scorer) Weights() Weights {
	return s.weights
}

// CalculateCompatibility scores a against b with the default weights.
func CalculateCompatibility(a, b *Profile) Compatibility {
	return defaultScorer.Calculate(a, b)
}

// GetCompatibilityDetails scores a against b with the default weights and
// regroups the factors.
func GetCompatibilityDetails(a, b *Profile) CompatibilityDetails {
	return defaultScorer.Details(a, b)
}

// Calculate runs every factor and sums the earned points, clamped to [0, MaxScore].
func (s *Scorer) Calculate(a, b *Profile) Compatibility {
	factors := []FactorResult{
		s.ageFactor(a, b),
		s.educationFactor(a, b),
		s.locationFactor(a, b),
		s.religiousFactor(a, b),
		s.marriageTypeFactor(a, b),
		s.childrenFactor(a, b),
		s.employmentFactor(a, b),
	}

	total := 0
	for _, f := range factors {
		total += f.Weight
	}
	return Compatibility{Score: clampScore(total), Factors: factors}
}

// Details is Calculate followed by Regroup.
func (s *Scorer) Details(a, b *Profile) CompatibilityDetails {
	return s.Regroup(s.Calculate(a, b))
}

// Regroup splits c's factors into matching and non-matching and adds the
// earned/possible breakdown per factor. c is not modified.
func (s *Scorer) Regroup(c Compatibility) CompatibilityDetails {
	possible := s.weights.byFactor()

	d := CompatibilityDetails{
		Score:              c.Score,
		MatchingFactors:    []FactorResult{},
		NonMatchingFactors: []FactorResult{},
		Categories:         make(map[string]CategoryBreakdown, len(c.Factors)),
	}
	for _, f := range c.Factors {
		if f.Match {
			d.MatchingFactors = append(d.MatchingFactors, f)
		} else {
			d.NonMatchingFactors = append(d.NonMatchingFactors, f)
		}
		d.Categories[f.Factor] = CategoryBreakdown{
			Earned:   f.Weight,
			Possible: possible[f.Factor],
			Match:    f.Match,
		}
	}
	return d
}

func (s *Scorer) ageFactor(a, b *Profile) FactorResult {
	age1, age2 := a.age(), b.age()
	if age1 == nil || age2 == nil {
		return FactorResult{
			Factor:  FactorAge,
			Details: map[string]any{"age1": intOrNil(age1), "age2": intOrNil(age2)},
		}
	}

	diff := *age1 - *age2
	if diff < 0 {
		diff = -diff
	}
	points := s.weights.Age - diff
	if points < 0 {
		points = 0
	}
	return FactorResult{
		Factor: FactorAge,
		Weight: points,
		Match:  diff <= AgeMatchMaxDiff,
		Details: map[string]any{
			"age1":       *age1,
			"age2":       *age2,
			"difference": diff,
		},
	}
}

func (s *Scorer) educationFactor(a, b *Profile) FactorResult {
	l1, l2 := a.educationLevel(), b.educationLevel()
	return s.equalityFactor(FactorEducation, s.weights.Education, sameString(l1, l2),
		map[string]any{"level1": stringOrNil(l1), "level2": stringOrNil(l2)})
}

func (s *Scorer) locationFactor(a, b *Profile) FactorResult {
	city1, city2 := a.city(), b.city()
	state1, state2 := a.state(), b.state()

	r := FactorResult{
		Factor: FactorLocation,
		Details: map[string]any{
			"city1":  stringOrNil(city1),
			"city2":  stringOrNil(city2),
			"state1": stringOrNil(state1),
			"state2": stringOrNil(state2),
		},
	}
	switch {
	case sameString(city1, city2):
		r.Weight = s.weights.Location
		r.Match = true
		r.Details["level"] = "city"
	case sameString(state1, state2):
		r.Weight = s.weights.Location / 2
		r.Match = true
		r.Details["level"] = "state"
	}
	return r
}

func (s *Scorer) religiousFactor(a, b *Profile) FactorResult {
	r1, r2 := a.religiousLevel(), b.religiousLevel()
	return s.equalityFactor(FactorReligious, s.weights.Religious, sameString(r1, r2),
		map[string]any{"level1": stringOrNil(r1), "level2": stringOrNil(r2)})
}

func (s *Scorer) marriageTypeFactor(a, b *Profile) FactorResult {
	t1, t2 := a.marriageType(), b.marriageType()
	return s.equalityFactor(FactorMarriageType, s.weights.MarriageType, sameString(t1, t2),
		map[string]any{"type1": stringOrNil(t1), "type2": stringOrNil(t2)})
}

func (s *Scorer) childrenFactor(a, b *Profile) FactorResult {
	c1, c2 := a.children(), b.children()
	match := filled(c1) && filled(c2) && *c1 == *c2
	return s.equalityFactor(FactorChildren, s.weights.Children, match,
		map[string]any{"preference1": stringOrNil(c1), "preference2": stringOrNil(c2)})
}

// employmentFactor only needs a current job on both sides; the job titles
// themselves are not compared.
func (s *Scorer) employmentFactor(a, b *Profile) FactorResult {
	j1, j2 := filled(a.currentJob()), filled(b.currentJob())
	return s.equalityFactor(FactorEmployment, s.weights.Employment, j1 && j2,
		map[string]any{"employed1": j1, "employed2": j2})
}

func (s *Scorer) equalityFactor(name string, weight int, match bool, details map[string]any) FactorResult {
	r := FactorResult{Factor: name, Match: match, Details: details}
	if match {
		r.Weight = weight
	}
	return r
}

// Ranked is one candidate's position after RankCandidates.
type Ranked struct {
	Index int `json:"index"`
	Compatibility
}

// RankCandidates scores subject against every candidate and returns them
// best first. Ties keep input order. Index points into candidates.
func (s *Scorer) RankCandidates(subject *Profile, candidates []*Profile) []Ranked {
	out := make([]Ranked, len(candidates))
	for i, c := range candidates {
		out[i] = Ranked{Index: i, Compatibility: s.Calculate(subject, c)}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Score > out[j].Score
	})
	return out
}

func clampScore(v int) int {
	if v < 0 {
		return 0
	}
	if v > MaxScore {
		return MaxScore
	}
	return v
}

func stringOrNil(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}

func intOrNil(i *int) any {
	if i == nil {
		return nil
	}
	return *i
}
