package matching

import "math"

// DefaultCompletionThreshold is the completeness a profile needs to count
// as complete.
const DefaultCompletionThreshold = 80

// Completion tiers, best first.
const (
	TierExcellent  = "excellent"
	TierVeryGood   = "very_good"
	TierGood       = "good"
	TierAcceptable = "acceptable"
	TierIncomplete = "incomplete"
)

type requiredField struct {
	path    string
	present func(*Profile) bool
}

func hasString(get func(*Profile) *string) func(*Profile) bool {
	return func(p *Profile) bool { return get(p) != nil }
}

// Presence is a non-nil check: zero values such as 0, false and "" count.
var (
	baseRequiredFields = []requiredField{
		{"basicInfo.name", hasString((*Profile).name)},
		{"basicInfo.age", func(p *Profile) bool { return p.age() != nil }},
		{"basicInfo.gender", hasString((*Profile).gender)},
		{"location.country", hasString((*Profile).country)},
		{"location.city", hasString((*Profile).city)},
		{"education.level", hasString((*Profile).educationLevel)},
		{"professional.occupation", hasString((*Profile).occupation)},
		{"religiousInfo.religiousLevel", hasString((*Profile).religiousLevel)},
		{"personalInfo.about", hasString((*Profile).about)},
	}

	maleRequiredFields = []requiredField{
		{"personalInfo.hasBeard", func(p *Profile) bool { return p.hasBeard() != nil }},
		{"financialInfo.situation", hasString((*Profile).financialSituation)},
	}

	femaleRequiredFields = []requiredField{
		{"guardianInfo.name", hasString((*Profile).guardianName)},
		{"guardianInfo.phone", hasString((*Profile).guardianPhone)},
		{"personalInfo.wearHijab", func(p *Profile) bool { return p.wearHijab() != nil }},
	}
)

// requiredFieldsFor returns the canonical field list for p's gender. An
// absent or unknown gender gets the base list only.
func requiredFieldsFor(p *Profile) []requiredField {
	fields := make([]requiredField, 0, len(baseRequiredFields)+len(femaleRequiredFields))
	fields = append(fields, baseRequiredFields...)
	switch p.Gender() {
	case GenderMale:
		fields = append(fields, maleRequiredFields...)
	case GenderFemale:
		fields = append(fields, femaleRequiredFields...)
	}
	return fields
}

// RequiredFields lists the dotted paths checked for p, in canonical order.
func RequiredFields(p *Profile) []string {
	fields := requiredFieldsFor(p)
	paths := make([]string, len(fields))
	for i, f := range fields {
		paths[i] = f.path
	}
	return paths
}

// CalculateCompleteness returns the rounded percentage of required fields
// present on p.
func CalculateCompleteness(p *Profile) int {
	fields := requiredFieldsFor(p)
	done := 0
	for _, f := range fields {
		if f.present(p) {
			done++
		}
	}
	return int(math.Round(100 * float64(done) / float64(len(fields))))
}

// GetMissingFields returns the required paths absent from p, in canonical order.
func GetMissingFields(p *Profile) []string {
	missing := []string{}
	for _, f := range requiredFieldsFor(p) {
		if !f.present(p) {
			missing = append(missing, f.path)
		}
	}
	return missing
}

// IsProfileComplete reports whether p reaches threshold percent.
// Most callers pass DefaultCompletionThreshold.
func IsProfileComplete(p *Profile, threshold int) bool {
	return CalculateCompleteness(p) >= threshold
}

// CompletionDetails bundles everything the profile screen shows.
type CompletionDetails struct {
	Completeness  int      `json:"completeness"`
	IsComplete    bool     `json:"isComplete"`
	MissingFields []string `json:"missingFields"`
	Tier          string   `json:"tier"`
	Message       string   `json:"message"`
}

type completionTier struct {
	min     int
	tier    string
	message string
}

var completionTiers = []completionTier{
	{95, TierExcellent, "ممتاز! ملفك الشخصي مكتمل تقريباً"},
	{80, TierVeryGood, "جيد جداً! ملفك الشخصي مكتمل بشكل جيد"},
	{60, TierGood, "جيد، لكن يمكن تحسين ملفك الشخصي"},
	{40, TierAcceptable, "مقبول، ننصحك بإكمال بياناتك"},
	{0, TierIncomplete, "يجب إكمال الملف الشخصي"},
}

// GetCompletionDetails evaluates p against DefaultCompletionThreshold and
// picks the message for its tier.
func GetCompletionDetails(p *Profile) CompletionDetails {
	pct := CalculateCompleteness(p)
	d := CompletionDetails{
		Completeness:  pct,
		IsComplete:    pct >= DefaultCompletionThreshold,
		MissingFields: GetMissingFields(p),
	}
	for _, t := range completionTiers {
		if pct >= t.min {
			d.Tier = t.tier
			d.Message = t.message
			break
		}
	}
	return d
}
