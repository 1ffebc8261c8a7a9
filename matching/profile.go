// Package matching holds the compatibility scorer, the content moderation
// filter and the profile completeness evaluator.
//
// Every function here is pure: profiles are read, never mutated, and no
// package state changes after init, so callers may fan out freely.
package matching

// Gender values stored in BasicInfo.Gender
const (
	GenderMale   = "m"
	GenderFemale = "f"
)

// Profile is the nested, partially filled record describing one user.
// A nil pointer anywhere in the tree means "absent".
type Profile struct {
	BasicInfo     *BasicInfo     `json:"basicInfo,omitempty"`
	Location      *Location      `json:"location,omitempty"`
	Education     *Education     `json:"education,omitempty"`
	Professional  *Professional  `json:"professional,omitempty"`
	ReligiousInfo *ReligiousInfo `json:"religiousInfo,omitempty"`
	Preferences   *Preferences   `json:"preferences,omitempty"`
	PersonalInfo  *PersonalInfo  `json:"personalInfo,omitempty"`
	FinancialInfo *FinancialInfo `json:"financialInfo,omitempty"`
	GuardianInfo  *GuardianInfo  `json:"guardianInfo,omitempty"`
}

type BasicInfo struct {
	Name   *string `json:"name,omitempty"`
	Age    *int    `json:"age,omitempty"`
	Gender *string `json:"gender,omitempty"`
}

type Location struct {
	City    *string `json:"city,omitempty"`
	State   *string `json:"state,omitempty"`
	Country *string `json:"country,omitempty"`
}

type Education struct {
	Level *string `json:"level,omitempty"`
}

type Professional struct {
	Occupation *string `json:"occupation,omitempty"`
	CurrentJob *string `json:"currentJob,omitempty"`
}

type ReligiousInfo struct {
	ReligiousLevel *string `json:"religiousLevel,omitempty"`
}

type Preferences struct {
	MarriageType *string `json:"marriageType,omitempty"`
	Children     *string `json:"children,omitempty"`
}

type PersonalInfo struct {
	About         *string `json:"about,omitempty"`
	MarriageGoals *string `json:"marriageGoals,omitempty"`
	HasBeard      *bool   `json:"hasBeard,omitempty"`
	WearHijab     *bool   `json:"wearHijab,omitempty"`
}

type FinancialInfo struct {
	Situation *string `json:"situation,omitempty"`
}

type GuardianInfo struct {
	Name  *string `json:"name,omitempty"`
	Phone *string `json:"phone,omitempty"`
}

// The accessors below walk one namespace each and return nil when any link
// of the chain is missing.

func (p *Profile) name() *string {
	if p == nil || p.BasicInfo == nil {
		return nil
	}
	return p.BasicInfo.Name
}

func (p *Profile) age() *int {
	if p == nil || p.BasicInfo == nil {
		return nil
	}
	return p.BasicInfo.Age
}

func (p *Profile) gender() *string {
	if p == nil || p.BasicInfo == nil {
		return nil
	}
	return p.BasicInfo.Gender
}

// Gender returns the stored gender or "" when it is absent.
func (p *Profile) Gender() string {
	if g := p.gender(); g != nil {
		return *g
	}
	return ""
}

func (p *Profile) city() *string {
	if p == nil || p.Location == nil {
		return nil
	}
	return p.Location.City
}

func (p *Profile) state() *string {
	if p == nil || p.Location == nil {
		return nil
	}
	return p.Location.State
}

func (p *Profile) country() *string {
	if p == nil || p.Location == nil {
		return nil
	}
	return p.Location.Country
}

func (p *Profile) educationLevel() *string {
	if p == nil || p.Education == nil {
		return nil
	}
	return p.Education.Level
}

func (p *Profile) occupation() *string {
	if p == nil || p.Professional == nil {
		return nil
	}
	return p.Professional.Occupation
}

func (p *Profile) currentJob() *string {
	if p == nil || p.Professional == nil {
		return nil
	}
	return p.Professional.CurrentJob
}

func (p *Profile) religiousLevel() *string {
	if p == nil || p.ReligiousInfo == nil {
		return nil
	}
	return p.ReligiousInfo.ReligiousLevel
}

func (p *Profile) marriageType() *string {
	if p == nil || p.Preferences == nil {
		return nil
	}
	return p.Preferences.MarriageType
}

func (p *Profile) children() *string {
	if p == nil || p.Preferences == nil {
		return nil
	}
	return p.Preferences.Children
}

func (p *Profile) about() *string {
	if p == nil || p.PersonalInfo == nil {
		return nil
	}
	return p.PersonalInfo.About
}

func (p *Profile) marriageGoals() *string {
	if p == nil || p.PersonalInfo == nil {
		return nil
	}
	return p.PersonalInfo.MarriageGoals
}

func (p *Profile) hasBeard() *bool {
	if p == nil || p.PersonalInfo == nil {
		return nil
	}
	return p.PersonalInfo.HasBeard
}

func (p *Profile) wearHijab() *bool {
	if p == nil || p.PersonalInfo == nil {
		return nil
	}
	return p.PersonalInfo.WearHijab
}

func (p *Profile) financialSituation() *string {
	if p == nil || p.FinancialInfo == nil {
		return nil
	}
	return p.FinancialInfo.Situation
}

func (p *Profile) guardianName() *string {
	if p == nil || p.GuardianInfo == nil {
		return nil
	}
	return p.GuardianInfo.Name
}

func (p *Profile) guardianPhone() *string {
	if p == nil || p.GuardianInfo == nil {
		return nil
	}
	return p.GuardianInfo.Phone
}

// sameString reports whether both values are present and equal.
func sameString(a, b *string) bool {
	return a != nil && b != nil && *a == *b
}

// filled reports whether s is present and non-empty.
func filled(s *string) bool {
	return s != nil && *s != ""
}

// String and Int return pointers to their argument. They keep profile
// literals in callers and tests short.
func String(s string) *string { return &s }

func Int(i int) *int { return &i }

func Bool(b bool) *bool { return &b }
