package matching

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Content types understood by GenerateModerationReport.
const (
	ContentTypeProfile = "profile"
	ContentTypeMessage = "message"
)

// Hit counts at which a moderation score saturates at 1.
const (
	textScoreSaturation    = 10
	profileScoreSaturation = 20
)

// ReviewScoreThreshold is the score above which a report needs review even
// when the content was judged appropriate.
const ReviewScoreThreshold = 0.5

// Profile fields scanned by CheckProfileContent.
const (
	FieldName          = "name"
	FieldAbout         = "about"
	FieldMarriageGoals = "marriageGoals"
)

var ErrInvalidContent = errors.New("invalid moderation content")

var defaultArabicWords = []string{
	"كلب",
	"حمار",
	"غبي",
	"حقير",
	"قذر",
	"وسخ",
	"لعنة",
	"تافه",
	"زبالة",
	"خنزير",
	"عاهرة",
	"شرموطة",
}

var defaultEnglishWords = []string{
	"fuck",
	"shit",
	"damn",
	"bitch",
	"bastard",
	"asshole",
	"idiot",
	"stupid",
	"whore",
	"slut",
	"dick",
	"pussy",
	"sex",
	"porn",
	"nude",
}

// WordLists are the flagged vocabularies. Arabic entries match
// case-sensitively, English entries ignore case.
type WordLists struct {
	Arabic  []string `json:"arabic" mapstructure:"arabic"`
	English []string `json:"english" mapstructure:"english"`
}

// DefaultWordLists returns copies of the built-in lists.
func DefaultWordLists() WordLists {
	return WordLists{
		Arabic:  append([]string(nil), defaultArabicWords...),
		English: append([]string(nil), defaultEnglishWords...),
	}
}

// TextCheck is the result of scanning one piece of text.
type TextCheck struct {
	IsAppropriate   bool     `json:"isAppropriate"`
	FlaggedWords    []string `json:"flaggedWords"`
	ModerationScore float64  `json:"moderationScore"`
}

// ProfileCheck is the result of scanning a profile's free-text fields.
type ProfileCheck struct {
	IsAppropriate   bool     `json:"isAppropriate"`
	FlaggedFields   []string `json:"flaggedFields"`
	ModerationScore float64  `json:"moderationScore"`
}

// Report is a moderation result stamped for the review queue. Only one of
// FlaggedWords and FlaggedFields is set, depending on the content type.
type Report struct {
	IsAppropriate   bool      `json:"isAppropriate"`
	FlaggedWords    []string  `json:"flaggedWords,omitempty"`
	FlaggedFields   []string  `json:"flaggedFields,omitempty"`
	ModerationScore float64   `json:"moderationScore"`
	ContentType     string    `json:"contentType"`
	CheckedAt       time.Time `json:"checkedAt"`
	NeedsReview     bool      `json:"needsReview"`
}

// MarshalJSON always writes the list that belongs to the content type,
// as [] when nothing was flagged, and leaves the other one out.
func (r Report) MarshalJSON() ([]byte, error) {
	type plain Report
	out := struct {
		plain
		FlaggedWords  *[]string `json:"flaggedWords,omitempty"`
		FlaggedFields *[]string `json:"flaggedFields,omitempty"`
	}{plain: plain(r)}

	if r.ContentType == ContentTypeProfile {
		fields := nonNil(r.FlaggedFields)
		out.FlaggedFields = &fields
	} else {
		words := nonNil(r.FlaggedWords)
		out.FlaggedWords = &words
	}
	return json.Marshal(out)
}

func nonNil(xs []string) []string {
	if xs == nil {
		return []string{}
	}
	return xs
}

// Filter scans text against fixed word lists. It is immutable once built.
type Filter struct {
	arabic  []string
	english []string // lowercased
	now     func() time.Time
}

// FilterOption customises a Filter.
type FilterOption func(*Filter)

// WithClock replaces the clock used to stamp reports.
func WithClock(now func() time.Time) FilterOption {
	return func(f *Filter) { f.now = now }
}

// NewFilter builds a Filter over lists. Empty entries are skipped since
// they would match every text.
func NewFilter(lists WordLists, opts ...FilterOption) *Filter {
	lower := cases.Lower(language.Und)
	f := &Filter{now: time.Now}
	for _, w := range lists.Arabic {
		if w != "" {
			f.arabic = append(f.arabic, w)
		}
	}
	for _, w := range lists.English {
		if w != "" {
			f.english = append(f.english, lower.String(w))
		}
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

var defaultFilter = NewFilter(DefaultWordLists())

// CheckForAbusiveContent scans text with the default word lists.
func CheckForAbusiveContent(text string) TextCheck {
	return defaultFilter.CheckText(text)
}

// CheckMessageContent scans a chat message with the default word lists.
func CheckMessageContent(message string) TextCheck {
	return defaultFilter.CheckMessage(message)
}

// CheckProfileContent scans a profile with the default word lists.
func CheckProfileContent(p *Profile) ProfileCheck {
	return defaultFilter.CheckProfile(p)
}

// GenerateModerationReport runs the check matching contentType with the
// default word lists.
func GenerateModerationReport(content any, contentType string) (Report, error) {
	return defaultFilter.Report(content, contentType)
}

// CheckText reports every list entry contained in text. Matching is plain
// substring containment, so an entry inside a longer word is flagged too.
// Each entry is reported at most once however often it occurs.
func (f *Filter) CheckText(text string) TextCheck {
	flagged := f.scan(text)
	return TextCheck{
		IsAppropriate:   len(flagged) == 0,
		FlaggedWords:    flagged,
		ModerationScore: saturate(len(flagged), textScoreSaturation),
	}
}

// CheckMessage is CheckText under the name used by the chat relay.
func (f *Filter) CheckMessage(message string) TextCheck {
	return f.CheckText(message)
}

// CheckProfile scans the name, about and marriage goals fields that are
// present. The score saturates at twice the hits of a single text.
func (f *Filter) CheckProfile(p *Profile) ProfileCheck {
	fields := []struct {
		name  string
		value *string
	}{
		{FieldName, p.name()},
		{FieldAbout, p.about()},
		{FieldMarriageGoals, p.marriageGoals()},
	}

	flaggedFields := []string{}
	hits := 0
	for _, fld := range fields {
		if fld.value == nil {
			continue
		}
		res := f.CheckText(*fld.value)
		if !res.IsAppropriate {
			flaggedFields = append(flaggedFields, fld.name)
		}
		hits += len(res.FlaggedWords)
	}

	return ProfileCheck{
		IsAppropriate:   len(flaggedFields) == 0,
		FlaggedFields:   flaggedFields,
		ModerationScore: saturate(hits, profileScoreSaturation),
	}
}

// Report dispatches on contentType: "profile" expects a profile (or
// anything that encodes to one), "message" expects a string, and any other
// type is scanned as text, JSON-encoding content first when it is not a
// string.
func (f *Filter) Report(content any, contentType string) (Report, error) {
	var r Report
	switch contentType {
	case ContentTypeProfile:
		p, err := asProfile(content)
		if err != nil {
			return Report{}, err
		}
		pc := f.CheckProfile(p)
		r = Report{
			IsAppropriate:   pc.IsAppropriate,
			FlaggedFields:   pc.FlaggedFields,
			ModerationScore: pc.ModerationScore,
		}
	default:
		text, err := asText(content)
		if err != nil {
			return Report{}, err
		}
		tc := f.CheckText(text)
		r = Report{
			IsAppropriate:   tc.IsAppropriate,
			FlaggedWords:    tc.FlaggedWords,
			ModerationScore: tc.ModerationScore,
		}
	}

	r.ContentType = contentType
	r.CheckedAt = f.now().UTC()
	r.NeedsReview = !r.IsAppropriate || r.ModerationScore > ReviewScoreThreshold
	return r, nil
}

func (f *Filter) scan(text string) []string {
	flagged := []string{}
	for _, w := range f.arabic {
		if strings.Contains(text, w) {
			flagged = append(flagged, w)
		}
	}
	if len(f.english) == 0 {
		return flagged
	}
	// Casers keep state, so each scan lowercases with its own. Lowercasing
	// only changes case; look-alike letters such as long s stay distinct.
	lowered := cases.Lower(language.Und).String(text)
	for _, w := range f.english {
		if strings.Contains(lowered, w) {
			flagged = append(flagged, w)
		}
	}
	return flagged
}

func saturate(hits, at int) float64 {
	score := float64(hits) / float64(at)
	if score > 1 {
		return 1
	}
	return score
}

func asProfile(content any) (*Profile, error) {
	switch v := content.(type) {
	case *Profile:
		return v, nil
	case Profile:
		return &v, nil
	case nil:
		return nil, nil
	}

	var raw []byte
	switch v := content.(type) {
	case json.RawMessage:
		raw = v
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidContent, err)
		}
		raw = b
	}

	var p Profile
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("%w: profile content: %v", ErrInvalidContent, err)
	}
	return &p, nil
}

func asText(content any) (string, error) {
	if s, ok := content.(string); ok {
		return s, nil
	}
	b, err := json.Marshal(content)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidContent, err)
	}
	return string(b), nil
}
