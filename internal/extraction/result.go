package extraction

import (
	"encoding/json"
	"strings"
)

// Accepted ranges for extracted values.
const (
	MinAge        = 15
	MaxAge        = 90
	MinTime5KSecs = 9 * 60
	MaxTime5KSecs = 60 * 60
)

// Gender is male, female, or empty when unknown.
type Gender string

const (
	GenderUnknown Gender = ""
	Male          Gender = "male"
	Female        Gender = "female"
)

// genderSynonyms maps lowercase, diacritic-free words to a gender.
var genderSynonyms = map[string]Gender{
	"male":      Male,
	"m":         Male,
	"man":       Male,
	"mezczyzna": Male,
	"meski":     Male,
	"pan":       Male,
	"female":    Female,
	"f":         Female,
	"k":         Female,
	"woman":     Female,
	"kobieta":   Female,
	"zenski":    Female,
	"pani":      Female,
}

// ParseGender maps a gender word in English or Polish to a Gender.
func ParseGender(s string) (Gender, bool) {
	g, ok := genderSynonyms[normalize(strings.TrimSpace(s))]
	return g, ok
}

// MarshalJSON encodes an unknown gender as null.
func (g Gender) MarshalJSON() ([]byte, error) {
	if g == GenderUnknown {
		return []byte("null"), nil
	}
	return json.Marshal(string(g))
}

// UnmarshalJSON accepts null or any synonym known to ParseGender. Unknown
// words decode to GenderUnknown.
func (g *Gender) UnmarshalJSON(data []byte) error {
	var s *string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	*g = GenderUnknown
	if s != nil {
		if parsed, ok := ParseGender(*s); ok {
			*g = parsed
		}
	}
	return nil
}

// ValidAge reports whether age is within the accepted range.
func ValidAge(age int) bool {
	return age >= MinAge && age <= MaxAge
}

// ValidTime5K reports whether secs is a plausible 5 km time.
func ValidTime5K(secs int) bool {
	return secs >= MinTime5KSecs && secs <= MaxTime5KSecs
}

// Result holds the extracted attributes; nil/empty fields are absent.
type Result struct {
	Gender        Gender `json:"gender"`
	Age           *int   `json:"age"`
	Time5KSeconds *int   `json:"time_5km_seconds"`
}

// Field names as they appear in JSON.
const (
	FieldGender = "gender"
	FieldAge    = "age"
	FieldTime5K = "time_5km_seconds"
)

// MissingField names an absent field and tells the user how to supply it.
type MissingField struct {
	Field string `json:"field"`
	Hint  string `json:"hint"`
}

var fieldHints = map[string]string{
	FieldGender: "State your gender: M/K, male/female, mezczyzna/kobieta",
	FieldAge:    "State your age (15-90), e.g. '30 years' or '30 lat'",
	FieldTime5K: "State your 5 km time, e.g. '5 km 24:30' or '25 min'",
}

// Hint returns the corrective hint for a field name.
func Hint(field string) string {
	return fieldHints[field]
}

// Merge returns a Result taking each field from r when present and from
// other otherwise.
func (r Result) Merge(other Result) Result {
	out := r
	if out.Gender == GenderUnknown {
		out.Gender = other.Gender
	}
	if out.Age == nil {
		out.Age = other.Age
	}
	if out.Time5KSeconds == nil {
		out.Time5KSeconds = other.Time5KSeconds
	}
	return out
}

// Complete reports whether all three fields are present.
func (r Result) Complete() bool {
	return r.Gender != GenderUnknown && r.Age != nil && r.Time5KSeconds != nil
}

// Empty reports whether no field is present.
func (r Result) Empty() bool {
	return r.Gender == GenderUnknown && r.Age == nil && r.Time5KSeconds == nil
}

// Missing lists absent fields in gender, age, time order.
func (r Result) Missing() []MissingField {
	var out []MissingField
	if r.Gender == GenderUnknown {
		out = append(out, MissingField{Field: FieldGender, Hint: fieldHints[FieldGender]})
	}
	if r.Age == nil {
		out = append(out, MissingField{Field: FieldAge, Hint: fieldHints[FieldAge]})
	}
	if r.Time5KSeconds == nil {
		out = append(out, MissingField{Field: FieldTime5K, Hint: fieldHints[FieldTime5K]})
	}
	return out
}

// withAge returns r with Age set when age is in range.
func (r Result) withAge(age int) (Result, bool) {
	if !ValidAge(age) {
		return r, false
	}
	r.Age = &age
	return r, true
}

// withTime returns r with Time5KSeconds set when secs is in range.
func (r Result) withTime(secs int) (Result, bool) {
	if !ValidTime5K(secs) {
		return r, false
	}
	r.Time5KSeconds = &secs
	return r, true
}

// IntPtr returns a pointer to v.
func IntPtr(v int) *int {
	return &v
}
