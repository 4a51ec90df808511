package extraction

import (
	"regexp"
	"strconv"
	"unicode"
	"unicode/utf8"
)

// Rule is one pattern of the quick pass. Resolve receives the normalized text
// and the submatch indexes of one match; it returns a Result holding only
// Field, or false to try the next match.
type Rule struct {
	Name    string
	Field   string
	Pattern *regexp.Regexp
	Resolve func(text string, match []int) (Result, bool)
}

// Gender words. A cue is a whole word: neighbours may not be letters, digits
// or apostrophes, so "I'm", "km" and "5k" never count.
const (
	maleWords   = `m|man|male|boy|pan|chlopiec|mezczyzn\pL*|mesk\pL*|chlopak\pL*|chlopc\pL*|facet\pL*`
	femaleWords = `k|woman|female|girl|pani|kobiet\pL*|zensk\pL*|dziewczyn\pL*`
	wordEdgeL   = `(?:^|[^\pL\pN'])`
	wordEdgeR   = `(?:$|[^\pL\pN'])`
)

// Time token following a 5 km marker: a colon time or minutes with a unit.
const (
	colonToken  = `\d{1,2}:\d{2}(?::\d{2})?`
	minuteToken = `\d{1,3}(?:[.,]\d+)?\s*min(?:utes?|ut[ay]?|s)?\b\.?(?:\s*\d{1,2}\s*` + secondUnit + `\b\.?)?`
)

// DefaultRules returns the rule table in priority order. Rules of one field
// are tried in table order; the first in-range value wins.
func DefaultRules() []Rule {
	return []Rule{
		{
			Name:    "gender_word",
			Field:   FieldGender,
			Pattern: regexp.MustCompile(wordEdgeL + `((` + maleWords + `)|(` + femaleWords + `))` + wordEdgeR),
			Resolve: resolveGender,
		},
		{
			Name:    "age_years_old",
			Field:   FieldAge,
			Pattern: regexp.MustCompile(`\b(\d{1,2})\s*-?\s*(?:(?:years?|yrs?)\s*-?\s*old|letni\pL*)`),
			Resolve: resolveAge,
		},
		{
			Name:    "age_unit",
			Field:   FieldAge,
			Pattern: regexp.MustCompile(`\b(\d{1,2})\s*(?:years?|yrs?|lata|lat|l|roku|r\.|yo|y/o)(?:$|[^\pL])`),
			Resolve: resolveAge,
		},
		{
			Name:    "age_key",
			Field:   FieldAge,
			Pattern: regexp.MustCompile(`\b(?:aged?|wiek|lat)\s*[:=]?\s*(\d{1,2})\b`),
			Resolve: resolveAge,
		},
		{
			Name:    "time_after_5k",
			Field:   FieldTime5K,
			Pattern: regexp.MustCompile(`(?:^|[^\d.,])5\s*-?\s*(?:km|k|kilometr\pL*)\b\D{0,20}?(` + colonToken + `|` + minuteToken + `)`),
			Resolve: resolveTime,
		},
		{
			Name:    "time_colon",
			Field:   FieldTime5K,
			Pattern: regexp.MustCompile(`\b(` + colonToken + `)\b`),
			Resolve: resolveTime,
		},
		{
			Name:    "time_minutes",
			Field:   FieldTime5K,
			Pattern: regexp.MustCompile(`\b(` + minuteToken + `)`),
			Resolve: resolveTime,
		},
	}
}

// apply runs the rule over every match left to right and returns the first
// resolved value. Scanning resumes after the first capture group so that
// separators consumed by the pattern can start the next match.
func (r Rule) apply(text string) (Result, bool) {
	offset := 0
	for offset <= len(text) {
		loc := r.Pattern.FindStringSubmatchIndex(text[offset:])
		if loc == nil {
			return Result{}, false
		}
		for i := range loc {
			if loc[i] >= 0 {
				loc[i] += offset
			}
		}
		if res, ok := r.Resolve(text, loc); ok {
			return res, true
		}
		next := loc[3]
		if next <= offset {
			next = offset + 1
		}
		offset = next
	}
	return Result{}, false
}

func group(text string, match []int, n int) string {
	if 2*n+1 >= len(match) || match[2*n] < 0 {
		return ""
	}
	return text[match[2*n]:match[2*n+1]]
}

// resolveGender skips a lone letter right after a number ("5 k", "400 m"),
// which is a distance unit rather than a gender.
func resolveGender(text string, match []int) (Result, bool) {
	word := group(text, match, 1)
	if utf8.RuneCountInString(word) == 1 && followsNumber(text, match[2]) {
		return Result{}, false
	}
	if group(text, match, 2) != "" {
		return Result{Gender: Male}, true
	}
	return Result{Gender: Female}, true
}

// followsNumber reports whether the last non-space rune before pos is a digit.
func followsNumber(text string, pos int) bool {
	for pos > 0 {
		r, size := utf8.DecodeLastRuneInString(text[:pos])
		if r == ' ' || r == '\t' {
			pos -= size
			continue
		}
		return unicode.IsDigit(r)
	}
	return false
}

func resolveAge(text string, match []int) (Result, bool) {
	age, err := strconv.Atoi(group(text, match, 1))
	if err != nil {
		return Result{}, false
	}
	return Result{}.withAge(age)
}

func resolveTime(text string, match []int) (Result, bool) {
	secs, ok := ParseTime(group(text, match, 1))
	if !ok {
		return Result{}, false
	}
	return Result{}.withTime(secs)
}
