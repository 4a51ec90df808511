package extraction

import (
	"math"
	"regexp"
	"strconv"
	"strings"
)

const (
	minuteUnit = `(?:min(?:utes?|ut[ay]?|s)?|m)`
	secondUnit = `(?:sekund[ya]?|sek|seconds?|secs?|s)`
)

var (
	colonTimeRe   = regexp.MustCompile(`^(\d{1,2}):(\d{2})(?::(\d{2}))?$`)
	minuteTimeRe  = regexp.MustCompile(`^(\d+(?:[.,]\d+)?)\s*` + minuteUnit + `\.?(?:\s*(\d+)\s*` + secondUnit + `\.?)?$`)
	secondsOnlyRe = regexp.MustCompile(`^(\d+)\s*` + secondUnit + `\.?$`)
	bareNumberRe  = regexp.MustCompile(`^(\d+(?:[.,]\d+)?)$`)
)

// ParseTime converts a time token to seconds.
//
// Accepted forms, in priority order:
//   - "H:MM:SS" and "MM:SS"
//   - minutes with a unit word, optionally followed by seconds:
//     "25 min", "23 min 45 s", "24,5 minuty", "23m45s"
//   - seconds with a unit word: "1470 s"
//   - a bare number: below 100 means minutes, otherwise seconds
//
// Fractional minutes are truncated to whole seconds. ParseTime does not
// check plausibility; callers apply ValidTime5K.
func ParseTime(token string) (int, bool) {
	s := strings.TrimSpace(normalize(token))
	if s == "" {
		return 0, false
	}

	if m := colonTimeRe.FindStringSubmatch(s); m != nil {
		a, _ := strconv.Atoi(m[1])
		b, _ := strconv.Atoi(m[2])
		if m[3] == "" {
			if b >= 60 {
				return 0, false
			}
			return a*60 + b, true
		}
		c, _ := strconv.Atoi(m[3])
		if b >= 60 || c >= 60 {
			return 0, false
		}
		return a*3600 + b*60 + c, true
	}

	if m := minuteTimeRe.FindStringSubmatch(s); m != nil {
		mins, ok := parseDecimal(m[1])
		if !ok {
			return 0, false
		}
		secs, ok := truncSeconds(mins * 60)
		if !ok {
			return 0, false
		}
		if m[2] != "" {
			extra, err := strconv.Atoi(m[2])
			if err != nil || extra > math.MaxInt32-secs {
				return 0, false
			}
			secs += extra
		}
		return secs, true
	}

	if m := secondsOnlyRe.FindStringSubmatch(s); m != nil {
		secs, err := strconv.Atoi(m[1])
		if err != nil || secs > math.MaxInt32 {
			return 0, false
		}
		return secs, true
	}

	if m := bareNumberRe.FindStringSubmatch(s); m != nil {
		v, ok := parseDecimal(m[1])
		if !ok {
			return 0, false
		}
		if v < 100 {
			v *= 60
		}
		return truncSeconds(v)
	}

	return 0, false
}

// parseDecimal accepts both "24.5" and "24,5".
func parseDecimal(s string) (float64, bool) {
	v, err := strconv.ParseFloat(strings.Replace(s, ",", ".", 1), 64)
	if err != nil || math.IsInf(v, 0) || math.IsNaN(v) {
		return 0, false
	}
	return v, true
}

// truncSeconds truncates toward zero, absorbing float error such as
// 24.7*60 = 1481.9999999. Values that do not fit an int32 are rejected.
func truncSeconds(v float64) (int, bool) {
	v = math.Floor(v + 1e-9)
	if v > math.MaxInt32 {
		return 0, false
	}
	return int(v), true
}
