package prediction

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/fyrsmithlabs/pacer/internal/extraction"
)

// Input is a validated prediction input. It is only produced by Validate.
type Input struct {
	Gender        extraction.Gender
	Age           int
	Time5KSeconds int
}

// Request is an unvalidated prediction request. Age and Time5KSeconds may
// hold JSON numbers or numeric strings.
type Request struct {
	Gender        string      `json:"gender"`
	Age           interface{} `json:"age"`
	Time5KSeconds interface{} `json:"time_5km_seconds"`
}

// RequestFromResult converts an extraction result to a Request.
func RequestFromResult(r extraction.Result) Request {
	req := Request{Gender: string(r.Gender)}
	if r.Age != nil {
		req.Age = *r.Age
	}
	if r.Time5KSeconds != nil {
		req.Time5KSeconds = *r.Time5KSeconds
	}
	return req
}

// ValidationError describes why a Request was rejected and how to fix it.
type ValidationError struct {
	Field  string
	Reason string
	Hint   string
}

func (e *ValidationError) Error() string {
	return e.Reason
}

var (
	genderHint = "Specify gender as male or female."
	ageHint    = fmt.Sprintf("Give your age as a whole number of years between %d and %d.",
		extraction.MinAge, extraction.MaxAge)
	timeHint = fmt.Sprintf("Give your 5 km time in whole seconds between %d and %d (9:00 to 60:00), e.g. 1470 for 24:30.",
		extraction.MinTime5KSecs, extraction.MaxTime5KSecs)
)

// Validate is the single validation gate: gender must be male or female,
// age an integer in [15, 90], time an integer in [540, 3600]. Fields are
// checked in that order and the first failure is returned.
func Validate(req Request) (Input, *ValidationError) {
	var in Input

	switch g := extraction.Gender(strings.ToLower(strings.TrimSpace(req.Gender))); g {
	case extraction.Male, extraction.Female:
		in.Gender = g
	default:
		return Input{}, &ValidationError{
			Field:  extraction.FieldGender,
			Reason: "gender is missing or invalid (expected male or female)",
			Hint:   genderHint,
		}
	}

	age, ok := coerceInt(req.Age)
	if !ok {
		return Input{}, &ValidationError{
			Field:  extraction.FieldAge,
			Reason: "age is missing or not a whole number",
			Hint:   ageHint,
		}
	}
	if !extraction.ValidAge(age) {
		return Input{}, &ValidationError{
			Field:  extraction.FieldAge,
			Reason: fmt.Sprintf("age %d is out of range (%d-%d)", age, extraction.MinAge, extraction.MaxAge),
			Hint:   ageHint,
		}
	}
	in.Age = age

	secs, ok := coerceInt(req.Time5KSeconds)
	if !ok {
		return Input{}, &ValidationError{
			Field:  extraction.FieldTime5K,
			Reason: "5 km time is missing or not a whole number of seconds",
			Hint:   timeHint,
		}
	}
	if !extraction.ValidTime5K(secs) {
		return Input{}, &ValidationError{
			Field: extraction.FieldTime5K,
			Reason: fmt.Sprintf("5 km time %d s is out of range (%d-%d s)",
				secs, extraction.MinTime5KSecs, extraction.MaxTime5KSecs),
			Hint: timeHint,
		}
	}
	in.Time5KSeconds = secs

	return in, nil
}

// coerceInt accepts Go integers, integral floats, json.Number and numeric
// strings. Fractional values are rejected rather than truncated.
func coerceInt(v interface{}) (int, bool) {
	switch t := v.(type) {
	case int:
		return t, true
	case int64:
		return intFromFloat(float64(t))
	case float64:
		return intFromFloat(t)
	case json.Number:
		f, err := t.Float64()
		if err != nil {
			return 0, false
		}
		return intFromFloat(f)
	case string:
		s := strings.TrimSpace(t)
		if n, err := strconv.Atoi(s); err == nil {
			return n, true
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, false
		}
		return intFromFloat(f)
	}
	return 0, false
}

func intFromFloat(f float64) (int, bool) {
	if math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) || math.Abs(f) > math.MaxInt32 {
		return 0, false
	}
	return int(f), true
}
