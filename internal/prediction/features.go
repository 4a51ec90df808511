package prediction

import (
	"math"

	"github.com/fyrsmithlabs/pacer/internal/extraction"
)

// Feature names a regression artifact may list in its feature order.
const (
	FeatureGenderMale     = "gender_male"
	FeatureGenderFemale   = "gender_female"
	FeatureAge            = "age"
	FeatureTime5K         = "time_5km_seconds"
	FeaturePace5KSecPerKm = "pace_5km_seconds_per_km"
	FeaturePace5KMinPerKm = "pace_5km_min_per_km"
	FeatureTime10K        = "time_10km_seconds"
	FeatureTime15K        = "time_15km_seconds"
)

// riegelExponent scales a known race time to another distance:
// t2 = t1 * (d2/d1)^1.06.
const riegelExponent = 1.06

func riegel(secs, fromKm, toKm float64) float64 {
	return secs * math.Pow(toKm/fromKm, riegelExponent)
}

// BuildFeatures returns the feature vector for in in the given order.
// Auxiliary split times are Riegel estimates from the 5 km time; names the
// builder does not know are set to 0.
func BuildFeatures(in Input, order []string) []float64 {
	t := float64(in.Time5KSeconds)

	out := make([]float64, len(order))
	for i, name := range order {
		switch name {
		case FeatureGenderMale:
			out[i] = indicator(in.Gender == extraction.Male)
		case FeatureGenderFemale:
			out[i] = indicator(in.Gender == extraction.Female)
		case FeatureAge:
			out[i] = float64(in.Age)
		case FeatureTime5K:
			out[i] = t
		case FeaturePace5KSecPerKm:
			out[i] = t / 5
		case FeaturePace5KMinPerKm:
			out[i] = t / 5 / 60
		case FeatureTime10K:
			out[i] = riegel(t, 5, 10)
		case FeatureTime15K:
			out[i] = riegel(t, 5, 15)
		}
	}
	return out
}

func indicator(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
