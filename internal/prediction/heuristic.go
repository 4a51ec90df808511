package prediction

import (
	"math"

	"github.com/fyrsmithlabs/pacer/internal/extraction"
)

// Heuristic constants.
const (
	HalfMarathonKm = 21.0975

	halfMarathonPer5K = 4.46
	femaleFactor      = 1.03

	// MinSeconds and MaxSeconds bound every heuristic prediction (1-4 h).
	MinSeconds = 60 * 60
	MaxSeconds = 4 * 60 * 60
)

// Heuristic estimates the half-marathon time in seconds from the 5 km time,
// corrected for gender and age and clamped to [MinSeconds, MaxSeconds].
func Heuristic(in Input) int {
	base := halfMarathonPer5K * float64(in.Time5KSeconds)
	if in.Gender == extraction.Female {
		base *= femaleFactor
	}
	base *= ageFactor(in.Age)

	base = math.Max(base, MinSeconds)
	base = math.Min(base, MaxSeconds)
	return int(math.Round(base))
}

// ageFactor is 1 in the 20-35 band. Each older band adds its own per-year
// rate on top of the full increments of the bands below it.
func ageFactor(age int) float64 {
	a := float64(age)
	switch {
	case age < 20:
		return 1 + 0.005*(20-a)
	case age <= 35:
		return 1
	case age <= 50:
		return 1 + 0.003*(a-35)
	case age <= 65:
		return 1 + 0.003*15 + 0.005*(a-50)
	default:
		return 1 + 0.003*15 + 0.005*15 + 0.01*(a-65)
	}
}
