package prediction

import (
	"fmt"
	"math"
)

// FormatDuration renders seconds as H:MM:SS.
func FormatDuration(secs int) string {
	if secs < 0 {
		secs = 0
	}
	return fmt.Sprintf("%d:%02d:%02d", secs/3600, (secs%3600)/60, secs%60)
}

// PaceMinPerKm returns the average half-marathon pace in minutes per km.
func PaceMinPerKm(secs int) float64 {
	return float64(secs) / HalfMarathonKm / 60
}

// FormatPace renders the average pace as M:SS per km.
func FormatPace(secs int) string {
	perKm := int(math.Round(float64(secs) / HalfMarathonKm))
	return fmt.Sprintf("%d:%02d", perKm/60, perKm%60)
}
