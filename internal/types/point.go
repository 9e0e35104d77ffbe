// README: Geographic point in decimal degrees.
package types

import "math"

type Point struct {
	Lat float64
	Lng float64
}

// Finite reports whether both coordinates are real numbers (no NaN or Inf).
func (p Point) Finite() bool {
	return isFinite(p.Lat) && isFinite(p.Lng)
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
