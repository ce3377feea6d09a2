package s1_chain

import "fmt"

// strikeTolerance absorbs float error at the band edges (100 × 0.95 etc.)
const strikeTolerance = 1e-9

// StrikeBand is the admissible put strike interval [Lower, Upper]
type StrikeBand struct {
	Lower float64 `json:"lower"`
	Upper float64 `json:"upper"`
}

// NewStrikeBand returns [P × (1 − maxOTM), P × (1 − minOTM)].
// Puts are OTM below spot, so the larger OTM bound gives the lower strike.
func NewStrikeBand(price, minOTM, maxOTM float64) StrikeBand {
	return StrikeBand{
		Lower: price * (1 - maxOTM),
		Upper: price * (1 - minOTM),
	}
}

// Contains reports whether strike lies inside the band (edges included)
func (b StrikeBand) Contains(strike float64) bool {
	return strike >= b.Lower-strikeTolerance && strike <= b.Upper+strikeTolerance
}

// Filter keeps the strikes inside the band, preserving order
func (b StrikeBand) Filter(strikes []float64) []float64 {
	var out []float64
	for _, k := range strikes {
		if b.Contains(k) {
			out = append(out, k)
		}
	}
	return out
}

func (b StrikeBand) String() string {
	return fmt.Sprintf("[%.2f, %.2f]", b.Lower, b.Upper)
}
