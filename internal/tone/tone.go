package tone

import (
	"fmt"
	"math"
)

// #region sincerity-table
// SincerityTable maps each direction to a sincerity score in [0,1].
// It is the only bridge between the direction enum and arithmetic.
type SincerityTable map[Direction]float64

// DefaultSincerityTable returns the baseline mapping.
func DefaultSincerityTable() SincerityTable {
	return SincerityTable{
		DirectionAssert:   0.9,
		DirectionReveal:   0.9,
		DirectionApology:  0.9,
		DirectionQuestion: 0.7,
		DirectionRequest:  0.7,
		DirectionCommand:  0.5,
		DirectionWarning:  0.5,
		DirectionTest:     0.3,
		DirectionDeny:     0.3,
		DirectionJoke:     0.2,
		DirectionOther:    0.6,
	}
}

// Validate checks that every direction is mapped into [0,1].
func (t SincerityTable) Validate() error {
	for _, d := range Directions {
		v, ok := t[d]
		if !ok {
			return fmt.Errorf("sincerity table missing direction %q", d)
		}
		if v < 0 || v > 1 {
			return fmt.Errorf("sincerity for %q is %.4f, outside [0,1]", d, v)
		}
	}
	return nil
}

// #endregion sincerity-table

// #region calculus
// Calculus performs stateless tone arithmetic against a sincerity table.
type Calculus struct {
	table SincerityTable
}

// NewCalculus creates a calculus. A nil table uses the default mapping;
// missing entries fall back to the default mapping per direction.
func NewCalculus(table SincerityTable) Calculus {
	merged := DefaultSincerityTable()
	for d, v := range table {
		merged[d] = v
	}
	return Calculus{table: merged}
}

// Default returns a calculus over DefaultSincerityTable.
func Default() Calculus {
	return NewCalculus(nil)
}

// Sincerity maps a direction to its numeric score. Unknown directions score
// like DirectionOther.
func (c Calculus) Sincerity(d Direction) float64 {
	if v, ok := c.table[d]; ok {
		return v
	}
	return c.table[DirectionOther]
}

// Delta returns |a - b| per dimension.
func (c Calculus) Delta(a, b Vector) Delta {
	return Delta{
		Tension:     math.Abs(a.Tension - b.Tension),
		Direction:   math.Abs(c.Sincerity(a.Direction) - c.Sincerity(b.Direction)),
		Rationality: math.Abs(a.Rationality - b.Rationality),
	}
}

// Integrity maps a tone vector to truthfulness, sincerity and responsibility.
// Truthfulness peaks at tension 0.5 and dips toward both extremes.
func (c Calculus) Integrity(v Vector) IntegrityVector {
	return IntegrityVector{
		Truthfulness:   clamp01(1.0 - math.Abs(v.Tension-0.5)*2),
		Sincerity:      c.Sincerity(v.Direction),
		Responsibility: clamp01(v.Rationality),
	}
}

// Nearest returns the direction whose sincerity is closest to score.
// Ties resolve to the earlier entry in Directions.
func (c Calculus) Nearest(score float64) Direction {
	best := DirectionOther
	bestDist := math.Inf(1)
	for _, d := range Directions {
		dist := math.Abs(c.Sincerity(d) - score)
		if dist < bestDist {
			best, bestDist = d, dist
		}
	}
	return best
}

// #endregion calculus

// #region embedding-mapping
// FromEmbedding derives a coarse tone vector from an embedding. Three-wide
// embeddings map directly onto the three dimensions; wider ones fold the first
// nine components through tanh. Used only when the caller supplies no tone.
func (c Calculus) FromEmbedding(emb []float32) Vector {
	if len(emb) == 3 {
		return Vector{
			Tension:     clamp01(float64(emb[0])),
			Direction:   c.Nearest(clamp01(float64(emb[1]))),
			Rationality: clamp01(float64(emb[2])),
		}
	}
	at := func(i int) float64 {
		if i < len(emb) {
			return float64(emb[i])
		}
		return 0
	}
	fold := func(sum float64) float64 {
		return clamp01(0.5 + math.Tanh(sum-1)/2)
	}
	return Vector{
		Tension:     fold(at(0) + at(1) + at(2)),
		Direction:   c.Nearest(fold(at(3) + at(4) + at(5))),
		Rationality: fold(at(6) + at(7) + at(8)),
	}
}

// #endregion embedding-mapping

// #region helpers
func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// #endregion helpers
