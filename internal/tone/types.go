package tone

import "fmt"

// #region direction
// Direction is the pragmatic intent of an utterance.
type Direction string

const (
	DirectionAssert   Direction = "assert"
	DirectionReveal   Direction = "reveal"
	DirectionApology  Direction = "apology"
	DirectionQuestion Direction = "question"
	DirectionRequest  Direction = "request"
	DirectionCommand  Direction = "command"
	DirectionWarning  Direction = "warning"
	DirectionTest     Direction = "test"
	DirectionDeny     Direction = "deny"
	DirectionJoke     Direction = "joke"
	DirectionOther    Direction = "other"
)

// Directions lists every direction in declaration order.
var Directions = []Direction{
	DirectionAssert, DirectionReveal, DirectionApology, DirectionQuestion,
	DirectionRequest, DirectionCommand, DirectionWarning, DirectionTest,
	DirectionDeny, DirectionJoke, DirectionOther,
}

// Valid reports whether d is one of the closed set of directions.
func (d Direction) Valid() bool {
	for _, known := range Directions {
		if d == known {
			return true
		}
	}
	return false
}

// #endregion direction

// #region vector
// Vector is the three-dimensional tone descriptor of an utterance.
type Vector struct {
	Tension     float64   `json:"tension" yaml:"tension" mapstructure:"tension" validate:"gte=0,lte=1"`
	Direction   Direction `json:"direction" yaml:"direction" mapstructure:"direction" validate:"required"`
	Rationality float64   `json:"rationality" yaml:"rationality" mapstructure:"rationality" validate:"gte=0,lte=1"`
}

// Validate checks ranges and the direction enumeration.
func (v Vector) Validate() error {
	if v.Tension < 0 || v.Tension > 1 {
		return fmt.Errorf("tension %.4f outside [0,1]", v.Tension)
	}
	if v.Rationality < 0 || v.Rationality > 1 {
		return fmt.Errorf("rationality %.4f outside [0,1]", v.Rationality)
	}
	if !v.Direction.Valid() {
		return fmt.Errorf("unknown direction %q", v.Direction)
	}
	return nil
}

func (v Vector) String() string {
	return fmt.Sprintf("T=%.2f S=%s R=%.2f", v.Tension, v.Direction, v.Rationality)
}

// #endregion vector

// #region delta
// Delta is the componentwise absolute difference between two vectors.
// Direction is the sincerity-table distance, not an enum subtraction.
type Delta struct {
	Tension     float64 `json:"tension"`
	Direction   float64 `json:"direction"`
	Rationality float64 `json:"rationality"`
}

// Mean averages the three dimensions.
func (d Delta) Mean() float64 {
	return (d.Tension + d.Direction + d.Rationality) / 3
}

// Dimension selects one axis of a Delta.
type Dimension string

const (
	DimTension     Dimension = "tension"
	DimDirection   Dimension = "direction"
	DimRationality Dimension = "rationality"
)

// Of returns the component of d on dimension dim.
func (d Delta) Of(dim Dimension) float64 {
	switch dim {
	case DimTension:
		return d.Tension
	case DimDirection:
		return d.Direction
	case DimRationality:
		return d.Rationality
	}
	return 0
}

// #endregion delta

// #region integrity-vector
// IntegrityVector reinterprets a tone vector as ethical signal.
type IntegrityVector struct {
	Truthfulness   float64 `json:"truthfulness"`
	Sincerity      float64 `json:"sincerity"`
	Responsibility float64 `json:"responsibility"`
}

func (iv IntegrityVector) String() string {
	return fmt.Sprintf("I<T:%.2f, S:%.2f, R:%.2f>", iv.Truthfulness, iv.Sincerity, iv.Responsibility)
}

// #endregion integrity-vector
