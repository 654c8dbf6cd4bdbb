package buyin

import (
	"errors"
	"fmt"
)

// ErrUnknownCriterion is wrapped by criterion lookups for names the ship
// does not track.
var ErrUnknownCriterion = errors.New("unknown criterion")

// MissingFitError reports a direct evaluation against a market the ship has
// no market-fit entry for. Absent fits are a modelling gap, not a zero:
// aggregate operations skip such pairs, but a direct ComputeBuyIn call
// surfaces them.
type MissingFitError struct {
	ShipID   string
	MarketID string
}

func (e MissingFitError) Error() string {
	return fmt.Sprintf("ship %q has no market fit for market %q", e.ShipID, e.MarketID)
}

// InvalidRangeError reports a quality, fit, or criterion value outside the
// engine's configured bounds.
type InvalidRangeError struct {
	Field string
	Name  string
	Value float64
	Min   float64
	Max   float64
}

func (e InvalidRangeError) Error() string {
	if e.Name != "" {
		return fmt.Sprintf("%s %q value %g outside range [%g, %g]", e.Field, e.Name, e.Value, e.Min, e.Max)
	}
	return fmt.Sprintf("%s value %g outside range [%g, %g]", e.Field, e.Value, e.Min, e.Max)
}

// Bounds configures the valid ranges enforced during evaluation.
type Bounds struct {
	QualityMin   float64
	QualityMax   float64
	FitMin       float64
	FitMax       float64
	CriterionMin float64
	CriterionMax float64
}

// DefaultBounds returns the standard ranges: quality and fits in [0, 1],
// criteria scored in [0, 10].
func DefaultBounds() Bounds {
	return Bounds{
		QualityMin:   0,
		QualityMax:   1,
		FitMin:       0,
		FitMax:       1,
		CriterionMin: 0,
		CriterionMax: 10,
	}
}

func (b Bounds) checkQuality(v float64) error {
	if v < b.QualityMin || v > b.QualityMax {
		return InvalidRangeError{Field: "quality", Value: v, Min: b.QualityMin, Max: b.QualityMax}
	}
	return nil
}

func (b Bounds) checkFit(field, name string, v float64) error {
	if v < b.FitMin || v > b.FitMax {
		return InvalidRangeError{Field: field, Name: name, Value: v, Min: b.FitMin, Max: b.FitMax}
	}
	return nil
}

func (b Bounds) checkCriterion(name string, v float64) error {
	if v < b.CriterionMin || v > b.CriterionMax {
		return InvalidRangeError{Field: "criterion", Name: name, Value: v, Min: b.CriterionMin, Max: b.CriterionMax}
	}
	return nil
}
