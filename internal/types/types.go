// Package types defines the request and response bodies of the HTTP API.
package types

import (
	"fmt"
	"time"

	"github.com/zhafen/ship/internal/buyin"
	"github.com/zhafen/ship/internal/schedule"
)

// EvaluateRequest carries a ship plus optional inline markets and segments.
// When Markets is empty the server evaluates against the default catalog.
type EvaluateRequest struct {
	Ship    buyin.Ship     `json:"ship" binding:"required"`
	Markets []buyin.Market `json:"markets,omitempty"`
}

// EvaluateResponse is the full buy-in landscape for one evaluation.
type EvaluateResponse struct {
	EvaluationID string          `json:"evaluation_id"`
	Ship         string          `json:"ship"`
	Landscape    buyin.Landscape `json:"landscape"`
	GeneratedAt  time.Time       `json:"generated_at"`
}

// LeverSelector names a single lever. Kind is one of "quality",
// "market_fit", "segment_fit", or "criterion"; Name is empty for quality.
type LeverSelector struct {
	Kind string `json:"kind" binding:"required"`
	Name string `json:"name,omitempty"`
}

// Parse maps the wire kind to the engine's lever kind.
func (ls LeverSelector) Parse() (buyin.LeverKind, error) {
	switch ls.Kind {
	case "quality":
		return buyin.LeverQuality, nil
	case "market_fit":
		return buyin.LeverMarketFit, nil
	case "segment_fit":
		return buyin.LeverSegmentFit, nil
	case "criterion":
		return buyin.LeverCriterion, nil
	default:
		return 0, fmt.Errorf("unknown lever kind %q", ls.Kind)
	}
}

// GradientRequest asks for the buy-in derivative with respect to one lever.
type GradientRequest struct {
	Ship    buyin.Ship     `json:"ship" binding:"required"`
	Markets []buyin.Market `json:"markets,omitempty"`
	Lever   LeverSelector  `json:"lever" binding:"required"`
}

// GradientResponse pairs the requested lever with its derivative.
type GradientResponse struct {
	Ship       string        `json:"ship"`
	Lever      LeverSelector `json:"lever"`
	Derivative float64       `json:"derivative"`
}

// RankRequest asks for every lever of a ship ranked by derivative
// magnitude.
type RankRequest struct {
	Ship    buyin.Ship     `json:"ship" binding:"required"`
	Markets []buyin.Market `json:"markets,omitempty"`
}

// RankResponse lists ranked levers plus the single best one.
type RankResponse struct {
	Ship               string             `json:"ship"`
	Levers             []buyin.LeverScore `json:"levers"`
	Top                buyin.LeverScore   `json:"top"`
	DiminishingReturns bool               `json:"diminishing_returns"`
}

// ConstructShipRequest registers a new ship in the fleet.
type ConstructShipRequest struct {
	ID            string   `json:"id" binding:"required"`
	Name          string   `json:"name,omitempty"`
	Description   string   `json:"description,omitempty"`
	Category      string   `json:"category,omitempty"`
	ExtraCriteria []string `json:"extra_criteria,omitempty"`
}

// CriteriaRequest merges criterion scores into a fleet ship.
type CriteriaRequest struct {
	Criteria map[string]float64 `json:"criteria" binding:"required"`
}

// FitsRequest merges segment or market fits into a fleet ship.
type FitsRequest struct {
	Fits map[string]float64 `json:"fits" binding:"required"`
}

// RenameRequest gives a fleet ship a new ID.
type RenameRequest struct {
	NewID string `json:"new_id" binding:"required"`
}

// ScheduleRequest is the wire form of a work schedule. Durations are Go
// duration strings ("45m", "1h30m").
type ScheduleRequest struct {
	Activity     string                   `json:"activity"`
	Priority     float64                  `json:"priority"`
	Session      string                   `json:"session" binding:"required"`
	Rest         string                   `json:"rest"`
	Daily        string                   `json:"daily" binding:"required"`
	WeeklyTarget string                   `json:"weekly_target"`
	DaysPerWeek  float64                  `json:"days_per_week"`
	Start        string                   `json:"start"`
	Domain       map[string]DurationRange `json:"domain,omitempty"`
	Step         string                   `json:"step,omitempty"` // profile sampling step
}

// DurationRange bounds one schedule parameter.
type DurationRange struct {
	Min string `json:"min"`
	Max string `json:"max"`
}

func parseDuration(field, value string) (time.Duration, error) {
	if value == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid duration for %s: %q", field, value)
	}
	return d, nil
}

// Schedule converts the wire form into the domain schedule.
func (sr ScheduleRequest) Schedule() (schedule.Schedule, error) {
	s := schedule.Schedule{
		Activity:    sr.Activity,
		Priority:    sr.Priority,
		DaysPerWeek: sr.DaysPerWeek,
		Start:       sr.Start,
	}

	var err error
	if s.Session, err = parseDuration("session", sr.Session); err != nil {
		return schedule.Schedule{}, err
	}
	if s.Rest, err = parseDuration("rest", sr.Rest); err != nil {
		return schedule.Schedule{}, err
	}
	if s.Daily, err = parseDuration("daily", sr.Daily); err != nil {
		return schedule.Schedule{}, err
	}
	if s.WeeklyTarget, err = parseDuration("weekly_target", sr.WeeklyTarget); err != nil {
		return schedule.Schedule{}, err
	}

	if len(sr.Domain) > 0 {
		s.Domain = make(map[string]schedule.Range, len(sr.Domain))
		for name, bounds := range sr.Domain {
			min, err := parseDuration(name+" domain min", bounds.Min)
			if err != nil {
				return schedule.Schedule{}, err
			}
			max, err := parseDuration(name+" domain max", bounds.Max)
			if err != nil {
				return schedule.Schedule{}, err
			}
			s.Domain[name] = schedule.Range{Min: min, Max: max}
		}
	}

	return s, nil
}

// ProfileStep parses the sampling step, zero when unset.
func (sr ScheduleRequest) ProfileStep() (time.Duration, error) {
	return parseDuration("step", sr.Step)
}

// ScheduleValidateResponse lists a schedule's constraint violations.
type ScheduleValidateResponse struct {
	Activity   string   `json:"activity"`
	Feasible   bool     `json:"feasible"`
	Violations []string `json:"violations"`
}

// SchedulePoint is one sample of the daily priority profile, clock as a
// duration string from midnight.
type SchedulePoint struct {
	Clock    string  `json:"clock"`
	Priority float64 `json:"priority"`
}

// ScheduleProfileResponse samples the activity's priority across a day.
type ScheduleProfileResponse struct {
	Activity string          `json:"activity"`
	Points   []SchedulePoint `json:"points"`
}
