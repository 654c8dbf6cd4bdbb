package buyin

import (
	"fmt"
	"sort"
)

// Segment is a market sub-population. Value is the intrinsic worth of a
// buy-in from a single member (b_i). DefaultFit is the compatibility
// assumed for a ship that has not recorded an explicit segment fit; it is
// applied by the fleet layer, never implicitly by the engine.
type Segment struct {
	ID         string  `json:"id"`
	Value      float64 `json:"value"`
	DefaultFit float64 `json:"default_fit,omitempty"`
}

// Membership binds a segment to a market with a member count (n_ij).
// Counts are per-market: the same segment may appear in several markets
// with different counts.
type Membership struct {
	Segment Segment `json:"segment"`
	Members float64 `json:"members"`
}

// Market is a collection of segment memberships evaluated as one audience.
type Market struct {
	ID          string       `json:"id"`
	Memberships []Membership `json:"memberships"`
}

// Members returns the membership count for a segment, or 0 when the market
// does not define one.
func (m Market) Members(segmentID string) float64 {
	for _, mem := range m.Memberships {
		if mem.Segment.ID == segmentID {
			return mem.Members
		}
	}
	return 0
}

// Contains reports whether the market defines a membership for the segment.
func (m Market) Contains(segmentID string) bool {
	for _, mem := range m.Memberships {
		if mem.Segment.ID == segmentID {
			return true
		}
	}
	return false
}

// Attrs carries descriptive ship metadata.
type Attrs struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Category    string `json:"category,omitempty"`
}

// Ship is a deliverable under evaluation. Quality is used directly when no
// criteria are recorded; otherwise effective quality is the Cobb-Douglas
// product of the scaled criteria. MarketFit maps market ID to F, SegmentFit
// maps segment ID to f. Held levers report a zero derivative.
type Ship struct {
	ID         string             `json:"id"`
	Attrs      Attrs              `json:"attrs"`
	Quality    float64            `json:"quality"`
	Criteria   map[string]float64 `json:"criteria,omitempty"`
	MarketFit  map[string]float64 `json:"market_fit"`
	SegmentFit map[string]float64 `json:"segment_fit"`
	Held       []Lever            `json:"held,omitempty"`
}

// EffectiveQuality returns prod(criteria/10) when criteria are recorded,
// otherwise the explicit Quality value. Criteria are scored 0-10, so one
// zero criterion zeroes the whole product.
func (s Ship) EffectiveQuality() float64 {
	if len(s.Criteria) == 0 {
		return s.Quality
	}
	q := 1.0
	for _, c := range s.Criteria {
		q *= c / 10
	}
	return q
}

// IsHeld reports whether the lever has been pinned constant.
func (s Ship) IsHeld(kind LeverKind, name string) bool {
	for _, h := range s.Held {
		if h.Kind == kind && h.Name == name {
			return true
		}
	}
	return false
}

// criteriaNames returns the ship's criterion names in sorted order.
func (s Ship) criteriaNames() []string {
	names := make([]string, 0, len(s.Criteria))
	for name := range s.Criteria {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// LeverKind orders lever categories for tie-breaking: quality first, then
// market fit, then segment fit, then criteria.
type LeverKind int

const (
	LeverQuality LeverKind = iota
	LeverMarketFit
	LeverSegmentFit
	LeverCriterion
)

func (k LeverKind) String() string {
	switch k {
	case LeverQuality:
		return "quality"
	case LeverMarketFit:
		return "market_fit"
	case LeverSegmentFit:
		return "segment_fit"
	case LeverCriterion:
		return "criterion"
	default:
		return "unknown"
	}
}

// MarshalText lets lever kinds render as their names in JSON.
func (k LeverKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText parses a lever kind from its name.
func (k *LeverKind) UnmarshalText(text []byte) error {
	switch string(text) {
	case "quality":
		*k = LeverQuality
	case "market_fit":
		*k = LeverMarketFit
	case "segment_fit":
		*k = LeverSegmentFit
	case "criterion":
		*k = LeverCriterion
	default:
		return fmt.Errorf("unknown lever kind %q", string(text))
	}
	return nil
}

// Lever identifies a controllable parameter. Name is empty for the quality
// lever, a market ID for market fit, a segment ID for segment fit, and a
// criterion name for criteria.
type Lever struct {
	Kind LeverKind `json:"kind"`
	Name string    `json:"name,omitempty"`
}

// LeverScore pairs a lever with its buy-in partial derivative.
type LeverScore struct {
	Lever Lever   `json:"lever"`
	Value float64 `json:"derivative"`
}

// Landscape is a full snapshot of a ship's buy-in surface: overall quality
// and total buy-in, plus the per-lever contributions behind them.
type Landscape struct {
	Quality  float64            `json:"quality"`
	BuyIn    float64            `json:"buy_in"`
	Criteria map[string]float64 `json:"criteria,omitempty"`
	Markets  map[string]float64 `json:"markets"`
	Segments map[string]float64 `json:"segments"`
}
