package buyin

import (
	"fmt"
	"math"
	"sort"
)

// NotEnoughInfo names the sentinel lever TopLever returns for a ship with
// nothing actionable recorded.
const NotEnoughInfo = "not enough info"

// damp applies the diminishing-returns factor (1 - current) when the engine
// was built WithDiminishingReturns.
func (e *Engine) damp(derivative, current float64) float64 {
	if !e.damped {
		return derivative
	}
	return derivative * (1 - current)
}

// fitWeightedAudience computes sum_j F_jk * sum_i n_ij * b_i * f_ik over the
// markets the ship has a fit entry for: the total buy-in with quality
// factored out.
func (e *Engine) fitWeightedAudience(ship Ship, markets []Market) (float64, error) {
	sum := 0.0
	for _, market := range markets {
		F, ok := ship.MarketFit[market.ID]
		if !ok {
			continue
		}
		if err := e.bounds.checkFit("market fit", market.ID, F); err != nil {
			return 0, err
		}
		a, err := e.audience(ship, market)
		if err != nil {
			return 0, err
		}
		sum += F * a
	}
	return sum, nil
}

// GradientQuality returns dB/dq = sum_j F_jk * sum_i n_ij * b_i * f_ik,
// the total buy-in evaluated with q = 1.
func (e *Engine) GradientQuality(ship Ship, markets []Market) (float64, error) {
	if ship.IsHeld(LeverQuality, "") {
		return 0, nil
	}
	d, err := e.fitWeightedAudience(ship, markets)
	if err != nil {
		return 0, err
	}
	if e.damped {
		q, err := e.quality(ship)
		if err != nil {
			return 0, err
		}
		d = e.damp(d, q)
	}
	return d, nil
}

// GradientMarketFit returns dB/dF = q_k * sum_i n_ij * b_i * f_ik. The
// derivative is defined whether or not the ship already carries a fit entry
// for the market; for a ship that does not, it prices entering the market.
func (e *Engine) GradientMarketFit(ship Ship, market Market) (float64, error) {
	if ship.IsHeld(LeverMarketFit, market.ID) {
		return 0, nil
	}
	q, err := e.quality(ship)
	if err != nil {
		return 0, err
	}
	a, err := e.audience(ship, market)
	if err != nil {
		return 0, err
	}
	return e.damp(q*a, ship.MarketFit[market.ID]), nil
}

// GradientSegmentFit returns dB/df = q_k * b_i * sum_j n_ij * F_jk, summing
// over the provided markets that both contain the segment and appear in the
// ship's fit map.
func (e *Engine) GradientSegmentFit(ship Ship, segment Segment, markets []Market) (float64, error) {
	if ship.IsHeld(LeverSegmentFit, segment.ID) {
		return 0, nil
	}
	q, err := e.quality(ship)
	if err != nil {
		return 0, err
	}
	sum := 0.0
	for _, market := range markets {
		F, ok := ship.MarketFit[market.ID]
		if !ok {
			continue
		}
		if err := e.bounds.checkFit("market fit", market.ID, F); err != nil {
			return 0, err
		}
		sum += market.Members(segment.ID) * F
	}
	return e.damp(q*segment.Value*sum, ship.SegmentFit[segment.ID]), nil
}

// GradientCriterion returns the derivative of total buy-in with respect to
// the scaled criterion value c/10:
//
//	dB/d(c/10) = prod_{m' != m} (c_{m'}/10) * sum_j F_jk * sum_i n_ij * b_i * f_ik
//
// The factored form stays finite at c = 0, where the raw B/(c/10) quotient
// degenerates; it is 0 exactly when a second criterion is also 0.
func (e *Engine) GradientCriterion(ship Ship, name string, markets []Market) (float64, error) {
	c, ok := ship.Criteria[name]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnknownCriterion, name)
	}
	if ship.IsHeld(LeverCriterion, name) {
		return 0, nil
	}
	partial := 1.0
	for _, other := range ship.criteriaNames() {
		if err := e.bounds.checkCriterion(other, ship.Criteria[other]); err != nil {
			return 0, err
		}
		if other == name {
			continue
		}
		partial *= ship.Criteria[other] / 10
	}
	base, err := e.fitWeightedAudience(ship, markets)
	if err != nil {
		return 0, err
	}
	return e.damp(partial*base, c/10), nil
}

// RankLevers scores every lever of the ship (quality, each criterion, each
// provided market's fit, and each segment fit the ship records or a market
// contains) and returns them sorted descending by derivative magnitude.
// Ties break by lever category (quality, market fit, segment fit,
// criterion), then by name. The slice is a finite, restartable sequence:
// callers re-range it freely.
func (e *Engine) RankLevers(ship Ship, markets []Market) ([]LeverScore, error) {
	scores := make([]LeverScore, 0, 1+len(ship.Criteria)+len(markets)+len(ship.SegmentFit))

	dq, err := e.GradientQuality(ship, markets)
	if err != nil {
		return nil, err
	}
	scores = append(scores, LeverScore{Lever: Lever{Kind: LeverQuality}, Value: dq})

	for _, name := range ship.criteriaNames() {
		dc, err := e.GradientCriterion(ship, name, markets)
		if err != nil {
			return nil, err
		}
		scores = append(scores, LeverScore{Lever: Lever{Kind: LeverCriterion, Name: name}, Value: dc})
	}

	for _, market := range markets {
		dF, err := e.GradientMarketFit(ship, market)
		if err != nil {
			return nil, err
		}
		scores = append(scores, LeverScore{Lever: Lever{Kind: LeverMarketFit, Name: market.ID}, Value: dF})
	}

	for _, segment := range leverSegments(ship, markets) {
		df, err := e.GradientSegmentFit(ship, segment, markets)
		if err != nil {
			return nil, err
		}
		scores = append(scores, LeverScore{Lever: Lever{Kind: LeverSegmentFit, Name: segment.ID}, Value: df})
	}

	sort.Slice(scores, func(i, j int) bool {
		ai, aj := math.Abs(scores[i].Value), math.Abs(scores[j].Value)
		if ai != aj {
			return ai > aj
		}
		if scores[i].Lever.Kind != scores[j].Lever.Kind {
			return scores[i].Lever.Kind < scores[j].Lever.Kind
		}
		return scores[i].Lever.Name < scores[j].Lever.Name
	})
	return scores, nil
}

// TopLever returns the named lever with the greatest derivative magnitude.
// The quality lever is excluded: it is moved through its criteria, not
// directly. A ship with no named levers at all yields the NotEnoughInfo
// sentinel with a zero derivative.
func (e *Engine) TopLever(ship Ship, markets []Market) (LeverScore, error) {
	ranked, err := e.RankLevers(ship, markets)
	if err != nil {
		return LeverScore{}, err
	}
	for _, score := range ranked {
		if score.Lever.Kind == LeverQuality {
			continue
		}
		return score, nil
	}
	return LeverScore{Lever: Lever{Name: NotEnoughInfo}, Value: 0}, nil
}

// leverSegments enumerates the segments carrying a segment-fit lever:
// every segment a provided market contains, in market order, then any
// segment the ship records a fit for that no market mentions. The latter
// contribute a zero derivative (no market supplies members), so a stub
// segment suffices for them.
func leverSegments(ship Ship, markets []Market) []Segment {
	seen := make(map[string]bool)
	segments := make([]Segment, 0, len(ship.SegmentFit))
	for _, market := range markets {
		for _, mem := range market.Memberships {
			if seen[mem.Segment.ID] {
				continue
			}
			seen[mem.Segment.ID] = true
			segments = append(segments, mem.Segment)
		}
	}
	orphans := make([]string, 0, len(ship.SegmentFit))
	for id := range ship.SegmentFit {
		if !seen[id] {
			orphans = append(orphans, id)
		}
	}
	sort.Strings(orphans)
	for _, id := range orphans {
		segments = append(segments, Segment{ID: id})
	}
	return segments
}
