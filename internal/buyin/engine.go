package buyin

// Engine evaluates buy-in and its partial derivatives over immutable
// market/segment/ship snapshots. It holds configuration only; no state
// survives between calls, so a single engine is safe for concurrent use.
type Engine struct {
	bounds Bounds
	damped bool
}

// Option configures an Engine.
type Option func(*Engine)

// WithBounds overrides the valid ranges for quality, fit, and criterion
// values.
func WithBounds(b Bounds) Option {
	return func(e *Engine) { e.bounds = b }
}

// WithDiminishingReturns scales every derivative by (1 - X) for the lever's
// current value X, converting dB/dX into dB/dt under dX/dt = 1 - X: the
// closer a lever sits to its ceiling, the less a unit of effort moves it.
func WithDiminishingReturns() Option {
	return func(e *Engine) { e.damped = true }
}

// NewEngine returns an engine with DefaultBounds unless overridden.
func NewEngine(opts ...Option) *Engine {
	e := &Engine{bounds: DefaultBounds()}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// quality validates and returns the ship's effective quality. Ships with
// recorded criteria are validated criterion-by-criterion; ships without are
// validated on the explicit quality value.
func (e *Engine) quality(ship Ship) (float64, error) {
	if len(ship.Criteria) == 0 {
		if err := e.bounds.checkQuality(ship.Quality); err != nil {
			return 0, err
		}
		return ship.Quality, nil
	}
	for _, name := range ship.criteriaNames() {
		if err := e.bounds.checkCriterion(name, ship.Criteria[name]); err != nil {
			return 0, err
		}
	}
	return ship.EffectiveQuality(), nil
}

// audience computes sum_i n_i * b_i * f_i over the market's memberships.
// Segments the ship has no fit entry for contribute nothing.
func (e *Engine) audience(ship Ship, market Market) (float64, error) {
	sum := 0.0
	for _, mem := range market.Memberships {
		f, ok := ship.SegmentFit[mem.Segment.ID]
		if !ok {
			continue
		}
		if err := e.bounds.checkFit("segment fit", mem.Segment.ID, f); err != nil {
			return 0, err
		}
		sum += mem.Members * mem.Segment.Value * f
	}
	return sum, nil
}

// SegmentBuyIn estimates the buy-in from one representative member of a
// segment: B_ik = q_k * b_i * f_ik. A ship without a fit entry for the
// segment yields 0.
func (e *Engine) SegmentBuyIn(ship Ship, segment Segment) (float64, error) {
	q, err := e.quality(ship)
	if err != nil {
		return 0, err
	}
	f, ok := ship.SegmentFit[segment.ID]
	if !ok {
		return 0, nil
	}
	if err := e.bounds.checkFit("segment fit", segment.ID, f); err != nil {
		return 0, err
	}
	return q * segment.Value * f, nil
}

// ComputeBuyIn estimates the buy-in from sending the ship to one market:
//
//	B = F(M,S) * q(S) * sum_i n(m_i,M) * b(m_i) * f(m_i,S)
//
// A ship with no market-fit entry for the market is a configuration gap and
// returns MissingFitError rather than a silent zero.
func (e *Engine) ComputeBuyIn(ship Ship, market Market) (float64, error) {
	F, ok := ship.MarketFit[market.ID]
	if !ok {
		return 0, MissingFitError{ShipID: ship.ID, MarketID: market.ID}
	}
	if err := e.bounds.checkFit("market fit", market.ID, F); err != nil {
		return 0, err
	}
	q, err := e.quality(ship)
	if err != nil {
		return 0, err
	}
	sum, err := e.audience(ship, market)
	if err != nil {
		return 0, err
	}
	return F * q * sum, nil
}

// ComputeTotalBuyIn sums ComputeBuyIn over every (ship, market) pair the
// ship has a market-fit entry for. Pairs without an entry are skipped, so
// the total over one ship equals the sum of its per-market evaluations.
// Summation order carries no bit-exactness guarantee.
func (e *Engine) ComputeTotalBuyIn(ships []Ship, markets []Market) (float64, error) {
	total := 0.0
	for _, ship := range ships {
		for _, market := range markets {
			if _, ok := ship.MarketFit[market.ID]; !ok {
				continue
			}
			b, err := e.ComputeBuyIn(ship, market)
			if err != nil {
				return 0, err
			}
			total += b
		}
	}
	return total, nil
}

// Landscape reports the ship's full buy-in surface over the provided
// markets: effective quality, total buy-in, raw criteria values, per-market
// buy-in (markets the ship has a fit entry for), and per-segment buy-in for
// every segment the markets contain.
func (e *Engine) Landscape(ship Ship, markets []Market) (Landscape, error) {
	q, err := e.quality(ship)
	if err != nil {
		return Landscape{}, err
	}
	total, err := e.ComputeTotalBuyIn([]Ship{ship}, markets)
	if err != nil {
		return Landscape{}, err
	}

	l := Landscape{
		Quality:  q,
		BuyIn:    total,
		Markets:  make(map[string]float64),
		Segments: make(map[string]float64),
	}
	if len(ship.Criteria) > 0 {
		l.Criteria = make(map[string]float64, len(ship.Criteria))
		for name, c := range ship.Criteria {
			l.Criteria[name] = c
		}
	}
	for _, market := range markets {
		if _, ok := ship.MarketFit[market.ID]; ok {
			b, err := e.ComputeBuyIn(ship, market)
			if err != nil {
				return Landscape{}, err
			}
			l.Markets[market.ID] = b
		}
		for _, mem := range market.Memberships {
			if _, done := l.Segments[mem.Segment.ID]; done {
				continue
			}
			b, err := e.SegmentBuyIn(ship, mem.Segment)
			if err != nil {
				return Landscape{}, err
			}
			l.Segments[mem.Segment.ID] = b
		}
	}
	return l, nil
}
