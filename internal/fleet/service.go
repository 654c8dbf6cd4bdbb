// Package fleet keeps the in-memory registry of ships under evaluation:
// construction, scoring, market placement, launches, rankings, and the
// change journal behind them.
package fleet

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/zhafen/ship/internal/buyin"
	"github.com/zhafen/ship/internal/catalog"
)

var (
	// ErrShipExists reports a construction with an ID already in the fleet.
	ErrShipExists = errors.New("ship already exists")
	// ErrShipNotFound reports an operation on an unknown ship.
	ErrShipNotFound = errors.New("ship not found")
)

// Service is the fleet registry. All ship state lives behind the mutex;
// accessors hand out copies, never internal pointers.
type Service struct {
	mu      sync.RWMutex
	catalog *catalog.Catalog
	engine  *buyin.Engine
	ships   map[string]*buyin.Ship
	order   []string

	journal     *journal
	rankings    *rankingsCache
	rankingsTTL time.Duration
}

// Option configures a Service.
type Option func(*Service)

// WithRankingsTTL overrides the rankings cache TTL (default 15 minutes).
func WithRankingsTTL(ttl time.Duration) Option {
	return func(s *Service) { s.rankingsTTL = ttl }
}

// NewService creates a fleet over the given catalog and engine. The rankings
// cache is built only after the options run.
func NewService(cat *catalog.Catalog, engine *buyin.Engine, opts ...Option) *Service {
	s := &Service{
		catalog:     cat,
		engine:      engine,
		ships:       make(map[string]*buyin.Ship),
		journal:     newJournal(),
		rankingsTTL: 15 * time.Minute,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.rankings = newRankingsCache(s.rankingsTTL)
	return s
}

// Close stops the background refresh goroutine, if one was started.
func (s *Service) Close() {
	s.rankings.stopAutoRefresh()
}

// ConstructParams describes a new ship. ExtraCriteria extends the catalog's
// default criteria set for this ship only.
type ConstructParams struct {
	ID            string      `json:"id"`
	Attrs         buyin.Attrs `json:"attrs"`
	ExtraCriteria []string    `json:"extra_criteria,omitempty"`
}

// ConstructShip registers a new ship. Its criteria set is the union of the
// catalog defaults and the requested extras, all starting at 0.
func (s *Service) ConstructShip(params ConstructParams) (buyin.Ship, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.ships[params.ID]; exists {
		return buyin.Ship{}, fmt.Errorf("%w: %q", ErrShipExists, params.ID)
	}
	if params.ID == "" {
		return buyin.Ship{}, fmt.Errorf("ship id must not be empty")
	}

	criteria := make(map[string]float64)
	for _, name := range s.catalog.Criteria() {
		criteria[name] = 0
	}
	for _, name := range params.ExtraCriteria {
		criteria[name] = 0
	}

	ship := &buyin.Ship{
		ID:         params.ID,
		Attrs:      params.Attrs,
		Criteria:   criteria,
		MarketFit:  make(map[string]float64),
		SegmentFit: make(map[string]float64),
	}
	s.ships[ship.ID] = ship
	s.order = append(s.order, ship.ID)

	s.record(ship.ID, "constructed", fmt.Sprintf("ship %q constructed with %d criteria", ship.ID, len(criteria)))
	s.rankings.invalidate()

	slog.Info("Ship constructed", "ship", ship.ID, "criteria", len(criteria))
	return copyShip(ship), nil
}

// Ship returns a copy of the named ship.
func (s *Service) Ship(id string) (buyin.Ship, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ship, ok := s.ships[id]
	if !ok {
		return buyin.Ship{}, fmt.Errorf("%w: %q", ErrShipNotFound, id)
	}
	return copyShip(ship), nil
}

// Ships returns copies of every ship in construction order.
func (s *Service) Ships() []buyin.Ship {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]buyin.Ship, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, copyShip(s.ships[id]))
	}
	return out
}

// EvaluateShip merges criterion scores into the ship and returns its
// effective quality. Held criteria keep their current value.
func (s *Service) EvaluateShip(id string, criteria map[string]float64) (float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ship, ok := s.ships[id]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrShipNotFound, id)
	}

	changed := 0
	for name, value := range criteria {
		if ship.IsHeld(buyin.LeverCriterion, name) {
			continue
		}
		ship.Criteria[name] = value
		changed++
	}
	if changed > 0 {
		s.record(id, "criteria", fmt.Sprintf("%d criteria updated", changed))
		s.rankings.invalidate()
	}

	q := ship.EffectiveQuality()
	slog.Info("Ship evaluated", "ship", id, "quality", q, "updated", changed)
	return q, nil
}

// EvaluateMarketSegments merges explicit segment fits and fills every
// catalog segment the ship still lacks with that segment's default
// compatibility. Held segment fits keep their current value. The resulting
// fit map is returned.
func (s *Service) EvaluateMarketSegments(id string, fits map[string]float64) (map[string]float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ship, ok := s.ships[id]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrShipNotFound, id)
	}

	changed := 0
	for segID, value := range fits {
		if ship.IsHeld(buyin.LeverSegmentFit, segID) {
			continue
		}
		ship.SegmentFit[segID] = value
		changed++
	}
	for segID, defaultFit := range s.catalog.DefaultSegmentFits() {
		if _, ok := ship.SegmentFit[segID]; ok {
			continue
		}
		ship.SegmentFit[segID] = defaultFit
		changed++
	}
	if changed > 0 {
		s.record(id, "segment_fit", fmt.Sprintf("%d segment fits updated", changed))
		s.rankings.invalidate()
	}

	slog.Info("Market segments evaluated", "ship", id, "segments", len(ship.SegmentFit))
	return copyFloatMap(ship.SegmentFit), nil
}

// SendToMarket merges market-fit entries and returns the resulting map.
func (s *Service) SendToMarket(id string, fits map[string]float64) (map[string]float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ship, ok := s.ships[id]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrShipNotFound, id)
	}

	for marketID, value := range fits {
		if ship.IsHeld(buyin.LeverMarketFit, marketID) {
			continue
		}
		ship.MarketFit[marketID] = value
	}
	if len(fits) > 0 {
		s.record(id, "market_fit", fmt.Sprintf("%d market fits updated", len(fits)))
		s.rankings.invalidate()
	}

	slog.Info("Ship sent to market", "ship", id, "markets", len(ship.MarketFit))
	return copyFloatMap(ship.MarketFit), nil
}

// RenameShip changes a ship's ID in place.
func (s *Service) RenameShip(id, newID string) error {
	if newID == "" {
		return fmt.Errorf("new ship id must not be empty")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	ship, ok := s.ships[id]
	if !ok {
		return fmt.Errorf("%w: %q", ErrShipNotFound, id)
	}
	if id == newID {
		return nil
	}
	if _, exists := s.ships[newID]; exists {
		return fmt.Errorf("%w: %q", ErrShipExists, newID)
	}

	delete(s.ships, id)
	ship.ID = newID
	s.ships[newID] = ship
	for i, oid := range s.order {
		if oid == id {
			s.order[i] = newID
			break
		}
	}

	s.record(newID, "renamed", fmt.Sprintf("ship %q renamed to %q", id, newID))
	s.rankings.invalidate()
	return nil
}

// TransferShip moves a ship to another fleet, optionally under a new ID.
// An empty newID keeps the current one. Transferring within the same fleet
// is a rename.
func (s *Service) TransferShip(id string, dst *Service, newID string) error {
	if newID == "" {
		newID = id
	}
	if dst == nil || dst == s {
		return s.RenameShip(id, newID)
	}

	// Never hold both fleet locks at once: detach, then attach, and put
	// the ship back if the destination refuses it.
	s.mu.Lock()
	ship, ok := s.ships[id]
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("%w: %q", ErrShipNotFound, id)
	}
	delete(s.ships, id)
	pos := len(s.order)
	for i, oid := range s.order {
		if oid == id {
			pos = i
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	s.mu.Unlock()

	dst.mu.Lock()
	_, exists := dst.ships[newID]
	if !exists {
		moved := copyShip(ship)
		moved.ID = newID
		dst.ships[newID] = &moved
		dst.order = append(dst.order, newID)
		dst.record(newID, "transferred", fmt.Sprintf("ship %q transferred in", newID))
		dst.rankings.invalidate()
	}
	dst.mu.Unlock()

	s.mu.Lock()
	if exists {
		// The id may have been reused while the ship was detached.
		if _, taken := s.ships[id]; taken {
			s.mu.Unlock()
			slog.Error("Refused transfer could not be restored, id reused", "ship", id)
			return fmt.Errorf("%w: %q", ErrShipExists, newID)
		}
		s.ships[id] = ship
		if pos > len(s.order) {
			pos = len(s.order)
		}
		s.order = append(s.order[:pos], append([]string{id}, s.order[pos:]...)...)
		s.mu.Unlock()
		return fmt.Errorf("%w: %q", ErrShipExists, newID)
	}
	s.record(id, "transferred", fmt.Sprintf("ship %q transferred out", id))
	s.rankings.invalidate()
	s.mu.Unlock()
	return nil
}

// LaunchShip marks a ship as launched: every criterion and segment-fit
// lever is pinned constant, leaving market fit as the only movable lever.
// A non-nil dst also transfers the ship to that fleet.
func (s *Service) LaunchShip(id string, dst *Service) error {
	s.mu.Lock()
	ship, ok := s.ships[id]
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("%w: %q", ErrShipNotFound, id)
	}

	for name := range ship.Criteria {
		if !ship.IsHeld(buyin.LeverCriterion, name) {
			ship.Held = append(ship.Held, buyin.Lever{Kind: buyin.LeverCriterion, Name: name})
		}
	}
	for segID := range ship.SegmentFit {
		if !ship.IsHeld(buyin.LeverSegmentFit, segID) {
			ship.Held = append(ship.Held, buyin.Lever{Kind: buyin.LeverSegmentFit, Name: segID})
		}
	}
	if !ship.IsHeld(buyin.LeverQuality, "") {
		ship.Held = append(ship.Held, buyin.Lever{Kind: buyin.LeverQuality})
	}

	s.record(id, "launched", fmt.Sprintf("ship %q launched, %d levers held", id, len(ship.Held)))
	s.rankings.invalidate()
	s.mu.Unlock()

	slog.Info("Ship launched", "ship", id)

	if dst != nil && dst != s {
		return s.TransferShip(id, dst, "")
	}
	return nil
}

// BuyIn reports the ship's full buy-in landscape over the catalog markets.
func (s *Service) BuyIn(id string) (buyin.Landscape, error) {
	ship, err := s.Ship(id)
	if err != nil {
		return buyin.Landscape{}, err
	}
	return s.engine.Landscape(ship, s.catalog.Markets())
}

// GradientReport collects every partial derivative of a ship's buy-in.
type GradientReport struct {
	Quality  float64            `json:"quality"`
	Markets  map[string]float64 `json:"markets"`
	Segments map[string]float64 `json:"segments"`
	Criteria map[string]float64 `json:"criteria,omitempty"`
}

// Gradients evaluates every lever derivative over the catalog markets.
func (s *Service) Gradients(id string) (GradientReport, error) {
	ship, err := s.Ship(id)
	if err != nil {
		return GradientReport{}, err
	}
	markets := s.catalog.Markets()

	report := GradientReport{
		Markets:  make(map[string]float64, len(markets)),
		Segments: make(map[string]float64),
	}
	if report.Quality, err = s.engine.GradientQuality(ship, markets); err != nil {
		return GradientReport{}, err
	}
	for _, market := range markets {
		d, err := s.engine.GradientMarketFit(ship, market)
		if err != nil {
			return GradientReport{}, err
		}
		report.Markets[market.ID] = d
	}
	for _, segment := range s.catalog.Segments() {
		d, err := s.engine.GradientSegmentFit(ship, segment, markets)
		if err != nil {
			return GradientReport{}, err
		}
		report.Segments[segment.ID] = d
	}
	if len(ship.Criteria) > 0 {
		report.Criteria = make(map[string]float64, len(ship.Criteria))
		for name := range ship.Criteria {
			d, err := s.engine.GradientCriterion(ship, name, markets)
			if err != nil {
				return GradientReport{}, err
			}
			report.Criteria[name] = d
		}
	}
	return report, nil
}

// RankLevers ranks the ship's levers by derivative magnitude over the
// catalog markets.
func (s *Service) RankLevers(id string) ([]buyin.LeverScore, error) {
	ship, err := s.Ship(id)
	if err != nil {
		return nil, err
	}
	return s.engine.RankLevers(ship, s.catalog.Markets())
}

// TopLever returns the single most effective named lever for the ship.
func (s *Service) TopLever(id string) (buyin.LeverScore, error) {
	ship, err := s.Ship(id)
	if err != nil {
		return buyin.LeverScore{}, err
	}
	return s.engine.TopLever(ship, s.catalog.Markets())
}

// ShipStatus summarizes a ship's readiness against the catalog's critical
// value.
type ShipStatus struct {
	Ship          buyin.Ship `json:"ship"`
	Quality       float64    `json:"quality"`
	BuyIn         float64    `json:"buy_in"`
	CriticalValue float64    `json:"critical_value"`
	Ready         bool       `json:"ready"`
}

// Status reports the ship with its quality, total buy-in, and whether every
// criterion has reached the catalog's critical value.
func (s *Service) Status(id string) (ShipStatus, error) {
	ship, err := s.Ship(id)
	if err != nil {
		return ShipStatus{}, err
	}
	total, err := s.engine.ComputeTotalBuyIn([]buyin.Ship{ship}, s.catalog.Markets())
	if err != nil {
		return ShipStatus{}, err
	}

	ready := len(ship.Criteria) > 0
	for _, value := range ship.Criteria {
		if value < s.catalog.CriticalValue() {
			ready = false
			break
		}
	}
	return ShipStatus{
		Ship:          ship,
		Quality:       ship.EffectiveQuality(),
		BuyIn:         total,
		CriticalValue: s.catalog.CriticalValue(),
		Ready:         ready,
	}, nil
}

// computeRankings builds the full rankings snapshot, skipping ships whose
// state fails validation rather than failing the whole board.
func (s *Service) computeRankings() *RankingsResponse {
	markets := s.catalog.Markets()
	ships := s.Ships()

	entries := make([]RankingEntry, 0, len(ships))
	for _, ship := range ships {
		total, err := s.engine.ComputeTotalBuyIn([]buyin.Ship{ship}, markets)
		if err != nil {
			slog.Warn("Skipping ship in rankings", "ship", ship.ID, "error", err)
			continue
		}
		top, err := s.engine.TopLever(ship, markets)
		if err != nil {
			slog.Warn("Skipping ship in rankings", "ship", ship.ID, "error", err)
			continue
		}
		entries = append(entries, RankingEntry{
			ShipID:   ship.ID,
			Name:     ship.Attrs.Name,
			Quality:  ship.EffectiveQuality(),
			BuyIn:    total,
			TopLever: top,
		})
	}

	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].BuyIn != entries[j].BuyIn {
			return entries[i].BuyIn > entries[j].BuyIn
		}
		return entries[i].ShipID < entries[j].ShipID
	})
	for i := range entries {
		entries[i].Rank = i + 1
	}

	return &RankingsResponse{
		Entries:     entries,
		Total:       len(entries),
		GeneratedAt: time.Now(),
	}
}

// Changelog returns the most recent journal records, newest first. A
// non-positive limit returns everything.
func (s *Service) Changelog(limit int) []Record {
	return s.journal.tail(limit)
}

// record appends a journal entry. Callers hold s.mu.
func (s *Service) record(shipID, field, detail string) {
	s.journal.append(shipID, field, detail)
}

func copyShip(ship *buyin.Ship) buyin.Ship {
	out := *ship
	out.Criteria = copyFloatMap(ship.Criteria)
	out.MarketFit = copyFloatMap(ship.MarketFit)
	out.SegmentFit = copyFloatMap(ship.SegmentFit)
	out.Held = append([]buyin.Lever(nil), ship.Held...)
	return out
}

func copyFloatMap(m map[string]float64) map[string]float64 {
	if m == nil {
		return nil
	}
	out := make(map[string]float64, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
