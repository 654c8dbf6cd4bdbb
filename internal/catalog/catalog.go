// Package catalog holds the reference data evaluations run against: the
// default readiness criteria, the known market segments with their weights
// and default compatibilities, and the markets built from them.
package catalog

import (
	"fmt"
	"strings"

	"github.com/zhafen/ship/internal/buyin"
)

// Catalog is an immutable bundle of criteria, segments, and markets.
// Accessors return copies, so a catalog can be shared freely across
// goroutines.
type Catalog struct {
	criteria      []string
	criticalValue float64
	segments      []buyin.Segment
	segmentsByID  map[string]buyin.Segment
	markets       []buyin.Market
	marketsByID   map[string]buyin.Market
}

// New validates and assembles a catalog. Every market membership must
// reference a declared segment; the canonical segment definition replaces
// whatever copy the membership carried, keeping weights and default
// compatibilities consistent.
func New(criteria []string, criticalValue float64, segments []buyin.Segment, markets []buyin.Market) (*Catalog, error) {
	c := &Catalog{
		criticalValue: criticalValue,
		segmentsByID:  make(map[string]buyin.Segment, len(segments)),
		marketsByID:   make(map[string]buyin.Market, len(markets)),
	}

	for _, name := range criteria {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		c.criteria = append(c.criteria, name)
	}

	for _, seg := range segments {
		seg.ID = strings.TrimSpace(seg.ID)
		if seg.ID == "" {
			return nil, fmt.Errorf("segment with empty id")
		}
		if _, exists := c.segmentsByID[seg.ID]; exists {
			return nil, fmt.Errorf("duplicate segment %q", seg.ID)
		}
		c.segmentsByID[seg.ID] = seg
		c.segments = append(c.segments, seg)
	}

	for _, market := range markets {
		market.ID = strings.TrimSpace(market.ID)
		if market.ID == "" {
			return nil, fmt.Errorf("market with empty id")
		}
		if _, exists := c.marketsByID[market.ID]; exists {
			return nil, fmt.Errorf("duplicate market %q", market.ID)
		}
		memberships := make([]buyin.Membership, 0, len(market.Memberships))
		for _, mem := range market.Memberships {
			canonical, ok := c.segmentsByID[mem.Segment.ID]
			if !ok {
				return nil, fmt.Errorf("market %q references unknown segment %q", market.ID, mem.Segment.ID)
			}
			memberships = append(memberships, buyin.Membership{Segment: canonical, Members: mem.Members})
		}
		market.Memberships = memberships
		c.marketsByID[market.ID] = market
		c.markets = append(c.markets, market)
	}

	return c, nil
}

// Criteria returns the default criterion names in catalog order.
func (c *Catalog) Criteria() []string {
	return append([]string(nil), c.criteria...)
}

// CriticalValue is the per-criterion score considered release-ready.
func (c *Catalog) CriticalValue() float64 {
	return c.criticalValue
}

// Segments returns the declared segments in catalog order.
func (c *Catalog) Segments() []buyin.Segment {
	return append([]buyin.Segment(nil), c.segments...)
}

// Segment looks up a segment by ID.
func (c *Catalog) Segment(id string) (buyin.Segment, bool) {
	seg, ok := c.segmentsByID[id]
	return seg, ok
}

// Markets returns the declared markets in catalog order, memberships
// included.
func (c *Catalog) Markets() []buyin.Market {
	out := make([]buyin.Market, len(c.markets))
	for i, market := range c.markets {
		out[i] = copyMarket(market)
	}
	return out
}

// Market looks up a market by ID.
func (c *Catalog) Market(id string) (buyin.Market, bool) {
	market, ok := c.marketsByID[id]
	if !ok {
		return buyin.Market{}, false
	}
	return copyMarket(market), true
}

// DefaultSegmentFits maps every segment ID to its default compatibility,
// the value the fleet fills in for ships without an explicit segment fit.
func (c *Catalog) DefaultSegmentFits() map[string]float64 {
	fits := make(map[string]float64, len(c.segments))
	for _, seg := range c.segments {
		fits[seg.ID] = seg.DefaultFit
	}
	return fits
}

func copyMarket(market buyin.Market) buyin.Market {
	memberships := append([]buyin.Membership(nil), market.Memberships...)
	return buyin.Market{ID: market.ID, Memberships: memberships}
}
