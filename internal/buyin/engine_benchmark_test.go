package buyin

import (
	"fmt"
	"testing"
)

// benchmarkModel builds a model large enough to exercise the summation hot
// path: 20 segments spread over 8 markets, one fully-fitted ship.
func benchmarkModel() (Ship, []Market) {
	segments := make([]Segment, 20)
	for i := range segments {
		segments[i] = Segment{ID: fmt.Sprintf("seg_%d", i), Value: float64(i%5) + 1}
	}

	markets := make([]Market, 8)
	for j := range markets {
		memberships := make([]Membership, 0, len(segments))
		for i, seg := range segments {
			memberships = append(memberships, Membership{
				Segment: seg,
				Members: float64((i*j)%40 + 1),
			})
		}
		markets[j] = Market{ID: fmt.Sprintf("market_%d", j), Memberships: memberships}
	}

	ship := Ship{
		ID:         "bench",
		Quality:    0.8,
		MarketFit:  make(map[string]float64, len(markets)),
		SegmentFit: make(map[string]float64, len(segments)),
	}
	for j, market := range markets {
		ship.MarketFit[market.ID] = 0.5 + float64(j%2)*0.5
	}
	for i, seg := range segments {
		ship.SegmentFit[seg.ID] = float64(i%10) / 10
	}
	return ship, markets
}

func BenchmarkComputeBuyIn(b *testing.B) {
	engine := NewEngine()
	ship, markets := benchmarkModel()

	b.ResetTimer()
	b.ReportAllocs()

	for i := 0; i < b.N; i++ {
		got, err := engine.ComputeBuyIn(ship, markets[i%len(markets)])
		if err != nil {
			b.Fatalf("evaluation failed: %v", err)
		}
		if got < 0 {
			b.Errorf("negative buy-in: %f", got)
		}
	}
}

func BenchmarkComputeTotalBuyIn(b *testing.B) {
	engine := NewEngine()
	ship, markets := benchmarkModel()
	ships := []Ship{ship}

	b.ResetTimer()
	b.ReportAllocs()

	for i := 0; i < b.N; i++ {
		if _, err := engine.ComputeTotalBuyIn(ships, markets); err != nil {
			b.Fatalf("evaluation failed: %v", err)
		}
	}
}

func BenchmarkRankLevers(b *testing.B) {
	engine := NewEngine()
	ship, markets := benchmarkModel()

	b.ResetTimer()
	b.ReportAllocs()

	for i := 0; i < b.N; i++ {
		ranked, err := engine.RankLevers(ship, markets)
		if err != nil {
			b.Fatalf("ranking failed: %v", err)
		}
		if len(ranked) == 0 {
			b.Error("empty ranking")
		}
	}
}

func BenchmarkRankLeversParallel(b *testing.B) {
	engine := NewEngine()
	ship, markets := benchmarkModel()

	b.ResetTimer()
	b.ReportAllocs()

	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			if _, err := engine.RankLevers(ship, markets); err != nil {
				b.Fatalf("ranking failed: %v", err)
			}
		}
	})
}
