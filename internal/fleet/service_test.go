package fleet

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/zhafen/ship/internal/buyin"
	"github.com/zhafen/ship/internal/catalog"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// testCatalog builds a two-segment, one-market catalog with hand-checkable
// numbers: audience at full fits = 10*2 + 5*3 = 35.
func testCatalog(t *testing.T) *catalog.Catalog {
	t.Helper()

	segments := []buyin.Segment{
		{ID: "early-adopters", Value: 2, DefaultFit: 0.5},
		{ID: "mainstream", Value: 3, DefaultFit: 0.1},
	}
	markets := []buyin.Market{
		{ID: "north-sea", Memberships: []buyin.Membership{
			{Segment: segments[0], Members: 10},
			{Segment: segments[1], Members: 5},
		}},
	}

	cat, err := catalog.New([]string{"docs", "tests"}, 8, segments, markets)
	require.NoError(t, err)
	return cat
}

func newTestService(t *testing.T) *Service {
	t.Helper()
	svc := NewService(testCatalog(t), buyin.NewEngine())
	t.Cleanup(svc.Close)
	return svc
}

// rigShip constructs a ship with perfect criteria, default segment fits, and
// a full north-sea market fit: quality 1, audience 10*2*0.5 + 5*3*0.1 = 11.5.
func rigShip(t *testing.T, svc *Service, id string) {
	t.Helper()

	_, err := svc.ConstructShip(ConstructParams{ID: id})
	require.NoError(t, err)
	_, err = svc.EvaluateShip(id, map[string]float64{"docs": 10, "tests": 10})
	require.NoError(t, err)
	_, err = svc.EvaluateMarketSegments(id, nil)
	require.NoError(t, err)
	_, err = svc.SendToMarket(id, map[string]float64{"north-sea": 1})
	require.NoError(t, err)
}

func TestConstructShip(t *testing.T) {
	svc := newTestService(t)

	ship, err := svc.ConstructShip(ConstructParams{
		ID:            "gallant",
		Attrs:         buyin.Attrs{Name: "Gallant"},
		ExtraCriteria: []string{"docs", "novelty"},
	})
	require.NoError(t, err)

	assert.Equal(t, "gallant", ship.ID)
	assert.Equal(t, "Gallant", ship.Attrs.Name)
	// Catalog criteria plus the non-overlapping extra, all zeroed
	assert.Len(t, ship.Criteria, 3)
	assert.Equal(t, 0.0, ship.Criteria["novelty"])

	t.Run("duplicate id", func(t *testing.T) {
		_, err := svc.ConstructShip(ConstructParams{ID: "gallant"})
		assert.ErrorIs(t, err, ErrShipExists)
	})

	t.Run("empty id", func(t *testing.T) {
		_, err := svc.ConstructShip(ConstructParams{})
		assert.Error(t, err)
	})
}

func TestShipsPreserveConstructionOrder(t *testing.T) {
	svc := newTestService(t)

	for _, id := range []string{"first", "second", "third"} {
		_, err := svc.ConstructShip(ConstructParams{ID: id})
		require.NoError(t, err)
	}

	ships := svc.Ships()
	require.Len(t, ships, 3)
	assert.Equal(t, "first", ships[0].ID)
	assert.Equal(t, "third", ships[2].ID)
}

func TestEvaluateShip(t *testing.T) {
	svc := newTestService(t)
	_, err := svc.ConstructShip(ConstructParams{ID: "gallant"})
	require.NoError(t, err)

	q, err := svc.EvaluateShip("gallant", map[string]float64{"docs": 10, "tests": 5})
	require.NoError(t, err)
	assert.InDelta(t, 0.5, q, 1e-9)

	// Partial updates merge into the existing scores
	q, err = svc.EvaluateShip("gallant", map[string]float64{"tests": 10})
	require.NoError(t, err)
	assert.InDelta(t, 1.0, q, 1e-9)

	_, err = svc.EvaluateShip("ghost", nil)
	assert.ErrorIs(t, err, ErrShipNotFound)
}

func TestEvaluateMarketSegmentsFillsDefaults(t *testing.T) {
	svc := newTestService(t)
	_, err := svc.ConstructShip(ConstructParams{ID: "gallant"})
	require.NoError(t, err)

	fits, err := svc.EvaluateMarketSegments("gallant", map[string]float64{"early-adopters": 0.9})
	require.NoError(t, err)

	require.Len(t, fits, 2)
	assert.InDelta(t, 0.9, fits["early-adopters"], 1e-9)
	assert.InDelta(t, 0.1, fits["mainstream"], 1e-9)

	// Explicit values survive a later default fill
	fits, err = svc.EvaluateMarketSegments("gallant", nil)
	require.NoError(t, err)
	assert.InDelta(t, 0.9, fits["early-adopters"], 1e-9)
}

func TestSendToMarket(t *testing.T) {
	svc := newTestService(t)
	_, err := svc.ConstructShip(ConstructParams{ID: "gallant"})
	require.NoError(t, err)

	fits, err := svc.SendToMarket("gallant", map[string]float64{"north-sea": 0.7})
	require.NoError(t, err)
	assert.InDelta(t, 0.7, fits["north-sea"], 1e-9)

	_, err = svc.SendToMarket("ghost", nil)
	assert.ErrorIs(t, err, ErrShipNotFound)
}

func TestBuyInLandscape(t *testing.T) {
	svc := newTestService(t)
	rigShip(t, svc, "gallant")

	landscape, err := svc.BuyIn("gallant")
	require.NoError(t, err)

	assert.InDelta(t, 1.0, landscape.Quality, 1e-9)
	assert.InDelta(t, 11.5, landscape.BuyIn, 1e-9)
	assert.InDelta(t, 11.5, landscape.Markets["north-sea"], 1e-9)
}

func TestGradients(t *testing.T) {
	svc := newTestService(t)
	rigShip(t, svc, "gallant")

	report, err := svc.Gradients("gallant")
	require.NoError(t, err)

	// dB/dq = F * audience, dB/dF = q * audience; both 11.5 at q = F = 1
	assert.InDelta(t, 11.5, report.Quality, 1e-9)
	assert.InDelta(t, 11.5, report.Markets["north-sea"], 1e-9)
	// dB/df_early = q * b * n * F = 2 * 10
	assert.InDelta(t, 20.0, report.Segments["early-adopters"], 1e-9)
	assert.InDelta(t, 15.0, report.Segments["mainstream"], 1e-9)
	// dB/d(c/10) with the other criterion at 10 leaves the audience term
	assert.InDelta(t, 11.5, report.Criteria["docs"], 1e-9)
}

func TestRankAndTopLever(t *testing.T) {
	svc := newTestService(t)
	rigShip(t, svc, "gallant")

	levers, err := svc.RankLevers("gallant")
	require.NoError(t, err)
	require.NotEmpty(t, levers)
	assert.Equal(t, buyin.LeverSegmentFit, levers[0].Lever.Kind)
	assert.Equal(t, "early-adopters", levers[0].Lever.Name)

	top, err := svc.TopLever("gallant")
	require.NoError(t, err)
	assert.Equal(t, "early-adopters", top.Lever.Name)
	assert.InDelta(t, 20.0, top.Value, 1e-9)
}

func TestStatusReadiness(t *testing.T) {
	svc := newTestService(t)
	_, err := svc.ConstructShip(ConstructParams{ID: "gallant"})
	require.NoError(t, err)

	status, err := svc.Status("gallant")
	require.NoError(t, err)
	assert.False(t, status.Ready)
	assert.Equal(t, 8.0, status.CriticalValue)
	assert.Equal(t, 0.0, status.BuyIn)

	// Criteria at the critical value exactly count as ready
	_, err = svc.EvaluateShip("gallant", map[string]float64{"docs": 8, "tests": 8})
	require.NoError(t, err)

	status, err = svc.Status("gallant")
	require.NoError(t, err)
	assert.True(t, status.Ready)
	assert.InDelta(t, 0.64, status.Quality, 1e-9)
}

func TestRenameShip(t *testing.T) {
	svc := newTestService(t)
	_, err := svc.ConstructShip(ConstructParams{ID: "gallant"})
	require.NoError(t, err)
	_, err = svc.ConstructShip(ConstructParams{ID: "valiant"})
	require.NoError(t, err)

	require.NoError(t, svc.RenameShip("gallant", "dauntless"))

	_, err = svc.Ship("gallant")
	assert.ErrorIs(t, err, ErrShipNotFound)
	ship, err := svc.Ship("dauntless")
	require.NoError(t, err)
	assert.Equal(t, "dauntless", ship.ID)

	t.Run("conflicting target", func(t *testing.T) {
		assert.ErrorIs(t, svc.RenameShip("dauntless", "valiant"), ErrShipExists)
	})

	t.Run("same id is a no-op", func(t *testing.T) {
		assert.NoError(t, svc.RenameShip("dauntless", "dauntless"))
	})

	t.Run("empty target", func(t *testing.T) {
		assert.Error(t, svc.RenameShip("dauntless", ""))
	})
}

func TestTransferShip(t *testing.T) {
	src := newTestService(t)
	dst := NewService(testCatalog(t), buyin.NewEngine())
	t.Cleanup(dst.Close)

	_, err := src.ConstructShip(ConstructParams{ID: "gallant"})
	require.NoError(t, err)

	require.NoError(t, src.TransferShip("gallant", dst, ""))

	_, err = src.Ship("gallant")
	assert.ErrorIs(t, err, ErrShipNotFound)
	_, err = dst.Ship("gallant")
	assert.NoError(t, err)

	t.Run("nil destination renames", func(t *testing.T) {
		_, err := src.ConstructShip(ConstructParams{ID: "swift"})
		require.NoError(t, err)

		require.NoError(t, src.TransferShip("swift", nil, "swallow"))
		_, err = src.Ship("swallow")
		assert.NoError(t, err)
	})

	t.Run("conflict puts the ship back", func(t *testing.T) {
		_, err := src.ConstructShip(ConstructParams{ID: "gallant"})
		require.NoError(t, err)

		err = src.TransferShip("gallant", dst, "")
		assert.ErrorIs(t, err, ErrShipExists)

		// Still in the source fleet after the refused transfer
		_, err = src.Ship("gallant")
		assert.NoError(t, err)
	})
}

func TestTransferShipRefusedKeepsOrder(t *testing.T) {
	src := newTestService(t)
	dst := newTestService(t)

	for _, id := range []string{"anna", "bess", "cora"} {
		_, err := src.ConstructShip(ConstructParams{ID: id})
		require.NoError(t, err)
	}
	_, err := dst.ConstructShip(ConstructParams{ID: "bess"})
	require.NoError(t, err)

	err = src.TransferShip("bess", dst, "")
	require.ErrorIs(t, err, ErrShipExists)

	// The refused ship returns to its construction position
	ships := src.Ships()
	ids := make([]string, len(ships))
	for i, ship := range ships {
		ids[i] = ship.ID
	}
	assert.Equal(t, []string{"anna", "bess", "cora"}, ids)
}

func TestLaunchShip(t *testing.T) {
	svc := newTestService(t)
	rigShip(t, svc, "gallant")

	require.NoError(t, svc.LaunchShip("gallant", nil))

	ship, err := svc.Ship("gallant")
	require.NoError(t, err)
	assert.True(t, ship.IsHeld(buyin.LeverQuality, ""))
	assert.True(t, ship.IsHeld(buyin.LeverCriterion, "docs"))
	assert.True(t, ship.IsHeld(buyin.LeverSegmentFit, "early-adopters"))
	assert.False(t, ship.IsHeld(buyin.LeverMarketFit, "north-sea"))

	// Held levers freeze their scores and report zero derivatives
	q, err := svc.EvaluateShip("gallant", map[string]float64{"docs": 1})
	require.NoError(t, err)
	assert.InDelta(t, 1.0, q, 1e-9)

	report, err := svc.Gradients("gallant")
	require.NoError(t, err)
	assert.Equal(t, 0.0, report.Quality)
	assert.Equal(t, 0.0, report.Criteria["docs"])
	assert.Equal(t, 0.0, report.Segments["early-adopters"])
	assert.InDelta(t, 11.5, report.Markets["north-sea"], 1e-9)

	t.Run("launch into another fleet", func(t *testing.T) {
		dst := NewService(testCatalog(t), buyin.NewEngine())
		t.Cleanup(dst.Close)

		rigShip(t, svc, "swift")
		require.NoError(t, svc.LaunchShip("swift", dst))

		_, err := svc.Ship("swift")
		assert.ErrorIs(t, err, ErrShipNotFound)
		moved, err := dst.Ship("swift")
		require.NoError(t, err)
		assert.True(t, moved.IsHeld(buyin.LeverQuality, ""))
	})
}

func TestRankings(t *testing.T) {
	svc := newTestService(t)
	rigShip(t, svc, "leader")
	rigShip(t, svc, "runner-up")

	// Weaken the runner-up
	_, err := svc.EvaluateShip("runner-up", map[string]float64{"docs": 5})
	require.NoError(t, err)

	board := svc.Rankings(10)
	require.Len(t, board.Entries, 2)
	assert.Equal(t, 1, board.Entries[0].Rank)
	assert.Equal(t, "leader", board.Entries[0].ShipID)
	assert.Equal(t, "runner-up", board.Entries[1].ShipID)
	assert.Greater(t, board.Entries[0].BuyIn, board.Entries[1].BuyIn)

	t.Run("snapshots are cached", func(t *testing.T) {
		again := svc.Rankings(10)
		assert.True(t, board.GeneratedAt.Equal(again.GeneratedAt))
	})

	t.Run("mutations invalidate the cache", func(t *testing.T) {
		_, err := svc.EvaluateShip("runner-up", map[string]float64{"docs": 10})
		require.NoError(t, err)

		fresh := svc.Rankings(10)
		assert.False(t, board.GeneratedAt.Equal(fresh.GeneratedAt))
	})

	t.Run("fresh ships rank last with zero buy-in", func(t *testing.T) {
		_, err := svc.ConstructShip(ConstructParams{ID: "bare"})
		require.NoError(t, err)

		board := svc.Rankings(10)
		require.Len(t, board.Entries, 3)
		last := board.Entries[len(board.Entries)-1]
		assert.Equal(t, "bare", last.ShipID)
		assert.Equal(t, 0.0, last.BuyIn)
	})
}

func TestRankingsLimit(t *testing.T) {
	svc := newTestService(t)
	for _, id := range []string{"a", "b", "c"} {
		rigShip(t, svc, id)
	}

	board := svc.Rankings(2)
	assert.Len(t, board.Entries, 2)
	assert.Equal(t, 3, board.Total)
}

func TestChangelog(t *testing.T) {
	svc := newTestService(t)
	rigShip(t, svc, "gallant")

	records := svc.Changelog(0)
	require.NotEmpty(t, records)

	// Newest first: the market fit update lands on top
	assert.Equal(t, "market_fit", records[0].Field)
	assert.Equal(t, "constructed", records[len(records)-1].Field)

	limited := svc.Changelog(2)
	assert.Len(t, limited, 2)
	assert.Equal(t, records[0].ID, limited[0].ID)
}

func TestAutoRefresh(t *testing.T) {
	svc := newTestService(t)
	rigShip(t, svc, "gallant")

	svc.WarmRankings()
	svc.StartAutoRefresh(10 * time.Millisecond)
	// Second start is a no-op
	svc.StartAutoRefresh(10 * time.Millisecond)

	time.Sleep(30 * time.Millisecond)
	svc.Close()

	// Rankings still served after shutdown
	board := svc.Rankings(10)
	assert.Equal(t, 1, board.Total)
}

func TestRankingsCacheStats(t *testing.T) {
	svc := newTestService(t)
	rigShip(t, svc, "gallant")

	svc.Rankings(10)
	stats := svc.RankingsCacheStats()
	assert.NotEmpty(t, stats)
}

// TestWithRankingsTTL exercises the TTL option end to end. The goroutine
// check in TestMain fails if the option ever leaves a second cache running.
func TestWithRankingsTTL(t *testing.T) {
	svc := NewService(testCatalog(t), buyin.NewEngine(), WithRankingsTTL(time.Minute))
	t.Cleanup(svc.Close)
	rigShip(t, svc, "brig")

	board := svc.Rankings(0)
	require.Equal(t, 1, board.Total)

	cached := svc.Rankings(0)
	assert.True(t, board.GeneratedAt.Equal(cached.GeneratedAt))
}
