package fleet

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/zhafen/ship/internal/buyin"
	"github.com/zhafen/ship/internal/cache"
)

// RankingEntry is one ship's position on the rankings board.
type RankingEntry struct {
	Rank     int              `json:"rank"`
	ShipID   string           `json:"ship_id"`
	Name     string           `json:"name,omitempty"`
	Quality  float64          `json:"quality"`
	BuyIn    float64          `json:"buy_in"`
	TopLever buyin.LeverScore `json:"top_lever"`
}

// RankingsResponse is the rankings board: ships ordered by total buy-in.
type RankingsResponse struct {
	Entries     []RankingEntry `json:"entries"`
	Total       int            `json:"total"`
	GeneratedAt time.Time      `json:"generated_at"`
}

// rankingsCache holds rankings snapshots with a TTL, invalidated on every
// fleet mutation and optionally refreshed in the background.
type rankingsCache struct {
	cache *cache.Cache

	mu      sync.Mutex
	stop    chan struct{}
	stopped bool
}

func newRankingsCache(ttl time.Duration) *rankingsCache {
	return &rankingsCache{cache: cache.NewCache(ttl)}
}

func rankingsKey(limit int) string {
	return fmt.Sprintf("rankings:%d", limit)
}

func (rc *rankingsCache) get(limit int) (*RankingsResponse, bool) {
	data, found := rc.cache.Get(rankingsKey(limit))
	if !found {
		return nil, false
	}
	var response RankingsResponse
	if err := json.Unmarshal(data, &response); err != nil {
		slog.Error("Failed to unmarshal cached rankings", "error", err, "limit", limit)
		return nil, false
	}
	slog.Debug("Rankings cache hit", "limit", limit)
	return &response, true
}

func (rc *rankingsCache) set(limit int, response *RankingsResponse) {
	data, err := json.Marshal(response)
	if err != nil {
		slog.Error("Failed to marshal rankings for cache", "error", err, "limit", limit)
		return
	}
	rc.cache.Set(rankingsKey(limit), data)
}

func (rc *rankingsCache) invalidate() {
	rc.cache.Clear()
}

func (rc *rankingsCache) stats() map[string]interface{} {
	return rc.cache.Stats()
}

// Rankings returns ships ordered by total buy-in, highest first, limited to
// at most 100 entries (default 50). Snapshots are cached until the next
// mutation or TTL expiry.
func (s *Service) Rankings(limit int) *RankingsResponse {
	if limit <= 0 {
		limit = 50
	}
	if limit > 100 {
		limit = 100
	}

	if cached, found := s.rankings.get(limit); found {
		return cached
	}

	response := s.computeRankings()
	if len(response.Entries) > limit {
		response.Entries = response.Entries[:limit]
	}
	s.rankings.set(limit, response)
	return response
}

// WarmRankings pre-populates the rankings cache for the common page sizes.
func (s *Service) WarmRankings() {
	for _, limit := range []int{25, 50, 100} {
		s.rankings.invalidateKey(limit)
		s.Rankings(limit)
	}
	slog.Debug("Rankings cache warmed")
}

// StartAutoRefresh re-warms the rankings cache on the given interval until
// Close is called.
func (s *Service) StartAutoRefresh(interval time.Duration) {
	rc := s.rankings
	rc.mu.Lock()
	defer rc.mu.Unlock()
	if rc.stop != nil || rc.stopped {
		return
	}
	rc.stop = make(chan struct{})

	go func(stop chan struct{}) {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				s.WarmRankings()
			case <-stop:
				return
			}
		}
	}(rc.stop)
}

func (rc *rankingsCache) invalidateKey(limit int) {
	rc.cache.Delete(rankingsKey(limit))
}

func (rc *rankingsCache) stopAutoRefresh() {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	if rc.stop != nil {
		close(rc.stop)
		rc.stop = nil
	}
	rc.stopped = true
	rc.cache.Close()
}

// RankingsCacheStats exposes the rankings cache counters.
func (s *Service) RankingsCacheStats() map[string]interface{} {
	return s.rankings.stats()
}
