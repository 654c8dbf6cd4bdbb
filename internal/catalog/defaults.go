package catalog

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/zhafen/ship/internal/buyin"
)

//go:embed defaults.json
var defaultsJSON []byte

var (
	defaultOnce    sync.Once
	defaultCatalog *Catalog
	defaultErr     error
)

type defaultsFile struct {
	Criteria      []string `json:"criteria"`
	CriticalValue float64  `json:"critical_value"`
	Segments      []struct {
		ID         string  `json:"id"`
		Value      float64 `json:"value"`
		DefaultFit float64 `json:"default_fit"`
	} `json:"segments"`
	Markets []struct {
		ID          string `json:"id"`
		Memberships []struct {
			Segment string  `json:"segment"`
			Members float64 `json:"members"`
		} `json:"memberships"`
	} `json:"markets"`
}

// Default returns the embedded catalog: the standard readiness criteria and
// the stock segments and markets. The embedded data is parsed once; the
// returned catalog is shared, and its accessors hand out copies.
func Default() (*Catalog, error) {
	defaultOnce.Do(func() {
		defaultCatalog, defaultErr = loadDefaults(defaultsJSON)
	})
	return defaultCatalog, defaultErr
}

func loadDefaults(data []byte) (*Catalog, error) {
	var f defaultsFile
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse embedded catalog: %w", err)
	}

	segments := make([]buyin.Segment, 0, len(f.Segments))
	for _, s := range f.Segments {
		segments = append(segments, buyin.Segment{ID: s.ID, Value: s.Value, DefaultFit: s.DefaultFit})
	}

	markets := make([]buyin.Market, 0, len(f.Markets))
	for _, m := range f.Markets {
		memberships := make([]buyin.Membership, 0, len(m.Memberships))
		for _, mem := range m.Memberships {
			memberships = append(memberships, buyin.Membership{
				Segment: buyin.Segment{ID: mem.Segment},
				Members: mem.Members,
			})
		}
		markets = append(markets, buyin.Market{ID: m.ID, Memberships: memberships})
	}

	return New(f.Criteria, f.CriticalValue, segments, markets)
}
