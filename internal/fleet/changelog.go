package fleet

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Record is one entry in the fleet's change journal. Field names the ship
// aspect that changed; Detail is a human-readable summary.
type Record struct {
	ID     string    `json:"id"`
	Time   time.Time `json:"time"`
	ShipID string    `json:"ship_id"`
	Field  string    `json:"field"`
	Detail string    `json:"detail"`
}

// journal is the append-only mutation log. It keeps its own lock so reads
// never contend with ship operations.
type journal struct {
	mu      sync.RWMutex
	records []Record
}

func newJournal() *journal {
	return &journal{}
}

func (j *journal) append(shipID, field, detail string) {
	j.mu.Lock()
	defer j.mu.Unlock()

	j.records = append(j.records, Record{
		ID:     uuid.New().String(),
		Time:   time.Now(),
		ShipID: shipID,
		Field:  field,
		Detail: detail,
	})
}

// tail returns the most recent records, newest first. A non-positive limit
// returns the full journal.
func (j *journal) tail(limit int) []Record {
	j.mu.RLock()
	defer j.mu.RUnlock()

	n := len(j.records)
	if limit <= 0 || limit > n {
		limit = n
	}
	out := make([]Record, 0, limit)
	for i := n - 1; i >= n-limit; i-- {
		out = append(out, j.records[i])
	}
	return out
}

// size reports the number of journal records.
func (j *journal) size() int {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return len(j.records)
}
