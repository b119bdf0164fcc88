// Package history keeps the append-only record of allocation changes.
package history

import (
	"time"

	"github.com/aristath/poolvault/internal/domain"
)

// Entry is one allocation change. Entries are immutable once written.
type Entry struct {
	ID                 string            `json:"id"`
	PreviousAllocation domain.Allocation `json:"previous_allocation"`
	NewAllocation      domain.Allocation `json:"new_allocation"`
	Timestamp          time.Time         `json:"timestamp"`
}
