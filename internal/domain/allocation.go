// Package domain holds the core vault types shared by all modules.
package domain

import (
	"fmt"
	"strings"
)

// Allocation constants, in allocation units (1 unit = 1/10000 of the portfolio).
const (
	AllocationUnits  = 10000 // whole portfolio
	MinAllocationBps = 1000  // 10% floor per position
	MaxAllocationBps = 6000  // 60% cap per position
	PositionCount    = 3     // fixed number of yield positions
)

// Allocation is the portfolio split across the three yield positions,
// expressed in allocation units summing to AllocationUnits.
type Allocation [PositionCount]int64

// EvenAllocation returns the seed allocation used for a fresh vault.
// The remainder from integer division goes to the first slot.
func EvenAllocation() Allocation {
	return Allocation{3334, 3333, 3333}
}

// Validate checks the allocation shape: every element within
// [MinAllocationBps, MaxAllocationBps] and the total exactly AllocationUnits.
func (a Allocation) Validate() error {
	sum := int64(0)
	for i, units := range a {
		if units < MinAllocationBps || units > MaxAllocationBps {
			return fmt.Errorf("%w: position %d allocation %d outside [%d, %d]",
				ErrMalformedProposal, i, units, MinAllocationBps, MaxAllocationBps)
		}
		sum += units
	}
	if sum != AllocationUnits {
		return fmt.Errorf("%w: allocation sums to %d, want %d", ErrMalformedProposal, sum, AllocationUnits)
	}
	return nil
}

// String renders the allocation as "4000/3500/2500".
func (a Allocation) String() string {
	parts := make([]string, len(a))
	for i, units := range a {
		parts[i] = fmt.Sprintf("%d", units)
	}
	return strings.Join(parts, "/")
}

// ParseAllocation parses the "4000/3500/2500" form produced by String.
func ParseAllocation(s string) (Allocation, error) {
	parts := strings.Split(s, "/")
	if len(parts) != PositionCount {
		return Allocation{}, fmt.Errorf("%w: allocation %q has %d parts, want %d",
			ErrMalformedProposal, s, len(parts), PositionCount)
	}
	var a Allocation
	for i, part := range parts {
		var units int64
		if _, err := fmt.Sscanf(strings.TrimSpace(part), "%d", &units); err != nil {
			return Allocation{}, fmt.Errorf("%w: allocation part %q", ErrMalformedProposal, part)
		}
		a[i] = units
	}
	return a, nil
}
