package domain

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEvenAllocationIsValid(t *testing.T) {
	require.NoError(t, EvenAllocation().Validate())
}

func TestAllocationValidate(t *testing.T) {
	tests := []struct {
		name    string
		alloc   Allocation
		wantErr bool
	}{
		{"valid", Allocation{4000, 3500, 2500}, false},
		{"boundary low", Allocation{1000, 6000, 3000}, false},
		{"sum too low", Allocation{4000, 3500, 2400}, true},
		{"sum too high", Allocation{4000, 3500, 2600}, true},
		{"below floor", Allocation{900, 5000, 4100}, true},
		{"above cap", Allocation{6100, 2000, 1900}, true},
		{"negative element", Allocation{-1000, 6000, 5000}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.alloc.Validate()
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrMalformedProposal)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestAllocationStringRoundTrip(t *testing.T) {
	a := Allocation{4000, 3500, 2500}
	assert.Equal(t, "4000/3500/2500", a.String())

	parsed, err := ParseAllocation(a.String())
	require.NoError(t, err)
	assert.Equal(t, a, parsed)

	_, err = ParseAllocation("4000/3500")
	assert.ErrorIs(t, err, ErrMalformedProposal)

	_, err = ParseAllocation("4000/x/2500")
	assert.ErrorIs(t, err, ErrMalformedProposal)
}

func TestMulDivFloor(t *testing.T) {
	// floor(500 * 1500 / 1500) = 500
	got := MulDivFloor(decimal.NewFromInt(500), decimal.NewFromInt(1500), decimal.NewFromInt(1500))
	assert.True(t, got.Equal(decimal.NewFromInt(500)))

	// floor(1000 * 3334 / 10000) = 333
	got = MulDivFloor(decimal.NewFromInt(1000), decimal.NewFromInt(3334), decimal.NewFromInt(10000))
	assert.True(t, got.Equal(decimal.NewFromInt(333)))

	// A sub-unit result floors to zero
	got = MulDivFloor(decimal.NewFromFloat(0.5), decimal.NewFromInt(1000), decimal.NewFromInt(1000))
	assert.True(t, got.IsZero())
}

func TestBpsOf(t *testing.T) {
	got := BpsOf(decimal.NewFromInt(1500), 4000)
	assert.True(t, got.Equal(decimal.NewFromInt(600)))

	got = BpsOf(decimal.NewFromInt(1500), 100)
	assert.True(t, got.Equal(decimal.NewFromInt(15)))
}
