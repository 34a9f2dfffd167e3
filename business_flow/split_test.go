package businessflow

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func TestComputeSplit(t *testing.T) {
	tests := []struct {
		name         string
		net          string
		hasAffiliate bool
		filmmaker    string
		affiliate    string
		platform     string
	}{
		{
			name:         "even amount with affiliate",
			net:          "10.00",
			hasAffiliate: true,
			filmmaker:    "7.00",
			affiliate:    "2.00",
			platform:     "1.00",
		},
		{
			name:         "even amount without affiliate",
			net:          "10.00",
			hasAffiliate: false,
			filmmaker:    "7.00",
			affiliate:    "0",
			platform:     "3.00",
		},
		{
			name:         "rounding dust goes to platform",
			net:          "9.99",
			hasAffiliate: true,
			filmmaker:    "6.99", // trunc(6.993)
			affiliate:    "1.99", // trunc(1.998)
			platform:     "1.01",
		},
		{
			name:         "one cent",
			net:          "0.01",
			hasAffiliate: true,
			filmmaker:    "0.00",
			affiliate:    "0.00",
			platform:     "0.01",
		},
		{
			name:         "zero net",
			net:          "0",
			hasAffiliate: true,
			filmmaker:    "0",
			affiliate:    "0",
			platform:     "0",
		},
		{
			name:         "large amount",
			net:          "12345.67",
			hasAffiliate: true,
			filmmaker:    "8641.96", // trunc(8641.969)
			affiliate:    "2469.13", // trunc(2469.134)
			platform:     "1234.58",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			split := ComputeSplit(dec(tt.net), tt.hasAffiliate)

			assert.True(t, split.Filmmaker.Equal(dec(tt.filmmaker)),
				"filmmaker share: got %s, want %s", split.Filmmaker, tt.filmmaker)
			assert.True(t, split.Affiliate.Equal(dec(tt.affiliate)),
				"affiliate share: got %s, want %s", split.Affiliate, tt.affiliate)
			assert.True(t, split.Platform.Equal(dec(tt.platform)),
				"platform share: got %s, want %s", split.Platform, tt.platform)
		})
	}
}

func TestComputeSplitExactness(t *testing.T) {
	// The three shares must reassemble the net exactly for every cent
	// value; the platform remainder absorbs all truncation dust.
	for cents := int64(0); cents <= 10000; cents++ {
		net := decimal.New(cents, -2)

		for _, hasAffiliate := range []bool{true, false} {
			split := ComputeSplit(net, hasAffiliate)

			require.True(t, split.Total().Equal(net),
				"split of %s (affiliate=%v) leaks: %s + %s + %s = %s",
				net, hasAffiliate, split.Filmmaker, split.Affiliate, split.Platform, split.Total())
			require.False(t, split.Filmmaker.IsNegative())
			require.False(t, split.Affiliate.IsNegative())
			require.False(t, split.Platform.IsNegative())
		}
	}
}

func TestComputeSplitNoAffiliateShare(t *testing.T) {
	split := ComputeSplit(dec("55.55"), false)

	assert.True(t, split.Affiliate.IsZero())
	// The 20% that would have gone to an affiliate stays with the platform
	withAffiliate := ComputeSplit(dec("55.55"), true)
	assert.True(t, split.Platform.Equal(withAffiliate.Platform.Add(withAffiliate.Affiliate)))
}

func TestEstimateStripeFee(t *testing.T) {
	tests := []struct {
		gross string
		fee   string
	}{
		{"10.00", "0.59"},  // 0.29 + 0.30
		{"100.00", "3.20"}, // 2.90 + 0.30
		{"0.50", "0.31"},   // trunc(0.0145) + 0.30
		{"0", "0.30"},
	}

	for _, tt := range tests {
		fee := EstimateStripeFee(dec(tt.gross))
		assert.True(t, fee.Equal(dec(tt.fee)), "fee for %s: got %s, want %s", tt.gross, fee, tt.fee)
	}
}

func TestNetAfterFee(t *testing.T) {
	assert.True(t, NetAfterFee(dec("10.00"), dec("0.59")).Equal(dec("9.41")))
	assert.True(t, NetAfterFee(dec("10.00"), dec("0")).Equal(dec("10.00")))

	// A fee above gross clamps to zero instead of going negative
	assert.True(t, NetAfterFee(dec("0.10"), dec("0.30")).IsZero())
}
