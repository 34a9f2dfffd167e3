// Package businessflow contains the core business logic and use cases for payment workflows
package businessflow

import (
	"github.com/reelbux/reelbux/utils"
	"github.com/shopspring/decimal"
)

// RevenueSplit is the three-way division of a payment's net amount.
// Filmmaker + Affiliate + Platform always equals the input net exactly;
// the platform share is the remainder and absorbs all rounding dust.
type RevenueSplit struct {
	Filmmaker decimal.Decimal
	Affiliate decimal.Decimal
	Platform  decimal.Decimal
}

// trunc2 truncates toward zero at two decimals. Shares are never rounded
// up so the remainder can only grow, keeping every balance non-negative.
func trunc2(d decimal.Decimal) decimal.Decimal {
	return d.RoundDown(2)
}

// ComputeSplit divides net revenue: 70% filmmaker, 20% affiliate when one
// is attached, remainder to the platform.
func ComputeSplit(net decimal.Decimal, hasAffiliate bool) RevenueSplit {
	filmmaker := trunc2(net.Mul(utils.FilmmakerShareRate))

	affiliate := decimal.Zero
	if hasAffiliate {
		affiliate = trunc2(net.Mul(utils.AffiliateShareRate))
	}

	platform := net.Sub(filmmaker).Sub(affiliate)

	return RevenueSplit{
		Filmmaker: filmmaker,
		Affiliate: affiliate,
		Platform:  platform,
	}
}

// Total returns the sum of the three shares.
func (s RevenueSplit) Total() decimal.Decimal {
	return s.Filmmaker.Add(s.Affiliate).Add(s.Platform)
}

// EstimateStripeFee approximates Stripe's processing fee
// (2.9% + $0.30) for the moments when the authoritative balance
// transaction is not yet available at webhook time.
func EstimateStripeFee(gross decimal.Decimal) decimal.Decimal {
	return trunc2(gross.Mul(utils.StripeFeePercent).Add(utils.StripeFeeFixed))
}

// NetAfterFee returns what remains of gross after the gateway fee. Never
// negative; a fee larger than gross clamps to zero.
func NetAfterFee(gross, fee decimal.Decimal) decimal.Decimal {
	net := gross.Sub(fee)
	if net.IsNegative() {
		return decimal.Zero
	}
	return net
}
