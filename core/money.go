package core

import (
	"github.com/shopspring/decimal"
)

const monetaryPrecision int32 = 4 // 4 decimal places for monetary values (0.0001 precision)

// NormalizeAmount converts a wire-format float into the market's monetary
// representation. Uses decimal arithmetic with monetaryPrecision to avoid
// floating-point errors.
func NormalizeAmount(v float64) decimal.Decimal {
	return decimal.NewFromFloat(v).Round(monetaryPrecision)
}

// SettlementSplit divides a settlement price between the current owner and
// the original lister. The royalty is floor(price * royaltyFeePercent / 100),
// truncated towards zero at monetaryPrecision; the owner share is the exact
// remainder, so ownerShare + royalty always equals price.
func SettlementSplit(price decimal.Decimal, royaltyFeePercent int64) (ownerShare, royalty decimal.Decimal) {
	royalty = price.
		Mul(decimal.NewFromInt(royaltyFeePercent)).
		Div(decimal.NewFromInt(100)).
		RoundFloor(monetaryPrecision)
	return price.Sub(royalty), royalty
}
