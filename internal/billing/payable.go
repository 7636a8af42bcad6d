package billing

// SumFSDiscounts totals friend-referral discount values. The values arrive
// pre-computed; no eligibility logic runs client-side.
func SumFSDiscounts(discounts []FSDiscount) Money {
	var total Money
	for _, d := range discounts {
		total += d.DiscountValue
	}
	return total
}

// ResolveMileDiscount applies the precedence contract between the
// server-computed potential discount and the local calculation: a positive
// server value wins, otherwise the local fallback is used.
func ResolveMileDiscount(info MileInfo, local Money) Money {
	if info.PotentialDiscount > 0 {
		return info.PotentialDiscount
	}
	return local
}

// PayableAmount computes the final amount owed after discounts, floored at
// zero even when the discounts exceed the total.
func PayableAmount(total, mileDiscount, fsDiscount Money) Money {
	payable := total - mileDiscount - fsDiscount
	if payable < 0 {
		return 0
	}
	return payable
}
