package pricing

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/feastly/ordercore/internal/domain/catalog"
)

// LineSubtotal is the priced view of one order line.
type LineSubtotal struct {
	LineID string
	// PromotionDiscount is the resolved per-unit promotion discount.
	PromotionDiscount decimal.Decimal
	// EffectiveUnitPrice is the unit price after promotion and any
	// same-price voucher override.
	EffectiveUnitPrice decimal.Decimal
	// Subtotal is EffectiveUnitPrice * Quantity before the order-level
	// voucher discount is applied (for subtractive voucher types).
	Subtotal decimal.Decimal
}

// Result holds the complete pricing breakdown for an order.
type Result struct {
	LineSubtotals []LineSubtotal
	// PromotionTotal is the sum of all line-level promotion discounts.
	PromotionTotal decimal.Decimal
	// PreVoucherSubtotal is the sum of (unitPrice - promotionDiscount) *
	// quantity across all lines, before any voucher is considered.
	PreVoucherSubtotal decimal.Decimal
	Voucher            VoucherResult
	GrandTotal         decimal.Decimal
}

// Price computes the full pricing breakdown from scratch. No state is cached
// between calls: any line mutation can change voucher eligibility, so the
// result must be recomputed after every mutation before it is shown to a user
// or sent to checkout. Price is a pure function of its inputs; two calls with
// the same arguments yield identical results.
func Price(lines []Line, voucherRef string, method catalog.PaymentMethod, facts catalog.Facts, now time.Time) Result {
	res := Result{
		LineSubtotals:      make([]LineSubtotal, 0, len(lines)),
		PromotionTotal:     decimal.Zero,
		PreVoucherSubtotal: decimal.Zero,
	}

	res.Voucher = ResolveVoucher(lines, voucherRef, method, facts, now)

	for _, line := range lines {
		qty := decimal.NewFromInt(int64(line.Quantity))
		promoDiscount := LineDiscount(line, facts, now)
		effective := line.UnitPrice.Sub(promoDiscount)

		if override, ok := res.Voucher.AdjustedUnitPrices[line.ID]; ok {
			effective = override
		}

		res.PromotionTotal = res.PromotionTotal.Add(promoDiscount.Mul(qty))
		res.PreVoucherSubtotal = res.PreVoucherSubtotal.Add(line.UnitPrice.Sub(promoDiscount).Mul(qty))
		res.LineSubtotals = append(res.LineSubtotals, LineSubtotal{
			LineID:             line.ID,
			PromotionDiscount:  promoDiscount,
			EffectiveUnitPrice: effective,
			Subtotal:           effective.Mul(qty),
		})
	}

	// GrandTotal = preVoucherSubtotal - voucher discount, floored at zero.
	// For same-price vouchers the discount already equals the sum of per-line
	// savings, so the same formula yields the sum of adjusted line totals.
	res.GrandTotal = floorAtZero(res.PreVoucherSubtotal.Sub(res.Voucher.Discount))

	return res
}
