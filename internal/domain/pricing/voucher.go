package pricing

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/feastly/ordercore/internal/domain/catalog"
)

// VoucherResult reports the outcome of resolving the attached voucher against
// the current line set. An invalid voucher is a recoverable fact: Discount is
// zero and Reason names the violated invariant. The resolver never mutates
// the order; acting on invalidity is the order flow's decision.
type VoucherResult struct {
	Ref      string
	Valid    bool
	Reason   InvalidReason
	Discount decimal.Decimal

	// AdjustedUnitPrices maps line ID to the overridden effective unit price
	// for same-price vouchers. Empty for subtractive voucher types.
	AdjustedUnitPrices map[string]decimal.Decimal
}

// ResolveVoucher validates voucherRef against the lines and payment method
// and computes the order-level discount. Validity is recomputed from the
// current line set on every call; nothing is carried over from attach-time.
//
// Checks run in a fixed order and short-circuit on the first failure:
// validity window, then minimum order value (skipped for same-price vouchers,
// which override per-item prices rather than discounting a total), then
// payment method compatibility.
func ResolveVoucher(lines []Line, voucherRef string, method catalog.PaymentMethod, facts catalog.Facts, now time.Time) VoucherResult {
	if voucherRef == "" {
		return VoucherResult{Valid: true, Discount: decimal.Zero}
	}

	v, ok := facts.Voucher(voucherRef)
	if !ok {
		return invalid(voucherRef, ReasonFactUnavailable)
	}

	if !v.ActiveAt(now) {
		return invalid(voucherRef, ReasonVoucherExpired)
	}

	// Subtotal restricted to lines the voucher applies to, net of line-level
	// promotion discounts. Lines outside a non-empty restriction set are
	// excluded from both the minimum check and the discount base.
	eligible := eligibleSubtotal(lines, v, facts, now)

	if v.Type != catalog.VoucherSamePrice && eligible.LessThan(v.MinOrderValue) {
		return invalid(voucherRef, ReasonMinOrderValueNotMet)
	}

	if !v.AllowsPayment(method) {
		return invalid(voucherRef, ReasonPaymentMethodNotAllowed)
	}

	res := VoucherResult{Ref: voucherRef, Valid: true}
	switch v.Type {
	case catalog.VoucherPercentOrder:
		discount := eligible.Mul(v.Value).Div(hundred)
		res.Discount = decimal.Min(discount, eligible)
	case catalog.VoucherFixedValue:
		res.Discount = decimal.Min(v.Value, eligible)
	case catalog.VoucherSamePrice:
		res.Discount, res.AdjustedUnitPrices = samePriceDiscount(lines, v, facts, now)
	default:
		return invalid(voucherRef, ReasonFactUnavailable)
	}
	res.Discount = floorAtZero(res.Discount)
	return res
}

func invalid(ref string, reason InvalidReason) VoucherResult {
	return VoucherResult{Ref: ref, Valid: false, Reason: reason, Discount: decimal.Zero}
}

// eligibleSubtotal sums (unitPrice - promotionDiscount) * quantity across the
// lines the voucher applies to.
func eligibleSubtotal(lines []Line, v catalog.Voucher, facts catalog.Facts, now time.Time) decimal.Decimal {
	sum := decimal.Zero
	for _, line := range lines {
		if !v.AppliesTo(line.VariantRef) {
			continue
		}
		effective := line.UnitPrice.Sub(LineDiscount(line, facts, now))
		sum = sum.Add(effective.Mul(decimal.NewFromInt(int64(line.Quantity))))
	}
	return sum
}

// samePriceDiscount fixes each eligible line's effective unit price to the
// voucher value. The reported discount is the per-line saving, clamped at
// zero per line so the voucher can never raise a price.
func samePriceDiscount(lines []Line, v catalog.Voucher, facts catalog.Facts, now time.Time) (decimal.Decimal, map[string]decimal.Decimal) {
	total := decimal.Zero
	adjusted := make(map[string]decimal.Decimal)
	for _, line := range lines {
		if !v.AppliesTo(line.VariantRef) {
			continue
		}
		effective := line.UnitPrice.Sub(LineDiscount(line, facts, now))
		saving := effective.Sub(v.Value)
		if saving.IsNegative() {
			continue
		}
		adjusted[line.ID] = v.Value
		total = total.Add(saving.Mul(decimal.NewFromInt(int64(line.Quantity))))
	}
	return total, adjusted
}
