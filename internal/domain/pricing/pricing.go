// Package pricing computes order totals from catalog facts: a per-line
// promotion resolver, an order-level voucher resolver, and an engine that
// composes the two. Everything here is a pure function of its inputs; callers
// reprice after every order mutation instead of caching results.
package pricing

import (
	"github.com/shopspring/decimal"
)

// Line is the pricing view of one order line. UnitPrice is the base price
// snapshotted when the line was added; PromotionRef optionally names a
// line-level promotion to resolve against the facts snapshot.
type Line struct {
	ID           string
	VariantRef   string
	Quantity     int
	UnitPrice    decimal.Decimal
	PromotionRef string
}

// InvalidReason identifies which voucher invariant failed. These are
// recoverable facts surfaced to the order flow, not errors.
type InvalidReason string

const (
	ReasonVoucherExpired          InvalidReason = "VOUCHER_EXPIRED"
	ReasonMinOrderValueNotMet     InvalidReason = "MIN_ORDER_VALUE_NOT_MET"
	ReasonPaymentMethodNotAllowed InvalidReason = "PAYMENT_METHOD_NOT_ALLOWED"
	ReasonFactUnavailable         InvalidReason = "CATALOG_FACT_UNAVAILABLE"
)

// Message returns the user-facing explanation of the failed invariant.
func (r InvalidReason) Message() string {
	switch r {
	case ReasonVoucherExpired:
		return "voucher is outside its validity window"
	case ReasonMinOrderValueNotMet:
		return "order total is below the voucher's minimum order value"
	case ReasonPaymentMethodNotAllowed:
		return "the selected payment method is not accepted by this voucher"
	case ReasonFactUnavailable:
		return "voucher details could not be verified against the catalog"
	default:
		return "voucher is not applicable"
	}
}

var hundred = decimal.NewFromInt(100)

// floorAtZero clamps negative values to zero.
func floorAtZero(d decimal.Decimal) decimal.Decimal {
	if d.IsNegative() {
		return decimal.Zero
	}
	return d
}
