// Package catalog defines the read-only facts the pricing engine consumes:
// variant prices, line-level promotions, and order-level vouchers. Facts are
// supplied by an external provider and never mutated by the engine.
package catalog

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// PaymentMethod identifies how an order is paid.
type PaymentMethod string

const (
	PaymentCash         PaymentMethod = "cash"
	PaymentBankTransfer PaymentMethod = "bank_transfer"
	PaymentCard         PaymentMethod = "card"
)

// DefaultPaymentMethod is the fallback applied when a voucher that restricted
// the payment method is detached from an order.
const DefaultPaymentMethod = PaymentBankTransfer

// VoucherType enumerates the supported order-level voucher strategies.
type VoucherType string

const (
	// VoucherPercentOrder discounts the eligible subtotal by a percentage.
	VoucherPercentOrder VoucherType = "percent_order"
	// VoucherFixedValue subtracts a fixed amount, capped at the eligible subtotal.
	VoucherFixedValue VoucherType = "fixed_value"
	// VoucherSamePrice overrides each eligible line's unit price with a flat
	// value instead of subtracting from a total. Exempt from minimum-order checks.
	VoucherSamePrice VoucherType = "same_price_product"
)

// ErrNotFound is returned by providers when a requested fact does not exist.
var ErrNotFound = errors.New("catalog: fact not found")

// Variant is a sellable product variant with its current base price.
type Variant struct {
	Ref       string
	Name      string
	UnitPrice decimal.Decimal
}

// Promotion is a per-unit discount bound to a single product variant.
type Promotion struct {
	Ref        string
	ProductRef string
	Value      decimal.Decimal
	ValidFrom  *time.Time
	ValidTo    *time.Time
}

// ActiveAt reports whether the promotion's validity window contains t.
func (p Promotion) ActiveAt(t time.Time) bool {
	return windowContains(p.ValidFrom, p.ValidTo, t)
}

// Voucher is an order-level discount or price override. At most one voucher
// may be attached to an order at any time.
type Voucher struct {
	Ref                   string
	Type                  VoucherType
	Value                 decimal.Decimal
	MinOrderValue         decimal.Decimal
	AllowedPaymentMethods []PaymentMethod
	ApplicableProductRefs []string
	ValidFrom             *time.Time
	ValidTo               *time.Time
}

// ActiveAt reports whether the voucher's validity window contains t.
func (v Voucher) ActiveAt(t time.Time) bool {
	return windowContains(v.ValidFrom, v.ValidTo, t)
}

// AllowsPayment reports whether method is acceptable for this voucher.
// An empty AllowedPaymentMethods set allows every method.
func (v Voucher) AllowsPayment(method PaymentMethod) bool {
	if len(v.AllowedPaymentMethods) == 0 {
		return true
	}
	for _, m := range v.AllowedPaymentMethods {
		if m == method {
			return true
		}
	}
	return false
}

// AppliesTo reports whether a line for productRef participates in this
// voucher's subtotal and discount base. An empty ApplicableProductRefs set
// covers the whole order, including lines added after the voucher was attached.
func (v Voucher) AppliesTo(productRef string) bool {
	if len(v.ApplicableProductRefs) == 0 {
		return true
	}
	for _, ref := range v.ApplicableProductRefs {
		if ref == productRef {
			return true
		}
	}
	return false
}

// RestrictsPayment reports whether the voucher constrains the payment method
// choice at all.
func (v Voucher) RestrictsPayment() bool {
	return len(v.AllowedPaymentMethods) > 0
}

func windowContains(from, to *time.Time, t time.Time) bool {
	if from != nil && t.Before(*from) {
		return false
	}
	if to != nil && t.After(*to) {
		return false
	}
	return true
}

// Provider supplies catalog facts from an external source. Lookups may hit
// the network; callers gather everything they need into a Facts snapshot
// before pricing runs.
type Provider interface {
	GetVariant(ctx context.Context, ref string) (*Variant, error)
	GetPromotion(ctx context.Context, ref string) (*Promotion, error)
	GetVoucher(ctx context.Context, ref string) (*Voucher, error)
}
